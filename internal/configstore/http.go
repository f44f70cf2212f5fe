package configstore

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const httpTimeout = 30 * time.Second

// HTTPStore talks to the remote configuration store's REST API. Documents
// live in a per-user application data area keyed by name; the version is
// server-assigned and returned with every read and write.
type HTTPStore struct {
	baseURL    string
	token      string
	httpClient *http.Client
}

// NewHTTPStore creates an HTTPStore for the given API base URL and bearer token.
func NewHTTPStore(baseURL, token string) *HTTPStore {
	return &HTTPStore{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		httpClient: &http.Client{
			Timeout: httpTimeout,
		},
	}
}

type documentMeta struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	Version int64  `json:"version"`
}

type documentRecord struct {
	documentMeta
	Blob json.RawMessage `json:"blob"`
}

// Locate finds the user's document by its well-known name.
func (s *HTTPStore) Locate(ctx context.Context) (string, error) {
	var list struct {
		Documents []documentMeta `json:"documents"`
	}
	path := "/documents?name=" + url.QueryEscape(DocumentName)
	if err := s.doJSON(ctx, http.MethodGet, path, nil, &list); err != nil {
		return "", fmt.Errorf("locating document: %w", err)
	}
	if len(list.Documents) == 0 {
		return "", ErrNotFound
	}
	return list.Documents[0].ID, nil
}

// Create stores a new document blob and returns its server-assigned id.
func (s *HTTPStore) Create(ctx context.Context, blob []byte) (string, error) {
	body := map[string]any{
		"name": DocumentName,
		"blob": json.RawMessage(blob),
	}
	var meta documentMeta
	if err := s.doJSON(ctx, http.MethodPost, "/documents", body, &meta); err != nil {
		return "", fmt.Errorf("creating document: %w", err)
	}
	return meta.ID, nil
}

// Read returns the blob and its server-assigned version.
func (s *HTTPStore) Read(ctx context.Context, id string) ([]byte, int64, error) {
	var rec documentRecord
	if err := s.doJSON(ctx, http.MethodGet, "/documents/"+url.PathEscape(id), nil, &rec); err != nil {
		return nil, 0, fmt.Errorf("reading document %s: %w", id, err)
	}
	return rec.Blob, rec.Version, nil
}

// Update rewrites the blob if the server-side version still matches.
func (s *HTTPStore) Update(ctx context.Context, id string, blob []byte, expectedVersion int64) (int64, error) {
	body := map[string]any{
		"blob":            json.RawMessage(blob),
		"expectedVersion": expectedVersion,
	}
	var meta documentMeta
	err := s.doJSON(ctx, http.MethodPut, "/documents/"+url.PathEscape(id), body, &meta)
	if err != nil {
		return 0, fmt.Errorf("updating document %s: %w", id, err)
	}
	return meta.Version, nil
}

func (s *HTTPStore) doJSON(ctx context.Context, method, path string, body, out any) error {
	var bodyReader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshalling request: %w", err)
		}
		bodyReader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, s.baseURL+path, bodyReader)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+s.token)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("executing request: %w", err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK, http.StatusCreated:
	case http.StatusNotFound:
		return ErrNotFound
	case http.StatusConflict, http.StatusPreconditionFailed:
		return ErrVersionConflict
	default:
		respBody, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("unexpected status %d: %s", resp.StatusCode, string(respBody))
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("decoding response: %w", err)
		}
	}
	return nil
}
