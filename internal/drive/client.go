// Package drive implements the client for the remote file-storage provider.
// The engine receives a valid bearer credential; token acquisition is out of
// scope.
package drive

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

const defaultTimeout = 30 * time.Second

// Client communicates with the storage provider's REST API.
type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
}

// NewClient creates a Client for the given API base URL and bearer token.
func NewClient(baseURL, token string) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		httpClient: &http.Client{
			Timeout: defaultTimeout,
		},
	}
}

// ListFiles returns one page of files matching the query.
func (c *Client) ListFiles(ctx context.Context, q Query) (FileList, error) {
	params := url.Values{}
	if q.Q != "" {
		params.Set("q", q.Q)
	}
	if q.PageToken != "" {
		params.Set("pageToken", q.PageToken)
	}
	if q.PageSize > 0 {
		params.Set("pageSize", strconv.Itoa(q.PageSize))
	}

	var list FileList
	if err := c.doJSON(ctx, http.MethodGet, "/files?"+params.Encode(), nil, &list); err != nil {
		return FileList{}, fmt.Errorf("listing files: %w", err)
	}
	return list, nil
}

// ListAll follows continuation tokens until the query is exhausted.
func (c *Client) ListAll(ctx context.Context, q Query) ([]File, error) {
	var all []File
	for {
		page, err := c.ListFiles(ctx, q)
		if err != nil {
			return nil, err
		}
		all = append(all, page.Files...)
		if page.NextPageToken == "" {
			return all, nil
		}
		q.PageToken = page.NextPageToken
	}
}

// ListFolders returns all non-trashed folders in the account.
func (c *Client) ListFolders(ctx context.Context) ([]File, error) {
	q := Query{Q: fmt.Sprintf("mimeType = '%s' and trashed = false", FolderMimeType)}
	return c.ListAll(ctx, q)
}

// HasChildren reports whether the folder contains at least one non-trashed file.
func (c *Client) HasChildren(ctx context.Context, folderID string) (bool, error) {
	page, err := c.ListFiles(ctx, Query{
		Q:        fmt.Sprintf("'%s' in parents and trashed = false", folderID),
		PageSize: 1,
	})
	if err != nil {
		return false, err
	}
	return len(page.Files) > 0, nil
}

// GetFile fetches a single file record by id.
func (c *Client) GetFile(ctx context.Context, id string) (File, error) {
	var f File
	if err := c.doJSON(ctx, http.MethodGet, "/files/"+url.PathEscape(id), nil, &f); err != nil {
		return File{}, fmt.Errorf("getting file %s: %w", id, err)
	}
	return f, nil
}

// CreateFolder creates a folder with the given name under the optional parent.
func (c *Client) CreateFolder(ctx context.Context, name, parentID string) (File, error) {
	body := map[string]any{
		"name":     name,
		"mimeType": FolderMimeType,
	}
	if parentID != "" {
		body["parents"] = []string{parentID}
	}
	var f File
	if err := c.doJSON(ctx, http.MethodPost, "/files", body, &f); err != nil {
		return File{}, fmt.Errorf("creating folder %q: %w", name, err)
	}
	return f, nil
}

// MoveFile re-parents a file into the given folder.
func (c *Client) MoveFile(ctx context.Context, fileID, folderID string) (File, error) {
	current, err := c.GetFile(ctx, fileID)
	if err != nil {
		return File{}, err
	}

	path := fmt.Sprintf("/files/%s?addParents=%s&removeParents=%s",
		url.PathEscape(fileID), url.QueryEscape(folderID), url.QueryEscape(strings.Join(current.Parents, ",")))
	var f File
	if err := c.doJSON(ctx, http.MethodPatch, path, map[string]any{}, &f); err != nil {
		return File{}, fmt.Errorf("moving file %s: %w", fileID, err)
	}
	return f, nil
}

// Download returns the raw content of a file. The caller must close the reader.
func (c *Client) Download(ctx context.Context, fileID string) (io.ReadCloser, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/files/"+url.PathEscape(fileID)+"?alt=media", nil)
	if err != nil {
		return nil, fmt.Errorf("creating download request: %w", err)
	}
	c.setHeaders(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("downloading file %s: %w", fileID, err)
	}
	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(resp.Body)
		resp.Body.Close()
		return nil, fmt.Errorf("download %s: unexpected status %d: %s", fileID, resp.StatusCode, string(respBody))
	}
	return resp.Body, nil
}

func (c *Client) doJSON(ctx context.Context, method, path string, body, out any) error {
	var bodyReader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshalling request: %w", err)
		}
		bodyReader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bodyReader)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	c.setHeaders(req)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("executing request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
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

func (c *Client) setHeaders(req *http.Request) {
	req.Header.Set("Authorization", "Bearer "+c.token)
}
