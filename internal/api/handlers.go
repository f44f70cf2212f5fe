// Package api exposes the organizer over HTTP (chi) and MCP.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/tidydrive/tidydrive/internal/catalog"
	"github.com/tidydrive/tidydrive/internal/organizer"
	"github.com/tidydrive/tidydrive/internal/syncer"
)

const maxRequestBodySize = 1 << 20 // 1MB

// Engine is the organizer surface the API layer depends on.
type Engine interface {
	Categorize(ctx context.Context, fileID string) (organizer.CategorizeResult, error)
	CategorizeBatch(ctx context.Context, fileIDs []string) (organizer.BatchResult, error)
	Categories(ctx context.Context) ([]catalog.Category, error)
	CreateCategory(ctx context.Context, c catalog.Category, mirror bool) (catalog.Category, error)
	DeleteCategory(ctx context.Context, id string) error
	Rules(ctx context.Context) ([]catalog.Rule, error)
	AddRule(ctx context.Context, r catalog.Rule) (catalog.Rule, error)
	DeleteRule(ctx context.Context, id string) error
	ReviewQueue(ctx context.Context) ([]catalog.ReviewItem, error)
	AcceptReview(ctx context.Context, fileID, categoryID string) (organizer.ReviewResolution, error)
	RejectReview(ctx context.Context, fileID string) (organizer.ReviewResolution, error)
	SyncFolders(ctx context.Context, force bool) (syncer.Result, error)
	Settings(ctx context.Context) (catalog.Settings, error)
	UpdateSettings(ctx context.Context, st catalog.Settings) (catalog.Settings, error)
	Status(ctx context.Context) (organizer.Stats, error)
	Document(ctx context.Context) (catalog.Document, error)
}

// NewHandler builds the HTTP API. Health is open; everything else sits
// behind bearer auth.
func NewHandler(engine Engine, token string) http.Handler {
	r := chi.NewRouter()

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Group(func(r chi.Router) {
		r.Use(BearerAuth(token))

		r.Post("/categorize", handleCategorize(engine))
		r.Post("/categorize/batch", handleCategorizeBatch(engine))
		r.Get("/categories", handleListCategories(engine))
		r.Post("/categories", handleCreateCategory(engine))
		r.Delete("/categories/{id}", handleDeleteCategory(engine))
		r.Get("/rules", handleListRules(engine))
		r.Post("/rules", handleAddRule(engine))
		r.Delete("/rules/{id}", handleDeleteRule(engine))
		r.Get("/review", handleListReview(engine))
		r.Post("/review/{fileId}/accept", handleAcceptReview(engine))
		r.Post("/review/{fileId}/reject", handleRejectReview(engine))
		r.Post("/sync", handleSync(engine))
		r.Get("/settings", handleGetSettings(engine))
		r.Put("/settings", handlePutSettings(engine))
		r.Get("/status", handleStatus(engine))
	})

	return r
}

type categorizeRequest struct {
	FileID  string   `json:"fileId"`
	FileIDs []string `json:"fileIds"`
}

func handleCategorize(engine Engine) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req categorizeRequest
		if !decodeBody(w, r, &req) {
			return
		}
		if req.FileID == "" {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "fileId is required")
			return
		}
		res, err := engine.Categorize(r.Context(), req.FileID)
		if err != nil {
			writeEngineError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, res)
	}
}

func handleCategorizeBatch(engine Engine) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req categorizeRequest
		if !decodeBody(w, r, &req) {
			return
		}
		if len(req.FileIDs) == 0 {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "fileIds is required and must not be empty")
			return
		}
		res, err := engine.CategorizeBatch(r.Context(), req.FileIDs)
		if err != nil {
			writeEngineError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, res)
	}
}

func handleListCategories(engine Engine) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		cats, err := engine.Categories(r.Context())
		if err != nil {
			writeEngineError(w, err)
			return
		}
		if cats == nil {
			cats = []catalog.Category{}
		}
		writeJSON(w, http.StatusOK, cats)
	}
}

type createCategoryRequest struct {
	catalog.Category
	Mirror bool `json:"mirror"`
}

func handleCreateCategory(engine Engine) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req createCategoryRequest
		if !decodeBody(w, r, &req) {
			return
		}
		if req.Name == "" {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "name is required")
			return
		}
		created, err := engine.CreateCategory(r.Context(), req.Category, req.Mirror)
		if err != nil {
			writeEngineError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, created)
	}
}

func handleDeleteCategory(engine Engine) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		if err := engine.DeleteCategory(r.Context(), id); err != nil {
			writeEngineError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
	}
}

func handleListRules(engine Engine) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rules, err := engine.Rules(r.Context())
		if err != nil {
			writeEngineError(w, err)
			return
		}
		if rules == nil {
			rules = []catalog.Rule{}
		}
		writeJSON(w, http.StatusOK, rules)
	}
}

func handleAddRule(engine Engine) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var rule catalog.Rule
		if !decodeBody(w, r, &rule) {
			return
		}
		created, err := engine.AddRule(r.Context(), rule)
		if err != nil {
			writeEngineError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, created)
	}
}

func handleDeleteRule(engine Engine) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		if err := engine.DeleteRule(r.Context(), id); err != nil {
			writeEngineError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
	}
}

func handleListReview(engine Engine) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		items, err := engine.ReviewQueue(r.Context())
		if err != nil {
			writeEngineError(w, err)
			return
		}
		if items == nil {
			items = []catalog.ReviewItem{}
		}
		writeJSON(w, http.StatusOK, items)
	}
}

type acceptReviewRequest struct {
	CategoryID string `json:"categoryId"`
}

func handleAcceptReview(engine Engine) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		fileID := chi.URLParam(r, "fileId")
		var req acceptReviewRequest
		if r.ContentLength > 0 && !decodeBody(w, r, &req) {
			return
		}
		res, err := engine.AcceptReview(r.Context(), fileID, req.CategoryID)
		if err != nil {
			writeEngineError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, res)
	}
}

func handleRejectReview(engine Engine) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		fileID := chi.URLParam(r, "fileId")
		res, err := engine.RejectReview(r.Context(), fileID)
		if err != nil {
			writeEngineError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, res)
	}
}

type syncRequest struct {
	Force bool `json:"force"`
}

func handleSync(engine Engine) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req syncRequest
		if r.ContentLength > 0 && !decodeBody(w, r, &req) {
			return
		}
		res, err := engine.SyncFolders(r.Context(), req.Force)
		if err != nil {
			writeEngineError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, res)
	}
}

func handleGetSettings(engine Engine) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		st, err := engine.Settings(r.Context())
		if err != nil {
			writeEngineError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, st)
	}
}

func handlePutSettings(engine Engine) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var st catalog.Settings
		if !decodeBody(w, r, &st) {
			return
		}
		updated, err := engine.UpdateSettings(r.Context(), st)
		if err != nil {
			writeEngineError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, updated)
	}
}

func handleStatus(engine Engine) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		st, err := engine.Status(r.Context())
		if err != nil {
			writeEngineError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, st)
	}
}

func decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)
	defer r.Body.Close()
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		httpError(w, http.StatusBadRequest, "invalid_request_error", "invalid request body: %v", err)
		return false
	}
	return true
}

// writeEngineError maps organizer errors to HTTP statuses.
func writeEngineError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, catalog.ErrNotFound):
		httpError(w, http.StatusNotFound, "not_found", "%v", err)
	case errors.Is(err, organizer.ErrIsFolder):
		httpError(w, http.StatusBadRequest, "invalid_request_error", "%v", err)
	default:
		httpError(w, http.StatusInternalServerError, "api_error", "%v", err)
	}
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}

func httpError(w http.ResponseWriter, code int, errType string, format string, args ...any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	msg := fmt.Sprintf(format, args...)
	json.NewEncoder(w).Encode(map[string]any{
		"error": map[string]any{
			"message": msg,
			"type":    errType,
		},
	})
}
