// Package resolver decides file categories via the external completion
// service, memoizing verdicts in the document's decision cache keyed by a
// content-derived context fingerprint.
package resolver

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/tidydrive/tidydrive/internal/ai"
	"github.com/tidydrive/tidydrive/internal/catalog"
	"github.com/tidydrive/tidydrive/internal/drive"
)

// CompletionClient is the slice of the ai client the resolver needs.
type CompletionClient interface {
	Complete(ctx context.Context, req ai.Request) (ai.Response, error)
}

// SnippetFunc returns an optional content excerpt for the file, or "" when
// none is available. Failures must be swallowed by the implementation.
type SnippetFunc func(ctx context.Context, f drive.File) string

// Decision is the resolver's verdict for one file. CategoryID is "" when the
// service offered no usable suggestion.
type Decision struct {
	CategoryID string
	Confidence float64
	Reason     string
	FromCache  bool
}

// Resolver calls the completion service and manages the per-document decision
// cache and the process-wide cooldown.
type Resolver struct {
	client      CompletionClient
	model       string
	temperature float64
	maxTokens   int
	cooldown    *Cooldown
	snippet     SnippetFunc
	now         func() time.Time
	logger      *slog.Logger

	// Notify surfaces a one-time rate-limit warning to the user; nil disables.
	Notify func(msg string)
	warned bool
}

// Options configures a Resolver.
type Options struct {
	Model       string
	Temperature float64
	MaxTokens   int
	Cooldown    *Cooldown
	Snippet     SnippetFunc
	Now         func() time.Time
}

// New creates a Resolver. A nil cooldown gets the default window.
func New(client CompletionClient, opts Options) *Resolver {
	if opts.MaxTokens <= 0 {
		opts.MaxTokens = 300
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Cooldown == nil {
		opts.Cooldown = NewCooldown(0, opts.Now)
	}
	return &Resolver{
		client:      client,
		model:       opts.Model,
		temperature: opts.Temperature,
		maxTokens:   opts.MaxTokens,
		cooldown:    opts.Cooldown,
		snippet:     opts.Snippet,
		now:         opts.Now,
		logger:      slog.Default(),
	}
}

// Model returns the configured model identifier.
func (r *Resolver) Model() string {
	return r.model
}

// Resolve returns the category decision for the file, consulting the
// document's decision cache first. When the context fingerprint has changed
// the entire cache is reset before the lookup. On a miss the completion
// service is called and the verdict cached in the document; the caller is
// responsible for persisting the document.
//
// Failure semantics: 401 yields no suggestion without caching or cooldown;
// 429/503 trips the cooldown, during which all calls short-circuit to no
// suggestion; any other failure is logged and yields no suggestion.
func (r *Resolver) Resolve(ctx context.Context, f drive.File, doc *catalog.Document) Decision {
	fp := Fingerprint(doc, r.model)
	if doc.AIDecisionCacheContextKey != fp {
		doc.AIDecisionCache = map[string]catalog.DecisionEntry{}
		doc.AIDecisionCacheContextKey = fp
	}

	if entry, ok := doc.AIDecisionCache[f.ID]; ok && r.entryValid(entry, f, doc, fp) {
		return Decision{
			CategoryID: entry.CategoryID,
			Confidence: entry.Confidence,
			Reason:     entry.Reason,
			FromCache:  true,
		}
	}

	if r.cooldown.Active() {
		r.logger.Debug("ai resolution in cooldown, skipping", "file_id", f.ID)
		return Decision{}
	}

	var hint string
	if r.snippet != nil {
		hint = r.snippet(ctx, f)
	}

	resp, err := r.client.Complete(ctx, ai.Request{
		Model:       r.model,
		Prompt:      buildPrompt(f, doc, hint),
		Temperature: r.temperature,
		MaxTokens:   r.maxTokens,
	})
	if err != nil {
		var rate *ai.RateLimitedError
		switch {
		case errors.Is(err, ai.ErrUnauthorized):
			r.logger.Warn("completion service rejected credentials", "file_id", f.ID)
		case errors.As(err, &rate):
			r.cooldown.Trip()
			r.logger.Warn("completion service rate limited, entering cooldown", "status", rate.Status)
		default:
			r.logger.Warn("completion call failed", "file_id", f.ID, "error", err)
		}
		return Decision{}
	}

	if resp.RateLimitWarning && !r.warned {
		r.warned = true
		if r.Notify != nil {
			r.Notify("the AI service is approaching its rate limit; suggestions may pause soon")
		}
	}

	p := parseDecision(resp.Text)
	if !p.HasFields {
		r.logger.Warn("completion response had no extractable fields", "file_id", f.ID, "response", resp.Text)
		return Decision{}
	}

	d := Decision{
		CategoryID: resolveCategoryID(p.CategoryID, doc),
		Confidence: p.Confidence,
		Reason:     p.Reason,
	}

	doc.AIDecisionCache[f.ID] = catalog.DecisionEntry{
		CategoryID: d.CategoryID,
		Confidence: d.Confidence,
		Reason:     d.Reason,
		ContextKey: fp,
		DecidedAt:  r.now().UTC().Format(time.RFC3339),
	}
	return d
}

// entryValid applies the cache invariants: matching context key, file not
// modified after the decision, and the referenced category still present.
// Invalid entries are ignored, not deleted.
func (r *Resolver) entryValid(entry catalog.DecisionEntry, f drive.File, doc *catalog.Document, fp string) bool {
	if entry.ContextKey != fp {
		return false
	}
	decidedAt, err := time.Parse(time.RFC3339, entry.DecidedAt)
	if err != nil {
		return false
	}
	if f.ModifiedTime.After(decidedAt) {
		return false
	}
	if entry.CategoryID != "" {
		if _, ok := doc.CategoryByID(entry.CategoryID); !ok {
			return false
		}
	}
	return true
}

// resolveCategoryID accepts an exact id or an exact case-insensitive name
// match; anything else resolves to no category.
func resolveCategoryID(raw string, doc *catalog.Document) string {
	if raw == "" {
		return ""
	}
	if _, ok := doc.CategoryByID(raw); ok {
		return raw
	}
	if c, ok := doc.CategoryByName(raw); ok {
		return c.ID
	}
	return ""
}
