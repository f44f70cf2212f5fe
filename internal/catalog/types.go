// Package catalog defines the per-user configuration document: categories,
// rules, assignments, the review queue, the AI decision cache, and user
// settings. The document is the single source of truth for the organizer and
// is persisted wholesale after every mutation.
package catalog

import (
	"errors"
	"time"
)

// ErrNotFound is returned when a referenced record does not exist in the document.
var ErrNotFound = errors.New("not found")

// Category source values.
const (
	SourceManual        = "manual"
	SourceFolderDerived = "folder-derived"
)

// Assignment/review sources.
const (
	DecisionSourceRule = "rule"
	DecisionSourceAI   = "ai"
	DecisionSourceUser = "user"
)

// Review item statuses.
const (
	ReviewPending  = "pending"
	ReviewAccepted = "accepted"
	ReviewRejected = "rejected"
)

// Category is a bucket files are sorted into, optionally mirroring a drive folder.
type Category struct {
	ID            string   `json:"id"`
	Name          string   `json:"name"`
	Description   string   `json:"description,omitempty"`
	Keywords      []string `json:"keywords,omitempty"`
	Examples      []string `json:"examples,omitempty"`
	Color         string   `json:"color,omitempty"`
	Icon          string   `json:"icon,omitempty"`
	DriveFolderID string   `json:"driveFolderId,omitempty"`
	Source        string   `json:"source,omitempty"`
}

// Rule is a deterministic predicate over file attributes mapping to a category.
type Rule struct {
	ID            string  `json:"id"`
	CategoryID    string  `json:"categoryId"`
	Field         string  `json:"field"`
	Operator      string  `json:"operator"`
	Value         string  `json:"value"`
	CaseSensitive bool    `json:"caseSensitive,omitempty"`
	Enabled       bool    `json:"enabled"`
	Confidence    float64 `json:"confidence,omitempty"`
}

// AssignmentMeta records provenance for AI-sourced assignments.
type AssignmentMeta struct {
	Source     string  `json:"source"`
	Reason     string  `json:"reason,omitempty"`
	Confidence float64 `json:"confidence,omitempty"`
	Model      string  `json:"model,omitempty"`
	DecidedAt  string  `json:"decidedAt"`
}

// ReviewItem is a file awaiting human confirmation of a category assignment.
// At most one pending item exists per file.
type ReviewItem struct {
	FileID              string  `json:"fileId"`
	FileName            string  `json:"fileName,omitempty"`
	SuggestedCategoryID string  `json:"suggestedCategoryId,omitempty"`
	Confidence          float64 `json:"confidence,omitempty"`
	Reason              string  `json:"reason,omitempty"`
	Source              string  `json:"source,omitempty"`
	Status              string  `json:"status"`
	QueuedAt            string  `json:"queuedAt,omitempty"`
}

// DecisionEntry is a memoized AI verdict for a single file. It is only valid
// while the document's context key matches ContextKey and the file has not
// been modified after DecidedAt.
type DecisionEntry struct {
	CategoryID string  `json:"categoryId,omitempty"`
	Confidence float64 `json:"confidence"`
	Reason     string  `json:"reason,omitempty"`
	ContextKey string  `json:"contextKey"`
	DecidedAt  string  `json:"decidedAt"`
}

// FeedbackEntry records a human override of an AI suggestion.
type FeedbackEntry struct {
	FileID              string `json:"fileId"`
	FileName            string `json:"fileName,omitempty"`
	SuggestedCategoryID string `json:"suggestedCategoryId,omitempty"`
	ChosenCategoryID    string `json:"chosenCategoryId,omitempty"`
	CorrectedAt         string `json:"correctedAt"`
}

// FeedbackSummary is a bounded textual digest of past corrections, grouped by
// (suggested -> chosen) pairs, reused verbatim in AI prompts.
type FeedbackSummary struct {
	Text        string `json:"text"`
	EntryCount  int    `json:"entryCount"`
	GeneratedAt string `json:"generatedAt"`
}

// Feedback holds correction records and their prompt-ready summary.
type Feedback struct {
	AISuggestions []FeedbackEntry  `json:"aiSuggestions"`
	Summary       *FeedbackSummary `json:"summary,omitempty"`
}

// Settings controls how categorization decisions are made.
type Settings struct {
	AIEnabled          bool    `json:"aiEnabled"`
	AIPrimary          bool    `json:"aiPrimary"`
	AIUseRulesFallback bool    `json:"aiUseRulesFallback"`
	AIMinConfidence    float64 `json:"aiMinConfidence"`
}

// Onboarding tracks first-run state.
type Onboarding struct {
	Completed   bool   `json:"completed"`
	CompletedAt string `json:"completedAt,omitempty"`
}

// Document is the whole per-user configuration document. It is read on every
// decision and rewritten wholesale after any mutation; there are no partial
// field-level writes.
type Document struct {
	Categories                []Category                `json:"categories"`
	Rules                     []Rule                    `json:"rules"`
	Assignments               map[string]string         `json:"assignments"`
	AssignmentMeta            map[string]AssignmentMeta `json:"assignmentMeta"`
	ReviewQueue               []ReviewItem              `json:"reviewQueue"`
	AIDecisionCache           map[string]DecisionEntry  `json:"aiDecisionCache"`
	AIDecisionCacheContextKey string                    `json:"aiDecisionCacheContextKey"`
	Feedback                  Feedback                  `json:"feedback"`
	Settings                  Settings                  `json:"settings"`
	IgnoredFolderIDs          []string                  `json:"ignoredFolderIds"`
	Onboarding                Onboarding                `json:"onboarding"`
	UpdatedAt                 string                    `json:"updatedAt"`
}

// DefaultSettings returns the settings applied to a new or legacy document.
func DefaultSettings() Settings {
	return Settings{
		AIEnabled:          true,
		AIPrimary:          false,
		AIUseRulesFallback: true,
		AIMinConfidence:    0.75,
	}
}

// Touch stamps the document with the current time. UpdatedAt doubles as the
// document's logical version.
func (d *Document) Touch(now time.Time) {
	d.UpdatedAt = now.UTC().Format(time.RFC3339)
}

// Version parses UpdatedAt into epoch milliseconds. A missing or malformed
// timestamp yields 0, which always compares as the oldest version.
func (d *Document) Version() int64 {
	if d.UpdatedAt == "" {
		return 0
	}
	t, err := time.Parse(time.RFC3339, d.UpdatedAt)
	if err != nil {
		return 0
	}
	return t.UnixMilli()
}
