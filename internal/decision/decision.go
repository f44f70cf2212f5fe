// Package decision combines rule evaluation and AI resolution into a single
// categorization verdict per the user's settings.
package decision

import (
	"context"

	"github.com/tidydrive/tidydrive/internal/catalog"
	"github.com/tidydrive/tidydrive/internal/drive"
	"github.com/tidydrive/tidydrive/internal/resolver"
	"github.com/tidydrive/tidydrive/internal/rules"
)

// AIResolver is the slice of the resolver the orchestrator needs.
type AIResolver interface {
	Resolve(ctx context.Context, f drive.File, doc *catalog.Document) resolver.Decision
	Model() string
}

// Review describes a file enqueued for human confirmation.
type Review struct {
	SuggestedCategoryID string
	Confidence          float64
	Reason              string
	Source              string
}

// Outcome is the orchestrator's verdict: either an assignment or a review
// request, never both.
type Outcome struct {
	AssignCategoryID string
	AssignSource     string
	AssignConfidence float64
	AssignReason     string
	Review           *Review
}

// Assigned reports whether the outcome is a direct assignment.
func (o Outcome) Assigned() bool {
	return o.AssignCategoryID != ""
}

// Orchestrator decides what happens to a file.
type Orchestrator struct {
	ai AIResolver
}

// New creates an Orchestrator.
func New(ai AIResolver) *Orchestrator {
	return &Orchestrator{ai: ai}
}

// Model returns the underlying resolver's model identifier.
func (o *Orchestrator) Model() string {
	return o.ai.Model()
}

// Decide returns the verdict for one file. The branch order is a documented
// contract:
//
// AI-primary: resolve via AI; a suggestion at or above the confidence
// threshold assigns; a suggestion below it goes to review carrying the
// suggestion; no suggestion falls back to rules when enabled, else review
// with no suggestion.
//
// Rules-primary: the first matching rule assigns; otherwise AI (when
// enabled) with the same threshold branching; otherwise review with no
// suggestion.
func (o *Orchestrator) Decide(ctx context.Context, f drive.File, doc *catalog.Document) Outcome {
	s := doc.Settings

	if s.AIPrimary && s.AIEnabled {
		if out, ok := o.decideByAI(ctx, f, doc); ok {
			return out
		}
		if s.AIUseRulesFallback {
			if catID := rules.FirstMatch(f, doc.Rules); catID != "" {
				return assignByRule(catID)
			}
		}
		return reviewOutcome(Review{Source: catalog.DecisionSourceAI})
	}

	// Rules-primary.
	if catID := rules.FirstMatch(f, doc.Rules); catID != "" {
		return assignByRule(catID)
	}
	if s.AIEnabled {
		if out, ok := o.decideByAI(ctx, f, doc); ok {
			return out
		}
	}
	return reviewOutcome(Review{Source: catalog.DecisionSourceRule})
}

// decideByAI maps an AI resolution to an outcome. ok is false when the
// resolver offered no suggestion, so the caller can fall through.
func (o *Orchestrator) decideByAI(ctx context.Context, f drive.File, doc *catalog.Document) (Outcome, bool) {
	d := o.ai.Resolve(ctx, f, doc)
	if d.CategoryID == "" {
		return Outcome{}, false
	}
	if d.Confidence >= doc.Settings.AIMinConfidence {
		return Outcome{
			AssignCategoryID: d.CategoryID,
			AssignSource:     catalog.DecisionSourceAI,
			AssignConfidence: d.Confidence,
			AssignReason:     d.Reason,
		}, true
	}
	return reviewOutcome(Review{
		SuggestedCategoryID: d.CategoryID,
		Confidence:          d.Confidence,
		Reason:              d.Reason,
		Source:              catalog.DecisionSourceAI,
	}), true
}

func assignByRule(categoryID string) Outcome {
	return Outcome{
		AssignCategoryID: categoryID,
		AssignSource:     catalog.DecisionSourceRule,
		AssignConfidence: 1,
	}
}

func reviewOutcome(r Review) Outcome {
	return Outcome{Review: &r}
}
