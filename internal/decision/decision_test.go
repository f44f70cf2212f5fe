package decision

import (
	"context"
	"testing"

	"github.com/tidydrive/tidydrive/internal/catalog"
	"github.com/tidydrive/tidydrive/internal/drive"
	"github.com/tidydrive/tidydrive/internal/resolver"
)

type mockResolver struct {
	resolveFn func(ctx context.Context, f drive.File, doc *catalog.Document) resolver.Decision
	calls     int
}

func (m *mockResolver) Resolve(ctx context.Context, f drive.File, doc *catalog.Document) resolver.Decision {
	m.calls++
	if m.resolveFn != nil {
		return m.resolveFn(ctx, f, doc)
	}
	return resolver.Decision{}
}

func (m *mockResolver) Model() string { return "test-model" }

func testDoc(settings catalog.Settings) *catalog.Document {
	doc := catalog.NewDocument()
	doc.Settings = settings
	doc.Categories = []catalog.Category{
		{ID: "cat_inv", Name: "Invoices"},
		{ID: "cat_img", Name: "Images"},
	}
	doc.Rules = []catalog.Rule{
		{ID: "r1", Field: "name", Operator: "contains", Value: "invoice", CategoryID: "cat_inv", Enabled: true},
	}
	return &doc
}

func fixedDecision(d resolver.Decision) func(context.Context, drive.File, *catalog.Document) resolver.Decision {
	return func(context.Context, drive.File, *catalog.Document) resolver.Decision { return d }
}

func TestDecide_RulesPrimaryRuleWins(t *testing.T) {
	ai := &mockResolver{resolveFn: fixedDecision(resolver.Decision{CategoryID: "cat_img", Confidence: 0.99})}
	o := New(ai)
	doc := testDoc(catalog.Settings{AIEnabled: true, AIMinConfidence: 0.75})

	out := o.Decide(context.Background(), drive.File{ID: "f1", Name: "invoice-march.pdf"}, doc)
	if !out.Assigned() {
		t.Fatalf("expected assignment, got review %+v", out.Review)
	}
	if out.AssignCategoryID != "cat_inv" || out.AssignSource != catalog.DecisionSourceRule {
		t.Fatalf("unexpected assignment: %+v", out)
	}
	if ai.calls != 0 {
		t.Fatalf("expected no AI call when a rule matches, got %d", ai.calls)
	}
}

func TestDecide_RulesPrimaryAIFallback(t *testing.T) {
	tests := []struct {
		name       string
		decision   resolver.Decision
		wantAssign string
		wantReview *Review
	}{
		{
			name:       "confident suggestion assigns",
			decision:   resolver.Decision{CategoryID: "cat_img", Confidence: 0.95, Reason: "screenshot"},
			wantAssign: "cat_img",
		},
		{
			name:     "low confidence goes to review with suggestion",
			decision: resolver.Decision{CategoryID: "cat_img", Confidence: 0.5, Reason: "maybe"},
			wantReview: &Review{
				SuggestedCategoryID: "cat_img",
				Confidence:          0.5,
				Reason:              "maybe",
				Source:              catalog.DecisionSourceAI,
			},
		},
		{
			name:       "no suggestion goes to review without one",
			decision:   resolver.Decision{},
			wantReview: &Review{Source: catalog.DecisionSourceRule},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ai := &mockResolver{resolveFn: fixedDecision(tt.decision)}
			o := New(ai)
			doc := testDoc(catalog.Settings{AIEnabled: true, AIMinConfidence: 0.9})

			out := o.Decide(context.Background(), drive.File{ID: "f1", Name: "photo.png"}, doc)
			if tt.wantAssign != "" {
				if out.AssignCategoryID != tt.wantAssign || out.AssignSource != catalog.DecisionSourceAI {
					t.Fatalf("unexpected assignment: %+v", out)
				}
				return
			}
			if out.Review == nil {
				t.Fatalf("expected review, got assignment %+v", out)
			}
			if *out.Review != *tt.wantReview {
				t.Fatalf("review = %+v, want %+v", *out.Review, *tt.wantReview)
			}
		})
	}
}

func TestDecide_AIPrimary(t *testing.T) {
	ai := &mockResolver{resolveFn: fixedDecision(resolver.Decision{CategoryID: "cat_img", Confidence: 0.8, Reason: "looks like a photo"})}
	o := New(ai)
	doc := testDoc(catalog.Settings{AIEnabled: true, AIPrimary: true, AIUseRulesFallback: true, AIMinConfidence: 0.75})

	// AI answers confidently even though a rule would also match.
	out := o.Decide(context.Background(), drive.File{ID: "f1", Name: "invoice-photo.png"}, doc)
	if out.AssignCategoryID != "cat_img" || out.AssignSource != catalog.DecisionSourceAI {
		t.Fatalf("unexpected outcome: %+v", out)
	}
}

func TestDecide_AIPrimaryRulesFallback(t *testing.T) {
	ai := &mockResolver{}
	o := New(ai)
	doc := testDoc(catalog.Settings{AIEnabled: true, AIPrimary: true, AIUseRulesFallback: true, AIMinConfidence: 0.75})

	out := o.Decide(context.Background(), drive.File{ID: "f1", Name: "invoice-march.pdf"}, doc)
	if out.AssignCategoryID != "cat_inv" || out.AssignSource != catalog.DecisionSourceRule {
		t.Fatalf("expected rule fallback assignment, got %+v", out)
	}
	if ai.calls != 1 {
		t.Fatalf("expected one AI call before fallback, got %d", ai.calls)
	}
}

func TestDecide_AIPrimaryNoFallbackReviews(t *testing.T) {
	ai := &mockResolver{}
	o := New(ai)
	doc := testDoc(catalog.Settings{AIEnabled: true, AIPrimary: true, AIUseRulesFallback: false, AIMinConfidence: 0.75})

	out := o.Decide(context.Background(), drive.File{ID: "f1", Name: "invoice-march.pdf"}, doc)
	if out.Review == nil || out.Review.SuggestedCategoryID != "" {
		t.Fatalf("expected review without suggestion, got %+v", out)
	}
}

func TestDecide_AIDisabledReviews(t *testing.T) {
	ai := &mockResolver{}
	o := New(ai)
	doc := testDoc(catalog.Settings{AIEnabled: false, AIMinConfidence: 0.75})

	out := o.Decide(context.Background(), drive.File{ID: "f1", Name: "photo.png"}, doc)
	if out.Review == nil {
		t.Fatalf("expected review, got %+v", out)
	}
	if ai.calls != 0 {
		t.Fatalf("expected no AI calls when disabled, got %d", ai.calls)
	}
}

func TestDecide_ThresholdBoundary(t *testing.T) {
	ai := &mockResolver{resolveFn: fixedDecision(resolver.Decision{CategoryID: "cat_img", Confidence: 0.9})}
	o := New(ai)
	doc := testDoc(catalog.Settings{AIEnabled: true, AIMinConfidence: 0.9})

	out := o.Decide(context.Background(), drive.File{ID: "f1", Name: "photo.png"}, doc)
	if !out.Assigned() {
		t.Fatalf("confidence equal to threshold should assign, got %+v", out)
	}
}
