package resolver

import "testing"

func TestParseDecision_Strict(t *testing.T) {
	p := parseDecision(`{"categoryId":"cat_1","confidence":0.85,"reason":"invoice keywords"}`)
	if !p.HasFields {
		t.Fatal("expected fields")
	}
	if p.CategoryID != "cat_1" || p.Confidence != 0.85 || p.Reason != "invoice keywords" {
		t.Errorf("parsed = %+v", p)
	}
}

func TestParseDecision_SurroundingText(t *testing.T) {
	p := parseDecision("Sure! Here is my answer:\n```json\n{\"categoryId\": \"cat_2\", \"confidence\": 0.7, \"reason\": \"photos\"}\n```\nLet me know if you need more.")
	if !p.HasFields || p.CategoryID != "cat_2" || p.Confidence != 0.7 {
		t.Errorf("parsed = %+v", p)
	}
}

func TestParseDecision_LenientMissingQuotes(t *testing.T) {
	p := parseDecision("categoryId: cat_3\nconfidence: 0.6\nreason: \"older receipts\"")
	if !p.HasFields {
		t.Fatal("expected fields via lenient extraction")
	}
	if p.CategoryID != "cat_3" {
		t.Errorf("categoryId = %q", p.CategoryID)
	}
	if p.Confidence != 0.6 {
		t.Errorf("confidence = %v", p.Confidence)
	}
	if p.Reason != "older receipts" {
		t.Errorf("reason = %q", p.Reason)
	}
}

func TestParseDecision_NullCategory(t *testing.T) {
	p := parseDecision(`{"categoryId": null, "confidence": 0.2, "reason": "no fit"}`)
	if !p.HasFields {
		t.Fatal("expected fields")
	}
	if p.CategoryID != "" {
		t.Errorf("categoryId = %q, want empty", p.CategoryID)
	}
}

func TestParseDecision_NoFields(t *testing.T) {
	for _, text := range []string{
		"",
		"I cannot categorize this file.",
		"{}",
		"{\"unrelated\": true}",
	} {
		if p := parseDecision(text); p.HasFields {
			t.Errorf("parseDecision(%q).HasFields = true", text)
		}
	}
}

func TestNormalizeConfidence(t *testing.T) {
	tests := []struct {
		in   float64
		want float64
	}{
		{0.5, 0.5},
		{0, 0},
		{1, 1},
		{1.2, 1},    // slight overshoot clamps
		{85, 0.85},  // percentage
		{120, 1},    // percentage above 100 clamps
		{-0.3, 0},
	}
	for _, tt := range tests {
		if got := normalizeConfidence(tt.in); got != tt.want {
			t.Errorf("normalizeConfidence(%v) = %v, want %v", tt.in, got, tt.want)
		}
	}
}
