package resolver

import (
	"encoding/json"
	"regexp"
	"strconv"
	"strings"
)

// parsed holds the fields extracted from a completion response.
type parsed struct {
	CategoryID string
	Confidence float64
	Reason     string
	HasFields  bool
}

type strictDecision struct {
	CategoryID *string  `json:"categoryId"`
	Confidence *float64 `json:"confidence"`
	Reason     *string  `json:"reason"`
}

var (
	// Lenient extraction tolerates missing quotes around values and stray
	// text around the object.
	categoryRe   = regexp.MustCompile(`"?categoryId"?\s*:\s*"?([^",}\n]*)"?`)
	confidenceRe = regexp.MustCompile(`"?confidence"?\s*:\s*"?([0-9.]+)"?`)
	reasonRe     = regexp.MustCompile(`"?reason"?\s*:\s*"([^"]*)"`)
)

// parseDecision extracts a decision from raw completion text. It first
// attempts a strict structured parse of the outermost JSON object, then falls
// back to field-by-field lenient extraction. A response with no extractable
// fields yields HasFields=false, never an error.
func parseDecision(text string) parsed {
	if p, ok := parseStrict(text); ok {
		return p
	}
	return parseLenient(text)
}

func parseStrict(text string) (parsed, bool) {
	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start < 0 || end <= start {
		return parsed{}, false
	}

	var d strictDecision
	if err := json.Unmarshal([]byte(text[start:end+1]), &d); err != nil {
		return parsed{}, false
	}
	if d.CategoryID == nil && d.Confidence == nil && d.Reason == nil {
		return parsed{}, false
	}

	p := parsed{HasFields: true}
	if d.CategoryID != nil {
		p.CategoryID = strings.TrimSpace(*d.CategoryID)
	}
	if d.Confidence != nil {
		p.Confidence = normalizeConfidence(*d.Confidence)
	}
	if d.Reason != nil {
		p.Reason = strings.TrimSpace(*d.Reason)
	}
	return p, true
}

func parseLenient(text string) parsed {
	var p parsed

	if m := categoryRe.FindStringSubmatch(text); m != nil {
		id := strings.TrimSpace(m[1])
		if id != "" && !strings.EqualFold(id, "null") && !strings.EqualFold(id, "none") {
			p.CategoryID = id
			p.HasFields = true
		}
	}
	if m := confidenceRe.FindStringSubmatch(text); m != nil {
		if v, err := strconv.ParseFloat(m[1], 64); err == nil {
			p.Confidence = normalizeConfidence(v)
			p.HasFields = true
		}
	}
	if m := reasonRe.FindStringSubmatch(text); m != nil {
		p.Reason = strings.TrimSpace(m[1])
		p.HasFields = true
	}
	return p
}

// normalizeConfidence maps the model's confidence onto [0,1]. Values well
// above 1 are read as percentages (85 -> 0.85); values only slightly above 1
// are overshoot and clamp to 1. Everything is clamped at the end.
func normalizeConfidence(v float64) float64 {
	if v > 2 {
		v = v / 100
	}
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
