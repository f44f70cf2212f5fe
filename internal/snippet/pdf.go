// Package snippet extracts short text excerpts from file content to enrich
// AI categorization prompts. Extraction is best-effort: any failure yields an
// empty snippet, never an error.
package snippet

import (
	"bytes"
	"io"
	"log/slog"
	"strings"

	"github.com/ledongthuc/pdf"
)

const (
	// maxBytes caps how much of a file is downloaded for extraction.
	maxBytes = 2 << 20 // 2MB
	// maxChars caps the extracted excerpt.
	maxChars = 600
)

// SupportsMime reports whether an excerpt can be extracted for the MIME type.
func SupportsMime(mimeType string) bool {
	return mimeType == "application/pdf" || strings.HasPrefix(mimeType, "text/")
}

// Extract reads up to maxBytes from r and returns a plain-text excerpt for
// the given MIME type, or "" when nothing useful can be extracted.
func Extract(r io.Reader, mimeType string) string {
	data, err := io.ReadAll(io.LimitReader(r, maxBytes))
	if err != nil {
		slog.Debug("snippet read failed", "error", err)
		return ""
	}

	switch {
	case mimeType == "application/pdf":
		return fromPDF(data)
	case strings.HasPrefix(mimeType, "text/"):
		return truncate(string(data))
	default:
		return ""
	}
}

// fromPDF pulls text from the first page only; a title and opening paragraph
// are enough signal for categorization.
func fromPDF(data []byte) string {
	defer func() {
		// The pdf package panics on some malformed files.
		if r := recover(); r != nil {
			slog.Debug("pdf extraction panicked", "panic", r)
		}
	}()

	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		slog.Debug("pdf open failed", "error", err)
		return ""
	}
	if reader.NumPage() == 0 {
		return ""
	}

	page := reader.Page(1)
	if page.V.IsNull() {
		return ""
	}
	text, err := page.GetPlainText(nil)
	if err != nil {
		slog.Debug("pdf text extraction failed", "error", err)
		return ""
	}
	return truncate(text)
}

func truncate(s string) string {
	s = strings.TrimSpace(strings.Join(strings.Fields(s), " "))
	if len(s) > maxChars {
		s = s[:maxChars]
	}
	return s
}
