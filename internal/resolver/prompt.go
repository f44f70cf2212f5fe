package resolver

import (
	"fmt"
	"strings"

	"github.com/tidydrive/tidydrive/internal/catalog"
	"github.com/tidydrive/tidydrive/internal/drive"
)

const maxContentHintChars = 600

// buildPrompt produces the deterministic categorization prompt for one file.
// Category metadata is emitted in document order; the optional feedback
// summary biases the model away from previously-corrected mistakes, and the
// optional content hint carries a short text excerpt from the file itself.
func buildPrompt(f drive.File, doc *catalog.Document, contentHint string) string {
	var sb strings.Builder

	sb.WriteString("You are a file-organization assistant. Assign the file below to exactly one of the user's categories, or to none if nothing fits.\n\n")

	sb.WriteString("File:\n")
	fmt.Fprintf(&sb, "- name: %s\n", f.Name)
	fmt.Fprintf(&sb, "- mimeType: %s\n", f.MimeType)
	if owner := f.Owner(); owner != "" {
		fmt.Fprintf(&sb, "- owner: %s\n", owner)
	}

	if contentHint != "" {
		if len(contentHint) > maxContentHintChars {
			contentHint = contentHint[:maxContentHintChars]
		}
		sb.WriteString("\nContent excerpt:\n")
		sb.WriteString(contentHint)
		sb.WriteString("\n")
	}

	sb.WriteString("\nCategories:\n")
	for _, c := range doc.Categories {
		fmt.Fprintf(&sb, "- id: %s, name: %s", c.ID, c.Name)
		if c.Description != "" {
			fmt.Fprintf(&sb, ", description: %s", c.Description)
		}
		if len(c.Keywords) > 0 {
			fmt.Fprintf(&sb, ", keywords: %s", strings.Join(c.Keywords, ", "))
		}
		if len(c.Examples) > 0 {
			fmt.Fprintf(&sb, ", examples: %s", strings.Join(c.Examples, "; "))
		}
		sb.WriteString("\n")
	}

	if s := doc.Feedback.Summary; s != nil && s.Text != "" {
		sb.WriteString("\nPast corrections by the user (avoid repeating these mistakes):\n")
		sb.WriteString(s.Text)
		sb.WriteString("\n")
	}

	sb.WriteString("\nRespond with a single JSON object: {\"categoryId\": \"<id or null>\", \"confidence\": <0..1>, \"reason\": \"<short reason>\"}\n")
	return sb.String()
}
