package resolver

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"sort"

	"github.com/tidydrive/tidydrive/internal/catalog"
)

// fingerprintInput is the canonical, order-independent serialization the
// context key is derived from. Categories and rules are sorted by id so that
// reordering alone never invalidates the decision cache; any change to their
// content, to settings, or to the model does.
type fingerprintInput struct {
	Categories []fpCategory     `json:"categories"`
	Rules      []catalog.Rule   `json:"rules"`
	Settings   catalog.Settings `json:"settings"`
	Model      string           `json:"model"`
}

// fpCategory carries only the category fields that influence a decision;
// cosmetic attributes (color, icon) do not participate in the key.
type fpCategory struct {
	ID          string   `json:"id"`
	Name        string   `json:"name"`
	Description string   `json:"description,omitempty"`
	Keywords    []string `json:"keywords,omitempty"`
	Examples    []string `json:"examples,omitempty"`
}

// Fingerprint computes the context key for the document's current
// categorization inputs plus the model identifier.
func Fingerprint(doc *catalog.Document, model string) string {
	in := fingerprintInput{
		Settings: doc.Settings,
		Model:    model,
	}

	in.Categories = make([]fpCategory, 0, len(doc.Categories))
	for _, c := range doc.Categories {
		in.Categories = append(in.Categories, fpCategory{
			ID:          c.ID,
			Name:        c.Name,
			Description: c.Description,
			Keywords:    c.Keywords,
			Examples:    c.Examples,
		})
	}
	sort.Slice(in.Categories, func(i, j int) bool { return in.Categories[i].ID < in.Categories[j].ID })

	in.Rules = make([]catalog.Rule, len(doc.Rules))
	copy(in.Rules, doc.Rules)
	sort.Slice(in.Rules, func(i, j int) bool { return in.Rules[i].ID < in.Rules[j].ID })

	data, _ := json.Marshal(in)
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}
