package catalog

// Normalize backfills a partially-shaped or legacy document so that every
// collection and nested object is present. It returns the corrected document
// and whether anything was backfilled, so the caller can persist the fix-up
// exactly once instead of rewriting the document on every read.
//
// Normalize is idempotent: running it on its own output reports no change.
func Normalize(doc Document) (Document, bool) {
	changed := false

	if doc.Categories == nil {
		doc.Categories = []Category{}
		changed = true
	}
	if doc.Rules == nil {
		doc.Rules = []Rule{}
		changed = true
	}
	if doc.Assignments == nil {
		doc.Assignments = map[string]string{}
		changed = true
	}
	if doc.AssignmentMeta == nil {
		doc.AssignmentMeta = map[string]AssignmentMeta{}
		changed = true
	}
	if doc.ReviewQueue == nil {
		doc.ReviewQueue = []ReviewItem{}
		changed = true
	}
	if doc.AIDecisionCache == nil {
		doc.AIDecisionCache = map[string]DecisionEntry{}
		changed = true
	}
	if doc.Feedback.AISuggestions == nil {
		doc.Feedback.AISuggestions = []FeedbackEntry{}
		changed = true
	}
	if doc.IgnoredFolderIDs == nil {
		doc.IgnoredFolderIDs = []string{}
		changed = true
	}

	// A zero-valued settings block (everything off, threshold 0) is not
	// reachable through the API; it means a legacy document with no settings.
	if doc.Settings == (Settings{}) {
		doc.Settings = DefaultSettings()
		changed = true
	}

	// Rules left pointing at a category that no longer exists cannot
	// produce a valid assignment; drop them.
	if len(doc.Rules) > 0 {
		exists := make(map[string]bool, len(doc.Categories))
		for _, c := range doc.Categories {
			exists[c.ID] = true
		}
		kept := make([]Rule, 0, len(doc.Rules))
		for _, r := range doc.Rules {
			if exists[r.CategoryID] {
				kept = append(kept, r)
			}
		}
		if len(kept) != len(doc.Rules) {
			doc.Rules = kept
			changed = true
		}
	}

	return doc, changed
}

// NewDocument returns the default schema for a user with no stored document.
func NewDocument() Document {
	doc, _ := Normalize(Document{})
	return doc
}
