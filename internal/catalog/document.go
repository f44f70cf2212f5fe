package catalog

import (
	"fmt"
	"sort"
	"strings"
	"time"
)

const (
	// maxFeedbackEntries bounds feedback retention (newest first).
	maxFeedbackEntries = 50
	// maxSummaryChars caps the summary text reused in AI prompts.
	maxSummaryChars = 1200
)

// CategoryByID returns the category with the given id, if present.
func (d *Document) CategoryByID(id string) (Category, bool) {
	for _, c := range d.Categories {
		if c.ID == id {
			return c, true
		}
	}
	return Category{}, false
}

// CategoryByName returns the first category whose name matches
// case-insensitively.
func (d *Document) CategoryByName(name string) (Category, bool) {
	for _, c := range d.Categories {
		if strings.EqualFold(c.Name, name) {
			return c, true
		}
	}
	return Category{}, false
}

// AddCategory appends a category after checking its id is unused.
func (d *Document) AddCategory(c Category) error {
	if c.ID == "" {
		return fmt.Errorf("category id is required")
	}
	if _, ok := d.CategoryByID(c.ID); ok {
		return fmt.Errorf("category %s already exists", c.ID)
	}
	d.Categories = append(d.Categories, c)
	return nil
}

// DeleteCategory removes a category and cascades: its assignments and their
// meta are removed, rules targeting it are removed, and review items
// suggesting it lose the suggestion.
func (d *Document) DeleteCategory(id string) error {
	idx := -1
	for i, c := range d.Categories {
		if c.ID == id {
			idx = i
			break
		}
	}
	if idx < 0 {
		return ErrNotFound
	}
	d.Categories = append(d.Categories[:idx], d.Categories[idx+1:]...)

	for fileID, catID := range d.Assignments {
		if catID == id {
			delete(d.Assignments, fileID)
			delete(d.AssignmentMeta, fileID)
		}
	}

	kept := d.Rules[:0]
	for _, r := range d.Rules {
		if r.CategoryID != id {
			kept = append(kept, r)
		}
	}
	d.Rules = kept

	for i := range d.ReviewQueue {
		if d.ReviewQueue[i].SuggestedCategoryID == id {
			d.ReviewQueue[i].SuggestedCategoryID = ""
		}
	}
	return nil
}

// SetAssignment records the authoritative file -> category mapping. Meta is
// stored only for AI-sourced decisions; a manual or rule assignment clears any
// stale AI provenance.
func (d *Document) SetAssignment(fileID, categoryID string, meta *AssignmentMeta) error {
	if _, ok := d.CategoryByID(categoryID); !ok {
		return fmt.Errorf("category %s: %w", categoryID, ErrNotFound)
	}
	d.Assignments[fileID] = categoryID
	if meta != nil && meta.Source == DecisionSourceAI {
		d.AssignmentMeta[fileID] = *meta
	} else {
		delete(d.AssignmentMeta, fileID)
	}
	d.removeReviewItem(fileID)
	return nil
}

// ClearAssignment removes a file's assignment and provenance.
func (d *Document) ClearAssignment(fileID string) {
	delete(d.Assignments, fileID)
	delete(d.AssignmentMeta, fileID)
}

// UpsertReviewItem queues a file for human review, replacing any existing
// pending entry for the same file.
func (d *Document) UpsertReviewItem(item ReviewItem) {
	item.Status = ReviewPending
	for i := range d.ReviewQueue {
		if d.ReviewQueue[i].FileID == item.FileID && d.ReviewQueue[i].Status == ReviewPending {
			d.ReviewQueue[i] = item
			return
		}
	}
	d.ReviewQueue = append(d.ReviewQueue, item)
}

// PendingReviewItem returns the pending review entry for a file.
func (d *Document) PendingReviewItem(fileID string) (ReviewItem, bool) {
	for _, it := range d.ReviewQueue {
		if it.FileID == fileID && it.Status == ReviewPending {
			return it, true
		}
	}
	return ReviewItem{}, false
}

// RemoveReviewItem drops every review entry for a file.
func (d *Document) RemoveReviewItem(fileID string) {
	d.removeReviewItem(fileID)
}

func (d *Document) removeReviewItem(fileID string) {
	kept := d.ReviewQueue[:0]
	for _, it := range d.ReviewQueue {
		if it.FileID != fileID {
			kept = append(kept, it)
		}
	}
	d.ReviewQueue = kept
}

// RecordFeedback prepends a correction record, trims retention to the cap,
// and rebuilds the summary.
func (d *Document) RecordFeedback(entry FeedbackEntry, now time.Time) {
	entry.CorrectedAt = now.UTC().Format(time.RFC3339)
	d.Feedback.AISuggestions = append([]FeedbackEntry{entry}, d.Feedback.AISuggestions...)
	if len(d.Feedback.AISuggestions) > maxFeedbackEntries {
		d.Feedback.AISuggestions = d.Feedback.AISuggestions[:maxFeedbackEntries]
	}
	d.RebuildFeedbackSummary(now)
}

// RebuildFeedbackSummary regenerates the textual digest of corrections where
// the chosen category differs from the AI suggestion, grouped and deduplicated
// by (suggested -> chosen) pair. When no qualifying entries remain the summary
// is removed.
func (d *Document) RebuildFeedbackSummary(now time.Time) {
	type pair struct{ suggested, chosen string }
	counts := make(map[pair]int)
	var order []pair
	for _, e := range d.Feedback.AISuggestions {
		if e.SuggestedCategoryID == "" || e.ChosenCategoryID == "" || e.SuggestedCategoryID == e.ChosenCategoryID {
			continue
		}
		p := pair{e.SuggestedCategoryID, e.ChosenCategoryID}
		if counts[p] == 0 {
			order = append(order, p)
		}
		counts[p]++
	}

	if len(order) == 0 {
		d.Feedback.Summary = nil
		return
	}

	// Most-corrected pairs first; ties keep newest-first discovery order.
	sort.SliceStable(order, func(i, j int) bool {
		return counts[order[i]] > counts[order[j]]
	})

	var sb strings.Builder
	total := 0
	for _, p := range order {
		suggested := d.categoryLabel(p.suggested)
		chosen := d.categoryLabel(p.chosen)
		line := fmt.Sprintf("- suggested %q but user chose %q (%dx)\n", suggested, chosen, counts[p])
		if sb.Len()+len(line) > maxSummaryChars {
			break
		}
		sb.WriteString(line)
		total += counts[p]
	}

	d.Feedback.Summary = &FeedbackSummary{
		Text:        strings.TrimRight(sb.String(), "\n"),
		EntryCount:  total,
		GeneratedAt: now.UTC().Format(time.RFC3339),
	}
}

func (d *Document) categoryLabel(id string) string {
	if c, ok := d.CategoryByID(id); ok {
		return c.Name
	}
	return id
}

// IsFolderIgnored reports whether a drive folder is excluded from mirroring.
func (d *Document) IsFolderIgnored(folderID string) bool {
	for _, id := range d.IgnoredFolderIDs {
		if id == folderID {
			return true
		}
	}
	return false
}

// CategoryForFolder returns the category mirroring the given drive folder.
func (d *Document) CategoryForFolder(folderID string) (Category, bool) {
	for _, c := range d.Categories {
		if c.DriveFolderID == folderID {
			return c, true
		}
	}
	return Category{}, false
}
