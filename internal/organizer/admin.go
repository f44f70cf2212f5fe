package organizer

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/tidydrive/tidydrive/internal/catalog"
	"github.com/tidydrive/tidydrive/internal/optimistic"
)

// ReviewResolution reports the outcome of accepting or rejecting a queued item.
type ReviewResolution struct {
	FileID     string `json:"fileId"`
	CategoryID string `json:"categoryId,omitempty"`
	Status     string `json:"status"`
}

// ReviewQueue returns the pending review items, served from the cached view
// when fresh.
func (s *Service) ReviewQueue(ctx context.Context) ([]catalog.ReviewItem, error) {
	if b, ok := s.cache.Get(reviewQueueKey, s.docTTL); ok {
		var items []catalog.ReviewItem
		if err := json.Unmarshal(b, &items); err == nil {
			return items, nil
		}
	}
	doc, err := s.Load(ctx)
	if err != nil {
		return nil, err
	}
	s.cacheReviewQueue(&doc)
	return pendingReviews(&doc), nil
}

// AcceptReview assigns the reviewed file to categoryID, or to the queued
// suggestion when categoryID is empty. Choosing a category other than an AI
// suggestion records a feedback entry and rebuilds the correction summary.
func (s *Service) AcceptReview(ctx context.Context, fileID, categoryID string) (ReviewResolution, error) {
	s.opMu.Lock()
	defer s.opMu.Unlock()

	doc, err := s.Load(ctx)
	if err != nil {
		return ReviewResolution{}, err
	}
	item, ok := doc.PendingReviewItem(fileID)
	if !ok {
		return ReviewResolution{}, fmt.Errorf("review item %s: %w", fileID, catalog.ErrNotFound)
	}
	chosen := categoryID
	if chosen == "" {
		chosen = item.SuggestedCategoryID
	}
	if chosen == "" {
		return ReviewResolution{}, fmt.Errorf("review item %s has no suggestion and no category was chosen", fileID)
	}

	if item.Source == catalog.DecisionSourceAI && item.SuggestedCategoryID != "" && item.SuggestedCategoryID != chosen {
		doc.RecordFeedback(catalog.FeedbackEntry{
			FileID:              fileID,
			FileName:            item.FileName,
			SuggestedCategoryID: item.SuggestedCategoryID,
			ChosenCategoryID:    chosen,
		}, s.now())
	}

	meta := catalog.AssignmentMeta{
		Source:    catalog.DecisionSourceUser,
		DecidedAt: s.now().UTC().Format(time.RFC3339),
	}
	if err := doc.SetAssignment(fileID, chosen, &meta); err != nil {
		return ReviewResolution{}, err
	}

	cat, _ := doc.CategoryByID(chosen)
	update := optimistic.Update{
		Keys: []string{assignmentKey(fileID), reviewQueueKey},
		Mutate: func() {
			s.cache.Set(assignmentKey(fileID), []byte(chosen))
			s.cacheReviewQueue(&doc)
		},
		Call: func(ctx context.Context) error {
			if cat.DriveFolderID == "" {
				return nil
			}
			if _, err := s.drive.MoveFile(ctx, fileID, cat.DriveFolderID); err != nil {
				return fmt.Errorf("move file %s: %w", fileID, err)
			}
			return nil
		},
	}
	update.Call = s.chainSave(update.Call, &doc)
	if err := s.opt.Do(ctx, update); err != nil {
		return ReviewResolution{}, err
	}
	return ReviewResolution{FileID: fileID, CategoryID: chosen, Status: catalog.ReviewAccepted}, nil
}

// RejectReview removes the pending item without assigning the file.
func (s *Service) RejectReview(ctx context.Context, fileID string) (ReviewResolution, error) {
	s.opMu.Lock()
	defer s.opMu.Unlock()

	doc, err := s.Load(ctx)
	if err != nil {
		return ReviewResolution{}, err
	}
	if _, ok := doc.PendingReviewItem(fileID); !ok {
		return ReviewResolution{}, fmt.Errorf("review item %s: %w", fileID, catalog.ErrNotFound)
	}
	doc.RemoveReviewItem(fileID)

	update := optimistic.Update{
		Keys:   []string{reviewQueueKey},
		Mutate: func() { s.cacheReviewQueue(&doc) },
	}
	update.Call = s.chainSave(nil, &doc)
	if err := s.opt.Do(ctx, update); err != nil {
		return ReviewResolution{}, err
	}
	return ReviewResolution{FileID: fileID, Status: catalog.ReviewRejected}, nil
}

// Categories lists the document's categories.
func (s *Service) Categories(ctx context.Context) ([]catalog.Category, error) {
	doc, err := s.Load(ctx)
	if err != nil {
		return nil, err
	}
	return doc.Categories, nil
}

// CreateCategory adds a category, generating an id when absent. With mirror
// set and no folder linked yet, a drive folder of the same name is created
// and attached.
func (s *Service) CreateCategory(ctx context.Context, c catalog.Category, mirror bool) (catalog.Category, error) {
	s.opMu.Lock()
	defer s.opMu.Unlock()

	if c.Name == "" {
		return catalog.Category{}, fmt.Errorf("category name is required")
	}
	doc, err := s.Load(ctx)
	if err != nil {
		return catalog.Category{}, err
	}
	if c.ID == "" {
		c.ID = "cat_" + uuid.NewString()
	}
	if c.Source == "" {
		c.Source = catalog.SourceManual
	}
	if mirror && c.DriveFolderID == "" {
		folder, err := s.drive.CreateFolder(ctx, c.Name, "")
		if err != nil {
			return catalog.Category{}, fmt.Errorf("create mirror folder for %s: %w", c.Name, err)
		}
		c.DriveFolderID = folder.ID
	}
	if err := doc.AddCategory(c); err != nil {
		return catalog.Category{}, err
	}
	if _, err := s.Save(ctx, doc); err != nil {
		return catalog.Category{}, err
	}
	return c, nil
}

// DeleteCategory removes a category and its dependents, then refreshes the
// cached views the cascade touched.
func (s *Service) DeleteCategory(ctx context.Context, id string) error {
	s.opMu.Lock()
	defer s.opMu.Unlock()

	doc, err := s.Load(ctx)
	if err != nil {
		return err
	}
	if err := doc.DeleteCategory(id); err != nil {
		return fmt.Errorf("category %s: %w", id, err)
	}
	if _, err := s.Save(ctx, doc); err != nil {
		return err
	}
	s.cache.RemoveByPrefix(assignmentKeyPrefix)
	s.cacheReviewQueue(&doc)
	return nil
}

// Rules lists the document's rules.
func (s *Service) Rules(ctx context.Context) ([]catalog.Rule, error) {
	doc, err := s.Load(ctx)
	if err != nil {
		return nil, err
	}
	return doc.Rules, nil
}

// AddRule appends a rule, generating an id when absent. New rules start
// enabled and the target category must exist.
func (s *Service) AddRule(ctx context.Context, r catalog.Rule) (catalog.Rule, error) {
	s.opMu.Lock()
	defer s.opMu.Unlock()

	doc, err := s.Load(ctx)
	if err != nil {
		return catalog.Rule{}, err
	}
	if _, ok := doc.CategoryByID(r.CategoryID); !ok {
		return catalog.Rule{}, fmt.Errorf("category %s: %w", r.CategoryID, catalog.ErrNotFound)
	}
	if r.Field == "" || r.Operator == "" || r.Value == "" {
		return catalog.Rule{}, fmt.Errorf("rule field, operator, and value are required")
	}
	if r.ID == "" {
		r.ID = "rule_" + uuid.NewString()
	}
	r.Enabled = true
	doc.Rules = append(doc.Rules, r)
	if _, err := s.Save(ctx, doc); err != nil {
		return catalog.Rule{}, err
	}
	return r, nil
}

// DeleteRule removes a rule by id.
func (s *Service) DeleteRule(ctx context.Context, id string) error {
	s.opMu.Lock()
	defer s.opMu.Unlock()

	doc, err := s.Load(ctx)
	if err != nil {
		return err
	}
	idx := -1
	for i, r := range doc.Rules {
		if r.ID == id {
			idx = i
			break
		}
	}
	if idx < 0 {
		return fmt.Errorf("rule %s: %w", id, catalog.ErrNotFound)
	}
	doc.Rules = append(doc.Rules[:idx], doc.Rules[idx+1:]...)
	_, err = s.Save(ctx, doc)
	return err
}

// Settings returns the decision settings.
func (s *Service) Settings(ctx context.Context) (catalog.Settings, error) {
	doc, err := s.Load(ctx)
	if err != nil {
		return catalog.Settings{}, err
	}
	return doc.Settings, nil
}

// UpdateSettings replaces the decision settings.
func (s *Service) UpdateSettings(ctx context.Context, st catalog.Settings) (catalog.Settings, error) {
	s.opMu.Lock()
	defer s.opMu.Unlock()

	if st.AIMinConfidence < 0 || st.AIMinConfidence > 1 {
		return catalog.Settings{}, fmt.Errorf("aiMinConfidence %g out of range [0,1]", st.AIMinConfidence)
	}
	doc, err := s.Load(ctx)
	if err != nil {
		return catalog.Settings{}, err
	}
	doc.Settings = st
	if _, err := s.Save(ctx, doc); err != nil {
		return catalog.Settings{}, err
	}
	return st, nil
}

// IgnoreFolder excludes a drive folder from mirroring.
func (s *Service) IgnoreFolder(ctx context.Context, folderID string) error {
	s.opMu.Lock()
	defer s.opMu.Unlock()

	doc, err := s.Load(ctx)
	if err != nil {
		return err
	}
	if doc.IsFolderIgnored(folderID) {
		return nil
	}
	doc.IgnoredFolderIDs = append(doc.IgnoredFolderIDs, folderID)
	_, err = s.Save(ctx, doc)
	return err
}

// UnignoreFolder re-admits a drive folder to mirroring.
func (s *Service) UnignoreFolder(ctx context.Context, folderID string) error {
	s.opMu.Lock()
	defer s.opMu.Unlock()

	doc, err := s.Load(ctx)
	if err != nil {
		return err
	}
	kept := doc.IgnoredFolderIDs[:0]
	for _, id := range doc.IgnoredFolderIDs {
		if id != folderID {
			kept = append(kept, id)
		}
	}
	if len(kept) == len(doc.IgnoredFolderIDs) {
		return nil
	}
	doc.IgnoredFolderIDs = kept
	_, err = s.Save(ctx, doc)
	return err
}

// Stats summarizes the document for status surfaces.
type Stats struct {
	Categories    int  `json:"categories"`
	Rules         int  `json:"rules"`
	Assignments   int  `json:"assignments"`
	PendingReview int  `json:"pendingReview"`
	Onboarded     bool `json:"onboarded"`
}

// Status returns document counts.
func (s *Service) Status(ctx context.Context) (Stats, error) {
	doc, err := s.Load(ctx)
	if err != nil {
		return Stats{}, err
	}
	return Stats{
		Categories:    len(doc.Categories),
		Rules:         len(doc.Rules),
		Assignments:   len(doc.Assignments),
		PendingReview: len(pendingReviews(&doc)),
		Onboarded:     doc.Onboarding.Completed,
	}, nil
}
