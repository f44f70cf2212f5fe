package organizer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"testing"
	"time"

	"github.com/tidydrive/tidydrive/internal/cache"
	"github.com/tidydrive/tidydrive/internal/catalog"
	"github.com/tidydrive/tidydrive/internal/configstore"
	"github.com/tidydrive/tidydrive/internal/decision"
	"github.com/tidydrive/tidydrive/internal/drive"
)

type fakeClock struct {
	t time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{t: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time          { return c.t }
func (c *fakeClock) advance(d time.Duration) { c.t = c.t.Add(d) }

type memStore struct {
	id      string
	blob    []byte
	version int64
	reads   int
	creates int
	updates int

	// updateErr makes every Update fail, simulating a lost version race.
	updateErr error
}

func (m *memStore) Locate(ctx context.Context) (string, error) {
	if m.id == "" {
		return "", configstore.ErrNotFound
	}
	return m.id, nil
}

func (m *memStore) Create(ctx context.Context, blob []byte) (string, error) {
	m.creates++
	m.id = "doc-1"
	m.blob = blob
	m.version = 0
	return m.id, nil
}

func (m *memStore) Read(ctx context.Context, id string) ([]byte, int64, error) {
	m.reads++
	if id != m.id {
		return nil, 0, configstore.ErrNotFound
	}
	return m.blob, m.version, nil
}

func (m *memStore) Update(ctx context.Context, id string, blob []byte, expectedVersion int64) (int64, error) {
	m.updates++
	if m.updateErr != nil {
		return 0, m.updateErr
	}
	if id != m.id {
		return 0, configstore.ErrNotFound
	}
	if expectedVersion != m.version {
		return 0, configstore.ErrVersionConflict
	}
	m.blob = blob
	m.version++
	return m.version, nil
}

func (m *memStore) document(t *testing.T) catalog.Document {
	t.Helper()
	var doc catalog.Document
	if err := json.Unmarshal(m.blob, &doc); err != nil {
		t.Fatalf("decode stored document: %v", err)
	}
	return doc
}

type mockDrive struct {
	getFileFn      func(ctx context.Context, id string) (drive.File, error)
	moveFn         func(ctx context.Context, fileID, folderID string) (drive.File, error)
	createFolderFn func(ctx context.Context, name, parentID string) (drive.File, error)
	listFoldersFn  func(ctx context.Context) ([]drive.File, error)

	moves []string
}

func (m *mockDrive) GetFile(ctx context.Context, id string) (drive.File, error) {
	if m.getFileFn != nil {
		return m.getFileFn(ctx, id)
	}
	return drive.File{}, fmt.Errorf("file %s not configured", id)
}

func (m *mockDrive) MoveFile(ctx context.Context, fileID, folderID string) (drive.File, error) {
	if m.moveFn != nil {
		return m.moveFn(ctx, fileID, folderID)
	}
	m.moves = append(m.moves, fileID+"->"+folderID)
	return drive.File{ID: fileID}, nil
}

func (m *mockDrive) CreateFolder(ctx context.Context, name, parentID string) (drive.File, error) {
	if m.createFolderFn != nil {
		return m.createFolderFn(ctx, name, parentID)
	}
	return drive.File{}, fmt.Errorf("create folder not configured")
}

func (m *mockDrive) ListFolders(ctx context.Context) ([]drive.File, error) {
	if m.listFoldersFn != nil {
		return m.listFoldersFn(ctx)
	}
	return nil, nil
}

func (m *mockDrive) HasChildren(ctx context.Context, folderID string) (bool, error) {
	return false, nil
}

func (m *mockDrive) Download(ctx context.Context, fileID string) (io.ReadCloser, error) {
	return nil, fmt.Errorf("download not configured")
}

type mockDecider struct {
	decideFn func(ctx context.Context, f drive.File, doc *catalog.Document) decision.Outcome
}

func (m *mockDecider) Decide(ctx context.Context, f drive.File, doc *catalog.Document) decision.Outcome {
	if m.decideFn != nil {
		return m.decideFn(ctx, f, doc)
	}
	return decision.Outcome{Review: &decision.Review{Source: catalog.DecisionSourceRule}}
}

func (m *mockDecider) Model() string { return "test-model" }

func seedDocument() catalog.Document {
	doc := catalog.NewDocument()
	doc.Categories = []catalog.Category{
		{ID: "cat_inv", Name: "Invoices", DriveFolderID: "fold_inv"},
		{ID: "cat_img", Name: "Images"},
	}
	doc.Rules = []catalog.Rule{
		{ID: "r1", Field: "name", Operator: "contains", Value: "invoice", CategoryID: "cat_inv", Enabled: true},
	}
	return doc
}

func seedStore(t *testing.T, doc catalog.Document) *memStore {
	t.Helper()
	blob, err := json.Marshal(doc)
	if err != nil {
		t.Fatalf("seed document: %v", err)
	}
	return &memStore{id: "doc-1", blob: blob, version: 1}
}

func newTestService(store *memStore, d *mockDrive, dec Decider, clock *fakeClock) (*Service, *cache.Cache) {
	c := cache.NewWithClock("u1", clock.Now)
	s := New(Options{
		Store:   store,
		Drive:   d,
		Decider: dec,
		Cache:   c,
		Now:     clock.Now,
	})
	return s, c
}

func TestLoad_CreatesDocumentOnFirstRun(t *testing.T) {
	store := &memStore{}
	s, _ := newTestService(store, &mockDrive{}, &mockDecider{}, newFakeClock())

	doc, err := s.Load(context.Background())
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if store.creates != 1 {
		t.Fatalf("creates = %d, want 1", store.creates)
	}
	if doc.Settings != catalog.DefaultSettings() {
		t.Fatalf("new document settings = %+v, want defaults", doc.Settings)
	}
	if doc.Assignments == nil || doc.AIDecisionCache == nil {
		t.Fatal("new document missing initialized collections")
	}
}

func TestLoad_ServedFromCacheWithinTTL(t *testing.T) {
	store := seedStore(t, seedDocument())
	s, _ := newTestService(store, &mockDrive{}, &mockDecider{}, newFakeClock())

	if _, err := s.Load(context.Background()); err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if _, err := s.Load(context.Background()); err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if store.reads != 1 {
		t.Fatalf("store reads = %d, want 1 (second load cache-served)", store.reads)
	}
}

func TestLoad_CacheExpiryRereads(t *testing.T) {
	store := seedStore(t, seedDocument())
	clock := newFakeClock()
	s, _ := newTestService(store, &mockDrive{}, &mockDecider{}, clock)

	if _, err := s.Load(context.Background()); err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	clock.advance(DefaultDocTTL + time.Second)
	if _, err := s.Load(context.Background()); err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if store.reads != 2 {
		t.Fatalf("store reads = %d, want 2 after TTL expiry", store.reads)
	}
}

func TestLoad_NormalizesLegacyDocumentOnce(t *testing.T) {
	store := &memStore{
		id:      "doc-1",
		blob:    []byte(`{"categories":[{"id":"c1","name":"Docs"}]}`),
		version: 1,
	}
	clock := newFakeClock()
	s, _ := newTestService(store, &mockDrive{}, &mockDecider{}, clock)

	doc, err := s.Load(context.Background())
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if doc.Settings != catalog.DefaultSettings() {
		t.Fatalf("legacy settings not backfilled: %+v", doc.Settings)
	}
	if store.updates != 1 {
		t.Fatalf("updates = %d, want 1 normalization fix-up", store.updates)
	}

	clock.advance(DefaultDocTTL + time.Second)
	if _, err := s.Load(context.Background()); err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if store.updates != 1 {
		t.Fatalf("updates = %d after reload, fix-up must not repeat", store.updates)
	}
}

func TestLoad_FailedFixupStillCachesNormalizedDocument(t *testing.T) {
	store := &memStore{
		id:        "doc-1",
		blob:      []byte(`{"categories":[{"id":"c1","name":"Docs"}]}`),
		version:   1,
		updateErr: configstore.ErrVersionConflict,
	}
	d := &mockDrive{getFileFn: func(ctx context.Context, id string) (drive.File, error) {
		return drive.File{ID: id, Name: "notes.txt"}, nil
	}}
	dec := &mockDecider{decideFn: func(ctx context.Context, f drive.File, doc *catalog.Document) decision.Outcome {
		return assignOutcome("c1", catalog.DecisionSourceRule, 1)
	}}
	s, _ := newTestService(store, d, dec, newFakeClock())

	if _, err := s.Load(context.Background()); err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	// The second load is cache-served; it must see the normalized shape,
	// not the raw legacy bytes the fix-up failed to replace.
	doc, err := s.Load(context.Background())
	if err != nil {
		t.Fatalf("second Load() error = %v", err)
	}
	if store.reads != 1 {
		t.Fatalf("reads = %d, want cache-served second load", store.reads)
	}
	if doc.Assignments == nil || doc.AIDecisionCache == nil {
		t.Fatal("cache served document with nil collections")
	}

	// Categorizing writes into those collections: it must surface the
	// version conflict from the persist, never panic on a nil map.
	if _, err := s.Categorize(context.Background(), "f1"); !errors.Is(err, configstore.ErrVersionConflict) {
		t.Fatalf("Categorize() error = %v, want version conflict", err)
	}
}

func TestSave_VersionConflictInvalidatesCache(t *testing.T) {
	store := seedStore(t, seedDocument())
	s, _ := newTestService(store, &mockDrive{}, &mockDecider{}, newFakeClock())

	if _, err := s.Load(context.Background()); err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	// Another session wrote the document.
	store.version++

	_, err := s.UpdateSettings(context.Background(), catalog.DefaultSettings())
	if !errors.Is(err, configstore.ErrVersionConflict) {
		t.Fatalf("UpdateSettings() error = %v, want version conflict", err)
	}

	readsBefore := store.reads
	if _, err := s.Load(context.Background()); err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if store.reads != readsBefore+1 {
		t.Fatal("conflict should invalidate the cached document")
	}
}

func assignOutcome(categoryID, source string, confidence float64) decision.Outcome {
	return decision.Outcome{
		AssignCategoryID: categoryID,
		AssignSource:     source,
		AssignConfidence: confidence,
	}
}

func TestCategorize_AssignMovesAndPersists(t *testing.T) {
	store := seedStore(t, seedDocument())
	d := &mockDrive{
		getFileFn: func(ctx context.Context, id string) (drive.File, error) {
			return drive.File{ID: id, Name: "invoice-march.pdf", MimeType: "application/pdf"}, nil
		},
	}
	dec := &mockDecider{decideFn: func(ctx context.Context, f drive.File, doc *catalog.Document) decision.Outcome {
		return assignOutcome("cat_inv", catalog.DecisionSourceRule, 1)
	}}
	s, _ := newTestService(store, d, dec, newFakeClock())

	res, err := s.Categorize(context.Background(), "f1")
	if err != nil {
		t.Fatalf("Categorize() error = %v", err)
	}
	if res.CategoryID != "cat_inv" || res.Queued {
		t.Fatalf("unexpected result: %+v", res)
	}
	if len(d.moves) != 1 || d.moves[0] != "f1->fold_inv" {
		t.Fatalf("moves = %v, want file moved into mirrored folder", d.moves)
	}

	saved := store.document(t)
	if saved.Assignments["f1"] != "cat_inv" {
		t.Fatalf("persisted assignment = %q, want cat_inv", saved.Assignments["f1"])
	}
	if !saved.Onboarding.Completed {
		t.Fatal("first categorization should complete onboarding")
	}
}

func TestCategorize_AIAssignmentStoresProvenance(t *testing.T) {
	store := seedStore(t, seedDocument())
	d := &mockDrive{
		getFileFn: func(ctx context.Context, id string) (drive.File, error) {
			return drive.File{ID: id, Name: "photo.png"}, nil
		},
	}
	dec := &mockDecider{decideFn: func(ctx context.Context, f drive.File, doc *catalog.Document) decision.Outcome {
		out := assignOutcome("cat_img", catalog.DecisionSourceAI, 0.9)
		out.AssignReason = "looks like a photo"
		return out
	}}
	s, _ := newTestService(store, d, dec, newFakeClock())

	if _, err := s.Categorize(context.Background(), "f2"); err != nil {
		t.Fatalf("Categorize() error = %v", err)
	}
	saved := store.document(t)
	meta, ok := saved.AssignmentMeta["f2"]
	if !ok {
		t.Fatal("AI assignment should store provenance meta")
	}
	if meta.Model != "test-model" || meta.Confidence != 0.9 {
		t.Fatalf("meta = %+v", meta)
	}
}

func TestCategorize_ReviewPathQueues(t *testing.T) {
	store := seedStore(t, seedDocument())
	d := &mockDrive{
		getFileFn: func(ctx context.Context, id string) (drive.File, error) {
			return drive.File{ID: id, Name: "mystery.bin"}, nil
		},
	}
	dec := &mockDecider{decideFn: func(ctx context.Context, f drive.File, doc *catalog.Document) decision.Outcome {
		return decision.Outcome{Review: &decision.Review{
			SuggestedCategoryID: "cat_img",
			Confidence:          0.4,
			Source:              catalog.DecisionSourceAI,
		}}
	}}
	s, _ := newTestService(store, d, dec, newFakeClock())

	res, err := s.Categorize(context.Background(), "f3")
	if err != nil {
		t.Fatalf("Categorize() error = %v", err)
	}
	if !res.Queued || res.CategoryID != "cat_img" {
		t.Fatalf("unexpected result: %+v", res)
	}

	queue, err := s.ReviewQueue(context.Background())
	if err != nil {
		t.Fatalf("ReviewQueue() error = %v", err)
	}
	if len(queue) != 1 || queue[0].FileID != "f3" {
		t.Fatalf("queue = %+v, want one pending item for f3", queue)
	}
}

func TestCategorize_MoveFailureRollsBackViews(t *testing.T) {
	store := seedStore(t, seedDocument())
	moveErr := errors.New("drive unavailable")
	d := &mockDrive{
		getFileFn: func(ctx context.Context, id string) (drive.File, error) {
			return drive.File{ID: id, Name: "invoice.pdf"}, nil
		},
		moveFn: func(ctx context.Context, fileID, folderID string) (drive.File, error) {
			return drive.File{}, moveErr
		},
	}
	dec := &mockDecider{decideFn: func(ctx context.Context, f drive.File, doc *catalog.Document) decision.Outcome {
		return assignOutcome("cat_inv", catalog.DecisionSourceRule, 1)
	}}
	s, c := newTestService(store, d, dec, newFakeClock())

	updatesBefore := store.updates
	_, err := s.Categorize(context.Background(), "f1")
	if !errors.Is(err, moveErr) {
		t.Fatalf("Categorize() error = %v, want %v", err, moveErr)
	}
	if _, ok := c.Get("assignments:f1", time.Minute); ok {
		t.Fatal("assignment view should roll back on move failure")
	}
	if store.updates != updatesBefore {
		t.Fatalf("updates = %d, document must not persist on move failure", store.updates)
	}
}

func TestCategorizeBatch_ReportsPerItem(t *testing.T) {
	store := seedStore(t, seedDocument())
	d := &mockDrive{
		getFileFn: func(ctx context.Context, id string) (drive.File, error) {
			switch id {
			case "f1":
				return drive.File{ID: id, Name: "invoice.pdf"}, nil
			case "f2":
				return drive.File{ID: id, Name: "mystery.bin"}, nil
			case "f4":
				return drive.File{ID: id, Name: "Folder", MimeType: drive.FolderMimeType}, nil
			default:
				return drive.File{}, fmt.Errorf("file %s not found", id)
			}
		},
	}
	dec := &mockDecider{decideFn: func(ctx context.Context, f drive.File, doc *catalog.Document) decision.Outcome {
		if f.ID == "f1" {
			return assignOutcome("cat_inv", catalog.DecisionSourceRule, 1)
		}
		return decision.Outcome{Review: &decision.Review{Source: catalog.DecisionSourceAI}}
	}}
	s, _ := newTestService(store, d, dec, newFakeClock())

	updatesBefore := store.updates
	res, err := s.CategorizeBatch(context.Background(), []string{"f1", "f2", "f3", "f4"})
	if err != nil {
		t.Fatalf("CategorizeBatch() error = %v", err)
	}
	if len(res.Assigned) != 1 || res.Assigned[0].FileID != "f1" {
		t.Fatalf("assigned = %+v", res.Assigned)
	}
	if len(res.Review) != 1 || res.Review[0].FileID != "f2" {
		t.Fatalf("review = %+v", res.Review)
	}
	if len(res.Errored) != 2 {
		t.Fatalf("errored = %+v, want f3 and f4", res.Errored)
	}
	if store.updates != updatesBefore+1 {
		t.Fatalf("updates = %d, want exactly one batch persist", store.updates-updatesBefore)
	}
}

func TestCategorize_UnknownCategoryErrors(t *testing.T) {
	store := seedStore(t, seedDocument())
	d := &mockDrive{getFileFn: func(ctx context.Context, id string) (drive.File, error) {
		return drive.File{ID: id, Name: "invoice.pdf"}, nil
	}}
	dec := &mockDecider{decideFn: func(ctx context.Context, f drive.File, doc *catalog.Document) decision.Outcome {
		return assignOutcome("cat_missing", catalog.DecisionSourceRule, 1)
	}}
	s, _ := newTestService(store, d, dec, newFakeClock())

	res, err := s.Categorize(context.Background(), "f1")
	if !errors.Is(err, catalog.ErrNotFound) {
		t.Fatalf("Categorize() error = %v, want %v", err, catalog.ErrNotFound)
	}
	if res.Error == "" {
		t.Error("result should carry the assignment error")
	}
	if store.updates != 0 {
		t.Fatalf("updates = %d, document must not be persisted", store.updates)
	}
}

func TestCategorizeBatch_UnknownCategoryRoutedToErrored(t *testing.T) {
	store := seedStore(t, seedDocument())
	d := &mockDrive{getFileFn: func(ctx context.Context, id string) (drive.File, error) {
		return drive.File{ID: id, Name: id + ".pdf"}, nil
	}}
	dec := &mockDecider{decideFn: func(ctx context.Context, f drive.File, doc *catalog.Document) decision.Outcome {
		if f.ID == "f1" {
			return assignOutcome("cat_inv", catalog.DecisionSourceRule, 1)
		}
		return assignOutcome("cat_missing", catalog.DecisionSourceRule, 1)
	}}
	s, _ := newTestService(store, d, dec, newFakeClock())

	res, err := s.CategorizeBatch(context.Background(), []string{"f1", "f2"})
	if err != nil {
		t.Fatalf("CategorizeBatch() error = %v", err)
	}
	if len(res.Assigned) != 1 || res.Assigned[0].FileID != "f1" {
		t.Fatalf("assigned = %+v", res.Assigned)
	}
	if len(res.Errored) != 1 || res.Errored[0].FileID != "f2" {
		t.Fatalf("errored = %+v, want f2", res.Errored)
	}
	if res.Errored[0].Error == "" {
		t.Error("errored item should carry the assignment error")
	}
	if store.updates != 1 {
		t.Fatalf("updates = %d, want one batch persist for the assigned file", store.updates)
	}
}

func TestAcceptReview_CorrectionRecordsFeedback(t *testing.T) {
	doc := seedDocument()
	doc.ReviewQueue = []catalog.ReviewItem{{
		FileID:              "f1",
		FileName:            "scan.pdf",
		SuggestedCategoryID: "cat_img",
		Source:              catalog.DecisionSourceAI,
		Status:              catalog.ReviewPending,
	}}
	store := seedStore(t, doc)
	s, _ := newTestService(store, &mockDrive{}, &mockDecider{}, newFakeClock())

	res, err := s.AcceptReview(context.Background(), "f1", "cat_inv")
	if err != nil {
		t.Fatalf("AcceptReview() error = %v", err)
	}
	if res.Status != catalog.ReviewAccepted || res.CategoryID != "cat_inv" {
		t.Fatalf("resolution = %+v", res)
	}

	saved := store.document(t)
	if saved.Assignments["f1"] != "cat_inv" {
		t.Fatalf("assignment = %q, want cat_inv", saved.Assignments["f1"])
	}
	if len(saved.Feedback.AISuggestions) != 1 {
		t.Fatalf("feedback entries = %d, want 1", len(saved.Feedback.AISuggestions))
	}
	if saved.Feedback.Summary == nil {
		t.Fatal("correction should produce a feedback summary")
	}
	if _, ok := saved.PendingReviewItem("f1"); ok {
		t.Fatal("accepted item should leave the queue")
	}
}

func TestAcceptReview_AcceptingSuggestionSkipsFeedback(t *testing.T) {
	doc := seedDocument()
	doc.ReviewQueue = []catalog.ReviewItem{{
		FileID:              "f1",
		SuggestedCategoryID: "cat_img",
		Source:              catalog.DecisionSourceAI,
		Status:              catalog.ReviewPending,
	}}
	store := seedStore(t, doc)
	s, _ := newTestService(store, &mockDrive{}, &mockDecider{}, newFakeClock())

	res, err := s.AcceptReview(context.Background(), "f1", "")
	if err != nil {
		t.Fatalf("AcceptReview() error = %v", err)
	}
	if res.CategoryID != "cat_img" {
		t.Fatalf("resolution category = %q, want suggested cat_img", res.CategoryID)
	}
	saved := store.document(t)
	if len(saved.Feedback.AISuggestions) != 0 {
		t.Fatal("accepting the suggestion as-is must not record feedback")
	}
}

func TestAcceptReview_NoSuggestionNoChoiceFails(t *testing.T) {
	doc := seedDocument()
	doc.ReviewQueue = []catalog.ReviewItem{{
		FileID: "f1",
		Source: catalog.DecisionSourceRule,
		Status: catalog.ReviewPending,
	}}
	store := seedStore(t, doc)
	s, _ := newTestService(store, &mockDrive{}, &mockDecider{}, newFakeClock())

	if _, err := s.AcceptReview(context.Background(), "f1", ""); err == nil {
		t.Fatal("expected error accepting without a category")
	}
}

func TestRejectReview_RemovesPendingItem(t *testing.T) {
	doc := seedDocument()
	doc.ReviewQueue = []catalog.ReviewItem{{
		FileID: "f1",
		Status: catalog.ReviewPending,
	}}
	store := seedStore(t, doc)
	s, _ := newTestService(store, &mockDrive{}, &mockDecider{}, newFakeClock())

	res, err := s.RejectReview(context.Background(), "f1")
	if err != nil {
		t.Fatalf("RejectReview() error = %v", err)
	}
	if res.Status != catalog.ReviewRejected {
		t.Fatalf("status = %q, want rejected", res.Status)
	}
	saved := store.document(t)
	if len(saved.ReviewQueue) != 0 {
		t.Fatalf("queue = %+v, want empty", saved.ReviewQueue)
	}

	if _, err := s.RejectReview(context.Background(), "f1"); !errors.Is(err, catalog.ErrNotFound) {
		t.Fatalf("second reject error = %v, want not found", err)
	}
}

func TestCreateCategory_MirrorCreatesDriveFolder(t *testing.T) {
	store := seedStore(t, seedDocument())
	d := &mockDrive{
		createFolderFn: func(ctx context.Context, name, parentID string) (drive.File, error) {
			if name != "Taxes" {
				t.Errorf("folder name = %q, want Taxes", name)
			}
			return drive.File{ID: "fold_tax", Name: name, MimeType: drive.FolderMimeType}, nil
		},
	}
	s, _ := newTestService(store, d, &mockDecider{}, newFakeClock())

	created, err := s.CreateCategory(context.Background(), catalog.Category{Name: "Taxes"}, true)
	if err != nil {
		t.Fatalf("CreateCategory() error = %v", err)
	}
	if created.ID == "" || created.DriveFolderID != "fold_tax" {
		t.Fatalf("created = %+v", created)
	}
	if created.Source != catalog.SourceManual {
		t.Fatalf("source = %q, want manual", created.Source)
	}
	saved := store.document(t)
	if _, ok := saved.CategoryByID(created.ID); !ok {
		t.Fatal("category not persisted")
	}
}

func TestAddRule_UnknownCategoryFails(t *testing.T) {
	store := seedStore(t, seedDocument())
	s, _ := newTestService(store, &mockDrive{}, &mockDecider{}, newFakeClock())

	_, err := s.AddRule(context.Background(), catalog.Rule{
		CategoryID: "cat_missing",
		Field:      "name",
		Operator:   "contains",
		Value:      "tax",
	})
	if !errors.Is(err, catalog.ErrNotFound) {
		t.Fatalf("AddRule() error = %v, want not found", err)
	}
}

func TestAddRule_GeneratesIDAndEnables(t *testing.T) {
	store := seedStore(t, seedDocument())
	s, _ := newTestService(store, &mockDrive{}, &mockDecider{}, newFakeClock())

	r, err := s.AddRule(context.Background(), catalog.Rule{
		CategoryID: "cat_img",
		Field:      "mimeType",
		Operator:   "startsWith",
		Value:      "image/",
	})
	if err != nil {
		t.Fatalf("AddRule() error = %v", err)
	}
	if r.ID == "" || !r.Enabled {
		t.Fatalf("rule = %+v, want generated id and enabled", r)
	}
}

func TestUpdateSettings_RejectsOutOfRangeConfidence(t *testing.T) {
	store := seedStore(t, seedDocument())
	s, _ := newTestService(store, &mockDrive{}, &mockDecider{}, newFakeClock())

	st := catalog.DefaultSettings()
	st.AIMinConfidence = 1.5
	if _, err := s.UpdateSettings(context.Background(), st); err == nil {
		t.Fatal("expected range error")
	}
}

func TestIgnoreFolder_RoundTrip(t *testing.T) {
	store := seedStore(t, seedDocument())
	s, _ := newTestService(store, &mockDrive{}, &mockDecider{}, newFakeClock())

	if err := s.IgnoreFolder(context.Background(), "fold_x"); err != nil {
		t.Fatalf("IgnoreFolder() error = %v", err)
	}
	// Idempotent.
	if err := s.IgnoreFolder(context.Background(), "fold_x"); err != nil {
		t.Fatalf("IgnoreFolder() error = %v", err)
	}
	saved := store.document(t)
	if len(saved.IgnoredFolderIDs) != 1 {
		t.Fatalf("ignored = %v, want single entry", saved.IgnoredFolderIDs)
	}

	if err := s.UnignoreFolder(context.Background(), "fold_x"); err != nil {
		t.Fatalf("UnignoreFolder() error = %v", err)
	}
	saved = store.document(t)
	if len(saved.IgnoredFolderIDs) != 0 {
		t.Fatalf("ignored = %v, want empty", saved.IgnoredFolderIDs)
	}
}

func TestStatus_Counts(t *testing.T) {
	doc := seedDocument()
	doc.Assignments["f1"] = "cat_inv"
	doc.ReviewQueue = []catalog.ReviewItem{{FileID: "f2", Status: catalog.ReviewPending}}
	store := seedStore(t, doc)
	s, _ := newTestService(store, &mockDrive{}, &mockDecider{}, newFakeClock())

	st, err := s.Status(context.Background())
	if err != nil {
		t.Fatalf("Status() error = %v", err)
	}
	want := Stats{Categories: 2, Rules: 1, Assignments: 1, PendingReview: 1}
	if st != want {
		t.Fatalf("Status() = %+v, want %+v", st, want)
	}
}
