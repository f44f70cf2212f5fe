// Package organizer is the engine service: it owns the configuration
// document lifecycle and drives categorization, review resolution, folder
// sync, and the category/rule/settings surface that the HTTP and MCP layers
// expose.
package organizer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/tidydrive/tidydrive/internal/batch"
	"github.com/tidydrive/tidydrive/internal/cache"
	"github.com/tidydrive/tidydrive/internal/catalog"
	"github.com/tidydrive/tidydrive/internal/configstore"
	"github.com/tidydrive/tidydrive/internal/decision"
	"github.com/tidydrive/tidydrive/internal/drive"
	"github.com/tidydrive/tidydrive/internal/optimistic"
	"github.com/tidydrive/tidydrive/internal/resolver"
	"github.com/tidydrive/tidydrive/internal/snippet"
	"github.com/tidydrive/tidydrive/internal/syncer"
)

const (
	// docCacheKey holds the serialized document, tagged with the store version.
	docCacheKey = "config:document"
	// reviewQueueKey holds the cached pending review queue view.
	reviewQueueKey = "review:queue"
	// assignmentKeyPrefix namespaces per-file assignment view entries.
	assignmentKeyPrefix = "assignments:"

	// DefaultDocTTL bounds how long a cached document is served without a
	// store read.
	DefaultDocTTL = 30 * time.Second
)

// DriveService is the slice of the drive client the organizer needs.
type DriveService interface {
	GetFile(ctx context.Context, id string) (drive.File, error)
	MoveFile(ctx context.Context, fileID, folderID string) (drive.File, error)
	CreateFolder(ctx context.Context, name, parentID string) (drive.File, error)
	ListFolders(ctx context.Context) ([]drive.File, error)
	HasChildren(ctx context.Context, folderID string) (bool, error)
	Download(ctx context.Context, fileID string) (io.ReadCloser, error)
}

// Decider produces the categorization verdict for a file.
type Decider interface {
	Decide(ctx context.Context, f drive.File, doc *catalog.Document) decision.Outcome
	Model() string
}

// Service ties the config store, drive client, decision orchestrator, local
// cache, and folder syncer together.
type Service struct {
	store  configstore.Store
	drive  DriveService
	dec    Decider
	cache  *cache.Cache
	opt    *optimistic.Coordinator
	syncer *syncer.Syncer
	docTTL time.Duration
	limit  int
	now    func() time.Time
	logger *slog.Logger

	// opMu serializes document-mutating operations within the process; the
	// store's compare-and-swap guards against other processes.
	opMu sync.Mutex
	// mu guards docID and version, which must follow every load and save.
	mu      sync.Mutex
	docID   string
	version int64
}

// Options configures a Service.
type Options struct {
	Store      configstore.Store
	Drive      DriveService
	Decider    Decider
	Cache      *cache.Cache
	SyncWindow time.Duration
	DocTTL     time.Duration
	BatchLimit int
	Now        func() time.Time
	Logger     *slog.Logger
}

// New creates a Service and its internal folder syncer.
func New(opts Options) *Service {
	if opts.DocTTL <= 0 {
		opts.DocTTL = DefaultDocTTL
	}
	if opts.BatchLimit <= 0 {
		opts.BatchLimit = batch.DefaultLimit
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	s := &Service{
		store:  opts.Store,
		drive:  opts.Drive,
		dec:    opts.Decider,
		cache:  opts.Cache,
		opt:    optimistic.New(opts.Cache, opts.Logger),
		docTTL: opts.DocTTL,
		limit:  opts.BatchLimit,
		now:    opts.Now,
		logger: opts.Logger,
	}
	s.syncer = syncer.New(opts.Drive, s, opts.Cache, opts.SyncWindow, opts.Now)
	return s
}

// Load returns the configuration document, served from the local cache when
// fresh. On a miss it locates the store document by its well-known name,
// creating it on first run, normalizes legacy shapes, and persists the
// normalization fix-up once.
func (s *Service) Load(ctx context.Context) (catalog.Document, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loadLocked(ctx)
}

func (s *Service) loadLocked(ctx context.Context) (catalog.Document, error) {
	if blob, ver, ok := s.cache.GetVersioned(docCacheKey, s.docTTL); ok {
		var doc catalog.Document
		if err := json.Unmarshal(blob, &doc); err == nil {
			s.version = ver
			return doc, nil
		}
		s.cache.Remove(docCacheKey)
	}

	id := s.docID
	if id == "" {
		located, err := s.store.Locate(ctx)
		switch {
		case errors.Is(err, configstore.ErrNotFound):
			located, err = s.createInitial(ctx)
			if err != nil {
				return catalog.Document{}, err
			}
		case err != nil:
			return catalog.Document{}, fmt.Errorf("locate config document: %w", err)
		}
		id = located
		s.docID = id
	}

	blob, ver, err := s.store.Read(ctx, id)
	if err != nil {
		return catalog.Document{}, fmt.Errorf("read config document: %w", err)
	}
	var doc catalog.Document
	if err := json.Unmarshal(blob, &doc); err != nil {
		return catalog.Document{}, fmt.Errorf("decode config document: %w", err)
	}

	norm, changed := catalog.Normalize(doc)
	if changed {
		norm.Touch(s.now())
		fixed, err := json.Marshal(norm)
		if err != nil {
			return catalog.Document{}, fmt.Errorf("encode config document: %w", err)
		}
		// The cache must hold the normalized bytes even when the fix-up
		// write loses a version race; a raw legacy blob served from the
		// cache would carry nil collections.
		blob = fixed
		newVer, err := s.store.Update(ctx, id, fixed, ver)
		if err != nil {
			s.logger.Warn("persisting normalized document failed", "error", err)
		} else {
			ver = newVer
		}
	}

	s.cache.SetVersioned(docCacheKey, blob, ver)
	s.version = ver
	return norm, nil
}

func (s *Service) createInitial(ctx context.Context) (string, error) {
	doc := catalog.NewDocument()
	doc.Touch(s.now())
	blob, err := json.Marshal(doc)
	if err != nil {
		return "", fmt.Errorf("encode config document: %w", err)
	}
	id, err := s.store.Create(ctx, blob)
	if err != nil {
		return "", fmt.Errorf("create config document: %w", err)
	}
	s.logger.Info("created config document", "id", id)
	return id, nil
}

// Save touches and rewrites the document wholesale, then refreshes the local
// cache. A version conflict invalidates the cache so the next load re-reads.
func (s *Service) Save(ctx context.Context, doc catalog.Document) (catalog.Document, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.saveLocked(ctx, doc)
}

func (s *Service) saveLocked(ctx context.Context, doc catalog.Document) (catalog.Document, error) {
	if s.docID == "" {
		if _, err := s.loadLocked(ctx); err != nil {
			return doc, err
		}
	}
	doc.Touch(s.now())
	blob, err := json.Marshal(doc)
	if err != nil {
		return doc, fmt.Errorf("encode config document: %w", err)
	}
	newVer, err := s.store.Update(ctx, s.docID, blob, s.version)
	if err != nil {
		if errors.Is(err, configstore.ErrVersionConflict) {
			s.cache.Remove(docCacheKey)
		}
		return doc, fmt.Errorf("write config document: %w", err)
	}
	s.version = newVer
	s.cache.SetVersioned(docCacheKey, blob, newVer)
	return doc, nil
}

// Document returns the full configuration document.
func (s *Service) Document(ctx context.Context) (catalog.Document, error) {
	return s.Load(ctx)
}

// SyncFolders mirrors non-empty drive folders into categories.
func (s *Service) SyncFolders(ctx context.Context, force bool) (syncer.Result, error) {
	s.opMu.Lock()
	defer s.opMu.Unlock()
	return s.syncer.Sync(ctx, force)
}

// lazySync is a best-effort throttled sync before categorization.
func (s *Service) lazySync(ctx context.Context) {
	if _, err := s.syncer.Sync(ctx, false); err != nil {
		s.logger.Warn("folder sync before categorization failed", "error", err)
	}
}

func assignmentKey(fileID string) string {
	return assignmentKeyPrefix + fileID
}

// cacheReviewQueue refreshes the cached pending review view.
func (s *Service) cacheReviewQueue(doc *catalog.Document) {
	pending := pendingReviews(doc)
	b, err := json.Marshal(pending)
	if err != nil {
		return
	}
	s.cache.Set(reviewQueueKey, b)
}

func pendingReviews(doc *catalog.Document) []catalog.ReviewItem {
	items := make([]catalog.ReviewItem, 0, len(doc.ReviewQueue))
	for _, it := range doc.ReviewQueue {
		if it.Status == catalog.ReviewPending {
			items = append(items, it)
		}
	}
	return items
}

// DriveSnippet adapts the drive client into the resolver's content-hint hook.
// Failures are swallowed; a hint is always optional.
func DriveSnippet(d DriveService, logger *slog.Logger) resolver.SnippetFunc {
	if logger == nil {
		logger = slog.Default()
	}
	return func(ctx context.Context, f drive.File) string {
		if !snippet.SupportsMime(f.MimeType) {
			return ""
		}
		rc, err := d.Download(ctx, f.ID)
		if err != nil {
			logger.Debug("content hint download failed", "file_id", f.ID, "error", err)
			return ""
		}
		defer rc.Close()
		return snippet.Extract(rc, f.MimeType)
	}
}

// ErrIsFolder is returned when a categorize target is a folder.
var ErrIsFolder = errors.New("folders cannot be categorized")

// CategorizeResult reports the verdict for one file.
type CategorizeResult struct {
	FileID     string  `json:"fileId"`
	FileName   string  `json:"fileName,omitempty"`
	CategoryID string  `json:"categoryId,omitempty"`
	Source     string  `json:"source,omitempty"`
	Confidence float64 `json:"confidence,omitempty"`
	Reason     string  `json:"reason,omitempty"`
	Queued     bool    `json:"queued,omitempty"`
	Error      string  `json:"error,omitempty"`
}

// BatchResult groups per-file outcomes of a batch categorization.
type BatchResult struct {
	Assigned []CategorizeResult `json:"assigned"`
	Review   []CategorizeResult `json:"review"`
	Errored  []CategorizeResult `json:"errored"`
}

// Categorize runs the full decision flow for one file: throttled folder
// sync, rule/AI decision, then either a durable assignment (with a drive
// move into the mirrored folder when the category has one) or a review-queue
// write. Both paths go through the optimistic coordinator so the cached
// views roll back if the durable write fails.
func (s *Service) Categorize(ctx context.Context, fileID string) (CategorizeResult, error) {
	s.opMu.Lock()
	defer s.opMu.Unlock()

	s.lazySync(ctx)

	doc, err := s.Load(ctx)
	if err != nil {
		return CategorizeResult{FileID: fileID}, err
	}
	f, err := s.drive.GetFile(ctx, fileID)
	if err != nil {
		return CategorizeResult{FileID: fileID}, fmt.Errorf("fetch file %s: %w", fileID, err)
	}
	if f.IsFolder() {
		return CategorizeResult{FileID: fileID, FileName: f.Name}, ErrIsFolder
	}

	res, update, err := s.decideOne(ctx, f, &doc)
	if err != nil {
		return res, err
	}
	if !doc.Onboarding.Completed {
		doc.Onboarding.Completed = true
		doc.Onboarding.CompletedAt = s.now().UTC().Format(time.RFC3339)
	}
	update.Call = s.chainSave(update.Call, &doc)
	if err := s.opt.Do(ctx, update); err != nil {
		return res, err
	}
	return res, nil
}

// CategorizeBatch fetches the files concurrently, decides sequentially
// against one document load, applies every cache mutation and drive move as
// a single optimistic batch, and persists the document once. Fetch failures,
// folder targets, and failed assignments are reported per item; a failed move
// or document write fails the batch and rolls the cached views back.
func (s *Service) CategorizeBatch(ctx context.Context, fileIDs []string) (BatchResult, error) {
	s.opMu.Lock()
	defer s.opMu.Unlock()

	s.lazySync(ctx)

	doc, err := s.Load(ctx)
	if err != nil {
		return BatchResult{}, err
	}

	fetched := batch.Collect(ctx, fileIDs, s.limit, func(ctx context.Context, id string) (drive.File, error) {
		return s.drive.GetFile(ctx, id)
	})

	var out BatchResult
	var updates []optimistic.Update
	changed := false
	for _, o := range fetched {
		if o.Err != nil {
			out.Errored = append(out.Errored, CategorizeResult{FileID: o.Item, Error: o.Err.Error()})
			continue
		}
		f := o.Result
		if f.IsFolder() {
			out.Errored = append(out.Errored, CategorizeResult{FileID: f.ID, FileName: f.Name, Error: ErrIsFolder.Error()})
			continue
		}
		res, update, err := s.decideOne(ctx, f, &doc)
		if err != nil {
			out.Errored = append(out.Errored, res)
			continue
		}
		changed = true
		updates = append(updates, update)
		if res.Queued {
			out.Review = append(out.Review, res)
		} else {
			out.Assigned = append(out.Assigned, res)
		}
	}

	if !changed {
		return out, nil
	}
	if !doc.Onboarding.Completed {
		doc.Onboarding.Completed = true
		doc.Onboarding.CompletedAt = s.now().UTC().Format(time.RFC3339)
	}
	updates = append(updates, optimistic.Update{
		Call: func(ctx context.Context) error {
			saved, err := s.Save(ctx, doc)
			if err != nil {
				return err
			}
			doc = saved
			return nil
		},
	})
	if err := s.opt.DoBatch(ctx, updates); err != nil {
		return out, err
	}
	return out, nil
}

// decideOne mutates the document for one file's verdict and returns the
// matching result plus the optimistic update that makes it visible. The
// update's Call covers the drive move only; the caller appends persistence.
// A non-nil error means the document was not mutated for this file.
func (s *Service) decideOne(ctx context.Context, f drive.File, doc *catalog.Document) (CategorizeResult, optimistic.Update, error) {
	out := s.dec.Decide(ctx, f, doc)
	if out.Assigned() {
		res := CategorizeResult{
			FileID:     f.ID,
			FileName:   f.Name,
			CategoryID: out.AssignCategoryID,
			Source:     out.AssignSource,
			Confidence: out.AssignConfidence,
			Reason:     out.AssignReason,
		}
		var meta *catalog.AssignmentMeta
		if out.AssignSource == catalog.DecisionSourceAI {
			meta = &catalog.AssignmentMeta{
				Source:     catalog.DecisionSourceAI,
				Reason:     out.AssignReason,
				Confidence: out.AssignConfidence,
				Model:      s.dec.Model(),
				DecidedAt:  s.now().UTC().Format(time.RFC3339),
			}
		}
		if err := doc.SetAssignment(f.ID, out.AssignCategoryID, meta); err != nil {
			res.Error = err.Error()
			return res, optimistic.Update{}, fmt.Errorf("assign file %s: %w", f.ID, err)
		}
		cat, _ := doc.CategoryByID(out.AssignCategoryID)
		update := optimistic.Update{
			Keys: []string{assignmentKey(f.ID), reviewQueueKey},
			Mutate: func() {
				s.cache.Set(assignmentKey(f.ID), []byte(out.AssignCategoryID))
				s.cacheReviewQueue(doc)
			},
			Call: func(ctx context.Context) error {
				if cat.DriveFolderID == "" {
					return nil
				}
				if _, err := s.drive.MoveFile(ctx, f.ID, cat.DriveFolderID); err != nil {
					return fmt.Errorf("move file %s: %w", f.ID, err)
				}
				return nil
			},
		}
		return res, update, nil
	}

	rev := out.Review
	item := catalog.ReviewItem{
		FileID:              f.ID,
		FileName:            f.Name,
		SuggestedCategoryID: rev.SuggestedCategoryID,
		Confidence:          rev.Confidence,
		Reason:              rev.Reason,
		Source:              rev.Source,
		QueuedAt:            s.now().UTC().Format(time.RFC3339),
	}
	doc.UpsertReviewItem(item)
	res := CategorizeResult{
		FileID:     f.ID,
		FileName:   f.Name,
		CategoryID: rev.SuggestedCategoryID,
		Source:     rev.Source,
		Confidence: rev.Confidence,
		Reason:     rev.Reason,
		Queued:     true,
	}
	return res, optimistic.Update{
		Keys:   []string{reviewQueueKey},
		Mutate: func() { s.cacheReviewQueue(doc) },
		Call:   func(context.Context) error { return nil },
	}, nil
}

// chainSave appends document persistence to an update's durable call.
func (s *Service) chainSave(call func(ctx context.Context) error, doc *catalog.Document) func(ctx context.Context) error {
	return func(ctx context.Context) error {
		if call != nil {
			if err := call(ctx); err != nil {
				return err
			}
		}
		saved, err := s.Save(ctx, *doc)
		if err != nil {
			return err
		}
		*doc = saved
		return nil
	}
}
