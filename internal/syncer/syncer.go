// Package syncer mirrors storage folders as categories. Concurrent sync
// attempts collapse into a single in-flight operation, and non-forced runs
// are throttled to one per time window.
package syncer

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"

	"github.com/tidydrive/tidydrive/internal/batch"
	"github.com/tidydrive/tidydrive/internal/cache"
	"github.com/tidydrive/tidydrive/internal/catalog"
	"github.com/tidydrive/tidydrive/internal/drive"
)

const (
	// DefaultWindow throttles non-forced syncs.
	DefaultWindow = 5 * time.Minute
	// nonEmptyTTL is how long a folder's non-emptiness check is trusted.
	nonEmptyTTL = 10 * time.Minute

	nonEmptyKeyPrefix = "folders:nonempty:"
)

// DriveService is the slice of the storage client the syncer needs.
type DriveService interface {
	ListFolders(ctx context.Context) ([]drive.File, error)
	HasChildren(ctx context.Context, folderID string) (bool, error)
}

// DocumentSource loads and saves the configuration document.
type DocumentSource interface {
	Load(ctx context.Context) (catalog.Document, error)
	Save(ctx context.Context, doc catalog.Document) (catalog.Document, error)
}

// Result reports one sync run.
type Result struct {
	// Created counts categories created or linked to a folder.
	Created int `json:"created"`
	// Ran is false when the run was skipped by the throttle window.
	Ran bool `json:"ran"`
}

// Syncer discovers storage folders not yet mirrored as categories and
// creates or links category records idempotently.
type Syncer struct {
	drive  DriveService
	docs   DocumentSource
	cache  *cache.Cache
	window time.Duration
	limit  int
	now    func() time.Time
	logger *slog.Logger

	sf       singleflight.Group
	mu       sync.Mutex
	lastSync time.Time
}

// New creates a Syncer. A window <= 0 uses DefaultWindow.
func New(driveSvc DriveService, docs DocumentSource, c *cache.Cache, window time.Duration, now func() time.Time) *Syncer {
	if window <= 0 {
		window = DefaultWindow
	}
	if now == nil {
		now = time.Now
	}
	return &Syncer{
		drive:  driveSvc,
		docs:   docs,
		cache:  c,
		window: window,
		limit:  batch.DefaultLimit,
		now:    now,
		logger: slog.Default(),
	}
}

// Sync runs a folder-category sync. Concurrent callers share a single
// in-flight run and receive its result. Non-forced calls inside the throttle
// window return immediately without touching storage.
func (s *Syncer) Sync(ctx context.Context, force bool) (Result, error) {
	v, err, _ := s.sf.Do("folder-sync", func() (any, error) {
		return s.run(ctx, force)
	})
	if err != nil {
		return Result{}, err
	}
	return v.(Result), nil
}

func (s *Syncer) run(ctx context.Context, force bool) (Result, error) {
	s.mu.Lock()
	if !force && !s.lastSync.IsZero() && s.now().Sub(s.lastSync) < s.window {
		s.mu.Unlock()
		return Result{}, nil
	}
	s.mu.Unlock()

	doc, err := s.docs.Load(ctx)
	if err != nil {
		return Result{}, fmt.Errorf("loading document: %w", err)
	}

	folders, err := s.drive.ListFolders(ctx)
	if err != nil {
		return Result{}, fmt.Errorf("listing folders: %w", err)
	}

	// Candidates: folders neither mirrored nor ignored.
	var candidates []drive.File
	for _, f := range folders {
		if doc.IsFolderIgnored(f.ID) {
			continue
		}
		if _, ok := doc.CategoryForFolder(f.ID); ok {
			continue
		}
		candidates = append(candidates, f)
	}

	nonEmpty, err := batch.Map(ctx, candidates, s.limit, func(ctx context.Context, f drive.File) (bool, error) {
		return s.folderNonEmpty(ctx, f.ID)
	})
	if err != nil {
		return Result{}, fmt.Errorf("checking folder contents: %w", err)
	}

	created := 0
	for i, f := range candidates {
		if !nonEmpty[i] {
			continue
		}
		if s.linkOrCreate(&doc, f) {
			created++
		}
	}

	if created > 0 {
		doc, err = s.docs.Save(ctx, doc)
		if err != nil {
			return Result{}, fmt.Errorf("saving document: %w", err)
		}
	}

	s.mu.Lock()
	s.lastSync = s.now()
	s.mu.Unlock()

	s.logger.Debug("folder sync complete", "folders", len(folders), "created", created)
	return Result{Created: created, Ran: true}, nil
}

// linkOrCreate attaches the folder to an existing same-named unmirrored
// category when possible, otherwise creates a folder-derived category.
// Reports whether the document changed.
func (s *Syncer) linkOrCreate(doc *catalog.Document, folder drive.File) bool {
	for i := range doc.Categories {
		c := &doc.Categories[i]
		if c.DriveFolderID == "" && strings.EqualFold(c.Name, folder.Name) {
			c.DriveFolderID = folder.ID
			return true
		}
	}
	doc.Categories = append(doc.Categories, catalog.Category{
		ID:            "cat_" + uuid.NewString(),
		Name:          folder.Name,
		DriveFolderID: folder.ID,
		Source:        catalog.SourceFolderDerived,
	})
	return true
}

// folderNonEmpty checks whether a folder has children, caching the answer
// with its own TTL so repeated syncs do not re-list every folder.
func (s *Syncer) folderNonEmpty(ctx context.Context, folderID string) (bool, error) {
	if v, ok := s.cache.Get(nonEmptyKeyPrefix+folderID, nonEmptyTTL); ok {
		b, err := strconv.ParseBool(string(v))
		if err == nil {
			return b, nil
		}
	}
	has, err := s.drive.HasChildren(ctx, folderID)
	if err != nil {
		return false, err
	}
	s.cache.Set(nonEmptyKeyPrefix+folderID, []byte(strconv.FormatBool(has)))
	return has, nil
}
