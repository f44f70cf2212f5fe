// Package configstore persists the per-user configuration document as a
// whole versioned JSON blob. The engine locates the single instance per user
// by a fixed, well-known name and creates it if absent.
package configstore

import (
	"context"
	"errors"
)

// DocumentName is the well-known name the per-user document is stored under.
const DocumentName = "tidydrive-config.json"

// ErrNotFound is returned by Locate when no document exists yet.
var ErrNotFound = errors.New("config document not found")

// ErrVersionConflict is returned by Update when the stored document changed
// since expectedVersion was read (lost-update protection).
var ErrVersionConflict = errors.New("config document version conflict")

// Store reads and writes the configuration document blob.
type Store interface {
	// Locate returns the server-assigned id of the user's document.
	Locate(ctx context.Context) (string, error)
	// Create stores a new document and returns its id.
	Create(ctx context.Context, blob []byte) (string, error)
	// Read returns the whole document blob and its store-side version.
	Read(ctx context.Context, id string) (blob []byte, version int64, err error)
	// Update rewrites the document wholesale as a compare-and-swap: the write
	// is rejected with ErrVersionConflict when the stored version no longer
	// equals expectedVersion (lost-update protection between concurrent
	// sessions of the same user). Returns the new version.
	Update(ctx context.Context, id string, blob []byte, expectedVersion int64) (int64, error)
}
