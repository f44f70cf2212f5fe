// Package cache is a session-scoped, per-user-namespaced key-value cache with
// TTL expiry. It fronts the remote configuration store as a read-through
// cache and holds the derived views (file list, review queue, category
// sub-caches) that optimistic updates mutate and roll back.
package cache

import (
	"strings"
	"sync"
	"time"
)

// Entry is a stored value with its write timestamp and an optional logical
// version tag used for staleness checks independent of TTL.
type Entry struct {
	Value    []byte
	Version  int64
	StoredAt time.Time
}

// Cache is an in-memory TTL cache. The clock is injected so tests can advance
// time deterministically.
type Cache struct {
	mu        sync.RWMutex
	entries   map[string]Entry
	namespace string
	now       func() time.Time
}

// New creates a Cache namespaced to the given user identity.
func New(userID string) *Cache {
	return NewWithClock(userID, time.Now)
}

// NewWithClock creates a Cache with an injected clock.
func NewWithClock(userID string, now func() time.Time) *Cache {
	return &Cache{
		entries:   make(map[string]Entry),
		namespace: "tidydrive:" + userID + ":",
		now:       now,
	}
}

func (c *Cache) key(k string) string {
	return c.namespace + k
}

// Set stores a value with a zero version tag.
func (c *Cache) Set(key string, value []byte) {
	c.SetVersioned(key, value, 0)
}

// SetVersioned stores a value tagged with a document version.
func (c *Cache) SetVersioned(key string, value []byte, version int64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[c.key(key)] = Entry{Value: value, Version: version, StoredAt: c.now()}
}

// Get returns the value if present and younger than ttl. Expired entries are
// discarded, never surfaced.
func (c *Cache) Get(key string, ttl time.Duration) ([]byte, bool) {
	e, ok := c.lookup(key, ttl)
	if !ok {
		return nil, false
	}
	return e.Value, true
}

// GetVersioned returns the value and its version tag if present and fresh.
func (c *Cache) GetVersioned(key string, ttl time.Duration) ([]byte, int64, bool) {
	e, ok := c.lookup(key, ttl)
	if !ok {
		return nil, 0, false
	}
	return e.Value, e.Version, true
}

func (c *Cache) lookup(key string, ttl time.Duration) (Entry, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[c.key(key)]
	if !ok {
		return Entry{}, false
	}
	if ttl > 0 && c.now().Sub(e.StoredAt) > ttl {
		delete(c.entries, c.key(key))
		return Entry{}, false
	}
	return e, true
}

// Remove deletes a single key.
func (c *Cache) Remove(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, c.key(key))
}

// RemoveByPrefix deletes every key in the namespace with the given prefix.
func (c *Cache) RemoveByPrefix(prefix string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	full := c.key(prefix)
	for k := range c.entries {
		if strings.HasPrefix(k, full) {
			delete(c.entries, k)
		}
	}
}

// Snapshot captures the exact entries (present or absent) for the given keys.
// Restoring the snapshot puts each key back byte-for-byte, including deleting
// keys that did not exist at snapshot time.
func (c *Cache) Snapshot(keys []string) Snapshot {
	c.mu.RLock()
	defer c.mu.RUnlock()
	snap := Snapshot{entries: make(map[string]*Entry, len(keys))}
	for _, k := range keys {
		if e, ok := c.entries[c.key(k)]; ok {
			cp := e
			cp.Value = append([]byte(nil), e.Value...)
			snap.entries[k] = &cp
		} else {
			snap.entries[k] = nil
		}
	}
	return snap
}

// Restore reverts every snapshotted key to its captured state.
func (c *Cache) Restore(snap Snapshot) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for k, e := range snap.entries {
		if e == nil {
			delete(c.entries, c.key(k))
		} else {
			c.entries[c.key(k)] = *e
		}
	}
}

// Snapshot is a point-in-time copy of a set of cache entries. A nil entry
// records that the key was absent.
type Snapshot struct {
	entries map[string]*Entry
}
