// Package optimistic applies cache mutations speculatively and rolls them
// back when the durable write they anticipate fails.
package optimistic

import (
	"context"
	"log/slog"

	"github.com/tidydrive/tidydrive/internal/cache"
)

// Update is one optimistic operation: mutate the named cache keys up front,
// then attempt the durable call. On failure the keys are restored exactly and
// OnError is invoked; on success OnSuccess is invoked.
type Update struct {
	Keys      []string
	Mutate    func()
	Call      func(ctx context.Context) error
	OnSuccess func()
	OnError   func(err error)
}

// Coordinator runs optimistic updates against a cache.
type Coordinator struct {
	cache  *cache.Cache
	logger *slog.Logger
}

// New creates a Coordinator. A nil logger defaults to slog.Default.
func New(c *cache.Cache, logger *slog.Logger) *Coordinator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Coordinator{cache: c, logger: logger}
}

// Do executes a single optimistic update.
func (co *Coordinator) Do(ctx context.Context, u Update) error {
	snap := co.cache.Snapshot(u.Keys)
	if u.Mutate != nil {
		u.Mutate()
	}
	if err := u.Call(ctx); err != nil {
		co.cache.Restore(snap)
		co.logger.Debug("optimistic update rolled back", "keys", u.Keys, "error", err)
		if u.OnError != nil {
			u.OnError(err)
		}
		return err
	}
	if u.OnSuccess != nil {
		u.OnSuccess()
	}
	return nil
}

// DoBatch snapshots the union of all keys once, applies every mutation, then
// runs the calls in order. The first failure restores the whole snapshot, so
// a batch either lands completely or leaves the cache untouched. Calls that
// already succeeded are not re-run or compensated; their durable effects
// stand and only the cache view is reverted.
func (co *Coordinator) DoBatch(ctx context.Context, updates []Update) error {
	if len(updates) == 0 {
		return nil
	}
	var keys []string
	for _, u := range updates {
		keys = append(keys, u.Keys...)
	}
	snap := co.cache.Snapshot(keys)
	for _, u := range updates {
		if u.Mutate != nil {
			u.Mutate()
		}
	}
	for _, u := range updates {
		if err := u.Call(ctx); err != nil {
			co.cache.Restore(snap)
			co.logger.Debug("optimistic batch rolled back", "keys", keys, "error", err)
			for _, v := range updates {
				if v.OnError != nil {
					v.OnError(err)
				}
			}
			return err
		}
	}
	for _, u := range updates {
		if u.OnSuccess != nil {
			u.OnSuccess()
		}
	}
	return nil
}
