// Package batch runs operations over item lists with a fixed concurrency
// ceiling. All batch drive and AI calls go through it so fan-out never
// exceeds upstream rate limits.
package batch

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"
)

// DefaultLimit is the concurrency ceiling used when callers pass limit <= 0.
const DefaultLimit = 4

// Map applies fn to every item with at most limit calls in flight and returns
// results in input order. The first error cancels the remaining work.
func Map[T, R any](ctx context.Context, items []T, limit int, fn func(ctx context.Context, item T) (R, error)) ([]R, error) {
	if len(items) == 0 {
		return nil, nil
	}
	if limit <= 0 {
		limit = DefaultLimit
	}

	results := make([]R, len(items))
	g, gCtx := errgroup.WithContext(ctx)
	g.SetLimit(limit)

	for i, item := range items {
		g.Go(func() error {
			r, err := fn(gCtx, item)
			if err != nil {
				return fmt.Errorf("item %d: %w", i, err)
			}
			results[i] = r
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

// Outcome pairs one item's result with its error.
type Outcome[T, R any] struct {
	Item   T
	Result R
	Err    error
}

// Collect applies fn to every item with at most limit calls in flight and
// reports each item's outcome individually. A failing item never cancels the
// rest of the batch.
func Collect[T, R any](ctx context.Context, items []T, limit int, fn func(ctx context.Context, item T) (R, error)) []Outcome[T, R] {
	if len(items) == 0 {
		return nil
	}
	if limit <= 0 {
		limit = DefaultLimit
	}

	outcomes := make([]Outcome[T, R], len(items))
	var g errgroup.Group
	g.SetLimit(limit)

	for i, item := range items {
		g.Go(func() error {
			r, err := fn(ctx, item)
			outcomes[i] = Outcome[T, R]{Item: item, Result: r, Err: err}
			return nil
		})
	}

	g.Wait()
	return outcomes
}
