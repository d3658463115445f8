package batch

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"card-sync/core/docstore"
	"card-sync/core/retry"
)

// ErrGroupTooLarge is returned when a mutation group cannot fit in a single batch.
var ErrGroupTooLarge = errors.New("mutation group exceeds batch ceiling")

// Mutation stages exactly one write on a store batch.
type Mutation func(b docstore.Batch) error

// Set returns a mutation writing v to collection/id.
func Set(collection, id string, v any) Mutation {
	return func(b docstore.Batch) error {
		return b.Set(collection, id, v)
	}
}

// Delete returns a mutation removing collection/id.
func Delete(collection, id string) Mutation {
	return func(b docstore.Batch) error {
		b.Delete(collection, id)
		return nil
	}
}

// Stats counts committed work.
type Stats struct {
	Batches    int `json:"batches"`
	Operations int `json:"operations"`
}

// Writer groups mutations into the fewest atomic batches the ceiling allows.
type Writer struct {
	store docstore.Store
	guard retry.Guard
	limit int

	mu      sync.Mutex
	pending []Mutation
	stats   Stats
}

// NewWriter creates a writer flushing through guard. A nil guard commits directly.
func NewWriter(store docstore.Store, guard retry.Guard) *Writer {
	if guard == nil {
		guard = retry.Direct
	}
	limit := store.MaxBatchSize()
	if limit <= 0 {
		limit = docstore.DefaultMaxBatchSize
	}
	return &Writer{store: store, guard: guard, limit: limit}
}

// Add queues one mutation, flushing first when the ceiling is reached.
func (w *Writer) Add(ctx context.Context, m Mutation) error {
	return w.AddGroup(ctx, m)
}

// AddGroup queues mutations that must be committed in the same batch.
func (w *Writer) AddGroup(ctx context.Context, ms ...Mutation) error {
	if len(ms) > w.limit {
		return fmt.Errorf("%w: %d > %d", ErrGroupTooLarge, len(ms), w.limit)
	}
	w.mu.Lock()
	defer w.mu.Unlock()

	if len(w.pending)+len(ms) > w.limit {
		if err := w.flush(ctx); err != nil {
			return err
		}
	}
	w.pending = append(w.pending, ms...)
	if len(w.pending) == w.limit {
		return w.flush(ctx)
	}
	return nil
}

// Commit flushes the remaining partial batch.
func (w *Writer) Commit(ctx context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.flush(ctx)
}

// Pending returns the number of queued, uncommitted mutations.
func (w *Writer) Pending() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.pending)
}

// Stats returns the committed totals.
func (w *Writer) Stats() Stats {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.stats
}

// flush must be called with the lock held. The queue is dropped whether or not the commit succeeds.
func (w *Writer) flush(ctx context.Context) error {
	if len(w.pending) == 0 {
		return nil
	}
	ms := w.pending
	w.pending = nil

	err := w.guard(ctx, func(ctx context.Context) error {
		b := w.store.NewBatch()
		for _, m := range ms {
			if err := m(b); err != nil {
				return retry.Permanent(err)
			}
		}
		return b.Commit(ctx)
	})
	if err != nil {
		return fmt.Errorf("commit batch of %d: %w", len(ms), err)
	}
	w.stats.Batches++
	w.stats.Operations += len(ms)
	return nil
}
