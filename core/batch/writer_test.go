package batch

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"card-sync/core/docstore"
	"card-sync/core/retry"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func recordSizes(store *docstore.MemoryStore) *[]int {
	var sizes []int
	store.FailCommit = func(b docstore.Batch) error {
		sizes = append(sizes, b.Len())
		return nil
	}
	return &sizes
}

func TestWriter_MinimumBatches(t *testing.T) {
	tests := []struct {
		k, c  int
		sizes []int
	}{
		{12, 5, []int{5, 5, 2}},
		{10, 5, []int{5, 5}},
		{3, 5, []int{3}},
		{1, 1, []int{1}},
		{0, 5, nil},
	}
	for _, tt := range tests {
		t.Run(fmt.Sprintf("k=%d c=%d", tt.k, tt.c), func(t *testing.T) {
			ctx := context.Background()
			store := docstore.NewMemoryStore(tt.c)
			sizes := recordSizes(store)
			w := NewWriter(store, nil)

			for i := 0; i < tt.k; i++ {
				require.NoError(t, w.Add(ctx, Set("cards", fmt.Sprintf("%03d", i), map[string]int{"n": i})))
			}
			require.NoError(t, w.Commit(ctx))

			assert.Equal(t, tt.sizes, *sizes)
			assert.Equal(t, len(tt.sizes), w.Stats().Batches)
			assert.Equal(t, tt.k, w.Stats().Operations)
			n, err := store.Count(ctx, "cards")
			require.NoError(t, err)
			assert.Equal(t, int64(tt.k), n)
		})
	}
}

func TestWriter_GroupsStayTogether(t *testing.T) {
	ctx := context.Background()
	store := docstore.NewMemoryStore(5)
	sizes := recordSizes(store)
	w := NewWriter(store, nil)

	for i := 0; i < 4; i++ {
		require.NoError(t, w.Add(ctx, Set("cards", fmt.Sprint(i), i)))
	}
	require.NoError(t, w.AddGroup(ctx, Set("cards", "x", 1), Set("cardHashes", "x", "h")))
	require.NoError(t, w.Commit(ctx))

	assert.Equal(t, []int{4, 2}, *sizes)

	err := w.AddGroup(ctx, make([]Mutation, 6)...)
	assert.ErrorIs(t, err, ErrGroupTooLarge)
}

func TestWriter_FailedCommitAppliesNothing(t *testing.T) {
	ctx := context.Background()
	store := docstore.NewMemoryStore(10)
	store.FailCommit = func(docstore.Batch) error { return errors.New("permission denied") }
	w := NewWriter(store, nil)

	require.NoError(t, w.Add(ctx, Set("cards", "1", 1)))
	require.NoError(t, w.Add(ctx, Delete("cards", "2")))
	err := w.Commit(ctx)

	require.Error(t, err)
	assert.Equal(t, 0, store.Commits())
	assert.Equal(t, 0, store.Writes("cards"))
	assert.Equal(t, 0, w.Pending())
	assert.Equal(t, 0, w.Stats().Batches)
}

func TestWriter_RetriedCommitReplaysOnFreshBatch(t *testing.T) {
	ctx := context.Background()
	store := docstore.NewMemoryStore(10)
	calls := 0
	store.FailCommit = func(b docstore.Batch) error {
		calls++
		if calls == 1 {
			return errors.New("service unavailable")
		}
		return nil
	}

	policy := retry.DefaultPolicy()
	policy.InitialDelay = time.Millisecond
	exec := retry.NewExecutor("store", policy, nil)
	w := NewWriter(store, exec.Guard(nil))

	require.NoError(t, w.AddGroup(ctx, Set("cards", "1", map[string]string{"name": "Cloud"}), Set("cardHashes", "1", "abc")))
	require.NoError(t, w.Commit(ctx))

	assert.Equal(t, 2, calls)
	assert.Equal(t, 1, store.Commits())
	assert.Equal(t, 1, store.Writes("cards"))
	assert.Equal(t, 1, store.Writes("cardHashes"))
	assert.Equal(t, int64(1), exec.Stats().Retries)
}

func TestWriter_MutationErrorIsPermanent(t *testing.T) {
	ctx := context.Background()
	store := docstore.NewMemoryStore(10)
	exec := retry.NewExecutor("store", retry.DefaultPolicy(), nil)
	w := NewWriter(store, exec.Guard(nil))

	require.NoError(t, w.Add(ctx, Set("cards", "1", func() {})))
	err := w.Commit(ctx)

	require.Error(t, err)
	assert.Equal(t, int64(0), exec.Stats().Retries)
}
