package sync

import (
	"context"
	"errors"
	"testing"
	"time"

	"card-sync/core/changes"
	"card-sync/core/docstore"
	"card-sync/core/retry"
	"card-sync/feature/catalog"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultRunID(t *testing.T) {
	assert.Equal(t, "cards", DefaultRunID("cards", 0))
	assert.Equal(t, "prices:23", DefaultRunID("prices", 23))
}

func TestIncrementalSync(t *testing.T) {
	ctx := context.Background()
	src := newFakeCatalog(1)
	a := card(101, 1, "1-001C", "Card A")
	c := card(103, 1, "1-003C", "Card C")
	src.set(1, a, c)

	r := newRig(src)
	r.cfg.BatchSize = 50
	res, err := r.cards(nil).Run(ctx, Options{})
	require.NoError(t, err)
	require.Equal(t, StatusCompleted, res.Status)
	assert.Equal(t, 2, res.ItemsUpdated)
	before := r.store.Writes(CardsCollection)

	b := card(102, 1, "1-002C", "Card B")
	c.Name = "Card C (Full Art)"
	src.set(1, a, b, c)
	r.cfg.CheckpointEvery = 3

	var saved *Checkpoint
	obs := ObserverFunc(func(e Event) {
		if e.State == StateCheckpointing {
			saved = r.checkpoint("cards")
		}
	})
	res, err = r.cards(obs).Run(ctx, Options{})
	require.NoError(t, err)

	assert.True(t, res.Success)
	assert.Equal(t, StatusCompleted, res.Status)
	assert.Equal(t, 3, res.ItemsProcessed)
	assert.Equal(t, 2, res.ItemsUpdated)
	assert.Equal(t, 1, res.ItemsSkipped)
	assert.Equal(t, 2, r.store.Writes(CardsCollection)-before)
	assert.Equal(t, "Card C (Full Art)", r.card(103).Name)

	require.NotNil(t, saved, "checkpoint written after the third item")
	assert.Equal(t, 3, saved.TotalCardsProcessed)
	assert.Nil(t, r.checkpoint("cards"), "completed run clears its checkpoint")
}

func TestRecordAndHashCommittedTogether(t *testing.T) {
	src := newFakeCatalog(1)
	src.set(1, cards(1, 3)...)
	r := newRig(src)
	r.cfg.BatchSize = 10

	_, err := r.cards(nil).Run(context.Background(), Options{})
	require.NoError(t, err)

	assert.Equal(t, 3, r.store.Writes(CardsCollection))
	assert.Equal(t, 3, r.store.Writes(CardHashesCollection))
	assert.Equal(t, 1, r.store.Commits())

	var entry struct {
		Hash string `json:"hash"`
	}
	found, err := r.store.Get(context.Background(), CardHashesCollection, "101", &entry)
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, r.card(101).Fingerprint, entry.Hash)
}

func TestPauseAndResume(t *testing.T) {
	t.Run("AtGroupBoundary", func(t *testing.T) {
		ctx := context.Background()
		src := newFakeCatalog(1, 2)
		src.set(1, cards(1, 2)...)
		src.set(2, cards(2, 2)...)
		r := newRig(src)

		obs := ObserverFunc(func(e Event) {
			if e.State == StateProcessingBatch && e.GroupIndex == 0 {
				r.clock.Advance(11 * time.Minute)
			}
		})
		res, err := r.cards(obs).Run(ctx, Options{})
		require.NoError(t, err)

		assert.Equal(t, StatusPaused, res.Status)
		require.True(t, res.Paused())
		assert.Equal(t, 1, res.Pause.GroupIndex)
		assert.Equal(t, 2, res.ItemsProcessed)

		cp := r.checkpoint("cards")
		require.NotNil(t, cp)
		assert.Equal(t, 1, cp.CurrentGroupIndex)
		assert.Equal(t, 0, cp.CurrentCardIndex)
		assert.Equal(t, 2, cp.TotalCardsProcessed)
		assert.Equal(t, "paused", cp.Status)

		r.clock = newClock()
		res, err = r.cards(nil).Run(ctx, Options{Resume: true})
		require.NoError(t, err)
		assert.True(t, res.Resumed)
		assert.Equal(t, StatusCompleted, res.Status)
		assert.Equal(t, 2, res.ItemsProcessed)
		assert.NotNil(t, r.card(201))
		assert.NotNil(t, r.card(202))
		assert.Nil(t, r.checkpoint("cards"))
	})

	t.Run("InsideGroup", func(t *testing.T) {
		ctx := context.Background()
		src := newFakeCatalog(1)
		src.set(1, cards(1, 3)...)
		r := newRig(src)
		r.cfg.BatchSize = 1

		obs := ObserverFunc(func(e Event) {
			if e.State == StateProcessingBatch && e.ItemIndex == 0 {
				r.clock.Advance(11 * time.Minute)
			}
		})
		res, err := r.cards(obs).Run(ctx, Options{})
		require.NoError(t, err)
		assert.Equal(t, StatusPaused, res.Status)
		assert.Equal(t, 1, res.ItemsProcessed)

		cp := r.checkpoint("cards")
		require.NotNil(t, cp)
		assert.Equal(t, 0, cp.CurrentGroupIndex)
		assert.Equal(t, 1, cp.CurrentCardIndex)

		r.clock = newClock()
		res, err = r.cards(nil).Run(ctx, Options{Resume: true})
		require.NoError(t, err)
		assert.Equal(t, StatusCompleted, res.Status)
		assert.Equal(t, 2, res.ItemsProcessed)
		assert.Equal(t, 3, r.store.Writes(CardsCollection))
	})

	t.Run("WithoutResumeStartsOver", func(t *testing.T) {
		ctx := context.Background()
		src := newFakeCatalog(1, 2)
		src.set(1, cards(1, 2)...)
		src.set(2, cards(2, 2)...)
		r := newRig(src)
		require.NoError(t, r.store.Set(ctx, CheckpointCollection, "cards", Checkpoint{RunID: "cards", CurrentGroupIndex: 1}))

		res, err := r.cards(nil).Run(ctx, Options{})
		require.NoError(t, err)
		assert.False(t, res.Resumed)
		assert.Equal(t, 4, res.ItemsProcessed)
	})
}

func TestCheckpointCursorIsMonotonic(t *testing.T) {
	src := newFakeCatalog(1, 2, 3)
	for _, g := range []int64{1, 2, 3} {
		src.set(g, cards(g, 3)...)
	}
	r := newRig(src)
	r.cfg.CheckpointEvery = 1

	type cursor struct{ group, item int }
	var seen []cursor
	obs := ObserverFunc(func(e Event) {
		if e.State == StateCheckpointing {
			cp := r.checkpoint("cards")
			seen = append(seen, cursor{cp.CurrentGroupIndex, cp.CurrentCardIndex})
		}
	})
	_, err := r.cards(obs).Run(context.Background(), Options{})
	require.NoError(t, err)

	require.NotEmpty(t, seen)
	for i := 1; i < len(seen); i++ {
		prev, cur := seen[i-1], seen[i]
		assert.True(t, cur.group > prev.group || (cur.group == prev.group && cur.item > prev.item),
			"cursor moved backwards: %v -> %v", prev, cur)
	}
}

func TestDryRunWritesNothing(t *testing.T) {
	ctx := context.Background()
	src := newFakeCatalog(1)
	src.set(1, cards(1, 3)...)
	r := newRig(src)
	r.cfg.CheckpointEvery = 1

	res, err := r.cards(nil).Run(ctx, Options{DryRun: true})
	require.NoError(t, err)
	assert.True(t, res.DryRun)
	assert.Equal(t, 3, res.ItemsUpdated)
	assert.Zero(t, r.store.Writes(CardsCollection))
	assert.Zero(t, r.store.Writes(CardHashesCollection))
	assert.Zero(t, r.store.Writes(CheckpointCollection))
	assert.Empty(t, r.bus.Messages(""))

	res, err = r.cards(nil).Run(ctx, Options{})
	require.NoError(t, err)
	assert.Equal(t, 3, res.ItemsUpdated, "dry run left fingerprints untouched")
}

func TestForceUpdateBypassesDetection(t *testing.T) {
	ctx := context.Background()
	src := newFakeCatalog(1)
	src.set(1, cards(1, 2)...)
	r := newRig(src)

	_, err := r.cards(nil).Run(ctx, Options{})
	require.NoError(t, err)

	res, err := r.cards(nil).Run(ctx, Options{})
	require.NoError(t, err)
	assert.Equal(t, 2, res.ItemsSkipped)

	res, err = r.cards(nil).Run(ctx, Options{ForceUpdate: true})
	require.NoError(t, err)
	assert.Equal(t, 2, res.ItemsUpdated)
	assert.Equal(t, 4, r.store.Writes(CardsCollection))
}

func TestFailedGroupIsolation(t *testing.T) {
	ctx := context.Background()
	src := newFakeCatalog(1, 2, 3)
	for _, g := range []int64{1, 2, 3} {
		src.set(g, cards(g, 2)...)
	}
	src.fail(2, errors.New("connection reset by peer"))
	r := newRig(src)

	res, err := r.cards(nil).Run(ctx, Options{})
	require.NoError(t, err)
	assert.False(t, res.Success)
	assert.Equal(t, StatusCompletedWithErrors, res.Status)
	assert.Equal(t, []int64{2}, res.FailedGroups)
	require.Len(t, res.Errors, 1)
	assert.Contains(t, res.Errors[0], "connection reset")
	assert.Equal(t, 2, res.GroupsProcessed)
	assert.NotNil(t, r.card(101))
	assert.NotNil(t, r.card(301))
	assert.Nil(t, r.card(201))

	cp := r.checkpoint("cards")
	require.NotNil(t, cp, "checkpoint kept while a group is failed")
	require.Len(t, cp.FailedGroups, 1)
	assert.Equal(t, int64(2), cp.FailedGroups[0].GroupID)
	assert.Equal(t, 1, cp.FailedGroups[0].GroupIndex)
	assert.Equal(t, 0, cp.FailedGroups[0].ItemIndex)

	src.fail(2, nil)
	res, err = r.cards(nil).Run(ctx, Options{Resume: true})
	require.NoError(t, err)
	assert.Equal(t, StatusCompleted, res.Status)
	assert.Equal(t, 2, res.ItemsProcessed)
	assert.NotNil(t, r.card(201))
	assert.Nil(t, r.checkpoint("cards"))
}

func TestLimitReportsCarriedFailures(t *testing.T) {
	ctx := context.Background()
	src := newFakeCatalog(1, 2, 3)
	for _, g := range []int64{1, 2, 3} {
		src.set(g, cards(g, 2)...)
	}
	src.fail(1, errors.New("connection reset by peer"))
	src.fail(2, errors.New("connection reset by peer"))
	r := newRig(src)

	res, err := r.cards(nil).Run(ctx, Options{})
	require.NoError(t, err)
	assert.Equal(t, []int64{1, 2}, res.FailedGroups)

	src.fail(1, nil)
	src.fail(2, nil)
	res, err = r.cards(nil).Run(ctx, Options{Resume: true, Limit: 1})
	require.NoError(t, err)
	assert.False(t, res.Success)
	assert.Equal(t, StatusCompletedWithErrors, res.Status)
	assert.Equal(t, 1, res.ItemsProcessed)
	assert.Equal(t, []int64{1, 2}, res.FailedGroups)
	require.Len(t, res.Errors, 2)
	assert.Contains(t, res.Errors[0], "connection reset")
	assert.Contains(t, res.Errors[1], "connection reset")

	cp := r.checkpoint("cards")
	require.NotNil(t, cp)
	require.Len(t, cp.FailedGroups, 2)
	assert.Equal(t, 1, cp.FailedGroups[0].ItemIndex)
}

func TestCancelPausesRun(t *testing.T) {
	src := newFakeCatalog(1, 2)
	src.set(1, cards(1, 4)...)
	src.set(2, cards(2, 4)...)
	r := newRig(src)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	obs := ObserverFunc(func(e Event) {
		if e.State == StateProcessingBatch && e.GroupIndex == 0 && e.ItemIndex == 2 {
			cancel()
		}
	})
	res, err := r.cards(obs).Run(ctx, Options{})
	require.NoError(t, err)

	assert.Equal(t, StatusPaused, res.Status)
	require.True(t, res.Paused())
	assert.Contains(t, res.Pause.Reason, "interrupted")
	assert.Empty(t, res.FailedGroups)
	assert.Empty(t, res.Errors)
	assert.Equal(t, 2, res.ItemsProcessed)

	cp := r.checkpoint("cards")
	require.NotNil(t, cp, "checkpoint saved after cancel")
	assert.Equal(t, "paused", cp.Status)
	assert.Equal(t, 0, cp.CurrentGroupIndex)
	assert.Equal(t, 2, cp.CurrentCardIndex)
	assert.Empty(t, cp.FailedGroups)

	res, err = r.cards(nil).Run(context.Background(), Options{Resume: true})
	require.NoError(t, err)
	assert.Equal(t, StatusCompleted, res.Status)
	assert.Equal(t, 6, res.ItemsProcessed)
	assert.NotNil(t, r.card(104))
	assert.NotNil(t, r.card(204))
	assert.Nil(t, r.checkpoint("cards"))
}

func TestSubBatchRetry(t *testing.T) {
	t.Run("TransientFailureRecovers", func(t *testing.T) {
		src := newFakeCatalog(1)
		src.set(1, cards(1, 2)...)
		r := newRig(src)
		r.cfg.BatchRetryDelay = time.Second

		calls := 0
		r.store.FailCommit = func(docstore.Batch) error {
			calls++
			if calls == 1 {
				return errors.New("connection reset by peer")
			}
			return nil
		}
		var retried []int
		obs := ObserverFunc(func(e Event) {
			if e.State == StateProcessingBatch && e.Err != nil {
				retried = append(retried, e.Attempt)
			}
		})
		res, err := r.cards(obs).Run(context.Background(), Options{})
		require.NoError(t, err)
		assert.Equal(t, StatusCompleted, res.Status)
		assert.Equal(t, 2, res.ItemsUpdated)
		assert.Equal(t, []int{1}, retried)
		assert.Equal(t, []time.Duration{time.Second}, r.sleeps)
	})

	t.Run("ExhaustedAttemptsFailGroup", func(t *testing.T) {
		src := newFakeCatalog(1)
		src.set(1, cards(1, 2)...)
		r := newRig(src)

		calls := 0
		r.store.FailCommit = func(docstore.Batch) error {
			calls++
			return errors.New("service unavailable")
		}
		res, err := r.cards(nil).Run(context.Background(), Options{})
		require.NoError(t, err)
		assert.Equal(t, StatusCompletedWithErrors, res.Status)
		assert.Equal(t, r.cfg.BatchAttempts, calls)
	})

	t.Run("PermanentFailureIsNotRetried", func(t *testing.T) {
		src := newFakeCatalog(1)
		src.set(1, cards(1, 2)...)
		r := newRig(src)

		calls := 0
		r.store.FailCommit = func(docstore.Batch) error {
			calls++
			return retry.Permanent(errors.New("document too large"))
		}
		res, err := r.cards(nil).Run(context.Background(), Options{})
		require.NoError(t, err)
		assert.Equal(t, StatusCompletedWithErrors, res.Status)
		assert.Equal(t, 1, calls)
	})
}

func TestItemErrorsDoNotFailTheGroup(t *testing.T) {
	src := newFakeCatalog(1)
	noNumber := catalog.Product{ProductID: 150, GroupID: 1, Name: "Cloud"}
	sealed := catalog.Product{ProductID: 151, GroupID: 1, Name: "Opus I Booster Pack"}
	src.set(1, append(cards(1, 2), noNumber, sealed)...)
	r := newRig(src)
	r.cfg.BatchSize = 10

	res, err := r.cards(nil).Run(context.Background(), Options{})
	require.NoError(t, err)
	assert.Equal(t, StatusCompleted, res.Status)
	assert.Equal(t, 4, res.ItemsProcessed)
	assert.Equal(t, 2, res.ItemsUpdated)
	assert.Equal(t, 1, res.ItemsSkipped)
	require.Len(t, res.ItemErrors, 1)
	assert.Equal(t, int64(150), res.ItemErrors[0].ID)
	assert.Equal(t, int64(1), res.ItemErrors[0].GroupID)
}

func TestLimit(t *testing.T) {
	src := newFakeCatalog(1, 2)
	src.set(1, cards(1, 5)...)
	src.set(2, cards(2, 5)...)
	r := newRig(src)

	res, err := r.cards(nil).Run(context.Background(), Options{Limit: 3})
	require.NoError(t, err)
	assert.Equal(t, StatusCompleted, res.Status)
	assert.Equal(t, 3, res.ItemsProcessed)
	assert.Equal(t, 3, r.store.Writes(CardsCollection))
}

func TestScopedGroup(t *testing.T) {
	src := newFakeCatalog(1, 2)
	src.set(2, cards(2, 2)...)
	r := newRig(src)

	res, err := r.cards(nil).Run(context.Background(), Options{GroupID: 2})
	require.NoError(t, err)
	assert.Equal(t, "cards:2", res.RunID)
	assert.Equal(t, 2, res.ItemsProcessed)
	assert.Zero(t, src.groupCalls)
}

func TestGroupEnumerationFailure(t *testing.T) {
	src := newFakeCatalog()
	src.groupsErr = retry.Permanent(errors.New("catalog returned success=false"))
	r := newRig(src)

	res, err := r.cards(nil).Run(context.Background(), Options{})
	require.NoError(t, err)
	assert.False(t, res.Success)
	assert.Equal(t, StatusFailed, res.Status)
	require.Len(t, res.Errors, 1)
	assert.Contains(t, res.Errors[0], "enumerate groups")
}

// failingCheckpoints rejects checkpoint writes.
type failingCheckpoints struct {
	*docstore.MemoryStore
}

func (s failingCheckpoints) Set(ctx context.Context, collection, id string, v any) error {
	if collection == CheckpointCollection {
		return retry.Permanent(errors.New("permission denied"))
	}
	return s.MemoryStore.Set(ctx, collection, id, v)
}

func TestCheckpointWriteFailureIsHard(t *testing.T) {
	src := newFakeCatalog(1)
	src.set(1, cards(1, 2)...)
	r := newRig(src)
	r.cfg.CheckpointEvery = 1

	proc := NewCardProcessor(CardDeps{
		Source:   src,
		Store:    r.store,
		Detector: changes.NewDetector(r.store, CardHashesCollection, r.cfg.Changes, nil),
	})
	store := failingCheckpoints{r.store}
	ctrl := r.wire(NewController[catalog.Product](r.cfg, src, proc, NewCheckpointStore(store, nil), nil, nil))

	res, err := ctrl.Run(context.Background(), Options{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "save checkpoint")
	assert.Equal(t, StatusFailed, res.Status)
}

func TestInterBatchDelay(t *testing.T) {
	src := newFakeCatalog(1)
	src.set(1, cards(1, 5)...)
	r := newRig(src)
	r.cfg.InterBatchDelay = 100 * time.Millisecond

	_, err := r.cards(nil).Run(context.Background(), Options{})
	require.NoError(t, err)
	assert.Equal(t, []time.Duration{100 * time.Millisecond, 100 * time.Millisecond}, r.sleeps)
}
