package changes

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"card-sync/core/batch"
	"card-sync/core/docstore"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// countingStore records the read fan-out reaching the underlying store.
type countingStore struct {
	docstore.Store
	mu        sync.Mutex
	gets      int
	getMany   [][]string
	failReads error
}

func (s *countingStore) Get(ctx context.Context, collection, id string, out any) (bool, error) {
	s.mu.Lock()
	s.gets++
	s.mu.Unlock()
	if s.failReads != nil {
		return false, s.failReads
	}
	return s.Store.Get(ctx, collection, id, out)
}

func (s *countingStore) GetMany(ctx context.Context, collection string, ids []string) (map[string]docstore.Document, error) {
	s.mu.Lock()
	s.getMany = append(s.getMany, append([]string(nil), ids...))
	s.mu.Unlock()
	if s.failReads != nil {
		return nil, s.failReads
	}
	return s.Store.GetMany(ctx, collection, ids)
}

func newStore(t *testing.T, stored map[string]string) *countingStore {
	t.Helper()
	mem := docstore.NewMemoryStore(0)
	for id, h := range stored {
		require.NoError(t, mem.Set(context.Background(), "cardHashes", id, Entry{Hash: h}))
	}
	return &countingStore{Store: mem}
}

func TestShouldUpdate(t *testing.T) {
	ctx := context.Background()
	store := newStore(t, map[string]string{"1": "aaa"})
	d := NewDetector(store, "cardHashes", Config{CacheTTL: time.Minute}, nil)

	tests := []struct {
		name  string
		id    string
		fp    string
		force bool
		want  bool
	}{
		{"unseen", "2", "bbb", false, true},
		{"unchanged", "1", "aaa", false, false},
		{"changed", "1", "zzz", false, true},
		{"forced unchanged", "1", "aaa", true, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := d.ShouldUpdate(ctx, tt.id, tt.fp, tt.force)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	// One store read per distinct id; later lookups of "1" hit the cache.
	assert.Equal(t, 2, store.gets)
}

func TestShouldUpdateMany_SubBatchesMisses(t *testing.T) {
	ctx := context.Background()
	stored := map[string]string{}
	fps := map[string]string{}
	for i := 0; i < 25; i++ {
		id := fmt.Sprintf("%02d", i)
		fps[id] = "new"
		if i%2 == 0 {
			stored[id] = "new"
		}
	}
	store := newStore(t, stored)
	d := NewDetector(store, "cardHashes", Config{CacheTTL: time.Minute, LookupBatchSize: 10}, nil)

	got, err := d.ShouldUpdateMany(ctx, fps, false)
	require.NoError(t, err)

	require.Len(t, store.getMany, 3)
	sizes := map[int]int{}
	for _, chunk := range store.getMany {
		sizes[len(chunk)]++
	}
	assert.Equal(t, map[int]int{10: 2, 5: 1}, sizes)

	for i := 0; i < 25; i++ {
		id := fmt.Sprintf("%02d", i)
		assert.Equal(t, i%2 != 0, got[id], id)
	}

	// Second pass is served from cache for everything that was stored.
	store.getMany = nil
	again, err := d.ShouldUpdateMany(ctx, map[string]string{"00": "new", "02": "changed"}, false)
	require.NoError(t, err)
	assert.Empty(t, store.getMany)
	assert.Equal(t, map[string]bool{"00": false, "02": true}, again)
	assert.Equal(t, int64(2), d.Stats().Hits)
}

func TestShouldUpdateMany_Force(t *testing.T) {
	store := newStore(t, map[string]string{"1": "aaa"})
	d := NewDetector(store, "cardHashes", Config{}, nil)

	got, err := d.ShouldUpdateMany(context.Background(), map[string]string{"1": "aaa", "2": "bbb"}, true)
	require.NoError(t, err)
	assert.Equal(t, map[string]bool{"1": true, "2": true}, got)
	assert.Empty(t, store.getMany)
}

func TestShouldUpdate_StoreError(t *testing.T) {
	store := newStore(t, nil)
	store.failReads = errors.New("permission denied")
	d := NewDetector(store, "cardHashes", Config{}, nil)

	_, err := d.ShouldUpdate(context.Background(), "1", "aaa", false)
	assert.Error(t, err)

	_, err = d.ShouldUpdateMany(context.Background(), map[string]string{"1": "aaa"}, false)
	assert.Error(t, err)
}

func TestRememberAndHashMutation(t *testing.T) {
	ctx := context.Background()
	mem := docstore.NewMemoryStore(0)
	d := NewDetector(mem, "cardHashes", Config{CacheTTL: time.Minute}, nil)

	w := batch.NewWriter(mem, nil)
	require.NoError(t, w.Add(ctx, d.HashMutation("7", "fff")))
	require.NoError(t, w.Commit(ctx))

	var entry Entry
	found, err := mem.Get(ctx, "cardHashes", "7", &entry)
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, "fff", entry.Hash)

	d.Remember("8", "ggg")
	update, err := d.ShouldUpdate(ctx, "8", "ggg", false)
	require.NoError(t, err)
	assert.False(t, update)
}
