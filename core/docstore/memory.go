package docstore

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"
	"time"
)

// MemoryStore is an in-process Store. It backs dry runs, local development and tests.
type MemoryStore struct {
	mu       sync.RWMutex
	data     map[string]map[string]Document
	maxBatch int
	now      func() time.Time

	// commits counts successful batch commits, writes counts applied set ops per collection.
	commits int
	writes  map[string]int

	// FailCommit, when set, is consulted before each batch commit; a non-nil error aborts it.
	FailCommit func(b Batch) error
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore(maxBatch int) *MemoryStore {
	if maxBatch <= 0 {
		maxBatch = DefaultMaxBatchSize
	}
	return &MemoryStore{
		data:     make(map[string]map[string]Document),
		writes:   make(map[string]int),
		maxBatch: maxBatch,
		now:      time.Now,
	}
}

func (s *MemoryStore) Get(ctx context.Context, collection, id string, out any) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	s.mu.RLock()
	doc, ok := s.data[collection][id]
	s.mu.RUnlock()
	if !ok {
		return false, nil
	}
	if err := json.Unmarshal(doc.Data, out); err != nil {
		return false, fmt.Errorf("decode %s/%s: %w", collection, id, err)
	}
	return true, nil
}

func (s *MemoryStore) GetMany(ctx context.Context, collection string, ids []string) (map[string]Document, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make(map[string]Document, len(ids))
	for _, id := range ids {
		if doc, ok := s.data[collection][id]; ok {
			result[id] = doc
		}
	}
	return result, nil
}

func (s *MemoryStore) Set(ctx context.Context, collection, id string, v any) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode %s/%s: %w", collection, id, err)
	}
	s.mu.Lock()
	s.apply(op{kind: opSet, collection: collection, id: id, data: data})
	s.mu.Unlock()
	return nil
}

func (s *MemoryStore) Delete(ctx context.Context, collection, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	s.apply(op{kind: opDelete, collection: collection, id: id})
	s.mu.Unlock()
	return nil
}

func (s *MemoryStore) Scan(ctx context.Context, collection, after string, limit int) ([]Document, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	ids := make([]string, 0, len(s.data[collection]))
	for id := range s.data[collection] {
		if id > after {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	if limit > 0 && len(ids) > limit {
		ids = ids[:limit]
	}

	docs := make([]Document, 0, len(ids))
	for _, id := range ids {
		docs = append(docs, s.data[collection][id])
	}
	return docs, nil
}

func (s *MemoryStore) Count(ctx context.Context, collection string) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return int64(len(s.data[collection])), nil
}

func (s *MemoryStore) NewBatch() Batch {
	return &memoryBatch{store: s}
}

func (s *MemoryStore) MaxBatchSize() int {
	return s.maxBatch
}

// Writes returns how many set operations were applied to a collection.
func (s *MemoryStore) Writes(collection string) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.writes[collection]
}

// Commits returns the number of successfully committed batches.
func (s *MemoryStore) Commits() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.commits
}

// apply must be called with the write lock held.
func (s *MemoryStore) apply(o op) {
	switch o.kind {
	case opSet:
		if s.data[o.collection] == nil {
			s.data[o.collection] = make(map[string]Document)
		}
		s.data[o.collection][o.id] = Document{
			Collection: o.collection,
			ID:         o.id,
			Data:       json.RawMessage(o.data),
			UpdatedAt:  s.now(),
		}
		s.writes[o.collection]++
	case opDelete:
		delete(s.data[o.collection], o.id)
	}
}

type memoryBatch struct {
	pending
	store *MemoryStore
}

func (b *memoryBatch) Set(collection, id string, v any) error {
	if err := b.set(collection, id, v); err != nil {
		return fmt.Errorf("encode %s/%s: %w", collection, id, err)
	}
	return nil
}

func (b *memoryBatch) Delete(collection, id string) { b.delete(collection, id) }

func (b *memoryBatch) Len() int { return len(b.ops) }

func (b *memoryBatch) Commit(ctx context.Context) error {
	if b.committed {
		return ErrBatchCommitted
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	if len(b.ops) > b.store.maxBatch {
		return fmt.Errorf("%w: %d > %d", ErrBatchTooLarge, len(b.ops), b.store.maxBatch)
	}
	if b.store.FailCommit != nil {
		if err := b.store.FailCommit(b); err != nil {
			return err
		}
	}

	b.store.mu.Lock()
	for _, o := range b.ops {
		b.store.apply(o)
	}
	b.store.commits++
	b.store.mu.Unlock()

	b.committed = true
	return nil
}
