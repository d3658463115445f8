package docstore

import (
	"context"
	"encoding/json"
	"errors"
	"time"
)

// DefaultMaxBatchSize is the per-batch operation ceiling of the atomic batch primitive.
const DefaultMaxBatchSize = 500

var (
	// ErrBatchTooLarge is returned when a batch exceeds the store's operation ceiling.
	ErrBatchTooLarge = errors.New("batch exceeds maximum operation count")
	// ErrBatchCommitted is returned when a batch is reused after Commit.
	ErrBatchCommitted = errors.New("batch already committed")
)

// Document is a raw document read from a collection.
type Document struct {
	Collection string
	ID         string
	Data       json.RawMessage
	UpdatedAt  time.Time
}

// Decode unmarshals the document body into v.
func (d Document) Decode(v any) error {
	return json.Unmarshal(d.Data, v)
}

// Store is a transactional document store keyed by (collection, id).
type Store interface {
	// Get reads a single document into out. It reports false when the document does not exist.
	Get(ctx context.Context, collection, id string, out any) (bool, error)
	// GetMany reads several documents at once. Missing ids are absent from the result.
	GetMany(ctx context.Context, collection string, ids []string) (map[string]Document, error)
	// Set writes (creates or overwrites) a document.
	Set(ctx context.Context, collection, id string, v any) error
	// Delete removes a document. Deleting a missing document is not an error.
	Delete(ctx context.Context, collection, id string) error
	// Scan returns up to limit documents ordered by id, starting strictly after the given id.
	Scan(ctx context.Context, collection, after string, limit int) ([]Document, error)
	// Count returns the number of documents in a collection.
	Count(ctx context.Context, collection string) (int64, error)
	// NewBatch starts an atomic batch of writes.
	NewBatch() Batch
	// MaxBatchSize is the hard per-batch operation ceiling.
	MaxBatchSize() int
}

// Batch groups writes that are committed all-or-nothing.
type Batch interface {
	Set(collection, id string, v any) error
	Delete(collection, id string)
	Len() int
	Commit(ctx context.Context) error
}

type opKind int

const (
	opSet opKind = iota
	opDelete
)

type op struct {
	kind       opKind
	collection string
	id         string
	data       []byte
}

// pending is the buffered op list shared by the batch implementations.
type pending struct {
	ops       []op
	committed bool
}

func (p *pending) set(collection, id string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	p.ops = append(p.ops, op{kind: opSet, collection: collection, id: id, data: data})
	return nil
}

func (p *pending) delete(collection, id string) {
	p.ops = append(p.ops, op{kind: opDelete, collection: collection, id: id})
}
