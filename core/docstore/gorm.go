package docstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Row is the table model backing every collection.
type Row struct {
	Collection string         `gorm:"primaryKey;size:64"`
	ID         string         `gorm:"primaryKey;size:191"`
	Data       datatypes.JSON `gorm:"not null"`
	UpdatedAt  time.Time      `gorm:"index"`
}

// TableName returns the documents table name.
func (Row) TableName() string {
	return "documents"
}

// GormStore implements Store on top of a single gorm-managed table.
type GormStore struct {
	db       *gorm.DB
	maxBatch int
	now      func() time.Time
}

// NewGormStore creates a store over db. Call Migrate before first use on an empty schema.
func NewGormStore(db *gorm.DB, maxBatch int) *GormStore {
	if maxBatch <= 0 {
		maxBatch = DefaultMaxBatchSize
	}
	return &GormStore{db: db, maxBatch: maxBatch, now: time.Now}
}

// Migrate creates or updates the documents table.
func (s *GormStore) Migrate(ctx context.Context) error {
	return s.db.WithContext(ctx).AutoMigrate(&Row{})
}

func (s *GormStore) Get(ctx context.Context, collection, id string, out any) (bool, error) {
	var row Row
	err := s.db.WithContext(ctx).
		Where("collection = ? AND id = ?", collection, id).
		Take(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("get %s/%s: %w", collection, id, err)
	}
	if err := json.Unmarshal(row.Data, out); err != nil {
		return false, fmt.Errorf("decode %s/%s: %w", collection, id, err)
	}
	return true, nil
}

func (s *GormStore) GetMany(ctx context.Context, collection string, ids []string) (map[string]Document, error) {
	result := make(map[string]Document, len(ids))
	if len(ids) == 0 {
		return result, nil
	}

	var rows []Row
	err := s.db.WithContext(ctx).
		Where("collection = ? AND id IN ?", collection, ids).
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("get many from %s: %w", collection, err)
	}
	for _, row := range rows {
		result[row.ID] = toDocument(row)
	}
	return result, nil
}

func (s *GormStore) Set(ctx context.Context, collection, id string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode %s/%s: %w", collection, id, err)
	}
	return s.upsert(s.db.WithContext(ctx), Row{Collection: collection, ID: id, Data: data, UpdatedAt: s.now()})
}

func (s *GormStore) Delete(ctx context.Context, collection, id string) error {
	err := s.db.WithContext(ctx).
		Where("collection = ? AND id = ?", collection, id).
		Delete(&Row{}).Error
	if err != nil {
		return fmt.Errorf("delete %s/%s: %w", collection, id, err)
	}
	return nil
}

func (s *GormStore) Scan(ctx context.Context, collection, after string, limit int) ([]Document, error) {
	var rows []Row
	q := s.db.WithContext(ctx).Where("collection = ?", collection)
	if after != "" {
		q = q.Where("id > ?", after)
	}
	if limit > 0 {
		q = q.Limit(limit)
	}
	if err := q.Order("id ASC").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("scan %s: %w", collection, err)
	}

	docs := make([]Document, 0, len(rows))
	for _, row := range rows {
		docs = append(docs, toDocument(row))
	}
	return docs, nil
}

func (s *GormStore) Count(ctx context.Context, collection string) (int64, error) {
	var n int64
	err := s.db.WithContext(ctx).Model(&Row{}).Where("collection = ?", collection).Count(&n).Error
	if err != nil {
		return 0, fmt.Errorf("count %s: %w", collection, err)
	}
	return n, nil
}

func (s *GormStore) NewBatch() Batch {
	return &gormBatch{store: s}
}

func (s *GormStore) MaxBatchSize() int {
	return s.maxBatch
}

func (s *GormStore) upsert(tx *gorm.DB, row Row) error {
	err := tx.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "collection"}, {Name: "id"}},
		DoUpdates: clause.AssignmentColumns([]string{"data", "updated_at"}),
	}).Create(&row).Error
	if err != nil {
		return fmt.Errorf("set %s/%s: %w", row.Collection, row.ID, err)
	}
	return nil
}

type gormBatch struct {
	pending
	store *GormStore
}

func (b *gormBatch) Set(collection, id string, v any) error {
	if err := b.set(collection, id, v); err != nil {
		return fmt.Errorf("encode %s/%s: %w", collection, id, err)
	}
	return nil
}

func (b *gormBatch) Delete(collection, id string) { b.delete(collection, id) }

func (b *gormBatch) Len() int { return len(b.ops) }

// Commit applies every buffered op inside one transaction.
func (b *gormBatch) Commit(ctx context.Context) error {
	if b.committed {
		return ErrBatchCommitted
	}
	if len(b.ops) > b.store.maxBatch {
		return fmt.Errorf("%w: %d > %d", ErrBatchTooLarge, len(b.ops), b.store.maxBatch)
	}
	if len(b.ops) == 0 {
		b.committed = true
		return nil
	}

	now := b.store.now()
	err := b.store.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, o := range b.ops {
			switch o.kind {
			case opSet:
				if err := b.store.upsert(tx, Row{Collection: o.collection, ID: o.id, Data: o.data, UpdatedAt: now}); err != nil {
					return err
				}
			case opDelete:
				if err := tx.Where("collection = ? AND id = ?", o.collection, o.id).Delete(&Row{}).Error; err != nil {
					return fmt.Errorf("delete %s/%s: %w", o.collection, o.id, err)
				}
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("commit batch of %d: %w", len(b.ops), err)
	}
	b.committed = true
	return nil
}

func toDocument(row Row) Document {
	return Document{
		Collection: row.Collection,
		ID:         row.ID,
		Data:       json.RawMessage(row.Data),
		UpdatedAt:  row.UpdatedAt,
	}
}
