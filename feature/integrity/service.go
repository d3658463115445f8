package integrity

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"card-sync/core/batch"
	"card-sync/core/broker"
	"card-sync/core/docstore"
	"card-sync/core/retry"
	"card-sync/core/storage"
	"card-sync/feature/catalog"
	"card-sync/feature/integrity/checks"
	"card-sync/feature/sync"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

var (
	// ErrUnknownProcessor is returned for a processor without a hash collection.
	ErrUnknownProcessor = errors.New("unknown processor")
	// ErrStorageDisabled is returned by image checks when no storage client is configured.
	ErrStorageDisabled = errors.New("storage is not configured")
)

// Deps are the collaborators of the integrity service. DB, Blob and Publisher are optional.
type Deps struct {
	Store     docstore.Store
	Guard     retry.Guard
	DB        *gorm.DB
	Blob      storage.Client
	Bucket    string
	Publisher broker.Publisher
	Logger    *zap.Logger
	PageSize  int
}

// Service handles integrity checks.
type Service struct {
	deps   Deps
	logger *zap.Logger
}

// NewService creates a new integrity service.
func NewService(deps Deps) *Service {
	if deps.Publisher == nil {
		deps.Publisher = broker.Nop{}
	}
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	return &Service{deps: deps, logger: deps.Logger}
}

// collections returns the record and hash collections of a processor.
func collections(processor string) (string, string, error) {
	switch processor {
	case sync.ProcessorCards:
		return sync.CardsCollection, sync.CardHashesCollection, nil
	case sync.ProcessorPrices:
		return sync.PricesCollection, sync.PriceHashesCollection, nil
	default:
		return "", "", fmt.Errorf("%w: %q", ErrUnknownProcessor, processor)
	}
}

// CheckHashes audits the fingerprint cache of a processor against its records.
func (s *Service) CheckHashes(ctx context.Context, processor string) (*checks.HashReport, error) {
	records, hashes, err := collections(processor)
	if err != nil {
		return nil, err
	}
	return checks.CheckHashes(ctx, s.deps.Store, records, hashes, s.deps.PageSize)
}

// FixHashes drops the drifted hash entries of a report.
func (s *Service) FixHashes(ctx context.Context, report *checks.HashReport) (int, error) {
	n, err := checks.FixHashes(ctx, batch.NewWriter(s.deps.Store, s.deps.Guard), report)
	if err != nil {
		return n, err
	}
	s.logger.Info("Dropped drifted fingerprints", zap.String("collection", report.Hashes), zap.Int("count", n))
	return n, nil
}

// CheckImages returns processed cards whose image object is missing.
func (s *Service) CheckImages(ctx context.Context) (*checks.ImageReport, error) {
	if s.deps.Blob == nil {
		return nil, ErrStorageDisabled
	}
	return checks.CheckImages(ctx, s.deps.Store, sync.CardsCollection, checks.ImageCheck{
		Client:     s.deps.Blob,
		Bucket:     s.deps.Bucket,
		ObjectName: sync.ObjectName,
		PageSize:   s.deps.PageSize,
	})
}

// FixImages marks the cards of a report pending again and queues their images for processing.
func (s *Service) FixImages(ctx context.Context, report *checks.ImageReport) (int, error) {
	w := batch.NewWriter(s.deps.Store, s.deps.Guard)
	for _, m := range report.Missing {
		rec := m.Record
		rec.ImageStatus = catalog.ImageStatusPending
		if err := w.Add(ctx, batch.Set(sync.CardsCollection, strconv.FormatInt(rec.ID, 10), rec)); err != nil {
			return 0, err
		}
	}
	if err := w.Commit(ctx); err != nil {
		return 0, err
	}

	for _, m := range report.Missing {
		task := sync.ImageTask{
			ProductID: m.ProductID,
			GroupID:   m.GroupID,
			SourceURL: m.SourceURL,
			Object:    m.Object,
			Reason:    sync.ImageReasonMissing,
		}
		if err := s.deps.Publisher.Publish(ctx, broker.KeyImageProcess, task); err != nil {
			s.logger.Warn("Failed to queue image", zap.Int64("productId", m.ProductID), zap.Error(err))
		}
	}
	s.logger.Info("Requeued missing images", zap.Int("count", len(report.Missing)))
	return len(report.Missing), nil
}

// CheckSchema verifies the documents table against the store model.
func (s *Service) CheckSchema() (*checks.SchemaReport, error) {
	return checks.CheckSchema(s.deps.DB, &docstore.Row{})
}
