package sync

import (
	"context"
	"errors"
	gosync "sync"

	"card-sync/core/logger"

	"go.uber.org/zap"
)

// Processor names.
const (
	ProcessorCards  = "cards"
	ProcessorPrices = "prices"
)

// ErrRunInProgress is returned when a processor is already running in this process.
var ErrRunInProgress = errors.New("sync run already in progress")

// Service runs syncs against a long-lived Engine, one run per processor at a time.
type Service struct {
	engine *Engine
	logger *zap.Logger

	mu      gosync.Mutex
	running map[string]bool
}

// NewService creates a sync service.
func NewService(engine *Engine, logger *zap.Logger) *Service {
	return &Service{engine: engine, logger: logger, running: make(map[string]bool)}
}

// SyncCards runs the card sync.
func (s *Service) SyncCards(ctx context.Context, opts Options) (*Result, error) {
	return execute(ctx, s, ProcessorCards, opts, s.engine.Cards)
}

// SyncPrices runs the price sync.
func (s *Service) SyncPrices(ctx context.Context, opts Options) (*Result, error) {
	return execute(ctx, s, ProcessorPrices, opts, s.engine.Prices)
}

// Checkpoint returns the stored checkpoint of runID, or nil.
func (s *Service) Checkpoint(ctx context.Context, runID string) (*Checkpoint, error) {
	return s.engine.Checkpoints().Load(ctx, runID)
}

// ClearCheckpoint deletes the checkpoint of runID so the next run starts over.
func (s *Service) ClearCheckpoint(ctx context.Context, runID string) error {
	return s.engine.Checkpoints().Delete(ctx, runID)
}

func (s *Service) acquire(processor string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running[processor] {
		return false
	}
	s.running[processor] = true
	return true
}

func (s *Service) release(processor string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.running, processor)
}

func execute[T any](ctx context.Context, s *Service, processor string, opts Options, build func(Observer) *Controller[T]) (*Result, error) {
	if !s.acquire(processor) {
		return nil, ErrRunInProgress
	}
	defer s.release(processor)

	if opts.RunID == "" {
		opts.RunID = DefaultRunID(processor, opts.GroupID)
	}
	l := logger.ForRun(s.logger, processor, opts.RunID)
	l.Info("Starting sync",
		zap.Bool("dry_run", opts.DryRun),
		zap.Bool("resume", opts.Resume),
		zap.Bool("force", opts.ForceUpdate),
		zap.Int64("group_id", opts.GroupID),
		zap.Int("limit", opts.Limit),
	)

	statsCtx, stop := context.WithCancel(ctx)
	go s.engine.ReportStats(statsCtx, l)
	res, err := build(LogObserver{Logger: l}).Run(ctx, opts)
	stop()

	if err != nil {
		l.Error("Sync failed", zap.Error(err))
		return res, err
	}

	l.Info("Sync finished",
		zap.String("status", string(res.Status)),
		zap.Int("processed", res.ItemsProcessed),
		zap.Int("updated", res.ItemsUpdated),
		zap.Int("skipped", res.ItemsSkipped),
		zap.Int("failed_groups", len(res.FailedGroups)),
		zap.Int64("duration_ms", res.Timing.DurationMs),
	)
	if !opts.DryRun {
		s.engine.Publish(ctx, res)
	}
	if object, err := s.engine.Report(ctx, res); err != nil {
		l.Warn("Failed to upload sync report", zap.Error(err))
	} else if object != "" {
		l.Debug("Sync report uploaded", zap.String("object", object))
	}
	return res, nil
}
