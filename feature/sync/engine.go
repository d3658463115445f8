package sync

import (
	"context"
	"fmt"
	"time"

	"card-sync/core/broker"
	"card-sync/core/changes"
	"card-sync/core/docstore"
	"card-sync/core/ratelimit"
	"card-sync/core/retry"
	"card-sync/core/storage"
	"card-sync/feature/catalog"
	"card-sync/feature/matching"
	"card-sync/feature/official"

	"go.uber.org/zap"
)

// Deps are the external systems an Engine works against. Official, Blob and Publisher are
// optional.
type Deps struct {
	Store     docstore.Store
	Catalog   catalog.Source
	Official  official.Source
	Blob      storage.Client
	Bucket    string
	Publisher broker.Publisher
	Logger    *zap.Logger

	// OfficialTTL is how long a fetched official card list is reused.
	OfficialTTL time.Duration
}

// Engine owns the shared state of sync runs: retry executors, the write limiter and the
// fingerprint caches.
type Engine struct {
	cfg  Config
	deps Deps
	log  *zap.Logger

	storeExec *retry.Executor
	apiExec   *retry.Executor
	blobExec  *retry.Executor
	limiter   *ratelimit.Limiter

	storeGuard retry.Guard
	apiGuard   retry.Guard
	blobGuard  retry.Guard

	cardHashes  *changes.Detector
	priceHashes *changes.Detector
	enricher    *Enricher
	checkpoints *CheckpointStore
	reporter    *Reporter
}

// NewEngine builds an engine. Close releases the limiter.
func NewEngine(cfg Config, deps Deps) (*Engine, error) {
	if deps.Store == nil || deps.Catalog == nil {
		return nil, fmt.Errorf("sync engine requires a document store and a catalog source")
	}
	tie, err := matching.ParseTieBreak(cfg.TieBreak)
	if err != nil {
		return nil, err
	}
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	if deps.Publisher == nil {
		deps.Publisher = broker.Nop{}
	}

	e := &Engine{cfg: cfg, deps: deps, log: deps.Logger}
	e.storeExec = retry.NewExecutor("docstore", cfg.Retry, deps.Logger)
	e.apiExec = retry.NewExecutor("catalog", cfg.Retry, deps.Logger)
	e.blobExec = retry.NewExecutor("storage", cfg.Retry, deps.Logger)
	e.limiter = ratelimit.New(cfg.RateLimit, deps.Logger)

	e.storeGuard = e.storeExec.Guard(e.limiter.Do)
	e.apiGuard = e.apiExec.Guard(nil)
	e.blobGuard = e.blobExec.Guard(nil)

	e.cardHashes = changes.NewDetector(deps.Store, CardHashesCollection, cfg.Changes, e.storeGuard)
	e.priceHashes = changes.NewDetector(deps.Store, PriceHashesCollection, cfg.Changes, e.storeGuard)
	e.checkpoints = NewCheckpointStore(deps.Store, e.storeGuard)

	if deps.Official != nil {
		src := guardedOfficial{source: deps.Official, guard: e.apiGuard}
		e.enricher = NewEnricher(official.NewCache(src, deps.OfficialTTL), matching.NewMatcher(cfg.MinAgreements, tie))
	}
	if deps.Blob != nil {
		e.reporter = NewReporter(deps.Blob, deps.Bucket, cfg.ReportPrefix, e.blobGuard)
	}
	return e, nil
}

// Cards returns a controller for the card sync.
func (e *Engine) Cards(observer Observer) *Controller[catalog.Product] {
	var images *ImageDecider
	if e.deps.Blob != nil {
		images = NewImageDecider(e.deps.Blob, e.deps.Bucket, e.blobGuard)
	}
	proc := NewCardProcessor(CardDeps{
		Source:           e.deps.Catalog,
		Store:            e.deps.Store,
		StoreGuard:       e.storeGuard,
		Detector:         e.cardHashes,
		Enricher:         e.enricher,
		Images:           images,
		Publisher:        e.deps.Publisher,
		Logger:           e.log,
		ImageConcurrency: e.cfg.ImageConcurrency,
	})
	return NewController[catalog.Product](e.cfg, e.deps.Catalog, proc, e.checkpoints, e.apiGuard, observer)
}

// Prices returns a controller for the price sync.
func (e *Engine) Prices(observer Observer) *Controller[catalog.PriceRecord] {
	proc := NewPriceProcessor(e.deps.Catalog, e.deps.Store, e.storeGuard, e.priceHashes, e.deps.Publisher, e.log)
	return NewController[catalog.PriceRecord](e.cfg, e.deps.Catalog, proc, e.checkpoints, e.apiGuard, observer)
}

// Checkpoints returns the checkpoint store.
func (e *Engine) Checkpoints() *CheckpointStore {
	return e.checkpoints
}

// StoreGuard returns the retrying, rate-limited guard wrapping document store writes.
func (e *Engine) StoreGuard() retry.Guard {
	return e.storeGuard
}

// Report uploads res when blob storage is configured. It returns the object name, or "" when
// reports are disabled.
func (e *Engine) Report(ctx context.Context, res *Result) (string, error) {
	if e.reporter == nil {
		return "", nil
	}
	return e.reporter.Upload(ctx, res)
}

// Publish emits a run summary event. Failures are logged.
func (e *Engine) Publish(ctx context.Context, res *Result) {
	if err := e.deps.Publisher.Publish(ctx, broker.KeySyncCompleted, res); err != nil {
		e.log.Warn("Failed to publish sync summary", zap.String("run_id", res.RunID), zap.Error(err))
	}
}

// ReportStats logs retry statistics every interval until ctx is done.
func (e *Engine) ReportStats(ctx context.Context, log *zap.Logger) {
	e.storeExec.Report(ctx, e.cfg.StatsInterval, func(s retry.Stats) {
		api := e.apiExec.Stats()
		log.Info("Sync statistics",
			zap.Any("store", s),
			zap.Any("api", api),
			zap.Any("card_cache", e.cardHashes.Stats()),
			zap.Any("price_cache", e.priceHashes.Stats()),
			zap.String("store_breaker", e.storeExec.State()),
			zap.String("api_breaker", e.apiExec.State()),
		)
	})
}

// Close stops the write limiter.
func (e *Engine) Close() {
	e.limiter.Close()
}

type guardedOfficial struct {
	source official.Source
	guard  retry.Guard
}

func (g guardedOfficial) Cards(ctx context.Context, f official.Filter) ([]official.Record, error) {
	return retry.Do(ctx, g.guard, func(ctx context.Context) ([]official.Record, error) {
		return g.source.Cards(ctx, f)
	})
}
