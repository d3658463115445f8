package cmd

import (
	"context"
	"fmt"

	"card-sync/core/broker"
	"card-sync/core/config"
	"card-sync/core/database"
	"card-sync/core/docstore"
	"card-sync/core/logger"
	"card-sync/core/storage"
	"card-sync/feature/catalog"
	"card-sync/feature/integrity"
	"card-sync/feature/official"
	"card-sync/feature/sync"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

// documentColumns are the columns the document store reads and writes.
var documentColumns = []string{"collection", "id", "data", "updated_at"}

// app is the wired runtime shared by the server and the one-shot commands.
type app struct {
	cfg       *config.Config
	log       *zap.Logger
	db        *gorm.DB
	store     docstore.Store
	blob      storage.Client
	publisher broker.Publisher
	engine    *sync.Engine
}

// bootstrap loads configuration and connects every dependency.
func bootstrap(ctx context.Context) (*app, error) {
	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		return nil, fmt.Errorf("load configuration: %w", err)
	}

	logg, err := logger.New(&cfg.Log)
	if err != nil {
		return nil, fmt.Errorf("initialize logger: %w", err)
	}
	zap.ReplaceGlobals(logg)

	db, err := database.Connect(cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("connect document store: %w", err)
	}
	gs := docstore.NewGormStore(db, cfg.Sync.WriteBatchSize)
	if err := gs.Migrate(ctx); err != nil {
		return nil, fmt.Errorf("migrate document store: %w", err)
	}
	missing, err := database.MissingColumns(db, docstore.Row{}.TableName(), documentColumns)
	if err != nil {
		return nil, fmt.Errorf("inspect document store: %w", err)
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("documents table is missing columns %v", missing)
	}
	logg.Info("Connected to document store", zap.String("driver", cfg.Database.Driver))

	a := &app{cfg: cfg, log: logg, db: db, store: gs}

	if cfg.Storage.Enabled {
		client, err := storage.NewClient(cfg.Storage)
		if err != nil {
			return nil, fmt.Errorf("create storage client: %w", err)
		}
		if err := storage.EnsureBucket(ctx, client, cfg.Storage.Bucket, cfg.Storage.Region); err != nil {
			logg.Warn("Storage unavailable, image checks and reports disabled", zap.Error(err))
		} else {
			a.blob = client
		}
	}

	a.publisher, err = broker.New(cfg.Broker, logg)
	if err != nil {
		return nil, fmt.Errorf("connect broker: %w", err)
	}

	deps := sync.Deps{
		Store:     gs,
		Catalog:   catalog.NewClient(cfg.Catalog),
		Blob:      a.blob,
		Bucket:    cfg.Storage.Bucket,
		Publisher: a.publisher,
		Logger:    logg,
	}
	if cfg.Official.Enabled {
		oc, err := official.NewClient(cfg.Official)
		if err != nil {
			return nil, fmt.Errorf("create official client: %w", err)
		}
		deps.Official = oc
		deps.OfficialTTL = cfg.Official.CacheTTL
	}

	a.engine, err = sync.NewEngine(cfg.Sync, deps)
	if err != nil {
		_ = a.publisher.Close()
		return nil, fmt.Errorf("create sync engine: %w", err)
	}
	return a, nil
}

// integrityDeps wires the integrity audit to the store, bucket and broker.
func (a *app) integrityDeps() integrity.Deps {
	return integrity.Deps{
		Store:     a.store,
		Guard:     a.engine.StoreGuard(),
		DB:        a.db,
		Blob:      a.blob,
		Bucket:    a.cfg.Storage.Bucket,
		Publisher: a.publisher,
		Logger:    a.log,
	}
}

// Close releases the engine and the broker connection.
func (a *app) Close() {
	a.engine.Close()
	if err := a.publisher.Close(); err != nil {
		a.log.Warn("Failed to close broker", zap.Error(err))
	}
	_ = a.log.Sync()
}
