package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"card-sync/core/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfig_Defaults(t *testing.T) {
	cfg, err := config.LoadConfig(t.TempDir())
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.Server.Port)
	assert.Equal(t, 30*time.Second, cfg.Server.ShutdownTimeout)
	assert.Equal(t, "cards", cfg.Storage.Bucket)
	assert.Equal(t, "mysql", cfg.Database.Driver)
	assert.False(t, cfg.Broker.Enabled)
	assert.Equal(t, int64(24), cfg.Catalog.CategoryID)
	assert.Equal(t, time.Hour, cfg.Official.CacheTTL)

	assert.Equal(t, 50, cfg.Sync.BatchSize)
	assert.Equal(t, 100, cfg.Sync.CheckpointEvery)
	assert.Equal(t, 540*time.Second, cfg.Sync.ExecutionBudget)
	assert.Equal(t, 30*time.Second, cfg.Sync.SafetyMargin)
	assert.Equal(t, 500, cfg.Sync.WriteBatchSize)
	assert.Equal(t, 10, cfg.Sync.Changes.LookupBatchSize)
	assert.Equal(t, 10000, cfg.Sync.Changes.CacheSize)
	assert.Equal(t, 500, cfg.Sync.RateLimit.RateBudget)
	assert.Equal(t, 3, cfg.Sync.Retry.MaxRetries)
	assert.Equal(t, 500*time.Millisecond, cfg.Sync.Retry.InitialDelay)
	assert.Equal(t, 60*time.Second, cfg.Sync.Retry.ResetTimeout)
}

func TestLoadConfig_EnvOverride(t *testing.T) {
	t.Setenv("SYNC_BATCH_SIZE", "25")
	t.Setenv("SYNC_EXECUTION_BUDGET", "5m")
	t.Setenv("SYNC_RETRY_MAX_RETRIES", "7")
	t.Setenv("BROKER_ENABLED", "true")

	cfg, err := config.LoadConfig(t.TempDir())
	require.NoError(t, err)
	assert.Equal(t, 25, cfg.Sync.BatchSize)
	assert.Equal(t, 5*time.Minute, cfg.Sync.ExecutionBudget)
	assert.Equal(t, 7, cfg.Sync.Retry.MaxRetries)
	assert.True(t, cfg.Broker.Enabled)
}

func TestLoadConfig_DotEnv(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"), []byte("SERVER_PORT=9191\nSTORAGE_BUCKET=tcg\n"), 0o600))
	t.Cleanup(func() {
		os.Unsetenv("SERVER_PORT")
		os.Unsetenv("STORAGE_BUCKET")
	})

	cfg, err := config.LoadConfig(dir)
	require.NoError(t, err)
	assert.Equal(t, "9191", cfg.Server.Port)
	assert.Equal(t, "tcg", cfg.Storage.Bucket)
}
