package sync

import (
	"time"

	"card-sync/core/changes"
	"card-sync/core/ratelimit"
	"card-sync/core/retry"
)

// Config holds the sync engine tunables.
type Config struct {
	// BatchSize is the number of items per sub-batch.
	BatchSize int `mapstructure:"batch_size" default:"50"`
	// CheckpointEvery persists progress after this many processed items.
	CheckpointEvery int `mapstructure:"checkpoint_every" default:"100"`
	// BatchAttempts is how often a sub-batch is tried before its group fails.
	BatchAttempts int `mapstructure:"batch_attempts" default:"3"`
	// BatchRetryDelay is the pause before a sub-batch is retried, multiplied by the attempt.
	BatchRetryDelay time.Duration `mapstructure:"batch_retry_delay" default:"1s"`
	// InterBatchDelay smooths load between sub-batches.
	InterBatchDelay time.Duration `mapstructure:"inter_batch_delay" default:"100ms"`
	// ExecutionBudget is the wall-clock time an invocation may run.
	ExecutionBudget time.Duration `mapstructure:"execution_budget" default:"540s"`
	// SafetyMargin is subtracted from the budget before pausing.
	SafetyMargin time.Duration `mapstructure:"safety_margin" default:"30s"`
	// WriteBatchSize caps the operations of one atomic batch.
	WriteBatchSize int `mapstructure:"write_batch_size" default:"500"`
	// MinAgreements is the number of corroborating attributes a match needs.
	MinAgreements int `mapstructure:"min_agreements" default:"2"`
	// TieBreak is the matcher policy: first_wins or best_score.
	TieBreak string `mapstructure:"tie_break" default:"first_wins"`
	// ImageConcurrency bounds concurrent blob existence checks within a sub-batch.
	ImageConcurrency int `mapstructure:"image_concurrency" default:"8"`
	// StatsInterval is how often retry statistics are logged during a run.
	StatsInterval time.Duration `mapstructure:"stats_interval" default:"30s"`
	// ReportPrefix is the object prefix of uploaded run reports.
	ReportPrefix string `mapstructure:"report_prefix" default:"sync-reports"`

	Changes   changes.Config   `mapstructure:"changes"`
	RateLimit ratelimit.Config `mapstructure:"rate_limit"`
	Retry     retry.Policy     `mapstructure:"retry"`
}

// DefaultConfig mirrors the struct tag defaults.
func DefaultConfig() Config {
	return Config{
		BatchSize:        50,
		CheckpointEvery:  100,
		BatchAttempts:    3,
		BatchRetryDelay:  time.Second,
		InterBatchDelay:  100 * time.Millisecond,
		ExecutionBudget:  540 * time.Second,
		SafetyMargin:     30 * time.Second,
		WriteBatchSize:   500,
		MinAgreements:    2,
		TieBreak:         "first_wins",
		ImageConcurrency: 8,
		StatsInterval:    30 * time.Second,
		ReportPrefix:     "sync-reports",
		Changes:          changes.Config{CacheSize: 10000, CacheTTL: time.Hour, LookupBatchSize: 10},
		RateLimit: ratelimit.Config{
			RateBudget:           500,
			Window:               time.Second,
			IntervalCount:        10,
			MaxConcurrentBatches: 3,
			QueueSize:            1024,
		},
		Retry: retry.DefaultPolicy(),
	}
}

// Deadline returns the usable part of the execution budget.
func (c Config) Deadline() time.Duration {
	return c.ExecutionBudget - c.SafetyMargin
}
