package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"card-sync/core/logger"
	"card-sync/feature/sync"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	// Flags shared by the sync subcommands
	syncDryRun bool
	syncLimit  int
	syncGroup  int64
	syncForce  bool
	syncResume bool
	syncRunID  string
	syncNewRun bool
)

// syncCmd is the parent command for one-shot sync runs.
var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Run a catalog sync once",
	Long: `Run a single sync invocation against the configured catalog.

A run that reaches its execution budget saves a checkpoint and exits with status "paused".
Run it again with --resume to continue where it stopped.`,
}

var syncCardsCmd = &cobra.Command{
	Use:   "cards",
	Short: "Sync card records",
	Long: `Reconcile catalog products into card records, skipping unchanged cards.

Examples:
  # Preview what would change
  sync cards --dry-run

  # Sync a single group
  sync cards --group 23

  # Continue a paused run
  sync cards --resume`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runSync(cmd.Context(), sync.ProcessorCards)
	},
}

var syncPricesCmd = &cobra.Command{
	Use:   "prices",
	Short: "Sync prices and record the daily history",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runSync(cmd.Context(), sync.ProcessorPrices)
	},
}

func init() {
	for _, c := range []*cobra.Command{syncCardsCmd, syncPricesCmd} {
		c.Flags().BoolVar(&syncDryRun, "dry-run", false, "Compute every decision without writing")
		c.Flags().IntVar(&syncLimit, "limit", 0, "Stop after this many items (0 = no limit)")
		c.Flags().Int64Var(&syncGroup, "group", 0, "Only sync this group id")
		c.Flags().BoolVar(&syncForce, "force", false, "Write every record, ignoring stored fingerprints")
		c.Flags().BoolVar(&syncResume, "resume", false, "Continue from the stored checkpoint")
		c.Flags().StringVar(&syncRunID, "run-id", "", "Checkpoint identity (default: processor[:group])")
		c.Flags().BoolVar(&syncNewRun, "new-run", false, "Use a fresh random run id")
		syncCmd.AddCommand(c)
	}
	RootCmd.AddCommand(syncCmd)
}

func runSync(parent context.Context, processor string) error {
	if parent == nil {
		parent = context.Background()
	}
	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := bootstrap(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	opts := sync.Options{
		RunID:       syncRunID,
		GroupID:     syncGroup,
		Resume:      syncResume,
		DryRun:      syncDryRun,
		Limit:       syncLimit,
		ForceUpdate: syncForce,
	}
	if syncNewRun && opts.RunID == "" {
		opts.RunID = processor + ":" + uuid.NewString()
	}

	svc := sync.NewService(a.engine, a.log)
	var res *sync.Result
	switch processor {
	case sync.ProcessorPrices:
		res, err = svc.SyncPrices(ctx, opts)
	default:
		res, err = svc.SyncCards(ctx, opts)
	}
	if err != nil {
		return fmt.Errorf("sync %s: %w", processor, err)
	}

	printSyncReport(logger.ForRun(a.log, processor, res.RunID), res)
	if res.Status == sync.StatusFailed {
		return fmt.Errorf("sync %s failed", processor)
	}
	return nil
}

// printSyncReport prints a run summary using logger.
func printSyncReport(l *zap.Logger, res *sync.Result) {
	l.Info("Sync report",
		zap.String("status", string(res.Status)),
		zap.Bool("dry_run", res.DryRun),
		zap.Bool("resumed", res.Resumed),
		zap.Int("groups", res.GroupsProcessed),
		zap.Int("processed", res.ItemsProcessed),
		zap.Int("updated", res.ItemsUpdated),
		zap.Int("skipped", res.ItemsSkipped),
		zap.Int64("duration_ms", res.Timing.DurationMs),
	)

	if res.Pause != nil {
		l.Info("Run paused, continue with --resume",
			zap.Int("group_index", res.Pause.GroupIndex),
			zap.Int("item_index", res.Pause.ItemIndex),
		)
	}
	for _, e := range res.Errors {
		l.Warn("Group error", zap.String("error", e))
	}

	// Show sample of item errors (max 5 for logger)
	maxShow := min(5, len(res.ItemErrors))
	for _, e := range res.ItemErrors[:maxShow] {
		l.Warn("Item error",
			zap.Int64("id", e.ID),
			zap.Int64("group_id", e.GroupID),
			zap.String("reason", e.Message),
		)
	}
	if len(res.ItemErrors) > maxShow {
		l.Info("Additional item errors not shown", zap.Int("count", len(res.ItemErrors)-maxShow))
	}
}
