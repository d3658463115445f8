package cmd

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"card-sync/feature/integrity"
	"card-sync/feature/sync"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	fixFlag       bool
	jsonFlag      bool
	processorFlag string
)

// integrityCmd represents the integrity command
var integrityCmd = &cobra.Command{
	Use:   "integrity",
	Short: "Audit the state left behind by the sync",
	Long:  `Checks fingerprint caches, card image objects and the document store schema. Without a subcommand every read-only check runs.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if len(args) > 0 {
			return cmd.Help()
		}
		a, err := bootstrap(cmd.Context())
		if err != nil {
			return err
		}
		defer a.Close()
		svc := integrity.NewService(a.integrityDeps())

		for _, p := range []string{sync.ProcessorCards, sync.ProcessorPrices} {
			if err := runHashCheck(cmd, a, svc, p, false); err != nil {
				return err
			}
		}
		if a.blob == nil {
			a.log.Info("Storage disabled, skipping image check")
		} else if err := runImageCheck(cmd, a, svc, false); err != nil {
			return err
		}
		return runSchemaCheck(a, svc)
	},
}

// hashesCmd represents the integrity hashes command
var hashesCmd = &cobra.Command{
	Use:   "hashes",
	Short: "Check and fix fingerprint drift",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := bootstrap(cmd.Context())
		if err != nil {
			return err
		}
		defer a.Close()
		return runHashCheck(cmd, a, integrity.NewService(a.integrityDeps()), processorFlag, fixFlag)
	},
}

// imagesCmd represents the integrity images command
var imagesCmd = &cobra.Command{
	Use:   "images",
	Short: "Check and requeue missing card images",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := bootstrap(cmd.Context())
		if err != nil {
			return err
		}
		defer a.Close()
		return runImageCheck(cmd, a, integrity.NewService(a.integrityDeps()), fixFlag)
	},
}

// schemaCmd represents the integrity schema command
var schemaCmd = &cobra.Command{
	Use:   "schema",
	Short: "Check the document store schema",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := bootstrap(cmd.Context())
		if err != nil {
			return err
		}
		defer a.Close()
		return runSchemaCheck(a, integrity.NewService(a.integrityDeps()))
	},
}

func init() {
	RootCmd.AddCommand(integrityCmd)
	integrityCmd.AddCommand(hashesCmd, imagesCmd, schemaCmd)

	hashesCmd.Flags().StringVar(&processorFlag, "processor", sync.ProcessorCards, "Processor to audit (cards or prices)")
	hashesCmd.Flags().BoolVar(&fixFlag, "fix", false, "Drop orphaned and mismatched fingerprints")
	hashesCmd.Flags().BoolVar(&yesConfirm, "yes", false, "Auto-confirm (non-interactive)")
	imagesCmd.Flags().BoolVar(&fixFlag, "fix", false, "Requeue missing images")
	integrityCmd.PersistentFlags().BoolVar(&jsonFlag, "json", false, "Save detailed JSON reports")
}

func runHashCheck(cmd *cobra.Command, a *app, svc *integrity.Service, processor string, fix bool) error {
	ctx := cmd.Context()
	a.log.Info("Checking fingerprints...", zap.String("processor", processor))
	report, err := svc.CheckHashes(ctx, processor)
	if err != nil {
		return fmt.Errorf("hash check failed: %w", err)
	}
	if err := saveReport(a, "hashes_"+processor, report); err != nil {
		return err
	}

	if report.Clean() {
		a.log.Info("Fingerprints are consistent.",
			zap.String("processor", processor),
			zap.Int("scanned", report.Scanned),
			zap.Int("missing", len(report.Missing)))
		return nil
	}

	a.log.Warn("Fingerprint drift detected",
		zap.String("processor", processor),
		zap.Int("orphans", len(report.Orphans)),
		zap.Int("mismatched", len(report.Mismatched)))
	if !fix {
		a.log.Info("Run with --fix to drop drifted fingerprints.")
		return nil
	}
	if !confirmDestructiveAction() {
		a.log.Warn("Operation cancelled by user. No changes were made.")
		return nil
	}
	n, err := svc.FixHashes(ctx, report)
	if err != nil {
		return fmt.Errorf("failed to fix fingerprints: %w", err)
	}
	a.log.Info("Fingerprints fixed successfully.", zap.Int("dropped", n))
	return nil
}

func runImageCheck(cmd *cobra.Command, a *app, svc *integrity.Service, fix bool) error {
	ctx := cmd.Context()
	a.log.Info("Checking card images (this might take a while)...")
	report, err := svc.CheckImages(ctx)
	if err != nil {
		return fmt.Errorf("image check failed: %w", err)
	}
	if err := saveReport(a, "images", report); err != nil {
		return err
	}

	if len(report.Missing) == 0 {
		a.log.Info("Card images are present.", zap.Int("processed", report.Processed))
		return nil
	}
	a.log.Warn("Missing card images detected", zap.Int("missing", len(report.Missing)))
	if !fix {
		a.log.Info("Run with --fix to requeue missing images.")
		return nil
	}
	n, err := svc.FixImages(ctx, report)
	if err != nil {
		return fmt.Errorf("failed to requeue images: %w", err)
	}
	a.log.Info("Images requeued successfully.", zap.Int("requeued", n))
	return nil
}

func runSchemaCheck(a *app, svc *integrity.Service) error {
	a.log.Info("Checking document store schema...")
	report, err := svc.CheckSchema()
	if err != nil {
		return fmt.Errorf("schema check failed: %w", err)
	}
	if report.Matched {
		a.log.Info("Schema matches the store model.")
		return nil
	}

	a.log.Warn("Schema mismatches found")
	for table, tblReport := range report.Tables {
		if tblReport.Status == "ok" {
			continue
		}
		if len(tblReport.MissingColumns) > 0 {
			a.log.Warn("Missing Columns", zap.String("table", table), zap.Strings("columns", tblReport.MissingColumns))
		}
		if len(tblReport.TypeMismatches) > 0 {
			a.log.Warn("Type Mismatches", zap.String("table", table), zap.Strings("mismatches", tblReport.TypeMismatches))
		}
	}
	for _, e := range report.Errors {
		a.log.Error("Inspection Error", zap.String("error", e))
	}
	return nil
}

// saveReport writes a detailed report to the working directory when --json is set.
func saveReport(a *app, name string, report any) error {
	if !jsonFlag {
		return nil
	}
	filename := fmt.Sprintf("integrity_%s_%d.json", name, time.Now().Unix())
	data, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal JSON: %w", err)
	}
	if err := os.WriteFile(filename, data, 0644); err != nil {
		return fmt.Errorf("failed to save JSON file: %w", err)
	}
	a.log.Info("Detailed JSON report saved", zap.String("file", filename))
	return nil
}
