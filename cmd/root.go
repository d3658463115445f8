package cmd

import (
	"fmt"
	"os"

	"card-sync/core/logger"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// RootCmd represents the base command when called without any subcommands
var RootCmd = &cobra.Command{
	Use:   "card-sync",
	Short: "Card Catalog Sync Service",
	Long: `card-sync reconciles a trading card catalog into a document store.
It runs incremental, checkpointed syncs that skip unchanged records and resume after pauses.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// configPath is the directory LoadConfig reads the .env file from.
var configPath string

func init() {
	RootCmd.PersistentFlags().StringVar(&configPath, "config", ".", "Directory containing the .env file")
}

// Execute runs the root command and exits non-zero on failure.
func Execute() {
	if err := RootCmd.Execute(); err != nil {
		// Use the application's standard logger for error reporting
		// Console format with the development config gives ISO8601 timestamps for CLI users
		cfg := &logger.Config{
			Level:  "debug",
			Format: "console",
		}

		l, logErr := logger.New(cfg)
		if logErr == nil {
			l.Error("command failed", zap.Error(err))
			_ = l.Sync()
		} else {
			// Absolute fallback if logger creation fails (rare)
			fmt.Println(err)
		}
		os.Exit(1)
	}
}
