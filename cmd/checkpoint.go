package cmd

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"card-sync/feature/sync"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// yesConfirm skips the interactive confirmation of checkpoint clears.
var yesConfirm bool

// checkpointCmd is the parent command for checkpoint inspection.
var checkpointCmd = &cobra.Command{
	Use:   "checkpoint",
	Short: "Inspect or clear sync checkpoints",
}

var checkpointListCmd = &cobra.Command{
	Use:   "list",
	Short: "List stored checkpoints",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := bootstrap(cmd.Context())
		if err != nil {
			return err
		}
		defer a.Close()

		const page = 100
		after := ""
		for {
			docs, err := a.store.Scan(cmd.Context(), sync.CheckpointCollection, after, page)
			if err != nil {
				return fmt.Errorf("list checkpoints: %w", err)
			}
			for _, doc := range docs {
				var cp sync.Checkpoint
				if err := doc.Decode(&cp); err != nil {
					return fmt.Errorf("decode checkpoint %s: %w", doc.ID, err)
				}
				a.log.Info("Checkpoint",
					zap.String("run_id", cp.RunID),
					zap.String("status", cp.Status),
					zap.Int("group_index", cp.CurrentGroupIndex),
					zap.Int("total_groups", cp.TotalGroups),
					zap.Int("processed", cp.TotalCardsProcessed),
					zap.Int("failed_groups", len(cp.FailedGroups)),
					zap.Time("last_checkpoint", cp.LastCheckpoint),
				)
			}
			if len(docs) < page {
				return nil
			}
			after = docs[len(docs)-1].ID
		}
	},
}

var checkpointShowCmd = &cobra.Command{
	Use:   "show <runId>",
	Short: "Print a stored checkpoint as JSON",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := bootstrap(cmd.Context())
		if err != nil {
			return err
		}
		defer a.Close()

		cp, err := a.engine.Checkpoints().Load(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		if cp == nil {
			return fmt.Errorf("no checkpoint for run %q", args[0])
		}
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(cp)
	},
}

var checkpointClearCmd = &cobra.Command{
	Use:   "clear <runId>",
	Short: "Delete a stored checkpoint so the next run starts over",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := bootstrap(cmd.Context())
		if err != nil {
			return err
		}
		defer a.Close()

		if !confirmDestructiveAction() {
			a.log.Warn("Operation cancelled by user. No changes were made.")
			return nil
		}
		if err := a.engine.Checkpoints().Delete(cmd.Context(), args[0]); err != nil {
			return err
		}
		a.log.Info("Checkpoint cleared", zap.String("run_id", args[0]))
		return nil
	},
}

func init() {
	checkpointClearCmd.Flags().BoolVar(&yesConfirm, "yes", false, "Auto-confirm (non-interactive)")
	checkpointCmd.AddCommand(checkpointListCmd, checkpointShowCmd, checkpointClearCmd)
	RootCmd.AddCommand(checkpointCmd)
}

// confirmDestructiveAction prompts the user for confirmation or uses --yes flag.
func confirmDestructiveAction() bool {
	if yesConfirm {
		fmt.Println("\n✓ Auto-confirmed via --yes flag")
		return true
	}

	fmt.Print("\n⚠️  Type 'yes' to confirm: ")
	reader := bufio.NewReader(os.Stdin)
	response, err := reader.ReadString('\n')
	if err != nil {
		return false
	}

	response = strings.TrimSpace(response)
	return response == "yes"
}
