package cmd

import (
	"fmt"

	"github.com/mautops/integration-monitor/internal/container"
	"github.com/mautops/integration-monitor/internal/database"
	"github.com/mautops/integration-monitor/internal/service"
	"github.com/spf13/cobra"
)

// reconcileCmd represents the reconcile command
var reconcileCmd = &cobra.Command{
	Use:   "reconcile",
	Short: "Replay pending execution events",
	Long: `Replay execution events whose integration update has not been applied yet.
Each pending event is applied oldest first, updating the owning integration's
last execution and status. Use --execution to re-apply a single execution.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, _, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		logger, err := setupLogger(cfg)
		if err != nil {
			return err
		}

		db, err := database.Connect(cfg.Database)
		if err != nil {
			return fmt.Errorf("failed to connect database: %w", err)
		}
		ctr := container.NewWithDB(cfg, db, logger)
		defer ctr.Close()

		if executionID, _ := cmd.Flags().GetString("execution"); executionID != "" {
			integration, err := ctr.ExecutionService().Reconcile(cmd.Context(), executionID)
			if err != nil {
				return fmt.Errorf("failed to reconcile execution %s: %w", executionID, err)
			}
			if integration == nil {
				fmt.Fprintf(cmd.OutOrStdout(), "Execution %s reconciled (integration no longer exists)\n", executionID)
				return nil
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Execution %s reconciled: integration %s is %s\n", executionID, integration.ID, integration.Status)
			return nil
		}

		limit, _ := cmd.Flags().GetInt("limit")
		applied, err := ctr.ExecutionService().ReplayPending(cmd.Context(), limit)
		if err != nil {
			return fmt.Errorf("failed to replay pending events: %w", err)
		}

		fmt.Fprintf(cmd.OutOrStdout(), "Applied %d pending execution events\n", applied)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(reconcileCmd)

	reconcileCmd.Flags().Int("limit", service.DefaultReplayBatchSize, "Maximum number of pending events to replay")
	reconcileCmd.Flags().String("execution", "", "Re-apply a single execution instead of replaying pending events")
}
