package cmd

import (
	"fmt"
	"time"

	"github.com/mautops/integration-monitor/internal/container"
	"github.com/mautops/integration-monitor/internal/database"
	"github.com/spf13/cobra"
)

// purgeLogsCmd represents the purge-logs command
var purgeLogsCmd = &cobra.Command{
	Use:   "purge-logs",
	Short: "Delete old execution logs",
	Long: `Delete execution logs older than the given age.
Without --integration the purge covers all integrations. With --all the
integration's logs are removed regardless of age.

Examples:
  integration-monitor purge-logs --older-than 720h
  integration-monitor purge-logs --integration <id> --older-than 168h
  integration-monitor purge-logs --integration <id> --all`,
	RunE: func(cmd *cobra.Command, args []string) error {
		integrationID, _ := cmd.Flags().GetString("integration")
		olderThan, _ := cmd.Flags().GetDuration("older-than")
		all, _ := cmd.Flags().GetBool("all")

		if all && integrationID == "" {
			return fmt.Errorf("--all requires --integration")
		}
		if !all && olderThan <= 0 {
			return fmt.Errorf("--older-than must be positive")
		}

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

		logService := ctr.LogService()
		cutoff := time.Now().UTC().Add(-olderThan)

		var deleted int64
		switch {
		case all:
			deleted, err = logService.ClearForIntegration(cmd.Context(), integrationID)
		case integrationID != "":
			deleted, err = logService.DeleteOlderThan(cmd.Context(), integrationID, cutoff)
		default:
			deleted, err = logService.PurgeOlderThan(cmd.Context(), cutoff)
		}
		if err != nil {
			return fmt.Errorf("failed to purge logs: %w", err)
		}

		fmt.Fprintf(cmd.OutOrStdout(), "Deleted %d logs\n", deleted)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(purgeLogsCmd)

	purgeLogsCmd.Flags().String("integration", "", "Only purge logs of this integration")
	purgeLogsCmd.Flags().Duration("older-than", 30*24*time.Hour, "Delete logs older than this age (e.g. 720h)")
	purgeLogsCmd.Flags().Bool("all", false, "Delete all logs of the integration regardless of age")
}
