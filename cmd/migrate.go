package cmd

import (
	"fmt"

	"github.com/mautops/integration-monitor/internal/database"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

// migrateCmd represents the migrate command
var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create or update the database schema",
	Long: `Create or update the tables for integrations, tasks, executions, logs and
the execution event outbox, together with the indexes used by the log and
execution queries.

With --check the schema is only inspected: missing tables are reported and the
command fails without changing anything.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, _, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		logger, err := setupLogger(cfg)
		if err != nil {
			return err
		}
		checkOnly, _ := cmd.Flags().GetBool("check")

		db, err := database.Connect(cfg.Database)
		if err != nil {
			return fmt.Errorf("failed to connect database: %w", err)
		}
		defer database.Close(db)

		if !checkOnly {
			logger.WithField("driver", cfg.Database.Driver).Info("Running database migrations")
			if err := database.Migrate(db); err != nil {
				return fmt.Errorf("failed to run migrations: %w", err)
			}
		}

		stats, err := database.TableStats(db)
		if err != nil {
			return err
		}
		missing := 0
		for _, stat := range stats {
			entry := logger.WithFields(logrus.Fields{"table": stat.Table, "rows": stat.Rows})
			if !stat.Exists {
				missing++
				entry.Warn("Table missing")
				continue
			}
			entry.Info("Table ready")
		}
		if missing > 0 {
			return fmt.Errorf("%d table(s) missing, run migrate without --check", missing)
		}

		logger.Info("Database schema is up to date")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(migrateCmd)

	migrateCmd.Flags().Bool("check", false, "Only report schema status, do not migrate")
}
