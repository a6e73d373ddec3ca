package cmd

import (
	"fmt"

	"github.com/mautops/integration-monitor/internal/container"
	"github.com/mautops/integration-monitor/internal/seed"
	"github.com/spf13/cobra"
)

// seedCmd represents the seed command
var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Load sample data",
	Long: `Load sample integrations with their tasks, one simulated execution per
active integration and the logs produced by it. Integrations whose name
already exists are skipped, so the command can be run repeatedly.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, _, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		logger, err := setupLogger(cfg)
		if err != nil {
			return err
		}

		ctr, err := container.NewContainer(cfg, logger)
		if err != nil {
			return fmt.Errorf("failed to initialize container: %w", err)
		}
		defer ctr.Close()

		seeder := seed.NewSeeder(
			ctr.IntegrationService(),
			ctr.TaskService(),
			ctr.ExecutionService(),
			ctr.LogService(),
			logger,
		)
		result, err := seeder.Run(cmd.Context())
		if err != nil {
			return fmt.Errorf("failed to seed database: %w", err)
		}

		fmt.Fprintf(cmd.OutOrStdout(), "Seeded %d integrations, %d tasks, %d executions, %d logs (%d skipped)\n",
			result.Integrations, result.Tasks, result.Executions, result.Logs, result.Skipped)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(seedCmd)
}
