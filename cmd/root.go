package cmd

import (
	"fmt"
	"os"

	"github.com/mautops/integration-monitor/internal/config"
	"github.com/mautops/integration-monitor/internal/logging"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

// Version 构建版本，由 -ldflags 注入
var Version = "dev"

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "integration-monitor",
	Short: "Integration pipeline monitor",
	Long: `Integration Monitor tracks data-integration pipelines.
It records integration definitions and their ordered tasks, the
executions reported by external runners and the structured logs
produced during each execution.`,
	SilenceUsage: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().String("config", "", "Config file path (default: search in current directory, ./config, or $HOME/.integration-monitor)")
}

// GetRootCmd 返回根命令（用于测试）
func GetRootCmd() *cobra.Command {
	return rootCmd
}

// loadConfig 读取 --config 并加载配置
func loadConfig(cmd *cobra.Command) (*config.Config, string, error) {
	configPath, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, "", fmt.Errorf("failed to load config: %w", err)
	}
	return cfg, configPath, nil
}

// setupLogger 根据配置创建日志记录器并设为默认
func setupLogger(cfg *config.Config) (*logrus.Logger, error) {
	logger, err := logging.NewLoggerFromConfig(&cfg.Log)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}
	logging.SetLogger(logger)
	return logger, nil
}
