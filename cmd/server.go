package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"slices"
	"sync"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/mautops/integration-monitor/internal/api"
	"github.com/mautops/integration-monitor/internal/config"
	"github.com/mautops/integration-monitor/internal/container"
	"github.com/mautops/integration-monitor/internal/logging"
	"github.com/mautops/integration-monitor/internal/metrics"
	"github.com/spf13/cobra"
)

// 优雅关闭超时
const shutdownTimeout = 10 * time.Second

// serverCmd represents the server command
var serverCmd = &cobra.Command{
	Use:   "server",
	Short: "Start the API server",
	Long: `Start the Integration Monitor API server.
The server will listen on the configured host and port, serve the REST API
under /api/v1, stream execution lifecycle events on /ws/executions and run
the enabled housekeeping jobs.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, configPath, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		if cmd.Flags().Changed("host") {
			cfg.Server.Host, _ = cmd.Flags().GetString("host")
		}
		if cmd.Flags().Changed("port") {
			cfg.Server.Port, _ = cmd.Flags().GetInt("port")
		}

		logger, err := setupLogger(cfg)
		if err != nil {
			return err
		}
		if config.IsProduction(cfg) {
			gin.SetMode(gin.ReleaseMode)
		}

		ctr, err := container.NewContainer(cfg, logger)
		if err != nil {
			return fmt.Errorf("failed to initialize container: %w", err)
		}
		defer ctr.Close()

		// 链路追踪
		if cfg.Tracing.Enabled {
			if err := api.InitTracing(cmd.Context(), cfg, Version); err != nil {
				return fmt.Errorf("failed to initialize tracing: %w", err)
			}
			defer func() {
				ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
				defer cancel()
				if err := api.ShutdownTracing(ctx); err != nil {
					logger.WithError(err).Warn("Failed to shutdown tracing")
				}
			}()
		}

		// 实时推送
		go ctr.Hub().Run()

		// 指标采集
		collector := metrics.NewCollector(ctr.DB(), time.Duration(cfg.Metrics.CollectInterval)*time.Second, logger)
		collector.Start()
		defer collector.Stop()

		// 后台维护任务
		scheduler, err := ctr.NewHousekeepingScheduler(nil)
		if err != nil {
			return fmt.Errorf("failed to initialize housekeeping scheduler: %w", err)
		}
		scheduler.Start()
		var schedulerMu sync.Mutex
		defer func() {
			schedulerMu.Lock()
			defer schedulerMu.Unlock()
			scheduler.Stop()
		}()

		limiter := api.NewRateLimiter(cfg.RateLimit)

		// 配置热更新（仅在显式指定配置文件时）
		if configPath != "" {
			watcher := config.NewConfigWatcher(cfg, configPath, logger)
			logging.WatchLevel(watcher, logger)
			watcher.OnConfigChange(func(next *config.Config, changed []string) {
				if slices.Contains(changed, config.SectionRateLimit) {
					limiter.Update(next.RateLimit)
				}
				if !slices.Contains(changed, config.SectionHousekeeping) {
					return
				}

				replacement, err := ctr.NewHousekeepingScheduler(&next.Housekeeping)
				if err != nil {
					logger.WithError(err).Error("Invalid housekeeping config, keeping current schedule")
					return
				}
				schedulerMu.Lock()
				defer schedulerMu.Unlock()
				scheduler.Stop()
				scheduler = replacement
				scheduler.Start()
			})
			if err := watcher.Start(); err != nil {
				logger.WithError(err).Warn("Config watcher disabled")
			} else {
				defer watcher.Stop()
			}
		}

		router := api.SetupRoutes(api.RouterOptions{
			Config: cfg,
			DB:     ctr.DB(),
			Logger: logger,
			Hub:    ctr.Hub(),
			Services: api.Services{
				Integration: ctr.IntegrationService(),
				Task:        ctr.TaskService(),
				Execution:   ctr.ExecutionService(),
				Log:         ctr.LogService(),
			},
			Version:     Version,
			RateLimiter: limiter,
		})

		addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
		srv := &http.Server{
			Addr:         addr,
			Handler:      router,
			ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
			WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
		}

		serverErr := make(chan error, 1)
		go func() {
			logger.WithField("addr", addr).Info("Server starting")
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				serverErr <- err
			}
			close(serverErr)
		}()

		// 等待中断信号
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
		defer signal.Stop(quit)

		select {
		case err, ok := <-serverErr:
			if ok {
				return fmt.Errorf("failed to start server: %w", err)
			}
		case sig := <-quit:
			logger.WithField("signal", sig.String()).Info("Shutting down server")
		}

		ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(ctx); err != nil {
			return fmt.Errorf("server forced to shutdown: %w", err)
		}

		logger.Info("Server exited")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(serverCmd)

	serverCmd.Flags().String("host", "0.0.0.0", "Server host")
	serverCmd.Flags().Int("port", 5000, "Server port")
}
