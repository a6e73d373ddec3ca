package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/mautops/integration-monitor/internal/config"
	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
)

// 单次维护任务的超时时间
const housekeepingJobTimeout = 5 * time.Minute

// HousekeepingScheduler 后台维护调度器（日志保留清理、待处理事件重放）
type HousekeepingScheduler struct {
	logService       LogService
	executionService ExecutionService
	config           *config.HousekeepingConfig
	logger           *logrus.Logger
	now              func() time.Time

	cron    *cron.Cron
	mu      sync.Mutex
	started bool
}

// NewHousekeepingScheduler 创建维护调度器，cron 表达式非法时返回错误
func NewHousekeepingScheduler(
	logService LogService,
	executionService ExecutionService,
	cfg *config.HousekeepingConfig,
	opts ...Option,
) (*HousekeepingScheduler, error) {
	if cfg == nil {
		cfg = &config.HousekeepingConfig{}
	}
	o := newOptions(opts)

	parser := cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)
	s := &HousekeepingScheduler{
		logService:       logService,
		executionService: executionService,
		config:           cfg,
		logger:           o.logger,
		now:              o.now,
		cron: cron.New(
			cron.WithParser(parser),
			cron.WithLocation(time.UTC),
			cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger)),
		),
	}

	if cfg.LogRetentionEnabled {
		if cfg.LogRetentionDays < 1 {
			return nil, fmt.Errorf("log_retention_days must be positive, got %d", cfg.LogRetentionDays)
		}
		if _, err := s.cron.AddFunc(cfg.LogRetentionSchedule, s.runWithTimeout("log_retention", s.RunLogRetention)); err != nil {
			return nil, fmt.Errorf("invalid log retention schedule %q: %w", cfg.LogRetentionSchedule, err)
		}
	}

	if cfg.ReconcileEnabled {
		if _, err := s.cron.AddFunc(cfg.ReconcileSchedule, s.runWithTimeout("reconcile", s.RunReconcile)); err != nil {
			return nil, fmt.Errorf("invalid reconcile schedule %q: %w", cfg.ReconcileSchedule, err)
		}
	}

	return s, nil
}

// Start 启动调度器，没有启用的任务时不启动
func (s *HousekeepingScheduler) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started || len(s.cron.Entries()) == 0 {
		return
	}
	s.cron.Start()
	s.started = true

	s.logger.WithFields(logrus.Fields{
		"log_retention": s.config.LogRetentionEnabled,
		"reconcile":     s.config.ReconcileEnabled,
	}).Info("Housekeeping scheduler started")
}

// Stop 停止调度器并等待正在运行的任务结束
func (s *HousekeepingScheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.started {
		return
	}
	<-s.cron.Stop().Done()
	s.started = false
	s.logger.Info("Housekeeping scheduler stopped")
}

// Jobs 已注册的任务数
func (s *HousekeepingScheduler) Jobs() int {
	return len(s.cron.Entries())
}

// RunLogRetention 删除早于保留天数的日志
func (s *HousekeepingScheduler) RunLogRetention(ctx context.Context) error {
	days := s.config.LogRetentionDays
	if days < 1 {
		return fmt.Errorf("log_retention_days must be positive, got %d", days)
	}

	cutoff := s.now().AddDate(0, 0, -days)
	deleted, err := s.logService.PurgeOlderThan(ctx, cutoff)
	if err != nil {
		return fmt.Errorf("failed to purge logs: %w", err)
	}

	s.logger.WithFields(logrus.Fields{
		"retention_days": days,
		"deleted":        deleted,
	}).Info("Log retention completed")
	return nil
}

// RunReconcile 重放待处理的执行事件
func (s *HousekeepingScheduler) RunReconcile(ctx context.Context) error {
	applied, err := s.executionService.ReplayPending(ctx, s.config.ReconcileBatchSize)
	if err != nil {
		return fmt.Errorf("failed to replay pending events: %w", err)
	}

	if applied > 0 {
		s.logger.WithField("applied", applied).Info("Pending execution events replayed")
	}
	return nil
}

func (s *HousekeepingScheduler) runWithTimeout(job string, fn func(context.Context) error) func() {
	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), housekeepingJobTimeout)
		defer cancel()

		if err := fn(ctx); err != nil {
			s.logger.WithError(err).WithField("job", job).Error("Housekeeping job failed")
		}
	}
}
