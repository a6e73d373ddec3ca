package container

import (
	"fmt"
	"time"

	"github.com/mautops/integration-monitor/internal/config"
	"github.com/mautops/integration-monitor/internal/database"
	"github.com/mautops/integration-monitor/internal/service"
	"github.com/mautops/integration-monitor/internal/websocket"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// Container 依赖注入容器
// 管理数据库、实时推送 Hub 与各业务服务
type Container struct {
	cfg    *config.Config
	db     *gorm.DB
	logger *logrus.Logger
	hub    *websocket.Hub

	integrationService service.IntegrationService
	taskService        service.TaskService
	executionService   service.ExecutionService
	logService         service.LogService
}

// NewContainer 创建依赖注入容器
// 连接数据库（带重试）、执行迁移并初始化服务
func NewContainer(cfg *config.Config, logger *logrus.Logger) (*Container, error) {
	// 默认重试 3 次，初始间隔 1 秒，指数退避
	db, err := database.ConnectWithRetry(cfg.Database, 3, time.Second)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	if err := database.Migrate(db); err != nil {
		database.Close(db)
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return NewWithDB(cfg, db, logger), nil
}

// NewWithDB 基于已有连接创建容器（测试与命令行工具使用）
func NewWithDB(cfg *config.Config, db *gorm.DB, logger *logrus.Logger) *Container {
	if cfg == nil {
		cfg = config.Default()
	}
	if logger == nil {
		logger = logrus.StandardLogger()
	}

	hub := websocket.NewHub(logger)
	opts := []service.Option{
		service.WithLogger(logger),
	}

	return &Container{
		cfg:                cfg,
		db:                 db,
		logger:             logger,
		hub:                hub,
		integrationService: service.NewIntegrationService(db, opts...),
		taskService:        service.NewTaskService(db, opts...),
		executionService:   service.NewExecutionService(db, append(opts, service.WithPublisher(hub))...),
		logService:         service.NewLogService(db, opts...),
	}
}

// Config 获取配置
func (c *Container) Config() *config.Config {
	return c.cfg
}

// DB 获取数据库连接
func (c *Container) DB() *gorm.DB {
	return c.db
}

// Logger 获取日志记录器
func (c *Container) Logger() *logrus.Logger {
	return c.logger
}

// Hub 获取实时推送 Hub
func (c *Container) Hub() *websocket.Hub {
	return c.hub
}

// IntegrationService 获取集成服务
func (c *Container) IntegrationService() service.IntegrationService {
	return c.integrationService
}

// TaskService 获取任务服务
func (c *Container) TaskService() service.TaskService {
	return c.taskService
}

// ExecutionService 获取执行服务
func (c *Container) ExecutionService() service.ExecutionService {
	return c.executionService
}

// LogService 获取日志服务
func (c *Container) LogService() service.LogService {
	return c.logService
}

// NewHousekeepingScheduler 创建后台维护调度器，cfg 为空时使用容器配置
func (c *Container) NewHousekeepingScheduler(cfg *config.HousekeepingConfig) (*service.HousekeepingScheduler, error) {
	if cfg == nil {
		cfg = &c.cfg.Housekeeping
	}
	return service.NewHousekeepingScheduler(
		c.logService,
		c.executionService,
		cfg,
		service.WithLogger(c.logger),
	)
}

// Close 关闭容器,清理资源
func (c *Container) Close() error {
	c.hub.Stop()
	return database.Close(c.db)
}
