package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/mautops/integration-monitor/internal/config"
	"github.com/mautops/integration-monitor/internal/logging"
	"github.com/mautops/integration-monitor/internal/metrics"
	"github.com/mautops/integration-monitor/internal/service"
	"github.com/mautops/integration-monitor/internal/websocket"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// Services 路由依赖的业务服务
type Services struct {
	Integration service.IntegrationService
	Task        service.TaskService
	Execution   service.ExecutionService
	Log         service.LogService
}

// RouterOptions 路由配置
type RouterOptions struct {
	Config   *config.Config
	DB       *gorm.DB
	Logger   *logrus.Logger
	Hub      *websocket.Hub // 为空时不注册 /ws/executions
	Services Services
	Version  string

	// RateLimiter 为空时按 Config.RateLimit 创建，传入时可在运行时更新参数
	RateLimiter *RateLimiter
}

// SetupRoutes 配置中间件与全部路由
func SetupRoutes(opts RouterOptions) *gin.Engine {
	cfg := opts.Config
	if cfg == nil {
		cfg = config.Default()
	}
	logger := opts.Logger
	if logger == nil {
		logger = logging.GetLogger()
	}

	RegisterValidator()

	router := gin.New()

	// 中间件
	router.Use(gin.Recovery())
	router.Use(RequestIDMiddleware())
	if cfg.Tracing.Enabled {
		router.Use(TracingMiddleware(cfg.Tracing.ServiceName))
	}
	router.Use(RequestLogMiddleware(logger))
	router.Use(SecurityHeadersMiddleware(config.IsProduction(cfg)))
	router.Use(CORSMiddleware(cfg.CORS))
	limiter := opts.RateLimiter
	if limiter == nil {
		limiter = NewRateLimiter(cfg.RateLimit)
	}
	router.Use(limiter.Middleware())

	// 运维端点
	healthController := NewHealthController(opts.DB, opts.Version)
	router.GET("/", healthController.Root)
	router.GET("/health", healthController.Check)
	router.GET("/metrics", gin.WrapH(metrics.Handler()))

	if opts.Hub != nil {
		router.GET("/ws/executions", websocket.WebSocketHandler(opts.Hub, websocket.NewUpgrader(cfg.CORS.AllowedOrigins)))
	}

	integrationController := NewIntegrationController(opts.Services.Integration)
	taskController := NewTaskController(opts.Services.Task)
	executionController := NewExecutionController(opts.Services.Execution)
	logController := NewLogController(opts.Services.Log)

	v1 := router.Group("/api/v1")
	{
		integrations := v1.Group("/integrations")
		{
			integrations.POST("", integrationController.Create)
			integrations.GET("", integrationController.List)
			integrations.GET("/stats/overview", integrationController.Stats)
			integrations.GET("/:id", integrationController.Get)
			integrations.PUT("/:id", integrationController.Update)
			integrations.DELETE("/:id", integrationController.Delete)
			integrations.PATCH("/:id/status", integrationController.SetStatus)
		}

		tasks := v1.Group("/tasks")
		{
			tasks.POST("", taskController.Create)
			tasks.GET("/integration/:integrationId", taskController.ListByIntegration)
			tasks.PUT("/order/update", taskController.Reorder)
			tasks.GET("/:id", taskController.Get)
			tasks.PUT("/:id", taskController.Update)
			tasks.DELETE("/:id", taskController.Delete)
			tasks.PATCH("/:id/status", taskController.SetStatus)
		}

		executions := v1.Group("/executions")
		{
			executions.POST("/integration/:integrationId", executionController.Start)
			executions.GET("/integration/:integrationId", executionController.ListByIntegration)
			executions.GET("/recent/all", executionController.Recent)
			executions.GET("/:executionId", executionController.Get)
			executions.PUT("/:executionId/complete", executionController.Complete)
			executions.PUT("/:executionId/cancel", executionController.Cancel)
			executions.PUT("/:executionId/summary", executionController.RecordTaskOutcome)
			executions.PUT("/:executionId/reconcile", executionController.Reconcile)
		}

		logs := v1.Group("/logs")
		{
			logs.POST("", logController.Create)
			logs.GET("/execution/:executionId", logController.ListByExecution)
			logs.GET("/task/:taskId", logController.ListByTask)
			logs.GET("/integration/:integrationId", logController.ListByIntegration)
			logs.GET("/integration/:integrationId/errors", logController.RecentErrors)
			logs.GET("/integration/:integrationId/distribution", logController.LevelDistribution)
		}
	}

	// 未匹配的路由返回 JSON 格式的 404
	router.NoRoute(func(c *gin.Context) {
		Error(c, http.StatusNotFound, "Route not found")
	})

	return router
}
