package api

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/mautops/integration-monitor/internal/database"
	"github.com/mautops/integration-monitor/internal/logging"
	"gorm.io/gorm"
)

// HealthController 健康检查控制器
type HealthController struct {
	db      *gorm.DB
	version string
	now     func() time.Time
}

// NewHealthController 创建健康检查控制器
func NewHealthController(db *gorm.DB, version string) *HealthController {
	return &HealthController{
		db:      db,
		version: version,
		now:     time.Now,
	}
}

// Root 服务信息
// @Summary      服务信息
// @Tags         运维
// @Produce      json
// @Success      200  {object}  Response
// @Router       / [get]
func (c *HealthController) Root(ctx *gin.Context) {
	Success(ctx, "Integration monitor API is running", gin.H{
		"service": logging.ServiceName,
		"version": c.version,
		"docs":    "/api/v1",
	})
}

// Check 健康检查
// @Summary      健康检查
// @Description  检查数据库连接
// @Tags         运维
// @Produce      json
// @Success      200  {object}  Response
// @Failure      503  {object}  Response
// @Router       /health [get]
func (c *HealthController) Check(ctx *gin.Context) {
	status := "healthy"
	checks := make(map[string]string)

	if c.db != nil {
		if err := c.checkDatabase(ctx.Request.Context()); err != nil {
			status = "unhealthy"
			checks["database"] = "unhealthy: " + err.Error()
		} else {
			checks["database"] = "healthy"
		}
	} else {
		status = "unhealthy"
		checks["database"] = "not configured"
	}

	data := gin.H{
		"status":    status,
		"timestamp": c.now().UTC().Format(time.RFC3339),
		"checks":    checks,
	}

	if status == "unhealthy" {
		ctx.JSON(http.StatusServiceUnavailable, Response{
			Status:  StatusError,
			Message: "Service unhealthy",
			Data:    data,
		})
		return
	}

	Success(ctx, "Service healthy", data)
}

// checkDatabase 检查数据库连接（Ping 自带超时）
func (c *HealthController) checkDatabase(ctx context.Context) error {
	return database.Ping(ctx, c.db)
}
