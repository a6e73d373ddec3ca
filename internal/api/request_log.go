package api

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/mautops/integration-monitor/internal/metrics"
	"github.com/sirupsen/logrus"
)

// 路由参数到日志字段的映射
var requestLogParams = map[string]string{
	"id":            "resource_id",
	"integrationId": "integration_id",
	"executionId":   "execution_id",
	"taskId":        "task_id",
}

// RequestLogMiddleware 记录访问日志与请求指标
func RequestLogMiddleware(logger *logrus.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		elapsed := time.Since(start)

		status := c.Writer.Status()
		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		// 指标按路由聚合
		metrics.RecordAPIRequest(c.Request.Method, route, status, elapsed.Seconds())

		fields := logrus.Fields{
			"request_id":  c.GetString(RequestIDKey),
			"method":      c.Request.Method,
			"route":       route,
			"path":        c.Request.URL.Path,
			"status":      status,
			"duration_ms": elapsed.Milliseconds(),
			"client_ip":   c.ClientIP(),
		}
		for _, p := range c.Params {
			if key, ok := requestLogParams[p.Key]; ok {
				fields[key] = p.Value
			}
		}
		entry := logger.WithFields(fields)

		switch {
		case status >= 500:
			entry.WithField("errors", c.Errors.String()).Error("Request completed")
		case status >= 400:
			entry.Warn("Request completed")
		case opsPaths[c.Request.URL.Path]:
			entry.Debug("Request completed")
		default:
			entry.Info("Request completed")
		}
	}
}
