package api

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/mautops/integration-monitor/internal/logging"
	"github.com/mautops/integration-monitor/internal/service"
	"github.com/sirupsen/logrus"
)

// StatusForKind 错误分类对应的 HTTP 状态码
func StatusForKind(kind service.ErrorKind) int {
	switch kind {
	case service.KindValidation, service.KindInvalidState:
		return http.StatusBadRequest
	case service.KindNotFound:
		return http.StatusNotFound
	case service.KindDuplicateKey:
		return http.StatusConflict
	case service.KindStorageUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// HandleError 将服务层错误写为统一错误响应
func HandleError(c *gin.Context, err error) {
	var svcErr *service.Error
	if !errors.As(err, &svcErr) {
		svcErr = &service.Error{Kind: service.KindInternal, Message: "Internal server error", Err: err}
	}

	// 挂到上下文，访问日志输出 5xx 的错误详情
	if err != nil {
		_ = c.Error(err)
	}

	status := StatusForKind(svcErr.Kind)
	message := svcErr.Message
	if status >= http.StatusInternalServerError {
		logging.GetLogger().WithFields(logrus.Fields{
			"request_id": c.GetString(RequestIDKey),
			"kind":       svcErr.Kind,
		}).WithError(err).Error("Request failed")

		// 内部错误不向调用方暴露细节
		if svcErr.Kind == service.KindInternal {
			message = "Internal server error"
		}
	}

	Error(c, status, message, svcErr.Fields...)
}
