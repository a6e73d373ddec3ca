package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/mautops/integration-monitor/internal/service"
)

// 响应状态
const (
	StatusSuccess = "success"
	StatusError   = "error"
)

// Response 统一响应格式
// @Description 统一响应格式，status 为 success 或 error
type Response struct {
	Status     string               `json:"status" example:"success"`
	Message    string               `json:"message,omitempty" example:"Integration created successfully"`
	Data       interface{}          `json:"data,omitempty"`
	Pagination *service.Pagination  `json:"pagination,omitempty"`
	Errors     []service.FieldError `json:"errors,omitempty"`
}

// Success 成功响应
func Success(c *gin.Context, message string, data interface{}) {
	c.JSON(http.StatusOK, Response{
		Status:  StatusSuccess,
		Message: message,
		Data:    data,
	})
}

// Created 创建成功响应
func Created(c *gin.Context, message string, data interface{}) {
	c.JSON(http.StatusCreated, Response{
		Status:  StatusSuccess,
		Message: message,
		Data:    data,
	})
}

// Paginated 分页响应
func Paginated(c *gin.Context, message string, data interface{}, pagination service.Pagination) {
	c.JSON(http.StatusOK, Response{
		Status:     StatusSuccess,
		Message:    message,
		Data:       data,
		Pagination: &pagination,
	})
}

// Error 错误响应
func Error(c *gin.Context, code int, message string, fields ...service.FieldError) {
	statusCode := http.StatusInternalServerError
	if code >= 400 && code < 600 {
		statusCode = code
	}

	c.JSON(statusCode, Response{
		Status:  StatusError,
		Message: message,
		Errors:  fields,
	})
}
