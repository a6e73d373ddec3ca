package api

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/mautops/integration-monitor/internal/service"
	"github.com/mautops/integration-monitor/internal/utils"
)

// 日期参数支持的格式
const dateOnlyLayout = "2006-01-02"

// queryInt 解析整数查询参数，缺失或非法时返回 0（由服务层套用默认值）
func queryInt(c *gin.Context, key string) int {
	raw := strings.TrimSpace(c.Query(key))
	if raw == "" {
		return 0
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return 0
	}
	return n
}

// queryBool 解析布尔查询参数
func queryBool(c *gin.Context, key string) bool {
	v, err := strconv.ParseBool(c.Query(key))
	return err == nil && v
}

// queryDate 解析 RFC3339 或 YYYY-MM-DD 格式的日期参数
func queryDate(c *gin.Context, key string) (*time.Time, error) {
	raw := strings.TrimSpace(c.Query(key))
	if raw == "" {
		return nil, nil
	}
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		utc := t.UTC()
		return &utc, nil
	}
	t, err := time.Parse(dateOnlyLayout, raw)
	if err != nil {
		return nil, service.NewFieldError(key, key+" must be RFC3339 or YYYY-MM-DD")
	}
	return &t, nil
}

// pathID 读取并校验路径 ID，非法时写出 400 响应并返回 false
func pathID(c *gin.Context, param string) (string, bool) {
	id := c.Param(param)
	if err := utils.ValidateID(id); err != nil {
		Error(c, http.StatusBadRequest, "Invalid ID format", service.FieldError{Field: param, Message: err.Error()})
		return "", false
	}
	return id, true
}
