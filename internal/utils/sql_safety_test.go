package utils_test

import (
	"testing"

	"github.com/mautops/integration-monitor/internal/utils"
	"github.com/stretchr/testify/assert"
)

// TestValidateSortField 测试排序字段白名单格式
func TestValidateSortField(t *testing.T) {
	for _, field := range []string{"name", "created_at", "health_score", "last_execution_start_time", "integrations.name"} {
		assert.NoError(t, utils.ValidateSortField(field), field)
	}
	for _, field := range []string{"", "name;drop", "name desc", "1=1--", "name OR 1"} {
		assert.Error(t, utils.ValidateSortField(field), field)
	}
	assert.Error(t, utils.ValidateSortField("select"))
}

// TestSortOrder 测试排序方向
func TestSortOrder(t *testing.T) {
	assert.NoError(t, utils.ValidateSortOrder("asc"))
	assert.NoError(t, utils.ValidateSortOrder(" DESC "))
	assert.Error(t, utils.ValidateSortOrder("random"))

	assert.Equal(t, "DESC", utils.SanitizeSortOrder("desc", "ASC"))
	assert.Equal(t, "ASC", utils.SanitizeSortOrder("; DROP", "asc"))
}

// TestContainsPattern 测试 LIKE 模式转义
func TestContainsPattern(t *testing.T) {
	assert.Equal(t, "%timeout%", utils.ContainsPattern("Timeout"))
	assert.Equal(t, `%100\%%`, utils.ContainsPattern("100%"))
	assert.Equal(t, `%a\_b%`, utils.ContainsPattern("a_b"))
	assert.Equal(t, `%c:\\tmp%`, utils.ContainsPattern(`C:\tmp`))
}
