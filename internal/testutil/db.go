// Package testutil 测试辅助工具
package testutil

import (
	"path/filepath"
	"testing"

	"github.com/mautops/integration-monitor/internal/config"
	"github.com/mautops/integration-monitor/internal/database"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

// NewTestDB 创建已迁移的临时 SQLite 数据库，测试结束时自动关闭
func NewTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := database.Connect(config.DatabaseConfig{
		Driver: database.DriverSQLite,
		Path:   filepath.Join(t.TempDir(), "test.db"),
	})
	require.NoError(t, err)
	require.NoError(t, database.Migrate(db))

	t.Cleanup(func() {
		_ = database.Close(db)
	})
	return db
}
