package database_test

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/mautops/integration-monitor/internal/config"
	"github.com/mautops/integration-monitor/internal/database"
	"github.com/mautops/integration-monitor/internal/model"
	"github.com/mautops/integration-monitor/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestBuildDSN 测试 DSN 构建
func TestBuildDSN(t *testing.T) {
	dsn := database.BuildDSN(config.DatabaseConfig{
		Host: "localhost", Port: 5432, User: "postgres", Password: "secret", DBName: "monitor", SSLMode: "disable",
	})
	assert.Equal(t, "host=localhost port=5432 user=postgres password=secret dbname=monitor sslmode=disable", dsn)

	assert.Equal(t, "data.db?_busy_timeout=5000&_foreign_keys=on", database.BuildSQLiteDSN("data.db"))
	assert.Equal(t, "file::memory:?cache=shared", database.BuildSQLiteDSN("file::memory:?cache=shared"))
}

// TestConnect_UnsupportedDriver 测试不支持的驱动
func TestConnect_UnsupportedDriver(t *testing.T) {
	_, err := database.Connect(config.DatabaseConfig{Driver: "oracle"})
	assert.Error(t, err)
}

// TestMigrate 测试迁移创建全部表
func TestMigrate(t *testing.T) {
	db := testutil.NewTestDB(t)

	for _, m := range database.Models() {
		assert.True(t, db.Migrator().HasTable(m))
	}
	assert.True(t, database.IsSQLite(db))
	assert.False(t, database.IsPostgres(db))

	// 重复迁移是幂等的
	require.NoError(t, database.Migrate(db))
}

// TestJSONTextExpr 测试 JSON 字段提取表达式
func TestJSONTextExpr(t *testing.T) {
	db := testutil.NewTestDB(t)
	assert.Equal(t, "json_extract(details, '$.message')", database.JSONTextExpr(db, "details", "message"))

	entry := &model.LogModel{
		ID:            "log-1",
		ExecutionID:   "exec-1",
		IntegrationID: "integration-1",
		Level:         model.LogLevelError,
		Message:       "failed",
		Source:        model.DefaultLogSource,
		Details:       map[string]interface{}{"message": "disk full"},
	}
	require.NoError(t, db.Create(entry).Error)

	var extracted string
	require.NoError(t, db.Model(&model.LogModel{}).
		Select(database.JSONTextExpr(db, "details", "message")).
		Where("id = ?", entry.ID).
		Scan(&extracted).Error)
	assert.Equal(t, "disk full", extracted)
}

// TestPingAndClose 测试健康检查与关闭
func TestPingAndClose(t *testing.T) {
	db, err := database.ConnectWithRetry(config.DatabaseConfig{
		Driver: database.DriverSQLite,
		Path:   filepath.Join(t.TempDir(), "ping.db"),
	}, 1, 0)
	require.NoError(t, err)

	assert.NoError(t, database.Ping(context.Background(), db))
	assert.True(t, database.CheckHealth(db))

	require.NoError(t, database.Close(db))
	assert.Error(t, database.Ping(context.Background(), db))
	assert.Error(t, database.Ping(context.Background(), nil))
}

// TestTableStats 测试数据表状态统计
func TestTableStats(t *testing.T) {
	db, err := database.Connect(config.DatabaseConfig{
		Driver: database.DriverSQLite,
		Path:   filepath.Join(t.TempDir(), "stats.db"),
	})
	require.NoError(t, err)
	defer database.Close(db)

	stats, err := database.TableStats(db)
	require.NoError(t, err)
	require.Len(t, stats, len(database.Models()))
	for _, stat := range stats {
		assert.False(t, stat.Exists, stat.Table)
	}

	require.NoError(t, database.Migrate(db))
	require.NoError(t, db.Exec("INSERT INTO integrations (id, name, type, source, destination, status, frequency, health_score, created_at, updated_at) VALUES ('i-1', 'Stats', 'API', 's', 'd', 'active', 'daily', 100, CURRENT_TIMESTAMP, CURRENT_TIMESTAMP)").Error)

	stats, err = database.TableStats(db)
	require.NoError(t, err)
	assert.Equal(t, "integrations", stats[0].Table)
	assert.True(t, stats[0].Exists)
	assert.Equal(t, int64(1), stats[0].Rows)
}
