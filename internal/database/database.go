package database

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/mautops/integration-monitor/internal/config"
	"github.com/mautops/integration-monitor/internal/model"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// 支持的数据库驱动
const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

// PoolConfig 连接池配置
type PoolConfig struct {
	MaxIdleConns    int
	MaxOpenConns    int
	ConnMaxLifetime int // 秒
	ConnMaxIdleTime int // 秒
}

// BuildDSN 构建 PostgreSQL DSN
func BuildDSN(cfg config.DatabaseConfig) string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		cfg.Host, cfg.Port, cfg.User, cfg.Password, cfg.DBName, cfg.SSLMode)
}

// BuildSQLiteDSN 构建 SQLite DSN，已带参数的路径原样返回
func BuildSQLiteDSN(path string) string {
	if strings.Contains(path, "?") {
		return path
	}
	return path + "?_busy_timeout=5000&_foreign_keys=on"
}

// GetPoolConfig 获取连接池配置
func GetPoolConfig() *PoolConfig {
	return &PoolConfig{
		MaxIdleConns:    10,
		MaxOpenConns:    100,
		ConnMaxLifetime: 3600, // 1 小时
		ConnMaxIdleTime: 600,  // 10 分钟
	}
}

// resolvePoolConfig 合并配置值与默认值
func resolvePoolConfig(cfg config.DatabaseConfig) *PoolConfig {
	pool := GetPoolConfig()
	if cfg.MaxIdleConns > 0 {
		pool.MaxIdleConns = cfg.MaxIdleConns
	}
	if cfg.MaxOpenConns > 0 {
		pool.MaxOpenConns = cfg.MaxOpenConns
	}
	if cfg.ConnMaxLifetime > 0 {
		pool.ConnMaxLifetime = cfg.ConnMaxLifetime
	}
	if cfg.ConnMaxIdleTime > 0 {
		pool.ConnMaxIdleTime = cfg.ConnMaxIdleTime
	}
	return pool
}

// Connect 连接数据库
func Connect(cfg config.DatabaseConfig) (*gorm.DB, error) {
	var dialector gorm.Dialector
	switch cfg.Driver {
	case DriverSQLite:
		dialector = sqlite.Open(BuildSQLiteDSN(cfg.Path))
	case DriverPostgres, "":
		dialector = postgres.Open(BuildDSN(cfg))
	default:
		return nil, fmt.Errorf("unsupported database driver: %s", cfg.Driver)
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		// 唯一约束冲突统一转换为 gorm.ErrDuplicatedKey
		TranslateError: true,
		Logger:         logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get sql.DB: %w", err)
	}

	pool := resolvePoolConfig(cfg)
	sqlDB.SetMaxIdleConns(pool.MaxIdleConns)
	sqlDB.SetMaxOpenConns(pool.MaxOpenConns)
	sqlDB.SetConnMaxLifetime(time.Duration(pool.ConnMaxLifetime) * time.Second)
	sqlDB.SetConnMaxIdleTime(time.Duration(pool.ConnMaxIdleTime) * time.Second)

	return db, nil
}

// ConnectWithRetry 带重试的数据库连接
func ConnectWithRetry(cfg config.DatabaseConfig, maxRetries int, retryInterval time.Duration) (*gorm.DB, error) {
	var db *gorm.DB
	var err error

	for i := 0; i < maxRetries; i++ {
		db, err = Connect(cfg)
		if err == nil && CheckHealth(db) {
			return db, nil
		}
		if err == nil {
			err = fmt.Errorf("database ping failed")
			Close(db)
		}

		if i < maxRetries-1 {
			time.Sleep(retryInterval)
			retryInterval *= 2 // 指数退避
		}
	}

	return nil, fmt.Errorf("failed to connect database after %d retries: %w", maxRetries, err)
}

// Models 需要迁移的全部模型
func Models() []interface{} {
	return []interface{}{
		&model.IntegrationModel{},
		&model.TaskModel{},
		&model.ExecutionModel{},
		&model.LogModel{},
		&model.ExecutionEventModel{},
	}
}

// Migrate 执行数据库迁移
func Migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(Models()...); err != nil {
		return fmt.Errorf("failed to auto migrate: %w", err)
	}

	if err := CreateIndexes(db); err != nil {
		return fmt.Errorf("failed to create indexes: %w", err)
	}

	return nil
}

// TableStat 数据表状态
type TableStat struct {
	Table  string
	Exists bool
	Rows   int64
}

// TableStats 返回全部模型对应数据表的存在情况与行数
func TableStats(db *gorm.DB) ([]TableStat, error) {
	stats := make([]TableStat, 0, len(Models()))
	for _, m := range Models() {
		stmt := &gorm.Statement{DB: db}
		if err := stmt.Parse(m); err != nil {
			return nil, fmt.Errorf("failed to parse model: %w", err)
		}

		stat := TableStat{Table: stmt.Schema.Table, Exists: db.Migrator().HasTable(m)}
		if stat.Exists {
			if err := db.Model(m).Count(&stat.Rows).Error; err != nil {
				return nil, fmt.Errorf("failed to count %s: %w", stat.Table, err)
			}
		}
		stats = append(stats, stat)
	}
	return stats, nil
}

// indexStatement 索引创建语句
type indexStatement struct {
	name string
	sql  string
}

// CreateIndexes 创建模型标签之外的索引
func CreateIndexes(db *gorm.DB) error {
	statements := []indexStatement{
		{"idx_integrations_frequency", "CREATE INDEX IF NOT EXISTS idx_integrations_frequency ON integrations(frequency)"},
		{"idx_executions_integration_status", "CREATE INDEX IF NOT EXISTS idx_executions_integration_status ON executions(integration_id, status)"},
		{"idx_execution_events_status_created", "CREATE INDEX IF NOT EXISTS idx_execution_events_status_created ON execution_events(status, created_at)"},
		{"idx_logs_integration_level", "CREATE INDEX IF NOT EXISTS idx_logs_integration_level ON logs(integration_id, level)"},
	}

	// PostgreSQL 特定的 GIN 索引
	if IsPostgres(db) {
		statements = append(statements,
			indexStatement{"idx_integrations_tags_gin", "CREATE INDEX IF NOT EXISTS idx_integrations_tags_gin ON integrations USING GIN (tags)"},
			indexStatement{"idx_logs_details_gin", "CREATE INDEX IF NOT EXISTS idx_logs_details_gin ON logs USING GIN (details)"},
		)
	}

	for _, stmt := range statements {
		if err := db.Exec(stmt.sql).Error; err != nil {
			return fmt.Errorf("failed to create %s: %w", stmt.name, err)
		}
	}
	return nil
}

// IsSQLite 判断是否为 SQLite
func IsSQLite(db *gorm.DB) bool {
	name := db.Dialector.Name()
	return name == "sqlite" || name == "sqlite3"
}

// IsPostgres 判断是否为 PostgreSQL
func IsPostgres(db *gorm.DB) bool {
	return db.Dialector.Name() == "postgres"
}

// JSONTextExpr 返回读取 JSON 列中某个顶层键的文本值的 SQL 表达式
func JSONTextExpr(db *gorm.DB, column, key string) string {
	switch {
	case IsPostgres(db):
		return fmt.Sprintf("%s->>'%s'", column, key)
	case IsSQLite(db):
		return fmt.Sprintf("json_extract(%s, '$.%s')", column, key)
	default:
		return fmt.Sprintf("JSON_UNQUOTE(JSON_EXTRACT(%s, '$.%s'))", column, key)
	}
}

// CheckHealth 检查数据库连接健康状态
func CheckHealth(db *gorm.DB) bool {
	return Ping(context.Background(), db) == nil
}

// Ping 在超时内探测连接池
func Ping(ctx context.Context, db *gorm.DB) error {
	if db == nil {
		return fmt.Errorf("database not initialized")
	}

	sqlDB, err := db.DB()
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	return sqlDB.PingContext(ctx)
}

// Close 关闭数据库连接
func Close(db *gorm.DB) error {
	if db == nil {
		return nil
	}
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
