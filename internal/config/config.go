package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/viper"
)

// Config 应用配置
type Config struct {
	Env          string             `mapstructure:"env"` // 环境: development, production
	Server       ServerConfig       `mapstructure:"server"`
	Database     DatabaseConfig     `mapstructure:"database"`
	CORS         CORSConfig         `mapstructure:"cors"`
	Log          LogConfig          `mapstructure:"log"`
	RateLimit    RateLimitConfig    `mapstructure:"rate_limit"`
	Tracing      TracingConfig      `mapstructure:"tracing"`
	Metrics      MetricsConfig      `mapstructure:"metrics"`
	Housekeeping HousekeepingConfig `mapstructure:"housekeeping"`
}

// ServerConfig 服务器配置
type ServerConfig struct {
	Host         string `mapstructure:"host"`
	Port         int    `mapstructure:"port"`
	ReadTimeout  int    `mapstructure:"read_timeout"`  // 秒
	WriteTimeout int    `mapstructure:"write_timeout"` // 秒
}

// DatabaseConfig 数据库配置
type DatabaseConfig struct {
	Driver          string `mapstructure:"driver"` // postgres, sqlite
	Host            string `mapstructure:"host"`
	Port            int    `mapstructure:"port"`
	User            string `mapstructure:"user"`
	Password        string `mapstructure:"password"`
	DBName          string `mapstructure:"dbname"`
	SSLMode         string `mapstructure:"sslmode"`
	Path            string `mapstructure:"path"` // SQLite 文件路径或 DSN
	MaxIdleConns    int    `mapstructure:"max_idle_conns"`
	MaxOpenConns    int    `mapstructure:"max_open_conns"`
	ConnMaxLifetime int    `mapstructure:"conn_max_lifetime"`  // 秒
	ConnMaxIdleTime int    `mapstructure:"conn_max_idle_time"` // 秒
}

// CORSConfig CORS 配置
type CORSConfig struct {
	AllowedOrigins []string `mapstructure:"allowed_origins"`
	AllowedMethods []string `mapstructure:"allowed_methods"`
	AllowedHeaders []string `mapstructure:"allowed_headers"`
	MaxAge         int      `mapstructure:"max_age"`
}

// LogConfig 日志配置
type LogConfig struct {
	Level  string `mapstructure:"level"`  // 日志级别: debug, info, warn, error
	Format string `mapstructure:"format"` // 日志格式: json, text
	Output string `mapstructure:"output"` // 输出位置: stdout, file, both
	Dir    string `mapstructure:"dir"`    // 日志文件目录
}

// RateLimitConfig 限流配置
type RateLimitConfig struct {
	Enabled bool    `mapstructure:"enabled"`
	RPS     float64 `mapstructure:"rps"`
	Burst   int     `mapstructure:"burst"`
}

// TracingConfig 链路追踪配置
type TracingConfig struct {
	Enabled     bool    `mapstructure:"enabled"`
	Endpoint    string  `mapstructure:"endpoint"` // OTLP gRPC 地址
	Insecure    bool    `mapstructure:"insecure"`
	ServiceName string  `mapstructure:"service_name"`
	SampleRatio float64 `mapstructure:"sample_ratio"` // 0-1，作用于根 span
}

// MetricsConfig 指标采集配置
type MetricsConfig struct {
	CollectInterval int `mapstructure:"collect_interval"` // 秒
}

// HousekeepingConfig 后台维护任务配置
type HousekeepingConfig struct {
	LogRetentionEnabled  bool   `mapstructure:"log_retention_enabled"`
	LogRetentionDays     int    `mapstructure:"log_retention_days"`
	LogRetentionSchedule string `mapstructure:"log_retention_schedule"` // cron 表达式
	ReconcileEnabled     bool   `mapstructure:"reconcile_enabled"`
	ReconcileSchedule    string `mapstructure:"reconcile_schedule"` // cron 表达式
	ReconcileBatchSize   int    `mapstructure:"reconcile_batch_size"`
}

// Load 加载配置,支持配置文件和环境变量
func Load(configPath string) (*Config, error) {
	v := newViper()

	if configPath != "" {
		v.SetConfigFile(configPath)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
		v.AddConfigPath("$HOME/.integration-monitor")
		// 忽略配置文件不存在的错误,使用默认值
		_ = v.ReadInConfig()
	}

	return unmarshal(v)
}

// newViper 创建带默认值与环境变量支持的 viper 实例
func newViper() *viper.Viper {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix("APP")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}

func unmarshal(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	return &cfg, nil
}

// IsProduction 判断是否为生产环境
func IsProduction(cfg *Config) bool {
	if cfg == nil {
		return false
	}
	return cfg.Env == "production"
}

// Default 返回默认配置
func Default() *Config {
	v := viper.New()
	setDefaults(v)

	var cfg Config
	_ = v.Unmarshal(&cfg)
	return &cfg
}

// setDefaults 设置配置默认值
func setDefaults(v *viper.Viper) {
	env := os.Getenv("APP_ENV")
	if env == "" {
		env = "development"
	}
	v.SetDefault("env", env)

	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 5000)
	v.SetDefault("server.read_timeout", 15)
	v.SetDefault("server.write_timeout", 15)

	// 开发环境默认使用 SQLite，生产环境使用 PostgreSQL
	if env == "production" {
		v.SetDefault("database.driver", "postgres")
	} else {
		v.SetDefault("database.driver", "sqlite")
	}
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "postgres")
	v.SetDefault("database.password", "")
	v.SetDefault("database.dbname", "integration_monitor")
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("database.path", "integration-monitor.db")

	if env == "production" {
		v.SetDefault("database.max_idle_conns", 20)
		v.SetDefault("database.max_open_conns", 200)
		v.SetDefault("database.conn_max_lifetime", 3600) // 1 小时
		v.SetDefault("database.conn_max_idle_time", 300) // 5 分钟
	} else {
		v.SetDefault("database.max_idle_conns", 10)
		v.SetDefault("database.max_open_conns", 100)
		v.SetDefault("database.conn_max_lifetime", 3600) // 1 小时
		v.SetDefault("database.conn_max_idle_time", 600) // 10 分钟
	}

	v.SetDefault("cors.allowed_origins", []string{"*"})
	v.SetDefault("cors.allowed_methods", []string{"GET", "POST", "PUT", "DELETE", "PATCH", "OPTIONS"})
	v.SetDefault("cors.allowed_headers", []string{"Content-Type", "Authorization", "X-Request-ID"})
	v.SetDefault("cors.max_age", 86400)

	if env == "production" {
		v.SetDefault("log.level", "info")
		v.SetDefault("log.format", "json")
	} else {
		v.SetDefault("log.level", "debug")
		v.SetDefault("log.format", "text")
	}
	v.SetDefault("log.output", "stdout")
	v.SetDefault("log.dir", "logs")

	v.SetDefault("rate_limit.enabled", false)
	v.SetDefault("rate_limit.rps", 100)
	v.SetDefault("rate_limit.burst", 200)

	v.SetDefault("tracing.enabled", false)
	v.SetDefault("tracing.endpoint", "localhost:4317")
	v.SetDefault("tracing.insecure", true)
	v.SetDefault("tracing.service_name", "integration-monitor")
	v.SetDefault("tracing.sample_ratio", 1.0)

	v.SetDefault("metrics.collect_interval", 30)

	v.SetDefault("housekeeping.log_retention_enabled", false)
	v.SetDefault("housekeeping.log_retention_days", 30)
	v.SetDefault("housekeeping.log_retention_schedule", "0 3 * * *")
	v.SetDefault("housekeeping.reconcile_enabled", false)
	v.SetDefault("housekeeping.reconcile_schedule", "*/5 * * * *")
	v.SetDefault("housekeeping.reconcile_batch_size", 100)
}
