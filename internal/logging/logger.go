package logging

import (
	"io"
	"os"
	"path/filepath"
	"slices"
	"sync"

	"github.com/mautops/integration-monitor/internal/config"
	"github.com/sirupsen/logrus"
)

// ServiceName 日志中的服务名
const ServiceName = "integration-monitor"

// TimestampFormat 日志时间格式
const TimestampFormat = "2006-01-02T15:04:05.000Z07:00"

var (
	defaultLogger *logrus.Logger
	defaultOnce   sync.Once
)

// NewLogger 创建新的日志记录器
func NewLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetFormatter(jsonFormatter())
	logger.SetLevel(logrus.InfoLevel)
	logger.SetOutput(os.Stdout)
	return logger
}

func jsonFormatter() *logrus.JSONFormatter {
	return &logrus.JSONFormatter{
		TimestampFormat: TimestampFormat,
		FieldMap: logrus.FieldMap{
			logrus.FieldKeyTime:  "time",
			logrus.FieldKeyLevel: "level",
			logrus.FieldKeyMsg:   "msg",
		},
	}
}

// NewLoggerFromConfig 根据配置创建日志记录器
func NewLoggerFromConfig(cfg *config.LogConfig) (*logrus.Logger, error) {
	logger := logrus.New()

	if cfg.Format == "json" {
		logger.SetFormatter(jsonFormatter())
	} else {
		logger.SetFormatter(&logrus.TextFormatter{
			TimestampFormat: TimestampFormat,
			FullTimestamp:   true,
		})
	}

	logger.SetLevel(ParseLevel(cfg.Level))

	var writers []io.Writer
	if cfg.Output == "stdout" || cfg.Output == "both" {
		writers = append(writers, os.Stdout)
	}
	if cfg.Output == "file" || cfg.Output == "both" {
		logDir := cfg.Dir
		if logDir == "" {
			logDir = "logs"
		}
		if err := os.MkdirAll(logDir, 0755); err != nil {
			return nil, err
		}

		file, err := os.OpenFile(filepath.Join(logDir, ServiceName+".log"), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0666)
		if err != nil {
			return nil, err
		}
		writers = append(writers, file)
	}

	if len(writers) == 0 {
		writers = []io.Writer{os.Stdout}
	}
	logger.SetOutput(io.MultiWriter(writers...))

	// 默认字段（用于日志聚合）
	logger.AddHook(&defaultFieldsHook{
		fields: map[string]interface{}{
			"service": ServiceName,
		},
	})

	return logger, nil
}

// ParseLevel 解析日志级别，无法识别时回退到 info
func ParseLevel(level string) logrus.Level {
	parsed, err := logrus.ParseLevel(level)
	if err != nil {
		return logrus.InfoLevel
	}
	return parsed
}

// defaultFieldsHook 添加默认字段的 Hook
type defaultFieldsHook struct {
	fields map[string]interface{}
}

func (h *defaultFieldsHook) Levels() []logrus.Level {
	return logrus.AllLevels
}

func (h *defaultFieldsHook) Fire(entry *logrus.Entry) error {
	for k, v := range h.fields {
		if _, exists := entry.Data[k]; !exists {
			entry.Data[k] = v
		}
	}
	return nil
}

// GetLogger 获取默认日志记录器
func GetLogger() *logrus.Logger {
	defaultOnce.Do(func() {
		if defaultLogger == nil {
			defaultLogger = NewLogger()
		}
	})
	return defaultLogger
}

// SetLogger 替换默认日志记录器
func SetLogger(logger *logrus.Logger) {
	defaultOnce.Do(func() {})
	defaultLogger = logger
}

// SetLoggerOutput 设置日志输出
func SetLoggerOutput(w io.Writer) {
	GetLogger().SetOutput(w)
}

// SetLoggerLevel 设置日志级别
func SetLoggerLevel(level logrus.Level) {
	GetLogger().SetLevel(level)
}

// WatchLevel 在日志配置热更新时同步日志级别
func WatchLevel(watcher *config.ConfigWatcher, logger *logrus.Logger) {
	watcher.OnConfigChange(func(cfg *config.Config, changed []string) {
		if !slices.Contains(changed, config.SectionLog) {
			return
		}
		level := ParseLevel(cfg.Log.Level)
		if logger.GetLevel() != level {
			logger.SetLevel(level)
			logger.WithField("level", level.String()).Info("Log level updated")
		}
	})
}
