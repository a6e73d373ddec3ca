package config

import (
	"fmt"
	"reflect"
	"sync"
	"sync/atomic"

	"github.com/fsnotify/fsnotify"
	"github.com/sirupsen/logrus"
	"github.com/spf13/viper"
)

// 支持热更新的配置段，其余配置段变化需要重启服务
const (
	SectionLog          = "log"
	SectionRateLimit    = "rate_limit"
	SectionHousekeeping = "housekeeping"
)

// ChangeHandler 配置变更回调，changed 为发生变化的可热更新配置段
type ChangeHandler func(cfg *Config, changed []string)

// ConfigWatcher 监听配置文件，只对可热更新的配置段发出通知
type ConfigWatcher struct {
	path   string
	viper  *viper.Viper
	logger *logrus.Logger

	mu       sync.RWMutex
	current  *Config
	handlers []ChangeHandler

	stopped atomic.Bool
}

// NewConfigWatcher 创建配置监听器
func NewConfigWatcher(cfg *Config, configPath string, logger *logrus.Logger) *ConfigWatcher {
	if logger == nil {
		logger = logrus.StandardLogger()
	}

	v := newViper()
	v.SetConfigFile(configPath)

	return &ConfigWatcher{
		path:    configPath,
		viper:   v,
		logger:  logger,
		current: cfg,
	}
}

// OnConfigChange 注册配置变更回调
func (w *ConfigWatcher) OnConfigChange(handler ChangeHandler) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.handlers = append(w.handlers, handler)
}

// Start 读取配置文件并开始监听
func (w *ConfigWatcher) Start() error {
	if err := w.viper.ReadInConfig(); err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}

	w.viper.OnConfigChange(func(e fsnotify.Event) {
		if w.stopped.Load() {
			return
		}
		if err := w.Reload(); err != nil {
			w.logger.WithError(err).WithField("file", e.Name).Error("Failed to reload config")
		}
	})
	w.viper.WatchConfig()

	return nil
}

// Reload 重新解析配置文件，只在可热更新配置段变化时通知回调
func (w *ConfigWatcher) Reload() error {
	if err := w.viper.ReadInConfig(); err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}
	next, err := unmarshal(w.viper)
	if err != nil {
		return err
	}

	w.mu.Lock()
	prev := w.current
	changed, restart := ChangedSections(prev, next)
	handlers := append([]ChangeHandler(nil), w.handlers...)
	if len(changed) > 0 {
		w.current = mergeReloadable(prev, next)
	}
	current := w.current
	w.mu.Unlock()

	if len(restart) > 0 {
		w.logger.WithField("sections", restart).Warn("Config changes require a restart to take effect")
	}
	if len(changed) == 0 {
		return nil
	}

	w.logger.WithField("sections", changed).Info("Config reloaded")
	for _, handler := range handlers {
		handler(current, changed)
	}
	return nil
}

// Stop 停止通知，底层文件监听随进程退出
func (w *ConfigWatcher) Stop() {
	w.stopped.Store(true)
}

// GetConfig 获取当前生效的配置
func (w *ConfigWatcher) GetConfig() *Config {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.current
}

// ChangedSections 对比两份配置，返回可热更新与需要重启的变化配置段
func ChangedSections(prev, next *Config) (reloadable []string, restart []string) {
	if prev == nil || next == nil {
		return nil, nil
	}

	if !reflect.DeepEqual(prev.Log, next.Log) {
		reloadable = append(reloadable, SectionLog)
	}
	if !reflect.DeepEqual(prev.RateLimit, next.RateLimit) {
		reloadable = append(reloadable, SectionRateLimit)
	}
	if !reflect.DeepEqual(prev.Housekeeping, next.Housekeeping) {
		reloadable = append(reloadable, SectionHousekeeping)
	}

	if !reflect.DeepEqual(prev.Server, next.Server) {
		restart = append(restart, "server")
	}
	if !reflect.DeepEqual(prev.Database, next.Database) {
		restart = append(restart, "database")
	}
	if !reflect.DeepEqual(prev.CORS, next.CORS) {
		restart = append(restart, "cors")
	}
	if !reflect.DeepEqual(prev.Tracing, next.Tracing) {
		restart = append(restart, "tracing")
	}
	return reloadable, restart
}

// mergeReloadable 在旧配置上覆盖可热更新的配置段
func mergeReloadable(prev, next *Config) *Config {
	merged := *prev
	merged.Log = next.Log
	merged.RateLimit = next.RateLimit
	merged.Housekeeping = next.Housekeeping
	return &merged
}
