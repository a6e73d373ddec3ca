package service

import (
	"time"

	"github.com/mautops/integration-monitor/internal/logging"
	"github.com/sirupsen/logrus"
)

// EventPublisher 实时推送执行生命周期事件（由 websocket Hub 实现）
type EventPublisher interface {
	BroadcastToIntegration(integrationID string, v interface{}) error
}

// Option 服务可选配置
type Option func(*options)

type options struct {
	logger    *logrus.Logger
	now       func() time.Time
	publisher EventPublisher
}

// WithLogger 指定日志记录器
func WithLogger(logger *logrus.Logger) Option {
	return func(o *options) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithClock 指定时钟（测试中固定时间）
func WithClock(now func() time.Time) Option {
	return func(o *options) {
		if now != nil {
			o.now = now
		}
	}
}

// WithPublisher 指定实时事件推送器
func WithPublisher(publisher EventPublisher) Option {
	return func(o *options) {
		o.publisher = publisher
	}
}

func newOptions(opts []Option) *options {
	o := &options{
		logger: logging.GetLogger(),
		now:    defaultNow,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// defaultNow 毫秒精度的 UTC 当前时间
func defaultNow() time.Time {
	return time.Now().UTC().Truncate(time.Millisecond)
}
