package metrics

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// 与 model 中的集成状态保持一致
var integrationStatuses = []string{"active", "inactive", "error", "warning"}

// Collector 指标收集器
type Collector struct {
	db       *gorm.DB
	interval time.Duration
	logger   *logrus.Logger
	ctx      context.Context
	cancel   context.CancelFunc
	done     chan struct{}
}

// NewCollector 创建指标收集器
func NewCollector(db *gorm.DB, interval time.Duration, logger *logrus.Logger) *Collector {
	if interval <= 0 {
		interval = 30 * time.Second
	}
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Collector{
		db:       db,
		interval: interval,
		logger:   logger,
		ctx:      ctx,
		cancel:   cancel,
		done:     make(chan struct{}),
	}
}

// Start 启动指标收集器
func (c *Collector) Start() {
	go c.collect()
}

// Stop 停止指标收集器
func (c *Collector) Stop() {
	c.cancel()
	<-c.done
}

// collect 定期收集指标
func (c *Collector) collect() {
	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()
	defer close(c.done)

	c.CollectOnce(c.ctx)
	for {
		select {
		case <-c.ctx.Done():
			return
		case <-ticker.C:
			c.CollectOnce(c.ctx)
		}
	}
}

// CollectOnce 采集一次连接池与集成状态指标
func (c *Collector) CollectOnce(ctx context.Context) {
	if err := UpdateDatabaseConnections(c.db); err != nil {
		c.logger.WithError(err).Warn("Failed to collect database pool metrics")
		return
	}

	var rows []struct {
		Status string
		Count  int64
	}
	err := c.db.WithContext(ctx).
		Table("integrations").
		Select("status, COUNT(*) AS count").
		Group("status").
		Scan(&rows).Error
	if err != nil {
		c.logger.WithError(err).Warn("Failed to collect integration status metrics")
		return
	}

	counts := make(map[string]int64, len(rows))
	for _, row := range rows {
		counts[row.Status] = row.Count
	}
	for _, status := range integrationStatuses {
		UpdateIntegrationsByStatus(status, float64(counts[status]))
	}
}
