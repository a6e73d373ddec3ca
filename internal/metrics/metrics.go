package metrics

import (
	"fmt"
	"net/http"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"gorm.io/gorm"
)

var (
	// API 请求计数器
	apiRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "api_requests_total",
			Help: "Total number of API requests",
		},
		[]string{"method", "path", "status"},
	)

	// API 请求响应时间
	apiRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "api_request_duration_seconds",
			Help:    "API request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	// 执行启动数
	executionsStartedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "executions_started_total",
			Help: "Total number of executions started",
		},
		[]string{"execution_type"},
	)

	// 执行结束数
	executionsFinishedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "executions_finished_total",
			Help: "Total number of executions finished",
		},
		[]string{"status"}, // completed, failed, warning, cancelled
	)

	// 执行耗时
	executionDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "execution_duration_seconds",
			Help:    "Execution duration in seconds",
			Buckets: []float64{1, 5, 15, 30, 60, 300, 900, 1800, 3600, 7200},
		},
		[]string{"status"},
	)

	// 日志写入数
	logsRecordedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "logs_recorded_total",
			Help: "Total number of execution log entries recorded",
		},
		[]string{"level"},
	)

	// 集成回写结果
	reconcilesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "integration_reconciles_total",
			Help: "Total number of integration reconcile attempts",
		},
		[]string{"result"}, // applied, failed
	)

	// 数据库连接数
	databaseConnectionsActive = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "database_connections_active",
			Help: "Number of active database connections",
		},
	)

	databaseConnectionsIdle = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "database_connections_idle",
			Help: "Number of idle database connections",
		},
	)

	databaseConnectionsMax = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "database_connections_max",
			Help: "Maximum number of database connections",
		},
	)

	// 集成状态分布
	integrationsByStatus = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "integrations_by_status",
			Help: "Number of integrations by status",
		},
		[]string{"status"},
	)
)

var (
	once sync.Once
)

func init() {
	prometheus.MustRegister(apiRequestsTotal)
	prometheus.MustRegister(apiRequestDuration)
	prometheus.MustRegister(executionsStartedTotal)
	prometheus.MustRegister(executionsFinishedTotal)
	prometheus.MustRegister(executionDuration)
	prometheus.MustRegister(logsRecordedTotal)
	prometheus.MustRegister(reconcilesTotal)
	prometheus.MustRegister(databaseConnectionsActive)
	prometheus.MustRegister(databaseConnectionsIdle)
	prometheus.MustRegister(databaseConnectionsMax)
	prometheus.MustRegister(integrationsByStatus)

	// Go 运行时指标只注册一次，已注册则忽略错误
	once.Do(func() {
		_ = prometheus.Register(prometheus.NewGoCollector())
		_ = prometheus.Register(prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}))
	})
}

// Handler 返回 Prometheus 指标处理器
func Handler() http.Handler {
	return promhttp.Handler()
}

// RecordAPIRequest 记录 API 请求
func RecordAPIRequest(method, path string, status int, duration float64) {
	apiRequestsTotal.WithLabelValues(method, path, fmt.Sprintf("%d", status)).Inc()
	apiRequestDuration.WithLabelValues(method, path).Observe(duration)
}

// RecordExecutionStarted 记录执行启动
func RecordExecutionStarted(executionType string) {
	executionsStartedTotal.WithLabelValues(executionType).Inc()
}

// RecordExecutionFinished 记录执行结束（耗时单位毫秒）
func RecordExecutionFinished(status string, durationMs int64) {
	executionsFinishedTotal.WithLabelValues(status).Inc()
	if durationMs >= 0 {
		executionDuration.WithLabelValues(status).Observe(float64(durationMs) / 1000)
	}
}

// RecordLogRecorded 记录日志写入
func RecordLogRecorded(level string) {
	logsRecordedTotal.WithLabelValues(level).Inc()
}

// RecordReconcile 记录集成回写结果
func RecordReconcile(result string) {
	reconcilesTotal.WithLabelValues(result).Inc()
}

// UpdateDatabaseConnections 更新数据库连接数指标
func UpdateDatabaseConnections(db *gorm.DB) error {
	if db == nil {
		return fmt.Errorf("database connection is nil")
	}

	sqlDB, err := db.DB()
	if err != nil {
		return fmt.Errorf("failed to get sql.DB: %w", err)
	}

	stats := sqlDB.Stats()
	databaseConnectionsActive.Set(float64(stats.InUse))
	databaseConnectionsIdle.Set(float64(stats.Idle))
	databaseConnectionsMax.Set(float64(stats.MaxOpenConnections))

	return nil
}

// UpdateIntegrationsByStatus 更新集成状态分布指标
func UpdateIntegrationsByStatus(status string, count float64) {
	integrationsByStatus.WithLabelValues(status).Set(count)
}
