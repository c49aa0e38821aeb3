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
	// HTTP 请求计数器(运维接口)
	httpRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	// HTTP 请求响应时间
	httpRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	// 提交进入工作流数
	submissionsStartedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "workflow_submissions_started_total",
			Help: "Total number of submissions started, by disposition",
		},
		[]string{"disposition"}, // pooled, archived
	)

	// 认领 / 释放 / 中止
	workflowOperationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "workflow_operations_total",
			Help: "Total number of workflow operations",
		},
		[]string{"operation"}, // claim, unclaim, abort
	)

	// 审批动作
	advancesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "workflow_advances_total",
			Help: "Total number of advance operations",
		},
		[]string{"outcome", "disposition"},
	)

	// 认领冲突
	claimConflictsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "workflow_claim_conflicts_total",
			Help: "Total number of claims lost to a concurrent claimer",
		},
	)

	// 通知失败
	notificationFailuresTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "workflow_notification_failures_total",
			Help: "Total number of notifications that could not be delivered",
		},
		[]string{"template"},
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

	// 工作流条目状态分布
	itemsByState = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "workflow_items_by_state",
			Help: "Number of workflow items by state",
		},
		[]string{"state"},
	)
)

var (
	once sync.Once
)

func init() {
	prometheus.MustRegister(httpRequestsTotal)
	prometheus.MustRegister(httpRequestDuration)
	prometheus.MustRegister(submissionsStartedTotal)
	prometheus.MustRegister(workflowOperationsTotal)
	prometheus.MustRegister(advancesTotal)
	prometheus.MustRegister(claimConflictsTotal)
	prometheus.MustRegister(notificationFailuresTotal)
	prometheus.MustRegister(databaseConnectionsActive)
	prometheus.MustRegister(databaseConnectionsIdle)
	prometheus.MustRegister(databaseConnectionsMax)
	prometheus.MustRegister(itemsByState)

	once.Do(func() {
		_ = prometheus.Register(prometheus.NewGoCollector())
		_ = prometheus.Register(prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}))
	})
}

// Handler 返回 Prometheus 指标处理器
func Handler() http.Handler {
	return promhttp.Handler()
}

// RecordHTTPRequest 记录 HTTP 请求
func RecordHTTPRequest(method, path string, status int, duration float64) {
	statusText := http.StatusText(status)
	if statusText == "" {
		statusText = fmt.Sprintf("%d", status)
	}
	httpRequestsTotal.WithLabelValues(method, path, statusText).Inc()
	httpRequestDuration.WithLabelValues(method, path).Observe(duration)
}

// RecordSubmissionStarted 记录提交进入工作流
func RecordSubmissionStarted(disposition string) {
	submissionsStartedTotal.WithLabelValues(disposition).Inc()
}

// RecordOperation 记录认领、释放、中止
func RecordOperation(operation string) {
	workflowOperationsTotal.WithLabelValues(operation).Inc()
}

// RecordAdvance 记录审批动作
func RecordAdvance(outcome, disposition string) {
	advancesTotal.WithLabelValues(outcome, disposition).Inc()
}

// RecordClaimConflict 记录认领冲突
func RecordClaimConflict() {
	claimConflictsTotal.Inc()
}

// RecordNotificationFailure 记录通知失败
func RecordNotificationFailure(template string) {
	notificationFailuresTotal.WithLabelValues(template).Inc()
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
	databaseConnectionsActive.Set(float64(stats.OpenConnections - stats.Idle))
	databaseConnectionsIdle.Set(float64(stats.Idle))
	databaseConnectionsMax.Set(float64(stats.MaxOpenConnections))

	return nil
}

// UpdateItemsByState 更新状态分布,不在 counts 中的旧状态清零
func UpdateItemsByState(counts map[string]int64) {
	itemsByState.Reset()
	for state, count := range counts {
		itemsByState.WithLabelValues(state).Set(float64(count))
	}
}
