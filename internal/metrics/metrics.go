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

	// 任务分配数
	tasksAssignedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "checklist_tasks_assigned_total",
			Help: "Total number of checklist tasks assigned",
		},
		[]string{"kind"},
	)

	// 状态转换数
	transitionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "checklist_transitions_total",
			Help: "Total number of checklist lifecycle transitions",
		},
		[]string{"operation", "result"}, // start/complete/score/approve/reject/cancel, ok/<error kind>
	)

	// 搭档分数同步
	buddyPropagationTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "checklist_buddy_propagation_total",
			Help: "Outcome of buddy control score propagation",
		},
		[]string{"outcome"}, // mirrored, skipped, failed
	)

	// 悬空权限边
	danglingEdgesTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "authority_dangling_edges_total",
			Help: "Number of checklist authority edges skipped because the target role is missing",
		},
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

	// 任务状态分布
	tasksByStatus = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "checklist_tasks_by_status",
			Help: "Number of checklist tasks by status",
		},
		[]string{"status"},
	)
)

var (
	once sync.Once
)

func init() {
	// 注册指标
	prometheus.MustRegister(apiRequestsTotal)
	prometheus.MustRegister(apiRequestDuration)
	prometheus.MustRegister(tasksAssignedTotal)
	prometheus.MustRegister(transitionsTotal)
	prometheus.MustRegister(buddyPropagationTotal)
	prometheus.MustRegister(danglingEdgesTotal)
	prometheus.MustRegister(databaseConnectionsActive)
	prometheus.MustRegister(databaseConnectionsIdle)
	prometheus.MustRegister(databaseConnectionsMax)
	prometheus.MustRegister(tasksByStatus)

	// 注册 Go 运行时指标（只注册一次）
	once.Do(func() {
		// 尝试注册 Go 运行时指标，如果已注册则忽略错误
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
	statusText := http.StatusText(status)
	if statusText == "" {
		statusText = fmt.Sprintf("%d", status)
	}
	apiRequestsTotal.WithLabelValues(method, path, statusText).Inc()
	apiRequestDuration.WithLabelValues(method, path).Observe(duration)
}

// RecordTaskAssigned 记录任务分配
func RecordTaskAssigned(kind string) {
	tasksAssignedTotal.WithLabelValues(kind).Inc()
}

// RecordTransition 记录状态转换结果
func RecordTransition(operation, result string) {
	transitionsTotal.WithLabelValues(operation, result).Inc()
}

// RecordBuddyPropagation 记录搭档同步结果
func RecordBuddyPropagation(outcome string) {
	buddyPropagationTotal.WithLabelValues(outcome).Inc()
}

// RecordDanglingEdge 记录悬空权限边
func RecordDanglingEdge() {
	danglingEdgesTotal.Inc()
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

// UpdateTasksByStatus 更新任务状态分布指标
func UpdateTasksByStatus(status string, count float64) {
	tasksByStatus.WithLabelValues(status).Set(count)
}
