// Package metrics 提供Prometheus监控指标
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// 运行结局
const (
	OutcomeComplete   = "complete"
	OutcomeIncomplete = "incomplete"
	OutcomeInfeasible = "infeasible"
	OutcomeInvalid    = "invalid"
	OutcomeError      = "error"
)

// Registry 本服务的指标注册表
var Registry = prometheus.NewRegistry()

var factory = promauto.With(Registry)

var (
	// 请求计数器
	httpRequests = factory.NewCounterVec(prometheus.CounterOpts{
		Name: "zhiban_http_requests_total",
		Help: "HTTP请求总数",
	}, []string{"method", "path", "status"})

	// 请求延迟直方图
	httpDuration = factory.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "zhiban_http_request_duration_seconds",
		Help:    "HTTP请求延迟",
		Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0, 10.0},
	}, []string{"method", "path"})

	// 排班运行计数器
	scheduleRuns = factory.NewCounterVec(prometheus.CounterOpts{
		Name: "zhiban_schedule_runs_total",
		Help: "排班运行次数",
	}, []string{"outcome", "grade"})

	// 排班运行延迟
	scheduleDuration = factory.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "zhiban_schedule_run_duration_seconds",
		Help:    "排班运行延迟",
		Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1.0, 2.5, 5.0, 10.0, 30.0, 60.0},
	}, []string{"outcome"})

	// 最近一次运行的分数
	solutionScore = factory.NewGauge(prometheus.GaugeOpts{
		Name: "zhiban_solution_score",
		Help: "最近一次排班的分数",
	})

	// 空缺岗位数分布
	unfilledSlots = factory.NewHistogram(prometheus.HistogramOpts{
		Name:    "zhiban_unfilled_slots",
		Help:    "每次运行的空缺岗位数",
		Buckets: []float64{0, 1, 2, 5, 10, 20, 50},
	})

	// 候选池规模分布
	poolCandidates = factory.NewHistogram(prometheus.HistogramOpts{
		Name:    "zhiban_pool_candidates",
		Help:    "每次运行记录的候选数",
		Buckets: prometheus.ExponentialBuckets(1, 4, 8),
	})

	// 活动运行数
	activeRuns = factory.NewGauge(prometheus.GaugeOpts{
		Name: "zhiban_active_runs",
		Help: "当前活动的排班运行数",
	})

	// 数据库连接池
	dbConnections = factory.NewGaugeVec(prometheus.GaugeOpts{
		Name: "zhiban_db_connections",
		Help: "数据库连接数",
	}, []string{"state"})
)

func init() {
	Registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
}

// Handler 返回Prometheus格式的指标HTTP处理器
func Handler() http.Handler {
	return promhttp.HandlerFor(Registry, promhttp.HandlerOpts{Registry: Registry})
}

// RecordRequestMetrics 记录请求指标
func RecordRequestMetrics(method, path string, status int, duration time.Duration) {
	httpRequests.WithLabelValues(method, path, strconv.Itoa(status)).Inc()
	httpDuration.WithLabelValues(method, path).Observe(duration.Seconds())
}

// RunObservation 一次运行的观测值
type RunObservation struct {
	Outcome    string
	Grade      string
	Duration   time.Duration
	Score      float64
	Unfilled   int
	Candidates int
}

// RecordScheduleRun 记录排班运行指标；校验失败或内部错误时仅计数
func RecordScheduleRun(o RunObservation) {
	grade := o.Grade
	if grade == "" {
		grade = "none"
	}
	scheduleRuns.WithLabelValues(o.Outcome, grade).Inc()
	scheduleDuration.WithLabelValues(o.Outcome).Observe(o.Duration.Seconds())
	if o.Outcome == OutcomeInvalid || o.Outcome == OutcomeError {
		return
	}
	solutionScore.Set(o.Score)
	unfilledSlots.Observe(float64(o.Unfilled))
	poolCandidates.Observe(float64(o.Candidates))
}

// RunStarted 标记一次运行开始，返回结束回调
func RunStarted() func() {
	activeRuns.Inc()
	return activeRuns.Dec
}

// SetDBConnections 设置数据库连接数
func SetDBConnections(inUse, idle int) {
	dbConnections.WithLabelValues("in_use").Set(float64(inUse))
	dbConnections.WithLabelValues("idle").Set(float64(idle))
}
