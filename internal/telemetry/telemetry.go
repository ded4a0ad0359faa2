package telemetry

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// 一次查询周期的结果
const (
	OutcomeReport       = "report"        // 生成了摘要
	OutcomeNoData       = "no_data"       // 无数据
	OutcomeBackendFault = "backend_fault" // 后端故障，按无数据处理
	OutcomeTableOnly    = "table_only"    // 跳过模型分析
	OutcomeInvalidInput = "invalid_input"
	OutcomeModelFault   = "model_fault"
	OutcomeError        = "error"
)

// Metrics promsight 自身指标，使用独立的 Registry
type Metrics struct {
	registry     *prometheus.Registry
	cycles       *prometheus.CounterVec
	modelLatency *prometheus.HistogramVec
	httpRequests *prometheus.CounterVec
}

// NewMetrics 创建并注册自身指标
func NewMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		cycles: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "promsight",
			Name:      "query_cycles_total",
			Help:      "Query cycles by outcome.",
		}, []string{"outcome"}),
		modelLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "promsight",
			Name:      "model_request_duration_seconds",
			Help:      "Latency of model service calls.",
			Buckets:   []float64{0.5, 1, 2.5, 5, 10, 30, 60, 120, 300},
		}, []string{"operation", "status"}),
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "promsight",
			Name:      "http_requests_total",
			Help:      "HTTP API requests by route and status code.",
		}, []string{"method", "route", "code"}),
	}
	m.registry.MustRegister(
		m.cycles,
		m.modelLatency,
		m.httpRequests,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// ObserveCycle 记录一次查询周期
func (m *Metrics) ObserveCycle(outcome string) {
	m.cycles.WithLabelValues(outcome).Inc()
}

// ObserveModel 记录一次模型调用耗时
func (m *Metrics) ObserveModel(operation string, elapsed time.Duration, err error) {
	status := "ok"
	if err != nil {
		status = "error"
	}
	m.modelLatency.WithLabelValues(operation, status).Observe(elapsed.Seconds())
}

// ObserveHTTP 记录一次 HTTP 请求
func (m *Metrics) ObserveHTTP(method, route, code string) {
	m.httpRequests.WithLabelValues(method, route, code).Inc()
}

// Registry 供测试读取
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler /metrics 处理器
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}
