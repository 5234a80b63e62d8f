package monitoring

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics 监控指标
type Metrics struct {
	registry *prometheus.Registry

	// HTTP 请求指标
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec
	HTTPResponseSize    *prometheus.HistogramVec

	// 后端接口指标
	UpstreamRequestsTotal   *prometheus.CounterVec
	UpstreamRequestDuration *prometheus.HistogramVec
	UpstreamThrottled       prometheus.Counter

	// 控制台业务指标
	SectionLoadsTotal   *prometheus.CounterVec
	ActionsTotal        *prometheus.CounterVec
	NotificationsTotal  *prometheus.CounterVec
	StaleCommitsDropped *prometheus.CounterVec
	SessionsActive      prometheus.Gauge
	SignInsTotal        *prometheus.CounterVec
	WebsocketClients    prometheus.Gauge

	// 错误指标
	ErrorsTotal *prometheus.CounterVec
	PanicsTotal prometheus.Counter
}

// NewMetrics 创建监控指标，注册到独立的 Registry
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,

		HTTPRequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "bmconsole_http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "endpoint", "status_code"},
		),

		HTTPRequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "bmconsole_http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "endpoint"},
		),

		HTTPResponseSize: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "bmconsole_http_response_size_bytes",
				Help:    "HTTP response size in bytes",
				Buckets: prometheus.ExponentialBuckets(100, 10, 8),
			},
			[]string{"method", "endpoint"},
		),

		UpstreamRequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "bmconsole_upstream_requests_total",
				Help: "Total number of backend API calls by endpoint and result",
			},
			[]string{"method", "endpoint", "result"},
		),

		UpstreamRequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "bmconsole_upstream_request_duration_seconds",
				Help:    "Backend API call duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "endpoint"},
		),

		UpstreamThrottled: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "bmconsole_upstream_throttled_total",
				Help: "Backend API calls that waited on the rate limiter",
			},
		),

		SectionLoadsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "bmconsole_section_loads_total",
				Help: "Section data loads by section and data source",
			},
			[]string{"section", "source"},
		),

		ActionsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "bmconsole_actions_total",
				Help: "Dashboard actions by name and outcome",
			},
			[]string{"action", "outcome"},
		),

		NotificationsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "bmconsole_notifications_total",
				Help: "Notifications queued by kind",
			},
			[]string{"kind"},
		),

		StaleCommitsDropped: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "bmconsole_stale_commits_dropped_total",
				Help: "Load results discarded because a newer load for the section was started",
			},
			[]string{"section"},
		),

		SessionsActive: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "bmconsole_sessions_active",
				Help: "Number of sessions with live application state",
			},
		),

		SignInsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "bmconsole_sign_ins_total",
				Help: "Sign-in attempts by result",
			},
			[]string{"result"},
		),

		WebsocketClients: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "bmconsole_websocket_clients",
				Help: "Number of connected websocket clients",
			},
		),

		ErrorsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "bmconsole_errors_total",
				Help: "Total number of errors",
			},
			[]string{"type", "component"},
		),

		PanicsTotal: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "bmconsole_panics_total",
				Help: "Total number of panics",
			},
		),
	}
}

// Registry 返回指标注册表
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// RecordHTTPRequest 记录 HTTP 请求指标
func (m *Metrics) RecordHTTPRequest(method, endpoint, statusCode string, duration time.Duration, responseSize int64) {
	m.HTTPRequestsTotal.WithLabelValues(method, endpoint, statusCode).Inc()
	m.HTTPRequestDuration.WithLabelValues(method, endpoint).Observe(duration.Seconds())
	m.HTTPResponseSize.WithLabelValues(method, endpoint).Observe(float64(responseSize))
}

// RecordUpstream 记录一次后端接口调用
func (m *Metrics) RecordUpstream(method, endpoint, result string, duration time.Duration) {
	m.UpstreamRequestsTotal.WithLabelValues(method, endpoint, result).Inc()
	m.UpstreamRequestDuration.WithLabelValues(method, endpoint).Observe(duration.Seconds())
}

// RecordThrottled 记录一次限流等待
func (m *Metrics) RecordThrottled() {
	m.UpstreamThrottled.Inc()
}

// RecordSectionLoad 记录分区加载及数据来源
func (m *Metrics) RecordSectionLoad(section, source string) {
	m.SectionLoadsTotal.WithLabelValues(section, source).Inc()
}

// RecordAction 记录操作结果
func (m *Metrics) RecordAction(action, outcome string) {
	m.ActionsTotal.WithLabelValues(action, outcome).Inc()
}

// RecordNotification 记录通知入队
func (m *Metrics) RecordNotification(kind string) {
	m.NotificationsTotal.WithLabelValues(kind).Inc()
}

// RecordStaleCommit 记录被丢弃的过期加载结果
func (m *Metrics) RecordStaleCommit(section string) {
	m.StaleCommitsDropped.WithLabelValues(section).Inc()
}

// RecordSignIn 记录登录结果
func (m *Metrics) RecordSignIn(result string) {
	m.SignInsTotal.WithLabelValues(result).Inc()
}

// UpdateSessionsActive 更新活跃会话数
func (m *Metrics) UpdateSessionsActive(count int) {
	m.SessionsActive.Set(float64(count))
}

// UpdateWebsocketClients 更新 WebSocket 连接数
func (m *Metrics) UpdateWebsocketClients(count int) {
	m.WebsocketClients.Set(float64(count))
}

// RecordError 记录错误
func (m *Metrics) RecordError(errorType, component string) {
	m.ErrorsTotal.WithLabelValues(errorType, component).Inc()
}

// RecordPanic 记录 panic
func (m *Metrics) RecordPanic() {
	m.PanicsTotal.Inc()
}

// HTTPHandler 返回 Prometheus HTTP 处理器
func (m *Metrics) HTTPHandler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}
