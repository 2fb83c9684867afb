package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/caseline/caseline/internal/common/config"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics bundles the Prometheus collectors exposed on /metrics.
type Metrics struct {
	registry      *prometheus.Registry
	namespace     string
	httpReqCnt    *prometheus.CounterVec
	httpDur       *prometheus.HistogramVec
	wsConnections prometheus.Gauge
	wsConnects    *prometheus.CounterVec
	broadcastCnt  *prometheus.CounterVec
	backendCnt    *prometheus.CounterVec
	backendDur    *prometheus.HistogramVec
}

func New(cfg config.MetricsConfig) *Metrics {
	ns := cfg.Namespace
	if ns == "" {
		ns = "caseline"
	}
	buckets := cfg.Buckets
	if len(buckets) == 0 {
		buckets = prometheus.DefBuckets
	}

	r := prometheus.NewRegistry()
	// Register standard process and Go collectors
	r.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	r.MustRegister(collectors.NewGoCollector())

	httpReqCnt := prometheus.NewCounterVec(prometheus.CounterOpts{Namespace: ns, Name: "http_requests_total"}, []string{"method", "route", "status"})
	httpDur := prometheus.NewHistogramVec(prometheus.HistogramOpts{Namespace: ns, Name: "http_request_duration_seconds", Buckets: buckets}, []string{"method", "route", "status"})
	r.MustRegister(httpReqCnt, httpDur)

	wsConnections := prometheus.NewGauge(prometheus.GaugeOpts{Namespace: ns, Name: "ws_connections"})
	wsConnects := prometheus.NewCounterVec(prometheus.CounterOpts{Namespace: ns, Name: "ws_connection_events_total"}, []string{"event"})
	broadcastCnt := prometheus.NewCounterVec(prometheus.CounterOpts{Namespace: ns, Name: "broadcast_deliveries_total"}, []string{"type"})
	r.MustRegister(wsConnections, wsConnects, broadcastCnt)

	backendCnt := prometheus.NewCounterVec(prometheus.CounterOpts{Namespace: ns, Name: "backend_attempts_total"}, []string{"backend", "status"})
	backendDur := prometheus.NewHistogramVec(prometheus.HistogramOpts{Namespace: ns, Name: "backend_attempt_duration_seconds", Buckets: buckets}, []string{"backend", "status"})
	r.MustRegister(backendCnt, backendDur)

	return &Metrics{
		registry:      r,
		namespace:     ns,
		httpReqCnt:    httpReqCnt,
		httpDur:       httpDur,
		wsConnections: wsConnections,
		wsConnects:    wsConnects,
		broadcastCnt:  broadcastCnt,
		backendCnt:    backendCnt,
		backendDur:    backendDur,
	}
}

// WSConnected records a new realtime connection.
func (m *Metrics) WSConnected() {
	m.wsConnections.Inc()
	m.wsConnects.WithLabelValues("connect").Inc()
}

// WSDisconnected records a closed realtime connection.
func (m *Metrics) WSDisconnected() {
	m.wsConnections.Dec()
	m.wsConnects.WithLabelValues("disconnect").Inc()
}

// BroadcastDelivered counts successful per-connection deliveries of an event type.
func (m *Metrics) BroadcastDelivered(eventType string, n int) {
	m.broadcastCnt.WithLabelValues(eventType).Add(float64(n))
}

// BackendAttempt records one settled backend attempt.
func (m *Metrics) BackendAttempt(backend, status string, since time.Time) {
	m.backendCnt.WithLabelValues(backend, status).Inc()
	m.backendDur.WithLabelValues(backend, status).Observe(time.Since(since).Seconds())
}

// Middleware returns a gin middleware recording request counts and latency.
func (m *Metrics) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		route := c.FullPath()
		if route == "" {
			route = c.Request.URL.Path
		}
		start := time.Now()
		c.Next()
		status := strconv.Itoa(c.Writer.Status())
		m.httpReqCnt.WithLabelValues(c.Request.Method, route, status).Inc()
		m.httpDur.WithLabelValues(c.Request.Method, route, status).Observe(time.Since(start).Seconds())
	}
}

// Handler returns the /metrics endpoint handler.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
