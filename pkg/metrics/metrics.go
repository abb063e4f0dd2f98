package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/hellooo-cards/iconbridge/internal/common/config"
)

// Icon outcomes recorded per collected slot.
const (
	OutcomeResolved = "resolved"
	OutcomeMissed   = "missed"
	OutcomeBlank    = "blank"
)

type Metrics struct {
	registry   *prometheus.Registry
	namespace  string
	httpReqCnt *prometheus.CounterVec
	httpDur    *prometheus.HistogramVec
	httpInfl   *prometheus.GaugeVec
	sessionCnt *prometheus.CounterVec
	iconCnt    *prometheus.CounterVec
	iconDur    *prometheus.HistogramVec
	tabCnt     *prometheus.CounterVec
}

func New(cfg config.MetricsConfig) *Metrics {
	ns := cfg.Namespace
	r := prometheus.NewRegistry()
	// Register standard process and Go collectors
	r.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	r.MustRegister(collectors.NewGoCollector())

	httpReqCnt := prometheus.NewCounterVec(prometheus.CounterOpts{Namespace: ns, Name: "http_requests_total"}, []string{"method", "route", "status"})
	httpDur := prometheus.NewHistogramVec(prometheus.HistogramOpts{Namespace: ns, Name: "http_request_duration_seconds", Buckets: cfg.Buckets}, []string{"method", "route", "status"})
	httpInfl := prometheus.NewGaugeVec(prometheus.GaugeOpts{Namespace: ns, Name: "http_requests_inflight"}, []string{"route"})
	r.MustRegister(httpReqCnt, httpDur, httpInfl)

	sessionCnt := prometheus.NewCounterVec(prometheus.CounterOpts{Namespace: ns, Name: "sessions_total"}, []string{"platform", "status"})
	iconCnt := prometheus.NewCounterVec(prometheus.CounterOpts{Namespace: ns, Name: "icons_total"}, []string{"platform", "outcome"})
	iconDur := prometheus.NewHistogramVec(prometheus.HistogramOpts{Namespace: ns, Name: "icon_fetch_duration_seconds", Buckets: cfg.Buckets}, []string{"platform"})
	tabCnt := prometheus.NewCounterVec(prometheus.CounterOpts{Namespace: ns, Name: "tabs_opened_total"}, []string{"platform"})
	r.MustRegister(sessionCnt, iconCnt, iconDur, tabCnt)

	return &Metrics{
		registry:   r,
		namespace:  ns,
		httpReqCnt: httpReqCnt,
		httpDur:    httpDur,
		httpInfl:   httpInfl,
		sessionCnt: sessionCnt,
		iconCnt:    iconCnt,
		iconDur:    iconDur,
		tabCnt:     tabCnt,
	}
}

// SessionDone counts a completed batch session. status is "ok" or "rejected".
func (m *Metrics) SessionDone(platform, status string) {
	if m == nil {
		return
	}
	m.sessionCnt.WithLabelValues(platform, status).Inc()
}

// IconDone counts one collected slot and its fetch duration.
func (m *Metrics) IconDone(platform, outcome string, since time.Time) {
	if m == nil {
		return
	}
	m.iconCnt.WithLabelValues(platform, outcome).Inc()
	m.iconDur.WithLabelValues(platform).Observe(time.Since(since).Seconds())
}

// TabOpened counts one opened profile tab.
func (m *Metrics) TabOpened(platform string) {
	if m == nil {
		return
	}
	m.tabCnt.WithLabelValues(platform).Inc()
}

func (m *Metrics) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		route := c.FullPath()
		if route == "" {
			route = c.Request.URL.Path
		}
		m.httpInfl.WithLabelValues(route).Inc()
		start := time.Now()
		c.Next()
		status := strconv.Itoa(c.Writer.Status())
		m.httpReqCnt.WithLabelValues(c.Request.Method, route, status).Inc()
		m.httpDur.WithLabelValues(c.Request.Method, route, status).Observe(time.Since(start).Seconds())
		m.httpInfl.WithLabelValues(route).Dec()
	}
}

func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
