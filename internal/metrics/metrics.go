// Package metrics registers the portal's Prometheus collectors.
package metrics

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the collectors. Tests use their own registry.
type Metrics struct {
	RollCallSaves   *prometheus.CounterVec
	RecordsWritten  *prometheus.CounterVec
	ReportsBuilt    *prometheus.CounterVec
	LoginFailures   *prometheus.CounterVec
	RequestDuration *prometheus.HistogramVec
}

// New creates and registers the collectors on reg.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		RollCallSaves: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "madrasa",
			Name:      "rollcall_saves_total",
			Help:      "Roll-call save attempts by result.",
		}, []string{"result"}),
		RecordsWritten: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "madrasa",
			Name:      "attendance_records_total",
			Help:      "Attendance records touched by roll-call saves.",
		}, []string{"op"}),
		ReportsBuilt: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "madrasa",
			Name:      "reports_total",
			Help:      "Attendance reports served, by cache outcome.",
		}, []string{"cache"}),
		LoginFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "madrasa",
			Name:      "login_failures_total",
			Help:      "Failed logins by error code.",
		}, []string{"code"}),
		RequestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "madrasa",
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route", "status"}),
	}
	reg.MustRegister(m.RollCallSaves, m.RecordsWritten, m.ReportsBuilt, m.LoginFailures, m.RequestDuration)
	return m
}

// ObserveSave records the outcome of one roll-call save.
func (m *Metrics) ObserveSave(created, updated, skipped int, err error) {
	if m == nil {
		return
	}
	if err != nil {
		m.RollCallSaves.WithLabelValues("error").Inc()
		return
	}
	m.RollCallSaves.WithLabelValues("ok").Inc()
	m.RecordsWritten.WithLabelValues("create").Add(float64(created))
	m.RecordsWritten.WithLabelValues("update").Add(float64(updated))
	m.RecordsWritten.WithLabelValues("skip").Add(float64(skipped))
}

// ObserveReport counts a served report.
func (m *Metrics) ObserveReport(cacheHit bool) {
	if m == nil {
		return
	}
	label := "miss"
	if cacheHit {
		label = "hit"
	}
	m.ReportsBuilt.WithLabelValues(label).Inc()
}

// ObserveLoginFailure counts a failed login.
func (m *Metrics) ObserveLoginFailure(code string) {
	if m == nil {
		return
	}
	m.LoginFailures.WithLabelValues(code).Inc()
}

// GinMiddleware times every routed request.
func (m *Metrics) GinMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		m.RequestDuration.
			WithLabelValues(c.Request.Method, route, strconv.Itoa(c.Writer.Status())).
			Observe(time.Since(start).Seconds())
	}
}
