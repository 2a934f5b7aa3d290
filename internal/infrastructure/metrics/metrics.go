// Package metrics provides Prometheus instrumentation for the rating engine.
package metrics

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "spectrum"

var (
	// HTTPRequestsTotal counts HTTP requests by method, path, and status.
	HTTPRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Total HTTP requests by method, path pattern, and status code.",
		},
		[]string{"method", "path", "status"},
	)

	// HTTPRequestDuration observes request latency by method and path.
	HTTPRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	// LedgerEventsTotal counts evaluation events by kind and outcome.
	LedgerEventsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ledger_events_total",
			Help:      "Evaluation events processed by the ledger, by kind and outcome.",
		},
		[]string{"kind", "outcome"},
	)

	// LedgerApplyDuration observes ledger apply latency by kind.
	LedgerApplyDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "ledger_apply_duration_seconds",
			Help:      "Ledger apply duration in seconds.",
			Buckets:   []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0},
		},
		[]string{"kind"},
	)

	// AchievementsGrantedTotal counts new grants by code.
	AchievementsGrantedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "achievements_granted_total",
			Help:      "Newly created achievement grants by code.",
		},
		[]string{"code"},
	)

	// AlertsCreatedTotal counts new alerts by level.
	AlertsCreatedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "alerts_created_total",
			Help:      "Newly created security alerts by level.",
		},
		[]string{"level"},
	)

	// SweepDuration observes security sweep latency.
	SweepDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "security_sweep_duration_seconds",
			Help:      "Security sweep duration in seconds.",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 15, 60},
		},
	)

	// SweepFailuresTotal counts students whose sweep step failed.
	SweepFailuresTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "security_sweep_failures_total",
			Help:      "Per-student failures isolated during security sweeps.",
		},
	)

	// ActivityGeneratedTotal counts activity feed entries by type.
	ActivityGeneratedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "activity_generated_total",
			Help:      "Activity feed entries written, by type.",
		},
		[]string{"type"},
	)

	// EventsPublishedTotal counts domain events published on the bus by type.
	EventsPublishedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "events_published_total",
			Help:      "Domain events published on the event bus, by type.",
		},
		[]string{"type"},
	)

	// EventHandlerFailuresTotal counts failed or panicking event handlers by type.
	EventHandlerFailuresTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "event_handler_failures_total",
			Help:      "Event handler failures, by event type.",
		},
		[]string{"type"},
	)

	// JobRunsTotal counts scheduled job runs by job and outcome.
	JobRunsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "job_runs_total",
			Help:      "Scheduled job runs, by job and outcome.",
		},
		[]string{"job", "outcome"},
	)

	// JobDuration observes scheduled job latency.
	JobDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "job_duration_seconds",
			Help:      "Scheduled job duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"job"},
	)

	// StreamClients tracks connected websocket clients.
	StreamClients = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "stream_clients",
			Help:      "Connected websocket clients.",
		},
	)
)

func init() {
	prometheus.MustRegister(
		HTTPRequestsTotal,
		HTTPRequestDuration,
		LedgerEventsTotal,
		LedgerApplyDuration,
		AchievementsGrantedTotal,
		AlertsCreatedTotal,
		SweepDuration,
		SweepFailuresTotal,
		ActivityGeneratedTotal,
		EventsPublishedTotal,
		EventHandlerFailuresTotal,
		JobRunsTotal,
		JobDuration,
		StreamClients,
	)
}

// ObserveLedger returns a function that records the outcome and latency of
// one ledger call.
func ObserveLedger(kind string) func(outcome string) {
	start := time.Now()
	return func(outcome string) {
		LedgerEventsTotal.WithLabelValues(kind, outcome).Inc()
		LedgerApplyDuration.WithLabelValues(kind).Observe(time.Since(start).Seconds())
	}
}

// Middleware returns a gin middleware that records request metrics.
func Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		timer := prometheus.NewTimer(HTTPRequestDuration.WithLabelValues(
			c.Request.Method,
			c.FullPath(), // route pattern keeps label cardinality bounded
		))

		c.Next()

		timer.ObserveDuration()
		HTTPRequestsTotal.WithLabelValues(
			c.Request.Method,
			c.FullPath(),
			statusBucket(c.Writer.Status()),
		).Inc()
	}
}

// Handler returns the Prometheus metrics HTTP handler for /metrics endpoint.
func Handler() gin.HandlerFunc {
	h := promhttp.Handler()
	return func(c *gin.Context) {
		h.ServeHTTP(c.Writer, c.Request)
	}
}

// statusBucket groups HTTP status codes into buckets (2xx, 3xx, 4xx, 5xx).
func statusBucket(code int) string {
	switch {
	case code < 200:
		return "1xx"
	case code < 300:
		return "2xx"
	case code < 400:
		return "3xx"
	case code < 500:
		return "4xx"
	default:
		return "5xx"
	}
}
