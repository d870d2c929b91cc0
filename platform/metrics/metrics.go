// Package metrics exposes Cortex's Prometheus collectors, grounded on
// pkg/metrics/metrics.go's namespaced-registry pattern.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Registry holds Cortex's own collectors, separate from the default
// global registry so process-level Go/process metrics stay opt-in.
var Registry = prometheus.NewRegistry()

var (
	httpInFlight = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "cortex",
		Subsystem: "http",
		Name:      "inflight_requests",
		Help:      "Current number of in-flight HTTP requests.",
	})

	httpRequests = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "cortex",
		Subsystem: "http",
		Name:      "requests_total",
		Help:      "Total HTTP requests handled, by method/path/status.",
	}, []string{"method", "path", "status"})

	httpDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "cortex",
		Subsystem: "http",
		Name:      "request_duration_seconds",
		Help:      "HTTP request duration.",
		Buckets:   prometheus.ExponentialBuckets(0.005, 2, 10),
	}, []string{"method", "path"})

	ProbeRuns = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "cortex",
		Subsystem: "probe",
		Name:      "runs_total",
		Help:      "Total probe runs, by result status.",
	}, []string{"status"})

	ProbeRunDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: "cortex",
		Subsystem: "probe",
		Name:      "run_duration_seconds",
		Help:      "Duration of a full probe run.",
		Buckets:   prometheus.ExponentialBuckets(0.05, 2, 10),
	})

	AutofixAttempts = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "cortex",
		Subsystem: "probe",
		Name:      "autofix_attempts_total",
		Help:      "Total tier-1 autofix attempts, by issue type and outcome.",
	}, []string{"issue_type", "outcome"})

	QueueDepth = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "cortex",
		Subsystem: "queue",
		Name:      "depth",
		Help:      "Current number of pending items in the local durable queue.",
	})

	QueueItemsFailed = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "cortex",
		Subsystem: "queue",
		Name:      "items_failed_total",
		Help:      "Total queue items that exhausted their retry budget.",
	})

	DecisionsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "cortex",
		Subsystem: "decision",
		Name:      "total",
		Help:      "Total decisions rendered by the decision engine, by status.",
	}, []string{"status"})

	AlertsActive = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "cortex",
		Subsystem: "alert",
		Name:      "active",
		Help:      "Current open alerts, by tier.",
	}, []string{"tier"})

	HeartbeatAge = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "cortex",
		Subsystem: "agent",
		Name:      "heartbeat_age_seconds",
		Help:      "Seconds since each agent's last heartbeat.",
	}, []string{"agent_id"})
)

func init() {
	Registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		httpInFlight, httpRequests, httpDuration,
		ProbeRuns, ProbeRunDuration, AutofixAttempts,
		QueueDepth, QueueItemsFailed,
		DecisionsTotal, AlertsActive, HeartbeatAge,
	)
}

// Handler serves the /metrics endpoint.
func Handler() http.Handler {
	return promhttp.HandlerFor(Registry, promhttp.HandlerOpts{})
}

// RecordHTTPRequest records one completed request's status and duration.
func RecordHTTPRequest(method, path, status string, seconds float64) {
	httpRequests.WithLabelValues(method, path, status).Inc()
	httpDuration.WithLabelValues(method, path).Observe(seconds)
}

// IncInFlight/DecInFlight track concurrently-handled requests.
func IncInFlight() { httpInFlight.Inc() }
func DecInFlight() { httpInFlight.Dec() }
