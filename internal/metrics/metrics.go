// Package metrics provides Prometheus metrics for the deployment service.
// Exports HTTP, task pipeline, generation, deploy, and notification metrics.
package metrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	once     sync.Once
	instance *Metrics
)

// Metrics holds all Prometheus metric collectors for the service
type Metrics struct {
	// HTTP Metrics
	HTTPRequestsTotal    *prometheus.CounterVec
	HTTPRequestDuration  *prometheus.HistogramVec
	HTTPRequestsInFlight prometheus.Gauge

	// Task Pipeline Metrics
	TasksProcessedTotal prometheus.Counter
	TasksSucceededTotal prometheus.Counter
	TasksFailedTotal    prometheus.Counter
	TaskDuration        prometheus.Histogram
	QueueDepth          prometheus.Gauge

	// Generation Metrics
	GenerationCallsTotal *prometheus.CounterVec
	GenerationDuration   prometheus.Histogram

	// Deploy Metrics
	DeploysTotal     *prometheus.CounterVec
	PagesPollsTotal  *prometheus.CounterVec
	PagesPollSeconds prometheus.Histogram

	// Notification Metrics
	NotifyAttemptsTotal prometheus.Counter
	NotifyOutcomesTotal *prometheus.CounterVec

	// System Metrics
	StartupTime prometheus.Gauge
}

// Get returns the singleton Metrics instance
func Get() *Metrics {
	once.Do(func() {
		instance = newMetrics()
	})
	return instance
}

// newMetrics creates and registers all Prometheus metrics
func newMetrics() *Metrics {
	m := &Metrics{}

	// HTTP Metrics
	m.HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "codedeploy",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total number of HTTP requests by endpoint, method, and status code",
		},
		[]string{"endpoint", "method", "status"},
	)

	m.HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "codedeploy",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request duration in seconds",
			Buckets:   []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
		},
		[]string{"endpoint", "method"},
	)

	m.HTTPRequestsInFlight = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "codedeploy",
			Subsystem: "http",
			Name:      "requests_in_flight",
			Help:      "Current number of HTTP requests being processed",
		},
	)

	// Task Pipeline Metrics
	m.TasksProcessedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "codedeploy",
			Subsystem: "tasks",
			Name:      "processed_total",
			Help:      "Total number of task rounds picked up by workers",
		},
	)

	m.TasksSucceededTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "codedeploy",
			Subsystem: "tasks",
			Name:      "succeeded_total",
			Help:      "Total number of task rounds that completed the full pipeline",
		},
	)

	m.TasksFailedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "codedeploy",
			Subsystem: "tasks",
			Name:      "failed_total",
			Help:      "Total number of task rounds that aborted before completion",
		},
	)

	m.TaskDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "codedeploy",
			Subsystem: "tasks",
			Name:      "duration_seconds",
			Help:      "End-to-end task round duration in seconds",
			Buckets:   []float64{1, 5, 10, 30, 60, 120, 300, 600, 1200},
		},
	)

	m.QueueDepth = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "codedeploy",
			Subsystem: "tasks",
			Name:      "queue_depth",
			Help:      "Number of task rounds waiting in the worker queue",
		},
	)

	// Generation Metrics
	m.GenerationCallsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "codedeploy",
			Subsystem: "generation",
			Name:      "calls_total",
			Help:      "Total number of code generation calls by status",
		},
		[]string{"status"},
	)

	m.GenerationDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "codedeploy",
			Subsystem: "generation",
			Name:      "duration_seconds",
			Help:      "Code generation call duration in seconds",
			Buckets:   []float64{.5, 1, 2, 3, 5, 10, 20, 30, 60, 120},
		},
	)

	// Deploy Metrics
	m.DeploysTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "codedeploy",
			Subsystem: "deploy",
			Name:      "total",
			Help:      "Total number of repository deployments by path taken",
		},
		[]string{"path"},
	)

	m.PagesPollsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "codedeploy",
			Subsystem: "pages",
			Name:      "polls_total",
			Help:      "Total number of Pages publication waits by outcome",
		},
		[]string{"outcome"},
	)

	m.PagesPollSeconds = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "codedeploy",
			Subsystem: "pages",
			Name:      "wait_seconds",
			Help:      "Time spent waiting for Pages publication in seconds",
			Buckets:   []float64{5, 10, 20, 30, 60, 120, 180, 300},
		},
	)

	// Notification Metrics
	m.NotifyAttemptsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "codedeploy",
			Subsystem: "notify",
			Name:      "attempts_total",
			Help:      "Total number of evaluation notification POST attempts",
		},
	)

	m.NotifyOutcomesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "codedeploy",
			Subsystem: "notify",
			Name:      "outcomes_total",
			Help:      "Total number of notification deliveries by final outcome",
		},
		[]string{"outcome"},
	)

	// System Metrics
	m.StartupTime = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "codedeploy",
			Subsystem: "server",
			Name:      "startup_timestamp",
			Help:      "Server startup timestamp",
		},
	)

	// Set startup time
	m.StartupTime.Set(float64(time.Now().Unix()))

	return m
}

// RecordHTTPRequest records an HTTP request metric
func (m *Metrics) RecordHTTPRequest(endpoint, method string, statusCode int, duration time.Duration) {
	status := statusCodeToLabel(statusCode)
	m.HTTPRequestsTotal.WithLabelValues(endpoint, method, status).Inc()
	m.HTTPRequestDuration.WithLabelValues(endpoint, method).Observe(duration.Seconds())
}

// RecordTaskStart records a task round being picked up by a worker
func (m *Metrics) RecordTaskStart() {
	m.TasksProcessedTotal.Inc()
}

// RecordTaskOutcome records the final outcome and duration of a task round
func (m *Metrics) RecordTaskOutcome(succeeded bool, duration time.Duration) {
	if succeeded {
		m.TasksSucceededTotal.Inc()
	} else {
		m.TasksFailedTotal.Inc()
	}
	m.TaskDuration.Observe(duration.Seconds())
}

// SetQueueDepth updates the worker queue depth gauge
func (m *Metrics) SetQueueDepth(depth int) {
	m.QueueDepth.Set(float64(depth))
}

// RecordGeneration records a code generation call
func (m *Metrics) RecordGeneration(duration time.Duration, err error) {
	status := "success"
	if err != nil {
		status = "error"
	}
	m.GenerationCallsTotal.WithLabelValues(status).Inc()
	m.GenerationDuration.Observe(duration.Seconds())
}

// RecordDeploy records a repository deployment by path taken
// (create, update, or fallback)
func (m *Metrics) RecordDeploy(path string) {
	m.DeploysTotal.WithLabelValues(path).Inc()
}

// RecordPagesPoll records a Pages publication wait outcome
func (m *Metrics) RecordPagesPoll(published bool, waited time.Duration) {
	outcome := "published"
	if !published {
		outcome = "timeout"
	}
	m.PagesPollsTotal.WithLabelValues(outcome).Inc()
	m.PagesPollSeconds.Observe(waited.Seconds())
}

// RecordNotifyAttempt records a single notification POST attempt
func (m *Metrics) RecordNotifyAttempt() {
	m.NotifyAttemptsTotal.Inc()
}

// RecordNotifyOutcome records the final outcome of a notification delivery
func (m *Metrics) RecordNotifyOutcome(delivered bool) {
	outcome := "delivered"
	if !delivered {
		outcome = "exhausted"
	}
	m.NotifyOutcomesTotal.WithLabelValues(outcome).Inc()
}

// Helper function to convert status code to label
func statusCodeToLabel(code int) string {
	switch {
	case code >= 200 && code < 300:
		return "2xx"
	case code >= 300 && code < 400:
		return "3xx"
	case code >= 400 && code < 500:
		return "4xx"
	case code >= 500:
		return "5xx"
	default:
		return "unknown"
	}
}
