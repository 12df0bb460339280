// Package monitoring exposes Prometheus metrics and health checks for the
// serving runtime on a separate HTTP listener.
package monitoring

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// MetricsConfig configures the collectors.
type MetricsConfig struct {
	// Namespace prefixes every metric name (default: "unchained").
	Namespace string

	// Buckets are the histogram buckets for request and render durations.
	// Default: prometheus.DefBuckets
	Buckets []float64

	// Registry receives the collectors. Default: a fresh registry.
	Registry *prometheus.Registry
}

// DefaultMetricsConfig returns the default metrics configuration.
func DefaultMetricsConfig() MetricsConfig {
	return MetricsConfig{
		Namespace: "unchained",
		Buckets:   prometheus.DefBuckets,
	}
}

// Metrics holds every collector the server, worker pool and site report to.
// All methods are safe for concurrent use.
type Metrics struct {
	registry *prometheus.Registry

	connectionsTotal *prometheus.CounterVec
	requestsTotal    *prometheus.CounterVec
	requestDuration  *prometheus.HistogramVec
	rendersTotal     *prometheus.CounterVec
	renderDuration   prometheus.Histogram
	queueDepth       prometheus.Gauge
	tasksTotal       *prometheus.CounterVec
}

// NewMetrics registers the collectors described by config.
func NewMetrics(config MetricsConfig) *Metrics {
	defaults := DefaultMetricsConfig()
	if config.Namespace == "" {
		config.Namespace = defaults.Namespace
	}
	if len(config.Buckets) == 0 {
		config.Buckets = defaults.Buckets
	}
	if config.Registry == nil {
		config.Registry = prometheus.NewRegistry()
	}

	factory := promauto.With(config.Registry)

	return &Metrics{
		registry: config.Registry,

		connectionsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: config.Namespace,
			Name:      "connections_total",
			Help:      "Connections handled, by outcome",
		}, []string{"outcome"}),

		requestsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: config.Namespace,
			Name:      "requests_total",
			Help:      "Requests answered, by verb and status code",
		}, []string{"verb", "status"}),

		requestDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: config.Namespace,
			Name:      "request_duration_seconds",
			Help:      "Time from request parsed to response written",
			Buckets:   config.Buckets,
		}, []string{"verb"}),

		rendersTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: config.Namespace,
			Name:      "renders_total",
			Help:      "Page renders, by result",
		}, []string{"result"}),

		renderDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: config.Namespace,
			Name:      "render_duration_seconds",
			Help:      "Page render duration in seconds",
			Buckets:   config.Buckets,
		}),

		queueDepth: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: config.Namespace,
			Name:      "worker_queue_depth",
			Help:      "Tasks waiting for a worker",
		}),

		tasksTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: config.Namespace,
			Name:      "worker_tasks_total",
			Help:      "Worker tasks finished, by result",
		}, []string{"result"}),
	}
}

// Registry returns the registry the collectors are registered with.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// ConnectionAccepted counts a connection handed to the pool.
func (m *Metrics) ConnectionAccepted() {
	m.connectionsTotal.WithLabelValues("accepted").Inc()
}

// ConnectionFailed counts a connection whose handling ended in an error.
func (m *Metrics) ConnectionFailed() {
	m.connectionsTotal.WithLabelValues("failed").Inc()
}

// RequestServed records one answered request.
func (m *Metrics) RequestServed(verb string, status int, elapsed time.Duration) {
	m.requestsTotal.WithLabelValues(verb, strconv.Itoa(status)).Inc()
	m.requestDuration.WithLabelValues(verb).Observe(elapsed.Seconds())
}

// RenderCompleted records one page render.
func (m *Metrics) RenderCompleted(elapsed time.Duration, err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.rendersTotal.WithLabelValues(result).Inc()
	m.renderDuration.Observe(elapsed.Seconds())
}

// QueueDepth sets the worker queue depth gauge.
func (m *Metrics) QueueDepth(n int) {
	m.queueDepth.Set(float64(n))
}

// TaskExecuted counts a task that returned without error.
func (m *Metrics) TaskExecuted() {
	m.tasksTotal.WithLabelValues("ok").Inc()
}

// TaskFailed counts a task that returned an error or panicked.
func (m *Metrics) TaskFailed() {
	m.tasksTotal.WithLabelValues("error").Inc()
}
