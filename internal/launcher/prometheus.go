package launcher

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// PrometheusMetricsCollector implements MetricsCollector using Prometheus metrics
type PrometheusMetricsCollector struct {
	stateTransitions *prometheus.CounterVec
	poolState        prometheus.Gauge

	workersRunning prometheus.Gauge
	workerStarts   *prometheus.CounterVec
	workerExits    *prometheus.CounterVec
	restarts       *prometheus.CounterVec
	backoff        prometheus.Histogram

	reloads        *prometheus.CounterVec
	reloadDuration prometheus.Histogram

	registry *prometheus.Registry
}

// NewPrometheusMetricsCollector creates a collector with its own registry.
func NewPrometheusMetricsCollector(namespace string) *PrometheusMetricsCollector {
	if namespace == "" {
		namespace = "alchemist"
	}

	pmc := &PrometheusMetricsCollector{
		registry: prometheus.NewRegistry(),
	}

	pmc.stateTransitions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "pool_state_transitions_total",
			Help:      "Total number of pool state transitions",
		},
		[]string{"from_state", "to_state"},
	)

	pmc.poolState = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "pool_state",
			Help:      "Current pool state (0 NotStarted, 1 Listening, 2 Terminated)",
		},
	)

	pmc.workersRunning = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "workers_running",
			Help:      "Number of worker processes currently alive",
		},
	)

	pmc.workerStarts = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "worker_starts_total",
			Help:      "Total number of worker spawns",
		},
		[]string{"worker"},
	)

	pmc.workerExits = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "worker_exits_total",
			Help:      "Total number of worker exits by exit code",
		},
		[]string{"worker", "code"},
	)

	pmc.restarts = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "worker_restarts_total",
			Help:      "Total number of worker crash restarts",
		},
		[]string{"worker"},
	)

	pmc.backoff = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "worker_restart_backoff_seconds",
			Help:      "Backoff delay before a crashed worker is restarted",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5},
		},
	)

	pmc.reloads = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "pool_reloads_total",
			Help:      "Total number of rolling restarts",
		},
		[]string{"status"},
	)

	pmc.reloadDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "pool_reload_duration_seconds",
			Help:      "Duration of rolling restarts",
			Buckets:   prometheus.DefBuckets,
		},
	)

	pmc.registry.MustRegister(
		pmc.stateTransitions,
		pmc.poolState,
		pmc.workersRunning,
		pmc.workerStarts,
		pmc.workerExits,
		pmc.restarts,
		pmc.backoff,
		pmc.reloads,
		pmc.reloadDuration,
	)

	return pmc
}

// PoolStateTransition records a state transition
func (pmc *PrometheusMetricsCollector) PoolStateTransition(from, to PoolState) {
	pmc.stateTransitions.WithLabelValues(from.String(), to.String()).Inc()
	pmc.poolState.Set(float64(to))
}

// WorkerStarted records a spawn
func (pmc *PrometheusMetricsCollector) WorkerStarted(id int) {
	pmc.workerStarts.WithLabelValues(strconv.Itoa(id)).Inc()
	pmc.workersRunning.Inc()
}

// WorkerExited records an exit
func (pmc *PrometheusMetricsCollector) WorkerExited(id int, code int) {
	pmc.workerExits.WithLabelValues(strconv.Itoa(id), strconv.Itoa(code)).Inc()
	pmc.workersRunning.Dec()
}

// WorkerRestart records a crash restart
func (pmc *PrometheusMetricsCollector) WorkerRestart(id int, delay time.Duration) {
	pmc.restarts.WithLabelValues(strconv.Itoa(id)).Inc()
	pmc.backoff.Observe(delay.Seconds())
}

// Reload records a rolling restart
func (pmc *PrometheusMetricsCollector) Reload(duration time.Duration, err error) {
	status := "success"
	if err != nil {
		status = "error"
	}
	pmc.reloads.WithLabelValues(status).Inc()
	pmc.reloadDuration.Observe(duration.Seconds())
}

// Registry returns the Prometheus registry for HTTP handler setup
func (pmc *PrometheusMetricsCollector) Registry() *prometheus.Registry {
	return pmc.registry
}
