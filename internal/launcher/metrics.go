package launcher

import "time"

// MetricsCollector receives pool lifecycle events.
type MetricsCollector interface {
	// PoolStateTransition records a pool state change
	PoolStateTransition(from, to PoolState)

	// WorkerStarted records a successful spawn in slot id
	WorkerStarted(id int)

	// WorkerExited records a worker exit and its code
	WorkerExited(id int, code int)

	// WorkerRestart records a crash restart and the backoff before it
	WorkerRestart(id int, delay time.Duration)

	// Reload records one rolling restart of the whole pool
	Reload(duration time.Duration, err error)
}

// noopMetricsCollector is a no-op implementation of MetricsCollector
type noopMetricsCollector struct{}

func (n *noopMetricsCollector) PoolStateTransition(from, to PoolState)    {}
func (n *noopMetricsCollector) WorkerStarted(id int)                      {}
func (n *noopMetricsCollector) WorkerExited(id int, code int)             {}
func (n *noopMetricsCollector) WorkerRestart(id int, delay time.Duration) {}
func (n *noopMetricsCollector) Reload(duration time.Duration, err error)  {}

// NewNoopMetricsCollector creates a no-op metrics collector
func NewNoopMetricsCollector() MetricsCollector {
	return &noopMetricsCollector{}
}
