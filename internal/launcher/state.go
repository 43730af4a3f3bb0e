package launcher

import "time"

// PoolState is the lifecycle of a Pool.
type PoolState int

const (
	// PoolNotStarted - Run has not bound the socket yet
	PoolNotStarted PoolState = iota
	// PoolListening - socket bound and workers supervised
	PoolListening
	// PoolTerminated - workers stopped and socket closed
	PoolTerminated
)

// String returns the string representation of a PoolState
func (s PoolState) String() string {
	switch s {
	case PoolNotStarted:
		return "NotStarted"
	case PoolListening:
		return "Listening"
	case PoolTerminated:
		return "Terminated"
	default:
		return "Unknown"
	}
}

// WorkerState is the lifecycle of one worker slot.
type WorkerState int

const (
	// WorkerStarting - spawn in progress
	WorkerStarting WorkerState = iota
	// WorkerRunning - process alive
	WorkerRunning
	// WorkerExited - process gone, slot waiting for restart or shutdown
	WorkerExited
)

// String returns the string representation of a WorkerState
func (s WorkerState) String() string {
	switch s {
	case WorkerStarting:
		return "Starting"
	case WorkerRunning:
		return "Running"
	case WorkerExited:
		return "Exited"
	default:
		return "Unknown"
	}
}

// WorkerStatus is a snapshot of one slot.
type WorkerStatus struct {
	ID        int
	PID       int
	State     WorkerState
	Restarts  int
	LastExit  int
	StartedAt time.Time
}
