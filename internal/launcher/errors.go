package launcher

import "errors"

// Launcher errors.
var (
	ErrPortUnset           = errors.New("PORT is not set")
	ErrPortInvalid         = errors.New("PORT must be an integer between 1 and 65535")
	ErrWorkersInvalid      = errors.New("workers must be at least 1")
	ErrGracefulInvalid     = errors.New("graceful timeout must not be negative")
	ErrBind                = errors.New("bind listener")
	ErrWorkerBoot          = errors.New("worker failed to boot")
	ErrPoolStarted         = errors.New("pool already started")
	ErrPoolNotListening    = errors.New("pool is not listening")
	ErrNoInheritedListener = errors.New("no inherited listener")
)

// Worker exit codes the master treats as fatal for the whole pool.
// Any other exit is a crash and the slot is restarted.
const (
	ExitBootError    = 3
	ExitAppLoadError = 4
)

// fatalExit reports whether a worker exit code means the pool cannot serve.
func fatalExit(code int) bool {
	return code == ExitBootError || code == ExitAppLoadError
}
