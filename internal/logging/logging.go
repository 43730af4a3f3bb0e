// Package logging builds the zap loggers used by the master and workers.
package logging

import (
	"fmt"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Roles attached to every log line.
const (
	RoleMaster = "master"
	RoleWorker = "worker"
)

// Options selects the logger level and output.
type Options struct {
	// Level is one of debug, info, warn, error. Empty means info.
	Level string
	// Verbose forces debug regardless of Level.
	Verbose bool
	// OutputPaths defaults to stderr.
	OutputPaths []string
}

// New returns a JSON production logger at the requested level.
func New(opts Options, fields ...zap.Field) (*zap.Logger, error) {
	config := zap.NewProductionConfig()

	level := zapcore.InfoLevel
	if opts.Level != "" {
		if err := level.UnmarshalText([]byte(opts.Level)); err != nil {
			return nil, fmt.Errorf("log level %q: %w", opts.Level, err)
		}
	}
	if opts.Verbose {
		level = zapcore.DebugLevel
	}
	config.Level = zap.NewAtomicLevelAt(level)

	if len(opts.OutputPaths) > 0 {
		config.OutputPaths = opts.OutputPaths
		config.ErrorOutputPaths = opts.OutputPaths
	}

	logger, err := config.Build()
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}
	return logger.With(fields...), nil
}

// Master returns the master process logger.
func Master(opts Options) (*zap.Logger, error) {
	return New(opts, zap.String("role", RoleMaster))
}

// Worker returns a logger tagged with the worker slot.
func Worker(opts Options, id int) (*zap.Logger, error) {
	return New(opts, zap.String("role", RoleWorker), zap.Int("worker", id))
}
