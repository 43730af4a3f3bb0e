package launcher

import (
	"time"

	"go.uber.org/zap"

	"github.com/mesh-intelligence/cvalchemist/internal/apps"
)

// Option configures the Pool
type Option func(*Pool)

// WithSpawner replaces the process spawner
func WithSpawner(s Spawner) Option {
	return func(p *Pool) {
		p.spawner = s
	}
}

// WithMetricsCollector sets the metrics collector
func WithMetricsCollector(mc MetricsCollector) Option {
	return func(p *Pool) {
		p.metrics = mc
	}
}

// WithLogger sets the master logger
func WithLogger(l *zap.Logger) Option {
	return func(p *Pool) {
		p.logger = l
	}
}

// WithBackoff sets the crash restart backoff bounds
func WithBackoff(base, max time.Duration) Option {
	return func(p *Pool) {
		p.backoffBase = base
		p.backoffMax = max
	}
}

// WithStableAfter sets how long a worker must stay up before its slot's
// backoff resets
func WithStableAfter(d time.Duration) Option {
	return func(p *Pool) {
		p.stableAfter = d
	}
}

// WithRegistry sets the registry the entry point is checked against
func WithRegistry(r *apps.Registry) Option {
	return func(p *Pool) {
		p.registry = r
	}
}
