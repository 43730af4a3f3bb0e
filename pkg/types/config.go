package types

import (
	"errors"
	"time"
)

// Config holds result store selection and parameters for store.Open.
type Config struct {
	Backend   string        `json:"backend" yaml:"backend" mapstructure:"backend"`
	DataDir   string        `json:"data_dir" yaml:"data_dir" mapstructure:"data_dir"`
	RedisURL  string        `json:"redis_url" yaml:"redis_url" mapstructure:"redis_url"`
	ResultTTL time.Duration `json:"result_ttl" yaml:"result_ttl" mapstructure:"result_ttl"`
}

// Supported backend names.
const (
	BackendMemory = "memory"
	BackendSQLite = "sqlite"
	BackendRedis  = "redis"
)

// DefaultResultTTL bounds how long an analysis stays retrievable.
const DefaultResultTTL = 24 * time.Hour

// Config validation errors.
var (
	ErrBackendEmpty     = errors.New("backend must not be empty")
	ErrBackendUnknown   = errors.New("unknown backend")
	ErrRedisURLEmpty    = errors.New("redis backend requires redis_url")
	ErrResultTTLInvalid = errors.New("result ttl must not be negative")
)

// knownBackends lists the backends that Validate accepts.
var knownBackends = map[string]bool{
	BackendMemory: true,
	BackendSQLite: true,
	BackendRedis:  true,
}

// Validate checks that the Config is well-formed. It returns a sentinel error
// from this package on failure.
func (c Config) Validate() error {
	if c.Backend == "" {
		return ErrBackendEmpty
	}
	if !knownBackends[c.Backend] {
		return ErrBackendUnknown
	}
	if c.Backend == BackendRedis && c.RedisURL == "" {
		return ErrRedisURLEmpty
	}
	if c.ResultTTL < 0 {
		return ErrResultTTLInvalid
	}
	return nil
}

// TTL returns the effective result lifetime. Zero means DefaultResultTTL.
func (c Config) TTL() time.Duration {
	if c.ResultTTL == 0 {
		return DefaultResultTTL
	}
	return c.ResultTTL
}
