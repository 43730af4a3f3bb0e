package launcher

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/mesh-intelligence/cvalchemist/internal/apps"
)

// Pool defaults.
const (
	EnvPort                = "PORT"
	DefaultHost            = "0.0.0.0"
	DefaultWorkers         = 4
	DefaultGracefulTimeout = 30 * time.Second
)

// Config describes one pool. Port has no default: it must come from the
// platform through PORT.
type Config struct {
	Host            string
	Port            int
	Workers         int
	EntryPoint      string
	GracefulTimeout time.Duration

	// Executable and WorkerArgs form the worker command line; the entry
	// point is appended. Empty Executable means the running binary.
	Executable string
	WorkerArgs []string
	// Env is appended to the master's environment for every worker.
	Env []string
}

// DefaultConfig returns a Config with every default applied except Port.
func DefaultConfig() Config {
	return Config{
		Host:            DefaultHost,
		Workers:         DefaultWorkers,
		EntryPoint:      apps.DefaultEntryPoint,
		GracefulTimeout: DefaultGracefulTimeout,
		WorkerArgs:      []string{"worker"},
	}
}

// ResolvePort parses a PORT value.
func ResolvePort(raw string) (int, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, ErrPortUnset
	}
	port, err := strconv.Atoi(raw)
	if err != nil || port < 1 || port > 65535 {
		return 0, fmt.Errorf("%w: %q", ErrPortInvalid, raw)
	}
	return port, nil
}

// Validate checks the config without touching the network.
func (c Config) Validate() error {
	if c.Port == 0 {
		return ErrPortUnset
	}
	if c.Port < 0 || c.Port > 65535 {
		return fmt.Errorf("%w: %d", ErrPortInvalid, c.Port)
	}
	if c.Workers < 1 {
		return fmt.Errorf("%w: %d", ErrWorkersInvalid, c.Workers)
	}
	if c.GracefulTimeout < 0 {
		return ErrGracefulInvalid
	}
	if _, err := apps.ParseEntryPoint(c.EntryPoint); err != nil {
		return err
	}
	return nil
}

func (c Config) address() string {
	host := c.Host
	if host == "" {
		host = DefaultHost
	}
	return host + ":" + strconv.Itoa(c.Port)
}
