// Package apps resolves "module:object" entry points to application
// factories registered at init time.
package apps

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sort"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/mesh-intelligence/cvalchemist/internal/config"
)

// DefaultEntryPoint names the bundled résumé application.
const DefaultEntryPoint = "main:app"

// Entry point errors.
var (
	ErrEntryPointInvalid   = errors.New("entry point must have the form module:object")
	ErrEntryPointNotFound  = errors.New("entry point not found")
	ErrEntryPointDuplicate = errors.New("entry point already registered")
	ErrNilFactory          = errors.New("factory must not be nil")
)

// EntryPoint is a parsed "module:object" reference.
type EntryPoint struct {
	Module string
	Object string
}

// String returns the module:object form.
func (e EntryPoint) String() string {
	return e.Module + ":" + e.Object
}

// ParseEntryPoint splits raw at its first colon. Both sides must be
// non-empty once surrounding spaces are trimmed.
func ParseEntryPoint(raw string) (EntryPoint, error) {
	module, object, ok := strings.Cut(strings.TrimSpace(raw), ":")
	module = strings.TrimSpace(module)
	object = strings.TrimSpace(object)
	if !ok || module == "" || object == "" || strings.Contains(object, ":") {
		return EntryPoint{}, fmt.Errorf("%w: %q", ErrEntryPointInvalid, raw)
	}
	return EntryPoint{Module: module, Object: object}, nil
}

// Env carries what a factory needs to build an application inside one worker.
type Env struct {
	WorkerID int
	Workers  int
	Settings *config.Settings
	Logger   *zap.Logger
}

// App is a loaded application. Close releases whatever the factory opened
// and may be nil.
type App struct {
	Handler http.Handler
	Close   func() error
}

// Factory builds an App for one worker.
type Factory func(ctx context.Context, env Env) (*App, error)

// Registry maps entry points to factories. The zero value is not usable;
// call NewRegistry.
type Registry struct {
	mu        sync.RWMutex
	factories map[EntryPoint]Factory
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{factories: make(map[EntryPoint]Factory)}
}

// Default holds the applications compiled into the binary.
var Default = NewRegistry()

// Register adds f under name.
func (r *Registry) Register(name string, f Factory) error {
	ep, err := ParseEntryPoint(name)
	if err != nil {
		return err
	}
	if f == nil {
		return ErrNilFactory
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.factories[ep]; ok {
		return fmt.Errorf("%w: %s", ErrEntryPointDuplicate, ep)
	}
	r.factories[ep] = f
	return nil
}

// MustRegister is Register for init functions.
func (r *Registry) MustRegister(name string, f Factory) {
	if err := r.Register(name, f); err != nil {
		panic(err)
	}
}

// Lookup returns the factory registered under ep.
func (r *Registry) Lookup(ep EntryPoint) (Factory, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	f, ok := r.factories[ep]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrEntryPointNotFound, ep)
	}
	return f, nil
}

// Resolve parses raw and looks it up.
func (r *Registry) Resolve(raw string) (EntryPoint, Factory, error) {
	ep, err := ParseEntryPoint(raw)
	if err != nil {
		return EntryPoint{}, nil, err
	}
	f, err := r.Lookup(ep)
	if err != nil {
		return ep, nil, err
	}
	return ep, f, nil
}

// Names lists registered entry points in sorted order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.factories))
	for ep := range r.factories {
		names = append(names, ep.String())
	}
	sort.Strings(names)
	return names
}
