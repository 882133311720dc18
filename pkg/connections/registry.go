// Package connections provides the registry of named database
// connections. Each name maps to a factory that builds a live engine
// for the requesting principal; built engines are cached per
// (name, principal) with bounded LRU eviction.
package connections

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"github.com/txn2/analytics-gateway/pkg/cache"
	"github.com/txn2/analytics-gateway/pkg/identity"
)

// ErrUnknownConnection is returned when a connection name was never
// registered (or, for warehouse discovery, never discovered for the
// requesting principal).
var ErrUnknownConnection = errors.New("unknown connection")

// DefaultMaxEngines bounds the registry engine cache.
const DefaultMaxEngines = 100

// Engine is a live handle to a data source. *sql.DB satisfies it.
// Engines are expensive to create and safe for concurrent use once
// obtained; the registry governs only their identity and lifetime.
type Engine interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	PingContext(ctx context.Context) error
	Close() error
}

var _ Engine = (*sql.DB)(nil)

// Factory builds a live engine for the identity behind a request.
type Factory func(ctx context.Context, id identity.Identity) (Engine, error)

// EngineKey identifies a cached engine.
type EngineKey struct {
	Name      string
	Principal string
}

// Registry holds named connection factories and a bounded cache of the
// engines they have produced.
type Registry struct {
	mu        sync.RWMutex
	factories map[string]Factory
	providers map[string]string

	engines *cache.Cache[EngineKey, Engine]
}

// NewRegistry creates a registry whose engine cache holds at most
// maxEngines live engines. maxEngines <= 0 selects DefaultMaxEngines.
func NewRegistry(maxEngines int) *Registry {
	if maxEngines <= 0 {
		maxEngines = DefaultMaxEngines
	}
	return &Registry{
		factories: make(map[string]Factory),
		providers: make(map[string]string),
		engines: cache.New[EngineKey, Engine](maxEngines, func(e Engine) {
			if err := e.Close(); err != nil {
				slog.Warn("connections: closing evicted engine", "error", err)
			}
		}),
	}
}

// Register adds or replaces a named connection factory. An empty
// provider preserves any provider set by an earlier registration.
// Engines already cached under this name are not evicted; they remain
// until displaced by LRU pressure or disposed at shutdown.
func (r *Registry) Register(name string, factory Factory, provider string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.factories[name] = factory
	if provider != "" {
		r.providers[name] = provider
	}
}

// GetEngine returns the cached engine for (name, principal), building
// it with the registered factory on first use. The principal is taken
// from ctx via identity.FromContext.
func (r *Registry) GetEngine(ctx context.Context, name string) (Engine, error) {
	r.mu.RLock()
	factory, ok := r.factories[name]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownConnection, name)
	}

	id := identity.FromContext(ctx)
	key := EngineKey{Name: name, Principal: id.Principal}

	return r.engines.GetOrCreate(key, func() (Engine, error) {
		slog.Debug("connections: building engine", "connection", name, "principal", id.Principal)
		return factory(ctx, id)
	})
}

// ListConnections returns the registered connection names in sorted
// order.
func (r *Registry) ListConnections() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.factories))
	for name := range r.factories {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// HasConnection reports whether name is registered.
func (r *Registry) HasConnection(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.factories[name]
	return ok
}

// GetProvider returns the provider tag for a connection, or "" if none
// was ever set.
func (r *Registry) GetProvider(name string) string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.providers[name]
}

// DisposeAll closes every cached engine. Safe to call repeatedly;
// called once during graceful shutdown.
func (r *Registry) DisposeAll() {
	r.engines.Purge()
}
