package storage

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/samber/lo"

	"renda-edge/internal/common/errors"
)

// Config selects and configures a storage backend.
type Config struct {
	Type string // "sqlite" or "postgres"
	DSN  string
}

// Opener opens one backend. Backends register an Opener from init.
type Opener func(ctx context.Context, config Config) (Storage, error)

// Registry maps backend names to openers.
type Registry struct {
	mu      sync.RWMutex
	openers map[string]Opener
}

func NewRegistry() *Registry {
	return &Registry{openers: make(map[string]Opener)}
}

// Register adds a backend. Registering a name twice panics.
func (r *Registry) Register(name string, open Opener) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if open == nil {
		panic("storage: Register opener is nil")
	}
	if _, dup := r.openers[name]; dup {
		panic("storage: Register called twice for " + name)
	}
	r.openers[name] = open
}

// Open opens the backend named by config.Type.
func (r *Registry) Open(ctx context.Context, config Config) (Storage, error) {
	r.mu.RLock()
	open, ok := r.openers[config.Type]
	r.mu.RUnlock()

	if !ok {
		return nil, errors.ConfigError(fmt.Sprintf("storage backend %q is not registered (available: %s)",
			config.Type, strings.Join(r.Types(), ", ")))
	}
	return open(ctx, config)
}

// Types returns the registered backend names, sorted.
func (r *Registry) Types() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	types := lo.Keys(r.openers)
	sort.Strings(types)
	return types
}

// DefaultRegistry holds the backends linked into the binary.
var DefaultRegistry = NewRegistry()

func Register(name string, open Opener) {
	DefaultRegistry.Register(name, open)
}

func Open(ctx context.Context, config Config) (Storage, error) {
	return DefaultRegistry.Open(ctx, config)
}
