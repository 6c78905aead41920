// Package vectorstore maps backend names to constructors of domain.VectorStore.
package vectorstore

import (
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"hybridrag/internal/config"
	"hybridrag/internal/domain"
	"hybridrag/internal/errors"
)

// Factory builds a backend from the application config.
type Factory func(cfg config.VectorStoreConfig, logger *slog.Logger) (domain.VectorStore, error)

// Registry maps backend names ("memory", "qdrant", "sqlite") to factories.
type Registry struct {
	mu        sync.RWMutex
	factories map[string]Factory
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{factories: make(map[string]Factory)}
}

// Register adds or replaces a backend factory.
func (r *Registry) Register(name string, f Factory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.factories[name] = f
}

// Names returns the registered backend names, sorted.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.factories))
	for n := range r.factories {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Open builds the backend named by cfg.Type.
func (r *Registry) Open(cfg config.VectorStoreConfig, logger *slog.Logger) (domain.VectorStore, error) {
	r.mu.RLock()
	f, ok := r.factories[cfg.Type]
	r.mu.RUnlock()
	if !ok {
		return nil, errors.New(errors.ErrCodeConfigInvalid,
			fmt.Sprintf("unknown vector store: %q", cfg.Type), nil)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return f(cfg, logger)
}
