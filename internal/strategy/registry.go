// Package strategy selects a chunking strategy for a document.
//
// Strategies are evaluated in registration order and the first one whose
// detection rules all match wins. Rule sets may overlap, so registration
// order is the priority order. Documents matching nothing get the default
// strategy (500/75).
package strategy

import (
	"log/slog"
	"sync"

	"hybridrag/internal/domain"
	"hybridrag/internal/errors"
)

// Registry is an ordered set of named chunking strategies.
type Registry struct {
	mu         sync.RWMutex
	strategies []domain.ChunkingStrategy
	byName     map[string]int
	fallback   domain.ChunkingStrategy
	logger     *slog.Logger
}

// NewRegistry creates an empty registry that falls back to domain.DefaultStrategy.
func NewRegistry(logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{
		byName:   make(map[string]int),
		fallback: domain.DefaultStrategy(),
		logger:   logger,
	}
}

// SetDefault replaces the fallback strategy.
func (r *Registry) SetDefault(s domain.ChunkingStrategy) error {
	if err := s.Validate(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.fallback = s
	return nil
}

// Default returns the fallback strategy.
func (r *Registry) Default() domain.ChunkingStrategy {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.fallback
}

// Register appends a strategy. Later registrations have lower priority.
func (r *Registry) Register(s domain.ChunkingStrategy) error {
	if err := s.Validate(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, dup := r.byName[s.Name]; dup {
		return errors.Validationf("strategy %q already registered", s.Name)
	}
	r.byName[s.Name] = len(r.strategies)
	r.strategies = append(r.strategies, s)
	return nil
}

// Get looks up a strategy by name, including the default.
func (r *Registry) Get(name string) (domain.ChunkingStrategy, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if i, ok := r.byName[name]; ok {
		return r.strategies[i], true
	}
	if name == r.fallback.Name {
		return r.fallback, true
	}
	return domain.ChunkingStrategy{}, false
}

// Names lists registered strategies in priority order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, len(r.strategies))
	for i, s := range r.strategies {
		names[i] = s.Name
	}
	return names
}

// Strategies returns a copy of the registered strategies in priority order.
func (r *Registry) Strategies() []domain.ChunkingStrategy {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]domain.ChunkingStrategy(nil), r.strategies...)
}

// Select returns the first registered strategy whose rules match doc,
// or the default when none does.
func (r *Registry) Select(doc domain.Document) domain.ChunkingStrategy {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s := SelectFrom(doc, r.strategies, r.fallback)
	r.logger.Debug("strategy_selected",
		slog.String("document_id", doc.ID),
		slog.String("source", doc.Metadata.Source),
		slog.String("strategy", s.Name))
	return s
}

// SelectFrom applies first-match-wins over an explicit ordered list.
func SelectFrom(doc domain.Document, strategies []domain.ChunkingStrategy, fallback domain.ChunkingStrategy) domain.ChunkingStrategy {
	features := Extract(doc)
	for _, s := range strategies {
		if Matches(s.DetectionRules, features) {
			return s
		}
	}
	return fallback
}
