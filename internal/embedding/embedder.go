// Package embedding builds domain.Embedder implementations from config.
package embedding

import (
	"fmt"
	"log/slog"
	"os"
	"sort"
	"sync"
	"time"

	"hybridrag/internal/config"
	"hybridrag/internal/domain"
	"hybridrag/internal/embedding/hash"
	"hybridrag/internal/embedding/openai"
	"hybridrag/internal/embedding/tfidf"
	"hybridrag/internal/errors"
)

// Factory builds an embedder from its config section.
type Factory func(cfg config.EmbedderConfig, logger *slog.Logger) (domain.Embedder, error)

// Registry maps provider keys to factories.
type Registry struct {
	mu        sync.RWMutex
	factories map[string]Factory
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{factories: make(map[string]Factory)}
}

// DefaultRegistry knows the hash, tfidf and openai providers.
func DefaultRegistry() *Registry {
	r := NewRegistry()
	r.Register("hash", newHash)
	r.Register("tfidf", newTFIDF)
	r.Register("openai", newOpenAI)
	return r
}

// Register adds or replaces a provider.
func (r *Registry) Register(name string, f Factory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.factories[name] = f
}

// Names returns the registered provider keys, sorted.
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

// Build constructs the provider named by cfg.Type and wraps it in an LRU
// cache when cfg.CacheSize > 0.
func (r *Registry) Build(cfg config.EmbedderConfig, logger *slog.Logger) (domain.Embedder, error) {
	r.mu.RLock()
	f, ok := r.factories[cfg.Type]
	r.mu.RUnlock()
	if !ok {
		return nil, errors.New(errors.ErrCodeConfigInvalid,
			fmt.Sprintf("unknown embedder: %q", cfg.Type), nil)
	}
	if logger == nil {
		logger = slog.Default()
	}
	e, err := f(cfg, logger)
	if err != nil {
		return nil, err
	}
	if cfg.CacheSize > 0 {
		return NewCached(e, cfg.CacheSize), nil
	}
	return e, nil
}

func newHash(cfg config.EmbedderConfig, _ *slog.Logger) (domain.Embedder, error) {
	return hash.NewEmbedder(cfg.Dimension), nil
}

func newTFIDF(config.EmbedderConfig, *slog.Logger) (domain.Embedder, error) {
	return tfidf.NewEmbedder(), nil
}

func newOpenAI(cfg config.EmbedderConfig, logger *slog.Logger) (domain.Embedder, error) {
	o := cfg.OpenAI
	if o == nil {
		return nil, errors.New(errors.ErrCodeConfigInvalid, "openai embedder config missing", nil)
	}
	key := os.Getenv(o.APIKeyEnv)
	if key == "" {
		return nil, errors.New(errors.ErrCodeConfigInvalid,
			fmt.Sprintf("missing API key in env %s", o.APIKeyEnv), nil)
	}
	return openai.NewClient(openai.Config{
		BaseURL:    o.BaseURL,
		APIKey:     key,
		Model:      o.Model,
		Timeout:    time.Duration(o.TimeoutSecs) * time.Second,
		BatchSize:  o.BatchSize,
		MaxRetries: o.MaxRetries,
		Dimension:  cfg.Dimension,

		RequestsPerSecond: o.RequestsPerSecond,
		Burst:             o.Burst,
	}, logger), nil
}
