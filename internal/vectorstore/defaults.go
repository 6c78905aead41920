package vectorstore

import (
	"context"
	"log/slog"
	"time"

	"hybridrag/internal/config"
	"hybridrag/internal/domain"
	"hybridrag/internal/errors"
	"hybridrag/internal/vectorstore/memory"
	"hybridrag/internal/vectorstore/qdrant"
	"hybridrag/internal/vectorstore/sqlite"
)

// DefaultRegistry returns a registry with the memory, qdrant and sqlite
// backends registered.
func DefaultRegistry() *Registry {
	r := NewRegistry()
	r.Register("memory", openMemory)
	r.Register("qdrant", openQdrant)
	r.Register("sqlite", openSQLite)
	return r
}

func openMemory(_ config.VectorStoreConfig, logger *slog.Logger) (domain.VectorStore, error) {
	return memory.NewIndex(logger), nil
}

func openQdrant(cfg config.VectorStoreConfig, logger *slog.Logger) (domain.VectorStore, error) {
	if cfg.Qdrant == nil || cfg.Qdrant.URL == "" {
		return nil, errors.New(errors.ErrCodeConfigInvalid, "qdrant url is required", nil)
	}
	q := cfg.Qdrant
	return qdrant.NewStorage(qdrant.Config{
		URL:                 q.URL,
		APIKey:              q.APIKey,
		Collection:          q.Collection,
		Timeout:             time.Duration(q.TimeoutSecs) * time.Second,
		CandidateMultiplier: q.CandidateMultiplier,
	}, logger), nil
}

func openSQLite(cfg config.VectorStoreConfig, logger *slog.Logger) (domain.VectorStore, error) {
	path := ""
	if cfg.SQLite != nil {
		path = cfg.SQLite.Path
	}
	return sqlite.Open(context.Background(), path, logger)
}
