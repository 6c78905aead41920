package cmd

import (
	"context"
	"fmt"
	"log/slog"

	"hybridrag/internal/chunker"
	"hybridrag/internal/config"
	"hybridrag/internal/domain"
	"hybridrag/internal/embedding"
	"hybridrag/internal/errors"
	"hybridrag/internal/service"
	"hybridrag/internal/strategy"
	"hybridrag/internal/summarizer"
	"hybridrag/internal/vectorstore"
)

// app holds the components assembled from config.
type app struct {
	strategies *strategy.Registry
	store      domain.VectorStore
	service    *service.RAGService
}

func (a *app) Close() error {
	return a.store.Close()
}

func buildStrategies(cfg config.ChunkerConfig, logger *slog.Logger) (*strategy.Registry, error) {
	reg := strategy.NewRegistry(logger)
	if cfg.UseBuiltins {
		for _, s := range strategy.Builtins() {
			if err := reg.Register(s); err != nil {
				return nil, err
			}
		}
	}
	for _, s := range cfg.Strategies {
		if err := reg.Register(s); err != nil {
			return nil, fmt.Errorf("register strategy %q: %w", s.Name, err)
		}
	}
	if cfg.Default != nil {
		if err := reg.SetDefault(*cfg.Default); err != nil {
			return nil, err
		}
	}
	return reg, nil
}

func buildChunker(cfg config.ChunkerConfig, reg *strategy.Registry) (domain.Chunker, error) {
	switch cfg.Type {
	case "strategy", "":
		return strategy.NewChunker(reg), nil
	case "window":
		return chunker.NewWindowChunker(reg.Default())
	case "sentence":
		return chunker.NewSentenceChunker(cfg.SentencesPerChunk, cfg.OverlapSentences), nil
	default:
		return nil, errors.New(errors.ErrCodeConfigInvalid, fmt.Sprintf("unknown chunker: %q", cfg.Type), nil)
	}
}

func buildSummarizer(cfg config.SummarizerConfig) (domain.Summarizer, error) {
	switch cfg.Type {
	case "frequency", "":
		return summarizer.NewFrequencySummarizer(), nil
	case "none":
		return nil, nil
	default:
		return nil, errors.New(errors.ErrCodeConfigInvalid, fmt.Sprintf("unknown summarizer: %q", cfg.Type), nil)
	}
}

// buildApp assembles the service. The caller must Close the app.
func buildApp(_ context.Context, cfg *config.AppConfig, logger *slog.Logger) (*app, error) {
	reg, err := buildStrategies(cfg.Chunker, logger)
	if err != nil {
		return nil, err
	}
	ch, err := buildChunker(cfg.Chunker, reg)
	if err != nil {
		return nil, err
	}
	sum, err := buildSummarizer(cfg.Summarizer)
	if err != nil {
		return nil, err
	}
	emb, err := embedding.DefaultRegistry().Build(cfg.Embedder, logger)
	if err != nil {
		return nil, err
	}
	store, err := vectorstore.DefaultRegistry().Open(cfg.VectorStore, logger)
	if err != nil {
		return nil, err
	}

	svc, err := service.NewRAGService(service.Dependencies{
		Chunker:    ch,
		Embedder:   emb,
		Store:      store,
		Summarizer: sum,
		Strategies: reg,
	}, service.Options{
		Search:              cfg.Search,
		EmbedTimeout:        cfg.Ingest.EmbedTimeout(),
		Concurrency:         cfg.Ingest.Concurrency,
		BatchSize:           cfg.Ingest.BatchSize,
		SummaryMaxSentences: cfg.Summarizer.MaxSentences,
	}, logger)
	if err != nil {
		_ = store.Close()
		return nil, err
	}
	logger.Debug("app_ready",
		slog.String("embedder", emb.Name()),
		slog.String("vector_store", cfg.VectorStore.Type),
		slog.String("chunker", cfg.Chunker.Type))
	return &app{strategies: reg, store: store, service: svc}, nil
}
