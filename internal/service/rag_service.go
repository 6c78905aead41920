// Package service wires chunking, embedding and the hybrid index into the
// ingest and query use-cases.
package service

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	stderrors "errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"hybridrag/internal/domain"
	"hybridrag/internal/errors"
	"hybridrag/internal/strategy"
)

// Options tunes ingest and query behaviour.
type Options struct {
	Search domain.HybridConfig
	// EmbedTimeout bounds each embedding call; 0 means no timeout.
	EmbedTimeout time.Duration
	// Concurrency and BatchSize apply unless the document's strategy
	// carries its own performance hints.
	Concurrency         int
	BatchSize           int
	SummaryMaxSentences int
}

// DefaultOptions mirrors the config defaults.
func DefaultOptions() Options {
	return Options{
		Search:              domain.DefaultHybridConfig(),
		EmbedTimeout:        30 * time.Second,
		Concurrency:         4,
		BatchSize:           32,
		SummaryMaxSentences: 5,
	}
}

// ChunkFailure records a chunk that could not be embedded or stored.
type ChunkFailure struct {
	ChunkID    string
	DocumentID string
	Err        error
}

// IngestReport summarises one ingest call. Failed chunks are never in the
// index.
type IngestReport struct {
	Documents int
	Chunks    int
	Indexed   int
	Failed    []ChunkFailure
}

// QueryOptions overrides the configured search defaults for one query.
// Zero values keep the defaults.
type QueryOptions struct {
	Limit        int
	Threshold    *float64
	HybridWeight *float64
	Filter       map[string]any
}

// RAGService implements ingest and retrieval over pluggable ports.
type RAGService struct {
	chunker    domain.Chunker
	embedder   domain.Embedder
	store      domain.VectorStore
	summarizer domain.Summarizer
	strategies *strategy.Registry
	opts       Options
	logger     *slog.Logger

	mu     sync.Mutex
	docs   map[string]domain.Document
	chunks map[string][]domain.Chunk
	order  []string
}

// Dependencies are the ports a RAGService is built from. Strategies is
// optional and only consulted for performance hints.
type Dependencies struct {
	Chunker    domain.Chunker
	Embedder   domain.Embedder
	Store      domain.VectorStore
	Summarizer domain.Summarizer
	Strategies *strategy.Registry
}

// NewRAGService validates opts and returns a service.
func NewRAGService(deps Dependencies, opts Options, logger *slog.Logger) (*RAGService, error) {
	if deps.Chunker == nil || deps.Embedder == nil || deps.Store == nil {
		return nil, errors.Validationf("chunker, embedder and store are required")
	}
	if err := opts.Search.Validate(); err != nil {
		return nil, err
	}
	if opts.EmbedTimeout < 0 {
		return nil, errors.Validationf("embed timeout must not be negative")
	}
	if opts.Concurrency <= 0 {
		opts.Concurrency = 1
	}
	if opts.BatchSize <= 0 {
		opts.BatchSize = 1
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &RAGService{
		chunker:    deps.Chunker,
		embedder:   deps.Embedder,
		store:      deps.Store,
		summarizer: deps.Summarizer,
		strategies: deps.Strategies,
		opts:       opts,
		logger:     logger,
		docs:       make(map[string]domain.Document),
		chunks:     make(map[string][]domain.Chunk),
	}, nil
}

// IngestFiles expands globs, reads every regular file and ingests them as
// documents. Re-ingesting a path replaces its earlier chunks.
func (s *RAGService) IngestFiles(ctx context.Context, paths []string) (IngestReport, error) {
	var docs []domain.Document
	for _, p := range paths {
		matches, _ := filepath.Glob(p)
		if matches == nil {
			matches = []string{p}
		}
		for _, m := range matches {
			info, err := os.Stat(m)
			if err != nil {
				return IngestReport{}, errors.Validationf("read %s: %v", m, err)
			}
			if info.IsDir() {
				continue
			}
			data, err := os.ReadFile(m)
			if err != nil {
				return IngestReport{}, errors.Validationf("read %s: %v", m, err)
			}
			docs = append(docs, fileDocument(m, string(data), info.ModTime()))
		}
	}
	if len(docs) == 0 {
		return IngestReport{}, errors.Validationf("no documents found")
	}
	return s.IngestDocuments(ctx, docs...)
}

func fileDocument(path, content string, modTime time.Time) domain.Document {
	now := time.Now().UTC()
	return domain.Document{
		ID:      hashString(path),
		Content: content,
		Metadata: domain.DocumentMetadata{
			Source:    path,
			Type:      strings.TrimPrefix(strings.ToLower(filepath.Ext(path)), "."),
			CreatedAt: modTime.UTC(),
			UpdatedAt: now,
		},
	}
}

// IngestDocuments chunks, embeds and indexes documents. Chunk-level
// failures land in the report; the error is reserved for failures that stop
// the whole call (invalid input, cancellation, corpus preparation).
func (s *RAGService) IngestDocuments(ctx context.Context, docs ...domain.Document) (IngestReport, error) {
	report := IngestReport{Documents: len(docs)}
	chunked := make(map[string][]domain.Chunk, len(docs))
	for _, d := range docs {
		if d.ID == "" {
			return report, errors.Validationf("document id is required")
		}
		chunks, err := s.chunker.Chunk(d)
		if err != nil {
			return report, fmt.Errorf("chunk %s: %w", d.ID, err)
		}
		chunked[d.ID] = chunks
		report.Chunks += len(chunks)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	previous := make(map[string]domain.Document, len(docs))
	previousChunks := make(map[string][]domain.Chunk, len(docs))
	for _, d := range docs {
		if old, seen := s.docs[d.ID]; seen {
			previous[d.ID] = old
			previousChunks[d.ID] = s.chunks[d.ID]
		} else {
			s.order = append(s.order, d.ID)
		}
		s.docs[d.ID] = d
		s.chunks[d.ID] = chunked[d.ID]
	}

	targets := docs
	replace := true
	if p, ok := s.embedder.(domain.Preparer); ok {
		// a refit vocabulary changes every vector, so the whole corpus is re-indexed
		if corpus := s.corpusTextsLocked(); len(corpus) > 0 {
			if err := p.Prepare(corpus); err != nil {
				return report, fmt.Errorf("prepare embedder: %w", err)
			}
		}
		if _, err := s.store.Clear(ctx); err != nil {
			return report, err
		}
		targets = s.documentsLocked()
		replace = false
		s.logger.Info("index_rebuilt",
			slog.String("embedder", s.embedder.Name()),
			slog.Int("documents", len(targets)))
	}

	for _, d := range targets {
		indexed, failed, kept, err := s.indexDocument(ctx, d, s.chunks[d.ID], replace)
		report.Indexed += indexed
		report.Failed = append(report.Failed, failed...)
		if old, ok := previous[d.ID]; ok && kept {
			// nothing new was embedded; the earlier version stays searchable
			s.docs[d.ID] = old
			s.chunks[d.ID] = previousChunks[d.ID]
		}
		if err != nil {
			return report, err
		}
		if err := ctx.Err(); err != nil {
			return report, err
		}
	}
	s.logger.Info("ingest_complete",
		slog.Int("documents", report.Documents),
		slog.Int("chunks", report.Chunks),
		slog.Int("indexed", report.Indexed),
		slog.Int("failed", len(report.Failed)))
	return report, nil
}

// indexDocument embeds chunks in batches on a bounded worker pool, then
// upserts every chunk whose vector exists. With replace set, the document's
// earlier chunks are removed once embedding is over; if no chunk could be
// embedded they are kept and kept is true.
func (s *RAGService) indexDocument(ctx context.Context, doc domain.Document, chunks []domain.Chunk, replace bool) (indexed int, failed []ChunkFailure, kept bool, err error) {
	var (
		mu      sync.Mutex
		vectors = make([][]float64, len(chunks))
	)
	fail := func(batch []domain.Chunk, err error) {
		mu.Lock()
		defer mu.Unlock()
		for _, c := range batch {
			failed = append(failed, ChunkFailure{ChunkID: c.ChunkID, DocumentID: c.DocumentID, Err: err})
		}
		s.logger.Warn("chunk_embed_failed",
			slog.String("document_id", doc.ID),
			slog.Int("chunks", len(batch)),
			slog.String("error", err.Error()))
	}

	if len(chunks) > 0 {
		batchSize, concurrency := s.performance(chunks[0].Strategy)
		g := new(errgroup.Group)
		g.SetLimit(concurrency)
		for start := 0; start < len(chunks); start += batchSize {
			end := min(start+batchSize, len(chunks))
			batch := chunks[start:end]
			g.Go(func() error {
				if err := ctx.Err(); err != nil {
					fail(batch, err)
					return nil
				}
				vecs, err := s.embed(ctx, batch)
				if err != nil {
					fail(batch, err)
					return nil
				}
				copy(vectors[start:end], vecs)
				return nil
			})
		}
		_ = g.Wait()
	}

	if replace {
		if len(chunks) > 0 && len(failed) == len(chunks) {
			s.logger.Warn("reindex_skipped",
				slog.String("document_id", doc.ID),
				slog.Int("failed", len(failed)))
			return 0, failed, true, nil
		}
		if _, err := s.store.DeleteByDocument(ctx, doc.ID); err != nil {
			return 0, failed, false, err
		}
	}

	for i, c := range chunks {
		if vectors[i] == nil {
			continue
		}
		if err := s.store.Upsert(ctx, chunkRecord(doc, c, vectors[i])); err != nil {
			fail([]domain.Chunk{c}, err)
			continue
		}
		indexed++
	}
	return indexed, failed, false, nil
}

func (s *RAGService) embed(ctx context.Context, batch []domain.Chunk) ([][]float64, error) {
	if s.opts.EmbedTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.opts.EmbedTimeout)
		defer cancel()
	}
	texts := make([]string, len(batch))
	for i, c := range batch {
		texts[i] = c.Content
	}
	vectors, err := s.embedder.EmbedBatch(ctx, texts)
	if err != nil {
		if stderrors.Is(err, context.DeadlineExceeded) {
			return nil, errors.New(errors.ErrCodeNetworkTimeout, "embedding timed out", err)
		}
		return nil, err
	}
	if len(vectors) != len(texts) {
		return nil, errors.New(errors.ErrCodeEmbeddingFailed,
			fmt.Sprintf("embedder returned %d vectors for %d texts", len(vectors), len(texts)), nil)
	}
	return vectors, nil
}

func (s *RAGService) performance(strategyName string) (batchSize, concurrency int) {
	batchSize, concurrency = s.opts.BatchSize, s.opts.Concurrency
	if s.strategies == nil {
		return batchSize, concurrency
	}
	if st, ok := s.strategies.Get(strategyName); ok {
		if st.Performance.EmbedBatchSize > 0 {
			batchSize = st.Performance.EmbedBatchSize
		}
		if st.Performance.MaxConcurrency > 0 {
			concurrency = st.Performance.MaxConcurrency
		}
	}
	return batchSize, concurrency
}

func chunkRecord(doc domain.Document, c domain.Chunk, vector []float64) domain.VectorRecord {
	return domain.VectorRecord{
		ID:     c.ChunkID,
		Vector: vector,
		Text:   c.Content,
		Payload: map[string]any{
			domain.PayloadDocumentID: c.DocumentID,
			domain.PayloadChunkID:    c.ChunkID,
			domain.PayloadChunkIndex: c.Index,
			domain.PayloadSource:     doc.Metadata.Source,
			domain.PayloadType:       doc.Metadata.Type,
			domain.PayloadStrategy:   c.Strategy,
			domain.PayloadText:       c.Content,
		},
	}
}

// Query embeds text and runs a hybrid search with the configured defaults
// overridden by opts.
func (s *RAGService) Query(ctx context.Context, text string, opts QueryOptions) ([]domain.SearchResult, error) {
	req := domain.SearchRequest{
		Text:           text,
		Limit:          s.opts.Search.MaxResults,
		ScoreThreshold: s.opts.Search.SimilarityThreshold,
		HybridWeight:   s.opts.Search.HybridWeight,
		Filter:         opts.Filter,
	}
	if opts.Limit != 0 {
		req.Limit = opts.Limit
	}
	if opts.Threshold != nil {
		req.ScoreThreshold = *opts.Threshold
	}
	if opts.HybridWeight != nil {
		req.HybridWeight = *opts.HybridWeight
	}
	if err := req.Validate(); err != nil {
		return nil, err
	}
	if !s.embedder.IsAvailable(ctx) {
		return nil, errors.ModelUnavailable(s.embedder.Name(), nil)
	}

	embedCtx := ctx
	if s.opts.EmbedTimeout > 0 {
		var cancel context.CancelFunc
		embedCtx, cancel = context.WithTimeout(ctx, s.opts.EmbedTimeout)
		defer cancel()
	}
	vec, err := s.embedder.EmbedSingle(embedCtx, text)
	if err != nil {
		return nil, err
	}
	req.Vector = vec
	results, err := s.store.Search(ctx, req)
	if err != nil {
		return nil, err
	}
	s.logger.Debug("query_complete",
		slog.Int("results", len(results)),
		slog.Float64("hybrid_weight", req.HybridWeight))
	return results, nil
}

// DeleteDocument removes a document's chunks from the index and returns how
// many were removed.
func (s *RAGService) DeleteDocument(ctx context.Context, documentID string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n, err := s.store.DeleteByDocument(ctx, documentID)
	if err != nil {
		return 0, err
	}
	if _, ok := s.docs[documentID]; ok {
		delete(s.docs, documentID)
		delete(s.chunks, documentID)
		for i, id := range s.order {
			if id == documentID {
				s.order = append(s.order[:i], s.order[i+1:]...)
				break
			}
		}
	}
	return n, nil
}

// Clear empties the index and forgets every ingested document.
func (s *RAGService) Clear(ctx context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n, err := s.store.Clear(ctx)
	if err != nil {
		return 0, err
	}
	s.docs = make(map[string]domain.Document)
	s.chunks = make(map[string][]domain.Chunk)
	s.order = nil
	return n, nil
}

// Count returns the number of indexed chunks.
func (s *RAGService) Count(ctx context.Context) (int, error) {
	return s.store.Count(ctx)
}

// Documents returns the ingested documents in first-ingest order.
func (s *RAGService) Documents() []domain.Document {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.documentsLocked()
}

// Summary summarises every ingested document's content.
func (s *RAGService) Summary() (string, error) {
	if s.summarizer == nil {
		return "", nil
	}
	s.mu.Lock()
	var b strings.Builder
	for _, id := range s.order {
		b.WriteString(s.docs[id].Content)
		b.WriteString("\n")
	}
	s.mu.Unlock()
	return s.summarizer.Summarize(b.String(), s.opts.SummaryMaxSentences)
}

func (s *RAGService) documentsLocked() []domain.Document {
	out := make([]domain.Document, 0, len(s.order))
	for _, id := range s.order {
		out = append(out, s.docs[id])
	}
	return out
}

func (s *RAGService) corpusTextsLocked() []string {
	var texts []string
	for _, id := range s.order {
		for _, c := range s.chunks[id] {
			texts = append(texts, c.Content)
		}
	}
	return texts
}

func hashString(s string) string {
	h := sha1.Sum([]byte(s))
	return hex.EncodeToString(h[:8])
}
