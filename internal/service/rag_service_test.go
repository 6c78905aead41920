package service

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"hybridrag/internal/chunker"
	"hybridrag/internal/domain"
	"hybridrag/internal/embedding/hash"
	"hybridrag/internal/embedding/tfidf"
	"hybridrag/internal/errors"
	"hybridrag/internal/logging"
	"hybridrag/internal/strategy"
	"hybridrag/internal/summarizer"
	"hybridrag/internal/vectorstore/memory"
)

// hookEmbedder delegates to a hash embedder after running before.
type hookEmbedder struct {
	*hash.Embedder
	before func(ctx context.Context, texts []string) error

	mu      sync.Mutex
	batches [][]string
}

func (h *hookEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float64, error) {
	h.mu.Lock()
	h.batches = append(h.batches, texts)
	h.mu.Unlock()
	if h.before != nil {
		if err := h.before(ctx, texts); err != nil {
			return nil, err
		}
	}
	return h.Embedder.EmbedBatch(ctx, texts)
}

func newService(t *testing.T, c domain.Chunker, e domain.Embedder, opts Options) (*RAGService, *memory.Index) {
	t.Helper()
	if c == nil {
		c = strategy.NewChunker(strategy.NewDefaultRegistry())
	}
	if e == nil {
		e = hash.NewEmbedder(128)
	}
	idx := memory.NewIndex(logging.Discard())
	svc, err := NewRAGService(Dependencies{
		Chunker:    c,
		Embedder:   e,
		Store:      idx,
		Summarizer: summarizer.NewFrequencySummarizer(),
		Strategies: strategy.NewDefaultRegistry(),
	}, opts, logging.Discard())
	require.NoError(t, err)
	return svc, idx
}

func tinyChunker(t *testing.T) domain.Chunker {
	t.Helper()
	c, err := chunker.NewWindowChunker(domain.ChunkingStrategy{Name: "tiny", ChunkSize: 10, ChunkOverlap: 2})
	require.NoError(t, err)
	return c
}

func doc(id, content string) domain.Document {
	return domain.Document{ID: id, Content: content, Metadata: domain.DocumentMetadata{Source: id + ".txt", Type: "txt"}}
}

func TestNewRAGService_Validation(t *testing.T) {
	_, err := NewRAGService(Dependencies{}, DefaultOptions(), nil)
	assert.ErrorIs(t, err, errors.ErrValidation)

	opts := DefaultOptions()
	opts.Search.HybridWeight = 2
	_, err = NewRAGService(Dependencies{
		Chunker:  tinyChunker(t),
		Embedder: hash.NewEmbedder(8),
		Store:    memory.NewIndex(nil),
	}, opts, nil)
	assert.ErrorIs(t, err, errors.ErrValidation)
}

func TestIngestAndQuery(t *testing.T) {
	ctx := context.Background()
	svc, idx := newService(t, nil, nil, DefaultOptions())

	report, err := svc.IngestDocuments(ctx,
		doc("go", "Go channels make concurrency simple and safe."),
		doc("bread", "Sourdough bread needs a lively starter and patience."),
	)
	require.NoError(t, err)
	assert.Equal(t, IngestReport{Documents: 2, Chunks: 2, Indexed: 2}, report)
	assert.Equal(t, 2, idx.Len())

	results, err := svc.Query(ctx, "concurrency with channels", QueryOptions{})
	require.NoError(t, err)
	require.NotEmpty(t, results)
	assert.Equal(t, "go:0", results[0].ID)
	assert.Equal(t, "go", results[0].Payload[domain.PayloadDocumentID])
	assert.Equal(t, "default", results[0].Payload[domain.PayloadStrategy])
	assert.Contains(t, results[0].Text(), "channels")
}

func TestQuery_Overrides(t *testing.T) {
	ctx := context.Background()
	svc, _ := newService(t, nil, nil, DefaultOptions())
	_, err := svc.IngestDocuments(ctx, doc("a", "alpha beta"), doc("b", "alpha gamma"), doc("c", "alpha delta"))
	require.NoError(t, err)

	results, err := svc.Query(ctx, "alpha", QueryOptions{Limit: 1})
	require.NoError(t, err)
	assert.Len(t, results, 1)

	results, err = svc.Query(ctx, "alpha", QueryOptions{Filter: map[string]any{domain.PayloadDocumentID: "b"}})
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "b:0", results[0].ID)

	lexicalOnly := 0.0
	high := 0.99
	results, err = svc.Query(ctx, "zeta", QueryOptions{HybridWeight: &lexicalOnly, Threshold: &high})
	require.NoError(t, err)
	assert.Empty(t, results)

	bad := -0.5
	_, err = svc.Query(ctx, "alpha", QueryOptions{HybridWeight: &bad})
	assert.ErrorIs(t, err, errors.ErrValidation)
}

func TestIngest_ReplacesDocumentChunks(t *testing.T) {
	ctx := context.Background()
	svc, idx := newService(t, tinyChunker(t), nil, DefaultOptions())

	_, err := svc.IngestDocuments(ctx, doc("d", strings.Repeat("abcdefgh", 5)))
	require.NoError(t, err)
	first := idx.Len()
	require.Greater(t, first, 1)

	report, err := svc.IngestDocuments(ctx, doc("d", "short"))
	require.NoError(t, err)
	assert.Equal(t, 1, report.Indexed)
	assert.Equal(t, 1, idx.Len())
	assert.Len(t, svc.Documents(), 1)
}

func TestIngest_FailedReembedKeepsPreviousChunks(t *testing.T) {
	ctx := context.Background()
	var down bool
	e := &hookEmbedder{Embedder: hash.NewEmbedder(32), before: func(context.Context, []string) error {
		if down {
			return errors.ModelUnavailable("hook", nil)
		}
		return nil
	}}
	svc, idx := newService(t, nil, e, DefaultOptions())

	_, err := svc.IngestDocuments(ctx, doc("d", "replication lag on the primary"))
	require.NoError(t, err)
	require.Equal(t, 1, idx.Len())

	down = true
	report, err := svc.IngestDocuments(ctx, doc("d", "an edited version nobody can embed"))
	require.NoError(t, err)
	assert.Zero(t, report.Indexed)
	require.Len(t, report.Failed, 1)

	got, ok := idx.Get("d:0")
	require.True(t, ok, "earlier chunks stay indexed")
	assert.Contains(t, got.Text, "replication lag")
	require.Len(t, svc.Documents(), 1)
	assert.Equal(t, "replication lag on the primary", svc.Documents()[0].Content)

	down = false
	report, err = svc.IngestDocuments(ctx, doc("d", "an edited version"))
	require.NoError(t, err)
	assert.Equal(t, 1, report.Indexed)
	got, _ = idx.Get("d:0")
	assert.Equal(t, "an edited version", got.Text)
}

func TestIngest_ChunkFailuresAreReported(t *testing.T) {
	ctx := context.Background()
	e := &hookEmbedder{Embedder: hash.NewEmbedder(32), before: func(_ context.Context, texts []string) error {
		for _, s := range texts {
			if strings.Contains(s, "FAIL") {
				return errors.ModelUnavailable("hook", nil)
			}
		}
		return nil
	}}
	opts := DefaultOptions()
	opts.BatchSize = 1
	svc, idx := newService(t, nil, e, opts)

	report, err := svc.IngestDocuments(ctx, doc("ok", "fine text"), doc("bad", "this will FAIL"))
	require.NoError(t, err)
	assert.Equal(t, 1, report.Indexed)
	require.Len(t, report.Failed, 1)
	assert.Equal(t, "bad:0", report.Failed[0].ChunkID)
	assert.ErrorIs(t, report.Failed[0].Err, errors.ErrModelUnavailable)

	_, ok := idx.Get("bad:0")
	assert.False(t, ok, "failed chunk must not be inserted")
}

func TestIngest_EmbedTimeout(t *testing.T) {
	e := &hookEmbedder{Embedder: hash.NewEmbedder(16), before: func(ctx context.Context, _ []string) error {
		<-ctx.Done()
		return ctx.Err()
	}}
	opts := DefaultOptions()
	opts.EmbedTimeout = 10 * time.Millisecond
	svc, idx := newService(t, nil, e, opts)

	report, err := svc.IngestDocuments(context.Background(), doc("slow", "never embedded"))
	require.NoError(t, err)
	require.Len(t, report.Failed, 1)
	assert.Equal(t, errors.ErrCodeNetworkTimeout, errors.GetCode(report.Failed[0].Err))
	assert.True(t, errors.IsRetryable(report.Failed[0].Err))
	assert.Zero(t, idx.Len())
}

func TestIngest_CancelledContext(t *testing.T) {
	svc, idx := newService(t, tinyChunker(t), nil, DefaultOptions())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	report, err := svc.IngestDocuments(ctx, doc("d", strings.Repeat("x", 40)))
	assert.ErrorIs(t, err, context.Canceled)
	assert.Zero(t, report.Indexed)
	assert.Len(t, report.Failed, report.Chunks)
	assert.Zero(t, idx.Len())
}

func TestIngest_StrategyPerformanceHints(t *testing.T) {
	ctx := context.Background()
	reg := strategy.NewRegistry(logging.Discard())
	require.NoError(t, reg.Register(domain.ChunkingStrategy{
		Name: "small", ChunkSize: 4, ChunkOverlap: 0,
		DetectionRules: domain.DetectionRules{DocumentTypes: []string{"txt"}},
		Performance:    domain.PerformanceSettings{EmbedBatchSize: 3, MaxConcurrency: 1},
	}))
	e := &hookEmbedder{Embedder: hash.NewEmbedder(16)}
	idx := memory.NewIndex(nil)
	svc, err := NewRAGService(Dependencies{
		Chunker: strategy.NewChunker(reg), Embedder: e, Store: idx, Strategies: reg,
	}, DefaultOptions(), logging.Discard())
	require.NoError(t, err)

	report, err := svc.IngestDocuments(ctx, doc("d", "aaaabbbbccccdddd"))
	require.NoError(t, err)
	assert.Equal(t, 4, report.Indexed)
	sizes := []int{}
	for _, b := range e.batches {
		sizes = append(sizes, len(b))
	}
	assert.Equal(t, []int{3, 1}, sizes)
}

func TestIngest_PreparerRebuildsIndex(t *testing.T) {
	ctx := context.Background()
	svc, idx := newService(t, nil, tfidf.NewEmbedder(), DefaultOptions())

	_, err := svc.Query(ctx, "anything", QueryOptions{})
	assert.ErrorIs(t, err, errors.ErrModelUnavailable)

	_, err = svc.IngestDocuments(ctx, doc("a", "database replication lag"))
	require.NoError(t, err)
	dimA := idx.Dimension()

	report, err := svc.IngestDocuments(ctx, doc("b", "sourdough starter"))
	require.NoError(t, err)
	assert.Equal(t, 2, report.Indexed, "whole corpus re-indexed after refit")
	assert.Equal(t, 2, idx.Len())
	assert.Greater(t, idx.Dimension(), dimA)

	results, err := svc.Query(ctx, "replication", QueryOptions{})
	require.NoError(t, err)
	require.NotEmpty(t, results)
	assert.Equal(t, "a:0", results[0].ID)
}

func TestIngestFiles(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.md"), []byte("# Title\n\nMarkdown notes."), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "plain.txt"), []byte("Plain text."), 0o644))
	require.NoError(t, os.Mkdir(filepath.Join(dir, "sub"), 0o755))

	svc, idx := newService(t, nil, nil, DefaultOptions())
	report, err := svc.IngestFiles(ctx, []string{filepath.Join(dir, "*")})
	require.NoError(t, err)
	assert.Equal(t, 2, report.Documents)
	assert.Equal(t, 2, idx.Len())

	docs := svc.Documents()
	require.Len(t, docs, 2)
	assert.Equal(t, "md", docs[0].Metadata.Type)

	results, err := svc.Query(ctx, "markdown notes", QueryOptions{Filter: map[string]any{domain.PayloadType: "md"}})
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "markdown", results[0].Payload[domain.PayloadStrategy])
}

func TestIngestFiles_Errors(t *testing.T) {
	svc, _ := newService(t, nil, nil, DefaultOptions())
	_, err := svc.IngestFiles(context.Background(), []string{filepath.Join(t.TempDir(), "missing.txt")})
	assert.ErrorIs(t, err, errors.ErrValidation)

	_, err = svc.IngestFiles(context.Background(), []string{t.TempDir()})
	assert.ErrorIs(t, err, errors.ErrValidation)
}

func TestDeleteClearAndSummary(t *testing.T) {
	ctx := context.Background()
	svc, _ := newService(t, nil, nil, DefaultOptions())
	_, err := svc.IngestDocuments(ctx,
		doc("a", "Hybrid search blends vectors and words. Lunch was pasta."),
		doc("b", "Hybrid search needs a tokenizer."),
	)
	require.NoError(t, err)

	summary, err := svc.Summary()
	require.NoError(t, err)
	assert.Contains(t, summary, "Hybrid search")

	n, err := svc.DeleteDocument(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	n, err = svc.DeleteDocument(ctx, "a")
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.Len(t, svc.Documents(), 1)

	n, err = svc.Clear(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	count, _ := svc.Count(ctx)
	assert.Zero(t, count)
	assert.Empty(t, svc.Documents())
}
