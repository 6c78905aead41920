package sqlite

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"hybridrag/internal/domain"
	"hybridrag/internal/errors"
)

func record(id, text, doc string, vec ...float64) domain.VectorRecord {
	return domain.VectorRecord{ID: id, Vector: vec, Text: text,
		Payload: map[string]any{domain.PayloadDocumentID: doc, domain.PayloadChunkIndex: 0}}
}

func TestStore_PersistsAcrossReopen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "index.db")

	s, err := Open(ctx, path, nil)
	require.NoError(t, err)
	require.NoError(t, s.Upsert(ctx, record("A", "project portfolio", "d1", 1, 0)))
	require.NoError(t, s.Upsert(ctx, record("B", "unrelated text", "d2", 0, 1)))
	require.NoError(t, s.Upsert(ctx, record("A", "project portfolio v2", "d1", 1, 0)))
	require.NoError(t, s.Close())

	s, err = Open(ctx, path, nil)
	require.NoError(t, err)
	defer s.Close()

	n, err := s.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	res, err := s.Search(ctx, domain.SearchRequest{
		Vector: []float64{1, 0}, Text: "project", Limit: 5, HybridWeight: 0.5,
		Filter: map[string]any{domain.PayloadChunkIndex: 0},
	})
	require.NoError(t, err)
	require.Len(t, res, 2)
	assert.Equal(t, "A", res[0].ID)

	assert.ErrorIs(t, s.Upsert(ctx, record("C", "x", "d3", 1, 2, 3)), errors.ErrDimensionMismatch)
}

func TestStore_DeleteAndClear(t *testing.T) {
	ctx := context.Background()
	s, err := Open(ctx, "", nil)
	require.NoError(t, err)
	defer s.Close()

	require.NoError(t, s.Upsert(ctx, record("a1", "x", "a", 1, 0)))
	require.NoError(t, s.Upsert(ctx, record("a2", "x", "a", 1, 0)))
	require.NoError(t, s.Upsert(ctx, record("b1", "x", "b", 1, 0)))

	removed, err := s.Delete(ctx, "b1")
	require.NoError(t, err)
	assert.True(t, removed)
	removed, err = s.Delete(ctx, "b1")
	require.NoError(t, err)
	assert.False(t, removed)

	n, err := s.DeleteByDocument(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	require.NoError(t, s.Upsert(ctx, record("c1", "x", "c", 1, 0)))
	prior, err := s.Clear(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, prior)

	// a new dimension is accepted after clear
	require.NoError(t, s.Upsert(ctx, domain.VectorRecord{ID: "d1", Vector: []float64{1, 2, 3}}))
}

func TestStore_DeleteByDocumentSkipsRecordsWithoutDocument(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "index.db")
	s, err := Open(ctx, path, nil)
	require.NoError(t, err)

	require.NoError(t, s.Upsert(ctx, domain.VectorRecord{ID: "x1", Vector: []float64{1, 0}, Text: "loose"}))
	require.NoError(t, s.Upsert(ctx, domain.VectorRecord{ID: "x2", Vector: []float64{0, 1}, Text: "loose"}))

	removed, err := s.DeleteByDocument(ctx, "")
	require.NoError(t, err)
	assert.Zero(t, removed)
	require.NoError(t, s.Close())

	s, err = Open(ctx, path, nil)
	require.NoError(t, err)
	defer s.Close()
	n, err := s.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, n, "database and mirror agree after reopen")
}

func TestStore_ListFilterSurvivesReopen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "index.db")
	req := domain.SearchRequest{
		Vector: []float64{1, 0}, Text: "go", Limit: 5, HybridWeight: 0.5,
		Filter: map[string]any{"tags": []string{"go"}},
	}

	s, err := Open(ctx, path, nil)
	require.NoError(t, err)
	require.NoError(t, s.Upsert(ctx, domain.VectorRecord{ID: "a", Vector: []float64{1, 0}, Text: "go notes",
		Payload: map[string]any{"tags": []string{"go"}}}))
	res, err := s.Search(ctx, req)
	require.NoError(t, err)
	require.Len(t, res, 1)
	require.NoError(t, s.Close())

	s, err = Open(ctx, path, nil)
	require.NoError(t, err)
	defer s.Close()
	res, err = s.Search(ctx, req)
	require.NoError(t, err)
	require.Len(t, res, 1)
	assert.Equal(t, "a", res[0].ID)
}

func TestStore_EmptyVector(t *testing.T) {
	ctx := context.Background()
	s, err := Open(ctx, "", nil)
	require.NoError(t, err)
	defer s.Close()

	assert.ErrorIs(t, s.Upsert(ctx, domain.VectorRecord{ID: "a"}), errors.ErrValidation)
	require.NoError(t, s.Upsert(ctx, record("b", "x", "d", 1, 0)))
	assert.ErrorIs(t, s.Upsert(ctx, domain.VectorRecord{ID: "c"}), errors.ErrDimensionMismatch)
}

func TestVectorCodec(t *testing.T) {
	v := []float64{0, -1.5, 3.25, 1e-9}
	assert.Equal(t, v, decodeVector(encodeVector(v)))
}
