package tfidf

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"hybridrag/internal/errors"
	"hybridrag/internal/ranking"
)

func TestEmbedder_UnavailableBeforePrepare(t *testing.T) {
	ctx := context.Background()
	e := NewEmbedder()

	assert.False(t, e.IsAvailable(ctx))
	assert.Equal(t, 0, e.Dimension())

	_, err := e.EmbedSingle(ctx, "hello")
	assert.ErrorIs(t, err, errors.ErrModelUnavailable)
	assert.True(t, errors.IsRetryable(err))

	_, err = e.EmbedBatch(ctx, []string{"hello"})
	assert.ErrorIs(t, err, errors.ErrModelUnavailable)
}

func TestEmbedder_Prepare(t *testing.T) {
	e := NewEmbedder()
	require.NoError(t, e.Prepare([]string{"cats chase mice", "dogs chase cats"}))

	assert.True(t, e.IsAvailable(context.Background()))
	// cats, chase, mice, dogs
	assert.Equal(t, 4, e.Dimension())
}

func TestEmbedder_PrepareRejectsEmptyCorpus(t *testing.T) {
	e := NewEmbedder()
	assert.ErrorIs(t, e.Prepare(nil), errors.ErrValidation)
	assert.ErrorIs(t, e.Prepare([]string{"the and of"}), errors.ErrValidation)
	assert.False(t, e.IsAvailable(context.Background()))
}

func TestEmbedder_RareTermsDominate(t *testing.T) {
	ctx := context.Background()
	e := NewEmbedder()
	require.NoError(t, e.Prepare([]string{
		"database index tuning",
		"database backups",
		"database replication lag",
	}))

	q, err := e.EmbedSingle(ctx, "replication")
	require.NoError(t, err)
	docs, err := e.EmbedBatch(ctx, []string{"database replication lag", "database backups"})
	require.NoError(t, err)

	assert.Greater(t, ranking.Cosine(q, docs[0]), ranking.Cosine(q, docs[1]))
	assert.InDelta(t, 0.0, ranking.Cosine(q, docs[1]), 1e-9)
}

func TestEmbedder_Korean(t *testing.T) {
	ctx := context.Background()
	e := NewEmbedder()
	require.NoError(t, e.Prepare([]string{"한국어 검색 엔진", "영어 문서"}))

	q, err := e.EmbedSingle(ctx, "검색")
	require.NoError(t, err)
	d, err := e.EmbedSingle(ctx, "한국어 검색 엔진")
	require.NoError(t, err)
	assert.Greater(t, ranking.Cosine(q, d), 0.0)
}

func TestEmbedder_CancelledContext(t *testing.T) {
	e := NewEmbedder()
	require.NoError(t, e.Prepare([]string{"alpha beta"}))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := e.EmbedSingle(ctx, "alpha")
	assert.ErrorIs(t, err, context.Canceled)
}
