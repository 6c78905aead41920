package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"hybridrag/internal/errors"
)

func TestLoad_MissingFileReturnsDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestParse_PartialFileKeepsDefaults(t *testing.T) {
	cfg, err := Parse([]byte(`
search:
  hybrid_weight: 0.7
  max_results: 3
vector_store:
  type: sqlite
`))
	require.NoError(t, err)
	assert.InDelta(t, 0.7, cfg.Search.HybridWeight, 1e-9)
	assert.Equal(t, 3, cfg.Search.MaxResults)
	assert.Equal(t, "hash", cfg.Embedder.Type)
	require.NotNil(t, cfg.VectorStore.SQLite)
	assert.Equal(t, "hybridrag.db", cfg.VectorStore.SQLite.Path)
}

func TestParse_Strategies(t *testing.T) {
	cfg, err := Parse([]byte(`
chunker:
  type: strategy
  use_builtins: false
  default: {name: fallback, chunk_size: 400, chunk_overlap: 40}
  strategies:
    - name: pdf
      chunk_size: 1000
      chunk_overlap: 100
      detection_rules:
        source_patterns: ["*.pdf"]
      performance:
        max_concurrency: 2
`))
	require.NoError(t, err)
	require.Len(t, cfg.Chunker.Strategies, 1)
	s := cfg.Chunker.Strategies[0]
	assert.Equal(t, []string{"*.pdf"}, s.DetectionRules.SourcePatterns)
	assert.Equal(t, 2, s.Performance.MaxConcurrency)
	assert.Equal(t, "fallback", cfg.Chunker.Default.Name)
}

func TestParse_ValidationErrors(t *testing.T) {
	tests := []struct {
		name string
		yaml string
	}{
		{"weight above one", "search: {hybrid_weight: 1.5, max_results: 5}"},
		{"zero max results", "search: {hybrid_weight: 0.5, max_results: 0}"},
		{"overlap not below size", "chunker: {strategies: [{name: x, chunk_size: 10, chunk_overlap: 10}]}"},
		{"openai without section", "embedder: {type: openai}"},
		{"qdrant without section", "vector_store: {type: qdrant}"},
		{"bad yaml", "search: ["},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.yaml))
			assert.ErrorIs(t, err, errors.ErrConfig)
		})
	}
}

func TestParse_OpenAIDefaults(t *testing.T) {
	cfg, err := Parse([]byte("embedder: {type: openai, openai: {}}"))
	require.NoError(t, err)
	o := cfg.Embedder.OpenAI
	assert.Equal(t, "https://api.openai.com/v1", o.BaseURL)
	assert.Equal(t, "OPENAI_API_KEY", o.APIKeyEnv)
	assert.Equal(t, "text-embedding-3-small", o.Model)
	assert.Equal(t, 5, o.MaxRetries)
}

func TestSaveAndLoadRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")
	cfg := Default()
	cfg.Search.HybridWeight = 0.25
	require.NoError(t, Save(path, cfg))

	_, err := os.Stat(path)
	require.NoError(t, err)
	loaded, err := Load(path)
	require.NoError(t, err)
	assert.InDelta(t, 0.25, loaded.Search.HybridWeight, 1e-9)
}

func TestParseTOML(t *testing.T) {
	cfg, err := ParseTOML([]byte(`
[search]
hybrid_weight = 0.4
max_results = 7

[chunker]
type = "strategy"
use_builtins = false

[[chunker.strategies]]
name = "notes"
chunk_size = 120
chunk_overlap = 20

[chunker.strategies.detection_rules]
document_types = ["txt"]
`))
	require.NoError(t, err)
	assert.InDelta(t, 0.4, cfg.Search.HybridWeight, 1e-9)
	assert.Equal(t, 7, cfg.Search.MaxResults)
	require.Len(t, cfg.Chunker.Strategies, 1)
	assert.Equal(t, "notes", cfg.Chunker.Strategies[0].Name)
	assert.Equal(t, []string{"txt"}, cfg.Chunker.Strategies[0].DetectionRules.DocumentTypes)
}

func TestSaveAndLoadTOML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	cfg := Default()
	cfg.Ingest.Concurrency = 9
	require.NoError(t, Save(path, cfg))

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 9, loaded.Ingest.Concurrency)
	assert.Equal(t, cfg.Search, loaded.Search)
}

func TestParseTOML_Invalid(t *testing.T) {
	_, err := ParseTOML([]byte("search = ["))
	assert.ErrorIs(t, err, errors.ErrConfig)
}
