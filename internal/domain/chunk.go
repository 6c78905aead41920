package domain

import (
	"strconv"
	"time"

	"hybridrag/internal/errors"
)

// Default chunking parameters used when no registered strategy matches.
const (
	DefaultChunkSize    = 500
	DefaultChunkOverlap = 75
	DefaultStrategyName = "default"
)

// DetectionRules decide whether a strategy applies to a document.
// Every non-empty field must match; a rule set with no fields set never matches.
type DetectionRules struct {
	SourcePatterns   []string `yaml:"source_patterns,omitempty" toml:"source_patterns,omitempty"`
	DocumentTypes    []string `yaml:"document_types,omitempty" toml:"document_types,omitempty"`
	ContentContains  []string `yaml:"content_contains,omitempty" toml:"content_contains,omitempty"`
	ContainsHangul   bool     `yaml:"contains_hangul,omitempty" toml:"contains_hangul,omitempty"`
	MinContentLength int      `yaml:"min_content_length,omitempty" toml:"min_content_length,omitempty"`
	MaxContentLength int      `yaml:"max_content_length,omitempty" toml:"max_content_length,omitempty"`
}

// IsEmpty reports whether no rule field is set.
func (r DetectionRules) IsEmpty() bool {
	return len(r.SourcePatterns) == 0 && len(r.DocumentTypes) == 0 &&
		len(r.ContentContains) == 0 && !r.ContainsHangul &&
		r.MinContentLength == 0 && r.MaxContentLength == 0
}

// PerformanceSettings are hints for the embedding stage of ingest.
type PerformanceSettings struct {
	EmbedBatchSize int `yaml:"embed_batch_size,omitempty" toml:"embed_batch_size,omitempty"`
	MaxConcurrency int `yaml:"max_concurrency,omitempty" toml:"max_concurrency,omitempty"`
}

// ChunkingStrategy is a named parameter set controlling how a document is split.
type ChunkingStrategy struct {
	Name           string              `yaml:"name" toml:"name"`
	ChunkSize      int                 `yaml:"chunk_size" toml:"chunk_size"`
	ChunkOverlap   int                 `yaml:"chunk_overlap" toml:"chunk_overlap"`
	DetectionRules DetectionRules      `yaml:"detection_rules" toml:"detection_rules"`
	Performance    PerformanceSettings `yaml:"performance,omitempty" toml:"performance,omitempty"`
}

// DefaultStrategy returns the fallback strategy (500/75, no rules).
func DefaultStrategy() ChunkingStrategy {
	return ChunkingStrategy{
		Name:         DefaultStrategyName,
		ChunkSize:    DefaultChunkSize,
		ChunkOverlap: DefaultChunkOverlap,
	}
}

// Validate checks the size/overlap invariants.
func (s ChunkingStrategy) Validate() error {
	if s.Name == "" {
		return errors.Validationf("strategy name is required")
	}
	return ValidateChunkParams(s.ChunkSize, s.ChunkOverlap)
}

// ValidateChunkParams enforces chunkSize > 0 and 0 <= overlap < chunkSize.
func ValidateChunkParams(chunkSize, chunkOverlap int) error {
	if chunkSize <= 0 {
		return errors.Validationf("chunk_size must be positive, got %d", chunkSize)
	}
	if chunkOverlap < 0 {
		return errors.Validationf("chunk_overlap must be non-negative, got %d", chunkOverlap)
	}
	if chunkOverlap >= chunkSize {
		return errors.Validationf("chunk_overlap (%d) must be smaller than chunk_size (%d)", chunkOverlap, chunkSize)
	}
	return nil
}

// Chunk is a contiguous slice of a document's text, the retrieval unit.
type Chunk struct {
	ChunkID      string
	DocumentID   string
	Index        int
	Content      string
	ChunkSize    int
	ChunkOverlap int
	Strategy     string
	CreatedAt    time.Time
}

// ChunkID builds the identifier of the index-th chunk of a document.
func ChunkID(documentID string, index int) string {
	return documentID + ":" + strconv.Itoa(index)
}
