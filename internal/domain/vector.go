package domain

import (
	"math"

	"hybridrag/internal/errors"
)

// Well-known payload keys written by the ingest pipeline.
const (
	PayloadDocumentID = "document_id"
	PayloadChunkID    = "chunk_id"
	PayloadChunkIndex = "chunk_index"
	PayloadSource     = "source"
	PayloadType       = "type"
	PayloadStrategy   = "strategy"
	PayloadText       = "text"
)

// VectorRecord is a single index entry.
type VectorRecord struct {
	ID      string
	Vector  []float64
	Text    string
	Payload map[string]any
}

// SearchResult is one ranked hit. Score is the combined hybrid score.
type SearchResult struct {
	ID           string
	Score        float64
	VectorScore  float64
	LexicalScore float64
	Payload      map[string]any
}

// Text returns the chunk text stored in the payload, if any.
func (r SearchResult) Text() string {
	s, _ := r.Payload[PayloadText].(string)
	return s
}

// HybridConfig holds the query-time knobs shared by every search.
type HybridConfig struct {
	HybridWeight        float64 `yaml:"hybrid_weight" toml:"hybrid_weight"`
	SimilarityThreshold float64 `yaml:"similarity_threshold" toml:"similarity_threshold"`
	MaxResults          int     `yaml:"max_results" toml:"max_results"`
}

// DefaultHybridConfig weights vector and lexical evidence equally.
func DefaultHybridConfig() HybridConfig {
	return HybridConfig{HybridWeight: 0.5, SimilarityThreshold: 0, MaxResults: 10}
}

// Validate checks weight range and result limit.
func (c HybridConfig) Validate() error {
	if err := validateWeight(c.HybridWeight); err != nil {
		return err
	}
	if c.MaxResults <= 0 {
		return errors.Validationf("max_results must be positive, got %d", c.MaxResults)
	}
	return nil
}

// SearchRequest is the full parameter set of a hybrid index search.
type SearchRequest struct {
	Vector         []float64
	Text           string
	Limit          int
	ScoreThreshold float64
	Filter         map[string]any
	HybridWeight   float64
}

// Validate checks limit and weight; vector dimension is checked by the index.
func (r SearchRequest) Validate() error {
	if r.Limit <= 0 {
		return errors.Validationf("limit must be positive, got %d", r.Limit)
	}
	return validateWeight(r.HybridWeight)
}

func validateWeight(w float64) error {
	if math.IsNaN(w) || w < 0 || w > 1 {
		return errors.Validationf("hybrid_weight must be within [0,1], got %v", w)
	}
	return nil
}
