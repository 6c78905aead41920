package strategy

import (
	"hybridrag/internal/chunker"
	"hybridrag/internal/domain"
)

// Chunker selects a strategy per document and splits with it.
type Chunker struct {
	registry *Registry
}

// NewChunker adapts a registry into a domain.Chunker.
func NewChunker(registry *Registry) *Chunker {
	return &Chunker{registry: registry}
}

// Chunk implements domain.Chunker.
func (c *Chunker) Chunk(document domain.Document) ([]domain.Chunk, error) {
	return chunker.SplitWithStrategy(document, c.registry.Select(document))
}
