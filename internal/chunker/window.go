package chunker

import (
	"time"

	"hybridrag/internal/domain"
)

// Split cuts content into overlapping windows of chunkSize runes.
//
// Consecutive windows start chunkSize-chunkOverlap runes apart and share
// exactly chunkOverlap runes. Every chunk but the last is chunkSize runes
// long; splitting stops at the first window that reaches the end of content.
func Split(documentID, content string, chunkSize, chunkOverlap int) ([]domain.Chunk, error) {
	if err := domain.ValidateChunkParams(chunkSize, chunkOverlap); err != nil {
		return nil, err
	}
	runes := []rune(content)
	if len(runes) == 0 {
		return []domain.Chunk{}, nil
	}
	step := chunkSize - chunkOverlap
	chunks := make([]domain.Chunk, 0, len(runes)/step+1)
	now := time.Now().UTC()
	for start, idx := 0, 0; ; start, idx = start+step, idx+1 {
		end := min(start+chunkSize, len(runes))
		chunks = append(chunks, domain.Chunk{
			ChunkID:      domain.ChunkID(documentID, idx),
			DocumentID:   documentID,
			Index:        idx,
			Content:      string(runes[start:end]),
			ChunkSize:    chunkSize,
			ChunkOverlap: chunkOverlap,
			CreatedAt:    now,
		})
		if end == len(runes) {
			break
		}
	}
	return chunks, nil
}

// Reassemble inverts Split: it concatenates the chunks, dropping the
// overlapping prefix of every non-first chunk.
func Reassemble(chunks []domain.Chunk) string {
	var out []rune
	for i, c := range chunks {
		r := []rune(c.Content)
		if i > 0 {
			r = r[min(c.ChunkOverlap, len(r)):]
		}
		out = append(out, r...)
	}
	return string(out)
}

// WindowChunker is a domain.Chunker with fixed window parameters.
type WindowChunker struct {
	strategy domain.ChunkingStrategy
}

// NewWindowChunker validates the strategy and returns a chunker for it.
func NewWindowChunker(strategy domain.ChunkingStrategy) (*WindowChunker, error) {
	if err := strategy.Validate(); err != nil {
		return nil, err
	}
	return &WindowChunker{strategy: strategy}, nil
}

// Chunk splits the document with the configured strategy.
func (c *WindowChunker) Chunk(document domain.Document) ([]domain.Chunk, error) {
	return SplitWithStrategy(document, c.strategy)
}

// SplitWithStrategy splits a document and stamps each chunk with the strategy name.
func SplitWithStrategy(document domain.Document, strategy domain.ChunkingStrategy) ([]domain.Chunk, error) {
	chunks, err := Split(document.ID, document.Content, strategy.ChunkSize, strategy.ChunkOverlap)
	if err != nil {
		return nil, err
	}
	for i := range chunks {
		chunks[i].Strategy = strategy.Name
	}
	return chunks, nil
}
