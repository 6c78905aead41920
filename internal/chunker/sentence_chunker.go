package chunker

import (
	"regexp"
	"strings"
	"time"

	"hybridrag/internal/domain"
)

// SentenceStrategyName tags chunks produced by SentenceChunker.
const SentenceStrategyName = "sentence"

var sentenceRe = regexp.MustCompile(`(?m)(?U)([^.!?。]+[.!?。])`)

// SentenceChunker groups whole sentences into chunks with a sentence overlap.
// It trades exact reconstruction for chunks that never cut a sentence.
type SentenceChunker struct {
	sentencesPerChunk int
	overlapSentences  int
}

// NewSentenceChunker returns a sentence chunker; out-of-range values fall
// back to 5 sentences per chunk and no overlap.
func NewSentenceChunker(sentencesPerChunk, overlapSentences int) *SentenceChunker {
	if sentencesPerChunk <= 0 {
		sentencesPerChunk = 5
	}
	if overlapSentences < 0 || overlapSentences >= sentencesPerChunk {
		overlapSentences = 0
	}
	return &SentenceChunker{
		sentencesPerChunk: sentencesPerChunk,
		overlapSentences:  overlapSentences,
	}
}

// Sentences splits text on terminal punctuation. Trailing text without a
// terminator becomes the final sentence.
func Sentences(text string) []string {
	matches := sentenceRe.FindAllStringIndex(text, -1)
	var out []string
	last := 0
	for _, m := range matches {
		if s := strings.TrimSpace(text[m[0]:m[1]]); s != "" {
			out = append(out, s)
		}
		last = m[1]
	}
	if tail := strings.TrimSpace(text[last:]); tail != "" {
		out = append(out, tail)
	}
	return out
}

// Chunk implements domain.Chunker.
func (c *SentenceChunker) Chunk(document domain.Document) ([]domain.Chunk, error) {
	sentences := Sentences(document.Content)
	if len(sentences) == 0 {
		return []domain.Chunk{}, nil
	}
	now := time.Now().UTC()
	var chunks []domain.Chunk
	for i, idx := 0, 0; i < len(sentences); idx++ {
		end := min(i+c.sentencesPerChunk, len(sentences))
		chunks = append(chunks, domain.Chunk{
			ChunkID:      domain.ChunkID(document.ID, idx),
			DocumentID:   document.ID,
			Index:        idx,
			Content:      strings.Join(sentences[i:end], " "),
			ChunkSize:    c.sentencesPerChunk,
			ChunkOverlap: c.overlapSentences,
			Strategy:     SentenceStrategyName,
			CreatedAt:    now,
		})
		if end == len(sentences) {
			break
		}
		i = end - c.overlapSentences
	}
	return chunks, nil
}
