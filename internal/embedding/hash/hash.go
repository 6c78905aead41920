// Package hash provides an offline embedder that hashes tokens and
// character trigrams into a fixed number of buckets.
package hash

import (
	"context"
	"hash/fnv"
	"math"
	"strings"
	"sync"
	"unicode"

	"hybridrag/internal/errors"
	"hybridrag/internal/tokenizer"
)

// DefaultDimension is used when a non-positive dimension is requested.
const DefaultDimension = 256

const (
	tokenWeight = 0.7
	ngramWeight = 0.3
	ngramSize   = 3
)

// Embedder is deterministic: the same text always yields the same vector.
type Embedder struct {
	dimension int

	mu     sync.RWMutex
	closed bool
}

// NewEmbedder creates a hash embedder producing vectors of the given size.
func NewEmbedder(dimension int) *Embedder {
	if dimension <= 0 {
		dimension = DefaultDimension
	}
	return &Embedder{dimension: dimension}
}

func (e *Embedder) Name() string   { return "hash" }
func (e *Embedder) Dimension() int { return e.dimension }

// IsAvailable reports true until Close is called.
func (e *Embedder) IsAvailable(context.Context) bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return !e.closed
}

// EmbedSingle returns the L2-normalised bucket vector for text. Blank text
// maps to the zero vector.
func (e *Embedder) EmbedSingle(ctx context.Context, text string) ([]float64, error) {
	if !e.IsAvailable(ctx) {
		return nil, errors.ModelUnavailable(e.Name(), nil)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	vec := make([]float64, e.dimension)
	if strings.TrimSpace(text) == "" {
		return vec, nil
	}
	for _, tok := range tokenizer.Tokenize(text) {
		vec[bucket(tok, e.dimension)] += tokenWeight
	}
	for _, g := range trigrams(text) {
		vec[bucket(g, e.dimension)] += ngramWeight
	}
	normalize(vec)
	return vec, nil
}

// EmbedBatch embeds each text in order.
func (e *Embedder) EmbedBatch(ctx context.Context, texts []string) ([][]float64, error) {
	out := make([][]float64, len(texts))
	for i, text := range texts {
		v, err := e.EmbedSingle(ctx, text)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

// Close marks the embedder unavailable.
func (e *Embedder) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.closed = true
	return nil
}

func trigrams(text string) []string {
	var b strings.Builder
	for _, r := range strings.ToLower(text) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
		}
	}
	runes := []rune(b.String())
	if len(runes) < ngramSize {
		return nil
	}
	out := make([]string, 0, len(runes)-ngramSize+1)
	for i := 0; i+ngramSize <= len(runes); i++ {
		out = append(out, string(runes[i:i+ngramSize]))
	}
	return out
}

func bucket(s string, size int) int {
	h := fnv.New64a()
	_, _ = h.Write([]byte(s))
	return int(h.Sum64() % uint64(size))
}

func normalize(v []float64) {
	var sum float64
	for _, x := range v {
		sum += x * x
	}
	if sum == 0 {
		return
	}
	n := math.Sqrt(sum)
	for i := range v {
		v[i] /= n
	}
}
