// Package tfidf implements a corpus-fitted TF-IDF vectorizer.
package tfidf

import (
	"context"
	"math"
	"sort"
	"sync"

	"hybridrag/internal/errors"
	"hybridrag/internal/tokenizer"
)

// Embedder builds a vocabulary and IDF table from a corpus. It is
// unavailable until Prepare succeeds.
type Embedder struct {
	mu         sync.RWMutex
	vocabulary map[string]int
	idf        []float64
	prepared   bool
}

// NewEmbedder creates an unprepared TF-IDF embedder.
func NewEmbedder() *Embedder {
	return &Embedder{vocabulary: make(map[string]int)}
}

// Name returns the identifier of this embedder implementation.
func (e *Embedder) Name() string { return "tfidf" }

// Prepare builds the vocabulary and IDF values from the provided corpus.
// Calling it again replaces the previous vocabulary.
func (e *Embedder) Prepare(corpus []string) error {
	if len(corpus) == 0 {
		return errors.Validationf("empty corpus for TF-IDF prepare")
	}
	df := make(map[string]int)
	for _, text := range corpus {
		seen := make(map[string]struct{})
		for _, tok := range e.tokenize(text) {
			if _, ok := seen[tok]; ok {
				continue
			}
			seen[tok] = struct{}{}
			df[tok]++
		}
	}
	terms := make([]string, 0, len(df))
	for term := range df {
		terms = append(terms, term)
	}
	if len(terms) == 0 {
		return errors.Validationf("no tokens found in corpus")
	}
	sort.Strings(terms)

	vocab := make(map[string]int, len(terms))
	idf := make([]float64, len(terms))
	n := float64(len(corpus))
	for i, term := range terms {
		vocab[term] = i
		idf[i] = math.Log((1+n)/(1+float64(df[term]))) + 1.0
	}

	e.mu.Lock()
	e.vocabulary = vocab
	e.idf = idf
	e.prepared = true
	e.mu.Unlock()
	return nil
}

// Dimension is the vocabulary size, 0 before Prepare.
func (e *Embedder) Dimension() int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return len(e.idf)
}

// IsAvailable reports whether Prepare has succeeded.
func (e *Embedder) IsAvailable(context.Context) bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.prepared
}

// EmbedSingle computes the L2-normalised TF-IDF vector for text.
func (e *Embedder) EmbedSingle(ctx context.Context, text string) ([]float64, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	e.mu.RLock()
	defer e.mu.RUnlock()
	if !e.prepared {
		return nil, errors.ModelUnavailable(e.Name(), nil)
	}
	return e.embedLocked(text), nil
}

// EmbedBatch embeds texts against a single vocabulary snapshot.
func (e *Embedder) EmbedBatch(ctx context.Context, texts []string) ([][]float64, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	e.mu.RLock()
	defer e.mu.RUnlock()
	if !e.prepared {
		return nil, errors.ModelUnavailable(e.Name(), nil)
	}
	out := make([][]float64, len(texts))
	for i, text := range texts {
		out[i] = e.embedLocked(text)
	}
	return out, nil
}

func (e *Embedder) embedLocked(text string) []float64 {
	vec := make([]float64, len(e.idf))
	tf := make(map[int]int)
	total := 0
	for _, tok := range e.tokenize(text) {
		if idx, ok := e.vocabulary[tok]; ok {
			tf[idx]++
			total++
		}
	}
	if total == 0 {
		return vec
	}
	for idx, count := range tf {
		vec[idx] = float64(count) / float64(total) * e.idf[idx]
	}
	norm := 0.0
	for _, v := range vec {
		norm += v * v
	}
	norm = math.Sqrt(norm)
	if norm > 0 {
		for i := range vec {
			vec[i] /= norm
		}
	}
	return vec
}

func (e *Embedder) tokenize(text string) []string {
	return tokenizer.WithoutStopwords(tokenizer.Tokenize(text))
}
