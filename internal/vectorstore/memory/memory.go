// Package memory is the reference hybrid index: an exact linear scan over
// in-memory records, fusing cosine similarity with lexical token overlap.
//
// Every search costs O(N·D) for vector scoring plus O(N·T) for lexical
// scoring. No approximate structure is built.
package memory

import (
	"context"
	"log/slog"
	"sync"

	"hybridrag/internal/domain"
	"hybridrag/internal/errors"
	"hybridrag/internal/ranking"
	"hybridrag/internal/tokenizer"
)

type entry struct {
	record domain.VectorRecord
	tokens map[string]int
	seq    uint64
}

// Index is a concurrency-safe hybrid index. Searches share a read lock;
// mutations hold the write lock, so a search always sees a whole snapshot.
type Index struct {
	mu        sync.RWMutex
	dimension int
	entries   map[string]*entry
	nextSeq   uint64
	logger    *slog.Logger
}

var _ domain.VectorStore = (*Index)(nil)

// NewIndex creates an empty index. The dimension is fixed by the first
// upsert unless Init is called.
func NewIndex(logger *slog.Logger) *Index {
	if logger == nil {
		logger = slog.Default()
	}
	return &Index{entries: make(map[string]*entry), logger: logger}
}

// Init fixes the dimension of an empty index.
func (x *Index) Init(dimension int) error {
	if dimension <= 0 {
		return errors.Validationf("dimension must be positive, got %d", dimension)
	}
	x.mu.Lock()
	defer x.mu.Unlock()
	if len(x.entries) > 0 && x.dimension != dimension {
		return errors.DimensionMismatch(x.dimension, dimension)
	}
	x.dimension = dimension
	return nil
}

// Dimension returns the fixed dimension, or 0 before the first insert.
func (x *Index) Dimension() int {
	x.mu.RLock()
	defer x.mu.RUnlock()
	return x.dimension
}

// Upsert inserts or replaces a record by id. A replaced record keeps its
// original insertion position for tie-breaking.
func (x *Index) Upsert(_ context.Context, record domain.VectorRecord) error {
	if record.ID == "" {
		return errors.Validationf("record id is required")
	}
	// tokenize outside the lock
	tokens := tokenizer.Counts(record.Text)
	vec := append([]float64(nil), record.Vector...)
	payload := clonePayload(record.Payload)

	x.mu.Lock()
	defer x.mu.Unlock()
	if x.dimension == 0 {
		if len(vec) == 0 {
			return errors.Validationf("record %q has an empty vector", record.ID)
		}
		x.dimension = len(vec)
	} else if len(vec) != x.dimension {
		return errors.DimensionMismatch(x.dimension, len(vec))
	}
	e := &entry{
		record: domain.VectorRecord{ID: record.ID, Vector: vec, Text: record.Text, Payload: payload},
		tokens: tokens,
	}
	if old, ok := x.entries[record.ID]; ok {
		e.seq = old.seq
	} else {
		e.seq = x.nextSeq
		x.nextSeq++
	}
	x.entries[record.ID] = e
	return nil
}

// Get returns a copy of the record with the given id.
func (x *Index) Get(id string) (domain.VectorRecord, bool) {
	x.mu.RLock()
	defer x.mu.RUnlock()
	e, ok := x.entries[id]
	if !ok {
		return domain.VectorRecord{}, false
	}
	r := e.record
	r.Vector = append([]float64(nil), r.Vector...)
	r.Payload = clonePayload(r.Payload)
	return r, true
}

// Delete removes a record; it reports false when the id is unknown.
func (x *Index) Delete(_ context.Context, id string) (bool, error) {
	x.mu.Lock()
	defer x.mu.Unlock()
	if _, ok := x.entries[id]; !ok {
		return false, nil
	}
	delete(x.entries, id)
	return true, nil
}

// DeleteByDocument removes every record whose payload document_id equals documentID.
func (x *Index) DeleteByDocument(_ context.Context, documentID string) (int, error) {
	x.mu.Lock()
	defer x.mu.Unlock()
	removed := 0
	for id, e := range x.entries {
		if v, ok := e.record.Payload[domain.PayloadDocumentID]; ok && valuesEqual(v, documentID) {
			delete(x.entries, id)
			removed++
		}
	}
	if removed > 0 {
		x.logger.Debug("index_document_deleted",
			slog.String("document_id", documentID),
			slog.Int("removed", removed))
	}
	return removed, nil
}

// Clear empties the index and returns its prior size. The next upsert (or
// Init) fixes a new dimension.
func (x *Index) Clear(_ context.Context) (int, error) {
	x.mu.Lock()
	defer x.mu.Unlock()
	n := len(x.entries)
	x.entries = make(map[string]*entry)
	x.dimension = 0
	return n, nil
}

// Count returns the number of stored records.
func (x *Index) Count(_ context.Context) (int, error) {
	return x.Len(), nil
}

// Len is Count without the context.
func (x *Index) Len() int {
	x.mu.RLock()
	defer x.mu.RUnlock()
	return len(x.entries)
}

// Search ranks stored records against the request.
func (x *Index) Search(_ context.Context, req domain.SearchRequest) ([]domain.SearchResult, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	queryTokens := tokenizer.Counts(req.Text)

	x.mu.RLock()
	defer x.mu.RUnlock()
	if x.dimension == 0 {
		return []domain.SearchResult{}, nil
	}
	if len(req.Vector) != x.dimension {
		return nil, errors.DimensionMismatch(x.dimension, len(req.Vector))
	}

	scored := make([]ranking.Scored, 0, len(x.entries))
	for id, e := range x.entries {
		if !MatchesFilter(e.record.Payload, req.Filter) {
			continue
		}
		v := ranking.Cosine(req.Vector, e.record.Vector)
		l := ranking.Lexical(queryTokens, e.tokens)
		scored = append(scored, ranking.Scored{
			Seq:     e.seq,
			ID:      id,
			Vector:  v,
			Lexical: l,
			Score:   ranking.Combine(req.HybridWeight, v, l),
		})
	}
	// map iteration is random; Rank sorts by (score desc, seq asc) which is total
	ranked := ranking.Rank(scored, req.ScoreThreshold, req.Limit)

	results := make([]domain.SearchResult, len(ranked))
	for i, s := range ranked {
		results[i] = domain.SearchResult{
			ID:           s.ID,
			Score:        s.Score,
			VectorScore:  s.Vector,
			LexicalScore: s.Lexical,
			Payload:      clonePayload(x.entries[s.ID].record.Payload),
		}
	}
	return results, nil
}

// Close is a no-op for the in-memory index.
func (x *Index) Close() error { return nil }

// Records returns a snapshot of all records in insertion order.
func (x *Index) Records() []domain.VectorRecord {
	x.mu.RLock()
	defer x.mu.RUnlock()
	ordered := make([]*entry, 0, len(x.entries))
	for _, e := range x.entries {
		ordered = append(ordered, e)
	}
	sortBySeq(ordered)
	out := make([]domain.VectorRecord, len(ordered))
	for i, e := range ordered {
		out[i] = e.record
		out[i].Vector = append([]float64(nil), e.record.Vector...)
		out[i].Payload = clonePayload(e.record.Payload)
	}
	return out
}
