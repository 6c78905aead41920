// Package ranking holds the scoring primitives of hybrid search.
//
// combined = w*vector + (1-w)*lexical
//
// where vector is cosine similarity with negatives clamped to 0 and lexical
// is the weighted Jaccard overlap of the query and record token multisets.
package ranking

import (
	"math"
	"sort"
)

// Cosine returns the cosine similarity of a and b in [-1, 1].
// Mismatched lengths, empty vectors and zero vectors score 0.
func Cosine(a, b []float64) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += a[i] * b[i]
		normA += a[i] * a[i]
		normB += b[i] * b[i]
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	sim := dot / (math.Sqrt(normA) * math.Sqrt(normB))
	// rounding can push parallel vectors slightly past 1
	return math.Max(-1, math.Min(1, sim))
}

// Lexical returns Σ min(q_t, d_t) / Σ max(q_t, d_t) over the union of tokens.
// The result is in [0, 1]; an empty query or document scores 0.
func Lexical(query, doc map[string]int) float64 {
	if len(query) == 0 || len(doc) == 0 {
		return 0
	}
	var inter, union int
	for t, q := range query {
		d := doc[t]
		inter += min(q, d)
		union += max(q, d)
	}
	for t, d := range doc {
		if _, ok := query[t]; !ok {
			union += d
		}
	}
	if union == 0 {
		return 0
	}
	return float64(inter) / float64(union)
}

// Combine fuses a vector and a lexical score. Negative vector scores count as 0.
func Combine(weight, vectorScore, lexicalScore float64) float64 {
	if vectorScore < 0 {
		vectorScore = 0
	}
	return weight*vectorScore + (1-weight)*lexicalScore
}

// Scored is an intermediate ranking entry. Seq is the insertion sequence
// used to break ties.
type Scored struct {
	Seq     uint64
	ID      string
	Vector  float64
	Lexical float64
	Score   float64
}

// Rank drops entries below threshold, sorts the rest by score descending
// (ties by Seq ascending) and truncates to limit.
func Rank(entries []Scored, threshold float64, limit int) []Scored {
	kept := entries[:0]
	for _, e := range entries {
		if e.Score >= threshold {
			kept = append(kept, e)
		}
	}
	sort.SliceStable(kept, func(i, j int) bool {
		if kept[i].Score != kept[j].Score {
			return kept[i].Score > kept[j].Score
		}
		return kept[i].Seq < kept[j].Seq
	})
	if limit > 0 && len(kept) > limit {
		kept = kept[:limit]
	}
	return kept
}
