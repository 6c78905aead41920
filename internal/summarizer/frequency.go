// Package summarizer builds extractive summaries of ingested text.
package summarizer

import (
	"math"
	"sort"
	"strings"

	"hybridrag/internal/chunker"
	"hybridrag/internal/tokenizer"
)

// DefaultMaxSentences is used when a non-positive limit is requested.
const DefaultMaxSentences = 5

// FrequencySummarizer ranks sentences by normalised term frequency with
// stopwords removed and keeps the best ones in their original order.
type FrequencySummarizer struct{}

// NewFrequencySummarizer creates a frequency-based sentence ranker summarizer.
func NewFrequencySummarizer() *FrequencySummarizer {
	return &FrequencySummarizer{}
}

// Summarize returns a short summary by ranking sentences using token frequency.
func (s *FrequencySummarizer) Summarize(text string, maxSentences int) (string, error) {
	if maxSentences <= 0 {
		maxSentences = DefaultMaxSentences
	}
	sentences := chunker.Sentences(text)
	if len(sentences) == 0 {
		return "", nil
	}

	tokens := make([][]string, len(sentences))
	freq := map[string]float64{}
	for i, sent := range sentences {
		tokens[i] = tokenizer.WithoutStopwords(tokenizer.Tokenize(sent))
		for _, tok := range tokens[i] {
			freq[tok]++
		}
	}
	maxF := 0.0
	for _, v := range freq {
		maxF = math.Max(maxF, v)
	}
	if maxF > 0 {
		for k, v := range freq {
			freq[k] = v / maxF
		}
	}

	type scored struct {
		idx   int
		score float64
	}
	scores := make([]scored, len(sentences))
	for i := range sentences {
		total := 0.0
		for _, tok := range tokens[i] {
			total += freq[tok]
		}
		// dampen long sentences
		if l := float64(len(tokens[i])); l > 0 {
			total /= math.Sqrt(l)
		}
		scores[i] = scored{i, total}
	}
	sort.SliceStable(scores, func(i, j int) bool { return scores[i].score > scores[j].score })
	maxSentences = min(maxSentences, len(scores))

	selected := make([]int, maxSentences)
	for i := range selected {
		selected[i] = scores[i].idx
	}
	sort.Ints(selected)
	out := make([]string, len(selected))
	for i, idx := range selected {
		out[i] = sentences[idx]
	}
	return strings.Join(out, " "), nil
}
