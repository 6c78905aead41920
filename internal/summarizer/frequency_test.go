package summarizer

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSummarize_PicksCentralSentencesInOrder(t *testing.T) {
	text := "Vector search ranks chunks. " +
		"The weather was nice. " +
		"Hybrid search combines vector search and lexical search. " +
		"Lunch was pasta."

	got, err := NewFrequencySummarizer().Summarize(text, 2)
	require.NoError(t, err)
	assert.Equal(t, "Vector search ranks chunks. Hybrid search combines vector search and lexical search.", got)
}

func TestSummarize_ShortTextReturnedWhole(t *testing.T) {
	got, err := NewFrequencySummarizer().Summarize("Only one sentence here", 3)
	require.NoError(t, err)
	assert.Equal(t, "Only one sentence here", got)
}

func TestSummarize_Empty(t *testing.T) {
	got, err := NewFrequencySummarizer().Summarize("   ", 0)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestSummarize_Korean(t *testing.T) {
	text := "검색 엔진은 문서를 찾는다. 오늘은 비가 온다. 검색 품질이 중요하다."
	got, err := NewFrequencySummarizer().Summarize(text, 2)
	require.NoError(t, err)
	assert.Contains(t, got, "검색 엔진은 문서를 찾는다.")
	assert.Contains(t, got, "검색 품질이 중요하다.")
}
