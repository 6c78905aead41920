package tokenizer

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTokenize_Empty(t *testing.T) {
	tokens := Tokenize("")
	require.NotNil(t, tokens)
	assert.Empty(t, tokens)
}

func TestTokenize_LowercasesAndSplits(t *testing.T) {
	tests := []struct {
		name   string
		input  string
		expect []string
	}{
		{name: "hello world", input: "Hello World", expect: []string{"hello", "world"}},
		{name: "punctuation", input: "foo.bar(baz, qux)!", expect: []string{"foo", "bar", "baz", "qux"}},
		{name: "digits kept", input: "Q3 2024 report", expect: []string{"q3", "2024", "report"}},
		{name: "only punctuation", input: "--- ...", expect: []string{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expect, Tokenize(tt.input))
		})
	}
}

func TestTokenize_HangulBigramsBeforeWholeToken(t *testing.T) {
	tokens := Tokenize("포트폴리오")

	// k=5 syllables -> 4 bigrams + the token itself
	require.Len(t, tokens, 5)
	assert.Equal(t, []string{"포트", "트폴", "폴리", "리오", "포트폴리오"}, tokens)
}

func TestTokenize_HangulBigramCount(t *testing.T) {
	for _, word := range []string{"한국", "검색엔진", "하이브리드검색"} {
		k := len([]rune(word))
		assert.Len(t, Tokenize(word), k, word) // k-1 bigrams + 1 whole token
	}
}

func TestTokenize_SingleSyllableHasNoBigram(t *testing.T) {
	assert.Equal(t, []string{"집"}, Tokenize("집"))
}

func TestTokenize_MixedScripts(t *testing.T) {
	tokens := Tokenize("RAG 검색")
	assert.Equal(t, []string{"rag", "검색", "검색"}, tokens)
}

func TestTokenize_JamoCountsAsHangul(t *testing.T) {
	assert.True(t, ContainsHangul("ㅋㅋ"))
	assert.Equal(t, []string{"ㅋㅋ", "ㅋㅋ"}, Tokenize("ㅋㅋ"))
}

func TestTokenize_Deterministic(t *testing.T) {
	text := "프로젝트 portfolio 프로젝트 Portfolio"
	assert.Equal(t, Counts(text), Counts(text))
	assert.Equal(t, 2, Counts(text)["portfolio"])
}

func TestCountTokens(t *testing.T) {
	m := CountTokens([]string{"a", "b", "a"})
	assert.Equal(t, map[string]int{"a": 2, "b": 1}, m)
}

func TestWithoutStopwords(t *testing.T) {
	assert.Equal(t, []string{"quick", "fox"}, WithoutStopwords(Tokenize("The quick and the fox")))
	assert.True(t, IsStopword("the"))
	assert.False(t, IsStopword("fox"))
}
