// Package tokenizer turns text into the lexical tokens used for hybrid scoring.
//
// Base tokens are maximal runs of letters and digits, lower-cased. Tokens that
// contain Hangul additionally yield every two-syllable window so that Korean
// substrings can match partially (e.g. "포트폴리오" also matches "포트").
package tokenizer

import (
	"regexp"
	"strings"
)

var baseTokenRe = regexp.MustCompile(`[\p{L}\p{N}]+`)

// Hangul ranges: compatibility jamo and precomposed syllables.
const (
	jamoFirst     = 'ㄱ'
	jamoLast      = 'ㆎ'
	syllableFirst = '가'
	syllableLast  = '힣'
)

// Tokenize returns the ordered token sequence for text. For Hangul tokens the
// bigrams precede the whole token.
func Tokenize(text string) []string {
	if text == "" {
		return []string{}
	}
	words := baseTokenRe.FindAllString(strings.ToLower(text), -1)
	tokens := make([]string, 0, len(words))
	for _, w := range words {
		if ContainsHangul(w) {
			tokens = append(tokens, bigrams(w)...)
		}
		tokens = append(tokens, w)
	}
	return tokens
}

// Counts builds the token multiset of text.
func Counts(text string) map[string]int {
	return CountTokens(Tokenize(text))
}

// CountTokens folds a token sequence into a multiset.
func CountTokens(tokens []string) map[string]int {
	m := make(map[string]int, len(tokens))
	for _, t := range tokens {
		m[t]++
	}
	return m
}

// ContainsHangul reports whether s has at least one Hangul jamo or syllable.
func ContainsHangul(s string) bool {
	for _, r := range s {
		if isHangul(r) {
			return true
		}
	}
	return false
}

func isHangul(r rune) bool {
	return (r >= jamoFirst && r <= jamoLast) || (r >= syllableFirst && r <= syllableLast)
}

func bigrams(word string) []string {
	runes := []rune(word)
	if len(runes) < 2 {
		return nil
	}
	out := make([]string, 0, len(runes)-1)
	for i := 0; i+1 < len(runes); i++ {
		out = append(out, string(runes[i:i+2]))
	}
	return out
}
