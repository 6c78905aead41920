package strategy

import (
	"path"
	"strings"
	"unicode/utf8"

	"hybridrag/internal/domain"
	"hybridrag/internal/tokenizer"
)

// Features are the document properties detection rules look at.
type Features struct {
	Source    string
	Type      string
	Length    int
	HasHangul bool
	content   string
}

// Extract computes the features of a document once for all rule checks.
func Extract(doc domain.Document) Features {
	return Features{
		Source:    strings.ToLower(doc.Metadata.Source),
		Type:      strings.ToLower(doc.Metadata.Type),
		Length:    utf8.RuneCountInString(doc.Content),
		HasHangul: tokenizer.ContainsHangul(doc.Content),
		content:   strings.ToLower(doc.Content),
	}
}

// Matches reports whether every non-empty rule field matches f.
// An empty rule set never matches.
func Matches(rules domain.DetectionRules, f Features) bool {
	if rules.IsEmpty() {
		return false
	}
	if len(rules.SourcePatterns) > 0 && !matchAnySource(rules.SourcePatterns, f.Source) {
		return false
	}
	if len(rules.DocumentTypes) > 0 && !matchAnyType(rules.DocumentTypes, f.Type) {
		return false
	}
	for _, needle := range rules.ContentContains {
		if !strings.Contains(f.content, strings.ToLower(needle)) {
			return false
		}
	}
	if rules.ContainsHangul && !f.HasHangul {
		return false
	}
	if rules.MinContentLength > 0 && f.Length < rules.MinContentLength {
		return false
	}
	if rules.MaxContentLength > 0 && f.Length > rules.MaxContentLength {
		return false
	}
	return true
}

// matchAnySource globs each pattern against the full source and its base name.
func matchAnySource(patterns []string, source string) bool {
	if source == "" {
		return false
	}
	base := path.Base(strings.ReplaceAll(source, "\\", "/"))
	for _, p := range patterns {
		p = strings.ToLower(p)
		if ok, _ := path.Match(p, source); ok {
			return true
		}
		if ok, _ := path.Match(p, base); ok {
			return true
		}
	}
	return false
}

func matchAnyType(types []string, docType string) bool {
	for _, t := range types {
		if strings.EqualFold(t, docType) {
			return true
		}
	}
	return false
}
