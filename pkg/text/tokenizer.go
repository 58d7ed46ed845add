// Package text implements the sparse/keyword retrieval subsystem of
// spec §4.4: a pluggable tokenizer, a growing term dictionary, per-field
// inverted postings, and BM25/BM25F scoring.
package text

import (
	"strings"
	"unicode"
)

// TokenizerKind selects a pluggable tokenizer (spec §6 config enum).
type TokenizerKind string

const (
	TokenizerWhitespace TokenizerKind = "whitespace"
	TokenizerLanguage   TokenizerKind = "language"
)

// Tokenizer turns raw text into a sequence of terms.
type Tokenizer interface {
	Tokenize(text string) []string
}

// WhitespaceTokenizer lower-cases and splits on non-letter/non-digit runes.
// This is the default tokenizer (spec §4.4).
type WhitespaceTokenizer struct{}

func (WhitespaceTokenizer) Tokenize(text string) []string {
	return splitWords(strings.ToLower(text))
}

func splitWords(s string) []string {
	return strings.FieldsFunc(s, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}

// LanguageTokenizer additionally strips a stopword set and applies a light
// suffix-stripping stemmer, matching the degree of sophistication the
// teacher's own sparse encoder shows (pkg/semantic-router/sparse.go ships a
// hand-written stopword table rather than pulling an external stemming
// library — DESIGN.md documents why vectorcore follows the same
// precedent rather than adding a snowball dependency absent from the pack).
type LanguageTokenizer struct {
	Stopwords map[string]bool
	Stem      bool
}

// NewLanguageTokenizer builds a tokenizer with the given stopword set. A
// nil set falls back to DefaultStopwords.
func NewLanguageTokenizer(stopwords map[string]bool, stem bool) *LanguageTokenizer {
	if stopwords == nil {
		stopwords = DefaultStopwords
	}
	return &LanguageTokenizer{Stopwords: stopwords, Stem: stem}
}

func (t *LanguageTokenizer) Tokenize(text string) []string {
	words := splitWords(strings.ToLower(text))
	out := make([]string, 0, len(words))
	for _, w := range words {
		if len(w) <= 1 || t.Stopwords[w] {
			continue
		}
		if t.Stem {
			w = stem(w)
		}
		out = append(out, w)
	}
	return out
}

// DefaultStopwords is a small English stopword table, in the same spirit
// as the teacher's inline list (pkg/semantic-router/sparse.go).
var DefaultStopwords = map[string]bool{
	"a": true, "an": true, "the": true, "and": true, "or": true,
	"but": true, "in": true, "on": true, "at": true, "to": true,
	"for": true, "of": true, "with": true, "by": true, "is": true,
	"are": true, "was": true, "were": true, "be": true, "been": true,
	"this": true, "that": true, "these": true, "those": true, "it": true,
}

// stem applies a minimal Porter-style suffix stripping pass: enough to
// collapse common plural/verb-inflection forms without pulling in a
// dedicated snowball stemming dependency absent from the teacher's and
// pack's go.mod graphs (see DESIGN.md).
func stem(w string) string {
	switch {
	case strings.HasSuffix(w, "ies") && len(w) > 4:
		return w[:len(w)-3] + "y"
	case strings.HasSuffix(w, "ing") && len(w) > 5:
		return w[:len(w)-3]
	case strings.HasSuffix(w, "ed") && len(w) > 4:
		return w[:len(w)-2]
	case strings.HasSuffix(w, "es") && len(w) > 4:
		return w[:len(w)-2]
	case strings.HasSuffix(w, "s") && !strings.HasSuffix(w, "ss") && len(w) > 3:
		return w[:len(w)-1]
	default:
		return w
	}
}

// NewTokenizer resolves kind into a concrete Tokenizer.
func NewTokenizer(kind TokenizerKind, stopwords map[string]bool, stem bool) Tokenizer {
	if kind == TokenizerLanguage {
		return NewLanguageTokenizer(stopwords, stem)
	}
	return WhitespaceTokenizer{}
}
