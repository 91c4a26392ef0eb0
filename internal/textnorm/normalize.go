// Package textnorm cleans free text before it is sent to a generative-text
// service: lowercase, tokenise, drop stop words and non-alphabetic tokens.
package textnorm

import (
	_ "embed"
	"fmt"
	"strings"
	"sync"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"golang.org/x/text/unicode/norm"
	"gopkg.in/yaml.v3"
)

//go:embed stopwords.yaml
var stopWordsYAML []byte

type stopWordFile struct {
	Language string   `yaml:"language"`
	Words    []string `yaml:"words"`
}

// Normalizer holds an immutable stop-word set and is safe for concurrent use.
type Normalizer struct {
	stop map[string]struct{}
}

// New creates a Normalizer from an explicit stop-word list.
func New(stopWords []string) *Normalizer {
	stop := make(map[string]struct{}, len(stopWords))
	for _, w := range stopWords {
		stop[strings.ToLower(strings.TrimSpace(w))] = struct{}{}
	}
	return &Normalizer{stop: stop}
}

// ParseStopWords reads a stop-word YAML document ({language, words}).
func ParseStopWords(data []byte) ([]string, error) {
	var f stopWordFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parsing stop words: %w", err)
	}
	if len(f.Words) == 0 {
		return nil, fmt.Errorf("stop word file has no words")
	}
	return f.Words, nil
}

var defaultNormalizer = sync.OnceValue(func() *Normalizer {
	words, err := ParseStopWords(stopWordsYAML)
	if err != nil {
		panic(err) // embedded file is part of the build
	}
	return New(words)
})

// Default returns the Normalizer backed by the embedded English stop words.
func Default() *Normalizer {
	return defaultNormalizer()
}

// Normalize cleans text with the default English stop words.
func Normalize(text string) string {
	return Default().Normalize(text)
}

// NormalizeAll cleans every item with the default English stop words.
func NormalizeAll(items []string) []string {
	return Default().NormalizeAll(items)
}

// IsStopWord reports whether w (already lowercased) is a stop word.
func (n *Normalizer) IsStopWord(w string) bool {
	_, ok := n.stop[w]
	return ok
}

// Normalize returns the alphabetic, non-stop-word tokens of text, lowercased
// and joined by single spaces, in their original order. Normalize is
// idempotent.
func (n *Normalizer) Normalize(text string) string {
	if text == "" {
		return ""
	}

	// A Caser keeps state, so each call gets its own.
	lower := cases.Lower(language.English).String(norm.NFC.String(text))

	var kept []string
	for _, field := range strings.FieldsFunc(lower, unicode.IsSpace) {
		token := strings.TrimFunc(field, isEdgePunct)
		if token == "" || !isAlpha(token) || n.IsStopWord(token) {
			continue
		}
		kept = append(kept, token)
	}
	return strings.Join(kept, " ")
}

// NormalizeAll maps Normalize over items, preserving length and order.
func (n *Normalizer) NormalizeAll(items []string) []string {
	out := make([]string, len(items))
	for i, item := range items {
		out[i] = n.Normalize(item)
	}
	return out
}

func isEdgePunct(r rune) bool {
	return unicode.IsPunct(r) || unicode.IsSymbol(r)
}

func isAlpha(s string) bool {
	for _, r := range s {
		if !unicode.IsLetter(r) {
			return false
		}
	}
	return true
}
