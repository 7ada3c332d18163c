package search

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"golang.org/x/text/cases"
)

// Tokenize splits text into case-folded tokens of at least two runes.
// Any rune that is not a letter or digit separates tokens.
func Tokenize(text string) []string {
	folded := cases.Fold().String(text)
	fields := strings.FieldsFunc(folded, func(c rune) bool {
		return !unicode.IsLetter(c) && !unicode.IsNumber(c)
	})
	tokens := make([]string, 0, len(fields))
	for _, field := range fields {
		if utf8.RuneCountInString(field) >= 2 {
			tokens = append(tokens, field)
		}
	}
	return tokens
}

// Analyze tokenizes text and drops English stop words
func Analyze(text string) []string {
	tokens := Tokenize(text)
	kept := tokens[:0]
	for _, token := range tokens {
		if !IsStopWord(token) {
			kept = append(kept, token)
		}
	}
	return kept
}
