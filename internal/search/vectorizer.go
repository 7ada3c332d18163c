package search

import (
	"math"
	"sort"
)

// TFIDFVectorizer implements Term Frequency - Inverse Document Frequency.
// The vocabulary is frozen by Fit; Transform ignores terms it has not seen.
type TFIDFVectorizer struct {
	Vocabulary map[string]int
	Terms      []string
	IDF        []float64
}

func NewTFIDFVectorizer() *TFIDFVectorizer {
	return &TFIDFVectorizer{
		Vocabulary: make(map[string]int),
	}
}

// Fit analyzes the corpus to build vocabulary and IDF stats.
// Columns are assigned in lexicographic term order so the layout only
// depends on the corpus contents.
func (v *TFIDFVectorizer) Fit(docs []string) {
	docCount := float64(len(docs))
	wordDocCounts := make(map[string]int)

	// 1. Count document occurrences
	for _, doc := range docs {
		seenInDoc := make(map[string]bool)
		for _, token := range Analyze(doc) {
			if !seenInDoc[token] {
				wordDocCounts[token]++
				seenInDoc[token] = true
			}
		}
	}

	// 2. Freeze the vocabulary
	v.Terms = make([]string, 0, len(wordDocCounts))
	for word := range wordDocCounts {
		v.Terms = append(v.Terms, word)
	}
	sort.Strings(v.Terms)

	v.Vocabulary = make(map[string]int, len(v.Terms))
	v.IDF = make([]float64, len(v.Terms))
	for idx, word := range v.Terms {
		v.Vocabulary[word] = idx
		// smoothed idf = ln((1 + N) / (1 + df)) + 1
		v.IDF[idx] = math.Log((1+docCount)/(1+float64(wordDocCounts[word]))) + 1
	}
}

// Transform converts text to an L2-normalized vector over the learned vocabulary
func (v *TFIDFVectorizer) Transform(text string) SparseVector {
	// Raw term counts
	tf := make(map[int]float64)
	for _, token := range Analyze(text) {
		if idx, exists := v.Vocabulary[token]; exists {
			tf[idx]++
		}
	}

	for idx, count := range tf {
		tf[idx] = count * v.IDF[idx]
	}

	return NewSparseVector(tf).Normalize()
}

// Size returns the number of vocabulary terms
func (v *TFIDFVectorizer) Size() int {
	return len(v.Terms)
}
