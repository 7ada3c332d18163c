package search

import (
	"math"
	"sort"
)

// Term is one non-zero weight of a SparseVector
type Term struct {
	Index  int
	Weight float64
}

// SparseVector holds the non-zero terms of a document vector ordered by
// ascending vocabulary index.
type SparseVector []Term

// NewSparseVector builds a vector from a column -> weight map, dropping zeros
func NewSparseVector(weights map[int]float64) SparseVector {
	v := make(SparseVector, 0, len(weights))
	for idx, w := range weights {
		if w != 0 {
			v = append(v, Term{Index: idx, Weight: w})
		}
	}
	sort.Slice(v, func(i, j int) bool { return v[i].Index < v[j].Index })
	return v
}

// Dot returns the inner product of two sparse vectors
func (v SparseVector) Dot(other SparseVector) float64 {
	var sum float64
	i, j := 0, 0
	for i < len(v) && j < len(other) {
		switch {
		case v[i].Index == other[j].Index:
			sum += v[i].Weight * other[j].Weight
			i++
			j++
		case v[i].Index < other[j].Index:
			i++
		default:
			j++
		}
	}
	return sum
}

// Norm returns the L2 norm
func (v SparseVector) Norm() float64 {
	var sum float64
	for _, t := range v {
		sum += t.Weight * t.Weight
	}
	return math.Sqrt(sum)
}

// Normalize returns a copy scaled to unit length. The zero vector stays zero.
func (v SparseVector) Normalize() SparseVector {
	norm := v.Norm()
	out := make(SparseVector, len(v))
	copy(out, v)
	if norm == 0 {
		return out
	}
	for i := range out {
		out[i].Weight /= norm
	}
	return out
}

// CosineSimilarity calculates the cosine similarity between two vectors
func CosineSimilarity(a, b SparseVector) float64 {
	normA, normB := a.Norm(), b.Norm()
	if normA == 0 || normB == 0 {
		return 0
	}
	return a.Dot(b) / (normA * normB)
}
