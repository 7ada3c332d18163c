package search

import (
	"context"
	"runtime"
	"sort"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/knowledge-engine/recommender/internal/catalog"
)

// SearchResult holds a matching product and its score
type SearchResult struct {
	Product catalog.Product
	Score   float64
}

// Index is the term-weight and similarity representation of a catalog.
// It is immutable once NewIndex returns and safe for concurrent reads.
type Index struct {
	catalog    *catalog.Catalog
	vectorizer *TFIDFVectorizer
	rows       []SparseVector
	similarity [][]float64

	buildID  string
	builtAt  time.Time
	duration time.Duration
}

// NewIndex fits the vectorizer on the tags of every product and computes the
// full pairwise cosine similarity matrix.
func NewIndex(ctx context.Context, cat *catalog.Catalog) (*Index, error) {
	start := time.Now()
	if cat == nil {
		cat = &catalog.Catalog{Names: map[string]int{}}
	}

	docs := cat.Corpus()
	vectorizer := NewTFIDFVectorizer()
	vectorizer.Fit(docs)

	rows := make([]SparseVector, len(docs))
	for i, doc := range docs {
		rows[i] = vectorizer.Transform(doc)
	}

	similarity, err := similarityMatrix(ctx, rows)
	if err != nil {
		return nil, err
	}

	return &Index{
		catalog:    cat,
		vectorizer: vectorizer,
		rows:       rows,
		similarity: similarity,
		buildID:    uuid.NewString(),
		builtAt:    time.Now(),
		duration:   time.Since(start),
	}, nil
}

// similarityMatrix computes the upper triangle row by row in parallel and
// mirrors it. Worker i owns cells (i, j) and (j, i) for j > i.
func similarityMatrix(ctx context.Context, rows []SparseVector) ([][]float64, error) {
	n := len(rows)
	sim := make([][]float64, n)
	for i := range sim {
		sim[i] = make([]float64, n)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(runtime.GOMAXPROCS(0))
	for i := 0; i < n; i++ {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			sim[i][i] = 1.0
			for j := i + 1; j < n; j++ {
				score := rows[i].Dot(rows[j])
				sim[i][j] = score
				sim[j][i] = score
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return sim, nil
}

// Len returns the number of indexed products
func (idx *Index) Len() int {
	return len(idx.rows)
}

// Product returns the product at position i
func (idx *Index) Product(i int) catalog.Product {
	return idx.catalog.Products[i]
}

// Lookup returns the position of the first product named name
func (idx *Index) Lookup(name string) (int, bool) {
	return idx.catalog.Lookup(name)
}

// Similarity returns cell (i, j) of the similarity matrix
func (idx *Index) Similarity(i, j int) float64 {
	return idx.similarity[i][j]
}

// Row returns the term-weight vector of product i
func (idx *Index) Row(i int) SparseVector {
	return idx.rows[i]
}

func (idx *Index) VocabularySize() int {
	return idx.vectorizer.Size()
}

func (idx *Index) BuildID() string {
	return idx.buildID
}

func (idx *Index) BuiltAt() time.Time {
	return idx.builtAt
}

func (idx *Index) BuildDuration() time.Duration {
	return idx.duration
}

// ByItem returns the topN products most similar to the product named name.
// An unknown name yields no results. The product itself, and any later
// product sharing its name, is never returned.
func (idx *Index) ByItem(name string, topN int) []SearchResult {
	self, ok := idx.Lookup(name)
	if !ok || topN <= 0 {
		return nil
	}

	row := idx.similarity[self]
	candidates := make([]SearchResult, 0, len(row))
	for j, score := range row {
		if j == self || idx.catalog.Products[j].Name == name {
			continue
		}
		candidates = append(candidates, SearchResult{Product: idx.catalog.Products[j], Score: score})
	}

	return topResults(candidates, topN)
}

// ByText projects query onto the frozen vocabulary and returns up to topN
// products scoring strictly above minScore.
func (idx *Index) ByText(query string, topN int, minScore float64) []SearchResult {
	if topN <= 0 {
		return nil
	}
	queryVector := idx.vectorizer.Transform(query)
	if len(queryVector) == 0 {
		return nil
	}

	var candidates []SearchResult
	for i, row := range idx.rows {
		score := queryVector.Dot(row)
		if score > minScore {
			candidates = append(candidates, SearchResult{Product: idx.catalog.Products[i], Score: score})
		}
	}

	return topResults(candidates, topN)
}

// topResults sorts by descending score, ties by ascending index, and truncates
func topResults(results []SearchResult, topN int) []SearchResult {
	sort.Slice(results, func(i, j int) bool {
		if results[i].Score != results[j].Score {
			return results[i].Score > results[j].Score
		}
		return results[i].Product.Index < results[j].Product.Index
	})

	if len(results) > topN {
		return results[:topN]
	}
	return results
}
