package engine

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/singleflight"

	"github.com/knowledge-engine/recommender/internal/catalog"
	"github.com/knowledge-engine/recommender/internal/config"
	"github.com/knowledge-engine/recommender/internal/metrics"
	"github.com/knowledge-engine/recommender/internal/search"
)

// Query strategies
const (
	StrategyItem = "item"
	StrategyText = "text"
	StrategyNone = "none"
)

// Engine owns the similarity index: it builds it from the catalog source,
// publishes it atomically and answers recommendation queries against it.
// Queries never fail; every degraded state yields an empty result.
type Engine struct {
	Config  config.IndexConfig
	Logger  *logrus.Entry
	Source  catalog.Source
	Options catalog.Options

	index     atomic.Pointer[search.Index]
	attempted atomic.Bool
	buildMu   sync.Mutex
	builds    singleflight.Group

	// Stats
	mu    sync.RWMutex
	stats EngineStats
}

type EngineStats struct {
	Builds      int64
	LastError   string
	LastAttempt time.Time
}

// Recommendation is the view of a product returned to callers
type Recommendation struct {
	Name        string  `json:"name"`
	Brand       string  `json:"brand"`
	ImageURL    string  `json:"image_url"`
	Rating      float64 `json:"rating"`
	ReviewCount int     `json:"review_count"`
	Score       float64 `json:"score"`
}

// Result is the outcome of a dispatched query
type Result struct {
	Query    string
	Strategy string
	Items    []Recommendation
}

// Status describes the published index
type Status struct {
	Ready         bool          `json:"ready"`
	Source        string        `json:"source"`
	Products      int           `json:"products"`
	Vocabulary    int           `json:"vocabulary"`
	BuildID       string        `json:"build_id,omitempty"`
	BuiltAt       time.Time     `json:"built_at"`
	BuildDuration time.Duration `json:"build_duration_ns,omitempty"`
	Builds        int64         `json:"builds"`
	LastError     string        `json:"last_error,omitempty"`
	LastAttempt   time.Time     `json:"last_attempt"`
}

func NewEngine(cfg *config.Config, logger *logrus.Entry, src catalog.Source) (*Engine, error) {
	if src == nil {
		return nil, fmt.Errorf("catalog source is required")
	}
	return &Engine{
		Config:  cfg.Index,
		Logger:  logger.WithField("component", "engine"),
		Source:  src,
		Options: catalog.Options{StripMarkup: cfg.Catalog.StripMarkup},
	}, nil
}

// Build loads the catalog and publishes the index the first time it is
// called. Later calls return immediately; use Rebuild to refresh.
func (e *Engine) Build(ctx context.Context) error {
	e.buildMu.Lock()
	defer e.buildMu.Unlock()

	if e.attempted.Load() {
		return nil
	}
	e.attempted.Store(true)
	return e.refresh(ctx)
}

// Rebuild discards the current index and builds a new one from the catalog.
// Concurrent calls share one build. On failure the previous index keeps serving.
func (e *Engine) Rebuild(ctx context.Context) error {
	e.attempted.Store(true)
	return e.refresh(ctx)
}

// refresh runs the shared build detached from the caller's cancellation so a
// disconnecting caller cannot abort it for everyone joined. A cancelled caller
// stops waiting while the build carries on and publishes.
func (e *Engine) refresh(ctx context.Context) error {
	buildCtx := context.WithoutCancel(ctx)
	ch := e.builds.DoChan("build", func() (interface{}, error) {
		return nil, e.build(buildCtx)
	})

	select {
	case res := <-ch:
		if res.Shared {
			e.Logger.Debug("Joined in-flight index build")
		}
		return res.Err
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (e *Engine) build(ctx context.Context) error {
	start := time.Now()
	e.mu.Lock()
	e.stats.LastAttempt = start
	e.mu.Unlock()

	cat, err := catalog.Load(ctx, e.Source, e.Options)
	if err != nil {
		result := metrics.BuildError
		if errors.Is(err, catalog.ErrCatalogUnavailable) {
			result = metrics.BuildCatalogUnavailable
		}
		e.fail(err, result, start)
		return err
	}

	idx, err := search.NewIndex(ctx, cat)
	if err != nil {
		err = fmt.Errorf("build similarity index: %w", err)
		e.fail(err, metrics.BuildError, start)
		return err
	}

	// All structures become visible to readers together
	e.index.Store(idx)

	metrics.RecordIndexBuild(metrics.BuildSuccess, time.Since(start))
	metrics.RecordIndexPublished(idx.Len(), idx.VocabularySize())

	e.mu.Lock()
	e.stats.Builds++
	e.stats.LastError = ""
	e.mu.Unlock()

	e.Logger.WithFields(logrus.Fields{
		"source":     e.Source.Name(),
		"products":   idx.Len(),
		"names":      len(cat.Names),
		"vocabulary": idx.VocabularySize(),
		"build_id":   idx.BuildID(),
		"duration":   time.Since(start).String(),
	}).Info("Similarity index published")
	return nil
}

func (e *Engine) fail(err error, result string, start time.Time) {
	metrics.RecordIndexBuild(result, time.Since(start))

	e.mu.Lock()
	e.stats.LastError = err.Error()
	e.mu.Unlock()

	log := e.Logger.WithError(err).WithField("source", e.Source.Name())
	if e.IsReady() {
		log.Warn("Index build failed, previous index keeps serving")
		return
	}
	if result == metrics.BuildCatalogUnavailable {
		log.Warn("Catalog unavailable, recommendations disabled")
		return
	}
	log.Error("Index build failed, recommendations disabled")
}

// IsReady reports whether an index has been published
func (e *Engine) IsReady() bool {
	return e.index.Load() != nil
}

// current returns the published index, building it first in lazy mode
func (e *Engine) current(ctx context.Context) *search.Index {
	if idx := e.index.Load(); idx != nil {
		return idx
	}
	if !e.Config.EagerBuild {
		// Failures are logged and recorded by the build itself
		_ = e.Build(ctx)
	}
	return e.index.Load()
}

// Recommend answers q with item-to-item similarity when it names a known
// product and with a free-text search otherwise.
func (e *Engine) Recommend(ctx context.Context, q string, topN int) Result {
	res := Result{Query: q, Strategy: StrategyNone}

	idx := e.current(ctx)
	if idx == nil {
		metrics.RecordRecommendation(res.Strategy, 0)
		return res
	}

	topN = e.ClampTopN(topN)
	var hits []search.SearchResult
	if _, ok := idx.Lookup(q); ok {
		res.Strategy = StrategyItem
		hits = idx.ByItem(q, topN)
	} else {
		res.Strategy = StrategyText
		hits = idx.ByText(q, topN, e.Config.MinTextScore)
	}
	res.Items = uniqueByName(toRecommendations(hits))

	metrics.RecordRecommendation(res.Strategy, len(res.Items))
	e.Logger.WithFields(logrus.Fields{
		"query":    q,
		"strategy": res.Strategy,
		"results":  len(res.Items),
	}).Debug("Recommendation served")
	return res
}

// RecommendByItem returns the products most similar to the product named name
func (e *Engine) RecommendByItem(ctx context.Context, name string, topN int) []Recommendation {
	idx := e.current(ctx)
	if idx == nil {
		metrics.RecordRecommendation(StrategyNone, 0)
		return nil
	}
	items := toRecommendations(idx.ByItem(name, e.ClampTopN(topN)))
	metrics.RecordRecommendation(StrategyItem, len(items))
	return items
}

// RecommendByText returns the products whose tags best match text
func (e *Engine) RecommendByText(ctx context.Context, text string, topN int) []Recommendation {
	idx := e.current(ctx)
	if idx == nil {
		metrics.RecordRecommendation(StrategyNone, 0)
		return nil
	}
	items := toRecommendations(idx.ByText(text, e.ClampTopN(topN), e.Config.MinTextScore))
	metrics.RecordRecommendation(StrategyText, len(items))
	return items
}

// ClampTopN maps non-positive values to the default and caps at the maximum
func (e *Engine) ClampTopN(topN int) int {
	if topN <= 0 {
		topN = e.Config.DefaultTopN
	}
	if topN > e.Config.MaxTopN {
		topN = e.Config.MaxTopN
	}
	if topN < 1 {
		topN = 1
	}
	return topN
}

// Status returns readiness and statistics of the published index
func (e *Engine) Status() Status {
	e.mu.RLock()
	st := Status{
		Source:      e.Source.Name(),
		Builds:      e.stats.Builds,
		LastError:   e.stats.LastError,
		LastAttempt: e.stats.LastAttempt,
	}
	e.mu.RUnlock()

	if idx := e.index.Load(); idx != nil {
		st.Ready = true
		st.Products = idx.Len()
		st.Vocabulary = idx.VocabularySize()
		st.BuildID = idx.BuildID()
		st.BuiltAt = idx.BuiltAt()
		st.BuildDuration = idx.BuildDuration()
	}
	return st
}

func toRecommendations(hits []search.SearchResult) []Recommendation {
	items := make([]Recommendation, len(hits))
	for i, hit := range hits {
		items[i] = Recommendation{
			Name:        hit.Product.Name,
			Brand:       hit.Product.Brand,
			ImageURL:    hit.Product.ImageURL,
			Rating:      hit.Product.Rating,
			ReviewCount: hit.Product.ReviewCount,
			Score:       hit.Score,
		}
	}
	return items
}

// uniqueByName keeps the first, highest ranked, entry per product name
func uniqueByName(items []Recommendation) []Recommendation {
	seen := make(map[string]bool, len(items))
	out := items[:0]
	for _, item := range items {
		if seen[item.Name] {
			continue
		}
		seen[item.Name] = true
		out = append(out, item)
	}
	return out
}
