// Package metrics exposes Prometheus instrumentation for the index build,
// recommendation queries and the HTTP API.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Index Build Metrics
	IndexBuildDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "recommender_index_build_duration_seconds",
			Help:    "Duration of catalog load plus similarity index build in seconds",
			Buckets: []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
		},
	)

	IndexBuildsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "recommender_index_builds_total",
			Help: "Total number of index builds by result",
		},
		[]string{"result"}, // "success", "catalog_unavailable", "error"
	)

	IndexReady = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "recommender_index_ready",
			Help: "1 when a similarity index is published and serving queries",
		},
	)

	CatalogProducts = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "recommender_catalog_products",
			Help: "Number of products in the published index",
		},
	)

	IndexVocabularySize = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "recommender_index_vocabulary_terms",
			Help: "Number of vocabulary terms in the published index",
		},
	)

	// Query Metrics
	RecommendationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "recommender_recommendations_total",
			Help: "Total number of recommendation queries by strategy",
		},
		[]string{"strategy"}, // "item", "text", "none"
	)

	RecommendationResults = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "recommender_recommendation_results",
			Help:    "Number of products returned per recommendation query",
			Buckets: []float64{0, 1, 2, 3, 5, 8, 10},
		},
		[]string{"strategy"},
	)

	// API Endpoint Metrics
	APIRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "recommender_api_requests_total",
			Help: "Total number of API requests",
		},
		[]string{"method", "endpoint", "status_code"},
	)

	APIRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "recommender_api_request_duration_seconds",
			Help:    "API request duration in seconds",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
		},
		[]string{"method", "endpoint"},
	)
)

// Build results
const (
	BuildSuccess            = "success"
	BuildCatalogUnavailable = "catalog_unavailable"
	BuildError              = "error"
)

// RecordIndexBuild records the outcome of one build attempt
func RecordIndexBuild(result string, duration time.Duration) {
	IndexBuildsTotal.WithLabelValues(result).Inc()
	IndexBuildDuration.Observe(duration.Seconds())
}

// RecordIndexPublished updates the gauges describing the serving index
func RecordIndexPublished(products, vocabulary int) {
	IndexReady.Set(1)
	CatalogProducts.Set(float64(products))
	IndexVocabularySize.Set(float64(vocabulary))
}

// RecordRecommendation records one query and the size of its result
func RecordRecommendation(strategy string, results int) {
	RecommendationsTotal.WithLabelValues(strategy).Inc()
	RecommendationResults.WithLabelValues(strategy).Observe(float64(results))
}

// RecordAPIRequest records an API request metric
func RecordAPIRequest(method, endpoint, statusCode string, duration time.Duration) {
	APIRequestsTotal.WithLabelValues(method, endpoint, statusCode).Inc()
	APIRequestDuration.WithLabelValues(method, endpoint).Observe(duration.Seconds())
}
