package api

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/goccy/go-json"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"

	"github.com/knowledge-engine/recommender/internal/engine"
	"github.com/knowledge-engine/recommender/internal/metrics"
)

type Server struct {
	Engine *engine.Engine
	Logger *logrus.Entry
	Router chi.Router
}

func NewServer(eng *engine.Engine, logger *logrus.Entry) *Server {
	s := &Server{
		Engine: eng,
		Logger: logger.WithField("component", "api"),
		Router: chi.NewRouter(),
	}
	s.routes()
	return s
}

func (s *Server) routes() {
	r := s.Router
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(s.requestLogger)
	r.Use(chimiddleware.Recoverer)

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/recommend", s.handleRecommend)
		r.Post("/recommend", s.handleRecommend)
		r.Get("/recommend/item", s.handleRecommendItem)
		r.Get("/recommend/item/{name}", s.handleRecommendItem)
		r.Get("/recommend/text", s.handleRecommendText)
		r.Get("/status", s.handleStatus)
		r.Post("/index/rebuild", s.handleRebuild)

		r.Route("/health", func(r chi.Router) {
			r.Get("/live", s.handleLive)
			r.Get("/ready", s.handleReady)
		})
	})

	r.Handle("/metrics", promhttp.Handler())
}

// ServeHTTP makes Server usable as an http.Handler
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.Router.ServeHTTP(w, r)
}

// requestLogger logs each request and records API metrics under its route pattern
func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := chimiddleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		endpoint := r.URL.Path
		if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
			endpoint = rctx.RoutePattern()
		}
		duration := time.Since(start)
		metrics.RecordAPIRequest(r.Method, endpoint, strconv.Itoa(status), duration)

		s.Logger.WithFields(logrus.Fields{
			"method":     r.Method,
			"path":       r.URL.Path,
			"status":     status,
			"duration":   duration.String(),
			"request_id": chimiddleware.GetReqID(r.Context()),
		}).Debug("Request handled")
	})
}

// Responses
type ErrorResponse struct {
	Error string `json:"error"`
}

type RecommendResponse struct {
	Query    string                  `json:"query"`
	Strategy string                  `json:"strategy"`
	Message  string                  `json:"message"`
	Count    int                     `json:"count"`
	Results  []engine.Recommendation `json:"results"`
}

// Handlers

func (s *Server) handleRecommend(w http.ResponseWriter, r *http.Request) {
	query := r.FormValue("product_name")
	if query == "" {
		query = r.FormValue("q")
	}
	if strings.TrimSpace(query) == "" {
		jsonResponse(w, http.StatusBadRequest, ErrorResponse{Error: "Query 'product_name' is required"})
		return
	}

	res := s.Engine.Recommend(r.Context(), query, s.topN(r))
	jsonResponse(w, http.StatusOK, RecommendResponse{
		Query:    query,
		Strategy: res.Strategy,
		Message:  resultMessage(query, len(res.Items)),
		Count:    len(res.Items),
		Results:  nonNil(res.Items),
	})
}

func (s *Server) handleRecommendItem(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	if name == "" {
		name = r.URL.Query().Get("name")
	}
	if name == "" {
		jsonResponse(w, http.StatusBadRequest, ErrorResponse{Error: "Query 'name' is required"})
		return
	}

	items := s.Engine.RecommendByItem(r.Context(), name, s.topN(r))
	jsonResponse(w, http.StatusOK, RecommendResponse{
		Query:    name,
		Strategy: engine.StrategyItem,
		Message:  resultMessage(name, len(items)),
		Count:    len(items),
		Results:  nonNil(items),
	})
}

func (s *Server) handleRecommendText(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query().Get("q")
	if strings.TrimSpace(query) == "" {
		jsonResponse(w, http.StatusBadRequest, ErrorResponse{Error: "Query 'q' is required"})
		return
	}

	items := s.Engine.RecommendByText(r.Context(), query, s.topN(r))
	jsonResponse(w, http.StatusOK, RecommendResponse{
		Query:    query,
		Strategy: engine.StrategyText,
		Message:  resultMessage(query, len(items)),
		Count:    len(items),
		Results:  nonNil(items),
	})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	jsonResponse(w, http.StatusOK, s.Engine.Status())
}

func (s *Server) handleLive(w http.ResponseWriter, r *http.Request) {
	jsonResponse(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	if !s.Engine.IsReady() {
		jsonResponse(w, http.StatusServiceUnavailable, map[string]string{"status": "not_ready"})
		return
	}
	jsonResponse(w, http.StatusOK, map[string]string{"status": "ready"})
}

func (s *Server) handleRebuild(w http.ResponseWriter, r *http.Request) {
	if err := s.Engine.Rebuild(r.Context()); err != nil {
		s.Logger.WithError(err).Warn("Rebuild request failed")
		jsonResponse(w, http.StatusServiceUnavailable, ErrorResponse{Error: err.Error()})
		return
	}
	jsonResponse(w, http.StatusOK, s.Engine.Status())
}

// topN reads top_n, falling back to the default on a missing or malformed
// value and clamping to [1, max].
func (s *Server) topN(r *http.Request) int {
	cfg := s.Engine.Config
	n, err := strconv.Atoi(strings.TrimSpace(r.FormValue("top_n")))
	if err != nil {
		n = cfg.DefaultTopN
	}
	return max(1, min(cfg.MaxTopN, n))
}

func resultMessage(query string, count int) string {
	if count == 0 {
		return fmt.Sprintf("Sorry, we couldn't find any relevant products for '%s'.", query)
	}
	return fmt.Sprintf("Showing %d results for \"%s\"", count, query)
}

func nonNil(items []engine.Recommendation) []engine.Recommendation {
	if items == nil {
		return []engine.Recommendation{}
	}
	return items
}

func jsonResponse(w http.ResponseWriter, code int, payload interface{}) {
	response, _ := json.Marshal(payload)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	w.Write(response)
}
