// Package api exposes the keyword analysis pipeline and the run store over
// HTTP.
package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/sells-group/adkeyword-cli/internal/config"
	"github.com/sells-group/adkeyword-cli/internal/pipeline"
)

// Server serves the HTTP API.
type Server struct {
	cfg      config.ServerConfig
	pipeline *pipeline.Pipeline
	gatherer prometheus.Gatherer
}

// NewServer creates a Server. gatherer may be nil, in which case /metrics
// is not mounted.
func NewServer(cfg config.ServerConfig, p *pipeline.Pipeline, gatherer prometheus.Gatherer) *Server {
	return &Server{cfg: cfg, pipeline: p, gatherer: gatherer}
}

// Handler builds the router.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(requestLogger)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: allowedOrigins(s.cfg.AllowedOrigins),
		AllowedMethods: []string{"GET", "POST", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type", "X-Request-Id"},
		ExposedHeaders: []string{"Content-Disposition"},
		MaxAge:         300,
	}))

	r.Get("/health", s.handleHealth)
	if s.gatherer != nil {
		r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{}))
	}

	r.Route("/api", func(r chi.Router) {
		r.Use(rateLimit(s.cfg.RateLimitRPS, s.cfg.RateLimitBurst))

		r.Post("/keywords/upload", s.handleUpload)
		r.Post("/keywords/recommendations", s.handleRecommendations)
		r.Post("/keywords/analyze", s.handleAnalyze)

		r.Get("/runs", s.handleListRuns)
		r.Get("/runs/compare", s.handleCompareRuns)
		r.Get("/runs/{id}", s.handleGetRun)
		r.Patch("/runs/{id}", s.handleUpdateRun)
		r.Delete("/runs/{id}", s.handleDeleteRun)
		r.Get("/runs/{id}/export", s.handleExportRun)
	})

	return r
}

func allowedOrigins(origins []string) []string {
	if len(origins) == 0 {
		return []string{"*"}
	}
	return origins
}

// maxUploadBytes returns the multipart body limit.
func (s *Server) maxUploadBytes() int64 {
	mb := s.cfg.MaxUploadMB
	if mb <= 0 {
		mb = 10
	}
	return int64(mb) << 20
}
