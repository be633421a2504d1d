package api

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	sttgateway "github.com/snarg/stt-gateway"
	"github.com/snarg/stt-gateway/internal/config"
	"github.com/snarg/stt-gateway/internal/metrics"
)

type Server struct {
	http *http.Server
	log  zerolog.Logger
}

func NewServer(cfg *config.Config, src *ProviderSource, pool *JobPool, version string, startTime time.Time, log zerolog.Logger) *Server {
	r := chi.NewRouter()

	// Global middleware
	r.Use(RequestID)
	r.Use(Recoverer)
	r.Use(Logger(log))
	r.Use(CORSWithOrigins(cfg.CORSAllowedOrigins))
	r.Use(metrics.InstrumentHandler)
	if cfg.RateLimitRPS > 0 {
		r.Use(RateLimiter(cfg.RateLimitRPS, cfg.RateLimitBurst))
	}

	// Health, metrics and docs — no auth
	health := NewHealthHandler(src, pool, version, startTime)
	r.Get("/api/v1/health", health.ServeHTTP)
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())
	r.Get("/api/v1/openapi.yaml", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/yaml")
		w.Write(sttgateway.OpenAPISpec)
	})

	// Authenticated routes
	r.Group(func(r chi.Router) {
		r.Use(BearerAuth(cfg.AuthToken))

		transcribe := NewTranscribeHandler(src)
		r.Post("/api/v1/transcribe", transcribe.ServeHTTP)

		providers := NewProvidersHandler(src)
		r.Get("/api/v1/providers", providers.ServeHTTP)

		validate := NewValidateHandler(src)
		r.Post("/api/v1/providers/{id}/validate", validate.ServeHTTP)

		jobs := NewJobsHandler(pool, src)
		r.Post("/api/v1/jobs", jobs.Create)
		r.Get("/api/v1/jobs/{id}", jobs.Get)
	})

	return &Server{
		http: &http.Server{
			Addr:         cfg.HTTPAddr,
			Handler:      r,
			ReadTimeout:  cfg.ReadTimeout,
			WriteTimeout: cfg.WriteTimeout,
			IdleTimeout:  cfg.IdleTimeout,
		},
		log: log,
	}
}

// Handler exposes the assembled router, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.http.Handler
}

func (s *Server) Start() error {
	s.log.Info().Str("addr", s.http.Addr).Msg("http server starting")
	err := s.http.ListenAndServe()
	if err == http.ErrServerClosed {
		return nil
	}
	return err
}

func (s *Server) Shutdown(ctx context.Context) error {
	s.log.Info().Msg("http server shutting down")
	return s.http.Shutdown(ctx)
}
