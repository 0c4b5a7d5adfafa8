package api

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/jhonbetancourt/abacox-telephony-pricing-sub002/internal/api/middleware"
	"github.com/jhonbetancourt/abacox-telephony-pricing-sub002/internal/database"
	"github.com/jhonbetancourt/abacox-telephony-pricing-sub002/internal/database/models"
	"github.com/jhonbetancourt/abacox-telephony-pricing-sub002/internal/rating"
)

// Rater rates call records for a location.
type Rater interface {
	Rate(ctx context.Context, locationID int64, rec *models.CallRecord) rating.Outcome
	RateBatch(ctx context.Context, locationID int64, records []*models.CallRecord) ([]rating.Outcome, error)
}

// Options configures a Server. Quarantines and Metrics may be nil: without a
// repository quarantines are reported but not stored, and the listing and
// metrics routes are not mounted.
type Options struct {
	Engine      Rater
	Quarantines database.QuarantineRepository
	Metrics     http.Handler
	// RateLimit is the per-IP request rate on the rating endpoints. Zero
	// disables limiting.
	RateLimit float64
	Logger    *slog.Logger
}

// Server holds HTTP handler dependencies and the chi router.
type Server struct {
	router      *chi.Mux
	engine      Rater
	quarantines database.QuarantineRepository
	metrics     http.Handler
	limiter     *middleware.IPRateLimiter
	logger      *slog.Logger
}

// NewServer creates the HTTP handler with all routes mounted.
func NewServer(opts Options) *Server {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{
		router:      chi.NewRouter(),
		engine:      opts.Engine,
		quarantines: opts.Quarantines,
		metrics:     opts.Metrics,
		logger:      logger.With("subsystem", "api"),
	}
	if opts.RateLimit > 0 {
		s.limiter = middleware.NewIPRateLimiter(middleware.RateLimitConfigFor(opts.RateLimit), logger)
	}

	s.routes(logger)
	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// Close releases background resources.
func (s *Server) Close() {
	if s.limiter != nil {
		s.limiter.Stop()
	}
}

// routes configures all middleware and mounts all route groups.
func (s *Server) routes(logger *slog.Logger) {
	r := s.router

	// Global middleware stack.
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(middleware.StructuredLogger(logger))
	r.Use(middleware.Recoverer(logger))

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/health", s.handleHealth)

		r.Route("/locations/{id}", func(r chi.Router) {
			if s.limiter != nil {
				r.Use(middleware.RateLimit(s.limiter))
			}
			r.Post("/rate", s.handleRate)
			r.Post("/rate-batch", s.handleRateBatch)
		})

		if s.quarantines != nil {
			r.Get("/quarantines", s.handleListQuarantines)
		}
	})

	if s.metrics != nil {
		r.Handle("/metrics", s.metrics)
	}

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusNotFound, "not found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	})

	s.logger.Info("api routes mounted")
}

// handleHealth returns basic health status.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
