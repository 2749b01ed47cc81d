// Package api serves the read-only pharmacy directory over HTTP.
package api

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"

	"github.com/sells-group/pharmadir/internal/directory"
	"github.com/sells-group/pharmadir/internal/model"
	"github.com/sells-group/pharmadir/internal/syncer"
)

// Directory answers pharmacy and region queries.
type Directory interface {
	Search(ctx context.Context, q directory.Query) ([]model.Pharmacy, error)
	Regions(ctx context.Context) ([]directory.RegionSummary, error)
}

// SyncStatus exposes the state of the sync engine.
type SyncStatus interface {
	LastReport() *syncer.Report
	Running() bool
}

// Pinger checks that the store is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// ServerOption configures the API router.
type ServerOption func(*serverConfig)

type serverConfig struct {
	middlewares    []func(http.Handler) http.Handler
	corsOrigins    []string
	metricsHandler http.Handler
}

// WithMiddlewares adds middleware to the router.
func WithMiddlewares(mw ...func(http.Handler) http.Handler) ServerOption {
	return func(cfg *serverConfig) {
		cfg.middlewares = append(cfg.middlewares, mw...)
	}
}

// WithCORSOrigins sets the origins allowed to read the API from a browser.
func WithCORSOrigins(origins []string) ServerOption {
	return func(cfg *serverConfig) {
		cfg.corsOrigins = origins
	}
}

// WithMetricsHandler mounts h at /metrics.
func WithMetricsHandler(h http.Handler) ServerOption {
	return func(cfg *serverConfig) {
		cfg.metricsHandler = h
	}
}

// NewServer builds the router.
func NewServer(dir Directory, status SyncStatus, pinger Pinger, opts ...ServerOption) *chi.Mux {
	cfg := &serverConfig{corsOrigins: []string{"*"}}
	for _, opt := range opts {
		opt(cfg)
	}

	h := &handlers{dir: dir, status: status, pinger: pinger}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: cfg.corsOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		MaxAge:         300,
	}))
	for _, mw := range cfg.middlewares {
		r.Use(mw)
	}

	r.Get("/health", h.health)
	if cfg.metricsHandler != nil {
		r.Method(http.MethodGet, "/metrics", cfg.metricsHandler)
	}

	r.Route("/api", func(r chi.Router) {
		r.Get("/pharmacies", h.searchPharmacies)
		r.Get("/wilayas", h.listRegions)
		r.Get("/sync/status", h.syncStatus)
	})

	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, ErrNotFound)
	})

	return r
}

// LoggingMiddleware logs each request at debug level.
func LoggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		next.ServeHTTP(ww, r)

		zap.L().Debug("http request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.Status()),
			zap.Duration("elapsed", time.Since(start)),
			zap.String("request_id", middleware.GetReqID(r.Context())),
		)
	})
}
