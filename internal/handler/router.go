package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"github.com/prn-tf/beacon-tracker/internal/metrics"
)

// DatabaseChecker is the health-check view of the database connection.
type DatabaseChecker interface {
	Health(ctx context.Context) error
}

// RouterConfig contains configuration for the router.
type RouterConfig struct {
	IssueHandler *IssueHandler
	AdminHandler *AdminHandler
	Database     DatabaseChecker
	Metrics      *metrics.Metrics
	MetricsPath  string
	MaxBodySize  int64
	Logger       zerolog.Logger
}

// NewRouter builds the HTTP handler tree.
func NewRouter(cfg RouterConfig) http.Handler {
	r := chi.NewRouter()

	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(requestLogger(cfg.Logger))
	r.Use(chimiddleware.Recoverer)
	r.Use(recordMetrics(cfg.Metrics))
	if cfg.MaxBodySize > 0 {
		r.Use(maxBodySize(cfg.MaxBodySize))
	}

	r.Get("/health", handleHealth(cfg.Database))

	if cfg.Metrics != nil && cfg.MetricsPath != "" {
		r.Method(http.MethodGet, cfg.MetricsPath, cfg.Metrics.Handler())
	}

	cfg.IssueHandler.RegisterRoutes(r)
	cfg.AdminHandler.RegisterRoutes(r)

	return r
}

// handleHealth reports service and database health.
func handleHealth(db DatabaseChecker) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()

		if db != nil {
			if err := db.Health(ctx); err != nil {
				writeJSON(w, http.StatusServiceUnavailable, map[string]string{
					"status":   "degraded",
					"database": "unreachable",
				})
				return
			}
		}

		writeJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
	}
}
