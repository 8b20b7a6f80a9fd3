package http

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/ivaldobatista/CashflowEngine/internal/adapter/http/handler"
	"github.com/ivaldobatista/CashflowEngine/internal/adapter/http/middleware"
	"github.com/ivaldobatista/CashflowEngine/internal/infrastructure/metrics"
	"github.com/ivaldobatista/CashflowEngine/internal/usecase"
)

// RouterConfig holds dependencies for the router. Nil handlers leave their
// routes unregistered so each binary mounts only its own API.
type RouterConfig struct {
	ReportHandler      *handler.ReportHandler
	TransactionHandler *handler.TransactionHandler
	HealthHandler      *handler.HealthHandler
	IdempotencyStore   usecase.IdempotencyStore
	IdempotencyTTL     time.Duration
	Metrics            *metrics.Metrics
	// MetricsHandler serves /metrics. Nil uses promhttp.Handler.
	MetricsHandler http.Handler
	Logger         zerolog.Logger
}

// NewRouter creates a new HTTP router.
func NewRouter(cfg RouterConfig) http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.NewLoggingMiddleware(cfg.Logger).Wrap)
	r.Use(middleware.Recovery(cfg.Logger))
	if cfg.Metrics != nil {
		r.Use(middleware.NewMetricsMiddleware(cfg.Metrics).Wrap)
	}

	// Health endpoints
	health := cfg.HealthHandler
	if health == nil {
		health = handler.NewHealthHandler()
	}
	r.Get("/health", health.Liveness)
	r.Get("/ready", health.Readiness)

	metricsHandler := cfg.MetricsHandler
	if metricsHandler == nil {
		metricsHandler = promhttp.Handler()
	}
	r.Method(http.MethodGet, "/metrics", metricsHandler)

	// API v1
	r.Route("/api/v1", func(r chi.Router) {
		// Idempotency middleware for mutating requests
		if cfg.IdempotencyStore != nil {
			idempotencyMiddleware := middleware.NewIdempotencyMiddleware(cfg.IdempotencyStore, cfg.IdempotencyTTL, cfg.Logger)
			r.Use(idempotencyMiddleware.Wrap)
		}

		// Consolidated reports
		if cfg.ReportHandler != nil {
			r.Route("/reports/consolidated", func(r chi.Router) {
				r.Get("/", cfg.ReportHandler.ListRange)
				r.Get("/{date}", cfg.ReportHandler.GetDaily)
			})
		}

		// Transactions
		if cfg.TransactionHandler != nil {
			r.Route("/transactions", func(r chi.Router) {
				r.Post("/", cfg.TransactionHandler.Create)
				r.Get("/{id}", cfg.TransactionHandler.Get)
			})
		}
	})

	return r
}
