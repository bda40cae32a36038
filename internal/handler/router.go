package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.opentelemetry.io/otel"
	"go.uber.org/zap"

	"github.com/ssraminder/financial-dashboard/internal/domain"
	"github.com/ssraminder/financial-dashboard/internal/infra/observability"
	"github.com/ssraminder/financial-dashboard/internal/service"
)

var tracer = otel.Tracer("handler")

// Pinger reports backend reachability for /healthz.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Options carries the router's non-service dependencies.
type Options struct {
	Auth        AuthConfig
	CORSOrigins []string
	Backend     Pinger // nil when running on the in-memory store
}

// NewRouter creates the HTTP router with all routes and middleware.
func NewRouter(recSvc *service.ReconcileService, reviewSvc *service.ReviewService, opts Options, metrics *observability.Metrics, logger *zap.Logger) http.Handler {
	r := chi.NewRouter()

	// --- Middleware ---
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(observability.ZapLoggerMiddleware(logger))
	r.Use(observability.TracingMiddleware)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Heartbeat("/ping"))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   opts.CORSOrigins,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-Id"},
		ExposedHeaders:   []string{"X-Request-Id"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	// --- Operational endpoints ---
	r.Get("/healthz", healthzHandler(opts.Backend, logger))
	r.Get("/readyz", readyzHandler())
	r.Handle("/metrics", metrics.Handler())

	// --- API v1 ---
	r.Route("/v1", func(r chi.Router) {
		r.Use(JWTAuthMiddleware(opts.Auth, logger))

		// Bank accounts & statements
		r.Get("/bank-accounts", listBankAccountsHandler(recSvc, logger))
		r.Get("/bank-accounts/{accountId}/statements", listStatementsHandler(recSvc, logger))
		r.Delete("/statements/{statementId}", deleteStatementHandler(recSvc, logger))

		// Review sessions
		r.Post("/sessions", createSessionHandler(recSvc, logger))
		r.Route("/sessions/{sessionId}", func(r chi.Router) {
			r.Delete("/", closeSessionHandler(recSvc, logger))
			r.Put("/selection", selectStatementHandler(recSvc, logger))
			r.Get("/ledger", ledgerHandler(recSvc, logger))
			r.Post("/transactions/{transactionId}/toggle", toggleHandler(recSvc, logger))
			r.Put("/transactions/{transactionId}/amount", setAmountHandler(recSvc, logger))
			r.Post("/reset", resetHandler(recSvc, logger))
			r.Post("/commit", commitHandler(recSvc, logger))
			r.Post("/confirm", confirmHandler(recSvc, logger))
		})

		// Review queue & chart of accounts
		r.Get("/categories", listCategoriesHandler(reviewSvc, logger))
		r.Get("/review", reviewQueueHandler(reviewSvc, logger))
		r.Post("/transactions/{transactionId}/categorize", categorizeHandler(reviewSvc, logger))

		// Notifications
		r.Get("/notifications", listNotificationsHandler(reviewSvc, logger))
		r.Post("/notifications/{notificationId}/read", markNotificationReadHandler(reviewSvc, logger))

		r.Get("/metrics/reconcile", reconcileMetricsHandler(metrics))
	})

	return r
}

// ============================================================
// Operational
// ============================================================

func healthzHandler(backend Pinger, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		now := time.Now().Format(time.RFC3339)

		services := []domain.ServiceHealth{
			{Name: "bookkeeper-api", Status: "healthy", LastChecked: now},
		}

		if backend != nil {
			ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
			defer cancel()

			start := time.Now()
			err := backend.Ping(ctx)
			status := "healthy"
			if err != nil {
				status = "degraded"
				logger.Warn("health check: backend unreachable", zap.Error(err))
			}
			services = append(services, domain.ServiceHealth{
				Name: "supabase", Status: status,
				LatencyMs: time.Since(start).Milliseconds(), LastChecked: now,
			})
		}

		overallStatus := "healthy"
		for _, s := range services {
			if s.Status != "healthy" {
				overallStatus = s.Status
			}
		}

		writeJSON(w, http.StatusOK, domain.HealthStatus{
			Status:   overallStatus,
			Services: services,
		})
	}
}

func readyzHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
	}
}

func reconcileMetricsHandler(metrics *observability.Metrics) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, metrics.Snapshot())
	}
}
