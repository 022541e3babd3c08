package handler

import (
	"net/http"

	"github.com/nexabudget/nexabudget-go/internal/infra/observability"
	"github.com/nexabudget/nexabudget-go/internal/port"
	"github.com/nexabudget/nexabudget-go/internal/service"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"
	"go.uber.org/zap"
)

var tracer = otel.Tracer("handler")

// Services bundles everything the router needs.
type Services struct {
	Auth       *service.Auth
	Accounts   *service.Accounts
	Ledger     *service.Ledger
	Categories *service.Categories
	Syncer     *service.Syncer
	Feed       port.BankFeed
}

// NewRouter creates the HTTP router with all routes and middleware.
func NewRouter(svcs *Services, metrics *observability.Metrics, logger *zap.Logger) http.Handler {
	r := chi.NewRouter()

	// --- Middleware ---
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(observability.ZapLoggerMiddleware(logger))
	r.Use(observability.TracingMiddleware)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Heartbeat("/ping"))

	// --- Operational endpoints ---
	r.Get("/healthz", healthzHandler())
	r.Get("/readyz", readyzHandler())
	r.Handle("/metrics", promhttp.HandlerFor(metrics.Registry, promhttp.HandlerOpts{}))

	// --- API v1 ---
	r.Route("/v1", func(r chi.Router) {

		// Public auth endpoints
		r.Post("/auth/register", registerHandler(svcs.Auth, logger))
		r.Post("/auth/login", loginHandler(svcs.Auth, logger))

		// Everything below requires a valid access token
		r.Group(func(r chi.Router) {
			r.Use(JWTAuthMiddleware(svcs.Auth, logger))

			// Accounts
			r.Get("/accounts", listAccountsHandler(svcs.Accounts, logger))
			r.Post("/accounts", createAccountHandler(svcs.Accounts, logger))
			r.Get("/accounts/balance", totalBalanceHandler(svcs.Accounts, logger))
			r.Get("/accounts/{accountId}", getAccountHandler(svcs.Accounts, logger))
			r.Patch("/accounts/{accountId}", updateAccountHandler(svcs.Accounts, logger))
			r.Delete("/accounts/{accountId}", deleteAccountHandler(svcs.Accounts, logger))
			r.Post("/accounts/{accountId}/link", linkAccountHandler(svcs.Accounts, logger))

			// Bank sync
			r.Post("/accounts/{accountId}/sync", triggerSyncHandler(svcs.Syncer, logger))
			r.Get("/accounts/{accountId}/sync", syncStatusHandler(svcs.Accounts, logger))

			// Ledger
			r.Get("/entries", listEntriesHandler(svcs.Ledger, logger))
			r.Post("/entries", createEntryHandler(svcs.Ledger, logger))
			r.Delete("/entries/{entryId}", deleteEntryHandler(svcs.Ledger, logger))
			r.Put("/entries/{entryId}/category", recategorizeEntryHandler(svcs.Ledger, logger))
			r.Post("/transfers", createTransferHandler(svcs.Ledger, logger))

			// Categories
			r.Get("/categories", listCategoriesHandler(svcs.Categories, logger))
			r.Post("/categories", createCategoryHandler(svcs.Categories, logger))
			r.Put("/categories/{categoryId}", updateCategoryHandler(svcs.Categories, logger))
			r.Delete("/categories/{categoryId}", deleteCategoryHandler(svcs.Categories, logger))

			// Bank onboarding passthrough
			r.Get("/banks", listBanksHandler(svcs.Feed, logger))
			r.Post("/banks/web-token", createWebTokenHandler(svcs.Feed, logger))
			r.Get("/banks/requisitions/{requisitionId}/accounts", listBankAccountsHandler(svcs.Feed, logger))

			// Sync metrics read-model
			r.Get("/metrics/sync", syncMetricsHandler(metrics, logger))
		})
	})

	return r
}

func healthzHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}
}

func readyzHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
	}
}

func syncMetricsHandler(metrics *observability.Metrics, _ *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		_, span := tracer.Start(r.Context(), "GET /metrics/sync")
		defer span.End()
		writeJSON(w, http.StatusOK, metrics.GetSyncSnapshot())
	}
}
