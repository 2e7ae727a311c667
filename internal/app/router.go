package app

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/transitops/fleet-ledger/internal/accounting/accounts"
	"github.com/transitops/fleet-ledger/internal/accounting/entries"
	"github.com/transitops/fleet-ledger/internal/accounting/fiscalyears"
	"github.com/transitops/fleet-ledger/internal/accounting/journals"
	"github.com/transitops/fleet-ledger/internal/accounting/reports"
	"github.com/transitops/fleet-ledger/internal/integration"
	"github.com/transitops/fleet-ledger/internal/observability"
	"github.com/transitops/fleet-ledger/internal/platform/httpx"
	"github.com/transitops/fleet-ledger/internal/tva"
	"github.com/transitops/fleet-ledger/jobs"
)

// RouterParams groups dependencies for building the HTTP router.
type RouterParams struct {
	Logger  *slog.Logger
	Config  *Config
	Metrics *observability.Metrics
	// Ready reports whether backing stores answer; nil means always ready.
	Ready func(ctx context.Context) error

	AccountsHandler    *accounts.Handler
	JournalsHandler    *journals.Handler
	FiscalYearsHandler *fiscalyears.Handler
	EntriesHandler     *entries.Handler
	ReportsHandler     *reports.Handler
	TVAHandler         *tva.Handler
	IntegrationHandler *integration.Handler
	JobHandler         *jobs.Handler
}

// HandlersFor builds every API handler over the wired services.
func HandlersFor(logger *slog.Logger, svc *Services) RouterParams {
	return RouterParams{
		Logger:             logger,
		AccountsHandler:    accounts.NewHandler(logger, svc.Accounts),
		JournalsHandler:    journals.NewHandler(logger, svc.Journals),
		FiscalYearsHandler: fiscalyears.NewHandler(logger, svc.FiscalYears),
		EntriesHandler:     entries.NewHandler(logger, svc.Entries, svc.Idempotency),
		ReportsHandler:     reports.NewHandler(logger, svc.Reports),
		TVAHandler:         tva.NewHandler(logger, svc.TVA),
		IntegrationHandler: integration.NewHandler(logger, svc.Hooks),
	}
}

// NewRouter constructs the chi.Router serving the ledger API.
func NewRouter(params RouterParams) http.Handler {
	r := chi.NewRouter()

	for _, mw := range MiddlewareStack(MiddlewareConfig{
		Logger:  params.Logger,
		Config:  params.Config,
		Metrics: params.Metrics,
	}) {
		r.Use(mw)
	}
	r.Use(chimw.Logger)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		httpx.JSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Get("/readyz", func(w http.ResponseWriter, r *http.Request) {
		if params.Ready != nil {
			ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
			defer cancel()
			if err := params.Ready(ctx); err != nil {
				params.Logger.Warn("readiness", slog.Any("error", err))
				httpx.Problem(w, http.StatusServiceUnavailable, "Not Ready", "")
				return
			}
		}
		httpx.JSON(w, http.StatusOK, map[string]string{"status": "ready"})
	})

	r.Route("/api", func(r chi.Router) {
		if params.AccountsHandler != nil {
			r.Route("/accounts", params.AccountsHandler.MountRoutes)
		}
		if params.JournalsHandler != nil {
			r.Route("/journals", params.JournalsHandler.MountRoutes)
		}
		if params.FiscalYearsHandler != nil {
			r.Route("/fiscal-years", params.FiscalYearsHandler.MountRoutes)
		}
		if params.EntriesHandler != nil {
			r.Route("/entries", params.EntriesHandler.MountRoutes)
		}
		if params.ReportsHandler != nil {
			r.Route("/reports", params.ReportsHandler.MountRoutes)
		}
		if params.TVAHandler != nil {
			r.Route("/tva", params.TVAHandler.MountRoutes)
		}
		if params.IntegrationHandler != nil {
			r.Route("/integration", params.IntegrationHandler.MountRoutes)
		}
	})
	if params.JobHandler != nil {
		r.Route("/jobs", params.JobHandler.MountRoutes)
	}
	if params.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", params.Metrics.Handler())
	}
	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		httpx.Problem(w, http.StatusNotFound, "Not Found", "no route for "+r.URL.Path)
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		httpx.Problem(w, http.StatusMethodNotAllowed, "Method Not Allowed", "")
	})

	return r
}
