package app

import (
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/transitops/fleet-ledger/internal/accounting/accounts"
	"github.com/transitops/fleet-ledger/internal/accounting/entries"
	"github.com/transitops/fleet-ledger/internal/accounting/fiscalyears"
	"github.com/transitops/fleet-ledger/internal/accounting/journals"
	"github.com/transitops/fleet-ledger/internal/accounting/mappings"
	"github.com/transitops/fleet-ledger/internal/accounting/reports"
	"github.com/transitops/fleet-ledger/internal/integration"
	"github.com/transitops/fleet-ledger/internal/observability"
	"github.com/transitops/fleet-ledger/internal/platform/cache"
	"github.com/transitops/fleet-ledger/internal/shared"
	"github.com/transitops/fleet-ledger/internal/tva"
)

const (
	// ReportCacheNamespace prefixes every cached report key.
	ReportCacheNamespace = "ledger:reports"
	// DefaultReportTTL bounds a cached report when no TTL is configured.
	DefaultReportTTL = 10 * time.Minute
)

// Services is the wired ledger core shared by the API, the worker and the CLI.
type Services struct {
	Accounts    *accounts.Service
	Journals    *journals.Service
	FiscalYears *fiscalyears.Service
	Entries     *entries.Service
	Reports     *reports.Service
	TVA         *tva.Service
	Mappings    mappings.Repository
	Hooks       *integration.Hooks
	Idempotency *shared.IdempotencyStore
}

// ServiceDeps are the infrastructure handles the services run on. A nil Redis
// client disables report caching; nil Metrics disables counters.
type ServiceDeps struct {
	Pool    *pgxpool.Pool
	Redis   *redis.Client
	Config  *Config
	Metrics *observability.Metrics
	Logger  *slog.Logger
}

// NewServices wires repositories into services.
func NewServices(deps ServiceDeps) *Services {
	audit := shared.NewAuditLogger(deps.Pool)

	ttl := DefaultReportTTL
	if deps.Config != nil && deps.Config.ReportCacheTTL > 0 {
		ttl = deps.Config.ReportCacheTTL
	}
	reportService := reports.NewService(reports.NewRepository(deps.Pool), cache.NewVersioned(deps.Redis, ReportCacheNamespace, ttl))

	reportService.WithLogger(deps.Logger)

	entryService := entries.NewService(entries.NewRepository(deps.Pool), audit)
	entryService.WithLogger(deps.Logger)
	entryService.WithInvalidator(reportService)
	tvaService := tva.NewService(tva.NewRepository(deps.Pool), audit)
	if deps.Metrics != nil {
		entryService.WithMetrics(deps.Metrics)
		tvaService.WithMetrics(deps.Metrics)
	}

	mappingRepo := mappings.NewRepository(deps.Pool)
	return &Services{
		Accounts:    accounts.NewService(accounts.NewRepository(deps.Pool), audit),
		Journals:    journals.NewService(journals.NewRepository(deps.Pool)),
		FiscalYears: fiscalyears.NewService(fiscalyears.NewRepository(deps.Pool), audit),
		Entries:     entryService,
		Reports:     reportService,
		TVA:         tvaService,
		Mappings:    mappingRepo,
		Hooks:       integration.NewHooks(entryService, mappingRepo, deps.Logger),
		Idempotency: shared.NewIdempotencyStore(deps.Pool),
	}
}
