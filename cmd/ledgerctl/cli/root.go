package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/hibiken/asynq"
	"github.com/spf13/cobra"

	"github.com/transitops/fleet-ledger/internal/accounting/reports"
	"github.com/transitops/fleet-ledger/internal/app"
	"github.com/transitops/fleet-ledger/internal/platform/cache"
	"github.com/transitops/fleet-ledger/internal/platform/db"
	"github.com/transitops/fleet-ledger/jobs"
)

// ReportReader is the read side of the ledger used by the report commands.
type ReportReader interface {
	TrialBalance(ctx context.Context, filter reports.Filter) (reports.TrialBalance, error)
	LedgerByCode(ctx context.Context, code string, filter reports.Filter) (reports.Ledger, error)
	Integrity(ctx context.Context) (reports.IntegrityReport, error)
}

// Enqueuer submits background tasks.
type Enqueuer interface {
	Enqueue(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error)
}

// QueueInspector reads queue counters.
type QueueInspector interface {
	GetQueueInfo(queue string) (*asynq.QueueInfo, error)
}

// Env carries the output stream and the lazily opened backends.
type Env struct {
	Out     io.Writer
	Reports func(ctx context.Context) (ReportReader, func(), error)
	Jobs    func() (Enqueuer, QueueInspector, func(), error)
}

// DefaultEnv opens PostgreSQL and Redis from the usual environment variables.
func DefaultEnv() Env {
	return Env{
		Out:     os.Stdout,
		Reports: openReports,
		Jobs:    openJobs,
	}
}

// NewRootCommand assembles ledgerctl.
func NewRootCommand(env Env) *cobra.Command {
	if env.Out == nil {
		env.Out = os.Stdout
	}
	root := &cobra.Command{
		Use:           "ledgerctl",
		Short:         "Fleet ledger operator tool",
		Long:          "ledgerctl computes TVA figures, prints ledger reports and drives background jobs.",
		SilenceUsage:  true,
		SilenceErrors: false,
	}
	root.SetOut(env.Out)
	root.AddCommand(
		newVATCommand(env),
		newTrialBalanceCommand(env),
		newLedgerCommand(env),
		newIntegrityCommand(env),
		newJobsCommand(env),
	)
	return root
}

func openReports(ctx context.Context) (ReportReader, func(), error) {
	cfg, err := app.LoadConfig()
	if err != nil {
		return nil, nil, fmt.Errorf("load config: %w", err)
	}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	pool, err := db.New(ctx, cfg.PGDSN, cfg.PGMaxConns)
	if err != nil {
		return nil, nil, err
	}
	// Reports are built uncached when Redis is down.
	redisClient, _ := cache.New(ctx, cfg.RedisAddr)
	services := app.NewServices(app.ServiceDeps{Pool: pool, Redis: redisClient, Config: cfg, Logger: logger})
	closer := func() {
		if redisClient != nil {
			_ = redisClient.Close()
		}
		pool.Close()
	}
	return services.Reports, closer, nil
}

func openJobs() (Enqueuer, QueueInspector, func(), error) {
	cfg, err := app.LoadConfig()
	if err != nil {
		return nil, nil, nil, fmt.Errorf("load config: %w", err)
	}
	opts := asynq.RedisClientOpt{Addr: cfg.RedisAddr}
	client := jobs.NewClient(opts)
	inspector := asynq.NewInspector(opts)
	closer := func() {
		_ = errors.Join(inspector.Close(), client.Close())
	}
	return client, inspector, closer, nil
}
