package jobs

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"

	"github.com/transitops/fleet-ledger/internal/accounting/fiscalyears"
	"github.com/transitops/fleet-ledger/internal/accounting/reports"
	jobmetrics "github.com/transitops/fleet-ledger/internal/jobs"
)

// ReportWarmer rebuilds cached reports.
type ReportWarmer interface {
	Warm(ctx context.Context, filters []reports.Filter) (int, error)
}

// FiscalYearLister lists the fiscal years to warm.
type FiscalYearLister interface {
	List(ctx context.Context) ([]fiscalyears.FiscalYear, error)
}

// WarmupJob pre-builds trial balances so the first dashboard read is cached.
type WarmupJob struct {
	Reports     ReportWarmer
	FiscalYears FiscalYearLister
	Logger      *slog.Logger
	Metrics     *jobmetrics.Metrics
	Timeout     time.Duration
}

func NewWarmupJob(warmer ReportWarmer, years FiscalYearLister, logger *slog.Logger, metrics *jobmetrics.Metrics) *WarmupJob {
	return &WarmupJob{Reports: warmer, FiscalYears: years, Logger: logger, Metrics: metrics, Timeout: time.Minute}
}

func (j *WarmupJob) Handle(ctx context.Context, t *asynq.Task) (err error) {
	var payload WarmupPayload
	if len(t.Payload()) > 0 {
		if err := json.Unmarshal(t.Payload(), &payload); err != nil {
			return asynq.SkipRetry
		}
	}
	tracker := j.metrics().Track(TaskReportsWarmup)
	defer func() { err = tracker.End(err) }()

	logger := jobLogger(j.Logger, TaskReportsWarmup)
	ids := payload.FiscalYearIDs
	if len(ids) == 0 {
		years, err := j.FiscalYears.List(ctx)
		if err != nil {
			logger.Error("list fiscal years", slog.Any("error", err))
			return err
		}
		for _, fy := range years {
			if fy.IsOpen() {
				ids = append(ids, fy.ID)
			}
		}
	}
	if len(ids) == 0 {
		logger.Info("no open fiscal year to warm")
		return nil
	}
	filters := make([]reports.Filter, 0, len(ids))
	for _, id := range ids {
		filters = append(filters, reports.Filter{FiscalYearID: &id})
	}

	warmCtx, cancel := context.WithTimeout(ctx, j.Timeout)
	defer cancel()
	start := time.Now()
	warmed, err := j.Reports.Warm(warmCtx, filters)
	if err != nil {
		logger.Error("warm reports", slog.Any("error", err))
		return err
	}
	logger.Info("reports warmed", slog.Int("fiscal_years", warmed), slog.Duration("duration", time.Since(start)))
	return nil
}

func (j *WarmupJob) metrics() *jobmetrics.Metrics {
	if j.Metrics != nil {
		return j.Metrics
	}
	return defaultJobMetrics
}
