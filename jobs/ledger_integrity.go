package jobs

import (
	"context"
	"log/slog"

	"github.com/hibiken/asynq"

	"github.com/transitops/fleet-ledger/internal/accounting/reports"
	jobmetrics "github.com/transitops/fleet-ledger/internal/jobs"
)

var defaultJobMetrics = jobmetrics.NewMetrics(nil)

// Anomaly kinds reported by the integrity scan.
const (
	AnomalyUnbalanced     = "unbalanced"
	AnomalyHeaderMismatch = "header_mismatch"
)

// IntegrityChecker scans the validated books.
type IntegrityChecker interface {
	Integrity(ctx context.Context) (reports.IntegrityReport, error)
}

// IntegrityJob logs and counts anomalies found in validated entries.
type IntegrityJob struct {
	Checker IntegrityChecker
	Logger  *slog.Logger
	Metrics *jobmetrics.Metrics
}

func NewIntegrityJob(checker IntegrityChecker, logger *slog.Logger, metrics *jobmetrics.Metrics) *IntegrityJob {
	return &IntegrityJob{Checker: checker, Logger: logger, Metrics: metrics}
}

// Handle runs one scan. Anomalies are reported, not returned as errors, so the
// task is not retried for a known bad state.
func (j *IntegrityJob) Handle(ctx context.Context, _ *asynq.Task) (err error) {
	tracker := j.metrics().Track(TaskLedgerIntegrity)
	defer func() { err = tracker.End(err) }()

	logger := jobLogger(j.Logger, TaskLedgerIntegrity)
	report, err := j.Checker.Integrity(ctx)
	if err != nil {
		logger.Error("integrity scan", slog.Any("error", err))
		return err
	}
	if !report.Balanced {
		j.metrics().AddAnomalies(AnomalyUnbalanced, 1)
		logger.Warn("validated books do not balance",
			slog.String("total_debit", report.TotalDebit.StringFixed(2)),
			slog.String("total_credit", report.TotalCredit.StringFixed(2)))
	}
	if n := len(report.Mismatches); n > 0 {
		j.metrics().AddAnomalies(AnomalyHeaderMismatch, n)
		for _, m := range report.Mismatches {
			logger.Warn("entry totals drifted",
				slog.Int64("entry_id", m.EntryID),
				slog.String("entry_number", m.EntryNumber),
				slog.String("header_debit", m.HeaderDebit.StringFixed(2)),
				slog.String("line_debit", m.LineDebit.StringFixed(2)))
		}
	}
	logger.Info("integrity scan completed", slog.Int("anomalies", report.Anomalies()))
	return nil
}

func (j *IntegrityJob) metrics() *jobmetrics.Metrics {
	if j.Metrics != nil {
		return j.Metrics
	}
	return defaultJobMetrics
}

func jobLogger(logger *slog.Logger, job string) *slog.Logger {
	if logger == nil {
		logger = slog.Default()
	}
	return logger.With(slog.String("job", job))
}
