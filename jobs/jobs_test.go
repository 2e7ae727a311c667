package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/hibiken/asynq"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/transitops/fleet-ledger/internal/accounting/fiscalyears"
	"github.com/transitops/fleet-ledger/internal/accounting/reports"
	jobmetrics "github.com/transitops/fleet-ledger/internal/jobs"
	_ "github.com/transitops/fleet-ledger/testing"
)

func discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type stubChecker struct {
	report reports.IntegrityReport
	err    error
}

func (s stubChecker) Integrity(ctx context.Context) (reports.IntegrityReport, error) {
	return s.report, s.err
}

func TestIntegrityJobCountsAnomalies(t *testing.T) {
	metrics := jobmetrics.NewMetrics(prometheus.NewRegistry())
	job := NewIntegrityJob(stubChecker{report: reports.IntegrityReport{
		TotalDebit:  decimal.NewFromInt(100),
		TotalCredit: decimal.NewFromInt(90),
		Mismatches:  []reports.Mismatch{{EntryID: 4, EntryNumber: "ACH-4"}},
	}}, discard(), metrics)

	require.NoError(t, job.Handle(context.Background(), NewLedgerIntegrityTask()))

	failing := NewIntegrityJob(stubChecker{err: errors.New("db down")}, discard(), metrics)
	require.Error(t, failing.Handle(context.Background(), NewLedgerIntegrityTask()))
}

type stubWarmer struct {
	filters []reports.Filter
}

func (s *stubWarmer) Warm(ctx context.Context, filters []reports.Filter) (int, error) {
	s.filters = filters
	return len(filters), nil
}

type stubYears []fiscalyears.FiscalYear

func (s stubYears) List(ctx context.Context) ([]fiscalyears.FiscalYear, error) {
	return s, nil
}

func TestWarmupJobTargetsOpenYears(t *testing.T) {
	warmer := &stubWarmer{}
	years := stubYears{
		{ID: 1, Status: fiscalyears.StatusClosed},
		{ID: 2, Status: fiscalyears.StatusOpen},
	}
	job := NewWarmupJob(warmer, years, discard(), jobmetrics.NewMetrics(prometheus.NewRegistry()))

	task, err := NewReportsWarmupTask(WarmupPayload{})
	require.NoError(t, err)
	require.NoError(t, job.Handle(context.Background(), task))
	require.Len(t, warmer.filters, 1)
	require.Equal(t, int64(2), *warmer.filters[0].FiscalYearID)

	task, err = NewReportsWarmupTask(WarmupPayload{FiscalYearIDs: []int64{1, 2}})
	require.NoError(t, err)
	require.NoError(t, job.Handle(context.Background(), task))
	require.Len(t, warmer.filters, 2)

	bad := asynq.NewTask(TaskReportsWarmup, []byte("{"))
	require.ErrorIs(t, job.Handle(context.Background(), bad), asynq.SkipRetry)
}

type stubKeys struct {
	retention time.Duration
}

func (s *stubKeys) Cleanup(ctx context.Context, olderThan time.Duration) (int64, error) {
	s.retention = olderThan
	return 3, nil
}

func TestCleanupJobUsesPayloadRetention(t *testing.T) {
	keys := &stubKeys{}
	job := NewCleanupJob(keys, discard(), jobmetrics.NewMetrics(prometheus.NewRegistry()))

	task, err := NewIdempotencyCleanupTask(24 * time.Hour)
	require.NoError(t, err)
	require.NoError(t, job.Handle(context.Background(), task))
	require.Equal(t, 24*time.Hour, keys.retention)

	require.NoError(t, job.Handle(context.Background(), asynq.NewTask(TaskIdempotencyCleanup, nil)))
	require.Equal(t, DefaultKeyRetention, keys.retention)
}

func TestBuildKnowsEveryTask(t *testing.T) {
	for _, name := range Tasks {
		task, err := Build(name)
		require.NoError(t, err, name)
		require.Equal(t, name, task.Type())
	}
	_, err := Build("mail:send")
	var unknown *UnknownTaskError
	require.ErrorAs(t, err, &unknown)
}

type stubInspector struct {
	info *asynq.QueueInfo
	err  error
}

func (s stubInspector) GetQueueInfo(queue string) (*asynq.QueueInfo, error) {
	return s.info, s.err
}

func TestHealthEndpoint(t *testing.T) {
	serve := func(h *Handler) *httptest.ResponseRecorder {
		r := chi.NewRouter()
		r.Route("/jobs", h.MountRoutes)
		rr := httptest.NewRecorder()
		r.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/jobs/health", nil))
		return rr
	}

	rr := serve(NewHandler(nil, discard()))
	require.Equal(t, http.StatusOK, rr.Code)
	require.JSONEq(t, `{"queue":"default","pending":0,"active":0,"scheduled":0,"retry":0,"archived":0,"paused":false}`, rr.Body.String())

	rr = serve(&Handler{inspector: stubInspector{info: &asynq.QueueInfo{Queue: "default", Pending: 4, Retry: 1}}, logger: discard()})
	require.Equal(t, http.StatusOK, rr.Code)
	var stats QueueStats
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &stats))
	require.Equal(t, 4, stats.Pending)
	require.Equal(t, 1, stats.Retry)

	rr = serve(&Handler{inspector: stubInspector{err: errors.New("redis down")}, logger: discard()})
	require.Equal(t, http.StatusServiceUnavailable, rr.Code)
}
