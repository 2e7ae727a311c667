package app

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/transitops/fleet-ledger/internal/observability"
	_ "github.com/transitops/fleet-ledger/testing"
)

func TestLoadConfigDefaults(t *testing.T) {
	t.Setenv("PG_DSN", "postgres://ledger@db/ledger")
	cfg, err := LoadConfig()
	require.NoError(t, err)
	require.Equal(t, ":8080", cfg.AppAddr)
	require.Equal(t, 10*time.Minute, cfg.ReportCacheTTL)
	require.Equal(t, 120, cfg.RateLimitPerMinute)
	require.Equal(t, 2, cfg.WorkerConcurrency)
	require.False(t, cfg.IsProduction())
}

func TestLoadConfigRejectsBadValues(t *testing.T) {
	t.Setenv("LOG_LEVEL", "loud")
	_, err := LoadConfig()
	require.Error(t, err)

	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("WORKER_CONCURRENCY", "0")
	_, err = LoadConfig()
	require.Error(t, err)

	t.Setenv("WORKER_CONCURRENCY", "many")
	_, err = LoadConfig()
	require.Error(t, err)
}

func TestLoggerHonoursLevelAndFormat(t *testing.T) {
	var buf bytes.Buffer
	logger := newLogger(&Config{LogFormat: "json", LogLevel: "warn"}, &buf)
	logger.Info("hidden")
	logger.Warn("shown", slog.String("entry", "ACH-1"))
	out := buf.String()
	require.NotContains(t, out, "hidden")
	require.Contains(t, out, `"msg":"shown"`)
	require.Contains(t, out, `"entry":"ACH-1"`)
}

func testRouter(cfg *Config, ready func(context.Context) error) (http.Handler, *observability.Metrics) {
	metrics := observability.NewMetrics()
	return NewRouter(RouterParams{
		Logger:  slog.New(slog.NewTextHandler(io.Discard, nil)),
		Config:  cfg,
		Metrics: metrics,
		Ready:   ready,
	}), metrics
}

func get(h http.Handler, path string) *httptest.ResponseRecorder {
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, path, nil))
	return rr
}

func TestRouterProbesAndHeaders(t *testing.T) {
	router, _ := testRouter(&Config{RateLimitPerMinute: 100}, nil)

	rr := get(router, "/healthz")
	require.Equal(t, http.StatusOK, rr.Code)
	require.JSONEq(t, `{"status":"ok"}`, rr.Body.String())
	require.Equal(t, "DENY", rr.Header().Get("X-Frame-Options"))
	require.Equal(t, "nosniff", rr.Header().Get("X-Content-Type-Options"))

	rr = get(router, "/api/nowhere")
	require.Equal(t, http.StatusNotFound, rr.Code)
	require.Equal(t, "application/problem+json", rr.Header().Get("Content-Type"))

	rr = get(router, "/metrics")
	require.Equal(t, http.StatusOK, rr.Code)
	require.Contains(t, rr.Body.String(), `ledger_http_requests_total{code="200",route="/healthz"} 1`)
}

func TestRouterReadiness(t *testing.T) {
	router, _ := testRouter(nil, func(ctx context.Context) error { return errors.New("pg down") })
	require.Equal(t, http.StatusServiceUnavailable, get(router, "/readyz").Code)

	router, _ = testRouter(nil, func(ctx context.Context) error { return nil })
	require.Equal(t, http.StatusOK, get(router, "/readyz").Code)
}

func TestRouterRateLimitsPerClient(t *testing.T) {
	router, _ := testRouter(&Config{RateLimitPerMinute: 2}, nil)
	require.Equal(t, http.StatusOK, get(router, "/healthz").Code)
	require.Equal(t, http.StatusOK, get(router, "/healthz").Code)
	rr := get(router, "/healthz")
	require.Equal(t, http.StatusTooManyRequests, rr.Code)
}

func TestRouterRejectsNonJSONBodies(t *testing.T) {
	router, _ := testRouter(nil, nil)
	req := httptest.NewRequest(http.MethodPost, "/api/entries", strings.NewReader("number=1"))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	require.Equal(t, http.StatusUnsupportedMediaType, rr.Code)
}
