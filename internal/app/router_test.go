package app

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agencyops/agencyops/internal/metrics"
	metricshttp "github.com/agencyops/agencyops/internal/metrics/http"
	"github.com/agencyops/agencyops/internal/observability"
	"github.com/agencyops/agencyops/jobs"
)

type emptyMetrics struct{}

func (emptyMetrics) GetPeriodMetrics(ctx context.Context, filter metrics.PeriodFilter) (metrics.PeriodMetrics, error) {
	return metrics.PeriodMetrics{}, nil
}

func (emptyMetrics) GetMonthlyRevenue(ctx context.Context, id uuid.UUID, year, month int) (metrics.RevenueBreakdown, error) {
	return metrics.RevenueBreakdown{}, nil
}

func (emptyMetrics) GetMonthlyCosts(ctx context.Context, id uuid.UUID, year, month int) (metrics.CostBreakdown, error) {
	return metrics.CostBreakdown{}, nil
}

func (emptyMetrics) GetMonthlyCapacity(ctx context.Context, id uuid.UUID, year, month int) (metrics.CapacityBreakdown, error) {
	return metrics.CapacityBreakdown{}, nil
}

func (emptyMetrics) GetRevenueChart(ctx context.Context, id uuid.UUID, year int) (metrics.RevenueChart, error) {
	return metrics.RevenueChart{}, nil
}

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	router := NewRouter(RouterParams{
		Logger:         logger,
		Config:         &Config{AppEnv: "test"},
		MetricsHandler: metricshttp.NewHandler(logger, emptyMetrics{}),
		JobHandler:     jobs.NewHandler(nil, logger),
		Metrics:        observability.NewMetrics(),
	})
	srv := httptest.NewServer(router)
	t.Cleanup(srv.Close)
	return srv
}

func TestRouterHealthz(t *testing.T) {
	srv := newTestServer(t)

	resp, err := http.Get(srv.URL + "/healthz")
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "DENY", resp.Header.Get("X-Frame-Options"))
	var body map[string]string
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, "ok", body["status"])
}

func TestRouterMountsAPIAndJobs(t *testing.T) {
	srv := newTestServer(t)

	resp, err := http.Get(srv.URL + "/api/dashboard-data?company_id=not-a-uuid")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, err = http.Get(srv.URL + "/jobs/health")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, err = http.Get(srv.URL + "/missing")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Equal(t, "application/problem+json", resp.Header.Get("Content-Type"))
}

func TestRouterExposesPrometheus(t *testing.T) {
	srv := newTestServer(t)

	resp, err := http.Get(srv.URL + "/healthz")
	require.NoError(t, err)
	resp.Body.Close()

	resp, err = http.Get(srv.URL + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.True(t, strings.Contains(string(raw), `agencyops_http_requests_total{code="200",route="/healthz"}`))
}
