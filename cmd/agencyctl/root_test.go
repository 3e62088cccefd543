package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tealeg/xlsx/v2"

	"github.com/agencyops/agencyops/internal/agency"
	"github.com/agencyops/agencyops/internal/metrics"
	"github.com/agencyops/agencyops/internal/metrics/export"
)

var testCompany = uuid.MustParse("6b1e7c2a-3d4f-4a5b-8c9d-0e1f2a3b4c5d")

type stubMetrics struct {
	filter metrics.PeriodFilter
	months []string
	err    error
}

func (s *stubMetrics) GetPeriodMetrics(ctx context.Context, filter metrics.PeriodFilter) (metrics.PeriodMetrics, error) {
	s.filter = filter
	if s.err != nil {
		return metrics.PeriodMetrics{}, s.err
	}
	return metrics.PeriodMetrics{
		CompanyID:     filter.CompanyID,
		Revenue:       decimal.NewFromInt(60000),
		BookedRevenue: decimal.NewFromInt(60000),
		Costs:         decimal.NewFromInt(36000),
		Profit:        decimal.NewFromInt(24000),
		ProfitMargin:  decimal.NewFromInt(40),
		Months:        3,
		LedgerSource:  agency.LedgerUnified,
		Period:        metrics.Period{Start: filter.Start, End: filter.End, Aggregation: metrics.AggregateMonthly},
		Series: []metrics.PeriodPoint{
			{Label: "2025-01", Revenue: decimal.NewFromInt(20000), Costs: decimal.NewFromInt(12000), Profit: decimal.NewFromInt(8000)},
		},
	}, nil
}

func (s *stubMetrics) GetMonthlyRevenue(ctx context.Context, id uuid.UUID, year, month int) (metrics.RevenueBreakdown, error) {
	return metrics.RevenueBreakdown{Year: year, Month: month, Booked: decimal.NewFromInt(20000), Total: decimal.NewFromInt(20000), Source: "projects"}, nil
}

func (s *stubMetrics) GetMonthlyCosts(ctx context.Context, id uuid.UUID, year, month int) (metrics.CostBreakdown, error) {
	return metrics.CostBreakdown{Year: year, Month: month, Payroll: decimal.NewFromInt(10000), Total: decimal.NewFromInt(10000)}, nil
}

func (s *stubMetrics) GetMonthlyCapacity(ctx context.Context, id uuid.UUID, year, month int) (metrics.CapacityBreakdown, error) {
	return metrics.CapacityBreakdown{Year: year, Month: month, CapacityHours: decimal.NewFromInt(160), ActiveStaff: 1}, nil
}

func (s *stubMetrics) GetRevenueChart(ctx context.Context, id uuid.UUID, year int) (metrics.RevenueChart, error) {
	zeros := make([]decimal.Decimal, 12)
	for i := range zeros {
		zeros[i] = decimal.Zero
	}
	return metrics.RevenueChart{
		Year:     year,
		Months:   []string{"Jan", "Feb", "Mar", "Apr", "May", "Jun", "Jul", "Aug", "Sep", "Oct", "Nov", "Dec"},
		Booked:   zeros,
		Forecast: zeros,
		Combined: zeros,
		Expenses: zeros,
	}, nil
}

type stubCache struct {
	version int64
}

func (s *stubCache) Bump(ctx context.Context) (int64, error) {
	s.version++
	return s.version, nil
}

type stubQueue struct {
	name   string
	opts   TriggerOptions
	closed bool
}

func (s *stubQueue) Trigger(ctx context.Context, name string, opts TriggerOptions) (*asynq.TaskInfo, error) {
	if jobName(name) != "metrics:warmup" && jobName(name) != "capacity:snapshot" {
		return nil, errors.New("jobs cli: unsupported job " + name)
	}
	s.name, s.opts = jobName(name), opts
	return &asynq.TaskInfo{ID: "task-1", Type: jobName(name), Queue: "default"}, nil
}

func (s *stubQueue) InspectQueue(ctx context.Context) (QueueStats, error) {
	return QueueStats{Queue: "default", Pending: 4, Retry: 1}, nil
}

func (s *stubQueue) Close() error {
	s.closed = true
	return nil
}

func useBackend(t *testing.T, b *backend) {
	t.Helper()
	prev := openBackend
	openBackend = func(ctx context.Context) (*backend, error) { return b, nil }
	t.Cleanup(func() { openBackend = prev })
}

func useQueue(t *testing.T, q *stubQueue) {
	t.Helper()
	prev := openJobs
	openJobs = func() (jobQueue, error) { return q, nil }
	t.Cleanup(func() { openJobs = prev })
}

func resetFlags(cmd *cobra.Command) {
	cmd.Flags().VisitAll(func(f *pflag.Flag) {
		_ = f.Value.Set(f.DefValue)
		f.Changed = false
	})
	for _, c := range cmd.Commands() {
		resetFlags(c)
	}
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	resetFlags(rootCmd)
	buf := new(bytes.Buffer)
	rootCmd.SetOut(buf)
	rootCmd.SetErr(buf)
	rootCmd.SetArgs(args)
	err := rootCmd.ExecuteContext(context.Background())
	return buf.String(), err
}

func TestRootCommand_HasSubcommands(t *testing.T) {
	names := make(map[string]bool)
	for _, c := range rootCmd.Commands() {
		names[c.Name()] = true
	}
	for _, name := range []string{"metrics", "ledger", "jobs", "cache"} {
		assert.True(t, names[name], "expected subcommand %q not found", name)
	}

	names = make(map[string]bool)
	for _, c := range metricsCmd.Commands() {
		names[c.Name()] = true
	}
	for _, name := range []string{"period", "month", "chart"} {
		assert.True(t, names[name], "metrics should have subcommand %q", name)
	}
}

func TestMetricsPeriodCommand_Flags(t *testing.T) {
	for _, name := range []string{"company", "start", "end", "aggregation", "format", "out"} {
		assert.NotNil(t, metricsPeriodCmd.Flags().Lookup(name), "metrics period should have --%s", name)
	}
	assert.Equal(t, "monthly", metricsPeriodCmd.Flags().Lookup("aggregation").DefValue)
}

func TestMetricsPeriodJSON(t *testing.T) {
	svc := &stubMetrics{}
	useBackend(t, &backend{metrics: svc})

	out, err := execute(t, "metrics", "period", "--company", testCompany.String(), "--start", "2025-01-01", "--end", "2025-03-31", "--aggregation", "quarterly", "--format", "json")
	require.NoError(t, err)

	assert.Equal(t, testCompany, svc.filter.CompanyID)
	assert.Equal(t, time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC), svc.filter.Start)
	assert.Equal(t, time.Date(2025, 3, 31, 0, 0, 0, 0, time.UTC), svc.filter.End)
	assert.Equal(t, metrics.AggregateQuarterly, svc.filter.Aggregation)

	var decoded metrics.PeriodMetrics
	require.NoError(t, json.Unmarshal([]byte(out), &decoded))
	assert.True(t, decoded.Profit.Equal(decimal.NewFromInt(24000)))
	assert.Equal(t, agency.LedgerUnified, decoded.LedgerSource)
}

func TestMetricsPeriodText(t *testing.T) {
	useBackend(t, &backend{metrics: &stubMetrics{}})

	out, err := execute(t, "metrics", "period", "--company", testCompany.String(), "--start", "2025-01-01", "--end", "2025-03-31")
	require.NoError(t, err)
	assert.Contains(t, out, "Revenue")
	assert.Contains(t, out, "2025-01")
	assert.Contains(t, out, "unified")
}

func TestMetricsPeriodWritesXLSXFile(t *testing.T) {
	useBackend(t, &backend{metrics: &stubMetrics{}})
	path := filepath.Join(t.TempDir(), "period.xlsx")

	_, err := execute(t, "metrics", "period", "--company", testCompany.String(), "--start", "2025-01-01", "--end", "2025-03-31", "--format", "xlsx", "--out", path)
	require.NoError(t, err)

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	book, err := xlsx.OpenBinary(raw)
	require.NoError(t, err)
	assert.NotNil(t, book.Sheet[export.SummarySheet])
	assert.NotNil(t, book.Sheet[export.SeriesSheet])
}

func TestMetricsPeriodRejectsBadInput(t *testing.T) {
	svc := &stubMetrics{}
	useBackend(t, &backend{metrics: svc})

	_, err := execute(t, "metrics", "period", "--company", "acme", "--start", "2025-01-01", "--end", "2025-03-31")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "--company")

	_, err = execute(t, "metrics", "period", "--company", testCompany.String(), "--start", "01/01/2025", "--end", "2025-03-31")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "--start")

	_, err = execute(t, "metrics", "period", "--company", testCompany.String(), "--start", "2025-01-01", "--end", "2025-03-31", "--format", "pdf")
	require.Error(t, err)
	assert.Equal(t, uuid.Nil, svc.filter.CompanyID)
}

func TestMetricsPeriodWrapsServiceErrors(t *testing.T) {
	useBackend(t, &backend{metrics: &stubMetrics{err: metrics.ErrInvalidRange}})

	_, err := execute(t, "metrics", "period", "--company", testCompany.String(), "--start", "2025-03-01", "--end", "2025-01-01")
	require.Error(t, err)
	assert.ErrorIs(t, err, metrics.ErrInvalidRange)
}

func TestMetricsMonthAllKinds(t *testing.T) {
	useBackend(t, &backend{metrics: &stubMetrics{}})

	out, err := execute(t, "metrics", "month", "--company", testCompany.String(), "--year", "2025", "--month", "3", "--format", "json")
	require.NoError(t, err)

	var report monthReport
	require.NoError(t, json.Unmarshal([]byte(out), &report))
	require.NotNil(t, report.Revenue)
	require.NotNil(t, report.Costs)
	require.NotNil(t, report.Capacity)
	assert.Equal(t, 3, report.Revenue.Month)
	assert.True(t, report.Costs.Payroll.Equal(decimal.NewFromInt(10000)))
}

func TestMetricsMonthSingleKind(t *testing.T) {
	useBackend(t, &backend{metrics: &stubMetrics{}})

	out, err := execute(t, "metrics", "month", "--company", testCompany.String(), "--year", "2025", "--month", "3", "--kind", "capacity")
	require.NoError(t, err)
	assert.Contains(t, out, "2025-03")
	assert.Contains(t, out, "Capacity")
	assert.NotContains(t, out, "Revenue")

	_, err = execute(t, "metrics", "month", "--company", testCompany.String(), "--kind", "profit")
	assert.Error(t, err)
}

func TestMetricsChartText(t *testing.T) {
	useBackend(t, &backend{metrics: &stubMetrics{}})

	out, err := execute(t, "metrics", "chart", "--company", testCompany.String(), "--year", "2024")
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 13)
	assert.True(t, strings.HasPrefix(lines[1], "Jan"))
}

func TestLedgerDetect(t *testing.T) {
	useBackend(t, &backend{
		detect:     func(ctx context.Context) (agency.LedgerMode, error) { return agency.LedgerLegacy, nil },
		configured: agency.LedgerAuto,
		resolved:   agency.LedgerLegacy,
	})

	out, err := execute(t, "ledger", "detect")
	require.NoError(t, err)
	assert.Contains(t, out, "configured")
	assert.Contains(t, out, "auto")
	assert.Contains(t, out, "legacy")
}

func TestCacheBump(t *testing.T) {
	cache := &stubCache{version: 6}
	closed := false
	useBackend(t, &backend{cache: cache, close: func() { closed = true }})

	out, err := execute(t, "cache", "bump")
	require.NoError(t, err)
	assert.Equal(t, "cache version 7\n", out)
	assert.True(t, closed)
}

func TestJobsTrigger(t *testing.T) {
	q := &stubQueue{}
	useQueue(t, q)

	out, err := execute(t, "jobs", "trigger", "snapshot", "--year", "2025", "--month", "2", "--company", testCompany.String())
	require.NoError(t, err)
	assert.Equal(t, "capacity:snapshot", q.name)
	assert.Equal(t, TriggerOptions{CompanyID: testCompany.String(), Year: 2025, Month: 2}, q.opts)
	assert.Contains(t, out, "task-1")
	assert.True(t, q.closed)

	_, err = execute(t, "jobs", "trigger", "reindex")
	assert.Error(t, err)
}

func TestJobsInspectJSON(t *testing.T) {
	useQueue(t, &stubQueue{})

	out, err := execute(t, "jobs", "inspect", "--format", "json")
	require.NoError(t, err)
	var stats QueueStats
	require.NoError(t, json.Unmarshal([]byte(out), &stats))
	assert.Equal(t, 4, stats.Pending)
	assert.Equal(t, 1, stats.Retry)
}

func TestJobName(t *testing.T) {
	assert.Equal(t, "metrics:warmup", jobName("warmup"))
	assert.Equal(t, "capacity:snapshot", jobName("capacity:snapshot"))
	assert.Equal(t, "other", jobName("other"))
}

func TestAmountGroupsThousands(t *testing.T) {
	assert.Equal(t, "0.00", amount(decimal.Zero))
	assert.Contains(t, amount(decimal.NewFromInt(1250000)), "1,250,000")
}
