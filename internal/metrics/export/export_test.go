package export

import (
	"bytes"
	"encoding/csv"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tealeg/xlsx/v2"

	"github.com/agencyops/agencyops/internal/agency"
	"github.com/agencyops/agencyops/internal/metrics"
)

func sampleMetrics() metrics.PeriodMetrics {
	jan := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	mar := time.Date(2025, 3, 31, 0, 0, 0, 0, time.UTC)
	return metrics.PeriodMetrics{
		CompanyID:       uuid.MustParse("5b0b7a38-5f43-4b8e-9a59-0c2d7a8f0e11"),
		Revenue:         decimal.NewFromInt(60000),
		BookedRevenue:   decimal.NewFromInt(60000),
		Costs:           decimal.NewFromInt(36000),
		Profit:          decimal.NewFromInt(24000),
		ProfitMargin:    decimal.NewFromInt(40),
		Capacity:        decimal.RequireFromString("519.6"),
		UtilizationRate: decimal.RequireFromString("12.5"),
		Months:          3,
		LedgerSource:    agency.LedgerUnified,
		Period:          metrics.Period{Start: jan, End: mar, Aggregation: metrics.AggregateQuarterly},
		Series: []metrics.PeriodPoint{{
			Label: "2025-Q1", Start: jan, End: mar,
			Revenue: decimal.NewFromInt(60000), Costs: decimal.NewFromInt(36000), Profit: decimal.NewFromInt(24000),
		}},
	}
}

func TestWritePeriodCSV(t *testing.T) {
	buf := &bytes.Buffer{}
	require.NoError(t, WritePeriodCSV(buf, sampleMetrics()))

	blocks := strings.SplitN(buf.String(), "\n\n", 2)
	require.Len(t, blocks, 2)

	summary, err := csv.NewReader(strings.NewReader(blocks[0])).ReadAll()
	require.NoError(t, err)
	assert.Equal(t, []string{"Metric", "Value"}, summary[0])
	assert.Contains(t, summary, []string{"Revenue", "60000.00"})
	assert.Contains(t, summary, []string{"Profit Margin %", "40.00"})
	assert.Contains(t, summary, []string{"Cost Ledger", "unified"})

	series, err := csv.NewReader(strings.NewReader(blocks[1])).ReadAll()
	require.NoError(t, err)
	require.Len(t, series, 2)
	assert.Equal(t, "2025-Q1", series[1][0])
	assert.Equal(t, "2025-03-31", series[1][2])
	assert.Equal(t, "36000.00", series[1][6])
}

func TestWritePeriodXLSX(t *testing.T) {
	buf := &bytes.Buffer{}
	require.NoError(t, WritePeriodXLSX(buf, sampleMetrics()))

	f, err := xlsx.OpenBinary(buf.Bytes())
	require.NoError(t, err)

	summary, ok := f.Sheet[SummarySheet]
	require.True(t, ok)
	assert.Equal(t, "Metric", summary.Rows[0].Cells[0].String())
	assert.Equal(t, "Aggregation", summary.Rows[4].Cells[0].String())
	assert.Equal(t, "quarterly", summary.Rows[4].Cells[1].String())
	assert.Equal(t, "Revenue", summary.Rows[5].Cells[0].String())
	revenue, err := summary.Rows[5].Cells[1].Float()
	require.NoError(t, err)
	assert.InDelta(t, 60000, revenue, 0.001)

	series, ok := f.Sheet[SeriesSheet]
	require.True(t, ok)
	require.Len(t, series.Rows, 2)
	assert.Equal(t, "2025-Q1", series.Rows[1].Cells[0].String())
}
