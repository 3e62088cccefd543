// Package export renders period metrics into downloadable formats.
package export

import (
	"encoding/csv"
	"io"
	"strconv"
	"time"

	"github.com/shopspring/decimal"

	"github.com/agencyops/agencyops/internal/metrics"
)

type summaryLine struct {
	label string
	value decimal.Decimal
}

func summaryLines(m metrics.PeriodMetrics) []summaryLine {
	return []summaryLine{
		{"Revenue", m.Revenue},
		{"Booked Revenue", m.BookedRevenue},
		{"Forecast Revenue", m.ForecastRevenue},
		{"Costs", m.Costs},
		{"Payroll Costs", m.PayrollCosts},
		{"Contractor Costs", m.ContractorCosts},
		{"Other Costs", m.OtherCosts},
		{"Profit", m.Profit},
		{"Profit Margin %", m.ProfitMargin},
		{"Capacity Hours", m.Capacity},
		{"Allocated Hours", m.AllocatedHours},
		{"Utilization %", m.UtilizationRate},
		{"Avg Project Value", m.AvgProjectValue},
	}
}

var seriesHeader = []string{"Bucket", "Start", "End", "Booked", "Forecast", "Revenue", "Costs", "Profit", "Capacity", "Allocated", "Utilization %"}

func seriesRecord(p metrics.PeriodPoint) []string {
	return []string{
		p.Label,
		p.Start.Format(time.DateOnly),
		p.End.Format(time.DateOnly),
		formatDecimal(p.BookedRevenue),
		formatDecimal(p.ForecastRevenue),
		formatDecimal(p.Revenue),
		formatDecimal(p.Costs),
		formatDecimal(p.Profit),
		formatDecimal(p.Capacity),
		formatDecimal(p.AllocatedHours),
		formatDecimal(p.UtilizationRate),
	}
}

// WritePeriodCSV writes the summary block, a blank line and the series block.
func WritePeriodCSV(w io.Writer, m metrics.PeriodMetrics) error {
	writer := csv.NewWriter(w)
	defer writer.Flush()

	if err := writer.Write([]string{"Metric", "Value"}); err != nil {
		return err
	}
	header := [][]string{
		{"Company", m.CompanyID.String()},
		{"Start", m.Period.Start.Format(time.DateOnly)},
		{"End", m.Period.End.Format(time.DateOnly)},
		{"Aggregation", string(m.Period.Aggregation)},
		{"Months", strconv.Itoa(m.Months)},
		{"Projects", strconv.Itoa(m.ProjectCount)},
		{"Cost Ledger", string(m.LedgerSource)},
	}
	for _, record := range header {
		if err := writer.Write(record); err != nil {
			return err
		}
	}
	for _, line := range summaryLines(m) {
		if err := writer.Write([]string{line.label, formatDecimal(line.value)}); err != nil {
			return err
		}
	}

	writer.Flush()
	if _, err := io.WriteString(w, "\n"); err != nil {
		return err
	}

	if err := writer.Write(seriesHeader); err != nil {
		return err
	}
	for _, point := range m.Series {
		if err := writer.Write(seriesRecord(point)); err != nil {
			return err
		}
	}
	writer.Flush()
	return writer.Error()
}

func formatDecimal(v decimal.Decimal) string {
	return v.StringFixed(2)
}
