package export

import (
	"io"
	"time"

	"github.com/rotisserie/eris"
	"github.com/shopspring/decimal"
	"github.com/tealeg/xlsx/v2"

	"github.com/agencyops/agencyops/internal/metrics"
)

// Sheet names of the workbook produced by WritePeriodXLSX.
const (
	SummarySheet = "Summary"
	SeriesSheet  = "Series"
)

// WritePeriodXLSX writes a two sheet workbook: the summary figures and the
// per bucket series.
func WritePeriodXLSX(w io.Writer, m metrics.PeriodMetrics) error {
	f := xlsx.NewFile()

	summary, err := f.AddSheet(SummarySheet)
	if err != nil {
		return eris.Wrap(err, "xlsx: add summary sheet")
	}
	addStrings(summary, "Metric", "Value")
	addStrings(summary, "Company", m.CompanyID.String())
	addStrings(summary, "Start", m.Period.Start.Format(time.DateOnly))
	addStrings(summary, "End", m.Period.End.Format(time.DateOnly))
	addStrings(summary, "Aggregation", string(m.Period.Aggregation))
	for _, line := range summaryLines(m) {
		row := summary.AddRow()
		row.AddCell().SetString(line.label)
		setDecimal(row.AddCell(), line.value)
	}

	series, err := f.AddSheet(SeriesSheet)
	if err != nil {
		return eris.Wrap(err, "xlsx: add series sheet")
	}
	addStrings(series, seriesHeader...)
	for _, p := range m.Series {
		row := series.AddRow()
		row.AddCell().SetString(p.Label)
		row.AddCell().SetString(p.Start.Format(time.DateOnly))
		row.AddCell().SetString(p.End.Format(time.DateOnly))
		for _, v := range []decimal.Decimal{
			p.BookedRevenue, p.ForecastRevenue, p.Revenue, p.Costs, p.Profit,
			p.Capacity, p.AllocatedHours, p.UtilizationRate,
		} {
			setDecimal(row.AddCell(), v)
		}
	}

	if err := f.Write(w); err != nil {
		return eris.Wrap(err, "xlsx: write workbook")
	}
	return nil
}

func addStrings(sheet *xlsx.Sheet, values ...string) {
	row := sheet.AddRow()
	for _, v := range values {
		row.AddCell().SetString(v)
	}
}

func setDecimal(cell *xlsx.Cell, v decimal.Decimal) {
	f, _ := v.Round(2).Float64()
	cell.SetFloat(f)
}
