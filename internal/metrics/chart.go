package metrics

import (
	"github.com/shopspring/decimal"

	"github.com/agencyops/agencyops/internal/agency"
)

var monthLabels = [12]string{"Jan", "Feb", "Mar", "Apr", "May", "Jun", "Jul", "Aug", "Sep", "Oct", "Nov", "Dec"}

// RevenueChart holds twelve monthly series for a calendar year.
type RevenueChart struct {
	Year     int               `json:"year"`
	Months   []string          `json:"months"`
	Booked   []decimal.Decimal `json:"booked"`
	Forecast []decimal.Decimal `json:"forecast"`
	Combined []decimal.Decimal `json:"combined"`
	Expenses []decimal.Decimal `json:"expenses"`
}

func (e engine) chart(snap agency.Snapshot, entries agency.LedgerEntries, year int) RevenueChart {
	out := RevenueChart{
		Year:     year,
		Months:   monthLabels[:],
		Booked:   make([]decimal.Decimal, 0, 12),
		Forecast: make([]decimal.Decimal, 0, 12),
		Combined: make([]decimal.Decimal, 0, 12),
		Expenses: make([]decimal.Decimal, 0, 12),
	}
	m := agency.Month{Year: year, Month: 1}
	for i := 0; i < 12; i++ {
		rev := e.revenue.month(snap, m)
		cost := e.cost.month(snap, entries, m)
		out.Booked = append(out.Booked, rev.Booked)
		out.Forecast = append(out.Forecast, rev.Forecast)
		out.Combined = append(out.Combined, rev.Total)
		out.Expenses = append(out.Expenses, cost.Total)
		m = m.Next()
	}
	return out
}
