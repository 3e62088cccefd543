package metrics

import (
	"log/slog"

	"github.com/shopspring/decimal"

	"github.com/agencyops/agencyops/internal/agency"
)

// Revenue sources reported on a RevenueBreakdown.
const (
	SourceLedger   = "ledger"
	SourceProjects = "projects"
	SourceNone     = "none"
)

// RevenueBreakdown is the revenue recognised for one month.
type RevenueBreakdown struct {
	Year     int             `json:"year"`
	Month    int             `json:"month"`
	Booked   decimal.Decimal `json:"booked"`
	Forecast decimal.Decimal `json:"forecast"`
	Total    decimal.Decimal `json:"total"`
	Source   string          `json:"source"`
}

type revenueReconciler struct {
	spread SpreadRule
	logger *slog.Logger
}

// month returns ledger revenue when the month's ledger sums are non-zero,
// otherwise the share of every overlapping project under the spread rule.
func (r revenueReconciler) month(snap agency.Snapshot, m agency.Month) RevenueBreakdown {
	out := RevenueBreakdown{Year: m.Year, Month: int(m.Month), Booked: decimal.Zero, Forecast: decimal.Zero, Source: SourceNone}

	for _, row := range snap.Revenue {
		if row.Year != m.Year || row.Month != int(m.Month) {
			continue
		}
		out.add(row.RevenueType, row.Revenue)
	}
	if !out.Booked.IsZero() || !out.Forecast.IsZero() {
		out.Source = SourceLedger
		out.Total = out.Booked.Add(out.Forecast)
		return out
	}

	window := m.Window()
	for _, p := range snap.Projects {
		if !p.Overlaps(window) {
			continue
		}
		share, ok := r.share(p, m)
		if !ok {
			continue
		}
		out.Source = SourceProjects
		out.add(p.RevenueType, share)
	}
	out.Total = out.Booked.Add(out.Forecast)
	return out
}

func (r revenueReconciler) share(p agency.Project, m agency.Month) (decimal.Decimal, bool) {
	if r.spread == SpreadByDay {
		total := agency.InclusiveDays(p.StartDate, p.EndDate)
		overlap, ok := m.Window().Intersect(agency.Window{From: p.StartDate, To: p.EndDate})
		if total <= 0 || !ok {
			r.logger.Warn("skip project without day span", slog.String("project_id", p.ID.String()))
			return decimal.Zero, false
		}
		days := agency.InclusiveDays(overlap.From, overlap.To)
		return p.TotalRevenue.Mul(decimal.NewFromInt(int64(days))).Div(decimal.NewFromInt(int64(total))), true
	}

	months := agency.InclusiveMonths(p.StartDate, p.EndDate)
	if months <= 0 {
		r.logger.Warn("skip project without month span", slog.String("project_id", p.ID.String()))
		return decimal.Zero, false
	}
	return p.TotalRevenue.Div(decimal.NewFromInt(int64(months))), true
}

func (b *RevenueBreakdown) add(t agency.RevenueType, amount decimal.Decimal) {
	if t.Normalize() == agency.RevenueForecast {
		b.Forecast = b.Forecast.Add(amount)
		return
	}
	b.Booked = b.Booked.Add(amount)
}
