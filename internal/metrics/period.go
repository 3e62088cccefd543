package metrics

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/agencyops/agencyops/internal/agency"
)

var hundred = decimal.NewFromInt(100)

// PeriodFilter scopes a period metrics computation. Start and End are
// inclusive calendar days.
type PeriodFilter struct {
	CompanyID   uuid.UUID
	Start       time.Time
	End         time.Time
	Aggregation Aggregation
}

// Validate normalises the filter and rejects inverted ranges.
func (f PeriodFilter) Validate() (PeriodFilter, error) {
	agg, err := ParseAggregation(string(f.Aggregation))
	if err != nil {
		return PeriodFilter{}, err
	}
	f.Aggregation = agg
	f.Start = agency.DateOnly(f.Start)
	f.End = agency.DateOnly(f.End)
	if f.Start.After(f.End) {
		return PeriodFilter{}, fmt.Errorf("%w: %s > %s", ErrInvalidRange, f.Start.Format(time.DateOnly), f.End.Format(time.DateOnly))
	}
	return f, nil
}

// Period echoes the requested range.
type Period struct {
	Start       time.Time   `json:"start"`
	End         time.Time   `json:"end"`
	Aggregation Aggregation `json:"aggregation"`
}

// PeriodPoint is one bucket of the period series.
type PeriodPoint struct {
	Label           string          `json:"label"`
	Start           time.Time       `json:"start"`
	End             time.Time       `json:"end"`
	BookedRevenue   decimal.Decimal `json:"booked_revenue"`
	ForecastRevenue decimal.Decimal `json:"forecast_revenue"`
	Revenue         decimal.Decimal `json:"revenue"`
	Costs           decimal.Decimal `json:"costs"`
	Profit          decimal.Decimal `json:"profit"`
	Capacity        decimal.Decimal `json:"capacity"`
	AllocatedHours  decimal.Decimal `json:"allocated_hours"`
	UtilizationRate decimal.Decimal `json:"utilization_rate"`
}

// PeriodMetrics is the flat summary of a company over a date range.
type PeriodMetrics struct {
	CompanyID       uuid.UUID         `json:"company_id"`
	Revenue         decimal.Decimal   `json:"revenue"`
	BookedRevenue   decimal.Decimal   `json:"booked_revenue"`
	ForecastRevenue decimal.Decimal   `json:"forecast_revenue"`
	Costs           decimal.Decimal   `json:"costs"`
	PayrollCosts    decimal.Decimal   `json:"payroll_costs"`
	ContractorCosts decimal.Decimal   `json:"contractor_costs"`
	OtherCosts      decimal.Decimal   `json:"other_costs"`
	Profit          decimal.Decimal   `json:"profit"`
	ProfitMargin    decimal.Decimal   `json:"profit_margin"`
	Capacity        decimal.Decimal   `json:"capacity"`
	AllocatedHours  decimal.Decimal   `json:"allocated_hours"`
	AllocatedValue  decimal.Decimal   `json:"allocated_value"`
	UtilizationRate decimal.Decimal   `json:"utilization_rate"`
	AvgProjectValue decimal.Decimal   `json:"avg_project_value"`
	ProjectCount    int               `json:"project_count"`
	Months          int               `json:"months"`
	LedgerSource    agency.LedgerMode `json:"ledger_source"`
	Period          Period            `json:"period"`
	Series          []PeriodPoint     `json:"series"`
}

type engine struct {
	revenue  revenueReconciler
	cost     costReconciler
	capacity capacityReconciler
}

// period walks every month touched by the filter, accumulates the monthly
// reconciler output and derives ratios once at the end.
func (e engine) period(snap agency.Snapshot, entries agency.LedgerEntries, f PeriodFilter) PeriodMetrics {
	out := PeriodMetrics{
		CompanyID:       f.CompanyID,
		Revenue:         decimal.Zero,
		BookedRevenue:   decimal.Zero,
		ForecastRevenue: decimal.Zero,
		Costs:           decimal.Zero,
		PayrollCosts:    decimal.Zero,
		ContractorCosts: decimal.Zero,
		OtherCosts:      decimal.Zero,
		Capacity:        decimal.Zero,
		AllocatedHours:  decimal.Zero,
		AllocatedValue:  decimal.Zero,
		AvgProjectValue: decimal.Zero,
		LedgerSource:    entries.Source,
		Period:          Period{Start: f.Start, End: f.End, Aggregation: f.Aggregation},
		Series:          []PeriodPoint{},
	}

	for _, m := range (agency.Window{From: f.Start, To: f.End}).Months() {
		rev := e.revenue.month(snap, m)
		cost := e.cost.month(snap, entries, m)
		capa := e.capacity.month(snap, m)

		out.Months++
		out.BookedRevenue = out.BookedRevenue.Add(rev.Booked)
		out.ForecastRevenue = out.ForecastRevenue.Add(rev.Forecast)
		out.PayrollCosts = out.PayrollCosts.Add(cost.Payroll)
		out.ContractorCosts = out.ContractorCosts.Add(cost.Contractor)
		out.OtherCosts = out.OtherCosts.Add(cost.Other)
		out.Capacity = out.Capacity.Add(capa.CapacityHours)
		out.AllocatedHours = out.AllocatedHours.Add(capa.AllocatedHours)
		out.AllocatedValue = out.AllocatedValue.Add(capa.AllocatedValue)

		out.Series = addToBucket(out.Series, f.Aggregation, m, rev, cost, capa)
	}

	out.Revenue = out.BookedRevenue.Add(out.ForecastRevenue)
	out.Costs = out.PayrollCosts.Add(out.ContractorCosts).Add(out.OtherCosts)
	out.Profit = out.Revenue.Sub(out.Costs)
	out.ProfitMargin = margin(out.Profit, out.Revenue)
	out.UtilizationRate = agency.UtilizationPercent(out.AllocatedHours, out.Capacity)

	rangeWindow := agency.Window{From: f.Start, To: f.End}
	total := decimal.Zero
	for _, p := range snap.Projects {
		if p.Overlaps(rangeWindow) {
			out.ProjectCount++
			total = total.Add(p.TotalRevenue)
		}
	}
	if out.ProjectCount > 0 {
		out.AvgProjectValue = total.Div(decimal.NewFromInt(int64(out.ProjectCount)))
	}
	return out
}

func addToBucket(series []PeriodPoint, agg Aggregation, m agency.Month, rev RevenueBreakdown, cost CostBreakdown, capa CapacityBreakdown) []PeriodPoint {
	label := bucketLabel(agg, m)
	if n := len(series); n == 0 || series[n-1].Label != label {
		series = append(series, PeriodPoint{
			Label:           label,
			Start:           m.Start(),
			BookedRevenue:   decimal.Zero,
			ForecastRevenue: decimal.Zero,
			Revenue:         decimal.Zero,
			Costs:           decimal.Zero,
			Profit:          decimal.Zero,
			Capacity:        decimal.Zero,
			AllocatedHours:  decimal.Zero,
			UtilizationRate: decimal.Zero,
		})
	}
	p := &series[len(series)-1]
	p.End = m.End()
	p.BookedRevenue = p.BookedRevenue.Add(rev.Booked)
	p.ForecastRevenue = p.ForecastRevenue.Add(rev.Forecast)
	p.Revenue = p.BookedRevenue.Add(p.ForecastRevenue)
	p.Costs = p.Costs.Add(cost.Total)
	p.Profit = p.Revenue.Sub(p.Costs)
	p.Capacity = p.Capacity.Add(capa.CapacityHours)
	p.AllocatedHours = p.AllocatedHours.Add(capa.AllocatedHours)
	p.UtilizationRate = agency.UtilizationPercent(p.AllocatedHours, p.Capacity)
	return series
}

func bucketLabel(agg Aggregation, m agency.Month) string {
	switch agg {
	case AggregateQuarterly:
		return fmt.Sprintf("%d-Q%d", m.Year, m.Quarter())
	case AggregateYearly:
		return fmt.Sprintf("%d", m.Year)
	default:
		return m.String()
	}
}

// margin is profit as a percentage of revenue, zero without revenue.
func margin(profit, revenue decimal.Decimal) decimal.Decimal {
	if !revenue.IsPositive() {
		return decimal.Zero
	}
	return profit.Div(revenue).Mul(hundred)
}
