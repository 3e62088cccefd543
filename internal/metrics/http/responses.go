package metricshttp

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/agencyops/agencyops/internal/metrics"
)

type periodWindow struct {
	Start       string `json:"start"`
	End         string `json:"end"`
	Aggregation string `json:"aggregation"`
}

type pointResponse struct {
	Label           string  `json:"label"`
	Start           string  `json:"start"`
	End             string  `json:"end"`
	BookedRevenue   float64 `json:"booked_revenue"`
	ForecastRevenue float64 `json:"forecast_revenue"`
	Revenue         float64 `json:"revenue"`
	Costs           float64 `json:"costs"`
	Profit          float64 `json:"profit"`
	Capacity        float64 `json:"capacity"`
	AllocatedHours  float64 `json:"allocated_hours"`
	UtilizationRate float64 `json:"utilization_rate"`
}

type periodResponse struct {
	Revenue         float64         `json:"revenue"`
	BookedRevenue   float64         `json:"booked_revenue"`
	ForecastRevenue float64         `json:"forecast_revenue"`
	Costs           float64         `json:"costs"`
	PayrollCosts    float64         `json:"payroll_costs"`
	ContractorCosts float64         `json:"contractor_costs"`
	OtherCosts      float64         `json:"other_costs"`
	Profit          float64         `json:"profit"`
	ProfitMargin    float64         `json:"profit_margin"`
	Capacity        float64         `json:"capacity"`
	AllocatedHours  float64         `json:"allocated_hours"`
	AllocatedValue  float64         `json:"allocated_value"`
	UtilizationRate float64         `json:"utilization_rate"`
	AvgProjectValue float64         `json:"avg_project_value"`
	ProjectCount    int             `json:"project_count"`
	Months          int             `json:"months"`
	LedgerSource    string          `json:"ledger_source"`
	Period          periodWindow    `json:"period"`
	Series          []pointResponse `json:"series"`
}

type revenueResponse struct {
	Year     int     `json:"year"`
	Month    int     `json:"month"`
	Booked   float64 `json:"booked"`
	Forecast float64 `json:"forecast"`
	Total    float64 `json:"total"`
	Source   string  `json:"source"`
}

type costResponse struct {
	Year       int     `json:"year"`
	Month      int     `json:"month"`
	Payroll    float64 `json:"payroll"`
	Contractor float64 `json:"contractor"`
	Other      float64 `json:"other"`
	Total      float64 `json:"total"`
	Ledger     string  `json:"ledger"`
}

type capacityResponse struct {
	Year                 int     `json:"year"`
	Month                int     `json:"month"`
	CapacityHours        float64 `json:"capacity_hours"`
	AllocatedHours       float64 `json:"allocated_hours"`
	AllocatedValue       float64 `json:"allocated_value"`
	UtilizationRate      float64 `json:"utilization_rate"`
	ActiveStaff          int     `json:"active_staff"`
	AvgUtilizationTarget float64 `json:"avg_utilization_target"`
}

type monthlySummaryResponse struct {
	Year     int              `json:"year"`
	Month    int              `json:"month"`
	Revenue  revenueResponse  `json:"revenue"`
	Costs    costResponse     `json:"costs"`
	Capacity capacityResponse `json:"capacity"`
}

type chartResponse struct {
	Year     int       `json:"year"`
	Months   []string  `json:"months"`
	Booked   []float64 `json:"booked"`
	Forecast []float64 `json:"forecast"`
	Combined []float64 `json:"combined"`
	Expenses []float64 `json:"expenses"`
}

func toPeriodResponse(m metrics.PeriodMetrics) periodResponse {
	out := periodResponse{
		Revenue:         toFloat(m.Revenue),
		BookedRevenue:   toFloat(m.BookedRevenue),
		ForecastRevenue: toFloat(m.ForecastRevenue),
		Costs:           toFloat(m.Costs),
		PayrollCosts:    toFloat(m.PayrollCosts),
		ContractorCosts: toFloat(m.ContractorCosts),
		OtherCosts:      toFloat(m.OtherCosts),
		Profit:          toFloat(m.Profit),
		ProfitMargin:    toFloat(m.ProfitMargin),
		Capacity:        toFloat(m.Capacity),
		AllocatedHours:  toFloat(m.AllocatedHours),
		AllocatedValue:  toFloat(m.AllocatedValue),
		UtilizationRate: toFloat(m.UtilizationRate),
		AvgProjectValue: toFloat(m.AvgProjectValue),
		ProjectCount:    m.ProjectCount,
		Months:          m.Months,
		LedgerSource:    string(m.LedgerSource),
		Period: periodWindow{
			Start:       m.Period.Start.Format(time.DateOnly),
			End:         m.Period.End.Format(time.DateOnly),
			Aggregation: string(m.Period.Aggregation),
		},
		Series: make([]pointResponse, 0, len(m.Series)),
	}
	for _, p := range m.Series {
		out.Series = append(out.Series, pointResponse{
			Label:           p.Label,
			Start:           p.Start.Format(time.DateOnly),
			End:             p.End.Format(time.DateOnly),
			BookedRevenue:   toFloat(p.BookedRevenue),
			ForecastRevenue: toFloat(p.ForecastRevenue),
			Revenue:         toFloat(p.Revenue),
			Costs:           toFloat(p.Costs),
			Profit:          toFloat(p.Profit),
			Capacity:        toFloat(p.Capacity),
			AllocatedHours:  toFloat(p.AllocatedHours),
			UtilizationRate: toFloat(p.UtilizationRate),
		})
	}
	return out
}

func toRevenueResponse(r metrics.RevenueBreakdown) revenueResponse {
	return revenueResponse{
		Year: r.Year, Month: r.Month,
		Booked: toFloat(r.Booked), Forecast: toFloat(r.Forecast), Total: toFloat(r.Total),
		Source: r.Source,
	}
}

func toCostResponse(c metrics.CostBreakdown) costResponse {
	return costResponse{
		Year: c.Year, Month: c.Month,
		Payroll: toFloat(c.Payroll), Contractor: toFloat(c.Contractor), Other: toFloat(c.Other), Total: toFloat(c.Total),
		Ledger: string(c.Ledger),
	}
}

func toCapacityResponse(c metrics.CapacityBreakdown) capacityResponse {
	return capacityResponse{
		Year:                 c.Year,
		Month:                c.Month,
		CapacityHours:        toFloat(c.CapacityHours),
		AllocatedHours:       toFloat(c.AllocatedHours),
		AllocatedValue:       toFloat(c.AllocatedValue),
		UtilizationRate:      toFloat(c.UtilizationRate),
		ActiveStaff:          c.ActiveStaff,
		AvgUtilizationTarget: toFloat(c.AvgUtilizationTarget),
	}
}

func toChartResponse(c metrics.RevenueChart) chartResponse {
	return chartResponse{
		Year:     c.Year,
		Months:   c.Months,
		Booked:   toFloats(c.Booked),
		Forecast: toFloats(c.Forecast),
		Combined: toFloats(c.Combined),
		Expenses: toFloats(c.Expenses),
	}
}

// toFloat rounds to cents before leaving decimal arithmetic.
func toFloat(v decimal.Decimal) float64 {
	f, _ := v.Round(2).Float64()
	return f
}

func toFloats(vs []decimal.Decimal) []float64 {
	out := make([]float64, len(vs))
	for i, v := range vs {
		out[i] = toFloat(v)
	}
	return out
}
