package metrics

import (
	"log/slog"

	"github.com/shopspring/decimal"

	"github.com/agencyops/agencyops/internal/agency"
)

// CostBreakdown is the operating cost recognised for one month.
type CostBreakdown struct {
	Year       int               `json:"year"`
	Month      int               `json:"month"`
	Payroll    decimal.Decimal   `json:"payroll"`
	Contractor decimal.Decimal   `json:"contractor"`
	Other      decimal.Decimal   `json:"other"`
	Total      decimal.Decimal   `json:"total"`
	Ledger     agency.LedgerMode `json:"ledger"`
}

type costReconciler struct {
	logger *slog.Logger
}

func (c costReconciler) month(snap agency.Snapshot, entries agency.LedgerEntries, m agency.Month) CostBreakdown {
	out := CostBreakdown{
		Year:       m.Year,
		Month:      int(m.Month),
		Payroll:    decimal.Zero,
		Contractor: decimal.Zero,
		Other:      decimal.Zero,
		Ledger:     entries.Source,
	}

	firstDay := m.Start()
	for _, staff := range snap.Staff {
		if staff.Status.OnPayroll() && staff.ActiveOn(firstDay) {
			out.Payroll = out.Payroll.Add(staff.MonthlySalaryCost())
		}
	}

	window := m.Window()
	switch entries.Source {
	case agency.LedgerUnified:
		for _, cost := range entries.Costs {
			if !cost.IsActive || !cost.Overlaps(window) {
				continue
			}
			// one_time costs land only in the month they start.
			if cost.Frequency == agency.FrequencyOneTime && agency.MonthOf(cost.StartDate) != m {
				continue
			}
			switch {
			case cost.IsContractor:
				out.Contractor = out.Contractor.Add(cost.MonthlyAmount())
			case cost.CostType != agency.CostPayroll:
				out.Other = out.Other.Add(cost.MonthlyAmount())
			}
		}
	case agency.LedgerLegacy:
		for _, e := range entries.Expenses {
			if e.IsActive && e.Overlaps(window) {
				out.Other = out.Other.Add(e.MonthlyAmount)
			}
		}
		for _, e := range entries.ContractorExpenses {
			if e.Year == m.Year && e.Month == int(m.Month) {
				out.Contractor = out.Contractor.Add(e.Amount)
			}
		}
	}

	out.Total = out.Payroll.Add(out.Contractor).Add(out.Other)
	return out
}

// validCosts drops ledger rows that cannot be mapped onto months.
func (c costReconciler) validCosts(entries agency.LedgerEntries) agency.LedgerEntries {
	if len(entries.Costs) == 0 {
		return entries
	}
	kept := make([]agency.Cost, 0, len(entries.Costs))
	for _, cost := range entries.Costs {
		if err := cost.Validate(); err != nil {
			c.logger.Warn("skip malformed cost", slog.String("cost_id", cost.ID.String()), slog.Any("error", err))
			continue
		}
		kept = append(kept, cost)
	}
	entries.Costs = kept
	return entries
}
