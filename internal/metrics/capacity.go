package metrics

import (
	"github.com/shopspring/decimal"

	"github.com/agencyops/agencyops/internal/agency"
)

var workWeekDays = decimal.NewFromInt(5)

// CapacityBreakdown is staff capacity and planned allocation for one month.
type CapacityBreakdown struct {
	Year                 int             `json:"year"`
	Month                int             `json:"month"`
	CapacityHours        decimal.Decimal `json:"capacity_hours"`
	AllocatedHours       decimal.Decimal `json:"allocated_hours"`
	AllocatedValue       decimal.Decimal `json:"allocated_value"`
	UtilizationRate      decimal.Decimal `json:"utilization_rate"`
	ActiveStaff          int             `json:"active_staff"`
	AvgUtilizationTarget decimal.Decimal `json:"avg_utilization_target"`
}

type capacityReconciler struct {
	rule CapacityRule
}

func (c capacityReconciler) month(snap agency.Snapshot, m agency.Month) CapacityBreakdown {
	out := CapacityBreakdown{
		Year:                 m.Year,
		Month:                int(m.Month),
		CapacityHours:        decimal.Zero,
		AllocatedHours:       decimal.Zero,
		AllocatedValue:       decimal.Zero,
		AvgUtilizationTarget: decimal.Zero,
	}

	firstDay := m.Start()
	targets := decimal.Zero
	for _, staff := range snap.Staff {
		if !staff.Status.OnPayroll() || !staff.ActiveOn(firstDay) {
			continue
		}
		out.ActiveStaff++
		out.CapacityHours = out.CapacityHours.Add(c.hours(staff, m))
		targets = targets.Add(staff.UtilizationTarget)
	}
	if out.ActiveStaff > 0 {
		out.AvgUtilizationTarget = targets.Div(decimal.NewFromInt(int64(out.ActiveStaff)))
	}

	for _, a := range snap.Allocations {
		if a.Year != m.Year || a.Month != int(m.Month) {
			continue
		}
		out.AllocatedHours = out.AllocatedHours.Add(a.AllocatedHours)
		out.AllocatedValue = out.AllocatedValue.Add(a.Value())
	}

	out.UtilizationRate = agency.UtilizationPercent(out.AllocatedHours, out.CapacityHours)
	return out
}

func (c capacityReconciler) hours(staff agency.UserProfile, m agency.Month) decimal.Decimal {
	if c.rule == CapacityWorkingDays {
		return staff.WeeklyCapacityHours.Div(workWeekDays).Mul(decimal.NewFromInt(int64(m.WorkingDays())))
	}
	return staff.MonthlyCapacityHours()
}
