package metrics

import (
	"fmt"
	"strings"
)

// SpreadRule decides how a project's total revenue is attributed to months.
type SpreadRule string

const (
	// SpreadByMonth divides total revenue evenly across the months spanned.
	SpreadByMonth SpreadRule = "month"
	// SpreadByDay weights each month by the project days falling in it.
	SpreadByDay SpreadRule = "day"
)

// ParseSpreadRule validates a configured spread rule; empty means month.
func ParseSpreadRule(v string) (SpreadRule, error) {
	switch rule := SpreadRule(strings.ToLower(strings.TrimSpace(v))); rule {
	case "":
		return SpreadByMonth, nil
	case SpreadByMonth, SpreadByDay:
		return rule, nil
	default:
		return "", fmt.Errorf("unknown revenue spread rule %q", v)
	}
}

// CapacityRule decides how weekly capacity converts to monthly hours.
type CapacityRule string

const (
	// CapacityWeekly multiplies weekly hours by 4.33.
	CapacityWeekly CapacityRule = "weekly"
	// CapacityWorkingDays multiplies a fifth of weekly hours by the weekdays in the month.
	CapacityWorkingDays CapacityRule = "working_days"
)

// ParseCapacityRule validates a configured capacity rule; empty means weekly.
func ParseCapacityRule(v string) (CapacityRule, error) {
	switch rule := CapacityRule(strings.ToLower(strings.TrimSpace(v))); rule {
	case "":
		return CapacityWeekly, nil
	case CapacityWeekly, CapacityWorkingDays:
		return rule, nil
	default:
		return "", fmt.Errorf("unknown capacity rule %q", v)
	}
}

// Aggregation is the bucket size of the period series.
type Aggregation string

const (
	AggregateMonthly   Aggregation = "monthly"
	AggregateQuarterly Aggregation = "quarterly"
	AggregateYearly    Aggregation = "yearly"
)

// ParseAggregation validates a requested aggregation; empty means monthly.
func ParseAggregation(v string) (Aggregation, error) {
	switch agg := Aggregation(strings.ToLower(strings.TrimSpace(v))); agg {
	case "":
		return AggregateMonthly, nil
	case AggregateMonthly, AggregateQuarterly, AggregateYearly:
		return agg, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidAggregation, v)
	}
}
