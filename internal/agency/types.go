// Package agency holds the agency entities and their read-only PostgreSQL stores.
package agency

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// WeeksPerMonth converts weekly figures to monthly ones.
var WeeksPerMonth = decimal.RequireFromString("4.33")

var (
	twelve  = decimal.NewFromInt(12)
	hundred = decimal.NewFromInt(100)
)

// RevenueType distinguishes contracted revenue from pipeline revenue.
type RevenueType string

const (
	RevenueBooked   RevenueType = "booked"
	RevenueForecast RevenueType = "forecast"
)

// Normalize maps unknown or empty revenue types to booked.
func (t RevenueType) Normalize() RevenueType {
	if t == RevenueForecast {
		return RevenueForecast
	}
	return RevenueBooked
}

// StaffStatus is the employment status of a UserProfile.
type StaffStatus string

const (
	StatusFullTime   StaffStatus = "full_time"
	StatusPartTime   StaffStatus = "part_time"
	StatusContractor StaffStatus = "contractor"
	StatusInactive   StaffStatus = "inactive"
)

// OnPayroll reports whether the status contributes salary and capacity.
func (s StaffStatus) OnPayroll() bool {
	return s == StatusFullTime || s == StatusPartTime
}

// CostFrequency determines how a Cost amount maps onto months.
type CostFrequency string

const (
	FrequencyMonthly         CostFrequency = "monthly"
	FrequencyOneTime         CostFrequency = "one_time"
	FrequencyProjectDuration CostFrequency = "project_duration"
)

// Valid reports whether f is a known frequency.
func (f CostFrequency) Valid() bool {
	switch f {
	case FrequencyMonthly, FrequencyOneTime, FrequencyProjectDuration:
		return true
	}
	return false
}

// CostType categorises a unified ledger cost.
type CostType string

const (
	CostContractor   CostType = "contractor"
	CostPayroll      CostType = "payroll"
	CostRent         CostType = "rent"
	CostUtilities    CostType = "utilities"
	CostSoftware     CostType = "software"
	CostOffice       CostType = "office"
	CostMarketing    CostType = "marketing"
	CostTravel       CostType = "travel"
	CostProfessional CostType = "professional"
	CostInsurance    CostType = "insurance"
	CostOther        CostType = "other"
)

// Company scopes every query.
type Company struct {
	ID   uuid.UUID `json:"id"`
	Name string    `json:"name"`
	Code string    `json:"code"`
}

// Client is a customer of a company.
type Client struct {
	ID        uuid.UUID `json:"id"`
	CompanyID uuid.UUID `json:"company_id"`
	Name      string    `json:"name"`
	Status    string    `json:"status"`
}

// Project is a client engagement with an inclusive date range.
type Project struct {
	ID           uuid.UUID       `json:"id"`
	ClientID     uuid.UUID       `json:"client_id"`
	CompanyID    uuid.UUID       `json:"company_id"`
	Name         string          `json:"name"`
	StartDate    time.Time       `json:"start_date"`
	EndDate      time.Time       `json:"end_date"`
	TotalRevenue decimal.Decimal `json:"total_revenue"`
	TotalHours   decimal.Decimal `json:"total_hours"`
	RevenueType  RevenueType     `json:"revenue_type"`
	Status       string          `json:"status"`
}

// Validate rejects projects the reconcilers cannot spread.
func (p Project) Validate() error {
	if p.EndDate.Before(p.StartDate) {
		return fmt.Errorf("project %s: end date %s before start date %s", p.ID, p.EndDate.Format(time.DateOnly), p.StartDate.Format(time.DateOnly))
	}
	if p.TotalRevenue.IsNegative() {
		return fmt.Errorf("project %s: negative total revenue %s", p.ID, p.TotalRevenue)
	}
	return nil
}

// Overlaps reports whether the project's inclusive range intersects w.
func (p Project) Overlaps(w Window) bool {
	return !p.StartDate.After(w.To) && !p.EndDate.Before(w.From)
}

// UserProfile is a staff member of a company.
type UserProfile struct {
	ID                  int64               `json:"id"`
	CompanyID           uuid.UUID           `json:"company_id"`
	Name                string              `json:"name"`
	Role                string              `json:"role"`
	HourlyRate          decimal.Decimal     `json:"hourly_rate"`
	AnnualSalary        decimal.NullDecimal `json:"annual_salary"`
	Status              StaffStatus         `json:"status"`
	StartDate           *time.Time          `json:"start_date,omitempty"`
	EndDate             *time.Time          `json:"end_date,omitempty"`
	WeeklyCapacityHours decimal.Decimal     `json:"weekly_capacity_hours"`
	UtilizationTarget   decimal.Decimal     `json:"utilization_target"`
}

// MonthlySalaryCost is annual_salary/12 when set, otherwise the hourly rate
// applied to the monthly capacity.
func (u UserProfile) MonthlySalaryCost() decimal.Decimal {
	if u.AnnualSalary.Valid {
		return u.AnnualSalary.Decimal.Div(twelve)
	}
	return u.HourlyRate.Mul(u.WeeklyCapacityHours).Mul(WeeksPerMonth)
}

// MonthlyCapacityHours is the weekly capacity scaled to a month.
func (u UserProfile) MonthlyCapacityHours() decimal.Decimal {
	return u.WeeklyCapacityHours.Mul(WeeksPerMonth)
}

// ActiveOn reports whether the employment window covers day. Missing bounds
// are open.
func (u UserProfile) ActiveOn(day time.Time) bool {
	if u.StartDate != nil && u.StartDate.After(day) {
		return false
	}
	if u.EndDate != nil && u.EndDate.Before(day) {
		return false
	}
	return true
}

// ProjectAllocation is planned staff time on a project for a month or week.
type ProjectAllocation struct {
	ID             uuid.UUID       `json:"id"`
	ProjectID      uuid.UUID       `json:"project_id"`
	StaffID        int64           `json:"staff_id"`
	Year           int             `json:"year"`
	Month          int             `json:"month"`
	Week           *int            `json:"week,omitempty"`
	AllocatedHours decimal.Decimal `json:"allocated_hours"`
	HourlyRate     decimal.Decimal `json:"hourly_rate"`
}

// Value is the billable value of the allocation.
func (a ProjectAllocation) Value() decimal.Decimal {
	return a.AllocatedHours.Mul(a.HourlyRate)
}

// MonthlyRevenue is an authoritative ledger revenue record.
type MonthlyRevenue struct {
	ID          uuid.UUID       `json:"id"`
	CompanyID   uuid.UUID       `json:"company_id"`
	ClientID    uuid.UUID       `json:"client_id"`
	ProjectID   uuid.NullUUID   `json:"project_id"`
	Year        int             `json:"year"`
	Month       int             `json:"month"`
	RevenueType RevenueType     `json:"revenue_type"`
	Revenue     decimal.Decimal `json:"revenue"`
}

// Cost is a row of the unified cost ledger.
type Cost struct {
	ID           uuid.UUID       `json:"id"`
	CompanyID    uuid.UUID       `json:"company_id"`
	Name         string          `json:"name"`
	CostType     CostType        `json:"cost_type"`
	Amount       decimal.Decimal `json:"amount"`
	Frequency    CostFrequency   `json:"frequency"`
	StartDate    time.Time       `json:"start_date"`
	EndDate      *time.Time      `json:"end_date,omitempty"`
	IsContractor bool            `json:"is_contractor"`
	ProjectID    uuid.NullUUID   `json:"project_id"`
	IsActive     bool            `json:"is_active"`
}

// Validate rejects rows that cannot be mapped onto months.
func (c Cost) Validate() error {
	if !c.Frequency.Valid() {
		return fmt.Errorf("cost %s: unknown frequency %q", c.ID, c.Frequency)
	}
	if c.Amount.IsNegative() {
		return fmt.Errorf("cost %s: negative amount %s", c.ID, c.Amount)
	}
	if c.EndDate != nil && c.EndDate.Before(c.StartDate) {
		return fmt.Errorf("cost %s: end date before start date", c.ID)
	}
	return nil
}

// MonthlyAmount is the share of the cost recognised per month.
func (c Cost) MonthlyAmount() decimal.Decimal {
	if c.Frequency != FrequencyProjectDuration || c.EndDate == nil {
		return c.Amount
	}
	months := InclusiveMonths(c.StartDate, *c.EndDate)
	if months <= 0 {
		return c.Amount
	}
	return c.Amount.Div(decimal.NewFromInt(int64(months)))
}

// Overlaps reports whether the cost is in effect at some point of w.
func (c Cost) Overlaps(w Window) bool {
	if c.StartDate.After(w.To) {
		return false
	}
	return c.EndDate == nil || !c.EndDate.Before(w.From)
}

// Expense is a legacy recurring operating expense.
type Expense struct {
	ID            uuid.UUID       `json:"id"`
	CompanyID     uuid.UUID       `json:"company_id"`
	Name          string          `json:"name"`
	Category      string          `json:"category"`
	MonthlyAmount decimal.Decimal `json:"monthly_amount"`
	StartDate     time.Time       `json:"start_date"`
	EndDate       *time.Time      `json:"end_date,omitempty"`
	IsActive      bool            `json:"is_active"`
}

// Overlaps reports whether the expense is in effect at some point of w.
func (e Expense) Overlaps(w Window) bool {
	if e.StartDate.After(w.To) {
		return false
	}
	return e.EndDate == nil || !e.EndDate.Before(w.From)
}

// ContractorExpense is a legacy per-month contractor charge.
type ContractorExpense struct {
	ID        uuid.UUID       `json:"id"`
	CompanyID uuid.UUID       `json:"company_id"`
	Name      string          `json:"name"`
	Year      int             `json:"year"`
	Month     int             `json:"month"`
	Amount    decimal.Decimal `json:"amount"`
}

// CapacitySnapshot is the persisted utilisation figure for one company month.
type CapacitySnapshot struct {
	CompanyID           uuid.UUID       `json:"company_id"`
	Year                int             `json:"year"`
	Month               int             `json:"month"`
	TotalCapacityHours  decimal.Decimal `json:"total_capacity_hours"`
	TotalAllocatedHours decimal.Decimal `json:"total_allocated_hours"`
	TotalRevenue        decimal.Decimal `json:"total_revenue"`
	UtilizationRate     decimal.Decimal `json:"utilization_rate"`
}

// UtilizationPercent returns allocated/capacity*100, or zero without capacity.
func UtilizationPercent(allocated, capacity decimal.Decimal) decimal.Decimal {
	if !capacity.IsPositive() {
		return decimal.Zero
	}
	return allocated.Div(capacity).Mul(hundred)
}

// Snapshot is everything the reconcilers read for one company and window,
// except the cost ledger which is served by a Ledger.
type Snapshot struct {
	Company     Company             `json:"company"`
	Window      Window              `json:"window"`
	Staff       []UserProfile       `json:"staff"`
	Projects    []Project           `json:"projects"`
	Revenue     []MonthlyRevenue    `json:"revenue"`
	Allocations []ProjectAllocation `json:"allocations"`
}
