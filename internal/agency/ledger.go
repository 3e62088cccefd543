package agency

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"

	"github.com/agencyops/agencyops/internal/platform/db"
)

// LedgerMode selects the cost ledger implementation.
type LedgerMode string

const (
	LedgerAuto    LedgerMode = "auto"
	LedgerUnified LedgerMode = "unified"
	LedgerLegacy  LedgerMode = "legacy"
)

// ParseLedgerMode validates a configured ledger mode.
func ParseLedgerMode(v string) (LedgerMode, error) {
	switch mode := LedgerMode(strings.ToLower(strings.TrimSpace(v))); mode {
	case "":
		return LedgerAuto, nil
	case LedgerAuto, LedgerUnified, LedgerLegacy:
		return mode, nil
	default:
		return "", fmt.Errorf("unknown ledger mode %q", v)
	}
}

// LedgerEntries are the cost rows in effect during a window. Only the slices
// matching Source are populated.
type LedgerEntries struct {
	Source             LedgerMode          `json:"source"`
	Costs              []Cost              `json:"costs,omitempty"`
	Expenses           []Expense           `json:"expenses,omitempty"`
	ContractorExpenses []ContractorExpense `json:"contractor_expenses,omitempty"`
}

// Ledger yields operating cost rows for a company.
type Ledger interface {
	Entries(ctx context.Context, companyID uuid.UUID, window Window) (LedgerEntries, error)
}

// UnifiedLedger reads the costs table.
type UnifiedLedger struct {
	pool db.Pool
}

// NewUnifiedLedger constructs a UnifiedLedger.
func NewUnifiedLedger(pool db.Pool) *UnifiedLedger {
	return &UnifiedLedger{pool: pool}
}

const selectCosts = `
SELECT id, company_id, name, cost_type, amount, frequency, start_date, end_date,
       is_contractor, project_id, is_active
FROM costs
WHERE company_id = $1 AND is_active
  AND start_date <= $3 AND (end_date IS NULL OR end_date >= $2)
ORDER BY start_date, id`

// Entries returns active costs overlapping the window.
func (l *UnifiedLedger) Entries(ctx context.Context, companyID uuid.UUID, window Window) (LedgerEntries, error) {
	rows, err := l.pool.Query(ctx, selectCosts, companyID, window.From, window.To)
	if err != nil {
		return LedgerEntries{}, eris.Wrap(err, "agency: query costs")
	}
	defer rows.Close()

	out := LedgerEntries{Source: LedgerUnified}
	for rows.Next() {
		var c Cost
		if err := rows.Scan(&c.ID, &c.CompanyID, &c.Name, &c.CostType, &c.Amount, &c.Frequency, &c.StartDate,
			&c.EndDate, &c.IsContractor, &c.ProjectID, &c.IsActive); err != nil {
			return LedgerEntries{}, eris.Wrap(err, "agency: scan cost")
		}
		out.Costs = append(out.Costs, c)
	}
	if err := rows.Err(); err != nil {
		return LedgerEntries{}, eris.Wrap(err, "agency: iterate costs")
	}
	return out, nil
}

// LegacyLedger reads the expenses and contractor_expenses tables.
type LegacyLedger struct {
	pool db.Pool
}

// NewLegacyLedger constructs a LegacyLedger.
func NewLegacyLedger(pool db.Pool) *LegacyLedger {
	return &LegacyLedger{pool: pool}
}

const selectExpenses = `
SELECT id, company_id, name, category, monthly_amount, start_date, end_date, is_active
FROM expenses
WHERE company_id = $1 AND is_active
  AND start_date <= $3 AND (end_date IS NULL OR end_date >= $2)
ORDER BY start_date, id`

const selectContractorExpenses = `
SELECT id, company_id, name, year, month, amount
FROM contractor_expenses
WHERE company_id = $1 AND (year * 12 + month - 1) BETWEEN $2 AND $3
ORDER BY year, month, id`

// Entries returns active expenses overlapping the window and contractor
// expenses booked in its months.
func (l *LegacyLedger) Entries(ctx context.Context, companyID uuid.UUID, window Window) (LedgerEntries, error) {
	out := LedgerEntries{Source: LedgerLegacy}

	rows, err := l.pool.Query(ctx, selectExpenses, companyID, window.From, window.To)
	if err != nil {
		return LedgerEntries{}, eris.Wrap(err, "agency: query expenses")
	}
	for rows.Next() {
		var e Expense
		if err := rows.Scan(&e.ID, &e.CompanyID, &e.Name, &e.Category, &e.MonthlyAmount, &e.StartDate,
			&e.EndDate, &e.IsActive); err != nil {
			rows.Close()
			return LedgerEntries{}, eris.Wrap(err, "agency: scan expense")
		}
		out.Expenses = append(out.Expenses, e)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return LedgerEntries{}, eris.Wrap(err, "agency: iterate expenses")
	}

	first, last := MonthOf(window.From).Index(), MonthOf(window.To).Index()
	rows, err = l.pool.Query(ctx, selectContractorExpenses, companyID, first, last)
	if err != nil {
		return LedgerEntries{}, eris.Wrap(err, "agency: query contractor expenses")
	}
	defer rows.Close()
	for rows.Next() {
		var c ContractorExpense
		if err := rows.Scan(&c.ID, &c.CompanyID, &c.Name, &c.Year, &c.Month, &c.Amount); err != nil {
			return LedgerEntries{}, eris.Wrap(err, "agency: scan contractor expense")
		}
		out.ContractorExpenses = append(out.ContractorExpenses, c)
	}
	if err := rows.Err(); err != nil {
		return LedgerEntries{}, eris.Wrap(err, "agency: iterate contractor expenses")
	}
	return out, nil
}

// FallbackLedger serves from primary and switches to secondary for a call
// when primary reports a missing table or column.
type FallbackLedger struct {
	primary   Ledger
	secondary Ledger
	logger    *slog.Logger
}

// NewFallbackLedger wires a primary ledger with its schema fallback.
func NewFallbackLedger(primary, secondary Ledger, logger *slog.Logger) *FallbackLedger {
	if logger == nil {
		logger = slog.Default()
	}
	return &FallbackLedger{primary: primary, secondary: secondary, logger: logger}
}

// Entries implements Ledger.
func (l *FallbackLedger) Entries(ctx context.Context, companyID uuid.UUID, window Window) (LedgerEntries, error) {
	entries, err := l.primary.Entries(ctx, companyID, window)
	if err == nil || !db.IsSchemaUnavailable(err) {
		return entries, err
	}
	l.logger.Warn("unified cost ledger unavailable, using legacy tables",
		slog.String("company_id", companyID.String()),
		slog.Any("error", err))
	return l.secondary.Entries(ctx, companyID, window)
}

const probeUnifiedLedger = `SELECT to_regclass('public.costs') IS NOT NULL`

// DetectLedgerMode reports whether the unified costs table exists.
func DetectLedgerMode(ctx context.Context, pool db.Pool) (LedgerMode, error) {
	var exists bool
	if err := pool.QueryRow(ctx, probeUnifiedLedger).Scan(&exists); err != nil {
		return "", eris.Wrap(err, "agency: probe costs table")
	}
	if exists {
		return LedgerUnified, nil
	}
	return LedgerLegacy, nil
}

// NewLedger resolves mode, probing the schema once when it is auto. The
// unified ledger is always wrapped so a later schema change degrades to the
// legacy tables instead of failing.
func NewLedger(ctx context.Context, mode LedgerMode, pool db.Pool, logger *slog.Logger) (Ledger, LedgerMode, error) {
	if mode == LedgerAuto || mode == "" {
		detected, err := DetectLedgerMode(ctx, pool)
		if err != nil {
			return nil, "", err
		}
		mode = detected
	}
	switch mode {
	case LedgerUnified:
		return NewFallbackLedger(NewUnifiedLedger(pool), NewLegacyLedger(pool), logger), mode, nil
	case LedgerLegacy:
		return NewLegacyLedger(pool), mode, nil
	default:
		return nil, "", fmt.Errorf("agency: unknown ledger mode %q", mode)
	}
}
