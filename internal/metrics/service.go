// Package metrics reconciles ledger and project data into revenue, cost and
// capacity figures for a company over a range of calendar months.
package metrics

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/agencyops/agencyops/internal/agency"
)

// Store exposes the entity reads the reconcilers depend on.
type Store interface {
	LoadSnapshot(ctx context.Context, companyID uuid.UUID, window agency.Window) (agency.Snapshot, error)
}

// Config selects the reconciliation rules.
type Config struct {
	Spread   SpreadRule
	Capacity CapacityRule
	Logger   *slog.Logger
}

// Service coordinates snapshot loading, reconciliation and the cache layer.
type Service struct {
	store  Store
	ledger agency.Ledger
	cache  *Cache
	engine engine
	logger *slog.Logger
}

// NewService wires a Store and Ledger with an optional Cache.
func NewService(store Store, ledger agency.Ledger, cache *Cache, cfg Config) *Service {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	spread := cfg.Spread
	if spread == "" {
		spread = SpreadByMonth
	}
	capRule := cfg.Capacity
	if capRule == "" {
		capRule = CapacityWeekly
	}
	return &Service{
		store:  store,
		ledger: ledger,
		cache:  cache,
		logger: logger,
		engine: engine{
			revenue:  revenueReconciler{spread: spread, logger: logger},
			cost:     costReconciler{logger: logger},
			capacity: capacityReconciler{rule: capRule},
		},
	}
}

// Cache returns the cache helper, nil when caching is disabled.
func (s *Service) Cache() *Cache {
	return s.cache
}

// GetPeriodMetrics computes the flat metrics record for the filter range.
func (s *Service) GetPeriodMetrics(ctx context.Context, filter PeriodFilter) (PeriodMetrics, error) {
	f, err := filter.Validate()
	if err != nil {
		return PeriodMetrics{}, err
	}
	loader := func(ctx context.Context) (interface{}, error) {
		snap, entries, err := s.load(ctx, f.CompanyID, agency.MonthWindow(f.Start, f.End))
		if err != nil {
			return nil, err
		}
		return s.engine.period(snap, entries, f), nil
	}
	var out PeriodMetrics
	key := s.keyParts("period", f.CompanyID.String(), f.Start.Format(time.DateOnly), f.End.Format(time.DateOnly), string(f.Aggregation))
	if err := s.fetch(ctx, key, &out, loader); err != nil {
		return PeriodMetrics{}, err
	}
	return out, nil
}

// GetMonthlyRevenue returns ledger revenue for the month, or the project
// estimate when the ledger sums for it are zero.
func (s *Service) GetMonthlyRevenue(ctx context.Context, companyID uuid.UUID, year, month int) (RevenueBreakdown, error) {
	m, err := parseMonth(year, month)
	if err != nil {
		return RevenueBreakdown{}, err
	}
	var out RevenueBreakdown
	err = s.fetch(ctx, s.monthKey("revenue", companyID, m), &out, func(ctx context.Context) (interface{}, error) {
		snap, err := s.snapshot(ctx, companyID, m.Window())
		if err != nil {
			return nil, err
		}
		return s.engine.revenue.month(snap, m), nil
	})
	if err != nil {
		return RevenueBreakdown{}, err
	}
	return out, nil
}

// GetMonthlyCosts returns payroll plus ledger costs for the month.
func (s *Service) GetMonthlyCosts(ctx context.Context, companyID uuid.UUID, year, month int) (CostBreakdown, error) {
	m, err := parseMonth(year, month)
	if err != nil {
		return CostBreakdown{}, err
	}
	var out CostBreakdown
	err = s.fetch(ctx, s.monthKey("costs", companyID, m), &out, func(ctx context.Context) (interface{}, error) {
		snap, entries, err := s.load(ctx, companyID, m.Window())
		if err != nil {
			return nil, err
		}
		return s.engine.cost.month(snap, entries, m), nil
	})
	if err != nil {
		return CostBreakdown{}, err
	}
	return out, nil
}

// GetMonthlyCapacity returns staff capacity and allocated hours for the month.
func (s *Service) GetMonthlyCapacity(ctx context.Context, companyID uuid.UUID, year, month int) (CapacityBreakdown, error) {
	m, err := parseMonth(year, month)
	if err != nil {
		return CapacityBreakdown{}, err
	}
	var out CapacityBreakdown
	err = s.fetch(ctx, s.monthKey("capacity", companyID, m), &out, func(ctx context.Context) (interface{}, error) {
		snap, err := s.snapshot(ctx, companyID, m.Window())
		if err != nil {
			return nil, err
		}
		return s.engine.capacity.month(snap, m), nil
	})
	if err != nil {
		return CapacityBreakdown{}, err
	}
	return out, nil
}

// GetRevenueChart returns the twelve monthly series of a calendar year.
func (s *Service) GetRevenueChart(ctx context.Context, companyID uuid.UUID, year int) (RevenueChart, error) {
	jan, err := parseMonth(year, 1)
	if err != nil {
		return RevenueChart{}, err
	}
	var out RevenueChart
	key := s.keyParts("chart", companyID.String(), fmt.Sprintf("%04d", year))
	err = s.fetch(ctx, key, &out, func(ctx context.Context) (interface{}, error) {
		window := agency.Window{From: jan.Start(), To: agency.Month{Year: year, Month: time.December}.End()}
		snap, entries, err := s.load(ctx, companyID, window)
		if err != nil {
			return nil, err
		}
		return s.engine.chart(snap, entries, year), nil
	})
	if err != nil {
		return RevenueChart{}, err
	}
	return out, nil
}

// GetUtilizationSnapshot builds the persisted capacity record for a month.
// It always reads through to the store.
func (s *Service) GetUtilizationSnapshot(ctx context.Context, companyID uuid.UUID, year, month int) (agency.CapacitySnapshot, error) {
	m, err := parseMonth(year, month)
	if err != nil {
		return agency.CapacitySnapshot{}, err
	}
	snap, err := s.snapshot(ctx, companyID, m.Window())
	if err != nil {
		return agency.CapacitySnapshot{}, err
	}
	capa := s.engine.capacity.month(snap, m)
	rev := s.engine.revenue.month(snap, m)
	return agency.CapacitySnapshot{
		CompanyID:           companyID,
		Year:                m.Year,
		Month:               int(m.Month),
		TotalCapacityHours:  capa.CapacityHours,
		TotalAllocatedHours: capa.AllocatedHours,
		TotalRevenue:        rev.Total,
		UtilizationRate:     capa.UtilizationRate,
	}, nil
}

func (s *Service) fetch(ctx context.Context, parts []string, dest interface{}, loader func(context.Context) (interface{}, error)) error {
	key, err := s.cache.BuildKey(ctx, parts...)
	if err != nil {
		return err
	}
	return s.cache.FetchJSON(ctx, key, dest, loader)
}

// load reads the entity snapshot and the cost ledger for window.
func (s *Service) load(ctx context.Context, companyID uuid.UUID, window agency.Window) (agency.Snapshot, agency.LedgerEntries, error) {
	snap, err := s.snapshot(ctx, companyID, window)
	if err != nil {
		return agency.Snapshot{}, agency.LedgerEntries{}, err
	}
	entries, err := s.ledger.Entries(ctx, companyID, window)
	if err != nil {
		return agency.Snapshot{}, agency.LedgerEntries{}, err
	}
	return snap, s.engine.cost.validCosts(entries), nil
}

func (s *Service) snapshot(ctx context.Context, companyID uuid.UUID, window agency.Window) (agency.Snapshot, error) {
	snap, err := s.store.LoadSnapshot(ctx, companyID, window)
	if err != nil {
		return agency.Snapshot{}, err
	}
	projects := snap.Projects[:0:0]
	for _, p := range snap.Projects {
		if err := p.Validate(); err != nil {
			s.logger.Warn("skip malformed project", slog.String("project_id", p.ID.String()), slog.Any("error", err))
			continue
		}
		projects = append(projects, p)
	}
	snap.Projects = projects
	return snap, nil
}

func parseMonth(year, month int) (agency.Month, error) {
	m, err := agency.NewMonth(year, month)
	if err != nil {
		return agency.Month{}, fmt.Errorf("%w: %v", ErrInvalidMonth, err)
	}
	return m, nil
}

func (s *Service) monthKey(kind string, companyID uuid.UUID, m agency.Month) []string {
	return s.keyParts(kind, companyID.String(), m.String())
}

// keyParts prefixes the reconciliation rules so deployments sharing a Redis
// with different rules never read each other's entries.
func (s *Service) keyParts(kind string, parts ...string) []string {
	return append([]string{kind, string(s.engine.revenue.spread), string(s.engine.capacity.rule)}, parts...)
}
