package agency

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/rotisserie/eris"

	"github.com/agencyops/agencyops/internal/platform/db"
)

// Repository reads agency entities from PostgreSQL.
type Repository struct {
	pool db.Pool
}

// NewRepository constructs a Repository backed by the given pool.
func NewRepository(pool db.Pool) *Repository {
	return &Repository{pool: pool}
}

type querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

const selectCompany = `SELECT id, name, code FROM companies WHERE id = $1`

// GetCompany loads a company by id.
func (r *Repository) GetCompany(ctx context.Context, id uuid.UUID) (Company, error) {
	return getCompany(ctx, r.pool, id)
}

func getCompany(ctx context.Context, q querier, id uuid.UUID) (Company, error) {
	var c Company
	if err := q.QueryRow(ctx, selectCompany, id).Scan(&c.ID, &c.Name, &c.Code); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Company{}, ErrCompanyNotFound
		}
		return Company{}, eris.Wrapf(err, "agency: get company %s", id)
	}
	return c, nil
}

const selectCompanies = `SELECT id, name, code FROM companies ORDER BY name, id`

// ListCompanies returns every company.
func (r *Repository) ListCompanies(ctx context.Context) ([]Company, error) {
	rows, err := r.pool.Query(ctx, selectCompanies)
	if err != nil {
		return nil, eris.Wrap(err, "agency: list companies")
	}
	defer rows.Close()

	var out []Company
	for rows.Next() {
		var c Company
		if err := rows.Scan(&c.ID, &c.Name, &c.Code); err != nil {
			return nil, eris.Wrap(err, "agency: scan company")
		}
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, eris.Wrap(err, "agency: iterate companies")
	}
	return out, nil
}

const selectStaff = `
SELECT id, company_id, name, role, hourly_rate, annual_salary, status,
       start_date, end_date, weekly_capacity_hours, utilization_target
FROM user_profiles
WHERE company_id = $1
ORDER BY id`

const selectProjects = `
SELECT id, client_id, company_id, name, start_date, end_date,
       total_revenue, total_hours, revenue_type, status
FROM projects
WHERE company_id = $1 AND start_date <= $3 AND end_date >= $2
ORDER BY start_date, id`

const selectMonthlyRevenue = `
SELECT id, company_id, client_id, project_id, year, month, revenue_type, revenue
FROM monthly_revenue
WHERE company_id = $1 AND (year * 12 + month - 1) BETWEEN $2 AND $3
ORDER BY year, month, id`

const selectAllocations = `
SELECT a.id, a.project_id, a.staff_id, a.year, a.month, a.week,
       a.allocated_hours, a.hourly_rate
FROM project_allocations a
JOIN projects p ON p.id = a.project_id
WHERE p.company_id = $1 AND (a.year * 12 + a.month - 1) BETWEEN $2 AND $3
ORDER BY a.year, a.month, a.id`

// LoadSnapshot reads the company and every entity relevant to the window in
// a single read-only transaction.
func (r *Repository) LoadSnapshot(ctx context.Context, companyID uuid.UUID, window Window) (Snapshot, error) {
	snap := Snapshot{Window: window}
	err := db.WithSnapshot(ctx, r.pool, func(tx pgx.Tx) error {
		company, err := getCompany(ctx, tx, companyID)
		if err != nil {
			return err
		}
		snap.Company = company

		if snap.Staff, err = loadStaff(ctx, tx, companyID); err != nil {
			return err
		}
		if snap.Projects, err = loadProjects(ctx, tx, companyID, window); err != nil {
			return err
		}
		first, last := MonthOf(window.From).Index(), MonthOf(window.To).Index()
		if snap.Revenue, err = loadRevenue(ctx, tx, companyID, first, last); err != nil {
			return err
		}
		snap.Allocations, err = loadAllocations(ctx, tx, companyID, first, last)
		return err
	})
	if err != nil {
		return Snapshot{}, err
	}
	return snap, nil
}

func loadStaff(ctx context.Context, q querier, companyID uuid.UUID) ([]UserProfile, error) {
	rows, err := q.Query(ctx, selectStaff, companyID)
	if err != nil {
		return nil, eris.Wrap(err, "agency: query staff")
	}
	defer rows.Close()

	var out []UserProfile
	for rows.Next() {
		var u UserProfile
		if err := rows.Scan(&u.ID, &u.CompanyID, &u.Name, &u.Role, &u.HourlyRate, &u.AnnualSalary, &u.Status,
			&u.StartDate, &u.EndDate, &u.WeeklyCapacityHours, &u.UtilizationTarget); err != nil {
			return nil, eris.Wrap(err, "agency: scan staff")
		}
		out = append(out, u)
	}
	if err := rows.Err(); err != nil {
		return nil, eris.Wrap(err, "agency: iterate staff")
	}
	return out, nil
}

func loadProjects(ctx context.Context, q querier, companyID uuid.UUID, window Window) ([]Project, error) {
	rows, err := q.Query(ctx, selectProjects, companyID, window.From, window.To)
	if err != nil {
		return nil, eris.Wrap(err, "agency: query projects")
	}
	defer rows.Close()

	var out []Project
	for rows.Next() {
		var p Project
		if err := rows.Scan(&p.ID, &p.ClientID, &p.CompanyID, &p.Name, &p.StartDate, &p.EndDate,
			&p.TotalRevenue, &p.TotalHours, &p.RevenueType, &p.Status); err != nil {
			return nil, eris.Wrap(err, "agency: scan project")
		}
		p.RevenueType = p.RevenueType.Normalize()
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, eris.Wrap(err, "agency: iterate projects")
	}
	return out, nil
}

func loadRevenue(ctx context.Context, q querier, companyID uuid.UUID, first, last int) ([]MonthlyRevenue, error) {
	rows, err := q.Query(ctx, selectMonthlyRevenue, companyID, first, last)
	if err != nil {
		return nil, eris.Wrap(err, "agency: query monthly revenue")
	}
	defer rows.Close()

	var out []MonthlyRevenue
	for rows.Next() {
		var m MonthlyRevenue
		if err := rows.Scan(&m.ID, &m.CompanyID, &m.ClientID, &m.ProjectID, &m.Year, &m.Month,
			&m.RevenueType, &m.Revenue); err != nil {
			return nil, eris.Wrap(err, "agency: scan monthly revenue")
		}
		m.RevenueType = m.RevenueType.Normalize()
		out = append(out, m)
	}
	if err := rows.Err(); err != nil {
		return nil, eris.Wrap(err, "agency: iterate monthly revenue")
	}
	return out, nil
}

func loadAllocations(ctx context.Context, q querier, companyID uuid.UUID, first, last int) ([]ProjectAllocation, error) {
	rows, err := q.Query(ctx, selectAllocations, companyID, first, last)
	if err != nil {
		return nil, eris.Wrap(err, "agency: query allocations")
	}
	defer rows.Close()

	var out []ProjectAllocation
	for rows.Next() {
		var a ProjectAllocation
		if err := rows.Scan(&a.ID, &a.ProjectID, &a.StaffID, &a.Year, &a.Month, &a.Week,
			&a.AllocatedHours, &a.HourlyRate); err != nil {
			return nil, eris.Wrap(err, "agency: scan allocation")
		}
		out = append(out, a)
	}
	if err := rows.Err(); err != nil {
		return nil, eris.Wrap(err, "agency: iterate allocations")
	}
	return out, nil
}

const upsertCapacitySnapshot = `
INSERT INTO capacity_snapshots
    (company_id, year, month, total_capacity_hours, total_allocated_hours, total_revenue, utilization_rate)
VALUES ($1, $2, $3, $4, $5, $6, $7)
ON CONFLICT (company_id, year, month) DO UPDATE SET
    total_capacity_hours = EXCLUDED.total_capacity_hours,
    total_allocated_hours = EXCLUDED.total_allocated_hours,
    total_revenue = EXCLUDED.total_revenue,
    utilization_rate = EXCLUDED.utilization_rate`

// SaveCapacitySnapshot inserts or replaces the snapshot for its company month.
func (r *Repository) SaveCapacitySnapshot(ctx context.Context, s CapacitySnapshot) error {
	_, err := r.pool.Exec(ctx, upsertCapacitySnapshot, s.CompanyID, s.Year, s.Month,
		s.TotalCapacityHours.Round(1), s.TotalAllocatedHours.Round(1), s.TotalRevenue.Round(2), s.UtilizationRate.Round(2))
	if err != nil {
		return eris.Wrapf(err, "agency: save capacity snapshot %s %04d-%02d", s.CompanyID, s.Year, s.Month)
	}
	return nil
}
