package agency

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agencyops/agencyops/internal/platform/db"
	"github.com/agencyops/agencyops/internal/platform/httpx"
)

func TestGetCompanyNotFound(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	id := uuid.New()
	mock.ExpectQuery("FROM companies WHERE id").
		WithArgs(id).
		WillReturnRows(mock.NewRows([]string{"id", "name", "code"}))

	_, err = NewRepository(mock).GetCompany(context.Background(), id)
	require.ErrorIs(t, err, ErrCompanyNotFound)
	assert.ErrorIs(t, err, httpx.ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestListCompanies(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	a, b := uuid.New(), uuid.New()
	mock.ExpectQuery("FROM companies ORDER BY").
		WillReturnRows(mock.NewRows([]string{"id", "name", "code"}).
			AddRow(a, "Acme", "ACM").
			AddRow(b, "Globex", "GLX"))

	companies, err := NewRepository(mock).ListCompanies(context.Background())
	require.NoError(t, err)
	require.Len(t, companies, 2)
	assert.Equal(t, a, companies[0].ID)
	assert.Equal(t, "GLX", companies[1].Code)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestListCompaniesWrapsQueryError(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	boom := errors.New("connection reset")
	mock.ExpectQuery("FROM companies ORDER BY").WillReturnError(boom)

	_, err = NewRepository(mock).ListCompanies(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "agency: list companies")
}

func TestLoadSnapshot(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	companyID, clientID, projectID := uuid.New(), uuid.New(), uuid.New()
	window := MonthWindow(day(2025, 1, 1), day(2025, 3, 31))
	first, last := MonthOf(window.From).Index(), MonthOf(window.To).Index()

	mock.ExpectBeginTx(db.SnapshotTxOptions)
	mock.ExpectQuery("FROM companies WHERE id").
		WithArgs(companyID).
		WillReturnRows(mock.NewRows([]string{"id", "name", "code"}).AddRow(companyID, "Acme", "ACM"))
	mock.ExpectQuery("FROM user_profiles").
		WithArgs(companyID).
		WillReturnRows(mock.NewRows([]string{"id", "company_id", "name", "role", "hourly_rate", "annual_salary", "status",
			"start_date", "end_date", "weekly_capacity_hours", "utilization_target"}).
			AddRow(int64(1), companyID, "Ada", "tech", d("90"), decimal.NewNullDecimal(d("120000")), StatusFullTime,
				dayPtr(2024, 1, 1), nil, d("40"), d("80")))
	mock.ExpectQuery("FROM projects").
		WithArgs(companyID, window.From, window.To).
		WillReturnRows(mock.NewRows([]string{"id", "client_id", "company_id", "name", "start_date", "end_date",
			"total_revenue", "total_hours", "revenue_type", "status"}).
			AddRow(projectID, clientID, companyID, "Site", day(2025, 1, 1), day(2025, 6, 30),
				d("120000"), d("800"), RevenueType("unknown"), "active"))
	mock.ExpectQuery("FROM monthly_revenue").
		WithArgs(companyID, first, last).
		WillReturnRows(mock.NewRows([]string{"id", "company_id", "client_id", "project_id", "year", "month", "revenue_type", "revenue"}).
			AddRow(uuid.New(), companyID, clientID, uuid.NullUUID{UUID: projectID, Valid: true}, 2025, 2, RevenueForecast, d("5000")))
	mock.ExpectQuery("FROM project_allocations").
		WithArgs(companyID, first, last).
		WillReturnRows(mock.NewRows([]string{"id", "project_id", "staff_id", "year", "month", "week", "allocated_hours", "hourly_rate"}).
			AddRow(uuid.New(), projectID, int64(1), 2025, 3, nil, d("120"), d("90")))
	mock.ExpectCommit()

	snap, err := NewRepository(mock).LoadSnapshot(context.Background(), companyID, window)
	require.NoError(t, err)
	assert.Equal(t, "Acme", snap.Company.Name)
	require.Len(t, snap.Staff, 1)
	assertDecimal(t, "10000", snap.Staff[0].MonthlySalaryCost())
	assert.Nil(t, snap.Staff[0].EndDate)
	require.Len(t, snap.Projects, 1)
	assert.Equal(t, RevenueBooked, snap.Projects[0].RevenueType)
	require.Len(t, snap.Revenue, 1)
	assert.Equal(t, RevenueForecast, snap.Revenue[0].RevenueType)
	require.Len(t, snap.Allocations, 1)
	assert.Nil(t, snap.Allocations[0].Week)
	assert.Equal(t, window, snap.Window)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestLoadSnapshotUnknownCompany(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	id := uuid.New()
	mock.ExpectBeginTx(pgx.TxOptions{IsoLevel: pgx.RepeatableRead, AccessMode: pgx.ReadOnly})
	mock.ExpectQuery("FROM companies WHERE id").
		WithArgs(id).
		WillReturnRows(mock.NewRows([]string{"id", "name", "code"}))
	mock.ExpectRollback()

	_, err = NewRepository(mock).LoadSnapshot(context.Background(), id, Month{Year: 2025, Month: time.January}.Window())
	require.ErrorIs(t, err, ErrCompanyNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSaveCapacitySnapshot(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	id := uuid.New()
	mock.ExpectExec("INSERT INTO capacity_snapshots").
		WithArgs(id, 2025, 2, pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	err = NewRepository(mock).SaveCapacitySnapshot(context.Background(), CapacitySnapshot{
		CompanyID:           id,
		Year:                2025,
		Month:               2,
		TotalCapacityHours:  d("346.4"),
		TotalAllocatedHours: d("300"),
		TotalRevenue:        d("42000"),
		UtilizationRate:     d("86.6050808314"),
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}
