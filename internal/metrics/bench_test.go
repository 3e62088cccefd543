package metrics

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/agencyops/agencyops/internal/agency"
)

func benchSnapshot() (agency.Snapshot, agency.LedgerEntries) {
	var snap agency.Snapshot
	for i := 0; i < 50; i++ {
		p := halfYearProject()
		p.ID = uuid.New()
		p.StartDate = day(2025, time.Month(1+i%6), 1)
		p.EndDate = day(2025, time.Month(7+i%6), 28)
		if i%3 == 0 {
			p.RevenueType = agency.RevenueForecast
		}
		snap.Projects = append(snap.Projects, p)
	}
	for i := 0; i < 20; i++ {
		s := salariedStaff()
		s.ID = int64(i + 1)
		snap.Staff = append(snap.Staff, s)
		for m := 1; m <= 12; m++ {
			snap.Allocations = append(snap.Allocations, agency.ProjectAllocation{
				ID:             uuid.New(),
				ProjectID:      snap.Projects[i].ID,
				StaffID:        s.ID,
				Year:           2025,
				Month:          m,
				AllocatedHours: decimal.NewFromInt(120),
				HourlyRate:     d("90"),
			})
		}
	}
	entries := agency.LedgerEntries{Source: agency.LedgerUnified}
	for i := 0; i < 30; i++ {
		entries.Costs = append(entries.Costs, agency.Cost{
			ID:        uuid.New(),
			CompanyID: companyID,
			CostType:  agency.CostSoftware,
			Amount:    d("450"),
			Frequency: agency.FrequencyMonthly,
			StartDate: day(2024, 1, 1),
			IsActive:  true,
		})
	}
	return snap, entries
}

func BenchmarkGetPeriodMetricsYear(b *testing.B) {
	snap, entries := benchSnapshot()
	svc := newTestService(&fakeStore{snap: snap}, &fakeLedger{entries: entries}, Config{})
	filter := PeriodFilter{CompanyID: companyID, Start: day(2025, 1, 1), End: day(2025, 12, 31), Aggregation: AggregateQuarterly}

	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := svc.GetPeriodMetrics(context.Background(), filter); err != nil {
			b.Fatal(err)
		}
	}
}

func BenchmarkGetRevenueChart(b *testing.B) {
	snap, entries := benchSnapshot()
	svc := newTestService(&fakeStore{snap: snap}, &fakeLedger{entries: entries}, Config{})

	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := svc.GetRevenueChart(context.Background(), companyID, 2025); err != nil {
			b.Fatal(err)
		}
	}
}
