package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"

	"github.com/agencyops/agencyops/internal/agency"
	jobmetrics "github.com/agencyops/agencyops/internal/jobs"
	"github.com/agencyops/agencyops/internal/metrics"
)

const defaultTrailingMonths = 5

var defaultJobMetrics = jobmetrics.NewMetrics(nil)

// CompanyLister enumerates the companies a job iterates over.
type CompanyLister interface {
	ListCompanies(ctx context.Context) ([]agency.Company, error)
}

// MetricsWarmer is the subset of metrics.Service the warmup touches.
type MetricsWarmer interface {
	GetPeriodMetrics(ctx context.Context, filter metrics.PeriodFilter) (metrics.PeriodMetrics, error)
	GetMonthlyRevenue(ctx context.Context, companyID uuid.UUID, year, month int) (metrics.RevenueBreakdown, error)
	GetMonthlyCosts(ctx context.Context, companyID uuid.UUID, year, month int) (metrics.CostBreakdown, error)
	GetMonthlyCapacity(ctx context.Context, companyID uuid.UUID, year, month int) (metrics.CapacityBreakdown, error)
	GetRevenueChart(ctx context.Context, companyID uuid.UUID, year int) (metrics.RevenueChart, error)
}

// MetricsWarmupJob pre-populates the metrics cache for every company.
type MetricsWarmupJob struct {
	Metrics        MetricsWarmer
	Companies      CompanyLister
	Logger         *slog.Logger
	JobMetrics     *jobmetrics.Metrics
	TrailingMonths int
	clock          func() time.Time
}

// NewMetricsWarmupJob wires dependencies for the warmup handler.
func NewMetricsWarmupJob(svc MetricsWarmer, companies CompanyLister, trailingMonths int, logger *slog.Logger, m *jobmetrics.Metrics) *MetricsWarmupJob {
	return &MetricsWarmupJob{
		Metrics:        svc,
		Companies:      companies,
		Logger:         logger,
		JobMetrics:     m,
		TrailingMonths: trailingMonths,
		clock: func() time.Time {
			return time.Now().UTC()
		},
	}
}

// Handle processes metrics warmup tasks.
func (j *MetricsWarmupJob) Handle(ctx context.Context, t *asynq.Task) error {
	if j == nil {
		return errors.New("metrics warmup: handler not configured")
	}
	var payload MetricsWarmupPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return asynq.SkipRetry
	}
	trailing := payload.TrailingMonths
	if trailing <= 0 {
		trailing = j.TrailingMonths
	}
	if trailing <= 0 {
		trailing = defaultTrailingMonths
	}

	tracker := j.metrics().Track(TaskMetricsWarmup)
	var resultErr error
	defer func() {
		resultErr = tracker.End(resultErr)
	}()

	logger := j.logger().With(slog.Int("trailing_months", trailing))
	logger.Info("starting metrics warmup")

	companies, err := resolveCompanies(ctx, j.Companies, payload.CompanyID)
	if err != nil {
		resultErr = err
		logger.Error("load warmup companies", slog.Any("error", err))
		return resultErr
	}
	if len(companies) == 0 {
		logger.Info("no companies discovered for warmup")
		return resultErr
	}

	now := j.now()
	warmed := 0
	for _, company := range companies {
		if err := j.warmCompany(ctx, company.ID, now, trailing); err != nil {
			resultErr = err
			j.metrics().AddCompanies(TaskMetricsWarmup, "error", 1)
			logger.Error("warm company", slog.String("company_id", company.ID.String()), slog.Any("error", err))
			return resultErr
		}
		warmed++
	}
	j.metrics().AddCompanies(TaskMetricsWarmup, "ok", warmed)

	logger.Info("completed metrics warmup", slog.Int("companies", warmed), slog.Duration("duration", time.Since(now)))
	return resultErr
}

func (j *MetricsWarmupJob) warmCompany(ctx context.Context, companyID uuid.UUID, now time.Time, trailing int) error {
	if j.Metrics == nil {
		return nil
	}
	companyCtx, cancel := context.WithTimeout(ctx, 20*time.Second)
	defer cancel()

	current := agency.MonthOf(now)
	first := current
	for i := 0; i < trailing; i++ {
		first = first.Prev()
	}

	filter := metrics.PeriodFilter{CompanyID: companyID, Start: first.Start(), End: current.End(), Aggregation: metrics.AggregateMonthly}
	if _, err := j.Metrics.GetPeriodMetrics(companyCtx, filter); err != nil {
		return err
	}
	year, month := current.Year, int(current.Month)
	if _, err := j.Metrics.GetMonthlyRevenue(companyCtx, companyID, year, month); err != nil {
		return err
	}
	if _, err := j.Metrics.GetMonthlyCosts(companyCtx, companyID, year, month); err != nil {
		return err
	}
	if _, err := j.Metrics.GetMonthlyCapacity(companyCtx, companyID, year, month); err != nil {
		return err
	}
	if _, err := j.Metrics.GetRevenueChart(companyCtx, companyID, year); err != nil {
		return err
	}
	return nil
}

func (j *MetricsWarmupJob) logger() *slog.Logger {
	if j.Logger != nil {
		return j.Logger.With(slog.String("job", TaskMetricsWarmup))
	}
	return slog.Default().With(slog.String("job", TaskMetricsWarmup))
}

func (j *MetricsWarmupJob) metrics() *jobmetrics.Metrics {
	if j.JobMetrics != nil {
		return j.JobMetrics
	}
	return defaultJobMetrics
}

func (j *MetricsWarmupJob) now() time.Time {
	if j.clock != nil {
		return j.clock()
	}
	return time.Now().UTC()
}

// resolveCompanies returns the single requested company, or every company
// when id is empty.
func resolveCompanies(ctx context.Context, lister CompanyLister, id string) ([]agency.Company, error) {
	if lister == nil {
		return nil, errors.New("jobs: company lister not configured")
	}
	if id == "" {
		return lister.ListCompanies(ctx)
	}
	parsed, err := uuid.Parse(id)
	if err != nil {
		return nil, errors.Join(asynq.SkipRetry, err)
	}
	return []agency.Company{{ID: parsed}}, nil
}
