package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"

	"github.com/agencyops/agencyops/internal/agency"
	jobmetrics "github.com/agencyops/agencyops/internal/jobs"
)

// UtilizationSource computes the capacity figures of a company month.
type UtilizationSource interface {
	GetUtilizationSnapshot(ctx context.Context, companyID uuid.UUID, year, month int) (agency.CapacitySnapshot, error)
}

// SnapshotWriter persists capacity snapshots.
type SnapshotWriter interface {
	SaveCapacitySnapshot(ctx context.Context, s agency.CapacitySnapshot) error
}

// CapacitySnapshotJob persists one CapacitySnapshot per company for a month.
type CapacitySnapshotJob struct {
	Source     UtilizationSource
	Writer     SnapshotWriter
	Companies  CompanyLister
	Logger     *slog.Logger
	JobMetrics *jobmetrics.Metrics
	clock      func() time.Time
}

// NewCapacitySnapshotJob wires dependencies for the snapshot handler.
func NewCapacitySnapshotJob(source UtilizationSource, writer SnapshotWriter, companies CompanyLister, logger *slog.Logger, m *jobmetrics.Metrics) *CapacitySnapshotJob {
	return &CapacitySnapshotJob{
		Source:     source,
		Writer:     writer,
		Companies:  companies,
		Logger:     logger,
		JobMetrics: m,
		clock: func() time.Time {
			return time.Now().UTC()
		},
	}
}

// Handle processes capacity snapshot tasks. A failing company does not stop
// the others; the joined error is returned so asynq retries the run.
func (j *CapacitySnapshotJob) Handle(ctx context.Context, t *asynq.Task) error {
	if j == nil || j.Source == nil || j.Writer == nil {
		return errors.New("capacity snapshot: handler not configured")
	}
	var payload CapacitySnapshotPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return asynq.SkipRetry
	}
	month := agency.MonthOf(j.now()).Prev()
	if payload.Year != 0 || payload.Month != 0 {
		m, err := agency.NewMonth(payload.Year, payload.Month)
		if err != nil {
			return errors.Join(asynq.SkipRetry, err)
		}
		month = m
	}

	tracker := j.metrics().Track(TaskCapacitySnapshot)
	var resultErr error
	defer func() {
		resultErr = tracker.End(resultErr)
	}()

	logger := j.logger().With(slog.String("month", month.String()))
	logger.Info("starting capacity snapshot")

	companies, err := resolveCompanies(ctx, j.Companies, payload.CompanyID)
	if err != nil {
		resultErr = err
		logger.Error("load snapshot companies", slog.Any("error", err))
		return resultErr
	}

	var errs []error
	saved := 0
	for _, company := range companies {
		if err := j.snapshotCompany(ctx, company.ID, month); err != nil {
			logger.Error("snapshot company", slog.String("company_id", company.ID.String()), slog.Any("error", err))
			errs = append(errs, fmt.Errorf("company %s: %w", company.ID, err))
			continue
		}
		saved++
	}
	j.metrics().AddCompanies(TaskCapacitySnapshot, "ok", saved)
	j.metrics().AddCompanies(TaskCapacitySnapshot, "error", len(errs))

	resultErr = errors.Join(errs...)
	logger.Info("completed capacity snapshot", slog.Int("saved", saved), slog.Int("failed", len(errs)))
	return resultErr
}

func (j *CapacitySnapshotJob) snapshotCompany(ctx context.Context, companyID uuid.UUID, month agency.Month) error {
	companyCtx, cancel := context.WithTimeout(ctx, 20*time.Second)
	defer cancel()

	snap, err := j.Source.GetUtilizationSnapshot(companyCtx, companyID, month.Year, int(month.Month))
	if err != nil {
		return err
	}
	return j.Writer.SaveCapacitySnapshot(companyCtx, snap)
}

func (j *CapacitySnapshotJob) logger() *slog.Logger {
	if j.Logger != nil {
		return j.Logger.With(slog.String("job", TaskCapacitySnapshot))
	}
	return slog.Default().With(slog.String("job", TaskCapacitySnapshot))
}

func (j *CapacitySnapshotJob) metrics() *jobmetrics.Metrics {
	if j.JobMetrics != nil {
		return j.JobMetrics
	}
	return defaultJobMetrics
}

func (j *CapacitySnapshotJob) now() time.Time {
	if j.clock != nil {
		return j.clock()
	}
	return time.Now().UTC()
}
