package jobs

import (
	"encoding/json"
	"fmt"

	"github.com/hibiken/asynq"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskMetricsWarmup pre-populates the metrics cache for every company.
	TaskMetricsWarmup = "metrics:warmup"
	// TaskCapacitySnapshot persists monthly capacity snapshots.
	TaskCapacitySnapshot = "capacity:snapshot"
)

// MetricsWarmupPayload scopes a warmup run. An empty CompanyID warms every
// company; zero TrailingMonths uses the job default.
type MetricsWarmupPayload struct {
	CompanyID      string `json:"company_id,omitempty"`
	TrailingMonths int    `json:"trailing_months,omitempty"`
}

// NewMetricsWarmupTask constructs the warmup task.
func NewMetricsWarmupTask(payload MetricsWarmupPayload) (*asynq.Task, error) {
	if payload.TrailingMonths < 0 {
		return nil, fmt.Errorf("metrics warmup: trailing months must not be negative")
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskMetricsWarmup, data), nil
}

// CapacitySnapshotPayload selects the month to persist. Zero Year and Month
// mean the month before the run.
type CapacitySnapshotPayload struct {
	CompanyID string `json:"company_id,omitempty"`
	Year      int    `json:"year,omitempty"`
	Month     int    `json:"month,omitempty"`
}

// NewCapacitySnapshotTask constructs the snapshot task.
func NewCapacitySnapshotTask(payload CapacitySnapshotPayload) (*asynq.Task, error) {
	if (payload.Year == 0) != (payload.Month == 0) {
		return nil, fmt.Errorf("capacity snapshot: year and month must be set together")
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskCapacitySnapshot, data), nil
}
