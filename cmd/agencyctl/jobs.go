package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/hibiken/asynq"
	"github.com/spf13/cobra"

	"github.com/agencyops/agencyops/jobs"
)

// jobQueue is what the jobs commands need from JobsCLI.
type jobQueue interface {
	Trigger(ctx context.Context, name string, opts TriggerOptions) (*asynq.TaskInfo, error)
	InspectQueue(ctx context.Context) (QueueStats, error)
	Close() error
}

// JobsCLI wraps manual management helpers for Asynq jobs.
type JobsCLI struct {
	client    *jobs.Client
	inspector *asynq.Inspector
}

// NewJobsCLI initialises the CLI helpers using the provided Redis address.
func NewJobsCLI(redisAddr string, db int) (*JobsCLI, error) {
	opts := asynq.RedisClientOpt{Addr: redisAddr, DB: db}
	return &JobsCLI{client: jobs.NewClient(opts), inspector: asynq.NewInspector(opts)}, nil
}

// Close releases underlying resources.
func (c *JobsCLI) Close() error {
	var err error
	if c.inspector != nil {
		err = errors.Join(err, c.inspector.Close())
	}
	if c.client != nil {
		err = errors.Join(err, c.client.Close())
	}
	return err
}

// TriggerOptions scopes a manual run. Zero values keep the job defaults.
type TriggerOptions struct {
	CompanyID      string
	TrailingMonths int
	Year           int
	Month          int
}

// Trigger enqueues a supported job by name.
func (c *JobsCLI) Trigger(ctx context.Context, name string, opts TriggerOptions) (*asynq.TaskInfo, error) {
	if c == nil || c.client == nil {
		return nil, errors.New("jobs cli: client not configured")
	}
	switch jobName(name) {
	case jobs.TaskMetricsWarmup:
		return c.client.EnqueueMetricsWarmup(ctx, jobs.MetricsWarmupPayload{CompanyID: opts.CompanyID, TrailingMonths: opts.TrailingMonths})
	case jobs.TaskCapacitySnapshot:
		return c.client.EnqueueCapacitySnapshot(ctx, jobs.CapacitySnapshotPayload{CompanyID: opts.CompanyID, Year: opts.Year, Month: opts.Month})
	default:
		return nil, fmt.Errorf("jobs cli: unsupported job %s", name)
	}
}

// jobName maps the short CLI aliases onto task types.
func jobName(name string) string {
	switch name {
	case "warmup":
		return jobs.TaskMetricsWarmup
	case "snapshot":
		return jobs.TaskCapacitySnapshot
	}
	return name
}

// QueueStats summarises the current queue state.
type QueueStats struct {
	Queue     string `json:"queue"`
	Pending   int    `json:"pending"`
	Active    int    `json:"active"`
	Scheduled int    `json:"scheduled"`
	Retry     int    `json:"retry"`
	Archived  int    `json:"archived"`
}

// InspectQueue reports the queue metrics for the default queue.
func (c *JobsCLI) InspectQueue(ctx context.Context) (QueueStats, error) {
	if c == nil || c.inspector == nil {
		return QueueStats{}, errors.New("jobs cli: inspector not configured")
	}
	info, err := c.inspector.GetQueueInfo(jobs.QueueDefault)
	if err != nil {
		return QueueStats{}, err
	}
	stats := QueueStats{Queue: jobs.QueueDefault}
	if info != nil {
		stats.Pending = info.Pending
		stats.Active = info.Active
		stats.Scheduled = info.Scheduled
		stats.Retry = info.Retry
		stats.Archived = info.Archived
	}
	return stats, nil
}

var jobsCmd = &cobra.Command{
	Use:   "jobs",
	Short: "Drive background jobs",
}

var jobsTriggerCmd = &cobra.Command{
	Use:       "trigger [warmup|snapshot]",
	Short:     "Enqueue a job run",
	Args:      cobra.ExactArgs(1),
	ValidArgs: []string{"warmup", "snapshot"},
	RunE: func(cmd *cobra.Command, args []string) error {
		var opts TriggerOptions
		opts.CompanyID, _ = cmd.Flags().GetString("company")
		opts.TrailingMonths, _ = cmd.Flags().GetInt("trailing")
		opts.Year, _ = cmd.Flags().GetInt("year")
		opts.Month, _ = cmd.Flags().GetInt("month")

		q, err := openJobs()
		if err != nil {
			return err
		}
		defer q.Close() //nolint:errcheck

		info, err := q.Trigger(cmd.Context(), args[0], opts)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "enqueued %s id=%s queue=%s\n", info.Type, info.ID, info.Queue)
		return nil
	},
}

var jobsInspectCmd = &cobra.Command{
	Use:   "inspect",
	Short: "Show the default queue state",
	RunE: func(cmd *cobra.Command, _ []string) error {
		format, _ := cmd.Flags().GetString("format")
		if err := checkFormat(format, formatText, formatJSON); err != nil {
			return err
		}
		q, err := openJobs()
		if err != nil {
			return err
		}
		defer q.Close() //nolint:errcheck

		stats, err := q.InspectQueue(cmd.Context())
		if err != nil {
			return err
		}
		if format == formatJSON {
			return writeJSON(cmd.OutOrStdout(), stats)
		}
		tw := newTable(cmd.OutOrStdout())
		fmt.Fprintln(tw, "QUEUE\tPENDING\tACTIVE\tSCHEDULED\tRETRY\tARCHIVED")
		fmt.Fprintf(tw, "%s\t%d\t%d\t%d\t%d\t%d\n", stats.Queue, stats.Pending, stats.Active, stats.Scheduled, stats.Retry, stats.Archived)
		return tw.Flush()
	},
}

func init() {
	jobsCmd.AddCommand(jobsTriggerCmd, jobsInspectCmd)

	jobsTriggerCmd.Flags().String("company", "", "limit the run to one company UUID")
	jobsTriggerCmd.Flags().Int("trailing", 0, "warmup: trailing months to cover")
	jobsTriggerCmd.Flags().Int("year", 0, "snapshot: calendar year")
	jobsTriggerCmd.Flags().Int("month", 0, "snapshot: month 1-12")

	jobsInspectCmd.Flags().String("format", formatText, "output format")
}
