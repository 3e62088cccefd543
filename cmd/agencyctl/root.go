package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/agencyops/agencyops/internal/agency"
	"github.com/agencyops/agencyops/internal/app"
	"github.com/agencyops/agencyops/internal/metrics"
)

var (
	cfg    *app.Config
	logger *slog.Logger
)

// metricsReader is the part of metrics.Service the commands print.
type metricsReader interface {
	GetPeriodMetrics(ctx context.Context, filter metrics.PeriodFilter) (metrics.PeriodMetrics, error)
	GetMonthlyRevenue(ctx context.Context, companyID uuid.UUID, year, month int) (metrics.RevenueBreakdown, error)
	GetMonthlyCosts(ctx context.Context, companyID uuid.UUID, year, month int) (metrics.CostBreakdown, error)
	GetMonthlyCapacity(ctx context.Context, companyID uuid.UUID, year, month int) (metrics.CapacityBreakdown, error)
	GetRevenueChart(ctx context.Context, companyID uuid.UUID, year int) (metrics.RevenueChart, error)
}

type cacheBumper interface {
	Bump(ctx context.Context) (int64, error)
}

// backend holds the connections a command needs. Tests swap openBackend.
type backend struct {
	metrics    metricsReader
	cache      cacheBumper
	detect     func(ctx context.Context) (agency.LedgerMode, error)
	configured agency.LedgerMode
	resolved   agency.LedgerMode
	close      func()
}

var openBackend = func(ctx context.Context) (*backend, error) {
	services, err := app.NewServices(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}
	return &backend{
		metrics: services.Metrics,
		cache:   services.Metrics.Cache(),
		detect: func(ctx context.Context) (agency.LedgerMode, error) {
			return agency.DetectLedgerMode(ctx, services.Pool)
		},
		configured: cfg.Ledger(),
		resolved:   services.LedgerMode,
		close:      services.Close,
	}, nil
}

var openJobs = func() (jobQueue, error) {
	return NewJobsCLI(cfg.RedisAddr, cfg.RedisDB)
}

var rootCmd = &cobra.Command{
	Use:   "agencyctl",
	Short: "Operate the agency metrics engine",
	Long:  "Computes period and monthly metrics from the command line, inspects the ledger provider and drives background jobs.",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		c, err := app.LoadConfig()
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		cfg = c
		logger = app.NewLogger(cfg)
		return nil
	},
	SilenceUsage: true,
}

func init() {
	rootCmd.AddCommand(metricsCmd, ledgerCmd, jobsCmd, cacheCmd)
}

func withBackend(cmd *cobra.Command, fn func(b *backend) error) error {
	b, err := openBackend(cmd.Context())
	if err != nil {
		return err
	}
	if b.close != nil {
		defer b.close()
	}
	return fn(b)
}

func companyFlag(cmd *cobra.Command) (uuid.UUID, error) {
	raw, _ := cmd.Flags().GetString("company")
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, fmt.Errorf("--company must be a UUID, got %q", raw)
	}
	return id, nil
}
