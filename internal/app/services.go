package app

import (
	"context"
	"log/slog"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/agencyops/agencyops/internal/agency"
	"github.com/agencyops/agencyops/internal/metrics"
	"github.com/agencyops/agencyops/internal/platform/cache"
	"github.com/agencyops/agencyops/internal/platform/db"
)

// Services bundles the long-lived dependencies shared by the binaries.
type Services struct {
	Pool       *pgxpool.Pool
	Redis      *redis.Client
	Repository *agency.Repository
	Ledger     agency.Ledger
	LedgerMode agency.LedgerMode
	Metrics    *metrics.Service
}

// NewServices connects Postgres and Redis, resolves the ledger provider and
// builds the metrics service. Redis is optional: when it cannot be reached
// the service runs uncached.
func NewServices(ctx context.Context, cfg *Config, logger *slog.Logger) (*Services, error) {
	if logger == nil {
		logger = slog.Default()
	}
	pool, err := db.New(ctx, cfg.PGDSN, cfg.PGMaxConns)
	if err != nil {
		return nil, err
	}

	redisClient, err := cache.New(ctx, cfg.RedisAddr, cfg.RedisDB)
	if err != nil {
		logger.Warn("redis unavailable, metrics cache disabled", slog.Any("error", err))
		redisClient = nil
	}

	ledger, mode, err := agency.NewLedger(ctx, cfg.Ledger(), pool, logger)
	if err != nil {
		pool.Close()
		if redisClient != nil {
			_ = redisClient.Close()
		}
		return nil, err
	}
	logger.Info("ledger provider selected", slog.String("mode", string(mode)))

	repo := agency.NewRepository(pool)
	metricsCfg := cfg.MetricsConfig()
	metricsCfg.Logger = logger
	svc := metrics.NewService(repo, ledger, metrics.NewCache(redisClient, cfg.MetricsCacheTTL), metricsCfg)

	return &Services{
		Pool:       pool,
		Redis:      redisClient,
		Repository: repo,
		Ledger:     ledger,
		LedgerMode: mode,
		Metrics:    svc,
	}, nil
}

// Close releases the pool and the Redis client.
func (s *Services) Close() {
	if s == nil {
		return
	}
	if s.Redis != nil {
		_ = s.Redis.Close()
	}
	if s.Pool != nil {
		s.Pool.Close()
	}
}
