package app

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agencyops/agencyops/internal/agency"
	"github.com/agencyops/agencyops/internal/metrics"
)

func TestLoadConfigDefaults(t *testing.T) {
	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.AppAddr)
	assert.Equal(t, 10*time.Minute, cfg.MetricsCacheTTL)
	assert.Equal(t, agency.LedgerAuto, cfg.Ledger())
	assert.Equal(t, metrics.SpreadByMonth, cfg.MetricsConfig().Spread)
	assert.Equal(t, metrics.CapacityWeekly, cfg.MetricsConfig().Capacity)
	assert.False(t, cfg.IsProduction())
}

func TestLoadConfigOverrides(t *testing.T) {
	t.Setenv("APP_ENV", "production")
	t.Setenv("LEDGER_MODE", "Legacy")
	t.Setenv("REVENUE_SPREAD", "day")
	t.Setenv("CAPACITY_RULE", "working_days")
	t.Setenv("METRICS_CACHE_TTL", "90s")

	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.True(t, cfg.IsProduction())
	assert.Equal(t, agency.LedgerLegacy, cfg.Ledger())
	assert.Equal(t, metrics.SpreadByDay, cfg.MetricsConfig().Spread)
	assert.Equal(t, metrics.CapacityWorkingDays, cfg.MetricsConfig().Capacity)
	assert.Equal(t, 90*time.Second, cfg.MetricsCacheTTL)
}

func TestLoadConfigRejectsUnknownRules(t *testing.T) {
	cases := map[string]string{
		"LEDGER_MODE":            "ledgerless",
		"REVENUE_SPREAD":         "quarter",
		"CAPACITY_RULE":          "monthly",
		"WARMUP_TRAILING_MONTHS": "-1",
	}
	for key, value := range cases {
		t.Run(key, func(t *testing.T) {
			t.Setenv(key, value)
			_, err := LoadConfig()
			require.Error(t, err)
			assert.Contains(t, err.Error(), key)
		})
	}
}
