package di

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/aristath/foresight/internal/config"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	return &config.Config{
		DataDir:              t.TempDir(),
		Port:                 8001,
		MarketSymbol:         "IDX",
		BacktestWorkers:      2,
		HorizonDays:          5,
		LookbackDays:         365,
		MonitorWindow:        24 * time.Hour,
		ResultsRetentionDays: 30,
		Schedules: config.Schedules{
			MonitorSweep: "0 0 * * * *",
			Retention:    "0 30 3 * * *",
			MarkToMarket: "0 0 22 * * 1-5",
			Sync:         "0 30 21 * * 1-5",
		},
	}
}

func TestWire(t *testing.T) {
	cfg := testConfig(t)

	container, err := Wire(cfg, zerolog.Nop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = container.Close() })

	assert.Len(t, container.Databases(), 3)
	for _, name := range []string{"history", "portfolio", "backtest"} {
		_, err := os.Stat(filepath.Join(cfg.DataDir, name+".db"))
		assert.NoError(t, err, name)
	}

	assert.NotNil(t, container.HistoryStore)
	assert.Same(t, container.HistoryStore, container.MarketData)
	assert.NotNil(t, container.PortfolioService)
	assert.NotNil(t, container.PlanningService)
	assert.NotNil(t, container.Backtesting)
	assert.NotNil(t, container.Metrics)

	// No remote data source configured
	assert.Nil(t, container.MarketClient)
	assert.Nil(t, container.Syncer)

	require.NotNil(t, container.Scheduler)
	assert.Equal(t, []string{"check_wal_checkpoints", "mark_to_market", "monitor_sweep", "retention", "train"},
		container.Scheduler.Jobs())
}

func TestWire_WithMarketData(t *testing.T) {
	cfg := testConfig(t)
	cfg.MarketDataURL = "http://127.0.0.1:1"
	cfg.MarketDataRPS = 2

	container, err := Wire(cfg, zerolog.Nop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = container.Close() })

	assert.NotNil(t, container.MarketClient)
	assert.NotNil(t, container.Syncer)
	assert.Contains(t, container.Scheduler.Jobs(), "sync")
}

func TestRegisterJobs_InvalidSchedule(t *testing.T) {
	cfg := testConfig(t)
	cfg.Schedules.MonitorSweep = "every now and then"

	_, err := Wire(cfg, zerolog.Nop())
	assert.Error(t, err)
}
