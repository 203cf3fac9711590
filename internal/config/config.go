// Package config provides configuration management functionality.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/aristath/foresight/internal/utils"
	"github.com/joho/godotenv"
)

// Config holds application configuration
type Config struct {
	DataDir  string // Base directory for all databases (always absolute)
	LogLevel string
	Port     int
	DevMode  bool
	// CORSOrigins lists the origins allowed to call the API; empty allows all
	CORSOrigins []string

	MarketSymbol        string
	RiskFreeRate        float64
	AssumedMarketReturn float64
	HorizonDays         int
	LookbackDays        int

	BacktestWorkers int
	BacktestTimeout time.Duration

	MonitorWindow time.Duration

	// MarketDataURL enables the HTTP data client; bars are read from the
	// local history database when empty.
	MarketDataURL    string
	MarketDataAPIKey string
	MarketDataRPS    float64

	ResultsRetentionDays int
	BarRetentionDays     int // 0 keeps bars forever

	Schedules Schedules
}

// Schedules are the cron expressions of the background jobs (seconds first).
// An empty expression disables the job.
type Schedules struct {
	MonitorSweep string
	Retention    string
	MarkToMarket string
	Sync         string
	Train        string
}

// Load reads configuration from environment variables
func Load() (*Config, error) {
	// Load .env file if it exists
	_ = godotenv.Load()

	dataDir := getEnv("DATA_DIR", "./data")
	absDataDir, err := filepath.Abs(dataDir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve data directory path: %w", err)
	}
	if err := os.MkdirAll(absDataDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	cfg := &Config{
		DataDir:     absDataDir,
		Port:        getEnvAsInt("PORT", 8001),
		DevMode:     getEnvAsBool("DEV_MODE", false),
		LogLevel:    getEnv("LOG_LEVEL", "info"),
		CORSOrigins: getEnvAsList("CORS_ORIGINS"),

		MarketSymbol:        getEnv("MARKET_SYMBOL", "SPY"),
		RiskFreeRate:        getEnvAsFloat("RISK_FREE_RATE", 0.02),
		AssumedMarketReturn: getEnvAsFloat("ASSUMED_MARKET_RETURN", 0.01),
		HorizonDays:         getEnvAsInt("HORIZON_DAYS", 5),
		LookbackDays:        getEnvAsInt("LOOKBACK_DAYS", 365),

		BacktestWorkers: getEnvAsInt("BACKTEST_WORKERS", 4),
		BacktestTimeout: getEnvAsDuration("BACKTEST_TIMEOUT", 10*time.Minute),

		MonitorWindow: getEnvAsDuration("MONITOR_WINDOW", 30*24*time.Hour),

		MarketDataURL:    strings.TrimRight(getEnv("MARKET_DATA_URL", ""), "/"),
		MarketDataAPIKey: getEnv("MARKET_DATA_API_KEY", ""),
		MarketDataRPS:    getEnvAsFloat("MARKET_DATA_RPS", 5),

		ResultsRetentionDays: getEnvAsInt("RESULTS_RETENTION_DAYS", 90),
		BarRetentionDays:     getEnvAsInt("BAR_RETENTION_DAYS", 0),

		Schedules: Schedules{
			MonitorSweep: getEnv("SCHEDULE_MONITOR", "0 0 * * * *"),
			Retention:    getEnv("SCHEDULE_RETENTION", "0 30 3 * * *"),
			MarkToMarket: getEnv("SCHEDULE_MARK", "0 0 22 * * 1-5"),
			Sync:         getEnv("SCHEDULE_SYNC", "0 30 21 * * 1-5"),
			Train:        getEnv("SCHEDULE_TRAIN", "0 0 4 * * 6"),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks value ranges
func (c *Config) Validate() error {
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("invalid PORT %d", c.Port)
	}
	if c.MarketSymbol == "" {
		return fmt.Errorf("MARKET_SYMBOL is required")
	}
	if c.BacktestWorkers < 1 {
		return fmt.Errorf("BACKTEST_WORKERS must be at least 1, got %d", c.BacktestWorkers)
	}
	if c.HorizonDays < 1 {
		return fmt.Errorf("HORIZON_DAYS must be at least 1, got %d", c.HorizonDays)
	}
	if c.LookbackDays < 1 {
		return fmt.Errorf("LOOKBACK_DAYS must be at least 1, got %d", c.LookbackDays)
	}
	if c.MonitorWindow <= 0 {
		return fmt.Errorf("MONITOR_WINDOW must be positive")
	}
	if c.MarketDataRPS < 0 {
		return fmt.Errorf("MARKET_DATA_RPS must not be negative")
	}
	if c.ResultsRetentionDays < 0 || c.BarRetentionDays < 0 {
		return fmt.Errorf("retention days must not be negative")
	}
	return nil
}

// DatabasePath returns the file path of a named database under DataDir
func (c *Config) DatabasePath(name string) string {
	return filepath.Join(c.DataDir, name+".db")
}

// Helper functions
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return defaultValue
}

// getEnvAsDuration accepts Go durations ("90s", "12h") and bare day counts ("30")
func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	if d, err := time.ParseDuration(value); err == nil {
		return d
	}
	if days, err := strconv.Atoi(value); err == nil {
		return time.Duration(days) * 24 * time.Hour
	}
	return defaultValue
}

func getEnvAsList(key string) []string {
	return utils.ParseCSV(os.Getenv(key))
}
