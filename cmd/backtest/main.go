// Package main is the command line front end for offline backtests and
// history synchronisation. It opens the same databases as the server.
package main

import (
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/aristath/foresight/internal/config"
	"github.com/aristath/foresight/internal/di"
	"github.com/aristath/foresight/pkg/logger"
)

const dateLayout = "2006-01-02"

var (
	remoteURL string
	logLevel  string
)

// rootCmd is the base command of the backtest CLI
var rootCmd = &cobra.Command{
	Use:   "backtest",
	Short: "Run portfolio backtests and sync price history",
	Long: `backtest replays forecasting and optimisation over stored history.

Scenario files are YAML; every scenario starts from the default scenario
and only lists the fields it changes. Bars are read from DATA_DIR/history.db,
use 'backtest sync' to fill it from the market data service first.`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&remoteURL, "remote", "", "Market data service URL (overrides MARKET_DATA_URL)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Log level (overrides LOG_LEVEL)")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// openContainer loads configuration, applies flag overrides and wires every
// service. The caller closes the container.
func openContainer() (*di.Container, zerolog.Logger, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, zerolog.Nop(), fmt.Errorf("failed to load configuration: %w", err)
	}
	if remoteURL != "" {
		cfg.MarketDataURL = remoteURL
	}
	if logLevel != "" {
		cfg.LogLevel = logLevel
	}

	log := logger.New(logger.Config{
		Level:  cfg.LogLevel,
		Pretty: true,
		Output: os.Stderr,
	})

	container, err := di.Wire(cfg, log)
	if err != nil {
		return nil, log, fmt.Errorf("failed to wire dependencies: %w", err)
	}
	return container, log, nil
}

// parseDate reads a YYYY-MM-DD flag, falling back to def when empty
func parseDate(name, value, def string) (time.Time, error) {
	if value == "" {
		value = def
	}
	if value == "" {
		return time.Time{}, fmt.Errorf("--%s is required", name)
	}
	t, err := time.Parse(dateLayout, value)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid --%s %q, expected YYYY-MM-DD", name, value)
	}
	return t, nil
}
