// Package main is the entry point for the Foresight forecasting service.
// It serves forecasts, portfolio optimisation and backtests over HTTP and
// runs the background jobs that keep model health and history current.
//
// The service uses three databases under DATA_DIR:
//   - history.db: daily bars and economic indicators
//   - portfolio.db: portfolios, transactions and snapshots
//   - backtest.db: persisted backtest runs (cache profile, pruned by age)
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/aristath/foresight/internal/config"
	"github.com/aristath/foresight/internal/di"
	"github.com/aristath/foresight/internal/server"
	"github.com/aristath/foresight/pkg/logger"
)

func main() {
	// Load configuration first to get log level
	cfg, err := config.Load()
	if err != nil {
		fallbackLog := logger.New(logger.Config{
			Level:  "info",
			Pretty: true,
		})
		fallbackLog.Fatal().Err(err).Msg("Failed to load configuration")
	}

	log := logger.New(logger.Config{
		Level:  cfg.LogLevel,
		Pretty: cfg.DevMode,
	})
	logger.SetGlobalLogger(log)

	log.Info().
		Str("data_dir", cfg.DataDir).
		Int("port", cfg.Port).
		Bool("remote_market_data", cfg.MarketDataURL != "").
		Msg("Starting Foresight")

	// Databases, repositories, services and jobs
	container, err := di.Wire(cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to wire dependencies")
	}

	container.Scheduler.Start()
	log.Info().Strs("jobs", container.Scheduler.Jobs()).Msg("Scheduler started")

	srv := server.New(server.Config{
		Log:       log,
		Container: container,
	})

	// Start server in goroutine
	serverErr := make(chan error, 1)
	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	// Wait for interrupt signal or a fatal server error
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case sig := <-quit:
		log.Info().Str("signal", sig.String()).Msg("Shutting down")
	case err := <-serverErr:
		log.Error().Err(err).Msg("HTTP server failed")
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}

	// Stops the scheduler before closing databases
	if err := container.Close(); err != nil {
		log.Error().Err(err).Msg("Failed to close databases")
	}

	log.Info().Msg("Server stopped")
}
