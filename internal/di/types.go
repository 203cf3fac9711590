/**
 * Package di provides dependency injection type definitions.
 *
 * This package defines the Container type which holds all application dependencies.
 * The Container is the single source of truth for all service instances and is
 * passed to the server and the CLI.
 */
package di

import (
	"github.com/aristath/foresight/internal/clients/marketdata"
	"github.com/aristath/foresight/internal/config"
	"github.com/aristath/foresight/internal/database"
	"github.com/aristath/foresight/internal/domain"
	"github.com/aristath/foresight/internal/metrics"
	"github.com/aristath/foresight/internal/modules/backtesting"
	"github.com/aristath/foresight/internal/modules/ensemble"
	"github.com/aristath/foresight/internal/modules/history"
	"github.com/aristath/foresight/internal/modules/monitoring"
	"github.com/aristath/foresight/internal/modules/optimization"
	"github.com/aristath/foresight/internal/modules/planning"
	"github.com/aristath/foresight/internal/modules/portfolio"
	"github.com/aristath/foresight/internal/scheduler"
)

// Container holds all application dependencies
type Container struct {
	Config *config.Config

	// Databases
	HistoryDB   *database.DB // bars, indicators, portfolio snapshots
	PortfolioDB *database.DB // live portfolios and their ledger
	BacktestDB  *database.DB // stored backtest runs

	// Data sources. MarketData and Economic point at the history store; the
	// HTTP client only feeds the store through the syncer.
	HistoryStore *history.Store
	MarketClient *marketdata.Client // nil without MARKET_DATA_URL
	Syncer       *history.Syncer    // nil without MARKET_DATA_URL
	MarketData   domain.MarketDataProvider
	Economic     domain.EconomicContextProvider

	// Repositories
	PortfolioRepo *portfolio.Repository
	BacktestRepo  *backtesting.Repository

	// Services
	Monitor          *monitoring.Monitor
	Forecaster       *ensemble.Service
	Optimizer        *optimization.Optimizer
	PlanningService  *planning.Service
	PortfolioService *portfolio.PortfolioService
	Backtesting      *backtesting.Framework

	Metrics   *metrics.Registry
	Scheduler *scheduler.Scheduler
}

// Databases lists every open database, skipping nil ones
func (c *Container) Databases() []*database.DB {
	var out []*database.DB
	for _, db := range []*database.DB{c.HistoryDB, c.PortfolioDB, c.BacktestDB} {
		if db != nil {
			out = append(out, db)
		}
	}
	return out
}

// Close stops the scheduler and closes every database
func (c *Container) Close() error {
	if c.Scheduler != nil {
		c.Scheduler.Stop()
	}
	var firstErr error
	for _, db := range c.Databases() {
		if err := db.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
