// Package di provides dependency injection for database connections.
package di

import (
	"fmt"

	"github.com/aristath/foresight/internal/config"
	"github.com/aristath/foresight/internal/database"
	"github.com/rs/zerolog"
)

// InitializeDatabases opens the three databases and applies their schemas
func InitializeDatabases(cfg *config.Config, log zerolog.Logger) (*Container, error) {
	container := &Container{Config: cfg}

	defs := []struct {
		name    string
		profile database.DatabaseProfile
		target  **database.DB
	}{
		// history.db - bars, economic indicators, portfolio snapshots
		{database.NameHistory, database.ProfileStandard, &container.HistoryDB},
		// portfolio.db - live portfolios and their ledger
		{database.NamePortfolio, database.ProfileLedger, &container.PortfolioDB},
		// backtest.db - stored backtest runs, regenerable
		{database.NameBacktest, database.ProfileCache, &container.BacktestDB},
	}

	for _, def := range defs {
		db, err := database.New(database.Config{
			Path:    cfg.DatabasePath(def.name),
			Profile: def.profile,
			Name:    def.name,
		})
		if err != nil {
			_ = container.Close()
			return nil, fmt.Errorf("failed to initialize %s database: %w", def.name, err)
		}
		*def.target = db

		if err := db.Migrate(); err != nil {
			_ = container.Close()
			return nil, fmt.Errorf("failed to apply schema for %s database: %w", def.name, err)
		}
		log.Debug().Str("database", def.name).Str("path", db.Path()).Msg("Database ready")
	}

	log.Info().Msg("All databases initialized")
	return container, nil
}
