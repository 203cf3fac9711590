// Package di provides dependency injection for service initialization.
package di

import (
	"github.com/aristath/foresight/internal/clients/marketdata"
	"github.com/aristath/foresight/internal/config"
	"github.com/aristath/foresight/internal/domain"
	"github.com/aristath/foresight/internal/metrics"
	"github.com/aristath/foresight/internal/modules/allocation"
	"github.com/aristath/foresight/internal/modules/backtesting"
	"github.com/aristath/foresight/internal/modules/ensemble"
	"github.com/aristath/foresight/internal/modules/history"
	"github.com/aristath/foresight/internal/modules/monitoring"
	"github.com/aristath/foresight/internal/modules/optimization"
	"github.com/aristath/foresight/internal/modules/planning"
	"github.com/aristath/foresight/internal/modules/portfolio"
	"github.com/aristath/foresight/internal/modules/prediction"
	"github.com/rs/zerolog"
)

// PredictionConfig maps the service configuration onto the model tunables
func PredictionConfig(cfg *config.Config) prediction.Config {
	pc := prediction.DefaultConfig()
	if cfg.AssumedMarketReturn != 0 {
		pc.AssumedMarketReturn = cfg.AssumedMarketReturn
	}
	return pc
}

// InitializeRepositories creates the stores backed by the open databases
func InitializeRepositories(container *Container, log zerolog.Logger) error {
	container.HistoryStore = history.NewStore(container.HistoryDB.Conn(), log)
	container.MarketData = container.HistoryStore
	container.Economic = container.HistoryStore
	container.PortfolioRepo = portfolio.NewRepository(container.PortfolioDB.Conn(), log)
	container.BacktestRepo = backtesting.NewRepository(container.BacktestDB.Conn(), log)
	return nil
}

// InitializeServices creates every service on top of the repositories
func InitializeServices(container *Container, cfg *config.Config, log zerolog.Logger) error {
	container.Metrics = metrics.NewRegistry()

	if cfg.MarketDataURL != "" {
		clientCfg := marketdata.DefaultConfig(cfg.MarketDataURL)
		clientCfg.APIKey = cfg.MarketDataAPIKey
		clientCfg.RequestsPerSecond = cfg.MarketDataRPS
		container.MarketClient = marketdata.NewClient(clientCfg, log)
		container.Syncer = history.NewSyncer(container.HistoryStore, container.MarketClient, container.MarketClient, log)
	}

	predCfg := PredictionConfig(cfg)
	container.Monitor = monitoring.NewMonitor(cfg.MonitorWindow, log)
	container.Monitor.AddObserver(container.Metrics)
	container.Forecaster = ensemble.NewDefaultService(predCfg, domain.WeightingPerformance, container.Monitor, log)
	container.Optimizer = optimization.NewOptimizer(allocation.DefaultConfig(), log)

	planCfg := planning.DefaultConfig(cfg.MarketSymbol)
	planCfg.LookbackDays = cfg.LookbackDays
	planCfg.HorizonDays = cfg.HorizonDays
	container.PlanningService = planning.NewService(
		container.MarketData,
		container.Economic,
		container.PortfolioRepo,
		container.Forecaster,
		container.Optimizer,
		prediction.FeatureBuilder{ReturnLags: predCfg.ReturnLags},
		planCfg,
		log,
	)

	container.PortfolioService = portfolio.NewPortfolioService(
		container.PortfolioRepo,
		container.MarketData,
		container.HistoryStore,
		log,
	)

	container.Backtesting = backtesting.NewFramework(backtesting.Dependencies{
		Market:        container.MarketData,
		Economic:      container.Economic,
		Snapshots:     container.HistoryStore,
		Prediction:    predCfg,
		Allocation:    allocation.DefaultConfig(),
		MonitorWindow: cfg.MonitorWindow,
	}, cfg.BacktestWorkers, log)
	container.Backtesting.SetStore(container.BacktestRepo)
	container.Backtesting.AddObserver(container.Metrics)

	log.Info().Bool("remote_data", container.MarketClient != nil).Msg("Services initialized")
	return nil
}
