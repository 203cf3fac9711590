package domain

import (
	"context"
	"time"
)

// MarketDataProvider supplies OHLCV bars. Bar returns ErrDataUnavailable when
// the date has no observation (weekends, holidays).
type MarketDataProvider interface {
	Bar(ctx context.Context, symbol string, date time.Time) (Bar, error)
	History(ctx context.Context, symbol string, start, end time.Time) ([]Bar, error)
}

// EconomicContextProvider supplies indicator values for a date
type EconomicContextProvider interface {
	Context(ctx context.Context, date time.Time) (EconomicContext, error)
}

// PortfolioRepository persists live portfolios and their ledger
type PortfolioRepository interface {
	GetPortfolio(ctx context.Context, id string) (*Portfolio, error)
	SavePortfolio(ctx context.Context, p *Portfolio) error
	AppendTransaction(ctx context.Context, portfolioID string, tx Transaction) error
}

// PortfolioSnapshot is one day of historical portfolio state
type PortfolioSnapshot struct {
	Date        time.Time  `json:"date"`
	PortfolioID string     `json:"portfolio_id"`
	Positions   []Position `json:"positions"`
	Cash        float64    `json:"cash"`
	TotalValue  float64    `json:"total_value"`
}

// HistoricalPortfolioProvider returns ordered daily snapshots for backtesting
type HistoricalPortfolioProvider interface {
	GetHistoricalPortfolioData(ctx context.Context, portfolioID string, start, end time.Time) ([]PortfolioSnapshot, error)
}
