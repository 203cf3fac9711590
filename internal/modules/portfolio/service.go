package portfolio

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/aristath/foresight/internal/domain"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// DefaultHistoryDays is how much price history MarkToMarket attaches
const DefaultHistoryDays = 365

// Store is the persistence the service needs
type Store interface {
	domain.PortfolioRepository
	ListIDs(ctx context.Context) ([]string, error)
	ListTransactions(ctx context.Context, portfolioID string, limit int) ([]domain.Transaction, error)
}

// SnapshotRecorder keeps end-of-day portfolio state for later backtests
type SnapshotRecorder interface {
	SaveSnapshot(ctx context.Context, snap domain.PortfolioSnapshot) error
}

// Summary aggregates a portfolio by classification tag
type Summary struct {
	ID             string             `json:"id"`
	TotalValue     float64            `json:"total_value"`
	Cash           float64            `json:"cash"`
	Invested       float64            `json:"invested"`
	CashWeight     float64            `json:"cash_weight"`
	UnrealizedGain float64            `json:"unrealized_gain"`
	Positions      int                `json:"positions"`
	ByAssetClass   map[string]float64 `json:"by_asset_class"`
	BySector       map[string]float64 `json:"by_sector"`
	ByRegion       map[string]float64 `json:"by_region"`
	UpdatedAt      time.Time          `json:"updated_at"`
}

// PortfolioService records transactions against stored portfolios and keeps
// their prices current.
//
// Dependencies:
//   - Store: portfolio state and ledger
//   - domain.MarketDataProvider: closes for mark-to-market
//   - SnapshotRecorder: daily snapshots, optional
type PortfolioService struct {
	store       Store
	market      domain.MarketDataProvider
	snapshots   SnapshotRecorder
	historyDays int
	now         func() time.Time
	log         zerolog.Logger
}

// NewPortfolioService creates a portfolio service. market and snapshots may
// be nil, which disables MarkToMarket and snapshot recording respectively.
func NewPortfolioService(store Store, market domain.MarketDataProvider, snapshots SnapshotRecorder, log zerolog.Logger) *PortfolioService {
	return &PortfolioService{
		store:       store,
		market:      market,
		snapshots:   snapshots,
		historyDays: DefaultHistoryDays,
		now:         time.Now,
		log:         log.With().Str("service", "portfolio").Logger(),
	}
}

// Create stores a new cash-only portfolio. An existing id is rejected.
func (s *PortfolioService) Create(ctx context.Context, id string, cash float64, catalog []domain.SecurityInfo) (*domain.Portfolio, error) {
	if id == "" {
		return nil, domain.NewValidationError(domain.ErrInvalidConfig, "id", "portfolio needs an id")
	}
	if cash < 0 {
		return nil, domain.NewValidationError(domain.ErrInvalidConfig, "cash", "must be >= 0, got %.2f", cash)
	}
	_, err := s.store.GetPortfolio(ctx, id)
	switch {
	case err == nil:
		return nil, domain.NewValidationError(domain.ErrInvalidConfig, "id", "portfolio %s already exists", id)
	case !errors.Is(err, domain.ErrDataUnavailable):
		return nil, err
	}

	p := domain.NewPortfolio(id, cash)
	for _, info := range catalog {
		if info.Symbol == "" {
			return nil, domain.NewValidationError(domain.ErrEmptySymbol, "catalog.symbol", "catalog entry without symbol")
		}
		p.Catalog[info.Symbol] = info
	}
	p.UpdatedAt = s.now()
	if err := s.store.SavePortfolio(ctx, p); err != nil {
		return nil, err
	}
	s.log.Info().Str("portfolio", id).Float64("cash", cash).Msg("Portfolio created")
	return p, nil
}

// Get loads a portfolio
func (s *PortfolioService) Get(ctx context.Context, id string) (*domain.Portfolio, error) {
	return s.store.GetPortfolio(ctx, id)
}

// Transactions returns the most recent limit ledger entries, oldest first
func (s *PortfolioService) Transactions(ctx context.Context, id string, limit int) ([]domain.Transaction, error) {
	if _, err := s.store.GetPortfolio(ctx, id); err != nil {
		return nil, err
	}
	return s.store.ListTransactions(ctx, id, limit)
}

// RecordTransaction applies tx to the stored portfolio, appends it to the
// ledger and saves the new state. A rejected transaction leaves both
// untouched.
func (s *PortfolioService) RecordTransaction(ctx context.Context, id string, tx domain.Transaction) (*domain.Portfolio, error) {
	p, err := s.store.GetPortfolio(ctx, id)
	if err != nil {
		return nil, err
	}
	if tx.Timestamp.IsZero() {
		tx.Timestamp = s.now()
	}
	if tx.ID == "" {
		tx.ID = uuid.NewString()
	}

	next := p.Clone()
	if err := next.ApplyTransaction(tx); err != nil {
		return nil, err
	}
	if err := s.store.AppendTransaction(ctx, id, tx); err != nil {
		return nil, err
	}
	if err := s.store.SavePortfolio(ctx, next); err != nil {
		return nil, fmt.Errorf("transaction %s recorded but state not saved: %w", tx.ID, err)
	}

	s.log.Debug().
		Str("portfolio", id).
		Str("type", string(tx.Type)).
		Str("symbol", tx.Symbol).
		Float64("quantity", tx.Quantity).
		Msg("Transaction recorded")
	return next, nil
}

// MarkToMarket refreshes every position from market history up to date,
// saves the portfolio and records a snapshot. Symbols without bars keep
// their previous price.
func (s *PortfolioService) MarkToMarket(ctx context.Context, id string, date time.Time) (*domain.Portfolio, error) {
	if s.market == nil {
		return nil, domain.NewValidationError(domain.ErrInvalidConfig, "market", "no market data provider configured")
	}
	p, err := s.store.GetPortfolio(ctx, id)
	if err != nil {
		return nil, err
	}

	from := date.AddDate(0, 0, -s.historyDays)
	for i := range p.Positions {
		pos := &p.Positions[i]
		bars, err := s.market.History(ctx, pos.Symbol, from, date)
		if err != nil && !errors.Is(err, domain.ErrDataUnavailable) {
			return nil, fmt.Errorf("failed to load history of %s: %w", pos.Symbol, err)
		}
		if len(bars) == 0 {
			s.log.Warn().Str("symbol", pos.Symbol).Msg("No bars, keeping previous price")
			continue
		}
		pos.PriceHistory = pos.PriceHistory[:0]
		for _, b := range bars {
			pos.PriceHistory = append(pos.PriceHistory, domain.PricePoint{Date: b.Date, Price: b.Close})
		}
		pos.CurrentPrice = bars[len(bars)-1].Close
	}
	p.Revalue()
	p.UpdatedAt = s.now()

	if err := s.store.SavePortfolio(ctx, p); err != nil {
		return nil, err
	}
	if s.snapshots != nil {
		if err := s.snapshots.SaveSnapshot(ctx, domain.PortfolioSnapshot{
			Date:        date,
			PortfolioID: p.ID,
			Positions:   p.Positions,
			Cash:        p.Cash,
			TotalValue:  p.TotalValue,
		}); err != nil {
			return nil, fmt.Errorf("failed to record snapshot of %s: %w", id, err)
		}
	}
	return p, nil
}

// MarkAll marks every stored portfolio. Failures are logged and counted;
// the first one is returned after all portfolios were attempted.
func (s *PortfolioService) MarkAll(ctx context.Context, date time.Time) (int, error) {
	ids, err := s.store.ListIDs(ctx)
	if err != nil {
		return 0, err
	}
	var firstErr error
	marked := 0
	for _, id := range ids {
		if ctx.Err() != nil {
			return marked, ctx.Err()
		}
		if _, err := s.MarkToMarket(ctx, id, date); err != nil {
			s.log.Error().Err(err).Str("portfolio", id).Msg("Failed to mark portfolio")
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		marked++
	}
	return marked, firstErr
}

// Summarize aggregates position values by asset class, sector and region as
// shares of total value.
func Summarize(p *domain.Portfolio) Summary {
	sum := Summary{
		ID:           p.ID,
		TotalValue:   p.TotalValue,
		Cash:         p.Cash,
		Invested:     p.InvestedValue(),
		Positions:    len(p.Positions),
		ByAssetClass: map[string]float64{},
		BySector:     map[string]float64{},
		ByRegion:     map[string]float64{},
		UpdatedAt:    p.UpdatedAt,
	}
	if p.TotalValue > 0 {
		sum.CashWeight = p.Cash / p.TotalValue
	}
	for _, pos := range p.Positions {
		sum.UnrealizedGain += pos.UnrealizedGain()
		sum.ByAssetClass[pos.AssetClassOrDefault()] += pos.Weight
		sum.BySector[orUnknown(pos.Sector)] += pos.Weight
		sum.ByRegion[orUnknown(pos.Region)] += pos.Weight
	}
	return sum
}

func orUnknown(tag string) string {
	if tag == "" {
		return "unknown"
	}
	return tag
}
