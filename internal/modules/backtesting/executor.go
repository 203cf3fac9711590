package backtesting

import (
	"fmt"
	"math"
	"time"

	"github.com/aristath/foresight/internal/domain"
	"github.com/aristath/foresight/internal/modules/costs"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

// quantityPlaces is the precision fractional share quantities are cut to
const quantityPlaces = 6

// Trade is one executed fill
type Trade struct {
	Date        time.Time        `json:"date"`
	ID          string           `json:"id"`
	Symbol      string           `json:"symbol"`
	Side        domain.TradeSide `json:"side"`
	Quantity    float64          `json:"quantity"`
	Price       float64          `json:"price"`
	Notional    float64          `json:"notional"`
	Fee         float64          `json:"fee"`
	RealizedPnL float64          `json:"realized_pnl"`
}

// Executor turns rebalancing actions into ledger transactions at the day's
// close, charging slippage on the fill price plus fee, impact and commission.
type Executor struct {
	profile  domain.TransactionCostProfile
	minTrade float64
	scenario string
	log      zerolog.Logger
}

// NewExecutor creates an executor. Trades below minTrade are dropped.
func NewExecutor(scenario string, profile domain.TransactionCostProfile, minTrade float64, log zerolog.Logger) *Executor {
	return &Executor{
		profile:  profile,
		minTrade: minTrade,
		scenario: scenario,
		log:      log.With().Str("component", "trade_executor").Str("scenario", scenario).Logger(),
	}
}

// Execute fills sells before buys so sale proceeds fund purchases. Actions on
// symbols without a price for the day are skipped.
func (e *Executor) Execute(p *domain.Portfolio, actions []domain.Action, closes map[string]float64, date time.Time) ([]Trade, error) {
	var trades []Trade
	for _, side := range []domain.TradeSide{domain.SideSell, domain.SideBuy} {
		for _, a := range actions {
			if a.Side != side {
				continue
			}
			price, ok := closes[a.Key]
			if !ok || price <= 0 {
				e.log.Debug().Str("symbol", a.Key).Msg("No close for action, skipping")
				continue
			}
			trade, ok, err := e.fill(p, a, price, date, len(trades))
			if err != nil {
				return trades, err
			}
			if ok {
				trades = append(trades, trade)
			}
		}
	}
	return trades, nil
}

func (e *Executor) fill(p *domain.Portfolio, a domain.Action, closePrice float64, date time.Time, seq int) (Trade, bool, error) {
	cat := costs.Category(p, a.Key)
	sched := e.profile.Schedule(cat)
	amount := math.Abs(a.EstimatedAmount)

	var price, qty float64
	switch a.Side {
	case domain.SideSell:
		pos := p.Position(a.Key)
		if pos == nil {
			return Trade{}, false, nil
		}
		price = roundPrice(closePrice * (1 - sched.SlippageRate))
		qty = math.Min(amount/price, pos.Quantity)
	case domain.SideBuy:
		price = roundPrice(closePrice * (1 + sched.SlippageRate))
		rate := sched.FeeRate + sched.MarketImpactRate*e.profile.ImpactMultiplier(amount)
		// one cent absorbs fee rounding
		affordable := (p.Cash - e.profile.CommissionPerTrade - 0.01) / (1 + rate)
		qty = math.Min(amount, affordable) / price
	default:
		return Trade{}, false, fmt.Errorf("unknown trade side %q: %w", a.Side, domain.ErrInvalidTransaction)
	}

	qty = truncateQuantity(qty)
	notional := roundCents(qty * price)
	if qty <= 0 || notional < e.minTrade {
		return Trade{}, false, nil
	}
	fee := e.fee(sched, notional)
	if a.Side == domain.SideBuy && notional+fee > p.Cash {
		return Trade{}, false, nil
	}

	trade := Trade{
		Date:     date,
		ID:       tradeID(e.scenario, date, a.Key, a.Side, seq),
		Symbol:   a.Key,
		Side:     a.Side,
		Quantity: qty,
		Price:    price,
		Notional: notional,
		Fee:      fee,
	}
	txType := domain.TransactionBuy
	if a.Side == domain.SideSell {
		txType = domain.TransactionSell
		trade.RealizedPnL = roundCents((price-p.Position(a.Key).AverageCost)*qty - fee)
	}

	tx := domain.Transaction{
		Timestamp: date,
		ID:        trade.ID,
		Type:      txType,
		Symbol:    a.Key,
		Quantity:  qty,
		Price:     price,
		Fee:       fee,
	}
	if err := p.ApplyTransaction(tx); err != nil {
		return Trade{}, false, fmt.Errorf("failed to apply %s %s: %w", a.Side, a.Key, err)
	}
	return trade, true, nil
}

// fee is the proportional fee plus bucketed market impact plus the fixed
// commission, rounded to cents.
func (e *Executor) fee(sched domain.FeeSchedule, notional float64) float64 {
	rate := sched.FeeRate + sched.MarketImpactRate*e.profile.ImpactMultiplier(notional)
	return roundCents(notional*rate + e.profile.CommissionPerTrade)
}

// tradeID is stable across runs of the same scenario
func tradeID(scenario string, date time.Time, symbol string, side domain.TradeSide, seq int) string {
	key := fmt.Sprintf("%s|%s|%s|%s|%d", scenario, date.Format("2006-01-02"), symbol, side, seq)
	return uuid.NewSHA1(uuid.NameSpaceOID, []byte(key)).String()
}

func roundCents(v float64) float64 {
	return decimal.NewFromFloat(v).Round(2).InexactFloat64()
}

func roundPrice(v float64) float64 {
	return decimal.NewFromFloat(v).Round(4).InexactFloat64()
}

func truncateQuantity(v float64) float64 {
	return decimal.NewFromFloat(v).Truncate(quantityPlaces).InexactFloat64()
}
