// Package domain provides the core models shared by the forecasting,
// optimisation and backtesting modules.
package domain

import (
	"math"
	"sort"
	"time"
)

// InstrumentCategory groups securities for fee and slippage lookup
type InstrumentCategory string

const (
	InstrumentEquity InstrumentCategory = "equity"
	InstrumentBond   InstrumentCategory = "bond"
	InstrumentETF    InstrumentCategory = "etf"
	InstrumentOption InstrumentCategory = "option"
)

// TransactionType represents the kind of ledger entry
type TransactionType string

const (
	TransactionBuy      TransactionType = "BUY"
	TransactionSell     TransactionType = "SELL"
	TransactionDividend TransactionType = "DIVIDEND"
	TransactionSplit    TransactionType = "SPLIT"
	TransactionFee      TransactionType = "FEE"
)

// SecurityInfo carries the classification tags of a security
type SecurityInfo struct {
	Symbol     string             `json:"symbol" yaml:"symbol"`
	AssetClass string             `json:"asset_class" yaml:"asset_class"`
	Sector     string             `json:"sector,omitempty" yaml:"sector"`
	Region     string             `json:"region,omitempty" yaml:"region"`
	MarketCap  string             `json:"market_cap,omitempty" yaml:"market_cap"`
	Style      string             `json:"style,omitempty" yaml:"style"`
	Instrument InstrumentCategory `json:"instrument,omitempty" yaml:"instrument"`
}

// PricePoint is one dated observation in a position's price history
type PricePoint struct {
	Date  time.Time `json:"date"`
	Price float64   `json:"price"`
}

// Position represents a holding. Quantity never goes negative; a position is
// removed from its portfolio when quantity reaches zero.
type Position struct {
	SecurityInfo
	AcquiredAt   time.Time    `json:"acquired_at"`
	PriceHistory []PricePoint `json:"price_history,omitempty"`
	Quantity     float64      `json:"quantity"`
	AverageCost  float64      `json:"average_cost"`
	CurrentPrice float64      `json:"current_price"`
	Weight       float64      `json:"weight"`
}

// MarketValue is quantity times current price
func (p Position) MarketValue() float64 {
	return p.Quantity * p.CurrentPrice
}

// UnrealizedGain is market value minus cost basis
func (p Position) UnrealizedGain() float64 {
	return p.Quantity * (p.CurrentPrice - p.AverageCost)
}

// Prices returns the price history values in chronological order
func (p Position) Prices() []float64 {
	out := make([]float64, len(p.PriceHistory))
	for i, pt := range p.PriceHistory {
		out[i] = pt.Price
	}
	return out
}

// Transaction is an immutable ledger entry. For DIVIDEND, Quantity × Price is
// the cash amount; for SPLIT, Quantity is the split ratio.
type Transaction struct {
	Timestamp time.Time       `json:"timestamp"`
	ID        string          `json:"id"`
	Type      TransactionType `json:"type"`
	Symbol    string          `json:"symbol"`
	Quantity  float64         `json:"quantity"`
	Price     float64         `json:"price"`
	Fee       float64         `json:"fee"`
}

// Notional is quantity times price
func (t Transaction) Notional() float64 {
	return t.Quantity * t.Price
}

// PortfolioMetrics caches derived risk and performance figures
type PortfolioMetrics struct {
	Volatility     float64 `json:"volatility"`
	RiskLevel      float64 `json:"risk_level"`
	ExpectedReturn float64 `json:"expected_return"`
	SharpeRatio    float64 `json:"sharpe_ratio"`
	MaxDrawdown    float64 `json:"max_drawdown"`
}

// Portfolio is owned by the service or simulation layer and mutated only
// through ApplyTransaction and price updates.
type Portfolio struct {
	UpdatedAt    time.Time               `json:"updated_at"`
	Catalog      map[string]SecurityInfo `json:"catalog,omitempty"`
	ID           string                  `json:"id"`
	Positions    []Position              `json:"positions"`
	Transactions []Transaction           `json:"transactions"`
	Cash         float64                 `json:"cash"`
	TotalValue   float64                 `json:"total_value"`
	Metrics      PortfolioMetrics        `json:"metrics"`
}

// NewPortfolio creates an empty portfolio holding only cash
func NewPortfolio(id string, cash float64) *Portfolio {
	p := &Portfolio{ID: id, Cash: cash, Catalog: map[string]SecurityInfo{}}
	p.Revalue()
	return p
}

// Position returns a pointer to the held position for symbol, or nil
func (p *Portfolio) Position(symbol string) *Position {
	for i := range p.Positions {
		if p.Positions[i].Symbol == symbol {
			return &p.Positions[i]
		}
	}
	return nil
}

// Symbols returns the held symbols in sorted order
func (p *Portfolio) Symbols() []string {
	out := make([]string, 0, len(p.Positions))
	for _, pos := range p.Positions {
		out = append(out, pos.Symbol)
	}
	sort.Strings(out)
	return out
}

// ApplyTransaction validates tx, applies it to positions and cash, appends it
// to the transaction history and revalues the portfolio. Fill prices only mark
// a position that has no price yet; UpdatePrice owns the mark.
func (p *Portfolio) ApplyTransaction(tx Transaction) error {
	if tx.Type != TransactionFee && tx.Symbol == "" {
		return NewValidationError(ErrEmptySymbol, "symbol", "transaction %s has no symbol", tx.Type)
	}
	if tx.Quantity < 0 || tx.Price < 0 || tx.Fee < 0 {
		return NewValidationError(ErrInvalidTransaction, "quantity", "negative quantity, price or fee")
	}

	switch tx.Type {
	case TransactionBuy:
		pos := p.Position(tx.Symbol)
		if pos == nil {
			info := p.Catalog[tx.Symbol]
			info.Symbol = tx.Symbol
			p.Positions = append(p.Positions, Position{SecurityInfo: info, AcquiredAt: tx.Timestamp})
			pos = &p.Positions[len(p.Positions)-1]
		}
		newQty := pos.Quantity + tx.Quantity
		if newQty > 0 {
			pos.AverageCost = (pos.Quantity*pos.AverageCost + tx.Quantity*tx.Price) / newQty
		}
		pos.Quantity = newQty
		if pos.CurrentPrice <= 0 {
			pos.CurrentPrice = tx.Price
		}
		p.Cash -= tx.Notional() + tx.Fee

	case TransactionSell:
		pos := p.Position(tx.Symbol)
		if pos == nil {
			return NewValidationError(ErrInvalidTransaction, "symbol", "no position in %s", tx.Symbol)
		}
		if tx.Quantity > pos.Quantity+1e-9 {
			return NewValidationError(ErrInvalidTransaction, "quantity",
				"cannot sell %.6f %s, holding %.6f", tx.Quantity, tx.Symbol, pos.Quantity)
		}
		pos.Quantity = math.Max(0, pos.Quantity-tx.Quantity)
		p.Cash += tx.Notional() - tx.Fee

	case TransactionDividend:
		p.Cash += tx.Notional() - tx.Fee

	case TransactionSplit:
		pos := p.Position(tx.Symbol)
		if pos == nil || tx.Quantity <= 0 {
			return NewValidationError(ErrInvalidTransaction, "quantity", "invalid split for %s", tx.Symbol)
		}
		pos.Quantity *= tx.Quantity
		pos.AverageCost /= tx.Quantity
		pos.CurrentPrice /= tx.Quantity
		for i := range pos.PriceHistory {
			pos.PriceHistory[i].Price /= tx.Quantity
		}

	case TransactionFee:
		p.Cash -= tx.Fee

	default:
		return NewValidationError(ErrInvalidTransaction, "type", "unknown transaction type %q", tx.Type)
	}

	p.Transactions = append(p.Transactions, tx)
	p.removeEmptyPositions()
	p.UpdatedAt = tx.Timestamp
	p.Revalue()
	return nil
}

// UpdatePrice records a dated price for a held symbol. Unknown symbols are ignored.
func (p *Portfolio) UpdatePrice(symbol string, date time.Time, price float64) {
	pos := p.Position(symbol)
	if pos == nil {
		return
	}
	pos.CurrentPrice = price
	pos.PriceHistory = append(pos.PriceHistory, PricePoint{Date: date, Price: price})
}

// TrimHistory keeps at most n price points per position
func (p *Portfolio) TrimHistory(n int) {
	for i := range p.Positions {
		h := p.Positions[i].PriceHistory
		if len(h) > n {
			p.Positions[i].PriceHistory = append([]PricePoint(nil), h[len(h)-n:]...)
		}
	}
}

// Revalue recomputes the total value and every position weight
func (p *Portfolio) Revalue() {
	total := p.Cash
	for _, pos := range p.Positions {
		total += pos.MarketValue()
	}
	p.TotalValue = total
	for i := range p.Positions {
		if total > 0 {
			p.Positions[i].Weight = p.Positions[i].MarketValue() / total
		} else {
			p.Positions[i].Weight = 0
		}
	}
}

// InvestedValue is total value minus cash
func (p *Portfolio) InvestedValue() float64 {
	return p.TotalValue - p.Cash
}

// Weights returns position weights keyed by symbol
func (p *Portfolio) Weights() map[string]float64 {
	out := make(map[string]float64, len(p.Positions))
	for _, pos := range p.Positions {
		out[pos.Symbol] = pos.Weight
	}
	return out
}

// AssetClassWeights sums position weights per asset class, normalised over
// the invested part of the portfolio.
func (p *Portfolio) AssetClassWeights() map[string]float64 {
	out := map[string]float64{}
	invested := 0.0
	for _, pos := range p.Positions {
		invested += pos.Weight
	}
	if invested == 0 {
		return out
	}
	for _, pos := range p.Positions {
		out[pos.AssetClassOrDefault()] += pos.Weight / invested
	}
	return out
}

// AssetClassOrDefault returns the asset class tag, falling back to the symbol
func (s SecurityInfo) AssetClassOrDefault() string {
	if s.AssetClass == "" {
		return s.Symbol
	}
	return s.AssetClass
}

// Clone returns a deep copy so simulations never share state
func (p *Portfolio) Clone() *Portfolio {
	if p == nil {
		return nil
	}
	c := *p
	c.Positions = make([]Position, len(p.Positions))
	for i, pos := range p.Positions {
		pos.PriceHistory = append([]PricePoint(nil), pos.PriceHistory...)
		c.Positions[i] = pos
	}
	c.Transactions = append([]Transaction(nil), p.Transactions...)
	c.Catalog = make(map[string]SecurityInfo, len(p.Catalog))
	for k, v := range p.Catalog {
		c.Catalog[k] = v
	}
	return &c
}

// Validate checks the portfolio before it enters numeric computation
func (p *Portfolio) Validate() error {
	if p == nil {
		return NewValidationError(ErrNilPortfolio, "portfolio", "portfolio is required")
	}
	for _, pos := range p.Positions {
		if pos.Symbol == "" {
			return NewValidationError(ErrEmptySymbol, "positions.symbol", "position without symbol in %s", p.ID)
		}
		if pos.Quantity < 0 {
			return NewValidationError(ErrInvalidTransaction, "positions.quantity", "negative quantity for %s", pos.Symbol)
		}
	}
	return nil
}

func (p *Portfolio) removeEmptyPositions() {
	kept := p.Positions[:0]
	for _, pos := range p.Positions {
		if pos.Quantity > 1e-12 {
			kept = append(kept, pos)
		}
	}
	p.Positions = kept
}

// Bar is one OHLCV observation
type Bar struct {
	Date   time.Time `json:"date"`
	Symbol string    `json:"symbol"`
	Open   float64   `json:"open"`
	High   float64   `json:"high"`
	Low    float64   `json:"low"`
	Close  float64   `json:"close"`
	Volume float64   `json:"volume"`
}

// Closes extracts closing prices from bars
func Closes(bars []Bar) []float64 {
	out := make([]float64, len(bars))
	for i, b := range bars {
		out[i] = b.Close
	}
	return out
}

// Volumes extracts volumes from bars
func Volumes(bars []Bar) []float64 {
	out := make([]float64, len(bars))
	for i, b := range bars {
		out[i] = b.Volume
	}
	return out
}
