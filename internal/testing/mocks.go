package testing

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/aristath/foresight/internal/domain"
)

// MarketData is an in-memory MarketDataProvider. It records the latest date
// requested so tests can assert that nothing read past a cursor.
type MarketData struct {
	mu       sync.RWMutex
	bars     map[string]map[time.Time]domain.Bar
	latest   time.Time
	err      error
	requests int
}

// NewMarketData indexes bars by symbol and date
func NewMarketData(series ...[]domain.Bar) *MarketData {
	m := &MarketData{bars: map[string]map[time.Time]domain.Bar{}}
	for _, bars := range series {
		for _, b := range bars {
			if m.bars[b.Symbol] == nil {
				m.bars[b.Symbol] = map[time.Time]domain.Bar{}
			}
			m.bars[b.Symbol][b.Date] = b
		}
	}
	return m
}

// SetError makes every call fail with err
func (m *MarketData) SetError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.err = err
}

// LatestRequested is the latest date any call asked for
func (m *MarketData) LatestRequested() time.Time {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.latest
}

// Requests counts provider calls
func (m *MarketData) Requests() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.requests
}

func (m *MarketData) observe(d time.Time) {
	m.requests++
	if d.After(m.latest) {
		m.latest = d
	}
}

// Bar implements domain.MarketDataProvider
func (m *MarketData) Bar(_ context.Context, symbol string, date time.Time) (domain.Bar, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.observe(date)
	if m.err != nil {
		return domain.Bar{}, m.err
	}
	b, ok := m.bars[symbol][date]
	if !ok {
		return domain.Bar{}, fmt.Errorf("%s on %s: %w", symbol, date.Format("2006-01-02"), domain.ErrDataUnavailable)
	}
	return b, nil
}

// History implements domain.MarketDataProvider
func (m *MarketData) History(_ context.Context, symbol string, start, end time.Time) ([]domain.Bar, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.observe(end)
	if m.err != nil {
		return nil, m.err
	}
	var out []domain.Bar
	for d, b := range m.bars[symbol] {
		if !d.Before(start) && !d.After(end) {
			out = append(out, b)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date.Before(out[j].Date) })
	return out, nil
}

// EconomicData is an in-memory EconomicContextProvider returning the same
// indicators for every date.
type EconomicData struct {
	Indicators map[string]float64
}

// Context implements domain.EconomicContextProvider
func (e EconomicData) Context(_ context.Context, date time.Time) (domain.EconomicContext, error) {
	if e.Indicators == nil {
		return domain.EconomicContext{}, domain.ErrDataUnavailable
	}
	out := make(map[string]float64, len(e.Indicators))
	for k, v := range e.Indicators {
		out[k] = v
	}
	return domain.EconomicContext{Date: date, Indicators: out}, nil
}

// Snapshots is an in-memory HistoricalPortfolioProvider
type Snapshots map[string][]domain.PortfolioSnapshot

// GetHistoricalPortfolioData implements domain.HistoricalPortfolioProvider
func (s Snapshots) GetHistoricalPortfolioData(_ context.Context, portfolioID string, start, end time.Time) ([]domain.PortfolioSnapshot, error) {
	var out []domain.PortfolioSnapshot
	for _, snap := range s[portfolioID] {
		if !snap.Date.Before(start) && !snap.Date.After(end) {
			out = append(out, snap)
		}
	}
	if len(out) == 0 {
		return nil, domain.ErrDataUnavailable
	}
	return out, nil
}
