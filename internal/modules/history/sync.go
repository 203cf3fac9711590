package history

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/aristath/foresight/internal/domain"
	"github.com/aristath/foresight/internal/utils"
	"github.com/rs/zerolog"
)

// DefaultSeedDays is the window fetched for a symbol with no stored bars
const DefaultSeedDays = 3 * 365

// SyncResult summarises one sync run
type SyncResult struct {
	Symbols  int               `json:"symbols"`
	Inserted int               `json:"inserted"`
	Rejected int               `json:"rejected"`
	Failed   map[string]string `json:"failed,omitempty"`
}

// Syncer pulls bars and indicators from a remote provider into the store.
// Only the gap after the latest stored bar is fetched.
type Syncer struct {
	store    *Store
	source   domain.MarketDataProvider
	economic domain.EconomicContextProvider
	seedDays int
	log      zerolog.Logger
}

// NewSyncer creates a syncer. economic may be nil.
func NewSyncer(store *Store, source domain.MarketDataProvider, economic domain.EconomicContextProvider, log zerolog.Logger) *Syncer {
	return &Syncer{
		store:    store,
		source:   source,
		economic: economic,
		seedDays: DefaultSeedDays,
		log:      log.With().Str("service", "history_sync").Logger(),
	}
}

// SyncBars fetches missing bars up to end for every symbol. A symbol that
// fails is recorded in the result and does not stop the others; the error
// return is reserved for context cancellation.
func (s *Syncer) SyncBars(ctx context.Context, symbols []string, end time.Time) (SyncResult, error) {
	defer utils.OperationTimer("sync_bars", s.log)()

	res := SyncResult{Failed: map[string]string{}}
	for _, symbol := range symbols {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		res.Symbols++

		inserted, rejected, err := s.syncSymbol(ctx, symbol, end)
		res.Inserted += inserted
		res.Rejected += rejected
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return res, err
			}
			s.log.Warn().Err(err).Str("symbol", symbol).Msg("Bar sync failed")
			res.Failed[symbol] = err.Error()
		}
	}

	s.log.Info().
		Int("symbols", res.Symbols).
		Int("inserted", res.Inserted).
		Int("rejected", res.Rejected).
		Int("failed", len(res.Failed)).
		Msg("Bar sync complete")
	return res, nil
}

func (s *Syncer) syncSymbol(ctx context.Context, symbol string, end time.Time) (int, int, error) {
	latest, err := s.store.LatestBarDate(ctx, symbol)
	if err != nil {
		return 0, 0, err
	}
	start := end.AddDate(0, 0, -s.seedDays)
	if !latest.IsZero() {
		start = latest.AddDate(0, 0, 1)
	}
	if start.After(end) {
		return 0, 0, nil
	}

	bars, err := s.source.History(ctx, symbol, start, end)
	if errors.Is(err, domain.ErrDataUnavailable) {
		return 0, 0, nil
	}
	if err != nil {
		return 0, 0, fmt.Errorf("failed to fetch bars: %w", err)
	}

	valid := make([]domain.Bar, 0, len(bars))
	for _, b := range bars {
		if reason := ValidateBar(b); reason != "" {
			s.log.Debug().Str("symbol", symbol).Time("date", b.Date).Str("reason", reason).Msg("Rejected bar")
			continue
		}
		b.Symbol = symbol
		valid = append(valid, b)
	}
	if err := s.store.UpsertBars(ctx, valid); err != nil {
		return 0, 0, err
	}
	return len(valid), len(bars) - len(valid), nil
}

// SyncIndicators stores the economic context published for date
func (s *Syncer) SyncIndicators(ctx context.Context, date time.Time) (int, error) {
	if s.economic == nil {
		return 0, nil
	}
	econ, err := s.economic.Context(ctx, date)
	if errors.Is(err, domain.ErrDataUnavailable) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("failed to fetch indicators: %w", err)
	}
	if err := s.store.UpsertIndicators(ctx, date, econ.Indicators); err != nil {
		return 0, err
	}
	return len(econ.Indicators), nil
}

// ValidateBar returns why a bar is unusable, or "" when it is fine
func ValidateBar(b domain.Bar) string {
	switch {
	case b.Close <= 0:
		return "non_positive_close"
	case b.High > 0 && b.Low > 0 && b.High < b.Low:
		return "high_below_low"
	case b.High > 0 && b.High < b.Close:
		return "high_below_close"
	case b.Low > 0 && b.Low > b.Close:
		return "low_above_close"
	case b.Volume < 0:
		return "negative_volume"
	}
	return ""
}
