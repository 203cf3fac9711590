// Package history is the SQLite-backed source of market bars, economic
// indicators and portfolio snapshots.
package history

import (
	"bytes"
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/aristath/foresight/internal/database"
	"github.com/aristath/foresight/internal/domain"
	"github.com/rs/zerolog"
	"github.com/vmihailenco/msgpack/v5"
)

// Store implements MarketDataProvider, EconomicContextProvider and
// HistoricalPortfolioProvider over the history database. Dates are stored
// as Unix seconds at UTC midnight.
type Store struct {
	db  *sql.DB
	log zerolog.Logger
}

// NewStore creates a history store
func NewStore(db *sql.DB, log zerolog.Logger) *Store {
	return &Store{db: db, log: log.With().Str("component", "history_store").Logger()}
}

func dayKey(t time.Time) int64 {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC).Unix()
}

func fromDayKey(v int64) time.Time {
	return time.Unix(v, 0).UTC()
}

// Bar returns the bar of symbol on date, ErrDataUnavailable when missing
func (s *Store) Bar(ctx context.Context, symbol string, date time.Time) (domain.Bar, error) {
	b := domain.Bar{Symbol: symbol}
	var day int64
	err := s.db.QueryRowContext(ctx, `
		SELECT date, open, high, low, close, volume
		FROM daily_bars
		WHERE symbol = ? AND date = ?
	`, symbol, dayKey(date)).Scan(&day, &b.Open, &b.High, &b.Low, &b.Close, &b.Volume)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Bar{}, fmt.Errorf("%s on %s: %w", symbol, date.Format("2006-01-02"), domain.ErrDataUnavailable)
	}
	if err != nil {
		return domain.Bar{}, fmt.Errorf("failed to query bar: %w", err)
	}
	b.Date = fromDayKey(day)
	return b, nil
}

// History returns bars of symbol in [start, end], oldest first
func (s *Store) History(ctx context.Context, symbol string, start, end time.Time) ([]domain.Bar, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT date, open, high, low, close, volume
		FROM daily_bars
		WHERE symbol = ? AND date >= ? AND date <= ?
		ORDER BY date ASC
	`, symbol, dayKey(start), dayKey(end))
	if err != nil {
		return nil, fmt.Errorf("failed to query bars: %w", err)
	}
	defer rows.Close()

	var bars []domain.Bar
	for rows.Next() {
		b := domain.Bar{Symbol: symbol}
		var day int64
		if err := rows.Scan(&day, &b.Open, &b.High, &b.Low, &b.Close, &b.Volume); err != nil {
			return nil, fmt.Errorf("failed to scan bar: %w", err)
		}
		b.Date = fromDayKey(day)
		bars = append(bars, b)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating bars: %w", err)
	}
	return bars, nil
}

// UpsertBars inserts or replaces bars in one transaction
func (s *Store) UpsertBars(ctx context.Context, bars []domain.Bar) error {
	if len(bars) == 0 {
		return nil
	}
	err := database.WithTransaction(s.db, func(tx *sql.Tx) error {
		stmt, err := tx.PrepareContext(ctx, `
			INSERT OR REPLACE INTO daily_bars (symbol, date, open, high, low, close, volume)
			VALUES (?, ?, ?, ?, ?, ?, ?)
		`)
		if err != nil {
			return fmt.Errorf("failed to prepare bar insert: %w", err)
		}
		defer stmt.Close()

		for _, b := range bars {
			if b.Symbol == "" {
				return domain.NewValidationError(domain.ErrEmptySymbol, "symbol", "bar on %s has no symbol", b.Date.Format("2006-01-02"))
			}
			if _, err := stmt.ExecContext(ctx, b.Symbol, dayKey(b.Date), b.Open, b.High, b.Low, b.Close, b.Volume); err != nil {
				return fmt.Errorf("failed to insert bar %s %s: %w", b.Symbol, b.Date.Format("2006-01-02"), err)
			}
		}
		return nil
	})
	if err != nil {
		return err
	}
	s.log.Debug().Int("bars", len(bars)).Msg("Bars stored")
	return nil
}

// LatestBarDate returns the most recent stored date of symbol, zero when none
func (s *Store) LatestBarDate(ctx context.Context, symbol string) (time.Time, error) {
	var day sql.NullInt64
	if err := s.db.QueryRowContext(ctx, `SELECT MAX(date) FROM daily_bars WHERE symbol = ?`, symbol).Scan(&day); err != nil {
		return time.Time{}, fmt.Errorf("failed to query latest bar: %w", err)
	}
	if !day.Valid {
		return time.Time{}, nil
	}
	return fromDayKey(day.Int64), nil
}

// Symbols lists every symbol with at least one bar
func (s *Store) Symbols(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT DISTINCT symbol FROM daily_bars ORDER BY symbol`)
	if err != nil {
		return nil, fmt.Errorf("failed to query symbols: %w", err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var sym string
		if err := rows.Scan(&sym); err != nil {
			return nil, fmt.Errorf("failed to scan symbol: %w", err)
		}
		out = append(out, sym)
	}
	return out, rows.Err()
}

// Context returns the latest value of every indicator published on or
// before date, so monthly and quarterly series carry forward.
func (s *Store) Context(ctx context.Context, date time.Time) (domain.EconomicContext, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT e.name, e.value
		FROM economic_indicators e
		WHERE e.date = (
			SELECT MAX(i.date) FROM economic_indicators i
			WHERE i.name = e.name AND i.date <= ?
		)
	`, dayKey(date))
	if err != nil {
		return domain.EconomicContext{}, fmt.Errorf("failed to query indicators: %w", err)
	}
	defer rows.Close()

	out := domain.EconomicContext{Date: fromDayKey(dayKey(date)), Indicators: map[string]float64{}}
	for rows.Next() {
		var name string
		var value float64
		if err := rows.Scan(&name, &value); err != nil {
			return domain.EconomicContext{}, fmt.Errorf("failed to scan indicator: %w", err)
		}
		out.Indicators[name] = value
	}
	if err := rows.Err(); err != nil {
		return domain.EconomicContext{}, fmt.Errorf("error iterating indicators: %w", err)
	}
	if len(out.Indicators) == 0 {
		return domain.EconomicContext{}, fmt.Errorf("no indicators on or before %s: %w", date.Format("2006-01-02"), domain.ErrDataUnavailable)
	}
	return out, nil
}

// UpsertIndicators records indicator values published on date
func (s *Store) UpsertIndicators(ctx context.Context, date time.Time, values map[string]float64) error {
	return database.WithTransaction(s.db, func(tx *sql.Tx) error {
		for name, v := range values {
			if _, err := tx.ExecContext(ctx, `
				INSERT OR REPLACE INTO economic_indicators (date, name, value) VALUES (?, ?, ?)
			`, dayKey(date), name, v); err != nil {
				return fmt.Errorf("failed to insert indicator %s: %w", name, err)
			}
		}
		return nil
	})
}

func encodePositions(positions []domain.Position) ([]byte, error) {
	var buf bytes.Buffer
	enc := msgpack.NewEncoder(&buf)
	enc.SetCustomStructTag("json")
	if err := enc.Encode(positions); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func decodePositions(data []byte) ([]domain.Position, error) {
	dec := msgpack.NewDecoder(bytes.NewReader(data))
	dec.SetCustomStructTag("json")
	var out []domain.Position
	if err := dec.Decode(&out); err != nil {
		return nil, err
	}
	return out, nil
}

// SaveSnapshot records the end-of-day state of a portfolio. Price history is
// not stored; it is rebuilt from bars.
func (s *Store) SaveSnapshot(ctx context.Context, snap domain.PortfolioSnapshot) error {
	if snap.PortfolioID == "" {
		return domain.NewValidationError(domain.ErrInvalidConfig, "portfolio_id", "snapshot needs a portfolio id")
	}
	positions := make([]domain.Position, len(snap.Positions))
	for i, p := range snap.Positions {
		p.PriceHistory = nil
		positions[i] = p
	}
	payload, err := encodePositions(positions)
	if err != nil {
		return fmt.Errorf("failed to encode snapshot positions: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO portfolio_snapshots (portfolio_id, date, cash, total_value, positions)
		VALUES (?, ?, ?, ?, ?)
	`, snap.PortfolioID, dayKey(snap.Date), snap.Cash, snap.TotalValue, payload)
	if err != nil {
		return fmt.Errorf("failed to insert snapshot: %w", err)
	}
	return nil
}

// GetHistoricalPortfolioData returns daily snapshots in [start, end], oldest
// first. No snapshots at all is ErrDataUnavailable.
func (s *Store) GetHistoricalPortfolioData(ctx context.Context, portfolioID string, start, end time.Time) ([]domain.PortfolioSnapshot, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT date, cash, total_value, positions
		FROM portfolio_snapshots
		WHERE portfolio_id = ? AND date >= ? AND date <= ?
		ORDER BY date ASC
	`, portfolioID, dayKey(start), dayKey(end))
	if err != nil {
		return nil, fmt.Errorf("failed to query snapshots: %w", err)
	}
	defer rows.Close()

	var out []domain.PortfolioSnapshot
	for rows.Next() {
		snap := domain.PortfolioSnapshot{PortfolioID: portfolioID}
		var day int64
		var payload []byte
		if err := rows.Scan(&day, &snap.Cash, &snap.TotalValue, &payload); err != nil {
			return nil, fmt.Errorf("failed to scan snapshot: %w", err)
		}
		snap.Date = fromDayKey(day)
		if snap.Positions, err = decodePositions(payload); err != nil {
			return nil, fmt.Errorf("failed to decode snapshot of %s: %w", snap.Date.Format("2006-01-02"), err)
		}
		out = append(out, snap)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating snapshots: %w", err)
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("no snapshots of %s: %w", portfolioID, domain.ErrDataUnavailable)
	}
	return out, nil
}

// DeleteBarsBefore trims bar history older than cutoff
func (s *Store) DeleteBarsBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM daily_bars WHERE date < ?`, dayKey(cutoff))
	if err != nil {
		return 0, fmt.Errorf("failed to delete old bars: %w", err)
	}
	return res.RowsAffected()
}
