package backtesting

import (
	"bytes"
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/aristath/foresight/internal/domain"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/vmihailenco/msgpack/v5"
)

// RunInfo is the listing view of a stored run
type RunInfo struct {
	ID            string    `json:"id"`
	CreatedAt     time.Time `json:"created_at"`
	Start         time.Time `json:"start"`
	End           time.Time `json:"end"`
	Scenarios     int       `json:"scenarios"`
	AverageReturn float64   `json:"average_return"`
	MaxDrawdown   float64   `json:"max_drawdown"`
}

// Repository stores backtest results in the backtest database
type Repository struct {
	db  *sql.DB
	now func() time.Time
	log zerolog.Logger
}

// NewRepository creates a result repository
func NewRepository(db *sql.DB, log zerolog.Logger) *Repository {
	return &Repository{
		db:  db,
		now: time.Now,
		log: log.With().Str("repo", "backtest_results").Logger(),
	}
}

func encodeResult(r *Result) ([]byte, error) {
	var buf bytes.Buffer
	enc := msgpack.NewEncoder(&buf)
	enc.SetCustomStructTag("json")
	enc.UseCompactInts(true)
	if err := enc.Encode(r); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func decodeResult(data []byte) (*Result, error) {
	dec := msgpack.NewDecoder(bytes.NewReader(data))
	dec.SetCustomStructTag("json")
	var r Result
	if err := dec.Decode(&r); err != nil {
		return nil, err
	}
	return &r, nil
}

// Save assigns a run id and creation time, then stores the result
func (r *Repository) Save(ctx context.Context, result *Result) error {
	if result == nil {
		return fmt.Errorf("cannot save nil backtest result: %w", domain.ErrInvalidConfig)
	}
	if result.ID == "" {
		result.ID = uuid.NewString()
	}
	if result.CreatedAt.IsZero() {
		result.CreatedAt = r.now().UTC()
	}
	payload, err := encodeResult(result)
	if err != nil {
		return fmt.Errorf("failed to encode backtest result: %w", err)
	}

	_, err = r.db.ExecContext(ctx, `
		INSERT INTO backtest_runs (id, created_at, start_date, end_date, scenarios, average_return, max_drawdown, payload)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET payload = excluded.payload
	`, result.ID, result.CreatedAt.Unix(), result.Start.Unix(), result.End.Unix(), len(result.Scenarios),
		result.Summary.AverageReturn, result.Summary.MaxDrawdown, payload)
	if err != nil {
		return fmt.Errorf("failed to insert backtest run: %w", err)
	}
	r.log.Debug().Str("id", result.ID).Int("bytes", len(payload)).Msg("Backtest result saved")
	return nil
}

// Get loads a run by id
func (r *Repository) Get(ctx context.Context, id string) (*Result, error) {
	var payload []byte
	err := r.db.QueryRowContext(ctx, `SELECT payload FROM backtest_runs WHERE id = ?`, id).Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("backtest run %s: %w", id, domain.ErrDataUnavailable)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query backtest run: %w", err)
	}
	res, err := decodeResult(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to decode backtest run %s: %w", id, err)
	}
	return res, nil
}

// List returns the most recent runs first
func (r *Repository) List(ctx context.Context, limit int) ([]RunInfo, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, created_at, start_date, end_date, scenarios, average_return, max_drawdown
		FROM backtest_runs
		ORDER BY created_at DESC, id
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query backtest runs: %w", err)
	}
	defer rows.Close()

	var out []RunInfo
	for rows.Next() {
		var info RunInfo
		var created, start, end int64
		if err := rows.Scan(&info.ID, &created, &start, &end, &info.Scenarios, &info.AverageReturn, &info.MaxDrawdown); err != nil {
			return nil, fmt.Errorf("failed to scan backtest run: %w", err)
		}
		info.CreatedAt = time.Unix(created, 0).UTC()
		info.Start = time.Unix(start, 0).UTC()
		info.End = time.Unix(end, 0).UTC()
		out = append(out, info)
	}
	return out, rows.Err()
}

// DeleteOlderThan removes runs created before cutoff and reports how many
func (r *Repository) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM backtest_runs WHERE created_at < ?`, cutoff.Unix())
	if err != nil {
		return 0, fmt.Errorf("failed to delete old backtest runs: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to count deleted backtest runs: %w", err)
	}
	return n, nil
}
