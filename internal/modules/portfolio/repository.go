// Package portfolio persists live portfolios and applies ledger entries to
// them.
package portfolio

import (
	"bytes"
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/aristath/foresight/internal/database"
	"github.com/aristath/foresight/internal/domain"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/vmihailenco/msgpack/v5"
)

// Repository stores portfolio state as a msgpack blob and transactions as
// rows of an append-only ledger. It implements domain.PortfolioRepository.
type Repository struct {
	db  *sql.DB
	log zerolog.Logger
}

// NewRepository creates a portfolio repository
func NewRepository(db *sql.DB, log zerolog.Logger) *Repository {
	return &Repository{db: db, log: log.With().Str("repo", "portfolio").Logger()}
}

var _ domain.PortfolioRepository = (*Repository)(nil)

func encodeState(p *domain.Portfolio) ([]byte, error) {
	state := *p
	state.Transactions = nil
	var buf bytes.Buffer
	enc := msgpack.NewEncoder(&buf)
	enc.SetCustomStructTag("json")
	if err := enc.Encode(&state); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func decodeState(data []byte) (*domain.Portfolio, error) {
	dec := msgpack.NewDecoder(bytes.NewReader(data))
	dec.SetCustomStructTag("json")
	var p domain.Portfolio
	if err := dec.Decode(&p); err != nil {
		return nil, err
	}
	return &p, nil
}

// GetPortfolio loads the portfolio with its full ledger. A missing id is
// ErrDataUnavailable.
func (r *Repository) GetPortfolio(ctx context.Context, id string) (*domain.Portfolio, error) {
	var payload []byte
	err := r.db.QueryRowContext(ctx, `SELECT state FROM portfolios WHERE id = ?`, id).Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("portfolio %s: %w", id, domain.ErrDataUnavailable)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query portfolio: %w", err)
	}
	p, err := decodeState(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to decode portfolio %s: %w", id, err)
	}
	if p.Catalog == nil {
		p.Catalog = map[string]domain.SecurityInfo{}
	}
	if p.Transactions, err = r.ListTransactions(ctx, id, 0); err != nil {
		return nil, err
	}
	return p, nil
}

// SavePortfolio upserts the portfolio state. Transactions are not written;
// use AppendTransaction.
func (r *Repository) SavePortfolio(ctx context.Context, p *domain.Portfolio) error {
	if p == nil || p.ID == "" {
		return domain.NewValidationError(domain.ErrInvalidConfig, "id", "portfolio needs an id")
	}
	payload, err := encodeState(p)
	if err != nil {
		return fmt.Errorf("failed to encode portfolio %s: %w", p.ID, err)
	}
	updated := p.UpdatedAt
	if updated.IsZero() {
		updated = time.Now()
	}
	_, err = r.db.ExecContext(ctx, `
		INSERT INTO portfolios (id, cash, total_value, state, updated_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			cash = excluded.cash,
			total_value = excluded.total_value,
			state = excluded.state,
			updated_at = excluded.updated_at
	`, p.ID, p.Cash, p.TotalValue, payload, updated.Unix())
	if err != nil {
		return fmt.Errorf("failed to save portfolio %s: %w", p.ID, err)
	}
	return nil
}

// AppendTransaction adds tx to the ledger of portfolioID. An empty tx.ID is
// replaced by a random one.
func (r *Repository) AppendTransaction(ctx context.Context, portfolioID string, tx domain.Transaction) error {
	if tx.ID == "" {
		tx.ID = uuid.NewString()
	}
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO transactions (id, portfolio_id, type, symbol, quantity, price, fee, timestamp)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, tx.ID, portfolioID, string(tx.Type), tx.Symbol, tx.Quantity, tx.Price, tx.Fee, tx.Timestamp.UnixNano())
	if err != nil {
		return fmt.Errorf("failed to append transaction to %s: %w", portfolioID, err)
	}
	return nil
}

// ListTransactions returns the ledger oldest first; limit > 0 keeps only the
// most recent entries.
func (r *Repository) ListTransactions(ctx context.Context, portfolioID string, limit int) ([]domain.Transaction, error) {
	query := `
		SELECT id, type, symbol, quantity, price, fee, timestamp FROM (
			SELECT id, type, symbol, quantity, price, fee, timestamp, rowid AS seq
			FROM transactions
			WHERE portfolio_id = ?
			ORDER BY timestamp DESC, seq DESC
			LIMIT ?
		) ORDER BY timestamp ASC, seq ASC`
	if limit <= 0 {
		limit = -1
	}
	rows, err := r.db.QueryContext(ctx, query, portfolioID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query transactions: %w", err)
	}
	defer rows.Close()

	var out []domain.Transaction
	for rows.Next() {
		var tx domain.Transaction
		var kind string
		var ts int64
		if err := rows.Scan(&tx.ID, &kind, &tx.Symbol, &tx.Quantity, &tx.Price, &tx.Fee, &ts); err != nil {
			return nil, fmt.Errorf("failed to scan transaction: %w", err)
		}
		tx.Type = domain.TransactionType(kind)
		tx.Timestamp = time.Unix(0, ts).UTC()
		out = append(out, tx)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating transactions: %w", err)
	}
	return out, nil
}

// ListIDs returns every stored portfolio id
func (r *Repository) ListIDs(ctx context.Context) ([]string, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT id FROM portfolios ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("failed to query portfolios: %w", err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan portfolio id: %w", err)
		}
		out = append(out, id)
	}
	return out, rows.Err()
}

// Delete removes a portfolio and its ledger
func (r *Repository) Delete(ctx context.Context, id string) error {
	return database.WithTransaction(r.db, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `DELETE FROM transactions WHERE portfolio_id = ?`, id); err != nil {
			return fmt.Errorf("failed to delete transactions of %s: %w", id, err)
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM portfolios WHERE id = ?`, id); err != nil {
			return fmt.Errorf("failed to delete portfolio %s: %w", id, err)
		}
		return nil
	})
}
