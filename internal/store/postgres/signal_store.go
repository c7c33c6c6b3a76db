package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/edgehound/edgehound/internal/domain"
)

// SignalStore persists every emitted trade signal for audit.
type SignalStore struct {
	client *Client
}

var _ domain.SignalStore = (*SignalStore)(nil)

// NewSignalStore creates a SignalStore backed by the given client.
func NewSignalStore(client *Client) *SignalStore {
	return &SignalStore{client: client}
}

// Insert stores one emitted signal.
func (s *SignalStore) Insert(ctx context.Context, sig domain.TradeSignal) error {
	const q = `
		INSERT INTO signals
			(id, ticker, title, side, action, contracts, limit_price, kelly_fraction, size_usd, rationale, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`
	_, err := s.client.pool.Exec(ctx, q,
		sig.ID, sig.Ticker, sig.Title, string(sig.Side), string(sig.Action),
		sig.Contracts, sig.LimitPrice, sig.KellyFraction, sig.SizeUSD,
		sig.Rationale, sig.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("postgres: insert signal %s: %w", sig.ID, err)
	}
	return nil
}

// ListRecent returns signals newest first.
func (s *SignalStore) ListRecent(ctx context.Context, opts domain.ListOpts) ([]domain.TradeSignal, error) {
	limit := opts.Limit
	if limit <= 0 {
		limit = 100
	}
	const q = `
		SELECT id, ticker, title, side, action, contracts, limit_price, kelly_fraction, size_usd, rationale, created_at
		FROM signals
		ORDER BY created_at DESC
		LIMIT $1 OFFSET $2`
	rows, err := s.client.pool.Query(ctx, q, limit, opts.Offset)
	if err != nil {
		return nil, fmt.Errorf("postgres: list signals: %w", err)
	}
	defer rows.Close()
	return scanSignals(rows)
}

// ListBefore returns all signals created strictly before the cutoff, oldest
// first, for archival.
func (s *SignalStore) ListBefore(ctx context.Context, before time.Time) ([]domain.TradeSignal, error) {
	const q = `
		SELECT id, ticker, title, side, action, contracts, limit_price, kelly_fraction, size_usd, rationale, created_at
		FROM signals
		WHERE created_at < $1
		ORDER BY created_at ASC`
	rows, err := s.client.pool.Query(ctx, q, before)
	if err != nil {
		return nil, fmt.Errorf("postgres: list signals before %s: %w", before.Format(time.RFC3339), err)
	}
	defer rows.Close()
	return scanSignals(rows)
}

func scanSignals(rows pgx.Rows) ([]domain.TradeSignal, error) {
	var out []domain.TradeSignal
	for rows.Next() {
		var sig domain.TradeSignal
		var side, action string
		if err := rows.Scan(
			&sig.ID, &sig.Ticker, &sig.Title, &side, &action,
			&sig.Contracts, &sig.LimitPrice, &sig.KellyFraction, &sig.SizeUSD,
			&sig.Rationale, &sig.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("postgres: scan signal: %w", err)
		}
		sig.Side = domain.Side(side)
		sig.Action = domain.SignalAction(action)
		out = append(out, sig)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: iterate signals: %w", err)
	}
	return out, nil
}
