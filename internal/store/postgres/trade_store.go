package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/edgehound/edgehound/internal/domain"
)

// TradeStore persists execution results and settlements in PostgreSQL.
type TradeStore struct {
	client *Client
}

var _ domain.TradeStore = (*TradeStore)(nil)

// NewTradeStore creates a TradeStore backed by the given client.
func NewTradeStore(client *Client) *TradeStore {
	return &TradeStore{client: client}
}

// Insert stores one execution record, filled or not.
func (s *TradeStore) Insert(ctx context.Context, rec domain.TradeRecord) error {
	const q = `
		INSERT INTO trade_records
			(id, signal_id, ticker, side, contracts, price, cost_usd, filled, reason, executed_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`
	_, err := s.client.pool.Exec(ctx, q,
		rec.ID, rec.SignalID, rec.Ticker, string(rec.Side), rec.Contracts,
		rec.Price, rec.CostUSD, rec.Filled, rec.Reason, rec.ExecutedAt,
	)
	if err != nil {
		return fmt.Errorf("postgres: insert trade record %s: %w", rec.ID, err)
	}
	return nil
}

// InsertSettlement stores the terminal resolution of a position.
func (s *TradeStore) InsertSettlement(ctx context.Context, set domain.Settlement) error {
	const q = `
		INSERT INTO settlements
			(id, ticker, side, outcome, contracts, avg_price, realized_pnl, settled_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`
	_, err := s.client.pool.Exec(ctx, q,
		set.ID, set.Ticker, string(set.Side), string(set.Outcome),
		set.Contracts, set.AvgPrice, set.RealizedPnL, set.SettledAt,
	)
	if err != nil {
		return fmt.Errorf("postgres: insert settlement %s: %w", set.ID, err)
	}
	return nil
}

// ListRecent returns trade records newest first.
func (s *TradeStore) ListRecent(ctx context.Context, opts domain.ListOpts) ([]domain.TradeRecord, error) {
	limit := opts.Limit
	if limit <= 0 {
		limit = 100
	}
	const q = `
		SELECT id, signal_id, ticker, side, contracts, price, cost_usd, filled, reason, executed_at
		FROM trade_records
		ORDER BY executed_at DESC
		LIMIT $1 OFFSET $2`
	rows, err := s.client.pool.Query(ctx, q, limit, opts.Offset)
	if err != nil {
		return nil, fmt.Errorf("postgres: list trade records: %w", err)
	}
	defer rows.Close()
	return scanTradeRecords(rows)
}

// ListBefore returns all trade records executed strictly before the cutoff,
// oldest first, for archival.
func (s *TradeStore) ListBefore(ctx context.Context, before time.Time) ([]domain.TradeRecord, error) {
	const q = `
		SELECT id, signal_id, ticker, side, contracts, price, cost_usd, filled, reason, executed_at
		FROM trade_records
		WHERE executed_at < $1
		ORDER BY executed_at ASC`
	rows, err := s.client.pool.Query(ctx, q, before)
	if err != nil {
		return nil, fmt.Errorf("postgres: list trade records before %s: %w", before.Format(time.RFC3339), err)
	}
	defer rows.Close()
	return scanTradeRecords(rows)
}

func scanTradeRecords(rows pgx.Rows) ([]domain.TradeRecord, error) {
	var out []domain.TradeRecord
	for rows.Next() {
		var rec domain.TradeRecord
		var side string
		if err := rows.Scan(
			&rec.ID, &rec.SignalID, &rec.Ticker, &side, &rec.Contracts,
			&rec.Price, &rec.CostUSD, &rec.Filled, &rec.Reason, &rec.ExecutedAt,
		); err != nil {
			return nil, fmt.Errorf("postgres: scan trade record: %w", err)
		}
		rec.Side = domain.Side(side)
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: iterate trade records: %w", err)
	}
	return out, nil
}
