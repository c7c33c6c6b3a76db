package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/edgehound/edgehound/internal/domain"
)

// ArbStore persists detected structural mispricings.
type ArbStore struct {
	client *Client
}

var _ domain.ArbStore = (*ArbStore)(nil)

// NewArbStore creates an ArbStore backed by the given client.
func NewArbStore(client *Client) *ArbStore {
	return &ArbStore{client: client}
}

// Insert stores one detected opportunity.
func (s *ArbStore) Insert(ctx context.Context, opp domain.ArbOpportunity) error {
	const q = `
		INSERT INTO arb_opportunities
			(ticker, title, kind, yes_ask, no_ask, total, detected_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`
	_, err := s.client.pool.Exec(ctx, q,
		opp.Ticker, opp.Title, string(opp.Kind),
		opp.YesAsk, opp.NoAsk, opp.Total, opp.DetectedAt,
	)
	if err != nil {
		return fmt.Errorf("postgres: insert arb opportunity %s: %w", opp.Ticker, err)
	}
	return nil
}

// ListRecent returns opportunities newest first.
func (s *ArbStore) ListRecent(ctx context.Context, limit int) ([]domain.ArbOpportunity, error) {
	if limit <= 0 {
		limit = 100
	}
	const q = `
		SELECT ticker, title, kind, yes_ask, no_ask, total, detected_at
		FROM arb_opportunities
		ORDER BY detected_at DESC
		LIMIT $1`
	rows, err := s.client.pool.Query(ctx, q, limit)
	if err != nil {
		return nil, fmt.Errorf("postgres: list arb opportunities: %w", err)
	}
	defer rows.Close()
	return scanArbs(rows)
}

// ListBefore returns all opportunities detected strictly before the cutoff,
// oldest first, for archival.
func (s *ArbStore) ListBefore(ctx context.Context, before time.Time) ([]domain.ArbOpportunity, error) {
	const q = `
		SELECT ticker, title, kind, yes_ask, no_ask, total, detected_at
		FROM arb_opportunities
		WHERE detected_at < $1
		ORDER BY detected_at ASC`
	rows, err := s.client.pool.Query(ctx, q, before)
	if err != nil {
		return nil, fmt.Errorf("postgres: list arb opportunities before %s: %w", before.Format(time.RFC3339), err)
	}
	defer rows.Close()
	return scanArbs(rows)
}

func scanArbs(rows pgx.Rows) ([]domain.ArbOpportunity, error) {
	var out []domain.ArbOpportunity
	for rows.Next() {
		var opp domain.ArbOpportunity
		var kind string
		if err := rows.Scan(
			&opp.Ticker, &opp.Title, &kind,
			&opp.YesAsk, &opp.NoAsk, &opp.Total, &opp.DetectedAt,
		); err != nil {
			return nil, fmt.Errorf("postgres: scan arb opportunity: %w", err)
		}
		opp.Kind = domain.ArbKind(kind)
		out = append(out, opp)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: iterate arb opportunities: %w", err)
	}
	return out, nil
}
