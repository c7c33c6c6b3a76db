package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/edgehound/edgehound/internal/domain"
)

// AuditStore persists an append-only audit log of operational events:
// circuit-breaker trips, daily resets, archival runs.
type AuditStore struct {
	client *Client
}

var _ domain.AuditStore = (*AuditStore)(nil)

// NewAuditStore creates an AuditStore backed by the given client.
func NewAuditStore(client *Client) *AuditStore {
	return &AuditStore{client: client}
}

// Log appends one audit event. Detail is stored as JSONB and may be nil.
func (s *AuditStore) Log(ctx context.Context, event string, detail map[string]any) error {
	var payload []byte
	if detail != nil {
		var err error
		payload, err = json.Marshal(detail)
		if err != nil {
			return fmt.Errorf("postgres: marshal audit detail for %s: %w", event, err)
		}
	}
	_, err := s.client.pool.Exec(ctx,
		"INSERT INTO audit_log (event_type, detail) VALUES ($1, $2)",
		event, payload,
	)
	if err != nil {
		return fmt.Errorf("postgres: insert audit event %s: %w", event, err)
	}
	return nil
}

// List returns audit entries newest first.
func (s *AuditStore) List(ctx context.Context, opts domain.ListOpts) ([]domain.AuditEntry, error) {
	limit := opts.Limit
	if limit <= 0 {
		limit = 100
	}
	const q = `
		SELECT id, event_type, detail, created_at
		FROM audit_log
		ORDER BY created_at DESC
		LIMIT $1 OFFSET $2`
	rows, err := s.client.pool.Query(ctx, q, limit, opts.Offset)
	if err != nil {
		return nil, fmt.Errorf("postgres: list audit entries: %w", err)
	}
	defer rows.Close()

	var out []domain.AuditEntry
	for rows.Next() {
		var entry domain.AuditEntry
		var payload []byte
		if err := rows.Scan(&entry.ID, &entry.Event, &payload, &entry.CreatedAt); err != nil {
			return nil, fmt.Errorf("postgres: scan audit entry: %w", err)
		}
		if len(payload) > 0 {
			if err := json.Unmarshal(payload, &entry.Detail); err != nil {
				return nil, fmt.Errorf("postgres: unmarshal audit detail %d: %w", entry.ID, err)
			}
		}
		out = append(out, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: iterate audit entries: %w", err)
	}
	return out, nil
}
