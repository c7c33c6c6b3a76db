package domain

import (
	"context"
	"time"
)

// ListOpts provides pagination for list queries.
type ListOpts struct {
	Limit  int
	Offset int
}

// TradeStore persists execution results and settlements.
type TradeStore interface {
	Insert(ctx context.Context, rec TradeRecord) error
	InsertSettlement(ctx context.Context, s Settlement) error
	ListRecent(ctx context.Context, opts ListOpts) ([]TradeRecord, error)
	ListBefore(ctx context.Context, before time.Time) ([]TradeRecord, error)
}

// SignalStore persists every emitted signal for audit.
type SignalStore interface {
	Insert(ctx context.Context, sig TradeSignal) error
	ListRecent(ctx context.Context, opts ListOpts) ([]TradeSignal, error)
	ListBefore(ctx context.Context, before time.Time) ([]TradeSignal, error)
}

// ArbStore persists detected structural mispricings.
type ArbStore interface {
	Insert(ctx context.Context, opp ArbOpportunity) error
	ListRecent(ctx context.Context, limit int) ([]ArbOpportunity, error)
	ListBefore(ctx context.Context, before time.Time) ([]ArbOpportunity, error)
}

// AuditEntry is a single audit log row.
type AuditEntry struct {
	ID        int64
	Event     string
	Detail    map[string]any
	CreatedAt time.Time
}

// AuditStore persists an append-only audit log (circuit-breaker trips, daily
// resets, archival runs).
type AuditStore interface {
	Log(ctx context.Context, event string, detail map[string]any) error
	List(ctx context.Context, opts ListOpts) ([]AuditEntry, error)
}
