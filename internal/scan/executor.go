package scan

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/edgehound/edgehound/internal/domain"
	"github.com/edgehound/edgehound/internal/paper"
	"github.com/edgehound/edgehound/internal/platform/kalshi"
)

// Executor is the execution back end a cycle dispatches signals to.
type Executor interface {
	Execute(ctx context.Context, sig domain.TradeSignal) (domain.TradeRecord, error)
	Portfolio(ctx context.Context) (domain.Portfolio, error)
}

// Settler resolves a held position against a contract outcome. Only the paper
// back end settles locally; a live exchange settles on its own.
type Settler interface {
	Settle(ctx context.Context, ticker string, outcome domain.Side) (domain.Settlement, error)
}

// PaperExecutor adapts the in-memory ledger to the Executor interface and
// persists fills and settlements when a trade store is configured.
type PaperExecutor struct {
	ledger *paper.Ledger
	trades domain.TradeStore // optional
	logger *slog.Logger
}

var (
	_ Executor = (*PaperExecutor)(nil)
	_ Settler  = (*PaperExecutor)(nil)
)

// NewPaperExecutor wraps a ledger. trades may be nil for store-less runs.
func NewPaperExecutor(ledger *paper.Ledger, trades domain.TradeStore, logger *slog.Logger) *PaperExecutor {
	return &PaperExecutor{
		ledger: ledger,
		trades: trades,
		logger: logger.With(slog.String("component", "paper_executor")),
	}
}

// Execute fills against the ledger and persists the record, filled or not.
// A persistence failure is logged, not returned; the fill already happened.
func (p *PaperExecutor) Execute(ctx context.Context, sig domain.TradeSignal) (domain.TradeRecord, error) {
	rec, err := p.ledger.Execute(sig)
	if err != nil {
		return rec, err
	}
	if p.trades != nil {
		if storeErr := p.trades.Insert(ctx, rec); storeErr != nil {
			p.logger.Error("persist trade record failed",
				slog.String("record_id", rec.ID),
				slog.String("error", storeErr.Error()),
			)
		}
	}
	return rec, nil
}

// Settle resolves a position in the ledger and persists the settlement.
func (p *PaperExecutor) Settle(ctx context.Context, ticker string, outcome domain.Side) (domain.Settlement, error) {
	set, err := p.ledger.Settle(ticker, outcome)
	if err != nil {
		return set, err
	}
	if p.trades != nil {
		if storeErr := p.trades.InsertSettlement(ctx, set); storeErr != nil {
			p.logger.Error("persist settlement failed",
				slog.String("settlement_id", set.ID),
				slog.String("error", storeErr.Error()),
			)
		}
	}
	return set, nil
}

// Portfolio returns the ledger snapshot.
func (p *PaperExecutor) Portfolio(context.Context) (domain.Portfolio, error) {
	return p.ledger.Portfolio(), nil
}

// LiveExecutor dispatches signals as real limit orders on the exchange. Live
// position tracking is not implemented; the portfolio snapshot carries the
// real cash balance with an empty position list.
type LiveExecutor struct {
	client *kalshi.Client
	trades domain.TradeStore // optional
	logger *slog.Logger
}

var _ Executor = (*LiveExecutor)(nil)

// NewLiveExecutor creates an executor placing orders through the exchange
// client. trades may be nil.
func NewLiveExecutor(client *kalshi.Client, trades domain.TradeStore, logger *slog.Logger) *LiveExecutor {
	return &LiveExecutor{
		client: client,
		trades: trades,
		logger: logger.With(slog.String("component", "live_executor")),
	}
}

// Execute places the signal as a limit order. The record reports the order as
// filled at the limit; real fill confirmation needs order polling, which is
// not implemented.
func (l *LiveExecutor) Execute(ctx context.Context, sig domain.TradeSignal) (domain.TradeRecord, error) {
	rec := domain.TradeRecord{
		ID:         uuid.New().String(),
		SignalID:   sig.ID,
		Ticker:     sig.Ticker,
		Side:       sig.Side,
		Contracts:  sig.Contracts,
		Price:      sig.LimitPrice,
		CostUSD:    sig.SizeUSD,
		ExecutedAt: time.Now().UTC(),
	}

	if err := l.client.PlaceOrder(ctx, sig); err != nil {
		rec.Reason = err.Error()
		return rec, err
	}
	rec.Filled = true

	if l.trades != nil {
		if storeErr := l.trades.Insert(ctx, rec); storeErr != nil {
			l.logger.Error("persist trade record failed",
				slog.String("record_id", rec.ID),
				slog.String("error", storeErr.Error()),
			)
		}
	}
	return rec, nil
}

// Portfolio reports the live cash balance with no position tracking.
func (l *LiveExecutor) Portfolio(ctx context.Context) (domain.Portfolio, error) {
	balance, err := l.client.GetBalance(ctx)
	if err != nil {
		return domain.Portfolio{}, err
	}
	return domain.Portfolio{Balance: balance}, nil
}
