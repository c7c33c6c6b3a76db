// Package paper implements a simulated execution ledger: fills trade signals
// against a virtual cash balance with no slippage and no partial fills,
// tracks open positions with cost-basis averaging, and settles resolved
// contracts into realized P&L.
package paper

import (
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/edgehound/edgehound/internal/domain"
)

// Ledger is the paper-trading back end. All state is in memory; callers that
// want durable records persist the returned TradeRecords and Settlements
// themselves.
type Ledger struct {
	mu             sync.Mutex
	initialBalance float64
	balance        float64
	positions      map[string]domain.Position // keyed by ticker
	logger         *slog.Logger
	now            func() time.Time
}

// NewLedger creates a Ledger seeded with the given starting balance.
func NewLedger(initialBalance float64, logger *slog.Logger) *Ledger {
	return &Ledger{
		initialBalance: initialBalance,
		balance:        initialBalance,
		positions:      make(map[string]domain.Position),
		logger:         logger.With(slog.String("component", "paper_ledger")),
		now:            time.Now,
	}
}

// Execute fills a signal at its limit price. Insufficient cash produces an
// unfilled record with no state mutation, modelling a broker's
// insufficient-funds rejection rather than an error. A fill on the opposite
// side of an existing position is rejected with ErrPositionConflict: the
// ledger enforces one open side per contract itself instead of trusting the
// upstream concentration gate.
func (l *Ledger) Execute(sig domain.TradeSignal) (domain.TradeRecord, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	rec := domain.TradeRecord{
		ID:         uuid.New().String(),
		SignalID:   sig.ID,
		Ticker:     sig.Ticker,
		Side:       sig.Side,
		Contracts:  sig.Contracts,
		Price:      sig.LimitPrice,
		CostUSD:    float64(sig.Contracts*sig.LimitPrice) / 100,
		ExecutedAt: l.now().UTC(),
	}

	if existing, ok := l.positions[sig.Ticker]; ok && existing.Side != sig.Side {
		rec.Reason = "position open on opposite side"
		return rec, fmt.Errorf("paper: execute %s: %w", sig.Ticker, domain.ErrPositionConflict)
	}

	if rec.CostUSD > l.balance {
		rec.Reason = "insufficient funds"
		l.logger.Warn("fill rejected",
			slog.String("ticker", sig.Ticker),
			slog.Float64("cost", rec.CostUSD),
			slog.Float64("balance", l.balance),
		)
		return rec, nil
	}

	l.balance -= rec.CostUSD

	if existing, ok := l.positions[sig.Ticker]; ok {
		// Same-side add: merge via volume-weighted average cost.
		total := existing.Contracts + sig.Contracts
		avg := (existing.AvgPrice*float64(existing.Contracts) +
			float64(sig.LimitPrice)*float64(sig.Contracts)) / float64(total)
		existing.Contracts = total
		existing.AvgPrice = avg
		l.positions[sig.Ticker] = existing
	} else {
		l.positions[sig.Ticker] = domain.Position{
			Ticker:    sig.Ticker,
			Side:      sig.Side,
			Contracts: sig.Contracts,
			AvgPrice:  float64(sig.LimitPrice),
			Title:     sig.Title,
		}
	}

	rec.Filled = true
	l.logger.Info("paper fill",
		slog.String("ticker", sig.Ticker),
		slog.String("side", string(sig.Side)),
		slog.Int("contracts", sig.Contracts),
		slog.Int("price", sig.LimitPrice),
		slog.Float64("cost", rec.CostUSD),
	)
	return rec, nil
}

// Settle resolves the open position on a contract. A position on the winning
// side earns $1 per contract minus cost basis, and the full payout is
// credited to cash; a losing position forfeits its cost basis, which was
// already debited at execution time. The position is removed either way:
// settlement is terminal. The realized P&L is returned for the caller to
// feed into the risk manager's loss counter.
func (l *Ledger) Settle(ticker string, outcome domain.Side) (domain.Settlement, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	pos, ok := l.positions[ticker]
	if !ok {
		return domain.Settlement{}, fmt.Errorf("paper: settle %s: %w", ticker, domain.ErrNotFound)
	}

	basis := pos.CostBasis()
	var pnl float64
	if pos.Side == outcome {
		payout := float64(pos.Contracts)
		pnl = payout - basis
		l.balance += payout
	} else {
		pnl = -basis
	}

	delete(l.positions, ticker)

	l.logger.Info("position settled",
		slog.String("ticker", ticker),
		slog.String("held", string(pos.Side)),
		slog.String("outcome", string(outcome)),
		slog.Float64("pnl", pnl),
	)

	return domain.Settlement{
		ID:          uuid.New().String(),
		Ticker:      ticker,
		Side:        pos.Side,
		Outcome:     outcome,
		Contracts:   pos.Contracts,
		AvgPrice:    pos.AvgPrice,
		RealizedPnL: pnl,
		SettledAt:   l.now().UTC(),
	}, nil
}

// Portfolio returns a snapshot of the ledger. Realized P&L is reconstructed
// as balance - initial + exposure: realized gains and losses have already
// flowed through cash while open positions still carry their original cost
// against it. Unrealized P&L stays 0 until a live mark price is tracked.
func (l *Ledger) Portfolio() domain.Portfolio {
	l.mu.Lock()
	defer l.mu.Unlock()

	positions := make([]domain.Position, 0, len(l.positions))
	var exposure float64
	for _, p := range l.positions {
		positions = append(positions, p)
		exposure += p.CostBasis()
	}
	sort.Slice(positions, func(i, j int) bool {
		return positions[i].Ticker < positions[j].Ticker
	})

	return domain.Portfolio{
		Balance:       l.balance,
		Positions:     positions,
		Exposure:      exposure,
		RealizedPnL:   l.balance - l.initialBalance + exposure,
		UnrealizedPnL: 0,
	}
}
