package engine

import (
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/google/uuid"

	"github.com/edgehound/edgehound/internal/domain"
)

// RiskConfig holds the tunable parameters for signal generation.
type RiskConfig struct {
	KellyFraction    float64 // fractional-Kelly multiplier, e.g. 0.25
	MaxExposure      float64 // portfolio-wide cap on committed dollars
	MaxPositionSize  float64 // per-position cap in dollars
	MinConfidence    float64 // estimates below this are not traded
	MaxTradesPerHour int
}

// DailyLossLimit is 10% of the configured maximum exposure. Once cumulative
// daily losses reach it every sizing pass refuses outright until ResetDaily.
func (c RiskConfig) DailyLossLimit() float64 {
	return c.MaxExposure * 0.10
}

// RiskState carries the circuit-breaker counters across cycles. It is owned
// by the orchestrator and passed by handle into every call, so independent
// portfolios in one process each get their own counters.
//
// The hourly window is a simple reset timer anchored to the last reset, not
// a calendar-aligned hour: the first call more than 3600s after HourStart
// zeroes the counter and restarts the window from "now". The drift with call
// timing is intentional.
type RiskState struct {
	DailyLoss      float64
	TradesThisHour int
	HourStart      time.Time
}

// RiskManager converts ranked edges into sized trade signals, subject to the
// circuit breakers and exposure accounting in a RiskState.
type RiskManager struct {
	cfg    RiskConfig
	logger *slog.Logger
	now    func() time.Time
}

// NewRiskManager creates a RiskManager with the given configuration.
func NewRiskManager(cfg RiskConfig, logger *slog.Logger) *RiskManager {
	return &RiskManager{
		cfg:    cfg,
		logger: logger.With(slog.String("component", "risk")),
		now:    time.Now,
	}
}

// gateVerdict is the outcome of one gate for one edge.
type gateVerdict int

const (
	gatePass gateVerdict = iota
	gateSkip             // this edge is out; later, lower-ranked edges still run
	gateHalt             // a budget is exhausted; nothing below this rank runs
)

// sizingPass is the mutable loop state threaded through the gates.
type sizingPass struct {
	state    *RiskState
	pf       domain.Portfolio
	headroom float64
}

// gate is a named predicate in the fixed-order pipeline. Order matters:
// budget gates halt before per-edge gates get a chance to skip.
type gate struct {
	name  string
	check func(p *sizingPass, e domain.Edge) gateVerdict
}

func (m *RiskManager) gates() []gate {
	return []gate{
		{"hourly_trades", func(p *sizingPass, _ domain.Edge) gateVerdict {
			if p.state.TradesThisHour >= m.cfg.MaxTradesPerHour {
				return gateHalt
			}
			return gatePass
		}},
		{"exposure", func(p *sizingPass, _ domain.Edge) gateVerdict {
			if p.headroom <= 0 {
				return gateHalt
			}
			return gatePass
		}},
		{"confidence", func(_ *sizingPass, e domain.Edge) gateVerdict {
			if e.Confidence < m.cfg.MinConfidence {
				return gateSkip
			}
			return gatePass
		}},
		{"concentration", func(p *sizingPass, e domain.Edge) gateVerdict {
			if p.pf.HasPosition(e.Ticker) {
				return gateSkip
			}
			return gatePass
		}},
	}
}

// GenerateSignals iterates edges in the detector's priority order, applies
// the gate pipeline, and sizes each survivor via fractional Kelly. Remaining
// exposure is decremented and the hourly counter incremented for every
// signal actually produced. A tripped daily-loss breaker refuses the whole
// pass.
func (m *RiskManager) GenerateSignals(state *RiskState, edges []domain.Edge, pf domain.Portfolio) []domain.TradeSignal {
	m.rollHourWindow(state)

	if state.DailyLoss >= m.cfg.DailyLossLimit() {
		m.logger.Warn("daily loss limit reached, refusing all signals",
			slog.Float64("daily_loss", state.DailyLoss),
			slog.Float64("limit", m.cfg.DailyLossLimit()),
		)
		return nil
	}

	pass := &sizingPass{
		state:    state,
		pf:       pf,
		headroom: m.cfg.MaxExposure - pf.Exposure,
	}
	gates := m.gates()

	var signals []domain.TradeSignal
edgeLoop:
	for _, e := range edges {
		for _, g := range gates {
			switch g.check(pass, e) {
			case gateHalt:
				m.logger.Debug("sizing pass halted",
					slog.String("gate", g.name),
					slog.Int("signals", len(signals)),
				)
				break edgeLoop
			case gateSkip:
				m.logger.Debug("edge skipped",
					slog.String("gate", g.name),
					slog.String("ticker", e.Ticker),
					slog.String("side", string(e.Side)),
				)
				continue edgeLoop
			}
		}

		sig, ok := m.size(e, pf.Balance, pass.headroom)
		if !ok {
			continue
		}

		pass.headroom -= sig.SizeUSD
		state.TradesThisHour++
		signals = append(signals, sig)
	}

	return signals
}

// size applies the Kelly criterion to one edge and converts the result into
// an integer contract count at the current same-side ask.
//
// b = (1-cost)/cost is the net odds of a $1-payout contract costing `cost`.
// The full Kelly fraction f = (p*b - q)/b can be non-positive even when the
// raw edge was positive; edge and Kelly are different curvature functions of
// p, q and cost, so both refusals are checked independently.
func (m *RiskManager) size(e domain.Edge, bankroll, headroom float64) (domain.TradeSignal, bool) {
	p := e.ModelProb
	q := 1 - p
	cost := e.MarketProb
	if cost <= 0 {
		return domain.TradeSignal{}, false
	}

	b := (1 - cost) / cost
	if b <= 0 {
		return domain.TradeSignal{}, false
	}

	fullKelly := (p*b - q) / b
	if fullKelly <= 0 {
		return domain.TradeSignal{}, false
	}

	adjusted := fullKelly * m.cfg.KellyFraction
	dollars := bankroll * adjusted

	// Clamp order is load-bearing: caps first, then the $1 floor, so a
	// cap-constrained tiny remainder is floored up rather than refused.
	dollars = math.Min(dollars, m.cfg.MaxPositionSize)
	dollars = math.Min(dollars, headroom)
	if dollars < 1 {
		dollars = 1
	}

	_, ask := e.Contract.Quotes(e.Side)
	if ask <= 0 {
		return domain.TradeSignal{}, false
	}

	contracts := int(math.Floor(dollars * 100 / float64(ask)))
	if contracts < 1 {
		return domain.TradeSignal{}, false
	}

	// Recompute from the integer count so the signal never claims a size
	// that rounding cannot realize.
	actualUSD := float64(contracts*ask) / 100
	realized := adjusted
	if bankroll > 0 {
		realized = actualUSD / bankroll
	}

	return domain.TradeSignal{
		ID:            uuid.New().String(),
		Ticker:        e.Ticker,
		Title:         e.Contract.Title,
		Side:          e.Side,
		Action:        domain.SignalActionBuy,
		Contracts:     contracts,
		LimitPrice:    ask,
		KellyFraction: realized,
		SizeUSD:       actualUSD,
		Rationale: fmt.Sprintf("%s %s: model %.2f vs market %.2f (edge %+.2f, EV %.2f/$), kelly %.3f",
			e.Ticker, e.Side, e.ModelProb, e.MarketProb, e.Value, e.EVPerUSD, fullKelly),
		CreatedAt: m.now().UTC(),
	}, true
}

// DailyHalted reports whether the daily-loss breaker has tripped.
func (m *RiskManager) DailyHalted(state *RiskState) bool {
	return state.DailyLoss >= m.cfg.DailyLossLimit()
}

// RecordLoss accumulates realized loss into the daily counter. The execution
// layer calls it after a settlement produces negative realized P&L. Past 80%
// of the limit every call logs a warning.
func (m *RiskManager) RecordLoss(state *RiskState, amount float64) {
	if amount <= 0 {
		return
	}
	state.DailyLoss += amount

	limit := m.cfg.DailyLossLimit()
	if state.DailyLoss >= 0.8*limit {
		m.logger.Warn("daily loss approaching limit",
			slog.Float64("daily_loss", state.DailyLoss),
			slog.Float64("limit", limit),
		)
	}
}

// ResetDaily zeroes the daily loss counter. The engine has no calendar
// awareness; an external scheduler invokes this at midnight.
func (m *RiskManager) ResetDaily(state *RiskState) {
	m.logger.Info("daily loss counter reset",
		slog.Float64("previous_loss", state.DailyLoss),
	)
	state.DailyLoss = 0
}

// rollHourWindow lazily resets the hourly trade counter once more than an
// hour has elapsed since the stored window start.
func (m *RiskManager) rollHourWindow(state *RiskState) {
	now := m.now()
	if state.HourStart.IsZero() {
		state.HourStart = now
		return
	}
	if now.Sub(state.HourStart) > time.Hour {
		state.TradesThisHour = 0
		state.HourStart = now
	}
}
