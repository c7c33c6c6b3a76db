// Package engine contains the trading core: edge detection against forecast
// probabilities, fractional-Kelly position sizing, and circuit-breaker risk
// gating. The detector is stateless; the risk manager operates on an
// explicit, caller-owned RiskState.
package engine

import (
	"log/slog"
	"math"
	"sort"
	"time"

	"github.com/edgehound/edgehound/internal/domain"
)

// DetectorConfig holds the tunable parameters for edge detection.
type DetectorConfig struct {
	// MinEdge is the strict lower bound on model-minus-market disagreement.
	// An edge equal to the threshold is not emitted.
	MinEdge float64
}

// Detector joins contracts to estimates and emits directional edges, plus a
// separate forecaster-independent structural scan. Calling it twice with the
// same inputs yields identical, identically-ordered output.
type Detector struct {
	cfg    DetectorConfig
	logger *slog.Logger
	now    func() time.Time
}

// NewDetector creates a Detector with the given configuration.
func NewDetector(cfg DetectorConfig, logger *slog.Logger) *Detector {
	return &Detector{
		cfg:    cfg,
		logger: logger.With(slog.String("component", "detector")),
		now:    time.Now,
	}
}

// DetectEdges joins contracts to estimates by ticker and scores the YES and
// NO sides independently: modelProbYes against implied-YES, 1-modelProbYes
// against implied-NO, so both sides of one contract can qualify. Contracts
// without an estimate are silently skipped; no estimate means no decision.
// The result is ordered by descending edge magnitude, which is the priority
// order the risk manager consumes when exposure is constrained.
func (d *Detector) DetectEdges(contracts []domain.Contract, estimates map[string]domain.Estimate) []domain.Edge {
	var edges []domain.Edge

	for _, c := range contracts {
		est, ok := estimates[c.Ticker]
		if !ok {
			continue
		}
		est = est.ClampProbs()

		for _, side := range []domain.Side{domain.SideYes, domain.SideNo} {
			modelProb := est.ProbYes
			if side == domain.SideNo {
				modelProb = 1 - est.ProbYes
			}
			marketProb := c.ImpliedProb(side)

			value := modelProb - marketProb
			if value <= d.cfg.MinEdge {
				continue
			}

			ev := 0.0
			if marketProb > 0 {
				ev = modelProb/marketProb - 1
			}

			edges = append(edges, domain.Edge{
				Ticker:     c.Ticker,
				Side:       side,
				MarketProb: marketProb,
				ModelProb:  modelProb,
				Value:      value,
				EVPerUSD:   ev,
				Confidence: est.Confidence,
				Contract:   c,
			})
		}
	}

	sort.SliceStable(edges, func(i, j int) bool {
		return math.Abs(edges[i].Value) > math.Abs(edges[j].Value)
	})

	d.logger.Debug("edge detection pass complete",
		slog.Int("contracts", len(contracts)),
		slog.Int("estimates", len(estimates)),
		slog.Int("edges", len(edges)),
	)
	return edges
}

// Structural-scan thresholds, in cents. Below par by more than the fee
// margin is free money; above the wide-spread line both books are paying a
// premium for uncertainty.
const (
	arbProfitCeiling  = 98
	wideSpreadFloor   = 115
	oneSidedAskCutoff = 95
)

// FindArbitrage scans ask prices alone, independent of any forecast.
// Contracts missing either ask are skipped. guaranteed_profit opportunities
// sort first by ascending total (biggest locked-in margin first), then
// wide_spread by descending total (widest first).
func (d *Detector) FindArbitrage(contracts []domain.Contract) []domain.ArbOpportunity {
	now := d.now().UTC()
	var opps []domain.ArbOpportunity

	for _, c := range contracts {
		if c.YesAsk == 0 || c.NoAsk == 0 {
			continue
		}
		total := c.YesAsk + c.NoAsk

		var kind domain.ArbKind
		switch {
		case total < arbProfitCeiling:
			kind = domain.ArbGuaranteedProfit
		case total > wideSpreadFloor && c.YesAsk < oneSidedAskCutoff && c.NoAsk < oneSidedAskCutoff:
			kind = domain.ArbWideSpread
		default:
			continue
		}

		opps = append(opps, domain.ArbOpportunity{
			Ticker:     c.Ticker,
			Title:      c.Title,
			Kind:       kind,
			YesAsk:     c.YesAsk,
			NoAsk:      c.NoAsk,
			Total:      total,
			DetectedAt: now,
		})
	}

	sort.SliceStable(opps, func(i, j int) bool {
		a, b := opps[i], opps[j]
		if a.Kind != b.Kind {
			return a.Kind == domain.ArbGuaranteedProfit
		}
		if a.Kind == domain.ArbGuaranteedProfit {
			return a.Total < b.Total
		}
		return a.Total > b.Total
	})

	if len(opps) > 0 {
		d.logger.Info("structural mispricings found", slog.Int("count", len(opps)))
	}
	return opps
}
