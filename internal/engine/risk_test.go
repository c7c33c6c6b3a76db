package engine

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/edgehound/edgehound/internal/domain"
)

func defaultRiskConfig() RiskConfig {
	return RiskConfig{
		KellyFraction:    0.25,
		MaxExposure:      500,
		MaxPositionSize:  50,
		MinConfidence:    0.30,
		MaxTradesPerHour: 5,
	}
}

func newTestRiskManager(cfg RiskConfig) *RiskManager {
	return NewRiskManager(cfg, testLogger())
}

func edgeFor(ticker string, modelProb float64, ask int, confidence float64) domain.Edge {
	market := float64(ask) / 100
	return domain.Edge{
		Ticker:     ticker,
		Side:       domain.SideYes,
		MarketProb: market,
		ModelProb:  modelProb,
		Value:      modelProb - market,
		Confidence: confidence,
		Contract: domain.Contract{
			Ticker: ticker,
			Title:  ticker,
			YesAsk: ask,
		},
	}
}

func TestGenerateSignals_SizesViaFractionalKelly(t *testing.T) {
	m := newTestRiskManager(defaultRiskConfig())
	state := &RiskState{}
	pf := domain.Portfolio{Balance: 1000}

	// p=0.60, cost=0.40: b=1.5, f=(0.9-0.4)/1.5=1/3, adjusted=1/12,
	// dollars=1000/12=83.33 clamped to 50, contracts=floor(5000/40)=125
	sigs := m.GenerateSignals(state, []domain.Edge{edgeFor("MKT", 0.60, 40, 0.8)}, pf)
	require.Len(t, sigs, 1)

	sig := sigs[0]
	assert.Equal(t, 125, sig.Contracts)
	assert.Equal(t, 40, sig.LimitPrice)
	assert.InDelta(t, 50.0, sig.SizeUSD, 1e-9)
	assert.Equal(t, domain.SignalActionBuy, sig.Action)
	assert.NotEmpty(t, sig.ID)
	assert.Equal(t, 1, state.TradesThisHour)
}

func TestGenerateSignals_RefusesNonPositiveKelly(t *testing.T) {
	m := newTestRiskManager(defaultRiskConfig())

	// p=0.5 at cost 0.5: b=1, f=(0.5-0.5)/1=0, refused even though the edge
	// gate was never in play
	sigs := m.GenerateSignals(&RiskState{}, []domain.Edge{edgeFor("FLAT", 0.50, 50, 0.8)}, domain.Portfolio{Balance: 1000})
	assert.Empty(t, sigs)
}

func TestGenerateSignals_DailyLossBreakerRefusesPass(t *testing.T) {
	cfg := defaultRiskConfig() // limit = 50
	m := newTestRiskManager(cfg)
	state := &RiskState{DailyLoss: cfg.DailyLossLimit()}

	sigs := m.GenerateSignals(state, []domain.Edge{edgeFor("MKT", 0.70, 40, 0.9)}, domain.Portfolio{Balance: 1000})
	assert.Empty(t, sigs)
	assert.True(t, m.DailyHalted(state))
}

func TestGenerateSignals_HourlyCapHaltsRemainder(t *testing.T) {
	cfg := defaultRiskConfig()
	cfg.MaxTradesPerHour = 1
	m := newTestRiskManager(cfg)
	state := &RiskState{}

	edges := []domain.Edge{
		edgeFor("FIRST", 0.70, 40, 0.9),
		edgeFor("SECOND", 0.68, 40, 0.9),
	}
	sigs := m.GenerateSignals(state, edges, domain.Portfolio{Balance: 1000})
	require.Len(t, sigs, 1)
	assert.Equal(t, "FIRST", sigs[0].Ticker)
}

func TestGenerateSignals_HourlyWindowResetsLazily(t *testing.T) {
	cfg := defaultRiskConfig()
	cfg.MaxTradesPerHour = 1
	m := newTestRiskManager(cfg)

	base := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	m.now = func() time.Time { return base }

	state := &RiskState{}
	edges := []domain.Edge{edgeFor("MKT", 0.70, 40, 0.9)}
	pf := domain.Portfolio{Balance: 1000}

	require.Len(t, m.GenerateSignals(state, edges, pf), 1)
	// within the hour: counter still full
	m.now = func() time.Time { return base.Add(59 * time.Minute) }
	assert.Empty(t, m.GenerateSignals(state, edges, pf))
	// exactly one hour is not "more than an hour"
	m.now = func() time.Time { return base.Add(time.Hour) }
	assert.Empty(t, m.GenerateSignals(state, edges, pf))
	// past the hour the window rolls and the trade goes through
	m.now = func() time.Time { return base.Add(time.Hour + time.Second) }
	assert.Len(t, m.GenerateSignals(state, edges, pf), 1)
}

func TestGenerateSignals_SkipGatesLetLowerRanksRun(t *testing.T) {
	m := newTestRiskManager(defaultRiskConfig())
	state := &RiskState{}
	pf := domain.Portfolio{
		Balance:   1000,
		Positions: []domain.Position{{Ticker: "HELD", Side: domain.SideYes, Contracts: 10, AvgPrice: 40}},
		Exposure:  4,
	}

	edges := []domain.Edge{
		edgeFor("SHAKY", 0.70, 40, 0.10), // below MinConfidence, skipped
		edgeFor("HELD", 0.70, 40, 0.90),  // concentration, skipped
		edgeFor("FRESH", 0.68, 40, 0.90), // survives
	}
	sigs := m.GenerateSignals(state, edges, pf)
	require.Len(t, sigs, 1)
	assert.Equal(t, "FRESH", sigs[0].Ticker)
}

func TestGenerateSignals_ExposureHaltsWhenNoHeadroom(t *testing.T) {
	cfg := defaultRiskConfig()
	m := newTestRiskManager(cfg)
	pf := domain.Portfolio{Balance: 1000, Exposure: cfg.MaxExposure}

	sigs := m.GenerateSignals(&RiskState{}, []domain.Edge{edgeFor("MKT", 0.70, 40, 0.9)}, pf)
	assert.Empty(t, sigs)
}

func TestSize_HeadroomClampThenDollarFloor(t *testing.T) {
	m := newTestRiskManager(defaultRiskConfig())

	// headroom clamps to 0.50, then the $1 floor lifts it back up:
	// contracts = floor(100/40) = 2, actual = $0.80
	sig, ok := m.size(edgeFor("TINY", 0.70, 40, 0.9), 1000, 0.50)
	require.True(t, ok)
	assert.Equal(t, 2, sig.Contracts)
	assert.InDelta(t, 0.80, sig.SizeUSD, 1e-9)
}

func TestSize_RefusesZeroContracts(t *testing.T) {
	m := newTestRiskManager(defaultRiskConfig())

	// a tiny bankroll is floored to $1, which still buys one 99¢ contract
	_, ok := m.size(edgeFor("PRICY", 0.999, 99, 0.9), 0.5, 500)
	assert.True(t, ok)

	// an edge with no ask on the traded side is refused outright
	e := edgeFor("NOASK", 0.70, 40, 0.9)
	e.Contract.YesAsk = 0
	_, ok = m.size(e, 1000, 500)
	assert.False(t, ok)
}

func TestRecordLossAndResetDaily(t *testing.T) {
	cfg := defaultRiskConfig()
	m := newTestRiskManager(cfg)
	state := &RiskState{}

	m.RecordLoss(state, 30)
	m.RecordLoss(state, -5) // ignored
	assert.InDelta(t, 30.0, state.DailyLoss, 1e-9)
	assert.False(t, m.DailyHalted(state))

	m.RecordLoss(state, 20)
	assert.True(t, m.DailyHalted(state))

	m.ResetDaily(state)
	assert.Zero(t, state.DailyLoss)
	assert.False(t, m.DailyHalted(state))
}
