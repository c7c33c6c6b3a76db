package scan

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/edgehound/edgehound/internal/domain"
	"github.com/edgehound/edgehound/internal/engine"
	"github.com/edgehound/edgehound/internal/paper"
)

type fakeSource struct {
	contracts []domain.Contract
}

func (f *fakeSource) ListOpenContracts(context.Context) ([]domain.Contract, error) {
	return f.contracts, nil
}

func (f *fakeSource) GetMarket(_ context.Context, ticker string) (domain.Contract, error) {
	for _, c := range f.contracts {
		if c.Ticker == ticker {
			return c, nil
		}
	}
	return domain.Contract{}, domain.ErrNotFound
}

type fakeForecaster struct {
	estimates map[string]domain.Estimate
	calls     int
}

func (f *fakeForecaster) Forecast(_ context.Context, c domain.Contract) (domain.Estimate, error) {
	f.calls++
	est, ok := f.estimates[c.Ticker]
	if !ok {
		return domain.Estimate{}, domain.ErrNotFound
	}
	return est, nil
}

func newTestScanner(source *fakeSource, fc *fakeForecaster, exec Executor) *Scanner {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	detector := engine.NewDetector(engine.DetectorConfig{MinEdge: 0.05}, logger)
	risk := engine.NewRiskManager(engine.RiskConfig{
		KellyFraction:    0.25,
		MaxExposure:      500,
		MaxPositionSize:  50,
		MinConfidence:    0.30,
		MaxTradesPerHour: 5,
	}, logger)

	return New(
		Config{Filter: FilterConfig{MaxCandidates: 10}},
		source, detector, risk, fc, exec,
		Options{}, logger,
	)
}

func tradeable(ticker string, yesBid, yesAsk int) domain.Contract {
	return domain.Contract{
		Ticker:   ticker,
		Title:    "Will the incumbent win " + ticker + "?",
		Category: "politics",
		Status:   domain.ContractStatusOpen,
		YesBid:   yesBid,
		YesAsk:   yesAsk,
		NoBid:    100 - yesAsk,
		NoAsk:    100 - yesBid,
		Volume:   500,
	}
}

func TestRunOnce_EdgeFlowsThroughToPaperFill(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	source := &fakeSource{contracts: []domain.Contract{tradeable("MKT", 38, 42)}}
	fc := &fakeForecaster{estimates: map[string]domain.Estimate{
		"MKT": {Ticker: "MKT", ProbYes: 0.60, Confidence: 0.8},
	}}

	ledger := paper.NewLedger(1000, logger)
	exec := NewPaperExecutor(ledger, nil, logger)
	s := newTestScanner(source, fc, exec)

	require.NoError(t, s.RunOnce(context.Background()))
	assert.Equal(t, 1, fc.calls)

	pf := ledger.Portfolio()
	require.Len(t, pf.Positions, 1)
	assert.Equal(t, "MKT", pf.Positions[0].Ticker)
	assert.Equal(t, domain.SideYes, pf.Positions[0].Side)
	assert.Less(t, pf.Balance, 1000.0)
}

func TestRunOnce_NoEdgeNoTrade(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	source := &fakeSource{contracts: []domain.Contract{tradeable("FAIR", 38, 42)}}
	fc := &fakeForecaster{estimates: map[string]domain.Estimate{
		"FAIR": {Ticker: "FAIR", ProbYes: 0.41, Confidence: 0.8},
	}}

	ledger := paper.NewLedger(1000, logger)
	s := newTestScanner(source, fc, NewPaperExecutor(ledger, nil, logger))

	require.NoError(t, s.RunOnce(context.Background()))

	pf := ledger.Portfolio()
	assert.Empty(t, pf.Positions)
	assert.InDelta(t, 1000.0, pf.Balance, 1e-9)
}

func TestRunOnce_SettlesResolvedPosition(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	ledger := paper.NewLedger(1000, logger)
	_, err := ledger.Execute(domain.TradeSignal{
		ID: "seed", Ticker: "DONE", Side: domain.SideYes,
		Contracts: 10, LimitPrice: 40,
	})
	require.NoError(t, err)

	resolved := domain.Contract{
		Ticker: "DONE",
		Title:  "Resolved market",
		Status: domain.ContractStatusSettled,
		Result: domain.SideYes,
	}
	source := &fakeSource{contracts: []domain.Contract{resolved}}
	fc := &fakeForecaster{estimates: map[string]domain.Estimate{}}
	s := newTestScanner(source, fc, NewPaperExecutor(ledger, nil, logger))

	require.NoError(t, s.RunOnce(context.Background()))

	pf := ledger.Portfolio()
	assert.Empty(t, pf.Positions)
	// 10 winning contracts pay $10 against a $4 basis
	assert.InDelta(t, 1006.0, pf.Balance, 1e-9)
	// the settled contract was not a forecast candidate
	assert.Zero(t, fc.calls)
}

func TestRunOnce_RealTimeMarketsNotForecast(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	btc := tradeable("BTC-100K", 38, 42)
	btc.Title = "Will Bitcoin close at $100k this year?"
	source := &fakeSource{contracts: []domain.Contract{btc}}
	fc := &fakeForecaster{estimates: map[string]domain.Estimate{
		"BTC-100K": {Ticker: "BTC-100K", ProbYes: 0.9, Confidence: 0.9},
	}}

	ledger := paper.NewLedger(1000, logger)
	s := newTestScanner(source, fc, NewPaperExecutor(ledger, nil, logger))

	require.NoError(t, s.RunOnce(context.Background()))
	assert.Zero(t, fc.calls)
	assert.Empty(t, ledger.Portfolio().Positions)
}
