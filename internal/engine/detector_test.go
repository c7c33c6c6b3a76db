package engine

import (
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/edgehound/edgehound/internal/domain"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestDetector(minEdge float64) *Detector {
	return NewDetector(DetectorConfig{MinEdge: minEdge}, testLogger())
}

func twoSided(ticker string, yesBid, yesAsk, noBid, noAsk int) domain.Contract {
	return domain.Contract{
		Ticker: ticker,
		Title:  ticker,
		Status: domain.ContractStatusOpen,
		YesBid: yesBid,
		YesAsk: yesAsk,
		NoBid:  noBid,
		NoAsk:  noAsk,
		Volume: 100,
	}
}

func estimate(ticker string, probYes, confidence float64) domain.Estimate {
	return domain.Estimate{Ticker: ticker, ProbYes: probYes, Confidence: confidence}
}

func TestDetectEdges_ThresholdIsStrict(t *testing.T) {
	d := newTestDetector(0.05)
	// yes midpoint (54+58)/2 = 56¢, implied 0.56
	c := twoSided("MKT-A", 54, 58, 42, 46)

	// model 0.61 vs market 0.56: edge exactly 0.05 is not emitted
	edges := d.DetectEdges([]domain.Contract{c}, map[string]domain.Estimate{
		"MKT-A": estimate("MKT-A", 0.61, 0.8),
	})
	assert.Empty(t, edges)

	// model 0.62 clears the bar
	edges = d.DetectEdges([]domain.Contract{c}, map[string]domain.Estimate{
		"MKT-A": estimate("MKT-A", 0.62, 0.8),
	})
	require.Len(t, edges, 1)
	assert.Equal(t, domain.SideYes, edges[0].Side)
	assert.InDelta(t, 0.06, edges[0].Value, 1e-9)
	assert.InDelta(t, 0.62/0.56-1, edges[0].EVPerUSD, 1e-9)
}

func TestDetectEdges_NoSideScoredIndependently(t *testing.T) {
	d := newTestDetector(0.05)
	// no midpoint (42+46)/2 = 44¢, implied 0.44
	c := twoSided("MKT-B", 54, 58, 42, 46)

	edges := d.DetectEdges([]domain.Contract{c}, map[string]domain.Estimate{
		"MKT-B": estimate("MKT-B", 0.30, 0.9), // modelNo = 0.70 vs 0.44
	})
	require.Len(t, edges, 1)
	assert.Equal(t, domain.SideNo, edges[0].Side)
	assert.InDelta(t, 0.70, edges[0].ModelProb, 1e-9)
	assert.InDelta(t, 0.44, edges[0].MarketProb, 1e-9)
}

func TestDetectEdges_MissingEstimateSkipped(t *testing.T) {
	d := newTestDetector(0.01)
	edges := d.DetectEdges(
		[]domain.Contract{twoSided("MKT-C", 40, 44, 56, 60)},
		map[string]domain.Estimate{},
	)
	assert.Empty(t, edges)
}

func TestDetectEdges_OrderedByMagnitude(t *testing.T) {
	d := newTestDetector(0.02)
	contracts := []domain.Contract{
		twoSided("SMALL", 48, 52, 48, 52), // implied 0.50
		twoSided("BIG", 48, 52, 48, 52),
	}
	ests := map[string]domain.Estimate{
		"SMALL": estimate("SMALL", 0.55, 0.7), // edge 0.05
		"BIG":   estimate("BIG", 0.70, 0.7),   // edge 0.20
	}

	edges := d.DetectEdges(contracts, ests)
	require.Len(t, edges, 2)
	assert.Equal(t, "BIG", edges[0].Ticker)
	assert.Equal(t, "SMALL", edges[1].Ticker)
}

func TestDetectEdges_Idempotent(t *testing.T) {
	d := newTestDetector(0.02)
	contracts := []domain.Contract{
		twoSided("A", 48, 52, 48, 52),
		twoSided("B", 30, 34, 66, 70),
	}
	ests := map[string]domain.Estimate{
		"A": estimate("A", 0.62, 0.8),
		"B": estimate("B", 0.45, 0.8),
	}

	first := d.DetectEdges(contracts, ests)
	second := d.DetectEdges(contracts, ests)
	assert.Equal(t, first, second)
}

func TestFindArbitrage_Classification(t *testing.T) {
	d := newTestDetector(0.05)
	d.now = func() time.Time { return time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC) }

	contracts := []domain.Contract{
		twoSided("FREE", 0, 45, 0, 50),   // total 95 < 98
		twoSided("WIDE", 0, 60, 0, 60),   // total 120 > 115, both asks < 95
		twoSided("PINNED", 0, 99, 0, 30), // total 129 but yes ask >= 95
		twoSided("PAR", 0, 50, 0, 50),    // total 100, neither bucket
		{Ticker: "HALF", YesAsk: 45},     // missing no ask
	}

	opps := d.FindArbitrage(contracts)
	require.Len(t, opps, 2)

	assert.Equal(t, "FREE", opps[0].Ticker)
	assert.Equal(t, domain.ArbGuaranteedProfit, opps[0].Kind)
	assert.Equal(t, 95, opps[0].Total)

	assert.Equal(t, "WIDE", opps[1].Ticker)
	assert.Equal(t, domain.ArbWideSpread, opps[1].Kind)
	assert.Equal(t, 120, opps[1].Total)
}

func TestFindArbitrage_SortOrder(t *testing.T) {
	d := newTestDetector(0.05)

	contracts := []domain.Contract{
		twoSided("WIDE-NARROW", 0, 58, 0, 58), // wide, total 116
		twoSided("PROFIT-THIN", 0, 48, 0, 49), // guaranteed, total 97
		twoSided("WIDE-HUGE", 0, 70, 0, 70),   // wide, total 140
		twoSided("PROFIT-FAT", 0, 40, 0, 45),  // guaranteed, total 85
	}

	opps := d.FindArbitrage(contracts)
	require.Len(t, opps, 4)

	// guaranteed first by ascending total, wide after by descending total
	assert.Equal(t, "PROFIT-FAT", opps[0].Ticker)
	assert.Equal(t, "PROFIT-THIN", opps[1].Ticker)
	assert.Equal(t, "WIDE-HUGE", opps[2].Ticker)
	assert.Equal(t, "WIDE-NARROW", opps[3].Ticker)
}

func TestImpliedProb_BookShapes(t *testing.T) {
	full := twoSided("X", 40, 44, 56, 60)
	assert.InDelta(t, 0.42, full.ImpliedProb(domain.SideYes), 1e-9)

	askOnly := domain.Contract{YesAsk: 30}
	assert.InDelta(t, 0.30, askOnly.ImpliedProb(domain.SideYes), 1e-9)

	bidOnly := domain.Contract{YesBid: 25}
	assert.InDelta(t, 0.25, bidOnly.ImpliedProb(domain.SideYes), 1e-9)

	empty := domain.Contract{}
	assert.InDelta(t, 0.50, empty.ImpliedProb(domain.SideYes), 1e-9)
}
