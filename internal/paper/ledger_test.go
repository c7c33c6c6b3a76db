package paper

import (
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/edgehound/edgehound/internal/domain"
)

func newTestLedger(balance float64) *Ledger {
	return NewLedger(balance, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func signal(ticker string, side domain.Side, contracts, price int) domain.TradeSignal {
	return domain.TradeSignal{
		ID:         "sig-" + ticker,
		Ticker:     ticker,
		Title:      "Test market " + ticker,
		Side:       side,
		Action:     domain.SignalActionBuy,
		Contracts:  contracts,
		LimitPrice: price,
	}
}

func TestExecute_FillDebitsCashAndOpensPosition(t *testing.T) {
	l := newTestLedger(100)

	rec, err := l.Execute(signal("MKT", domain.SideYes, 10, 40))
	require.NoError(t, err)
	assert.True(t, rec.Filled)
	assert.InDelta(t, 4.0, rec.CostUSD, 1e-9)

	pf := l.Portfolio()
	assert.InDelta(t, 96.0, pf.Balance, 1e-9)
	require.Len(t, pf.Positions, 1)
	assert.Equal(t, 10, pf.Positions[0].Contracts)
	assert.InDelta(t, 40.0, pf.Positions[0].AvgPrice, 1e-9)
	assert.InDelta(t, 4.0, pf.Exposure, 1e-9)
}

func TestExecute_SameSideAddMergesAtVWAP(t *testing.T) {
	l := newTestLedger(1000)

	_, err := l.Execute(signal("MKT", domain.SideYes, 10, 40))
	require.NoError(t, err)
	_, err = l.Execute(signal("MKT", domain.SideYes, 10, 60))
	require.NoError(t, err)

	pf := l.Portfolio()
	require.Len(t, pf.Positions, 1)
	assert.Equal(t, 20, pf.Positions[0].Contracts)
	assert.InDelta(t, 50.0, pf.Positions[0].AvgPrice, 1e-9)
	assert.InDelta(t, 10.0, pf.Exposure, 1e-9)
}

func TestExecute_OppositeSideRejected(t *testing.T) {
	l := newTestLedger(1000)

	_, err := l.Execute(signal("MKT", domain.SideYes, 10, 40))
	require.NoError(t, err)

	rec, err := l.Execute(signal("MKT", domain.SideNo, 5, 55))
	require.ErrorIs(t, err, domain.ErrPositionConflict)
	assert.False(t, rec.Filled)

	// the rejected fill mutated nothing
	pf := l.Portfolio()
	assert.InDelta(t, 996.0, pf.Balance, 1e-9)
	require.Len(t, pf.Positions, 1)
	assert.Equal(t, domain.SideYes, pf.Positions[0].Side)
}

func TestExecute_InsufficientFundsIsUnfilledNotError(t *testing.T) {
	l := newTestLedger(3)

	rec, err := l.Execute(signal("MKT", domain.SideYes, 10, 40)) // costs $4
	require.NoError(t, err)
	assert.False(t, rec.Filled)
	assert.Equal(t, "insufficient funds", rec.Reason)

	pf := l.Portfolio()
	assert.InDelta(t, 3.0, pf.Balance, 1e-9)
	assert.Empty(t, pf.Positions)
}

func TestSettle_WinningSideCreditsPayout(t *testing.T) {
	l := newTestLedger(100)
	_, err := l.Execute(signal("MKT", domain.SideYes, 10, 40)) // basis $4
	require.NoError(t, err)

	set, err := l.Settle("MKT", domain.SideYes)
	require.NoError(t, err)
	assert.InDelta(t, 6.0, set.RealizedPnL, 1e-9) // $10 payout - $4 basis

	pf := l.Portfolio()
	assert.InDelta(t, 106.0, pf.Balance, 1e-9)
	assert.Empty(t, pf.Positions)
	assert.InDelta(t, 6.0, pf.RealizedPnL, 1e-9)
}

func TestSettle_LosingSideForfeitsBasis(t *testing.T) {
	l := newTestLedger(100)
	_, err := l.Execute(signal("MKT", domain.SideYes, 10, 40))
	require.NoError(t, err)

	set, err := l.Settle("MKT", domain.SideNo)
	require.NoError(t, err)
	assert.InDelta(t, -4.0, set.RealizedPnL, 1e-9)

	pf := l.Portfolio()
	assert.InDelta(t, 96.0, pf.Balance, 1e-9)
	assert.Empty(t, pf.Positions)
	assert.InDelta(t, -4.0, pf.RealizedPnL, 1e-9)
}

func TestSettle_UnknownTicker(t *testing.T) {
	l := newTestLedger(100)
	_, err := l.Settle("NOPE", domain.SideYes)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestPortfolio_RealizedIdentityWithOpenPositions(t *testing.T) {
	l := newTestLedger(100)
	_, err := l.Execute(signal("OPEN", domain.SideYes, 10, 30)) // $3 still committed
	require.NoError(t, err)
	_, err = l.Execute(signal("DONE", domain.SideNo, 10, 20)) // $2, will lose
	require.NoError(t, err)
	_, err = l.Settle("DONE", domain.SideYes)
	require.NoError(t, err)

	pf := l.Portfolio()
	// balance 95, exposure 3: realized = 95 - 100 + 3 = -2, the settled loss
	assert.InDelta(t, 95.0, pf.Balance, 1e-9)
	assert.InDelta(t, 3.0, pf.Exposure, 1e-9)
	assert.InDelta(t, -2.0, pf.RealizedPnL, 1e-9)
	assert.Zero(t, pf.UnrealizedPnL)
}
