package domain

import "time"

// Position is an open holding in one contract. At most one side per contract
// is ever held; the paper ledger enforces this and rejects opposite-side
// fills outright.
type Position struct {
	Ticker    string
	Side      Side
	Contracts int
	AvgPrice  float64 // volume-weighted average cost in cents
	Title     string  // display title, carried for summaries
}

// CostBasis returns the dollars tied up in the position.
func (p Position) CostBasis() float64 {
	return float64(p.Contracts) * p.AvgPrice / 100
}

// Portfolio is a read-only aggregate snapshot passed into the risk manager
// each cycle. It is produced by whichever execution back end owns the state.
type Portfolio struct {
	Balance       float64
	Positions     []Position
	Exposure      float64 // sum of cost basis across open positions
	RealizedPnL   float64
	UnrealizedPnL float64 // always 0: marking to market needs a live price feed
}

// HasPosition reports whether any side of the given contract is held.
func (pf Portfolio) HasPosition(ticker string) bool {
	for _, p := range pf.Positions {
		if p.Ticker == ticker {
			return true
		}
	}
	return false
}

// TradeRecord is the result of dispatching one signal to an execution back
// end. Unfilled records model a broker-style rejection (insufficient funds)
// without surfacing an error.
type TradeRecord struct {
	ID         string
	SignalID   string
	Ticker     string
	Side       Side
	Contracts  int
	Price      int // cents
	CostUSD    float64
	Filled     bool
	Reason     string // populated when Filled is false
	ExecutedAt time.Time
}

// Settlement records the terminal resolution of a held position.
type Settlement struct {
	ID          string
	Ticker      string
	Side        Side // the side that was held
	Outcome     Side // the side that won
	Contracts   int
	AvgPrice    float64 // cents
	RealizedPnL float64
	SettledAt   time.Time
}
