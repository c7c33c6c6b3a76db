package domain

import "time"

// SignalAction is the instruction carried by a trade signal. The engine only
// opens positions; exits happen through settlement.
type SignalAction string

const SignalActionBuy SignalAction = "buy"

// TradeSignal is a risk-approved, sized trading instruction derived from an
// Edge plus the current portfolio state. It is consumed immediately by the
// active execution back end.
type TradeSignal struct {
	ID            string // UUID for audit and dedup
	Ticker        string
	Title         string // display title, carried through to positions
	Side          Side
	Action        SignalAction
	Contracts     int     // integer contract count, >= 1
	LimitPrice    int     // same-side ask at signal time, in cents
	KellyFraction float64 // realized fraction of bankroll after clamps
	SizeUSD       float64 // dollars actually committed at LimitPrice
	Rationale     string
	CreatedAt     time.Time
}
