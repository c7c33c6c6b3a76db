package domain

import "time"

// ArbKind classifies a structural mispricing.
type ArbKind string

const (
	// ArbGuaranteedProfit: yesAsk + noAsk < 98. Buying both sides costs less
	// than the guaranteed $1 payout with a 2-cent margin absorbing per-side
	// fees.
	ArbGuaranteedProfit ArbKind = "guaranteed_profit"
	// ArbWideSpread: yesAsk + noAsk > 115 with both asks below 95.
	// Informational only; the one-sided-book exclusion keeps illiquid
	// markets with a default 99-cent ask from flagging as wide.
	ArbWideSpread ArbKind = "wide_spread"
)

// ArbOpportunity is a forecaster-independent structural mispricing detected
// from ask prices alone.
type ArbOpportunity struct {
	Ticker     string
	Title      string
	Kind       ArbKind
	YesAsk     int
	NoAsk      int
	Total      int // YesAsk + NoAsk, cents
	DetectedAt time.Time
}
