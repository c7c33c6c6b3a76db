package domain

import "time"

// ContractStatus represents the lifecycle state of a contract.
type ContractStatus string

const (
	ContractStatusOpen    ContractStatus = "open"
	ContractStatusClosed  ContractStatus = "closed"
	ContractStatusSettled ContractStatus = "settled"
)

// Side identifies one of the two outcomes of a binary contract.
type Side string

const (
	SideYes Side = "yes"
	SideNo  Side = "no"
)

// Opposite returns the other side of a binary contract.
func (s Side) Opposite() Side {
	if s == SideYes {
		return SideNo
	}
	return SideYes
}

// Contract is an immutable per-cycle snapshot of a tradeable binary-outcome
// listing. All quotes are in integer cents; 0 means no resting order on that
// side of the book.
type Contract struct {
	Ticker       string
	Title        string
	Category     string
	Status       ContractStatus
	YesBid       int
	YesAsk       int
	NoBid        int
	NoAsk        int
	Volume       int64
	OpenInterest int64
	ExpiresAt    time.Time
	Result       Side // "" until settled
}

// Quotes returns the bid and ask for the given side, in cents.
func (c Contract) Quotes(side Side) (bid, ask int) {
	if side == SideYes {
		return c.YesBid, c.YesAsk
	}
	return c.NoBid, c.NoAsk
}

// ImpliedProb converts the book for one side into a probability. With both
// quotes present the midpoint is used; with a one-sided book the single quote
// is used directly; an empty book defaults to 0.50 so thin markets never
// produce a divide-by-zero downstream.
func (c Contract) ImpliedProb(side Side) float64 {
	bid, ask := c.Quotes(side)
	switch {
	case bid > 0 && ask > 0:
		return float64(bid+ask) / 2 / 100
	case ask > 0:
		return float64(ask) / 100
	case bid > 0:
		return float64(bid) / 100
	default:
		return 0.50
	}
}

// HasQuote reports whether at least one side of the book carries a price.
func (c Contract) HasQuote() bool {
	return c.YesBid > 0 || c.YesAsk > 0 || c.NoBid > 0 || c.NoAsk > 0
}
