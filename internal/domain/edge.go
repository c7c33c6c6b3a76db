package domain

// Edge is a detected disagreement between an Estimate and the market price
// for one side of one contract. Edges exist only transiently within a cycle;
// a contract may yield zero, one, or two (YES and NO are scored
// independently).
type Edge struct {
	Ticker     string
	Side       Side
	MarketProb float64 // implied probability for this side
	ModelProb  float64 // forecaster probability for this side
	Value      float64 // ModelProb - MarketProb
	EVPerUSD   float64 // expected value per dollar risked
	Confidence float64 // carried from the estimate for downstream gating
	Contract   Contract
}
