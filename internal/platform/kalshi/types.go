package kalshi

import (
	"time"

	"github.com/edgehound/edgehound/internal/domain"
)

// APIMarket is a market as returned by the exchange REST API. Quotes are
// integer cents; 0 means no resting order on that side.
type APIMarket struct {
	Ticker         string `json:"ticker"`
	EventTicker    string `json:"event_ticker"`
	Title          string `json:"title"`
	Subtitle       string `json:"subtitle"`
	Status         string `json:"status"` // "active"/"open", "closed", "settled"
	YesBid         int    `json:"yes_bid"`
	YesAsk         int    `json:"yes_ask"`
	NoBid          int    `json:"no_bid"`
	NoAsk          int    `json:"no_ask"`
	Volume         int64  `json:"volume"`
	OpenInterest   int64  `json:"open_interest"`
	Category       string `json:"category"`
	ExpirationTime string `json:"expiration_time"`
	Result         string `json:"result"` // "yes", "no", "" while unsettled
}

// ToContract maps the API DTO onto the domain snapshot. Unknown statuses map
// to closed so the candidate filter drops them rather than trading blind.
func (m APIMarket) ToContract() domain.Contract {
	var status domain.ContractStatus
	switch m.Status {
	case "active", "open":
		status = domain.ContractStatusOpen
	case "settled", "finalized":
		status = domain.ContractStatusSettled
	default:
		status = domain.ContractStatusClosed
	}

	var result domain.Side
	switch m.Result {
	case "yes":
		result = domain.SideYes
	case "no":
		result = domain.SideNo
	}

	expires, _ := time.Parse(time.RFC3339, m.ExpirationTime)

	return domain.Contract{
		Ticker:       m.Ticker,
		Title:        m.Title,
		Category:     m.Category,
		Status:       status,
		YesBid:       m.YesBid,
		YesAsk:       m.YesAsk,
		NoBid:        m.NoBid,
		NoAsk:        m.NoAsk,
		Volume:       m.Volume,
		OpenInterest: m.OpenInterest,
		ExpiresAt:    expires,
		Result:       result,
	}
}

// APIOrder is the order payload for the exchange portfolio endpoint.
type APIOrder struct {
	Ticker   string `json:"ticker"`
	Action   string `json:"action"` // "buy" or "sell"
	Side     string `json:"side"`   // "yes" or "no"
	Type     string `json:"type"`   // "limit"
	Count    int    `json:"count"`
	YesPrice *int   `json:"yes_price,omitempty"` // limit price in cents
	NoPrice  *int   `json:"no_price,omitempty"`
}

// APIErrorResponse is the exchange error envelope.
type APIErrorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}
