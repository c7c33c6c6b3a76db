package scan

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/edgehound/edgehound/internal/domain"
)

func openContract(ticker, category string, yesBid, yesAsk int, volume int64) domain.Contract {
	return domain.Contract{
		Ticker:   ticker,
		Title:    "Will " + ticker + " happen?",
		Category: category,
		Status:   domain.ContractStatusOpen,
		YesBid:   yesBid,
		YesAsk:   yesAsk,
		NoBid:    100 - yesAsk,
		NoAsk:    100 - yesBid,
		Volume:   volume,
	}
}

func TestFilterCandidates_PriceBandIsStrict(t *testing.T) {
	contracts := []domain.Contract{
		openContract("AT-FLOOR", "politics", 4, 6, 100),   // midpoint exactly 5
		openContract("JUST-IN", "politics", 5, 7, 100),    // midpoint 6
		openContract("AT-CEIL", "politics", 94, 96, 100),  // midpoint exactly 95
		openContract("MIDDLE", "politics", 48, 52, 100),   // midpoint 50
		openContract("DECIDED", "politics", 97, 99, 1000), // midpoint 98
	}

	out := FilterCandidates(contracts, FilterConfig{})
	require.Len(t, out, 2)
	assert.Equal(t, "JUST-IN", out[0].Ticker)
	assert.Equal(t, "MIDDLE", out[1].Ticker)
}

func TestFilterCandidates_StatusVolumeAndQuotes(t *testing.T) {
	closed := openContract("CLOSED", "politics", 48, 52, 100)
	closed.Status = domain.ContractStatusClosed

	noQuotes := domain.Contract{Ticker: "EMPTY", Status: domain.ContractStatusOpen, Volume: 100}
	thin := openContract("THIN", "politics", 48, 52, 9)

	out := FilterCandidates([]domain.Contract{
		closed, noQuotes, thin,
		openContract("GOOD", "politics", 48, 52, 10),
	}, FilterConfig{})
	require.Len(t, out, 1)
	assert.Equal(t, "GOOD", out[0].Ticker)
}

func TestFilterCandidates_CategoryAllowList(t *testing.T) {
	contracts := []domain.Contract{
		openContract("A", "Politics", 48, 52, 100),
		openContract("B", "sports", 48, 52, 100),
		openContract("C", "weather", 48, 52, 100),
	}

	// matching is case-insensitive on both sides
	out := FilterCandidates(contracts, FilterConfig{Categories: []string{"politics", " Sports "}})
	require.Len(t, out, 2)
	assert.Equal(t, "A", out[0].Ticker)
	assert.Equal(t, "B", out[1].Ticker)

	// empty allow-list admits everything
	assert.Len(t, FilterCandidates(contracts, FilterConfig{}), 3)
}

func TestFilterForecastable_DropsRealTimeDataMarkets(t *testing.T) {
	btc := openContract("BTC", "crypto", 48, 52, 100)
	btc.Title = "Will Bitcoin close at $100k?"

	weather := openContract("TEMP", "weather", 48, 52, 100)
	weather.Title = "High temperature above 90 degrees in NYC?"

	election := openContract("ELECT", "politics", 48, 52, 100)
	election.Title = "Will the incumbent win the election?"

	out := FilterForecastable([]domain.Contract{btc, weather, election})
	require.Len(t, out, 1)
	assert.Equal(t, "ELECT", out[0].Ticker)
}

func TestFilterForecastable_DropsWideSpreads(t *testing.T) {
	wide := openContract("WIDE", "politics", 30, 55, 100) // spread 25
	edge := openContract("EDGE", "politics", 30, 50, 100) // spread exactly 20 passes
	oneSided := domain.Contract{
		Ticker: "ONESIDED",
		Title:  "Will something generic resolve yes?",
		Status: domain.ContractStatusOpen,
		YesAsk: 60,
		Volume: 100,
	}

	out := FilterForecastable([]domain.Contract{wide, edge, oneSided})
	require.Len(t, out, 2)
	assert.Equal(t, "EDGE", out[0].Ticker)
	assert.Equal(t, "ONESIDED", out[1].Ticker)
}

func TestSelectDiverse_RoundRobinAcrossCategories(t *testing.T) {
	contracts := []domain.Contract{
		openContract("S1", "sports", 48, 52, 500),
		openContract("P1", "politics", 48, 52, 900),
		openContract("P2", "politics", 48, 52, 300),
		openContract("S2", "sports", 48, 52, 100),
		openContract("P3", "politics", 48, 52, 700),
	}

	out := SelectDiverse(contracts, 4)
	require.Len(t, out, 4)

	// round one walks categories alphabetically taking each leader by volume,
	// round two takes the runners-up
	assert.Equal(t, "P1", out[0].Ticker)
	assert.Equal(t, "S1", out[1].Ticker)
	assert.Equal(t, "P3", out[2].Ticker)
	assert.Equal(t, "S2", out[3].Ticker)
}

func TestSelectDiverse_Bounds(t *testing.T) {
	contracts := []domain.Contract{
		openContract("A", "politics", 48, 52, 100),
		openContract("B", "sports", 48, 52, 100),
	}

	assert.Nil(t, SelectDiverse(contracts, 0))
	assert.Nil(t, SelectDiverse(nil, 5))
	assert.Len(t, SelectDiverse(contracts, 10), 2)
}
