// Package scan drives the trading cycle: fetch contracts, filter candidates,
// collect forecasts, detect edges, size signals, dispatch to the active
// execution back end, and repeat on a fixed interval until stopped.
package scan

import (
	"sort"
	"strings"

	"github.com/edgehound/edgehound/internal/domain"
)

// Candidate price band, in cents. Contracts priced at the extremes carry no
// tradeable disagreement; the market has already decided.
const (
	minCandidatePrice = 5
	maxCandidatePrice = 95
)

// minCandidateVolume excludes books too thin to fill even a small order.
const minCandidateVolume = 10

// maxForecastSpread is the widest yes bid-ask spread, in cents, at which the
// midpoint still approximates an executable price.
const maxForecastSpread = 20

// FilterConfig narrows the open-contract universe to tradeable candidates.
type FilterConfig struct {
	// Categories is an allow-list of grouping keys; empty allows all.
	Categories []string
	// MaxCandidates bounds the diversified selection per cycle.
	MaxCandidates int
}

// FilterCandidates keeps open contracts with at least one quote, a price
// strictly inside the candidate band, enough volume, and a matching category
// when an allow-list is configured.
func FilterCandidates(contracts []domain.Contract, cfg FilterConfig) []domain.Contract {
	allowed := make(map[string]bool, len(cfg.Categories))
	for _, cat := range cfg.Categories {
		allowed[strings.ToLower(strings.TrimSpace(cat))] = true
	}

	var out []domain.Contract
	for _, c := range contracts {
		if c.Status != domain.ContractStatusOpen {
			continue
		}
		if !c.HasQuote() {
			continue
		}
		price := c.ImpliedProb(domain.SideYes) * 100
		if price <= minCandidatePrice || price >= maxCandidatePrice {
			continue
		}
		if c.Volume < minCandidateVolume {
			continue
		}
		if len(allowed) > 0 && !allowed[strings.ToLower(c.Category)] {
			continue
		}
		out = append(out, c)
	}
	return out
}

// realTimeMarkers flag contracts whose resolution depends on data the
// forecaster cannot observe (live prices, weather readings, game scores).
// Forecasting those wastes budget on coin flips.
var realTimeMarkers = []string{
	"price of",
	"close at",
	"closing price",
	"bitcoin",
	"btc",
	"ethereum",
	"s&p",
	"nasdaq",
	"dow jones",
	"temperature",
	"high temp",
	"degrees",
	"rainfall",
	"score",
	"points in",
}

// FilterForecastable drops candidates the forecaster cannot usefully reason
// about: real-time-data contracts and books whose yes spread is too wide for
// the midpoint to approximate an executable price.
func FilterForecastable(contracts []domain.Contract) []domain.Contract {
	var out []domain.Contract
	for _, c := range contracts {
		if dependsOnRealTimeData(c.Title) {
			continue
		}
		if c.YesBid > 0 && c.YesAsk > 0 && c.YesAsk-c.YesBid > maxForecastSpread {
			continue
		}
		out = append(out, c)
	}
	return out
}

func dependsOnRealTimeData(title string) bool {
	lower := strings.ToLower(title)
	for _, marker := range realTimeMarkers {
		if strings.Contains(lower, marker) {
			return true
		}
	}
	return false
}

// SelectDiverse picks up to max contracts round-robin across categories, each
// category ordered by descending volume. Illiquid categories are not starved
// and the most liquid members win within each category.
func SelectDiverse(contracts []domain.Contract, max int) []domain.Contract {
	if max <= 0 || len(contracts) == 0 {
		return nil
	}

	groups := make(map[string][]domain.Contract)
	var order []string
	for _, c := range contracts {
		if _, ok := groups[c.Category]; !ok {
			order = append(order, c.Category)
		}
		groups[c.Category] = append(groups[c.Category], c)
	}
	for _, cat := range order {
		g := groups[cat]
		sort.SliceStable(g, func(i, j int) bool {
			return g[i].Volume > g[j].Volume
		})
	}
	sort.Strings(order)

	var out []domain.Contract
	for round := 0; len(out) < max; round++ {
		picked := false
		for _, cat := range order {
			g := groups[cat]
			if round >= len(g) {
				continue
			}
			out = append(out, g[round])
			picked = true
			if len(out) == max {
				break
			}
		}
		if !picked {
			break
		}
	}
	return out
}
