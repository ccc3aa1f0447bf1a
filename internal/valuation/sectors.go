package valuation

import (
	"cmp"
	"slices"

	"github.com/shopspring/decimal"
)

const OtherSector = "Other"

var sectors = map[string]string{
	"AAPL":  "Technology",
	"MSFT":  "Technology",
	"GOOGL": "Technology",
	"META":  "Technology",
	"NVDA":  "Technology",
	"AMZN":  "Consumer Cyclical",
	"TSLA":  "Automotive",
	"JPM":   "Financial Services",
	"BAC":   "Financial Services",
	"V":     "Financial Services",
	"MA":    "Financial Services",
	"XOM":   "Energy",
	"CVX":   "Energy",
	"JNJ":   "Healthcare",
	"PFE":   "Healthcare",
	"UNH":   "Healthcare",
	"PG":    "Consumer Defensive",
	"KO":    "Consumer Defensive",
	"WMT":   "Consumer Defensive",
}

func SectorOf(symbol string) string {
	if sector, ok := sectors[symbol]; ok {
		return sector
	}

	return OtherSector
}

type SectorWeight struct {
	Sector  string          `json:"sector"`
	Value   decimal.Decimal `json:"value"`
	Percent decimal.Decimal `json:"percent"`
}

// SectorAllocation groups priced holdings by sector, largest first.
func SectorAllocation(holdings []*Holding) []*SectorWeight {
	bySector := make(map[string]decimal.Decimal)
	total := decimal.Zero

	for _, holding := range holdings {
		if !holding.Priced {
			continue
		}

		bySector[holding.Sector] = bySector[holding.Sector].Add(holding.MarketValue)
		total = total.Add(holding.MarketValue)
	}

	weights := make([]*SectorWeight, 0, len(bySector))
	for sector, value := range bySector {
		weights = append(weights, &SectorWeight{
			Sector:  sector,
			Value:   value,
			Percent: percentOf(value, total),
		})
	}

	slices.SortFunc(weights, func(a, b *SectorWeight) int {
		if c := b.Value.Cmp(a.Value); c != 0 {
			return c
		}
		return cmp.Compare(a.Sector, b.Sector)
	})

	return weights
}

// Diversification scores a portfolio by its number of open positions: 10 points each, at most 100.
func Diversification(openPositions int) int {
	return min(openPositions*10, 100)
}
