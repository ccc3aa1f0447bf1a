package quotes

import "strings"

const searchLimit = 10

// popular is the searchable ticker list; any valid ticker can still be quoted directly.
var popular = []string{
	"AAPL", "MSFT", "AMZN", "TSLA", "GOOGL", "META", "NVDA", "NFLX",
	"JPM", "JNJ", "V", "PG", "UNH", "HD", "MA", "DIS", "PYPL", "BAC",
	"ADBE", "CRM", "INTC", "AMD", "ORCL", "IBM", "CSCO", "XOM", "CVX",
}

// SearchSymbols returns up to ten popular tickers containing query, case-insensitively.
func SearchSymbols(query string) []string {
	query = strings.ToUpper(strings.TrimSpace(query))
	if query == "" {
		return []string{}
	}

	matches := []string{}
	for _, symbol := range popular {
		if strings.Contains(symbol, query) {
			matches = append(matches, symbol)
			if len(matches) == searchLimit {
				break
			}
		}
	}

	return matches
}
