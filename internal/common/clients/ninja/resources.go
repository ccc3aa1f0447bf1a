package ninja

import (
	"time"

	"github.com/leonid6372/stock-arena/internal/common/domain"
	"github.com/leonid6372/stock-arena/internal/validator"
	"github.com/shopspring/decimal"
)

type stockPriceResponse struct {
	Ticker        string   `json:"ticker"`
	Name          string   `json:"name"`
	Price         float64  `json:"price"`
	Change        *float64 `json:"change"`
	ChangePercent *float64 `json:"change_percent"`
	Exchange      string   `json:"exchange"`
	Updated       int64    `json:"updated"`
}

// CreateDomain converts the response; the price is validated and rounded to PriceScale.
func (res *stockPriceResponse) CreateDomain() (*domain.Quote, error) {
	price, err := validator.ValidateFloatPrice(res.Price)
	if err != nil {
		return nil, err
	}

	name := res.Name
	if name == "" {
		name = res.Ticker + " Inc."
	}

	quote := &domain.Quote{
		Symbol:        res.Ticker,
		Name:          name,
		Price:         price,
		Change:        nullDecimal(res.Change),
		ChangePercent: nullDecimal(res.ChangePercent),
	}

	if res.Updated > 0 {
		quote.FetchedAt = time.Unix(res.Updated, 0).UTC()
	}

	return quote, nil
}

func nullDecimal(value *float64) decimal.NullDecimal {
	if value == nil {
		return decimal.NullDecimal{}
	}

	return decimal.NewNullDecimal(decimal.NewFromFloat(*value).Round(domain.PriceScale))
}
