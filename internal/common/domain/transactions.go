package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

type Side string

const (
	SideBuy  Side = "buy"
	SideSell Side = "sell"
)

func (s Side) Valid() bool {
	return s == SideBuy || s == SideSell
}

// Transaction is an immutable record of an executed trade.
type Transaction struct {
	ID        string          `json:"id"`
	AccountID string          `json:"account_id"`
	Symbol    string          `json:"symbol"`
	Side      Side            `json:"side"`
	Quantity  int64           `json:"quantity"`
	Price     decimal.Decimal `json:"price"`
	Total     decimal.Decimal `json:"total"`

	// RealizedPnL is the gain locked in by a sale against the average cost basis. Zero for buys.
	RealizedPnL decimal.Decimal `json:"realized_pnl"`

	CreatedAt time.Time `json:"created_at"`
}
