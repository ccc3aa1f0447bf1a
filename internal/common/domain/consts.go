package domain

import "github.com/shopspring/decimal"

const (
	DefaultTransactionsLimit = 50
	RecentTransactionsLimit  = 10
	TopEntriesLimit          = 10

	// PriceScale is the number of decimals kept for quote prices and cash.
	PriceScale = 4
)

var (
	DefaultInitialCash = decimal.NewFromInt(10000)

	// MaxPricePerShare rejects quotes that are unreasonably high.
	MaxPricePerShare = decimal.NewFromInt(1000000)
)
