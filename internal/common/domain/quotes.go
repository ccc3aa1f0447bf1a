package domain

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// QuoteProvider is the upstream market data source.
type QuoteProvider interface {
	FetchQuote(ctx context.Context, symbol string) (*Quote, error)
}

// QuotesRepository keeps the last known quote per symbol. It is an accelerator, never a source of truth.
type QuotesRepository interface {
	UpsertQuotes(ctx context.Context, quotes []*Quote) error
	GetQuotes(ctx context.Context) ([]*Quote, error)
	// GetLastUpdated returns the zero time when no quote was stored yet.
	GetLastUpdated(ctx context.Context) (time.Time, error)
}

type Quote struct {
	Symbol        string              `json:"symbol"`
	Name          string              `json:"name,omitempty"`
	Price         decimal.Decimal     `json:"price"`
	Change        decimal.NullDecimal `json:"change"`
	ChangePercent decimal.NullDecimal `json:"change_percent"`
	FetchedAt     time.Time           `json:"fetched_at"`

	// Stale is set when the quote outlived its TTL and was served because the upstream failed.
	Stale bool `json:"stale,omitempty"`
}
