package domain

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

type AccountsRepository interface {
	// EnsureAccount inserts account unless one with the same ID exists and returns the stored row.
	EnsureAccount(ctx context.Context, account *Account) (*Account, error)
	GetAccount(ctx context.Context, id string) (*Account, error)
	ListAccounts(ctx context.Context) ([]*Account, error)
	UpdateDisplayName(ctx context.Context, id, displayName string) error
}

type Account struct {
	ID          string          `json:"id"`
	DisplayName string          `json:"display_name"`
	Cash        decimal.Decimal `json:"cash"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (a *Account) Clone() *Account {
	clone := *a
	return &clone
}
