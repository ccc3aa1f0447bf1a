package domain

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

type PortfolioRepository interface {
	// GetPosition returns nil without error when the account holds no shares of symbol.
	GetPosition(ctx context.Context, accountID, symbol string) (*Position, error)
	// GetPositions returns open positions ordered by symbol.
	GetPositions(ctx context.Context, accountID string) ([]*Position, error)
	// GetHeldSymbols returns every symbol held by at least one account.
	GetHeldSymbols(ctx context.Context) ([]string, error)
	// Settle applies a settlement atomically: cash, position and transaction log change together or not at all.
	Settle(ctx context.Context, settlement *Settlement) error
	// GetTransactions returns the newest transactions first.
	GetTransactions(ctx context.Context, accountID string, limit int) ([]*Transaction, error)
}

type Position struct {
	AccountID string `json:"account_id"`
	Symbol    string `json:"symbol"`

	Quantity int64           `json:"quantity"`
	AvgCost  decimal.Decimal `json:"avg_cost"`
	Invested decimal.Decimal `json:"invested"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (p *Position) Open() bool {
	return p != nil && p.Quantity > 0
}

func (p *Position) Clone() *Position {
	clone := *p
	return &clone
}

// Settlement is the result of one validated trade.
// A Position with zero quantity closes (removes) the holding.
type Settlement struct {
	CashDelta   decimal.Decimal
	Position    *Position
	Transaction *Transaction
}
