// Package ledger applies validated trades to accounts using weighted-average cost basis.
//
// Every mutation of one account is serialized by a per-account lock, and the
// resulting cash, position and transaction record are committed by the store in
// one atomic settlement.
package ledger

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/leonid6372/stock-arena/internal/common/domain"
	"github.com/leonid6372/stock-arena/internal/traderrs"
	"github.com/leonid6372/stock-arena/internal/validator"
	"github.com/leonid6372/stock-arena/pkg/errs"
	"github.com/shopspring/decimal"
)

type Ledger struct {
	accounts  domain.AccountsRepository
	portfolio domain.PortfolioRepository
	locks     *keyedMutex

	now   func() time.Time
	newID func() string
}

// Fill is a settled trade together with the account cash right after it.
type Fill struct {
	Transaction *domain.Transaction
	Cash        decimal.Decimal
}

func New(accounts domain.AccountsRepository, portfolio domain.PortfolioRepository) *Ledger {
	return &Ledger{
		accounts:  accounts,
		portfolio: portfolio,
		locks:     newKeyedMutex(),
		now:       time.Now,
		newID:     func() string { return uuid.New().String() },
	}
}

func (l *Ledger) ApplyBuy(ctx context.Context, accountID, symbol string, quantity int64, price decimal.Decimal) (*Fill, error) {
	return l.apply(ctx, domain.SideBuy, accountID, symbol, quantity, price)
}

func (l *Ledger) ApplySell(ctx context.Context, accountID, symbol string, quantity int64, price decimal.Decimal) (*Fill, error) {
	return l.apply(ctx, domain.SideSell, accountID, symbol, quantity, price)
}

func (l *Ledger) apply(ctx context.Context, side domain.Side, accountID, symbol string, quantity int64, price decimal.Decimal) (*Fill, error) {
	symbol, err := validator.NormalizeSymbol(symbol)
	if err != nil {
		return nil, err
	}

	if err := validator.Validate(quantity, price); err != nil {
		return nil, err
	}

	unlock := l.locks.Lock(accountID)
	defer unlock()

	account, err := l.accounts.GetAccount(ctx, accountID)
	if err != nil {
		return nil, storeErr(err)
	}

	current, err := l.portfolio.GetPosition(ctx, accountID, symbol)
	if err != nil {
		return nil, storeErr(err)
	}

	total := validator.Total(quantity, price)
	settlement := &domain.Settlement{}
	realized := decimal.Zero

	switch side {
	case domain.SideBuy:
		if err := validator.CheckBuy(account.Cash, quantity, price); err != nil {
			return nil, err
		}

		settlement.CashDelta = total.Neg()
		settlement.Position = buyPosition(accountID, symbol, current, quantity, price)

	case domain.SideSell:
		held := int64(0)
		if current.Open() {
			held = current.Quantity
		}

		if err := validator.CheckSell(held, quantity, price); err != nil {
			return nil, err
		}

		if settlement.Position, err = sellPosition(current, quantity); err != nil {
			return nil, err
		}
		settlement.CashDelta = total
		realized = price.Sub(current.AvgCost).Mul(decimal.NewFromInt(quantity))

	default:
		return nil, traderrs.ErrInvalidSide
	}

	settlement.Transaction = &domain.Transaction{
		ID:          l.newID(),
		AccountID:   accountID,
		Symbol:      symbol,
		Side:        side,
		Quantity:    quantity,
		Price:       price,
		Total:       total,
		RealizedPnL: realized,
		CreatedAt:   l.now().UTC(),
	}

	if err := l.portfolio.Settle(ctx, settlement); err != nil {
		return nil, storeErr(err)
	}

	return &Fill{Transaction: settlement.Transaction, Cash: account.Cash.Add(settlement.CashDelta)}, nil
}

// Snapshot reads cash and open positions of one account while no trade of that account is in flight.
func (l *Ledger) Snapshot(ctx context.Context, accountID string) (*domain.Account, []*domain.Position, error) {
	unlock := l.locks.Lock(accountID)
	defer unlock()

	account, err := l.accounts.GetAccount(ctx, accountID)
	if err != nil {
		return nil, nil, storeErr(err)
	}

	positions, err := l.portfolio.GetPositions(ctx, accountID)
	if err != nil {
		return nil, nil, storeErr(err)
	}

	return account, positions, nil
}

func (l *Ledger) Positions(ctx context.Context, accountID string) ([]*domain.Position, error) {
	_, positions, err := l.Snapshot(ctx, accountID)
	return positions, err
}

// Transactions returns the newest transactions first; limit <= 0 means DefaultTransactionsLimit.
func (l *Ledger) Transactions(ctx context.Context, accountID string, limit int) ([]*domain.Transaction, error) {
	if limit <= 0 {
		limit = domain.DefaultTransactionsLimit
	}

	if _, err := l.accounts.GetAccount(ctx, accountID); err != nil {
		return nil, storeErr(err)
	}

	transactions, err := l.portfolio.GetTransactions(ctx, accountID, limit)
	if err != nil {
		return nil, storeErr(err)
	}

	return transactions, nil
}

// storeErr keeps business rejections as they are and attaches a trace to infrastructure failures.
func storeErr(err error) error {
	if errors.Is(err, traderrs.ErrAccountNotFound) ||
		errors.Is(err, traderrs.ErrInsufficientFunds) ||
		errors.Is(err, traderrs.ErrInsufficientShares) {
		return err
	}

	return errs.NewStack(err)
}
