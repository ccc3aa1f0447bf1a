package postgres

import (
	"fmt"
	"time"

	"github.com/leonid6372/stock-arena/internal/common/domain"
	"github.com/shopspring/decimal"
)

// Numeric columns are selected as TEXT and parsed with shopspring/decimal to keep them exact.

type Account struct {
	ID          string `db:"id"`
	DisplayName string `db:"display_name"`
	Cash        string `db:"cash"`

	CreatedAt time.Time `db:"created_at"`
	UpdatedAt time.Time `db:"updated_at"`
}

func (a *Account) CreateDomain() (*domain.Account, error) {
	cash, err := decimal.NewFromString(a.Cash)
	if err != nil {
		return nil, fmt.Errorf("account %s cash: %w", a.ID, err)
	}

	return &domain.Account{
		ID:          a.ID,
		DisplayName: a.DisplayName,
		Cash:        cash,
		CreatedAt:   a.CreatedAt,
		UpdatedAt:   a.UpdatedAt,
	}, nil
}

type Position struct {
	AccountID string `db:"account_id"`
	Symbol    string `db:"symbol"`
	Quantity  int64  `db:"quantity"`
	AvgCost   string `db:"avg_cost"`
	Invested  string `db:"invested"`

	CreatedAt time.Time `db:"created_at"`
	UpdatedAt time.Time `db:"updated_at"`
}

func (p *Position) CreateDomain() (*domain.Position, error) {
	avgCost, err := decimal.NewFromString(p.AvgCost)
	if err != nil {
		return nil, fmt.Errorf("position %s/%s avg cost: %w", p.AccountID, p.Symbol, err)
	}

	invested, err := decimal.NewFromString(p.Invested)
	if err != nil {
		return nil, fmt.Errorf("position %s/%s invested: %w", p.AccountID, p.Symbol, err)
	}

	return &domain.Position{
		AccountID: p.AccountID,
		Symbol:    p.Symbol,
		Quantity:  p.Quantity,
		AvgCost:   avgCost,
		Invested:  invested,
		CreatedAt: p.CreatedAt,
		UpdatedAt: p.UpdatedAt,
	}, nil
}

type Transaction struct {
	ID          string `db:"id"`
	AccountID   string `db:"account_id"`
	Symbol      string `db:"symbol"`
	Side        string `db:"side"`
	Quantity    int64  `db:"quantity"`
	Price       string `db:"price"`
	Total       string `db:"total"`
	RealizedPnL string `db:"realized_pnl"`

	CreatedAt time.Time `db:"created_at"`
}

func (t *Transaction) CreateDomain() (*domain.Transaction, error) {
	values := [3]decimal.Decimal{}
	for i, raw := range []string{t.Price, t.Total, t.RealizedPnL} {
		value, err := decimal.NewFromString(raw)
		if err != nil {
			return nil, fmt.Errorf("transaction %s: %w", t.ID, err)
		}
		values[i] = value
	}

	return &domain.Transaction{
		ID:          t.ID,
		AccountID:   t.AccountID,
		Symbol:      t.Symbol,
		Side:        domain.Side(t.Side),
		Quantity:    t.Quantity,
		Price:       values[0],
		Total:       values[1],
		RealizedPnL: values[2],
		CreatedAt:   t.CreatedAt,
	}, nil
}

type Quote struct {
	Symbol        string  `db:"symbol"`
	Name          string  `db:"name"`
	Price         string  `db:"price"`
	Change        *string `db:"change"`
	ChangePercent *string `db:"change_percent"`

	FetchedAt time.Time `db:"fetched_at"`
}

func (q *Quote) CreateDomain() (*domain.Quote, error) {
	price, err := decimal.NewFromString(q.Price)
	if err != nil {
		return nil, fmt.Errorf("quote %s price: %w", q.Symbol, err)
	}

	change, err := nullDecimal(q.Change)
	if err != nil {
		return nil, fmt.Errorf("quote %s change: %w", q.Symbol, err)
	}

	changePercent, err := nullDecimal(q.ChangePercent)
	if err != nil {
		return nil, fmt.Errorf("quote %s change percent: %w", q.Symbol, err)
	}

	return &domain.Quote{
		Symbol:        q.Symbol,
		Name:          q.Name,
		Price:         price,
		Change:        change,
		ChangePercent: changePercent,
		FetchedAt:     q.FetchedAt,
	}, nil
}

func nullDecimal(raw *string) (decimal.NullDecimal, error) {
	if raw == nil {
		return decimal.NullDecimal{}, nil
	}

	value, err := decimal.NewFromString(*raw)
	if err != nil {
		return decimal.NullDecimal{}, err
	}

	return decimal.NewNullDecimal(value), nil
}

func nullString(value decimal.NullDecimal) *string {
	if !value.Valid {
		return nil
	}

	s := value.Decimal.String()
	return &s
}
