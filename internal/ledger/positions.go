package ledger

import (
	"fmt"

	"github.com/leonid6372/stock-arena/internal/common/domain"
	"github.com/leonid6372/stock-arena/internal/traderrs"
	"github.com/shopspring/decimal"
)

// buyPosition returns the position after buying quantity shares at price.
// The average cost is the quantity weighted mean of the old cost basis and the new price.
func buyPosition(accountID, symbol string, current *domain.Position, quantity int64, price decimal.Decimal) *domain.Position {
	oldQuantity := int64(0)
	oldAvgCost := decimal.Zero
	if current.Open() {
		oldQuantity = current.Quantity
		oldAvgCost = current.AvgCost
	}

	newQuantity := oldQuantity + quantity
	cost := oldAvgCost.Mul(decimal.NewFromInt(oldQuantity)).Add(price.Mul(decimal.NewFromInt(quantity)))
	avgCost := cost.Div(decimal.NewFromInt(newQuantity))

	return &domain.Position{
		AccountID: accountID,
		Symbol:    symbol,
		Quantity:  newQuantity,
		AvgCost:   avgCost,
		Invested:  avgCost.Mul(decimal.NewFromInt(newQuantity)),
	}
}

// sellPosition keeps the average cost and shrinks quantity and invested capital.
func sellPosition(current *domain.Position, quantity int64) (*domain.Position, error) {
	if !current.Open() || quantity > current.Quantity {
		return nil, traderrs.ErrInsufficientShares
	}

	newQuantity := current.Quantity - quantity

	return &domain.Position{
		AccountID: current.AccountID,
		Symbol:    current.Symbol,
		Quantity:  newQuantity,
		AvgCost:   current.AvgCost,
		Invested:  current.AvgCost.Mul(decimal.NewFromInt(newQuantity)),
	}, nil
}

// Replay rebuilds open positions from a chronological transaction log.
func Replay(transactions []*domain.Transaction) (map[string]*domain.Position, error) {
	positions := make(map[string]*domain.Position)

	for _, tx := range transactions {
		current := positions[tx.Symbol]

		switch tx.Side {
		case domain.SideBuy:
			positions[tx.Symbol] = buyPosition(tx.AccountID, tx.Symbol, current, tx.Quantity, tx.Price)
		case domain.SideSell:
			next, err := sellPosition(current, tx.Quantity)
			if err != nil {
				return nil, fmt.Errorf("replay transaction %s: %w", tx.ID, err)
			}
			positions[tx.Symbol] = next
		default:
			return nil, fmt.Errorf("replay transaction %s: %w", tx.ID, traderrs.ErrInvalidSide)
		}

		if !positions[tx.Symbol].Open() {
			delete(positions, tx.Symbol)
		}
	}

	return positions, nil
}
