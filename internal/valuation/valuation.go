// Package valuation marks open positions to market.
package valuation

import (
	"context"
	"time"

	"github.com/leonid6372/stock-arena/internal/common/domain"
	"github.com/leonid6372/stock-arena/internal/metrics"
	"github.com/leonid6372/stock-arena/internal/quotes"
	"github.com/leonid6372/stock-arena/pkg/log"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

var hundred = decimal.NewFromInt(100)

type Snapshotter interface {
	Snapshot(ctx context.Context, accountID string) (*domain.Account, []*domain.Position, error)
}

type PriceSource interface {
	GetPrices(ctx context.Context, symbols []string) *quotes.Batch
}

type Service struct {
	ledger Snapshotter
	prices PriceSource

	now func() time.Time
}

type Holding struct {
	Symbol   string          `json:"symbol"`
	Name     string          `json:"name,omitempty"`
	Sector   string          `json:"sector"`
	Quantity int64           `json:"quantity"`
	AvgCost  decimal.Decimal `json:"avg_cost"`
	Invested decimal.Decimal `json:"invested"`

	// Priced is false when no quote was available; market figures are zero then.
	Priced               bool            `json:"priced"`
	Stale                bool            `json:"stale,omitempty"`
	Price                decimal.Decimal `json:"price"`
	MarketValue          decimal.Decimal `json:"market_value"`
	UnrealizedPnL        decimal.Decimal `json:"unrealized_pnl"`
	UnrealizedPnLPercent decimal.Decimal `json:"unrealized_pnl_percent"`
}

type Valuation struct {
	AccountID   string `json:"account_id"`
	DisplayName string `json:"display_name"`

	Cash           decimal.Decimal `json:"cash"`
	PortfolioValue decimal.Decimal `json:"portfolio_value"`
	NetWorth       decimal.Decimal `json:"net_worth"`
	Invested       decimal.Decimal `json:"invested"`

	UnrealizedPnL        decimal.Decimal `json:"unrealized_pnl"`
	UnrealizedPnLPercent decimal.Decimal `json:"unrealized_pnl_percent"`

	Holdings []*Holding `json:"holdings"`
	// Unpriced lists symbols valued at zero because no quote was available.
	Unpriced []string `json:"unpriced,omitempty"`

	ValuedAt time.Time `json:"valued_at"`
}

func New(ledger Snapshotter, prices PriceSource) *Service {
	return &Service{
		ledger: ledger,
		prices: prices,
		now:    time.Now,
	}
}

// ValueOf computes cash plus the market value of every open position.
// Only account and store failures are returned; missing quotes are reported in Unpriced.
func (s *Service) ValueOf(ctx context.Context, accountID string) (*Valuation, error) {
	account, positions, err := s.ledger.Snapshot(ctx, accountID)
	if err != nil {
		return nil, err
	}

	symbols := make([]string, 0, len(positions))
	for _, position := range positions {
		symbols = append(symbols, position.Symbol)
	}

	batch := &quotes.Batch{}
	if len(symbols) > 0 {
		batch = s.prices.GetPrices(ctx, symbols)
	}

	valuation := &Valuation{
		AccountID:      account.ID,
		DisplayName:    account.DisplayName,
		Cash:           account.Cash,
		PortfolioValue: decimal.Zero,
		Invested:       decimal.Zero,
		Holdings:       make([]*Holding, 0, len(positions)),
		ValuedAt:       s.now().UTC(),
	}

	for _, position := range positions {
		holding := &Holding{
			Symbol:      position.Symbol,
			Sector:      SectorOf(position.Symbol),
			Quantity:    position.Quantity,
			AvgCost:     position.AvgCost,
			Invested:    position.Invested,
			MarketValue: decimal.Zero,
		}

		valuation.Invested = valuation.Invested.Add(position.Invested)

		if quote, ok := batch.Quotes[position.Symbol]; ok {
			holding.Priced = true
			holding.Stale = quote.Stale
			holding.Name = quote.Name
			holding.Price = quote.Price
			holding.MarketValue = quote.Price.Mul(decimal.NewFromInt(position.Quantity))
			holding.UnrealizedPnL = holding.MarketValue.Sub(position.Invested)
			holding.UnrealizedPnLPercent = percentOf(holding.UnrealizedPnL, position.Invested)

			valuation.PortfolioValue = valuation.PortfolioValue.Add(holding.MarketValue)
			valuation.UnrealizedPnL = valuation.UnrealizedPnL.Add(holding.UnrealizedPnL)
		} else {
			valuation.Unpriced = append(valuation.Unpriced, position.Symbol)
			metrics.UnpricedHoldings.Inc()
		}

		valuation.Holdings = append(valuation.Holdings, holding)
	}

	if len(valuation.Unpriced) > 0 {
		log.Warn("valuation excludes unpriced holdings",
			zap.String("account_id", accountID),
			zap.Strings("symbols", valuation.Unpriced),
		)
	}

	valuation.NetWorth = valuation.Cash.Add(valuation.PortfolioValue)
	valuation.UnrealizedPnLPercent = percentOf(valuation.UnrealizedPnL, pricedInvested(valuation.Holdings))

	return valuation, nil
}

func pricedInvested(holdings []*Holding) decimal.Decimal {
	invested := decimal.Zero
	for _, holding := range holdings {
		if holding.Priced {
			invested = invested.Add(holding.Invested)
		}
	}

	return invested
}

func percentOf(part, whole decimal.Decimal) decimal.Decimal {
	if whole.IsZero() {
		return decimal.Zero
	}

	return part.Div(whole).Mul(hundred).Round(2)
}
