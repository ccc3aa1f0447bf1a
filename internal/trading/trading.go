// Package trading exposes the arena operations to the HTTP API, the bot and jobs.
package trading

import (
	"context"
	"fmt"
	"time"

	"github.com/leonid6372/stock-arena/internal/common/domain"
	"github.com/leonid6372/stock-arena/internal/leaderboard"
	"github.com/leonid6372/stock-arena/internal/ledger"
	"github.com/leonid6372/stock-arena/internal/metrics"
	"github.com/leonid6372/stock-arena/internal/quotes"
	"github.com/leonid6372/stock-arena/internal/traderrs"
	"github.com/leonid6372/stock-arena/internal/validator"
	"github.com/leonid6372/stock-arena/internal/valuation"
	"github.com/leonid6372/stock-arena/pkg/errs"
	"github.com/leonid6372/stock-arena/pkg/log"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

var errStaleQuote = fmt.Errorf("%w: only a stale quote is available", traderrs.ErrUpstreamUnavailable)

type PriceCache interface {
	GetPrice(ctx context.Context, symbol string) (*domain.Quote, error)
	GetPrices(ctx context.Context, symbols []string) *quotes.Batch
	Cached() []*domain.Quote
}

type Service struct {
	accounts  domain.AccountsRepository
	ledger    *ledger.Ledger
	prices    PriceCache
	valuer    *valuation.Service
	ranker    *leaderboard.Ranker
	refresher *leaderboard.Refresher
	publisher Publisher

	initialCash decimal.Decimal
	now         func() time.Time
}

type Deps struct {
	Accounts  domain.AccountsRepository
	Ledger    *ledger.Ledger
	Prices    PriceCache
	Valuer    *valuation.Service
	Ranker    *leaderboard.Ranker
	Refresher *leaderboard.Refresher
	// Publisher is optional.
	Publisher Publisher

	InitialCash decimal.Decimal
}

type Portfolio struct {
	*valuation.Valuation

	Diversification    int                       `json:"diversification"`
	Sectors            []*valuation.SectorWeight `json:"sectors"`
	RecentTransactions []*domain.Transaction     `json:"recent_transactions"`
}

type TradeResult struct {
	Transaction *domain.Transaction `json:"transaction"`
	Cash        decimal.Decimal     `json:"cash"`
}

func New(deps Deps) *Service {
	publisher := deps.Publisher
	if publisher == nil {
		publisher = nopPublisher{}
	}

	initialCash := deps.InitialCash
	if !initialCash.IsPositive() {
		initialCash = domain.DefaultInitialCash
	}

	return &Service{
		accounts:    deps.Accounts,
		ledger:      deps.Ledger,
		prices:      deps.Prices,
		valuer:      deps.Valuer,
		ranker:      deps.Ranker,
		refresher:   deps.Refresher,
		publisher:   publisher,
		initialCash: initialCash,
		now:         time.Now,
	}
}

// EnsureAccount creates the account with the initial cash on first access and returns the stored one otherwise.
// A non-empty displayName replaces the stored name.
func (s *Service) EnsureAccount(ctx context.Context, accountID, displayName string) (*domain.Account, error) {
	if accountID == "" {
		return nil, traderrs.ErrInvalidAccount
	}

	account, err := s.accounts.EnsureAccount(ctx, &domain.Account{
		ID:          accountID,
		DisplayName: displayName,
		Cash:        s.initialCash,
	})
	if err != nil {
		return nil, errs.NewStack(err)
	}

	if displayName != "" && account.DisplayName != displayName {
		if err := s.accounts.UpdateDisplayName(ctx, accountID, displayName); err != nil {
			return nil, errs.NewStack(err)
		}
		account.DisplayName = displayName
	}

	return account, nil
}

func (s *Service) Buy(ctx context.Context, accountID, symbol string, quantity int64) (*TradeResult, error) {
	return s.trade(ctx, domain.SideBuy, accountID, symbol, quantity)
}

func (s *Service) Sell(ctx context.Context, accountID, symbol string, quantity int64) (*TradeResult, error) {
	return s.trade(ctx, domain.SideSell, accountID, symbol, quantity)
}

// Trade dispatches on side, for callers holding it as a string.
func (s *Service) Trade(ctx context.Context, side domain.Side, accountID, symbol string, quantity int64) (*TradeResult, error) {
	if !side.Valid() {
		return nil, traderrs.ErrInvalidSide
	}

	return s.trade(ctx, side, accountID, symbol, quantity)
}

func (s *Service) trade(ctx context.Context, side domain.Side, accountID, symbol string, quantity int64) (*TradeResult, error) {
	start := time.Now()

	result, err := s.execute(ctx, side, accountID, symbol, quantity)
	metrics.TradeLatency.WithLabelValues(string(side)).Observe(time.Since(start).Seconds())

	if err != nil {
		metrics.TradesTotal.WithLabelValues(string(side), "rejected").Inc()
		log.Info("trade rejected",
			zap.String("account_id", accountID),
			zap.String("side", string(side)),
			zap.String("symbol", symbol),
			zap.Int64("quantity", quantity),
			zap.Error(err),
		)
		return nil, err
	}

	metrics.TradesTotal.WithLabelValues(string(side), "executed").Inc()

	tx := result.Transaction
	log.Info("trade executed",
		zap.String("account_id", tx.AccountID),
		zap.String("id", tx.ID),
		zap.String("side", string(tx.Side)),
		zap.String("symbol", tx.Symbol),
		zap.Int64("quantity", tx.Quantity),
		zap.Stringer("price", tx.Price),
	)

	s.publisher.Publish(Event{Type: EventTradeExecuted, Payload: tx, At: tx.CreatedAt})

	return result, nil
}

func (s *Service) execute(ctx context.Context, side domain.Side, accountID, symbol string, quantity int64) (*TradeResult, error) {
	if accountID == "" {
		return nil, traderrs.ErrInvalidAccount
	}

	symbol, err := validator.NormalizeSymbol(symbol)
	if err != nil {
		return nil, err
	}

	if quantity <= 0 {
		return nil, traderrs.ErrInvalidQuantity
	}

	quote, err := s.prices.GetPrice(ctx, symbol)
	if err != nil {
		return nil, err
	}

	if quote.Stale {
		return nil, &traderrs.QuoteUnavailableError{Symbol: symbol, Err: errStaleQuote}
	}

	var fill *ledger.Fill
	if side == domain.SideBuy {
		fill, err = s.ledger.ApplyBuy(ctx, accountID, symbol, quantity, quote.Price)
	} else {
		fill, err = s.ledger.ApplySell(ctx, accountID, symbol, quantity, quote.Price)
	}
	if err != nil {
		return nil, err
	}

	return &TradeResult{Transaction: fill.Transaction, Cash: fill.Cash}, nil
}

// GetPortfolio values the account and adds its analytics and recent transactions.
func (s *Service) GetPortfolio(ctx context.Context, accountID string) (*Portfolio, error) {
	if accountID == "" {
		return nil, traderrs.ErrInvalidAccount
	}

	v, err := s.valuer.ValueOf(ctx, accountID)
	if err != nil {
		return nil, err
	}

	recent, err := s.ledger.Transactions(ctx, accountID, domain.RecentTransactionsLimit)
	if err != nil {
		return nil, err
	}

	return &Portfolio{
		Valuation:          v,
		Diversification:    valuation.Diversification(len(v.Holdings)),
		Sectors:            valuation.SectorAllocation(v.Holdings),
		RecentTransactions: recent,
	}, nil
}

// GetTransactions returns the newest transactions first. limit <= 0 means the default of 50.
func (s *Service) GetTransactions(ctx context.Context, accountID string, limit int) ([]*domain.Transaction, error) {
	if accountID == "" {
		return nil, traderrs.ErrInvalidAccount
	}

	return s.ledger.Transactions(ctx, accountID, limit)
}

func (s *Service) GetQuote(ctx context.Context, symbol string) (*domain.Quote, error) {
	return s.prices.GetPrice(ctx, symbol)
}

// CachedQuotes lists every quote the cache still holds, marking the ones past their TTL as stale.
func (s *Service) CachedQuotes() []*domain.Quote {
	return s.prices.Cached()
}

// SearchQuotes prices the popular tickers matching query. Tickers without a quote are left out.
func (s *Service) SearchQuotes(ctx context.Context, query string) []*domain.Quote {
	symbols := quotes.SearchSymbols(query)

	batch := s.prices.GetPrices(ctx, symbols)

	found := make([]*domain.Quote, 0, len(batch.Quotes))
	for _, symbol := range symbols {
		if quote, ok := batch.Quotes[symbol]; ok {
			found = append(found, quote)
		}
	}

	return found
}

// GetLeaderboard returns the full ranking; limit > 0 truncates it.
func (s *Service) GetLeaderboard(ctx context.Context, limit int) ([]*domain.LeaderboardEntry, error) {
	entries, err := s.ranker.Rank(ctx)
	if err != nil {
		return nil, err
	}

	return leaderboard.Top(entries, limit), nil
}

// GetRank returns the leaderboard entry of one account.
func (s *Service) GetRank(ctx context.Context, accountID string) (*domain.LeaderboardEntry, error) {
	entries, err := s.ranker.Rank(ctx)
	if err != nil {
		return nil, err
	}

	entry := leaderboard.Position(entries, accountID)
	if entry == nil {
		return nil, traderrs.ErrAccountNotFound
	}

	return entry, nil
}

func (s *Service) RefreshAllQuotes(ctx context.Context) (*leaderboard.RefreshReport, error) {
	report, err := s.refresher.RefreshAllQuotes(ctx)
	if err != nil {
		return nil, err
	}

	s.publisher.Publish(Event{Type: EventQuotesRefreshed, Payload: report, At: s.now().UTC()})

	return report, nil
}

func (s *Service) RefreshStatus(ctx context.Context) (*leaderboard.RefreshStatus, error) {
	return s.refresher.Status(ctx)
}
