package trading

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/leonid6372/stock-arena/internal/common/domain"
	"github.com/leonid6372/stock-arena/internal/common/repositories/memory"
	"github.com/leonid6372/stock-arena/internal/leaderboard"
	"github.com/leonid6372/stock-arena/internal/ledger"
	"github.com/leonid6372/stock-arena/internal/quotes"
	"github.com/leonid6372/stock-arena/internal/traderrs"
	"github.com/leonid6372/stock-arena/internal/valuation"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

type fakeProvider struct {
	mu     sync.Mutex
	prices map[string]decimal.Decimal
}

func (p *fakeProvider) FetchQuote(_ context.Context, symbol string) (*domain.Quote, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	price, ok := p.prices[symbol]
	if !ok {
		return nil, &traderrs.UpstreamError{Symbol: symbol, StatusCode: 502}
	}

	return &domain.Quote{Symbol: symbol, Price: price}, nil
}

func (p *fakeProvider) set(symbol, price string) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if price == "" {
		delete(p.prices, symbol)
		return
	}
	p.prices[symbol] = decimal.RequireFromString(price)
}

type recorder struct {
	mu     sync.Mutex
	events []Event
}

func (r *recorder) Publish(event Event) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.events = append(r.events, event)
}

func (r *recorder) types() []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	types := []string{}
	for _, event := range r.events {
		types = append(types, event.Type)
	}

	return types
}

type env struct {
	service  *Service
	provider *fakeProvider
	events   *recorder
}

func newEnv(t *testing.T) *env {
	t.Helper()

	store := memory.NewStore()
	provider := &fakeProvider{prices: map[string]decimal.Decimal{
		"AAPL": decimal.RequireFromString("100"),
		"MSFT": decimal.RequireFromString("250.5"),
	}}

	e := &env{provider: provider, events: &recorder{}}

	cache := quotes.New(provider, quotes.Config{TTL: time.Minute, Retention: time.Hour})
	l := ledger.New(store, store)
	v := valuation.New(l, cache)

	e.service = New(Deps{
		Accounts:  store,
		Ledger:    l,
		Prices:    cache,
		Valuer:    v,
		Ranker:    leaderboard.NewRanker(store, v, 2),
		Refresher: leaderboard.NewRefresher(store, cache, store, leaderboard.NewCooldown(time.Hour)),
		Publisher: e.events,
	})

	return e
}

func TestEnsureAccount(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t)

	account, err := e.service.EnsureAccount(ctx, "42", "alice")
	require.NoError(t, err)
	require.True(t, account.Cash.Equal(domain.DefaultInitialCash))

	account, err = e.service.EnsureAccount(ctx, "42", "alice_renamed")
	require.NoError(t, err)
	require.Equal(t, "alice_renamed", account.DisplayName)
	require.True(t, account.Cash.Equal(domain.DefaultInitialCash))

	_, err = e.service.EnsureAccount(ctx, "", "nobody")
	require.ErrorIs(t, err, traderrs.ErrInvalidAccount)
}

func TestBuySellFlow(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t)

	_, err := e.service.EnsureAccount(ctx, "42", "alice")
	require.NoError(t, err)

	result, err := e.service.Buy(ctx, "42", "aapl", 10)
	require.NoError(t, err)
	require.Equal(t, "AAPL", result.Transaction.Symbol)
	require.True(t, result.Cash.Equal(decimal.NewFromInt(9000)))

	_, err = e.service.Trade(ctx, domain.SideBuy, "42", "MSFT", 2)
	require.NoError(t, err)

	result, err = e.service.Sell(ctx, "42", "AAPL", 4)
	require.NoError(t, err)
	require.True(t, result.Cash.Equal(decimal.RequireFromString("8899")))

	portfolio, err := e.service.GetPortfolio(ctx, "42")
	require.NoError(t, err)
	require.Len(t, portfolio.Holdings, 2)
	require.Equal(t, 20, portfolio.Diversification)
	require.Len(t, portfolio.Sectors, 1)
	require.Len(t, portfolio.RecentTransactions, 3)
	require.True(t, portfolio.NetWorth.Equal(decimal.NewFromInt(10000)))

	transactions, err := e.service.GetTransactions(ctx, "42", 2)
	require.NoError(t, err)
	require.Len(t, transactions, 2)
	require.Equal(t, domain.SideSell, transactions[0].Side)

	require.Equal(t, []string{EventTradeExecuted, EventTradeExecuted, EventTradeExecuted}, e.events.types())
}

func TestTradeRejections(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t)

	_, err := e.service.EnsureAccount(ctx, "42", "alice")
	require.NoError(t, err)

	_, err = e.service.Buy(ctx, "42", "AAPL", 0)
	require.ErrorIs(t, err, traderrs.ErrInvalidQuantity)

	_, err = e.service.Buy(ctx, "42", "AAPL", 101)
	require.ErrorIs(t, err, traderrs.ErrInsufficientFunds)

	_, err = e.service.Sell(ctx, "42", "AAPL", 1)
	require.ErrorIs(t, err, traderrs.ErrInsufficientShares)

	_, err = e.service.Buy(ctx, "404", "AAPL", 1)
	require.ErrorIs(t, err, traderrs.ErrAccountNotFound)

	_, err = e.service.Buy(ctx, "42", "NOPE", 1)
	require.ErrorIs(t, err, traderrs.ErrQuoteUnavailable)

	_, err = e.service.Trade(ctx, domain.Side("short"), "42", "AAPL", 1)
	require.ErrorIs(t, err, traderrs.ErrInvalidSide)

	require.Empty(t, e.events.types())
}

func TestLeaderboardAndRefresh(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t)

	for _, id := range []string{"b", "a", "c"} {
		_, err := e.service.EnsureAccount(ctx, id, "user "+id)
		require.NoError(t, err)
	}

	_, err := e.service.Buy(ctx, "c", "AAPL", 10)
	require.NoError(t, err)

	e.provider.set("AAPL", "150")

	report, err := e.service.RefreshAllQuotes(ctx)
	require.NoError(t, err)
	require.Equal(t, []string{"AAPL"}, report.Refreshed)

	entries, err := e.service.GetLeaderboard(ctx, 0)
	require.NoError(t, err)
	require.Len(t, entries, 3)
	require.Equal(t, "c", entries[0].AccountID)
	require.True(t, entries[0].NetWorth.Equal(decimal.NewFromInt(10500)))
	require.Equal(t, "a", entries[1].AccountID)
	require.Equal(t, "b", entries[2].AccountID)

	top, err := e.service.GetLeaderboard(ctx, 1)
	require.NoError(t, err)
	require.Len(t, top, 1)

	rank, err := e.service.GetRank(ctx, "b")
	require.NoError(t, err)
	require.Equal(t, 3, rank.Rank)

	_, err = e.service.RefreshAllQuotes(ctx)
	require.ErrorIs(t, err, traderrs.ErrCooldownActive)

	status, err := e.service.RefreshStatus(ctx)
	require.NoError(t, err)
	require.Positive(t, status.RemainingSecs)

	require.Contains(t, e.events.types(), EventQuotesRefreshed)
}

func TestSearchQuotes(t *testing.T) {
	e := newEnv(t)

	found := e.service.SearchQuotes(context.Background(), "aap")
	require.Len(t, found, 1)
	require.Equal(t, "AAPL", found[0].Symbol)

	require.Empty(t, e.service.SearchQuotes(context.Background(), "nflx"))
}

func TestCachedQuotes(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t)

	require.Empty(t, e.service.CachedQuotes())

	_, err := e.service.GetQuote(ctx, "msft")
	require.NoError(t, err)
	_, err = e.service.GetQuote(ctx, "AAPL")
	require.NoError(t, err)

	cached := e.service.CachedQuotes()
	require.Len(t, cached, 2)
	require.Equal(t, "AAPL", cached[0].Symbol)
	require.Equal(t, "MSFT", cached[1].Symbol)
	require.False(t, cached[0].Stale)
}

type stalePrices struct{}

func (stalePrices) GetPrice(_ context.Context, symbol string) (*domain.Quote, error) {
	return &domain.Quote{Symbol: symbol, Price: decimal.NewFromInt(10), Stale: true}, nil
}

func (stalePrices) GetPrices(context.Context, []string) *quotes.Batch {
	return &quotes.Batch{Quotes: map[string]*domain.Quote{}}
}

func (stalePrices) Cached() []*domain.Quote { return nil }

func TestStaleQuoteIsNotTradable(t *testing.T) {
	s := New(Deps{Prices: stalePrices{}})

	_, err := s.Buy(context.Background(), "42", "AAPL", 1)
	require.ErrorIs(t, err, traderrs.ErrQuoteUnavailable)
	require.ErrorIs(t, err, traderrs.ErrUpstreamUnavailable)
}
