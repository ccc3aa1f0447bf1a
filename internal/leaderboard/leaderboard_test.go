package leaderboard

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/leonid6372/stock-arena/internal/common/domain"
	"github.com/leonid6372/stock-arena/internal/common/repositories/memory"
	"github.com/leonid6372/stock-arena/internal/quotes"
	"github.com/leonid6372/stock-arena/internal/traderrs"
	"github.com/leonid6372/stock-arena/internal/valuation"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

type fakeValuer map[string]string

func (v fakeValuer) ValueOf(_ context.Context, accountID string) (*valuation.Valuation, error) {
	worth, ok := v[accountID]
	if !ok {
		return nil, traderrs.ErrAccountNotFound
	}

	netWorth := decimal.RequireFromString(worth)

	return &valuation.Valuation{
		AccountID:      accountID,
		DisplayName:    "user " + accountID,
		Cash:           netWorth,
		PortfolioValue: decimal.Zero,
		NetWorth:       netWorth,
	}, nil
}

func seedAccounts(t *testing.T, store *memory.Store, ids ...string) {
	t.Helper()

	for _, id := range ids {
		_, err := store.EnsureAccount(context.Background(), &domain.Account{ID: id, Cash: decimal.NewFromInt(10000)})
		require.NoError(t, err)
	}
}

func TestRankOrdersByNetWorthThenID(t *testing.T) {
	store := memory.NewStore()
	seedAccounts(t, store, "dave", "carol", "bob", "alice", "ghost")

	r := NewRanker(store, fakeValuer{
		"alice": "10500",
		"bob":   "12000.5",
		"carol": "10500.00",
		"dave":  "9000",
	}, 3)

	first, err := r.Rank(context.Background())
	require.NoError(t, err)
	require.Len(t, first, 4)

	ids := []string{}
	ranks := []int{}
	for _, entry := range first {
		ids = append(ids, entry.AccountID)
		ranks = append(ranks, entry.Rank)
	}
	require.Equal(t, []string{"bob", "alice", "carol", "dave"}, ids)
	require.Equal(t, []int{1, 2, 3, 4}, ranks)

	second, err := r.Rank(context.Background())
	require.NoError(t, err)
	require.Equal(t, first, second)

	require.Equal(t, 2, Position(first, "alice").Rank)
	require.Nil(t, Position(first, "ghost"))
	require.Len(t, Top(first, 2), 2)
	require.Len(t, Top(first, 10), 4)
}

type fakeRefresher struct {
	calls  atomic.Int32
	failed map[string]bool
}

func (f *fakeRefresher) Refresh(_ context.Context, symbols []string) *quotes.Batch {
	f.calls.Add(1)

	batch := &quotes.Batch{Quotes: map[string]*domain.Quote{}}
	for _, symbol := range symbols {
		if f.failed[symbol] {
			batch.Failed = append(batch.Failed, symbol)
			continue
		}
		batch.Quotes[symbol] = &domain.Quote{Symbol: symbol, Price: decimal.NewFromInt(42), FetchedAt: time.Now()}
	}

	return batch
}

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func newTestRefresher(t *testing.T, prices *fakeRefresher) (*Refresher, *memory.Store, *testClock) {
	t.Helper()

	store := memory.NewStore()
	seedAccounts(t, store, "alice")

	for _, symbol := range []string{"AAPL", "KO"} {
		err := store.Settle(context.Background(), &domain.Settlement{
			CashDelta: decimal.NewFromInt(-100),
			Position:  &domain.Position{AccountID: "alice", Symbol: symbol, Quantity: 1, AvgCost: decimal.NewFromInt(100), Invested: decimal.NewFromInt(100)},
			Transaction: &domain.Transaction{
				ID: symbol, AccountID: "alice", Symbol: symbol, Side: domain.SideBuy,
				Quantity: 1, Price: decimal.NewFromInt(100), Total: decimal.NewFromInt(100),
			},
		})
		require.NoError(t, err)
	}

	clock := &testClock{now: time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC)}
	cooldown := NewCooldown(time.Hour)
	cooldown.now = clock.Now

	return NewRefresher(store, prices, store, cooldown), store, clock
}

func TestRefreshAllQuotesCooldown(t *testing.T) {
	ctx := context.Background()
	prices := &fakeRefresher{}
	r, store, clock := newTestRefresher(t, prices)

	report, err := r.RefreshAllQuotes(ctx)
	require.NoError(t, err)
	require.Equal(t, []string{"AAPL", "KO"}, report.Refreshed)
	require.Empty(t, report.Failed)
	require.Equal(t, clock.Now().Add(time.Hour), report.NextAllowedAt)

	stored, err := store.GetQuotes(ctx)
	require.NoError(t, err)
	require.Len(t, stored, 2)

	clock.Advance(20 * time.Minute)

	_, err = r.RefreshAllQuotes(ctx)
	require.ErrorIs(t, err, traderrs.ErrCooldownActive)

	var cooldownErr *traderrs.CooldownError
	require.True(t, errors.As(err, &cooldownErr))
	require.Equal(t, 40*time.Minute, cooldownErr.Remaining)
	require.Equal(t, int32(1), prices.calls.Load())

	status, err := r.Status(ctx)
	require.NoError(t, err)
	require.Equal(t, int64(40*60), status.RemainingSecs)
	require.False(t, status.LastStored.IsZero())

	clock.Advance(40 * time.Minute)

	_, err = r.RefreshAllQuotes(ctx)
	require.NoError(t, err)
	require.Equal(t, int32(2), prices.calls.Load())
}

func TestRefreshPartialFailureKeepsCooldown(t *testing.T) {
	ctx := context.Background()
	r, _, _ := newTestRefresher(t, &fakeRefresher{failed: map[string]bool{"KO": true}})

	report, err := r.RefreshAllQuotes(ctx)
	require.NoError(t, err)
	require.Equal(t, []string{"AAPL"}, report.Refreshed)
	require.Equal(t, []string{"KO"}, report.Failed)

	_, err = r.RefreshAllQuotes(ctx)
	require.ErrorIs(t, err, traderrs.ErrCooldownActive)
}

func TestRefreshFailureRestoresCooldown(t *testing.T) {
	ctx := context.Background()
	prices := &fakeRefresher{failed: map[string]bool{"AAPL": true, "KO": true}}
	r, _, _ := newTestRefresher(t, prices)

	_, err := r.RefreshAllQuotes(ctx)
	require.ErrorIs(t, err, ErrRefreshFailed)
	require.True(t, r.cooldown.LastRefresh().IsZero())

	prices.failed = nil

	_, err = r.RefreshAllQuotes(ctx)
	require.NoError(t, err)
}

func TestConcurrentRefreshSingleWinner(t *testing.T) {
	prices := &fakeRefresher{}
	r, _, _ := newTestRefresher(t, prices)

	var (
		wg        sync.WaitGroup
		succeeded atomic.Int32
		rejected  atomic.Int32
	)

	for range 10 {
		wg.Add(1)
		go func() {
			defer wg.Done()

			_, err := r.RefreshAllQuotes(context.Background())
			switch {
			case err == nil:
				succeeded.Add(1)
			case errors.Is(err, traderrs.ErrCooldownActive):
				rejected.Add(1)
			}
		}()
	}
	wg.Wait()

	require.Equal(t, int32(1), succeeded.Load())
	require.Equal(t, int32(9), rejected.Load())
	require.Equal(t, int32(1), prices.calls.Load())
}

func TestRefreshWithoutHoldings(t *testing.T) {
	prices := &fakeRefresher{}
	r := NewRefresher(memory.NewStore(), prices, nil, NewCooldown(0))

	report, err := r.RefreshAllQuotes(context.Background())
	require.NoError(t, err)
	require.Empty(t, report.Refreshed)
	require.Equal(t, time.Hour, r.cooldown.Window())
}
