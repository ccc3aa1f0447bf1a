// Package leaderboard ranks accounts by net worth and gates the bulk quote refresh.
package leaderboard

import (
	"cmp"
	"context"
	"errors"
	"slices"

	"github.com/leonid6372/stock-arena/internal/common/domain"
	"github.com/leonid6372/stock-arena/internal/metrics"
	"github.com/leonid6372/stock-arena/internal/traderrs"
	"github.com/leonid6372/stock-arena/internal/valuation"
	"github.com/leonid6372/stock-arena/pkg/errs"
	"github.com/sourcegraph/conc/pool"
)

const DefaultWorkers = 8

type Valuer interface {
	ValueOf(ctx context.Context, accountID string) (*valuation.Valuation, error)
}

type Ranker struct {
	accounts domain.AccountsRepository
	valuer   Valuer
	workers  int
}

func NewRanker(accounts domain.AccountsRepository, valuer Valuer, workers int) *Ranker {
	if workers <= 0 {
		workers = DefaultWorkers
	}

	return &Ranker{
		accounts: accounts,
		valuer:   valuer,
		workers:  workers,
	}
}

// Rank values every account and orders them by net worth, highest first.
// Equal net worth is ordered by account id, so the ranking is a total order.
func (r *Ranker) Rank(ctx context.Context) ([]*domain.LeaderboardEntry, error) {
	accounts, err := r.accounts.ListAccounts(ctx)
	if err != nil {
		return nil, errs.NewStack(err)
	}

	valuations := make([]*valuation.Valuation, len(accounts))

	p := pool.New().WithErrors().WithContext(ctx).WithMaxGoroutines(r.workers)
	for i, account := range accounts {
		p.Go(func(ctx context.Context) error {
			v, err := r.valuer.ValueOf(ctx, account.ID)
			if errors.Is(err, traderrs.ErrAccountNotFound) {
				return nil
			}
			if err != nil {
				return err
			}

			valuations[i] = v
			return nil
		})
	}

	if err := p.Wait(); err != nil {
		return nil, err
	}

	entries := make([]*domain.LeaderboardEntry, 0, len(valuations))
	for _, v := range valuations {
		if v == nil {
			continue
		}

		entries = append(entries, &domain.LeaderboardEntry{
			AccountID:      v.AccountID,
			DisplayName:    v.DisplayName,
			Cash:           v.Cash,
			PortfolioValue: v.PortfolioValue,
			NetWorth:       v.NetWorth,
			UpdatedAt:      v.ValuedAt,
		})
	}

	Sort(entries)
	metrics.Accounts.Set(float64(len(entries)))

	return entries, nil
}

// Sort orders entries by net worth descending, then account id ascending, and assigns ranks from 1.
func Sort(entries []*domain.LeaderboardEntry) {
	slices.SortFunc(entries, func(a, b *domain.LeaderboardEntry) int {
		if c := b.NetWorth.Cmp(a.NetWorth); c != 0 {
			return c
		}
		return cmp.Compare(a.AccountID, b.AccountID)
	})

	for i, entry := range entries {
		entry.Rank = i + 1
	}
}

// Top returns at most n leading entries.
func Top(entries []*domain.LeaderboardEntry, n int) []*domain.LeaderboardEntry {
	if n <= 0 || n >= len(entries) {
		return entries
	}

	return entries[:n]
}

// Position returns the entry of accountID, or nil when it is not ranked.
func Position(entries []*domain.LeaderboardEntry, accountID string) *domain.LeaderboardEntry {
	for _, entry := range entries {
		if entry.AccountID == accountID {
			return entry
		}
	}

	return nil
}
