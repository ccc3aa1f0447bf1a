// Package app wires the arena from configuration for the server and the jobs.
package app

import (
	"context"
	"fmt"

	"github.com/leonid6372/stock-arena/internal/api"
	"github.com/leonid6372/stock-arena/internal/common/clients/ninja"
	"github.com/leonid6372/stock-arena/internal/common/config"
	"github.com/leonid6372/stock-arena/internal/leaderboard"
	"github.com/leonid6372/stock-arena/internal/ledger"
	"github.com/leonid6372/stock-arena/internal/metrics"
	"github.com/leonid6372/stock-arena/internal/quotes"
	"github.com/leonid6372/stock-arena/internal/trading"
	"github.com/leonid6372/stock-arena/internal/valuation"
	"github.com/leonid6372/stock-arena/pkg/log"
	"go.uber.org/zap"
)

type App struct {
	Arena   *trading.Service
	Quotes  *quotes.Cache
	Hub     *api.WSHub
	Storage *Storage
}

// New opens storage, warms the quote cache from the last snapshot and builds the services.
func New(ctx context.Context, cfg *config.Config) (*App, error) {
	initialCash, err := cfg.GetInitialCash()
	if err != nil {
		return nil, fmt.Errorf("invalid game config: %w", err)
	}

	storage, err := OpenStorage(ctx, cfg)
	if err != nil {
		return nil, err
	}

	provider := ninja.NewClient(ninja.Config{
		BaseURL:    cfg.Quotes.ProviderURL,
		APIKey:     cfg.Quotes.APIKey,
		Timeout:    cfg.Quotes.RequestTimeout,
		RPS:        cfg.Quotes.RPS,
		Burst:      cfg.Quotes.Burst,
		MaxRetries: cfg.Quotes.MaxRetries,
	})

	cache := quotes.New(provider, quotes.Config{
		TTL:          cfg.Quotes.TTL,
		Retention:    cfg.Quotes.Retention,
		FetchTimeout: cfg.Quotes.FetchTimeout,
		Workers:      cfg.Quotes.Workers,
	})

	if snapshot, err := storage.Snapshots.GetQuotes(ctx); err != nil {
		log.Warn("failed to load quote snapshot", zap.Error(err))
	} else {
		log.Info("quote cache warmed", zap.Int("quotes", cache.Warm(snapshot)))
	}

	if accounts, err := storage.Accounts.ListAccounts(ctx); err == nil {
		metrics.Accounts.Set(float64(len(accounts)))
	}

	hub := api.NewWSHub()

	l := ledger.New(storage.Accounts, storage.Portfolio)
	valuer := valuation.New(l, cache)

	arena := trading.New(trading.Deps{
		Accounts:    storage.Accounts,
		Ledger:      l,
		Prices:      cache,
		Valuer:      valuer,
		Ranker:      leaderboard.NewRanker(storage.Accounts, valuer, cfg.Game.LeaderboardWorkers),
		Refresher:   leaderboard.NewRefresher(storage.Portfolio, cache, storage.Snapshots, leaderboard.NewCooldown(cfg.Game.RefreshCooldown)),
		Publisher:   hub,
		InitialCash: initialCash,
	})

	return &App{
		Arena:   arena,
		Quotes:  cache,
		Hub:     hub,
		Storage: storage,
	}, nil
}

func (a *App) Close() {
	a.Storage.Close()
}
