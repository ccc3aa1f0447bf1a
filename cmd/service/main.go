package main

import (
	"context"
	"errors"
	"flag"
	"time"

	"github.com/leonid6372/stock-arena/internal/app"
	"github.com/leonid6372/stock-arena/internal/bot"
	"github.com/leonid6372/stock-arena/internal/common/config"
	"github.com/leonid6372/stock-arena/internal/traderrs"
	"github.com/leonid6372/stock-arena/pkg/dictionary"
	"github.com/leonid6372/stock-arena/pkg/log"
	"go.uber.org/zap"
)

const jobTimeout = 5 * time.Minute

// service is a one-shot job: refresh every held quote and send the leaderboard to Telegram players.
func main() {
	var configPath string
	flag.StringVar(&configPath, "config", "configs/debug.yaml", "service config path")
	flag.Parse()

	cfg := config.GetConfig(configPath)

	if err := log.Setup(cfg.Log.Level, cfg.Log.Encoding); err != nil {
		log.Fatal("log setup failed", zap.Error(err))
	}

	ctx, cancel := context.WithTimeout(context.Background(), jobTimeout)
	defer cancel()

	log.Info("service starting...")

	a, err := app.New(ctx, cfg)
	if err != nil {
		log.Fatal("app init failed", zap.Error(err))
	}
	defer a.Close()

	report, err := a.Arena.RefreshAllQuotes(ctx)
	switch {
	case errors.Is(err, traderrs.ErrCooldownActive):
		log.Info("refresh skipped", zap.Error(err))
	case err != nil:
		log.Error("refresh failed", zap.Error(err))
	default:
		log.Info("quotes refreshed",
			zap.Strings("refreshed", report.Refreshed),
			zap.Strings("failed", report.Failed),
		)
	}

	entries, err := a.Arena.GetLeaderboard(ctx, cfg.Game.TopLimit)
	if err != nil {
		log.Fatal("leaderboard failed", zap.Error(err))
	}

	if cfg.Bot.APIKey == "" {
		log.Info("bot api key is empty, leaderboard not sent", zap.Int("entries", len(entries)))
		return
	}

	dict, err := dictionary.New("")
	if err != nil {
		log.Fatal("dictionary init failed", zap.Error(err))
	}

	b, err := bot.New(ctx, &cfg.Bot, a.Arena, dict)
	if err != nil {
		log.Fatal("bot init failed", zap.Error(err))
	}

	accounts, err := a.Storage.Accounts.ListAccounts(ctx)
	if err != nil {
		log.Fatal("failed to list accounts", zap.Error(err))
	}

	sent := b.BroadcastLeaderboard(accounts, entries)

	if err := log.Sync(); err != nil {
		log.Error("log sync failed", zap.Error(err))
	}

	log.Info("finish", zap.Int("sent", sent))
}
