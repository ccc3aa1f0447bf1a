package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/leonid6372/stock-arena/internal/api"
	"github.com/leonid6372/stock-arena/internal/app"
	"github.com/leonid6372/stock-arena/internal/bot"
	"github.com/leonid6372/stock-arena/internal/common/config"
	"github.com/leonid6372/stock-arena/internal/traderrs"
	"github.com/leonid6372/stock-arena/internal/trading"
	"github.com/leonid6372/stock-arena/pkg/dictionary"
	"github.com/leonid6372/stock-arena/pkg/log"
	"github.com/sourcegraph/conc"
	"go.uber.org/zap"
)

func main() {
	var configPath string
	flag.StringVar(&configPath, "config", "configs/debug.yaml", "server config path")
	flag.Parse()

	cfg := config.GetConfig(configPath)

	if err := log.Setup(cfg.Log.Level, cfg.Log.Encoding); err != nil {
		log.Fatal("log setup failed", zap.Error(err))
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	log.Info("server starting...", zap.String("env", cfg.Env))

	a, err := app.New(ctx, cfg)
	if err != nil {
		log.Fatal("app init failed", zap.Error(err))
	}
	defer a.Close()

	arena, hub := a.Arena, a.Hub

	srv := &http.Server{
		Addr:         cfg.HTTP.Addr,
		Handler:      api.NewHandler(arena, hub, cfg.HTTP.WriteTimeout).Router(),
		ReadTimeout:  cfg.HTTP.ReadTimeout,
		WriteTimeout: cfg.HTTP.WriteTimeout,
		IdleTimeout:  60 * time.Second,
	}

	var lifecycle conc.WaitGroup

	lifecycle.Go(func() { hub.Run(ctx) })

	lifecycle.Go(func() {
		log.Info("http server listening", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("http server failed", zap.Error(err))
			stop()
		}
	})

	if cfg.Game.RefreshInterval > 0 {
		lifecycle.Go(func() { runRefresher(ctx, arena, cfg.Game.RefreshInterval) })
	}

	var telegram *bot.Bot
	if cfg.Bot.APIKey != "" {
		log.Info("init telebot...")

		dict, err := dictionary.New("")
		if err != nil {
			log.Fatal("dictionary init failed", zap.Error(err))
		}

		telegram, err = bot.New(ctx, &cfg.Bot, arena, dict)
		if err != nil {
			log.Fatal("bot starting failed", zap.Error(err))
		}

		lifecycle.Go(telegram.Start)
	} else {
		log.Warn("bot api key is empty, telegram bot disabled")
	}

	log.Info("server starting complete")

	<-ctx.Done()
	log.Info("server shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("http server shutdown failed", zap.Error(err))
	}

	if telegram != nil {
		telegram.Stop()
	}

	lifecycle.Wait()

	if err := log.Sync(); err != nil {
		log.Error("log sync failed", zap.Error(err))
	}

	log.Info("server shut down complete")
}

// runRefresher triggers the bulk refresh every interval. Cooldown rejections are expected when
// players refresh manually in between.
func runRefresher(ctx context.Context, arena *trading.Service, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Info("quotes refresher shutting down...")
			return
		case <-ticker.C:
			report, err := arena.RefreshAllQuotes(ctx)
			if errors.Is(err, traderrs.ErrCooldownActive) {
				log.Debug("scheduled refresh skipped", zap.Error(err))
				continue
			}
			if err != nil {
				log.Warn("scheduled refresh failed", zap.Error(err))
				continue
			}

			log.Info("scheduled refresh done",
				zap.Int("refreshed", len(report.Refreshed)),
				zap.Int("failed", len(report.Failed)),
			)
		}
	}
}
