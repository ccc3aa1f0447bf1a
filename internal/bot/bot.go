package bot

import (
	"context"
	"fmt"
	"strconv"

	"github.com/leonid6372/stock-arena/internal/common/config"
	"github.com/leonid6372/stock-arena/internal/common/domain"
	"github.com/leonid6372/stock-arena/internal/leaderboard"
	"github.com/leonid6372/stock-arena/internal/trading"
	"github.com/leonid6372/stock-arena/pkg/dictionary"
	"github.com/leonid6372/stock-arena/pkg/errs"
	"github.com/leonid6372/stock-arena/pkg/log"
	"github.com/patrickmn/go-cache"
	"go.uber.org/zap"
	"gopkg.in/telebot.v4"
)

// Arena is the subset of trading.Service the bot needs.
type Arena interface {
	EnsureAccount(ctx context.Context, accountID, displayName string) (*domain.Account, error)
	Trade(ctx context.Context, side domain.Side, accountID, symbol string, quantity int64) (*trading.TradeResult, error)
	GetPortfolio(ctx context.Context, accountID string) (*trading.Portfolio, error)
	GetTransactions(ctx context.Context, accountID string, limit int) ([]*domain.Transaction, error)
	GetQuote(ctx context.Context, symbol string) (*domain.Quote, error)
	SearchQuotes(ctx context.Context, query string) []*domain.Quote
	GetLeaderboard(ctx context.Context, limit int) ([]*domain.LeaderboardEntry, error)
	GetRank(ctx context.Context, accountID string) (*domain.LeaderboardEntry, error)
	RefreshAllQuotes(ctx context.Context) (*leaderboard.RefreshReport, error)
}

type Bot struct {
	Telebot  *telebot.Bot
	cfg      *config.Bot
	accounts *cache.Cache

	ctx  context.Context
	deps *Dependencies
}

type Dependencies struct {
	arena      Arena
	dictionary *dictionary.Dictionary
}

func New(ctx context.Context,
	cfg *config.Bot,
	arena Arena,
	dictionary *dictionary.Dictionary,
) (*Bot, error) {
	b, err := telebot.NewBot(telebot.Settings{
		Token:  cfg.APIKey,
		Poller: &telebot.LongPoller{Timeout: cfg.PollTimeout},
	})
	if err != nil {
		return nil, fmt.Errorf("telebot.NewBot: %w", err)
	}

	bot := newBot(ctx, b, cfg, arena, dictionary)

	if err := bot.setCommands(); err != nil {
		return nil, fmt.Errorf("bot.setCommands: %w", err)
	}

	bot.setupMiddlewares()
	bot.setupMessageRoutes()
	bot.setupCallbackRoutes()

	return bot, nil
}

func newBot(ctx context.Context, tb *telebot.Bot, cfg *config.Bot, arena Arena, dictionary *dictionary.Dictionary) *Bot {
	return &Bot{
		Telebot:  tb,
		cfg:      cfg,
		accounts: cache.New(accountsCacheTTL, accountsCacheCleanup),
		ctx:      ctx,
		deps: &Dependencies{
			arena:      arena,
			dictionary: dictionary,
		},
	}
}

func (b *Bot) setCommands() error {
	commands := []telebot.Command{
		{Text: "start", Description: "📈 Get started"},
		{Text: "portfolio", Description: "💼 Your portfolio"},
		{Text: "buy", Description: "Buy shares: /buy AAPL 10"},
		{Text: "sell", Description: "Sell shares: /sell AAPL 10"},
		{Text: "price", Description: "Quote: /price AAPL"},
		{Text: "search", Description: "Find tickers: /search app"},
		{Text: "history", Description: "🧾 Recent transactions"},
		{Text: "top", Description: "🏆 Leaderboard"},
		{Text: "refresh", Description: "🔄 Refresh all quotes"},
	}

	if err := b.Telebot.SetCommands(commands); err != nil {
		return errs.NewStack(err)
	}

	return nil
}

func (b *Bot) setupMiddlewares() {
	b.Telebot.Use(
		b.recoveryMiddleware,
		b.defaultErrorMiddleware,
		b.timeoutMiddleware,
		b.ensureAccountMiddleware,
	)
}

func (b *Bot) setupMessageRoutes() {
	message := b.Telebot.Group()

	message.Handle("/start", b.startHandler)
	message.Handle("/portfolio", b.portfolioHandler)
	message.Handle("/buy", b.buyHandler)
	message.Handle("/sell", b.sellHandler)
	message.Handle("/price", b.priceHandler)
	message.Handle("/search", b.searchHandler)
	message.Handle("/history", b.historyHandler)
	message.Handle("/top", b.topHandler)
	message.Handle("/refresh", b.refreshHandler)

	lang := dictionary.DefaultLanguage
	message.Handle(&telebot.Btn{Text: b.deps.dictionary.Text(lang, btnPortfolio)}, b.portfolioHandler)
	message.Handle(&telebot.Btn{Text: b.deps.dictionary.Text(lang, btnHistory)}, b.historyHandler)
	message.Handle(&telebot.Btn{Text: b.deps.dictionary.Text(lang, btnTop)}, b.topHandler)
	message.Handle(&telebot.Btn{Text: b.deps.dictionary.Text(lang, btnRefresh)}, b.refreshHandler)
}

func (b *Bot) setupCallbackRoutes() {
	callback := b.Telebot.Group()

	callback.Handle(&telebot.Btn{Unique: cbkTrade}, b.tradeCallbackHandler)
	callback.Handle(&telebot.Btn{Unique: cbkQuote}, b.priceHandler)
}

func (b *Bot) Start() {
	b.Telebot.Start()
}

func (b *Bot) Stop() {
	b.Telebot.Stop()
}

// BroadcastLeaderboard sends the top of the leaderboard to every Telegram player.
func (b *Bot) BroadcastLeaderboard(accounts []*domain.Account, entries []*domain.LeaderboardEntry) int {
	lang := dictionary.DefaultLanguage
	text := b.deps.dictionary.Text(lang, msgTopBroadcast) + "\n\n" + b.renderTop(lang, entries)

	sent := 0
	for _, account := range accounts {
		tgID, ok := telegramID(account.ID)
		if !ok {
			continue
		}

		if _, err := b.Telebot.Send(&telebot.User{ID: tgID}, text, &telebot.SendOptions{ParseMode: telebot.ModeHTML}); err != nil {
			log.Warn("failed to send leaderboard", zap.String("account_id", account.ID), zap.Error(err))
			continue
		}

		sent++
	}

	return sent
}

func accountID(tgID int64) string {
	return accountPrefix + strconv.FormatInt(tgID, 10)
}

func telegramID(accountID string) (int64, bool) {
	if len(accountID) <= len(accountPrefix) || accountID[:len(accountPrefix)] != accountPrefix {
		return 0, false
	}

	id, err := strconv.ParseInt(accountID[len(accountPrefix):], 10, 64)
	if err != nil {
		return 0, false
	}

	return id, true
}

// mustAccount returns the account resolved by ensureAccountMiddleware.
func (b *Bot) mustAccount(c telebot.Context) *domain.Account {
	account, ok := c.Get(ctxAccount).(*domain.Account)
	if !ok {
		panic("account not resolved for update")
	}

	return account
}

func handlerContext(c telebot.Context) context.Context {
	if ctx, ok := c.Get(ctxContext).(context.Context); ok {
		return ctx
	}

	return context.Background()
}

func lang(c telebot.Context) string {
	if sender := c.Sender(); sender != nil && sender.LanguageCode != "" {
		return sender.LanguageCode
	}

	return dictionary.DefaultLanguage
}
