package bot

import (
	"errors"
	"fmt"
	"strings"

	"github.com/leonid6372/stock-arena/internal/common/domain"
	"github.com/leonid6372/stock-arena/pkg/format"
	"gopkg.in/telebot.v4"
)

var errUsage = errors.New("wrong command usage")

func (b *Bot) startHandler(c telebot.Context) error {
	account := b.mustAccount(c)

	portfolio, err := b.deps.arena.GetPortfolio(handlerContext(c), account.ID)
	if err != nil {
		return err
	}

	text := b.deps.dictionary.Text(lang(c), msgStart, map[string]any{
		"Name": account.DisplayName,
		"Cash": format.Money(portfolio.Cash),
	})

	return b.send(c, text, b.mainMenuKeyboard(lang(c)))
}

func (b *Bot) portfolioHandler(c telebot.Context) error {
	account := b.mustAccount(c)

	portfolio, err := b.deps.arena.GetPortfolio(handlerContext(c), account.ID)
	if err != nil {
		return err
	}

	return b.send(c, b.renderPortfolio(lang(c), portfolio))
}

func (b *Bot) buyHandler(c telebot.Context) error {
	return b.trade(c, domain.SideBuy, c.Args())
}

func (b *Bot) sellHandler(c telebot.Context) error {
	return b.trade(c, domain.SideSell, c.Args())
}

// tradeCallbackHandler handles the inline buttons: trade|side|symbol|quantity.
func (b *Bot) tradeCallbackHandler(c telebot.Context) error {
	args := c.Args()
	if len(args) != 3 {
		return fmt.Errorf("failed to parse trade callback: %q", c.Callback().Data)
	}

	return b.trade(c, domain.Side(args[0]), args[1:])
}

func (b *Bot) trade(c telebot.Context, side domain.Side, args []string) error {
	account := b.mustAccount(c)

	symbol, quantity, err := parseTradeArgs(args)
	if errors.Is(err, errUsage) {
		return b.send(c, b.deps.dictionary.Text(lang(c), msgUsageTrade, map[string]any{"Command": string(side)}))
	}
	if err != nil {
		return err
	}

	result, err := b.deps.arena.Trade(handlerContext(c), side, account.ID, symbol, quantity)
	if err != nil {
		return err
	}

	return b.send(c, b.renderTrade(lang(c), result))
}

func (b *Bot) priceHandler(c telebot.Context) error {
	args := c.Args()
	if len(args) != 1 {
		return b.send(c, b.deps.dictionary.Text(lang(c), msgUsagePrice))
	}

	quote, err := b.deps.arena.GetQuote(handlerContext(c), args[0])
	if err != nil {
		return err
	}

	return b.send(c, b.renderQuote(lang(c), quote), b.quoteKeyboard(lang(c), quote.Symbol))
}

func (b *Bot) searchHandler(c telebot.Context) error {
	query := strings.TrimSpace(c.Message().Payload)

	found := b.deps.arena.SearchQuotes(handlerContext(c), query)

	return b.send(c, b.renderSearch(lang(c), query, found))
}

func (b *Bot) historyHandler(c telebot.Context) error {
	account := b.mustAccount(c)

	txs, err := b.deps.arena.GetTransactions(handlerContext(c), account.ID, historyLimit)
	if err != nil {
		return err
	}

	return b.send(c, b.renderHistory(lang(c), txs))
}

func (b *Bot) topHandler(c telebot.Context) error {
	account := b.mustAccount(c)
	ctx := handlerContext(c)

	entries, err := b.deps.arena.GetLeaderboard(ctx, topLimit)
	if err != nil {
		return err
	}

	text := b.renderTop(lang(c), entries)

	self, err := b.deps.arena.GetRank(ctx, account.ID)
	if err == nil && self.Rank > topLimit {
		text += "\n\n" + b.deps.dictionary.Text(lang(c), msgTopSelf, map[string]any{
			"Rank":     self.Rank,
			"NetWorth": format.Money(self.NetWorth),
		})
	}

	return b.send(c, text)
}

func (b *Bot) refreshHandler(c telebot.Context) error {
	report, err := b.deps.arena.RefreshAllQuotes(handlerContext(c))
	if err != nil {
		return err
	}

	text := b.deps.dictionary.Text(lang(c), msgRefreshDone, map[string]any{
		"Refreshed": len(report.Refreshed),
		"Failed":    len(report.Failed),
		"NextAt":    report.NextAllowedAt.UTC().Format(dateLayout) + " UTC",
	})

	return b.send(c, text)
}
