package bot

import (
	"strings"
	"time"

	"github.com/leonid6372/stock-arena/internal/common/domain"
	"github.com/leonid6372/stock-arena/internal/trading"
	"github.com/leonid6372/stock-arena/internal/traderrs"
	"github.com/leonid6372/stock-arena/internal/validator"
	"github.com/leonid6372/stock-arena/pkg/errs"
	"github.com/leonid6372/stock-arena/pkg/format"
	"github.com/shopspring/decimal"
	"gopkg.in/telebot.v4"
)

const dateLayout = "02.01 15:04"

func (b *Bot) send(c telebot.Context, text string, opts ...any) error {
	if c.Callback() != nil {
		_ = c.Respond()
	}

	options := []any{&telebot.SendOptions{ParseMode: telebot.ModeHTML}}
	options = append(options, opts...)

	if err := c.Send(text, options...); err != nil {
		return errs.Wrapf("failed to send message: %w", err)
	}

	return nil
}

func displayName(sender *telebot.User) string {
	if sender.Username != "" {
		return "@" + sender.Username
	}

	name := strings.TrimSpace(sender.FirstName + " " + sender.LastName)
	if name == "" {
		return accountID(sender.ID)
	}

	return name
}

func formatRemaining(d time.Duration) string {
	d = d.Round(time.Second)
	if d < time.Second {
		d = time.Second
	}

	return d.String()
}

// parseTradeArgs reads "TICKER QUANTITY" in either order.
func parseTradeArgs(args []string) (string, int64, error) {
	if len(args) != 2 {
		return "", 0, errUsage
	}

	symbol, rawQty := args[0], args[1]
	if _, err := decimal.NewFromString(symbol); err == nil {
		symbol, rawQty = rawQty, symbol
	}

	symbol, err := validator.NormalizeSymbol(symbol)
	if err != nil {
		return "", 0, err
	}

	qty, err := decimal.NewFromString(rawQty)
	if err != nil {
		return "", 0, traderrs.ErrInvalidQuantity
	}

	quantity, err := validator.ParseQuantity(qty)
	if err != nil {
		return "", 0, err
	}

	return symbol, quantity, nil
}

func (b *Bot) renderTrade(lang string, result *trading.TradeResult) string {
	tx := result.Transaction

	text := b.deps.dictionary.Text(lang, msgTradeExecuted, map[string]any{
		"Side":     strings.ToUpper(string(tx.Side)),
		"Quantity": tx.Quantity,
		"Symbol":   tx.Symbol,
		"Price":    format.Money(tx.Price),
		"Total":    format.Money(tx.Total),
		"Cash":     format.Money(result.Cash),
	})

	if tx.Side == domain.SideSell {
		text += "\n" + b.deps.dictionary.Text(lang, msgTradeRealized, map[string]any{
			"PnL": format.Money(tx.RealizedPnL),
		})
	}

	return text
}

func (b *Bot) renderQuote(lang string, quote *domain.Quote) string {
	change := ""
	if quote.ChangePercent.Valid {
		change = "(" + format.Percent(quote.ChangePercent.Decimal) + ")"
	}

	text := b.deps.dictionary.Text(lang, msgQuote, map[string]any{
		"Symbol":    quote.Symbol,
		"Name":      quote.Name,
		"Price":     format.Money(quote.Price),
		"Change":    change,
		"FetchedAt": quote.FetchedAt.UTC().Format(dateLayout) + " UTC",
	})

	if quote.Stale {
		text += "\n" + b.deps.dictionary.Text(lang, msgQuoteStale, map[string]any{"Symbol": quote.Symbol})
	}

	return text
}

func (b *Bot) renderPortfolio(lang string, p *trading.Portfolio) string {
	lines := []string{b.deps.dictionary.Text(lang, msgPortfolio, map[string]any{
		"Name":            p.DisplayName,
		"NetWorth":        format.Money(p.NetWorth),
		"Cash":            format.Money(p.Cash),
		"PortfolioValue":  format.Money(p.PortfolioValue),
		"PnL":             format.Money(p.UnrealizedPnL),
		"PnLPercent":      format.Percent(p.UnrealizedPnLPercent),
		"Diversification": p.Diversification,
	})}

	if len(p.Holdings) == 0 {
		return lines[0] + "\n\n" + b.deps.dictionary.Text(lang, msgPortfolioEmpty)
	}

	lines = append(lines, "")

	for _, h := range p.Holdings {
		if !h.Priced {
			lines = append(lines, b.deps.dictionary.Text(lang, msgPortfolioHoldingNoPrice, map[string]any{
				"Symbol":   h.Symbol,
				"Quantity": h.Quantity,
			}))
			continue
		}

		lines = append(lines, b.deps.dictionary.Text(lang, msgPortfolioHolding, map[string]any{
			"Symbol":     h.Symbol,
			"Quantity":   h.Quantity,
			"Price":      format.Money(h.Price),
			"Value":      format.Money(h.MarketValue),
			"PnLPercent": format.Percent(h.UnrealizedPnLPercent),
		}))
	}

	return strings.Join(lines, "\n")
}

func (b *Bot) renderHistory(lang string, txs []*domain.Transaction) string {
	if len(txs) == 0 {
		return b.deps.dictionary.Text(lang, msgHistoryEmpty)
	}

	lines := []string{b.deps.dictionary.Text(lang, msgHistoryHeader)}

	for _, tx := range txs {
		lines = append(lines, b.deps.dictionary.Text(lang, msgHistoryItem, map[string]any{
			"Date":     tx.CreatedAt.UTC().Format(dateLayout),
			"Side":     strings.ToUpper(string(tx.Side)),
			"Quantity": tx.Quantity,
			"Symbol":   tx.Symbol,
			"Price":    format.Money(tx.Price),
		}))
	}

	return strings.Join(lines, "\n")
}

func (b *Bot) renderTop(lang string, entries []*domain.LeaderboardEntry) string {
	if len(entries) == 0 {
		return b.deps.dictionary.Text(lang, msgTopEmpty)
	}

	lines := []string{b.deps.dictionary.Text(lang, msgTopHeader)}

	for _, entry := range entries {
		name := entry.DisplayName
		if name == "" {
			name = entry.AccountID
		}

		lines = append(lines, b.deps.dictionary.Text(lang, msgTopItem, map[string]any{
			"Rank":     entry.Rank,
			"Name":     name,
			"NetWorth": format.Money(entry.NetWorth),
		}))
	}

	return strings.Join(lines, "\n")
}

func (b *Bot) renderSearch(lang, query string, found []*domain.Quote) string {
	if len(found) == 0 {
		return b.deps.dictionary.Text(lang, msgSearchEmpty, map[string]any{"Query": query})
	}

	lines := []string{b.deps.dictionary.Text(lang, msgSearchHeader, map[string]any{"Query": query})}

	for _, quote := range found {
		lines = append(lines, b.deps.dictionary.Text(lang, msgSearchItem, map[string]any{
			"Symbol": quote.Symbol,
			"Name":   quote.Name,
			"Price":  format.Money(quote.Price),
		}))
	}

	return strings.Join(lines, "\n")
}
