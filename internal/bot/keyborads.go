package bot

import (
	"strconv"

	"gopkg.in/telebot.v4"
)

func (b *Bot) mainMenuKeyboard(lang string) *telebot.ReplyMarkup {
	markup := &telebot.ReplyMarkup{}

	btnPortfolio := telebot.Btn{Text: b.deps.dictionary.Text(lang, btnPortfolio)}
	btnHistory := telebot.Btn{Text: b.deps.dictionary.Text(lang, btnHistory)}
	btnTop := telebot.Btn{Text: b.deps.dictionary.Text(lang, btnTop)}
	btnRefresh := telebot.Btn{Text: b.deps.dictionary.Text(lang, btnRefresh)}

	rows := []telebot.Row{
		{btnPortfolio, btnHistory},
		{btnTop, btnRefresh},
	}

	markup.Reply(rows...)
	markup.ResizeKeyboard = true
	return markup
}

// quoteKeyboard offers one-tap trades of a single share and a quote reload.
func (b *Bot) quoteKeyboard(lang, symbol string) *telebot.ReplyMarkup {
	markup := &telebot.ReplyMarkup{}

	one := strconv.Itoa(quickTradeQuantity)
	data := map[string]any{"Quantity": quickTradeQuantity}

	rows := []telebot.Row{
		{
			markup.Data(b.deps.dictionary.Text(lang, btnBuy, data), cbkTrade, "buy", symbol, one),
			markup.Data(b.deps.dictionary.Text(lang, btnSell, data), cbkTrade, "sell", symbol, one),
		},
		{
			markup.Data("🔄 "+symbol, cbkQuote, symbol),
		},
	}

	markup.Inline(rows...)
	return markup
}
