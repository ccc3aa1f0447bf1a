package bot

import "time"

const (
	accountsCacheTTL     = 16 * time.Minute
	accountsCacheCleanup = 8 * time.Minute

	handlerTimeout = 30 * time.Second

	accountPrefix = "tg-"
	topLimit      = 10
	historyLimit  = 10

	quickTradeQuantity = 1
)

const (
	ctxContext = "context"
	ctxAccount = "account"
)

const (
	cbkTrade = "trade"
	cbkQuote = "quote"
)

const (
	msgDefaultError            = "unknown_error"
	msgStart                   = "start"
	msgUsageTrade              = "usage_trade"
	msgUsagePrice              = "usage_price"
	msgTradeExecuted           = "trade_executed"
	msgTradeRealized           = "trade_realized"
	msgQuote                   = "quote"
	msgQuoteStale              = "quote_stale"
	msgSearchHeader            = "search_header"
	msgSearchItem              = "search_item"
	msgSearchEmpty             = "search_empty"
	msgPortfolio               = "portfolio"
	msgPortfolioHolding        = "portfolio_holding"
	msgPortfolioHoldingNoPrice = "portfolio_holding_unpriced"
	msgPortfolioEmpty          = "portfolio_empty"
	msgHistoryHeader           = "history_header"
	msgHistoryItem             = "history_item"
	msgHistoryEmpty            = "history_empty"
	msgTopHeader               = "top_header"
	msgTopItem                 = "top_item"
	msgTopSelf                 = "top_self"
	msgTopEmpty                = "top_empty"
	msgTopBroadcast            = "top_broadcast"
	msgRefreshDone             = "refresh_done"

	msgErrCooldown           = "error_cooldown"
	msgErrInsufficientFunds  = "error_insufficient_funds"
	msgErrInsufficientShares = "error_insufficient_shares"
	msgErrInvalidInput       = "error_invalid_input"
	msgErrQuoteUnavailable   = "error_quote_unavailable"
	msgErrRefreshFailed      = "error_refresh_failed"
)

const (
	btnPortfolio = "button_portfolio"
	btnHistory   = "button_history"
	btnTop       = "button_top"
	btnRefresh   = "button_refresh"
	btnBuy       = "button_buy"
	btnSell      = "button_sell"
)
