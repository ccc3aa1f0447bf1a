package bot

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/leonid6372/stock-arena/internal/common/domain"
	"github.com/leonid6372/stock-arena/internal/leaderboard"
	"github.com/leonid6372/stock-arena/internal/traderrs"
	"github.com/leonid6372/stock-arena/pkg/errs"
	"github.com/leonid6372/stock-arena/pkg/log"
	"go.uber.org/zap"
	"gopkg.in/telebot.v4"
)

func (b *Bot) recoveryMiddleware(next telebot.HandlerFunc) telebot.HandlerFunc {
	return func(c telebot.Context) (err error) {
		defer func() {
			if r := recover(); r != nil {
				log.Error("recovered from panic",
					zap.Any("panic", r),
					zap.Stack("stack"),
				)

				err = fmt.Errorf("panic: %v", r)
			}
		}()

		return next(c)
	}
}

func (b *Bot) timeoutMiddleware(next telebot.HandlerFunc) telebot.HandlerFunc {
	return func(c telebot.Context) error {
		ctx, cancel := context.WithTimeout(b.ctx, handlerTimeout)
		defer cancel()

		c.Set(ctxContext, ctx)

		return next(c)
	}
}

// ensureAccountMiddleware opens an account for new players and keeps known ones in cache.
func (b *Bot) ensureAccountMiddleware(next telebot.HandlerFunc) telebot.HandlerFunc {
	return func(c telebot.Context) error {
		sender := c.Sender()
		if sender == nil {
			return nil
		}

		id := accountID(sender.ID)
		name := displayName(sender)

		if cached, ok := b.accounts.Get(id); ok {
			if account := cached.(*domain.Account); account.DisplayName == name {
				b.accounts.SetDefault(id, account)
				c.Set(ctxAccount, account)

				return next(c)
			}
		}

		account, err := b.deps.arena.EnsureAccount(handlerContext(c), id, name)
		if err != nil {
			return fmt.Errorf("failed to ensure account: %w", err)
		}

		b.accounts.SetDefault(id, account)
		c.Set(ctxAccount, account)

		return next(c)
	}
}

func (b *Bot) defaultErrorMiddleware(next telebot.HandlerFunc) telebot.HandlerFunc {
	return func(c telebot.Context) error {
		err := next(c)
		if err == nil {
			return nil
		}

		if key, data, ok := userErrorText(err); ok {
			log.Debug("request rejected", zap.Int64("user_id", c.Sender().ID), zap.Error(err))
			return b.send(c, b.deps.dictionary.Text(lang(c), key, data))
		}

		log.Error("unknown error", zap.Error(err))

		return b.defaultErrorHandler(c)
	}
}

func (b *Bot) defaultErrorHandler(c telebot.Context) error {
	text := b.deps.dictionary.Text(lang(c), msgDefaultError)

	if c.Callback() != nil {
		_ = c.Respond()
	}

	if err := c.Send(text); err != nil {
		return errs.NewStack(fmt.Errorf("failed to send message: %v", err))
	}

	return nil
}

// userErrorText picks the dictionary text for errors the player can act on.
func userErrorText(err error) (string, map[string]any, bool) {
	var (
		cooldownErr *traderrs.CooldownError
		quoteErr    *traderrs.QuoteUnavailableError
	)

	switch {
	case errors.As(err, &cooldownErr):
		return msgErrCooldown, map[string]any{"Remaining": formatRemaining(cooldownErr.Remaining)}, true
	case errors.Is(err, traderrs.ErrInsufficientFunds):
		return msgErrInsufficientFunds, nil, true
	case errors.Is(err, traderrs.ErrInsufficientShares):
		return msgErrInsufficientShares, nil, true
	case errors.Is(err, traderrs.ErrInvalidInput):
		reason := err.Error()
		if _, after, found := strings.Cut(reason, traderrs.ErrInvalidInput.Error()+": "); found {
			reason = after
		}
		return msgErrInvalidInput, map[string]any{"Reason": reason}, true
	case errors.As(err, &quoteErr):
		return msgErrQuoteUnavailable, map[string]any{"Symbol": quoteErr.Symbol}, true
	case errors.Is(err, leaderboard.ErrRefreshFailed):
		return msgErrRefreshFailed, nil, true
	}

	return "", nil, false
}
