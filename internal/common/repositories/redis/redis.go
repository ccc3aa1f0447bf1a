// Package redis keeps the last known quotes in a Redis hash so restarts can warm the price cache.
package redis

import (
	"context"
	"errors"
	"slices"
	"strings"
	"time"

	json "github.com/goccy/go-json"
	"github.com/leonid6372/stock-arena/internal/common/domain"
	"github.com/leonid6372/stock-arena/pkg/errs"
	"github.com/leonid6372/stock-arena/pkg/log"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const (
	quotesKey      = "arena:quotes"
	lastUpdatedKey = "arena:quotes:updated_at"
)

type quotesRepository struct {
	rdb *redis.Client
	ttl time.Duration
}

// NewQuotesRepository stores snapshots that expire ttl after the last refresh; zero keeps them forever.
func NewQuotesRepository(rdb *redis.Client, ttl time.Duration) domain.QuotesRepository {
	return &quotesRepository{
		rdb: rdb,
		ttl: ttl,
	}
}

func (qr *quotesRepository) UpsertQuotes(ctx context.Context, quotes []*domain.Quote) error {
	if len(quotes) == 0 {
		return nil
	}

	fields := make(map[string]any, len(quotes))
	var last time.Time
	for _, quote := range quotes {
		stored := *quote
		stored.Stale = false

		data, err := json.Marshal(&stored)
		if err != nil {
			return errs.NewStack(err)
		}
		fields[quote.Symbol] = data

		if quote.FetchedAt.After(last) {
			last = quote.FetchedAt
		}
	}

	_, err := qr.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSet(ctx, quotesKey, fields)
		pipe.Set(ctx, lastUpdatedKey, last.UTC().Format(time.RFC3339Nano), qr.ttl)
		if qr.ttl > 0 {
			pipe.Expire(ctx, quotesKey, qr.ttl)
		}
		return nil
	})
	if err != nil {
		return errs.NewStack(err)
	}

	return nil
}

func (qr *quotesRepository) GetQuotes(ctx context.Context) ([]*domain.Quote, error) {
	values, err := qr.rdb.HGetAll(ctx, quotesKey).Result()
	if err != nil {
		return nil, errs.NewStack(err)
	}

	quotes := make([]*domain.Quote, 0, len(values))
	for symbol, data := range values {
		quote := &domain.Quote{}
		if err := json.Unmarshal([]byte(data), quote); err != nil {
			log.Warn("skipping malformed quote snapshot", zap.String("symbol", symbol), zap.Error(err))
			continue
		}
		quotes = append(quotes, quote)
	}

	slices.SortFunc(quotes, func(a, b *domain.Quote) int { return strings.Compare(a.Symbol, b.Symbol) })

	return quotes, nil
}

func (qr *quotesRepository) GetLastUpdated(ctx context.Context) (time.Time, error) {
	value, err := qr.rdb.Get(ctx, lastUpdatedKey).Result()
	if errors.Is(err, redis.Nil) {
		return time.Time{}, nil
	}
	if err != nil {
		return time.Time{}, errs.NewStack(err)
	}

	last, err := time.Parse(time.RFC3339Nano, value)
	if err != nil {
		return time.Time{}, errs.NewStack(err)
	}

	return last, nil
}
