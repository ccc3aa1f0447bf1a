// Package quotes is the price cache in front of the upstream quote provider.
//
// A quote younger than the TTL is served without a fetch. Concurrent misses for
// one symbol share a single upstream call that runs detached from the callers,
// so a caller giving up never cancels the fetch for the others. When the
// upstream fails, a quote within the retention window is served marked stale.
package quotes

import (
	"context"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/leonid6372/stock-arena/internal/common/domain"
	"github.com/leonid6372/stock-arena/internal/metrics"
	"github.com/leonid6372/stock-arena/internal/traderrs"
	"github.com/leonid6372/stock-arena/internal/validator"
	"github.com/leonid6372/stock-arena/pkg/log"
	"github.com/patrickmn/go-cache"
	"github.com/sourcegraph/conc/pool"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

const (
	DefaultTTL          = time.Minute
	DefaultRetention    = 24 * time.Hour
	DefaultFetchTimeout = 10 * time.Second
	DefaultWorkers      = 8
)

type Config struct {
	TTL          time.Duration
	Retention    time.Duration
	FetchTimeout time.Duration
	// Workers bounds concurrent upstream calls of one batch.
	Workers int
}

func (c Config) withDefaults() Config {
	if c.TTL <= 0 {
		c.TTL = DefaultTTL
	}
	if c.Retention < c.TTL {
		c.Retention = DefaultRetention
	}
	if c.FetchTimeout <= 0 {
		c.FetchTimeout = DefaultFetchTimeout
	}
	if c.Workers <= 0 {
		c.Workers = DefaultWorkers
	}

	return c
}

type Cache struct {
	provider domain.QuoteProvider
	cfg      Config

	items  *cache.Cache
	flight singleflight.Group

	now func() time.Time
}

// Batch is the outcome of a multi-symbol lookup. A symbol is either in Quotes or in Failed.
type Batch struct {
	Quotes map[string]*domain.Quote
	Failed []string
}

func New(provider domain.QuoteProvider, cfg Config) *Cache {
	cfg = cfg.withDefaults()

	return &Cache{
		provider: provider,
		cfg:      cfg,
		items:    cache.New(cfg.Retention, cfg.Retention/4),
		now:      time.Now,
	}
}

// GetPrice returns a fresh quote, fetching it when the cached one is older than the TTL.
func (c *Cache) GetPrice(ctx context.Context, symbol string) (*domain.Quote, error) {
	symbol, err := validator.NormalizeSymbol(symbol)
	if err != nil {
		return nil, err
	}

	if quote, ok := c.lookup(symbol); ok && c.fresh(quote) {
		metrics.QuoteLookups.WithLabelValues("hit").Inc()
		return quote, nil
	}

	return c.fetch(ctx, symbol, false)
}

// GetPrices looks up symbols concurrently. One failing symbol never fails the others.
func (c *Cache) GetPrices(ctx context.Context, symbols []string) *Batch {
	return c.batch(ctx, symbols, c.GetPrice)
}

// Refresh fetches symbols ignoring the TTL. Concurrent fetches of the same symbol are still shared.
func (c *Cache) Refresh(ctx context.Context, symbols []string) *Batch {
	return c.batch(ctx, symbols, func(ctx context.Context, symbol string) (*domain.Quote, error) {
		symbol, err := validator.NormalizeSymbol(symbol)
		if err != nil {
			return nil, err
		}

		return c.fetch(ctx, symbol, true)
	})
}

// Warm seeds the cache with previously stored quotes, keeping newer entries.
func (c *Cache) Warm(quotes []*domain.Quote) int {
	warmed := 0

	for _, quote := range quotes {
		if quote == nil || c.now().Sub(quote.FetchedAt) >= c.cfg.Retention {
			continue
		}

		if current, ok := c.lookup(quote.Symbol); ok && !current.FetchedAt.Before(quote.FetchedAt) {
			continue
		}

		c.store(quote)
		warmed++
	}

	return warmed
}

// Cached returns a copy of every retained quote, ordered by symbol.
func (c *Cache) Cached() []*domain.Quote {
	items := c.items.Items()

	quotes := make([]*domain.Quote, 0, len(items))
	for _, item := range items {
		quote := *item.Object.(*domain.Quote)
		quote.Stale = !c.fresh(&quote)
		quotes = append(quotes, &quote)
	}

	slices.SortFunc(quotes, func(a, b *domain.Quote) int { return strings.Compare(a.Symbol, b.Symbol) })

	return quotes
}

func (c *Cache) batch(ctx context.Context, symbols []string, get func(context.Context, string) (*domain.Quote, error)) *Batch {
	result := &Batch{Quotes: make(map[string]*domain.Quote, len(symbols))}

	unique := make([]string, 0, len(symbols))
	seen := make(map[string]struct{}, len(symbols))
	for _, symbol := range symbols {
		if _, ok := seen[symbol]; ok {
			continue
		}
		seen[symbol] = struct{}{}
		unique = append(unique, symbol)
	}

	var mu sync.Mutex
	p := pool.New().WithMaxGoroutines(c.cfg.Workers)

	for _, symbol := range unique {
		p.Go(func() {
			quote, err := get(ctx, symbol)

			mu.Lock()
			defer mu.Unlock()

			if err != nil {
				result.Failed = append(result.Failed, symbol)
				return
			}
			result.Quotes[quote.Symbol] = quote
		})
	}
	p.Wait()

	slices.Sort(result.Failed)

	return result
}

// fetch shares one upstream call per symbol. Unless forced, the flight leader
// first re-checks the cache, since an earlier flight may have stored a fresh
// quote after the caller's own check.
func (c *Cache) fetch(ctx context.Context, symbol string, force bool) (*domain.Quote, error) {
	ch := c.flight.DoChan(symbol, func() (any, error) {
		if !force {
			if quote, ok := c.lookup(symbol); ok && c.fresh(quote) {
				return quote, nil
			}
		}

		fetchCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.cfg.FetchTimeout)
		defer cancel()

		start := time.Now()
		quote, err := c.provider.FetchQuote(fetchCtx, symbol)
		metrics.QuoteFetchDuration.Observe(time.Since(start).Seconds())

		if err != nil {
			metrics.QuoteFetches.WithLabelValues("error").Inc()
			return nil, err
		}
		metrics.QuoteFetches.WithLabelValues("ok").Inc()

		stored := *quote
		stored.Symbol = symbol
		stored.FetchedAt = c.now().UTC()
		c.store(&stored)

		return &stored, nil
	})

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err == nil {
			metrics.QuoteLookups.WithLabelValues("fetched").Inc()
			quote := *res.Val.(*domain.Quote)
			return &quote, nil
		}

		if quote, ok := c.lookup(symbol); ok && c.retained(quote) {
			metrics.QuoteLookups.WithLabelValues("stale").Inc()
			log.Warn("serving stale quote",
				zap.String("symbol", symbol),
				zap.Time("fetched_at", quote.FetchedAt),
				zap.Error(res.Err),
			)

			quote.Stale = true
			return quote, nil
		}

		metrics.QuoteLookups.WithLabelValues("unavailable").Inc()
		log.Warn("quote unavailable", zap.String("symbol", symbol), zap.Error(res.Err))

		return nil, &traderrs.QuoteUnavailableError{Symbol: symbol, Err: res.Err}
	}
}

func (c *Cache) lookup(symbol string) (*domain.Quote, bool) {
	item, ok := c.items.Get(symbol)
	if !ok {
		return nil, false
	}

	quote := *item.(*domain.Quote)

	return &quote, true
}

func (c *Cache) store(quote *domain.Quote) {
	stored := *quote
	stored.Stale = false
	c.items.Set(stored.Symbol, &stored, cache.DefaultExpiration)
}

func (c *Cache) fresh(quote *domain.Quote) bool {
	return c.now().Sub(quote.FetchedAt) < c.cfg.TTL
}

func (c *Cache) retained(quote *domain.Quote) bool {
	return c.now().Sub(quote.FetchedAt) < c.cfg.Retention
}
