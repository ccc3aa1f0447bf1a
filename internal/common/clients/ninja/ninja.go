// Package ninja fetches stock quotes from an API Ninjas compatible REST endpoint.
package ninja

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v5"
	json "github.com/goccy/go-json"
	"github.com/leonid6372/stock-arena/internal/common/domain"
	"github.com/leonid6372/stock-arena/internal/traderrs"
	"golang.org/x/time/rate"
)

const (
	DefaultBaseURL = "https://api.api-ninjas.com"

	stockPricePath = "/v1/stockprice"
	apiKeyHeader   = "X-Api-Key"
)

var ErrSymbolNotFound = errors.New("symbol not found")

type Config struct {
	BaseURL string
	APIKey  string
	Timeout time.Duration
	// RPS limits outgoing requests per second; zero disables limiting.
	RPS   float64
	Burst int
	// MaxRetries is the number of extra attempts after a transient failure.
	MaxRetries     uint
	InitialBackoff time.Duration
}

type Client struct {
	httpClient *http.Client
	baseURL    string
	apiKey     string
	limiter    *rate.Limiter

	maxRetries     uint
	initialBackoff time.Duration
}

func NewClient(cfg Config) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 5 * time.Second
	}
	if cfg.InitialBackoff <= 0 {
		cfg.InitialBackoff = 200 * time.Millisecond
	}

	limiter := rate.NewLimiter(rate.Inf, 0)
	if cfg.RPS > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.RPS), max(cfg.Burst, 1))
	}

	return &Client{
		httpClient:     &http.Client{Timeout: cfg.Timeout},
		baseURL:        strings.TrimSuffix(cfg.BaseURL, "/"),
		apiKey:         cfg.APIKey,
		limiter:        limiter,
		maxRetries:     cfg.MaxRetries,
		initialBackoff: cfg.InitialBackoff,
	}
}

// FetchQuote returns the latest quote of symbol. Transient failures are retried with
// exponential backoff and reported as *traderrs.UpstreamError when retries run out.
func (c *Client) FetchQuote(ctx context.Context, symbol string) (*domain.Quote, error) {
	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = c.initialBackoff
	policy.MaxInterval = 4 * c.initialBackoff

	return backoff.Retry(ctx, func() (*domain.Quote, error) {
		quote, err := c.fetchOnce(ctx, symbol)
		if err != nil && !errors.Is(err, traderrs.ErrUpstreamUnavailable) {
			return nil, backoff.Permanent(err)
		}

		return quote, err
	},
		backoff.WithBackOff(policy),
		backoff.WithMaxTries(c.maxRetries+1),
	)
}

func (c *Client) fetchOnce(ctx context.Context, symbol string) (*domain.Quote, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	endpoint := c.baseURL + stockPricePath + "?" + url.Values{"ticker": {symbol}}.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("ninja: build request: %w", err)
	}
	req.Header.Set(apiKeyHeader, c.apiKey)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, &traderrs.UpstreamError{Symbol: symbol, Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, &traderrs.UpstreamError{Symbol: symbol, StatusCode: resp.StatusCode, Err: err}
	}

	switch {
	case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= http.StatusInternalServerError:
		return nil, &traderrs.UpstreamError{Symbol: symbol, StatusCode: resp.StatusCode}
	case resp.StatusCode == http.StatusNotFound:
		return nil, fmt.Errorf("ninja %s: %w", symbol, ErrSymbolNotFound)
	case resp.StatusCode != http.StatusOK:
		return nil, fmt.Errorf("ninja %s: unexpected status %d: %s", symbol, resp.StatusCode, strings.TrimSpace(string(body)))
	}

	// unknown tickers come back as an empty object or an empty array
	trimmed := strings.TrimSpace(string(body))
	if trimmed == "" || trimmed == "{}" || trimmed == "[]" {
		return nil, fmt.Errorf("ninja %s: %w", symbol, ErrSymbolNotFound)
	}

	res := &stockPriceResponse{}
	if err := json.Unmarshal(body, res); err != nil {
		return nil, fmt.Errorf("ninja %s: decode response: %w", symbol, err)
	}

	if res.Ticker == "" {
		return nil, fmt.Errorf("ninja %s: %w", symbol, ErrSymbolNotFound)
	}

	quote, err := res.CreateDomain()
	if err != nil {
		// bad upstream data is not the caller's invalid input, so the cause is not wrapped
		return nil, fmt.Errorf("ninja %s: bad quote: %v", symbol, err)
	}

	return quote, nil
}
