package api

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	json "github.com/goccy/go-json"
	"github.com/gorilla/websocket"
	"github.com/leonid6372/stock-arena/internal/common/domain"
	"github.com/leonid6372/stock-arena/internal/common/repositories/memory"
	"github.com/leonid6372/stock-arena/internal/leaderboard"
	"github.com/leonid6372/stock-arena/internal/ledger"
	"github.com/leonid6372/stock-arena/internal/quotes"
	"github.com/leonid6372/stock-arena/internal/traderrs"
	"github.com/leonid6372/stock-arena/internal/trading"
	"github.com/leonid6372/stock-arena/internal/valuation"
	"github.com/leonid6372/stock-arena/pkg/errs"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

type fakeProvider struct {
	mu     sync.Mutex
	prices map[string]decimal.Decimal
}

func (p *fakeProvider) FetchQuote(_ context.Context, symbol string) (*domain.Quote, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	price, ok := p.prices[symbol]
	if !ok {
		return nil, &traderrs.UpstreamError{Symbol: symbol, StatusCode: http.StatusBadGateway}
	}

	return &domain.Quote{Symbol: symbol, Name: symbol + " Inc.", Price: price}, nil
}

func newTestServer(t *testing.T, hub *WSHub) *httptest.Server {
	t.Helper()

	store := memory.NewStore()
	provider := &fakeProvider{prices: map[string]decimal.Decimal{
		"AAPL": decimal.NewFromInt(100),
		"MSFT": decimal.RequireFromString("250.5"),
	}}

	cache := quotes.New(provider, quotes.Config{TTL: time.Minute, Retention: time.Hour})
	l := ledger.New(store, store)
	v := valuation.New(l, cache)

	deps := trading.Deps{
		Accounts:  store,
		Ledger:    l,
		Prices:    cache,
		Valuer:    v,
		Ranker:    leaderboard.NewRanker(store, v, 2),
		Refresher: leaderboard.NewRefresher(store, cache, store, leaderboard.NewCooldown(time.Hour)),
	}
	if hub != nil {
		deps.Publisher = hub
	}

	srv := httptest.NewServer(NewHandler(trading.New(deps), hub, 5*time.Second).Router())
	t.Cleanup(srv.Close)

	return srv
}

func do(t *testing.T, method, url string, body any) (*http.Response, map[string]any) {
	t.Helper()

	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}

	req, err := http.NewRequest(method, url, reader)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	payload := map[string]any{}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&payload))

	return resp, payload
}

func TestTradeFlow(t *testing.T) {
	srv := newTestServer(t, nil)
	api := srv.URL + "/api/v1"

	resp, body := do(t, http.MethodPost, api+"/accounts", map[string]any{"account_id": "alice", "display_name": "Alice"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, "10000", body["cash"])

	resp, body = do(t, http.MethodPost, api+"/trade", map[string]any{"account_id": "alice", "symbol": "aapl", "side": "BUY", "quantity": 10})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, "9000", body["cash"])

	resp, body = do(t, http.MethodPost, api+"/trade", map[string]any{"account_id": "alice", "symbol": "AAPL", "side": "sell", "quantity": "4"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, "9400", body["cash"])

	resp, body = do(t, http.MethodGet, api+"/accounts/alice/portfolio", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, "10000", body["net_worth"])
	require.Len(t, body["holdings"], 1)
	require.Len(t, body["recent_transactions"], 2)

	resp, body = do(t, http.MethodGet, api+"/accounts/alice/transactions?limit=1", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Len(t, body["transactions"], 1)

	resp, body = do(t, http.MethodGet, api+"/leaderboard", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Len(t, body["leaderboard"], 1)

	resp, body = do(t, http.MethodGet, api+"/accounts/alice/rank", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.EqualValues(t, 1, body["rank"])
}

func TestErrorMapping(t *testing.T) {
	srv := newTestServer(t, nil)
	api := srv.URL + "/api/v1"

	resp, _ := do(t, http.MethodPost, api+"/accounts", map[string]any{"account_id": "bob"})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	tests := []struct {
		name   string
		method string
		path   string
		body   any
		status int
		code   string
	}{
		{"account without account_id", http.MethodPost, "/accounts", map[string]any{"id": "bob"}, http.StatusBadRequest, "invalid_input"},
		{"fractional quantity", http.MethodPost, "/trade", map[string]any{"account_id": "bob", "symbol": "AAPL", "side": "buy", "quantity": 1.5}, http.StatusBadRequest, "invalid_input"},
		{"bad side", http.MethodPost, "/trade", map[string]any{"account_id": "bob", "symbol": "AAPL", "side": "hold", "quantity": 1}, http.StatusBadRequest, "invalid_input"},
		{"bad symbol", http.MethodPost, "/trade", map[string]any{"account_id": "bob", "symbol": "AA PL", "side": "buy", "quantity": 1}, http.StatusBadRequest, "invalid_input"},
		{"unknown field", http.MethodPost, "/trade", map[string]any{"account_id": "bob", "ticker": "AAPL"}, http.StatusBadRequest, "invalid_input"},
		{"insufficient funds", http.MethodPost, "/trade", map[string]any{"account_id": "bob", "symbol": "AAPL", "side": "buy", "quantity": 1000}, http.StatusConflict, "insufficient_funds"},
		{"insufficient shares", http.MethodPost, "/trade", map[string]any{"account_id": "bob", "symbol": "MSFT", "side": "sell", "quantity": 1}, http.StatusConflict, "insufficient_shares"},
		{"unknown account", http.MethodGet, "/accounts/nobody/portfolio", nil, http.StatusNotFound, "account_not_found"},
		{"bad limit", http.MethodGet, "/leaderboard?limit=abc", nil, http.StatusBadRequest, "invalid_input"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, body := do(t, tt.method, api+tt.path, tt.body)
			require.Equal(t, tt.status, resp.StatusCode)
			require.Equal(t, tt.code, body["code"])
			require.NotEmpty(t, body["error"])
		})
	}
}

func TestQuoteUnavailable(t *testing.T) {
	srv := newTestServer(t, nil)

	resp, body := do(t, http.MethodGet, srv.URL+"/api/v1/quotes/TSLA", nil)
	require.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
	require.Equal(t, "quote_unavailable", body["code"])
	require.Equal(t, upstreamRetryAfter, resp.Header.Get("Retry-After"))

	resp, body = do(t, http.MethodGet, srv.URL+"/api/v1/quotes/aapl", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, "AAPL", body["symbol"])
	require.Equal(t, "100", body["price"])
}

func TestSearchQuotes(t *testing.T) {
	srv := newTestServer(t, nil)

	resp, body := do(t, http.MethodGet, srv.URL+"/api/v1/quotes?search=ms", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	found, ok := body["quotes"].([]any)
	require.True(t, ok)
	require.Len(t, found, 1)
	require.Equal(t, "MSFT", found[0].(map[string]any)["symbol"])
}

func TestCachedQuotes(t *testing.T) {
	srv := newTestServer(t, nil)
	api := srv.URL + "/api/v1"

	resp, body := do(t, http.MethodGet, api+"/quotes/cached", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Empty(t, body["quotes"])

	resp, _ = do(t, http.MethodGet, api+"/quotes/msft", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp, body = do(t, http.MethodGet, api+"/quotes/cached", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	cached, ok := body["quotes"].([]any)
	require.True(t, ok)
	require.Len(t, cached, 1)
	require.Equal(t, "MSFT", cached[0].(map[string]any)["symbol"])
	require.NotContains(t, cached[0].(map[string]any), "stale")
}

func TestUnexpectedErrorIsInternal(t *testing.T) {
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/leaderboard", nil)

	writeErr(rec, req, errs.NewStack(errors.New("connection reset")))

	require.Equal(t, http.StatusInternalServerError, rec.Code)

	body := map[string]string{}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	require.Equal(t, "internal", body["code"])
	require.NotContains(t, body["error"], "connection reset")
}

func TestRefreshCooldown(t *testing.T) {
	srv := newTestServer(t, nil)
	api := srv.URL + "/api/v1"

	do(t, http.MethodPost, api+"/accounts", map[string]any{"account_id": "carol"})
	resp, _ := do(t, http.MethodPost, api+"/trade", map[string]any{"account_id": "carol", "symbol": "MSFT", "side": "buy", "quantity": 2})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp, body := do(t, http.MethodPost, api+"/quotes/refresh", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, []any{"MSFT"}, body["refreshed"])

	resp, body = do(t, http.MethodPost, api+"/quotes/refresh", nil)
	require.Equal(t, http.StatusTooManyRequests, resp.StatusCode)
	require.Equal(t, "cooldown_active", body["code"])

	retryAfter, err := strconv.Atoi(resp.Header.Get("Retry-After"))
	require.NoError(t, err)
	require.InDelta(t, 3600, retryAfter, 5)

	resp, body = do(t, http.MethodGet, api+"/quotes/refresh", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Greater(t, body["remaining_seconds"], float64(3590))
}

func TestHealth(t *testing.T) {
	srv := newTestServer(t, nil)

	resp, body := do(t, http.MethodGet, srv.URL+"/health", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, "ok", body["status"])
}

func TestWebSocketReceivesTrades(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	hub := NewWSHub()
	go hub.Run(ctx)

	srv := newTestServer(t, hub)

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http")+"/api/v1/ws", nil)
	require.NoError(t, err)
	defer conn.Close()

	require.Eventually(t, func() bool { return hub.Clients() == 1 }, time.Second, 10*time.Millisecond)

	do(t, http.MethodPost, srv.URL+"/api/v1/accounts", map[string]any{"account_id": "dave"})
	resp, _ := do(t, http.MethodPost, srv.URL+"/api/v1/trade", map[string]any{"account_id": "dave", "symbol": "AAPL", "side": "buy", "quantity": 1})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))

	var event struct {
		Type    string             `json:"type"`
		Payload domain.Transaction `json:"payload"`
	}
	require.NoError(t, conn.ReadJSON(&event))
	require.Equal(t, trading.EventTradeExecuted, event.Type)
	require.Equal(t, "dave", event.Payload.AccountID)
	require.Equal(t, "AAPL", event.Payload.Symbol)

	cancel()
	require.Eventually(t, func() bool { return hub.Clients() == 0 }, time.Second, 10*time.Millisecond)
}

func TestSlowWebSocketClientIsDropped(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	hub := NewWSHub()
	go hub.Run(ctx)

	slow := &wsClient{send: make(chan []byte, 1)}
	slow.send <- []byte("backlog")
	fast := &wsClient{send: make(chan []byte, wsSendBuffer)}

	hub.register <- slow
	hub.register <- fast
	require.Eventually(t, func() bool { return hub.Clients() == 2 }, time.Second, 10*time.Millisecond)

	hub.Publish(trading.Event{Type: trading.EventQuotesRefreshed})

	select {
	case msg := <-fast.send:
		require.Contains(t, string(msg), trading.EventQuotesRefreshed)
	case <-time.After(time.Second):
		t.Fatal("broadcast did not reach the ready client")
	}

	require.Eventually(t, func() bool { return hub.Clients() == 1 }, time.Second, 10*time.Millisecond)

	require.Equal(t, "backlog", string(<-slow.send))
	_, open := <-slow.send
	require.False(t, open)

	hub.Publish(trading.Event{Type: trading.EventTradeExecuted})

	select {
	case msg := <-fast.send:
		require.Contains(t, string(msg), trading.EventTradeExecuted)
	case <-time.After(time.Second):
		t.Fatal("hub stopped broadcasting after dropping a client")
	}
}
