// Package metrics provides Prometheus instrumentation for the arena.
package metrics

import (
	"bufio"
	"errors"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// TradesTotal counts trade attempts by side and outcome.
	TradesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "arena_trades_total",
		Help: "Total number of trade attempts",
	}, []string{"side", "result"})

	TradeLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "arena_trade_latency_seconds",
		Help:    "Trade execution latency in seconds, quote lookup included",
		Buckets: prometheus.DefBuckets,
	}, []string{"side"})

	// QuoteLookups counts price cache lookups by how they were served: hit, fetched, stale, unavailable.
	QuoteLookups = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "arena_quote_lookups_total",
		Help: "Price cache lookups by outcome",
	}, []string{"outcome"})

	// QuoteFetches counts upstream calls. Coalesced callers are not counted.
	QuoteFetches = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "arena_quote_fetches_total",
		Help: "Upstream quote fetches by result",
	}, []string{"result"})

	QuoteFetchDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "arena_quote_fetch_duration_seconds",
		Help:    "Upstream quote fetch duration in seconds",
		Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
	})

	// UnpricedHoldings counts holdings valued at zero because no quote was available.
	UnpricedHoldings = promauto.NewCounter(prometheus.CounterOpts{
		Name: "arena_unpriced_holdings_total",
		Help: "Holdings excluded from valuation for lack of a quote",
	})

	QuoteRefreshes = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "arena_quote_refreshes_total",
		Help: "Bulk quote refresh attempts by result",
	}, []string{"result"})

	Accounts = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "arena_ranked_accounts",
		Help: "Number of accounts in the last computed leaderboard",
	})

	// WebSocketClients tracks connected WebSocket clients.
	WebSocketClients = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "arena_websocket_clients",
		Help: "Number of connected WebSocket clients",
	})

	// HTTPRequestsTotal counts HTTP requests by method, route and status.
	HTTPRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "arena_http_requests_total",
		Help: "Total HTTP requests",
	}, []string{"method", "path", "status"})

	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "arena_http_request_duration_seconds",
		Help:    "HTTP request duration in seconds",
		Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0},
	}, []string{"method", "path"})
)

// Handler returns the Prometheus metrics HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}

// Middleware records request metrics labelled by the chi route pattern.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		wrapped := &statusWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(wrapped, r)
		duration := time.Since(start).Seconds()

		path := r.URL.Path
		if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
			path = rctx.RoutePattern()
		}

		HTTPRequestsTotal.WithLabelValues(r.Method, path, strconv.Itoa(wrapped.status)).Inc()
		HTTPRequestDuration.WithLabelValues(r.Method, path).Observe(duration)
	})
}

// statusWriter wraps http.ResponseWriter to capture the status code.
type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}

// Hijack lets websocket upgrades pass through the middleware.
func (w *statusWriter) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	hijacker, ok := w.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, errors.New("response writer does not support hijacking")
	}

	w.status = http.StatusSwitchingProtocols

	return hijacker.Hijack()
}
