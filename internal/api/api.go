// Package api serves the arena over HTTP.
package api

import (
	"context"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	json "github.com/goccy/go-json"
	"github.com/leonid6372/stock-arena/internal/common/domain"
	"github.com/leonid6372/stock-arena/internal/leaderboard"
	"github.com/leonid6372/stock-arena/internal/metrics"
	"github.com/leonid6372/stock-arena/internal/traderrs"
	"github.com/leonid6372/stock-arena/internal/trading"
	"github.com/leonid6372/stock-arena/internal/validator"
	"github.com/shopspring/decimal"
)

const maxBodyBytes = 1 << 16

// Arena is the subset of trading.Service the API needs.
type Arena interface {
	EnsureAccount(ctx context.Context, accountID, displayName string) (*domain.Account, error)
	Trade(ctx context.Context, side domain.Side, accountID, symbol string, quantity int64) (*trading.TradeResult, error)
	GetPortfolio(ctx context.Context, accountID string) (*trading.Portfolio, error)
	GetTransactions(ctx context.Context, accountID string, limit int) ([]*domain.Transaction, error)
	GetQuote(ctx context.Context, symbol string) (*domain.Quote, error)
	SearchQuotes(ctx context.Context, query string) []*domain.Quote
	CachedQuotes() []*domain.Quote
	GetLeaderboard(ctx context.Context, limit int) ([]*domain.LeaderboardEntry, error)
	GetRank(ctx context.Context, accountID string) (*domain.LeaderboardEntry, error)
	RefreshAllQuotes(ctx context.Context) (*leaderboard.RefreshReport, error)
	RefreshStatus(ctx context.Context) (*leaderboard.RefreshStatus, error)
}

type Handler struct {
	arena          Arena
	hub            *WSHub
	requestTimeout time.Duration
}

// NewHandler builds the API handler. hub may be nil, then /ws is not served.
func NewHandler(arena Arena, hub *WSHub, requestTimeout time.Duration) *Handler {
	if requestTimeout <= 0 {
		requestTimeout = 30 * time.Second
	}

	return &Handler{arena: arena, hub: hub, requestTimeout: requestTimeout}
}

// Router mounts every route with the standard middleware stack.
func (h *Handler) Router() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(metrics.Middleware)
	r.Use(withCORS)

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok", "service": "stock-arena"})
	})
	r.Handle("/metrics", metrics.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		if h.hub != nil {
			r.Get("/ws", h.hub.HandleWS)
		}

		r.Group(func(r chi.Router) {
			r.Use(middleware.Timeout(h.requestTimeout))

			r.Post("/accounts", h.CreateAccount)
			r.Get("/accounts/{accountID}/portfolio", h.GetPortfolio)
			r.Get("/accounts/{accountID}/transactions", h.GetTransactions)
			r.Get("/accounts/{accountID}/rank", h.GetRank)

			r.Post("/trade", h.Trade)

			r.Get("/quotes", h.SearchQuotes)
			r.Get("/quotes/cached", h.CachedQuotes)
			r.Get("/quotes/{symbol}", h.GetQuote)
			r.Post("/quotes/refresh", h.RefreshAllQuotes)
			r.Get("/quotes/refresh", h.RefreshStatus)

			r.Get("/leaderboard", h.GetLeaderboard)
		})
	})

	return r
}

func withCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

type createAccountRequest struct {
	AccountID   string `json:"account_id"`
	DisplayName string `json:"display_name"`
}

type tradeRequest struct {
	AccountID string          `json:"account_id"`
	Symbol    string          `json:"symbol"`
	Side      string          `json:"side"`
	Quantity  decimal.Decimal `json:"quantity"`
}

func decodeBody(w http.ResponseWriter, r *http.Request, dst any) error {
	decoder := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	decoder.DisallowUnknownFields()

	if err := decoder.Decode(dst); err != nil {
		return &badRequestError{msg: "invalid request body: " + err.Error()}
	}

	return nil
}

type badRequestError struct {
	msg string
}

func (e *badRequestError) Error() string { return e.msg }

func (e *badRequestError) Is(target error) bool { return target == traderrs.ErrInvalidInput }

// CreateAccount handles POST /api/v1/accounts. Existing accounts are returned as is.
func (h *Handler) CreateAccount(w http.ResponseWriter, r *http.Request) {
	var req createAccountRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeErr(w, r, err)
		return
	}

	account, err := h.arena.EnsureAccount(r.Context(), strings.TrimSpace(req.AccountID), strings.TrimSpace(req.DisplayName))
	if err != nil {
		writeErr(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, account)
}

func (h *Handler) GetPortfolio(w http.ResponseWriter, r *http.Request) {
	portfolio, err := h.arena.GetPortfolio(r.Context(), chi.URLParam(r, "accountID"))
	if err != nil {
		writeErr(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, portfolio)
}

func (h *Handler) GetTransactions(w http.ResponseWriter, r *http.Request) {
	limit, err := queryLimit(r)
	if err != nil {
		writeErr(w, r, err)
		return
	}

	txs, err := h.arena.GetTransactions(r.Context(), chi.URLParam(r, "accountID"), limit)
	if err != nil {
		writeErr(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"transactions": txs})
}

func (h *Handler) GetRank(w http.ResponseWriter, r *http.Request) {
	entry, err := h.arena.GetRank(r.Context(), chi.URLParam(r, "accountID"))
	if err != nil {
		writeErr(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, entry)
}

// Trade handles POST /api/v1/trade. Quantity must be a whole positive number.
func (h *Handler) Trade(w http.ResponseWriter, r *http.Request) {
	var req tradeRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeErr(w, r, err)
		return
	}

	quantity, err := validator.ParseQuantity(req.Quantity)
	if err != nil {
		writeErr(w, r, err)
		return
	}

	side := domain.Side(strings.ToLower(strings.TrimSpace(req.Side)))

	result, err := h.arena.Trade(r.Context(), side, req.AccountID, req.Symbol, quantity)
	if err != nil {
		writeErr(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, result)
}

func (h *Handler) GetQuote(w http.ResponseWriter, r *http.Request) {
	quote, err := h.arena.GetQuote(r.Context(), chi.URLParam(r, "symbol"))
	if err != nil {
		writeErr(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, quote)
}

// SearchQuotes handles GET /api/v1/quotes?search=.
func (h *Handler) SearchQuotes(w http.ResponseWriter, r *http.Request) {
	found := h.arena.SearchQuotes(r.Context(), r.URL.Query().Get("search"))

	writeJSON(w, http.StatusOK, map[string]any{"quotes": found})
}

func (h *Handler) CachedQuotes(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"quotes": h.arena.CachedQuotes()})
}

func (h *Handler) GetLeaderboard(w http.ResponseWriter, r *http.Request) {
	limit, err := queryLimit(r)
	if err != nil {
		writeErr(w, r, err)
		return
	}

	entries, err := h.arena.GetLeaderboard(r.Context(), limit)
	if err != nil {
		writeErr(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"leaderboard": entries})
}

func (h *Handler) RefreshAllQuotes(w http.ResponseWriter, r *http.Request) {
	report, err := h.arena.RefreshAllQuotes(r.Context())
	if err != nil {
		writeErr(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, report)
}

func (h *Handler) RefreshStatus(w http.ResponseWriter, r *http.Request) {
	status, err := h.arena.RefreshStatus(r.Context())
	if err != nil {
		writeErr(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, status)
}

func queryLimit(r *http.Request) (int, error) {
	raw := r.URL.Query().Get("limit")
	if raw == "" {
		return 0, nil
	}

	limit, err := strconv.Atoi(raw)
	if err != nil || limit < 0 {
		return 0, &badRequestError{msg: "limit must be a non-negative integer"}
	}

	return limit, nil
}
