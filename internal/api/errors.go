package api

import (
	"context"
	"errors"
	"math"
	"net/http"
	"strconv"

	json "github.com/goccy/go-json"
	"github.com/leonid6372/stock-arena/internal/leaderboard"
	"github.com/leonid6372/stock-arena/internal/traderrs"
	"github.com/leonid6372/stock-arena/pkg/errs"
	"github.com/leonid6372/stock-arena/pkg/log"
	"go.uber.org/zap"
)

const upstreamRetryAfter = "30"

type errorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(payload); err != nil {
		log.Warn("failed to write response", zap.Error(err))
	}
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, errorResponse{Error: message, Code: code})
}

// writeErr maps a domain error to its HTTP status.
func writeErr(w http.ResponseWriter, r *http.Request, err error) {
	var (
		cooldownErr *traderrs.CooldownError
		quoteErr    *traderrs.QuoteUnavailableError
	)

	switch {
	case errors.As(err, &cooldownErr):
		secs := int64(math.Ceil(cooldownErr.Remaining.Seconds()))
		w.Header().Set("Retry-After", strconv.FormatInt(secs, 10))
		writeError(w, http.StatusTooManyRequests, "cooldown_active", err.Error())

	case errors.Is(err, traderrs.ErrInvalidInput):
		writeError(w, http.StatusBadRequest, "invalid_input", err.Error())

	case errors.Is(err, traderrs.ErrInsufficientFunds):
		writeError(w, http.StatusConflict, "insufficient_funds", err.Error())

	case errors.Is(err, traderrs.ErrInsufficientShares):
		writeError(w, http.StatusConflict, "insufficient_shares", err.Error())

	case errors.Is(err, traderrs.ErrAccountNotFound):
		writeError(w, http.StatusNotFound, "account_not_found", err.Error())

	case errors.As(err, &quoteErr), errors.Is(err, traderrs.ErrUpstreamUnavailable):
		if traderrs.Retryable(err) {
			w.Header().Set("Retry-After", upstreamRetryAfter)
		}
		writeError(w, http.StatusServiceUnavailable, "quote_unavailable", err.Error())

	case errors.Is(err, leaderboard.ErrRefreshFailed):
		writeError(w, http.StatusServiceUnavailable, "refresh_failed", err.Error())

	case errors.Is(err, context.DeadlineExceeded):
		writeError(w, http.StatusGatewayTimeout, "timeout", "request timed out")

	default:
		log.Error("request failed",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Error(err),
			zap.String("trace", errs.Trace(err)),
		)
		writeError(w, http.StatusInternalServerError, "internal", "internal error")
	}
}
