package traderrs

import (
	"errors"
	"fmt"
	"time"
)

var (
	ErrInvalidInput    = errors.New("invalid input")
	ErrInvalidQuantity = fmt.Errorf("%w: quantity must be a positive integer", ErrInvalidInput)
	ErrInvalidPrice    = fmt.Errorf("%w: price per share must be a positive number", ErrInvalidInput)
	ErrPriceTooHigh    = fmt.Errorf("%w: price per share seems unreasonably high", ErrInvalidInput)
	ErrInvalidSymbol   = fmt.Errorf("%w: invalid symbol", ErrInvalidInput)
	ErrInvalidSide     = fmt.Errorf("%w: side must be buy or sell", ErrInvalidInput)
	ErrInvalidAccount  = fmt.Errorf("%w: account id is required", ErrInvalidInput)

	ErrInsufficientFunds  = errors.New("insufficient funds")
	ErrInsufficientShares = errors.New("insufficient shares")
	ErrAccountNotFound    = errors.New("account not found")

	ErrQuoteUnavailable    = errors.New("quote unavailable")
	ErrUpstreamUnavailable = errors.New("upstream unavailable")
	ErrCooldownActive      = errors.New("update cooldown active")
)

// QuoteUnavailableError reports that no usable quote exists for Symbol.
// It matches ErrQuoteUnavailable, and ErrUpstreamUnavailable when Err does.
type QuoteUnavailableError struct {
	Symbol string
	Err    error
}

func (e *QuoteUnavailableError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("quote unavailable for %s", e.Symbol)
	}

	return fmt.Sprintf("quote unavailable for %s: %v", e.Symbol, e.Err)
}

func (e *QuoteUnavailableError) Is(target error) bool {
	return target == ErrQuoteUnavailable
}

func (e *QuoteUnavailableError) Unwrap() error {
	return e.Err
}

// UpstreamError is a transient failure of the quote provider. Callers may retry.
type UpstreamError struct {
	Symbol     string
	StatusCode int
	Err        error
}

func (e *UpstreamError) Error() string {
	msg := "upstream unavailable for " + e.Symbol
	if e.StatusCode != 0 {
		msg += fmt.Sprintf(" (status %d)", e.StatusCode)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}

	return msg
}

func (e *UpstreamError) Is(target error) bool {
	return target == ErrUpstreamUnavailable
}

func (e *UpstreamError) Unwrap() error {
	return e.Err
}

// CooldownError rejects a bulk refresh requested before the cooldown elapsed.
type CooldownError struct {
	Remaining time.Duration
}

func (e *CooldownError) Error() string {
	return fmt.Sprintf("%s: retry in %s", ErrCooldownActive, e.Remaining.Round(time.Second))
}

func (e *CooldownError) Is(target error) bool {
	return target == ErrCooldownActive
}

// Retryable reports whether the caller may repeat the same request later.
func Retryable(err error) bool {
	return errors.Is(err, ErrUpstreamUnavailable) || errors.Is(err, ErrCooldownActive)
}
