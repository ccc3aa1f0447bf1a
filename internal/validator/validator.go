// Package validator guards every mutating entry point of the ledger.
// All checks are pure functions of the proposed trade and the current state.
package validator

import (
	"math"
	"regexp"
	"strings"

	"github.com/leonid6372/stock-arena/internal/common/domain"
	"github.com/leonid6372/stock-arena/internal/traderrs"
	"github.com/shopspring/decimal"
)

var symbolRE = regexp.MustCompile(`^[A-Z][A-Z0-9.\-]{0,9}$`)

var maxQuantity = decimal.NewFromInt(math.MaxInt64)

// NormalizeSymbol trims and upper-cases a ticker.
func NormalizeSymbol(symbol string) (string, error) {
	symbol = strings.ToUpper(strings.TrimSpace(symbol))
	if !symbolRE.MatchString(symbol) {
		return "", traderrs.ErrInvalidSymbol
	}

	return symbol, nil
}

// ParseQuantity converts a user supplied quantity into a share count.
func ParseQuantity(quantity decimal.Decimal) (int64, error) {
	if !quantity.IsInteger() || !quantity.IsPositive() || quantity.GreaterThan(maxQuantity) {
		return 0, traderrs.ErrInvalidQuantity
	}

	return quantity.IntPart(), nil
}

// Validate checks the shape of a trade: a positive quantity and a sane positive price.
func Validate(quantity int64, price decimal.Decimal) error {
	if quantity <= 0 {
		return traderrs.ErrInvalidQuantity
	}

	return ValidatePrice(price)
}

func ValidatePrice(price decimal.Decimal) error {
	if !price.IsPositive() {
		return traderrs.ErrInvalidPrice
	}

	if price.GreaterThan(domain.MaxPricePerShare) {
		return traderrs.ErrPriceTooHigh
	}

	return nil
}

// ValidateFloatPrice converts an upstream float price, rejecting NaN and infinities.
func ValidateFloatPrice(price float64) (decimal.Decimal, error) {
	if math.IsNaN(price) || math.IsInf(price, 0) {
		return decimal.Zero, traderrs.ErrInvalidPrice
	}

	value := decimal.NewFromFloat(price).Round(domain.PriceScale)
	if err := ValidatePrice(value); err != nil {
		return decimal.Zero, err
	}

	return value, nil
}

// CheckBuy rejects a purchase costing more than cash.
func CheckBuy(cash decimal.Decimal, quantity int64, price decimal.Decimal) error {
	if err := Validate(quantity, price); err != nil {
		return err
	}

	if Total(quantity, price).GreaterThan(cash) {
		return traderrs.ErrInsufficientFunds
	}

	return nil
}

// CheckSell rejects a sale of more shares than held.
func CheckSell(held, quantity int64, price decimal.Decimal) error {
	if err := Validate(quantity, price); err != nil {
		return err
	}

	if quantity > held {
		return traderrs.ErrInsufficientShares
	}

	return nil
}

func Total(quantity int64, price decimal.Decimal) decimal.Decimal {
	return price.Mul(decimal.NewFromInt(quantity))
}
