package format

import (
	"fmt"
	"strings"

	"github.com/Rhymond/go-money"
	"github.com/leonid6372/stock-arena/pkg/log"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// PrettyNumber groups the integer part by thousands: PrettyNumber(1234567.5, " ", ",") == "1 234 567,50".
// Floats and decimals are printed with two decimals.
func PrettyNumber(number any, separator, decimalSeparator string) string {
	var numStr string

	switch v := number.(type) {
	case int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64:
		numStr = fmt.Sprintf("%d", v)
	case float32, float64:
		numStr = fmt.Sprintf("%.2f", v)
	case decimal.Decimal:
		numStr = v.StringFixed(2)
	case *decimal.Decimal:
		if v == nil {
			return ""
		}
		numStr = v.StringFixed(2)
	default:
		log.Error("PrettyNumber: unsupported type",
			zap.Any("value", number),
			zap.String("type", fmt.Sprintf("%T", number)),
		)

		return fmt.Sprint(number)
	}

	if separator == "" && decimalSeparator == "" {
		return numStr
	}

	if separator == decimalSeparator {
		log.Warn("PrettyNumber: separator and decimalSeparator are the same", zap.String("value", separator))
	}

	isNegative := strings.HasPrefix(numStr, "-")
	numStr = strings.TrimPrefix(numStr, "-")

	integerPart, fraction, hasFraction := strings.Cut(numStr, ".")

	decimalPart := ""
	if hasFraction {
		if decimalSeparator == "" {
			decimalSeparator = "."
		}
		decimalPart = decimalSeparator + fraction
	}

	length := len(integerPart)

	start := length % 3
	if start == 0 {
		start = 3
	}

	var intPart strings.Builder

	if isNegative {
		intPart.WriteString("-")
	}

	intPart.WriteString(integerPart[:start])

	for i := start; i < length; i += 3 {
		intPart.WriteString(separator)
		intPart.WriteString(integerPart[i : i+3])
	}

	return intPart.String() + decimalPart
}

// Money renders a dollar amount rounded to cents: "$1,234.50".
func Money(amount decimal.Decimal) string {
	cents := amount.Shift(2).Round(0).IntPart()

	return money.New(cents, money.USD).Display()
}

// Percent renders a signed percentage with two decimals: "+4.20%".
func Percent(value decimal.Decimal) string {
	sign := ""
	if value.IsPositive() {
		sign = "+"
	}

	return sign + value.StringFixed(2) + "%"
}
