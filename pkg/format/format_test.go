package format

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

func TestPrettyNumber(t *testing.T) {
	tests := []struct {
		name   string
		number any
		want   string
	}{
		{"small int", 12, "12"},
		{"thousands", 1234567, "1 234 567"},
		{"negative", -1234, "-1 234"},
		{"float", 1234.5, "1 234,50"},
		{"decimal", decimal.RequireFromString("10000"), "10 000,00"},
		{"exact group", 123456, "123 456"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.want, PrettyNumber(tt.number, " ", ","))
		})
	}
}

func TestPrettyNumberNoSeparators(t *testing.T) {
	require.Equal(t, "1234.50", PrettyNumber(1234.5, "", ""))
}

func TestMoney(t *testing.T) {
	require.Equal(t, "$8,550.00", Money(decimal.NewFromInt(8550)))
	require.Equal(t, "-$12.30", Money(decimal.RequireFromString("-12.3")))
}

func TestPercent(t *testing.T) {
	require.Equal(t, "+4.20%", Percent(decimal.RequireFromString("4.2")))
	require.Equal(t, "-1.00%", Percent(decimal.NewFromInt(-1)))
	require.Equal(t, "0.00%", Percent(decimal.Zero))
}
