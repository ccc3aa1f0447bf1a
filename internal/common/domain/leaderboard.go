package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

type LeaderboardEntry struct {
	AccountID      string          `json:"account_id"`
	DisplayName    string          `json:"display_name"`
	Cash           decimal.Decimal `json:"cash"`
	PortfolioValue decimal.Decimal `json:"portfolio_value"`
	NetWorth       decimal.Decimal `json:"net_worth"`
	Rank           int             `json:"rank"`

	UpdatedAt time.Time `json:"updated_at"`
}
