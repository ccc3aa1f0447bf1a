package trading

import "time"

const (
	EventTradeExecuted   = "trade_executed"
	EventQuotesRefreshed = "quotes_refreshed"
)

type Event struct {
	Type    string    `json:"type"`
	Payload any       `json:"payload"`
	At      time.Time `json:"at"`
}

// Publisher receives events after state changes. Publish must not block.
type Publisher interface {
	Publish(event Event)
}

type nopPublisher struct{}

func (nopPublisher) Publish(Event) {}
