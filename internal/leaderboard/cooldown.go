package leaderboard

import (
	"sync"
	"time"

	"github.com/leonid6372/stock-arena/internal/traderrs"
)

const DefaultCooldown = time.Hour

// Cooldown limits the bulk refresh to once per window. The state lives for the process lifetime.
type Cooldown struct {
	mu     sync.Mutex
	window time.Duration
	last   time.Time

	now func() time.Time
}

func NewCooldown(window time.Duration) *Cooldown {
	if window <= 0 {
		window = DefaultCooldown
	}

	return &Cooldown{
		window: window,
		now:    time.Now,
	}
}

// claim takes the current window or returns a CooldownError. The previous state is returned for restore.
func (c *Cooldown) claim() (time.Time, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	if remaining := c.remaining(now); remaining > 0 {
		return time.Time{}, &traderrs.CooldownError{Remaining: remaining}
	}

	previous := c.last
	c.last = now

	return previous, nil
}

// restore gives the window back after a refresh that produced nothing.
func (c *Cooldown) restore(previous time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.last = previous
}

// Remaining is the time until the next refresh is allowed; zero when allowed now.
func (c *Cooldown) Remaining() time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.remaining(c.now())
}

// LastRefresh is the start of the last successful refresh, zero if none yet.
func (c *Cooldown) LastRefresh() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.last
}

func (c *Cooldown) Window() time.Duration {
	return c.window
}

func (c *Cooldown) remaining(now time.Time) time.Duration {
	if c.last.IsZero() {
		return 0
	}

	return max(c.window-now.Sub(c.last), 0)
}
