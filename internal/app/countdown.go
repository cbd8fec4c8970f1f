package app

import "time"

// Countdown tracks remaining session time in whole seconds.
// It reports expiry exactly once.
type Countdown struct {
	remaining int
	expired   bool
}

func NewCountdown(seconds int) Countdown {
	if seconds < 0 {
		seconds = 0
	}
	return Countdown{remaining: seconds}
}

// Tick decrements by one second, clamped at zero. It returns true only on the tick
// that reaches zero.
func (c *Countdown) Tick() bool {
	if c.expired {
		return false
	}
	if c.remaining > 0 {
		c.remaining--
	}
	if c.remaining == 0 {
		c.expired = true
		return true
	}
	return false
}

// Expire forces the countdown to zero. It returns true if this call caused expiry.
func (c *Countdown) Expire() bool {
	if c.expired {
		return false
	}
	c.remaining = 0
	c.expired = true
	return true
}

func (c Countdown) Remaining() int { return c.remaining }

func (c Countdown) Expired() bool { return c.expired }

// TickerFunc starts a periodic tick source and returns its channel and a stop func.
type TickerFunc func(every time.Duration) (<-chan time.Time, func())

// RealTicker backs TickerFunc with time.Ticker.
func RealTicker(every time.Duration) (<-chan time.Time, func()) {
	t := time.NewTicker(every)
	return t.C, t.Stop
}
