package app_test

import (
	"sync/atomic"
	"testing"
	"time"
)

// manualTicker lets tests drive the countdown one second at a time.
type manualTicker struct {
	ch     chan time.Time
	halted atomic.Bool
}

func newManualTicker() *manualTicker {
	return &manualTicker{ch: make(chan time.Time)}
}

func (m *manualTicker) start(time.Duration) (<-chan time.Time, func()) {
	m.halted.Store(false)
	return m.ch, func() { m.halted.Store(true) }
}

func (m *manualTicker) tick(t *testing.T) {
	t.Helper()
	select {
	case m.ch <- time.Now():
	case <-time.After(time.Second):
		t.Fatalf("ticker not being read")
	}
}

func (m *manualTicker) stopped() bool { return m.halted.Load() }
