package pipeline

import "time"

// Ticker delivers ticks on C until stopped.
type Ticker interface {
	C() <-chan time.Time
	Stop()
}

// TimeProvider supplies the clock and frame tickers so tests can drive the
// render loop without waiting on the wall clock.
type TimeProvider interface {
	// Now returns the current time.
	Now() time.Time
	// NewTicker creates a ticker that fires every d.
	NewTicker(d time.Duration) Ticker
}

// RealTimeProvider implements TimeProvider using the system clock.
type RealTimeProvider struct{}

// Now returns the current system time.
func (RealTimeProvider) Now() time.Time {
	return time.Now()
}

// NewTicker wraps a time.Ticker.
func (RealTimeProvider) NewTicker(d time.Duration) Ticker {
	return systemTicker{time.NewTicker(d)}
}

type systemTicker struct {
	t *time.Ticker
}

func (s systemTicker) C() <-chan time.Time { return s.t.C }
func (s systemTicker) Stop()               { s.t.Stop() }
