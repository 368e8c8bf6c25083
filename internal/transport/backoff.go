package transport

import "time"

// Default reconnect delays.
const (
	DefaultInitialDelay = 250 * time.Millisecond
	DefaultMaxDelay     = 10 * time.Second
)

// Backoff computes exponential reconnect delays.
type Backoff struct {
	Initial time.Duration
	Max     time.Duration
}

// Delay returns the wait before the given 1-based attempt.
func (b Backoff) Delay(attempt int) time.Duration {
	initial, max := b.Initial, b.Max
	if initial <= 0 {
		initial = DefaultInitialDelay
	}
	if max < initial {
		max = initial
	}
	d := initial
	for i := 1; i < attempt; i++ {
		d *= 2
		if d >= max {
			return max
		}
	}
	return d
}
