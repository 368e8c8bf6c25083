package store

import "sync/atomic"

// Clock is the monotonic logical clock that stamps journal records.
//
// Envelopes, snapshots and batches share one clock so their relative order
// survives in the database independent of wall time.
//
// Thread-safety: Clock is safe for concurrent use (atomic operations).
// In practice only the session's push loop calls Next.
type Clock struct {
	seq atomic.Int64
}

// NewClock creates a new clock starting at 0.
func NewClock() *Clock {
	return &Clock{}
}

// NewClockAt creates a clock whose next value is start+1.
// Used when reopening a journal to continue after the last record.
func NewClockAt(start int64) *Clock {
	c := &Clock{}
	c.seq.Store(start)
	return c
}

// Next returns the next sequence number.
func (c *Clock) Next() int64 {
	return c.seq.Add(1)
}

// Current returns the last issued sequence number.
func (c *Clock) Current() int64 {
	return c.seq.Load()
}
