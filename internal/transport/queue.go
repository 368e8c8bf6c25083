package transport

import (
	"context"
	"sync"
)

// Push is one raw push message as received from the backend.
type Push struct {
	// Seq is the 1-based arrival order on this queue.
	Seq int64
	// Msg is a string for socket and NATS pushes. A host bridge may hand
	// over anything; the dispatcher rejects non-strings.
	Msg any
}

// Text returns the message as a string when it is one.
func (p Push) Text() (string, bool) {
	switch m := p.Msg.(type) {
	case string:
		return m, true
	case []byte:
		return string(m), true
	}
	return "", false
}

// Queue is an unbounded FIFO of push messages.
//
// Producers are transport reader goroutines; the consumer is the session's
// push loop. The signal channel lets the consumer wait with a context.
type Queue struct {
	mu     sync.Mutex
	items  []Push
	seq    int64
	closed bool
	signal chan struct{} // buffered, size 1
}

// NewQueue creates an empty queue.
func NewQueue() *Queue {
	return &Queue{
		items:  make([]Push, 0, 64),
		signal: make(chan struct{}, 1),
	}
}

// Enqueue appends msg. It returns false once the queue is closed.
func (q *Queue) Enqueue(msg any) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return false
	}
	q.seq++
	q.items = append(q.items, Push{Seq: q.seq, Msg: msg})

	select {
	case q.signal <- struct{}{}:
	default:
	}
	return true
}

// TryDequeue removes the front push without blocking.
func (q *Queue) TryDequeue() (Push, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.items) == 0 {
		return Push{}, false
	}
	p := q.items[0]
	q.items[0] = Push{}
	if len(q.items) == 1 {
		q.items = q.items[:0]
	} else {
		q.items = q.items[1:]
	}
	return p, true
}

// Next blocks until a push is available, the queue is closed and drained,
// or ctx is done. ok is false in the latter two cases.
func (q *Queue) Next(ctx context.Context) (p Push, ok bool, err error) {
	for {
		if p, ok := q.TryDequeue(); ok {
			return p, true, nil
		}
		q.mu.Lock()
		done := q.closed && len(q.items) == 0
		q.mu.Unlock()
		if done {
			return Push{}, false, nil
		}

		select {
		case <-ctx.Done():
			return Push{}, false, ctx.Err()
		case <-q.signal:
		}
	}
}

// Wait returns a channel that signals when pushes may be available.
func (q *Queue) Wait() <-chan struct{} {
	return q.signal
}

// LastSeq returns the sequence number of the most recently enqueued push,
// or 0 when nothing has been enqueued.
func (q *Queue) LastSeq() int64 {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.seq
}

// Len returns the number of queued pushes.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

// Closed reports whether Close has been called.
func (q *Queue) Closed() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.closed
}

// Close stops accepting pushes and wakes waiters. Queued pushes can still
// be drained.
func (q *Queue) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return
	}
	q.closed = true
	close(q.signal)
}
