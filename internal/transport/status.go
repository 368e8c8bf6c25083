package transport

import (
	"context"
	"fmt"
	"sync"
)

// Status is the connectivity state of a transport.
type Status int

const (
	StatusDisconnected Status = iota
	StatusConnecting
	StatusOnline
	// StatusReconnecting means the link was lost and is being restored.
	// New commands block until the transport is online again.
	StatusReconnecting
	StatusClosed
)

func (s Status) String() string {
	switch s {
	case StatusDisconnected:
		return "disconnected"
	case StatusConnecting:
		return "connecting"
	case StatusOnline:
		return "online"
	case StatusReconnecting:
		return "reconnecting"
	case StatusClosed:
		return "closed"
	}
	return fmt.Sprintf("status(%d)", int(s))
}

// StatusFunc observes status transitions.
type StatusFunc func(Status)

// statusTracker holds the current status and notifies watchers of changes.
type statusTracker struct {
	mu       sync.Mutex
	current  Status
	changed  chan struct{} // closed and replaced on every transition
	watchers map[int]StatusFunc
	nextID   int
}

func newStatusTracker() *statusTracker {
	return &statusTracker{
		changed:  make(chan struct{}),
		watchers: make(map[int]StatusFunc),
	}
}

func (t *statusTracker) get() Status {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.current
}

// set records s and reports whether it differs from the previous status.
// Watchers are called outside the lock.
func (t *statusTracker) set(s Status) bool {
	t.mu.Lock()
	if t.current == s {
		t.mu.Unlock()
		return false
	}
	t.current = s
	close(t.changed)
	t.changed = make(chan struct{})
	watchers := make([]StatusFunc, 0, len(t.watchers))
	for _, fn := range t.watchers {
		watchers = append(watchers, fn)
	}
	t.mu.Unlock()

	for _, fn := range watchers {
		fn(s)
	}
	return true
}

func (t *statusTracker) subscribe(fn StatusFunc) func() {
	t.mu.Lock()
	defer t.mu.Unlock()
	id := t.nextID
	t.nextID++
	t.watchers[id] = fn
	return func() {
		t.mu.Lock()
		defer t.mu.Unlock()
		delete(t.watchers, id)
	}
}

// waitOnline blocks until the status is online. It fails with ErrClosed if
// the transport closes first.
func (t *statusTracker) waitOnline(ctx context.Context) error {
	for {
		t.mu.Lock()
		cur, ch := t.current, t.changed
		t.mu.Unlock()

		switch cur {
		case StatusOnline:
			return nil
		case StatusClosed:
			return ErrClosed
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ch:
		}
	}
}
