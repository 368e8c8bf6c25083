package transport

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/nats-io/nats.go"

	"github.com/roach88/flowcanvas/internal/wire"
)

// Default NATS subjects.
const (
	DefaultRequestSubject = "workflow.rpc"
	DefaultPushSubject    = "workflow.events"
)

// NATS carries JSON-RPC requests over NATS request/reply and receives pushes
// on a subject. Reconnects are handled by the NATS client; its disconnect and
// reconnect callbacks drive the status.
type NATS struct {
	url            string
	requestSubject string
	pushSubject    string
	backoff        Backoff
	extra          []nats.Option
	logger         *slog.Logger

	queue  *Queue
	status *statusTracker

	mu  sync.Mutex
	nc  *nats.Conn
	sub *nats.Subscription
}

// NATSOption configures a NATS transport.
type NATSOption func(*NATS)

// WithSubjects sets the request and push subjects.
func WithSubjects(request, push string) NATSOption {
	return func(n *NATS) {
		if request != "" {
			n.requestSubject = request
		}
		if push != "" {
			n.pushSubject = push
		}
	}
}

// WithNATSBackoff sets the reconnect wait.
func WithNATSBackoff(b Backoff) NATSOption {
	return func(n *NATS) { n.backoff = b }
}

// WithNATSOptions passes extra options to nats.Connect.
func WithNATSOptions(opts ...nats.Option) NATSOption {
	return func(n *NATS) { n.extra = append(n.extra, opts...) }
}

// WithNATSLogger sets the logger.
func WithNATSLogger(l *slog.Logger) NATSOption {
	return func(n *NATS) {
		if l != nil {
			n.logger = l
		}
	}
}

// NewNATS creates a NATS transport. An empty url is a fatal initialization
// error.
func NewNATS(url string, opts ...NATSOption) (*NATS, error) {
	if url == "" {
		return nil, &InitError{Code: ErrCodeMissingParameter, Message: "nats url is required"}
	}
	n := &NATS{
		url:            url,
		requestSubject: DefaultRequestSubject,
		pushSubject:    DefaultPushSubject,
		backoff:        Backoff{Initial: DefaultInitialDelay, Max: DefaultMaxDelay},
		logger:         slog.Default(),
		queue:          NewQueue(),
		status:         newStatusTracker(),
	}
	for _, opt := range opts {
		opt(n)
	}
	return n, nil
}

// Connect opens the NATS connection and subscribes to the push subject.
func (n *NATS) Connect(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	n.status.set(StatusConnecting)

	wait := n.backoff.Initial
	if wait <= 0 {
		wait = DefaultInitialDelay
	}
	opts := []nats.Option{
		nats.Name("flowcanvas"),
		nats.ReconnectWait(wait),
		nats.MaxReconnects(-1),
		nats.DisconnectErrHandler(func(c *nats.Conn, err error) {
			if c.IsClosed() {
				return
			}
			n.logger.Warn("nats disconnected", "error", err)
			n.status.set(StatusReconnecting)
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			n.logger.Info("nats reconnected", "url", nc.ConnectedUrl())
			n.status.set(StatusOnline)
		}),
		nats.ClosedHandler(func(_ *nats.Conn) {
			n.status.set(StatusClosed)
		}),
	}
	opts = append(opts, n.extra...)

	nc, err := nats.Connect(n.url, opts...)
	if err != nil {
		n.status.set(StatusDisconnected)
		return fmt.Errorf("connect %s: %w", n.url, err)
	}
	sub, err := nc.Subscribe(n.pushSubject, func(msg *nats.Msg) {
		n.queue.Enqueue(string(msg.Data))
	})
	if err == nil {
		// The server has registered the subscription once the flush returns.
		err = nc.Flush()
	}
	if err != nil {
		nc.Close()
		n.status.set(StatusDisconnected)
		return fmt.Errorf("subscribe %s: %w", n.pushSubject, err)
	}

	n.mu.Lock()
	n.nc, n.sub = nc, sub
	n.mu.Unlock()

	n.status.set(StatusOnline)
	n.logger.Info("nats connected", "url", nc.ConnectedUrl(), "push_subject", n.pushSubject)
	return nil
}

// Send performs a request/reply round trip on the request subject.
func (n *NATS) Send(ctx context.Context, req wire.Request) (*wire.Response, error) {
	n.mu.Lock()
	nc := n.nc
	n.mu.Unlock()

	switch n.status.get() {
	case StatusClosed:
		return nil, ErrClosed
	case StatusOnline:
	default:
		return nil, ErrOffline
	}
	if nc == nil {
		return nil, ErrOffline
	}

	data, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("encode request: %w", err)
	}
	msg, err := nc.RequestWithContext(ctx, n.requestSubject, data)
	if err != nil {
		switch {
		case errors.Is(err, nats.ErrConnectionClosed):
			return nil, ErrClosed
		case errors.Is(err, nats.ErrConnectionReconnecting), errors.Is(err, nats.ErrDisconnected):
			return nil, fmt.Errorf("%w: %v", ErrConnectionLost, err)
		}
		return nil, fmt.Errorf("request %s: %w", req.Method, err)
	}
	return decodeResponse(msg.Data, req.ID)
}

// Pushes returns the push queue.
func (n *NATS) Pushes() *Queue { return n.queue }

// Status returns the connectivity state.
func (n *NATS) Status() Status { return n.status.get() }

// OnStatus registers a status observer.
func (n *NATS) OnStatus(fn StatusFunc) func() { return n.status.subscribe(fn) }

// WaitOnline blocks until the connection is up.
func (n *NATS) WaitOnline(ctx context.Context) error { return n.status.waitOnline(ctx) }

// Close drains the push subscription and closes the connection.
func (n *NATS) Close() error {
	n.mu.Lock()
	nc, sub := n.nc, n.sub
	n.nc, n.sub = nil, nil
	n.mu.Unlock()

	if sub != nil {
		_ = sub.Unsubscribe()
	}
	if nc != nil {
		nc.Close()
	}
	n.status.set(StatusClosed)
	n.queue.Close()
	return nil
}

var _ Transport = (*NATS)(nil)
