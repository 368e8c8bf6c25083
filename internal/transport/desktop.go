package transport

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"

	"github.com/roach88/flowcanvas/internal/wire"
)

// HostBridge is the call surface an embedding desktop host exposes.
type HostBridge interface {
	// Call performs a synchronous JSON-RPC round trip with a serialized
	// request and returns the serialized response.
	Call(ctx context.Context, request string) (string, error)

	// Listen registers the single listener for push messages.
	Listen(fn func(msg any)) error
}

// Desktop is the in-process transport backed by a HostBridge.
type Desktop struct {
	host   HostBridge
	queue  *Queue
	status *statusTracker
	logger *slog.Logger

	once sync.Once
}

// DesktopOption configures a Desktop transport.
type DesktopOption func(*Desktop)

// WithDesktopLogger sets the logger.
func WithDesktopLogger(l *slog.Logger) DesktopOption {
	return func(d *Desktop) {
		if l != nil {
			d.logger = l
		}
	}
}

// NewDesktop creates a desktop transport. host may be nil; Connect then
// fails with a fatal InitError.
func NewDesktop(host HostBridge, opts ...DesktopOption) *Desktop {
	d := &Desktop{
		host:   host,
		queue:  NewQueue(),
		status: newStatusTracker(),
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Connect registers the push listener with the host.
func (d *Desktop) Connect(ctx context.Context) error {
	if d.host == nil {
		return &InitError{
			Code:    ErrCodeHostUnavailable,
			Message: "no host call surface",
			Err:     ErrHostUnavailable,
		}
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	d.status.set(StatusConnecting)
	if err := d.host.Listen(d.onPush); err != nil {
		d.status.set(StatusDisconnected)
		return &InitError{
			Code:    ErrCodeHostUnavailable,
			Message: "register push listener",
			Err:     fmt.Errorf("%w: %v", ErrHostUnavailable, err),
		}
	}
	d.status.set(StatusOnline)
	d.logger.Info("desktop transport connected")
	return nil
}

func (d *Desktop) onPush(msg any) {
	if !d.queue.Enqueue(msg) {
		d.logger.Debug("push dropped after close")
	}
}

// Send serializes req and performs the host call.
func (d *Desktop) Send(ctx context.Context, req wire.Request) (*wire.Response, error) {
	switch d.status.get() {
	case StatusClosed:
		return nil, ErrClosed
	case StatusOnline:
	default:
		return nil, ErrOffline
	}

	data, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("encode request: %w", err)
	}
	out, err := d.host.Call(ctx, string(data))
	if err != nil {
		return nil, fmt.Errorf("host call %s: %w", req.Method, err)
	}
	return decodeResponse([]byte(out), req.ID)
}

// Pushes returns the push queue.
func (d *Desktop) Pushes() *Queue { return d.queue }

// Status returns the connectivity state.
func (d *Desktop) Status() Status { return d.status.get() }

// OnStatus registers a status observer.
func (d *Desktop) OnStatus(fn StatusFunc) func() { return d.status.subscribe(fn) }

// WaitOnline blocks until Connect has succeeded.
func (d *Desktop) WaitOnline(ctx context.Context) error { return d.status.waitOnline(ctx) }

// Close closes the push queue. The host listener stays registered; pushes
// delivered afterwards are dropped.
func (d *Desktop) Close() error {
	d.once.Do(func() {
		d.status.set(StatusClosed)
		d.queue.Close()
	})
	return nil
}

var _ Transport = (*Desktop)(nil)
