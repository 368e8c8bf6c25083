package transport

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/roach88/flowcanvas/internal/wire"
)

// Transport is the contract shared by every delivery mechanism.
type Transport interface {
	// Connect establishes the link. Pushes received from this point on are
	// queued even if nobody is draining the queue yet.
	Connect(ctx context.Context) error

	// Send performs one request/response round trip. A response carrying an
	// error object is returned as-is with a nil error; err is reserved for
	// delivery failures.
	Send(ctx context.Context, req wire.Request) (*wire.Response, error)

	// Pushes returns the inbound push queue.
	Pushes() *Queue

	// Status returns the current connectivity state.
	Status() Status

	// OnStatus registers fn for status transitions and returns a function
	// that removes it.
	OnStatus(fn StatusFunc) (cancel func())

	// WaitOnline blocks until the transport is online.
	WaitOnline(ctx context.Context) error

	// Close tears the link down and closes the push queue.
	Close() error
}

// Call sends a request and decodes its result into out. A response error
// object is returned as the error.
func Call(ctx context.Context, t Transport, req wire.Request, out any) error {
	resp, err := t.Send(ctx, req)
	if err != nil {
		return err
	}
	if err := resp.Err(); err != nil {
		return fmt.Errorf("%s: %w", req.Method, err)
	}
	if out == nil || len(resp.Result) == 0 {
		return nil
	}
	if err := json.Unmarshal(resp.Result, out); err != nil {
		return fmt.Errorf("%s: decode result: %w", req.Method, err)
	}
	return nil
}

// decodeResponse parses a response frame and checks it answers id.
func decodeResponse(data []byte, id string) (*wire.Response, error) {
	var resp wire.Response
	if err := json.Unmarshal(data, &resp); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	if id != "" && resp.ID != id {
		return nil, fmt.Errorf("response id %q does not match request %q", resp.ID, id)
	}
	return &resp, nil
}
