package testutil

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/roach88/flowcanvas/internal/wire"
)

// Responder answers one request on behalf of a fake backend.
type Responder func(req wire.Request) wire.Response

// FakeHost is an in-memory desktop host bridge.
//
// Requests are decoded, recorded and answered by the Responder. Push hands a
// message to the registered listener, as the host does for backend events.
type FakeHost struct {
	mu        sync.Mutex
	respond   Responder
	listener  func(msg any)
	requests  []wire.Request
	callErr   error
	listenErr error
}

// NewFakeHost creates a host answering with respond. A nil respond answers
// every request with a null result.
func NewFakeHost(respond Responder) *FakeHost {
	if respond == nil {
		respond = func(req wire.Request) wire.Response {
			return wire.Response{JSONRPC: wire.JSONRPCVersion, ID: req.ID, Result: json.RawMessage("null")}
		}
	}
	return &FakeHost{respond: respond}
}

// FailCalls makes every subsequent Call fail with err.
func (h *FakeHost) FailCalls(err error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.callErr = err
}

// FailListen makes Listen fail with err.
func (h *FakeHost) FailListen(err error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.listenErr = err
}

// Call decodes request, records it and returns the serialized response.
func (h *FakeHost) Call(ctx context.Context, request string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	var req wire.Request
	if err := json.Unmarshal([]byte(request), &req); err != nil {
		return "", fmt.Errorf("fake host: decode request: %w", err)
	}

	h.mu.Lock()
	h.requests = append(h.requests, req)
	respond, callErr := h.respond, h.callErr
	h.mu.Unlock()

	if callErr != nil {
		return "", callErr
	}
	out, err := json.Marshal(respond(req))
	if err != nil {
		return "", err
	}
	return string(out), nil
}

// Listen registers the push listener.
func (h *FakeHost) Listen(fn func(msg any)) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.listenErr != nil {
		return h.listenErr
	}
	if fn == nil {
		return errors.New("fake host: nil listener")
	}
	h.listener = fn
	return nil
}

// Push delivers msg to the listener. It reports false when no listener is
// registered.
func (h *FakeHost) Push(msg any) bool {
	h.mu.Lock()
	fn := h.listener
	h.mu.Unlock()
	if fn == nil {
		return false
	}
	fn(msg)
	return true
}

// Requests returns a copy of the recorded requests.
func (h *FakeHost) Requests() []wire.Request {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]wire.Request(nil), h.requests...)
}
