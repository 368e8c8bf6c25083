package wire

import (
	"encoding/json"
	"fmt"
)

// JSONRPCVersion is the protocol version sent on every request.
const JSONRPCVersion = "2.0"

// Request is an outbound JSON-RPC call.
type Request struct {
	JSONRPC string `json:"jsonrpc"`
	ID      string `json:"id"`
	Method  string `json:"method"`
	Params  []any  `json:"params"`
}

// NewRequest builds a request with the protocol version filled in.
func NewRequest(id, method string, params ...any) Request {
	if params == nil {
		params = []any{}
	}
	return Request{JSONRPC: JSONRPCVersion, ID: id, Method: method, Params: params}
}

// Response is the reply to a Request. Exactly one of Result or Error is set.
type Response struct {
	JSONRPC string          `json:"jsonrpc,omitempty"`
	ID      string          `json:"id"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   *RPCError       `json:"error,omitempty"`
}

// Err returns the response's error object as a Go error, or nil.
func (r Response) Err() error {
	if r.Error == nil {
		return nil
	}
	return r.Error
}

// RPCError is the error object of a failed call.
type RPCError struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data,omitempty"`
}

func (e *RPCError) Error() string {
	return fmt.Sprintf("rpc error %d: %s", e.Code, e.Message)
}

// frame is the minimal shape used to tell responses from pushes.
type frame struct {
	ID        *string         `json:"id"`
	EventType *string         `json:"eventType"`
	Result    json.RawMessage `json:"result"`
	Error     *RPCError       `json:"error"`
}

// ClassifyFrame reports whether raw is a response to a request (true) or a
// push notification (false). A frame carrying an id and no eventType is a
// response.
func ClassifyFrame(raw []byte) (isResponse bool, err error) {
	var f frame
	if err := json.Unmarshal(raw, &f); err != nil {
		return false, fmt.Errorf("classify frame: %w", err)
	}
	return f.ID != nil && f.EventType == nil, nil
}
