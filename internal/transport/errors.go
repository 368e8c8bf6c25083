package transport

import (
	"errors"
	"fmt"
)

var (
	// ErrHostUnavailable means the desktop host call surface is missing.
	// The application cannot start without it.
	ErrHostUnavailable = errors.New("host bridge unavailable")

	// ErrOffline is returned for requests made while the link is down.
	ErrOffline = errors.New("transport offline")

	// ErrConnectionLost fails requests that were in flight when the link dropped.
	ErrConnectionLost = errors.New("connection lost")

	// ErrClosed is returned after Close.
	ErrClosed = errors.New("transport closed")
)

// InitErrorCode categorizes fatal initialization failures.
type InitErrorCode string

const (
	ErrCodeHostUnavailable  InitErrorCode = "HOST_UNAVAILABLE"
	ErrCodeMissingParameter InitErrorCode = "MISSING_PARAMETER"
	ErrCodeUnknownKind      InitErrorCode = "UNKNOWN_TRANSPORT"
)

// InitError is a fatal initialization error: the transport cannot be
// constructed or reached at startup.
type InitError struct {
	Code    InitErrorCode
	Message string
	Err     error
}

func (e *InitError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *InitError) Unwrap() error {
	return e.Err
}

// IsFatal reports whether err is a fatal initialization error.
func IsFatal(err error) bool {
	var ie *InitError
	return errors.As(err, &ie)
}

// IsConnectivity reports whether err was caused by the link being down
// rather than by the backend rejecting a request.
func IsConnectivity(err error) bool {
	return errors.Is(err, ErrOffline) || errors.Is(err, ErrConnectionLost)
}
