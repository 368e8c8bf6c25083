package dispatch

import (
	"errors"
	"fmt"
)

// EnvelopeErrorCode categorizes envelope validation failures.
type EnvelopeErrorCode string

const (
	// ErrCodeNotString indicates the push message was not a string.
	ErrCodeNotString EnvelopeErrorCode = "NOT_A_STRING"

	// ErrCodeMalformed indicates the message is not a valid envelope.
	ErrCodeMalformed EnvelopeErrorCode = "MALFORMED_ENVELOPE"

	// ErrCodeUnregistered indicates a referenced handler is missing or not callable.
	ErrCodeUnregistered EnvelopeErrorCode = "UNREGISTERED_HANDLER"

	// ErrCodeCompositeMismatch indicates the composite payload does not match its eventType.
	ErrCodeCompositeMismatch EnvelopeErrorCode = "COMPOSITE_MISMATCH"
)

// EnvelopeError is returned when an envelope is rejected before dispatch.
// No handler has run when this error is returned.
type EnvelopeError struct {
	Code      EnvelopeErrorCode
	Message   string
	EventType string
	Err       error
}

func (e *EnvelopeError) Error() string {
	msg := fmt.Sprintf("%s: %s", e.Code, e.Message)
	if e.EventType != "" {
		msg = fmt.Sprintf("%s (event_type=%s)", msg, e.EventType)
	}
	if e.Err != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

func (e *EnvelopeError) Unwrap() error {
	return e.Err
}

// IsEnvelopeError reports whether err is an envelope validation error.
func IsEnvelopeError(err error) bool {
	var ee *EnvelopeError
	return errors.As(err, &ee)
}

// IsUnregistered reports whether err rejects an envelope for a missing handler.
func IsUnregistered(err error) bool {
	var ee *EnvelopeError
	if errors.As(err, &ee) {
		return ee.Code == ErrCodeUnregistered
	}
	return false
}

// HandlerError describes a handler that returned an error or panicked.
type HandlerError struct {
	Name  string
	Err   error
	Panic any
}

func (e *HandlerError) Error() string {
	if e.Panic != nil {
		return fmt.Sprintf("handler %s panicked: %v", e.Name, e.Panic)
	}
	return fmt.Sprintf("handler %s failed: %v", e.Name, e.Err)
}

func (e *HandlerError) Unwrap() error {
	return e.Err
}
