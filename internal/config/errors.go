package config

import (
	"errors"
	"fmt"
)

// ErrorCode categorizes configuration errors.
type ErrorCode string

const (
	ErrCodeNotFound    ErrorCode = "CONFIG_NOT_FOUND"
	ErrCodeFormat      ErrorCode = "UNSUPPORTED_FORMAT"
	ErrCodeParse       ErrorCode = "PARSE_ERROR"
	ErrCodeInvalid     ErrorCode = "INVALID_VALUE"
	ErrCodeMissing     ErrorCode = "MISSING_PARAMETER"
	ErrCodeSchemaError ErrorCode = "SCHEMA_VIOLATION"
)

// ConfigError is a fatal initialization error caused by configuration.
type ConfigError struct {
	Code    ErrorCode
	Field   string
	Message string
	Err     error
}

func (e *ConfigError) Error() string {
	msg := string(e.Code)
	if e.Field != "" {
		msg += " " + e.Field
	}
	msg += ": " + e.Message
	if e.Err != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

func (e *ConfigError) Unwrap() error {
	return e.Err
}

// IsConfigError reports whether err is a ConfigError.
func IsConfigError(err error) bool {
	var ce *ConfigError
	return errors.As(err, &ce)
}

// IsMissing reports whether err reports a missing required parameter.
func IsMissing(err error) bool {
	var ce *ConfigError
	if errors.As(err, &ce) {
		return ce.Code == ErrCodeMissing
	}
	return false
}
