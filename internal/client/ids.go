package client

import "github.com/google/uuid"

// IDGenerator produces JSON-RPC request ids.
type IDGenerator interface {
	Generate() string
}

// UUIDv7Generator generates time-sortable request ids.
//
// Safe for concurrent use.
type UUIDv7Generator struct{}

// Generate returns a new hyphenated UUIDv7.
func (UUIDv7Generator) Generate() string {
	return uuid.Must(uuid.NewV7()).String()
}
