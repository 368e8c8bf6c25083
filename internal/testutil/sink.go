package testutil

import (
	"context"
	"sync"

	"github.com/roach88/flowcanvas/internal/wire"
)

// RecordingSink records workflow commands instead of sending them.
type RecordingSink struct {
	mu       sync.Mutex
	commands []wire.Command
	err      error
}

// NewRecordingSink creates an empty sink.
func NewRecordingSink() *RecordingSink {
	return &RecordingSink{}
}

// FailWith makes Execute return err after recording.
func (s *RecordingSink) FailWith(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.err = err
}

// Execute records cmd.
func (s *RecordingSink) Execute(_ context.Context, cmd wire.Command) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.commands = append(s.commands, cmd)
	return s.err
}

// Commands returns a copy of the recorded commands.
func (s *RecordingSink) Commands() []wire.Command {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]wire.Command(nil), s.commands...)
}
