package client

import (
	"log/slog"

	"github.com/roach88/flowcanvas/internal/canvas"
	"github.com/roach88/flowcanvas/internal/dispatch"
	"github.com/roach88/flowcanvas/internal/snapshot"
	"github.com/roach88/flowcanvas/internal/store"
)

type options struct {
	logger    *slog.Logger
	ids       IDGenerator
	journal   *store.Journal
	mount     string
	registry  *dispatch.Registry
	engine    []canvas.EngineOption
	viewport  []canvas.ViewportOption
	observers []func(*snapshot.View, snapshot.BatchResult)
	noHandler bool
}

// Option configures a Session.
type Option func(*options)

// WithLogger sets the logger shared by every component of the session.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.logger = l
		}
	}
}

// WithIDGenerator replaces the UUIDv7 request id generator.
func WithIDGenerator(g IDGenerator) Option {
	return func(o *options) {
		if g != nil {
			o.ids = g
		}
	}
}

// WithJournal records envelopes, loads and batches into j.
func WithJournal(j *store.Journal) Option {
	return func(o *options) {
		o.journal = j
	}
}

// WithMount overrides the document segment the workflow is mounted under.
func WithMount(mount string) Option {
	return func(o *options) {
		o.mount = mount
	}
}

// WithRegistry shares reg with feature modules that register their own
// handlers. The session adds its handlers to reg; handlers registered
// after New replace them.
func WithRegistry(reg *dispatch.Registry) Option {
	return func(o *options) {
		if reg != nil {
			o.registry = reg
		}
	}
}

// WithEngineOptions passes options to the interaction engine.
func WithEngineOptions(opts ...canvas.EngineOption) Option {
	return func(o *options) {
		o.engine = append(o.engine, opts...)
	}
}

// WithViewportOptions passes options to the viewport.
func WithViewportOptions(opts ...canvas.ViewportOption) Option {
	return func(o *options) {
		o.viewport = append(o.viewport, opts...)
	}
}

// WithoutNotificationHandlers skips the logging handlers for dirty-state,
// app-state, toast and update-available events.
func WithoutNotificationHandlers() Option {
	return func(o *options) {
		o.noHandler = true
	}
}

// WithBatchObserver is called after every batch the synchronizer applies,
// after the journal has recorded it.
func WithBatchObserver(fn func(*snapshot.View, snapshot.BatchResult)) Option {
	return func(o *options) {
		if fn != nil {
			o.observers = append(o.observers, fn)
		}
	}
}
