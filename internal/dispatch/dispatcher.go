package dispatch

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"slices"
	"strings"

	"github.com/roach88/flowcanvas/internal/wire"
)

// Dispatcher decodes raw push messages and invokes handlers from a Registry.
type Dispatcher struct {
	registry *Registry
	logger   *slog.Logger
}

// Option configures a Dispatcher.
type Option func(*Dispatcher)

// WithLogger sets the logger used for rejected envelopes and handler failures.
func WithLogger(l *slog.Logger) Option {
	return func(d *Dispatcher) {
		if l != nil {
			d.logger = l
		}
	}
}

// New creates a Dispatcher reading handlers from reg.
func New(reg *Registry, opts ...Option) *Dispatcher {
	d := &Dispatcher{
		registry: reg,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Registry returns the registry shared with feature modules.
func (d *Dispatcher) Registry() *Registry {
	return d.registry
}

// HandleMessage accepts a message of unknown type from a host bridge.
// Anything but a string or byte slice is rejected.
func (d *Dispatcher) HandleMessage(ctx context.Context, msg any) error {
	switch m := msg.(type) {
	case string:
		return d.Handle(ctx, m)
	case []byte:
		return d.Handle(ctx, string(m))
	default:
		err := &EnvelopeError{
			Code:    ErrCodeNotString,
			Message: fmt.Sprintf("push message has type %T", msg),
		}
		d.logger.Error("envelope rejected", "error", err)
		return err
	}
}

// Handle decodes raw, validates it and invokes the resolved handler.
//
// Validation failures are logged and returned; in that case no handler has
// run. Handler failures are logged and not returned.
func (d *Dispatcher) Handle(ctx context.Context, raw string) error {
	ev, err := d.resolve(raw)
	if err != nil {
		d.logger.Error("envelope rejected", "error", err)
		return err
	}
	d.invoke(ctx, ev)
	return nil
}

// resolve turns raw into the Event for the top-level handler, checking that
// every handler involved is registered.
func (d *Dispatcher) resolve(raw string) (Event, error) {
	var env wire.Envelope
	if err := json.Unmarshal([]byte(raw), &env); err != nil {
		return Event{}, &EnvelopeError{Code: ErrCodeMalformed, Message: "invalid JSON", Err: err}
	}
	if strings.TrimSpace(env.EventType) == "" {
		return Event{}, &EnvelopeError{Code: ErrCodeMalformed, Message: "eventType is required"}
	}

	if !strings.Contains(env.EventType, CompositeSeparator) {
		if _, ok := d.registry.Lookup(env.EventType); !ok {
			return Event{}, &EnvelopeError{
				Code:      ErrCodeUnregistered,
				Message:   "no handler registered",
				EventType: env.EventType,
			}
		}
		return Event{
			Name:       env.EventType,
			Kind:       ParseKind(env.EventType),
			Payload:    env.Payload,
			SnapshotID: env.SnapshotID,
		}, nil
	}

	names := strings.Split(env.EventType, CompositeSeparator)
	required := append([]string{NameComposite}, names...)
	for _, name := range required {
		if name == "" {
			return Event{}, &EnvelopeError{
				Code:      ErrCodeMalformed,
				Message:   "empty sub-event name",
				EventType: env.EventType,
			}
		}
		if _, ok := d.registry.Lookup(name); !ok {
			return Event{}, &EnvelopeError{
				Code:      ErrCodeUnregistered,
				Message:   fmt.Sprintf("no handler registered for %q", name),
				EventType: env.EventType,
			}
		}
	}

	var payload wire.CompositePayload
	if err := json.Unmarshal(env.Payload, &payload); err != nil {
		return Event{}, &EnvelopeError{
			Code:      ErrCodeMalformed,
			Message:   "invalid composite payload",
			EventType: env.EventType,
			Err:       err,
		}
	}
	if len(payload.Events) != len(payload.Params) {
		return Event{}, &EnvelopeError{
			Code:      ErrCodeCompositeMismatch,
			Message:   fmt.Sprintf("%d events but %d params", len(payload.Events), len(payload.Params)),
			EventType: env.EventType,
		}
	}
	if !slices.Equal(payload.Events, names) {
		return Event{}, &EnvelopeError{
			Code:      ErrCodeCompositeMismatch,
			Message:   fmt.Sprintf("payload events %v do not match eventType", payload.Events),
			EventType: env.EventType,
		}
	}

	return Event{
		Name:       NameComposite,
		Kind:       KindComposite,
		Payload:    env.Payload,
		SnapshotID: env.SnapshotID,
		Composite: &CompositeArgs{
			Events:   payload.Events,
			Params:   payload.Params,
			Handlers: d.registry,
		},
	}, nil
}

// invoke runs the handler for ev, isolating errors and panics.
func (d *Dispatcher) invoke(ctx context.Context, ev Event) {
	h, ok := d.registry.Lookup(ev.Name)
	if !ok {
		// Checked during resolve; only reachable from a composite handler
		// whose registry changed underneath it.
		d.logger.Error("handler disappeared", "event_type", ev.Name)
		return
	}
	if err := safeCall(ctx, h, ev); err != nil {
		d.logger.Error("handler failed", "event_type", ev.Name, "error", err)
	}
}

func safeCall(ctx context.Context, h Handler, ev Event) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = &HandlerError{Name: ev.Name, Panic: r}
		}
	}()
	if hErr := h(ctx, ev); hErr != nil {
		return &HandlerError{Name: ev.Name, Err: hErr}
	}
	return nil
}

// CompositeHandler returns the handler to register under NameComposite.
// It re-dispatches every sub-event in order through the same per-event path
// as simple envelopes, so a failing sub-handler does not stop later ones.
//
// The envelope snapshot id travels with the last workflow change only, so
// the token advances once, after every patch of the composite is applied.
func (d *Dispatcher) CompositeHandler() Handler {
	return func(ctx context.Context, ev Event) error {
		if ev.Composite == nil {
			return fmt.Errorf("composite handler called without sub-events")
		}
		last := -1
		for i, name := range ev.Composite.Events {
			if ParseKind(name) == KindWorkflowChanged {
				last = i
			}
		}
		for i, name := range ev.Composite.Events {
			sub := Event{
				Name:    name,
				Kind:    ParseKind(name),
				Payload: ev.Composite.Params[i],
			}
			if i == last {
				sub.SnapshotID = ev.SnapshotID
			}
			d.invoke(ctx, sub)
		}
		return nil
	}
}
