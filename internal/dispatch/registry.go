package dispatch

import (
	"context"
	"encoding/json"
	"sort"
	"sync"
)

// Event is what a handler receives.
type Event struct {
	Name       string
	Kind       EventKind
	Payload    json.RawMessage
	SnapshotID string

	// Composite is set only for the CompositeEvent handler.
	Composite *CompositeArgs
}

// CompositeArgs carries the sub-events of a composite envelope together with
// the registry so the composite handler can re-dispatch each one.
type CompositeArgs struct {
	Events   []string
	Params   []json.RawMessage
	Handlers *Registry
}

// Handler processes one event.
type Handler func(ctx context.Context, ev Event) error

// Registry maps event names to handlers. Registration is append-only for the
// lifetime of the registry and the last registration for a name wins.
//
// Thread-safety: Register and Lookup are safe for concurrent use.
type Registry struct {
	mu       sync.RWMutex
	handlers map[string]Handler
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{handlers: make(map[string]Handler)}
}

// Register binds h to name, replacing any earlier binding.
// Registering a nil handler is allowed but the name then counts as not
// callable and envelopes addressed to it are rejected.
func (r *Registry) Register(name string, h Handler) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.handlers[name] = h
}

// RegisterKind binds h to the wire name of a known kind.
func (r *Registry) RegisterKind(k EventKind, h Handler) {
	r.Register(k.String(), h)
}

// Lookup returns the callable handler for name.
func (r *Registry) Lookup(name string) (Handler, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	h, ok := r.handlers[name]
	if !ok || h == nil {
		return nil, false
	}
	return h, true
}

// LookupKind returns the callable handler for a known kind.
func (r *Registry) LookupKind(k EventKind) (Handler, bool) {
	if k == KindUnknown {
		return nil, false
	}
	return r.Lookup(k.String())
}

// Names lists registered names in sorted order, including nil bindings.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.handlers))
	for name := range r.handlers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
