package canvas

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/roach88/flowcanvas/internal/wire"
)

// Defaults for Config.
const (
	DefaultGridSize           = 5
	DefaultNodeSize           = 32
	DefaultPortHoverTolerance = 10
	DefaultPortSpacing        = 11
)

// Config holds interaction geometry.
type Config struct {
	Grid               Grid
	NodeSize           float64
	PortHoverTolerance float64
	Layout             PortLayout
	Compatible         Compatibility
}

// DefaultConfig returns the built-in geometry.
func DefaultConfig() Config {
	return Config{
		Grid:               Grid{X: DefaultGridSize, Y: DefaultGridSize},
		NodeSize:           DefaultNodeSize,
		PortHoverTolerance: DefaultPortHoverTolerance,
		Layout:             EvenPortLayout(DefaultNodeSize, DefaultPortSpacing),
		Compatible:         DefaultCompatibility,
	}
}

// Source returns the current workflow. The engine never mutates it.
type Source func() *wire.Workflow

// CommandSink sends a workflow command to the backend and waits for the
// round trip.
type CommandSink interface {
	Execute(ctx context.Context, cmd wire.Command) error
}

// TargetKind says what is under the pointer at pointer-down.
type TargetKind int

const (
	TargetCanvas TargetKind = iota
	TargetNode
	TargetAnnotation
	TargetPort
)

// Target is the element a pointer-down landed on.
type Target struct {
	Kind TargetKind
	ID   string
	Port PortRef
}

// Modifiers are the keyboard modifiers held during a pointer event.
type Modifiers struct {
	// NoSnap disables grid snapping while moving.
	NoSnap bool
	// Toggle turns a rectangle selection into add/deselect mode.
	Toggle bool
}

// PointerEvent is one pointer-down, -move or -up in screen coordinates.
type PointerEvent struct {
	PointerID int
	Screen    Point
	Target    Target
	Modifiers Modifiers
}

// State is a DragSession's position in the gesture state machine.
type State int

const (
	StateIdle State = iota
	StateDragging
	StateCommitting
	StateAborting
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateDragging:
		return "dragging"
	case StateCommitting:
		return "committing"
	case StateAborting:
		return "aborting"
	}
	return fmt.Sprintf("state(%d)", int(s))
}

// Gesture is what a DragSession is doing.
type Gesture int

const (
	GestureMove Gesture = iota + 1
	GestureSelect
	GestureConnect
)

// DragSession is the ephemeral state between pointer-down and pointer-up.
type DragSession struct {
	State     State
	Gesture   Gesture
	PointerID int
	Anchor    Point // screen position at pointer-down
	Selected  map[Item]struct{}
	Delta     Point
	Aborted   bool

	move *moveDrag
	rect *rectSelect
	conn *connectorDrag
}

// Engine drives pointer gestures over a workflow.
type Engine struct {
	cfg       Config
	viewport  *Viewport
	source    Source
	sink      CommandSink
	selection *Selection
	previews  func([]Preview)
	logger    *slog.Logger

	session   *DragSession
	moveDelta Point
}

// EngineOption configures an Engine.
type EngineOption func(*Engine)

// WithConfig replaces the geometry configuration. Zero fields keep defaults.
func WithConfig(cfg Config) EngineOption {
	return func(e *Engine) {
		if cfg.Grid != (Grid{}) {
			e.cfg.Grid = cfg.Grid
		}
		if cfg.NodeSize > 0 {
			e.cfg.NodeSize = cfg.NodeSize
		}
		if cfg.PortHoverTolerance > 0 {
			e.cfg.PortHoverTolerance = cfg.PortHoverTolerance
		}
		if cfg.Layout != nil {
			e.cfg.Layout = cfg.Layout
		}
		if cfg.Compatible != nil {
			e.cfg.Compatible = cfg.Compatible
		}
	}
}

// WithPreviewSink receives incremental selection previews.
func WithPreviewSink(fn func([]Preview)) EngineOption {
	return func(e *Engine) { e.previews = fn }
}

// WithSelection shares an existing selection.
func WithSelection(sel *Selection) EngineOption {
	return func(e *Engine) {
		if sel != nil {
			e.selection = sel
		}
	}
}

// WithEngineLogger sets the logger.
func WithEngineLogger(l *slog.Logger) EngineOption {
	return func(e *Engine) {
		if l != nil {
			e.logger = l
		}
	}
}

// NewEngine creates an interaction engine.
func NewEngine(vp *Viewport, source Source, sink CommandSink, opts ...EngineOption) *Engine {
	e := &Engine{
		cfg:       DefaultConfig(),
		viewport:  vp,
		source:    source,
		sink:      sink,
		selection: NewSelection(),
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// FitToWorkflow fits the viewport to the current workflow's content with
// padding screen pixels around it. It reports false, leaving the viewport
// alone, when there is nothing to fit.
func (e *Engine) FitToWorkflow(padding float64) bool {
	content, ok := ContentBounds(e.source(), e.cfg.NodeSize)
	if !ok {
		return false
	}
	e.viewport.FitToContent(content, padding)
	return true
}

// Viewport returns the engine's viewport.
func (e *Engine) Viewport() *Viewport { return e.viewport }

// Selection returns the local selection.
func (e *Engine) Selection() *Selection { return e.selection }

// Config returns the geometry configuration.
func (e *Engine) Config() Config { return e.cfg }

// MoveDelta is the shared move-preview delta applied by every moving item's
// renderer. It is zero when no move is in progress.
func (e *Engine) MoveDelta() Point { return e.moveDelta }

// State returns the current session state, StateIdle without a session.
func (e *Engine) State() State {
	if e.session == nil {
		return StateIdle
	}
	return e.session.State
}

// Session returns the live session or nil.
func (e *Engine) Session() *DragSession { return e.session }

// ConnectorTarget returns the port a live connector drag would connect to.
func (e *Engine) ConnectorTarget() (PortRef, bool) {
	if e.session == nil || e.session.conn == nil || e.session.conn.target == nil {
		return PortRef{}, false
	}
	return *e.session.conn.target, true
}

// PointerDown starts a gesture. It is ignored while another session is live.
func (e *Engine) PointerDown(ev PointerEvent) {
	if e.session != nil {
		return
	}
	wf := e.source()
	s := &DragSession{
		State:     StateDragging,
		PointerID: ev.PointerID,
		Anchor:    ev.Screen,
		Selected:  e.selection.Items(),
	}
	canvasPointer := e.viewport.ScreenToCanvas(ev.Screen)

	switch ev.Target.Kind {
	case TargetNode, TargetAnnotation:
		m, ok := e.beginMove(wf, ev.Target, canvasPointer, s.Selected)
		if !ok {
			return
		}
		s.Gesture = GestureMove
		s.move = m
	case TargetPort:
		typ, ok := portType(wf, ev.Target.Port)
		if !ok {
			e.logger.Debug("pointer down on unknown port", "node", ev.Target.Port.NodeID)
			return
		}
		s.Gesture = GestureConnect
		s.conn = &connectorDrag{origin: ev.Target.Port, originType: typ}
	default:
		s.Gesture = GestureSelect
		s.rect = newRectSelect(canvasPointer, ev.Modifiers.Toggle, s.Selected)
	}
	e.session = s
}

func (e *Engine) beginMove(wf *wire.Workflow, t Target, pointer Point, selected map[Item]struct{}) (*moveDrag, bool) {
	if wf == nil {
		return nil, false
	}
	var item Item
	var origin Point
	switch t.Kind {
	case TargetNode:
		n, ok := wf.Nodes[t.ID]
		if !ok {
			return nil, false
		}
		item, origin = Item{Kind: ItemNode, ID: t.ID}, FromXY(n.Position)
	case TargetAnnotation:
		a, ok := wf.Annotations[t.ID]
		if !ok {
			return nil, false
		}
		item, origin = Item{Kind: ItemAnnotation, ID: t.ID}, Point{a.Bounds.X, a.Bounds.Y}
	}

	moving := map[Item]struct{}{item: {}}
	if _, ok := selected[item]; ok {
		for it := range selected {
			moving[it] = struct{}{}
		}
	}
	nodes, annotations := splitItems(moving)
	return &moveDrag{
		origin:        origin,
		pointerOffset: pointer.Sub(origin),
		nodeIDs:       nodes,
		annotationIDs: annotations,
	}, true
}

// PointerMove updates the live gesture. Events from another pointer and
// events after an abort are ignored.
func (e *Engine) PointerMove(ev PointerEvent) {
	s := e.session
	if s == nil || s.State != StateDragging || s.PointerID != ev.PointerID {
		return
	}
	p := e.viewport.ScreenToCanvas(ev.Screen)
	switch s.Gesture {
	case GestureMove:
		s.Delta = s.move.delta(p, e.cfg.Grid, ev.Modifiers.NoSnap)
		e.moveDelta = s.Delta
	case GestureSelect:
		e.emit(s.rect.update(p, e.source(), e.cfg.NodeSize))
	case GestureConnect:
		s.conn.target = e.resolveTarget(s.conn, e.source(), p)
	}
}

// PointerUp ends the gesture. A committing session issues at most one
// backend command; an aborted session only cleans up. The session is
// destroyed in both cases.
func (e *Engine) PointerUp(ctx context.Context, ev PointerEvent) error {
	s := e.session
	if s == nil || s.PointerID != ev.PointerID {
		return nil
	}
	if s.State == StateDragging {
		s.State = StateCommitting
	}
	defer e.reset()

	if s.State == StateAborting {
		return nil
	}

	switch s.Gesture {
	case GestureMove:
		if s.Delta.IsZero() {
			return nil
		}
		cmd := wire.Translate(s.move.nodeIDs, s.move.annotationIDs, s.Delta.XY())
		return e.execute(ctx, cmd)
	case GestureSelect:
		change := s.rect.result()
		e.emit(s.rect.clearAll())
		change.Apply(e.selection)
		return nil
	case GestureConnect:
		if s.conn.target == nil {
			return nil
		}
		return e.execute(ctx, connectCommand(s.conn.origin, *s.conn.target))
	}
	return nil
}

// Cancel aborts the live gesture, as on Escape or focus loss. Shared preview
// state is reset immediately and the following pointer-up issues nothing.
func (e *Engine) Cancel() {
	s := e.session
	if s == nil || s.State != StateDragging {
		return
	}
	s.State = StateAborting
	s.Aborted = true
	s.Delta = Point{}
	e.moveDelta = Point{}
	if s.rect != nil {
		e.emit(s.rect.clearAll())
	}
	if s.conn != nil {
		s.conn.target = nil
	}
}

// Teardown destroys any live session without issuing a command.
func (e *Engine) Teardown() {
	e.Cancel()
	e.reset()
}

func (e *Engine) reset() {
	e.session = nil
	e.moveDelta = Point{}
}

func (e *Engine) execute(ctx context.Context, cmd wire.Command) error {
	if e.sink == nil {
		return fmt.Errorf("no command sink for %s", cmd.Kind)
	}
	if err := e.sink.Execute(ctx, cmd); err != nil {
		e.logger.Error("command failed", "kind", string(cmd.Kind), "error", err)
		return fmt.Errorf("%s: %w", cmd.Kind, err)
	}
	return nil
}

func (e *Engine) emit(p []Preview) {
	if len(p) == 0 || e.previews == nil {
		return
	}
	e.previews(p)
}
