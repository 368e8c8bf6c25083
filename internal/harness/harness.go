package harness

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/roach88/flowcanvas/internal/canvas"
	"github.com/roach88/flowcanvas/internal/client"
	"github.com/roach88/flowcanvas/internal/dispatch"
	"github.com/roach88/flowcanvas/internal/snapshot"
	"github.com/roach88/flowcanvas/internal/testutil"
	"github.com/roach88/flowcanvas/internal/transport"
	"github.com/roach88/flowcanvas/internal/wire"
)

// Default scenario target.
const (
	DefaultProject    = "p1"
	DefaultWorkflowID = "root"
)

// Harness runs one scenario with a deterministic clock and request ids.
type Harness struct {
	scenario *Scenario
	clock    *testutil.DeterministicClock
	host     *testutil.FakeHost
	session  *client.Session
	result   *Result
	loads    int
}

// Run executes a scenario and returns the result.
//
// Execution flow:
//  1. Start a session against the scripted backend (initial load)
//  2. Execute the steps in order; pushes are dispatched before the next step
//  3. Capture the final workflow, selection and view
//  4. Evaluate assertions
//
// An error is returned only when the session cannot be started.
func Run(scenario *Scenario) (*Result, error) {
	ctx := context.Background()
	quiet := slog.New(slog.NewTextHandler(io.Discard, nil))

	h := &Harness{
		scenario: scenario,
		clock:    testutil.NewDeterministicClock(),
		result:   NewResult(),
	}
	h.host = testutil.NewFakeHost(h.respond)

	project, workflowID := scenario.Project, scenario.WorkflowID
	if project == "" {
		project = DefaultProject
	}
	if workflowID == "" {
		workflowID = DefaultWorkflowID
	}

	session, err := client.New(
		transport.NewDesktop(h.host, transport.WithDesktopLogger(quiet)),
		project, workflowID,
		client.WithLogger(quiet),
		client.WithIDGenerator(testutil.NewSequentialIDs("")),
		client.WithEngineOptions(h.engineOptions()...),
		client.WithBatchObserver(h.recordBatch),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create session: %w", err)
	}
	defer session.Close()
	h.session = session

	if err := session.Start(ctx); err != nil {
		return nil, fmt.Errorf("failed to start session: %w", err)
	}

	for i, step := range scenario.Steps {
		if err := h.execute(ctx, step); err != nil {
			h.result.AddError(fmt.Sprintf("step %d: %v", i, err))
		}
	}

	if err := h.capture(); err != nil {
		return nil, fmt.Errorf("failed to capture final state: %w", err)
	}
	for _, msg := range EvaluateAssertions(h.result, scenario.Assertions) {
		h.result.AddError(msg)
	}
	return h.result, nil
}

func (h *Harness) engineOptions() []canvas.EngineOption {
	opts := []canvas.EngineOption{canvas.WithPreviewSink(h.recordPreviews)}
	c := h.scenario.Canvas
	if c == nil {
		return opts
	}
	cfg := canvas.Config{PortHoverTolerance: c.PortHoverTolerance, NodeSize: c.NodeSize}
	if c.GridX != 0 || c.GridY != 0 {
		cfg.Grid = canvas.Grid{X: orDefault(c.GridX, canvas.DefaultGridSize), Y: orDefault(c.GridY, canvas.DefaultGridSize)}
	}
	if c.NodeSize > 0 {
		cfg.Layout = canvas.EvenPortLayout(c.NodeSize, canvas.DefaultPortSpacing)
	}
	return append(opts, canvas.WithConfig(cfg))
}

func orDefault(v, def float64) float64 {
	if v == 0 {
		return def
	}
	return v
}

// respond is the scripted backend. It runs synchronously inside the
// session's request, so trace order follows call order.
func (h *Harness) respond(req wire.Request) wire.Response {
	resp := wire.Response{JSONRPC: wire.JSONRPCVersion, ID: req.ID}

	switch req.Method {
	case wire.MethodGetWorkflow:
		h.result.AddTrace(EventRequest, req.Method, map[string]any{"params": req.Params}, h.clock.Next())
		h.loads++
		wf, id := h.scenario.Workflow, h.scenario.SnapshotID
		if h.loads > 1 && h.scenario.Reload != nil {
			wf, id = h.scenario.Reload, h.scenario.ReloadSnapshotID
		}
		out, err := json.Marshal(map[string]any{"workflow": wf, "snapshotId": id})
		if err != nil {
			resp.Error = &wire.RPCError{Code: -32603, Message: err.Error()}
			return resp
		}
		resp.Result = out

	case wire.MethodExecuteCommand:
		var cmd any
		name := ""
		if len(req.Params) == 3 {
			cmd = req.Params[2]
			if m, ok := cmd.(map[string]any); ok {
				name, _ = m["kind"].(string)
			}
		}
		h.result.AddTrace(EventCommand, name, cmd, h.clock.Next())
		if h.scenario.RejectCommands {
			resp.Error = &wire.RPCError{Code: -32000, Message: "command rejected"}
			return resp
		}
		resp.Result = json.RawMessage("null")

	default:
		h.result.AddTrace(EventRequest, req.Method, nil, h.clock.Next())
		resp.Error = &wire.RPCError{Code: -32601, Message: "method not found"}
	}
	return resp
}

func (h *Harness) recordBatch(v *snapshot.View, r snapshot.BatchResult) {
	h.result.AddTrace(EventBatch, "", map[string]any{
		"applied":      r.Applied,
		"anomalies":    len(r.Anomalies),
		"version":      v.Version,
		"inconsistent": v.Inconsistent,
	}, h.clock.Next())
}

func (h *Harness) recordPreviews(previews []canvas.Preview) {
	detail := map[string]any{}
	for _, p := range previews {
		key := string(p.Signal)
		ids, _ := detail[key].([]string)
		detail[key] = append(ids, p.Item.ID)
	}
	h.result.AddTrace(EventPreview, "", detail, h.clock.Next())
}

func (h *Harness) recordError(step string, err error) {
	h.result.AddTrace(EventError, step, map[string]any{"error": err.Error()}, h.clock.Next())
}

// execute runs one step. Errors the scenario can observe, such as a
// rejected command, are traced rather than returned.
func (h *Harness) execute(ctx context.Context, step Step) error {
	eng := h.session.Engine()

	switch {
	case step.Push != nil:
		raw, err := json.Marshal(step.Push)
		if err != nil {
			return fmt.Errorf("encode push: %w", err)
		}
		return h.push(ctx, string(raw))

	case step.PushRaw != nil:
		return h.push(ctx, *step.PushRaw)

	case step.PointerDown != nil:
		eng.PointerDown(pointerEvent(step.PointerDown))

	case step.PointerMove != nil:
		eng.PointerMove(pointerEvent(step.PointerMove))

	case step.PointerUp != nil:
		if err := eng.PointerUp(ctx, pointerEvent(step.PointerUp)); err != nil {
			h.recordError("pointer_up", err)
		}

	case step.Cancel:
		eng.Cancel()

	case step.Zoom != nil:
		eng.Viewport().ZoomAround(step.Zoom.Factor, canvas.Point{X: step.Zoom.X, Y: step.Zoom.Y})

	case step.Pan != nil:
		eng.Viewport().Pan(canvas.Point{X: step.Pan.X, Y: step.Pan.Y})

	case step.Select != nil:
		sel := eng.Selection()
		sel.Clear()
		for _, id := range step.Select.Nodes {
			sel.Select(canvas.Item{Kind: canvas.ItemNode, ID: id})
		}
		for _, id := range step.Select.Annotations {
			sel.Select(canvas.Item{Kind: canvas.ItemAnnotation, ID: id})
		}

	case step.Switch != nil:
		if err := h.session.Switch(ctx, step.Switch.Project, step.Switch.Workflow); err != nil {
			h.recordError("switch", err)
		}

	case step.Resync:
		if err := h.session.Resync(ctx); err != nil {
			h.recordError("resync", err)
		}

	default:
		return fmt.Errorf("empty step")
	}
	return nil
}

// push delivers msg through the host bridge and dispatches everything
// queued, then lets the session run any resync the pushes requested.
func (h *Harness) push(ctx context.Context, msg any) error {
	if !h.host.Push(msg) {
		return fmt.Errorf("no push listener registered")
	}

	q := h.session.Transport().Pushes()
	for {
		p, ok := q.TryDequeue()
		if !ok {
			break
		}
		raw, _ := p.Text()
		idx := h.result.AddTrace(EventPush, peekEventType(raw), nil, h.clock.Next())
		h.result.Trace[idx].Detail = pushOutcome(h.session.HandlePush(ctx, p))
	}

	_, err := h.session.Drain(ctx)
	return err
}

func peekEventType(raw string) string {
	var env struct {
		EventType string `json:"eventType"`
	}
	_ = json.Unmarshal([]byte(raw), &env)
	return env.EventType
}

func pushOutcome(err error) map[string]any {
	if err == nil {
		return map[string]any{"accepted": true}
	}
	var ee *dispatch.EnvelopeError
	if errors.As(err, &ee) {
		return map[string]any{"rejected": string(ee.Code)}
	}
	return map[string]any{"rejected": err.Error()}
}

func pointerEvent(p *PointerStep) canvas.PointerEvent {
	ev := canvas.PointerEvent{
		PointerID: p.Pointer,
		Screen:    canvas.Point{X: p.X, Y: p.Y},
		Modifiers: canvas.Modifiers{NoSnap: p.NoSnap, Toggle: p.Toggle},
	}
	switch p.Target {
	case "node":
		ev.Target = canvas.Target{Kind: canvas.TargetNode, ID: p.ID}
	case "annotation":
		ev.Target = canvas.Target{Kind: canvas.TargetAnnotation, ID: p.ID}
	case "port":
		side := canvas.SideOut
		if p.Side == "in" {
			side = canvas.SideIn
		}
		ev.Target = canvas.Target{
			Kind: canvas.TargetPort,
			ID:   p.ID,
			Port: canvas.PortRef{NodeID: p.ID, Side: side, Index: p.Port},
		}
	default:
		ev.Target = canvas.Target{Kind: canvas.TargetCanvas}
	}
	return ev
}

// capture records the final workflow, selection and view into the result.
func (h *Harness) capture() error {
	v := h.session.View()
	raw, err := v.WorkflowJSON()
	if err != nil {
		return err
	}
	var wf any
	if err := json.Unmarshal(raw, &wf); err != nil {
		return err
	}
	h.result.Workflow = wf
	h.result.SnapshotID = v.SnapshotID
	h.result.Inconsistent = v.Inconsistent

	sel := h.session.Engine().Selection()
	h.result.Selection = SelectionState{
		Nodes:       append([]string{}, sel.NodeIDs()...),
		Annotations: append([]string{}, sel.AnnotationIDs()...),
	}
	return nil
}
