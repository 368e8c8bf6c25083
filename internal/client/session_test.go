package client

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/flowcanvas/internal/canvas"
	"github.com/roach88/flowcanvas/internal/dispatch"
	"github.com/roach88/flowcanvas/internal/snapshot"
	"github.com/roach88/flowcanvas/internal/store"
	"github.com/roach88/flowcanvas/internal/testutil"
	"github.com/roach88/flowcanvas/internal/transport"
	"github.com/roach88/flowcanvas/internal/wire"
)

const baseWorkflow = `{
	"info": {"containerId": "root"},
	"nodes": {
		"n1": {"id": "n1", "kind": "node", "position": {"x": 0, "y": 0}},
		"n2": {"id": "n2", "kind": "node", "position": {"x": 100, "y": 0}}
	},
	"connections": {},
	"workflowAnnotations": {}
}`

const reloadedWorkflow = `{
	"info": {"containerId": "root"},
	"nodes": {"n9": {"id": "n9", "kind": "node", "position": {"x": 5, "y": 5}}},
	"connections": {},
	"workflowAnnotations": {}
}`

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// backend answers getWorkflow with baseWorkflow on the first call and
// reloadedWorkflow afterwards. Commands succeed with a null result unless
// failCommands is set.
type backend struct {
	loads        atomic.Int32
	failCommands atomic.Bool
}

func (b *backend) respond(req wire.Request) wire.Response {
	resp := wire.Response{JSONRPC: wire.JSONRPCVersion, ID: req.ID}
	switch req.Method {
	case wire.MethodGetWorkflow:
		n := b.loads.Add(1)
		wf, id := baseWorkflow, "1"
		if n > 1 {
			wf, id = reloadedWorkflow, "5"
		}
		resp.Result = json.RawMessage(`{"workflow":` + wf + `,"snapshotId":"` + id + `"}`)
	case wire.MethodExecuteCommand:
		if b.failCommands.Load() {
			resp.Error = &wire.RPCError{Code: -32000, Message: "command rejected"}
			return resp
		}
		resp.Result = json.RawMessage("null")
	default:
		resp.Error = &wire.RPCError{Code: -32601, Message: "method not found"}
	}
	return resp
}

type fixture struct {
	backend *backend
	host    *testutil.FakeHost
	session *Session
}

func newFixture(t *testing.T, opts ...Option) *fixture {
	t.Helper()
	b := &backend{}
	host := testutil.NewFakeHost(b.respond)
	d := transport.NewDesktop(host, transport.WithDesktopLogger(quietLogger()))
	base := []Option{WithLogger(quietLogger()), WithIDGenerator(testutil.NewSequentialIDs(""))}
	s, err := New(d, "p1", "root", append(base, opts...)...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return &fixture{backend: b, host: host, session: s}
}

func (f *fixture) start(t *testing.T) {
	t.Helper()
	require.NoError(t, f.session.Start(t.Context()))
}

// runLoop runs the push loop until the test ends.
func (f *fixture) runLoop(t *testing.T) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- f.session.Run(ctx) }()
	t.Cleanup(func() {
		cancel()
		<-done
	})
}

func envelope(eventType, payload, snapshotID string) string {
	env := map[string]any{"eventType": eventType, "payload": json.RawMessage(payload)}
	if snapshotID != "" {
		env["snapshotId"] = snapshotID
	}
	out, _ := json.Marshal(env)
	return string(out)
}

func TestNew_MissingParametersAreFatal(t *testing.T) {
	_, err := New(nil, "p1", "root")
	assert.True(t, transport.IsFatal(err))

	d := transport.NewDesktop(testutil.NewFakeHost(nil))
	_, err = New(d, "", "root")
	assert.True(t, transport.IsFatal(err))
	assert.Contains(t, err.Error(), "project id")

	_, err = New(d, "p1", "")
	assert.True(t, transport.IsFatal(err))
	assert.Contains(t, err.Error(), "workflow id")
}

func TestStart_LoadsSnapshot(t *testing.T) {
	f := newFixture(t)
	f.start(t)

	v := f.session.View()
	assert.Equal(t, "1", v.SnapshotID)
	assert.False(t, v.Inconsistent)
	assert.Equal(t, []string{"n1", "n2"}, v.Workflow.NodeIDs())

	reqs := f.host.Requests()
	require.Len(t, reqs, 1)
	assert.Equal(t, "req-1", reqs[0].ID)
	assert.Equal(t, wire.MethodGetWorkflow, reqs[0].Method)
	assert.Equal(t, []any{"p1", "root"}, reqs[0].Params)
}

func TestStart_HostUnavailableIsFatal(t *testing.T) {
	s, err := New(transport.NewDesktop(nil), "p1", "root", WithLogger(quietLogger()))
	require.NoError(t, err)

	err = s.Start(t.Context())
	require.Error(t, err)
	assert.True(t, transport.IsFatal(err))
	assert.ErrorIs(t, err, transport.ErrHostUnavailable)
}

func TestStart_BackendWithoutWorkflow(t *testing.T) {
	host := testutil.NewFakeHost(nil) // null result
	s, err := New(transport.NewDesktop(host), "p1", "root", WithLogger(quietLogger()))
	require.NoError(t, err)

	err = s.Start(t.Context())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no workflow")
}

func TestRun_AppliesPushesInArrivalOrder(t *testing.T) {
	f := newFixture(t)
	f.start(t)

	require.True(t, f.host.Push(envelope(dispatch.NameWorkflowChanged,
		`{"patch":{"ops":[{"op":"replace","path":"/nodes/n1/position","value":{"x":10,"y":20}}]}}`, "")))
	require.True(t, f.host.Push(envelope(dispatch.NameWorkflowChanged,
		`{"patch":{"ops":[{"op":"remove","path":"/nodes/n2"}]}}`, "")))
	require.NoError(t, f.session.Close())

	// The queue is closed; Run drains it and returns.
	require.NoError(t, f.session.Run(t.Context()))

	v := f.session.View()
	assert.Equal(t, wire.XY{X: 10, Y: 20}, v.Workflow.Nodes["n1"].Position)
	assert.NotContains(t, v.Workflow.Nodes, "n2")
	assert.False(t, v.Inconsistent)
}

func TestRun_CompositeEvent(t *testing.T) {
	var dirty atomic.Bool
	f := newFixture(t)
	f.session.RegisterEventHandler(dispatch.NameDirtyState, func(_ context.Context, ev dispatch.Event) error {
		p, err := wire.DecodePayload[wire.DirtyState](ev.Payload)
		if err != nil {
			return err
		}
		dirty.Store(p.Dirty)
		return nil
	})
	f.start(t)

	raw := envelope(dispatch.NameWorkflowChanged+":"+dispatch.NameDirtyState, `{
		"events": ["WorkflowChangedEvent", "ProjectDirtyStateEvent"],
		"params": [
			{"patch": {"ops": [{"op": "add", "path": "/nodes/n3", "value": {"id": "n3", "kind": "node", "position": {"x": 0, "y": 50}}}]}},
			{"projectId": "p1", "dirty": true}
		]
	}`, "")
	require.True(t, f.host.Push(raw))
	require.NoError(t, f.session.Close())
	require.NoError(t, f.session.Run(t.Context()))

	assert.Contains(t, f.session.View().Workflow.Nodes, "n3")
	assert.True(t, dirty.Load())
}

func TestHandlePush_RejectsNonString(t *testing.T) {
	f := newFixture(t)
	f.start(t)

	err := f.session.HandlePush(t.Context(), transport.Push{Seq: 1, Msg: 42})
	require.Error(t, err)
	assert.True(t, dispatch.IsEnvelopeError(err))
}

func TestRun_InconsistentSnapshotTriggersResync(t *testing.T) {
	f := newFixture(t)
	f.start(t)
	f.runLoop(t)

	// n7 does not exist, so the replace is an anomaly; the snapshot id then
	// fires the consistency check on an inconsistent view.
	require.True(t, f.host.Push(envelope(dispatch.NameWorkflowChanged,
		`{"patch":{"ops":[{"op":"replace","path":"/nodes/n7/label","value":"x"}]}}`, "2")))

	require.Eventually(t, func() bool {
		v := f.session.View()
		return v.SnapshotID == "5" && !v.Inconsistent
	}, 2*time.Second, 10*time.Millisecond)
	assert.Equal(t, []string{"n9"}, f.session.View().Workflow.NodeIDs())
	assert.Equal(t, int32(2), f.backend.loads.Load())
}

func TestRun_ConsistentSnapshotIDDoesNotResync(t *testing.T) {
	f := newFixture(t)
	f.start(t)

	require.True(t, f.host.Push(envelope(dispatch.NameWorkflowChanged,
		`{"patch":{"ops":[{"op":"remove","path":"/nodes/n2"}]}}`, "2")))
	require.NoError(t, f.session.Close())
	require.NoError(t, f.session.Run(t.Context()))

	assert.Equal(t, "2", f.session.View().SnapshotID)
	assert.Equal(t, int32(1), f.backend.loads.Load())
}

func TestExecute_SendsCommand(t *testing.T) {
	f := newFixture(t)
	f.start(t)

	cmd := wire.Translate([]string{"n1"}, nil, wire.XY{X: 15, Y: 0})
	require.NoError(t, f.session.Execute(t.Context(), cmd))

	reqs := f.host.Requests()
	require.Len(t, reqs, 2)
	last := reqs[1]
	assert.Equal(t, "req-2", last.ID)
	assert.Equal(t, wire.MethodExecuteCommand, last.Method)
	require.Len(t, last.Params, 3)
	assert.Equal(t, "p1", last.Params[0])
	assert.Equal(t, "root", last.Params[1])
	sent, ok := last.Params[2].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "translate", sent["kind"])

	// The result is not applied; only a push changes the view.
	assert.Equal(t, wire.XY{}, f.session.View().Workflow.Nodes["n1"].Position)
}

func TestExecute_RPCError(t *testing.T) {
	f := newFixture(t)
	f.start(t)
	f.backend.failCommands.Store(true)

	err := f.session.Execute(t.Context(), wire.Delete([]string{"n1"}, nil, nil))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "command rejected")
	assert.False(t, transport.IsConnectivity(err))
}

func TestExecute_BlocksWhileOffline(t *testing.T) {
	f := newFixture(t)

	ctx, cancel := context.WithTimeout(t.Context(), 30*time.Millisecond)
	defer cancel()
	err := f.session.Execute(ctx, wire.Delete([]string{"n1"}, nil, nil))
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	done := make(chan error, 1)
	go func() {
		done <- f.session.Execute(t.Context(), wire.Delete([]string{"n1"}, nil, nil))
	}()
	f.start(t)

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("command still blocked after connect")
	}
}

func TestExecute_FailsAfterClose(t *testing.T) {
	f := newFixture(t)
	f.start(t)
	require.NoError(t, f.session.Close())

	err := f.session.Execute(t.Context(), wire.Delete([]string{"n1"}, nil, nil))
	assert.ErrorIs(t, err, transport.ErrClosed)
}

func TestSwitch_ClearsInteractionStateAndReloads(t *testing.T) {
	f := newFixture(t)
	f.start(t)

	eng := f.session.Engine()
	eng.Selection().Select(canvas.Item{Kind: canvas.ItemNode, ID: "n1"})
	eng.PointerDown(canvas.PointerEvent{
		PointerID: 1,
		Screen:    canvas.Point{X: 5, Y: 5},
		Target:    canvas.Target{Kind: canvas.TargetNode, ID: "n2"},
	})
	require.Equal(t, canvas.StateDragging, eng.State())

	require.NoError(t, f.session.Switch(t.Context(), "p2", "wf2"))

	assert.Equal(t, canvas.StateIdle, eng.State())
	assert.Equal(t, 0, eng.Selection().Len())
	project, workflow := f.session.Target()
	assert.Equal(t, "p2", project)
	assert.Equal(t, "wf2", workflow)

	reqs := f.host.Requests()
	assert.Equal(t, []any{"p2", "wf2"}, reqs[len(reqs)-1].Params)
	assert.Equal(t, "5", f.session.View().SnapshotID)

	assert.True(t, transport.IsFatal(f.session.Switch(t.Context(), "", "wf2")))
}

func addNodeChange(id, target string) string {
	return `{"patch":{"ops":[{"op":"add","path":"/nodes/` + id +
		`","value":{"id":"` + id + `","kind":"node","position":{"x":0,"y":0}}}]}` + target + `}`
}

func TestSwitch_DropsChangesQueuedForPreviousWorkflow(t *testing.T) {
	f := newFixture(t)
	f.start(t)

	// Queued for p1/root, not yet drained when the switch happens.
	require.True(t, f.host.Push(envelope(dispatch.NameWorkflowChanged, addNodeChange("x", ""), "")))
	require.NoError(t, f.session.Switch(t.Context(), "p2", "wf2"))
	before := f.session.View()

	n, err := f.session.Drain(t.Context())
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	v := f.session.View()
	assert.Equal(t, before.Version, v.Version)
	assert.NotContains(t, v.Workflow.Nodes, "x")
	assert.Contains(t, v.Workflow.Nodes, "n9")
	assert.False(t, v.Inconsistent)

	// Pushes arriving after the switch apply to the new workflow.
	require.True(t, f.host.Push(envelope(dispatch.NameWorkflowChanged, addNodeChange("y", ""), "")))
	_, err = f.session.Drain(t.Context())
	require.NoError(t, err)
	assert.Contains(t, f.session.View().Workflow.Nodes, "y")
}

func TestWorkflowChanged_TaggedForOtherWorkflowIsDropped(t *testing.T) {
	f := newFixture(t)
	f.start(t)

	require.True(t, f.host.Push(envelope(dispatch.NameWorkflowChanged,
		addNodeChange("x", `,"projectId":"p1","workflowId":"other"`), "")))
	require.True(t, f.host.Push(envelope(dispatch.NameWorkflowChanged,
		addNodeChange("y", `,"projectId":"p1","workflowId":"root"`), "")))

	_, err := f.session.Drain(t.Context())
	require.NoError(t, err)

	nodes := f.session.View().Workflow.Nodes
	assert.NotContains(t, nodes, "x")
	assert.Contains(t, nodes, "y")
}

func TestEngine_MoveCommitsThroughSession(t *testing.T) {
	f := newFixture(t)
	f.start(t)
	eng := f.session.Engine()

	eng.PointerDown(canvas.PointerEvent{
		PointerID: 1,
		Screen:    canvas.Point{X: 10, Y: 10},
		Target:    canvas.Target{Kind: canvas.TargetNode, ID: "n1"},
	})
	eng.PointerMove(canvas.PointerEvent{PointerID: 1, Screen: canvas.Point{X: 23, Y: 12}})
	assert.Equal(t, canvas.Point{X: 15, Y: 0}, eng.MoveDelta())
	require.NoError(t, eng.PointerUp(t.Context(), canvas.PointerEvent{PointerID: 1, Screen: canvas.Point{X: 23, Y: 12}}))

	reqs := f.host.Requests()
	require.Len(t, reqs, 2)
	sent := reqs[1].Params[2].(map[string]any)
	assert.Equal(t, "translate", sent["kind"])
	assert.Equal(t, []any{"n1"}, sent["nodeIds"])
	assert.Equal(t, map[string]any{"x": 15.0, "y": 0.0}, sent["translation"])
}

func TestJournal_RecordsSession(t *testing.T) {
	st, err := store.Open(filepath.Join(t.TempDir(), "journal.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })

	f := newFixture(t, WithJournal(st.Journal("s1", quietLogger())))
	f.start(t)

	require.True(t, f.host.Push(envelope(dispatch.NameWorkflowChanged,
		`{"patch":{"ops":[{"op":"remove","path":"/nodes/n2"}]}}`, "")))
	require.True(t, f.host.Push(`{not json`))
	require.NoError(t, f.session.Close())
	require.NoError(t, f.session.Run(t.Context()))

	envs, snaps, batches, err := st.Counts(t.Context())
	require.NoError(t, err)
	assert.Equal(t, 2, envs)
	assert.Equal(t, 1, snaps)
	assert.Equal(t, 1, batches)

	recs, err := st.ReadEnvelopes(t.Context(), store.EnvelopeFilter{SessionID: "s1"})
	require.NoError(t, err)
	require.Len(t, recs, 2)
	assert.Equal(t, dispatch.NameWorkflowChanged, recs[0].EventType)
	assert.False(t, recs[0].Rejected)
	assert.True(t, recs[1].Rejected)

	report, err := st.Replay(t.Context(), "s1")
	require.NoError(t, err)
	assert.True(t, report.Associative())
	assert.True(t, report.MatchesJournal())
	digest, err := f.session.View().Digest()
	require.NoError(t, err)
	assert.Equal(t, digest, report.Digest)
}

// watchedTransport lets a test drive status transitions on top of a
// desktop transport.
type watchedTransport struct {
	*transport.Desktop
	mu       sync.Mutex
	watchers []transport.StatusFunc
}

func (w *watchedTransport) OnStatus(fn transport.StatusFunc) func() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.watchers = append(w.watchers, fn)
	return func() {}
}

func (w *watchedTransport) emit(st transport.Status) {
	w.mu.Lock()
	watchers := append([]transport.StatusFunc(nil), w.watchers...)
	w.mu.Unlock()
	for _, fn := range watchers {
		fn(st)
	}
}

func TestReconnect_TriggersResync(t *testing.T) {
	b := &backend{}
	host := testutil.NewFakeHost(b.respond)
	wt := &watchedTransport{Desktop: transport.NewDesktop(host, transport.WithDesktopLogger(quietLogger()))}
	s, err := New(wt, "p1", "root", WithLogger(quietLogger()))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	f := &fixture{backend: b, host: host, session: s}
	f.start(t)
	f.runLoop(t)

	// Online without a preceding loss is not a reconnect.
	wt.emit(transport.StatusOnline)
	wt.emit(transport.StatusReconnecting)
	wt.emit(transport.StatusOnline)

	require.Eventually(t, func() bool {
		return s.View().SnapshotID == "5"
	}, 2*time.Second, 10*time.Millisecond)
	assert.Equal(t, int32(2), b.loads.Load())
}

func TestWatch_StopsOnCancel(t *testing.T) {
	f := newFixture(t)
	ctx, cancel := context.WithCancel(t.Context())

	done := make(chan error, 1)
	go func() { done <- f.session.Watch(ctx) }()

	require.Eventually(t, func() bool {
		return f.session.View().SnapshotID == "1"
	}, 2*time.Second, 10*time.Millisecond)
	cancel()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("watch did not stop")
	}
	assert.Equal(t, transport.StatusClosed, f.session.Transport().Status())
}

func TestWatch_StartFailure(t *testing.T) {
	s, err := New(transport.NewDesktop(nil), "p1", "root", WithLogger(quietLogger()))
	require.NoError(t, err)

	err = s.Watch(t.Context())
	require.Error(t, err)
	assert.True(t, errors.Is(err, transport.ErrHostUnavailable))
}

func TestDrain_HandlesQueuedPushesAndResync(t *testing.T) {
	var batches atomic.Int32
	f := newFixture(t, WithBatchObserver(func(_ *snapshot.View, _ snapshot.BatchResult) {
		batches.Add(1)
	}))
	f.start(t)

	n, err := f.session.Drain(t.Context())
	require.NoError(t, err)
	assert.Equal(t, 0, n)

	require.True(t, f.host.Push(envelope(dispatch.NameWorkflowChanged,
		`{"patch":{"ops":[{"op":"remove","path":"/nodes/n5"}]}}`, "3")))
	require.True(t, f.host.Push(envelope(dispatch.NameToast, `{"type":"info","message":"saved"}`, "")))

	n, err = f.session.Drain(t.Context())
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Equal(t, int32(1), batches.Load())

	// The anomaly requested a resync, which Drain performed.
	v := f.session.View()
	assert.Equal(t, "5", v.SnapshotID)
	assert.False(t, v.Inconsistent)
}
