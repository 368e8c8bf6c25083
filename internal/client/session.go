package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	"golang.org/x/sync/errgroup"

	"github.com/roach88/flowcanvas/internal/canvas"
	"github.com/roach88/flowcanvas/internal/dispatch"
	"github.com/roach88/flowcanvas/internal/snapshot"
	"github.com/roach88/flowcanvas/internal/store"
	"github.com/roach88/flowcanvas/internal/transport"
	"github.com/roach88/flowcanvas/internal/wire"
)

// workflowResult is the result of WorkflowService.getWorkflow.
type workflowResult struct {
	Workflow   json.RawMessage `json:"workflow"`
	SnapshotID string          `json:"snapshotId"`
}

// Session is one client editing one workflow.
//
// Thread-safety model:
//   - Run(): one goroutine, the only consumer of the push queue
//   - Execute(), Resync(), View(), Target(): safe from any goroutine
//   - Engine() and Switch(): the interaction goroutine only
type Session struct {
	transport  transport.Transport
	registry   *dispatch.Registry
	dispatcher *dispatch.Dispatcher
	sync       *snapshot.Synchronizer
	engine     *canvas.Engine
	journal    *store.Journal
	ids        IDGenerator
	logger     *slog.Logger

	mu         sync.Mutex
	projectID  string
	workflowID string

	needResync   atomic.Bool
	reconnecting atomic.Bool
	pushSeq      atomic.Int64  // seq of the push being dispatched
	switchMark   atomic.Int64  // last push seq queued when a switch loaded
	wake         chan struct{} // buffered, size 1
	unwatch      func()
	closeOnce    sync.Once
}

// New creates a session editing workflowID of projectID over t.
// A missing transport or id is a fatal initialization error.
func New(t transport.Transport, projectID, workflowID string, opts ...Option) (*Session, error) {
	if t == nil {
		return nil, &transport.InitError{Code: transport.ErrCodeMissingParameter, Message: "transport is required"}
	}
	if err := checkTarget(projectID, workflowID); err != nil {
		return nil, err
	}

	o := options{
		logger:   slog.Default(),
		ids:      UUIDv7Generator{},
		registry: dispatch.NewRegistry(),
	}
	for _, opt := range opts {
		opt(&o)
	}

	s := &Session{
		transport:  t,
		registry:   o.registry,
		journal:    o.journal,
		ids:        o.ids,
		logger:     o.logger,
		projectID:  projectID,
		workflowID: workflowID,
		wake:       make(chan struct{}, 1),
	}
	s.dispatcher = dispatch.New(s.registry, dispatch.WithLogger(o.logger))
	syncOpts := []snapshot.Option{
		snapshot.WithMount(o.mount),
		snapshot.WithLogger(o.logger),
		snapshot.WithConsistencyCheck(s.checkConsistency),
		snapshot.WithBatchObserver(s.recordBatch),
	}
	for _, fn := range o.observers {
		syncOpts = append(syncOpts, snapshot.WithBatchObserver(fn))
	}
	s.sync = snapshot.New(syncOpts...)

	engineOpts := append([]canvas.EngineOption{canvas.WithEngineLogger(o.logger)}, o.engine...)
	s.engine = canvas.NewEngine(canvas.NewViewport(o.viewport...), s.workflow, s, engineOpts...)

	s.registerCoreHandlers()
	if !o.noHandler {
		s.registerNotificationHandlers()
	}
	s.unwatch = t.OnStatus(s.onStatus)
	return s, nil
}

func checkTarget(projectID, workflowID string) error {
	switch {
	case projectID == "":
		return &transport.InitError{Code: transport.ErrCodeMissingParameter, Message: "project id is required"}
	case workflowID == "":
		return &transport.InitError{Code: transport.ErrCodeMissingParameter, Message: "workflow id is required"}
	}
	return nil
}

// Registry returns the handler registry shared with feature modules.
func (s *Session) Registry() *dispatch.Registry { return s.registry }

// RegisterEventHandler registers h for the named event. The last
// registration for a name wins.
func (s *Session) RegisterEventHandler(name string, h dispatch.Handler) {
	s.registry.Register(name, h)
}

// Dispatcher returns the push dispatcher.
func (s *Session) Dispatcher() *dispatch.Dispatcher { return s.dispatcher }

// Synchronizer returns the patch synchronizer.
func (s *Session) Synchronizer() *snapshot.Synchronizer { return s.sync }

// View returns the current workflow view.
func (s *Session) View() *snapshot.View { return s.sync.View() }

// Engine returns the interaction engine.
func (s *Session) Engine() *canvas.Engine { return s.engine }

// Transport returns the underlying transport.
func (s *Session) Transport() transport.Transport { return s.transport }

// Target returns the project and workflow being edited.
func (s *Session) Target() (projectID, workflowID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.projectID, s.workflowID
}

func (s *Session) workflow() *wire.Workflow {
	return s.sync.View().Workflow
}

// Start connects the transport and loads the initial snapshot.
func (s *Session) Start(ctx context.Context) error {
	if err := s.transport.Connect(ctx); err != nil {
		return fmt.Errorf("connect: %w", err)
	}
	return s.load(ctx, store.ReasonLoad)
}

// Resync replaces the snapshot with a fresh copy from the backend.
func (s *Session) Resync(ctx context.Context) error {
	s.needResync.Store(false)
	return s.load(ctx, store.ReasonResync)
}

// Switch tears down any live gesture, clears the selection and loads
// another workflow wholesale.
func (s *Session) Switch(ctx context.Context, projectID, workflowID string) error {
	if err := checkTarget(projectID, workflowID); err != nil {
		return err
	}
	s.engine.Teardown()
	s.engine.Selection().Clear()

	s.mu.Lock()
	s.projectID, s.workflowID = projectID, workflowID
	s.mu.Unlock()

	s.logger.Info("switching workflow", "project_id", projectID, "workflow_id", workflowID)
	return s.load(ctx, store.ReasonSwitch)
}

func (s *Session) load(ctx context.Context, reason store.SnapshotReason) error {
	projectID, workflowID := s.Target()
	req := wire.NewRequest(s.ids.Generate(), wire.MethodGetWorkflow, projectID, workflowID)

	var res workflowResult
	if err := transport.Call(ctx, s.transport, req, &res); err != nil {
		return fmt.Errorf("%s workflow: %w", reason, err)
	}
	if len(res.Workflow) == 0 || string(res.Workflow) == "null" {
		return fmt.Errorf("%s workflow: backend returned no workflow for %s/%s", reason, projectID, workflowID)
	}
	v, err := s.sync.Load(res.Workflow, res.SnapshotID)
	if err != nil {
		return fmt.Errorf("%s workflow: %w", reason, err)
	}
	if reason == store.ReasonSwitch {
		s.switchMark.Store(s.transport.Pushes().LastSeq())
	}
	if s.journal != nil {
		// Journal failures are logged by the journal and never fail a load.
		_ = s.journal.Snapshot(ctx, projectID, workflowID, reason, v)
	}
	return nil
}

// Execute sends cmd to the backend. While the transport is offline it
// blocks until the link is restored or ctx is done. The result is not
// applied; the confirming patch arrives as a push.
func (s *Session) Execute(ctx context.Context, cmd wire.Command) error {
	if st := s.transport.Status(); st != transport.StatusOnline {
		s.logger.Info("command waiting for connection", "kind", string(cmd.Kind), "status", st.String())
		if err := s.transport.WaitOnline(ctx); err != nil {
			return fmt.Errorf("execute %s: %w", cmd.Kind, err)
		}
	}
	projectID, workflowID := s.Target()
	req := wire.NewRequest(s.ids.Generate(), wire.MethodExecuteCommand, projectID, workflowID, cmd)
	if err := transport.Call(ctx, s.transport, req, nil); err != nil {
		return fmt.Errorf("execute %s: %w", cmd.Kind, err)
	}
	return nil
}

// Run processes pushes in arrival order until ctx is done or the push
// queue is closed and drained. Requested resyncs run between pushes.
func (s *Session) Run(ctx context.Context) error {
	q := s.transport.Pushes()
	s.logger.Info("push loop starting")

	for {
		if _, err := s.Drain(ctx); err != nil {
			return err
		}
		if q.Closed() && q.Len() == 0 {
			s.logger.Info("push loop stopping: queue closed")
			return nil
		}

		select {
		case <-ctx.Done():
			s.logger.Info("push loop stopping: context cancelled")
			return ctx.Err()
		case <-q.Wait():
		case <-s.wake:
		}
	}
}

// Drain processes every queued push, and any resync they request, without
// blocking. It returns the number of pushes handled. Only ctx cancellation
// is returned as an error; rejected envelopes and failed resyncs are logged.
func (s *Session) Drain(ctx context.Context) (int, error) {
	q := s.transport.Pushes()
	n := 0
	for {
		if s.needResync.Swap(false) {
			if err := s.load(ctx, store.ReasonResync); err != nil {
				if ctx.Err() != nil {
					return n, ctx.Err()
				}
				s.logger.Warn("resync failed", "error", err)
			}
		}
		p, ok := q.TryDequeue()
		if !ok {
			return n, nil
		}
		_ = s.HandlePush(ctx, p)
		n++
	}
}

// HandlePush dispatches one push and journals it. The returned error is the
// envelope rejection, already logged by the dispatcher.
func (s *Session) HandlePush(ctx context.Context, p transport.Push) error {
	s.pushSeq.Store(p.Seq)
	err := s.dispatcher.HandleMessage(ctx, p.Msg)
	if s.journal != nil {
		raw, _ := p.Text()
		env := peekEnvelope(raw)
		_ = s.journal.Envelope(ctx, raw, env.EventType, env.SnapshotID, err) // logged by the journal
	}
	return err
}

// peekEnvelope extracts what it can from raw for the journal. Malformed
// input yields a zero envelope.
func peekEnvelope(raw string) wire.Envelope {
	var env wire.Envelope
	_ = json.Unmarshal([]byte(raw), &env)
	return env
}

// Watch starts the session and runs the push loop until ctx is done or
// the transport closes. The transport is closed on return.
func (s *Session) Watch(ctx context.Context) error {
	if err := s.Start(ctx); err != nil {
		_ = s.Close()
		return err
	}

	g, gctx := errgroup.WithContext(ctx)
	stopped := make(chan struct{})
	g.Go(func() error {
		defer close(stopped)
		return s.Run(gctx)
	})
	g.Go(func() error {
		select {
		case <-gctx.Done():
		case <-stopped:
		}
		return s.Close()
	})

	err := g.Wait()
	if errors.Is(err, context.Canceled) && ctx.Err() != nil {
		return nil
	}
	return err
}

// Close stops watching the transport and closes it.
func (s *Session) Close() error {
	var err error
	s.closeOnce.Do(func() {
		if s.unwatch != nil {
			s.unwatch()
		}
		err = s.transport.Close()
	})
	return err
}

// requestResync flags a resync for the push loop and wakes it.
func (s *Session) requestResync(why string) {
	if !s.needResync.Swap(true) {
		s.logger.Info("resync requested", "reason", why)
	}
	select {
	case s.wake <- struct{}{}:
	default:
	}
}

func (s *Session) checkConsistency(v *snapshot.View) {
	if v.Inconsistent {
		s.requestResync("inconsistent snapshot")
	}
}

func (s *Session) recordBatch(v *snapshot.View, r snapshot.BatchResult) {
	if s.journal != nil {
		_ = s.journal.Batch(context.Background(), v, r) // logged by the journal
	}
}

func (s *Session) onStatus(st transport.Status) {
	switch st {
	case transport.StatusReconnecting:
		s.reconnecting.Store(true)
		s.logger.Warn("connection lost, reconnecting")
	case transport.StatusOnline:
		if s.reconnecting.Swap(false) {
			s.logger.Info("connection restored")
			s.requestResync("reconnected")
		}
	case transport.StatusDisconnected:
		s.logger.Warn("transport disconnected")
	}
}

var _ canvas.CommandSink = (*Session)(nil)
