package snapshot

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"sync"
	"sync/atomic"

	jsonpatch "github.com/evanphx/json-patch/v5"

	"github.com/roach88/flowcanvas/internal/wire"
)

// DefaultMount is the document segment the workflow is mounted under.
const DefaultMount = "activeWorkflow"

// emptyWorkflow is the document mounted before the first load.
var emptyWorkflow = json.RawMessage(`{"info":{"containerId":""},"nodes":{},"connections":{},"workflowAnnotations":{}}`)

// Anomaly records one operation that could not be applied.
type Anomaly struct {
	Index int
	Op    wire.PatchOperation
	Path  string // rebased path
	Err   error
}

func (a Anomaly) Error() string {
	return fmt.Sprintf("op %d (%s %s): %v", a.Index, a.Op.Op, a.Path, a.Err)
}

// BatchResult summarizes one ApplyPatch call.
type BatchResult struct {
	Ops       []wire.PatchOperation
	Applied   int
	Anomalies []Anomaly
	Version   int64
}

// OK reports whether every operation applied.
func (r BatchResult) OK() bool {
	return len(r.Anomalies) == 0
}

// Synchronizer applies backend patches to the workflow document.
//
// Thread-safety model:
//   - View(): safe from any goroutine
//   - Load(), ApplyPatch(), OnSnapshotAdvance(): serialized internally, so
//     two batches are never interleaved
type Synchronizer struct {
	mu      sync.Mutex
	mount   string
	view    atomic.Pointer[View]
	logger  *slog.Logger
	check   func(*View)
	observe []func(*View, BatchResult)
}

// Option configures a Synchronizer.
type Option func(*Synchronizer)

// WithMount overrides the mount segment.
func WithMount(mount string) Option {
	return func(s *Synchronizer) {
		if mount != "" {
			s.mount = mount
		}
	}
}

// WithLogger sets the logger for patch anomalies.
func WithLogger(l *slog.Logger) Option {
	return func(s *Synchronizer) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithConsistencyCheck installs the side-channel check run whenever a
// snapshot id arrives.
func WithConsistencyCheck(fn func(*View)) Option {
	return func(s *Synchronizer) {
		s.check = fn
	}
}

// WithBatchObserver registers fn to be called after every applied batch.
func WithBatchObserver(fn func(*View, BatchResult)) Option {
	return func(s *Synchronizer) {
		if fn != nil {
			s.observe = append(s.observe, fn)
		}
	}
}

// New creates a Synchronizer holding an empty workflow.
func New(opts ...Option) *Synchronizer {
	s := &Synchronizer{
		mount:  DefaultMount,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}

	doc, err := mountDocument(s.mount, emptyWorkflow)
	if err != nil {
		panic(err) // static document, cannot fail
	}
	wf, err := decodeView(doc, s.mount)
	if err != nil {
		panic(err)
	}
	s.view.Store(&View{Mount: s.mount, Document: doc, Workflow: wf})
	return s
}

// Mount returns the mount segment.
func (s *Synchronizer) Mount() string {
	return s.mount
}

// View returns the current immutable view.
func (s *Synchronizer) View() *View {
	return s.view.Load()
}

// Load replaces the snapshot wholesale, clearing the inconsistent flag.
// Used for the initial load, for a full resync and for a project switch.
func (s *Synchronizer) Load(workflow json.RawMessage, snapshotID string) (*View, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, err := mountDocument(s.mount, workflow)
	if err != nil {
		return nil, err
	}
	wf, err := decodeView(doc, s.mount)
	if err != nil {
		return nil, fmt.Errorf("load: %w", err)
	}
	prev := s.view.Load()
	next := &View{
		Version:    prev.Version + 1,
		SnapshotID: snapshotID,
		Mount:      s.mount,
		Document:   doc,
		Workflow:   wf,
	}
	s.view.Store(next)
	s.logger.Info("snapshot loaded",
		"version", next.Version,
		"snapshot_id", snapshotID,
		"nodes", len(wf.Nodes),
	)
	return next, nil
}

// ApplyPatch applies ops in order as one transaction.
//
// Each operation is rebased and applied to a working copy. An operation
// that cannot be applied is logged, recorded as an anomaly and skipped; the
// remaining operations still apply. The working copy is published as a new
// View only after the last operation, and the view is flagged inconsistent
// if any anomaly occurred.
func (s *Synchronizer) ApplyPatch(ops []wire.PatchOperation) BatchResult {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.applyLocked(ops)
}

func (s *Synchronizer) applyLocked(ops []wire.PatchOperation) BatchResult {
	prev := s.view.Load()
	result := BatchResult{Ops: ops, Version: prev.Version}
	if len(ops) == 0 {
		return result
	}

	doc := prev.Document
	for i, op := range ops {
		next, rebased, err := applyOne(doc, s.mount, op)
		if err != nil {
			a := Anomaly{Index: i, Op: op, Path: rebased, Err: err}
			result.Anomalies = append(result.Anomalies, a)
			s.logger.Warn("patch operation not applied",
				"index", i,
				"op", string(op.Op),
				"path", op.Path,
				"error", err,
			)
			continue
		}
		doc = next
		result.Applied++
	}

	inconsistent := prev.Inconsistent || len(result.Anomalies) > 0
	wf, err := decodeView(doc, s.mount)
	if err != nil {
		// The document is still what the backend told us; only the typed
		// view could not be rebuilt. Keep the last good typed view.
		s.logger.Warn("patched workflow could not be decoded", "error", err)
		wf = prev.Workflow
		inconsistent = true
	}

	next := &View{
		Version:      prev.Version + 1,
		SnapshotID:   prev.SnapshotID,
		Mount:        s.mount,
		Document:     doc,
		Workflow:     wf,
		Inconsistent: inconsistent,
	}
	s.view.Store(next)
	result.Version = next.Version

	if inconsistent && !prev.Inconsistent {
		s.logger.Warn("snapshot possibly inconsistent", "version", next.Version)
	}
	for _, fn := range s.observe {
		fn(next, result)
	}
	return result
}

func applyOne(doc []byte, mount string, op wire.PatchOperation) ([]byte, string, error) {
	rebased, err := Rebase(mount, op.Path)
	if err != nil {
		return nil, op.Path, err
	}
	if err := op.Validate(); err != nil {
		return nil, rebased, err
	}
	encoded, err := json.Marshal([]wire.PatchOperation{{Op: op.Op, Path: rebased, Value: op.Value}})
	if err != nil {
		return nil, rebased, fmt.Errorf("encode op: %w", err)
	}
	patch, err := jsonpatch.DecodePatch(encoded)
	if err != nil {
		return nil, rebased, fmt.Errorf("decode op: %w", err)
	}
	out, err := patch.Apply(doc)
	if err != nil {
		return nil, rebased, err
	}
	return out, rebased, nil
}

// ApplyWorkflowChanged applies the patch of a WorkflowChangedEvent and then
// advances the snapshot id when one is present. envelopeSnapshotID is used
// when the payload itself carries none.
func (s *Synchronizer) ApplyWorkflowChanged(ev wire.WorkflowChanged, envelopeSnapshotID string) BatchResult {
	result := s.ApplyPatch(ev.Patch.Ops)
	id := ev.SnapshotID
	if id == "" {
		id = envelopeSnapshotID
	}
	if id != "" {
		s.OnSnapshotAdvance(id)
	}
	return result
}

// OnSnapshotAdvance records a new consistency token and runs the
// consistency check. A numeric token lower than the current one means the
// client has drifted and flags the view inconsistent.
func (s *Synchronizer) OnSnapshotAdvance(id string) {
	s.mu.Lock()
	prev := s.view.Load()
	regressed := isRegression(prev.SnapshotID, id)
	next := prev.with(func(v *View) {
		v.SnapshotID = id
		if regressed {
			v.Inconsistent = true
		}
	})
	s.view.Store(next)
	check := s.check
	s.mu.Unlock()

	if regressed {
		s.logger.Warn("snapshot id moved backwards", "previous", prev.SnapshotID, "snapshot_id", id)
	}
	if check != nil {
		check(next)
	}
}

func isRegression(prev, next string) bool {
	p, err := strconv.ParseInt(prev, 10, 64)
	if err != nil {
		return false
	}
	n, err := strconv.ParseInt(next, 10, 64)
	if err != nil {
		return false
	}
	return n < p
}
