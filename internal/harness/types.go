package harness

// Trace event types.
const (
	EventRequest = "request"
	EventCommand = "command"
	EventPush    = "push"
	EventBatch   = "batch"
	EventPreview = "preview"
	EventError   = "error"
)

// TraceEvent is one observable effect of a scenario run.
type TraceEvent struct {
	Type   string `json:"type"`
	Name   string `json:"name,omitempty"`
	Detail any    `json:"detail,omitempty"`
	Seq    int64  `json:"seq"`
}

// Result is the outcome of a scenario run.
type Result struct {
	// Pass is true when every step ran and every assertion held.
	Pass bool `json:"pass"`

	// Trace holds the run's events in order.
	Trace []TraceEvent `json:"trace"`

	// Errors holds step failures and assertion failures.
	Errors []string `json:"errors,omitempty"`

	// Workflow is the final mounted workflow as generic JSON.
	Workflow any `json:"workflow,omitempty"`

	// Selection is the final local selection.
	Selection SelectionState `json:"selection"`

	// SnapshotID and Inconsistent describe the final view.
	SnapshotID   string `json:"snapshot_id,omitempty"`
	Inconsistent bool   `json:"inconsistent,omitempty"`
}

// SelectionState lists selected ids in sorted order.
type SelectionState struct {
	Nodes       []string `json:"nodes"`
	Annotations []string `json:"annotations"`
}

// NewResult creates a new passing result.
func NewResult() *Result {
	return &Result{
		Pass:      true,
		Trace:     []TraceEvent{},
		Errors:    []string{},
		Selection: SelectionState{Nodes: []string{}, Annotations: []string{}},
	}
}

// AddError adds an error message and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}

// AddTrace appends an event and returns its index.
func (r *Result) AddTrace(typ, name string, detail any, seq int64) int {
	r.Trace = append(r.Trace, TraceEvent{Type: typ, Name: name, Detail: detail, Seq: seq})
	return len(r.Trace) - 1
}
