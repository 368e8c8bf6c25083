package wire

import (
	"encoding/json"
	"fmt"
)

// PatchOp is the operation name of a patch entry.
type PatchOp string

const (
	OpAdd     PatchOp = "add"
	OpReplace PatchOp = "replace"
	OpRemove  PatchOp = "remove"
)

// PatchOperation addresses one location in the workflow document by path.
// Paths arrive relative to the workflow root.
type PatchOperation struct {
	Op    PatchOp         `json:"op"`
	Path  string          `json:"path"`
	Value json.RawMessage `json:"value,omitempty"`
}

// Validate checks the operation name and that the path is a JSON Pointer.
func (o PatchOperation) Validate() error {
	switch o.Op {
	case OpAdd, OpReplace:
		if len(o.Value) == 0 {
			return fmt.Errorf("%s %q: value is required", o.Op, o.Path)
		}
	case OpRemove:
	default:
		return fmt.Errorf("unsupported patch op %q", o.Op)
	}
	if o.Path != "" && o.Path[0] != '/' {
		return fmt.Errorf("path %q must start with '/'", o.Path)
	}
	return nil
}

// Envelope is the outer wrapper of every push notification.
type Envelope struct {
	EventType  string          `json:"eventType"`
	Payload    json.RawMessage `json:"payload,omitempty"`
	SnapshotID string          `json:"snapshotId,omitempty"`
}

// Patch carries the operations of a workflow change.
type Patch struct {
	Ops []PatchOperation `json:"ops"`
}

// WorkflowChanged is the payload of a WorkflowChangedEvent. ProjectID and
// WorkflowID name the workflow the patch belongs to when the backend tags it.
type WorkflowChanged struct {
	Patch      Patch  `json:"patch"`
	SnapshotID string `json:"snapshotId,omitempty"`
	ProjectID  string `json:"projectId,omitempty"`
	WorkflowID string `json:"workflowId,omitempty"`
}

// CompositePayload carries the parallel sub-event arrays of a composite envelope.
type CompositePayload struct {
	Events []string          `json:"events"`
	Params []json.RawMessage `json:"params"`
}

// DirtyState is the payload of a ProjectDirtyStateEvent.
type DirtyState struct {
	ProjectID string `json:"projectId"`
	Dirty     bool   `json:"dirty"`
}

// AppState is the payload of an AppStateChangedEvent.
type AppState struct {
	OpenProjects []OpenProject `json:"openProjects,omitempty"`
	DevMode      bool          `json:"devMode,omitempty"`
}

// OpenProject names one project the backend has open.
type OpenProject struct {
	ProjectID  string `json:"projectId"`
	Name       string `json:"name"`
	WorkflowID string `json:"activeWorkflowId,omitempty"`
}

// Toast is the payload of a ShowToastEvent.
type Toast struct {
	Type     string `json:"type"`
	Headline string `json:"headline,omitempty"`
	Message  string `json:"message"`
}

// UpdateAvailable is the payload of an UpdateAvailableEvent.
type UpdateAvailable struct {
	Version string `json:"version"`
	Notes   string `json:"notes,omitempty"`
}

// DecodePayload unmarshals a raw payload into T.
func DecodePayload[T any](raw json.RawMessage) (T, error) {
	var v T
	if len(raw) == 0 {
		return v, fmt.Errorf("decode %T: empty payload", v)
	}
	if err := json.Unmarshal(raw, &v); err != nil {
		return v, fmt.Errorf("decode %T: %w", v, err)
	}
	return v, nil
}
