package store

import (
	"encoding/json"

	"github.com/roach88/flowcanvas/internal/wire"
)

// EnvelopeRecord is one raw push message as received.
type EnvelopeRecord struct {
	Seq        int64
	SessionID  string
	EventType  string
	SnapshotID string
	Raw        string
	// Rejected is set when the dispatcher refused the envelope; Error holds
	// the reason.
	Rejected bool
	Error    string
}

// SnapshotReason says why a snapshot was loaded wholesale.
type SnapshotReason string

const (
	ReasonLoad   SnapshotReason = "load"
	ReasonResync SnapshotReason = "resync"
	ReasonSwitch SnapshotReason = "switch"
)

// SnapshotRecord is one wholesale load of the synchronized workflow.
type SnapshotRecord struct {
	Seq        int64
	SessionID  string
	ProjectID  string
	WorkflowID string
	SnapshotID string
	Mount      string
	Reason     SnapshotReason
	// Workflow is the mounted workflow document in canonical JSON.
	Workflow json.RawMessage
	// Digest is the digest of the full synchronizer document after the load.
	Digest string
}

// BatchRecord is one patch batch applied to the synchronizer.
type BatchRecord struct {
	Seq          int64
	SessionID    string
	SnapshotID   string
	Version      int64
	Ops          []wire.PatchOperation
	OpsDigest    string
	Applied      int
	Anomalies    int
	Inconsistent bool
	// Digest is the digest of the full document after the batch.
	Digest string
}
