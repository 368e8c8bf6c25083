package snapshot

import (
	"encoding/json"
	"fmt"

	"github.com/roach88/flowcanvas/internal/wire"
)

// View is one immutable state of the synchronized document.
type View struct {
	// Version counts applied batches and loads since the Synchronizer was created.
	Version int64

	// SnapshotID is the last consistency token received from the backend.
	SnapshotID string

	// Mount is the segment the workflow lives under in Document.
	Mount string

	// Document is the full JSON document, {"<mount>": <workflow>}.
	Document []byte

	// Workflow is the typed decoding of the mounted workflow.
	Workflow *wire.Workflow

	// Inconsistent is set when an operation could not be applied since the
	// last full load. A higher layer should request a resync.
	Inconsistent bool
}

// Digest returns the content digest of the document.
func (v *View) Digest() (string, error) {
	return wire.Digest(v.Document)
}

// WorkflowJSON returns the mounted workflow as raw JSON.
func (v *View) WorkflowJSON() (json.RawMessage, error) {
	return extractMount(v.Document, v.Mount)
}

func (v *View) with(fn func(*View)) *View {
	next := *v
	fn(&next)
	return &next
}

func extractMount(doc []byte, mount string) (json.RawMessage, error) {
	var root map[string]json.RawMessage
	if err := json.Unmarshal(doc, &root); err != nil {
		return nil, fmt.Errorf("decode document: %w", err)
	}
	raw, ok := root[mount]
	if !ok {
		return nil, fmt.Errorf("document has no %q mount", mount)
	}
	return raw, nil
}

func mountDocument(mount string, workflow json.RawMessage) ([]byte, error) {
	doc, err := json.Marshal(map[string]json.RawMessage{mount: workflow})
	if err != nil {
		return nil, fmt.Errorf("build document: %w", err)
	}
	return doc, nil
}

func decodeView(doc []byte, mount string) (*wire.Workflow, error) {
	raw, err := extractMount(doc, mount)
	if err != nil {
		return nil, err
	}
	return wire.DecodeWorkflow(raw)
}
