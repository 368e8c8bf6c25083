package wire

import (
	"encoding/json"
	"fmt"
	"sort"
)

// XY is a position in canvas space.
type XY struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Bounds is an axis-aligned box in canvas space.
type Bounds struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// Port describes one input or output port of a node.
type Port struct {
	Index        int      `json:"index"`
	TypeID       string   `json:"typeId"`
	Name         string   `json:"name,omitempty"`
	Optional     bool     `json:"optional,omitempty"`
	ConnectedVia []string `json:"connectedVia,omitempty"`
}

// NodeKind distinguishes plain nodes from containers.
type NodeKind string

const (
	NodeKindNative    NodeKind = "node"
	NodeKindComponent NodeKind = "component"
	NodeKindMetanode  NodeKind = "metanode"
)

// Node is a single vertex on the canvas.
type Node struct {
	ID       string   `json:"id"`
	Kind     NodeKind `json:"kind"`
	Name     string   `json:"name,omitempty"`
	Label    string   `json:"label,omitempty"`
	Position XY       `json:"position"`
	InPorts  []Port   `json:"inPorts,omitempty"`
	OutPorts []Port   `json:"outPorts,omitempty"`
	State    string   `json:"state,omitempty"`
}

// Connection links an output port of one node to an input port of another.
type Connection struct {
	ID         string `json:"id"`
	SourceNode string `json:"sourceNode"`
	SourcePort int    `json:"sourcePort"`
	DestNode   string `json:"destNode"`
	DestPort   int    `json:"destPort"`
}

// Annotation is a freeform text box on the canvas.
type Annotation struct {
	ID     string `json:"id"`
	Bounds Bounds `json:"bounds"`
	Text   string `json:"text,omitempty"`
}

// ContainerInfo is metadata about the workflow container itself.
type ContainerInfo struct {
	ContainerID   string `json:"containerId"`
	ContainerType string `json:"containerType,omitempty"`
	Name          string `json:"name,omitempty"`
	Linked        bool   `json:"linked,omitempty"`
}

// Workflow is the typed view of one workflow snapshot.
type Workflow struct {
	Info        ContainerInfo         `json:"info"`
	Nodes       map[string]Node       `json:"nodes"`
	Connections map[string]Connection `json:"connections"`
	Annotations map[string]Annotation `json:"workflowAnnotations"`
}

// DecodeWorkflow decodes a JSON document into a Workflow and fills in nil maps.
func DecodeWorkflow(data []byte) (*Workflow, error) {
	var wf Workflow
	if err := json.Unmarshal(data, &wf); err != nil {
		return nil, fmt.Errorf("decode workflow: %w", err)
	}
	if wf.Nodes == nil {
		wf.Nodes = map[string]Node{}
	}
	if wf.Connections == nil {
		wf.Connections = map[string]Connection{}
	}
	if wf.Annotations == nil {
		wf.Annotations = map[string]Annotation{}
	}
	return &wf, nil
}

// NodeIDs returns node ids in sorted order.
func (w *Workflow) NodeIDs() []string {
	ids := make([]string, 0, len(w.Nodes))
	for id := range w.Nodes {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// AnnotationIDs returns annotation ids in sorted order.
func (w *Workflow) AnnotationIDs() []string {
	ids := make([]string, 0, len(w.Annotations))
	for id := range w.Annotations {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
