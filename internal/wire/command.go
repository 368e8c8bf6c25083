package wire

import "golang.org/x/text/unicode/norm"

// Service method names.
const (
	MethodExecuteCommand = "WorkflowService.executeWorkflowCommand"
	MethodGetWorkflow    = "WorkflowService.getWorkflow"
)

// CommandKind discriminates workflow commands.
type CommandKind string

const (
	KindConnect         CommandKind = "connect"
	KindTranslate       CommandKind = "translate"
	KindDelete          CommandKind = "delete"
	KindAddNode         CommandKind = "add_node"
	KindCollapse        CommandKind = "collapse"
	KindExpand          CommandKind = "expand"
	KindCopy            CommandKind = "copy"
	KindCut             CommandKind = "cut"
	KindPaste           CommandKind = "paste"
	KindAddPort         CommandKind = "add_port"
	KindRenameNodeLabel CommandKind = "update_node_label"
	KindRenameContainer CommandKind = "update_component_or_metanode_name"
)

// Command is the command object sent as the third parameter of
// WorkflowService.executeWorkflowCommand. Only the fields relevant to Kind
// are populated.
type Command struct {
	Kind CommandKind `json:"kind"`

	// connect
	SourceNodeID       string `json:"sourceNodeId,omitempty"`
	SourcePortIdx      *int   `json:"sourcePortIdx,omitempty"`
	DestinationNodeID  string `json:"destinationNodeId,omitempty"`
	DestinationPortIdx *int   `json:"destinationPortIdx,omitempty"`

	// translate, delete, collapse, copy, cut
	NodeIDs       []string `json:"nodeIds,omitempty"`
	AnnotationIDs []string `json:"annotationIds,omitempty"`
	ConnectionIDs []string `json:"connectionIds,omitempty"`
	Translation   *XY      `json:"translation,omitempty"`

	// add_node, paste
	Position      *XY    `json:"position,omitempty"`
	NodeFactoryID string `json:"nodeFactory,omitempty"`
	Content       string `json:"content,omitempty"`

	// collapse, expand
	ContainerType string `json:"containerType,omitempty"`
	NodeID        string `json:"nodeId,omitempty"`

	// add_port
	Side       string `json:"side,omitempty"`
	PortTypeID string `json:"portTypeId,omitempty"`

	// rename variants
	Label string `json:"label,omitempty"`
	Name  string `json:"name,omitempty"`
}

func intPtr(v int) *int { return &v }

// Connect builds a connect command from an output port to an input port.
func Connect(sourceNode string, sourcePort int, destNode string, destPort int) Command {
	return Command{
		Kind:               KindConnect,
		SourceNodeID:       sourceNode,
		SourcePortIdx:      intPtr(sourcePort),
		DestinationNodeID:  destNode,
		DestinationPortIdx: intPtr(destPort),
	}
}

// Translate moves nodes and annotations by delta.
func Translate(nodeIDs, annotationIDs []string, delta XY) Command {
	return Command{
		Kind:          KindTranslate,
		NodeIDs:       nodeIDs,
		AnnotationIDs: annotationIDs,
		Translation:   &delta,
	}
}

// Delete removes nodes, annotations and connections.
func Delete(nodeIDs, annotationIDs, connectionIDs []string) Command {
	return Command{
		Kind:          KindDelete,
		NodeIDs:       nodeIDs,
		AnnotationIDs: annotationIDs,
		ConnectionIDs: connectionIDs,
	}
}

// AddNode places a new node created by factoryID at position.
func AddNode(factoryID string, position XY) Command {
	return Command{Kind: KindAddNode, NodeFactoryID: factoryID, Position: &position}
}

// Collapse wraps the given nodes and annotations into a new container.
func Collapse(containerType string, nodeIDs, annotationIDs []string) Command {
	return Command{
		Kind:          KindCollapse,
		ContainerType: containerType,
		NodeIDs:       nodeIDs,
		AnnotationIDs: annotationIDs,
	}
}

// Expand dissolves a container node into its parent workflow.
func Expand(containerType, nodeID string) Command {
	return Command{Kind: KindExpand, ContainerType: containerType, NodeID: nodeID}
}

// Copy copies the given parts to the backend clipboard.
func Copy(nodeIDs, annotationIDs []string) Command {
	return Command{Kind: KindCopy, NodeIDs: nodeIDs, AnnotationIDs: annotationIDs}
}

// Cut copies and removes the given parts.
func Cut(nodeIDs, annotationIDs []string) Command {
	return Command{Kind: KindCut, NodeIDs: nodeIDs, AnnotationIDs: annotationIDs}
}

// Paste inserts previously copied content at position.
func Paste(content string, position XY) Command {
	return Command{Kind: KindPaste, Content: content, Position: &position}
}

// AddPort adds a port of portTypeID to the "input" or "output" side of nodeID.
func AddPort(nodeID, side, portTypeID string) Command {
	return Command{Kind: KindAddPort, NodeID: nodeID, Side: side, PortTypeID: portTypeID}
}

// RenameNodeLabel sets the free-text label below a node.
func RenameNodeLabel(nodeID, label string) Command {
	return Command{Kind: KindRenameNodeLabel, NodeID: nodeID, Label: norm.NFC.String(label)}
}

// RenameContainer renames a component or metanode.
func RenameContainer(nodeID, name string) Command {
	return Command{Kind: KindRenameContainer, NodeID: nodeID, Name: norm.NFC.String(name)}
}
