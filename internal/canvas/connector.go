package canvas

import (
	"math"

	"github.com/roach88/flowcanvas/internal/wire"
)

// connectorDrag tracks a connection being drawn from a port.
type connectorDrag struct {
	origin     PortRef
	originType string
	target     *PortRef
}

// resolveTarget finds the port the connector would snap to with the pointer
// at canvas position p. Every node whose hover region contains p proposes
// its snapped port; the one vertically nearest p wins, ties going to the
// lower node id.
func (e *Engine) resolveTarget(c *connectorDrag, wf *wire.Workflow, p Point) *PortRef {
	if wf == nil {
		return nil
	}
	side := c.origin.Side.Opposite()
	var best *PortRef
	bestDist := math.Inf(1)
	for _, id := range wf.NodeIDs() {
		if id == c.origin.NodeID {
			continue
		}
		node := wf.Nodes[id]
		region := nodeRect(node, e.cfg.NodeSize).Inflate(e.cfg.PortHoverTolerance)
		if !region.Contains(p) {
			continue
		}
		offsetY := p.Y - node.Position.Y
		offsets := e.cfg.Layout(node, side)
		idx, ok := snapTarget(node, side, offsets, offsetY, c.originType, e.cfg.Compatible)
		if !ok {
			continue
		}
		if d := math.Abs(offsets[idx] - offsetY); d < bestDist {
			best, bestDist = &PortRef{NodeID: id, Side: side, Index: idx}, d
		}
	}
	return best
}

// connectCommand orders the origin and target so data flows out -> in.
func connectCommand(origin, target PortRef) wire.Command {
	if origin.Side == SideOut {
		return wire.Connect(origin.NodeID, origin.Index, target.NodeID, target.Index)
	}
	return wire.Connect(target.NodeID, target.Index, origin.NodeID, origin.Index)
}

func portType(wf *wire.Workflow, ref PortRef) (string, bool) {
	if wf == nil {
		return "", false
	}
	node, ok := wf.Nodes[ref.NodeID]
	if !ok {
		return "", false
	}
	ports := portsOf(node, ref.Side)
	if ref.Index < 0 || ref.Index >= len(ports) {
		return "", false
	}
	return ports[ref.Index].TypeID, true
}
