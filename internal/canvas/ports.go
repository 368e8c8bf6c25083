package canvas

import (
	"math"
	"sort"

	"github.com/roach88/flowcanvas/internal/wire"
)

// PortSide is the input or output side of a node.
type PortSide int

const (
	SideIn PortSide = iota + 1
	SideOut
)

// Opposite returns the other side.
func (s PortSide) Opposite() PortSide {
	if s == SideIn {
		return SideOut
	}
	return SideIn
}

func (s PortSide) String() string {
	switch s {
	case SideIn:
		return "in"
	case SideOut:
		return "out"
	}
	return "unknown"
}

// PortRef addresses one port.
type PortRef struct {
	NodeID string
	Side   PortSide
	Index  int
}

// SnapPartition returns the midpoints between consecutive port offsets.
// offsets must be sorted ascending; the result has len(offsets)-1 entries.
func SnapPartition(offsets []float64) []float64 {
	if len(offsets) < 2 {
		return nil
	}
	mids := make([]float64, len(offsets)-1)
	for i := 1; i < len(offsets); i++ {
		mids[i-1] = (offsets[i-1] + offsets[i]) / 2
	}
	return mids
}

// ClassifyOffset maps an offset to a port index using the partition from
// SnapPartition. A value equal to a boundary belongs to the lower port.
//
// With ports at -5, 5, 15 the partition is [0, 10] and offsets
// -10, 0, 1, 10, 11 map to 0, 0, 1, 1, 2.
func ClassifyOffset(partition []float64, offset float64) int {
	return sort.SearchFloat64s(partition, offset)
}

// PortLayout returns the vertical offsets, relative to the node origin, of
// the ports on one side of a node, in port index order.
type PortLayout func(node wire.Node, side PortSide) []float64

// Compatibility decides whether data of fromType can flow into toType.
type Compatibility func(fromType, toType string) bool

// GenericPortType accepts any input.
const GenericPortType = "generic"

// DefaultCompatibility accepts equal type ids and anything into a generic port.
func DefaultCompatibility(fromType, toType string) bool {
	return fromType == toType || toType == GenericPortType || fromType == GenericPortType
}

// EvenPortLayout spaces ports by spacing, centered on the vertical middle
// of a node of the given size.
func EvenPortLayout(nodeSize, spacing float64) PortLayout {
	return func(node wire.Node, side PortSide) []float64 {
		ports := portsOf(node, side)
		n := len(ports)
		offsets := make([]float64, n)
		center := nodeSize / 2
		for i := range ports {
			offsets[i] = center + (float64(i)-float64(n-1)/2)*spacing
		}
		return offsets
	}
}

func portsOf(node wire.Node, side PortSide) []wire.Port {
	if side == SideIn {
		return node.InPorts
	}
	return node.OutPorts
}

// snapTarget resolves the port of node on side nearest to offsetY that is
// compatible with the origin port. ok is false when no port qualifies.
func snapTarget(node wire.Node, side PortSide, offsets []float64, offsetY float64, originType string, compatible Compatibility) (int, bool) {
	ports := portsOf(node, side)
	if len(ports) == 0 || len(offsets) != len(ports) {
		return 0, false
	}

	accepts := func(i int) bool {
		if side == SideIn {
			return compatible(originType, ports[i].TypeID)
		}
		return compatible(ports[i].TypeID, originType)
	}

	idx := ClassifyOffset(SnapPartition(offsets), offsetY)
	if accepts(idx) {
		return idx, true
	}

	best, bestDist := -1, math.Inf(1)
	for i := range ports {
		if !accepts(i) {
			continue
		}
		if d := math.Abs(offsets[i] - offsetY); d < bestDist {
			best, bestDist = i, d
		}
	}
	return best, best >= 0
}
