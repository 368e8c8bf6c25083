package canvas

import "math"

// Grid is the snapping cell size.
type Grid struct {
	X float64
	Y float64
}

// Snap rounds each axis of d to the nearest multiple of the cell size.
// A non-positive cell size leaves that axis unchanged.
func (g Grid) Snap(d Point) Point {
	return Point{snapAxis(d.X, g.X), snapAxis(d.Y, g.Y)}
}

func snapAxis(v, cell float64) float64 {
	if cell <= 0 {
		return v
	}
	return math.Round(v/cell) * cell
}

// moveDrag tracks one node or annotation move gesture.
type moveDrag struct {
	// origin is the dragged item's canvas position at pointer-down.
	origin Point
	// pointerOffset is the pointer's canvas offset from origin at pointer-down.
	pointerOffset Point

	nodeIDs       []string
	annotationIDs []string
}

// delta computes the move for the pointer at canvasPointer.
func (m *moveDrag) delta(canvasPointer Point, grid Grid, noSnap bool) Point {
	raw := canvasPointer.Sub(m.origin).Sub(m.pointerOffset)
	if noSnap {
		return raw
	}
	return grid.Snap(raw)
}
