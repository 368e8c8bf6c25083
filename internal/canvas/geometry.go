package canvas

import (
	"math"

	"github.com/roach88/flowcanvas/internal/wire"
)

// Point is a 2D position or vector.
type Point struct {
	X float64
	Y float64
}

// Add returns p+q.
func (p Point) Add(q Point) Point { return Point{p.X + q.X, p.Y + q.Y} }

// Sub returns p-q.
func (p Point) Sub(q Point) Point { return Point{p.X - q.X, p.Y - q.Y} }

// Scale returns p*f.
func (p Point) Scale(f float64) Point { return Point{p.X * f, p.Y * f} }

// IsZero reports whether both components are zero.
func (p Point) IsZero() bool { return p.X == 0 && p.Y == 0 }

// XY converts p to the wire type.
func (p Point) XY() wire.XY { return wire.XY{X: p.X, Y: p.Y} }

// FromXY converts a wire position to a Point.
func FromXY(xy wire.XY) Point { return Point{xy.X, xy.Y} }

// Rect is an axis-aligned rectangle with Min <= Max on both axes.
type Rect struct {
	Min Point
	Max Point
}

// RectFromCorners normalizes two arbitrary corners into a Rect.
func RectFromCorners(a, b Point) Rect {
	return Rect{
		Min: Point{math.Min(a.X, b.X), math.Min(a.Y, b.Y)},
		Max: Point{math.Max(a.X, b.X), math.Max(a.Y, b.Y)},
	}
}

// RectFromBounds converts wire bounds.
func RectFromBounds(b wire.Bounds) Rect {
	return RectFromCorners(Point{b.X, b.Y}, Point{b.X + b.Width, b.Y + b.Height})
}

// Width of r.
func (r Rect) Width() float64 { return r.Max.X - r.Min.X }

// Height of r.
func (r Rect) Height() float64 { return r.Max.Y - r.Min.Y }

// Intersects reports whether r and o overlap. Touching edges count.
func (r Rect) Intersects(o Rect) bool {
	return r.Min.X <= o.Max.X && o.Min.X <= r.Max.X &&
		r.Min.Y <= o.Max.Y && o.Min.Y <= r.Max.Y
}

// Contains reports whether p lies inside r, edges included.
func (r Rect) Contains(p Point) bool {
	return p.X >= r.Min.X && p.X <= r.Max.X && p.Y >= r.Min.Y && p.Y <= r.Max.Y
}

// Inflate grows r by d on every side.
func (r Rect) Inflate(d float64) Rect {
	return Rect{Min: Point{r.Min.X - d, r.Min.Y - d}, Max: Point{r.Max.X + d, r.Max.Y + d}}
}

// Union returns the smallest rect containing r and o.
func (r Rect) Union(o Rect) Rect {
	return Rect{
		Min: Point{math.Min(r.Min.X, o.Min.X), math.Min(r.Min.Y, o.Min.Y)},
		Max: Point{math.Max(r.Max.X, o.Max.X), math.Max(r.Max.Y, o.Max.Y)},
	}
}
