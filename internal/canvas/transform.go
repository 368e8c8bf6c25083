package canvas

import (
	"fmt"
	"math"
)

// Default zoom limits.
const (
	DefaultMinZoom = 0.1
	DefaultMaxZoom = 5.0
)

// Transform is the canvas zoom and pan state.
type Transform struct {
	Zoom   float64
	Offset Point
}

// Identity is zoom 1 with no offset.
var Identity = Transform{Zoom: 1}

// ScreenToCanvas converts a screen point given the screen position of the
// canvas element's origin.
func (t Transform) ScreenToCanvas(origin, p Point) Point {
	return p.Sub(origin).Sub(t.Offset).Scale(1 / t.Zoom)
}

// CanvasToScreen is the inverse of ScreenToCanvas.
func (t Transform) CanvasToScreen(origin, p Point) Point {
	return p.Scale(t.Zoom).Add(t.Offset).Add(origin)
}

// Viewport owns the process-wide Transform together with the canvas
// element's screen origin and size. Conversions are computed from the
// current values on every call.
type Viewport struct {
	transform Transform
	origin    Point
	size      Point
	minZoom   float64
	maxZoom   float64
}

// ViewportOption configures a Viewport.
type ViewportOption func(*Viewport)

// WithZoomLimits clamps zoom to [min, max].
func WithZoomLimits(min, max float64) ViewportOption {
	return func(v *Viewport) {
		if min > 0 && max >= min {
			v.minZoom, v.maxZoom = min, max
		}
	}
}

// WithOrigin sets the screen position of the canvas element.
func WithOrigin(origin Point) ViewportOption {
	return func(v *Viewport) { v.origin = origin }
}

// WithSize sets the on-screen size of the canvas element.
func WithSize(width, height float64) ViewportOption {
	return func(v *Viewport) { v.size = Point{width, height} }
}

// NewViewport creates a viewport at zoom 1.
func NewViewport(opts ...ViewportOption) *Viewport {
	v := &Viewport{
		transform: Identity,
		minZoom:   DefaultMinZoom,
		maxZoom:   DefaultMaxZoom,
	}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

// Transform returns the current transform.
func (v *Viewport) Transform() Transform { return v.transform }

// Origin returns the canvas element's screen origin.
func (v *Viewport) Origin() Point { return v.origin }

// Size returns the canvas element's size.
func (v *Viewport) Size() Point { return v.size }

// ScreenToCanvas converts a screen point to canvas space.
func (v *Viewport) ScreenToCanvas(p Point) Point {
	return v.transform.ScreenToCanvas(v.origin, p)
}

// CanvasToScreen converts a canvas point to screen space.
func (v *Viewport) CanvasToScreen(p Point) Point {
	return v.transform.CanvasToScreen(v.origin, p)
}

// SetTransform replaces the transform. Zoom must be positive.
func (v *Viewport) SetTransform(t Transform) error {
	if !(t.Zoom > 0) || math.IsInf(t.Zoom, 0) {
		return fmt.Errorf("zoom must be positive and finite, got %v", t.Zoom)
	}
	t.Zoom = v.clamp(t.Zoom)
	v.transform = t
	return nil
}

// Pan shifts the canvas by a screen-space delta.
func (v *Viewport) Pan(delta Point) {
	v.transform.Offset = v.transform.Offset.Add(delta)
}

// ZoomAround multiplies zoom by factor while keeping the canvas point under
// the screen pivot fixed.
func (v *Viewport) ZoomAround(factor float64, pivot Point) {
	if !(factor > 0) {
		return
	}
	anchor := v.ScreenToCanvas(pivot)
	zoom := v.clamp(v.transform.Zoom * factor)
	v.transform = Transform{
		Zoom:   zoom,
		Offset: pivot.Sub(v.origin).Sub(anchor.Scale(zoom)),
	}
}

// Resize records a new element origin and size. The transform is kept, so
// canvas content stays attached to the element's top-left corner.
func (v *Viewport) Resize(origin Point, width, height float64) {
	v.origin = origin
	v.size = Point{width, height}
}

// FitToContent chooses a zoom and offset that show content centered with
// padding screen pixels around it.
func (v *Viewport) FitToContent(content Rect, padding float64) {
	w, h := content.Width(), content.Height()
	availW, availH := v.size.X-2*padding, v.size.Y-2*padding
	if availW <= 0 || availH <= 0 {
		return
	}
	zoom := v.maxZoom
	if w > 0 {
		zoom = math.Min(zoom, availW/w)
	}
	if h > 0 {
		zoom = math.Min(zoom, availH/h)
	}
	zoom = v.clamp(zoom)
	center := Point{content.Min.X + w/2, content.Min.Y + h/2}
	v.transform = Transform{
		Zoom:   zoom,
		Offset: v.size.Scale(0.5).Sub(center.Scale(zoom)),
	}
}

func (v *Viewport) clamp(z float64) float64 {
	return math.Max(v.minZoom, math.Min(v.maxZoom, z))
}
