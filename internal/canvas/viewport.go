// Package canvas implements the editor-session geometry of the flow
// canvas: the screen/world coordinate transform, node-card anchors and
// hit-testing, and the pointer interaction state machine. Nothing in
// this package touches persistence; it drives the mutation layer and
// is fully testable without a UI.
package canvas

// Canvas extent and node card geometry in world units. Node positions
// are clamped so a card can never leave the canvas.
const (
	CanvasWidth  = 2000.0
	CanvasHeight = 1200.0
	NodeWidth    = 220.0
	NodeHeight   = 110.0

	MinZoom  = 0.5
	MaxZoom  = 2.0
	ZoomStep = 0.1
)

// Point is a 2D point, in screen or world space depending on context.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Viewport is the transient per-session view transform: a zoom scale
// clamped to [MinZoom, MaxZoom] and an unclamped pan offset. It is
// never persisted and never shared between sessions.
type Viewport struct {
	Scale float64 `json:"scale"`
	Pan   Point   `json:"pan"`
}

// NewViewport returns the identity viewport.
func NewViewport() *Viewport {
	return &Viewport{Scale: 1}
}

// ScreenToWorld maps a screen-space point into world space. Every
// hit-test and drop-position computation goes through this so geometry
// is zoom/pan-invariant.
func (v *Viewport) ScreenToWorld(p Point) Point {
	return Point{
		X: (p.X - v.Pan.X) / v.Scale,
		Y: (p.Y - v.Pan.Y) / v.Scale,
	}
}

// WorldToScreen is the exact inverse of ScreenToWorld.
func (v *Viewport) WorldToScreen(p Point) Point {
	return Point{
		X: p.X*v.Scale + v.Pan.X,
		Y: p.Y*v.Scale + v.Pan.Y,
	}
}

// ZoomTo sets the scale, clamped to the allowed range.
func (v *Viewport) ZoomTo(scale float64) {
	v.Scale = clamp(scale, MinZoom, MaxZoom)
}

// ZoomBy multiplies the scale by factor, clamped.
func (v *Viewport) ZoomBy(factor float64) {
	v.ZoomTo(v.Scale * factor)
}

// ZoomIn and ZoomOut step the scale by the fixed toolbar increment.
func (v *Viewport) ZoomIn()  { v.ZoomTo(v.Scale + ZoomStep) }
func (v *Viewport) ZoomOut() { v.ZoomTo(v.Scale - ZoomStep) }

// PanBy shifts the pan offset by a screen-space delta.
func (v *Viewport) PanBy(dx, dy float64) {
	v.Pan.X += dx
	v.Pan.Y += dy
}

// Reset restores scale 1 and zero pan.
func (v *Viewport) Reset() {
	v.Scale = 1
	v.Pan = Point{}
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// ClampNodePosition keeps a node's top-left corner inside the canvas
// extent so the card stays fully visible.
func ClampNodePosition(x, y float64) (float64, float64) {
	return clamp(x, 0, CanvasWidth-NodeWidth), clamp(y, 0, CanvasHeight-NodeHeight)
}
