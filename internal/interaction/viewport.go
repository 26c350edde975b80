// Package interaction turns pointer input into viewport transforms, node
// drags and selection state for a laid-out graph.
package interaction

import (
	"math"

	"github.com/starford/historian/internal/layout"
)

// Point is a 2D coordinate, in screen or simulation space depending on
// context.
type Point = layout.Point

const (
	MinScale = 0.2
	MaxScale = 6.0

	// DoubleClickFactor is the zoom applied by a double click or double tap.
	DoubleClickFactor = 1.6

	wheelSensitivity = 0.002
)

// Transform maps simulation space to screen space: screen = sim*K + (X, Y).
type Transform struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	K float64 `json:"k"`
}

// Identity is the transform with no translation and unit scale.
var Identity = Transform{K: 1}

// Apply maps a simulation point to the screen.
func (t Transform) Apply(p Point) Point {
	return Point{X: p.X*t.K + t.X, Y: p.Y*t.K + t.Y}
}

// Invert maps a screen point to simulation space.
func (t Transform) Invert(p Point) Point {
	return Point{X: (p.X - t.X) / t.K, Y: (p.Y - t.Y) / t.K}
}

func clampScale(k float64) float64 {
	if math.IsNaN(k) || k <= 0 {
		return MinScale
	}
	return math.Max(MinScale, math.Min(MaxScale, k))
}

// Viewport owns the current transform. Every change goes through Set.
type Viewport struct {
	t             Transform
	width, height float64
	onChange      func(Transform)
}

// ViewportOption configures a Viewport.
type ViewportOption func(*Viewport)

// OnChange registers a callback invoked after every transform update.
func OnChange(fn func(Transform)) ViewportOption {
	return func(v *Viewport) { v.onChange = fn }
}

// NewViewport creates a viewport of the given screen size at Identity.
func NewViewport(width, height float64, opts ...ViewportOption) *Viewport {
	v := &Viewport{t: Identity, width: width, height: height}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

// Transform returns the current transform.
func (v *Viewport) Transform() Transform { return v.t }

// Size sets the screen size used by CenterOn.
func (v *Viewport) Size(width, height float64) {
	v.width, v.height = width, height
}

// Set stores t with its scale clamped and notifies the change callback.
func (v *Viewport) Set(t Transform) {
	t.K = clampScale(t.K)
	v.t = t
	if v.onChange != nil {
		v.onChange(t)
	}
}

// ZoomAt multiplies the scale by factor keeping the simulation point under
// screen point p fixed.
func (v *Viewport) ZoomAt(p Point, factor float64) {
	k := clampScale(v.t.K * factor)
	anchor := v.t.Invert(p)
	v.Set(Transform{
		X: p.X - anchor.X*k,
		Y: p.Y - anchor.Y*k,
		K: k,
	})
}

// Wheel zooms by 2^(-deltaY*0.002) at p.
func (v *Viewport) Wheel(p Point, deltaY float64) {
	v.ZoomAt(p, math.Pow(2, -deltaY*wheelSensitivity))
}

// Pinch zooms by the ratio of the current to the previous finger distance.
func (v *Viewport) Pinch(p Point, factor float64) {
	v.ZoomAt(p, factor)
}

// DoubleClick zooms in by DoubleClickFactor at p.
func (v *Viewport) DoubleClick(p Point) {
	v.ZoomAt(p, DoubleClickFactor)
}

// Pan translates by a screen-space delta.
func (v *Viewport) Pan(dx, dy float64) {
	v.Set(Transform{X: v.t.X + dx, Y: v.t.Y + dy, K: v.t.K})
}

// CenterOn translates so that the simulation point node lands in the middle
// of the screen. The scale is unchanged.
func (v *Viewport) CenterOn(node Point) {
	v.Set(Transform{
		X: v.width/2 - node.X*v.t.K,
		Y: v.height/2 - node.Y*v.t.K,
		K: v.t.K,
	})
}

// Reset returns to Identity.
func (v *Viewport) Reset() {
	v.Set(Identity)
}
