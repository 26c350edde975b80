package interaction

import (
	"maps"
	"math"
	"sync"
	"time"

	"github.com/starford/historian/internal/layout"
	"github.com/starford/historian/internal/models"
)

// NoticeTTL is how long a load error stays visible.
const NoticeTTL = 5 * time.Second

// Layout is the part of layout.Engine the controller drives.
type Layout interface {
	GraphChanged(nodes []layout.NodeInput, edges []models.Edge)
	NodeDragged(id string, x, y float64)
	DragEnded(id string)
}

type drag struct {
	pointer int
	id      string
	offset  Point
}

type pan struct {
	pointer int
	last    Point
}

// Controller routes pointer input to node drags or viewport gestures. It
// keeps the last successfully loaded graph and the latest layout snapshot.
type Controller struct {
	mu        sync.Mutex
	viewport  *Viewport
	layout    Layout
	selection *Selection
	taps      TapDetector

	graph     models.Graph
	radius    map[string]float64
	positions map[string]Point

	drag *drag
	pan  *pan

	notice   string
	noticeAt time.Time
	now      func() time.Time
}

// ControllerOption configures a Controller.
type ControllerOption func(*Controller)

// WithClock overrides the clock used for notice expiry.
func WithClock(now func() time.Time) ControllerOption {
	return func(c *Controller) { c.now = now }
}

// NewController wires a viewport to a layout.
func NewController(vp *Viewport, l Layout, opts ...ControllerOption) *Controller {
	c := &Controller{
		viewport:  vp,
		layout:    l,
		selection: NewSelection(),
		graph:     models.Graph{Nodes: []models.Node{}, Edges: []models.Edge{}},
		radius:    map[string]float64{},
		positions: map[string]Point{},
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Viewport returns the controlled viewport.
func (c *Controller) Viewport() *Viewport { return c.viewport }

// Selection returns the selection state.
func (c *Controller) Selection() *Selection { return c.selection }

// Load replaces the visible graph, rebuilds the adjacency index and hands the
// node set to the layout.
func (c *Controller) Load(g models.Graph) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.graph = g
	c.notice = ""
	c.radius = make(map[string]float64, len(g.Nodes))
	params := layout.DefaultParams()
	for _, n := range g.Nodes {
		r := params.EventRadius
		if n.IsCategory() {
			r = params.CategoryRadius
		}
		c.radius[n.ID] = r
	}
	c.selection.SetEdges(g.Edges)
	if sel := c.selection.Selected(); sel != "" {
		if _, ok := c.radius[sel]; !ok {
			c.selection.Clear()
		}
	}
	c.layout.GraphChanged(layout.Inputs(g))
}

// LoadFailed records a reload error. The previous graph stays loaded.
func (c *Controller) LoadFailed(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.notice = err.Error()
	c.noticeAt = c.now()
}

// Notice returns the pending load error, if it has not expired.
func (c *Controller) Notice() (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.notice == "" || c.now().Sub(c.noticeAt) > NoticeTTL {
		return "", false
	}
	return c.notice, true
}

// Graph returns the currently loaded graph.
func (c *Controller) Graph() models.Graph {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.graph
}

// OnSnapshot stores the latest positions. Subscribe it to the layout engine.
func (c *Controller) OnSnapshot(s layout.Snapshot) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.positions = maps.Clone(s.Positions)
	if c.drag != nil {
		if _, ok := c.positions[c.drag.id]; !ok {
			c.drag = nil
		}
	}
}

// Positions returns a copy of the latest known positions.
func (c *Controller) Positions() map[string]Point {
	c.mu.Lock()
	defer c.mu.Unlock()
	return maps.Clone(c.positions)
}

// HitTest returns the node under screen point p, preferring the nearest.
func (c *Controller) HitTest(p Point) (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.hitTestLocked(p)
}

func (c *Controller) hitTestLocked(p Point) (string, bool) {
	sim := c.viewport.Transform().Invert(p)
	best, bestDist := "", math.Inf(1)
	for id, pos := range c.positions {
		r, ok := c.radius[id]
		if !ok {
			continue
		}
		d := math.Hypot(pos.X-sim.X, pos.Y-sim.Y)
		if d <= r && d < bestDist {
			best, bestDist = id, d
		}
	}
	return best, best != ""
}

// PointerDown starts a node drag when a node is hit, otherwise a pan. A
// touch double tap zooms instead.
func (c *Controller) PointerDown(ev PointerEvent) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.taps.Down(ev) {
		c.viewport.DoubleClick(ev.Screen)
		return
	}
	if c.drag != nil || c.pan != nil {
		return
	}

	if id, ok := c.hitTestLocked(ev.Screen); ok {
		pos := c.positions[id]
		sim := c.viewport.Transform().Invert(ev.Screen)
		c.drag = &drag{
			pointer: ev.ID,
			id:      id,
			offset:  Point{X: pos.X - sim.X, Y: pos.Y - sim.Y},
		}
		c.selection.Select(id)
		c.layout.NodeDragged(id, pos.X, pos.Y)
		return
	}
	c.pan = &pan{pointer: ev.ID, last: ev.Screen}
}

// PointerMove moves the captured node, or pans.
func (c *Controller) PointerMove(ev PointerEvent) {
	c.mu.Lock()
	defer c.mu.Unlock()

	switch {
	case c.drag != nil && c.drag.pointer == ev.ID:
		sim := c.viewport.Transform().Invert(ev.Screen)
		x, y := sim.X+c.drag.offset.X, sim.Y+c.drag.offset.Y
		c.positions[c.drag.id] = Point{X: x, Y: y}
		c.layout.NodeDragged(c.drag.id, x, y)
	case c.pan != nil && c.pan.pointer == ev.ID:
		c.viewport.Pan(ev.Screen.X-c.pan.last.X, ev.Screen.Y-c.pan.last.Y)
		c.pan.last = ev.Screen
	}
}

// PointerUp releases the pointer capture.
func (c *Controller) PointerUp(ev PointerEvent) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.drag != nil && c.drag.pointer == ev.ID {
		c.layout.DragEnded(c.drag.id)
		c.drag = nil
	}
	if c.pan != nil && c.pan.pointer == ev.ID {
		c.pan = nil
	}
}

// Captured returns the node currently being dragged.
func (c *Controller) Captured() (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.drag == nil {
		return "", false
	}
	return c.drag.id, true
}

// DoubleClick zooms in at the pointer.
func (c *Controller) DoubleClick(ev PointerEvent) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.viewport.DoubleClick(ev.Screen)
}

// Wheel zooms at p.
func (c *Controller) Wheel(p Point, deltaY float64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.viewport.Wheel(p, deltaY)
}

// Select selects id without dragging it.
func (c *Controller) Select(id string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.selection.Select(id)
}

// CenterOnSelected centres the viewport on the selected node. It reports
// false when nothing is selected or the node has no position yet.
func (c *Controller) CenterOnSelected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	pos, ok := c.positions[c.selection.Selected()]
	if !ok {
		return false
	}
	c.viewport.CenterOn(pos)
	return true
}

// ResetView returns the viewport to Identity.
func (c *Controller) ResetView() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.viewport.Reset()
}
