// Package layout computes force-directed positions for a timeline graph.
//
// Simulation is the pure physics model. Engine drives a Simulation from a
// FrameScheduler and emits at most one Snapshot per frame.
package layout

import (
	"math"
	"math/rand/v2"

	"github.com/starford/historian/internal/models"
)

// Point is a position in simulation space.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// NodeInput is the part of a node the simulation cares about.
type NodeInput struct {
	ID    string
	Label string
}

// Inputs converts a graph read into simulation inputs.
func Inputs(g models.Graph) ([]NodeInput, []models.Edge) {
	nodes := make([]NodeInput, 0, len(g.Nodes))
	for _, n := range g.Nodes {
		nodes = append(nodes, NodeInput{ID: n.ID, Label: n.Label})
	}
	return nodes, g.Edges
}

// LinkParams are the spring parameters for one edge type.
type LinkParams struct {
	Distance float64
	Strength float64
}

// Params holds the force constants.
type Params struct {
	Charge          float64
	Links           map[models.EdgeType]LinkParams
	CenterStrength  float64
	EventRadius     float64
	CategoryRadius  float64
	CollideStrength float64
	VelocityDecay   float64
	AlphaMin        float64
	AlphaDecay      float64
	Jitter          float64
}

// DefaultParams returns the tuned timeline force constants.
func DefaultParams() Params {
	return Params{
		Charge: -180,
		Links: map[models.EdgeType]LinkParams{
			models.EdgeNext:     {Distance: 60, Strength: 0.9},
			models.EdgeTheme:    {Distance: 160, Strength: 0.08},
			models.EdgeTagged:   {Distance: 140, Strength: 0.06},
			models.EdgeMentions: {Distance: 140, Strength: 0.06},
		},
		CenterStrength:  0.05,
		EventRadius:     14,
		CategoryRadius:  26,
		CollideStrength: 0.7,
		VelocityDecay:   0.4,
		AlphaMin:        0.001,
		AlphaDecay:      1 - math.Pow(0.001, 1.0/300),
		Jitter:          30,
	}
}

type body struct {
	id     string
	radius float64
	x, y   float64
	vx, vy float64
	pinned bool
	fx, fy float64
}

type spring struct {
	source, target int
	distance       float64
	strength       float64
	bias           float64
}

// Simulation is a d3-style velocity Verlet force simulation. It is not safe
// for concurrent use; Engine serialises access.
type Simulation struct {
	width, height float64
	params        Params
	rng           *rand.Rand

	bodies []*body
	index  map[string]int
	links  []spring

	alpha       float64
	alphaTarget float64
}

// SimOption configures a Simulation.
type SimOption func(*Simulation)

// WithRand sets the random source used for initial jitter.
func WithRand(r *rand.Rand) SimOption {
	return func(s *Simulation) { s.rng = r }
}

// WithParams overrides the force constants.
func WithParams(p Params) SimOption {
	return func(s *Simulation) { s.params = p }
}

// NewSimulation creates an empty simulation centred in a width x height
// viewport.
func NewSimulation(width, height float64, opts ...SimOption) *Simulation {
	s := &Simulation{
		width:  width,
		height: height,
		params: DefaultParams(),
		index:  map[string]int{},
		alpha:  1,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.rng == nil {
		s.rng = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}
	return s
}

// Center returns the viewport centre.
func (s *Simulation) Center() Point {
	return Point{X: s.width / 2, Y: s.height / 2}
}

// Resize changes the viewport the centering force pulls towards.
func (s *Simulation) Resize(width, height float64) {
	s.width, s.height = width, height
}

// SetGraph replaces the node and edge set. Nodes whose id persists keep
// their position, velocity and pin; new nodes start near the centre.
// Edges referencing unknown ids are ignored. Alpha is reset to 1.
func (s *Simulation) SetGraph(nodes []NodeInput, edges []models.Edge) {
	c := s.Center()
	bodies := make([]*body, 0, len(nodes))
	index := make(map[string]int, len(nodes))

	for _, n := range nodes {
		if _, dup := index[n.ID]; dup {
			continue
		}
		b, ok := s.lookup(n.ID)
		if !ok {
			b = &body{
				id: n.ID,
				x:  c.X + (s.rng.Float64()*2-1)*s.params.Jitter,
				y:  c.Y + (s.rng.Float64()*2-1)*s.params.Jitter,
			}
		}
		b.radius = s.params.EventRadius
		if models.IsCategory(n.Label) {
			b.radius = s.params.CategoryRadius
		}
		index[n.ID] = len(bodies)
		bodies = append(bodies, b)
	}

	degree := make([]int, len(bodies))
	links := make([]spring, 0, len(edges))
	for _, e := range edges {
		src, okSrc := index[e.From]
		dst, okDst := index[e.To]
		if !okSrc || !okDst || src == dst {
			continue
		}
		p, ok := s.params.Links[e.Type]
		if !ok {
			continue
		}
		degree[src]++
		degree[dst]++
		links = append(links, spring{source: src, target: dst, distance: p.Distance, strength: p.Strength})
	}
	for i := range links {
		ds, dt := float64(degree[links[i].source]), float64(degree[links[i].target])
		links[i].bias = ds / (ds + dt)
	}

	s.bodies, s.index, s.links = bodies, index, links
	s.alpha = 1
}

func (s *Simulation) lookup(id string) (*body, bool) {
	i, ok := s.index[id]
	if !ok {
		return nil, false
	}
	return s.bodies[i], true
}

// Len returns the number of nodes.
func (s *Simulation) Len() int { return len(s.bodies) }

// Alpha returns the current cooling parameter.
func (s *Simulation) Alpha() float64 { return s.alpha }

// AlphaMin returns the settle threshold.
func (s *Simulation) AlphaMin() float64 { return s.params.AlphaMin }

// SetAlpha sets the cooling parameter.
func (s *Simulation) SetAlpha(a float64) { s.alpha = a }

// SetAlphaTarget sets the value alpha decays towards. A positive target
// keeps the simulation warm while a node is dragged.
func (s *Simulation) SetAlphaTarget(a float64) { s.alphaTarget = a }

// Pin fixes a node at (x, y) and zeroes its velocity. Other nodes are not
// touched. It reports whether the node exists.
func (s *Simulation) Pin(id string, x, y float64) bool {
	b, ok := s.lookup(id)
	if !ok {
		return false
	}
	b.pinned = true
	b.fx, b.fy = x, y
	b.x, b.y = x, y
	b.vx, b.vy = 0, 0
	return true
}

// Unpin releases a pinned node at its current position.
func (s *Simulation) Unpin(id string) {
	if b, ok := s.lookup(id); ok {
		b.pinned = false
	}
}

// Pinned reports whether any node is pinned.
func (s *Simulation) Pinned() bool {
	for _, b := range s.bodies {
		if b.pinned {
			return true
		}
	}
	return false
}

// Position returns the position of one node.
func (s *Simulation) Position(id string) (Point, bool) {
	b, ok := s.lookup(id)
	if !ok {
		return Point{}, false
	}
	return Point{X: b.x, Y: b.y}, true
}

// Positions returns a copy of every node position.
func (s *Simulation) Positions() map[string]Point {
	out := make(map[string]Point, len(s.bodies))
	for _, b := range s.bodies {
		out[b.id] = Point{X: b.x, Y: b.y}
	}
	return out
}

// Tick advances the simulation by one step.
func (s *Simulation) Tick() {
	s.alpha += (s.alphaTarget - s.alpha) * s.params.AlphaDecay

	s.applyLinks()
	s.applyCharge()
	s.applyCenter()
	s.applyCollide()

	keep := 1 - s.params.VelocityDecay
	for _, b := range s.bodies {
		if b.pinned {
			b.x, b.y = b.fx, b.fy
			b.vx, b.vy = 0, 0
			continue
		}
		b.vx *= keep
		b.vy *= keep
		b.x += b.vx
		b.y += b.vy
	}
}

func (s *Simulation) jiggle() float64 {
	return (s.rng.Float64() - 0.5) * 1e-6
}

func (s *Simulation) applyLinks() {
	for _, l := range s.links {
		src, dst := s.bodies[l.source], s.bodies[l.target]
		dx := dst.x + dst.vx - src.x - src.vx
		dy := dst.y + dst.vy - src.y - src.vy
		if dx == 0 {
			dx = s.jiggle()
		}
		if dy == 0 {
			dy = s.jiggle()
		}
		d := math.Sqrt(dx*dx + dy*dy)
		f := (d - l.distance) / d * s.alpha * l.strength
		dx *= f
		dy *= f
		dst.vx -= dx * l.bias
		dst.vy -= dy * l.bias
		src.vx += dx * (1 - l.bias)
		src.vy += dy * (1 - l.bias)
	}
}

// applyCharge is the exact O(n²) many-body force.
func (s *Simulation) applyCharge() {
	for i, a := range s.bodies {
		for j, b := range s.bodies {
			if i == j {
				continue
			}
			dx := b.x - a.x
			dy := b.y - a.y
			if dx == 0 {
				dx = s.jiggle()
			}
			if dy == 0 {
				dy = s.jiggle()
			}
			l := dx*dx + dy*dy
			if l < 1 {
				l = math.Sqrt(l)
			}
			w := s.params.Charge * s.alpha / l
			a.vx += dx * w
			a.vy += dy * w
		}
	}
}

func (s *Simulation) applyCenter() {
	c := s.Center()
	k := s.params.CenterStrength * s.alpha
	for _, b := range s.bodies {
		b.vx += (c.X - b.x) * k
		b.vy += (c.Y - b.y) * k
	}
}

func (s *Simulation) applyCollide() {
	for i, a := range s.bodies {
		for j := i + 1; j < len(s.bodies); j++ {
			b := s.bodies[j]
			r := a.radius + b.radius
			dx := (a.x + a.vx) - (b.x + b.vx)
			dy := (a.y + a.vy) - (b.y + b.vy)
			l := dx*dx + dy*dy
			if l >= r*r {
				continue
			}
			if dx == 0 {
				dx = s.jiggle()
				l += dx * dx
			}
			if dy == 0 {
				dy = s.jiggle()
				l += dy * dy
			}
			l = math.Sqrt(l)
			f := (r - l) / l * s.params.CollideStrength
			dx *= f
			dy *= f
			ra, rb := a.radius*a.radius, b.radius*b.radius
			share := rb / (ra + rb)
			a.vx += dx * share
			a.vy += dy * share
			b.vx -= dx * (1 - share)
			b.vy -= dy * (1 - share)
		}
	}
}
