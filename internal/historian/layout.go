package historian

import (
	"context"
	"fmt"
	"math"
	"math/rand/v2"
	"time"

	"github.com/starford/historian/internal/interaction"
	"github.com/starford/historian/internal/layout"
	"github.com/starford/historian/internal/models"
)

// Layout defaults and bounds.
const (
	DefaultLayoutWidth  = 960
	DefaultLayoutHeight = 640
	DefaultLayoutSteps  = 300
	MaxLayoutSteps      = 5000
)

// LayoutRequest parameterises a headless layout run.
type LayoutRequest struct {
	Limit    int
	Width    float64
	Height   float64
	Steps    int
	Selected string
	Seed     uint64
}

// Dimension returns v when it is a usable viewport size and def otherwise.
// Zero, negative and non-finite values are treated as unset.
func Dimension(v, def float64) float64 {
	if v <= 0 || math.IsNaN(v) || math.IsInf(v, 0) {
		return def
	}
	return v
}

func (r *LayoutRequest) defaults() {
	r.Width = Dimension(r.Width, DefaultLayoutWidth)
	r.Height = Dimension(r.Height, DefaultLayoutHeight)
	if r.Steps <= 0 {
		r.Steps = DefaultLayoutSteps
	}
	if r.Steps > MaxLayoutSteps {
		r.Steps = MaxLayoutSteps
	}
	if r.Seed == 0 {
		r.Seed = 1
	}
}

// LayoutResult is a settled (or step-limited) layout of a graph read.
type LayoutResult struct {
	Nodes       []models.Node           `json:"nodes"`
	Edges       []models.Edge           `json:"edges"`
	Positions   map[string]layout.Point `json:"positions"`
	Width       float64                 `json:"width"`
	Height      float64                 `json:"height"`
	Steps       int                     `json:"steps"`
	Alpha       float64                 `json:"alpha"`
	Selected    string                  `json:"selected,omitempty"`
	Highlighted []string                `json:"highlighted"`
}

// Graph returns the laid-out graph.
func (r LayoutResult) Graph() models.Graph {
	return models.Graph{Nodes: r.Nodes, Edges: r.Edges}
}

// Layout reads the graph and runs the layout engine on a manual scheduler
// until it settles or Steps ticks have run. The same seed gives the same
// positions.
func (s *Service) Layout(ctx context.Context, req LayoutRequest) (LayoutResult, error) {
	req.defaults()

	g, err := s.Graph(ctx, req.Limit)
	if err != nil {
		return LayoutResult{}, err
	}

	sched := &layout.ManualScheduler{}
	sim := layout.NewSimulation(req.Width, req.Height,
		layout.WithRand(rand.New(rand.NewPCG(req.Seed, req.Seed^0x9e3779b97f4a7c15))))
	eng := layout.NewEngine(sim, sched, layout.WithSettle(true), layout.WithLogger(s.logger))
	defer eng.Dispose()

	eng.GraphChanged(layout.Inputs(g))
	steps := 0
	for steps < req.Steps && eng.State() == layout.Running {
		if err := ctx.Err(); err != nil {
			return LayoutResult{}, fmt.Errorf("historian: layout: %w", err)
		}
		sched.Flush(time.Now())
		steps++
	}
	snap := eng.Last()

	sel := interaction.NewSelection()
	sel.SetEdges(g.Edges)
	if req.Selected != "" {
		if _, ok := snap.Positions[req.Selected]; ok {
			sel.Select(req.Selected)
		}
	}

	return LayoutResult{
		Nodes:       g.Nodes,
		Edges:       g.Edges,
		Positions:   snap.Positions,
		Width:       req.Width,
		Height:      req.Height,
		Steps:       steps,
		Alpha:       snap.Alpha,
		Selected:    sel.Selected(),
		Highlighted: sel.Highlighted(),
	}, nil
}
