package internal

import (
	"context"
	"fmt"
	"io"
	"math"

	"github.com/starford/historian/internal/historian"
	"github.com/starford/historian/internal/interaction"
	"github.com/starford/historian/internal/render"
)

// SnapshotRequest describes one static rendering of the graph.
type SnapshotRequest struct {
	Layout historian.LayoutRequest
	// Zoom is applied around the screen centre; 0 or 1 leaves the scale alone.
	Zoom float64
}

// RenderSnapshot lays the graph out and writes it as SVG. A selected node is
// centred on screen and its neighbourhood highlighted.
func RenderSnapshot(ctx context.Context, svc *historian.Service, req SnapshotRequest, w io.Writer) (historian.LayoutResult, error) {
	res, err := svc.Layout(ctx, req.Layout)
	if err != nil {
		return historian.LayoutResult{}, err
	}

	vp := interaction.NewViewport(res.Width, res.Height)
	if req.Zoom > 0 && req.Zoom != 1 {
		vp.ZoomAt(interaction.Point{X: res.Width / 2, Y: res.Height / 2}, req.Zoom)
	}

	sel := interaction.NewSelection()
	sel.SetEdges(res.Edges)
	if res.Selected != "" {
		sel.Select(res.Selected)
		vp.CenterOn(res.Positions[res.Selected])
	}

	notice := ""
	if len(res.Nodes) == 0 {
		notice = "No events yet"
	}

	err = render.SVG(w, render.Scene{
		Graph:     res.Graph(),
		Positions: res.Positions,
		Transform: vp.Transform(),
		Selection: sel,
		Width:     int(math.Round(res.Width)),
		Height:    int(math.Round(res.Height)),
		Notice:    notice,
	})
	if err != nil {
		return historian.LayoutResult{}, fmt.Errorf("render snapshot: %w", err)
	}
	return res, nil
}
