// Package render draws a laid-out graph as a static SVG document.
package render

import (
	"fmt"
	"html"
	"io"
	"sort"
	"strings"

	"github.com/starford/historian/internal/interaction"
	"github.com/starford/historian/internal/layout"
	"github.com/starford/historian/internal/models"
)

// Scene is everything needed to draw one frame.
type Scene struct {
	Graph     models.Graph
	Positions map[string]layout.Point
	Transform interaction.Transform
	Selection *interaction.Selection
	Width     int
	Height    int
	Notice    string
}

var nodeFill = map[string]string{
	models.LabelEvent:  "#3b82f6",
	models.LabelTopic:  "#f59e0b",
	models.LabelTag:    "#10b981",
	models.LabelPerson: "#ec4899",
}

var edgeStroke = map[models.EdgeType]string{
	models.EdgeNext:     "#1e293b",
	models.EdgeTheme:    "#f59e0b",
	models.EdgeTagged:   "#10b981",
	models.EdgeMentions: "#ec4899",
}

const dimOpacity = 0.15

// SVG writes the scene to w. Nodes without a position are not drawn, nor
// are edges touching them.
func SVG(w io.Writer, sc Scene) error {
	tr := sc.Transform
	if tr.K == 0 {
		tr = interaction.Identity
	}
	dimming := sc.Selection != nil && sc.Selection.Active()
	dim := func(id string) bool {
		return dimming && !sc.Selection.IsHighlighted(id)
	}
	params := layout.DefaultParams()

	var svg strings.Builder
	svg.WriteString(fmt.Sprintf(`<?xml version="1.0" encoding="UTF-8"?>
<svg width="%d" height="%d" viewBox="0 0 %d %d" xmlns="http://www.w3.org/2000/svg">
<rect width="100%%" height="100%%" fill="#ffffff"/>
`, sc.Width, sc.Height, sc.Width, sc.Height))
	svg.WriteString(fmt.Sprintf(`<g transform="translate(%.2f,%.2f) scale(%.4f)">`+"\n", tr.X, tr.Y, tr.K))

	svg.WriteString(`<g class="edges">` + "\n")
	for _, e := range sc.Graph.Edges {
		from, ok1 := sc.Positions[e.From]
		to, ok2 := sc.Positions[e.To]
		if !ok1 || !ok2 {
			continue
		}
		opacity := 0.6
		if dim(e.From) || dim(e.To) {
			opacity = dimOpacity
		}
		width := 1.0
		if e.Type == models.EdgeNext {
			width = 2
		}
		svg.WriteString(fmt.Sprintf(`<line x1="%.2f" y1="%.2f" x2="%.2f" y2="%.2f" stroke="%s" stroke-width="%.1f" stroke-opacity="%.2f" data-type="%s"/>`+"\n",
			from.X, from.Y, to.X, to.Y, edgeStroke[e.Type], width, opacity, e.Type))
	}
	svg.WriteString("</g>\n")

	nodes := make([]models.Node, len(sc.Graph.Nodes))
	copy(nodes, sc.Graph.Nodes)
	// Highlighted nodes are drawn last so they sit on top.
	sort.SliceStable(nodes, func(i, j int) bool {
		return dim(nodes[i].ID) && !dim(nodes[j].ID)
	})

	svg.WriteString(`<g class="nodes">` + "\n")
	for _, n := range nodes {
		p, ok := sc.Positions[n.ID]
		if !ok {
			continue
		}
		r := params.EventRadius
		if n.IsCategory() {
			r = params.CategoryRadius
		}
		opacity := 1.0
		if dim(n.ID) {
			opacity = dimOpacity
		}
		stroke := "#ffffff"
		if sc.Selection != nil && sc.Selection.Selected() == n.ID {
			stroke = "#111827"
		}
		fill, ok := nodeFill[n.Label]
		if !ok {
			fill = nodeFill[models.LabelEvent]
		}
		svg.WriteString(fmt.Sprintf(`<g id="%s" opacity="%.2f">`, html.EscapeString(n.ID), opacity))
		svg.WriteString(fmt.Sprintf(`<circle cx="%.2f" cy="%.2f" r="%.0f" fill="%s" stroke="%s" stroke-width="2"/>`,
			p.X, p.Y, r, fill, stroke))
		svg.WriteString(fmt.Sprintf(`<text x="%.2f" y="%.2f" text-anchor="middle" font-family="sans-serif" font-size="10" fill="#111827">%s</text>`,
			p.X, p.Y+r+12, html.EscapeString(label(n))))
		svg.WriteString("</g>\n")
	}
	svg.WriteString("</g>\n</g>\n")

	if sc.Notice != "" {
		svg.WriteString(fmt.Sprintf(`<text x="12" y="%d" font-family="sans-serif" font-size="12" fill="#b91c1c">%s</text>`+"\n",
			sc.Height-12, html.EscapeString(sc.Notice)))
	}
	svg.WriteString("</svg>\n")

	if _, err := io.WriteString(w, svg.String()); err != nil {
		return fmt.Errorf("render: write svg: %w", err)
	}
	return nil
}

func label(n models.Node) string {
	if n.IsCategory() || n.Created == "" {
		return n.Title
	}
	return n.Created + " " + n.Title
}
