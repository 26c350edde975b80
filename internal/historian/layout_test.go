package historian

import (
	"context"
	"errors"
	"math"
	"testing"

	"github.com/starford/historian/internal/apperr"
	"github.com/starford/historian/internal/graphstore"
)

func TestLayout_PositionsEveryNode(t *testing.T) {
	svc, _ := testService(t, map[string]string{
		"2026-02-01.A.md": "---\ntags: [tls]\n---\nalpha",
		"2026-02-10.B.md": "---\ntheme: Security\ntags: tls, http\n---\nbeta",
		"2026-02-11.C.md": "gamma",
	})
	ctx := context.Background()
	if _, err := svc.Ingest(ctx, IngestOptions{Max: 10}); err != nil {
		t.Fatal(err)
	}

	res, err := svc.Layout(ctx, LayoutRequest{Limit: 10, Steps: 50, Selected: "tag:tls"})
	if err != nil {
		t.Fatalf("Layout: %v", err)
	}
	if len(res.Positions) != len(res.Nodes) {
		t.Errorf("positions = %d, nodes = %d", len(res.Positions), len(res.Nodes))
	}
	if res.Steps == 0 || res.Steps > 50 {
		t.Errorf("steps = %d", res.Steps)
	}
	if res.Width != DefaultLayoutWidth || res.Height != DefaultLayoutHeight {
		t.Errorf("size = %vx%v", res.Width, res.Height)
	}

	want := map[string]bool{"tag:tls": true, "historian:2026-02-01:A": true, "historian:2026-02-10:B": true}
	if len(res.Highlighted) != len(want) {
		t.Fatalf("highlighted = %v", res.Highlighted)
	}
	for _, id := range res.Highlighted {
		if !want[id] {
			t.Errorf("unexpected highlight %s", id)
		}
	}
}

func TestLayout_Deterministic(t *testing.T) {
	svc, _ := testService(t, map[string]string{
		"2026-02-01.A.md": "alpha",
		"2026-02-10.B.md": "beta",
	})
	ctx := context.Background()
	if _, err := svc.Ingest(ctx, IngestOptions{Max: 10}); err != nil {
		t.Fatal(err)
	}
	a, _ := svc.Layout(ctx, LayoutRequest{Steps: 20, Seed: 7})
	b, _ := svc.Layout(ctx, LayoutRequest{Steps: 20, Seed: 7})
	for id, p := range a.Positions {
		if b.Positions[id] != p {
			t.Errorf("%s: %+v vs %+v", id, p, b.Positions[id])
		}
	}
}

func TestLayout_NonFiniteSizeUsesDefaults(t *testing.T) {
	svc, _ := testService(t, map[string]string{
		"2026-02-01.A.md": "---\ntags: [tls]\n---\nalpha",
		"2026-02-10.B.md": "beta",
	})
	ctx := context.Background()
	if _, err := svc.Ingest(ctx, IngestOptions{Max: 10}); err != nil {
		t.Fatal(err)
	}

	res, err := svc.Layout(ctx, LayoutRequest{Width: math.NaN(), Height: math.Inf(1), Steps: 20, Seed: 3})
	if err != nil {
		t.Fatalf("Layout: %v", err)
	}
	if res.Width != DefaultLayoutWidth || res.Height != DefaultLayoutHeight {
		t.Errorf("size = %vx%v", res.Width, res.Height)
	}
	for id, p := range res.Positions {
		if math.IsNaN(p.X) || math.IsNaN(p.Y) || math.IsInf(p.X, 0) || math.IsInf(p.Y, 0) {
			t.Errorf("%s: non-finite position %+v", id, p)
		}
	}
}

func TestDimension(t *testing.T) {
	for _, v := range []float64{0, -5, math.NaN(), math.Inf(1), math.Inf(-1)} {
		if got := Dimension(v, 100); got != 100 {
			t.Errorf("Dimension(%v) = %v, want 100", v, got)
		}
	}
	if got := Dimension(320, 100); got != 320 {
		t.Errorf("Dimension(320) = %v", got)
	}
}

func TestLayout_UnknownSelectionIgnored(t *testing.T) {
	svc, _ := testService(t, nil)
	res, err := svc.Layout(context.Background(), LayoutRequest{Selected: "nope"})
	if err != nil {
		t.Fatal(err)
	}
	if res.Selected != "" || len(res.Highlighted) != 0 {
		t.Errorf("result = %+v", res)
	}
}

func TestLayout_Unconfigured(t *testing.T) {
	svc := NewService(graphstore.Unconfigured{}, nil, WithLogger(quietLogger))
	if _, err := svc.Layout(context.Background(), LayoutRequest{}); !errors.Is(err, apperr.ErrNotConfigured) {
		t.Errorf("err = %v, want ErrNotConfigured", err)
	}
}

func TestLayout_CancelledContext(t *testing.T) {
	svc, _ := testService(t, map[string]string{"2026-02-01.A.md": "alpha"})
	if _, err := svc.Ingest(context.Background(), IngestOptions{Max: 10}); err != nil {
		t.Fatal(err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := svc.Layout(ctx, LayoutRequest{}); !errors.Is(err, context.Canceled) {
		t.Errorf("err = %v, want context.Canceled", err)
	}
}
