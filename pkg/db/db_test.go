package db

import (
	"errors"
	"math"
	"strings"
	"testing"

	"github.com/wrcad/xictools-sub010/pkg/geom"
)

const sampleDesign = `
(design sample
  (area 0 0 9 9)
  (layer metal1 (direction horizontal) (pitch 1) (width 0.3) (spacing 0.3))
  (layer metal2 (direction vertical) (pitch 1 2) (width 0.3) (spacing 0.3))
  (via via12 (lower metal1) (size 0.4))
  (net clk critical)
  (gate U1 (cell INV)
    (pin A (net a) (rect metal1 0.8 0.8 1.2 1.2))
    (pin Y (net clk) (rect metal1 2.8 0.8 3.2 1.2))
    (pin NC (rect metal1 4 4 4.2 4.2))
    (obs (rect metal1 1.5 0 2.5 0.4)))
  (pin IN (net a) (rect 1 5 5 5.2 5.2))
  (obstruction (rect metal2 7 0 8 9)))
`

func TestLoad(t *testing.T) {
	d, err := Load(strings.NewReader(sampleDesign))
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if d.Name != "sample" {
		t.Errorf("name = %q", d.Name)
	}
	if d.Tech.NumLayers() != 2 {
		t.Fatalf("layers = %d, want 2", d.Tech.NumLayers())
	}
	if l := d.Tech.Layers[1]; l.Direction != Vertical || l.PitchX != 1 || l.PitchY != 2 {
		t.Errorf("metal2 = %+v", l)
	}
	if len(d.Tech.Vias) != 1 || d.Tech.Vias[0].Height != 0.4 {
		t.Errorf("vias = %+v", d.Tech.Vias)
	}

	// clk is declared before a is mentioned.
	if len(d.Nets) != 2 || d.Nets[0].Name != "clk" || d.Nets[1].Name != "a" {
		t.Fatalf("nets = %v", netNames(d.Nets))
	}
	clk, a := d.Net("clk"), d.Net("a")
	if !clk.Has(NetCritical) || clk.Number != 1 || a.Number != 2 {
		t.Errorf("net numbering or flags wrong: clk=%+v a=%+v", clk, a)
	}
	if len(a.Nodes) != 2 {
		t.Fatalf("net a nodes = %d, want 2", len(a.Nodes))
	}
	if got := a.Nodes[1].Name(); got != "IN" {
		t.Errorf("port node name = %q", got)
	}
	if got := a.Nodes[0].Name(); got != "U1/A" {
		t.Errorf("gate node name = %q", got)
	}
	if d.Gates[0].Pins[2].Node != nil {
		t.Error("unconnected pin should have no node")
	}
	if len(d.Obstructions) != 1 || d.Obstructions[0].Layer != 1 {
		t.Errorf("obstructions = %+v", d.Obstructions)
	}
	if d.NetByNumber(2) != a || d.NetByNumber(3) != nil {
		t.Error("NetByNumber lookup wrong")
	}
}

func TestLoadErrors(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"no design", "(foo)", "no (design"},
		{"no area", "(design x (layer m (pitch 1) (width 1)))", "missing area"},
		{"bad layer", "(design x (area 0 0 1 1) (layer m (pitch 1) (width 1)) (pin p (net n) (rect m2 0 0 1 1)))", "unknown layer"},
		{"bad pitch", "(design x (area 0 0 1 1) (layer m (width 1)))", "pitch must be positive"},
		{"bad via", "(design x (area 0 0 1 1) (layer m (pitch 1) (width 1)) (via v (lower m)))", "out of range"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(strings.NewReader(tt.input))
			if err == nil {
				t.Fatal("expected error")
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Errorf("error %q does not mention %q", err, tt.want)
			}
		})
	}
}

func TestLayerIndexError(t *testing.T) {
	tech := &Tech{Layers: []Layer{{Name: "m1"}}}
	if _, err := tech.LayerIndex("m9"); !errors.Is(err, ErrUnknownLayer) {
		t.Errorf("expected ErrUnknownLayer, got %v", err)
	}
	if i, err := tech.LayerIndex("0"); err != nil || i != 0 {
		t.Errorf("numeric ref = %d, %v", i, err)
	}
}

func TestTechWidths(t *testing.T) {
	tech := &Tech{
		Layers: []Layer{
			{Name: "m1", PitchX: 1, PitchY: 1, Width: 0.3, Spacing: 0.3},
			{Name: "m2", PitchX: 1, PitchY: 1, Width: 0.3, Spacing: 0.3},
			{Name: "m3", PitchX: 1, PitchY: 1, Width: 0.3, Spacing: 0.3},
		},
		Vias: []Via{
			{Name: "v12", Lower: 0, Width: 0.4, Height: 0.4},
			{Name: "v12r", Lower: 0, Width: 0.5, Height: 0.4},
		},
	}
	if got := tech.ViaHalfWidth(1); got != 0.25 {
		t.Errorf("ViaHalfWidth(1) = %g", got)
	}
	if got := tech.ViaHalfWidth(2); got != 0.15 {
		t.Errorf("ViaHalfWidth(2) without vias = %g", got)
	}
	if got := tech.Clearance(0); math.Abs(got-0.55) > 1e-9 {
		t.Errorf("Clearance(0) = %g", got)
	}
	if v, _ := tech.ViaVariant(0, true); v.Name != "v12r" {
		t.Errorf("alternate via = %s", v.Name)
	}
	if _, ok := tech.ViaVariant(1, false); ok {
		t.Error("no via expected above layer 1")
	}
}

func TestSegPoints(t *testing.T) {
	s := Seg{Layer: 1, X1: 3, Y1: 2, X2: 1, Y2: 2, Type: SegWire}
	pts := s.Points()
	if len(pts) != 3 || pts[0] != (GridPoint{3, 2, 1}) || pts[2] != (GridPoint{1, 2, 1}) {
		t.Errorf("wire points = %v", pts)
	}
	v := Seg{Layer: 0, X1: 4, Y1: 4, X2: 4, Y2: 4, Type: SegVia}
	if pts := v.Points(); len(pts) != 2 || pts[1].Layer != 1 {
		t.Errorf("via points = %v", pts)
	}
	r := &Route{Segs: []Seg{s, v}}
	if r.Length() != 2 || r.ViaCount() != 1 {
		t.Errorf("length=%d vias=%d", r.Length(), r.ViaCount())
	}
}

func TestGateBounds(t *testing.T) {
	d := NewDesign("t", &Tech{}, geom.Rect{X2: 10, Y2: 10})
	g := d.AddGate("U1", "AND2")
	d.AddPin(g, "A", "n1", Shape{Rect: geom.Rect{X1: 1, Y1: 1, X2: 2, Y2: 2}})
	g.Obs = append(g.Obs, Shape{Rect: geom.Rect{X1: 0, Y1: 3, X2: 1, Y2: 4}})
	if b := g.Bounds(); b != (geom.Rect{X1: 0, Y1: 1, X2: 2, Y2: 4}) {
		t.Errorf("Bounds = %v", b)
	}
	if d.Net("n1") == nil || len(d.Net("n1").Nodes) != 1 {
		t.Error("AddPin did not create net node")
	}
}

func netNames(nets []*Net) []string {
	var out []string
	for _, n := range nets {
		out = append(out, n.Name)
	}
	return out
}
