package translate

import (
	"io"
	"log/slog"
	"math"
	"reflect"
	"testing"

	"github.com/wrcad/xictools-sub010/pkg/db"
	"github.com/wrcad/xictools-sub010/pkg/geom"
	"github.com/wrcad/xictools-sub010/pkg/grid"
)

var quiet = slog.New(slog.NewTextHandler(io.Discard, nil))

func testTech(layers int) *db.Tech {
	tech := &db.Tech{}
	for i := 0; i < layers; i++ {
		dir := db.Horizontal
		if i%2 == 1 {
			dir = db.Vertical
		}
		tech.Layers = append(tech.Layers, db.Layer{Name: "m", Direction: dir, PitchX: 1, PitchY: 1, Width: 0.3, Spacing: 0.3})
		if i > 0 {
			tech.Vias = append(tech.Vias, db.Via{Name: "v", Lower: i - 1, Width: 0.4, Height: 0.4})
		}
	}
	return tech
}

func rect(l int, x1, y1, x2, y2 float64) db.Shape {
	return db.Shape{Layer: l, Rect: geom.NewRect(x1, y1, x2, y2)}
}

// square returns a small pin centred on grid point (x, y).
func square(l, x, y int) db.Shape {
	return rect(l, float64(x)-0.2, float64(y)-0.2, float64(x)+0.2, float64(y)+0.2)
}

func runTranslate(t *testing.T, d *db.Design) (*grid.Grid, *Report) {
	t.Helper()
	g, err := grid.New(d.Tech, d.Area)
	if err != nil {
		t.Fatalf("grid.New: %v", err)
	}
	rep, err := Run(d, g, quiet)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	return g, rep
}

func newDesign(layers int) *db.Design {
	return db.NewDesign("t", testTech(layers), geom.Rect{X2: 9, Y2: 9})
}

func TestInsideTaps(t *testing.T) {
	d := newDesign(2)
	d.AddPort("a1", "a", square(0, 1, 1))
	d.AddPort("a2", "a", square(1, 6, 4))

	g, _ := runTranslate(t, d)
	a := d.Net("a")
	if w := g.Obs(1, 1, 0); grid.NetNum(w) != a.Number {
		t.Errorf("tap cell word %#x", w)
	}
	if n := g.NodeAt(1, 1, 0); n != a.Nodes[0] {
		t.Errorf("tap owner = %v", n)
	}
	if got := a.Nodes[0].Taps; len(got) != 1 || got[0] != (db.GridPoint{X: 1, Y: 1, Layer: 0}) {
		t.Errorf("taps = %v", got)
	}
	if a.Nodes[0].NumTaps != 1 || a.Nodes[1].NumTaps != 1 {
		t.Errorf("NumTaps = %d, %d", a.Nodes[0].NumTaps, a.Nodes[1].NumTaps)
	}
	if g.PinLayers != 2 {
		t.Errorf("PinLayers = %d", g.PinLayers)
	}
}

func TestObstructions(t *testing.T) {
	d := newDesign(2)
	d.Obstructions = append(d.Obstructions, rect(0, 3, 3, 4, 4), rect(0, 5.47, 0, 6, 1))
	g, _ := runTranslate(t, d)

	for _, c := range [][2]int{{3, 3}, {3, 4}, {4, 3}, {4, 4}} {
		if w := g.Obs(c[0], c[1], 0); !grid.IsFullObstruction(w) {
			t.Errorf("cell %v word %#x, want full obstruction", c, w)
		}
	}
	if w := g.Obs(2, 3, 0); w != 0 {
		t.Errorf("cell (2,3) word %#x, want free", w)
	}
	// 0.47 from the edge: a wire fits, a via does not.
	if w := g.Obs(5, 0, 0); w != grid.NoNet|grid.ObstructE {
		t.Errorf("cell (5,0) word %#x, want NoNet|ObstructE", w)
	}
	if g.PinLayers != 0 {
		t.Errorf("PinLayers = %d, want 0", g.PinLayers)
	}
}

func TestUnconnectedPinIsObstruction(t *testing.T) {
	d := newDesign(1)
	gt := d.AddGate("U1", "INV")
	d.AddPin(gt, "NC", "", square(0, 2, 2))
	g, _ := runTranslate(t, d)
	if !grid.IsFullObstruction(g.Obs(2, 2, 0)) {
		t.Errorf("unconnected pin cell word %#x", g.Obs(2, 2, 0))
	}
}

func TestTapConflict(t *testing.T) {
	d := newDesign(1)
	d.AddPort("a1", "a", square(0, 2, 2))
	d.AddPort("a2", "a", square(0, 7, 7))
	d.AddPort("b1", "b", rect(0, 1.8, 1.8, 3.2, 2.2))
	d.AddPort("b2", "b", square(0, 7, 1))

	g, rep := runTranslate(t, d)
	if w := g.Obs(2, 2, 0); w&grid.NoNet == 0 {
		t.Errorf("shared cell word %#x, want NoNet", w)
	}
	if rep.Conflicts == 0 {
		t.Error("conflict not counted")
	}
	if grid.NetNum(g.Obs(3, 2, 0)) != d.Net("b").Number {
		t.Errorf("b keeps its other cell: %#x", g.Obs(3, 2, 0))
	}
	// a1 lost its only cell, so a tap was forced or the node reported.
	if rep.ForcedTaps+rep.UnreachableNodes == 0 {
		t.Error("a1 has no taps and nothing was reported")
	}
}

func TestHaloStubAndOffset(t *testing.T) {
	d := newDesign(1)
	d.AddPort("s1", "s", rect(0, 0.8, 2.3, 1.2, 2.7))
	d.AddPort("s2", "s", square(0, 8, 8))
	d.AddPort("o1", "o", rect(0, 4.8, 2.1, 5.2, 2.5))
	d.AddPort("o2", "o", square(0, 8, 1))
	g, _ := runTranslate(t, d)

	ni := g.NodeInfo(1, 2, 0)
	if ni == nil || ni.Flags != grid.StubNS || math.Abs(ni.Stub-0.3) > 1e-9 {
		t.Fatalf("stub below pin: %+v", ni)
	}
	ni = g.NodeInfo(1, 3, 0)
	if ni == nil || ni.Flags != grid.StubNS || math.Abs(ni.Stub+0.3) > 1e-9 {
		t.Fatalf("stub above pin: %+v", ni)
	}
	if n := d.Net("s").Nodes[0]; len(n.Extend) != 2 || n.NumTaps != 2 {
		t.Errorf("s1 extend=%v numtaps=%d", n.Extend, n.NumTaps)
	}

	ni = g.NodeInfo(5, 2, 0)
	if ni == nil || ni.Flags != grid.OffsetNS || math.Abs(ni.Offset-0.1) > 1e-9 {
		t.Fatalf("offset tap: %+v", ni)
	}
	if g.NodeInfo(5, 3, 0) != nil {
		t.Error("cell at clearance distance should be untouched")
	}
}

func TestDiagonalCornerUnroutable(t *testing.T) {
	d := newDesign(1)
	// Corner (1.3,1.3) sits 0.3 from cell (1,1) on both axes.
	d.AddPort("c1", "c", rect(0, 1.3, 1.3, 2.7, 1.7))
	d.AddPort("c2", "c", square(0, 8, 8))
	g, _ := runTranslate(t, d)
	if w := g.Obs(1, 1, 0); w&grid.NoNet == 0 {
		t.Errorf("diagonal corner cell word %#x, want NoNet", w)
	}
	if ni := g.NodeInfo(2, 1, 0); ni == nil || ni.Flags != grid.StubNS {
		t.Errorf("edge cell below pin: %+v", ni)
	}
}

func TestForcedTap(t *testing.T) {
	d := newDesign(1)
	d.AddPort("f1", "f", square(0, 1, 1))
	d.AddPort("f2", "f", square(0, 8, 8))
	d.Obstructions = append(d.Obstructions, rect(0, 0.9, 0.9, 1.1, 1.1))

	g, rep := runTranslate(t, d)
	if rep.ForcedTaps != 1 {
		t.Fatalf("ForcedTaps = %d, want 1", rep.ForcedTaps)
	}
	node := d.Net("f").Nodes[0]
	if node.NumTaps != 1 || g.NodeAt(1, 1, 0) != node {
		t.Errorf("forced tap not placed: numtaps=%d owner=%v", node.NumTaps, g.NodeAt(1, 1, 0))
	}
	if grid.NetNum(g.Obs(1, 1, 0)) != d.Net("f").Number {
		t.Errorf("forced cell word %#x", g.Obs(1, 1, 0))
	}
}

func TestVariablePitchThinning(t *testing.T) {
	d := newDesign(2)
	d.Tech.Layers[1].PitchX = 2
	d.AddPort("v1", "v", square(1, 3, 3))
	d.AddPort("v2", "v", square(0, 8, 8))
	g, rep := runTranslate(t, d)

	if rep.ThinnedCells == 0 {
		t.Fatal("no cells thinned")
	}
	if w := g.Obs(5, 5, 1); w&grid.NoNet == 0 {
		t.Errorf("off-track cell word %#x, want NoNet", w)
	}
	if w := g.Obs(4, 5, 1); w != 0 {
		t.Errorf("on-track cell word %#x, want free", w)
	}
	// The pin cell is off track but kept, with north/south moves blocked.
	if w := g.Obs(3, 3, 1); w&grid.NoNet != 0 || w&grid.BlockedN == 0 || w&grid.BlockedS == 0 {
		t.Errorf("pin cell word %#x", w)
	}
	if w := g.Obs(3, 3, 0); w != 0 {
		t.Errorf("layer 0 untouched, got %#x", w)
	}
}

func TestRouteBlocks(t *testing.T) {
	d := newDesign(1)
	d.AddPort("n1", "n", rect(0, 1.4, 2.8, 1.6, 3.6))
	d.AddPort("n2", "n", square(0, 8, 8))
	g, rep := runTranslate(t, d)

	if ni := g.NodeInfo(1, 3, 0); ni == nil || ni.Flags != grid.StubEW {
		t.Errorf("halo west of pin: %+v", ni)
	}
	if g.Obs(1, 4, 0)&grid.BlockedE == 0 || g.Obs(2, 4, 0)&grid.BlockedW == 0 {
		t.Errorf("move above pin not blocked: %#x %#x", g.Obs(1, 4, 0), g.Obs(2, 4, 0))
	}
	if g.Obs(1, 2, 0)&grid.BlockedE != 0 {
		t.Error("move below pin blocked")
	}
	if rep.RouteBlocks == 0 {
		t.Error("RouteBlocks not counted")
	}
}

func TestExpandShapes(t *testing.T) {
	in := []db.Shape{
		rect(0, 0, 0, 2, 1),
		rect(0, 2, 0, 3, 1),
		rect(0, 0, 1, 1, 2),
		rect(1, 5, 5, 6, 6),
	}
	out := expandShapes(in)
	if out[0].Rect != geom.NewRect(0, 0, 3, 1) {
		t.Errorf("horizontal merge: %v", out[0].Rect)
	}
	if out[2].Rect != geom.NewRect(0, 0, 1, 2) {
		t.Errorf("vertical merge: %v", out[2].Rect)
	}
	if out[3].Rect != in[3].Rect {
		t.Error("other layer changed")
	}
	if in[0].Rect != geom.NewRect(0, 0, 2, 1) {
		t.Error("input mutated")
	}
}

func TestTranslateIdempotent(t *testing.T) {
	build := func() *db.Design {
		d := newDesign(3)
		d.Tech.Layers[2].PitchY = 2
		d.AddPort("a1", "a", rect(0, 0.8, 2.3, 1.2, 2.7))
		d.AddPort("a2", "a", square(2, 7, 7))
		d.AddPort("b1", "b", rect(0, 1.45, 4.8, 1.55, 5.6))
		d.AddPort("b2", "b", rect(1, 4.8, 2.1, 5.2, 2.5))
		gt := d.AddGate("U1", "X")
		gt.Obs = append(gt.Obs, rect(0, 3, 3, 4, 4), rect(1, 5.47, 6, 6, 7))
		return d
	}

	d := build()
	g1, rep1 := runTranslate(t, d)
	snap1 := g1.Snapshot()
	taps1 := d.Net("a").Nodes[0].Extend

	// Same design object, fresh grid.
	g2, rep2 := runTranslate(t, d)
	if !reflect.DeepEqual(snap1, g2.Snapshot()) {
		t.Error("second run on the same design changed the grid")
	}
	if !reflect.DeepEqual(rep1, rep2) {
		t.Errorf("reports differ: %v vs %v", rep1, rep2)
	}
	if !reflect.DeepEqual(taps1, d.Net("a").Nodes[0].Extend) {
		t.Error("tap lists differ")
	}

	// Independent copy of the geometry.
	g3, _ := runTranslate(t, build())
	if !reflect.DeepEqual(snap1, g3.Snapshot()) {
		t.Error("identical geometry gave a different grid")
	}
	for l := 0; l < g1.NumLayers; l++ {
		for x := 0; x < g1.NumX; x++ {
			for y := 0; y < g1.NumY; y++ {
				a, b := g1.NodeInfo(x, y, l), g3.NodeInfo(x, y, l)
				if (a == nil) != (b == nil) {
					t.Fatalf("node info presence differs at (%d,%d,%d)", x, y, l)
				}
				if a != nil && (a.Flags != b.Flags || a.Stub != b.Stub || a.Offset != b.Offset) {
					t.Fatalf("node info differs at (%d,%d,%d)", x, y, l)
				}
			}
		}
	}
}
