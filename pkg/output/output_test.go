package output

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wrcad/xictools-sub010/pkg/db"
	"github.com/wrcad/xictools-sub010/pkg/geom"
	"github.com/wrcad/xictools-sub010/pkg/grid"
)

func testTech(viaSize float64) *db.Tech {
	return &db.Tech{
		Layers: []db.Layer{
			{Name: "m1", Direction: db.Horizontal, PitchX: 1, PitchY: 1, Width: 0.4, Spacing: 0.3},
			{Name: "m2", Direction: db.Vertical, PitchX: 1, PitchY: 1, Width: 0.4, Spacing: 0.3},
		},
		Vias: []db.Via{
			{Name: "via12", Lower: 0, Width: viaSize, Height: viaSize},
			{Name: "via12r", Lower: 0, Width: viaSize, Height: viaSize},
		},
	}
}

func setup(t *testing.T, viaSize float64) (*db.Design, *grid.Grid, *db.Net) {
	t.Helper()
	tech := testTech(viaSize)
	area := geom.NewRect(0, 0, 9, 9)
	d := db.NewDesign("t", tech, area)
	g, err := grid.New(tech, area)
	require.NoError(t, err)
	return d, g, d.AddNet("a")
}

func wire(l, x1, y1, x2, y2 int) db.Seg {
	return db.Seg{Layer: l, X1: x1, Y1: y1, X2: x2, Y2: y2, Type: db.SegWire}
}

func via(l, x, y int) db.Seg {
	return db.Seg{Layer: l, X1: x, Y1: y, X2: x, Y2: y, Type: db.SegVia}
}

func TestViaOffsets(t *testing.T) {
	o := ViaOffsets(testTech(0.8), 1, 1)
	assert.InDelta(t, 0.1, o.X[0], 1e-9)
	assert.InDelta(t, 0.1, o.Y[1], 1e-9)

	o = ViaOffsets(testTech(0.5), 1, 1)
	assert.Zero(t, o.X[0])
	assert.Zero(t, o.Y[0])
}

func TestGenerateCoordinates(t *testing.T) {
	d, g, n := setup(t, 0.5)
	n.Routes = []*db.Route{{Segs: []db.Seg{wire(0, 0, 0, 3, 0), via(0, 3, 0), wire(1, 3, 0, 3, 2)}}}
	d.AddNet("empty")

	paths := Generate(d, g, Options{ViaPattern: PatternNone})
	require.Len(t, paths, 1)
	np := paths[0]
	assert.Equal(t, "a", np.Name)
	assert.Empty(t, np.Special)
	require.Len(t, np.Regular, 3)
	assert.Equal(t, Element{Layer: 0, X1: 0, Y1: 0, X2: 3, Y2: 0}, np.Regular[0])
	assert.Equal(t, Element{Layer: 0, X1: 3, Y1: 0, X2: 3, Y2: 0, Via: true, ViaName: "via12"}, np.Regular[1])
	assert.Equal(t, Element{Layer: 1, X1: 3, Y1: 0, X2: 3, Y2: 2}, np.Regular[2])
}

func TestViaPattern(t *testing.T) {
	tests := []struct {
		pattern string
		x       int
		want    string
	}{
		{PatternNone, 1, "via12"},
		{PatternNormal, 1, "via12r"},
		{PatternNormal, 2, "via12"},
		{PatternInverted, 1, "via12"},
		{PatternInverted, 2, "via12r"},
	}
	for _, tt := range tests {
		t.Run(tt.pattern, func(t *testing.T) {
			d, g, n := setup(t, 0.5)
			n.Routes = []*db.Route{{Segs: []db.Seg{via(0, tt.x, 0)}}}
			paths := Generate(d, g, Options{ViaPattern: tt.pattern})
			require.Len(t, paths, 1)
			assert.Equal(t, tt.want, paths[0].Regular[0].ViaName)
		})
	}
}

func TestPatchTransitions(t *testing.T) {
	segs := patchTransitions([]db.Seg{wire(0, 0, 0, 2, 0), wire(1, 2, 0, 2, 3)})
	require.Len(t, segs, 3)
	assert.Equal(t, via(0, 2, 0), segs[1])

	segs = patchTransitions([]db.Seg{wire(0, 0, 0, 2, 0), via(0, 2, 0), wire(1, 2, 0, 2, 3)})
	assert.Len(t, segs, 3)
}

func pinCell(g *grid.Grid, n *db.Net, x, y int, flags grid.NIFlags, dist float64) {
	node := &db.Node{Net: n}
	n.Nodes = append(n.Nodes, node)
	ni := g.EnsureNodeInfo(x, y, 0)
	*ni = grid.NodeInfo{NodeLoc: node, NodeSav: node, Flags: flags}
	if flags&grid.StubMask != 0 {
		ni.Stub = dist
	} else {
		ni.Offset = dist
	}
	g.PinLayers = 1
}

func TestStubExtendsWire(t *testing.T) {
	d, g, n := setup(t, 0.5)
	pinCell(g, n, 2, 0, grid.StubEW, 0.3)
	n.Routes = []*db.Route{{Segs: []db.Seg{wire(0, 0, 0, 2, 0)}, Flags: db.RouteEndNode}}

	np := Generate(d, g, Options{})[0]
	assert.Empty(t, np.Special)
	assert.InDelta(t, 2.3, np.Regular[0].X2, 1e-9)
}

func TestStubAcrossWireIsSpecial(t *testing.T) {
	d, g, n := setup(t, 0.5)
	pinCell(g, n, 2, 0, grid.StubNS, -0.25)
	n.Routes = []*db.Route{{Segs: []db.Seg{wire(0, 0, 0, 2, 0)}, Flags: db.RouteEndNode}}

	np := Generate(d, g, Options{})[0]
	require.Len(t, np.Special, 1)
	assert.Equal(t, Element{Layer: 0, X1: 2, Y1: 0, X2: 2, Y2: -0.25}, np.Special[0])
	assert.Equal(t, 2.0, np.Regular[0].X2)
}

func TestOffsetViaMoves(t *testing.T) {
	d, g, n := setup(t, 0.5)
	pinCell(g, n, 2, 0, grid.OffsetNS, 0.2)
	n.Routes = []*db.Route{{Segs: []db.Seg{via(0, 2, 0), wire(1, 2, 0, 2, 4)}, Flags: db.RouteStartNode}}

	np := Generate(d, g, Options{})[0]
	v := np.Regular[0]
	require.True(t, v.Via)
	assert.InDelta(t, 0.2, v.Y1, 1e-9)
	assert.Equal(t, v.Y1, v.Y2)
}

func TestOffsetWireReachesPin(t *testing.T) {
	tests := []struct {
		name    string
		flags   grid.NIFlags
		want    Element
		special []Element
	}{
		{
			name:  "along wire",
			flags: grid.OffsetEW,
			want:  Element{Layer: 0, X1: 0, Y1: 0, X2: 2.18, Y2: 0},
		},
		{
			name:    "across wire",
			flags:   grid.OffsetNS,
			want:    Element{Layer: 0, X1: 0, Y1: 0, X2: 2, Y2: 0},
			special: []Element{{Layer: 0, X1: 2, Y1: 0, X2: 2, Y2: 0.18}},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d, g, n := setup(t, 0.5)
			pinCell(g, n, 2, 0, tt.flags, 0.18)
			n.Routes = []*db.Route{{Segs: []db.Seg{wire(0, 0, 0, 2, 0)}, Flags: db.RouteEndNode}}

			np := Generate(d, g, Options{})[0]
			require.Len(t, np.Regular, 1)
			assert.InDelta(t, tt.want.X2, np.Regular[0].X2, 1e-9)
			assert.Equal(t, tt.want.Y2, np.Regular[0].Y2)
			require.Len(t, np.Special, len(tt.special))
			for i, sp := range tt.special {
				assert.InDelta(t, sp.Y2, np.Special[i].Y2, 1e-9)
				assert.Equal(t, sp.X1, np.Special[i].X1)
			}
		})
	}
}

func TestNudgeAdjacentVias(t *testing.T) {
	d, g, n := setup(t, 0.8)
	n.Routes = []*db.Route{{Segs: []db.Seg{via(0, 0, 0), wire(1, 0, 0, 1, 0), via(0, 1, 0)}}}

	np := Generate(d, g, Options{})[0]
	require.Len(t, np.Regular, 3)
	assert.InDelta(t, 0.1, np.Regular[0].X1, 1e-9)
	assert.InDelta(t, 0.9, np.Regular[2].X1, 1e-9)
}

func TestWriteRead(t *testing.T) {
	paths := []NetPaths{
		{
			Name: "clk",
			Regular: []Element{
				{Layer: 0, X1: 0, Y1: 0, X2: 2.5, Y2: 0},
				{Layer: 0, X1: 2.5, Y1: 0, X2: 2.5, Y2: 0, Via: true, ViaName: "via12"},
			},
			Special: []Element{{Layer: 1, X1: 2.5, Y1: 0, X2: 2.5, Y2: 0.15}},
		},
		{Name: "net with space", Regular: []Element{{Layer: 1, X1: 1, Y1: 1, X2: 1, Y2: 3}}},
	}
	var buf bytes.Buffer
	require.NoError(t, Write(&buf, "top", "run-1", paths))
	assert.True(t, strings.HasPrefix(buf.String(), "(routes top (run \"run-1\")\n"))

	f, err := Read(&buf)
	require.NoError(t, err)
	assert.Equal(t, "top", f.Design)
	assert.Equal(t, "run-1", f.RunID)
	require.Len(t, f.Nets, 2)
	assert.Equal(t, paths[0], f.Nets[0])
	assert.Equal(t, "net with space", f.Nets[1].Name)
	assert.Equal(t, paths[1].Regular, f.Nets[1].Regular)
	assert.Empty(t, f.Nets[1].Special)
}

func TestReadRejectsUnknownElement(t *testing.T) {
	_, err := Read(strings.NewReader("(routes x (net a (regular (arc 0 1 2))))"))
	require.Error(t, err)

	_, err = Read(strings.NewReader("(other)"))
	require.Error(t, err)
}
