// Package translate turns pin and obstruction geometry into grid state:
// obstruction words, node ownership of tap cells, stub and offset metadata
// for cells that reach a pin off-grid, and blocked moves next to pins.
//
// # Passes
//
// Run applies its passes in a fixed order because later passes rely on the
// marks of earlier ones:
//
//  1. tap expansion: merge same-node rectangles that abut
//  2. clipping of taps outside the routable area
//  3. obstructions from gate, port and free obstruction geometry
//  4. ownership of cells inside tap geometry
//  5. the halo around taps: stubs, offset vias, or unusable cells
//  6. offset vias checked against other nets' geometry
//  7. thinning of layers whose pitch is coarser than the grid
//  8. stub and offset repair against notch violations
//  9. blocked moves whose wire would pass too close to a tap
//  10. reachable tap counting, with forced taps as a last resort
//  11. pin layer compaction
//
// Passes only ever tighten an obstruction. The one exception is a forced
// tap in pass 10, which is logged.
package translate

import (
	"fmt"
	"log/slog"
	"math"

	"github.com/wrcad/xictools-sub010/pkg/db"
	"github.com/wrcad/xictools-sub010/pkg/geom"
	"github.com/wrcad/xictools-sub010/pkg/grid"
)

// Report counts geometry anomalies found while translating.
type Report struct {
	DroppedTaps      int
	ClippedTaps      int
	Conflicts        int
	DisabledOffsets  int
	ThinnedCells     int
	AdjustedStubs    int
	RouteBlocks      int
	ForcedTaps       int
	UnreachableNodes int
}

func (r *Report) String() string {
	return fmt.Sprintf("dropped=%d clipped=%d conflicts=%d offsets-disabled=%d thinned=%d adjusted=%d route-blocks=%d forced=%d unreachable=%d",
		r.DroppedTaps, r.ClippedTaps, r.Conflicts, r.DisabledOffsets, r.ThinnedCells,
		r.AdjustedStubs, r.RouteBlocks, r.ForcedTaps, r.UnreachableNodes)
}

type translator struct {
	d    *db.Design
	g    *grid.Grid
	tech *db.Tech
	log  *slog.Logger
	rep  *Report

	// obsDist holds, per layer, the distance from each cell to the
	// nearest obstruction seen in pass 3.
	obsDist [][]float32
	index   *shapeIndex
}

// Run resets g and translates the geometry of d into it.
func Run(d *db.Design, g *grid.Grid, log *slog.Logger) (*Report, error) {
	if log == nil {
		log = slog.Default()
	}
	if len(d.Nets) > grid.MaxNetNum {
		return nil, fmt.Errorf("translate: %d nets exceed the grid limit of %d", len(d.Nets), grid.MaxNetNum)
	}
	if g.NumLayers != d.Tech.NumLayers() {
		return nil, fmt.Errorf("translate: grid has %d layers, technology %d", g.NumLayers, d.Tech.NumLayers())
	}
	g.Reset()

	t := &translator{d: d, g: g, tech: d.Tech, log: log, rep: &Report{}}
	t.obsDist = make([][]float32, g.NumLayers)
	for l := range t.obsDist {
		t.obsDist[l] = make([]float32, g.NumX*g.NumY)
		for i := range t.obsDist[l] {
			t.obsDist[l][i] = float32(math.Inf(1))
		}
	}

	t.expandTaps()
	t.clipTaps()
	t.index = newShapeIndex(d, g)
	t.createObstructions()
	t.markInsideNodes()
	t.markHalo()
	t.checkOffsetTaps()
	t.thinVariablePitch()
	t.adjustStubs()
	t.findRouteBlocks()
	t.countReachableTaps()
	pin := g.CountPinLayers()

	log.Debug("grid translation done", "pinlayers", pin, "report", t.rep.String())
	return t.rep, nil
}

// nodes calls fn for each node of each net in declaration order.
func (t *translator) nodes(fn func(*db.Net, *db.Node)) {
	for _, n := range t.d.Nets {
		for _, node := range n.Nodes {
			fn(n, node)
		}
	}
}

func (t *translator) cellIndex(x, y int) int {
	return x + y*t.g.NumX
}

// setNoNet makes a cell unusable while keeping its blocked moves, and
// detaches any node from it.
func (t *translator) setNoNet(x, y, l int) {
	w := t.g.Obs(x, y, l)
	t.g.SetObs(x, y, l, grid.NoNet|w&grid.BlockedMask)
	if ni := t.g.NodeInfo(x, y, l); ni != nil {
		ni.NodeLoc = nil
		ni.Flags = 0
	}
}

// claim gives a cell to node.
func (t *translator) claim(x, y, l int, node *db.Node) *grid.NodeInfo {
	w := t.g.Obs(x, y, l)
	t.g.SetObs(x, y, l, uint32(node.Net.Number)|w&grid.BlockedMask)
	ni := t.g.EnsureNodeInfo(x, y, l)
	*ni = grid.NodeInfo{NodeLoc: node, NodeSav: node}
	return ni
}

// axisGaps returns the signed distance from p to r along each axis,
// positive when r lies to the east or north, zero when p is within r's
// span on that axis.
func axisGaps(p geom.Point, r geom.Rect) (dx, dy float64) {
	switch {
	case p.X < r.X1-geom.Eps:
		dx = r.X1 - p.X
	case p.X > r.X2+geom.Eps:
		dx = r.X2 - p.X
	}
	switch {
	case p.Y < r.Y1-geom.Eps:
		dy = r.Y1 - p.Y
	case p.Y > r.Y2+geom.Eps:
		dy = r.Y2 - p.Y
	}
	return
}
