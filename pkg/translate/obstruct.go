package translate

import (
	"math"

	"github.com/wrcad/xictools-sub010/pkg/db"
	"github.com/wrcad/xictools-sub010/pkg/geom"
	"github.com/wrcad/xictools-sub010/pkg/grid"
)

// createObstructions marks cells near obstruction geometry. A cell where
// even a wire would violate spacing becomes fully obstructed. A cell that
// can hold a wire but not a via is obstructed with marks naming the side
// the obstruction lies on.
func (t *translator) createObstructions() {
	for _, s := range obstructionShapes(t.d) {
		t.checkObstruct(s)
	}
}

func (t *translator) checkObstruct(s db.Shape) {
	l := s.Layer
	spacing := t.tech.Layers[l].Spacing
	wireLimit := spacing + t.tech.RouteHalfWidth(l)
	viaLimit := spacing + t.tech.ViaHalfWidth(l)
	reachLimit := math.Max(wireLimit, viaLimit)

	x1, y1, x2, y2 := t.g.CellRange(s.Rect.Expand(reachLimit))
	for x := x1; x <= x2; x++ {
		for y := y1; y <= y2; y++ {
			p := t.g.Phys(x, y)
			d := s.Rect.Dist(p)
			i := t.cellIndex(x, y)
			if float32(d) < t.obsDist[l][i] {
				t.obsDist[l][i] = float32(d)
			}
			switch {
			case d+geom.Eps < wireLimit:
				t.markObstruct(x, y, l, 0)
			case d+geom.Eps < viaLimit:
				t.markObstruct(x, y, l, obstructSides(p, s.Rect))
			}
		}
	}
}

func obstructSides(p geom.Point, r geom.Rect) uint32 {
	var bits uint32
	if r.Y1 > p.Y {
		bits |= grid.ObstructN
	}
	if r.Y2 < p.Y {
		bits |= grid.ObstructS
	}
	if r.X1 > p.X {
		bits |= grid.ObstructE
	}
	if r.X2 < p.X {
		bits |= grid.ObstructW
	}
	return bits
}

// markObstruct tightens a cell to NoNet. Sides of zero mean fully obstructed.
func (t *translator) markObstruct(x, y, l int, sides uint32) {
	w := t.g.Obs(x, y, l)
	if grid.IsFullObstruction(w) {
		return
	}
	blocked := w & grid.BlockedMask
	if sides == 0 {
		t.g.SetObs(x, y, l, grid.NoNet|blocked)
		return
	}
	var prev uint32
	if w&grid.NoNet != 0 {
		prev = w & grid.ObstructMask
	}
	t.g.SetObs(x, y, l, grid.NoNet|blocked|prev|sides)
}

// thinVariablePitch removes off-track cells on layers whose track pitch is
// a multiple of the grid pitch. Off-track cells next to a node keep their
// place but cannot carry a wire along the off-track axis.
func (t *translator) thinVariablePitch() {
	for l, layer := range t.tech.Layers {
		rx := int(math.Round(layer.PitchX / t.g.PitchX))
		ry := int(math.Round(layer.PitchY / t.g.PitchY))
		if rx <= 1 && ry <= 1 {
			continue
		}
		for x := 0; x < t.g.NumX; x++ {
			for y := 0; y < t.g.NumY; y++ {
				offX := rx > 1 && x%rx != 0
				offY := ry > 1 && y%ry != 0
				if !offX && !offY {
					continue
				}
				if t.g.Obs(x, y, l)&grid.NoNet != 0 {
					continue
				}
				t.rep.ThinnedCells++
				if !t.nearNode(x, y, l) {
					t.setNoNet(x, y, l)
					continue
				}
				if offX {
					t.g.BlockRoute(x, y, l, grid.North)
					t.g.BlockRoute(x, y, l, grid.South)
				}
				if offY {
					t.g.BlockRoute(x, y, l, grid.East)
					t.g.BlockRoute(x, y, l, grid.West)
				}
			}
		}
	}
}

// nearNode reports whether the cell or a lateral neighbor belongs to a node.
func (t *translator) nearNode(x, y, l int) bool {
	if t.g.NodeAt(x, y, l) != nil {
		return true
	}
	for _, d := range []grid.Dir{grid.North, grid.South, grid.East, grid.West} {
		dx, dy, _ := d.Delta()
		if t.g.InBounds(x+dx, y+dy, l) && t.g.NodeAt(x+dx, y+dy, l) != nil {
			return true
		}
	}
	return false
}

// findRouteBlocks blocks single moves whose wire would pass within spacing
// of tap or obstruction geometry even though both end cells are clear.
func (t *translator) findRouteBlocks() {
	for _, s := range t.index.shapes {
		l := s.Layer
		spacing := t.tech.Layers[l].Spacing
		rh := t.tech.RouteHalfWidth(l)
		reach := spacing + rh + math.Max(t.g.PitchX, t.g.PitchY)
		x1, y1, x2, y2 := t.g.CellRange(s.Rect.Expand(reach))
		for x := x1; x <= x2; x++ {
			for y := y1; y <= y2; y++ {
				for _, d := range []grid.Dir{grid.East, grid.North} {
					dx, dy, _ := d.Delta()
					nx, ny := x+dx, y+dy
					if !t.g.InBounds(nx, ny, l) {
						continue
					}
					w1, w2 := t.g.Obs(x, y, l), t.g.Obs(nx, ny, l)
					if w1&grid.NoNet != 0 || w2&grid.NoNet != 0 || w1&d.Blocked() != 0 {
						continue
					}
					if s.net != 0 && (grid.NetNum(w1) == s.net || grid.NetNum(w2) == s.net) {
						continue
					}
					a, b := t.g.Phys(x, y), t.g.Phys(nx, ny)
					wire := geom.NewRect(a.X, a.Y, b.X, b.Y).Expand(rh)
					if wire.Gap(s.Rect)+geom.Eps < spacing {
						t.g.BlockRoute(x, y, l, d)
						t.rep.RouteBlocks++
					}
				}
			}
		}
	}
}
