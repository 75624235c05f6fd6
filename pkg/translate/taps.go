package translate

import (
	"math"

	"github.com/wrcad/xictools-sub010/pkg/db"
	"github.com/wrcad/xictools-sub010/pkg/geom"
	"github.com/wrcad/xictools-sub010/pkg/grid"
)

// expandTaps grows each tap rectangle over abutting rectangles of the same
// node and layer that span it fully in the other axis, so multi-rectangle
// pins do not leave false gaps.
func (t *translator) expandTaps() {
	t.nodes(func(_ *db.Net, node *db.Node) {
		node.Taps, node.Extend, node.NumTaps = nil, nil, 0
		node.Geometry = nil
		if node.Pin == nil {
			return
		}
		node.Geometry = expandShapes(node.Pin.Shapes)
	})
}

func expandShapes(in []db.Shape) []db.Shape {
	out := append([]db.Shape{}, in...)
	for changed := true; changed; {
		changed = false
		for i := range out {
			for j := range out {
				if i == j || out[i].Layer != out[j].Layer {
					continue
				}
				a, b := out[i].Rect, out[j].Rect
				n := a
				if b.Y1 <= a.Y1+geom.Eps && b.Y2 >= a.Y2-geom.Eps && b.X1 <= a.X2+geom.Eps && b.X2 >= a.X1-geom.Eps {
					n.X1, n.X2 = math.Min(a.X1, b.X1), math.Max(a.X2, b.X2)
				}
				if b.X1 <= a.X1+geom.Eps && b.X2 >= a.X2-geom.Eps && b.Y1 <= a.Y2+geom.Eps && b.Y2 >= a.Y1-geom.Eps {
					n.Y1, n.Y2 = math.Min(a.Y1, b.Y1), math.Max(a.Y2, b.Y2)
				}
				if n != a {
					out[i].Rect = n
					changed = true
				}
			}
		}
	}
	return out
}

// clipTaps drops tap geometry that cannot reach the grid and trims geometry
// that extends past it.
func (t *translator) clipTaps() {
	t.nodes(func(n *db.Net, node *db.Node) {
		kept := node.Geometry[:0]
		for _, s := range node.Geometry {
			bounds := t.g.Bounds().Expand(t.tech.Clearance(s.Layer))
			switch {
			case !bounds.Intersects(s.Rect):
				t.rep.DroppedTaps++
				t.log.Warn("tap outside routing area dropped", "net", n.Name, "node", node.Name(), "rect", s.Rect.String())
				continue
			case s.Rect.X1 < bounds.X1 || s.Rect.Y1 < bounds.Y1 || s.Rect.X2 > bounds.X2 || s.Rect.Y2 > bounds.Y2:
				t.rep.ClippedTaps++
				t.log.Warn("tap clipped to routing area", "net", n.Name, "node", node.Name(), "rect", s.Rect.String())
				s.Rect = geom.Rect{
					X1: math.Max(s.Rect.X1, bounds.X1), Y1: math.Max(s.Rect.Y1, bounds.Y1),
					X2: math.Min(s.Rect.X2, bounds.X2), Y2: math.Min(s.Rect.Y2, bounds.Y2),
				}
			}
			kept = append(kept, s)
		}
		node.Geometry = kept
	})
}

// markInsideNodes gives each cell whose centre lies on tap geometry to the
// node. A cell claimed by two nets becomes unusable.
func (t *translator) markInsideNodes() {
	t.nodes(func(n *db.Net, node *db.Node) {
		for _, s := range node.Geometry {
			x1, y1, x2, y2 := t.g.CellRange(s.Rect)
			for x := x1; x <= x2; x++ {
				for y := y1; y <= y2; y++ {
					w := t.g.Obs(x, y, s.Layer)
					switch nn := grid.NetNum(w); {
					case w&grid.NoNet != 0:
					case nn == 0:
						t.claim(x, y, s.Layer, node)
						node.Taps = append(node.Taps, db.GridPoint{X: x, Y: y, Layer: s.Layer})
					case nn != n.Number:
						t.rep.Conflicts++
						t.log.Warn("taps of different nets overlap", "net", n.Name, "node", node.Name(),
							"cell", db.GridPoint{X: x, Y: y, Layer: s.Layer}.String())
						t.setNoNet(x, y, s.Layer)
					}
				}
			}
		}
	})
}

// reach describes how a halo cell connects to a tap rectangle.
type reach struct {
	flags grid.NIFlags
	dist  float64
	ok    bool
}

// halo classifies a cell at p outside tap rectangle r on layer l. Edge
// cells get a stub when the via would not touch the tap, otherwise an
// offset. Corner cells fall back to the axis whose perpendicular gap is
// covered by the wire width, the layer direction first. Other diagonal
// cells cannot reach the tap.
func (t *translator) halo(p geom.Point, r geom.Rect, l int) reach {
	dx, dy := axisGaps(p, r)
	rh, vh := t.tech.RouteHalfWidth(l), t.tech.ViaHalfWidth(l)
	ns := reach{flags: grid.StubNS, dist: dy, ok: dx == 0 || math.Abs(dx) < rh}
	ew := reach{flags: grid.StubEW, dist: dx, ok: dy == 0 || math.Abs(dy) < rh}
	if dx == 0 && dy == 0 {
		return reach{ok: true}
	}
	var r1 reach
	switch {
	case dy == 0:
		r1 = ew
	case dx == 0:
		r1 = ns
	case ns.ok && ew.ok:
		if t.tech.Layers[l].Direction == db.Horizontal {
			r1 = ew
		} else {
			r1 = ns
		}
	case ns.ok:
		r1 = ns
	case ew.ok:
		r1 = ew
	default:
		return reach{}
	}
	if math.Abs(r1.dist) < vh-geom.Eps {
		if r1.flags == grid.StubNS {
			r1.flags = grid.OffsetNS
		} else {
			r1.flags = grid.OffsetEW
		}
	}
	return r1
}

func (t *translator) applyReach(ni *grid.NodeInfo, r reach) {
	ni.Flags = r.flags
	ni.Stub, ni.Offset = 0, 0
	if r.flags&grid.StubMask != 0 {
		ni.Stub = r.dist
	} else if r.flags&grid.OffsetMask != 0 {
		ni.Offset = r.dist
	}
}

// markHalo handles cells near but outside tap geometry.
func (t *translator) markHalo() {
	t.nodes(func(n *db.Net, node *db.Node) {
		for _, s := range node.Geometry {
			l := s.Layer
			x1, y1, x2, y2 := t.g.CellRange(s.Rect.Expand(t.tech.Clearance(l)))
			for x := x1; x <= x2; x++ {
				for y := y1; y <= y2; y++ {
					p := t.g.Phys(x, y)
					d := s.Rect.Dist(p)
					if d <= geom.Eps || d+geom.Eps >= t.tech.Clearance(l) {
						continue
					}
					w := t.g.Obs(x, y, l)
					if w&grid.NoNet != 0 {
						continue
					}
					switch nn := grid.NetNum(w); {
					case nn == n.Number:
						continue
					case nn != 0:
						// Another net's tap cell keeps its place; its halo
						// cells are too close to this tap.
						if ni := t.g.NodeInfo(x, y, l); ni != nil && ni.Flags == 0 && ni.NodeLoc != nil {
							continue
						}
						t.rep.Conflicts++
						t.setNoNet(x, y, l)
						continue
					}
					r := t.halo(p, s.Rect, l)
					if !r.ok {
						t.setNoNet(x, y, l)
						continue
					}
					t.applyReach(t.claim(x, y, l, node), r)
					node.Extend = append(node.Extend, db.GridPoint{X: x, Y: y, Layer: l})
				}
			}
		}
	})
}
