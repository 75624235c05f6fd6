package translate

import (
	"math"

	"github.com/wrcad/xictools-sub010/pkg/db"
	"github.com/wrcad/xictools-sub010/pkg/geom"
	"github.com/wrcad/xictools-sub010/pkg/grid"
)

// countReachableTaps prunes each node's tap lists to the cells it still
// owns and counts those with at least one usable move. A routable node with
// none gets the least violating candidate cell forced open.
func (t *translator) countReachableTaps() {
	t.nodes(func(n *db.Net, node *db.Node) {
		node.Taps = t.owned(node, node.Taps)
		node.Extend = t.owned(node, node.Extend)
		node.NumTaps = 0
		for _, c := range node.Taps {
			if t.reachable(c, n.Number) {
				node.NumTaps++
			}
		}
		for _, c := range node.Extend {
			if t.reachable(c, n.Number) {
				node.NumTaps++
			}
		}
		if node.NumTaps > 0 || !n.Routable() {
			return
		}
		if t.forceTap(n, node) {
			return
		}
		t.rep.UnreachableNodes++
		t.log.Error("node has no reachable tap", "net", n.Name, "node", node.Name())
	})
}

func (t *translator) owned(node *db.Node, cells []db.GridPoint) []db.GridPoint {
	out := cells[:0]
	for _, c := range cells {
		w := t.g.Obs(c.X, c.Y, c.Layer)
		if w&grid.NoNet == 0 && grid.NetNum(w) == node.Net.Number && t.g.NodeAt(c.X, c.Y, c.Layer) == node {
			out = append(out, c)
		}
	}
	return out
}

// reachable reports whether some move out of c enters a cell that the net
// could occupy.
func (t *translator) reachable(c db.GridPoint, net int) bool {
	w := t.g.Obs(c.X, c.Y, c.Layer)
	for _, d := range grid.Dirs {
		if w&d.Blocked() != 0 {
			continue
		}
		dx, dy, dl := d.Delta()
		nx, ny, nl := c.X+dx, c.Y+dy, c.Layer+dl
		if !t.g.InBounds(nx, ny, nl) {
			continue
		}
		nw := t.g.Obs(nx, ny, nl)
		if nw&grid.NoNet != 0 {
			continue
		}
		if nn := grid.NetNum(nw); nn == 0 || nn == net {
			return true
		}
	}
	return false
}

type candidate struct {
	c     db.GridPoint
	r     reach
	score float64
}

// forceTap opens the candidate cell with the smallest spacing violation
// on or around the node geometry.
func (t *translator) forceTap(n *db.Net, node *db.Node) bool {
	var best *candidate
	for _, s := range node.Geometry {
		l := s.Layer
		need := t.tech.Layers[l].Spacing + t.tech.ViaHalfWidth(l)
		x1, y1, x2, y2 := t.g.CellRange(s.Rect.Expand(t.tech.Clearance(l)))
		for y := y1; y <= y2; y++ {
			for x := x1; x <= x2; x++ {
				w := t.g.Obs(x, y, l)
				if nn := grid.NetNum(w); nn != 0 && nn != n.Number {
					continue
				}
				c := db.GridPoint{X: x, Y: y, Layer: l}
				p := t.g.Phys(x, y)
				if !t.reachable(c, n.Number) || t.onOtherNet(p, l, n.Number) {
					continue
				}
				r := reach{ok: true}
				d := s.Rect.Dist(p)
				if d > geom.Eps {
					if r = t.halo(p, s.Rect, l); !r.ok {
						continue
					}
				}
				score := d + math.Max(0, need-float64(t.obsDist[l][t.cellIndex(x, y)]))
				if best == nil || score < best.score-geom.Eps {
					best = &candidate{c: c, r: r, score: score}
				}
			}
		}
	}
	if best == nil {
		return false
	}
	c := best.c
	ni := t.claim(c.X, c.Y, c.Layer, node)
	t.applyReach(ni, best.r)
	if best.r.flags == 0 {
		node.Taps = append(node.Taps, c)
	} else {
		node.Extend = append(node.Extend, c)
	}
	node.NumTaps = 1
	t.rep.ForcedTaps++
	t.log.Warn("forcing tap", "net", n.Name, "node", node.Name(), "cell", c.String(), "violation", best.score)
	return true
}

// onOtherNet reports whether p lies on tap geometry of another net.
func (t *translator) onOtherNet(p geom.Point, l, net int) bool {
	hit := false
	t.index.near(l, geom.Box(p, 0, 0), func(s *indexedShape) {
		if s.net != 0 && s.net != net && s.Rect.Contains(p) {
			hit = true
		}
	})
	return hit
}
