package translate

import (
	"math"

	"github.com/wrcad/xictools-sub010/pkg/db"
	"github.com/wrcad/xictools-sub010/pkg/geom"
	"github.com/wrcad/xictools-sub010/pkg/grid"
)

// viaFootprint returns the via metal at cell (x, y, l) after applying the
// cell's offset.
func (t *translator) viaFootprint(x, y, l int, ni *grid.NodeInfo) geom.Rect {
	p := t.g.Phys(x, y)
	switch {
	case ni.Flags&grid.OffsetNS != 0:
		p.Y += ni.Offset
	case ni.Flags&grid.OffsetEW != 0:
		p.X += ni.Offset
	}
	hx, hy := t.tech.ViaHalfSize(l)
	return geom.Box(p, hx, hy)
}

// checkOffsetTaps disables offset positions whose shifted via would sit
// within spacing of another net's tap or of an obstruction.
func (t *translator) checkOffsetTaps() {
	t.nodes(func(n *db.Net, node *db.Node) {
		for _, c := range node.Extend {
			ni := t.g.NodeInfo(c.X, c.Y, c.Layer)
			if ni == nil || ni.NodeLoc != node || ni.Flags&grid.OffsetMask == 0 {
				continue
			}
			via := t.viaFootprint(c.X, c.Y, c.Layer, ni)
			spacing := t.tech.Layers[c.Layer].Spacing
			bad := false
			t.index.near(c.Layer, via.Expand(spacing), func(s *indexedShape) {
				if s.net == n.Number {
					return
				}
				if via.Gap(s.Rect)+geom.Eps < spacing {
					bad = true
				}
			})
			if bad {
				t.rep.DisabledOffsets++
				t.log.Debug("offset tap disabled", "net", n.Name, "node", node.Name(), "cell", c.String())
				t.setNoNet(c.X, c.Y, c.Layer)
			}
		}
	})
}

// ownRect returns the node rectangle on layer l nearest to p.
func ownRect(node *db.Node, l int, p geom.Point) (geom.Rect, bool) {
	best, found := geom.Rect{}, false
	bestD := math.Inf(1)
	for _, s := range node.Geometry {
		if s.Layer != l {
			continue
		}
		if d := s.Rect.Dist(p); d < bestD {
			best, bestD, found = s.Rect, d, true
		}
	}
	return best, found
}

// adjustStubs repairs halo cells against the pin they reach. A stub shorter
// than the via half width becomes an offset and an offset too long to keep
// the via on the pin becomes a stub. A stub whose wire overhangs the pin
// edge by less than the spacing leaves a notch; such a cell switches to the
// other axis when that axis reaches the pin, and is dropped otherwise.
func (t *translator) adjustStubs() {
	t.nodes(func(n *db.Net, node *db.Node) {
		for _, c := range node.Extend {
			ni := t.g.NodeInfo(c.X, c.Y, c.Layer)
			if ni == nil || ni.NodeLoc != node || ni.Flags == 0 {
				continue
			}
			l := c.Layer
			p := t.g.Phys(c.X, c.Y)
			r, ok := ownRect(node, l, p)
			if !ok {
				continue
			}
			rh, vh := t.tech.RouteHalfWidth(l), t.tech.ViaHalfWidth(l)
			spacing := t.tech.Layers[l].Spacing

			switch {
			case ni.Flags&grid.StubMask != 0 && math.Abs(ni.Stub) < vh-geom.Eps:
				ni.Offset, ni.Stub = ni.Stub, 0
				ni.Flags = ni.Flags << 2 & grid.OffsetMask
				t.rep.AdjustedStubs++
			case ni.Flags&grid.OffsetMask != 0 && math.Abs(ni.Offset) > vh+geom.Eps:
				ni.Stub, ni.Offset = ni.Offset, 0
				ni.Flags = ni.Flags >> 2 & grid.StubMask
				t.rep.AdjustedStubs++
			}

			if ni.Flags&grid.StubMask == 0 {
				continue
			}
			var lo, hi, v float64
			if ni.Flags&grid.StubNS != 0 {
				lo, hi, v = r.X1, r.X2, p.X
			} else {
				lo, hi, v = r.Y1, r.Y2, p.Y
			}
			overhang := math.Max(0, math.Max(lo-(v-rh), (v+rh)-hi))
			if overhang <= geom.Eps || overhang >= spacing {
				continue
			}
			t.rep.AdjustedStubs++
			if alt, ok := t.otherAxis(p, r, l, ni.Flags); ok {
				t.applyReach(ni, alt)
				continue
			}
			t.log.Debug("stub notch unresolved, position dropped", "net", n.Name, "node", node.Name(), "cell", c.String())
			t.setNoNet(c.X, c.Y, l)
		}
	})
}

// otherAxis returns a reach along the axis perpendicular to the current
// stub, if the pin lies off the cell on that axis.
func (t *translator) otherAxis(p geom.Point, r geom.Rect, l int, cur grid.NIFlags) (reach, bool) {
	dx, dy := axisGaps(p, r)
	rh := t.tech.RouteHalfWidth(l)
	var alt reach
	if cur&grid.StubNS != 0 {
		if dx == 0 || math.Abs(dy) >= rh {
			return reach{}, false
		}
		alt = reach{flags: grid.StubEW, dist: dx, ok: true}
	} else {
		if dy == 0 || math.Abs(dx) >= rh {
			return reach{}, false
		}
		alt = reach{flags: grid.StubNS, dist: dy, ok: true}
	}
	if math.Abs(alt.dist) < t.tech.ViaHalfWidth(l)-geom.Eps {
		alt.flags <<= 2
	}
	return alt, true
}
