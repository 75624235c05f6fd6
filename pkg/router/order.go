package router

import (
	"math"
	"slices"

	"github.com/wrcad/xictools-sub010/pkg/config"
	"github.com/wrcad/xictools-sub010/pkg/db"
)

// createNetOrder sorts nets for routing: critical nets first in
// declaration order, then the rest by policy. Ties keep declaration
// order, so the result is the same on every run.
func createNetOrder(nets []*db.Net, policy string) []*db.Net {
	order := append([]*db.Net(nil), nets...)
	slices.SortStableFunc(order, func(a, b *db.Net) int {
		ac, bc := a.Has(db.NetCritical), b.Has(db.NetCritical)
		switch {
		case ac && !bc:
			return -1
		case bc && !ac:
			return 1
		case ac && bc:
			return a.Order - b.Order
		}
		switch policy {
		case config.OrderMostNodes:
			if d := len(b.Nodes) - len(a.Nodes); d != 0 {
				return d
			}
		case config.OrderBBox:
			if d := bboxSize(a) - bboxSize(b); d != 0 {
				return d
			}
		}
		return a.Order - b.Order
	})
	return order
}

func bboxSize(n *db.Net) int {
	if n.XMax < n.XMin {
		return 0
	}
	return (n.XMax - n.XMin) + (n.YMax - n.YMin)
}

// nodeLocation returns a representative grid cell of node: its first tap,
// else its first halo cell, else the centre of its pin geometry.
func (r *Router) nodeLocation(node *db.Node) (db.GridPoint, bool) {
	if len(node.Taps) > 0 {
		return node.Taps[0], true
	}
	if len(node.Extend) > 0 {
		return node.Extend[0], true
	}
	for _, s := range node.Shapes() {
		c := s.Rect.Center()
		x := min(max(r.grid.GridX(c.X), 0), r.grid.NumX-1)
		y := min(max(r.grid.GridY(c.Y), 0), r.grid.NumY-1)
		return db.GridPoint{X: x, Y: y, Layer: s.Layer}, true
	}
	return db.GridPoint{}, false
}

// computeBBoxes sets each net's bounding box over its terminal cells. A
// net with no located terminal gets an empty box (XMax < XMin).
func (r *Router) computeBBoxes() {
	for _, n := range r.design.Nets {
		n.XMin, n.YMin = math.MaxInt32, math.MaxInt32
		n.XMax, n.YMax = -1, -1
		include := func(c db.GridPoint) {
			n.XMin, n.XMax = min(n.XMin, c.X), max(n.XMax, c.X)
			n.YMin, n.YMax = min(n.YMin, c.Y), max(n.YMax, c.Y)
		}
		for _, node := range n.Nodes {
			cells := append(append([]db.GridPoint(nil), node.Taps...), node.Extend...)
			if len(cells) == 0 {
				if c, ok := r.nodeLocation(node); ok {
					cells = append(cells, c)
				}
			}
			for _, c := range cells {
				include(c)
			}
		}
	}
}

// computeTrunks picks the trunk of each net: horizontal at the mean node
// row when the net is at least as wide as it is tall, vertical at the mean
// node column otherwise. Each node branches to the trunk straight across.
func (r *Router) computeTrunks() {
	for _, n := range r.design.Nets {
		var sx, sy, cnt int
		locs := make([]db.GridPoint, len(n.Nodes))
		for i, node := range n.Nodes {
			c, ok := r.nodeLocation(node)
			if !ok {
				continue
			}
			locs[i] = c
			sx += c.X
			sy += c.Y
			cnt++
		}
		if cnt == 0 {
			continue
		}
		vertical := n.XMax-n.XMin < n.YMax-n.YMin
		if vertical {
			n.Set(db.NetVerticalTrunk)
			n.Trunk = int(math.Round(float64(sx) / float64(cnt)))
		} else {
			n.Clear(db.NetVerticalTrunk)
			n.Trunk = int(math.Round(float64(sy) / float64(cnt)))
		}
		for i, node := range n.Nodes {
			c := locs[i]
			if vertical {
				node.Branch = db.GridPoint{X: n.Trunk, Y: c.Y}
			} else {
				node.Branch = db.GridPoint{X: c.X, Y: n.Trunk}
			}
		}
	}
}
