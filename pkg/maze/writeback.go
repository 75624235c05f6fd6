package maze

import (
	"github.com/wrcad/xictools-sub010/pkg/db"
	"github.com/wrcad/xictools-sub010/pkg/grid"
)

var lateral = [4]grid.Dir{grid.North, grid.South, grid.East, grid.West}

// blocks reports whether a via on layer l keeps other nets out of the
// neighbor in direction d.
func (e *Engine) blocks(l int, d grid.Dir) bool {
	if d == grid.East || d == grid.West {
		return e.needBlock[l].x
	}
	return e.needBlock[l].y
}

// WriteBack marks every cell of net's routes as routed by the net and
// blocks the free neighbors of its vias that another net could not use.
func (e *Engine) WriteBack(net *db.Net) {
	g := e.g
	for _, r := range net.Routes {
		for _, p := range r.Points() {
			w := g.Obs(p.X, p.Y, p.Layer)
			g.SetObs(p.X, p.Y, p.Layer, uint32(net.Number)|grid.RoutedNet|w&grid.BlockedMask)
		}
	}
	for _, r := range net.Routes {
		for _, sg := range r.Segs {
			if !sg.IsVia() {
				continue
			}
			for _, l := range [2]int{sg.Layer, sg.Layer + 1} {
				for _, d := range lateral {
					if !e.blocks(l, d) {
						continue
					}
					dx, dy, _ := d.Delta()
					x, y := sg.X1+dx, sg.Y1+dy
					if !g.InBounds(x, y, l) {
						continue
					}
					if w := g.Obs(x, y, l); grid.IsFree(w) {
						g.SetObs(x, y, l, grid.DRCBlockage|w&grid.BlockedMask)
					}
				}
			}
		}
	}
}

// RipupNet removes net's routes from the grid. Terminal cells go back to
// the net; with restore set their current owner is reset to the original
// one. DRC blockages no longer justified by a neighboring via are cleared.
func (e *Engine) RipupNet(net *db.Net, restore bool) {
	g := e.g
	var vias []db.Seg
	for _, r := range net.Routes {
		for _, p := range r.Points() {
			w := g.Obs(p.X, p.Y, p.Layer)
			if w&grid.NoNet != 0 || grid.NetNum(w) != net.Number {
				continue
			}
			blocked := w & grid.BlockedMask
			ni := g.NodeInfo(p.X, p.Y, p.Layer)
			if ni != nil && ni.NodeSav != nil && ni.NodeSav.Net == net {
				g.SetObs(p.X, p.Y, p.Layer, uint32(net.Number)|blocked)
				if restore {
					ni.NodeLoc = ni.NodeSav
				}
				continue
			}
			g.SetObs(p.X, p.Y, p.Layer, blocked)
		}
		for _, sg := range r.Segs {
			if sg.IsVia() {
				vias = append(vias, sg)
			}
		}
	}
	for _, sg := range vias {
		for _, l := range [2]int{sg.Layer, sg.Layer + 1} {
			for _, d := range lateral {
				dx, dy, _ := d.Delta()
				x, y := sg.X1+dx, sg.Y1+dy
				if !g.InBounds(x, y, l) {
					continue
				}
				if w := g.Obs(x, y, l); grid.IsDRC(w) && len(e.drcOwners(x, y, l)) == 0 {
					g.SetObs(x, y, l, w&grid.BlockedMask)
				}
			}
		}
	}
	net.Routes = nil
}

// isVia reports whether (x, y, l) holds a routed via: the same net is
// routed directly above or below.
func (e *Engine) isVia(x, y, l int) bool {
	w := e.g.Obs(x, y, l)
	if !grid.IsRouted(w) {
		return false
	}
	for _, o := range [2]int{l - 1, l + 1} {
		if o >= 0 && o < e.g.NumLayers && e.g.Obs(x, y, o)&grid.RoutedNetMask == w&grid.RoutedNetMask {
			return true
		}
	}
	return false
}

// drcOwners returns the nets whose vias justify a DRC blockage at
// (x, y, l). The blockage word carries no net number, so the owners are
// found from the neighboring cells.
func (e *Engine) drcOwners(x, y, l int) []*db.Net {
	var owners []*db.Net
	for _, d := range lateral {
		if !e.blocks(l, d) {
			continue
		}
		dx, dy, _ := d.Delta()
		nx, ny := x+dx, y+dy
		if !e.g.InBounds(nx, ny, l) || !e.isVia(nx, ny, l) {
			continue
		}
		if n := e.d.NetByNumber(grid.NetNum(e.g.Obs(nx, ny, l))); n != nil {
			owners = appendNet(owners, n)
		}
	}
	return owners
}

// FindColliding returns the nets whose routing collides with net's
// uncommitted routes, in the order found.
func (e *Engine) FindColliding(net *db.Net) []*db.Net {
	g := e.g
	var out []*db.Net
	add := func(num int) {
		if num != 0 && num != net.Number {
			if n := e.d.NetByNumber(num); n != nil {
				out = appendNet(out, n)
			}
		}
	}
	for _, r := range net.Routes {
		for _, p := range r.Points() {
			w := g.Obs(p.X, p.Y, p.Layer)
			switch {
			case grid.IsRouted(w):
				add(grid.NetNum(w))
			case grid.IsDRC(w):
				for _, n := range e.drcOwners(p.X, p.Y, p.Layer) {
					add(n.Number)
				}
			}
		}
		// Other nets' wires too close to the new vias.
		for _, sg := range r.Segs {
			if !sg.IsVia() {
				continue
			}
			for _, l := range [2]int{sg.Layer, sg.Layer + 1} {
				for _, d := range lateral {
					if !e.blocks(l, d) {
						continue
					}
					dx, dy, _ := d.Delta()
					x, y := sg.X1+dx, sg.Y1+dy
					if g.InBounds(x, y, l) && grid.IsRouted(g.Obs(x, y, l)) {
						add(grid.NetNum(g.Obs(x, y, l)))
					}
				}
			}
		}
	}
	return out
}

func appendNet(list []*db.Net, n *db.Net) []*db.Net {
	for _, x := range list {
		if x == n {
			return list
		}
	}
	return append(list, n)
}
