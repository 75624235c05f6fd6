package maze

import (
	"fmt"

	"github.com/wrcad/xictools-sub010/pkg/db"
	"github.com/wrcad/xictools-sub010/pkg/grid"
)

// commit walks the predecessor chain from target back to the routed tree
// and returns the route, with stacked vias legalized.
func (s *search) commit(target point) (*db.Route, *db.Node, error) {
	path, err := s.tracePath(target)
	if err != nil {
		return nil, nil, err
	}
	if path, err = s.fixStackedVias(path); err != nil {
		return nil, nil, err
	}

	r := &db.Route{Segs: buildSegments(path)}
	first, last := path[0], path[len(path)-1]
	if n := s.g.NodeAt(first.X, first.Y, first.Layer); n != nil && n.Net == s.net {
		r.Start = n
		r.Flags |= db.RouteStartNode
		if s.isOffset(first) {
			r.Segs[0].Type |= db.SegOffsetStart
		}
	}
	reached := s.g.NodeAt(last.X, last.Y, last.Layer)
	if reached == nil || reached.Net != s.net {
		reached = s.pendingAt(last)
	}
	if reached != nil {
		r.End = reached
		r.Flags |= db.RouteEndNode
		if s.isOffset(last) {
			r.Segs[len(r.Segs)-1].Type |= db.SegOffsetEnd
		}
	}
	return r, reached, nil
}

// pendingAt finds the pending node listing c, for forced targets whose
// owner was cleared.
func (s *search) pendingAt(c db.GridPoint) *db.Node {
	for _, node := range s.net.Nodes {
		if !s.pending[node] {
			continue
		}
		for _, list := range [][]db.GridPoint{node.Taps, node.Extend} {
			for _, t := range list {
				if t == c {
					return node
				}
			}
		}
	}
	return nil
}

func (s *search) isOffset(c db.GridPoint) bool {
	if c.Layer >= s.g.PinLayers {
		return false
	}
	ni := s.g.NodeInfo(c.X, c.Y, c.Layer)
	return ni != nil && ni.Flags&grid.OffsetMask != 0
}

// tracePath returns the cells from a source to target.
func (s *search) tracePath(target point) ([]db.GridPoint, error) {
	limit := s.g.NumX * s.g.NumY * s.g.NumLayers
	x, y, l := int(target.x), int(target.y), int(target.l)
	var path []db.GridPoint
	for {
		path = append(path, db.GridPoint{X: x, Y: y, Layer: l})
		pr := s.g.PRoute(x, y, l)
		if pr.Flags&grid.PRSource != 0 {
			break
		}
		d, ok := pr.Pred()
		if !ok || len(path) > limit {
			return nil, fmt.Errorf("maze: net %s: broken predecessor chain at %s", s.net.Name, path[len(path)-1])
		}
		dx, dy, dl := d.Delta()
		x, y, l = x+dx, y+dy, l+dl
	}
	for i, j := 0, len(path)-1; i < j; i, j = i+1, j-1 {
		path[i], path[j] = path[j], path[i]
	}
	return path, nil
}

// fixStackedVias breaks every via stack taller than the limit by moving
// one via of the stack to a lateral neighbor. Detours that cross other
// nets are tried only during rip-up, and only after clean ones fail.
func (s *search) fixStackedVias(path []db.GridPoint) ([]db.GridPoint, error) {
	limit := s.e.p.StackedVias
	if limit < 1 {
		return path, nil
	}
	for guard := 0; guard < 4*len(path)+16; guard++ {
		m := stackViolation(path, limit)
		if m < 0 {
			return path, nil
		}
		fixed, ok := s.detour(path, m, false)
		if !ok && s.stage == StageRipup {
			fixed, ok = s.detour(path, m, true)
		}
		if !ok {
			stackedViaFixes.WithLabelValues("failed").Inc()
			s.e.log.Debug("stacked via cannot be fixed", "net", s.net.Name, "at", path[m])
			return nil, fmt.Errorf("%w: stacked vias at %s on net %s", ErrProvisional, path[m], s.net.Name)
		}
		stackedViaFixes.WithLabelValues("fixed").Inc()
		path = fixed
	}
	return nil, fmt.Errorf("%w: stacked via repair did not settle on net %s", ErrProvisional, s.net.Name)
}

// stackViolation returns the index m of the cell where a via run exceeds
// limit: path[m] to path[m+1] is the first via past the limit. It returns
// -1 when the path is legal.
func stackViolation(path []db.GridPoint, limit int) int {
	run := 0
	for i := 1; i < len(path); i++ {
		a, b := path[i-1], path[i]
		if a.X == b.X && a.Y == b.Y && a.Layer != b.Layer {
			run++
			if run > limit {
				return i - 1
			}
			continue
		}
		run = 0
	}
	return -1
}

// detour replaces the via path[m] to path[m+1] with a via at a lateral
// neighbor. When the path continues from the top of the via to that
// neighbor anyway, the shorter form is used.
func (s *search) detour(path []db.GridPoint, m int, conflicts bool) ([]db.GridPoint, bool) {
	at, up := path[m], path[m+1]
	onPath := make(map[db.GridPoint]bool, len(path))
	for _, c := range path {
		onPath[c] = true
	}

	var (
		best     []db.GridPoint
		bestCost = -1
	)
	for _, d := range [4]grid.Dir{grid.North, grid.South, grid.East, grid.West} {
		dx, dy, _ := d.Delta()
		lo := db.GridPoint{X: at.X + dx, Y: at.Y + dy, Layer: at.Layer}
		hi := db.GridPoint{X: lo.X, Y: lo.Y, Layer: up.Layer}
		vd := grid.Up
		if up.Layer < at.Layer {
			vd = grid.Down
		}

		if m+2 < len(path) && path[m+2] == hi {
			// at -> lo -> hi, dropping the via at at.
			c1, ok1 := s.move(at, d, onPath, conflicts, false)
			c2, ok2 := s.move(lo, vd, onPath, conflicts, true)
			if ok1 && ok2 && (bestCost < 0 || c1+c2 < bestCost) {
				bestCost = c1 + c2
				best = splice(path, m+1, m+2, lo)
			}
			continue
		}
		c1, ok1 := s.move(at, d, onPath, conflicts, false)
		c2, ok2 := s.move(lo, vd, onPath, conflicts, false)
		c3, ok3 := s.move(hi, d.Opposite(), onPath, conflicts, true)
		if ok1 && ok2 && ok3 && (bestCost < 0 || c1+c2+c3 < bestCost) {
			bestCost = c1 + c2 + c3
			best = splice(path, m+1, m+1, lo, hi)
		}
	}
	return best, best != nil
}

// move returns the cost of stepping from c in direction d for a detour.
// The destination must not already be on the path unless back is set,
// in which case it must be.
func (s *search) move(c db.GridPoint, d grid.Dir, onPath map[db.GridPoint]bool, conflicts, back bool) (int, bool) {
	if s.g.Obs(c.X, c.Y, c.Layer)&d.Blocked() != 0 {
		return 0, false
	}
	dx, dy, dl := d.Delta()
	n := db.GridPoint{X: c.X + dx, Y: c.Y + dy, Layer: c.Layer + dl}
	if !s.g.InBounds(n.X, n.Y, n.Layer) || onPath[n] != back {
		return 0, false
	}
	npr := s.g.PRoute(n.X, n.Y, n.Layer)
	if !back && npr.Flags&(grid.PRBlocked|grid.PRSource) != 0 {
		return 0, false
	}
	cost, conflict, ok := s.stepCost(c.X, c.Y, c.Layer, d, npr, conflicts)
	if conflict && !conflicts {
		return 0, false
	}
	return cost, ok
}

// splice returns path with path[i:j] replaced by cells.
func splice(path []db.GridPoint, i, j int, cells ...db.GridPoint) []db.GridPoint {
	out := make([]db.GridPoint, 0, len(path)-(j-i)+len(cells))
	out = append(out, path[:i]...)
	out = append(out, cells...)
	return append(out, path[j:]...)
}

// buildSegments turns a cell path into wires and vias. Consecutive moves
// in one direction on one layer form a single wire.
func buildSegments(path []db.GridPoint) []db.Seg {
	var segs []db.Seg
	for i := 1; i < len(path); i++ {
		a, b := path[i-1], path[i]
		if a.Layer != b.Layer {
			segs = append(segs, db.Seg{
				Layer: min(a.Layer, b.Layer),
				X1:    a.X, Y1: a.Y, X2: a.X, Y2: a.Y,
				Type: db.SegVia,
			})
			continue
		}
		if n := len(segs); n > 0 {
			last := &segs[n-1]
			if !last.IsVia() && last.Layer == a.Layer && last.X2 == a.X && last.Y2 == a.Y &&
				collinear(*last, b) {
				last.X2, last.Y2 = b.X, b.Y
				continue
			}
		}
		segs = append(segs, db.Seg{Layer: a.Layer, X1: a.X, Y1: a.Y, X2: b.X, Y2: b.Y, Type: db.SegWire})
	}
	return segs
}

// collinear reports whether extending wire s to b keeps its direction.
func collinear(s db.Seg, b db.GridPoint) bool {
	sx, sy := sign(s.X2-s.X1), sign(s.Y2-s.Y1)
	bx, by := sign(b.X-s.X2), sign(b.Y-s.Y2)
	return sx == bx && sy == by
}

func sign(v int) int {
	switch {
	case v > 0:
		return 1
	case v < 0:
		return -1
	}
	return 0
}
