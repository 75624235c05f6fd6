package maze

import (
	"github.com/wrcad/xictools-sub010/pkg/db"
	"github.com/wrcad/xictools-sub010/pkg/grid"
)

// CleanupNet replaces each hop of via, one-step wire and via back to the
// starting layer with a single wire on that layer, when the move on that
// layer is allowed. Two vias one track apart would otherwise leave a
// notch between their pads. It returns the number of hops replaced.
func (e *Engine) CleanupNet(net *db.Net) int {
	n := 0
	for _, r := range net.Routes {
		for i := 0; i+2 < len(r.Segs); i++ {
			v1, w, v2 := r.Segs[i], r.Segs[i+1], r.Segs[i+2]
			if !v1.IsVia() || !v2.IsVia() || w.IsVia() || v1.Layer != v2.Layer {
				continue
			}
			if abs(w.X2-w.X1)+abs(w.Y2-w.Y1) != 1 {
				continue
			}
			if v1.X1 != w.X1 || v1.Y1 != w.Y1 || v2.X1 != w.X2 || v2.Y1 != w.Y2 {
				continue
			}
			lower := v1.Layer
			if w.Layer == lower {
				lower++
			}
			if !e.openStep(net, lower, w) {
				continue
			}
			merged := db.Seg{Layer: lower, X1: w.X1, Y1: w.Y1, X2: w.X2, Y2: w.Y2, Type: db.SegWire}
			r.Segs = append(r.Segs[:i], append([]db.Seg{merged}, r.Segs[i+3:]...)...)
			n++
		}
		r.Segs = mergeWires(r.Segs)
	}
	return n
}

// openStep reports whether the net may run w's single step on layer l.
func (e *Engine) openStep(net *db.Net, l int, w db.Seg) bool {
	d := stepDir(w.X2-w.X1, w.Y2-w.Y1)
	if e.g.Obs(w.X1, w.Y1, l)&d.Blocked() != 0 {
		return false
	}
	for _, c := range [2][2]int{{w.X1, w.Y1}, {w.X2, w.Y2}} {
		ow := e.g.Obs(c[0], c[1], l)
		if ow&grid.NoNet != 0 {
			return false
		}
		if nn := grid.NetNum(ow); nn != 0 && nn != net.Number {
			return false
		}
	}
	return true
}

func stepDir(dx, dy int) grid.Dir {
	switch {
	case dx > 0:
		return grid.East
	case dx < 0:
		return grid.West
	case dy > 0:
		return grid.North
	}
	return grid.South
}

// mergeWires joins consecutive collinear wires on one layer.
func mergeWires(segs []db.Seg) []db.Seg {
	out := segs[:0]
	for _, s := range segs {
		if n := len(out); n > 0 && !s.IsVia() && !out[n-1].IsVia() {
			last := &out[n-1]
			if last.Layer == s.Layer && last.X2 == s.X1 && last.Y2 == s.Y1 &&
				sign(last.X2-last.X1) == sign(s.X2-s.X1) && sign(last.Y2-last.Y1) == sign(s.Y2-s.Y1) {
				last.X2, last.Y2 = s.X2, s.Y2
				last.Type |= s.Type & db.SegOffsetEnd
				continue
			}
		}
		out = append(out, s)
	}
	return out
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
