// Package output turns committed routes into physical paths: grid units
// become coordinates, stubs reach off-grid pin edges, offset vias move onto
// their pins, and via pads one track apart are pulled together.
package output

import (
	"math"

	"github.com/wrcad/xictools-sub010/pkg/db"
	"github.com/wrcad/xictools-sub010/pkg/geom"
	"github.com/wrcad/xictools-sub010/pkg/grid"
)

// Via patterns.
const (
	PatternNone     = "none"
	PatternNormal   = "normal"
	PatternInverted = "inverted"
)

// Element is a wire, or a via when Via is set. A via sits at (X1, Y1) and
// joins Layer to Layer+1.
type Element struct {
	Layer          int
	X1, Y1, X2, Y2 float64
	Via            bool
	ViaName        string
}

// NetPaths holds the output of one net. Special holds stub wires that
// could not be folded into a regular wire.
type NetPaths struct {
	Name    string
	Regular []Element
	Special []Element
}

// Options control path generation.
type Options struct {
	// ViaPattern picks the via variant on a checkerboard.
	ViaPattern string
}

// Offsets are per-layer shifts applied to each of two same-net vias one
// track apart, so that their pads abut instead of leaving a notch
// narrower than the layer spacing.
type Offsets struct {
	X, Y []float64
}

// ViaOffsets computes the via offset table of tech over grid pitches px
// and py.
func ViaOffsets(tech *db.Tech, px, py float64) Offsets {
	o := Offsets{X: make([]float64, tech.NumLayers()), Y: make([]float64, tech.NumLayers())}
	for l, layer := range tech.Layers {
		hx, hy := tech.ViaHalfSize(l)
		if gap := px - 2*hx; gap > geom.Eps && gap+geom.Eps < layer.Spacing {
			o.X[l] = gap / 2
		}
		if gap := py - 2*hy; gap > geom.Eps && gap+geom.Eps < layer.Spacing {
			o.Y[l] = gap / 2
		}
	}
	return o
}

type generator struct {
	d    *db.Design
	g    *grid.Grid
	opts Options
	offs Offsets
}

// Generate returns the physical paths of every routed net in declaration
// order.
func Generate(d *db.Design, g *grid.Grid, opts Options) []NetPaths {
	gen := &generator{d: d, g: g, opts: opts, offs: ViaOffsets(d.Tech, g.PitchX, g.PitchY)}
	var out []NetPaths
	for _, net := range d.Nets {
		if len(net.Routes) == 0 {
			continue
		}
		out = append(out, gen.net(net))
	}
	return out
}

func (gen *generator) net(net *db.Net) NetPaths {
	np := NetPaths{Name: net.Name}
	for _, r := range net.Routes {
		segs := patchTransitions(r.Segs)
		elems := make([]Element, len(segs))
		for i, s := range segs {
			elems[i] = gen.element(s)
		}
		if len(segs) > 0 {
			if r.Flags&db.RouteStartNode != 0 {
				np.Special = gen.terminal(elems, segs, 0, false, np.Special)
			}
			if r.Flags&db.RouteEndNode != 0 {
				np.Special = gen.terminal(elems, segs, len(segs)-1, true, np.Special)
			}
		}
		np.Regular = append(np.Regular, elems...)
	}
	gen.nudgeVias(np.Regular)
	return np
}

func (gen *generator) element(s db.Seg) Element {
	e := Element{
		Layer: s.Layer,
		X1:    gen.g.PhysX(s.X1),
		Y1:    gen.g.PhysY(s.Y1),
		X2:    gen.g.PhysX(s.X2),
		Y2:    gen.g.PhysY(s.Y2),
	}
	if s.IsVia() {
		e.Via = true
		e.ViaName = gen.viaName(s)
	}
	return e
}

func (gen *generator) viaName(s db.Seg) string {
	alt := false
	odd := (s.X1+s.Y1)%2 != 0
	switch gen.opts.ViaPattern {
	case PatternNormal:
		alt = odd
	case PatternInverted:
		alt = !odd
	}
	v, ok := gen.d.Tech.ViaVariant(s.Layer, alt)
	if !ok {
		return ""
	}
	return v.Name
}

// patchTransitions inserts a via where two consecutive wires meet on
// different layers.
func patchTransitions(in []db.Seg) []db.Seg {
	out := make([]db.Seg, 0, len(in))
	for i, s := range in {
		if i > 0 {
			p := in[i-1]
			if !p.IsVia() && !s.IsVia() && p.Layer != s.Layer && p.X2 == s.X1 && p.Y2 == s.Y1 &&
				abs(p.Layer-s.Layer) == 1 {
				out = append(out, db.Seg{Layer: min(p.Layer, s.Layer), X1: s.X1, Y1: s.Y1, X2: s.X1, Y2: s.Y1, Type: db.SegVia})
			}
		}
		out = append(out, s)
	}
	return out
}

// terminal applies the stub or offset of the pin cell at one end of a
// route. The end element is elems[i]; last tells which of its ends
// touches the pin.
func (gen *generator) terminal(elems []Element, segs []db.Seg, i int, last bool, special []Element) []Element {
	s := segs[i]
	x, y, l := s.X1, s.Y1, s.Layer
	if last {
		x, y = s.X2, s.Y2
	}
	ni := gen.pinCell(x, y, s)
	if ni == nil {
		return special
	}
	e := &elems[i]
	offset := ni.Flags&grid.OffsetMask != 0
	switch {
	case offset && s.IsVia():
		if ni.Flags&grid.OffsetNS != 0 {
			e.Y1 += ni.Offset
			e.Y2 = e.Y1
		} else {
			e.X1 += ni.Offset
			e.X2 = e.X1
		}
	case offset:
		// A wire ending on an offset cell is carried over the gap to
		// the pin.
		return gen.reach(e, last, special, l, x, y, ni.Offset, ni.Flags&grid.OffsetNS != 0)
	case ni.Flags&grid.StubMask != 0:
		if s.IsVia() {
			l = gen.pinLayer(x, y, s)
		}
		return gen.reach(e, last, special, l, x, y, ni.Stub, ni.Flags&grid.StubNS != 0)
	}
	return special
}

// reach joins the grid point (x, y) to the pin edge dist away along one
// axis. A wire running the same way is lengthened; otherwise the jog goes
// to special.
func (gen *generator) reach(e *Element, last bool, special []Element, l, x, y int, dist float64, ns bool) []Element {
	px, py := gen.g.PhysX(x), gen.g.PhysY(y)
	sx, sy := px, py
	if ns {
		sy += dist
	} else {
		sx += dist
	}
	if !e.Via && extendable(e, last, sx, sy, ns) {
		if last {
			e.X2, e.Y2 = sx, sy
		} else {
			e.X1, e.Y1 = sx, sy
		}
		return special
	}
	return append(special, Element{Layer: l, X1: px, Y1: py, X2: sx, Y2: sy})
}

// pinCell returns the node metadata of the cell where the route touches
// its pin, trying the lower cell of a via first.
func (gen *generator) pinCell(x, y int, s db.Seg) *grid.NodeInfo {
	layers := []int{s.Layer}
	if s.IsVia() {
		layers = []int{s.Layer, s.Layer + 1}
	}
	for _, l := range layers {
		if l >= gen.g.PinLayers {
			continue
		}
		if ni := gen.g.NodeInfo(x, y, l); ni != nil && ni.NodeSav != nil && ni.Flags != 0 {
			return ni
		}
	}
	return nil
}

func (gen *generator) pinLayer(x, y int, s db.Seg) int {
	if ni := gen.g.NodeInfo(x, y, s.Layer); ni != nil && ni.NodeSav != nil {
		return s.Layer
	}
	return s.Layer + 1
}

// extendable reports whether the stub runs along wire e away from its
// other end, so the wire can be lengthened instead.
func extendable(e *Element, last bool, sx, sy float64, ns bool) bool {
	if ns {
		if e.X1 != e.X2 || e.X1 != sx {
			return false
		}
		if last {
			return sign(sy-e.Y2) == sign(e.Y2-e.Y1) || e.Y1 == e.Y2
		}
		return sign(sy-e.Y1) == sign(e.Y1-e.Y2) || e.Y1 == e.Y2
	}
	if e.Y1 != e.Y2 || e.Y1 != sy {
		return false
	}
	if last {
		return sign(sx-e.X2) == sign(e.X2-e.X1) || e.X1 == e.X2
	}
	return sign(sx-e.X1) == sign(e.X1-e.X2) || e.X1 == e.X2
}

// nudgeVias pulls together same-net vias one track apart that share a
// layer.
func (gen *generator) nudgeVias(elems []Element) {
	px, py := gen.g.PitchX, gen.g.PitchY
	for i := range elems {
		a := &elems[i]
		if !a.Via {
			continue
		}
		for j := i + 1; j < len(elems); j++ {
			b := &elems[j]
			if !b.Via {
				continue
			}
			l, ok := sharedLayer(a.Layer, b.Layer)
			if !ok {
				continue
			}
			dx, dy := b.X1-a.X1, b.Y1-a.Y1
			switch {
			case math.Abs(dy) < geom.Eps && math.Abs(math.Abs(dx)-px) < geom.Eps && gen.offs.X[l] > 0:
				s := gen.offs.X[l] * sign(dx)
				a.X1, a.X2 = a.X1+s, a.X1+s
				b.X1, b.X2 = b.X1-s, b.X1-s
			case math.Abs(dx) < geom.Eps && math.Abs(math.Abs(dy)-py) < geom.Eps && gen.offs.Y[l] > 0:
				s := gen.offs.Y[l] * sign(dy)
				a.Y1, a.Y2 = a.Y1+s, a.Y1+s
				b.Y1, b.Y2 = b.Y1-s, b.Y1-s
			}
		}
	}
}

// sharedLayer returns the layer two vias both land on.
func sharedLayer(la, lb int) (int, bool) {
	switch {
	case la == lb:
		return la, true
	case la+1 == lb:
		return lb, true
	case lb+1 == la:
		return la, true
	}
	return 0, false
}

func sign(v float64) float64 {
	switch {
	case v > 0:
		return 1
	case v < 0:
		return -1
	}
	return 0
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
