package maze

import (
	"math"

	"github.com/wrcad/xictools-sub010/pkg/db"
	"github.com/wrcad/xictools-sub010/pkg/grid"
)

// search is the state of routing one net. It lives for one RouteNet call.
type search struct {
	e     *Engine
	g     *grid.Grid
	net   *db.Net
	stage Stage
	mask  Mask

	stack   pointStack
	saved   pointStack
	sources []point
	touched []point

	// pending holds the target nodes not yet reached.
	pending    map[*db.Node]bool
	unroutable []*db.Node

	maxCost   uint32
	maskLimit int
	passes    int
}

func (e *Engine) newSearch(net *db.Net, stage Stage, mask Mask) *search {
	return &search{
		e:       e,
		g:       e.g,
		net:     net,
		stage:   stage,
		mask:    mask,
		pending: make(map[*db.Node]bool),
	}
}

// classify sets the search state of one cell from its obstruction word.
// Free and own cells are open, other nets' routes are soft and may be
// crossed only during rip-up, everything else is a wall.
func (s *search) classify(x, y, l int, pr *grid.PRoute) {
	w := s.g.Obs(x, y, l)
	switch {
	case w&grid.NoNet != 0:
		if grid.IsDRC(w) && !s.protectedDRC(x, y, l) {
			*pr = grid.PRoute{}
			return
		}
		*pr = grid.PRoute{Flags: grid.PRBlocked}
	case grid.NetNum(w) == 0 || grid.NetNum(w) == s.net.Number:
		*pr = grid.PRoute{Flags: grid.PRCost, Data: grid.MaxRT}
	case w&grid.RoutedNet != 0 && !s.otherNetTap(x, y, l):
		*pr = grid.PRoute{Data: uint32(grid.NetNum(w))}
	default:
		*pr = grid.PRoute{Flags: grid.PRBlocked}
	}
}

// otherNetTap reports whether the cell is a terminal of a net other than
// the one being routed.
func (s *search) otherNetTap(x, y, l int) bool {
	ni := s.g.NodeInfo(x, y, l)
	return ni != nil && ni.NodeSav != nil && ni.NodeSav.Net != s.net
}

// protectedDRC reports whether a DRC blockage is caused by a via of a net
// this net may not rip up.
func (s *search) protectedDRC(x, y, l int) bool {
	if len(s.net.NoRipup) == 0 {
		return false
	}
	for _, owner := range s.e.drcOwners(x, y, l) {
		if s.net.InNoRipup(owner) {
			return true
		}
	}
	return false
}

// setup classifies every cell and marks the sources and targets. It
// returns ErrUnroutable when some node has no usable tap and no target
// is left, and ErrProvisional when every node is already connected.
func (s *search) setup() error {
	g := s.g
	for l := 0; l < g.NumLayers; l++ {
		for y := 0; y < g.NumY; y++ {
			for x := 0; x < g.NumX; x++ {
				s.classify(x, y, l, g.PRoute(x, y, l))
			}
		}
	}

	connected := make(map[*db.Node]bool)
	for _, r := range s.net.Routes {
		for _, p := range r.Points() {
			s.markSource(p.X, p.Y, p.Layer)
		}
		if r.Start != nil {
			connected[r.Start] = true
		}
		if r.End != nil {
			connected[r.End] = true
		}
	}
	if len(s.net.Routes) == 0 {
		for _, node := range s.net.Nodes {
			if s.setNodeToNet(node, grid.PRSource) > 0 {
				connected[node] = true
				break
			}
		}
	}
	for _, node := range s.net.Nodes {
		if connected[node] {
			s.setNodeToNet(node, grid.PRSource)
		}
	}

	for _, node := range s.net.Nodes {
		if connected[node] {
			continue
		}
		switch s.markTarget(node) {
		case targetMarked:
			s.pending[node] = true
			continue
		case targetConnected:
			continue
		}
		if s.e.p.ForceRoutable && s.forceTarget(node) {
			s.e.log.Warn("forcing tap", "net", s.net.Name, "node", node.Name())
			s.pending[node] = true
			continue
		}
		s.e.log.Warn("unable to route", "net", s.net.Name, "node", node.Name())
		s.unroutable = append(s.unroutable, node)
	}

	switch {
	case len(s.pending) > 0:
	case len(s.unroutable) > 0:
		return ErrUnroutable
	default:
		return ErrProvisional
	}
	s.resetLimits()
	return nil
}

// targetPolicies are tried in order when marking a node as a target. The
// last resort, a forced tap, is taken by setup when ForceRoutable is set.
type targetPolicy int

const (
	policyTaps targetPolicy = iota
	policyExtend
)

type targetResult int

const (
	targetNone targetResult = iota
	targetMarked
	targetConnected
)

// markTarget marks the cells of node as targets, widening the set of
// candidate cells policy by policy until at least one is marked. A node
// that already touches the routed tree becomes a source instead.
func (s *search) markTarget(node *db.Node) targetResult {
	for _, pol := range []targetPolicy{policyTaps, policyExtend} {
		cells := node.Taps
		if pol == policyExtend {
			cells = node.Extend
		}
		n := 0
		for _, c := range cells {
			pr := s.g.PRoute(c.X, c.Y, c.Layer)
			switch {
			case pr.Flags&grid.PRSource != 0:
				// The node already touches the routed tree.
				s.setNodeToNet(node, grid.PRSource)
				return targetConnected
			case pr.Flags&grid.PRBlocked != 0:
				continue
			case pr.Flags&grid.PRCost == 0:
				continue
			case s.g.NodeAt(c.X, c.Y, c.Layer) != node:
				continue
			}
			pr.Flags |= grid.PRTarget | grid.PRCost
			pr.Data = grid.MaxRT
			n++
		}
		if n > 0 {
			return targetMarked
		}
	}
	return targetNone
}

// forceTarget opens every tap cell of node as a target regardless of its
// obstruction state.
func (s *search) forceTarget(node *db.Node) bool {
	n := 0
	for _, c := range append(append([]db.GridPoint(nil), node.Taps...), node.Extend...) {
		pr := s.g.PRoute(c.X, c.Y, c.Layer)
		if pr.Flags&grid.PRSource != 0 {
			continue
		}
		*pr = grid.PRoute{Flags: grid.PRTarget | grid.PRCost, Data: grid.MaxRT}
		n++
	}
	return n > 0
}

// setNodeToNet sets flag on every usable cell of node and returns the
// number of cells changed. Source cells are pushed at cost zero.
func (s *search) setNodeToNet(node *db.Node, flag uint16) int {
	n := 0
	for _, list := range [][]db.GridPoint{node.Taps, node.Extend} {
		for _, c := range list {
			if s.g.NodeAt(c.X, c.Y, c.Layer) != node {
				continue
			}
			pr := s.g.PRoute(c.X, c.Y, c.Layer)
			if pr.Flags&grid.PRBlocked != 0 {
				continue
			}
			if flag == grid.PRSource {
				if pr.Flags&grid.PRSource == 0 {
					s.markSource(c.X, c.Y, c.Layer)
				}
			} else {
				pr.Flags |= flag
			}
			n++
		}
	}
	return n
}

func (s *search) markSource(x, y, l int) {
	pr := s.g.PRoute(x, y, l)
	if pr.Flags&grid.PRSource != 0 {
		return
	}
	*pr = grid.PRoute{Flags: grid.PRSource | grid.PRCost}
	p := point{x: int32(x), y: int32(y), l: int32(l)}
	s.sources = append(s.sources, p)
}

// nextSetup turns the route just committed and the node it reached into
// sources, and undoes the labels of the previous search.
func (s *search) nextSetup(r *db.Route, reached *db.Node) {
	for _, p := range r.Points() {
		s.markSource(p.X, p.Y, p.Layer)
	}
	if reached != nil {
		delete(s.pending, reached)
		s.setNodeToNet(reached, grid.PRSource)
	}
	for _, p := range s.touched {
		pr := s.g.PRoute(int(p.x), int(p.y), int(p.l))
		if pr.Flags&grid.PRSource != 0 {
			continue
		}
		target := pr.Flags & grid.PRTarget
		s.classify(int(p.x), int(p.y), int(p.l), pr)
		if target != 0 {
			pr.Flags |= grid.PRTarget | grid.PRCost
			pr.Data = grid.MaxRT
		}
	}
	s.touched = s.touched[:0]
	s.resetLimits()
}

// resetLimits restacks the sources and sets the initial cost ceiling from
// the extent of the remaining terminals.
func (s *search) resetLimits() {
	s.stack.clear()
	s.saved.clear()
	for i := range s.sources {
		p := s.sources[i]
		pr := s.g.PRoute(int(p.x), int(p.y), int(p.l))
		pr.Flags &^= grid.PRProcessed
		s.stack.push(p)
	}

	xmin, ymin := math.MaxInt, math.MaxInt
	xmax, ymax := math.MinInt, math.MinInt
	include := func(x, y int) {
		xmin, xmax = min(xmin, x), max(xmax, x)
		ymin, ymax = min(ymin, y), max(ymax, y)
	}
	for _, p := range s.sources {
		include(int(p.x), int(p.y))
	}
	for node := range s.pending {
		for _, c := range node.Taps {
			include(c.X, c.Y)
		}
		for _, c := range node.Extend {
			include(c.X, c.Y)
		}
	}
	c := s.e.p.Costs
	span := 0
	if xmin <= xmax {
		span = (xmax - xmin) + (ymax - ymin)
	}
	s.maxCost = uint32(2*(span*c.Segment+c.Via) + 20)
	s.maskLimit = 0
}
