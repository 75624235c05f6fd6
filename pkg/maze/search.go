package maze

import (
	"math"

	"github.com/wrcad/xictools-sub010/pkg/db"
	"github.com/wrcad/xictools-sub010/pkg/grid"
)

var (
	horizontalOrder = [6]grid.Dir{grid.East, grid.West, grid.Up, grid.Down, grid.North, grid.South}
	verticalOrder   = [6]grid.Dir{grid.North, grid.South, grid.Up, grid.Down, grid.East, grid.West}
)

// run performs the relaxation passes for one connection and returns the
// cheapest target reached.
func (s *search) run() (point, error) {
	var (
		best  point
		found bool
	)
	numPasses := s.e.p.NumPasses
	for pass := 0; pass < numPasses; pass++ {
		s.passes = pass + 1
		last := pass == numPasses-1
		costLimited, maskLimited := false, false

		for s.stack.len() > 0 {
			p := s.stack.pop()
			x, y, l := int(p.x), int(p.y), int(p.l)
			pr := s.g.PRoute(x, y, l)
			if pr.Flags&grid.PRCost == 0 || pr.Data != p.cost || pr.Flags&grid.PRProcessed != 0 {
				continue
			}
			if found && p.cost >= best.cost {
				continue
			}
			if pr.Flags&grid.PRTarget != 0 {
				pr.Flags |= grid.PRProcessed
				best, found = p, true
				if p.cost < s.maxCost {
					s.maxCost = p.cost
				}
				continue
			}
			if !last {
				if p.cost > s.maxCost {
					s.saved.push(p)
					costLimited = true
					continue
				}
				if s.mask != nil && s.mask.Level(x, y) > s.maskLimit {
					s.saved.push(p)
					maskLimited = true
					continue
				}
			}
			pr.Flags |= grid.PRProcessed
			cellsExpanded.Inc()

			order := &verticalOrder
			if s.e.d.Tech.Layers[l].Direction == db.Horizontal {
				order = &horizontalOrder
			}
			for _, d := range order {
				s.eval(p, d)
			}
		}

		// Restack deferred cells that could still beat the best target.
		more := false
		s.saved.each(func(p point) {
			if found && p.cost >= best.cost {
				return
			}
			pr := s.g.PRoute(int(p.x), int(p.y), int(p.l))
			if pr.Flags&grid.PRCost == 0 || pr.Data != p.cost {
				return
			}
			s.stack.push(p)
			more = true
		})
		s.saved.clear()
		if !more {
			break
		}
		if costLimited && !found {
			s.maxCost = min(2*s.maxCost, grid.MaxRT)
		}
		if found {
			s.maxCost = best.cost
		}
		if maskLimited {
			s.maskLimit++
		}
		s.e.log.Debug("search pass", "net", s.net.Name, "pass", pass+1,
			"maxcost", s.maxCost, "mask", s.maskLimit, "restacked", s.stack.len())
	}
	searchPasses.Observe(float64(s.passes))
	if !found {
		return point{}, ErrNoRoute
	}
	return best, nil
}

// eval relaxes the move from p in direction d.
func (s *search) eval(p point, d grid.Dir) {
	x, y, l := int(p.x), int(p.y), int(p.l)
	if s.g.Obs(x, y, l)&d.Blocked() != 0 {
		return
	}
	dx, dy, dl := d.Delta()
	nx, ny, nl := x+dx, y+dy, l+dl
	if !s.g.InBounds(nx, ny, nl) {
		return
	}
	npr := s.g.PRoute(nx, ny, nl)
	if npr.Flags&(grid.PRBlocked|grid.PRSource) != 0 {
		return
	}
	step, _, ok := s.stepCost(x, y, l, d, npr, s.stage == StageRipup)
	if !ok {
		return
	}
	cost := p.cost + uint32(step)
	if cost >= npr.Cost() {
		return
	}
	if npr.Flags&grid.PRCost == 0 {
		npr.Flags |= grid.PRConflict
	}
	npr.Flags = npr.Flags&^grid.PRProcessed | grid.PRCost
	npr.Data = cost
	npr.SetPred(d.Opposite())
	np := point{x: int32(nx), y: int32(ny), l: int32(nl), cost: cost}
	s.stack.push(np)
	s.touched = append(s.touched, np)
}

// stepCost returns the cost of moving from (x, y, l) in direction d onto
// the cell whose search state is npr. Soft cells are usable only when
// conflicts are allowed and never when they belong to a protected net.
func (s *search) stepCost(x, y, l int, d grid.Dir, npr *grid.PRoute, conflicts bool) (int, bool, bool) {
	c := s.e.p.Costs
	dx, dy, dl := d.Delta()
	nx, ny, nl := x+dx, y+dy, l+dl

	cost := 0
	conflict := false
	if npr.Flags&grid.PRCost == 0 {
		if !conflicts {
			return 0, false, false
		}
		if owner := s.e.d.NetByNumber(int(npr.Data)); owner != nil && s.net.InNoRipup(owner) {
			return 0, false, false
		}
		cost += c.Conflict
		conflict = true
	} else if npr.Flags&grid.PRConflict != 0 {
		// Already relabeled from a soft cell in this search.
		cost += c.Conflict
		conflict = true
	}

	if !d.Lateral() {
		if owner, clash := s.viaClash(x, y, l, nl); clash {
			if !conflicts || (owner != nil && s.net.InNoRipup(owner)) {
				return 0, false, false
			}
			cost += c.Conflict
			conflict = true
		}
	}

	switch {
	case !d.Lateral():
		cost += c.Via
	case (d == grid.East || d == grid.West) == (s.e.d.Tech.Layers[l].Direction == db.Horizontal):
		cost += c.Segment
	default:
		cost += c.Jog
	}

	// Wires passing over or under another net's terminal.
	for _, ol := range [2]int{nl - 1, nl + 1} {
		if ol < 0 || ol >= s.g.PinLayers || ol == l {
			continue
		}
		if node := s.g.NodeAt(nx, ny, ol); node != nil && node.Net != s.net {
			if node.NumTaps <= 1 {
				cost += c.Block
			} else {
				cost += c.Crossover
			}
		}
	}

	if nl < s.g.PinLayers {
		if ni := s.g.NodeInfo(nx, ny, nl); ni != nil && ni.NodeLoc != nil && ni.NodeLoc.Net == s.net &&
			ni.Flags&grid.OffsetMask != 0 {
			pitch := s.g.PitchY
			if ni.Flags&grid.OffsetEW != 0 {
				pitch = s.g.PitchX
			}
			cost += int(math.Abs(ni.Offset) * float64(c.Offset) / pitch)
		}
	}
	return cost, conflict, true
}

// viaClash reports whether a via between layers l1 and l2 at (x, y) would
// sit too close to another net's routed cell, and returns that net.
func (s *search) viaClash(x, y, l1, l2 int) (*db.Net, bool) {
	for _, l := range [2]int{l1, l2} {
		for _, d := range lateral {
			if !s.e.blocks(l, d) {
				continue
			}
			dx, dy, _ := d.Delta()
			if !s.g.InBounds(x+dx, y+dy, l) {
				continue
			}
			if w := s.g.Obs(x+dx, y+dy, l); grid.IsRouted(w) && grid.NetNum(w) != s.net.Number {
				return s.e.d.NetByNumber(grid.NetNum(w)), true
			}
		}
	}
	return nil, false
}
