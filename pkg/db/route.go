package db

import "fmt"

// SegType describes a route segment.
type SegType uint8

const (
	SegWire SegType = 1 << iota
	SegVia
	SegOffsetStart
	SegOffsetEnd
	SegSpecial
)

// Seg is a wire along one layer or a via from Layer to Layer+1, in grid
// units. Vias have X1==X2 and Y1==Y2.
type Seg struct {
	Layer          int
	X1, Y1, X2, Y2 int
	Type           SegType
}

func (s Seg) IsVia() bool { return s.Type&SegVia != 0 }

func (s Seg) String() string {
	if s.IsVia() {
		return fmt.Sprintf("via %d (%d,%d)", s.Layer, s.X1, s.Y1)
	}
	return fmt.Sprintf("wire %d (%d,%d)-(%d,%d)", s.Layer, s.X1, s.Y1, s.X2, s.Y2)
}

// Points returns every grid cell the segment occupies, from the first
// endpoint to the second. A via yields both of its cells.
func (s Seg) Points() []GridPoint {
	if s.IsVia() {
		return []GridPoint{{s.X1, s.Y1, s.Layer}, {s.X1, s.Y1, s.Layer + 1}}
	}
	dx, dy := sign(s.X2-s.X1), sign(s.Y2-s.Y1)
	n := abs(s.X2-s.X1) + abs(s.Y2-s.Y1)
	pts := make([]GridPoint, 0, n+1)
	for i := 0; i <= n; i++ {
		pts = append(pts, GridPoint{s.X1 + i*dx, s.Y1 + i*dy, s.Layer})
	}
	return pts
}

// RouteFlags marks what the ends of a route attach to.
type RouteFlags uint8

const (
	RouteStartNode RouteFlags = 1 << iota
	RouteEndNode
)

// Route is one connected path added to a net, from the tree grown so far
// (Start) to a newly reached node (End).
type Route struct {
	Segs  []Seg
	Flags RouteFlags
	Start *Node
	End   *Node
}

// Points returns every cell of the route.
func (r *Route) Points() []GridPoint {
	var pts []GridPoint
	for _, s := range r.Segs {
		pts = append(pts, s.Points()...)
	}
	return pts
}

// ViaCount returns the number of via segments.
func (r *Route) ViaCount() int {
	n := 0
	for _, s := range r.Segs {
		if s.IsVia() {
			n++
		}
	}
	return n
}

// Length returns the wire length in grid steps.
func (r *Route) Length() int {
	n := 0
	for _, s := range r.Segs {
		if !s.IsVia() {
			n += abs(s.X2-s.X1) + abs(s.Y2-s.Y1)
		}
	}
	return n
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

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
