// Package geom holds the physical-coordinate geometry shared by the router:
// points and axis-aligned rectangles in database units (microns).
package geom

import (
	"fmt"
	"math"
)

// Eps absorbs floating point noise when comparing coordinates.
const Eps = 1e-6

// Point is a location in physical units.
type Point struct {
	X, Y float64
}

// Rect is an axis-aligned rectangle with X1 <= X2 and Y1 <= Y2.
type Rect struct {
	X1, Y1, X2, Y2 float64
}

// NewRect returns the rectangle spanning the two corners in any order.
func NewRect(x1, y1, x2, y2 float64) Rect {
	if x1 > x2 {
		x1, x2 = x2, x1
	}
	if y1 > y2 {
		y1, y2 = y2, y1
	}
	return Rect{x1, y1, x2, y2}
}

// EmptyRect returns an inverted rectangle that any Include call replaces.
func EmptyRect() Rect {
	return Rect{math.Inf(1), math.Inf(1), math.Inf(-1), math.Inf(-1)}
}

// IsEmpty reports whether r encloses no points.
func (r Rect) IsEmpty() bool {
	return r.X1 > r.X2 || r.Y1 > r.Y2
}

func (r Rect) Width() float64  { return r.X2 - r.X1 }
func (r Rect) Height() float64 { return r.Y2 - r.Y1 }

// Center returns the midpoint of r.
func (r Rect) Center() Point {
	return Point{(r.X1 + r.X2) / 2, (r.Y1 + r.Y2) / 2}
}

// Contains reports whether p lies in r, edges included.
func (r Rect) Contains(p Point) bool {
	return p.X >= r.X1-Eps && p.X <= r.X2+Eps && p.Y >= r.Y1-Eps && p.Y <= r.Y2+Eps
}

// ContainsStrict reports whether p lies in the interior of r.
func (r Rect) ContainsStrict(p Point) bool {
	return p.X > r.X1+Eps && p.X < r.X2-Eps && p.Y > r.Y1+Eps && p.Y < r.Y2-Eps
}

// Intersects reports whether r and o overlap or touch.
func (r Rect) Intersects(o Rect) bool {
	return r.X1 <= o.X2+Eps && r.X2 >= o.X1-Eps && r.Y1 <= o.Y2+Eps && r.Y2 >= o.Y1-Eps
}

// Overlaps reports whether r and o share interior area.
func (r Rect) Overlaps(o Rect) bool {
	return r.X1 < o.X2-Eps && r.X2 > o.X1+Eps && r.Y1 < o.Y2-Eps && r.Y2 > o.Y1+Eps
}

// Expand grows r by d on every side.
func (r Rect) Expand(d float64) Rect {
	return Rect{r.X1 - d, r.Y1 - d, r.X2 + d, r.Y2 + d}
}

// Union returns the smallest rectangle enclosing r and o.
func (r Rect) Union(o Rect) Rect {
	return Rect{
		math.Min(r.X1, o.X1), math.Min(r.Y1, o.Y1),
		math.Max(r.X2, o.X2), math.Max(r.Y2, o.Y2),
	}
}

// Include grows r to cover p.
func (r *Rect) Include(p Point) {
	r.X1 = math.Min(r.X1, p.X)
	r.Y1 = math.Min(r.Y1, p.Y)
	r.X2 = math.Max(r.X2, p.X)
	r.Y2 = math.Max(r.Y2, p.Y)
}

// Dist returns the Euclidean distance from p to the nearest point of r,
// zero when p is inside.
func (r Rect) Dist(p Point) float64 {
	dx, dy := axisGap(p.X, r.X1, r.X2), axisGap(p.Y, r.Y1, r.Y2)
	return math.Hypot(dx, dy)
}

// Gap returns the Euclidean edge-to-edge distance between r and o, zero
// when they touch or overlap.
func (r Rect) Gap(o Rect) float64 {
	dx := math.Max(0, math.Max(o.X1-r.X2, r.X1-o.X2))
	dy := math.Max(0, math.Max(o.Y1-r.Y2, r.Y1-o.Y2))
	return math.Hypot(dx, dy)
}

// Box returns the square of half-width h centred on p.
func Box(p Point, hx, hy float64) Rect {
	return Rect{p.X - hx, p.Y - hy, p.X + hx, p.Y + hy}
}

func (r Rect) String() string {
	return fmt.Sprintf("(%g,%g)-(%g,%g)", r.X1, r.Y1, r.X2, r.Y2)
}

func axisGap(v, lo, hi float64) float64 {
	switch {
	case v < lo:
		return lo - v
	case v > hi:
		return v - hi
	}
	return 0
}
