package geom

import (
	"math"
	"testing"
)

func TestRectDist(t *testing.T) {
	r := NewRect(2, 2, 0, 0)
	tests := []struct {
		p    Point
		want float64
	}{
		{Point{1, 1}, 0},
		{Point{3, 1}, 1},
		{Point{1, -2}, 2},
		{Point{5, 6}, 5},
	}
	for _, tt := range tests {
		if got := r.Dist(tt.p); math.Abs(got-tt.want) > Eps {
			t.Errorf("Dist(%v) = %g, want %g", tt.p, got, tt.want)
		}
	}
}

func TestRectGapAndOverlap(t *testing.T) {
	a := Rect{0, 0, 1, 1}
	b := Rect{4, 5, 6, 6}
	if got := a.Gap(b); math.Abs(got-5) > Eps {
		t.Errorf("Gap = %g, want 5", got)
	}
	c := Rect{1, 0, 2, 1}
	if !a.Intersects(c) {
		t.Error("touching rects should intersect")
	}
	if a.Overlaps(c) {
		t.Error("touching rects should not overlap")
	}
	if !a.Overlaps(Rect{0.5, 0.5, 3, 3}) {
		t.Error("expected overlap")
	}
}

func TestRectInclude(t *testing.T) {
	r := EmptyRect()
	if !r.IsEmpty() {
		t.Fatal("EmptyRect not empty")
	}
	r.Include(Point{3, 1})
	r.Include(Point{-1, 4})
	if r != (Rect{-1, 1, 3, 4}) {
		t.Errorf("Include result %v", r)
	}
	if c := r.Center(); c != (Point{1, 2.5}) {
		t.Errorf("Center = %v", c)
	}
	if !r.Contains(Point{3, 4}) || r.ContainsStrict(Point{3, 4}) {
		t.Error("edge containment wrong")
	}
}
