package translate

import (
	"math"

	"github.com/wrcad/xictools-sub010/pkg/db"
	"github.com/wrcad/xictools-sub010/pkg/geom"
	"github.com/wrcad/xictools-sub010/pkg/grid"
)

// indexedShape is tap or obstruction geometry. Net is zero for obstructions.
type indexedShape struct {
	net  int
	node *db.Node
	db.Shape
}

type bucketKey struct {
	layer, bx, by int
}

// shapeIndex buckets geometry on a coarse square grid for neighborhood
// queries.
type shapeIndex struct {
	size    float64
	x0, y0  float64
	shapes  []indexedShape
	buckets map[bucketKey][]int
	stamp   []int
	query   int
}

func newShapeIndex(d *db.Design, g *grid.Grid) *shapeIndex {
	idx := &shapeIndex{
		size:    8 * math.Max(g.PitchX, g.PitchY),
		x0:      g.XLower,
		y0:      g.YLower,
		buckets: make(map[bucketKey][]int),
	}
	for _, n := range d.Nets {
		for _, node := range n.Nodes {
			for _, s := range node.Shapes() {
				idx.add(indexedShape{net: n.Number, node: node, Shape: s})
			}
		}
	}
	for _, s := range obstructionShapes(d) {
		idx.add(indexedShape{Shape: s})
	}
	idx.stamp = make([]int, len(idx.shapes))
	return idx
}

func (idx *shapeIndex) span(r geom.Rect) (int, int, int, int) {
	return int(math.Floor((r.X1 - idx.x0) / idx.size)), int(math.Floor((r.Y1 - idx.y0) / idx.size)),
		int(math.Floor((r.X2 - idx.x0) / idx.size)), int(math.Floor((r.Y2 - idx.y0) / idx.size))
}

func (idx *shapeIndex) add(s indexedShape) {
	i := len(idx.shapes)
	idx.shapes = append(idx.shapes, s)
	bx1, by1, bx2, by2 := idx.span(s.Rect)
	for bx := bx1; bx <= bx2; bx++ {
		for by := by1; by <= by2; by++ {
			k := bucketKey{s.Layer, bx, by}
			idx.buckets[k] = append(idx.buckets[k], i)
		}
	}
}

// near calls fn once for every shape on layer that may lie within r.
func (idx *shapeIndex) near(layer int, r geom.Rect, fn func(*indexedShape)) {
	idx.query++
	bx1, by1, bx2, by2 := idx.span(r)
	for bx := bx1; bx <= bx2; bx++ {
		for by := by1; by <= by2; by++ {
			for _, i := range idx.buckets[bucketKey{layer, bx, by}] {
				if idx.stamp[i] == idx.query {
					continue
				}
				idx.stamp[i] = idx.query
				fn(&idx.shapes[i])
			}
		}
	}
}

// obstructionShapes returns gate obstructions, free obstructions and the
// geometry of pins that belong to no net.
func obstructionShapes(d *db.Design) []db.Shape {
	var out []db.Shape
	for _, g := range d.Gates {
		out = append(out, g.Obs...)
		for _, p := range g.Pins {
			if p.Node == nil {
				out = append(out, p.Shapes...)
			}
		}
	}
	return append(out, d.Obstructions...)
}
