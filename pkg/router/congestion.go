package router

import (
	"fmt"
	"io"
	"sort"

	"github.com/wrcad/xictools-sub010/pkg/db"
)

// Congested is the routing density score of one gate.
type Congested struct {
	Gate  *db.Gate
	Score float64
}

// Congestion scores each gate by the nets whose bounding boxes cover it.
// Every net spreads a weight of one over its bounding box; a gate's score
// is the weight over its footprint divided by its cell count and the
// number of layers. Gates are returned highest score first.
func (r *Router) Congestion() []Congested {
	nx, ny := r.grid.NumX, r.grid.NumY
	density := make([]float64, nx*ny)
	for _, net := range r.design.Nets {
		if !net.Routable() || net.XMax < net.XMin {
			continue
		}
		area := (net.XMax - net.XMin + 1) * (net.YMax - net.YMin + 1)
		w := 1 / float64(area)
		for y := net.YMin; y <= net.YMax; y++ {
			for x := net.XMin; x <= net.XMax; x++ {
				density[x+y*nx] += w
			}
		}
	}

	var out []Congested
	for _, g := range r.design.Gates {
		if g.Cell == db.PortCell {
			continue
		}
		b := g.Bounds()
		if b.IsEmpty() {
			continue
		}
		x1, y1, x2, y2 := r.grid.CellRange(b)
		if x2 < x1 || y2 < y1 {
			continue
		}
		var sum float64
		for y := y1; y <= y2; y++ {
			for x := x1; x <= x2; x++ {
				sum += density[x+y*nx]
			}
		}
		cells := (x2 - x1 + 1) * (y2 - y1 + 1)
		out = append(out, Congested{Gate: g, Score: sum / float64(cells*r.grid.NumLayers)})
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Score != out[j].Score {
			return out[i].Score > out[j].Score
		}
		return out[i].Gate.Name < out[j].Gate.Name
	})
	return out
}

// WriteCongestion writes the n most congested gates, all of them when n
// is not positive, one "gate score" line each.
func (r *Router) WriteCongestion(w io.Writer, n int) error {
	list := r.Congestion()
	if n > 0 && n < len(list) {
		list = list[:n]
	}
	for _, c := range list {
		if _, err := fmt.Fprintf(w, "%s %.4f\n", c.Gate.Name, c.Score); err != nil {
			return err
		}
	}
	return nil
}
