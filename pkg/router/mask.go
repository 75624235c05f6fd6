package router

import (
	"fmt"

	"github.com/wrcad/xictools-sub010/pkg/config"
	"github.com/wrcad/xictools-sub010/pkg/db"
	"github.com/wrcad/xictools-sub010/pkg/maze"
)

const maxMaskLevel = 255

// levelMask assigns each column of the grid a search level. The engine
// opens cells of higher level one pass at a time.
type levelMask struct {
	nx int
	lv []uint8
}

func (m *levelMask) Level(x, y int) int {
	return int(m.lv[x+y*m.nx])
}

// buildMask returns the corridor for net under mode, or nil for no mask.
func (r *Router) buildMask(net *db.Net, mode string, halo int) (maze.Mask, error) {
	switch mode {
	case config.MaskNone:
		return nil, nil
	case config.MaskBBox:
		if net.XMax < net.XMin {
			return nil, nil
		}
		return r.bboxMask(net, halo), nil
	case config.MaskAuto:
		if net.XMax < net.XMin {
			return nil, nil
		}
		return r.trunkMask(net, halo), nil
	}
	return nil, fmt.Errorf("router: unknown mask mode %q", mode)
}

func (r *Router) newMask() *levelMask {
	nx, ny := r.grid.NumX, r.grid.NumY
	return &levelMask{nx: nx, lv: make([]uint8, nx*ny)}
}

// bboxMask levels cells by their Chebyshev distance outside the net
// bounding box grown by halo.
func (r *Router) bboxMask(net *db.Net, halo int) *levelMask {
	m := r.newMask()
	x1, x2 := net.XMin-halo, net.XMax+halo
	y1, y2 := net.YMin-halo, net.YMax+halo
	for y := 0; y < r.grid.NumY; y++ {
		for x := 0; x < r.grid.NumX; x++ {
			d := max(x1-x, x-x2, y1-y, y-y2, 0)
			m.lv[x+y*m.nx] = uint8(min(d, maxMaskLevel))
		}
	}
	return m
}

// trunkMask levels cells by their grid distance from the net trunk and
// the branches joining each node to it. Cells within halo of the trunk
// tree are level zero.
func (r *Router) trunkMask(net *db.Net, halo int) *levelMask {
	nx, ny := r.grid.NumX, r.grid.NumY
	dist := make([]int, nx*ny)
	for i := range dist {
		dist[i] = -1
	}
	var queue []int
	seed := func(x, y int) {
		if x < 0 || y < 0 || x >= nx || y >= ny {
			return
		}
		i := x + y*nx
		if dist[i] < 0 {
			dist[i] = 0
			queue = append(queue, i)
		}
	}
	line := func(x1, y1, x2, y2 int) {
		for x := min(x1, x2); x <= max(x1, x2); x++ {
			for y := min(y1, y2); y <= max(y1, y2); y++ {
				seed(x, y)
			}
		}
	}

	if net.Has(db.NetVerticalTrunk) {
		line(net.Trunk, net.YMin, net.Trunk, net.YMax)
	} else {
		line(net.XMin, net.Trunk, net.XMax, net.Trunk)
	}
	for _, node := range net.Nodes {
		c, ok := r.nodeLocation(node)
		if !ok {
			continue
		}
		line(c.X, c.Y, node.Branch.X, node.Branch.Y)
	}

	for len(queue) > 0 {
		i := queue[0]
		queue = queue[1:]
		x, y := i%nx, i/nx
		for _, d := range [4][2]int{{1, 0}, {-1, 0}, {0, 1}, {0, -1}} {
			ax, ay := x+d[0], y+d[1]
			if ax < 0 || ay < 0 || ax >= nx || ay >= ny {
				continue
			}
			j := ax + ay*nx
			if dist[j] < 0 {
				dist[j] = dist[i] + 1
				queue = append(queue, j)
			}
		}
	}

	m := &levelMask{nx: nx, lv: make([]uint8, nx*ny)}
	for i, d := range dist {
		m.lv[i] = uint8(min(max(d-halo, 0), maxMaskLevel))
	}
	return m
}
