// Package grid is the routing grid: one dense obstruction word per
// (x, y, layer) cell, sparse node metadata on pin layers, and the per-cell
// working state of the maze search.
package grid

import (
	"fmt"
	"math"

	"github.com/wrcad/xictools-sub010/pkg/db"
	"github.com/wrcad/xictools-sub010/pkg/geom"
)

// Grid is the routing grid of one design. Cell (x, y) sits at physical
// (XLower + x*PitchX, YLower + y*PitchY).
type Grid struct {
	NumX, NumY, NumLayers int
	XLower, YLower        float64
	PitchX, PitchY        float64

	// PinLayers is the number of bottom layers carrying node metadata.
	PinLayers int

	obs      [][]uint32
	nodeInfo [][]int32
	arena    nodeArena
	proute   [][]PRoute
}

// New sizes a grid over area using the finest track pitch of tech.
func New(tech *db.Tech, area geom.Rect) (*Grid, error) {
	if err := tech.Validate(); err != nil {
		return nil, err
	}
	g := &Grid{
		NumLayers: tech.NumLayers(),
		XLower:    area.X1,
		YLower:    area.Y1,
		PitchX:    math.Inf(1),
		PitchY:    math.Inf(1),
	}
	for _, l := range tech.Layers {
		g.PitchX = math.Min(g.PitchX, l.PitchX)
		g.PitchY = math.Min(g.PitchY, l.PitchY)
	}
	g.NumX = int(math.Floor(area.Width()/g.PitchX+geom.Eps)) + 1
	g.NumY = int(math.Floor(area.Height()/g.PitchY+geom.Eps)) + 1
	if g.NumX*g.NumY*g.NumLayers > 1<<31-1 {
		return nil, fmt.Errorf("grid: %dx%dx%d cells is too large", g.NumX, g.NumY, g.NumLayers)
	}
	g.Reset()
	return g, nil
}

// Reset clears every obstruction word and all node metadata.
func (g *Grid) Reset() {
	g.obs = make([][]uint32, g.NumLayers)
	g.nodeInfo = make([][]int32, g.NumLayers)
	for l := range g.obs {
		g.obs[l] = make([]uint32, g.NumX*g.NumY)
	}
	g.arena.reset()
	g.proute = nil
	g.PinLayers = g.NumLayers
}

func (g *Grid) index(x, y int) int {
	return x + y*g.NumX
}

// InBounds reports whether (x, y, l) is a cell of the grid.
func (g *Grid) InBounds(x, y, l int) bool {
	return x >= 0 && x < g.NumX && y >= 0 && y < g.NumY && l >= 0 && l < g.NumLayers
}

// Obs returns the obstruction word of (x, y, l).
func (g *Grid) Obs(x, y, l int) uint32 {
	return g.obs[l][g.index(x, y)]
}

// SetObs replaces the obstruction word of (x, y, l).
func (g *Grid) SetObs(x, y, l int, w uint32) {
	g.obs[l][g.index(x, y)] = w
}

// OrObs sets bits in the obstruction word of (x, y, l).
func (g *Grid) OrObs(x, y, l int, bits uint32) {
	g.obs[l][g.index(x, y)] |= bits
}

// BlockRoute forbids the move from (x, y, l) in direction d, and the
// reverse move from the neighbor. Nothing happens at the grid edge or when
// the neighbor is already obstructed.
func (g *Grid) BlockRoute(x, y, l int, d Dir) {
	dx, dy, dl := d.Delta()
	nx, ny, nl := x+dx, y+dy, l+dl
	if !g.InBounds(nx, ny, nl) {
		return
	}
	if g.Obs(nx, ny, nl)&NoNet != 0 {
		return
	}
	g.OrObs(x, y, l, d.Blocked())
	g.OrObs(nx, ny, nl, d.Opposite().Blocked())
}

// PhysX returns the physical x of column x.
func (g *Grid) PhysX(x int) float64 { return g.XLower + float64(x)*g.PitchX }

// PhysY returns the physical y of row y.
func (g *Grid) PhysY(y int) float64 { return g.YLower + float64(y)*g.PitchY }

// Phys returns the physical location of a cell.
func (g *Grid) Phys(x, y int) geom.Point {
	return geom.Point{X: g.PhysX(x), Y: g.PhysY(y)}
}

// GridX returns the nearest column to physical x, unclamped.
func (g *Grid) GridX(x float64) int {
	return int(math.Round((x - g.XLower) / g.PitchX))
}

// GridY returns the nearest row to physical y, unclamped.
func (g *Grid) GridY(y float64) int {
	return int(math.Round((y - g.YLower) / g.PitchY))
}

// CellRange returns the clamped column and row span whose cell centres
// fall inside r.
func (g *Grid) CellRange(r geom.Rect) (x1, y1, x2, y2 int) {
	x1 = int(math.Ceil((r.X1-g.XLower)/g.PitchX - geom.Eps))
	x2 = int(math.Floor((r.X2-g.XLower)/g.PitchX + geom.Eps))
	y1 = int(math.Ceil((r.Y1-g.YLower)/g.PitchY - geom.Eps))
	y2 = int(math.Floor((r.Y2-g.YLower)/g.PitchY + geom.Eps))
	x1, y1 = max(x1, 0), max(y1, 0)
	x2, y2 = min(x2, g.NumX-1), min(y2, g.NumY-1)
	return
}

// Bounds returns the physical extent of the cell centres.
func (g *Grid) Bounds() geom.Rect {
	return geom.Rect{X1: g.XLower, Y1: g.YLower, X2: g.PhysX(g.NumX - 1), Y2: g.PhysY(g.NumY - 1)}
}

// Snapshot copies the obstruction words of every layer.
func (g *Grid) Snapshot() [][]uint32 {
	out := make([][]uint32, len(g.obs))
	for l := range g.obs {
		out[l] = append([]uint32(nil), g.obs[l]...)
	}
	return out
}
