// Package maze finds and commits the routes of one net at a time.
//
// A search grows cost labels outward from the net's source cells (its
// committed routes, or its first terminal) over the six-connected grid
// until a target terminal is reached. Cost accumulates per step: the
// segment cost along a layer's preferred direction, the jog cost across
// it, the via cost between layers, and penalties for crossing other
// nets' pins, for offset taps, and for stepping onto cells another net
// already uses. The last penalty applies only during rip-up routing;
// otherwise occupied cells are walls.
//
// The search is bounded by a cost ceiling and an optional mask of
// allowed cells. Cells outside either bound are saved, and the next pass
// restarts from them after doubling the ceiling or widening the mask.
package maze

import (
	"errors"
	"log/slog"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/wrcad/xictools-sub010/pkg/db"
	"github.com/wrcad/xictools-sub010/pkg/grid"
)

var (
	// ErrNoRoute means the search exhausted its passes without reaching
	// a target.
	ErrNoRoute = errors.New("maze: no route found")

	// ErrUnroutable means a terminal has no usable tap.
	ErrUnroutable = errors.New("maze: terminal has no usable tap")

	// ErrProvisional means the net is already connected, or a stacked via
	// could not be legalized.
	ErrProvisional = errors.New("maze: route is provisional")
)

var (
	searchPasses = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "mrouter_search_passes",
		Help:    "Search passes needed per connection",
		Buckets: prometheus.LinearBuckets(1, 1, 10),
	})

	cellsExpanded = promauto.NewCounter(prometheus.CounterOpts{
		Name: "mrouter_cells_expanded_total",
		Help: "Grid cells expanded by the maze search",
	})

	stackedViaFixes = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "mrouter_stacked_via_fixes_total",
		Help: "Stacked via legalization attempts by result",
	}, []string{"result"})
)

// Stage selects how the search treats cells used by other nets.
type Stage int

const (
	// StageInitial treats all occupied cells as walls.
	StageInitial Stage = iota
	// StageRipup lets routes cross other nets' routes at a cost.
	StageRipup
	// StageCleanup reroutes with walls, like StageInitial.
	StageCleanup
)

func (s Stage) String() string {
	switch s {
	case StageInitial:
		return "initial"
	case StageRipup:
		return "ripup"
	case StageCleanup:
		return "cleanup"
	}
	return "unknown"
}

// Costs are the per-step search weights.
type Costs struct {
	Segment   int
	Via       int
	Jog       int
	Crossover int
	Block     int
	Offset    int
	Conflict  int
}

// Params tune the search.
type Params struct {
	Costs Costs

	// NumPasses bounds the relaxation passes per connection. The last
	// pass ignores both the cost ceiling and the mask.
	NumPasses int

	// StackedVias is the largest number of vias allowed to stack at one
	// location.
	StackedVias int

	// ForceRoutable opens a tap on terminals that have none.
	ForceRoutable bool
}

// DefaultParams returns the standard weights.
func DefaultParams() Params {
	return Params{
		Costs: Costs{
			Segment:   1,
			Via:       5,
			Jog:       10,
			Crossover: 4,
			Block:     25,
			Offset:    50,
			Conflict:  50,
		},
		NumPasses:   10,
		StackedVias: 2,
	}
}

// Mask limits the search to cells whose level does not exceed the current
// pass limit.
type Mask interface {
	Level(x, y int) int
}

// Result summarizes one RouteNet call.
type Result struct {
	// Routed counts the connections committed.
	Routed int
	// Unroutable lists terminals skipped for lack of taps.
	Unroutable []*db.Node
	// Passes is the largest pass count used by a connection.
	Passes int
	// Connected is set when the net needed no new route.
	Connected bool
}

// blockRule says whether a via on a layer blocks the adjacent cell
// along x or y.
type blockRule struct {
	x, y bool
}

// Engine routes nets over a translated grid.
type Engine struct {
	g   *grid.Grid
	d   *db.Design
	p   Params
	log *slog.Logger

	needBlock []blockRule
}

// NewEngine returns an engine over g.
func NewEngine(g *grid.Grid, d *db.Design, p Params, log *slog.Logger) *Engine {
	if log == nil {
		log = slog.Default()
	}
	if p.NumPasses < 1 {
		p.NumPasses = 1
	}
	e := &Engine{g: g, d: d, p: p, log: log}
	e.needBlock = make([]blockRule, g.NumLayers)
	for l := range e.needBlock {
		hx, hy := d.Tech.ViaHalfSize(l)
		rh := d.Tech.RouteHalfWidth(l)
		s := d.Tech.Layers[l].Spacing
		e.needBlock[l] = blockRule{
			x: hx+rh+s > g.PitchX+1e-9 || 2*hx+s > g.PitchX+1e-9,
			y: hy+rh+s > g.PitchY+1e-9 || 2*hy+s > g.PitchY+1e-9,
		}
	}
	return e
}

// Params returns the current search parameters.
func (e *Engine) Params() Params { return e.p }

// SetParams replaces the search parameters.
func (e *Engine) SetParams(p Params) {
	if p.NumPasses < 1 {
		p.NumPasses = 1
	}
	e.p = p
}

// Grid returns the grid the engine routes on.
func (e *Engine) Grid() *grid.Grid { return e.g }
