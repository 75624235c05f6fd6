// Package router drives detailed routing of a whole design.
//
// A Router owns the routing grid of one design. It translates the pin and
// obstruction geometry once, orders the nets, and then runs up to three
// stages over the maze engine:
//
//  1. every net in order, with other nets' routes treated as walls
//  2. the failed nets, allowed to cross other routes; the nets they cross
//     are ripped up and queued again
//  3. every routed net ripped up and rerouted with walls again
//
// Stage 2 guarantees progress by letting a ripped net never rip up the net
// that displaced it, and by abandoning nets that keep failing once the
// failed count stops shrinking.
package router

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/wrcad/xictools-sub010/pkg/config"
	"github.com/wrcad/xictools-sub010/pkg/db"
	"github.com/wrcad/xictools-sub010/pkg/grid"
	"github.com/wrcad/xictools-sub010/pkg/maze"
	"github.com/wrcad/xictools-sub010/pkg/translate"
)

var (
	// ErrUnknownNet is returned for net names not in the design.
	ErrUnknownNet = errors.New("router: unknown net")

	// ErrRipLimit means a route collided with more nets than the rip-up
	// limit allows.
	ErrRipLimit = errors.New("router: too many colliding nets")
)

var (
	// routeAttempts counts net route attempts by stage and result
	routeAttempts = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "mrouter_route_attempts_total",
		Help: "Net route attempts by stage and result",
	}, []string{"stage", "result"})

	// ripups counts nets ripped up to make room for another net
	ripups = promauto.NewCounter(prometheus.CounterOpts{
		Name: "mrouter_ripups_total",
		Help: "Nets ripped up by colliding routes",
	})

	// failedNets tracks the nets left unrouted after the last stage
	failedNets = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "mrouter_failed_nets",
		Help: "Nets left unrouted after the last stage",
	})
)

// netClasses are the net flags set from the design file and the
// configuration net lists.
const netClasses = db.NetCritical | db.NetIgnored | db.NetGlobal

// Progress reports routing progress, one message per net attempt.
type Progress struct {
	Stage  int
	Net    string
	Index  int
	Total  int
	Failed int
}

// Option configures a Router.
type Option func(*Router)

// WithLogger sets the logger. The default is slog.Default().
func WithLogger(log *slog.Logger) Option {
	return func(r *Router) { r.log = log }
}

// WithLevel ties the logger's level to the log_level setting. Reconfigure
// updates lv, so a script can change the verbosity of a running router.
func WithLevel(lv *slog.LevelVar) Option {
	return func(r *Router) { r.level = lv }
}

// WithProgress sends a Progress message before each net attempt. The
// channel must be drained by the caller.
func WithProgress(ch chan<- Progress) Option {
	return func(r *Router) { r.progress = ch }
}

// Router routes one design.
type Router struct {
	// RunID identifies this router instance in logs and output.
	RunID uuid.UUID

	design *db.Design
	grid   *grid.Grid
	engine *maze.Engine
	cfg    *config.Config
	log    *slog.Logger
	report *translate.Report

	order     []*db.Net
	declared  map[*db.Net]db.NetFlags
	failed    *FailedList
	abandoned []*db.Net

	// totalRoutes counts stage 2 attempts and sets its try budget.
	totalRoutes int

	progress chan<- Progress
	level    *slog.LevelVar
}

// New translates the design onto a new grid and prepares the nets for
// routing. A nil cfg means the default configuration.
func New(d *db.Design, cfg *config.Config, opts ...Option) (*Router, error) {
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("router: invalid config: %w", err)
	}
	if err := d.Validate(); err != nil {
		return nil, fmt.Errorf("router: %w", err)
	}
	r := &Router{
		RunID:  uuid.New(),
		design: d,
		cfg:    cfg,
		log:    slog.Default(),
		failed: &FailedList{},
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.level != nil {
		r.level.Set(cfg.Level())
	}
	r.log = r.log.With("run", r.RunID.String())

	r.declared = make(map[*db.Net]db.NetFlags, len(d.Nets))
	for _, n := range d.Nets {
		r.declared[n] = n.Flags & netClasses
	}
	r.applyNetClasses()

	g, err := grid.New(d.Tech, d.Area)
	if err != nil {
		return nil, fmt.Errorf("router: %w", err)
	}
	r.grid = g
	if r.report, err = translate.Run(d, g, r.log); err != nil {
		return nil, fmt.Errorf("router: %w", err)
	}
	r.computeBBoxes()
	r.computeTrunks()
	r.engine = maze.NewEngine(g, d, cfg.Params(), r.log)
	r.order = createNetOrder(d.Nets, cfg.NetOrder)

	r.log.Info("router ready", "design", d.Name, "nets", len(d.Nets),
		"grid", fmt.Sprintf("%dx%dx%d", g.NumX, g.NumY, g.NumLayers), "pinlayers", g.PinLayers)
	return r, nil
}

// applyNetClasses flags the nets named by the critical, ignored and
// global lists.
func (r *Router) applyNetClasses() {
	for _, n := range r.design.Nets {
		n.Flags = n.Flags&^netClasses | r.declared[n]
	}
	classes := []struct {
		names []string
		flag  db.NetFlags
	}{
		{r.cfg.CriticalNets, db.NetCritical},
		{r.cfg.IgnoredNets, db.NetIgnored},
		{r.cfg.GlobalNets, db.NetGlobal},
	}
	for _, c := range classes {
		for _, name := range c.names {
			n := r.design.Net(name)
			if n == nil {
				r.log.Warn("no such net", "net", name)
				continue
			}
			n.Set(c.flag)
		}
	}
}

// Design returns the routed design.
func (r *Router) Design() *db.Design { return r.design }

// Grid returns the routing grid.
func (r *Router) Grid() *grid.Grid { return r.grid }

// Config returns the live configuration. Call Reconfigure after changing
// it.
func (r *Router) Config() *config.Config { return r.cfg }

// Report returns the geometry translation report.
func (r *Router) Report() *translate.Report { return r.report }

// Reconfigure applies the current configuration to the engine and the
// net order.
func (r *Router) Reconfigure() error {
	if err := r.cfg.Validate(); err != nil {
		return err
	}
	r.engine.SetParams(r.cfg.Params())
	if r.level != nil {
		r.level.Set(r.cfg.Level())
	}
	r.applyNetClasses()
	r.order = createNetOrder(r.design.Nets, r.cfg.NetOrder)
	return nil
}

// Order returns the nets in routing order.
func (r *Router) Order() []*db.Net {
	return append([]*db.Net(nil), r.order...)
}

// FailedNets returns the nets waiting in the failed list, in queue order.
func (r *Router) FailedNets() []*db.Net { return r.failed.Nets() }

// AbandonedNets returns the nets stage 2 gave up on.
func (r *Router) AbandonedNets() []*db.Net {
	return append([]*db.Net(nil), r.abandoned...)
}

// Unrouted returns the number of failed and abandoned nets.
func (r *Router) Unrouted() int {
	return r.failed.Len() + len(r.abandoned)
}

func (r *Router) net(name string) (*db.Net, error) {
	n := r.design.Net(name)
	if n == nil {
		return nil, fmt.Errorf("%w: %q", ErrUnknownNet, name)
	}
	return n, nil
}

func (r *Router) sendProgress(stage, index, total int, net *db.Net) {
	if r.progress == nil {
		return
	}
	r.progress <- Progress{Stage: stage, Net: net.Name, Index: index, Total: total, Failed: r.Unrouted()}
}
