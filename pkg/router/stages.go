package router

import (
	"context"
	"errors"

	"github.com/wrcad/xictools-sub010/pkg/db"
	"github.com/wrcad/xictools-sub010/pkg/maze"
)

// Stage2Options override the configuration for one stage 2 run. Zero
// values keep the configured setting.
type Stage2Options struct {
	Mask   string
	Limit  int
	Effort int
}

// outcome of one net attempt
type outcome int

const (
	outcomeFailed outcome = iota
	outcomeRouted
	outcomePartial
)

func (o outcome) String() string {
	switch o {
	case outcomeRouted:
		return "routed"
	case outcomePartial:
		return "partial"
	}
	return "failed"
}

func isCanceled(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}

// attempt routes net once. Routes found are left in net.Routes and not
// written to the grid. Only cancellation is returned as an error.
func (r *Router) attempt(ctx context.Context, net *db.Net, stage maze.Stage, maskMode string) (outcome, error) {
	mask, err := r.buildMask(net, maskMode, r.cfg.Mask.Halo)
	if err != nil {
		return outcomeFailed, err
	}
	res, err := r.engine.RouteNet(ctx, net, stage, mask)
	o := outcomeRouted
	switch {
	case err == nil:
	case isCanceled(err):
		return outcomeFailed, err
	case errors.Is(err, maze.ErrProvisional) && res.Connected:
	case errors.Is(err, maze.ErrUnroutable) && res.Routed > 0:
		o = outcomePartial
		r.log.Warn("net partially routed", "net", net.Name, "unroutable", len(res.Unroutable))
	default:
		o = outcomeFailed
		r.log.Debug("route failed", "net", net.Name, "stage", stage.String(), "err", err)
	}
	routeAttempts.WithLabelValues(stage.String(), o.String()).Inc()
	return o, nil
}

// commitNet tidies and writes the net's new routes into the grid.
func (r *Router) commitNet(net *db.Net) {
	r.engine.CleanupNet(net)
	r.engine.WriteBack(net)
}

func routed(net *db.Net) bool { return len(net.Routes) > 0 }

// DoFirstStage routes every net in order with other routes as walls. Nets
// that fail go to the failed list. It returns the number of failed nets.
func (r *Router) DoFirstStage(ctx context.Context) (int, error) {
	defer r.grid.ReleasePRoute()
	total := len(r.order)
	for i, net := range r.order {
		select {
		case <-ctx.Done():
			return r.failed.Len(), ctx.Err()
		default:
		}
		if !net.Routable() || routed(net) {
			continue
		}
		r.sendProgress(1, i+1, total, net)
		o, err := r.attempt(ctx, net, maze.StageInitial, r.cfg.Mask.Mode)
		if err != nil {
			net.Routes = nil
			return r.failed.Len(), err
		}
		if o == outcomeFailed {
			net.Routes = nil
			if !r.failed.Contains(net) {
				r.failed.Append(net)
			}
			continue
		}
		r.commitNet(net)
	}
	failedNets.Set(float64(r.Unrouted()))
	r.log.Info("stage 1 done", "nets", total, "failed", r.failed.Len())
	return r.failed.Len(), nil
}

// DoSecondStage routes the failed nets allowing collisions and rips up
// the nets they collide with. A ripped net may not rip up the net that
// displaced it. A net that fails again while pending is abandoned. The
// stage stops when the failed list is empty or when the failed count does
// not halve within the try budget and keep-trying is spent. It returns the
// number of failed and abandoned nets.
func (r *Router) DoSecondStage(ctx context.Context, opts Stage2Options) (int, error) {
	defer r.grid.ReleasePRoute()
	maskMode := r.cfg.Mask.Mode
	if opts.Mask != "" {
		maskMode = opts.Mask
	}
	limit := r.cfg.RipLimit
	if opts.Limit > 0 {
		limit = opts.Limit
	}
	effort := r.cfg.Effort
	if opts.Effort > 0 {
		effort = opts.Effort
	}
	keepTrying := r.cfg.KeepTrying

	lastFailed := r.failed.Len()
	maxTries := r.totalRoutes + max(lastFailed, 20)*effort

	for r.failed.Len() > 0 {
		select {
		case <-ctx.Done():
			return r.Unrouted(), ctx.Err()
		default:
		}
		if r.totalRoutes > maxTries {
			cur := r.failed.Len()
			if cur*2 > lastFailed {
				if keepTrying == 0 {
					r.log.Warn("stage 2 stalled", "failed", cur, "tries", r.totalRoutes)
					break
				}
				keepTrying--
				r.log.Info("stage 2 stalled, trying again", "failed", cur, "keep_trying", keepTrying)
			}
			lastFailed = cur
			maxTries = r.totalRoutes + max(cur, 20)*effort
		}

		net := r.failed.Pop()
		if routed(net) || net.Has(db.NetAbandoned) || !net.Routable() {
			continue
		}
		r.totalRoutes++
		r.sendProgress(2, r.totalRoutes, maxTries, net)

		o, err := r.attempt(ctx, net, maze.StageRipup, maskMode)
		if err != nil {
			net.Routes = nil
			r.failed.Push(net)
			return r.Unrouted(), err
		}
		if o != outcomeFailed {
			colliding := r.engine.FindColliding(net)
			if len(colliding) <= limit && !protects(net, colliding) {
				r.displace(net, colliding)
				r.commitNet(net)
				net.Clear(db.NetPending)
				continue
			}
			r.log.Debug("too many collisions", "net", net.Name, "colliding", len(colliding), "limit", limit,
				"err", ErrRipLimit)
		}
		net.Routes = nil
		r.retryLater(net)
	}

	failedNets.Set(float64(r.Unrouted()))
	r.log.Info("stage 2 done", "tries", r.totalRoutes, "failed", r.failed.Len(), "abandoned", len(r.abandoned))
	return r.Unrouted(), nil
}

// protects reports whether net may not rip up any of colliding.
func protects(net *db.Net, colliding []*db.Net) bool {
	for _, c := range colliding {
		if net.InNoRipup(c) {
			return true
		}
	}
	return false
}

// displace rips up the nets net collides with and queues them again.
func (r *Router) displace(net *db.Net, colliding []*db.Net) {
	for _, c := range colliding {
		r.log.Debug("ripping up", "net", c.Name, "for", net.Name)
		r.engine.RipupNet(c, true)
		c.AddNoRipup(net)
		r.failed.Append(c)
		ripups.Inc()
	}
}

// retryLater queues a failed stage 2 net. A net that failed while
// protecting other nets drops its no-ripup list and tries once more; a
// second failure in a row abandons it.
func (r *Router) retryLater(net *db.Net) {
	switch {
	case len(net.NoRipup) > 0 && !net.Has(db.NetPending):
		net.NoRipup = nil
		net.Set(db.NetPending)
		r.failed.Append(net)
	case net.Has(db.NetPending):
		net.Clear(db.NetPending)
		net.Set(db.NetAbandoned)
		r.abandoned = append(r.abandoned, net)
		r.failed.Remove(net)
		r.log.Warn("net abandoned", "net", net.Name)
	default:
		net.Set(db.NetPending)
		r.failed.Append(net)
	}
}

// DoThirdStage rips up and reroutes every routed net with other routes
// as walls. A net that cannot be rerouted keeps its previous routes. It
// returns the number of nets that kept their old routes.
func (r *Router) DoThirdStage(ctx context.Context) (int, error) {
	defer r.grid.ReleasePRoute()
	kept := 0
	total := len(r.order)
	for i, net := range r.order {
		select {
		case <-ctx.Done():
			return kept, ctx.Err()
		default:
		}
		if !routed(net) {
			continue
		}
		r.sendProgress(3, i+1, total, net)
		saved := net.Routes
		r.engine.RipupNet(net, true)
		o, err := r.attempt(ctx, net, maze.StageCleanup, r.cfg.Mask.Mode)
		if err != nil || o == outcomeFailed {
			net.Routes = saved
			r.engine.WriteBack(net)
			if err != nil {
				return kept, err
			}
			kept++
			continue
		}
		r.commitNet(net)
	}
	r.log.Info("stage 3 done", "nets", total, "kept", kept)
	return kept, nil
}
