package router

import (
	"context"
	"fmt"

	"github.com/wrcad/xictools-sub010/pkg/db"
	"github.com/wrcad/xictools-sub010/pkg/maze"
)

// RipupNet removes the named net's routes from the grid and queues it as
// failed.
func (r *Router) RipupNet(name string) error {
	net, err := r.net(name)
	if err != nil {
		return err
	}
	r.ripup(net)
	if net.Routable() && !r.failed.Contains(net) {
		r.failed.Append(net)
	}
	return nil
}

func (r *Router) ripup(net *db.Net) {
	if routed(net) {
		r.engine.RipupNet(net, true)
		ripups.Inc()
	}
	net.Routes = nil
}

// RipupAll removes every route and forgets all stage 2 state.
func (r *Router) RipupAll() {
	for _, net := range r.design.Nets {
		r.ripup(net)
		net.Clear(db.NetPending | db.NetAbandoned)
		net.NoRipup = nil
	}
	r.failed.Clear()
	r.abandoned = nil
	r.totalRoutes = 0
	failedNets.Set(0)
	r.log.Info("all nets ripped up")
}

// RipupFailed moves the abandoned nets back to the failed list so the
// next stage 2 tries them again.
func (r *Router) RipupFailed() int {
	n := len(r.abandoned)
	for _, net := range r.abandoned {
		net.Clear(db.NetAbandoned | db.NetPending)
		net.NoRipup = nil
		if !r.failed.Contains(net) {
			r.failed.Append(net)
		}
	}
	r.abandoned = nil
	for _, net := range r.failed.Nets() {
		net.Clear(db.NetPending)
	}
	return n
}

// RouteNetRipup routes one net allowing collisions and rips up the nets
// in its way, which are queued as failed. The net's existing routes are
// replaced.
func (r *Router) RouteNetRipup(ctx context.Context, name string) error {
	net, err := r.net(name)
	if err != nil {
		return err
	}
	if !net.Routable() {
		return fmt.Errorf("router: net %s: %w", name, maze.ErrUnroutable)
	}
	defer r.grid.ReleasePRoute()
	r.ripup(net)
	r.sendProgress(2, 1, 1, net)
	o, err := r.attempt(ctx, net, maze.StageRipup, r.cfg.Mask.Mode)
	if err != nil {
		net.Routes = nil
		return err
	}
	if o == outcomeFailed {
		net.Routes = nil
		if !r.failed.Contains(net) {
			r.failed.Append(net)
		}
		return fmt.Errorf("router: net %s: %w", name, maze.ErrNoRoute)
	}
	colliding := r.engine.FindColliding(net)
	if len(colliding) > r.cfg.RipLimit {
		net.Routes = nil
		r.failed.Append(net)
		return fmt.Errorf("net %s collides with %d nets: %w", name, len(colliding), ErrRipLimit)
	}
	r.displace(net, colliding)
	r.commitNet(net)
	r.failed.Remove(net)
	r.removeAbandoned(net)
	net.Clear(db.NetPending | db.NetAbandoned)
	failedNets.Set(float64(r.Unrouted()))
	if len(colliding) > 0 {
		r.log.Info("net routed", "net", name, "ripped", len(colliding))
	}
	return nil
}

func (r *Router) removeAbandoned(net *db.Net) {
	out := r.abandoned[:0]
	for _, n := range r.abandoned {
		if n != net {
			out = append(out, n)
		}
	}
	r.abandoned = out
}
