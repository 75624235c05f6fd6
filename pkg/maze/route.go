package maze

import (
	"context"
	"errors"
	"fmt"

	"github.com/wrcad/xictools-sub010/pkg/db"
)

// RouteNet connects every unconnected node of net to the net's routed
// tree, one connection per search. New routes are appended to net.Routes
// but not written into the grid; see WriteBack.
//
// Terminals without a usable tap are skipped and reported in the result;
// the other terminals are still connected, and ErrUnroutable is returned.
// ErrProvisional means the net needed no new route or a stacked via could
// not be legalized. The context is checked between connections.
func (e *Engine) RouteNet(ctx context.Context, net *db.Net, stage Stage, mask Mask) (Result, error) {
	var res Result
	s := e.newSearch(net, stage, mask)
	err := s.setup()
	res.Unroutable = s.unroutable
	if err != nil {
		res.Connected = errors.Is(err, ErrProvisional)
		return res, fmt.Errorf("net %s: %w", net.Name, err)
	}

	for len(s.pending) > 0 {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		target, err := s.run()
		res.Passes = max(res.Passes, s.passes)
		if err != nil {
			return res, fmt.Errorf("net %s: %w", net.Name, err)
		}
		r, reached, err := s.commit(target)
		if err != nil {
			return res, err
		}
		if reached == nil {
			return res, fmt.Errorf("maze: net %s: route ends at %s outside any terminal",
				net.Name, r.Points()[len(r.Points())-1])
		}
		net.Routes = append(net.Routes, r)
		res.Routed++
		e.log.Debug("connected", "net", net.Name, "node", reached.Name(),
			"segs", len(r.Segs), "cost", target.cost, "passes", s.passes)
		s.nextSetup(r, reached)
	}

	if len(s.unroutable) > 0 {
		return res, fmt.Errorf("net %s: %d terminals: %w", net.Name, len(s.unroutable), ErrUnroutable)
	}
	return res, nil
}
