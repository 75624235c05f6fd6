package router

import (
	"fmt"
	"sort"

	"github.com/wrcad/xictools-sub010/pkg/db"
	"github.com/wrcad/xictools-sub010/pkg/grid"
)

// Issue kinds reported by Verify.
const (
	IssueOpen  = "open"
	IssueShort = "short"
)

// Issue is one connectivity problem of a routed net.
type Issue struct {
	Net    string `json:"net"`
	Kind   string `json:"kind"`
	Detail string `json:"detail"`
}

func (i Issue) String() string {
	return fmt.Sprintf("%s: %s: %s", i.Net, i.Kind, i.Detail)
}

// ufKey is a grid cell, or a whole node when node is set.
type ufKey struct {
	p    db.GridPoint
	node *db.Node
}

// connectivity tracks which cells and nodes of one net are joined, using
// union-find with path compression and union by rank.
type connectivity struct {
	parent map[ufKey]ufKey
	rank   map[ufKey]int
}

func newConnectivity() *connectivity {
	return &connectivity{
		parent: make(map[ufKey]ufKey),
		rank:   make(map[ufKey]int),
	}
}

// Find returns the representative of k's set.
func (c *connectivity) Find(k ufKey) ufKey {
	if _, ok := c.parent[k]; !ok {
		c.parent[k] = k
		return k
	}
	root := k
	for c.parent[root] != root {
		root = c.parent[root]
	}
	for k != root {
		next := c.parent[k]
		c.parent[k] = root
		k = next
	}
	return root
}

// Connect joins the sets of a and b.
func (c *connectivity) Connect(a, b ufKey) {
	ra, rb := c.Find(a), c.Find(b)
	if ra == rb {
		return
	}
	switch {
	case c.rank[ra] < c.rank[rb]:
		c.parent[ra] = rb
	case c.rank[ra] > c.rank[rb]:
		c.parent[rb] = ra
	default:
		c.parent[rb] = ra
		c.rank[ra]++
	}
}

func cell(p db.GridPoint) ufKey { return ufKey{p: p} }
func nodeKey(n *db.Node) ufKey  { return ufKey{node: n} }

// Verify checks every routed net: all of its nodes must be joined by its
// routes, and every route cell must belong to it in the grid. Issues are
// sorted by net name.
func (r *Router) Verify() []Issue {
	var issues []Issue
	for _, net := range r.design.Nets {
		if !net.Routable() || !routed(net) {
			continue
		}
		issues = append(issues, r.verifyNet(net)...)
	}
	sort.SliceStable(issues, func(i, j int) bool { return issues[i].Net < issues[j].Net })
	return issues
}

func (r *Router) verifyNet(net *db.Net) []Issue {
	var issues []Issue
	c := newConnectivity()
	for _, node := range net.Nodes {
		for _, p := range node.Taps {
			c.Connect(nodeKey(node), cell(p))
		}
		for _, p := range node.Extend {
			c.Connect(nodeKey(node), cell(p))
		}
	}

	shorted := make(map[db.GridPoint]bool)
	for _, rt := range net.Routes {
		for _, s := range rt.Segs {
			pts := s.Points()
			for i, p := range pts {
				if i > 0 {
					c.Connect(cell(pts[i-1]), cell(p))
				}
				w := r.grid.Obs(p.X, p.Y, p.Layer)
				if (w&grid.NoNet != 0 || grid.NetNum(w) != net.Number) && !shorted[p] {
					shorted[p] = true
					issues = append(issues, Issue{Net: net.Name, Kind: IssueShort,
						Detail: fmt.Sprintf("cell %s not owned by the net", p)})
				}
			}
		}
		pts := rt.Points()
		if len(pts) == 0 {
			continue
		}
		if rt.Start != nil {
			c.Connect(nodeKey(rt.Start), cell(pts[0]))
		}
		if rt.End != nil {
			c.Connect(nodeKey(rt.End), cell(pts[len(pts)-1]))
		}
	}

	var root *ufKey
	for _, node := range net.Nodes {
		if node.NumTaps == 0 && len(node.Taps) == 0 && len(node.Extend) == 0 {
			continue
		}
		k := c.Find(nodeKey(node))
		if root == nil {
			root = &k
			continue
		}
		if k != *root {
			issues = append(issues, Issue{Net: net.Name, Kind: IssueOpen,
				Detail: fmt.Sprintf("node %s is not connected", node.Name())})
		}
	}
	return issues
}
