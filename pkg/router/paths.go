package router

import (
	"io"

	"github.com/wrcad/xictools-sub010/pkg/output"
)

// Paths returns the physical paths of every routed net.
func (r *Router) Paths() []output.NetPaths {
	return output.Generate(r.design, r.grid, output.Options{ViaPattern: r.cfg.ViaPattern})
}

// WriteRoutes writes the route file of the design, tagged with the run ID.
func (r *Router) WriteRoutes(w io.Writer) error {
	return output.Write(w, r.design.Name, r.RunID.String(), r.Paths())
}
