// Package script runs router command scripts:
//
//	stage1
//	stage2 [mask none|bbox|auto] [limit N] [effort N]
//	stage3
//	ripup net NAME | ripup all | ripup failed
//	route NAME
//	failed [summary]
//	set KEY VALUE...
//	unset KEY
//	setcost NAME VALUE
//	congested [N]
//	verify
//	write FILE
//	quit
//
// Commands are separated by newlines or ';'. '#' starts a comment.
package script

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"
	"strings"

	"github.com/wrcad/xictools-sub010/pkg/maze"
	"github.com/wrcad/xictools-sub010/pkg/router"
)

// ErrQuit is returned by Exec after a quit command.
var ErrQuit = errors.New("script: quit")

// Parse reads a script.
func Parse(name string, r io.Reader) (*Script, error) {
	s, err := parser.Parse(name, r)
	if err != nil {
		return nil, fmt.Errorf("script: %w", err)
	}
	return s, nil
}

// Session executes commands against one router. Command output goes to
// the session writer.
type Session struct {
	r   *router.Router
	out io.Writer
	log *slog.Logger
}

// NewSession returns a session over r writing to out.
func NewSession(r *router.Router, out io.Writer, log *slog.Logger) *Session {
	if log == nil {
		log = slog.Default()
	}
	return &Session{r: r, out: out, log: log}
}

// Run parses and executes a whole script. A quit command ends it without
// error.
func (s *Session) Run(ctx context.Context, name string, r io.Reader) error {
	sc, err := Parse(name, r)
	if err != nil {
		return err
	}
	for _, c := range sc.Commands {
		err := s.exec(ctx, c)
		if errors.Is(err, ErrQuit) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("%s:%d: %w", name, c.Pos.Line, err)
		}
	}
	return nil
}

// Exec runs one line of commands.
func (s *Session) Exec(ctx context.Context, line string) error {
	sc, err := Parse("<input>", strings.NewReader(line))
	if err != nil {
		return err
	}
	for _, c := range sc.Commands {
		if err := s.exec(ctx, c); err != nil {
			return err
		}
	}
	return nil
}

func (s *Session) exec(ctx context.Context, c *Command) error {
	r := s.r
	switch {
	case c.Stage1 != nil:
		n, err := r.DoFirstStage(ctx)
		if err != nil {
			return err
		}
		fmt.Fprintf(s.out, "stage 1: %d failed\n", n)

	case c.Stage2 != nil:
		opts, err := stage2Options(c.Stage2)
		if err != nil {
			return err
		}
		n, err := r.DoSecondStage(ctx, opts)
		if err != nil {
			return err
		}
		fmt.Fprintf(s.out, "stage 2: %d unrouted\n", n)

	case c.Stage3 != nil:
		n, err := r.DoThirdStage(ctx)
		if err != nil {
			return err
		}
		fmt.Fprintf(s.out, "stage 3: %d kept previous routes\n", n)

	case c.Ripup != nil:
		t := c.Ripup.Target
		switch {
		case t.Net != nil:
			return r.RipupNet(*t.Net)
		case t.All:
			r.RipupAll()
		case t.Failed:
			n := r.RipupFailed()
			fmt.Fprintf(s.out, "%d abandoned nets queued\n", n)
		}

	case c.Route != nil:
		err := r.RouteNetRipup(ctx, c.Route.Net)
		switch {
		case err == nil:
			fmt.Fprintf(s.out, "net %s routed\n", c.Route.Net)
		case errors.Is(err, maze.ErrNoRoute), errors.Is(err, maze.ErrUnroutable), errors.Is(err, router.ErrRipLimit):
			s.log.Warn("route failed", "net", c.Route.Net, "err", err)
			fmt.Fprintf(s.out, "net %s failed: %v\n", c.Route.Net, err)
		default:
			return err
		}

	case c.Failed != nil:
		s.printFailed(c.Failed.Summary)

	case c.SetCost != nil:
		if err := r.Config().SetCost(c.SetCost.Name, c.SetCost.Value); err != nil {
			return err
		}
		return r.Reconfigure()

	case c.Set != nil:
		cfg := r.Config()
		for _, v := range joinValues(c.Set.Values) {
			if err := cfg.Set(c.Set.Key, v); err != nil {
				return err
			}
		}
		return r.Reconfigure()

	case c.Unset != nil:
		if err := r.Config().Unset(c.Unset.Key); err != nil {
			return err
		}
		return r.Reconfigure()

	case c.Congested != nil:
		n := 0
		if c.Congested.Count != nil {
			n = *c.Congested.Count
		}
		return r.WriteCongestion(s.out, n)

	case c.Verify != nil:
		issues := r.Verify()
		for _, i := range issues {
			fmt.Fprintln(s.out, i.String())
		}
		if len(issues) == 0 {
			fmt.Fprintln(s.out, "verify: ok")
		}

	case c.Write != nil:
		return s.write(c.Write.File)

	case c.Quit != nil:
		return ErrQuit
	}
	return nil
}

func stage2Options(c *Stage2Cmd) (router.Stage2Options, error) {
	var opts router.Stage2Options
	for _, o := range c.Options {
		v := o.Value.String()
		switch o.Key {
		case "mask":
			opts.Mask = strings.ToLower(v)
		case "limit", "effort":
			n, err := strconv.Atoi(v)
			if err != nil || n < 1 {
				return opts, fmt.Errorf("script: stage2 %s: invalid value %q", o.Key, v)
			}
			if o.Key == "limit" {
				opts.Limit = n
			} else {
				opts.Effort = n
			}
		}
	}
	return opts, nil
}

func (s *Session) printFailed(summary bool) {
	failed := s.r.FailedNets()
	abandoned := s.r.AbandonedNets()
	if summary {
		fmt.Fprintf(s.out, "%d failed, %d abandoned\n", len(failed), len(abandoned))
		return
	}
	seen := make(map[string]bool)
	for _, n := range failed {
		if !seen[n.Name] {
			seen[n.Name] = true
			fmt.Fprintln(s.out, n.Name)
		}
	}
	for _, n := range abandoned {
		fmt.Fprintf(s.out, "%s (abandoned)\n", n.Name)
	}
}

func (s *Session) write(path string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("script: write: %w", err)
	}
	if err := s.r.WriteRoutes(f); err != nil {
		f.Close()
		return fmt.Errorf("script: write %s: %w", path, err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("script: write %s: %w", path, err)
	}
	s.log.Info("routes written", "file", path)
	return nil
}
