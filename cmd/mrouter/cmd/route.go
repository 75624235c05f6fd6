package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"

	"github.com/spf13/cobra"

	"github.com/wrcad/xictools-sub010/pkg/router"
)

var (
	routeOutput  string
	routeStages  int
	routeNoClean bool
	routeVerify  bool
)

var routeCmd = &cobra.Command{
	Use:   "route <design>",
	Short: "Route every net of a design",
	Long: `Route all nets of a design and write the routes.

Stage 1 routes each net with other routes as walls. Stage 2 reroutes the
failed nets, ripping up the nets in their way. Stage 3 reroutes every net
once more to clean up detours left by stage 2.`,
	Args: cobra.ExactArgs(1),
	RunE: runRoute,
}

func init() {
	rootCmd.AddCommand(routeCmd)
	routeCmd.Flags().StringVarP(&routeOutput, "output", "o", "", "route file to write (default stdout)")
	routeCmd.Flags().IntVar(&routeStages, "stages", 3, "last stage to run (1-3)")
	routeCmd.Flags().BoolVar(&routeNoClean, "no-cleanup", false, "skip stage 3")
	routeCmd.Flags().BoolVar(&routeVerify, "verify", false, "check connectivity of the result")
}

func runRoute(cmd *cobra.Command, args []string) error {
	if routeStages < 1 || routeStages > 3 {
		return fmt.Errorf("--stages must be 1, 2 or 3")
	}
	status := statusWriter()
	r, log, err := openRouter(args[0], status)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	failed, err := r.DoFirstStage(ctx)
	if err != nil {
		return err
	}
	fmt.Fprintf(status, "Stage 1: %d nets failed\n", failed)

	if routeStages >= 2 && failed > 0 {
		if failed, err = r.DoSecondStage(ctx, router.Stage2Options{}); err != nil {
			return err
		}
		fmt.Fprintf(status, "Stage 2: %d nets unrouted\n", failed)
	}
	if routeStages >= 3 && !routeNoClean {
		kept, err := r.DoThirdStage(ctx)
		if err != nil {
			return err
		}
		fmt.Fprintf(status, "Stage 3: %d nets kept previous routes\n", kept)
	}

	if routeVerify {
		issues := r.Verify()
		for _, i := range issues {
			fmt.Fprintln(status, i.String())
		}
		fmt.Fprintf(status, "Verify: %d issues\n", len(issues))
	}

	if err := writeRoutes(r); err != nil {
		return err
	}
	printFailed(status, r)
	log.Info("routing done", "unrouted", r.Unrouted())
	return nil
}

// statusWriter is where route reports progress: stdout when the routes go
// to a file, stderr when stdout carries the route file.
func statusWriter() io.Writer {
	if routeOutput == "" {
		return os.Stderr
	}
	return os.Stdout
}

func writeRoutes(r *router.Router) error {
	if routeOutput == "" {
		return r.WriteRoutes(os.Stdout)
	}
	f, err := os.Create(routeOutput)
	if err != nil {
		return err
	}
	if err := r.WriteRoutes(f); err != nil {
		f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}
	fmt.Printf("Routes written to %s\n", routeOutput)
	return nil
}

func printFailed(w io.Writer, r *router.Router) {
	failed := r.FailedNets()
	abandoned := r.AbandonedNets()
	if len(failed) == 0 && len(abandoned) == 0 {
		fmt.Fprintln(w, "All nets routed")
		return
	}
	fmt.Fprintf(w, "Failed nets: %d\n", len(failed)+len(abandoned))
	for _, n := range failed {
		fmt.Fprintf(w, "  %s\n", n.Name)
	}
	for _, n := range abandoned {
		fmt.Fprintf(w, "  %s (abandoned)\n", n.Name)
	}
}
