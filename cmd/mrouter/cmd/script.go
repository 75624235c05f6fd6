package cmd

import (
	"context"
	"os"
	"os/signal"

	"github.com/spf13/cobra"

	"github.com/wrcad/xictools-sub010/pkg/script"
)

var scriptCmd = &cobra.Command{
	Use:   "script <design> <script>",
	Short: "Run a router command script",
	Long: `Load a design and run a command script against it. Commands are
stage1, stage2, stage3, ripup, route, failed, set, unset, setcost,
congested, verify, write and quit.`,
	Args: cobra.ExactArgs(2),
	RunE: runScript,
}

func init() {
	rootCmd.AddCommand(scriptCmd)
}

func runScript(cmd *cobra.Command, args []string) error {
	r, log, err := openRouter(args[0], os.Stdout)
	if err != nil {
		return err
	}
	f, err := os.Open(args[1])
	if err != nil {
		return err
	}
	defer f.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	s := script.NewSession(r, os.Stdout, log)
	return s.Run(ctx, args[1], f)
}
