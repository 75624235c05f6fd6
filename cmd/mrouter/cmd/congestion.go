package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	congestionCount int
	congestionRoute bool
)

var congestionCmd = &cobra.Command{
	Use:   "congestion <design>",
	Short: "List the most congested gates",
	Long: `Score each gate by the density of net bounding boxes over it and
list the gates in decreasing order. With --route the scores are taken
after stage 1.`,
	Args: cobra.ExactArgs(1),
	RunE: runCongestion,
}

func init() {
	rootCmd.AddCommand(congestionCmd)
	congestionCmd.Flags().IntVarP(&congestionCount, "count", "n", 0, "number of gates to list (0 for all)")
	congestionCmd.Flags().BoolVar(&congestionRoute, "route", false, "run stage 1 first")
}

func runCongestion(cmd *cobra.Command, args []string) error {
	r, _, err := openRouter(args[0], os.Stdout)
	if err != nil {
		return err
	}
	if congestionRoute {
		n, err := r.DoFirstStage(context.Background())
		if err != nil {
			return err
		}
		fmt.Printf("Stage 1: %d nets failed\n", n)
	}
	fmt.Println("Congested gates:")
	return r.WriteCongestion(os.Stdout, congestionCount)
}
