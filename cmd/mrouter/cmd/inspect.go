package cmd

import (
	"bytes"
	"fmt"
	"math"
	"os"

	"github.com/chewxy/sexp"
	"github.com/spf13/cobra"

	"github.com/wrcad/xictools-sub010/pkg/output"
)

var inspectNets bool

var inspectCmd = &cobra.Command{
	Use:   "inspect <routes>",
	Short: "Summarize a route file",
	Long: `Read a route file written by the route command and print the number
of wires and vias and the wire length of each net.`,
	Args: cobra.ExactArgs(1),
	RunE: runInspect,
}

func init() {
	rootCmd.AddCommand(inspectCmd)
	inspectCmd.Flags().BoolVar(&inspectNets, "nets", false, "show per-net details")
}

func runInspect(cmd *cobra.Command, args []string) error {
	data, err := os.ReadFile(args[0])
	if err != nil {
		return err
	}

	// Structural check with a generic reader first, so a malformed file
	// is reported as such rather than as a missing form.
	exprs, err := sexp.Parse(bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("%s: %w", args[0], err)
	}
	leaves := 0
	for _, e := range exprs {
		if e.IsLeaf() {
			leaves++
			continue
		}
		leaves += e.LeafCount()
	}

	f, err := output.Read(bytes.NewReader(data))
	if err != nil {
		return err
	}

	fmt.Printf("Design: %s\n", f.Design)
	fmt.Printf("Run: %s\n", f.RunID)
	fmt.Printf("Atoms: %d\n", leaves)

	var wires, vias, special int
	var length float64
	for _, n := range f.Nets {
		w, v, l := summarize(n.Regular)
		wires += w
		vias += v
		length += l
		special += len(n.Special)
		if inspectNets {
			fmt.Printf("  %-16s wires %3d  vias %3d  length %.3f\n", n.Name, w, v, l)
		}
	}
	fmt.Printf("Nets: %d\n", len(f.Nets))
	fmt.Printf("Wires: %d\n", wires)
	fmt.Printf("Vias: %d\n", vias)
	fmt.Printf("Special: %d\n", special)
	fmt.Printf("Wire length: %.3f\n", length)
	return nil
}

func summarize(elems []output.Element) (wires, vias int, length float64) {
	for _, e := range elems {
		if e.Via {
			vias++
			continue
		}
		wires++
		length += math.Abs(e.X2-e.X1) + math.Abs(e.Y2-e.Y1)
	}
	return wires, vias, length
}
