package cmd

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	routefile "github.com/wrcad/xictools-sub010/pkg/output"
)

// findTestdata locates the shared testdata directory
func findTestdata(t *testing.T) string {
	t.Helper()
	testdata := "../../../testdata"
	if _, err := os.Stat(testdata); os.IsNotExist(err) {
		testdata = "../../testdata"
	}
	return testdata
}

// execute runs the root command with args and returns what it printed
// to stdout.
func execute(args []string) (string, error) {
	// Capture stdout
	old := os.Stdout
	r, w, _ := os.Pipe()
	os.Stdout = w

	// Read in background to prevent pipe buffer from blocking
	var buf bytes.Buffer
	done := make(chan struct{})
	go func() {
		buf.ReadFrom(r)
		close(done)
	}()

	// Reset flags to prevent accumulation between tests
	verbose = false
	logLevel = "error"
	configFile = ""
	legacyFile = ""
	metricsFile = ""
	routeOutput = ""
	routeStages = 3
	routeNoClean = false
	routeVerify = false
	congestionCount = 0
	congestionRoute = false
	inspectNets = false

	rootCmd.SetArgs(args)
	err := rootCmd.Execute()

	// Restore stdout and wait for reader
	w.Close()
	os.Stdout = old
	<-done

	return buf.String(), err
}

// TestRouteE2E tests the route command end-to-end
func TestRouteE2E(t *testing.T) {
	testdata := findTestdata(t)
	design := filepath.Join(testdata, "small.sexp")
	tmp := t.TempDir()

	tests := []struct {
		name        string
		args        []string
		wantErr     bool
		wantContain []string
	}{
		{
			name: "routes to stdout",
			args: []string{"route", design, "--log-level", "error"},
			wantContain: []string{
				"(routes small (run ",
				"(net a",
				"(net b",
				"(wire 0 ",
			},
		},
		{
			name: "routes to file",
			args: []string{"route", design, "--log-level", "error", "-o", filepath.Join(tmp, "small.routes")},
			wantContain: []string{
				"Stage 1:",
				"Routes written to",
			},
		},
		{
			name: "stage 1 only with verify",
			args: []string{"route", design, "--log-level", "error", "--stages", "1", "--verify", "-o", filepath.Join(tmp, "stage1.routes")},
			wantContain: []string{
				"Stage 1:",
				"Verify:",
			},
		},
		{
			name: "yaml and legacy config",
			args: []string{"route", design, "--log-level", "error",
				"--config", filepath.Join(testdata, "router.yaml"),
				"--legacy", filepath.Join(testdata, "route.cfg")},
			wantContain: []string{
				"(net c",
			},
		},
		{
			name: "verbose shows translation report",
			args: []string{"route", design, "-v", "--log-level", "error", "--stages", "1", "-o", filepath.Join(tmp, "verbose.routes")},
			wantContain: []string{
				"translate:",
				"dropped=",
			},
		},
		{
			name:    "bad stage count",
			args:    []string{"route", design, "--stages", "4"},
			wantErr: true,
		},
		{
			name:    "missing design",
			args:    []string{"route", filepath.Join(testdata, "nonexistent.sexp")},
			wantErr: true,
		},
		{
			name:    "bad log level",
			args:    []string{"route", design, "--log-level", "loud"},
			wantErr: true,
		},
		{
			name:    "missing argument",
			args:    []string{"route"},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			output, err := execute(tt.args)

			// Check error expectation
			if tt.wantErr {
				if err == nil {
					t.Errorf("Expected error but got none")
				}
				return
			}

			if err != nil {
				t.Errorf("Unexpected error: %v\nOutput: %s", err, output)
				return
			}

			// Check output contains expected strings
			for _, want := range tt.wantContain {
				if !strings.Contains(output, want) {
					t.Errorf("Output missing expected string: %q\nGot:\n%s", want, output)
				}
			}
		})
	}
}

// TestRouteStdoutE2E checks that stdout holds nothing but the route file
// when no output file is given
func TestRouteStdoutE2E(t *testing.T) {
	testdata := findTestdata(t)
	design := filepath.Join(testdata, "small.sexp")

	output, err := execute([]string{"route", design, "--log-level", "error", "--verify"})
	if err != nil {
		t.Fatalf("Unexpected error: %v\nOutput: %s", err, output)
	}
	for _, unwanted := range []string{"Stage 1:", "Verify:", "All nets routed", "Failed nets:"} {
		if strings.Contains(output, unwanted) {
			t.Errorf("Route file on stdout contains %q:\n%s", unwanted, output)
		}
	}
	f, err := routefile.Read(strings.NewReader(output))
	if err != nil {
		t.Fatalf("stdout is not a route file: %v\n%s", err, output)
	}
	if f.Design != "small" || len(f.Nets) == 0 {
		t.Errorf("Unexpected route file: design %q, %d nets", f.Design, len(f.Nets))
	}
}

// TestScriptE2E tests the script command end-to-end
func TestScriptE2E(t *testing.T) {
	testdata := findTestdata(t)
	design := filepath.Join(testdata, "small.sexp")

	output, err := execute([]string{"script", design, filepath.Join(testdata, "flow.txt"), "--log-level", "error"})
	if err != nil {
		t.Fatalf("Unexpected error: %v\nOutput: %s", err, output)
	}
	for _, want := range []string{"stage 1:", "stage 2:", "stage 3:", " abandoned\n", "u1 "} {
		if !strings.Contains(output, want) {
			t.Errorf("Output missing expected string: %q\nGot:\n%s", want, output)
		}
	}
	// quit ends the script before the trailing stage1
	if n := strings.Count(output, "stage 1:"); n != 1 {
		t.Errorf("stage 1 ran %d times, want 1", n)
	}

	if _, err := execute([]string{"script", design, filepath.Join(testdata, "missing.txt")}); err == nil {
		t.Errorf("Expected error for missing script")
	}
}

// TestCongestionE2E tests the congestion command end-to-end
func TestCongestionE2E(t *testing.T) {
	testdata := findTestdata(t)
	design := filepath.Join(testdata, "small.sexp")

	for _, args := range [][]string{
		{"congestion", design, "--log-level", "error"},
		{"congestion", design, "--log-level", "error", "-n", "1", "--route"},
	} {
		output, err := execute(args)
		if err != nil {
			t.Fatalf("%v: unexpected error: %v", args, err)
		}
		if !strings.Contains(output, "Congested gates:") || !strings.Contains(output, "u1 ") {
			t.Errorf("%v: unexpected output:\n%s", args, output)
		}
	}
}

// TestInspectE2E routes a design to a file and reads it back
func TestInspectE2E(t *testing.T) {
	testdata := findTestdata(t)
	design := filepath.Join(testdata, "small.sexp")
	tmp := t.TempDir()
	routes := filepath.Join(tmp, "small.routes")
	metrics := filepath.Join(tmp, "metrics.prom")

	if output, err := execute([]string{"route", design, "--log-level", "error", "-o", routes, "--metrics-file", metrics}); err != nil {
		t.Fatalf("route failed: %v\nOutput: %s", err, output)
	}

	data, err := os.ReadFile(metrics)
	if err != nil {
		t.Fatalf("metrics file not written: %v", err)
	}
	if !strings.Contains(string(data), "mrouter_route_attempts_total") {
		t.Errorf("metrics file missing route attempts:\n%s", data)
	}

	output, err := execute([]string{"inspect", routes, "--nets"})
	if err != nil {
		t.Fatalf("inspect failed: %v\nOutput: %s", err, output)
	}
	for _, want := range []string{"Design: small", "Nets: ", "Wires: ", "Wire length: ", "  a "} {
		if !strings.Contains(output, want) {
			t.Errorf("Output missing expected string: %q\nGot:\n%s", want, output)
		}
	}

	bad := filepath.Join(tmp, "bad.routes")
	if err := os.WriteFile(bad, []byte("(routes small (net a (regular (wire 0 1 2"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := execute([]string{"inspect", bad}); err == nil {
		t.Errorf("Expected error for truncated route file")
	}
}
