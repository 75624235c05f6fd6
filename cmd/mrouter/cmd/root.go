package cmd

import (
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/wrcad/xictools-sub010/pkg/config"
	"github.com/wrcad/xictools-sub010/pkg/db"
	"github.com/wrcad/xictools-sub010/pkg/router"
)

var (
	// Global flags
	verbose     bool
	logLevel    string
	configFile  string
	legacyFile  string
	metricsFile string
)

var rootCmd = &cobra.Command{
	Use:   "mrouter",
	Short: "Multi-layer detailed maze router",
	Long: `A grid based detailed router for placed standard cell designs.
Nets are routed in three stages: an initial pass with other routes as
walls, a rip-up and reroute pass over the failed nets, and a cleanup
pass that reroutes every net once more.

Examples:
  mrouter route design.sexp -o design.routes       # Route all nets
  mrouter route --legacy route.cfg design.sexp     # Use a legacy config file
  mrouter script design.sexp flow.txt              # Run a command script
  mrouter congestion design.sexp -n 10             # Most congested gates
  mrouter inspect design.routes                    # Summarize a route file`,
	Version:       "0.3.0",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
		if metricsFile == "" {
			return nil
		}
		if err := prometheus.WriteToTextfile(metricsFile, prometheus.DefaultGatherer); err != nil {
			return fmt.Errorf("write metrics: %w", err)
		}
		return nil
	},
}

// Execute runs the root command
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "", "YAML router configuration")
	rootCmd.PersistentFlags().StringVar(&legacyFile, "legacy", "", "legacy key/value route configuration")
	rootCmd.PersistentFlags().StringVar(&metricsFile, "metrics-file", "", "write routing metrics to this file on exit")
}

// loadConfig reads the YAML and legacy configuration files named by the
// global flags. The legacy technology settings are returned for the
// design.
func loadConfig() (*config.Config, *config.Legacy, error) {
	cfg, err := config.Load(configFile)
	if err != nil {
		return nil, nil, err
	}
	var lg *config.Legacy
	if legacyFile != "" {
		if lg, err = config.LoadLegacy(legacyFile, cfg); err != nil {
			return nil, nil, err
		}
	}
	if logLevel != "" {
		if err := cfg.Set("log_level", logLevel); err != nil {
			return nil, nil, err
		}
	}
	if verbose {
		cfg.LogLevel = "debug"
	}
	return cfg, lg, nil
}

// newLogger logs to w at the configured level. The level can change later
// through lv.
func newLogger(cfg *config.Config, w io.Writer) (*slog.Logger, *slog.LevelVar) {
	lv := new(slog.LevelVar)
	lv.Set(cfg.Level())
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: lv})), lv
}

// openRouter loads the design at path and prepares a router for it. With
// --verbose the translation report goes to status.
func openRouter(path string, status io.Writer) (*router.Router, *slog.Logger, error) {
	cfg, lg, err := loadConfig()
	if err != nil {
		return nil, nil, err
	}
	log, lv := newLogger(cfg, os.Stderr)

	d, err := db.LoadFile(path)
	if err != nil {
		return nil, nil, err
	}
	if lg != nil {
		if err := lg.Apply(d); err != nil {
			return nil, nil, err
		}
	}
	r, err := router.New(d, cfg, router.WithLogger(log), router.WithLevel(lv))
	if err != nil {
		return nil, nil, err
	}
	if verbose {
		fmt.Fprintln(status, "translate:", r.Report().String())
	}
	return r, log, nil
}
