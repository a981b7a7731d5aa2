// Package cmd provides the CLI commands for vbusmirror using Cobra.
package cmd

import (
	"log/slog"
	"os"
	"time"

	"github.com/lmittmann/tint"
	"github.com/spf13/cobra"
)

// Version is set at build time via -ldflags.
var Version = "dev"

var verbose bool

var rootCmd = &cobra.Command{
	Use:   "vbusmirror",
	Short: "Mirror RESOL VBus datalogger captures and convert them to time series",
	Long: `vbusmirror keeps a local mirror of the per-day capture files a RESOL
datalogger serves from its /log/ directory and converts them into
tab-separated time-series files.

Captures are bucketed by UTC day on the logger. The bounded-day strategy
regroups them into local civil days; the rolling-window strategy converts
each capture on its own with a sliding retention of last-seen values.

Examples:
  vbusmirror sync datalogger.local                 # mirror + convert one host
  vbusmirror sync --strategy rolling-window host1 host2
  vbusmirror sync --config mirror.yaml             # hosts and options from YAML
  vbusmirror convert datalogger.local              # re-convert from local cache
  vbusmirror status datalogger.local               # show the sync index
  vbusmirror packets                               # list known packet fields`,
	Version: Version,
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")

	rootCmd.AddCommand(syncCmd)
	rootCmd.AddCommand(convertCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(packetsCmd)
}

// newLogger builds the run's logger. Constructed once per invocation and
// threaded explicitly through the app config.
func newLogger() *slog.Logger {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	return slog.New(tint.NewHandler(os.Stderr, &tint.Options{
		Level:      level,
		TimeFormat: time.TimeOnly,
	}))
}
