package cmd

import (
	"time"

	"github.com/spf13/cobra"

	"github.com/solarlog/vbusmirror/internal/app"
	"github.com/solarlog/vbusmirror/resolve"
)

// Pipeline flags, shared by sync and convert.
var (
	flagDir       string
	flagTimezone  string
	flagStrategy  string
	flagRetention time.Duration
	flagFilter    string
	flagConfig    string
)

var syncCmd = &cobra.Command{
	Use:   "sync [host...]",
	Short: "Mirror captures from hosts and convert stale days",
	Long: `Sync lists each host's /log/ directory, downloads captures whose remote
size differs from the local cache, and regenerates every output day that is
missing or older than a contributing capture.`,
	Example: `  vbusmirror sync datalogger.local
  vbusmirror sync --timezone Europe/Vienna datalogger.local
  vbusmirror sync --strategy rolling-window --retention 10m datalogger.local
  vbusmirror sync --filter 'num(fields["Temperatur Sensor 1"]) > 60' datalogger.local
  vbusmirror sync --config mirror.yaml`,
	Args: cobra.ArbitraryArgs,
	RunE: runSync,
}

func init() {
	addPipelineFlags(syncCmd)
}

// addPipelineFlags registers the flags shared by sync and convert.
func addPipelineFlags(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&flagDir, "dir", "d", "", "base directory for per-host mirrors (default current directory)")
	cmd.Flags().StringVarP(&flagTimezone, "timezone", "t", "", "local civil zone for bounded-day output (default "+app.DefaultTimezone+")")
	cmd.Flags().StringVarP(&flagStrategy, "strategy", "s", "", `windowing strategy: "bounded-day" or "rolling-window" (default bounded-day)`)
	cmd.Flags().DurationVar(&flagRetention, "retention", 0, "rolling-window retention for last-seen values (default 15m)")
	cmd.Flags().StringVarP(&flagFilter, "filter", "Y", "", "row filter expression, e.g. 'num(fields[\"Temperatur Sensor 1\"]) > 60'")
	cmd.Flags().StringVarP(&flagConfig, "config", "c", "", "YAML config file supplying hosts and options")
}

func runSync(cmd *cobra.Command, args []string) error {
	cfg, err := buildConfig(args)
	if err != nil {
		return err
	}
	return app.RunSync(cmd.Context(), cfg)
}

// buildConfig assembles the app config from flags, positional hosts, and the
// optional config file. Flags win over file values.
func buildConfig(hosts []string) (*app.Config, error) {
	cfg := &app.Config{
		Hosts:     hosts,
		Dir:       flagDir,
		Timezone:  flagTimezone,
		Strategy:  resolve.Strategy(flagStrategy),
		Retention: flagRetention,
		Filter:    flagFilter,
		Logger:    newLogger(),
	}
	if flagConfig != "" {
		fc, err := app.LoadConfigFile(flagConfig)
		if err != nil {
			return nil, err
		}
		if err := cfg.ApplyFile(fc); err != nil {
			return nil, err
		}
	}
	return cfg, nil
}
