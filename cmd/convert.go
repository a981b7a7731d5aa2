package cmd

import (
	"github.com/spf13/cobra"

	"github.com/solarlog/vbusmirror/internal/app"
)

var convertCmd = &cobra.Command{
	Use:   "convert [host...]",
	Short: "Re-convert stale days from the local cache, without network",
	Long: `Convert runs the resolver and converter against already-mirrored
captures. Useful after changing the strategy, timezone, or filter.`,
	Example: `  vbusmirror convert datalogger.local
  vbusmirror convert --strategy rolling-window datalogger.local`,
	Args: cobra.ArbitraryArgs,
	RunE: runConvert,
}

func init() {
	addPipelineFlags(convertCmd)
}

func runConvert(cmd *cobra.Command, args []string) error {
	cfg, err := buildConfig(args)
	if err != nil {
		return err
	}
	return app.RunConvert(cmd.Context(), cfg)
}
