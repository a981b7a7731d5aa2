package cmd

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/solarlog/vbusmirror/vbus"
)

var packetsCmd = &cobra.Command{
	Use:   "packets",
	Short: "List the embedded packet specification",
	Long: `Packets prints every packet type the embedded specification table knows,
with the fields each one projects into output columns.`,
	Args: cobra.NoArgs,
	RunE: runPackets,
}

func runPackets(cmd *cobra.Command, args []string) error {
	spec, err := vbus.EmbeddedSpec()
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(os.Stdout, 2, 4, 2, ' ', 0)
	for _, ps := range spec.Packets() {
		fmt.Fprintf(w, "%s\t%s\n", ps.ID(), ps.Name)
		for _, f := range ps.Fields {
			unit := f.Unit
			if unit == "" {
				unit = "-"
			}
			fmt.Fprintf(w, "  %s\t%s\toffset %d\tsize %d\n", f.Name, unit, f.Offset, f.Size)
		}
	}
	return w.Flush()
}
