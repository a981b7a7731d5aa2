package cmd

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/solarlog/vbusmirror/pkg/store/sqlite"
)

var statusDir string

var statusCmd = &cobra.Command{
	Use:   "status <host>...",
	Short: "Show the sync index of mirrored hosts",
	Long: `Status prints what the sync index recorded for each host: per-capture
probe results and per-bucket conversion outcomes.`,
	Example: `  vbusmirror status datalogger.local`,
	Args:    cobra.MinimumNArgs(1),
	RunE:    runStatus,
}

func init() {
	statusCmd.Flags().StringVarP(&statusDir, "dir", "d", ".", "base directory for per-host mirrors")
}

func runStatus(cmd *cobra.Command, args []string) error {
	for _, host := range args {
		if err := printHostStatus(host); err != nil {
			return err
		}
	}
	return nil
}

func printHostStatus(host string) error {
	idx, err := sqlite.Open(filepath.Join(statusDir, host, sqlite.IndexFilename))
	if err != nil {
		return err
	}
	defer idx.Close()

	lastSync, err := idx.GetMeta("last_sync_at")
	if err != nil {
		return err
	}

	fmt.Printf("%s\n%s\n", host, strings.Repeat("-", len(host)))
	if lastSync != "" {
		fmt.Printf("last sync: %s\n", lastSync)
	}

	captures, err := idx.Captures()
	if err != nil {
		return err
	}
	w := tabwriter.NewWriter(os.Stdout, 2, 4, 2, ' ', 0)
	fmt.Fprintln(w, "CAPTURE\tREMOTE\tLOCAL\tDOWNLOADS\tCHECKED")
	for _, c := range captures {
		fmt.Fprintf(w, "%s\t%d\t%d\t%d\t%s\n",
			c.DateCode, c.RemoteSize, c.LocalSize, c.Downloads,
			c.CheckedAt.Format("2006-01-02 15:04:05"))
	}
	w.Flush()

	buckets, err := idx.Buckets()
	if err != nil {
		return err
	}
	w = tabwriter.NewWriter(os.Stdout, 2, 4, 2, ' ', 0)
	fmt.Fprintln(w, "BUCKET\tSTRATEGY\tSOURCES\tROWS\tWRITTEN\tCONVERTED")
	for _, b := range buckets {
		fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%t\t%s\n",
			b.DateCode, b.Strategy, strings.Join(b.Sources, ","), b.RowCount, b.Written,
			b.ConvertedAt.Format("2006-01-02 15:04:05"))
	}
	w.Flush()
	fmt.Println()
	return nil
}
