package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/sells-group/pharmadir/internal/syncer"
)

var (
	syncRegions []string
	syncOutput  string
	syncStrict  bool
)

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Run one full sync and print the report",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := cfg.Validate("sync"); err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		catalog, err := catalogFor(syncRegions)
		if err != nil {
			return err
		}

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		report, err := newEngine(st, catalog, nil).Run(ctx)
		if err != nil {
			return err
		}

		if err := writeReport(os.Stdout, report, syncOutput); err != nil {
			return err
		}
		if syncStrict && report.Failed() > 0 {
			return eris.Errorf("sync: %d of %d regions failed", report.Failed(), len(report.Regions))
		}
		return nil
	},
}

func init() {
	syncCmd.Flags().StringSliceVar(&syncRegions, "regions", nil, "wilayas to sync (default: sync.regions or all)")
	syncCmd.Flags().StringVarP(&syncOutput, "output", "o", "text", "report format: text, json or yaml")
	syncCmd.Flags().BoolVar(&syncStrict, "strict", false, "exit non-zero when any region fails")
	rootCmd.AddCommand(syncCmd)
}

// writeReport renders report in the requested format.
func writeReport(w io.Writer, report *syncer.Report, format string) error {
	switch format {
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return eris.Wrap(enc.Encode(report), "sync: encode json")
	case "yaml":
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(report); err != nil {
			return eris.Wrap(err, "sync: encode yaml")
		}
		return eris.Wrap(enc.Close(), "sync: encode yaml")
	case "text", "":
		tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "WILAYA\tSTATE\tFETCHED\tINSERTED\tUPDATED\tDURATION\tERROR")
		for _, r := range report.Regions {
			fmt.Fprintf(tw, "%s\t%s\t%d\t%d\t%d\t%s\t%s\n",
				r.Region, r.State, r.Fetched, r.Inserted, r.Updated, r.Duration.Round(time.Millisecond), r.Error)
		}
		if err := tw.Flush(); err != nil {
			return eris.Wrap(err, "sync: write table")
		}
		_, err := fmt.Fprintf(w, "\n%d succeeded, %d failed, %d inserted, %d updated in %s\n",
			report.Succeeded(), report.Failed(), report.Inserted(), report.Updated(),
			report.Duration().Round(time.Second))
		return err
	default:
		return eris.Errorf("sync: unknown output format %q", format)
	}
}
