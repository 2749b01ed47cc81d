package main

import (
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/pharmadir/internal/directory"
	"github.com/sells-group/pharmadir/internal/region"
)

var regionsCounts bool

var regionsCmd = &cobra.Command{
	Use:   "regions",
	Short: "List the wilayas the sync covers",
	RunE: func(cmd *cobra.Command, args []string) error {
		catalog, err := catalogFor(nil)
		if err != nil {
			return err
		}
		if !regionsCounts {
			return writeRegionNames(os.Stdout, catalog)
		}

		st, err := initStore(cmd.Context())
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		summaries, err := directory.New(st, catalog, directory.Limits{}).Regions(cmd.Context())
		if err != nil {
			return err
		}
		return writeRegionCounts(os.Stdout, summaries)
	},
}

func init() {
	regionsCmd.Flags().BoolVar(&regionsCounts, "counts", false, "include the number of stored pharmacies")
	rootCmd.AddCommand(regionsCmd)
}

func writeRegionNames(w io.Writer, catalog *region.Catalog) error {
	for i, name := range catalog.Names() {
		if _, err := fmt.Fprintf(w, "%02d  %s\n", i+1, name); err != nil {
			return eris.Wrap(err, "regions: write")
		}
	}
	return nil
}

func writeRegionCounts(w io.Writer, summaries []directory.RegionSummary) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	for _, s := range summaries {
		fmt.Fprintf(tw, "%s\t%d\n", s.Name, s.Count)
	}
	return eris.Wrap(tw.Flush(), "regions: write table")
}
