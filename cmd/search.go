package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/pharmadir/internal/directory"
	"github.com/sells-group/pharmadir/internal/model"
)

var (
	searchRegion string
	searchName   string
	searchLimit  int
	searchJSON   bool
)

var searchCmd = &cobra.Command{
	Use:   "search",
	Short: "Search the local directory",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := cfg.Validate("query"); err != nil {
			return err
		}

		st, err := initStore(cmd.Context())
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		dir := directory.New(st, nil, directory.Limits{
			Default: cfg.Query.DefaultLimit,
			Max:     cfg.Query.MaxLimit,
		})
		out, err := dir.Search(cmd.Context(), directory.Query{
			Region: searchRegion,
			Name:   searchName,
			Limit:  searchLimit,
		})
		if err != nil {
			return err
		}
		return writePharmacies(os.Stdout, out, searchJSON)
	},
}

func init() {
	searchCmd.Flags().StringVar(&searchRegion, "wilaya", "", "wilaya substring filter")
	searchCmd.Flags().StringVarP(&searchName, "query", "q", "", "name substring filter")
	searchCmd.Flags().IntVar(&searchLimit, "limit", 0, "maximum results (default from config)")
	searchCmd.Flags().BoolVar(&searchJSON, "json", false, "print JSON instead of a table")
	rootCmd.AddCommand(searchCmd)
}

func writePharmacies(w io.Writer, ps []model.Pharmacy, asJSON bool) error {
	if asJSON {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return eris.Wrap(enc.Encode(ps), "search: encode json")
	}

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "OSM ID\tNAME\tWILAYA\tADDRESS\tLAT\tLON")
	for _, p := range ps {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\n",
			p.ExternalID, p.Name, p.Region, p.Address, formatCoord(p.Latitude), formatCoord(p.Longitude))
	}
	return eris.Wrap(tw.Flush(), "search: write table")
}

func formatCoord(f *float64) string {
	if f == nil {
		return "-"
	}
	return fmt.Sprintf("%.6f", *f)
}
