// File: cmd/cases.go
package cmd

import (
	"fmt"
	"io"
	"text/tabwriter"

	jsoniter "github.com/json-iterator/go"
	"github.com/spf13/cobra"

	"github.com/xkilldash9x/transcheck/internal/caseload"
	"github.com/xkilldash9x/transcheck/internal/observability"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// caseView is the JSON shape of one listed case.
type caseView struct {
	Title    string `json:"title"`
	ID       string `json:"id"`
	Row      int    `json:"row"`
	Polarity string `json:"polarity"`
	Input    string `json:"input"`
	Expected string `json:"expected"`
}

// tableView is the JSON shape of a loaded case table.
type tableView struct {
	Source    string     `json:"source"`
	Sheet     string     `json:"sheet"`
	HeaderRow int        `json:"header_row"`
	Headers   []string   `json:"headers"`
	DataRows  int        `json:"data_rows"`
	Cases     []caseView `json:"cases"`
}

// newCasesCmd creates the `cases` command, which loads the table without a browser.
func newCasesCmd() *cobra.Command {
	var asJSON bool

	casesCmd := &cobra.Command{
		Use:   "cases",
		Short: "Load the case table and list the functional cases",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := getConfigFromContext(cmd.Context())
			if err != nil {
				return err
			}
			path := cfg.Cases().Path
			table, err := caseload.NewLoader(observability.GetLogger()).LoadFile(path)
			if err != nil {
				return err
			}
			view := newTableView(path, table)
			if asJSON {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(view)
			}
			return printTable(cmd.OutOrStdout(), view)
		},
	}

	casesCmd.Flags().String("cases", "", "Path to the case table (.xlsx or .csv). (Overrides config/env)")
	casesCmd.Flags().BoolVar(&asJSON, "json", false, "Print the table as JSON.")
	return casesCmd
}

func newTableView(path string, table *caseload.Table) tableView {
	v := tableView{
		Source:    path,
		Sheet:     table.Sheet,
		HeaderRow: table.Layout.RowIndex + 1,
		Headers:   table.Layout.Headers,
		DataRows:  table.DataRows,
		Cases:     make([]caseView, 0, len(table.Cases)),
	}
	for i, c := range table.Cases {
		v.Cases = append(v.Cases, caseView{
			Title: c.Title(i), ID: c.ID, Row: c.Row, Polarity: c.Polarity.String(),
			Input: c.Input, Expected: c.Expected,
		})
	}
	return v
}

func printTable(out io.Writer, v tableView) error {
	fmt.Fprintf(out, "source:     %s\n", v.Source)
	fmt.Fprintf(out, "sheet:      %s (header on row %d)\n", v.Sheet, v.HeaderRow)
	fmt.Fprintf(out, "cases:      %d of %d data rows\n\n", len(v.Cases), v.DataRows)

	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "TITLE\tPOLARITY\tINPUT\tEXPECTED")
	for _, c := range v.Cases {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", c.Title, c.Polarity, c.Input, c.Expected)
	}
	return tw.Flush()
}
