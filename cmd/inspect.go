package cmd

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/ginjaninja78/invoice-dashboard/internal/converter"
	"github.com/ginjaninja78/invoice-dashboard/internal/dataset"
	"github.com/ginjaninja78/invoice-dashboard/internal/schema"
	"github.com/ginjaninja78/invoice-dashboard/internal/validation"
	"github.com/ginjaninja78/invoice-dashboard/internal/xlsxparser"
	"github.com/ginjaninja78/invoice-dashboard/pkg/utils"
)

var inspectFlags struct {
	issues bool
	sheet  string
}

// inspectCmd shows how a file's headers were resolved and how clean its
// cells are, without computing anything.
var inspectCmd = &cobra.Command{
	Use:   "inspect <file>",
	Short: "Show the column mapping and data quality of a file",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		c := *cfg
		if inspectFlags.sheet != "" {
			c.Workbook.Sheet = inspectFlags.sheet
		}

		out := cmd.OutOrStdout()
		if ext := utils.ExtName(args[0]); ext == "xlsx" || ext == "xlsm" {
			sheets, err := xlsxparser.SheetNames(args[0])
			if err != nil {
				return err
			}
			fmt.Fprintf(out, "Sheets: %s\n", strings.Join(sheets, ", "))
		}

		conv, err := converter.New(&c, logger)
		if err != nil {
			return err
		}
		ds, err := conv.Load(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		printInspection(out, ds, inspectFlags.issues)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(inspectCmd)
	inspectCmd.Flags().BoolVar(&inspectFlags.issues, "issues", false, "List every malformed cell")
	inspectCmd.Flags().StringVar(&inspectFlags.sheet, "sheet", "", "Worksheet to read (overrides workbook.sheet)")
}

func printInspection(out io.Writer, ds *dataset.Dataset, issues bool) {
	fmt.Fprintf(out, "File: %s (%d rows)\n", ds.Source, ds.Len())
	fmt.Fprintf(out, "Headers: %s\n\nColumns:\n", strings.Join(ds.Mapping.Headers(), " | "))
	for _, f := range schema.Fields() {
		if h, ok := ds.Mapping.Header(f); ok {
			fmt.Fprintf(out, "  %-16s <- %q\n", f, h)
		} else {
			fmt.Fprintf(out, "  %-16s    (not found)\n", f)
		}
	}
	if unused := ds.Mapping.Unused(); len(unused) > 0 {
		fmt.Fprintln(out, "\nUnused headers:")
		for _, h := range unused {
			fmt.Fprintf(out, "  %q\n", h)
		}
	}

	fmt.Fprintln(out, "\nData quality:")
	fmt.Fprint(out, ds.Quality.Summary())
	if issues {
		fmt.Fprintln(out)
		fmt.Fprintln(out, validation.FormatIssues(ds.Quality.Issues))
	}
}
