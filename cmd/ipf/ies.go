package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/meigma/ipf/ies"
)

func newIESCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ies",
		Short: "Work with IES data tables",
	}
	cmd.AddCommand(newIESExportCommand())
	return cmd
}

func newIESExportCommand() *cobra.Command {
	var out string

	cmd := &cobra.Command{
		Use:   "export FILE",
		Short: "Export an IES table as CSV",
		Args:  cobra.ExactArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			tbl, err := ies.Open(args[0])
			if err != nil {
				fail("%v", err)
			}

			w := os.Stdout
			if out != "" {
				f, err := os.Create(out)
				if err != nil {
					fail("%v", err)
				}
				defer f.Close()
				w = f
			}

			if err := tbl.WriteCSV(w); err != nil {
				fail("%v", err)
			}
			if out != "" {
				fmt.Printf("Exported %q: %d columns, %d rows\n", tbl.Name, len(tbl.Columns), len(tbl.Rows))
			}
		},
	}

	cmd.Flags().StringVarP(&out, "output", "o", "", "write CSV to a file instead of stdout")
	return cmd
}
