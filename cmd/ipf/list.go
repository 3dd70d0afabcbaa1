package main

import (
	"fmt"
	"os"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/spf13/cobra"
)

func newListCommand() *cobra.Command {
	var (
		file    string
		volumes []string
	)

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List the files in an archive",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			if file == "" {
				fail("the --file flag must be set")
			}

			a, err := openArchive(file, volumes)
			if err != nil {
				fail("%v", err)
			}
			defer a.Close()

			t := table.NewWriter()
			t.AppendHeader(table.Row{"PATH", "SIZE", "PACKED", "METHOD", "CONTAINER"})
			for e := range a.Entries() {
				t.AppendRow(table.Row{
					e.Path, e.UncompressedSize, e.CompressedSize, e.Compression, e.Container,
				})
			}

			m := a.Meta()
			t.AppendFooter(table.Row{
				fmt.Sprintf("%d files", m.EntryCount),
				m.TotalUncompressedSize,
				m.TotalCompressedSize,
				"", "",
			})
			t.SetColumnConfigs([]table.ColumnConfig{
				{Number: 2, Align: text.AlignRight, AlignFooter: text.AlignRight},
				{Number: 3, Align: text.AlignRight, AlignFooter: text.AlignRight},
				{Number: 5, Align: text.AlignRight},
			})
			t.SetOutputMirror(os.Stdout)
			t.Render()
		},
	}

	cmd.Flags().StringVarP(&file, "file", "f", "", "archive file to read")
	cmd.Flags().StringArrayVar(&volumes, "volume", nil, "attach a volume as ID=PATH (repeatable)")
	return cmd
}
