package main

import (
	"fmt"
	"os"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
)

func newMetaCommand() *cobra.Command {
	var (
		file       string
		volumes    []string
		withDigest bool
	)

	cmd := &cobra.Command{
		Use:   "meta",
		Short: "Show archive metadata",
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

			m := a.Meta()
			base := "full archive"
			if m.IsPatch() {
				base = fmt.Sprintf("patch over revision %d", m.BaseRevision)
			}

			t := table.NewWriter()
			t.AppendRows([]table.Row{
				{"Entries", m.EntryCount},
				{"Revision", m.Revision},
				{"Base", base},
				{"Stored", m.StoredCount},
				{"Deflated", m.DeflateCount},
				{"Uncompressed bytes", m.TotalUncompressedSize},
				{"Compressed bytes", m.TotalCompressedSize},
				{"Compression ratio", fmt.Sprintf("%.3f", m.CompressionRatio())},
				{"Table bytes", m.TableSize},
				{"Archive bytes", m.ArchiveSize},
				{"Containers", fmt.Sprintf("%v", m.Containers)},
			})

			if withDigest {
				d, err := a.Digest()
				if err != nil {
					fail("compute digest: %v", err)
				}
				t.AppendRow(table.Row{"Digest", d.String()})
			}

			t.SetOutputMirror(os.Stdout)
			t.Render()
		},
	}

	cmd.Flags().StringVarP(&file, "file", "f", "", "archive file to read")
	cmd.Flags().StringArrayVar(&volumes, "volume", nil, "attach a volume as ID=PATH (repeatable)")
	cmd.Flags().BoolVar(&withDigest, "digest", false, "compute the archive digest (reads the whole file)")
	return cmd
}
