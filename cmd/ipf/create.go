package main

import (
	"context"
	"fmt"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"github.com/meigma/ipf"
)

func newCreateCommand() *cobra.Command {
	var (
		file         string
		revision     uint32
		baseRevision uint32
		level        int
		store        bool
		maxFiles     int
		noProgress   bool
	)

	cmd := &cobra.Command{
		Use:   "create SRCDIR",
		Short: "Build an archive from a directory",
		Args:  cobra.ExactArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			if file == "" {
				fail("the --file flag must be set")
			}
			srcDir := args[0]

			opts := []ipf.CreateOption{
				ipf.CreateWithRevision(revision),
				ipf.CreateWithBaseRevision(baseRevision),
			}
			if cmd.Flags().Changed("level") {
				opts = append(opts, ipf.CreateWithLevel(level))
			}
			if store {
				opts = append(opts, ipf.CreateWithStoreOnly())
			}
			if maxFiles != 0 {
				opts = append(opts, ipf.CreateWithMaxFiles(maxFiles))
			}
			if verbose {
				opts = append(opts, ipf.CreateWithLogger(logger()))
			}

			var bar *progressbar.ProgressBar
			if !noProgress {
				// The total is unknown until the walk completes, so the
				// bar runs in spinner mode.
				bar = progressbar.DefaultBytes(-1, "packing")
				opts = append(opts, ipf.CreateWithProgress(func(ev ipf.ProgressEvent) {
					if ev.Stage == ipf.StageCompressing {
						bar.Set64(int64(ev.BytesDone))
					}
				}))
			}

			a, err := ipf.CreateFile(context.Background(), srcDir, file, opts...)
			if bar != nil {
				fmt.Println()
			}
			if err != nil {
				fail("%v", err)
			}
			defer a.Close()

			m := a.Meta()
			fmt.Printf("Created %s: %d files, %d bytes (ratio %.3f)\n",
				file, m.EntryCount, m.ArchiveSize, m.CompressionRatio())
		},
	}

	cmd.Flags().StringVarP(&file, "file", "f", "", "archive file to write")
	cmd.Flags().Uint32Var(&revision, "revision", 0, "revision number to record")
	cmd.Flags().Uint32Var(&baseRevision, "base-revision", 0, "base revision this archive patches (0 = full archive)")
	cmd.Flags().IntVar(&level, "level", -1, "deflate level (-1 default, 0 store, 1 fastest through 9 best)")
	cmd.Flags().BoolVar(&store, "store", false, "store all files without compression")
	cmd.Flags().IntVar(&maxFiles, "max-files", 0, "file count limit (0 = default limit, negative = unlimited)")
	cmd.Flags().BoolVar(&noProgress, "no-progress", false, "disable the progress bar")
	return cmd
}
