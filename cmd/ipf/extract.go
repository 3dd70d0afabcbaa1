package main

import (
	"context"
	"fmt"
	"sync"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"github.com/meigma/ipf"
)

func newExtractCommand() *cobra.Command {
	var (
		file       string
		volumes    []string
		dest       string
		bestEffort bool
		overwrite  bool
		workers    int
		noProgress bool
	)

	cmd := &cobra.Command{
		Use:   "extract [paths...]",
		Short: "Extract files from an archive",
		Long: "Extract files from an archive. With no arguments the whole archive\n" +
			"is extracted; otherwise only the named files or directory subtrees.",
		Run: func(cmd *cobra.Command, args []string) {
			if file == "" {
				fail("the --file flag must be set")
			}

			a, err := openArchive(file, volumes)
			if err != nil {
				fail("%v", err)
			}
			defer a.Close()

			var (
				bar     *progressbar.ProgressBar
				barOnce sync.Once
			)
			var opts []ipf.ExtractOption
			if overwrite {
				opts = append(opts, ipf.ExtractWithOverwrite(true))
			}
			if bestEffort {
				opts = append(opts, ipf.ExtractWithBestEffort())
			}
			if workers != 0 {
				opts = append(opts, ipf.ExtractWithWorkers(workers))
			}
			if !noProgress {
				// Callbacks arrive concurrently from worker goroutines.
				opts = append(opts, ipf.ExtractWithProgress(func(ev ipf.ProgressEvent) {
					if ev.BytesTotal > 0 {
						barOnce.Do(func() {
							bar = progressbar.DefaultBytes(int64(ev.BytesTotal), "extracting")
						})
					}
					if bar != nil {
						bar.Set64(int64(ev.BytesDone))
					}
				}))
			}

			ctx := context.Background()
			var stats ipf.ExtractStats
			if len(args) > 0 {
				stats, err = a.ExtractPaths(ctx, dest, args, opts...)
			} else {
				stats, err = a.ExtractAll(ctx, dest, opts...)
			}
			if bar != nil {
				fmt.Println()
			}
			if err != nil {
				fail("%v", err)
			}

			fmt.Printf("Extracted %d files (%d bytes)", stats.Extracted, stats.TotalBytes)
			if stats.Skipped > 0 {
				fmt.Printf(" (%d skipped)", stats.Skipped)
			}
			if stats.Corrupt > 0 {
				fmt.Printf(" (%d corrupt)", stats.Corrupt)
			}
			fmt.Println()
		},
	}

	cmd.Flags().StringVarP(&file, "file", "f", "", "archive file to read")
	cmd.Flags().StringArrayVar(&volumes, "volume", nil, "attach a volume as ID=PATH (repeatable)")
	cmd.Flags().StringVarP(&dest, "dir", "C", ".", "destination directory")
	cmd.Flags().BoolVar(&bestEffort, "best-effort", false, "continue past corrupt entries")
	cmd.Flags().BoolVar(&overwrite, "overwrite", false, "overwrite existing files")
	cmd.Flags().IntVar(&workers, "workers", 0, "decode worker count (0 = automatic)")
	cmd.Flags().BoolVar(&noProgress, "no-progress", false, "disable the progress bar")
	return cmd
}
