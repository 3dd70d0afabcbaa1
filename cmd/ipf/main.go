// Command ipf inspects, builds, and extracts IPF game-asset archives.
package main

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/meigma/ipf"
)

var verbose bool

func main() {
	rootCmd := &cobra.Command{
		Use:   "ipf",
		Short: "Inspect, build, and extract IPF game-asset archives",
	}
	rootCmd.PersistentFlags().BoolVar(&verbose, "verbose", false, "enable debug logging")

	rootCmd.AddCommand(
		newListCommand(),
		newExtractCommand(),
		newMetaCommand(),
		newCreateCommand(),
		newIESCommand(),
	)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// fail prints a red error message and exits.
func fail(format string, a ...any) {
	color.New(color.FgRed).Fprintf(os.Stderr, "Error: "+format+"\n", a...)
	os.Exit(1)
}

// logger builds the slog logger the --verbose flag asks for.
func logger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelDebug,
	}))
}

// openArchive opens an archive file plus any --volume attachments.
func openArchive(file string, volumes []string) (*ipf.ArchiveFile, error) {
	var opts []ipf.Option
	if verbose {
		opts = append(opts, ipf.WithLogger(logger()))
	}

	for _, spec := range volumes {
		container, source, err := parseVolume(spec)
		if err != nil {
			return nil, err
		}
		opts = append(opts, ipf.WithVolume(container, source))
	}

	return ipf.OpenFile(file, opts...)
}

// parseVolume parses an ID=PATH volume attachment.
func parseVolume(spec string) (uint16, *ipf.FileSource, error) {
	idStr, path, ok := strings.Cut(spec, "=")
	if !ok {
		return 0, nil, fmt.Errorf("invalid volume %q, want ID=PATH", spec)
	}
	id, err := strconv.ParseUint(idStr, 10, 16)
	if err != nil || id == 0 {
		return 0, nil, fmt.Errorf("invalid volume container ID %q", idStr)
	}

	source, err := ipf.OpenFileSource(path)
	if err != nil {
		return 0, nil, fmt.Errorf("open volume %s: %w", path, err)
	}
	return uint16(id), source, nil
}
