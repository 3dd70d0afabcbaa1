package ipf

import (
	"context"
	"fmt"
	"io/fs"
	"os"

	"github.com/meigma/ipf/internal/extract"
	"github.com/meigma/ipf/internal/pathutil"
)

// ExtractStats contains statistics from an extraction operation.
type ExtractStats = extract.Stats

// ExtractAll extracts every file in the archive to destDir.
//
// Files are written atomically using temp files and renames, preserving
// the archive's path layout. Parent directories are created as needed.
// Blocks are read in offset order with adjacent blocks batched into
// single reads.
//
// By default existing files are skipped (use ExtractWithOverwrite) and
// any corrupt entry aborts the operation (use ExtractWithBestEffort to
// skip corrupt entries instead). The returned stats are valid even when
// an error is returned.
func (a *Archive) ExtractAll(ctx context.Context, destDir string, opts ...ExtractOption) (ExtractStats, error) {
	cfg := extractConfig{}
	for _, opt := range opts {
		opt(&cfg)
	}

	entries := make([]*Entry, 0, a.table.Len())
	for e := range a.table.All() {
		if cfg.filter != nil && !cfg.filter(e.Path) {
			continue
		}
		entries = append(entries, e)
	}
	return a.extractEntries(ctx, destDir, entries, &cfg)
}

// ExtractPaths extracts the named files or directory subtrees to
// destDir.
//
// Each path may name a single entry or a directory; directories expand
// to every entry beneath them. A path matching neither fails with
// ErrNotFound before anything is written.
func (a *Archive) ExtractPaths(ctx context.Context, destDir string, paths []string, opts ...ExtractOption) (ExtractStats, error) {
	cfg := extractConfig{}
	for _, opt := range opts {
		opt(&cfg)
	}

	var entries []*Entry
	seen := make(map[string]bool)
	for _, path := range paths {
		name := pathutil.Normalize(path)
		if !fs.ValidPath(name) {
			return ExtractStats{}, &fs.PathError{Op: "extract", Path: path, Err: fs.ErrInvalid}
		}

		matched := false
		if e, ok := a.table.Lookup(name); ok {
			matched = true
			if !seen[e.Path] {
				seen[e.Path] = true
				entries = append(entries, e)
			}
		}
		for e := range a.table.SortedWithPrefix(pathutil.DirPrefix(name)) {
			matched = true
			if !seen[e.Path] {
				seen[e.Path] = true
				entries = append(entries, e)
			}
		}
		if !matched {
			return ExtractStats{}, &fs.PathError{Op: "extract", Path: path, Err: ErrNotFound}
		}
	}

	if cfg.filter != nil {
		kept := entries[:0]
		for _, e := range entries {
			if cfg.filter(e.Path) {
				kept = append(kept, e)
			}
		}
		entries = kept
	}
	return a.extractEntries(ctx, destDir, entries, &cfg)
}

// extractEntries runs the batch processor over entries with a file sink.
func (a *Archive) extractEntries(ctx context.Context, destDir string, entries []*Entry, cfg *extractConfig) (ExtractStats, error) {
	if len(entries) == 0 {
		return ExtractStats{}, nil
	}

	if err := os.MkdirAll(destDir, 0o750); err != nil {
		return ExtractStats{}, fmt.Errorf("create destination %s: %w", destDir, err)
	}
	sink := extract.NewFileSink(destDir, extract.WithOverwrite(cfg.overwrite))

	procOpts := []extract.ProcessorOption{
		extract.WithBestEffort(cfg.bestEffort),
	}
	if cfg.workers != 0 {
		procOpts = append(procOpts, extract.WithWorkers(cfg.workers))
	}
	if cfg.readConcurrency != 0 {
		procOpts = append(procOpts, extract.WithReadConcurrency(cfg.readConcurrency))
	}
	if cfg.readAheadBytes > 0 {
		procOpts = append(procOpts, extract.WithReadAheadBytes(cfg.readAheadBytes))
	}
	if cfg.progress != nil {
		procOpts = append(procOpts, extract.WithProgress(cfg.progress))
	}
	if a.logger != nil {
		procOpts = append(procOpts, extract.WithProcessorLogger(a.logger))
	}

	proc := extract.NewProcessor(a.containerSources(), a.pool, a.maxFileSize, procOpts...)
	stats, err := proc.Process(ctx, entries, sink)
	if err != nil {
		return stats, err
	}

	a.log().Info("extracted archive",
		"source", a.source.SourceID(),
		"dest", destDir,
		"files", stats.Extracted,
		"skipped", stats.Skipped,
		"corrupt", stats.Corrupt,
		"bytes", stats.TotalBytes)
	return stats, nil
}

// containerSources maps container IDs to their byte sources.
func (a *Archive) containerSources() map[uint16]extract.ByteSource {
	vols := make(map[uint16]extract.ByteSource, len(a.volumes)+1)
	vols[0] = a.source
	for id, src := range a.volumes {
		vols[id] = src
	}
	return vols
}
