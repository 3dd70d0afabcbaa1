package ipf

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
)

// CreateFile builds an archive from srcDir and writes it to target.
//
// The archive is written to a temp file in target's directory and
// renamed into place, so an interrupted create never leaves a partial
// archive at target. Parent directories are created as needed.
//
// Returns the archive reopened for reading. It must be closed to
// release the file handle.
func CreateFile(ctx context.Context, srcDir, target string, opts ...CreateOption) (*ArchiveFile, error) {
	dir := filepath.Dir(target)
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, fmt.Errorf("create destination directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".ipf-*")
	if err != nil {
		return nil, fmt.Errorf("create temp file: %w", err)
	}
	tmpPath := tmp.Name()

	if err := Create(ctx, srcDir, tmp, opts...); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return nil, fmt.Errorf("create archive: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return nil, fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Rename(tmpPath, target); err != nil {
		os.Remove(tmpPath)
		return nil, fmt.Errorf("rename to %s: %w", target, err)
	}

	return OpenFile(target)
}
