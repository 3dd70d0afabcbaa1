package extract

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/meigma/ipf/internal/ipftype"
)

// Sink receives decoded and verified file content during extraction.
//
// Implementations determine where content is written and can filter
// which entries to process. Content passed to Put has already been
// decompressed and checksum-verified; implementations must not mutate
// the slice. Sinks must be safe for concurrent calls.
type Sink interface {
	// ShouldProcess returns false if this entry should be skipped.
	// This allows implementations to skip existing files.
	ShouldProcess(entry *ipftype.Entry) bool

	// Put writes the entry's verified content to its destination.
	Put(entry *ipftype.Entry, content []byte) error
}

// FileSink writes entries to the filesystem under a destination
// directory, preserving the archive's path layout.
//
// Files are written to a temporary file in the same directory and
// renamed to the final path, so partially written files are never
// visible at the final path. The archive format stores no file modes or
// times; extracted files use umask defaults and the current time.
type FileSink struct {
	destDir   string
	overwrite bool
}

// FileSinkOption configures a FileSink.
type FileSinkOption func(*FileSink)

// WithOverwrite allows overwriting existing files.
// By default, existing files are skipped.
func WithOverwrite(overwrite bool) FileSinkOption {
	return func(s *FileSink) {
		s.overwrite = overwrite
	}
}

// NewFileSink creates a FileSink that writes to destDir.
//
// destDir must exist. Parent directories for entries are created
// automatically as needed; all writes are confined to destDir via
// os.Root.
func NewFileSink(destDir string, opts ...FileSinkOption) *FileSink {
	s := &FileSink{
		destDir: destDir,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// ShouldProcess returns false if the file already exists and overwrite
// is disabled.
func (s *FileSink) ShouldProcess(entry *ipftype.Entry) bool {
	if s.overwrite {
		return true
	}
	if !fs.ValidPath(entry.Path) {
		return false
	}
	destPath := filepath.Join(s.destDir, filepath.FromSlash(entry.Path))
	_, err := os.Stat(destPath)
	return os.IsNotExist(err)
}

// Put writes content to a temp file and renames it to the entry's path.
func (s *FileSink) Put(entry *ipftype.Entry, content []byte) error {
	if !fs.ValidPath(entry.Path) {
		return &fs.PathError{Op: "extract", Path: entry.Path, Err: fs.ErrInvalid}
	}
	destRel := filepath.FromSlash(entry.Path)

	root, err := os.OpenRoot(s.destDir)
	if err != nil {
		return fmt.Errorf("open destination root %s: %w", s.destDir, err)
	}
	defer root.Close()

	if dir := filepath.Dir(destRel); dir != "." {
		if err := root.MkdirAll(dir, 0o750); err != nil {
			return fmt.Errorf("create directory %s: %w", dir, err)
		}
	}

	tempFile, tempRel, err := createTempFile(root, filepath.Dir(destRel), ".ipf-")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}

	if err := writeAll(tempFile, content); err != nil {
		_ = tempFile.Close()     //nolint:errcheck // best-effort cleanup
		_ = root.Remove(tempRel) //nolint:errcheck // best-effort cleanup
		return fmt.Errorf("write %s: %w", entry.Path, err)
	}
	if err := tempFile.Close(); err != nil {
		_ = root.Remove(tempRel) //nolint:errcheck // best-effort cleanup
		return fmt.Errorf("close temp file: %w", err)
	}

	// Atomic rename to final path
	if err := root.Rename(tempRel, destRel); err != nil {
		_ = root.Remove(tempRel) //nolint:errcheck // best-effort cleanup
		return fmt.Errorf("rename to %s: %w", destRel, err)
	}
	return nil
}

func createTempFile(root *os.Root, dir, prefix string) (*os.File, string, error) {
	const attempts = 10
	for range attempts {
		name, err := randomSuffix()
		if err != nil {
			return nil, "", err
		}
		relPath := filepath.Join(dir, prefix+name)
		f, err := root.OpenFile(relPath, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o600)
		if err == nil {
			return f, relPath, nil
		}
		if !errors.Is(err, os.ErrExist) {
			return nil, "", err
		}
	}
	return nil, "", errors.New("create temp file: exhausted retries")
}

func randomSuffix() (string, error) {
	var b [8]byte
	if _, err := rand.Read(b[:]); err != nil {
		return "", err
	}
	return hex.EncodeToString(b[:]), nil
}

// writeAll writes all data to w, handling partial writes.
func writeAll(w io.Writer, data []byte) error {
	for len(data) > 0 {
		n, err := w.Write(data)
		if err != nil {
			return err
		}
		if n == 0 {
			return io.ErrShortWrite
		}
		data = data[n:]
	}
	return nil
}
