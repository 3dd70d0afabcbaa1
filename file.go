package ipf

import (
	"fmt"
	"os"
	"path/filepath"
)

// DefaultExt is the conventional file extension for archives.
const DefaultExt = ".ipf"

// FileSource is a ByteSource over an open file.
// os.File has ReadAt but not Size, so the size is cached at construction.
type FileSource struct {
	file     *os.File
	size     int64
	sourceID string
}

// OpenFileSource opens path for random access.
// The returned source must be closed by the caller; it is typically
// attached to an archive with WithVolume.
func OpenFileSource(path string) (*FileSource, error) {
	f, err := os.Open(path) //nolint:gosec // User-provided path is intentional
	if err != nil {
		return nil, err
	}
	src, err := newFileSource(f)
	if err != nil {
		f.Close()
		return nil, err
	}
	return src, nil
}

// newFileSource creates a FileSource from an open file.
func newFileSource(f *os.File) (*FileSource, error) {
	info, err := f.Stat()
	if err != nil {
		return nil, fmt.Errorf("stat archive file: %w", err)
	}
	return &FileSource{file: f, size: info.Size(), sourceID: fileSourceID(f.Name(), info)}, nil
}

// ReadAt implements io.ReaderAt.
func (s *FileSource) ReadAt(p []byte, off int64) (int, error) {
	return s.file.ReadAt(p, off)
}

// Size returns the total size of the file.
func (s *FileSource) Size() int64 {
	return s.size
}

// SourceID returns a stable identifier for the file content.
func (s *FileSource) SourceID() string {
	return s.sourceID
}

// Close closes the underlying file. It is safe to call more than once.
func (s *FileSource) Close() error {
	if s.file == nil {
		return nil
	}
	err := s.file.Close()
	s.file = nil
	return err
}

func fileSourceID(path string, info os.FileInfo) string {
	absPath, err := filepath.Abs(path)
	if err != nil {
		absPath = path
	}
	return fmt.Sprintf("file:%s:%d:%d", absPath, info.Size(), info.ModTime().UnixNano())
}

// ArchiveFile wraps an Archive with its underlying file handle.
// Close must be called to release file resources.
type ArchiveFile struct {
	*Archive
	src *FileSource
}

// Close closes the underlying archive file. It is safe to call more
// than once; reads after Close fail.
func (af *ArchiveFile) Close() error {
	if af.src == nil {
		return nil
	}
	err := af.src.Close()
	af.src = nil
	return err
}

// OpenFile opens an archive file for random access.
//
// The footer and file table are parsed eagerly; entry content is read
// on demand. The returned ArchiveFile must be closed to release the
// file handle.
func OpenFile(path string, opts ...Option) (*ArchiveFile, error) {
	src, err := OpenFileSource(path)
	if err != nil {
		return nil, fmt.Errorf("open archive: %w", err)
	}

	a, err := New(src, opts...)
	if err != nil {
		src.Close()
		return nil, err
	}

	return &ArchiveFile{Archive: a, src: src}, nil
}

// Interface compliance for FileSource.
var _ ByteSource = (*FileSource)(nil)
