package ipf

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"iter"
	"log/slog"
	"sync"

	"github.com/meigma/ipf/internal/codec"
	"github.com/meigma/ipf/internal/format"
	"github.com/meigma/ipf/internal/pathutil"
	"github.com/meigma/ipf/internal/sizing"
)

// Interface compliance.
var (
	_ fs.FS         = (*Archive)(nil)
	_ fs.StatFS     = (*Archive)(nil)
	_ fs.ReadFileFS = (*Archive)(nil)
	_ fs.ReadDirFS  = (*Archive)(nil)
)

// ByteSource provides random access to archive bytes.
//
// Implementations exist for local files; any io.ReaderAt with a known
// size can serve. SourceID must return a stable identifier for the
// underlying content.
type ByteSource interface {
	io.ReaderAt
	Size() int64
	SourceID() string
}

// Archive provides random access to the files of an archive.
//
// The footer and file table are parsed once at open time and held
// immutable; entry content is decoded on demand. An Archive is safe for
// concurrent reads.
//
// Archive implements fs.FS, fs.StatFS, fs.ReadFileFS, and fs.ReadDirFS
// for compatibility with the standard library.
type Archive struct {
	footer      format.Footer
	table       *format.Table
	source      ByteSource
	volumes     map[uint16]ByteSource
	pool        *codec.DecompressPool
	maxFileSize uint64
	logger      *slog.Logger

	metaOnce sync.Once
	meta     Meta
}

// log returns the logger, falling back to a discard logger if nil.
func (a *Archive) log() *slog.Logger {
	if a.logger == nil {
		return slog.New(slog.DiscardHandler)
	}
	return a.logger
}

// New opens an archive over source.
//
// The trailing footer is parsed and validated, then the file table is
// read and decoded. Errors: ErrTruncatedFooter when the source is
// smaller than a footer, ErrInvalidArchive on a bad signature or an
// inconsistent table, ErrTruncatedTable and ErrTruncatedArchive when
// footer fields point outside the source, ErrDuplicatePath when two
// table paths collide after case folding.
func New(source ByteSource, opts ...Option) (*Archive, error) {
	a := &Archive{
		source:      source,
		maxFileSize: DefaultMaxFileSize,
	}
	for _, opt := range opts {
		opt(a)
	}

	srcSize := source.Size()
	if srcSize < format.FooterSize {
		return nil, fmt.Errorf("%w: source is %d bytes", ErrTruncatedFooter, srcSize)
	}

	var footerData [format.FooterSize]byte
	if err := readFull(source, footerData[:], srcSize-format.FooterSize); err != nil {
		return nil, fmt.Errorf("ipf: read footer: %w", err)
	}
	footer, err := format.ParseFooter(footerData[:])
	if err != nil {
		return nil, err
	}
	if err := footer.Validate(srcSize); err != nil {
		return nil, err
	}

	tableData := make([]byte, footer.TableSize)
	if len(tableData) > 0 {
		tableOffset, err := sizing.ToInt64(footer.TableOffset, ErrSizeOverflow)
		if err != nil {
			return nil, err
		}
		if err := readFull(source, tableData, tableOffset); err != nil {
			return nil, fmt.Errorf("ipf: read file table: %w", err)
		}
	}
	table, err := format.ParseTable(tableData, footer.EntryCount, footer.TableOffset)
	if err != nil {
		return nil, err
	}

	a.footer = footer
	a.table = table
	a.pool = codec.NewDecompressPool()
	a.log().Debug("archive opened",
		"source", source.SourceID(),
		"entries", table.Len(),
		"revision", footer.Revision,
		"base_revision", footer.BaseRevision)
	return a, nil
}

// Revision returns the content revision this archive carries.
func (a *Archive) Revision() uint32 {
	return a.footer.Revision
}

// BaseRevision returns the revision this archive patches, or FullArchive
// for a complete archive.
func (a *Archive) BaseRevision() uint32 {
	return a.footer.BaseRevision
}

// IsPatch reports whether the archive was built against a base revision.
func (a *Archive) IsPatch() bool {
	return a.footer.BaseRevision != format.FullArchive
}

// Footer returns a copy of the parsed footer.
func (a *Archive) Footer() Footer {
	return a.footer
}

// Len returns the number of entries in the archive.
func (a *Archive) Len() int {
	return a.table.Len()
}

// Size returns the total size of the archive source in bytes.
func (a *Archive) Size() int64 {
	return a.source.Size()
}

// Entry returns the entry for path, folding case.
// The returned pointer is valid for the archive's lifetime and must not
// be modified.
func (a *Archive) Entry(path string) (*Entry, bool) {
	return a.table.Lookup(pathutil.Normalize(path))
}

// Entries iterates all entries in table order.
func (a *Archive) Entries() iter.Seq[*Entry] {
	return a.table.All()
}

// Paths iterates all entry paths in table order.
func (a *Archive) Paths() iter.Seq[string] {
	return func(yield func(string) bool) {
		for e := range a.table.All() {
			if !yield(e.Path) {
				return
			}
		}
	}
}

// EntriesWithPrefix iterates entries under a directory prefix, ordered
// by folded path.
func (a *Archive) EntriesWithPrefix(prefix string) iter.Seq[*Entry] {
	return a.table.SortedWithPrefix(prefix)
}

// ReadFile implements fs.ReadFileFS.
//
// ReadFile reads and returns the entire content of the named file,
// decoded and verified against the entry checksum. Errors:
// ErrNotFound (wrapped in *fs.PathError) when the path has no entry,
// ErrChecksumMismatch when content fails verification, ErrCorruptData
// when the stored block cannot be decoded.
func (a *Archive) ReadFile(name string) ([]byte, error) {
	if !fs.ValidPath(name) {
		return nil, &fs.PathError{Op: "readfile", Path: name, Err: fs.ErrInvalid}
	}
	e, ok := a.table.Lookup(name)
	if !ok {
		return nil, &fs.PathError{Op: "readfile", Path: name, Err: ErrNotFound}
	}
	return a.readAll(e)
}

// readAll reads, decodes, and verifies one entry's content.
func (a *Archive) readAll(e *Entry) ([]byte, error) {
	block, err := a.readBlock(e)
	if err != nil {
		return nil, err
	}

	wantSize, err := sizing.ToInt(uint64(e.UncompressedSize), ErrSizeOverflow)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", e.Path, err)
	}
	content, err := a.pool.Decode(block, e.Compression, wantSize)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", e.Path, err)
	}
	if codec.Checksum(content) != e.Checksum {
		return nil, fmt.Errorf("read %s: %w", e.Path, ErrChecksumMismatch)
	}
	return content, nil
}

// readBlock reads an entry's stored block from its container.
func (a *Archive) readBlock(e *Entry) ([]byte, error) {
	src, err := a.container(e)
	if err != nil {
		return nil, err
	}

	if a.maxFileSize > 0 && uint64(e.UncompressedSize) > a.maxFileSize {
		return nil, fmt.Errorf("read %s: %d bytes: %w", e.Path, e.UncompressedSize, ErrSizeOverflow)
	}
	end, ok := sizing.AddUint64(e.DataOffset, uint64(e.CompressedSize))
	if !ok || end > uint64(src.Size()) {
		return nil, fmt.Errorf("read %s: %w: block [%d, %d) exceeds container",
			e.Path, ErrTruncatedArchive, e.DataOffset, end)
	}
	offset, err := sizing.ToInt64(e.DataOffset, ErrSizeOverflow)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", e.Path, err)
	}

	block := make([]byte, e.CompressedSize)
	if err := readFull(src, block, offset); err != nil {
		return nil, fmt.Errorf("read %s: %w", e.Path, err)
	}
	return block, nil
}

// readFull reads len(p) bytes at off, tolerating io.EOF on reads that
// end exactly at the source boundary.
func readFull(src ByteSource, p []byte, off int64) error {
	n, err := src.ReadAt(p, off)
	if n == len(p) {
		return nil
	}
	if err == nil || errors.Is(err, io.EOF) {
		return fmt.Errorf("short read (%d of %d bytes): %w", n, len(p), io.ErrUnexpectedEOF)
	}
	return err
}

// container resolves the ByteSource holding an entry's block.
func (a *Archive) container(e *Entry) (ByteSource, error) {
	if e.Container == 0 {
		return a.source, nil
	}
	src, ok := a.volumes[e.Container]
	if !ok {
		return nil, fmt.Errorf("read %s: %w: container %d", e.Path, ErrUnknownContainer, e.Container)
	}
	return src, nil
}

// Verify reads every entry and checks its checksum without keeping the
// content. It returns the first error encountered.
func (a *Archive) Verify() error {
	for e := range a.table.All() {
		if _, err := a.readAll(e); err != nil {
			return err
		}
	}
	return nil
}
