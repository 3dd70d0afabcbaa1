package ipf

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/klauspost/compress/flate"

	"github.com/meigma/ipf/internal/codec"
	"github.com/meigma/ipf/internal/format"
	"github.com/meigma/ipf/internal/platform"
	"github.com/meigma/ipf/internal/sizing"
	"github.com/meigma/ipf/internal/write"
)

// Create builds an archive from the contents of dir and writes it to w.
//
// The output is written in a single pass: file blocks first, then the
// file table, then the footer. Because the footer goes last, an
// interrupted write never leaves bytes that parse as a valid archive.
//
// Files are visited in lexical path order, so creating an archive twice
// from the same tree with the same options produces identical bytes.
// Each file is checksummed and deflated; files that do not shrink under
// deflate are stored raw. Empty directories are not preserved. Symbolic
// links are not followed.
//
// Paths that collide after case folding fail with ErrDuplicatePath.
// The context can be used for cancellation between files.
func Create(ctx context.Context, dir string, w io.Writer, opts ...CreateOption) error {
	cfg := createConfig{level: codec.DefaultLevel}
	for _, opt := range opts {
		opt(&cfg)
	}

	level := cfg.level
	if cfg.storeOnly {
		level = flate.NoCompression
	}
	comp, err := codec.NewCompressor(level)
	if err != nil {
		return err
	}

	root, err := os.OpenRoot(dir)
	if err != nil {
		return err
	}
	defer root.Close()

	b := &builder{cfg: cfg, comp: comp, table: format.NewTable()}
	b.log().Info("creating archive", "dir", dir, "level", level, "revision", cfg.revision)

	dataSize, err := b.writeData(ctx, root, w)
	if err != nil {
		return err
	}

	b.log().Debug("archive data written", "file_count", b.table.Len(), "data_size", dataSize)
	return b.writeTable(w, dataSize)
}

// builder holds state for archive creation.
type builder struct {
	cfg   createConfig
	comp  *codec.Compressor
	table *format.Table
}

// reportProgress sends a progress event if a callback is configured.
func (b *builder) reportProgress(stage ProgressStage, path string, bytesDone uint64, filesDone int) {
	if b.cfg.progress == nil {
		return
	}
	b.cfg.progress(ProgressEvent{
		Stage:     stage,
		Path:      path,
		BytesDone: bytesDone,
		FilesDone: filesDone,
	})
}

// log returns the logger, falling back to a discard logger if nil.
func (b *builder) log() *slog.Logger {
	if b.cfg.logger == nil {
		return slog.New(slog.DiscardHandler)
	}
	return b.cfg.logger
}

// writeData walks the directory tree and writes file blocks to w.
// Returns the total bytes written, which is where the table begins.
func (b *builder) writeData(ctx context.Context, root *os.Root, w io.Writer) (totalBytes uint64, err error) {
	strict := b.cfg.changeDetection == ChangeDetectionStrict
	maxFiles := b.cfg.maxFiles
	if maxFiles == 0 {
		maxFiles = DefaultMaxFiles
	}

	// Signal enumeration start
	b.reportProgress(StageEnumerating, "", 0, 0)

	err = fs.WalkDir(root.FS(), ".", func(path string, d fs.DirEntry, walkErr error) error {
		entry, skip, procErr := b.processEntry(ctx, root, w, path, d, walkErr, strict, maxFiles, totalBytes)
		if procErr != nil || skip {
			return procErr
		}
		if addErr := b.table.Add(entry); addErr != nil {
			return addErr
		}
		next, ok := sizing.AddUint64(totalBytes, uint64(entry.CompressedSize))
		if !ok {
			return ErrSizeOverflow
		}
		totalBytes = next
		b.reportProgress(StageCompressing, path, totalBytes, b.table.Len())
		return nil
	})
	if err != nil {
		return 0, err
	}
	return totalBytes, nil
}

// processEntry handles a single directory entry during archive creation.
//
//nolint:gocritic // unnamedResult is acceptable for this internal helper
func (b *builder) processEntry(ctx context.Context, root *os.Root, w io.Writer, path string, d fs.DirEntry, walkErr error, strict bool, maxFiles int, offset uint64) (Entry, bool, error) {
	if walkErr != nil {
		return Entry{}, false, walkErr
	}
	if err := ctx.Err(); err != nil {
		return Entry{}, false, err
	}
	if d.IsDir() {
		return Entry{}, true, nil
	}

	fsPath := filepath.FromSlash(path)
	info, ok, err := write.ResolveEntryInfo(root, fsPath, d, strict)
	if err != nil {
		return Entry{}, false, err
	}
	if !ok {
		return Entry{}, true, nil
	}

	if maxFiles > 0 && b.table.Len() >= maxFiles {
		return Entry{}, false, ErrTooManyFiles
	}

	entry, err := b.writeEntry(root, w, path, fsPath, info, strict, offset)
	if err != nil {
		if errors.Is(err, platform.ErrSymlink) {
			b.log().Debug("skipped symlink", "path", path)
			return Entry{}, true, nil
		}
		return Entry{}, false, err
	}
	return entry, false, nil
}

// writeEntry writes a single file's block to w and returns its metadata.
func (b *builder) writeEntry(root *os.Root, w io.Writer, path, fsPath string, info fs.FileInfo, strict bool, offset uint64) (Entry, error) {
	f, err := platform.OpenNoFollow(root, fsPath)
	if err != nil {
		return Entry{}, err
	}
	defer f.Close()

	finfo, err := f.Stat()
	if err != nil {
		return Entry{}, err
	}
	if !finfo.Mode().IsRegular() {
		return Entry{}, fmt.Errorf("not a regular file: %s", path)
	}
	if validateErr := write.ValidateFileInfo(path, info, finfo, strict); validateErr != nil {
		return Entry{}, validateErr
	}

	size, err := sizing.ToUint32(finfo.Size(), ErrSizeOverflow)
	if err != nil {
		return Entry{}, fmt.Errorf("read %s: %d bytes: %w", path, finfo.Size(), err)
	}

	content := make([]byte, size)
	if _, err := io.ReadFull(f, content); err != nil {
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			return Entry{}, fmt.Errorf("file changed during archive creation: %s", path)
		}
		return Entry{}, fmt.Errorf("read %s: %w", path, err)
	}

	block := content
	method := CompressionNone
	if !write.ShouldSkip(path, finfo, b.cfg.skipCompression) {
		block, method, err = b.comp.Encode(content)
		if err != nil {
			return Entry{}, fmt.Errorf("compress %s: %w", path, err)
		}
	}
	blockSize, err := sizing.ToUint32(int64(len(block)), ErrSizeOverflow)
	if err != nil {
		return Entry{}, fmt.Errorf("compress %s: %w", path, err)
	}

	if _, err := w.Write(block); err != nil {
		return Entry{}, fmt.Errorf("write %s: %w", path, err)
	}

	if err := write.CheckFileUnchanged(f, path, finfo, strict); err != nil {
		return Entry{}, err
	}

	return Entry{
		Path:             path,
		DataOffset:       offset,
		CompressedSize:   blockSize,
		UncompressedSize: size,
		Checksum:         codec.Checksum(content),
		Compression:      method,
	}, nil
}

// writeTable serializes the file table and footer to w.
// The footer is the last thing written.
func (b *builder) writeTable(w io.Writer, dataSize uint64) error {
	tableData, err := b.table.Marshal()
	if err != nil {
		return err
	}
	b.reportProgress(StageWritingTable, "", dataSize, b.table.Len())

	if _, err := w.Write(tableData); err != nil {
		return fmt.Errorf("write table: %w", err)
	}

	entryCount, err := sizing.ToUint32(int64(b.table.Len()), ErrSizeOverflow)
	if err != nil {
		return err
	}
	tableSize, err := sizing.ToUint32(int64(len(tableData)), ErrSizeOverflow)
	if err != nil {
		return err
	}

	footer := format.Footer{
		EntryCount:   entryCount,
		TableOffset:  dataSize,
		TableSize:    tableSize,
		Revision:     b.cfg.revision,
		BaseRevision: b.cfg.baseRevision,
	}
	if _, err := w.Write(footer.Marshal()); err != nil {
		return fmt.Errorf("write footer: %w", err)
	}

	b.log().Info("archive created",
		"files", b.table.Len(),
		"data_size", dataSize,
		"table_size", tableSize,
		"revision", b.cfg.revision,
		"base_revision", b.cfg.baseRevision)
	return nil
}
