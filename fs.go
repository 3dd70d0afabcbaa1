package ipf

import (
	"bytes"
	"io"
	"io/fs"
	"iter"
	"slices"
	"strings"
	"time"

	"github.com/meigma/ipf/internal/pathutil"
)

// File represents an archive file open for reading.
// Content is decoded and verified at open time, so reads never fail
// with corruption errors.
type File interface {
	fs.File
	io.ReaderAt
	io.Seeker
}

// Open implements fs.FS.
//
// Open returns an fs.File for reading the named file. Content is
// decoded and checksum-verified eagerly; corruption surfaces from Open
// rather than from later reads. Directories are synthesized from entry
// paths.
func (a *Archive) Open(name string) (fs.File, error) {
	if !fs.ValidPath(name) {
		return nil, &fs.PathError{Op: "open", Path: name, Err: fs.ErrInvalid}
	}

	if e, ok := a.table.Lookup(name); ok {
		content, err := a.readAll(e)
		if err != nil {
			return nil, &fs.PathError{Op: "open", Path: name, Err: err}
		}
		return newEntryFile(e, content), nil
	}

	if a.isDir(name) {
		return &openDir{a: a, name: name}, nil
	}

	return nil, &fs.PathError{Op: "open", Path: name, Err: ErrNotFound}
}

// Stat implements fs.StatFS.
//
// Stat returns file info for the named file without reading its
// content. For directories (paths that are prefixes of other entries),
// Stat returns synthetic directory info.
func (a *Archive) Stat(name string) (fs.FileInfo, error) {
	if !fs.ValidPath(name) {
		return nil, &fs.PathError{Op: "stat", Path: name, Err: fs.ErrInvalid}
	}

	if e, ok := a.table.Lookup(name); ok {
		return newInfo(e, pathutil.Base(e.Path)), nil
	}

	if a.isDir(name) {
		return newDirInfo(pathutil.Base(name)), nil
	}

	return nil, &fs.PathError{Op: "stat", Path: name, Err: ErrNotFound}
}

// ReadDir implements fs.ReadDirFS.
//
// ReadDir returns directory entries for the named directory, sorted by
// name. Directory entries are synthesized from entry paths; the format
// does not store directories explicitly.
func (a *Archive) ReadDir(name string) ([]fs.DirEntry, error) {
	if !fs.ValidPath(name) {
		return nil, &fs.PathError{Op: "readdir", Path: name, Err: fs.ErrInvalid}
	}

	entries := a.listDir(pathutil.DirPrefix(name))
	if len(entries) == 0 && name != "." && !a.isDir(name) {
		return nil, &fs.PathError{Op: "readdir", Path: name, Err: ErrNotFound}
	}

	return entries, nil
}

// Exists reports whether path names a file or directory in the archive.
// The path is normalized before lookup, so separators and case are
// forgiven.
func (a *Archive) Exists(path string) bool {
	name := pathutil.Normalize(path)
	if !fs.ValidPath(name) {
		return false
	}
	if _, ok := a.table.Lookup(name); ok {
		return true
	}
	return a.isDir(name)
}

// IsFile reports whether path names a file in the archive.
// The path is normalized before lookup.
func (a *Archive) IsFile(path string) bool {
	name := pathutil.Normalize(path)
	if !fs.ValidPath(name) {
		return false
	}
	_, ok := a.table.Lookup(name)
	return ok
}

// IsDir reports whether path names a directory in the archive.
// Directories are synthesized from entry paths; the root directory
// always exists. The path is normalized before lookup.
func (a *Archive) IsDir(path string) bool {
	name := pathutil.Normalize(path)
	if !fs.ValidPath(name) {
		return false
	}
	return a.isDir(name)
}

// isDir checks if name is a directory (has entries under it).
// The root directory always exists.
func (a *Archive) isDir(name string) bool {
	if name == "." {
		return true
	}
	for range a.table.SortedWithPrefix(name + "/") {
		return true
	}
	return false
}

// entryFile implements File over decoded content.
type entryFile struct {
	entry Entry
	r     *bytes.Reader
}

var _ File = (*entryFile)(nil)

func newEntryFile(e *Entry, content []byte) *entryFile {
	return &entryFile{entry: *e, r: bytes.NewReader(content)}
}

func (f *entryFile) Read(p []byte) (int, error)              { return f.r.Read(p) }
func (f *entryFile) ReadAt(p []byte, off int64) (int, error) { return f.r.ReadAt(p, off) }
func (f *entryFile) Close() error                            { return nil }

func (f *entryFile) Seek(offset int64, whence int) (int64, error) {
	return f.r.Seek(offset, whence)
}

func (f *entryFile) Stat() (fs.FileInfo, error) {
	return newInfo(&f.entry, pathutil.Base(f.entry.Path)), nil
}

// openDir implements fs.File and fs.ReadDirFile for synthetic directories.
type openDir struct {
	a      *Archive
	name   string
	listed bool
	list   []fs.DirEntry
}

var _ fs.ReadDirFile = (*openDir)(nil)

func (d *openDir) Read(_ []byte) (int, error) {
	return 0, &fs.PathError{Op: "read", Path: d.name, Err: fs.ErrInvalid}
}

func (d *openDir) Stat() (fs.FileInfo, error) {
	return newDirInfo(pathutil.Base(d.name)), nil
}

func (d *openDir) Close() error {
	d.list = nil
	return nil
}

func (d *openDir) ReadDir(n int) ([]fs.DirEntry, error) {
	if !d.listed {
		d.list = d.a.listDir(pathutil.DirPrefix(d.name))
		d.listed = true
	}

	if n <= 0 {
		list := d.list
		d.list = nil
		if list == nil {
			list = []fs.DirEntry{}
		}
		return list, nil
	}

	if len(d.list) == 0 {
		return nil, io.EOF
	}
	if n > len(d.list) {
		n = len(d.list)
	}
	page := d.list[:n]
	d.list = d.list[n:]
	return page, nil
}

// listDir synthesizes the children of the directory named by prefix.
// Children sharing a directory component are deduplicated with case
// folding. The folded iteration order can differ from byte order for
// mixed-case siblings, so the result is re-sorted by name.
func (a *Archive) listDir(prefix string) []fs.DirEntry {
	var seq iter.Seq[*Entry]
	if prefix == "" {
		seq = a.table.Sorted()
	} else {
		seq = a.table.SortedWithPrefix(prefix)
	}

	entries := make([]fs.DirEntry, 0)
	lastName := ""
	for e := range seq {
		childName, isSubDir := pathutil.Child(e.Path, prefix)
		if lastName != "" && pathutil.Fold(childName) == pathutil.Fold(lastName) {
			continue
		}
		lastName = childName

		if isSubDir {
			entries = append(entries, newDirEntry(newDirInfo(childName)))
		} else {
			entries = append(entries, newDirEntry(newInfo(e, childName)))
		}
	}

	slices.SortFunc(entries, func(a, b fs.DirEntry) int {
		return strings.Compare(a.Name(), b.Name())
	})
	return entries
}

// info implements fs.FileInfo for regular files.
// The format stores no modes or times; both are synthetic.
type info struct {
	entry Entry
	name  string
}

func newInfo(e *Entry, name string) *info {
	return &info{entry: *e, name: name}
}

func (fi *info) Name() string       { return fi.name }
func (fi *info) Size() int64        { return int64(fi.entry.UncompressedSize) }
func (fi *info) Mode() fs.FileMode  { return 0o644 }
func (fi *info) ModTime() time.Time { return time.Time{} }
func (fi *info) IsDir() bool        { return false }
func (fi *info) Sys() any           { return nil }

// dirInfo implements fs.FileInfo for synthetic directories.
type dirInfo struct {
	name string
}

func newDirInfo(name string) *dirInfo {
	return &dirInfo{name: name}
}

func (di *dirInfo) Name() string       { return di.name }
func (di *dirInfo) Size() int64        { return 0 }
func (di *dirInfo) Mode() fs.FileMode  { return fs.ModeDir | 0o755 }
func (di *dirInfo) ModTime() time.Time { return time.Time{} }
func (di *dirInfo) IsDir() bool        { return true }
func (di *dirInfo) Sys() any           { return nil }

// dirEntry implements fs.DirEntry by wrapping fs.FileInfo.
type dirEntry struct {
	info fs.FileInfo
}

func newDirEntry(info fs.FileInfo) *dirEntry {
	return &dirEntry{info: info}
}

func (de *dirEntry) Name() string               { return de.info.Name() }
func (de *dirEntry) IsDir() bool                { return de.info.IsDir() }
func (de *dirEntry) Type() fs.FileMode          { return de.info.Mode().Type() }
func (de *dirEntry) Info() (fs.FileInfo, error) { return de.info, nil }
