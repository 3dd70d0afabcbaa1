package write

import (
	"fmt"
	"io/fs"
	"os"
)

// ResolveEntryInfo resolves a walk entry to the FileInfo the builder
// records for it. ok=false marks entries the archive never stores:
// symlinks and other non-regular files. Filesystems whose ReadDir
// reports no type fall back to an Lstat.
//
// Outside strict change detection the typed path skips the stat; the
// returned info is nil and the entry is sized at open time instead.
func ResolveEntryInfo(root *os.Root, fsPath string, d fs.DirEntry, strict bool) (fs.FileInfo, bool, error) {
	dtype := d.Type()
	if dtype == 0 {
		return lstatRegular(root, fsPath)
	}
	if dtype&fs.ModeSymlink != 0 || !dtype.IsRegular() {
		return nil, false, nil
	}
	if !strict {
		return nil, true, nil
	}

	info, err := d.Info()
	if err != nil {
		return nil, false, err
	}
	if !info.Mode().IsRegular() {
		return nil, false, nil
	}
	return info, true, nil
}

// lstatRegular stats fsPath without following links, producing an info
// only for regular files.
func lstatRegular(root *os.Root, fsPath string) (fs.FileInfo, bool, error) {
	info, err := root.Lstat(fsPath)
	if err != nil {
		return nil, false, err
	}
	if !info.Mode().IsRegular() {
		return nil, false, nil
	}
	return info, true, nil
}

// ValidateFileInfo confirms the walk's FileInfo still describes the
// file that was opened. Only strict change detection pays for the
// comparison.
func ValidateFileInfo(path string, info, finfo fs.FileInfo, strict bool) error {
	switch {
	case !strict:
		return nil
	case info == nil:
		return fmt.Errorf("missing file info: %s", path)
	case !os.SameFile(info, finfo):
		return fmt.Errorf("file changed during archive creation: %s", path)
	}
	return nil
}

// CheckFileUnchanged re-stats f after its content was read and reports
// an error if the size, mtime, or permissions moved in between. Only
// strict change detection pays for the stat.
func CheckFileUnchanged(f *os.File, path string, before fs.FileInfo, strict bool) error {
	if !strict {
		return nil
	}

	after, err := f.Stat()
	if err != nil {
		return err
	}

	moved := after.Size() != before.Size() ||
		!after.ModTime().Equal(before.ModTime()) ||
		after.Mode().Perm() != before.Mode().Perm()
	if moved {
		return fmt.Errorf("file changed during archive creation: %s", path)
	}
	return nil
}
