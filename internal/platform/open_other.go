//go:build !unix

// Package platform holds the OS-specific parts of the archive build walk.
package platform

import (
	"errors"
	"io/fs"
	"os"
)

// ErrSymlink reports that a walked path turned out to be a symbolic
// link. The build walk skips links it can see; hitting one here means
// the tree changed between the walk and the open.
var ErrSymlink = errors.New("path is a symbolic link")

// OpenNoFollow opens name under root for reading, refusing to follow a
// symlink in the final component. The check is an Lstat ahead of the
// open, so a racing replacement can still slip through.
func OpenNoFollow(root *os.Root, name string) (*os.File, error) {
	info, err := root.Lstat(name)
	switch {
	case err != nil:
		return nil, err
	case info.Mode()&fs.ModeSymlink != 0:
		return nil, ErrSymlink
	}
	return root.Open(name)
}
