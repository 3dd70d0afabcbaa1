//go:build unix

// Package platform holds the OS-specific parts of the archive build walk.
package platform

import (
	"errors"
	"os"
	"syscall"
)

// ErrSymlink reports that a walked path turned out to be a symbolic
// link. The build walk skips links it can see; hitting one here means
// the tree changed between the walk and the open.
var ErrSymlink = errors.New("path is a symbolic link")

// OpenNoFollow opens name under root for reading, refusing to follow a
// symlink in the final component.
func OpenNoFollow(root *os.Root, name string) (*os.File, error) {
	f, err := root.OpenFile(name, os.O_RDONLY|syscall.O_NOFOLLOW, 0)
	if errors.Is(err, syscall.ELOOP) {
		return nil, ErrSymlink
	}
	return f, err
}
