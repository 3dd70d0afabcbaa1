package ipftype

import (
	"errors"
	"fmt"
	"io/fs"
)

// Sentinel errors for archive operations.
var (
	// ErrInvalidArchive is returned when the trailer signature does not match
	// or the trailer fields are inconsistent with the file size.
	ErrInvalidArchive = errors.New("ipf: invalid archive")

	// ErrTruncatedFooter is returned when the source is smaller than a trailer.
	ErrTruncatedFooter = errors.New("ipf: truncated footer")

	// ErrTruncatedTable is returned when the file table extends past the
	// source or an entry is cut short.
	ErrTruncatedTable = errors.New("ipf: truncated file table")

	// ErrTruncatedArchive is returned when an entry's stored block lies
	// outside the data region.
	ErrTruncatedArchive = errors.New("ipf: truncated archive")

	// ErrDuplicatePath is returned when two paths collide after case folding.
	ErrDuplicatePath = errors.New("ipf: duplicate path")

	// ErrNotFound is returned when a path has no entry.
	// It wraps fs.ErrNotExist so fs.FS callers see the standard error.
	ErrNotFound = fmt.Errorf("ipf: file not found: %w", fs.ErrNotExist)

	// ErrChecksumMismatch is returned when decoded content does not match
	// the entry checksum.
	ErrChecksumMismatch = errors.New("ipf: checksum mismatch")

	// ErrCorruptData is returned when a stored block cannot be decoded.
	ErrCorruptData = errors.New("ipf: corrupt data")

	// ErrUnknownContainer is returned when an entry references a volume
	// with no attached source.
	ErrUnknownContainer = errors.New("ipf: unknown container")

	// ErrSizeOverflow is returned when byte counts exceed supported limits.
	ErrSizeOverflow = errors.New("ipf: size overflow")
)
