package ipf

import (
	"errors"

	"github.com/meigma/ipf/internal/ipftype"
)

// Errors re-exported from internal/ipftype.
var (
	// ErrInvalidArchive is returned when the footer signature does not match
	// or the footer fields are inconsistent with the file size.
	ErrInvalidArchive = ipftype.ErrInvalidArchive

	// ErrTruncatedFooter is returned when the source is smaller than a footer.
	ErrTruncatedFooter = ipftype.ErrTruncatedFooter

	// ErrTruncatedTable is returned when the file table extends past the
	// source or an entry is cut short.
	ErrTruncatedTable = ipftype.ErrTruncatedTable

	// ErrTruncatedArchive is returned when an entry's stored block lies
	// outside the data region.
	ErrTruncatedArchive = ipftype.ErrTruncatedArchive

	// ErrDuplicatePath is returned when two paths collide after case folding.
	ErrDuplicatePath = ipftype.ErrDuplicatePath

	// ErrNotFound is returned when a path has no entry.
	// It matches fs.ErrNotExist in errors.Is comparisons.
	ErrNotFound = ipftype.ErrNotFound

	// ErrChecksumMismatch is returned when decoded content does not match
	// the entry checksum.
	ErrChecksumMismatch = ipftype.ErrChecksumMismatch

	// ErrCorruptData is returned when a stored block cannot be decoded.
	ErrCorruptData = ipftype.ErrCorruptData

	// ErrUnknownContainer is returned when an entry references a volume
	// with no attached source.
	ErrUnknownContainer = ipftype.ErrUnknownContainer

	// ErrSizeOverflow is returned when byte counts exceed supported limits.
	ErrSizeOverflow = ipftype.ErrSizeOverflow
)

// ErrTooManyFiles is returned by Create when the file count exceeds the
// configured limit.
var ErrTooManyFiles = errors.New("ipf: too many files")
