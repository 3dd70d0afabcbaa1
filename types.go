package ipf

import (
	"github.com/meigma/ipf/internal/format"
	"github.com/meigma/ipf/internal/ipftype"
)

// --- Re-exports from internal packages ---

// Entry describes one file stored in an archive.
type Entry = ipftype.Entry

// Compression identifies how an entry's block is stored.
type Compression = ipftype.Compression

// Footer is the fixed-size trailer locating the file table.
type Footer = format.Footer

// ProgressEvent represents a progress update during build or extraction.
type ProgressEvent = ipftype.ProgressEvent

// ProgressStage identifies the current phase of an operation.
type ProgressStage = ipftype.ProgressStage

// ProgressFunc receives progress updates during operations.
// Implementations must be safe for concurrent calls.
type ProgressFunc = ipftype.ProgressFunc

// Compression constants.
const (
	CompressionNone    = ipftype.CompressionNone
	CompressionDeflate = ipftype.CompressionDeflate
)

// Progress stage constants.
const (
	StageEnumerating  = ipftype.StageEnumerating
	StageCompressing  = ipftype.StageCompressing
	StageWritingTable = ipftype.StageWritingTable
	StageExtracting   = ipftype.StageExtracting
)

// FooterSize is the fixed size of the trailing footer in bytes.
const FooterSize = format.FooterSize

// FullArchive is the base revision value marking a complete archive,
// as opposed to a patch applied on top of an earlier revision.
const FullArchive = format.FullArchive
