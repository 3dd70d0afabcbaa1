// Package format encodes and decodes the on-disk layout of an archive:
// the trailing footer and the file table it locates.
//
// An archive is a data region of stored blocks, a file table describing
// them, and a fixed-size footer at the very end of the file:
//
//	[data region][file table][footer]
//
// All integers are little-endian.
package format

import (
	"encoding/binary"
	"fmt"

	"github.com/meigma/ipf/internal/ipftype"
	"github.com/meigma/ipf/internal/sizing"
)

const (
	countFieldSO     = 0
	countFieldEO     = countFieldSO + 4
	tableOffFieldSO  = countFieldEO
	tableOffFieldEO  = tableOffFieldSO + 8
	tableSizeFieldSO = tableOffFieldEO
	tableSizeFieldEO = tableSizeFieldSO + 4
	magicFieldSO     = tableSizeFieldEO
	magicFieldEO     = magicFieldSO + 4
	revFieldSO       = magicFieldEO
	revFieldEO       = revFieldSO + 4
	baseRevFieldSO   = revFieldEO
	baseRevFieldEO   = baseRevFieldSO + 4
)

// FooterSize is the fixed size of the trailing footer in bytes.
const FooterSize = baseRevFieldEO

// Magic is the footer signature.
var Magic = [4]byte{'P', 'K', 0x05, 0x06}

// FullArchive is the base revision value marking a complete archive,
// as opposed to a patch applied on top of an earlier revision.
const FullArchive = 0

// Footer is the fixed-size trailer locating the file table.
type Footer struct {
	// EntryCount is the number of entries in the file table.
	EntryCount uint32

	// TableOffset is the byte offset of the file table. It is also the
	// end of the data region.
	TableOffset uint64

	// TableSize is the encoded size of the file table in bytes.
	TableSize uint32

	// Revision is the content revision this archive carries.
	Revision uint32

	// BaseRevision is the revision this archive patches, or FullArchive.
	BaseRevision uint32
}

// Marshal encodes the footer into a FooterSize byte slice.
func (f *Footer) Marshal() []byte {
	data := make([]byte, FooterSize)
	binary.LittleEndian.PutUint32(data[countFieldSO:countFieldEO], f.EntryCount)
	binary.LittleEndian.PutUint64(data[tableOffFieldSO:tableOffFieldEO], f.TableOffset)
	binary.LittleEndian.PutUint32(data[tableSizeFieldSO:tableSizeFieldEO], f.TableSize)
	copy(data[magicFieldSO:magicFieldEO], Magic[:])
	binary.LittleEndian.PutUint32(data[revFieldSO:revFieldEO], f.Revision)
	binary.LittleEndian.PutUint32(data[baseRevFieldSO:baseRevFieldEO], f.BaseRevision)
	return data
}

// ParseFooter decodes the footer from the last FooterSize bytes of an
// archive. It checks the signature but not the field bounds; call
// Validate with the source size for those.
func ParseFooter(data []byte) (Footer, error) {
	var f Footer
	if len(data) < FooterSize {
		return f, fmt.Errorf("%w: %d bytes", ipftype.ErrTruncatedFooter, len(data))
	}
	if [4]byte(data[magicFieldSO:magicFieldEO]) != Magic {
		return f, fmt.Errorf("%w: bad signature %x", ipftype.ErrInvalidArchive, data[magicFieldSO:magicFieldEO])
	}
	f.EntryCount = binary.LittleEndian.Uint32(data[countFieldSO:countFieldEO])
	f.TableOffset = binary.LittleEndian.Uint64(data[tableOffFieldSO:tableOffFieldEO])
	f.TableSize = binary.LittleEndian.Uint32(data[tableSizeFieldSO:tableSizeFieldEO])
	f.Revision = binary.LittleEndian.Uint32(data[revFieldSO:revFieldEO])
	f.BaseRevision = binary.LittleEndian.Uint32(data[baseRevFieldSO:baseRevFieldEO])
	return f, nil
}

// Validate checks the footer fields against the archive size.
// srcSize is the total size of the source including the footer.
func (f *Footer) Validate(srcSize int64) error {
	if srcSize < FooterSize {
		return fmt.Errorf("%w: source is %d bytes", ipftype.ErrTruncatedFooter, srcSize)
	}
	footerStart := uint64(srcSize) - FooterSize

	tableEnd, ok := sizing.AddUint64(f.TableOffset, uint64(f.TableSize))
	if !ok || tableEnd > footerStart {
		return fmt.Errorf("%w: file table [%d, %d) exceeds archive",
			ipftype.ErrTruncatedTable, f.TableOffset, tableEnd)
	}
	return nil
}
