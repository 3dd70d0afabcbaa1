package ipf

import (
	"io"
	"slices"

	"github.com/opencontainers/go-digest"
)

// Meta contains aggregate metadata about an archive.
//
// Sizes are computed by iterating all entries on the first call to
// [Archive.Meta]; the result is cached.
type Meta struct {
	// EntryCount is the number of files in the archive.
	EntryCount int

	// Revision identifies the content revision this archive carries.
	Revision uint32

	// BaseRevision is the revision this archive patches, or
	// [FullArchive] for a complete archive.
	BaseRevision uint32

	// TableSize is the size of the file table in bytes.
	TableSize uint32

	// ArchiveSize is the total size of the archive in bytes.
	ArchiveSize int64

	// TotalUncompressedSize is the sum of all uncompressed file sizes.
	TotalUncompressedSize uint64

	// TotalCompressedSize is the sum of all stored block sizes.
	TotalCompressedSize uint64

	// StoredCount is the number of entries stored without compression.
	StoredCount int

	// DeflateCount is the number of deflate-compressed entries.
	DeflateCount int

	// Containers lists the distinct container IDs referenced by
	// entries, sorted ascending. A single-volume archive reports [0].
	Containers []uint16
}

// IsPatch reports whether the archive patches an earlier revision.
func (m Meta) IsPatch() bool {
	return m.BaseRevision != FullArchive
}

// CompressionRatio returns the ratio of stored to uncompressed size.
// Returns 1.0 if the archive has no content.
func (m Meta) CompressionRatio() float64 {
	if m.TotalUncompressedSize == 0 {
		return 1.0
	}
	return float64(m.TotalCompressedSize) / float64(m.TotalUncompressedSize)
}

// Meta returns aggregate metadata for the archive.
// The entry iteration happens on the first call; the result is cached.
func (a *Archive) Meta() Meta {
	a.metaOnce.Do(func() {
		m := Meta{
			EntryCount:   a.table.Len(),
			Revision:     a.footer.Revision,
			BaseRevision: a.footer.BaseRevision,
			TableSize:    a.footer.TableSize,
			ArchiveSize:  a.source.Size(),
		}
		for e := range a.table.All() {
			m.TotalUncompressedSize += uint64(e.UncompressedSize)
			m.TotalCompressedSize += uint64(e.CompressedSize)
			if e.Stored() {
				m.StoredCount++
			} else {
				m.DeflateCount++
			}
			if !slices.Contains(m.Containers, e.Container) {
				m.Containers = append(m.Containers, e.Container)
			}
		}
		slices.Sort(m.Containers)
		a.meta = m
	})
	return a.meta
}

// Digest computes the canonical digest of the raw archive bytes.
//
// The digest covers the entire archive including the footer, so two
// archives with identical content but different revisions digest
// differently.
func (a *Archive) Digest() (digest.Digest, error) {
	r := io.NewSectionReader(a.source, 0, a.source.Size())
	return digest.FromReader(r)
}
