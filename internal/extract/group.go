package extract

import "github.com/meigma/ipf/internal/ipftype"

// rangeGroup represents a contiguous range of blocks in one container.
// All entries in a group can be fetched with a single range read.
type rangeGroup struct {
	start   uint64           // Start byte offset in the container
	end     uint64           // End byte offset (exclusive) in the container
	entries []*ipftype.Entry // Entries within this range
}

// groupAdjacentEntries groups entries whose blocks are adjacent in the
// container.
//
// Entries must belong to the same container and be sorted by DataOffset
// before calling this function. Adjacent entries (where one block ends
// exactly where the next begins) are combined into a single group to
// enable batched reads.
//
// The entries slice must be non-empty.
func groupAdjacentEntries(entries []*ipftype.Entry) []rangeGroup {
	groups := make([]rangeGroup, 0, len(entries))
	current := rangeGroup{
		start:   entries[0].DataOffset,
		end:     entries[0].DataOffset + uint64(entries[0].CompressedSize),
		entries: []*ipftype.Entry{entries[0]},
	}

	for i := 1; i < len(entries); i++ {
		entry := entries[i]
		entryEnd := entry.DataOffset + uint64(entry.CompressedSize)

		if entry.DataOffset == current.end {
			// Adjacent, extend current group
			current.end = entryEnd
			current.entries = append(current.entries, entry)
		} else {
			groups = append(groups, current)
			current = rangeGroup{
				start:   entry.DataOffset,
				end:     entryEnd,
				entries: []*ipftype.Entry{entry},
			}
		}
	}
	return append(groups, current)
}
