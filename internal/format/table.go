package format

import (
	"encoding/binary"
	"fmt"
	"io/fs"
	"iter"
	"math"
	"sort"
	"strings"
	"sync"

	"github.com/meigma/ipf/internal/ipftype"
	"github.com/meigma/ipf/internal/pathutil"
	"github.com/meigma/ipf/internal/sizing"
)

const (
	entryPathLenSO   = 0
	entryPathLenEO   = entryPathLenSO + 2
	entryCRCSO       = entryPathLenEO
	entryCRCEO       = entryCRCSO + 4
	entryCompSO      = entryCRCEO
	entryCompEO      = entryCompSO + 4
	entryUncompSO    = entryCompEO
	entryUncompEO    = entryUncompSO + 4
	entryOffsetSO    = entryUncompEO
	entryOffsetEO    = entryOffsetSO + 8
	entryMethodSO    = entryOffsetEO
	entryMethodEO    = entryMethodSO + 1
	entryContainerSO = entryMethodEO
	entryContainerEO = entryContainerSO + 2
)

// EntryHeaderSize is the fixed portion of an encoded entry.
// The path bytes follow the header.
const EntryHeaderSize = entryContainerEO

// Table is the set of entries in an archive. Entries keep their wire
// order; lookups fold case. Table is not safe for concurrent mutation,
// but all read methods may be used concurrently once populated.
type Table struct {
	entries []ipftype.Entry
	byKey   map[string]int

	sortOnce sync.Once
	sorted   []int // entry indices ordered by folded path
}

// NewTable creates an empty table.
func NewTable() *Table {
	return &Table{byKey: make(map[string]int)}
}

// Add appends an entry. It returns ErrDuplicatePath if the entry's path
// collides with an existing one after case folding.
func (t *Table) Add(e ipftype.Entry) error {
	key := pathutil.Fold(e.Path)
	if prev, ok := t.byKey[key]; ok {
		return fmt.Errorf("%w: %q collides with %q", ipftype.ErrDuplicatePath, e.Path, t.entries[prev].Path)
	}
	t.byKey[key] = len(t.entries)
	t.entries = append(t.entries, e)
	return nil
}

// Len returns the number of entries.
func (t *Table) Len() int {
	return len(t.entries)
}

// Lookup returns the entry for path, folding case. The returned pointer
// is valid until the table is mutated.
func (t *Table) Lookup(path string) (*ipftype.Entry, bool) {
	i, ok := t.byKey[pathutil.Fold(path)]
	if !ok {
		return nil, false
	}
	return &t.entries[i], true
}

// All iterates entries in wire order.
func (t *Table) All() iter.Seq[*ipftype.Entry] {
	return func(yield func(*ipftype.Entry) bool) {
		for i := range t.entries {
			if !yield(&t.entries[i]) {
				return
			}
		}
	}
}

// Sorted iterates entries ordered by folded path.
func (t *Table) Sorted() iter.Seq[*ipftype.Entry] {
	return func(yield func(*ipftype.Entry) bool) {
		for _, i := range t.sortedIndices() {
			if !yield(&t.entries[i]) {
				return
			}
		}
	}
}

// SortedWithPrefix iterates entries whose folded path starts with the
// folded prefix, ordered by folded path.
func (t *Table) SortedWithPrefix(prefix string) iter.Seq[*ipftype.Entry] {
	prefix = pathutil.Fold(prefix)
	return func(yield func(*ipftype.Entry) bool) {
		order := t.sortedIndices()
		start := sort.Search(len(order), func(i int) bool {
			return pathutil.Fold(t.entries[order[i]].Path) >= prefix
		})
		for _, i := range order[start:] {
			if !strings.HasPrefix(pathutil.Fold(t.entries[i].Path), prefix) {
				return
			}
			if !yield(&t.entries[i]) {
				return
			}
		}
	}
}

func (t *Table) sortedIndices() []int {
	t.sortOnce.Do(func() {
		t.sorted = make([]int, len(t.entries))
		for i := range t.sorted {
			t.sorted[i] = i
		}
		sort.Slice(t.sorted, func(a, b int) bool {
			return pathutil.Fold(t.entries[t.sorted[a]].Path) < pathutil.Fold(t.entries[t.sorted[b]].Path)
		})
	})
	return t.sorted
}

// Marshal encodes the table in wire order.
func (t *Table) Marshal() ([]byte, error) {
	size := 0
	for i := range t.entries {
		if len(t.entries[i].Path) > math.MaxUint16 {
			return nil, fmt.Errorf("%w: path is %d bytes", ipftype.ErrSizeOverflow, len(t.entries[i].Path))
		}
		size += EntryHeaderSize + len(t.entries[i].Path)
	}

	data := make([]byte, 0, size)
	for i := range t.entries {
		data = appendEntry(data, &t.entries[i])
	}
	return data, nil
}

func appendEntry(data []byte, e *ipftype.Entry) []byte {
	var hdr [EntryHeaderSize]byte
	binary.LittleEndian.PutUint16(hdr[entryPathLenSO:entryPathLenEO], uint16(len(e.Path)))
	binary.LittleEndian.PutUint32(hdr[entryCRCSO:entryCRCEO], e.Checksum)
	binary.LittleEndian.PutUint32(hdr[entryCompSO:entryCompEO], e.CompressedSize)
	binary.LittleEndian.PutUint32(hdr[entryUncompSO:entryUncompEO], e.UncompressedSize)
	binary.LittleEndian.PutUint64(hdr[entryOffsetSO:entryOffsetEO], e.DataOffset)
	hdr[entryMethodSO] = byte(e.Compression)
	binary.LittleEndian.PutUint16(hdr[entryContainerSO:entryContainerEO], e.Container)
	data = append(data, hdr[:]...)
	return append(data, e.Path...)
}

// ParseTable decodes count entries from data. dataEnd is the end of the
// primary data region; blocks in container zero must fit inside it.
// Blocks in other containers are bounds-checked against their volume at
// read time.
func ParseTable(data []byte, count uint32, dataEnd uint64) (*Table, error) {
	if uint64(count)*EntryHeaderSize > uint64(len(data)) {
		return nil, fmt.Errorf("%w: %d entries cannot fit in %d bytes",
			ipftype.ErrTruncatedTable, count, len(data))
	}

	t := NewTable()
	t.entries = make([]ipftype.Entry, 0, count)
	off := 0
	for range count {
		e, n, err := parseEntry(data[off:])
		if err != nil {
			return nil, err
		}
		if e.Container == 0 {
			end, ok := sizing.AddUint64(e.DataOffset, uint64(e.CompressedSize))
			if !ok || end > dataEnd {
				return nil, fmt.Errorf("%w: %q block [%d, %d) exceeds data region",
					ipftype.ErrTruncatedArchive, e.Path, e.DataOffset, end)
			}
		}
		if err := t.Add(e); err != nil {
			return nil, err
		}
		off += n
	}
	if off != len(data) {
		return nil, fmt.Errorf("%w: %d trailing bytes after file table",
			ipftype.ErrInvalidArchive, len(data)-off)
	}
	return t, nil
}

func parseEntry(data []byte) (ipftype.Entry, int, error) {
	var e ipftype.Entry
	if len(data) < EntryHeaderSize {
		return e, 0, fmt.Errorf("%w: entry header cut short", ipftype.ErrTruncatedTable)
	}

	pathLen := int(binary.LittleEndian.Uint16(data[entryPathLenSO:entryPathLenEO]))
	if len(data) < EntryHeaderSize+pathLen {
		return e, 0, fmt.Errorf("%w: entry path cut short", ipftype.ErrTruncatedTable)
	}

	e.Path = string(data[EntryHeaderSize : EntryHeaderSize+pathLen])
	e.Checksum = binary.LittleEndian.Uint32(data[entryCRCSO:entryCRCEO])
	e.CompressedSize = binary.LittleEndian.Uint32(data[entryCompSO:entryCompEO])
	e.UncompressedSize = binary.LittleEndian.Uint32(data[entryUncompSO:entryUncompEO])
	e.DataOffset = binary.LittleEndian.Uint64(data[entryOffsetSO:entryOffsetEO])
	e.Compression = ipftype.Compression(data[entryMethodSO])
	e.Container = binary.LittleEndian.Uint16(data[entryContainerSO:entryContainerEO])

	if !fs.ValidPath(e.Path) || e.Path == "." {
		return e, 0, fmt.Errorf("%w: entry path %q", ipftype.ErrInvalidArchive, e.Path)
	}
	if !e.Compression.Valid() {
		return e, 0, fmt.Errorf("%w: %q uses unknown compression method %d",
			ipftype.ErrInvalidArchive, e.Path, e.Compression)
	}
	if e.Stored() && e.CompressedSize != e.UncompressedSize {
		return e, 0, fmt.Errorf("%w: %q stored sizes disagree (%d != %d)",
			ipftype.ErrInvalidArchive, e.Path, e.CompressedSize, e.UncompressedSize)
	}
	return e, EntryHeaderSize + pathLen, nil
}
