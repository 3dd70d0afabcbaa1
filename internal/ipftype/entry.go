package ipftype

// Entry describes one file stored in an archive.
type Entry struct {
	// Path is the file path relative to the archive root (e.g., "addon/a.lua").
	// Stored with its original case; lookups fold case.
	Path string

	// DataOffset is the byte offset in the data region where the stored
	// bytes for this file begin.
	DataOffset uint64

	// CompressedSize is the size in bytes of the stored block.
	// Equal to UncompressedSize for raw entries.
	CompressedSize uint32

	// UncompressedSize is the size in bytes of the file content.
	UncompressedSize uint32

	// Checksum is the CRC-32 (IEEE) of the uncompressed file content.
	Checksum uint32

	// Compression is the method used for the stored block.
	Compression Compression

	// Container identifies the volume holding the stored block.
	// Zero is the archive file itself.
	Container uint16
}

// Stored reports whether the entry's block is the file content verbatim.
func (e *Entry) Stored() bool {
	return e.Compression == CompressionNone
}
