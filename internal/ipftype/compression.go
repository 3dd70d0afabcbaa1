package ipftype

// Compression identifies how an entry's block is stored.
type Compression uint8

const (
	CompressionNone    Compression = 0
	CompressionDeflate Compression = 1
)

// String returns the human-readable name of the compression method.
func (c Compression) String() string {
	switch c {
	case CompressionNone:
		return "none"
	case CompressionDeflate:
		return "deflate"
	default:
		return "unknown"
	}
}

// Valid reports whether c is a method this package can decode.
func (c Compression) Valid() bool {
	return c == CompressionNone || c == CompressionDeflate
}
