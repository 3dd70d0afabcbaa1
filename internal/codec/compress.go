// Package codec encodes and decodes the stored blocks of an archive:
// raw DEFLATE streams or verbatim bytes, checksummed with CRC-32.
package codec

import (
	"bytes"
	"fmt"
	"hash/crc32"
	"sync"

	"github.com/klauspost/compress/flate"

	"github.com/meigma/ipf/internal/ipftype"
)

// DefaultLevel is the deflate level used when none is configured.
const DefaultLevel = flate.DefaultCompression

// Checksum returns the CRC-32 (IEEE) of data, the sum stored in file
// table entries. It is always computed over uncompressed content.
func Checksum(data []byte) uint32 {
	return crc32.ChecksumIEEE(data)
}

// Compressor produces stored blocks from file content.
// It is safe for concurrent use; encoders are pooled per instance.
type Compressor struct {
	level int
	pool  sync.Pool
}

// NewCompressor creates a Compressor for the given deflate level.
// Levels follow flate: -1 default, 0 store only, 1 fastest through 9 best.
func NewCompressor(level int) (*Compressor, error) {
	if level < flate.HuffmanOnly || level > flate.BestCompression {
		return nil, fmt.Errorf("ipf: invalid compression level %d", level)
	}
	return &Compressor{level: level}, nil
}

// Encode returns the stored block for content and the method used.
// The block is a raw deflate stream when that is strictly smaller than
// the content, and the content itself otherwise. Empty content is
// always stored raw. The returned slice aliases content for raw blocks.
func (c *Compressor) Encode(content []byte) ([]byte, ipftype.Compression, error) {
	if len(content) == 0 || c.level == flate.NoCompression {
		return content, ipftype.CompressionNone, nil
	}

	buf := bytes.NewBuffer(make([]byte, 0, len(content)))
	fw, err := c.getWriter(buf)
	if err != nil {
		return nil, 0, err
	}
	_, werr := fw.Write(content)
	if werr == nil {
		werr = fw.Close()
	}
	c.pool.Put(fw)
	if werr != nil {
		return nil, 0, fmt.Errorf("ipf: deflate: %w", werr)
	}

	if buf.Len() >= len(content) {
		return content, ipftype.CompressionNone, nil
	}
	return buf.Bytes(), ipftype.CompressionDeflate, nil
}

func (c *Compressor) getWriter(buf *bytes.Buffer) (*flate.Writer, error) {
	if fw, ok := c.pool.Get().(*flate.Writer); ok {
		fw.Reset(buf)
		return fw, nil
	}
	return flate.NewWriter(buf, c.level)
}
