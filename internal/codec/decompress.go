package codec

import (
	"bytes"
	"fmt"
	"io"
	"sync"

	"github.com/klauspost/compress/flate"

	"github.com/meigma/ipf/internal/ipftype"
)

// DecompressPool manages reusable flate readers to reduce allocation overhead.
// The zero value is usable; a nil pool falls back to one-off readers.
type DecompressPool struct {
	pool sync.Pool
}

// NewDecompressPool creates a pool for flate readers.
func NewDecompressPool() *DecompressPool {
	return &DecompressPool{}
}

// Decode decodes a stored block into its content. For raw blocks it
// returns the block unchanged after length checking. For deflate blocks
// it inflates into a buffer of wantSize bytes. A block that fails to
// decode or does not produce exactly wantSize bytes reports
// ipftype.ErrCorruptData.
func (p *DecompressPool) Decode(block []byte, method ipftype.Compression, wantSize int) ([]byte, error) {
	switch method {
	case ipftype.CompressionNone:
		if len(block) != wantSize {
			return nil, fmt.Errorf("%w: stored block is %d bytes, want %d",
				ipftype.ErrCorruptData, len(block), wantSize)
		}
		return block, nil
	case ipftype.CompressionDeflate:
		return p.inflate(block, wantSize)
	default:
		return nil, fmt.Errorf("%w: unknown compression method %d",
			ipftype.ErrCorruptData, method)
	}
}

func (p *DecompressPool) inflate(block []byte, wantSize int) ([]byte, error) {
	fr, release := p.get(block)
	defer release()

	content := make([]byte, wantSize)
	if _, err := io.ReadFull(fr, content); err != nil {
		return nil, fmt.Errorf("%w: inflate: %v", ipftype.ErrCorruptData, err)
	}

	// The stream must end exactly at wantSize.
	var extra [1]byte
	if n, err := fr.Read(extra[:]); n > 0 || err != io.EOF {
		return nil, fmt.Errorf("%w: deflate stream longer than %d bytes",
			ipftype.ErrCorruptData, wantSize)
	}
	return content, nil
}

// get returns a flate reader positioned at the start of block and a
// release function returning it to the pool.
func (p *DecompressPool) get(block []byte) (io.Reader, func()) {
	br := bytes.NewReader(block)
	if p == nil {
		return flate.NewReader(br), func() {}
	}

	if fr, ok := p.pool.Get().(io.ReadCloser); ok {
		if rs, ok := fr.(flate.Resetter); ok {
			if err := rs.Reset(br, nil); err == nil {
				return fr, func() { p.pool.Put(fr) }
			}
		}
		fr.Close() //nolint:errcheck // discarding unusable reader
	}

	fr := flate.NewReader(br)
	return fr, func() { p.pool.Put(fr) }
}
