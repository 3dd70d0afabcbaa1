package codec

import (
	"bytes"
	"hash/crc32"
	"testing"

	"github.com/klauspost/compress/flate"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/meigma/ipf/internal/ipftype"
)

// compressible returns content that deflate shrinks substantially.
func compressible(n int) []byte {
	return bytes.Repeat([]byte("the quick brown fox "), n)
}

func TestNewCompressor(t *testing.T) {
	t.Parallel()

	t.Run("valid levels", func(t *testing.T) {
		t.Parallel()
		for _, level := range []int{flate.HuffmanOnly, flate.DefaultCompression, flate.NoCompression, 1, 6, 9} {
			_, err := NewCompressor(level)
			assert.NoError(t, err, "level %d", level)
		}
	})

	t.Run("invalid level", func(t *testing.T) {
		t.Parallel()
		_, err := NewCompressor(10)
		assert.Error(t, err)
	})
}

func TestCompressorEncode(t *testing.T) {
	t.Parallel()

	c, err := NewCompressor(DefaultLevel)
	require.NoError(t, err)

	t.Run("compressible content deflates", func(t *testing.T) {
		t.Parallel()
		content := compressible(100)
		block, method, err := c.Encode(content)
		require.NoError(t, err)
		assert.Equal(t, ipftype.CompressionDeflate, method)
		assert.Less(t, len(block), len(content))
	})

	t.Run("incompressible content stored raw", func(t *testing.T) {
		t.Parallel()
		// A short high-entropy block that deflate cannot shrink.
		content := []byte{0x01, 0xfe, 0x42, 0x9a, 0x77, 0x03, 0xc8, 0x5d}
		block, method, err := c.Encode(content)
		require.NoError(t, err)
		assert.Equal(t, ipftype.CompressionNone, method)
		assert.Equal(t, content, block)
	})

	t.Run("empty content stored raw", func(t *testing.T) {
		t.Parallel()
		block, method, err := c.Encode(nil)
		require.NoError(t, err)
		assert.Equal(t, ipftype.CompressionNone, method)
		assert.Empty(t, block)
	})

	t.Run("store-only level never deflates", func(t *testing.T) {
		t.Parallel()
		stored, err := NewCompressor(flate.NoCompression)
		require.NoError(t, err)
		content := compressible(100)
		block, method, err := stored.Encode(content)
		require.NoError(t, err)
		assert.Equal(t, ipftype.CompressionNone, method)
		assert.Equal(t, content, block)
	})

	t.Run("reuse across calls", func(t *testing.T) {
		t.Parallel()
		for range 5 {
			content := compressible(50)
			block, method, err := c.Encode(content)
			require.NoError(t, err)
			require.Equal(t, ipftype.CompressionDeflate, method)
			got, err := NewDecompressPool().Decode(block, method, len(content))
			require.NoError(t, err)
			assert.Equal(t, content, got)
		}
	})
}

func TestDecompressPoolDecode(t *testing.T) {
	t.Parallel()

	c, err := NewCompressor(DefaultLevel)
	require.NoError(t, err)
	p := NewDecompressPool()

	t.Run("round trip", func(t *testing.T) {
		t.Parallel()
		content := compressible(200)
		block, method, err := c.Encode(content)
		require.NoError(t, err)
		got, err := p.Decode(block, method, len(content))
		require.NoError(t, err)
		assert.Equal(t, content, got)
	})

	t.Run("raw block round trip", func(t *testing.T) {
		t.Parallel()
		content := []byte("small")
		got, err := p.Decode(content, ipftype.CompressionNone, len(content))
		require.NoError(t, err)
		assert.Equal(t, content, got)
	})

	t.Run("raw block wrong size", func(t *testing.T) {
		t.Parallel()
		_, err := p.Decode([]byte("small"), ipftype.CompressionNone, 10)
		assert.ErrorIs(t, err, ipftype.ErrCorruptData)
	})

	t.Run("garbage deflate stream", func(t *testing.T) {
		t.Parallel()
		_, err := p.Decode([]byte{0xff, 0xff, 0xff, 0xff}, ipftype.CompressionDeflate, 16)
		assert.ErrorIs(t, err, ipftype.ErrCorruptData)
	})

	t.Run("truncated deflate stream", func(t *testing.T) {
		t.Parallel()
		content := compressible(200)
		block, method, err := c.Encode(content)
		require.NoError(t, err)
		require.Equal(t, ipftype.CompressionDeflate, method)
		_, err = p.Decode(block[:len(block)/2], method, len(content))
		assert.ErrorIs(t, err, ipftype.ErrCorruptData)
	})

	t.Run("stream longer than declared size", func(t *testing.T) {
		t.Parallel()
		content := compressible(200)
		block, method, err := c.Encode(content)
		require.NoError(t, err)
		require.Equal(t, ipftype.CompressionDeflate, method)
		_, err = p.Decode(block, method, len(content)-1)
		assert.ErrorIs(t, err, ipftype.ErrCorruptData)
	})

	t.Run("unknown method", func(t *testing.T) {
		t.Parallel()
		_, err := p.Decode([]byte("x"), ipftype.Compression(7), 1)
		assert.ErrorIs(t, err, ipftype.ErrCorruptData)
	})

	t.Run("pool reuse", func(t *testing.T) {
		t.Parallel()
		for range 10 {
			content := compressible(30)
			block, method, err := c.Encode(content)
			require.NoError(t, err)
			got, err := p.Decode(block, method, len(content))
			require.NoError(t, err)
			require.Equal(t, content, got)
		}
	})
}

func TestChecksum(t *testing.T) {
	t.Parallel()

	t.Run("matches crc32 ieee", func(t *testing.T) {
		t.Parallel()
		data := []byte("hello world")
		assert.Equal(t, crc32.ChecksumIEEE(data), Checksum(data))
	})

	t.Run("empty content", func(t *testing.T) {
		t.Parallel()
		assert.Equal(t, uint32(0), Checksum(nil))
	})

	t.Run("single bit flip changes sum", func(t *testing.T) {
		t.Parallel()
		data := []byte("hello world")
		sum := Checksum(data)
		data[0] ^= 0x01
		assert.NotEqual(t, sum, Checksum(data))
	})
}
