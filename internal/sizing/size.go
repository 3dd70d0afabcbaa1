// Package sizing guards the integer crossings the wire format forces:
// 64-bit offsets and counts become ints for slice math, and file sizes
// narrow into the table's 32-bit fields. Every guard takes the error to
// report so callers surface their own sentinel.
package sizing

import (
	"io"
	"math"
)

// ToUint32 narrows v into a 32-bit table field.
// Negative values and values past MaxUint32 report overflowErr.
func ToUint32(v int64, overflowErr error) (uint32, error) {
	if v < 0 || v > math.MaxUint32 {
		return 0, overflowErr
	}
	return uint32(v), nil
}

// ToInt converts v to int for slice allocation and indexing.
func ToInt(v uint64, overflowErr error) (int, error) {
	if v > uint64(math.MaxInt) {
		return 0, overflowErr
	}
	return int(v), nil
}

// ToInt64 converts v to int64 for ReadAt offsets.
func ToInt64(v uint64, overflowErr error) (int64, error) {
	if v > uint64(math.MaxInt64) {
		return 0, overflowErr
	}
	return int64(v), nil
}

// AddUint64 returns a + b and whether the sum stayed in range.
// The sum is only meaningful when the second return is true.
func AddUint64(a, b uint64) (uint64, bool) {
	sum := a + b
	return sum, sum >= a
}

// ReadAllWithLimit reads r to EOF, reporting overflowErr when more than
// maxSize bytes are available. At most maxSize+1 bytes are buffered.
func ReadAllWithLimit(r io.Reader, maxSize uint64, overflowErr error) ([]byte, error) {
	if maxSize > uint64(math.MaxInt-1) {
		return nil, overflowErr
	}

	lr := io.LimitedReader{R: r, N: int64(maxSize) + 1} //nolint:gosec // bounded above
	data, err := io.ReadAll(&lr)
	switch {
	case err != nil:
		return nil, err
	case lr.N == 0:
		// The sentinel byte was consumed: r holds more than maxSize.
		return nil, overflowErr
	}
	return data, nil
}
