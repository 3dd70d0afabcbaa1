package ipf

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"math/rand"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"

	"github.com/meigma/ipf/internal/testutil"
)

// TestArchiveProperties verifies invariants that must hold for any file
// tree, not just the fixtures used elsewhere.
func TestArchiveProperties(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping property-based test in short mode")
	}

	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 20

	properties := gopter.NewProperties(parameters)

	properties.Property("round trip preserves file content", prop.ForAll(
		func(seed int64, fileCount int) bool {
			files := randomFileTree(seed, fileCount)
			raw, err := buildArchiveBytes(t, files)
			if err != nil {
				return false
			}

			a, err := New(testutil.NewMockByteSource(raw))
			if err != nil {
				return false
			}
			if a.Len() != len(files) {
				return false
			}

			for path, content := range files {
				got, err := a.ReadFile(path)
				if err != nil {
					return false
				}
				if !bytes.Equal(got, content) {
					return false
				}
			}
			return a.Verify() == nil
		},
		gen.Int64(),
		gen.IntRange(0, 8),
	))

	properties.Property("data corruption never goes unnoticed", prop.ForAll(
		func(seed int64, pos uint32) bool {
			files := randomFileTree(seed, 4)
			raw, err := buildArchiveBytes(t, files)
			if err != nil {
				return false
			}

			// The data region spans [0, tableOff). Nothing to corrupt
			// when every file is empty.
			footerStart := len(raw) - FooterSize
			tableOff := binary.LittleEndian.Uint64(raw[footerStart+4 : footerStart+12])
			if tableOff == 0 {
				return true
			}
			raw[pos%uint32(tableOff)] ^= 0xFF

			a, err := New(testutil.NewMockByteSource(raw))
			if err != nil {
				return false
			}

			detected := false
			for path := range a.Paths() {
				_, err := a.ReadFile(path)
				if err == nil {
					continue
				}
				if !errors.Is(err, ErrChecksumMismatch) && !errors.Is(err, ErrCorruptData) {
					return false
				}
				detected = true
			}
			return detected
		},
		gen.Int64(),
		gen.UInt32(),
	))

	properties.Property("trailing truncation prevents opening", prop.ForAll(
		func(seed int64, cut int) bool {
			files := randomFileTree(seed, 3)
			raw, err := buildArchiveBytes(t, files)
			if err != nil {
				return false
			}

			_, err = New(testutil.NewMockByteSource(raw[:len(raw)-cut]))
			return err != nil
		},
		gen.Int64(),
		gen.IntRange(1, FooterSize),
	))

	properties.Property("revision metadata survives round trip", prop.ForAll(
		func(seed int64, rev, base uint32) bool {
			files := randomFileTree(seed, 2)
			raw, err := buildArchiveBytes(t, files,
				CreateWithRevision(rev),
				CreateWithBaseRevision(base),
			)
			if err != nil {
				return false
			}

			a, err := New(testutil.NewMockByteSource(raw))
			if err != nil {
				return false
			}
			if a.Revision() != rev || a.BaseRevision() != base {
				return false
			}
			return a.IsPatch() == (base != FullArchive)
		},
		gen.Int64(),
		gen.UInt32(),
		gen.UInt32(),
	))

	properties.TestingRun(t)
}

// randomFileTree derives a deterministic file tree from seed. Paths are
// lowercase so they never collide after case folding.
func randomFileTree(seed int64, n int) map[string][]byte {
	rng := rand.New(rand.NewSource(seed))
	files := make(map[string][]byte, n)
	for i := range n {
		var path string
		if i%4 == 0 {
			path = fmt.Sprintf("file%02d.dat", i)
		} else {
			path = fmt.Sprintf("dir%d/file%02d.dat", i%3, i)
		}

		size := rng.Intn(2048)
		content := make([]byte, size)
		if rng.Intn(2) == 0 {
			for j := range content {
				content[j] = byte('a' + j%4)
			}
		} else {
			rng.Read(content)
		}
		files[path] = content
	}
	return files
}

// buildArchiveBytes writes files to a fresh directory and archives it.
func buildArchiveBytes(t *testing.T, files map[string][]byte, opts ...CreateOption) ([]byte, error) {
	t.Helper()

	dir := t.TempDir()
	createTestFilesBytes(t, dir, files)

	var buf bytes.Buffer
	if err := Create(context.Background(), dir, &buf, opts...); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
