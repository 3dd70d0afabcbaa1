package ipf

import (
	"bytes"
	"context"
	"fmt"
	"io/fs"
	"math/rand"
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/meigma/ipf/internal/testutil"
)

var (
	benchSinkBytes []byte
	benchSinkEntry *Entry
	benchSinkInt   int
	benchSinkFile  fs.File
	errBenchSink   error //nolint:errname // not a sentinel error, just a sink variable
	benchSinkInfo  fs.FileInfo
	benchSinkDirs  []fs.DirEntry
)

type benchPattern string

const (
	benchPatternCompressible benchPattern = "compressible"
	benchPatternRandom       benchPattern = "random"

	benchDirCount = 16
)

func init() {
	if os.Getenv("IPF_PROFILE_BLOCK") == "1" {
		runtime.SetBlockProfileRate(1)
	}
	if os.Getenv("IPF_PROFILE_MUTEX") == "1" {
		runtime.SetMutexProfileFraction(1)
	}
}

func BenchmarkCreate(b *testing.B) {
	cases := []struct {
		name      string
		fileCount int
		fileSize  int
		pattern   benchPattern
		opts      []CreateOption
	}{
		{
			name:      "files=128/size=16k/store/compressible",
			fileCount: 128,
			fileSize:  16 << 10,
			pattern:   benchPatternCompressible,
			opts:      []CreateOption{CreateWithStoreOnly()},
		},
		{
			name:      "files=128/size=16k/deflate/compressible",
			fileCount: 128,
			fileSize:  16 << 10,
			pattern:   benchPatternCompressible,
		},
		{
			name:      "files=128/size=16k/deflate/random",
			fileCount: 128,
			fileSize:  16 << 10,
			pattern:   benchPatternRandom,
		},
	}

	for _, bc := range cases {
		b.Run(bc.name, func(b *testing.B) {
			dir := b.TempDir()
			makeBenchFiles(b, dir, bc.fileCount, bc.fileSize, bc.pattern)

			totalBytes := int64(bc.fileCount * bc.fileSize)
			if totalBytes > 0 {
				b.SetBytes(totalBytes)
			}

			var buf bytes.Buffer
			b.ReportAllocs()
			b.ResetTimer()
			for b.Loop() {
				buf.Reset()
				if err := Create(context.Background(), dir, &buf, bc.opts...); err != nil {
					b.Fatal(err)
				}
			}
		})
	}
}

func BenchmarkNew(b *testing.B) {
	cases := []struct {
		name      string
		fileCount int
	}{
		{name: "files=64", fileCount: 64},
		{name: "files=1024", fileCount: 1024},
	}

	const fileSize = 4 << 10

	for _, bc := range cases {
		b.Run(bc.name, func(b *testing.B) {
			dir := b.TempDir()
			makeBenchFiles(b, dir, bc.fileCount, fileSize, benchPatternCompressible)
			source := testutil.NewMockByteSource(buildBenchArchive(b, dir, CreateWithStoreOnly()))

			b.ReportAllocs()
			b.ResetTimer()
			for b.Loop() {
				a, err := New(source)
				if err != nil {
					b.Fatal(err)
				}
				benchSinkInt = a.Len()
			}
		})
	}
}

func BenchmarkEntry(b *testing.B) {
	cases := []struct {
		name      string
		fileCount int
	}{
		{name: "files=64", fileCount: 64},
		{name: "files=1024", fileCount: 1024},
	}

	const fileSize = 4 << 10

	for _, bc := range cases {
		b.Run(bc.name, func(b *testing.B) {
			dir := b.TempDir()
			paths := makeBenchFiles(b, dir, bc.fileCount, fileSize, benchPatternCompressible)
			a := openBenchArchive(b, dir, CreateWithStoreOnly())
			missingPath := "missing/file.txt"

			b.Run("hit", func(b *testing.B) {
				b.ReportAllocs()
				b.ResetTimer()
				for i := 0; b.Loop(); i++ {
					path := paths[i%len(paths)]
					e, ok := a.Entry(path)
					if !ok {
						b.Fatalf("missing entry for %q", path)
					}
					benchSinkEntry = e
				}
			})

			b.Run("miss", func(b *testing.B) {
				b.ReportAllocs()
				b.ResetTimer()
				for b.Loop() {
					e, ok := a.Entry(missingPath)
					if ok {
						b.Fatal("expected miss")
					}
					benchSinkEntry = e
				}
			})
		})
	}
}

func BenchmarkEntriesWithPrefix(b *testing.B) {
	cases := []struct {
		name      string
		fileCount int
	}{
		{name: "files=256", fileCount: 256},
		{name: "files=1024", fileCount: 1024},
	}

	const fileSize = 4 << 10

	for _, bc := range cases {
		b.Run(bc.name, func(b *testing.B) {
			dir := b.TempDir()
			makeBenchFiles(b, dir, bc.fileCount, fileSize, benchPatternCompressible)
			a := openBenchArchive(b, dir, CreateWithStoreOnly())
			prefix := "dir00/"

			b.ReportAllocs()
			b.ResetTimer()
			for b.Loop() {
				count := 0
				for range a.EntriesWithPrefix(prefix) {
					count++
				}
				if count == 0 {
					b.Fatal("expected at least one entry for prefix")
				}
				benchSinkInt = count
			}
		})
	}
}

func BenchmarkReadFile(b *testing.B) {
	cases := []struct {
		name      string
		fileCount int
		fileSize  int
	}{
		{name: "files=64/size=4k", fileCount: 64, fileSize: 4 << 10},
		{name: "files=64/size=64k", fileCount: 64, fileSize: 64 << 10},
		{name: "files=64/size=1m", fileCount: 64, fileSize: 1 << 20},
	}

	patterns := []benchPattern{benchPatternCompressible, benchPatternRandom}
	modes := []struct {
		name string
		opts []CreateOption
	}{
		{name: "store", opts: []CreateOption{CreateWithStoreOnly()}},
		{name: "deflate"},
	}

	for _, bc := range cases {
		for _, pattern := range patterns {
			for _, mode := range modes {
				name := fmt.Sprintf("%s/%s/%s", bc.name, pattern, mode.name)
				b.Run(name, func(b *testing.B) {
					dir := b.TempDir()
					paths := makeBenchFiles(b, dir, bc.fileCount, bc.fileSize, pattern)
					a := openBenchArchive(b, dir, mode.opts...)

					if bc.fileSize > 0 {
						b.SetBytes(int64(bc.fileSize))
					}

					b.ReportAllocs()
					b.ResetTimer()
					for i := 0; b.Loop(); i++ {
						path := paths[i%len(paths)]
						content, err := a.ReadFile(path)
						if err != nil {
							b.Fatal(err)
						}
						benchSinkBytes = content
					}
				})
			}
		}
	}
}

func BenchmarkVerify(b *testing.B) {
	modes := []struct {
		name string
		opts []CreateOption
	}{
		{name: "store", opts: []CreateOption{CreateWithStoreOnly()}},
		{name: "deflate"},
	}

	const (
		fileCount = 256
		fileSize  = 16 << 10
	)

	for _, mode := range modes {
		b.Run(mode.name, func(b *testing.B) {
			dir := b.TempDir()
			makeBenchFiles(b, dir, fileCount, fileSize, benchPatternCompressible)
			a := openBenchArchive(b, dir, mode.opts...)

			b.SetBytes(int64(fileCount * fileSize))
			b.ReportAllocs()
			b.ResetTimer()
			for b.Loop() {
				if err := a.Verify(); err != nil {
					b.Fatal(err)
				}
			}
		})
	}
}

func BenchmarkArchiveOpen(b *testing.B) {
	cases := []struct {
		name      string
		fileCount int
	}{
		{name: "files=64", fileCount: 64},
		{name: "files=1024", fileCount: 1024},
	}

	const fileSize = 4 << 10

	for _, bc := range cases {
		b.Run(bc.name, func(b *testing.B) {
			dir := b.TempDir()
			paths := makeBenchFiles(b, dir, bc.fileCount, fileSize, benchPatternCompressible)
			a := openBenchArchive(b, dir, CreateWithStoreOnly())
			missingPath := "missing/file.txt"
			dirPath := "dir00"

			b.Run("file", func(b *testing.B) {
				b.ReportAllocs()
				b.ResetTimer()
				for i := 0; b.Loop(); i++ {
					path := paths[i%len(paths)]
					f, err := a.Open(path)
					if err != nil {
						b.Fatal(err)
					}
					benchSinkFile = f
				}
			})

			b.Run("dir", func(b *testing.B) {
				b.ReportAllocs()
				b.ResetTimer()
				for b.Loop() {
					f, err := a.Open(dirPath)
					if err != nil {
						b.Fatal(err)
					}
					benchSinkFile = f
				}
			})

			b.Run("missing", func(b *testing.B) {
				b.ReportAllocs()
				b.ResetTimer()
				for b.Loop() {
					f, err := a.Open(missingPath)
					if err == nil {
						b.Fatal("expected error")
					}
					benchSinkFile = f
					errBenchSink = err
				}
			})
		})
	}
}

func BenchmarkArchiveStat(b *testing.B) {
	cases := []struct {
		name      string
		fileCount int
	}{
		{name: "files=64", fileCount: 64},
		{name: "files=1024", fileCount: 1024},
	}

	const fileSize = 4 << 10

	for _, bc := range cases {
		b.Run(bc.name, func(b *testing.B) {
			dir := b.TempDir()
			paths := makeBenchFiles(b, dir, bc.fileCount, fileSize, benchPatternCompressible)
			a := openBenchArchive(b, dir, CreateWithStoreOnly())
			missingPath := "missing/file.txt"
			dirPath := "dir00"

			b.Run("file", func(b *testing.B) {
				b.ReportAllocs()
				b.ResetTimer()
				for i := 0; b.Loop(); i++ {
					path := paths[i%len(paths)]
					info, err := a.Stat(path)
					if err != nil {
						b.Fatal(err)
					}
					benchSinkInfo = info
				}
			})

			b.Run("dir", func(b *testing.B) {
				b.ReportAllocs()
				b.ResetTimer()
				for b.Loop() {
					info, err := a.Stat(dirPath)
					if err != nil {
						b.Fatal(err)
					}
					benchSinkInfo = info
				}
			})

			b.Run("missing", func(b *testing.B) {
				b.ReportAllocs()
				b.ResetTimer()
				for b.Loop() {
					info, err := a.Stat(missingPath)
					if err == nil {
						b.Fatal("expected error")
					}
					benchSinkInfo = info
					errBenchSink = err
				}
			})
		})
	}
}

func BenchmarkArchiveReadDir(b *testing.B) {
	cases := []struct {
		name      string
		fileCount int
	}{
		{name: "files=64", fileCount: 64},
		{name: "files=1024", fileCount: 1024},
	}

	const fileSize = 4 << 10

	for _, bc := range cases {
		b.Run(bc.name, func(b *testing.B) {
			dir := b.TempDir()
			makeBenchFiles(b, dir, bc.fileCount, fileSize, benchPatternCompressible)
			a := openBenchArchive(b, dir, CreateWithStoreOnly())

			dirPath := "dir00"
			rootPath := "."
			missingPath := "missing"

			dirEntries := countBenchDirEntries(bc.fileCount, benchDirCount)
			rootEntries := bc.fileCount
			if rootEntries > benchDirCount {
				rootEntries = benchDirCount
			}

			b.Run("dir", func(b *testing.B) {
				b.ReportAllocs()
				b.ResetTimer()
				for b.Loop() {
					entries, err := a.ReadDir(dirPath)
					if err != nil {
						b.Fatal(err)
					}
					if len(entries) != dirEntries {
						b.Fatalf("unexpected entry count: %d", len(entries))
					}
					benchSinkDirs = entries
				}
			})

			b.Run("root", func(b *testing.B) {
				b.ReportAllocs()
				b.ResetTimer()
				for b.Loop() {
					entries, err := a.ReadDir(rootPath)
					if err != nil {
						b.Fatal(err)
					}
					if len(entries) != rootEntries {
						b.Fatalf("unexpected entry count: %d", len(entries))
					}
					benchSinkDirs = entries
				}
			})

			b.Run("missing", func(b *testing.B) {
				b.ReportAllocs()
				b.ResetTimer()
				for b.Loop() {
					entries, err := a.ReadDir(missingPath)
					if err == nil {
						b.Fatal("expected error")
					}
					benchSinkDirs = entries
					errBenchSink = err
				}
			})
		})
	}
}

func BenchmarkExtractAll(b *testing.B) {
	benchmarkExtractAll(b, "serial", -1)
	benchmarkExtractAll(b, "parallel", runtime.GOMAXPROCS(0))
}

func benchmarkExtractAll(b *testing.B, label string, workers int) {
	b.Helper()

	cases := []struct {
		name      string
		fileCount int
		fileSize  int
		pattern   benchPattern
		opts      []CreateOption
	}{
		{
			name:      "files=512/size=16k/store/compressible",
			fileCount: 512,
			fileSize:  16 << 10,
			pattern:   benchPatternCompressible,
			opts:      []CreateOption{CreateWithStoreOnly()},
		},
		{
			name:      "files=512/size=16k/deflate/compressible",
			fileCount: 512,
			fileSize:  16 << 10,
			pattern:   benchPatternCompressible,
		},
		{
			name:      "files=512/size=16k/deflate/random",
			fileCount: 512,
			fileSize:  16 << 10,
			pattern:   benchPatternRandom,
		},
		{
			name:      "files=2048/size=16k/deflate/compressible",
			fileCount: 2048,
			fileSize:  16 << 10,
			pattern:   benchPatternCompressible,
		},
	}

	for _, bc := range cases {
		b.Run(fmt.Sprintf("%s/%s", label, bc.name), func(b *testing.B) {
			dir := b.TempDir()
			makeBenchFiles(b, dir, bc.fileCount, bc.fileSize, bc.pattern)
			a := openBenchArchive(b, dir, bc.opts...)

			totalBytes := int64(bc.fileCount * bc.fileSize)
			if totalBytes > 0 {
				b.SetBytes(totalBytes)
			}

			destRoot := b.TempDir()
			opts := []ExtractOption{ExtractWithWorkers(workers)}

			b.ReportAllocs()
			b.ResetTimer()
			for i := 0; b.Loop(); i++ {
				b.StopTimer()
				destDir := filepath.Join(destRoot, fmt.Sprintf("iter-%d", i))
				if err := os.MkdirAll(destDir, 0o755); err != nil {
					b.Fatal(err)
				}
				b.StartTimer()

				if _, err := a.ExtractAll(context.Background(), destDir, opts...); err != nil {
					b.Fatal(err)
				}

				b.StopTimer()
				if err := os.RemoveAll(destDir); err != nil {
					b.Fatal(err)
				}
				b.StartTimer()
			}
		})
	}
}

func makeBenchFiles(b *testing.B, dir string, fileCount, fileSize int, pattern benchPattern) []string {
	b.Helper()

	paths := make([]string, 0, fileCount)
	rng := rand.New(rand.NewSource(1))
	for i := range fileCount {
		relPath := fmt.Sprintf("dir%02d/file%05d.dat", i%benchDirCount, i)
		fullPath := filepath.Join(dir, filepath.FromSlash(relPath))
		if err := os.MkdirAll(filepath.Dir(fullPath), 0o755); err != nil {
			b.Fatal(err)
		}

		content := make([]byte, fileSize)
		switch pattern {
		case benchPatternRandom:
			if _, err := rng.Read(content); err != nil {
				b.Fatal(err)
			}
		default:
			fillByte := byte('a' + (i % 26))
			for j := range content {
				content[j] = fillByte
			}
			if len(content) > 0 {
				content[0] = byte(i)
			}
		}

		if err := os.WriteFile(fullPath, content, 0o644); err != nil {
			b.Fatal(err)
		}
		paths = append(paths, relPath)
	}

	return paths
}

func countBenchDirEntries(fileCount, dirCount int) int {
	if fileCount <= 0 || dirCount <= 0 {
		return 0
	}
	return (fileCount + dirCount - 1) / dirCount
}

func buildBenchArchive(b *testing.B, dir string, opts ...CreateOption) []byte {
	b.Helper()

	var buf bytes.Buffer
	if err := Create(context.Background(), dir, &buf, opts...); err != nil {
		b.Fatal(err)
	}
	return buf.Bytes()
}

// openBenchArchive builds an archive from dir and opens it over an
// in-memory source.
func openBenchArchive(b *testing.B, dir string, opts ...CreateOption) *Archive {
	b.Helper()

	a, err := New(testutil.NewMockByteSource(buildBenchArchive(b, dir, opts...)))
	if err != nil {
		b.Fatal(err)
	}
	return a
}
