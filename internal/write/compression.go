// Package write provides build-side helpers for archive creation:
// compression skip predicates and file validation.
package write

import (
	"io/fs"
	"path/filepath"
	"strings"
)

// SkipCompressionFunc returns true when a file should be stored raw.
// It is called once per file and should be inexpensive.
type SkipCompressionFunc func(path string, info fs.FileInfo) bool

// DefaultSkipCompression returns a SkipCompressionFunc that skips small
// files and extensions that are already compressed. Deflating those
// wastes CPU; the encoder would fall back to storing them raw anyway.
func DefaultSkipCompression(minSize int64) SkipCompressionFunc {
	return func(path string, info fs.FileInfo) bool {
		if info != nil && minSize > 0 && info.Size() < minSize {
			return true
		}
		ext := strings.ToLower(filepath.Ext(path))
		_, ok := defaultSkipCompressionExts[ext]
		return ok
	}
}

// ShouldSkip checks if any predicate returns true for the given file.
func ShouldSkip(path string, info fs.FileInfo, predicates []SkipCompressionFunc) bool {
	for _, fn := range predicates {
		if fn == nil {
			continue
		}
		if fn(path, info) {
			return true
		}
	}
	return false
}

// Asset formats that carry their own compression. Game clients ship
// textures and audio in these containers alongside plain text data.
var defaultSkipCompressionExts = map[string]struct{}{
	".7z":   {},
	".aac":  {},
	".br":   {},
	".bz2":  {},
	".flac": {},
	".fsb":  {},
	".gif":  {},
	".gz":   {},
	".ipf":  {},
	".jpeg": {},
	".jpg":  {},
	".m4v":  {},
	".mp3":  {},
	".mp4":  {},
	".ogg":  {},
	".opus": {},
	".png":  {},
	".rar":  {},
	".webm": {},
	".webp": {},
	".xz":   {},
	".zip":  {},
	".zst":  {},
}
