package ipf

import (
	"log/slog"

	"github.com/meigma/ipf/internal/write"
)

// DefaultMaxFiles is the default limit used when no MaxFiles option is set.
const DefaultMaxFiles = 200_000

// ChangeDetection controls how strictly file changes are detected during creation.
type ChangeDetection uint8

const (
	ChangeDetectionNone ChangeDetection = iota
	ChangeDetectionStrict
)

// SkipCompressionFunc returns true when a file should be stored raw.
// It is called once per file and should be inexpensive.
type SkipCompressionFunc = write.SkipCompressionFunc

// DefaultSkipCompression returns a SkipCompressionFunc that skips small files
// and known already-compressed extensions.
var DefaultSkipCompression = write.DefaultSkipCompression

// createConfig holds configuration for archive creation.
type createConfig struct {
	revision        uint32
	baseRevision    uint32
	level           int
	storeOnly       bool
	changeDetection ChangeDetection
	skipCompression []SkipCompressionFunc
	maxFiles        int
	progress        ProgressFunc
	logger          *slog.Logger
}

// CreateOption configures archive creation.
type CreateOption func(*createConfig)

// CreateWithRevision sets the revision number recorded in the footer.
// The default is 0.
func CreateWithRevision(rev uint32) CreateOption {
	return func(cfg *createConfig) {
		cfg.revision = rev
	}
}

// CreateWithBaseRevision marks the archive as a patch over the given
// base revision. The default is FullArchive, identifying a complete
// archive rather than a patch.
func CreateWithBaseRevision(base uint32) CreateOption {
	return func(cfg *createConfig) {
		cfg.baseRevision = base
	}
}

// CreateWithLevel sets the deflate compression level.
// Levels follow flate: -1 default, 0 store only, 1 fastest through 9
// best. The default is the standard deflate level.
func CreateWithLevel(level int) CreateOption {
	return func(cfg *createConfig) {
		cfg.level = level
	}
}

// CreateWithStoreOnly stores all files raw without attempting
// compression. Equivalent to CreateWithLevel(0).
func CreateWithStoreOnly() CreateOption {
	return func(cfg *createConfig) {
		cfg.storeOnly = true
	}
}

// CreateWithChangeDetection controls whether the builder verifies files did not
// change during archive creation. The zero value disables change detection to
// reduce syscalls; enable ChangeDetectionStrict for stronger guarantees.
func CreateWithChangeDetection(cd ChangeDetection) CreateOption {
	return func(cfg *createConfig) {
		cfg.changeDetection = cd
	}
}

// CreateWithSkipCompression adds predicates that decide to store a file raw.
// If any predicate returns true, compression is skipped for that file.
// These checks are on the hot path, so keep them cheap.
func CreateWithSkipCompression(fns ...SkipCompressionFunc) CreateOption {
	return func(cfg *createConfig) {
		cfg.skipCompression = append(cfg.skipCompression, fns...)
	}
}

// CreateWithMaxFiles limits the number of files included in the archive.
// Zero uses DefaultMaxFiles. Negative means no limit.
func CreateWithMaxFiles(n int) CreateOption {
	return func(cfg *createConfig) {
		cfg.maxFiles = n
	}
}

// CreateWithProgress sets a callback invoked as files are written.
func CreateWithProgress(fn ProgressFunc) CreateOption {
	return func(cfg *createConfig) {
		cfg.progress = fn
	}
}

// CreateWithLogger sets the logger for creation operations.
// If not set, logging is disabled.
func CreateWithLogger(logger *slog.Logger) CreateOption {
	return func(cfg *createConfig) {
		cfg.logger = logger
	}
}
