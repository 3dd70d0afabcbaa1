package ipf

import "log/slog"

// DefaultMaxFileSize is the default maximum per-entry size (256MB).
const DefaultMaxFileSize = 256 << 20

// Option configures an Archive.
type Option func(*Archive)

// WithMaxFileSize limits the maximum per-entry size (uncompressed).
// Set limit to 0 to disable the limit.
func WithMaxFileSize(limit uint64) Option {
	return func(a *Archive) {
		a.maxFileSize = limit
	}
}

// WithLogger sets the logger for archive operations.
// If not set, logging is disabled.
func WithLogger(logger *slog.Logger) Option {
	return func(a *Archive) {
		a.logger = logger
	}
}

// WithVolume attaches a source for entries stored in the given container.
// Container 0 is the archive file itself and cannot be reattached.
// Reading an entry whose container has no attached source fails with
// ErrUnknownContainer.
func WithVolume(container uint16, source ByteSource) Option {
	return func(a *Archive) {
		if container == 0 {
			return
		}
		if a.volumes == nil {
			a.volumes = make(map[uint16]ByteSource)
		}
		a.volumes[container] = source
	}
}
