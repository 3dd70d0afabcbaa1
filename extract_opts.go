package ipf

// ExtractOption configures ExtractAll and ExtractPaths operations.
type ExtractOption func(*extractConfig)

type extractConfig struct {
	overwrite       bool
	bestEffort      bool
	workers         int
	readConcurrency int
	readAheadBytes  uint64
	filter          func(path string) bool
	progress        ProgressFunc
}

// ExtractWithOverwrite allows overwriting existing files.
// By default, existing files are skipped.
func ExtractWithOverwrite(overwrite bool) ExtractOption {
	return func(c *extractConfig) {
		c.overwrite = overwrite
	}
}

// ExtractWithBestEffort tolerates corrupt entries instead of aborting.
//
// Entries whose block fails to decode or whose checksum does not match
// are skipped and counted in the returned stats; extraction continues
// with the remaining entries. IO errors still abort.
func ExtractWithBestEffort() ExtractOption {
	return func(c *extractConfig) {
		c.bestEffort = true
	}
}

// ExtractWithWorkers sets the number of workers for parallel decoding.
// Values < 0 force serial processing. Zero uses automatic heuristics.
// Values > 0 force a specific worker count.
func ExtractWithWorkers(n int) ExtractOption {
	return func(c *extractConfig) {
		c.workers = n
	}
}

// ExtractWithReadConcurrency sets the number of concurrent range reads.
// Values < 1 force serial reads.
func ExtractWithReadConcurrency(n int) ExtractOption {
	return func(c *extractConfig) {
		c.readConcurrency = n
	}
}

// ExtractWithReadAhead caps the total bytes buffered ahead of decoding.
// A value of 0 disables the byte budget.
func ExtractWithReadAhead(limit uint64) ExtractOption {
	return func(c *extractConfig) {
		c.readAheadBytes = limit
	}
}

// ExtractWithFilter extracts only entries whose path satisfies keep.
// Paths are passed in their stored form.
func ExtractWithFilter(keep func(path string) bool) ExtractOption {
	return func(c *extractConfig) {
		c.filter = keep
	}
}

// ExtractWithProgress sets a callback invoked after each completed
// entry. The callback may be invoked concurrently from multiple
// workers.
func ExtractWithProgress(fn ProgressFunc) ExtractOption {
	return func(c *extractConfig) {
		c.progress = fn
	}
}
