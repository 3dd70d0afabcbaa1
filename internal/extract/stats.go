package extract

// Stats contains statistics from an extraction operation.
type Stats struct {
	// Extracted is the number of entries successfully written to the sink.
	Extracted int

	// Skipped is the number of entries skipped because the sink declined
	// them (existing files without overwrite).
	Skipped int

	// Corrupt is the number of entries skipped due to corruption in
	// best-effort mode. Always zero when best-effort is disabled.
	Corrupt int

	// TotalBytes is the sum of uncompressed sizes for extracted entries.
	TotalBytes uint64
}
