package ipftype

// ProgressStage identifies the phase a build or extraction is in.
type ProgressStage uint8

const (
	// StageEnumerating covers the directory walk ahead of a build.
	StageEnumerating ProgressStage = iota

	// StageCompressing covers encoding and writing entry blocks.
	StageCompressing

	// StageWritingTable covers the table and footer write that seals
	// an archive.
	StageWritingTable

	// StageExtracting covers writing decoded entries to disk.
	StageExtracting
)

var stageNames = [...]string{
	StageEnumerating:  "enumerating",
	StageCompressing:  "compressing",
	StageWritingTable: "writing table",
	StageExtracting:   "extracting",
}

// String returns the lowercase stage name.
func (s ProgressStage) String() string {
	if int(s) < len(stageNames) {
		return stageNames[s]
	}
	return "unknown"
}

// ProgressEvent is one progress update from a build or extraction.
type ProgressEvent struct {
	// Stage is the phase the operation is in.
	Stage ProgressStage

	// Path names the entry being processed, when one applies.
	Path string

	// FilesDone counts completed entries. FilesTotal is the expected
	// count, or zero while enumeration is still running.
	FilesDone  int
	FilesTotal int

	// BytesDone counts completed content bytes. BytesTotal is the
	// expected total, or zero when unknown.
	BytesDone  uint64
	BytesTotal uint64
}

// ProgressFunc receives progress updates. Calls may arrive from
// multiple goroutines at once.
type ProgressFunc func(ProgressEvent)
