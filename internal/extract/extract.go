// Package extract implements batch extraction of archive entries.
//
// Entries are partitioned by container, sorted by data offset, and
// grouped into contiguous ranges so each range is fetched with a single
// read. Decoding and checksum verification run on a worker pool; reads
// can be pipelined ahead of decoding with a bounded byte budget.
package extract

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"maps"
	"runtime"
	"slices"
	"sync"
	"sync/atomic"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"

	"github.com/meigma/ipf/internal/codec"
	"github.com/meigma/ipf/internal/ipftype"
	"github.com/meigma/ipf/internal/sizing"
)

// parallelMinAvgBytes is the minimum average entry size to use parallel
// decoding. Below this threshold, serial processing is more efficient
// due to reduced overhead.
const parallelMinAvgBytes = 64 << 10 // 64KB

// ByteSource provides random access to a container's bytes.
type ByteSource interface {
	io.ReaderAt
	Size() int64
}

// Processor handles batch reading and extraction of entries.
//
// It groups adjacent blocks and reads them together, minimizing the
// number of read operations on the underlying sources.
type Processor struct {
	volumes          map[uint16]ByteSource
	pool             *codec.DecompressPool
	maxFileSize      uint64
	workers          int // 0 = auto, <0 = serial, >0 = fixed count
	readConcurrency  int
	readAheadBytes   uint64
	readAheadEnabled bool
	bestEffort       bool
	progress         ipftype.ProgressFunc
	logger           *slog.Logger
}

// log returns the logger, falling back to a discard logger if nil.
func (p *Processor) log() *slog.Logger {
	if p.logger == nil {
		return slog.New(slog.DiscardHandler)
	}
	return p.logger
}

// ProcessorOption configures a Processor.
type ProcessorOption func(*Processor)

// WithWorkers sets the number of workers for parallel decoding.
// Values < 0 force serial processing. Zero uses automatic heuristics.
// Values > 0 force a specific worker count.
func WithWorkers(n int) ProcessorOption {
	return func(p *Processor) {
		p.workers = n
	}
}

// WithReadConcurrency sets the number of concurrent range reads.
// Values < 1 force serial reads.
func WithReadConcurrency(n int) ProcessorOption {
	return func(p *Processor) {
		if n < 1 {
			n = 1
		}
		p.readConcurrency = n
	}
}

// WithReadAheadBytes caps the total size of buffered group data.
// A value of 0 disables the byte budget.
func WithReadAheadBytes(limit uint64) ProcessorOption {
	return func(p *Processor) {
		p.readAheadBytes = limit
		p.readAheadEnabled = limit > 0
	}
}

// WithBestEffort tolerates corrupt entries instead of aborting.
//
// Entries whose block fails to decode or whose checksum does not match
// are skipped with a warning; extraction continues with the remaining
// entries. Errors from the sink or the underlying source still abort.
func WithBestEffort(enabled bool) ProcessorOption {
	return func(p *Processor) {
		p.bestEffort = enabled
	}
}

// WithProgress sets a callback invoked after each completed entry.
// The callback may be invoked concurrently from multiple workers.
func WithProgress(fn ipftype.ProgressFunc) ProcessorOption {
	return func(p *Processor) {
		p.progress = fn
	}
}

// WithProcessorLogger sets the logger for extraction operations.
// If not set, logging is disabled.
func WithProcessorLogger(logger *slog.Logger) ProcessorOption {
	return func(p *Processor) {
		p.logger = logger
	}
}

// NewProcessor creates a new extraction processor.
//
// volumes maps container IDs to their sources; container 0 is the
// archive itself. The pool provides reusable inflate readers.
// maxFileSize limits the size of individual entries (0 for no limit).
func NewProcessor(volumes map[uint16]ByteSource, pool *codec.DecompressPool, maxFileSize uint64, opts ...ProcessorOption) *Processor {
	p := &Processor{
		volumes:         volumes,
		pool:            pool,
		maxFileSize:     maxFileSize,
		readConcurrency: 1,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// runState tracks per-operation counters shared across workers.
type runState struct {
	sink       Sink
	filesTotal int
	bytesTotal uint64
	filesDone  atomic.Int64
	bytesDone  atomic.Uint64
	extracted  atomic.Int64
	corrupt    atomic.Int64
}

// Process reads and extracts entries, writing results to the sink.
//
// Entries are filtered through sink.ShouldProcess, validated against
// their container bounds, then partitioned by container and processed
// in offset order. For each entry, the block is decoded, verified
// against its checksum, and written to the sink.
//
// Processing stops on the first error unless best-effort mode is
// enabled, in which case per-entry corruption is skipped and counted.
// The returned stats are valid even when an error is returned.
func (p *Processor) Process(ctx context.Context, entries []*ipftype.Entry, sink Sink) (Stats, error) {
	var stats Stats
	if len(entries) == 0 {
		return stats, nil
	}

	toProcess := make([]*ipftype.Entry, 0, len(entries))
	for _, entry := range entries {
		if sink.ShouldProcess(entry) {
			toProcess = append(toProcess, entry)
		} else {
			stats.Skipped++
		}
	}
	if len(toProcess) == 0 {
		return stats, nil
	}

	st := &runState{sink: sink, filesTotal: len(toProcess)}

	// Validate everything up front and partition by container.
	byContainer := make(map[uint16][]*ipftype.Entry)
	for _, entry := range toProcess {
		if err := p.validate(entry); err != nil {
			return stats, err
		}
		st.bytesTotal += uint64(entry.UncompressedSize)
		byContainer[entry.Container] = append(byContainer[entry.Container], entry)
	}

	err := p.processContainers(ctx, byContainer, st)

	stats.Extracted = int(st.extracted.Load())
	stats.Corrupt = int(st.corrupt.Load())
	stats.TotalBytes = st.bytesDone.Load()
	return stats, err
}

// validate checks an entry's container, size limit, and block bounds.
func (p *Processor) validate(entry *ipftype.Entry) error {
	src, ok := p.volumes[entry.Container]
	if !ok {
		return fmt.Errorf("extract: %s: %w: container %d", entry.Path, ipftype.ErrUnknownContainer, entry.Container)
	}
	if p.maxFileSize > 0 && uint64(entry.UncompressedSize) > p.maxFileSize {
		return fmt.Errorf("extract: %s: %d bytes: %w", entry.Path, entry.UncompressedSize, ipftype.ErrSizeOverflow)
	}
	end, ok := sizing.AddUint64(entry.DataOffset, uint64(entry.CompressedSize))
	if !ok || end > uint64(src.Size()) {
		return fmt.Errorf("extract: %s: %w: block [%d, %d) exceeds container",
			entry.Path, ipftype.ErrTruncatedArchive, entry.DataOffset, end)
	}
	return nil
}

// processContainers extracts each container's entries in ID order.
func (p *Processor) processContainers(ctx context.Context, byContainer map[uint16][]*ipftype.Entry, st *runState) error {
	for _, id := range slices.Sorted(maps.Keys(byContainer)) {
		entries := byContainer[id]

		// Sort by data offset for efficient grouping
		slices.SortFunc(entries, func(a, b *ipftype.Entry) int {
			if a.DataOffset < b.DataOffset {
				return -1
			}
			if a.DataOffset > b.DataOffset {
				return 1
			}
			return 0
		})

		groups := groupAdjacentEntries(entries)
		p.log().Debug("extracting container",
			"container", id, "entries", len(entries), "groups", len(groups))

		src := p.volumes[id]
		var err error
		if len(groups) > 1 && (p.readConcurrency > 1 || p.readAheadEnabled) {
			err = p.processGroupsPipelined(ctx, src, groups, st)
		} else {
			err = p.processGroupsSequential(ctx, src, groups, st)
		}
		if err != nil {
			return err
		}
	}
	return nil
}

// groupTask represents a pending group read operation for the pipeline.
type groupTask struct {
	index int
	group rangeGroup
	size  int64
}

// groupResult holds the completed read data for a group.
type groupResult struct {
	index int
	group rangeGroup
	data  []byte
	size  int64
}

// processGroupsSequential processes groups one at a time without pipelining.
func (p *Processor) processGroupsSequential(ctx context.Context, src ByteSource, groups []rangeGroup, st *runState) error {
	for _, group := range groups {
		if err := ctx.Err(); err != nil {
			return err
		}
		data, err := p.readGroupData(src, group)
		if err != nil {
			return err
		}
		if err := p.processGroupWithData(group, data, st); err != nil {
			return err
		}
	}
	return nil
}

//nolint:gocognit,gocyclo // pipeline logic requires coordination between producers/consumers
func (p *Processor) processGroupsPipelined(ctx context.Context, src ByteSource, groups []rangeGroup, st *runState) error {
	if len(groups) == 0 {
		return nil
	}

	readWorkers := p.readConcurrency
	if readWorkers < 1 {
		readWorkers = 1
	}

	var budget *semaphore.Weighted
	if p.readAheadEnabled {
		limit, err := sizing.ToInt64(p.readAheadBytes, ipftype.ErrSizeOverflow)
		if err != nil {
			return fmt.Errorf("extract: %w", err)
		}
		// A budget smaller than the largest group could never be acquired.
		for _, group := range groups {
			size, err := groupSize(group)
			if err != nil {
				return fmt.Errorf("extract: %w", err)
			}
			limit = max(limit, size)
		}
		budget = semaphore.NewWeighted(limit)
	}

	readCh := make(chan groupTask)
	readyCh := make(chan groupResult, readWorkers)
	eg, ctx := errgroup.WithContext(ctx)

	var readWg sync.WaitGroup
	readWg.Add(readWorkers)

	for range readWorkers {
		eg.Go(func() error {
			defer readWg.Done()
			for task := range readCh {
				if err := ctx.Err(); err != nil {
					return err
				}
				if budget != nil {
					if err := budget.Acquire(ctx, task.size); err != nil {
						return err
					}
				}
				data, err := p.readGroupData(src, task.group)
				if err != nil {
					if budget != nil {
						budget.Release(task.size)
					}
					return err
				}
				result := groupResult{
					index: task.index,
					group: task.group,
					data:  data,
					size:  task.size,
				}
				select {
				case readyCh <- result:
				case <-ctx.Done():
					if budget != nil {
						budget.Release(task.size)
					}
					return ctx.Err()
				}
			}
			return nil
		})
	}

	eg.Go(func() error {
		defer close(readCh)
		for i, group := range groups {
			size, err := groupSize(group)
			if err != nil {
				return err
			}
			task := groupTask{index: i, group: group, size: size}
			select {
			case readCh <- task:
			case <-ctx.Done():
				return ctx.Err()
			}
		}
		return nil
	})

	go func() {
		readWg.Wait()
		close(readyCh)
	}()

	eg.Go(func() error {
		next := 0
		pending := make(map[int]groupResult, readWorkers)
		for next < len(groups) {
			select {
			case res, ok := <-readyCh:
				if !ok {
					if err := ctx.Err(); err != nil {
						return err
					}
					return errors.New("extract: read pipeline ended unexpectedly")
				}
				pending[res.index] = res
				for {
					res, ok := pending[next]
					if !ok {
						break
					}
					delete(pending, next)
					if err := p.processGroupWithData(res.group, res.data, st); err != nil {
						if budget != nil {
							budget.Release(res.size)
						}
						return err
					}
					if budget != nil {
						budget.Release(res.size)
					}
					next++
				}
			case <-ctx.Done():
				return ctx.Err()
			}
		}
		return nil
	})

	return eg.Wait()
}

// processGroupWithData processes all entries in a group using pre-fetched data.
func (p *Processor) processGroupWithData(group rangeGroup, data []byte, st *runState) error {
	if len(group.entries) == 0 {
		return nil
	}
	workers := p.workerCount(group.entries)
	if workers < 2 {
		return p.processEntriesSerial(group.entries, data, group.start, st)
	}
	return p.processEntriesParallel(group.entries, data, group.start, st, workers)
}

// readGroupData reads the contiguous byte range for a group.
func (p *Processor) readGroupData(src ByteSource, group rangeGroup) ([]byte, error) {
	size := group.end - group.start
	sizeInt, err := sizing.ToInt(size, ipftype.ErrSizeOverflow)
	if err != nil {
		return nil, fmt.Errorf("extract: %w", err)
	}
	data := make([]byte, sizeInt)
	n, err := src.ReadAt(data, int64(group.start)) //nolint:gosec // offset fits in int64 after validation
	if err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("extract: %w", err)
	}
	if uint64(n) != size { //nolint:gosec // n is always non-negative
		return nil, fmt.Errorf("extract: short read (%d of %d bytes)", n, size)
	}
	return data, nil
}

// groupSize returns the total byte size of a group as int64.
func groupSize(group rangeGroup) (int64, error) {
	size := group.end - group.start
	return sizing.ToInt64(size, ipftype.ErrSizeOverflow)
}

// processEntriesSerial processes entries one at a time.
func (p *Processor) processEntriesSerial(entries []*ipftype.Entry, data []byte, groupStart uint64, st *runState) error {
	for _, entry := range entries {
		if err := p.processEntry(entry, data, groupStart, st); err != nil {
			return err
		}
	}
	return nil
}

// processEntriesParallel processes entries concurrently.
func (p *Processor) processEntriesParallel(entries []*ipftype.Entry, data []byte, groupStart uint64, st *runState, workers int) error {
	var stop atomic.Bool
	errCh := make(chan error, 1)
	var wg sync.WaitGroup

	for w := range workers {
		wg.Add(1)
		go func(start int) {
			defer wg.Done()
			for i := start; i < len(entries); i += workers {
				if stop.Load() {
					return
				}
				if err := p.processEntry(entries[i], data, groupStart, st); err != nil {
					if stop.CompareAndSwap(false, true) {
						errCh <- err
					}
					return
				}
			}
		}(w)
	}
	wg.Wait()

	select {
	case err := <-errCh:
		return err
	default:
		return nil
	}
}

// processEntry decodes, verifies, and writes a single entry.
//
// Corruption errors are skipped in best-effort mode; all other errors
// abort the operation.
func (p *Processor) processEntry(entry *ipftype.Entry, groupData []byte, groupStart uint64, st *runState) error {
	content, err := p.decode(entry, groupData, groupStart)
	if err != nil {
		if p.bestEffort && isCorruption(err) {
			p.log().Warn("skipping corrupt entry", "path", entry.Path, "error", err)
			st.corrupt.Add(1)
			p.advance(st, entry, 0)
			return nil
		}
		return fmt.Errorf("extract: %s: %w", entry.Path, err)
	}

	if err := st.sink.Put(entry, content); err != nil {
		return fmt.Errorf("extract: %s: %w", entry.Path, err)
	}

	st.extracted.Add(1)
	p.advance(st, entry, uint64(len(content)))
	return nil
}

// decode slices the entry's block out of the group data, inflates it,
// and verifies the checksum.
func (p *Processor) decode(entry *ipftype.Entry, groupData []byte, groupStart uint64) ([]byte, error) {
	localOffset := entry.DataOffset - groupStart
	localEnd := localOffset + uint64(entry.CompressedSize)
	if localEnd < localOffset || localEnd > uint64(len(groupData)) {
		return nil, ipftype.ErrSizeOverflow
	}
	start, err := sizing.ToInt(localOffset, ipftype.ErrSizeOverflow)
	if err != nil {
		return nil, err
	}
	end, err := sizing.ToInt(localEnd, ipftype.ErrSizeOverflow)
	if err != nil {
		return nil, err
	}
	block := groupData[start:end]

	wantSize, err := sizing.ToInt(uint64(entry.UncompressedSize), ipftype.ErrSizeOverflow)
	if err != nil {
		return nil, err
	}
	content, err := p.pool.Decode(block, entry.Compression, wantSize)
	if err != nil {
		return nil, err
	}
	if codec.Checksum(content) != entry.Checksum {
		return nil, ipftype.ErrChecksumMismatch
	}
	return content, nil
}

// advance updates progress counters and emits a progress event.
func (p *Processor) advance(st *runState, entry *ipftype.Entry, written uint64) {
	files := st.filesDone.Add(1)
	bytes := st.bytesDone.Add(written)
	if p.progress == nil {
		return
	}
	p.progress(ipftype.ProgressEvent{
		Stage:      ipftype.StageExtracting,
		Path:       entry.Path,
		BytesDone:  bytes,
		BytesTotal: st.bytesTotal,
		FilesDone:  int(files),
		FilesTotal: st.filesTotal,
	})
}

// isCorruption reports whether err indicates per-entry data corruption
// rather than an environment or sink failure.
func isCorruption(err error) bool {
	return errors.Is(err, ipftype.ErrChecksumMismatch) || errors.Is(err, ipftype.ErrCorruptData)
}

// workerCount determines the number of workers to use for decoding.
func (p *Processor) workerCount(entries []*ipftype.Entry) int {
	if len(entries) < 2 {
		return 1
	}
	if p.workers < 0 {
		return 1
	}

	workers := p.workers
	if workers == 0 {
		workers = runtime.GOMAXPROCS(0)
		if workers < 2 {
			return 1
		}
		// Size-based heuristic: only parallelize for larger entries
		var total uint64
		for _, entry := range entries {
			next, ok := sizing.AddUint64(total, uint64(entry.UncompressedSize))
			if !ok {
				total = ^uint64(0)
				break
			}
			total = next
		}
		if total/uint64(len(entries)) < parallelMinAvgBytes {
			return 1
		}
	}

	if workers > len(entries) {
		workers = len(entries)
	}
	if workers < 2 {
		return 1
	}
	return workers
}
