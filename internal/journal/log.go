package journal

import (
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"

	"go.uber.org/zap"
)

// Log is the append/read interface over a segmentSet. It owns
// logEndOffset (implicitly: the active segment's NextOffset), the recovery
// point, and the unflushed-message count.
type Log struct {
	mu sync.Mutex

	dir    string
	config Config
	clock  Clock
	logger *zap.Logger

	segments *segmentSet

	recoveryPoint     uint64
	unflushedMessages uint64
	lastFlushMillis   int64
}

// NewLog opens dir, recovering existing segments (selecting the
// highest-base-offset one as active) or creating the first segment if dir is
// empty.
func NewLog(dir string, cfg Config, clk Clock, logger *zap.Logger) (*Log, error) {
	cfg, err := cfg.withDefaults()
	if err != nil {
		return nil, err
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	l := &Log{
		dir:      dir,
		config:   cfg,
		clock:    clk,
		logger:   logger.Named("log"),
		segments: newSegmentSet(),
	}
	if err := l.setup(); err != nil {
		return nil, err
	}
	return l, nil
}

// setup scans dir for existing segment files, oldest to newest, and opens
// each in turn; the last one opened becomes active. An empty directory gets
// a single fresh segment at the configured initial offset.
func (l *Log) setup() error {
	entries, err := os.ReadDir(l.dir)
	if err != nil {
		return err
	}

	seen := map[uint64]bool{}
	var baseOffsets []uint64
	for _, e := range entries {
		name := e.Name()
		if !strings.HasSuffix(name, ".log") {
			continue
		}
		base := strings.TrimSuffix(filepath.Base(name), ".log")
		off, err := strconv.ParseUint(base, 10, 64)
		if err != nil {
			continue
		}
		if !seen[off] {
			seen[off] = true
			baseOffsets = append(baseOffsets, off)
		}
	}
	sort.Slice(baseOffsets, func(i, j int) bool { return baseOffsets[i] < baseOffsets[j] })

	for _, off := range baseOffsets {
		if err := l.openSegment(off); err != nil {
			return err
		}
	}
	if l.segments.Len() == 0 {
		if err := l.openSegment(l.config.InitialOffset); err != nil {
			return err
		}
	}

	active := l.segments.Active()
	l.recoveryPoint = active.NextOffset()
	l.lastFlushMillis = l.clock.NowMillis()
	return nil
}

func (l *Log) openSegment(baseOffset uint64) error {
	s, err := newSegment(l.dir, baseOffset, l.config.segmentConfig(), l.clock)
	if err != nil {
		return err
	}
	l.segments.Add(s)
	return nil
}

// LogStartOffset returns the base offset of the earliest retained segment.
func (l *Log) LogStartOffset() uint64 {
	return l.segments.First().BaseOffset()
}

// LogEndOffset returns the offset the next appended record will receive.
func (l *Log) LogEndOffset() uint64 {
	return l.segments.Active().NextOffset()
}

// NumberOfSegments returns how many segments currently make up the log.
func (l *Log) NumberOfSegments() int {
	return l.segments.Len()
}

// SizeBytes sums the on-disk size of every segment.
func (l *Log) SizeBytes() uint64 {
	var total uint64
	for _, s := range l.segments.All() {
		total += s.SizeBytes()
	}
	return total
}

// UnflushedMessages returns logEndOffset - recoveryPoint.
func (l *Log) UnflushedMessages() uint64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.unflushedMessages
}

// RecoveryPoint returns the highest offset known to be fsynced.
func (l *Log) RecoveryPoint() uint64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.recoveryPoint
}

// LastFlushMillis returns the timestamp of the last successful flush.
func (l *Log) LastFlushMillis() int64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.lastFlushMillis
}

// Append assigns sequential offsets starting at logEndOffset and writes the
// batch into the active segment, rolling to a new segment first if the
// active one is full, too old, or its index is exhausted. The whole batch
// always lands in one segment: if it does not fit in the active segment the
// log rolls and retries once, and a batch too large for an empty segment
// fails with ErrSegmentFull. Batches are not split across segments, and
// callers never see a partial write.
func (l *Log) Append(entries []Entry) (first, last uint64, err error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if err := l.rollIfNeeded(); err != nil {
		return 0, 0, err
	}

	active := l.segments.Active()
	first, last, err = active.Append(entries)
	if err == ErrSegmentFull {
		if err := l.roll(); err != nil {
			return 0, 0, err
		}
		active = l.segments.Active()
		first, last, err = active.Append(entries)
	}
	if err != nil {
		return 0, 0, err
	}

	if active.IsFull() {
		if err := l.roll(); err != nil {
			return 0, 0, err
		}
	}

	l.unflushedMessages += last - first + 1
	if l.unflushedMessages >= l.config.FlushIntervalMessages {
		if err := l.flushLocked(); err != nil {
			return 0, 0, err
		}
	}
	return first, last, nil
}

func (l *Log) rollIfNeeded() error {
	active := l.segments.Active()
	age := l.clock.NowMillis() - active.CreatedMillis()
	if active.IsFull() || age >= l.config.SegmentAgeMillis {
		return l.roll()
	}
	return nil
}

// roll flushes and seals the active segment and opens a new one at the
// current logEndOffset. Must be called with mu held.
func (l *Log) roll() error {
	active := l.segments.Active()
	if err := active.Flush(); err != nil {
		l.logger.Warn("flush before roll failed", zap.Error(err))
	}
	return l.openSegment(active.NextOffset())
}

// Read maps startOffset to the segment that contains it and reads from there,
// continuing into the following segments until maxBytes, upperBound or the
// end of the log is reached. If no segment contains startOffset,
// ErrOffsetOutOfRange (via *OffsetOutOfRangeError) is returned so the caller
// can recover to LogStartOffset.
func (l *Log) Read(startOffset uint64, maxBytes uint32, upperBound uint64) ([]byte, error) {
	s, ok := l.segments.FindForOffset(startOffset)
	if !ok {
		return nil, &OffsetOutOfRangeError{Offset: startOffset}
	}
	out, err := s.Read(startOffset, maxBytes, upperBound)
	if err != nil {
		return nil, err
	}
	for uint64(len(out)) < uint64(maxBytes) {
		next := s.NextOffset()
		if upperBound != 0 && next >= upperBound {
			break
		}
		if s, ok = l.segments.FindForOffset(next); !ok {
			break
		}
		more, err := s.Read(next, maxBytes-uint32(len(out)), upperBound)
		if err != nil {
			return nil, err
		}
		// only the first segment may overflow maxBytes with one oversized record
		if len(more) == 0 || uint64(len(out)+len(more)) > uint64(maxBytes) {
			break
		}
		out = append(out, more...)
	}
	return out, nil
}

// Flush fsyncs the active segment, advances recoveryPoint to logEndOffset
// and resets the unflushed-message counter.
func (l *Log) Flush() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.flushLocked()
}

func (l *Log) flushLocked() error {
	if err := l.segments.Active().Flush(); err != nil {
		return ErrSyncFailed
	}
	l.recoveryPoint = l.segments.Active().NextOffset()
	l.unflushedMessages = 0
	l.lastFlushMillis = l.clock.NowMillis()
	return nil
}

// TruncateTo deletes every segment whose base offset is >= offset, active
// one included, then truncates the new tail segment to offset. The first
// segment is never deleted; when offset is at or below its base it is
// emptied instead.
func (l *Log) TruncateTo(offset uint64) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	// RemoveWhere spares the active segment, so cut the set directly; the
	// first segment always stays so the log is never left empty.
	l.segments.mu.Lock()
	all := l.segments.segments
	keep := sort.Search(len(all), func(i int) bool { return all[i].BaseOffset() >= offset })
	if keep == 0 {
		keep = 1
	}
	removed := append([]*segment(nil), all[keep:]...)
	l.segments.segments = all[:keep]
	l.segments.mu.Unlock()
	for _, s := range removed {
		if err := s.Remove(); err != nil {
			return err
		}
	}
	active := l.segments.Active()
	if err := active.TruncateTo(offset); err != nil {
		return err
	}
	if l.recoveryPoint > offset {
		l.recoveryPoint = offset
	}
	l.unflushedMessages = active.NextOffset() - l.recoveryPoint
	return nil
}

// segmentsSnapshot exposes the ordered segment list for RetentionManager and
// the checkpoint writer.
func (l *Log) segmentsSnapshot() []*segment {
	return l.segments.All()
}

// removeMatching drops every non-active segment matching pred from the
// active set and marks its files for delayed deletion.
func (l *Log) removeMatching(pred func(*segment) bool) (int, error) {
	removed := l.segments.RemoveWhere(pred)
	for _, s := range removed {
		if err := s.MarkDeleted(); err != nil {
			return len(removed), err
		}
	}
	return len(removed), nil
}

// Close flushes and closes every segment.
func (l *Log) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, s := range l.segments.All() {
		if err := s.Close(); err != nil {
			return err
		}
	}
	return nil
}
