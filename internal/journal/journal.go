package journal

import (
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
)

const (
	commitSidecarName  = "graylog2-committed-read-offset"
	checkpointName     = "recovery-point-offset-checkpoint"
	lockFileName       = "LOCK"
	journalPartition   = "0"
	maxReadBytes       = 5 * 1024 * 1024
	schedulerInitDelay = 30 * time.Second
)

// ThrottleState is a point-in-time snapshot published for an external
// backpressure decider to consume; the journal never reads its own output.
type ThrottleState struct {
	UncommittedCount    uint64
	OldestSegmentMillis int64
	UtilizationPercent  float64
}

// JournalReadEntry is one decoded record returned by Read/ReadFrom.
type JournalReadEntry struct {
	Offset  uint64
	Key     []byte
	Payload []byte
}

// Journal is the public façade composing Log, CommitTracker,
// RetentionManager, Scheduler and Metrics into the lifecycle and operations
// a producer/consumer pair actually calls.
type Journal struct {
	dir    string
	config Config
	clock  Clock
	logger *zap.Logger

	log       *Log
	commit    *CommitTracker
	retention *RetentionManager
	scheduler *Scheduler
	metrics   *Metrics

	lockFile *os.File

	mu             sync.Mutex
	nextReadOffset uint64
	throttle       ThrottleState

	shuttingDown atomic.Bool
}

// Open creates or recovers the journal rooted at dir. It does not yet start
// the background scheduler — call Start for that once the caller is ready
// to receive traffic.
func Open(dir string, cfg Config, clk Clock, logger *zap.Logger, reg prometheus.Registerer) (*Journal, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, err
	}

	lockFile, err := acquireLock(filepath.Join(dir, lockFileName))
	if err != nil {
		return nil, err
	}

	log, err := NewLog(dir, cfg, clk, logger)
	if err != nil {
		lockFile.Close()
		return nil, err
	}
	cfg = log.config

	commit := NewCommitTracker(logger)
	if err := commit.Load(filepath.Join(dir, commitSidecarName)); err != nil {
		logger.Warn("failed to load commit sidecar, starting uncommitted", zap.Error(err))
	}

	j := &Journal{
		dir:       dir,
		config:    cfg,
		clock:     clk,
		logger:    logger.Named("journal"),
		log:       log,
		commit:    commit,
		retention: NewRetentionManager(cfg, clk, logger),
		scheduler: NewScheduler(clk, logger),
		lockFile:  lockFile,
	}
	if reg != nil {
		j.metrics = NewMetrics(reg)
	}
	j.nextReadOffset = commit.NextReadOffset()
	if j.nextReadOffset < log.LogStartOffset() {
		j.nextReadOffset = log.LogStartOffset()
	}
	return j, nil
}

// acquireLock creates an exclusive lock file, failing with ErrLockFailed if
// another process already holds the journal directory.
func acquireLock(path string) (*os.File, error) {
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_EXCL, 0644)
	if err != nil {
		if os.IsExist(err) {
			return nil, ErrLockFailed
		}
		return nil, err
	}
	return f, nil
}

// Start schedules the four periodic background jobs described in the
// external interface table: dirty-log flush, recovery checkpoint, retention
// sweep, commit-offset persist.
func (j *Journal) Start() {
	j.scheduler.Start(
		job{
			name:         "dirty-log-flush",
			initialDelay: schedulerInitDelay,
			interval:     time.Duration(j.config.FlushCheckMillis) * time.Millisecond,
			run:          j.flushIfDirty,
		},
		job{
			name:         "recovery-checkpoint",
			initialDelay: schedulerInitDelay,
			interval:     time.Duration(j.config.FlushCheckpointMillis) * time.Millisecond,
			run:          j.writeRecoveryCheckpoint,
		},
		job{
			name:         "retention-sweep",
			initialDelay: schedulerInitDelay,
			interval:     time.Duration(j.config.RetentionCheckMillis) * time.Millisecond,
			run:          j.runRetention,
		},
		job{
			name:         "commit-persist",
			initialDelay: time.Second,
			interval:     time.Second,
			run:          j.persistCommit,
		},
	)
}

func (j *Journal) flushIfDirty() error {
	if j.clock.NowMillis()-j.log.LastFlushMillis() >= j.config.FlushAgeMillis {
		return j.log.Flush()
	}
	return nil
}

func (j *Journal) writeRecoveryCheckpoint() error {
	return writeCheckpoint(filepath.Join(j.dir, checkpointName), journalPartition, j.log.RecoveryPoint())
}

func (j *Journal) runRetention() error {
	_, err := j.retention.Sweep(j.log, j.commit, j.dir)
	return err
}

func (j *Journal) persistCommit() error {
	if err := j.commit.Persist(filepath.Join(j.dir, commitSidecarName)); err != nil {
		j.logger.Error("commit sidecar persist failed", zap.Error(err))
	}
	return nil
}

// CreateEntry builds an Entry from raw key/payload bytes; it performs no I/O.
func (j *Journal) CreateEntry(key, payload []byte) Entry {
	return NewEntry(key, payload)
}

// Write appends a single entry and returns its assigned offset.
func (j *Journal) Write(key, payload []byte) (uint64, error) {
	_, last, err := j.WriteEntries([]Entry{NewEntry(key, payload)})
	return last, err
}

// WriteEntries appends a batch atomically and returns its first and last
// offsets.
func (j *Journal) WriteEntries(entries []Entry) (first, last uint64, err error) {
	start := j.clock.Now()
	first, last, err = j.log.Append(entries)
	if err != nil {
		return 0, 0, err
	}
	if j.metrics != nil {
		j.metrics.observeWrite(len(entries), j.clock.Now().Sub(start).Seconds())
		j.metrics.refreshGauges(j.log, j.commit, j.clock.NowMillis())
	}
	return first, last, nil
}

// Read returns up to maxCount records starting at the internal read cursor,
// capped at 5 MiB, and advances the cursor past the last record returned.
func (j *Journal) Read(maxCount int) ([]JournalReadEntry, error) {
	j.mu.Lock()
	from := j.nextReadOffset
	j.mu.Unlock()
	return j.ReadFrom(from, maxCount)
}

// ReadFrom returns up to maxCount records starting at fromOffset. If
// fromOffset has fallen below logStartOffset because retention already
// reclaimed it, the read silently advances to logStartOffset instead of
// failing. Like Read, it advances the internal cursor past the last record
// returned.
func (j *Journal) ReadFrom(fromOffset uint64, maxCount int) ([]JournalReadEntry, error) {
	if j.shuttingDown.Load() {
		return nil, nil
	}
	if maxCount < 1 {
		maxCount = 1
	}

	start := j.clock.Now()
	logStart := j.log.LogStartOffset()
	if fromOffset < logStart {
		j.logger.Error("read offset below log start, advancing",
			zap.Uint64("requested", fromOffset), zap.Uint64("logStartOffset", logStart))
		fromOffset = logStart
	}

	raw, err := j.log.Read(fromOffset, maxReadBytes, 0)
	if err != nil {
		if _, ok := err.(*OffsetOutOfRangeError); ok {
			j.logger.Warn("read offset out of range", zap.Uint64("offset", fromOffset))
			return nil, nil
		}
		return nil, err
	}

	entries, lastOffset, err := decodeRecords(raw, maxCount)
	if err != nil {
		return nil, err
	}

	if len(entries) > 0 {
		j.mu.Lock()
		j.nextReadOffset = lastOffset + 1
		j.mu.Unlock()
	}

	if j.metrics != nil {
		j.metrics.observeRead(len(entries), j.clock.Now().Sub(start).Seconds())
		j.metrics.refreshGauges(j.log, j.commit, j.clock.NowMillis())
	}
	return entries, nil
}

// decodeRecords walks raw, a concatenation of whole wire-format records, and
// decodes at most maxCount of them.
func decodeRecords(raw []byte, maxCount int) ([]JournalReadEntry, uint64, error) {
	var out []JournalReadEntry
	var pos uint64
	var lastOffset uint64
	size := uint64(len(raw))
	for pos < size && len(out) < maxCount {
		hdr := raw[pos:]
		recLen, err := recordLength(hdr)
		if err != nil {
			return nil, 0, err
		}
		if pos+recLen > size {
			break
		}
		rec, err := decodeRecord(raw[pos : pos+recLen])
		if err != nil {
			return nil, 0, err
		}
		out = append(out, JournalReadEntry{Offset: rec.offset, Key: rec.key, Payload: rec.payload})
		lastOffset = rec.offset
		pos += recLen
	}
	return out, lastOffset, nil
}

// MarkJournalOffsetCommitted advances the committed-offset watermark;
// monotonic, lock-free, safe from concurrent callers.
func (j *Journal) MarkJournalOffsetCommitted(offset uint64) {
	j.commit.MarkCommitted(int64(offset))
}

// GetCommittedOffset returns the current committed offset, or Uncommitted.
func (j *Journal) GetCommittedOffset() int64 { return j.commit.Get() }

// GetNextReadOffset returns the internal read cursor.
func (j *Journal) GetNextReadOffset() uint64 {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.nextReadOffset
}

// GetLogStartOffset returns the base offset of the earliest retained segment.
func (j *Journal) GetLogStartOffset() uint64 { return j.log.LogStartOffset() }

// GetLogEndOffset returns the offset the next appended record will receive.
func (j *Journal) GetLogEndOffset() uint64 { return j.log.LogEndOffset() }

// Size returns the total on-disk size of all segments.
func (j *Journal) Size() uint64 { return j.log.SizeBytes() }

// NumberOfSegments returns the current segment count.
func (j *Journal) NumberOfSegments() int { return j.log.NumberOfSegments() }

// TruncateTo drops every record at or beyond offset.
func (j *Journal) TruncateTo(offset uint64) error {
	if err := j.log.TruncateTo(offset); err != nil {
		return err
	}
	j.mu.Lock()
	if j.nextReadOffset > offset {
		j.nextReadOffset = offset
	}
	j.mu.Unlock()
	return nil
}

// GetThrottleState returns the last published throttle snapshot.
func (j *Journal) GetThrottleState() ThrottleState {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.throttle
}

// SetThrottleState recomputes and publishes the current throttle snapshot.
// Callers external to the journal consult GetThrottleState for backpressure
// decisions; the journal itself never reacts to its own snapshot.
func (j *Journal) SetThrottleState() {
	endOffset := j.log.LogEndOffset()
	next := j.commit.NextReadOffset()
	var uncommitted uint64
	if endOffset > next {
		uncommitted = endOffset - next
	}

	segs := j.log.segmentsSnapshot()
	var oldest int64
	if len(segs) > 0 {
		oldest = segs[0].LastModifiedMillis()
	}

	var utilization float64
	if j.config.RetentionBytes > 0 {
		utilization = float64(j.log.SizeBytes()) / float64(j.config.RetentionBytes) * 100
	}

	j.mu.Lock()
	j.throttle = ThrottleState{
		UncommittedCount:    uncommitted,
		OldestSegmentMillis: oldest,
		UtilizationPercent:  utilization,
	}
	j.mu.Unlock()
}

// Shutdown stops the scheduler, flushes and persists state one final time,
// and closes every open file. It is safe to call once; a second call is a
// no-op beyond re-closing already-closed files.
func (j *Journal) Shutdown() error {
	j.shuttingDown.Store(true)
	j.scheduler.Stop()

	if err := j.log.Flush(); err != nil {
		j.logger.Warn("final flush failed", zap.Error(err))
	}
	if err := j.commit.Persist(filepath.Join(j.dir, commitSidecarName)); err != nil {
		j.logger.Warn("final commit persist failed", zap.Error(err))
	}
	if err := j.log.Close(); err != nil {
		return err
	}
	if j.lockFile != nil {
		path := j.lockFile.Name()
		j.lockFile.Close()
		os.Remove(path)
	}
	return nil
}
