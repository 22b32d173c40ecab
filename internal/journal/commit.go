package journal

import (
	"math"
	"os"
	"strconv"
	"strings"
	"sync/atomic"

	"go.uber.org/zap"
)

// Uncommitted is the CommitTracker sentinel meaning "never committed".
const Uncommitted int64 = math.MinInt64

// CommitTracker holds the single monotonic committed-read-offset, advanced
// by the consumer after durable downstream processing and consulted by
// RetentionManager to decide what's safe to delete.
type CommitTracker struct {
	value  atomic.Int64
	logger *zap.Logger
}

// NewCommitTracker starts a tracker at the Uncommitted sentinel.
func NewCommitTracker(logger *zap.Logger) *CommitTracker {
	if logger == nil {
		logger = zap.NewNop()
	}
	t := &CommitTracker{logger: logger.Named("commit")}
	t.value.Store(Uncommitted)
	return t
}

// MarkCommitted CASes the tracked value up to max(current, offset). A caller
// whose offset is <= the current value is silently ignored. Every 10 failed
// CAS attempts is logged as a contention signal.
func (t *CommitTracker) MarkCommitted(offset int64) {
	attempts := 0
	for {
		cur := t.value.Load()
		if offset <= cur {
			return
		}
		if t.value.CompareAndSwap(cur, offset) {
			return
		}
		attempts++
		if attempts%10 == 0 {
			t.logger.Warn("commit offset CAS contention", zap.Int("attempts", attempts))
		}
	}
}

// Get returns the current committed offset, or Uncommitted.
func (t *CommitTracker) Get() int64 {
	return t.value.Load()
}

// Persist writes the committed offset as decimal ASCII to path, flushing and
// fsyncing it. A tracker still at the sentinel is skipped rather than
// writing "never happened" to disk.
func (t *CommitTracker) Persist(path string) error {
	v := t.Get()
	if v == Uncommitted {
		return nil
	}
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0644)
	if err != nil {
		return ErrSyncFailed
	}
	defer f.Close()
	if _, err := f.WriteString(strconv.FormatInt(v, 10) + "\n"); err != nil {
		return ErrSyncFailed
	}
	if err := f.Sync(); err != nil {
		return ErrSyncFailed
	}
	return nil
}

// Load reads path's first line as a decimal int64 and adopts it as the
// tracker's current value. A missing file leaves the tracker at its current
// value (normally the Uncommitted sentinel on a brand new journal).
func (t *CommitTracker) Load(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	line := strings.TrimSpace(strings.SplitN(string(data), "\n", 2)[0])
	if line == "" {
		return nil
	}
	v, err := strconv.ParseInt(line, 10, 64)
	if err != nil {
		return err
	}
	t.value.Store(v)
	return nil
}

// NextReadOffset returns committedOffset + 1, or 0 if never committed.
func (t *CommitTracker) NextReadOffset() uint64 {
	v := t.Get()
	if v == Uncommitted {
		return 0
	}
	return uint64(v + 1)
}
