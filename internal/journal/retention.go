package journal

import (
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"
)

// RetentionManager runs three independent deletion passes — by age, by
// total size, by committed offset — in that fixed order, never deleting the
// active segment and never leaving the log with zero segments.
type RetentionManager struct {
	config Config
	clock  Clock
	logger *zap.Logger

	purgedByAge    int
	purgedBySize   int
	purgedByCommit int
}

// NewRetentionManager builds a manager bound to cfg's retention thresholds.
// Zero-valued fields of cfg take their DefaultConfig values, as in NewLog.
func NewRetentionManager(cfg Config, clk Clock, logger *zap.Logger) *RetentionManager {
	if logger == nil {
		logger = zap.NewNop()
	}
	cfg, _ = cfg.withDefaults()
	return &RetentionManager{config: cfg, clock: clk, logger: logger.Named("retention")}
}

// Sweep reaps segments already past their delete-delay window, then runs the
// three retention passes against l, consulting commit for the
// committed-offset pass. It returns the total number of segments deleted
// across all three passes — the source journal instead overwrote a single
// counter per pass so only the last pass's count survived; this is a
// deliberate behavior change, see DESIGN.md.
func (r *RetentionManager) Sweep(l *Log, commit *CommitTracker, dir string) (int, error) {
	if err := r.reapExpired(dir); err != nil {
		r.logger.Error("reap expired segment files failed", zap.Error(err))
	}

	byAge, err := r.sweepByAge(l)
	if err != nil {
		return 0, err
	}
	r.purgedByAge = byAge

	bySize, err := r.sweepBySize(l)
	if err != nil {
		return byAge, err
	}
	r.purgedBySize = bySize

	byCommit, err := r.sweepByCommit(l, commit)
	if err != nil {
		return byAge + bySize, err
	}
	r.purgedByCommit = byCommit

	r.warnIfOverUtilized(l)
	return byAge + bySize + byCommit, nil
}

// sweepByAge deletes segments whose last modification is older than
// RetentionMillis. The active segment is never a candidate.
func (r *RetentionManager) sweepByAge(l *Log) (int, error) {
	if r.config.RetentionMillis <= 0 {
		return 0, nil
	}
	now := r.clock.NowMillis()
	return l.removeMatching(func(s *segment) bool {
		return now-s.LastModifiedMillis() > r.config.RetentionMillis
	})
}

// sweepBySize deletes segments oldest-first while the log's total size
// exceeds RetentionBytes. A negative RetentionBytes disables this pass.
func (r *RetentionManager) sweepBySize(l *Log) (int, error) {
	if r.config.RetentionBytes < 0 {
		return 0, nil
	}
	total := l.SizeBytes()
	if total <= uint64(r.config.RetentionBytes) {
		return 0, nil
	}

	segs := l.segmentsSnapshot()
	victims := make(map[*segment]bool)
	remaining := total
	for i := 0; i < len(segs)-1; i++ { // never the active (last) segment
		if remaining <= uint64(r.config.RetentionBytes) {
			break
		}
		victims[segs[i]] = true
		remaining -= segs[i].SizeBytes()
	}
	return l.removeMatching(func(s *segment) bool { return victims[s] })
}

// sweepByCommit deletes every segment not needed to hold
// [committedOffset, +inf). If the tracker is still at its sentinel, or
// fewer than two segments exist, the pass is a no-op.
func (r *RetentionManager) sweepByCommit(l *Log, commit *CommitTracker) (int, error) {
	if l.segments.Len() < 2 {
		return 0, nil
	}
	committed := commit.Get()
	if committed == Uncommitted {
		return 0, nil
	}

	segs := l.segmentsSnapshot()
	keepFrom := len(segs) - 1 // always keep the active segment
	for i, s := range segs {
		if uint64(committed) < s.NextOffset() {
			keepFrom = i
			break
		}
	}
	victims := make(map[*segment]bool, keepFrom)
	for _, s := range segs[:keepFrom] {
		victims[s] = true
	}
	return l.removeMatching(func(s *segment) bool { return victims[s] })
}

// warnIfOverUtilized logs a warning once the log's size crosses 95% of
// RetentionBytes.
func (r *RetentionManager) warnIfOverUtilized(l *Log) {
	if r.config.RetentionBytes <= 0 {
		return
	}
	utilization := float64(l.SizeBytes()) / float64(r.config.RetentionBytes) * 100
	if utilization > 95 {
		r.logger.Warn("journal utilization above 95% of retention budget",
			zap.Float64("utilizationPercent", utilization))
	}
}

// reapExpired unlinks *.deleted files whose rename happened more than
// FileDeleteDelayMillis ago, giving in-flight readers a grace window.
func (r *RetentionManager) reapExpired(dir string) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return err
	}
	now := r.clock.Now()
	for _, e := range entries {
		if !strings.HasSuffix(e.Name(), ".deleted") {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		age := now.Sub(info.ModTime())
		if age.Milliseconds() < r.config.FileDeleteDelayMillis {
			continue
		}
		if err := os.Remove(filepath.Join(dir, e.Name())); err != nil && !os.IsNotExist(err) {
			r.logger.Error("unlink expired deleted segment file failed", zap.Error(err))
		}
	}
	return nil
}

// PurgedSegments returns the per-pass counts from the most recent sweep.
func (r *RetentionManager) PurgedSegments() (byAge, bySize, byCommit int) {
	return r.purgedByAge, r.purgedBySize, r.purgedByCommit
}
