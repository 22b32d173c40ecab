package journal

import (
	"sort"
	"sync"
)

// segmentSet is the ordered-by-base-offset collection of segments making up
// one logical log. Mutating operations (adding the active segment, removing
// retention victims) are serialized through mu so append-triggered rolls and
// retention-triggered deletes never interleave.
type segmentSet struct {
	mu       sync.RWMutex
	segments []*segment
}

func newSegmentSet() *segmentSet {
	return &segmentSet{}
}

// Add appends a new segment and makes it the active (last, tail) one.
func (ss *segmentSet) Add(s *segment) {
	ss.mu.Lock()
	defer ss.mu.Unlock()
	ss.segments = append(ss.segments, s)
}

// All returns a snapshot slice of the current segments, oldest first.
func (ss *segmentSet) All() []*segment {
	ss.mu.RLock()
	defer ss.mu.RUnlock()
	out := make([]*segment, len(ss.segments))
	copy(out, ss.segments)
	return out
}

// Len returns the number of segments currently tracked.
func (ss *segmentSet) Len() int {
	ss.mu.RLock()
	defer ss.mu.RUnlock()
	return len(ss.segments)
}

// First returns the oldest (lowest base offset) segment.
func (ss *segmentSet) First() *segment {
	ss.mu.RLock()
	defer ss.mu.RUnlock()
	if len(ss.segments) == 0 {
		return nil
	}
	return ss.segments[0]
}

// Active returns the tail segment, the only one accepting appends.
func (ss *segmentSet) Active() *segment {
	ss.mu.RLock()
	defer ss.mu.RUnlock()
	if len(ss.segments) == 0 {
		return nil
	}
	return ss.segments[len(ss.segments)-1]
}

// FindForOffset binary-searches for the segment whose range contains offset.
func (ss *segmentSet) FindForOffset(offset uint64) (*segment, bool) {
	ss.mu.RLock()
	defer ss.mu.RUnlock()
	n := len(ss.segments)
	if n == 0 {
		return nil, false
	}
	// first index whose base offset exceeds the target.
	i := sort.Search(n, func(k int) bool {
		return ss.segments[k].BaseOffset() > offset
	})
	if i == 0 {
		return nil, false
	}
	s := ss.segments[i-1]
	if offset >= s.NextOffset() {
		return nil, false
	}
	return s, true
}

// RemoveWhere deletes every non-active segment matching pred and returns the
// removed segments. The active segment is never a candidate.
func (ss *segmentSet) RemoveWhere(pred func(*segment) bool) []*segment {
	ss.mu.Lock()
	defer ss.mu.Unlock()
	if len(ss.segments) < 2 {
		return nil
	}

	kept := ss.segments[:0:0]
	var removed []*segment
	active := ss.segments[len(ss.segments)-1]
	for _, s := range ss.segments {
		if s != active && pred(s) {
			removed = append(removed, s)
			continue
		}
		kept = append(kept, s)
	}
	ss.segments = kept
	return removed
}
