package journal

import (
	"time"

	"github.com/benbjohnson/clock"
)

// Clock is the time capability threaded through Log, RetentionManager and
// Scheduler so tests can drive wall-clock time forward deterministically
// instead of sleeping. Production code uses NewClock, tests use NewMockClock
// and advance it with the returned *clock.Mock.
type Clock struct {
	clock.Clock
}

// NewClock returns a Clock backed by the real wall clock.
func NewClock() Clock {
	return Clock{Clock: clock.New()}
}

// NewMockClock returns a Clock that only advances when the returned mock is
// told to, plus the mock itself for driving it forward in tests.
func NewMockClock() (Clock, *clock.Mock) {
	m := clock.NewMock()
	return Clock{Clock: m}, m
}

// NowMillis returns the current time as Unix milliseconds.
func (c Clock) NowMillis() int64 {
	return c.Now().UnixMilli()
}

// Nanos returns the current time as Unix nanoseconds.
func (c Clock) Nanos() int64 {
	return c.Now().UnixNano()
}

// Sleep blocks the calling goroutine for d, respecting a mock clock in tests.
func (c Clock) Sleep(d time.Duration) {
	<-c.After(d)
}
