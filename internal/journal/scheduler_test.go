package journal

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestSchedulerRunsJobOnEveryTick(t *testing.T) {
	clk, mock := NewMockClock()
	sc := NewScheduler(clk, zap.NewNop())

	var calls atomic.Int64
	sc.Start(job{
		name:     "counter",
		interval: time.Second,
		run: func() error {
			calls.Add(1)
			return nil
		},
	})
	defer sc.Stop()

	for i := 0; i < 3; i++ {
		mock.Add(time.Second)
	}
	require.Eventually(t, func() bool { return calls.Load() >= 3 }, time.Second, time.Millisecond)
}

func TestSchedulerSwallowsJobErrors(t *testing.T) {
	clk, mock := NewMockClock()
	sc := NewScheduler(clk, zap.NewNop())

	var calls atomic.Int64
	sc.Start(job{
		name:     "always-fails",
		interval: time.Second,
		run: func() error {
			calls.Add(1)
			return ErrSyncFailed
		},
	})
	defer sc.Stop()

	mock.Add(time.Second)
	mock.Add(time.Second)
	require.Eventually(t, func() bool { return calls.Load() >= 2 }, time.Second, time.Millisecond)
}

func TestSchedulerSwallowsJobPanic(t *testing.T) {
	clk, mock := NewMockClock()
	sc := NewScheduler(clk, zap.NewNop())

	var calls atomic.Int64
	sc.Start(job{
		name:     "panics",
		interval: time.Second,
		run: func() error {
			calls.Add(1)
			panic("boom")
		},
	})
	defer sc.Stop()

	mock.Add(time.Second)
	mock.Add(time.Second)
	require.Eventually(t, func() bool { return calls.Load() >= 2 }, time.Second, time.Millisecond)
}

func TestSchedulerStopWaitsForJobsToExit(t *testing.T) {
	clk, _ := NewMockClock()
	sc := NewScheduler(clk, zap.NewNop())
	sc.Start(job{name: "noop", interval: time.Second, run: func() error { return nil }})
	sc.Stop() // must return promptly, not hang
}
