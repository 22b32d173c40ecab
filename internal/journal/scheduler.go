package journal

import (
	"sync"
	"time"

	"go.uber.org/zap"
)

// job is one periodic task the Scheduler drives off its Clock.
type job struct {
	name         string
	initialDelay time.Duration
	interval     time.Duration
	run          func() error
}

// Scheduler drives the four periodic jobs a Journal needs — the dirty-log
// flusher, the recovery-checkpoint flusher, the retention sweep and the
// commit-offset persister — off an injectable Clock so tests can advance
// virtual time instead of sleeping.
type Scheduler struct {
	clock  Clock
	logger *zap.Logger

	wg     sync.WaitGroup
	stopCh chan struct{}
	once   sync.Once
}

// NewScheduler builds a Scheduler bound to clk. Start must be called to
// actually begin running jobs.
func NewScheduler(clk Clock, logger *zap.Logger) *Scheduler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Scheduler{
		clock:  clk,
		logger: logger.Named("scheduler"),
		stopCh: make(chan struct{}),
	}
}

// Start launches one goroutine per job, each ticking at its own interval.
// A job's panic or error is logged and swallowed — one failing tick never
// stops the ticker or crashes the process.
func (sc *Scheduler) Start(jobs ...job) {
	for _, j := range jobs {
		sc.wg.Add(1)
		go sc.runJob(j)
	}
}

func (sc *Scheduler) runJob(j job) {
	defer sc.wg.Done()

	if j.initialDelay > 0 {
		timer := sc.clock.Timer(j.initialDelay)
		select {
		case <-sc.stopCh:
			timer.Stop()
			return
		case <-timer.C:
		}
	}

	ticker := sc.clock.Ticker(j.interval)
	defer ticker.Stop()
	for {
		select {
		case <-sc.stopCh:
			return
		case <-ticker.C:
			sc.tick(j)
		}
	}
}

func (sc *Scheduler) tick(j job) {
	defer func() {
		if r := recover(); r != nil {
			sc.logger.Error("scheduled job panicked", zap.String("job", j.name), zap.Any("panic", r))
		}
	}()
	if err := j.run(); err != nil {
		sc.logger.Warn("scheduled job failed", zap.String("job", j.name), zap.Error(err))
	}
}

// Stop signals every running job to exit and waits for them to return.
func (sc *Scheduler) Stop() {
	sc.once.Do(func() { close(sc.stopCh) })
	sc.wg.Wait()
}
