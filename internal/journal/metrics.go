package journal

import "github.com/prometheus/client_golang/prometheus"

// Metrics is the set of gauges and counters exposed by a Journal. It is
// constructed against a caller-supplied registry rather than registering
// against prometheus' default global registry, so tests and multiple
// journals in one process don't collide.
type Metrics struct {
	messagesWritten prometheus.Counter
	messagesRead    prometheus.Counter
	writeTime       prometheus.Histogram
	readTime        prometheus.Histogram

	uncommittedMessages prometheus.Gauge
	size                prometheus.Gauge
	logEndOffset        prometheus.Gauge
	numberOfSegments    prometheus.Gauge
	unflushedMessages   prometheus.Gauge
	recoveryPoint       prometheus.Gauge
	lastFlushTime       prometheus.Gauge
	oldestSegmentAge    prometheus.Gauge
}

// NewMetrics registers every journal gauge/counter/histogram on reg and
// returns the bound collectors. reg is typically a fresh
// prometheus.NewRegistry() owned by the caller, not the global default one.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		messagesWritten: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "journal", Name: "messages_written_total",
			Help: "Total number of records appended to the journal.",
		}),
		messagesRead: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "journal", Name: "messages_read_total",
			Help: "Total number of records returned by reads.",
		}),
		writeTime: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "journal", Name: "write_seconds",
			Help:    "Latency of Append calls.",
			Buckets: prometheus.DefBuckets,
		}),
		readTime: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "journal", Name: "read_seconds",
			Help:    "Latency of Read calls.",
			Buckets: prometheus.DefBuckets,
		}),
		uncommittedMessages: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "journal", Name: "uncommitted_messages",
			Help: "logEndOffset - (committedOffset + 1).",
		}),
		size: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "journal", Name: "size_bytes",
			Help: "Total on-disk size of all segments.",
		}),
		logEndOffset: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "journal", Name: "log_end_offset",
			Help: "Offset the next appended record will receive.",
		}),
		numberOfSegments: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "journal", Name: "number_of_segments",
			Help: "Count of segments currently retained.",
		}),
		unflushedMessages: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "journal", Name: "unflushed_messages",
			Help: "logEndOffset - recoveryPoint.",
		}),
		recoveryPoint: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "journal", Name: "recovery_point",
			Help: "Highest offset known to be fsynced.",
		}),
		lastFlushTime: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "journal", Name: "last_flush_time_millis",
			Help: "Unix millis timestamp of the last successful flush.",
		}),
		oldestSegmentAge: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "journal", Subsystem: "oldest_segment", Name: "age_millis",
			Help: "Age in millis of the oldest retained segment's last modification.",
		}),
	}
	reg.MustRegister(
		m.messagesWritten, m.messagesRead, m.writeTime, m.readTime,
		m.uncommittedMessages, m.size, m.logEndOffset, m.numberOfSegments,
		m.unflushedMessages, m.recoveryPoint, m.lastFlushTime, m.oldestSegmentAge,
	)
	return m
}

// observeWrite records a successful Append of n records that took the given
// number of seconds.
func (m *Metrics) observeWrite(n int, seconds float64) {
	m.messagesWritten.Add(float64(n))
	m.writeTime.Observe(seconds)
}

// observeRead records a successful Read of n records that took the given
// number of seconds.
func (m *Metrics) observeRead(n int, seconds float64) {
	m.messagesRead.Add(float64(n))
	m.readTime.Observe(seconds)
}

// refreshGauges snapshots l/commit state into the gauge set. Journal calls it
// after every successful write and read.
func (m *Metrics) refreshGauges(l *Log, commit *CommitTracker, nowMillis int64) {
	m.size.Set(float64(l.SizeBytes()))
	endOffset := l.LogEndOffset()
	m.logEndOffset.Set(float64(endOffset))
	m.numberOfSegments.Set(float64(l.NumberOfSegments()))
	m.unflushedMessages.Set(float64(l.UnflushedMessages()))
	m.recoveryPoint.Set(float64(l.RecoveryPoint()))
	m.lastFlushTime.Set(float64(l.LastFlushMillis()))

	next := commit.NextReadOffset()
	if endOffset > next {
		m.uncommittedMessages.Set(float64(endOffset - next))
	} else {
		m.uncommittedMessages.Set(0)
	}

	segs := l.segmentsSnapshot()
	if len(segs) > 0 {
		m.oldestSegmentAge.Set(float64(nowMillis - segs[0].LastModifiedMillis()))
	} else {
		m.oldestSegmentAge.Set(0)
	}
}
