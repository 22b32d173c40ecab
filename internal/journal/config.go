package journal

import "time"

// Config holds every tunable named in the journal's external interface.
// Zero values are backfilled with defaults by NewLog, mirroring the
// teacher's NewLog (which defaults MaxStoreBytes/MaxIndexBytes to 1024).
type Config struct {
	// SegmentBytes is a soft cap on segment data file size before roll.
	SegmentBytes uint64
	// SegmentAgeMillis is a soft cap on segment wall-clock age before roll.
	SegmentAgeMillis int64

	// FlushIntervalMessages forces an fsync after this many unflushed appends.
	FlushIntervalMessages uint64
	// FlushAgeMillis forces an fsync once a log has been dirty this long.
	FlushAgeMillis int64

	// RetentionBytes is the size-based retention cap; < 0 disables the pass.
	RetentionBytes int64
	// RetentionMillis is the age-based retention cap.
	RetentionMillis int64

	// FlushCheckMillis, FlushCheckpointMillis and RetentionCheckMillis are
	// the Scheduler's periods for the dirty-log flusher, the
	// recovery-checkpoint flusher and the retention sweep.
	FlushCheckMillis      int64
	FlushCheckpointMillis int64
	RetentionCheckMillis  int64

	// FileDeleteDelayMillis is the grace period between marking a segment's
	// files for deletion and unlinking them.
	FileDeleteDelayMillis int64

	// IndexInterval is the sparse-index density, in store bytes per entry.
	IndexInterval uint64
	// MaxIndexSize is the hard cap on a segment's index file size.
	MaxIndexSize uint64

	// InitialOffset is the base offset used when creating a brand new log
	// with no existing segments.
	InitialOffset uint64
}

// DefaultConfig returns the configuration the teacher's NewLog effectively
// hard-codes for segment sizes, extended with this spec's retention and
// scheduler defaults.
func DefaultConfig() Config {
	return Config{
		SegmentBytes:          1024 * 1024,
		SegmentAgeMillis:      int64(7 * 24 * time.Hour / time.Millisecond),
		FlushIntervalMessages: 1,
		FlushAgeMillis:        int64(10 * time.Second / time.Millisecond),
		RetentionBytes:        -1,
		RetentionMillis:       int64(7 * 24 * time.Hour / time.Millisecond),
		FlushCheckMillis:      int64(time.Second / time.Millisecond),
		FlushCheckpointMillis: int64(2 * time.Second / time.Millisecond),
		RetentionCheckMillis:  int64(5 * time.Second / time.Millisecond),
		FileDeleteDelayMillis: int64(60 * time.Second / time.Millisecond),
		IndexInterval:         4096,
		MaxIndexSize:          1024 * 1024,
		InitialOffset:         0,
	}
}

// withDefaults backfills zero-valued fields of c from DefaultConfig, and
// validates the result. A negative RetentionBytes is a legitimate
// "disabled" sentinel, not a zero value, so it's left untouched.
func (c Config) withDefaults() (Config, error) {
	d := DefaultConfig()
	if c.SegmentBytes == 0 {
		c.SegmentBytes = d.SegmentBytes
	}
	if c.SegmentAgeMillis == 0 {
		c.SegmentAgeMillis = d.SegmentAgeMillis
	}
	if c.FlushIntervalMessages == 0 {
		c.FlushIntervalMessages = d.FlushIntervalMessages
	}
	if c.FlushAgeMillis == 0 {
		c.FlushAgeMillis = d.FlushAgeMillis
	}
	if c.RetentionBytes == 0 {
		c.RetentionBytes = d.RetentionBytes
	}
	if c.RetentionMillis == 0 {
		c.RetentionMillis = d.RetentionMillis
	}
	if c.FlushCheckMillis == 0 {
		c.FlushCheckMillis = d.FlushCheckMillis
	}
	if c.FlushCheckpointMillis == 0 {
		c.FlushCheckpointMillis = d.FlushCheckpointMillis
	}
	if c.RetentionCheckMillis == 0 {
		c.RetentionCheckMillis = d.RetentionCheckMillis
	}
	if c.FileDeleteDelayMillis == 0 {
		c.FileDeleteDelayMillis = d.FileDeleteDelayMillis
	}
	if c.IndexInterval == 0 {
		c.IndexInterval = d.IndexInterval
	}
	if c.MaxIndexSize == 0 {
		c.MaxIndexSize = d.MaxIndexSize
	}

	if c.SegmentBytes < uint64(indexEntWidth) {
		return c, ErrConfigInvalid
	}
	if c.MaxIndexSize < indexEntWidth {
		return c, ErrConfigInvalid
	}
	if c.IndexInterval == 0 {
		return c, ErrConfigInvalid
	}
	return c, nil
}

func (c Config) segmentConfig() segmentConfig {
	return segmentConfig{
		maxStoreBytes: c.SegmentBytes,
		maxIndexBytes: c.MaxIndexSize,
		indexInterval: c.IndexInterval,
	}
}
