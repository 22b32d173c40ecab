package journal

import (
	"errors"
	"fmt"
)

// Error taxonomy, per the journal's error handling design: IOError and
// SyncFailed surface or get swallowed depending on the caller (read/write
// paths surface them, scheduler jobs log and retry next tick); OffsetOutOfRange
// is non-fatal on read, fatal on explicit truncate; LockFailed and
// ConfigInvalid are fatal at startup.
var (
	// ErrSegmentFull is returned by a segment's Append when the write would
	// exceed its configured capacity. The log treats this as a roll signal
	// and retries in a fresh segment; it reaches the caller only when a
	// batch does not fit even in an empty segment.
	ErrSegmentFull = errors.New("journal: segment full")

	// ErrOffsetOutOfRange is returned when a read or truncate targets an
	// offset outside a segment's or the log's range. Match it with
	// errors.Is; use errors.As with *OffsetOutOfRangeError to recover the
	// offset that was requested.
	ErrOffsetOutOfRange = errors.New("journal: offset out of range")

	// ErrCorruptSegment is returned when a CRC or length mismatch is found
	// while scanning a segment during recovery. The segment is truncated to
	// its last valid record and recovery continues.
	ErrCorruptSegment = errors.New("journal: corrupt segment")

	// ErrSyncFailed indicates an fsync call returned an error. Durability is
	// best-effort within the documented windows; callers log and continue.
	ErrSyncFailed = errors.New("journal: fsync failed")

	// ErrLockFailed indicates the journal directory is already held open by
	// another process.
	ErrLockFailed = errors.New("journal: directory is locked by another process")

	// ErrConfigInvalid indicates a bad combination of segment/retention sizes.
	ErrConfigInvalid = errors.New("journal: invalid configuration")

	// ErrEntryTooLarge is returned when a key or payload exceeds the 2^31-1
	// byte hard cap mirrored by the wire format's 32-bit length prefixes.
	ErrEntryTooLarge = errors.New("journal: entry exceeds maximum size")
)

// OffsetOutOfRangeError carries the offset that triggered ErrOffsetOutOfRange
// so callers can decide how to recover (the façade, per design note in §9,
// recovers by jumping the caller forward to logStartOffset).
type OffsetOutOfRangeError struct {
	Offset uint64
}

func (e *OffsetOutOfRangeError) Error() string {
	return fmt.Sprintf("journal: offset %d out of range", e.Offset)
}

// Is lets errors.Is(err, ErrOffsetOutOfRange) succeed against the typed form.
func (e *OffsetOutOfRangeError) Is(target error) bool {
	return target == ErrOffsetOutOfRange
}
