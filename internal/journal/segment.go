package journal

import (
	"fmt"
	"os"
	"path/filepath"
)

// segmentConfig carries the subset of Config a segment needs to enforce its
// own capacity; Log decides roll-by-age, segment only knows roll-by-size
// and index exhaustion.
type segmentConfig struct {
	maxStoreBytes uint64
	maxIndexBytes uint64
	indexInterval uint64
}

// segment is a single on-disk append-only data file plus its companion
// sparse offset index. Exactly one segment per log is active (accepts
// appends); the rest are immutable and wait on retention.
type segment struct {
	dir        string
	store      *store
	index      *index
	baseOffset uint64
	nextOffset uint64
	config     segmentConfig
	clock      Clock

	bytesSinceIndexEntry uint64
	createdMillis        int64
	lastModifiedMillis   int64
}

func segmentFileName(dir string, baseOffset uint64, ext string) string {
	return filepath.Join(dir, fmt.Sprintf("%020d%s", baseOffset, ext))
}

// newSegment opens or creates the segment rooted at baseOffset, recovering
// its true tail (nextOffset, store size) by scanning forward from the last
// trusted index entry.
func newSegment(dir string, baseOffset uint64, cfg segmentConfig, clk Clock) (*segment, error) {
	s := &segment{
		dir:        dir,
		baseOffset: baseOffset,
		nextOffset: baseOffset,
		config:     cfg,
		clock:      clk,
	}

	storeFile, err := os.OpenFile(segmentFileName(dir, baseOffset, ".log"), os.O_RDWR|os.O_CREATE|os.O_APPEND, 0644)
	if err != nil {
		return nil, err
	}
	storeInfo, err := storeFile.Stat()
	if err != nil {
		return nil, err
	}
	if s.store, err = newStore(storeFile); err != nil {
		return nil, err
	}

	indexFile, err := os.OpenFile(segmentFileName(dir, baseOffset, ".index"), os.O_RDWR|os.O_CREATE, 0644)
	if err != nil {
		return nil, err
	}
	if s.index, err = newIndex(indexFile, cfg.maxIndexBytes); err != nil {
		return nil, err
	}

	if storeInfo.Size() == 0 {
		s.createdMillis = clk.NowMillis()
	} else {
		s.createdMillis = storeInfo.ModTime().UnixMilli()
	}
	s.lastModifiedMillis = s.createdMillis

	if err := s.recover(); err != nil {
		return nil, err
	}
	return s, nil
}

// recover trusts every index entry up to the last one, then scans the store
// forward from there, validating each record's length and CRC. A truncated
// or corrupt trailing record (CorruptSegment) stops the scan and truncates
// the store to the last fully valid record — the documented crash recovery
// behavior.
func (s *segment) recover() error {
	size := s.store.Size()
	var pos uint64
	nextOffset := s.baseOffset

	if n := s.index.Len(); n > 0 {
		relOff, p, err := s.index.ReadAt(n - 1)
		if err != nil {
			return err
		}
		pos = uint64(p)
		nextOffset = s.baseOffset + uint64(relOff) + 1
	}

	for pos < size {
		hdr := make([]byte, recordPrefixWidth)
		if _, err := s.store.ReadAt(hdr, int64(pos)); err != nil {
			break
		}
		recLen, err := recordLength(hdr)
		if err != nil || pos+recLen > size {
			break
		}
		full := make([]byte, recLen)
		if _, err := s.store.ReadAt(full, int64(pos)); err != nil {
			break
		}
		rec, err := decodeRecord(full)
		if err != nil {
			break
		}
		nextOffset = rec.offset + 1
		pos += recLen
	}

	if pos < size {
		if err := s.store.TruncateTo(pos); err != nil {
			return err
		}
	}
	s.nextOffset = nextOffset
	s.bytesSinceIndexEntry = 0
	return nil
}

// Append writes key/payload pairs to the tail of the segment, assigning each
// the next sequential offset. It fails atomically with ErrSegmentFull if the
// whole batch would not fit — no partial batch is ever written.
func (s *segment) Append(entries []Entry) (first, last uint64, err error) {
	if len(entries) == 0 {
		return s.nextOffset, s.nextOffset, nil
	}

	encoded := make([][]byte, len(entries))
	var total uint64
	for i, e := range entries {
		if len(e.Key) > maxFieldLength || len(e.Payload) > maxFieldLength {
			return 0, 0, ErrEntryTooLarge
		}
		buf := encodeRecord(s.nextOffset+uint64(i), e.Key, e.Payload)
		encoded[i] = buf
		total += uint64(len(buf))
	}
	if s.store.Size()+total > s.config.maxStoreBytes {
		return 0, 0, ErrSegmentFull
	}

	first = s.nextOffset
	for i, buf := range encoded {
		pos, err := s.store.Append(buf)
		if err != nil {
			return 0, 0, err
		}
		relOffset := uint32(s.nextOffset + uint64(i) - s.baseOffset)
		s.bytesSinceIndexEntry += uint64(len(buf))
		if s.index.Len() == 0 || s.bytesSinceIndexEntry >= s.config.indexInterval {
			if !s.index.IsFull() {
				if err := s.index.Write(relOffset, uint32(pos)); err != nil {
					return 0, 0, err
				}
				s.bytesSinceIndexEntry = 0
			}
		}
	}
	last = s.nextOffset + uint64(len(entries)) - 1
	s.nextOffset = last + 1
	s.lastModifiedMillis = s.clock.NowMillis()
	return first, last, nil
}

// Read returns the raw bytes of whole records in [startOffset, upperBound)
// (upperBound of 0 means unbounded), capped at maxBytes but always returning
// at least one record if one exists at startOffset, even if it overflows
// maxBytes — this prevents a single oversized record from starving the
// reader forever.
func (s *segment) Read(startOffset uint64, maxBytes uint32, upperBound uint64) ([]byte, error) {
	if startOffset < s.baseOffset || startOffset >= s.nextOffset {
		return nil, &OffsetOutOfRangeError{Offset: startOffset}
	}

	relTarget := uint32(startOffset - s.baseOffset)
	_, pos, found := s.index.Lookup(relTarget)
	if !found {
		pos = 0
	}

	size := s.store.Size()
	out := make([]byte, 0, maxBytes)
	for uint64(pos) < size {
		hdr := make([]byte, recordPrefixWidth)
		if _, err := s.store.ReadAt(hdr, int64(pos)); err != nil {
			return nil, err
		}
		recLen, err := recordLength(hdr)
		if err != nil {
			return nil, err
		}
		full := make([]byte, recLen)
		if _, err := s.store.ReadAt(full, int64(pos)); err != nil {
			return nil, err
		}
		rec, err := decodeRecord(full)
		if err != nil {
			return nil, err
		}

		if rec.offset < startOffset {
			pos += recLen
			continue
		}
		if upperBound != 0 && rec.offset >= upperBound {
			break
		}
		if len(out) > 0 && uint64(len(out))+recLen > uint64(maxBytes) {
			break
		}
		out = append(out, full...)
		pos += recLen
		if uint64(len(out)) >= uint64(maxBytes) {
			break
		}
	}
	return out, nil
}

// IsFull reports whether the segment can no longer accept writes because its
// store or index has reached capacity.
func (s *segment) IsFull() bool {
	return s.store.Size() >= s.config.maxStoreBytes || s.index.IsFull()
}

func (s *segment) SizeBytes() uint64        { return s.store.Size() }
func (s *segment) BaseOffset() uint64       { return s.baseOffset }
func (s *segment) NextOffset() uint64       { return s.nextOffset }
func (s *segment) CreatedMillis() int64     { return s.createdMillis }
func (s *segment) LastModifiedMillis() int64 { return s.lastModifiedMillis }

// LastOffset returns the offset of the last record written, and false if the
// segment is empty.
func (s *segment) LastOffset() (uint64, bool) {
	if s.nextOffset == s.baseOffset {
		return 0, false
	}
	return s.nextOffset - 1, true
}

// Flush fsyncs both the store and the index.
func (s *segment) Flush() error {
	if err := s.store.Flush(); err != nil {
		return err
	}
	return s.index.Flush()
}

// TruncateTo drops every record at or beyond offset. offset must be >= the
// segment's base offset.
func (s *segment) TruncateTo(offset uint64) error {
	if offset <= s.baseOffset {
		if err := s.store.TruncateTo(0); err != nil {
			return err
		}
		s.index.TruncateFrom(0)
		s.nextOffset = s.baseOffset
		return nil
	}
	if offset >= s.nextOffset {
		return nil
	}

	relTarget := uint32(offset - s.baseOffset)
	_, pos, found := s.index.Lookup(relTarget)
	if !found {
		pos = 0
	}
	size := s.store.Size()
	for uint64(pos) < size {
		hdr := make([]byte, recordPrefixWidth)
		if _, err := s.store.ReadAt(hdr, int64(pos)); err != nil {
			return err
		}
		recLen, err := recordLength(hdr)
		if err != nil {
			return err
		}
		full := make([]byte, recLen)
		if _, err := s.store.ReadAt(full, int64(pos)); err != nil {
			return err
		}
		rec, err := decodeRecord(full)
		if err != nil {
			return err
		}
		if rec.offset >= offset {
			break
		}
		pos += recLen
	}
	if err := s.store.TruncateTo(pos); err != nil {
		return err
	}
	s.index.TruncateFrom(relTarget)
	s.nextOffset = offset
	return nil
}

// Close flushes and closes both underlying files.
func (s *segment) Close() error {
	if err := s.index.Close(); err != nil {
		return err
	}
	return s.store.Close()
}

// Remove closes the segment and deletes its files outright (used by
// Log.TruncateTo; retention goes through MarkDeleted instead so
// in-flight readers get the fileDeleteDelayMillis grace window).
func (s *segment) Remove() error {
	if err := s.Close(); err != nil {
		return err
	}
	if err := os.Remove(s.index.Name()); err != nil && !os.IsNotExist(err) {
		return err
	}
	if err := os.Remove(s.store.Name()); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

// MarkDeleted closes the segment and renames its files with a ".deleted"
// suffix rather than unlinking them immediately, so readers that already
// hold a reference can finish safely within fileDeleteDelayMillis.
func (s *segment) MarkDeleted() error {
	if err := s.Close(); err != nil {
		return err
	}
	if err := os.Rename(s.store.Name(), s.store.Name()+".deleted"); err != nil && !os.IsNotExist(err) {
		return err
	}
	if err := os.Rename(s.index.Name(), s.index.Name()+".deleted"); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}
