// Package journal implements a durable, append-only, segmented message
// journal: the storage engine described by this repository's component
// design (Segment, SegmentSet, Log, CommitTracker, RetentionManager,
// Scheduler and the Journal façade).
package journal

import (
	"bufio"
	"os"
	"sync"
)

// store is a single append-only data file. Unlike a generic length-prefixed
// blob store, records written here are already self-framed (record.go's
// offset/total_length/crc32 header), so store itself carries no extra
// framing — it only tracks the file, a buffered writer and the running size.
type store struct {
	*os.File
	mu   sync.Mutex
	buf  *bufio.Writer
	size uint64
}

func newStore(f *os.File) (*store, error) {
	fi, err := os.Stat(f.Name())
	if err != nil {
		return nil, err
	}
	return &store{
		File: f,
		size: uint64(fi.Size()),
		buf:  bufio.NewWriter(f),
	}, nil
}

// Append writes a fully-encoded record to the tail of the store and returns
// the position it was written at.
func (s *store) Append(p []byte) (pos uint64, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	pos = s.size
	n, err := s.buf.Write(p)
	if err != nil {
		return 0, err
	}
	s.size += uint64(n)
	return pos, nil
}

// ReadAt reads len(p) bytes starting at off, flushing buffered writes first
// so reads always observe the latest appends.
func (s *store) ReadAt(p []byte, off int64) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.buf.Flush(); err != nil {
		return 0, err
	}
	return s.File.ReadAt(p, off)
}

// Size returns the current logical size of the store, including buffered
// but not-yet-flushed bytes.
func (s *store) Size() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.size
}

// Flush fsyncs buffered writes to disk without closing the file.
func (s *store) Flush() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.buf.Flush(); err != nil {
		return err
	}
	return s.File.Sync()
}

// TruncateTo drops everything at and beyond pos, used for crash recovery and
// explicit truncation.
func (s *store) TruncateTo(pos uint64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.buf.Flush(); err != nil {
		return err
	}
	if err := s.File.Truncate(int64(pos)); err != nil {
		return err
	}
	if _, err := s.File.Seek(int64(pos), 0); err != nil {
		return err
	}
	s.buf.Reset(s.File)
	s.size = pos
	return nil
}

func (s *store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.buf.Flush(); err != nil {
		return err
	}
	return s.File.Close()
}
