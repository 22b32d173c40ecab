package journal

import (
	"os"
	"sort"

	"github.com/tysonmote/gommap"
)

// Index entry: (relative_offset: u32, file_position: u32), fixed 8 bytes.
// The index is sparse — one entry roughly every indexInterval bytes of
// store data, not one per record — so lookups binary-search for the
// greatest entry with offset <= target and the caller scans forward from
// there; the index is never assumed complete.
const (
	indexOffWidth = 4
	indexPosWidth = 4
	indexEntWidth = indexOffWidth + indexPosWidth
)

type index struct {
	file     *os.File
	mmap     gommap.MMap
	size     uint64
	maxBytes uint64
}

// newIndex takes the already-open index file f, grows it to maxBytes so it
// can be memory-mapped (files can't grow after mapping), and maps it
// read-write.
func newIndex(f *os.File, maxBytes uint64) (*index, error) {
	idx := &index{file: f, maxBytes: maxBytes}

	fi, err := os.Stat(f.Name())
	if err != nil {
		return nil, err
	}
	idx.size = uint64(fi.Size())

	if err := os.Truncate(f.Name(), int64(maxBytes)); err != nil {
		return nil, err
	}
	m, err := gommap.Map(f.Fd(), gommap.PROT_READ|gommap.PROT_WRITE, gommap.MAP_SHARED)
	if err != nil {
		return nil, err
	}
	idx.mmap = m
	return idx, nil
}

func (i *index) Name() string { return i.file.Name() }

// Len returns the number of entries written so far.
func (i *index) Len() uint32 {
	return uint32(i.size / indexEntWidth)
}

// IsFull reports whether the backing file has no room for another entry.
func (i *index) IsFull() bool {
	return i.size+indexEntWidth > i.maxBytes
}

// ReadAt returns the n-th entry (0-based).
func (i *index) ReadAt(n uint32) (off, pos uint32, err error) {
	if uint64(n+1)*indexEntWidth > i.size {
		return 0, 0, ErrOffsetOutOfRange
	}
	start := uint64(n) * indexEntWidth
	off = enc.Uint32(i.mmap[start : start+indexOffWidth])
	pos = enc.Uint32(i.mmap[start+indexOffWidth : start+indexEntWidth])
	return off, pos, nil
}

// Write appends a new (relative offset, position) entry. Entries must be
// written in increasing offset order since Lookup binary-searches them.
func (i *index) Write(off, pos uint32) error {
	if i.IsFull() {
		return ErrSegmentFull
	}
	enc.PutUint32(i.mmap[i.size:i.size+indexOffWidth], off)
	enc.PutUint32(i.mmap[i.size+indexOffWidth:i.size+indexEntWidth], pos)
	i.size += indexEntWidth
	return nil
}

// Lookup finds the entry with the greatest offset <= target. found is false
// if even the first entry's offset exceeds target, or the index is empty.
func (i *index) Lookup(target uint32) (off, pos uint32, found bool) {
	n := int(i.Len())
	if n == 0 {
		return 0, 0, false
	}
	// search returns the first index whose entry offset > target.
	j := sort.Search(n, func(k int) bool {
		o, _, _ := i.ReadAt(uint32(k))
		return o > target
	})
	if j == 0 {
		return 0, 0, false
	}
	off, pos, _ = i.ReadAt(uint32(j - 1))
	return off, pos, true
}

// TruncateFrom drops every entry whose offset is >= from.
func (i *index) TruncateFrom(from uint32) {
	n := int(i.Len())
	j := sort.Search(n, func(k int) bool {
		o, _, _ := i.ReadAt(uint32(k))
		return o >= from
	})
	i.size = uint64(j) * indexEntWidth
}

// Flush fsyncs the memory-mapped region and the backing file without
// unmapping, so the segment can keep writing.
func (i *index) Flush() error {
	if err := i.mmap.Sync(gommap.MS_SYNC); err != nil {
		return err
	}
	return i.file.Sync()
}

// Close flushes, unmaps and truncates the file down to its logical size
// (undoing the zero-padding newIndex applied to make it mappable), then
// closes it. Unmapping before truncating matters on Windows, which refuses
// to truncate a file backing an active mapping.
func (i *index) Close() error {
	if err := i.Flush(); err != nil {
		return err
	}
	if err := i.mmap.UnsafeUnmap(); err != nil {
		return err
	}
	if err := i.file.Truncate(int64(i.size)); err != nil {
		return err
	}
	return i.file.Close()
}
