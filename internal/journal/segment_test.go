package journal

import (
	"os"
	"testing"

	"github.com/stretchr/testify/require"
)

func testSegmentConfig() segmentConfig {
	return segmentConfig{maxStoreBytes: 1024, maxIndexBytes: indexEntWidth * 3, indexInterval: 1}
}

func TestSegmentAppendAndRead(t *testing.T) {
	dir, err := os.MkdirTemp("", "segment-test")
	require.NoError(t, err)
	defer os.RemoveAll(dir)

	clk, _ := NewMockClock()
	s, err := newSegment(dir, 16, testSegmentConfig(), clk)
	require.NoError(t, err)
	require.Equal(t, uint64(16), s.BaseOffset())
	require.Equal(t, uint64(16), s.NextOffset())

	first, last, err := s.Append([]Entry{NewEntry([]byte("a"), []byte("A")), NewEntry([]byte("b"), []byte("B"))})
	require.NoError(t, err)
	require.Equal(t, uint64(16), first)
	require.Equal(t, uint64(17), last)
	require.Equal(t, uint64(18), s.NextOffset())

	raw, err := s.Read(16, 1<<20, 0)
	require.NoError(t, err)
	entries, lastOffset, err := decodeRecords(raw, 10)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	require.Equal(t, uint64(17), lastOffset)
	require.Equal(t, []byte("A"), entries[0].Payload)
	require.Equal(t, []byte("B"), entries[1].Payload)
}

func TestSegmentAppendFailsWhenFull(t *testing.T) {
	dir, err := os.MkdirTemp("", "segment-test")
	require.NoError(t, err)
	defer os.RemoveAll(dir)

	cfg := segmentConfig{maxStoreBytes: 20, maxIndexBytes: indexEntWidth * 10, indexInterval: 1}
	clk, _ := NewMockClock()
	s, err := newSegment(dir, 0, cfg, clk)
	require.NoError(t, err)

	_, _, err = s.Append([]Entry{NewEntry([]byte("k"), []byte("this payload is too big to fit"))})
	require.ErrorIs(t, err, ErrSegmentFull)
}

func TestSegmentIsFullOnIndexExhaustion(t *testing.T) {
	dir, err := os.MkdirTemp("", "segment-test")
	require.NoError(t, err)
	defer os.RemoveAll(dir)

	cfg := segmentConfig{maxStoreBytes: 1 << 20, maxIndexBytes: indexEntWidth, indexInterval: 1}
	clk, _ := NewMockClock()
	s, err := newSegment(dir, 0, cfg, clk)
	require.NoError(t, err)

	_, _, err = s.Append([]Entry{NewEntry([]byte("k"), []byte("v"))})
	require.NoError(t, err)
	require.True(t, s.IsFull())
}

func TestSegmentRecoversFromCrashTruncatingCorruptTail(t *testing.T) {
	dir, err := os.MkdirTemp("", "segment-test")
	require.NoError(t, err)
	defer os.RemoveAll(dir)

	clk, _ := NewMockClock()
	s, err := newSegment(dir, 0, testSegmentConfig(), clk)
	require.NoError(t, err)
	_, _, err = s.Append([]Entry{NewEntry([]byte("a"), []byte("A")), NewEntry([]byte("b"), []byte("B"))})
	require.NoError(t, err)
	require.NoError(t, s.Flush())
	validSize := s.SizeBytes()
	require.NoError(t, s.Close())

	// simulate a torn write: append a few garbage bytes to the store file.
	logPath := segmentFileName(dir, 0, ".log")
	f, err := os.OpenFile(logPath, os.O_WRONLY|os.O_APPEND, 0644)
	require.NoError(t, err)
	_, err = f.Write([]byte{0, 0, 0, 0, 0, 0, 0, 99, 0, 0, 0, 1})
	require.NoError(t, err)
	require.NoError(t, f.Close())

	s2, err := newSegment(dir, 0, testSegmentConfig(), clk)
	require.NoError(t, err)
	require.Equal(t, uint64(2), s2.NextOffset())
	require.Equal(t, validSize, s2.SizeBytes())
}

func TestSegmentTruncateTo(t *testing.T) {
	dir, err := os.MkdirTemp("", "segment-test")
	require.NoError(t, err)
	defer os.RemoveAll(dir)

	clk, _ := NewMockClock()
	s, err := newSegment(dir, 0, testSegmentConfig(), clk)
	require.NoError(t, err)
	for i := 0; i < 5; i++ {
		_, _, err := s.Append([]Entry{NewEntry(nil, []byte{byte(i)})})
		require.NoError(t, err)
	}

	require.NoError(t, s.TruncateTo(3))
	require.Equal(t, uint64(3), s.NextOffset())

	_, err = s.Read(3, 1024, 0)
	require.ErrorAs(t, err, new(*OffsetOutOfRangeError))
}

func TestSegmentMarkDeletedRenamesFiles(t *testing.T) {
	dir, err := os.MkdirTemp("", "segment-test")
	require.NoError(t, err)
	defer os.RemoveAll(dir)

	clk, _ := NewMockClock()
	s, err := newSegment(dir, 0, testSegmentConfig(), clk)
	require.NoError(t, err)

	require.NoError(t, s.MarkDeleted())
	_, err = os.Stat(segmentFileName(dir, 0, ".log") + ".deleted")
	require.NoError(t, err)
	_, err = os.Stat(segmentFileName(dir, 0, ".index") + ".deleted")
	require.NoError(t, err)
}
