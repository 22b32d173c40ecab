package journal

import (
	"os"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func testLogConfig() Config {
	return Config{
		SegmentBytes:  128,
		IndexInterval: 1,
		MaxIndexSize:  indexEntWidth * 32,
	}
}

func TestLogBasicWriteRead(t *testing.T) {
	dir, err := os.MkdirTemp("", "log-test")
	require.NoError(t, err)
	defer os.RemoveAll(dir)

	clk, _ := NewMockClock()
	l, err := NewLog(dir, testLogConfig(), clk, zap.NewNop())
	require.NoError(t, err)

	first, last, err := l.Append([]Entry{
		NewEntry([]byte("a"), []byte("A")),
		NewEntry([]byte("b"), []byte("B")),
		NewEntry([]byte("c"), []byte("C")),
	})
	require.NoError(t, err)
	require.Equal(t, uint64(0), first)
	require.Equal(t, uint64(2), last)
	require.Equal(t, uint64(3), l.LogEndOffset())

	raw, err := l.Read(0, 1024, 0)
	require.NoError(t, err)
	entries, lastOffset, err := decodeRecords(raw, 10)
	require.NoError(t, err)
	require.Len(t, entries, 3)
	require.Equal(t, uint64(2), lastOffset)
	require.Equal(t, []byte("A"), entries[0].Payload)
	require.Equal(t, []byte("C"), entries[2].Payload)
}

func TestLogRollsOnSize(t *testing.T) {
	dir, err := os.MkdirTemp("", "log-test")
	require.NoError(t, err)
	defer os.RemoveAll(dir)

	clk, _ := NewMockClock()
	cfg := testLogConfig()
	cfg.SegmentBytes = 128
	l, err := NewLog(dir, cfg, clk, zap.NewNop())
	require.NoError(t, err)

	payload := make([]byte, 16)
	for i := 0; i < 20; i++ {
		_, _, err := l.Append([]Entry{NewEntry(nil, payload)})
		require.NoError(t, err)
	}

	require.Equal(t, uint64(20), l.LogEndOffset())
	require.GreaterOrEqual(t, l.NumberOfSegments(), 2)

	raw, err := l.Read(0, 1<<20, 0)
	require.NoError(t, err)
	entries, _, err := decodeRecords(raw, 100)
	require.NoError(t, err)
	require.Len(t, entries, 20)
}

func TestLogReadOutOfRange(t *testing.T) {
	dir, err := os.MkdirTemp("", "log-test")
	require.NoError(t, err)
	defer os.RemoveAll(dir)

	clk, _ := NewMockClock()
	l, err := NewLog(dir, testLogConfig(), clk, zap.NewNop())
	require.NoError(t, err)
	_, _, err = l.Append([]Entry{NewEntry(nil, []byte("x"))})
	require.NoError(t, err)

	_, err = l.Read(99, 1024, 0)
	require.ErrorAs(t, err, new(*OffsetOutOfRangeError))
}

func TestLogFlushAdvancesRecoveryPoint(t *testing.T) {
	dir, err := os.MkdirTemp("", "log-test")
	require.NoError(t, err)
	defer os.RemoveAll(dir)

	clk, _ := NewMockClock()
	cfg := testLogConfig()
	cfg.FlushIntervalMessages = 1 << 30 // disable auto-flush so we control it
	l, err := NewLog(dir, cfg, clk, zap.NewNop())
	require.NoError(t, err)

	_, _, err = l.Append([]Entry{NewEntry(nil, []byte("x"))})
	require.NoError(t, err)
	require.Equal(t, uint64(1), l.UnflushedMessages())

	require.NoError(t, l.Flush())
	require.Equal(t, uint64(0), l.UnflushedMessages())
	require.Equal(t, uint64(1), l.RecoveryPoint())
}

func TestLogTruncateTo(t *testing.T) {
	dir, err := os.MkdirTemp("", "log-test")
	require.NoError(t, err)
	defer os.RemoveAll(dir)

	clk, _ := NewMockClock()
	cfg := testLogConfig()
	cfg.SegmentBytes = 128
	l, err := NewLog(dir, cfg, clk, zap.NewNop())
	require.NoError(t, err)

	payload := make([]byte, 16)
	for i := 0; i < 20; i++ {
		_, _, err := l.Append([]Entry{NewEntry(nil, payload)})
		require.NoError(t, err)
	}
	require.NoError(t, l.TruncateTo(10))
	require.Equal(t, uint64(10), l.LogEndOffset())
}

func TestLogRecoversExistingSegmentsOnReopen(t *testing.T) {
	dir, err := os.MkdirTemp("", "log-test")
	require.NoError(t, err)
	defer os.RemoveAll(dir)

	clk, _ := NewMockClock()
	l, err := NewLog(dir, testLogConfig(), clk, zap.NewNop())
	require.NoError(t, err)
	for i := 0; i < 100; i++ {
		_, _, err := l.Append([]Entry{NewEntry(nil, []byte{byte(i)})})
		require.NoError(t, err)
	}
	require.NoError(t, l.Flush())
	require.NoError(t, l.Close())

	reopened, err := NewLog(dir, testLogConfig(), clk, zap.NewNop())
	require.NoError(t, err)
	require.Equal(t, uint64(100), reopened.LogEndOffset())

	raw, err := reopened.Read(0, 1<<20, 0)
	require.NoError(t, err)
	entries, _, err := decodeRecords(raw, 200)
	require.NoError(t, err)
	require.Len(t, entries, 100)
}
