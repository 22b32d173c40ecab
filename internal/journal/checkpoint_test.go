package journal

import (
	"os"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCheckpointWriteReadRoundTrip(t *testing.T) {
	dir, err := os.MkdirTemp("", "checkpoint-test")
	require.NoError(t, err)
	defer os.RemoveAll(dir)

	path := dir + "/recovery-point-offset-checkpoint"
	require.NoError(t, writeCheckpoint(path, journalPartition, 12345))

	off, ok, err := readCheckpoint(path, journalPartition)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, uint64(12345), off)
}

func TestCheckpointReadMissingFile(t *testing.T) {
	_, ok, err := readCheckpoint("/nonexistent/checkpoint", journalPartition)
	require.NoError(t, err)
	require.False(t, ok)
}

func TestCheckpointReadUnknownPartition(t *testing.T) {
	dir, err := os.MkdirTemp("", "checkpoint-test")
	require.NoError(t, err)
	defer os.RemoveAll(dir)

	path := dir + "/recovery-point-offset-checkpoint"
	require.NoError(t, writeCheckpoint(path, "0", 10))

	_, ok, err := readCheckpoint(path, "1")
	require.NoError(t, err)
	require.False(t, ok)
}
