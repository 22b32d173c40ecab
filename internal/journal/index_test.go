package journal

import (
	"os"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestIndexWriteReadLookup(t *testing.T) {
	f, err := os.CreateTemp("", "index-test")
	require.NoError(t, err)
	defer os.Remove(f.Name())

	idx, err := newIndex(f, indexEntWidth*3)
	require.NoError(t, err)
	defer idx.Close()

	require.NoError(t, idx.Write(0, 0))
	require.NoError(t, idx.Write(100, 1024))
	require.NoError(t, idx.Write(250, 4096))
	require.Equal(t, uint32(3), idx.Len())

	off, pos, err := idx.ReadAt(1)
	require.NoError(t, err)
	require.Equal(t, uint32(100), off)
	require.Equal(t, uint32(1024), pos)

	off, pos, found := idx.Lookup(150)
	require.True(t, found)
	require.Equal(t, uint32(100), off)
	require.Equal(t, uint32(1024), pos)

	_, _, found = idx.Lookup(0)
	require.True(t, found)

	off, pos, found = idx.Lookup(99)
	require.True(t, found) // greatest entry with offset <= 99 is still entry 0
	require.Equal(t, uint32(0), off)
	require.Equal(t, uint32(0), pos)
}

func TestIndexIsFull(t *testing.T) {
	f, err := os.CreateTemp("", "index-test")
	require.NoError(t, err)
	defer os.Remove(f.Name())

	idx, err := newIndex(f, indexEntWidth)
	require.NoError(t, err)
	defer idx.Close()

	require.False(t, idx.IsFull())
	require.NoError(t, idx.Write(0, 0))
	require.True(t, idx.IsFull())
	require.ErrorIs(t, idx.Write(1, 1), ErrSegmentFull)
}

func TestIndexTruncateFrom(t *testing.T) {
	f, err := os.CreateTemp("", "index-test")
	require.NoError(t, err)
	defer os.Remove(f.Name())

	idx, err := newIndex(f, indexEntWidth*4)
	require.NoError(t, err)
	defer idx.Close()

	require.NoError(t, idx.Write(0, 0))
	require.NoError(t, idx.Write(10, 100))
	require.NoError(t, idx.Write(20, 200))

	idx.TruncateFrom(10)
	require.Equal(t, uint32(1), idx.Len())
}

func TestIndexSurvivesReopen(t *testing.T) {
	path := os.TempDir() + "/index-reopen-test"
	defer os.Remove(path)

	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0644)
	require.NoError(t, err)
	idx, err := newIndex(f, indexEntWidth*4)
	require.NoError(t, err)
	require.NoError(t, idx.Write(5, 500))
	require.NoError(t, idx.Close())

	f2, err := os.OpenFile(path, os.O_RDWR, 0644)
	require.NoError(t, err)
	idx2, err := newIndex(f2, indexEntWidth*4)
	require.NoError(t, err)
	defer idx2.Close()

	require.Equal(t, uint32(1), idx2.Len())
	off, pos, err := idx2.ReadAt(0)
	require.NoError(t, err)
	require.Equal(t, uint32(5), off)
	require.Equal(t, uint32(500), pos)
}
