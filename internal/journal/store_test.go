package journal

import (
	"os"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestStoreAppendAndReadAt(t *testing.T) {
	f, err := os.CreateTemp("", "store-test")
	require.NoError(t, err)
	defer os.Remove(f.Name())

	s, err := newStore(f)
	require.NoError(t, err)

	pos1, err := s.Append([]byte("first"))
	require.NoError(t, err)
	require.Equal(t, uint64(0), pos1)

	pos2, err := s.Append([]byte("second"))
	require.NoError(t, err)
	require.Equal(t, uint64(5), pos2)
	require.Equal(t, uint64(11), s.Size())

	buf := make([]byte, 5)
	n, err := s.ReadAt(buf, int64(pos1))
	require.NoError(t, err)
	require.Equal(t, 5, n)
	require.Equal(t, "first", string(buf))
}

func TestStoreTruncateTo(t *testing.T) {
	f, err := os.CreateTemp("", "store-test")
	require.NoError(t, err)
	defer os.Remove(f.Name())

	s, err := newStore(f)
	require.NoError(t, err)

	_, err = s.Append([]byte("hello world"))
	require.NoError(t, err)
	require.NoError(t, s.Flush())

	require.NoError(t, s.TruncateTo(5))
	require.Equal(t, uint64(5), s.Size())

	buf := make([]byte, 5)
	_, err = s.ReadAt(buf, 0)
	require.NoError(t, err)
	require.Equal(t, "hello", string(buf))
}

func TestStoreSurvivesReopen(t *testing.T) {
	f, err := os.CreateTemp("", "store-test")
	require.NoError(t, err)
	defer os.Remove(f.Name())

	s, err := newStore(f)
	require.NoError(t, err)
	_, err = s.Append([]byte("persisted"))
	require.NoError(t, err)
	require.NoError(t, s.Close())

	reopened, err := os.OpenFile(f.Name(), os.O_RDWR, 0644)
	require.NoError(t, err)
	s2, err := newStore(reopened)
	require.NoError(t, err)
	require.Equal(t, uint64(len("persisted")), s2.Size())
}
