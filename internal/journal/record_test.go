package journal

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestEncodeDecodeRecordRoundTrip(t *testing.T) {
	buf := encodeRecord(42, []byte("key-1"), []byte("hello world"))

	recLen, err := recordLength(buf)
	require.NoError(t, err)
	require.Equal(t, uint64(len(buf)), recLen)

	rec, err := decodeRecord(buf)
	require.NoError(t, err)
	require.Equal(t, uint64(42), rec.offset)
	require.Equal(t, []byte("key-1"), rec.key)
	require.Equal(t, []byte("hello world"), rec.payload)
}

func TestEncodeDecodeRecordNullKey(t *testing.T) {
	buf := encodeRecord(7, nil, []byte("payload"))
	rec, err := decodeRecord(buf)
	require.NoError(t, err)
	require.Nil(t, rec.key)
	require.Equal(t, []byte("payload"), rec.payload)
}

func TestEncodeDecodeRecordEmptyKey(t *testing.T) {
	buf := encodeRecord(7, []byte{}, []byte("payload"))
	rec, err := decodeRecord(buf)
	require.NoError(t, err)
	require.NotNil(t, rec.key)
	require.Len(t, rec.key, 0)
}

func TestDecodeRecordDetectsCorruption(t *testing.T) {
	buf := encodeRecord(1, []byte("k"), []byte("v"))
	buf[len(buf)-1] ^= 0xFF // flip a payload byte, invalidating the CRC

	_, err := decodeRecord(buf)
	require.ErrorIs(t, err, ErrCorruptSegment)
}

func TestRecordLengthRejectsShortHeader(t *testing.T) {
	_, err := recordLength([]byte{1, 2, 3})
	require.ErrorIs(t, err, ErrCorruptSegment)
}
