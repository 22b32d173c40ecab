package journal

import (
	"encoding/binary"
	"hash/crc32"
)

// Record wire format (big-endian throughout):
//
//	offset          : u64   8 bytes
//	total_length    : u32   4 bytes   # bytes below, from attributes onward
//	crc32           : u32   4 bytes   # over attributes..payload
//	attributes      : u8    1 byte    # reserved, zero
//	key_length      : u32   4 bytes   # nullKeyLength means null key
//	key             : key_length bytes
//	payload_length  : u32   4 bytes
//	payload         : payload_length bytes
const (
	offsetFieldWidth  = 8
	totalLenWidth     = 4
	crcFieldWidth     = 4
	recordPrefixWidth = offsetFieldWidth + totalLenWidth + crcFieldWidth // 16

	attributesWidth = 1
	keyLenWidth     = 4
	payloadLenWidth = 4

	// nullKeyLength is the key_length sentinel meaning "no key".
	nullKeyLength uint32 = 0xFFFFFFFF

	// maxFieldLength mirrors the 32-bit length prefix's hard cap.
	maxFieldLength = 1<<31 - 1
)

var enc = binary.BigEndian

type decodedRecord struct {
	offset  uint64
	key     []byte
	payload []byte
}

// encodeRecord serializes offset, key and payload into a self-framed record.
// A nil key is encoded as a null key (key_length = nullKeyLength); a
// non-nil, zero-length key is encoded as key_length = 0.
func encodeRecord(offset uint64, key, payload []byte) []byte {
	keyLen := uint32(len(key))
	isNullKey := key == nil

	body := make([]byte, attributesWidth+keyLenWidth+len(key)+payloadLenWidth+len(payload))
	i := 0
	body[i] = 0 // attributes: reserved
	i += attributesWidth
	if isNullKey {
		enc.PutUint32(body[i:], nullKeyLength)
	} else {
		enc.PutUint32(body[i:], keyLen)
	}
	i += keyLenWidth
	i += copy(body[i:], key)
	enc.PutUint32(body[i:], uint32(len(payload)))
	i += payloadLenWidth
	copy(body[i:], payload)

	crc := crc32.ChecksumIEEE(body)

	buf := make([]byte, recordPrefixWidth+len(body))
	enc.PutUint64(buf[0:], offset)
	enc.PutUint32(buf[offsetFieldWidth:], uint32(len(body)))
	enc.PutUint32(buf[offsetFieldWidth+totalLenWidth:], crc)
	copy(buf[recordPrefixWidth:], body)
	return buf
}

// recordLength reads the total on-disk length of the record whose 16-byte
// prefix starts hdr, without validating its checksum.
func recordLength(hdr []byte) (uint64, error) {
	if len(hdr) < recordPrefixWidth {
		return 0, ErrCorruptSegment
	}
	totalLen := enc.Uint32(hdr[offsetFieldWidth:])
	return uint64(recordPrefixWidth) + uint64(totalLen), nil
}

// decodeRecord validates and parses a single complete record. buf must hold
// exactly one record (use recordLength to size the read first).
func decodeRecord(buf []byte) (decodedRecord, error) {
	if len(buf) < recordPrefixWidth {
		return decodedRecord{}, ErrCorruptSegment
	}
	offset := enc.Uint64(buf[0:])
	totalLen := enc.Uint32(buf[offsetFieldWidth:])
	wantCRC := enc.Uint32(buf[offsetFieldWidth+totalLenWidth:])

	body := buf[recordPrefixWidth:]
	if uint64(len(body)) != uint64(totalLen) {
		return decodedRecord{}, ErrCorruptSegment
	}
	if crc32.ChecksumIEEE(body) != wantCRC {
		return decodedRecord{}, ErrCorruptSegment
	}

	i := attributesWidth // skip attributes byte
	if i+keyLenWidth > len(body) {
		return decodedRecord{}, ErrCorruptSegment
	}
	keyLen := enc.Uint32(body[i:])
	i += keyLenWidth

	var key []byte
	if keyLen != nullKeyLength {
		if i+int(keyLen) > len(body) {
			return decodedRecord{}, ErrCorruptSegment
		}
		key = append([]byte(nil), body[i:i+int(keyLen)]...)
		i += int(keyLen)
	}

	if i+payloadLenWidth > len(body) {
		return decodedRecord{}, ErrCorruptSegment
	}
	payloadLen := enc.Uint32(body[i:])
	i += payloadLenWidth
	if i+int(payloadLen) > len(body) {
		return decodedRecord{}, ErrCorruptSegment
	}
	payload := append([]byte(nil), body[i:i+int(payloadLen)]...)

	return decodedRecord{offset: offset, key: key, payload: payload}, nil
}
