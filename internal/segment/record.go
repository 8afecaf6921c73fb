// Package segment implements C2: one append-only log file and its
// companion offset index, the in-memory accumulator for unsaved
// batches, and the checksum/message-ID scans used during load.
package segment

import (
	"encoding/binary"
	"hash/crc32"
)

// fixedHeaderSize is the byte length of every field preceding the
// variable-length headers blob: offset(8) + timestamp_us(8) + id(16) +
// checksum(4) + headers_len(4).
const fixedHeaderSize = 40

// payloadLenFieldSize is the byte length of the payload_len field that
// follows the headers blob.
const payloadLenFieldSize = 4

// MessageID is an application-supplied 128-bit identifier, stored on
// disk as 16 raw little-endian bytes.
type MessageID [16]byte

// MessageIDFromUint64 builds a MessageID whose low 64 bits are v and
// whose high 64 bits are zero, a convenience for callers that only need
// 64 bits of identifier space.
func MessageIDFromUint64(v uint64) MessageID {
	var id MessageID
	binary.LittleEndian.PutUint64(id[:8], v)
	return id
}

func (id MessageID) IsZero() bool {
	return id == MessageID{}
}

// Record is one decoded log entry.
type Record struct {
	Offset      uint64
	TimestampUs uint64
	ID          MessageID
	Checksum    uint32
	Headers     []byte
	Payload     []byte
}

// recordLen returns the total on-disk length of a record with the given
// header/payload sizes: the 40-byte fixed prefix, the headers blob, the
// 4-byte payload_len field, and the payload blob.
func recordLen(headersLen, payloadLen int) int {
	return fixedHeaderSize + headersLen + payloadLenFieldSize + payloadLen
}

func (r *Record) Len() int {
	return recordLen(len(r.Headers), len(r.Payload))
}

// computeChecksum computes the CRC32 (IEEE) over headers||payload, the
// portion of the record the checksum field covers.
func computeChecksum(headers, payload []byte) uint32 {
	h := crc32.NewIEEE()
	h.Write(headers)
	h.Write(payload)
	return h.Sum32()
}

// Encode appends the on-disk representation of r to buf and returns the
// extended slice. The checksum is (re)computed from r.Headers/r.Payload,
// not read from r.Checksum.
func (r *Record) Encode(buf []byte) []byte {
	headersLen := len(r.Headers)
	payloadLen := len(r.Payload)
	checksum := computeChecksum(r.Headers, r.Payload)

	start := len(buf)
	buf = append(buf, make([]byte, recordLen(headersLen, payloadLen))...)

	binary.LittleEndian.PutUint64(buf[start:], r.Offset)
	binary.LittleEndian.PutUint64(buf[start+8:], r.TimestampUs)
	copy(buf[start+16:start+32], r.ID[:])
	binary.LittleEndian.PutUint32(buf[start+32:], checksum)
	binary.LittleEndian.PutUint32(buf[start+36:], uint32(headersLen))
	off := start + fixedHeaderSize
	copy(buf[off:off+headersLen], r.Headers)
	off += headersLen
	binary.LittleEndian.PutUint32(buf[off:], uint32(payloadLen))
	off += payloadLenFieldSize
	copy(buf[off:off+payloadLen], r.Payload)

	return buf
}

// recordHeader is the parsed fixed-size prefix of a record, read before
// its variable-length parts are known.
type recordHeader struct {
	Offset      uint64
	TimestampUs uint64
	ID          MessageID
	Checksum    uint32
	HeadersLen  uint32
}

// decodeRecordHeader parses the fixed 40-byte prefix. Callers must
// ensure len(buf) >= fixedHeaderSize.
func decodeRecordHeader(buf []byte) recordHeader {
	var h recordHeader
	h.Offset = binary.LittleEndian.Uint64(buf[0:8])
	h.TimestampUs = binary.LittleEndian.Uint64(buf[8:16])
	copy(h.ID[:], buf[16:32])
	h.Checksum = binary.LittleEndian.Uint32(buf[32:36])
	h.HeadersLen = binary.LittleEndian.Uint32(buf[36:40])
	return h
}

// decodeRecord parses a complete record (header + headers + payload_len
// + payload) from buf, which must be exactly Len() bytes.
func decodeRecord(buf []byte) *Record {
	h := decodeRecordHeader(buf)
	off := fixedHeaderSize
	headers := buf[off : off+int(h.HeadersLen)]
	off += int(h.HeadersLen)
	payloadLen := binary.LittleEndian.Uint32(buf[off : off+payloadLenFieldSize])
	off += payloadLenFieldSize
	payload := buf[off : off+int(payloadLen)]

	return &Record{
		Offset:      h.Offset,
		TimestampUs: h.TimestampUs,
		ID:          h.ID,
		Checksum:    h.Checksum,
		Headers:     append([]byte(nil), headers...),
		Payload:     append([]byte(nil), payload...),
	}
}
