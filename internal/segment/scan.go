package segment

import (
	"bufio"
	"encoding/binary"
	"io"
	"os"
)

// scanLog walks path sequentially from position 0. See scanLogFrom.
func scanLog(path string, visit func(rec *Record, pos int64) error) (endPos int64, lastOffset uint64, found bool, err error) {
	return scanLogFrom(path, 0, visit)
}

// scanLogFrom walks path sequentially starting at byte offset startAt,
// stopping at EOF or at a truncated record (header shorter than
// fixedHeaderSize, or body shorter than its declared length). Per spec
// this is not an error: the log is considered truncated at the last
// complete record, and current_offset/size_bytes are derived from that
// point. visit, if non-nil, is called once per complete record found,
// in file order; a non-nil error from visit aborts the scan and is
// returned as err (used by Read to stop once the target offset is
// found, via the errStopScan sentinel).
func scanLogFrom(path string, startAt int64, visit func(rec *Record, pos int64) error) (endPos int64, lastOffset uint64, found bool, err error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, 0, false, err
	}
	defer f.Close()

	if startAt > 0 {
		if _, err := f.Seek(startAt, io.SeekStart); err != nil {
			return 0, 0, false, err
		}
	}

	r := bufio.NewReader(f)
	pos := startAt
	header := make([]byte, fixedHeaderSize)
	plBuf := make([]byte, payloadLenFieldSize)

	for {
		if _, rerr := io.ReadFull(r, header); rerr != nil {
			break
		}
		h := decodeRecordHeader(header)

		headers := make([]byte, h.HeadersLen)
		if _, rerr := io.ReadFull(r, headers); rerr != nil {
			break
		}

		if _, rerr := io.ReadFull(r, plBuf); rerr != nil {
			break
		}
		payloadLen := binary.LittleEndian.Uint32(plBuf)

		payload := make([]byte, payloadLen)
		if _, rerr := io.ReadFull(r, payload); rerr != nil {
			break
		}

		rec := &Record{
			Offset:      h.Offset,
			TimestampUs: h.TimestampUs,
			ID:          h.ID,
			Checksum:    h.Checksum,
			Headers:     headers,
			Payload:     payload,
		}

		if visit != nil {
			if verr := visit(rec, pos); verr != nil {
				return pos, h.Offset, true, verr
			}
		}

		pos += int64(recordLen(len(headers), len(payload)))
		lastOffset = h.Offset
		found = true
	}

	return pos, lastOffset, found, nil
}
