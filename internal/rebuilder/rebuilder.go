// Package rebuilder implements C3: reconstructing an offset index by
// scanning a segment's log from position 0, for use when the index is
// missing or a legacy time-index is present.
package rebuilder

import (
	"encoding/binary"
	"io"
	"os"

	"github.com/flowlog/partitionstore/internal/perrors"
	"go.uber.org/zap"
)

const (
	offWidth uint64 = 4
	posWidth uint64 = 4
	entWidth        = offWidth + posWidth
)

var enc = binary.LittleEndian

// Rebuild reconstructs indexPath by scanning logPath from position 0.
// Entries are written to a temporary file and atomically renamed over
// indexPath on success, so a crash mid-rebuild never leaves a partial
// index at the canonical path. A partial scan that stops at a
// truncated record is not an error — per spec the log is considered
// truncated at the last complete record. If the log is empty, Rebuild
// writes an empty index and returns.
func Rebuild(logPath, indexPath string, startOffset uint64, log *zap.SugaredLogger) error {
	if log == nil {
		log = zap.NewNop().Sugar()
	}

	entries, err := scanForEntries(logPath, startOffset)
	if err != nil {
		return err
	}

	tmpPath := indexPath + ".rebuild.tmp"
	buf := make([]byte, 0, len(entries)*int(entWidth))
	for _, e := range entries {
		var tmp [8]byte
		enc.PutUint32(tmp[0:4], e.relOffset)
		enc.PutUint32(tmp[4:8], e.pos)
		buf = append(buf, tmp[:]...)
	}

	if err := os.WriteFile(tmpPath, buf, 0o644); err != nil {
		return err
	}
	if err := os.Rename(tmpPath, indexPath); err != nil {
		os.Remove(tmpPath)
		return err
	}

	log.Debugw("rebuilt offset index", "logPath", logPath, "indexPath", indexPath, "entries", len(entries))
	return nil
}

type entry struct {
	relOffset uint32
	pos       uint32
}

// scanForEntries walks logPath sequentially, emitting one index entry
// per complete record. It stops (without error) at EOF or at a
// truncated record: a header shorter than the fixed 40-byte prefix, or
// a body shorter than its declared length.
func scanForEntries(logPath string, startOffset uint64) ([]entry, error) {
	f, err := os.Open(logPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, perrors.New(perrors.CannotLoadSegment, 0, 0, 0, err).WithPath(logPath)
	}
	defer f.Close()

	fi, err := f.Stat()
	if err != nil {
		return nil, err
	}
	if fi.Size() == 0 {
		return nil, nil
	}

	const fixedHeaderSize = 40
	const payloadLenFieldSize = 4

	var entries []entry
	var pos int64
	header := make([]byte, fixedHeaderSize)
	plBuf := make([]byte, payloadLenFieldSize)

	for {
		if _, rerr := io.ReadFull(f, header); rerr != nil {
			break
		}
		offset := enc.Uint64(header[0:8])
		headersLen := enc.Uint32(header[36:40])

		if headersLen > 0 {
			headers := make([]byte, headersLen)
			if _, rerr := io.ReadFull(f, headers); rerr != nil {
				break
			}
		}

		if _, rerr := io.ReadFull(f, plBuf); rerr != nil {
			break
		}
		payloadLen := enc.Uint32(plBuf)

		curPos, _ := f.Seek(0, io.SeekCurrent)
		if curPos+int64(payloadLen) > fi.Size() {
			break // declared payload length runs past EOF: truncated record
		}
		if payloadLen > 0 {
			if _, rerr := f.Seek(int64(payloadLen), io.SeekCurrent); rerr != nil {
				break
			}
		}

		entries = append(entries, entry{
			relOffset: uint32(offset - startOffset),
			pos:       uint32(pos),
		})

		pos += int64(fixedHeaderSize) + int64(headersLen) + int64(payloadLenFieldSize) + int64(payloadLen)
	}

	return entries, nil
}
