package segment

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/flowlog/partitionstore/internal/config"
	"github.com/flowlog/partitionstore/internal/counters"
	"github.com/flowlog/partitionstore/internal/perrors"
	"github.com/flowlog/partitionstore/internal/persister"
	"go.uber.org/zap"
)

const (
	LogExtension = "log"
	// IndexExtension is the current-format offset index's extension.
	IndexExtension = "index"
	// TimeIndexExtension is the legacy index schema's extension; its
	// presence signals an index that must be rebuilt in the current
	// format and the legacy file deleted.
	TimeIndexExtension = "timeindex"
)

// Segment is C2: one bounded append-only log file plus its offset
// index. Exactly one segment per partition is open (the highest-offset
// one) at any time, unless the partition is empty.
type Segment struct {
	StreamID, TopicID, PartitionID uint32

	StartOffset   uint64
	CurrentOffset uint64
	EndOffset     uint64
	SizeBytes     uint64
	IsClosed      bool

	LogPath   string
	IndexPath string

	// UnsavedMessages buffers records appended since the last persist.
	// New attaches one and Load attaches a fresh one to a segment that is
	// still open; closing a segment does not detach it.
	UnsavedMessages *BatchAccumulator

	nextOffset uint64

	config    config.SegmentConfig
	counters  *counters.Counters
	persister *persister.Persister
	log       *zap.SugaredLogger

	idx *index // resident only after Load with config.CacheIndexes true
}

// New creates a brand-new, open, in-memory segment descriptor; no files
// are created on disk until PersistMessages/Persist is called.
// accumulatorCapacity sizes the attached BatchAccumulator
// (partition.messages_required_to_save).
func New(
	streamID, topicID, partitionID uint32,
	dir string,
	startOffset uint64,
	cfg config.SegmentConfig,
	accumulatorCapacity uint64,
	p *persister.Persister,
	c *counters.Counters,
	log *zap.SugaredLogger,
) *Segment {
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	return &Segment{
		StreamID:        streamID,
		TopicID:         topicID,
		PartitionID:     partitionID,
		StartOffset:     startOffset,
		CurrentOffset:   startOffset,
		nextOffset:      startOffset,
		LogPath:         filepath.Join(dir, fmt.Sprintf("%d.%s", startOffset, LogExtension)),
		IndexPath:       filepath.Join(dir, fmt.Sprintf("%d.%s", startOffset, IndexExtension)),
		UnsavedMessages: NewBatchAccumulator(startOffset, accumulatorCapacity),
		config:          cfg,
		counters:        c,
		persister:       p,
		log:             log,
	}
}

func (s *Segment) err(kind perrors.Kind, cause error) *perrors.PartitionError {
	return perrors.New(kind, s.StreamID, s.TopicID, s.PartitionID, cause).WithPath(s.LogPath)
}

// Load populates CurrentOffset, SizeBytes and IsClosed by scanning the
// log from the start, and — when config.CacheIndexes is true — memory-
// maps the (already validated/rebuilt) offset index for fast lookups.
// If the segment turns out not to be closed, an accumulator of the
// given capacity is attached, per the partition load protocol.
func (s *Segment) Load(accumulatorCapacity uint64) error {
	if _, err := os.Stat(s.LogPath); err != nil {
		return s.err(perrors.CannotLoadSegment, err)
	}

	endPos, lastOffset, found, err := scanLog(s.LogPath, nil)
	if err != nil {
		return s.err(perrors.CannotLoadSegment, err)
	}
	s.SizeBytes = uint64(endPos)
	if found {
		s.CurrentOffset = lastOffset
		s.nextOffset = lastOffset + 1
	} else {
		s.CurrentOffset = s.StartOffset
		s.nextOffset = s.StartOffset
	}
	s.IsClosed = s.SizeBytes >= s.config.SizeBytes

	if s.config.CacheIndexes {
		capacityEntries := s.config.SizeBytes/fixedHeaderSize + 1
		idx, err := newIndex(s.IndexPath, capacityEntries)
		if err != nil {
			return s.err(perrors.CannotLoadSegment, err)
		}
		s.idx = idx
	}

	if !s.IsClosed {
		s.UnsavedMessages = NewBatchAccumulator(s.CurrentOffset, accumulatorCapacity)
	}

	return nil
}

// AppendBatch buffers records into UnsavedMessages, assigning
// monotonically increasing offsets starting at nextOffset. It never
// touches disk and leaves the segment state unchanged if the batch
// would overflow the size cap.
func (s *Segment) AppendBatch(records []*Record) error {
	if s.IsClosed {
		return s.err(perrors.SegmentClosed, perrors.ErrSegmentClosed)
	}

	addedBytes := 0
	for _, r := range records {
		addedBytes += recordLen(len(r.Headers), len(r.Payload))
	}
	if s.SizeBytes+uint64(addedBytes) > s.config.SizeBytes {
		return s.err(perrors.SegmentFull, perrors.ErrSegmentFull)
	}

	assigned := make([]*Record, 0, len(records))
	for _, r := range records {
		r.Offset = s.nextOffset
		s.nextOffset++
		assigned = append(assigned, r)
	}

	s.UnsavedMessages.Append(assigned)
	s.CurrentOffset = s.nextOffset - 1
	s.SizeBytes += uint64(addedBytes)
	s.counters.AddMessages(int64(len(assigned)))
	s.counters.AddSize(int64(addedBytes))
	return nil
}

// PersistMessages flushes buffered records with Offset <= *upperBound
// (or all of them, if upperBound is nil) to the log through the
// Persister, and writes matching entries into the resident index when
// there is one. A segment created by New and never loaded has no
// resident index, so no index entries are written for it here. It
// returns the number of records persisted.
func (s *Segment) PersistMessages(upperBound *uint64) (int, error) {
	if s.UnsavedMessages == nil || s.UnsavedMessages.Len() == 0 {
		return 0, nil
	}
	toPersist := s.UnsavedMessages.Drain(upperBound)
	if len(toPersist) == 0 {
		return 0, nil
	}

	base, err := s.onDiskSize()
	if err != nil {
		return 0, err
	}

	var buf []byte
	entries := make([][2]uint32, 0, len(toPersist))
	offsetWithin := uint64(0)
	for _, r := range toPersist {
		relOffset := uint32(r.Offset - s.StartOffset)
		entries = append(entries, [2]uint32{relOffset, uint32(base + offsetWithin)})
		buf = r.Encode(buf)
		offsetWithin = uint64(len(buf))
	}

	if err := s.persister.Append(s.LogPath, buf); err != nil {
		return 0, err
	}

	if s.idx != nil {
		for _, e := range entries {
			if err := s.idx.Write(e[0], e[1]); err != nil {
				return 0, err
			}
		}
	}

	return len(toPersist), nil
}

func (s *Segment) onDiskSize() (uint64, error) {
	fi, err := os.Stat(s.LogPath)
	if err != nil {
		if os.IsNotExist(err) {
			return 0, nil
		}
		return 0, err
	}
	return uint64(fi.Size()), nil
}

// Persist flushes everything unsaved and marks the segment closed iff
// SizeBytes has reached the configured cap.
func (s *Segment) Persist() error {
	if _, err := s.PersistMessages(nil); err != nil {
		return err
	}
	if s.SizeBytes >= s.config.SizeBytes {
		s.IsClosed = true
	}
	return nil
}

// LoadChecksums re-reads every record in the log and recomputes its
// CRC32, failing fast on the first mismatch.
func (s *Segment) LoadChecksums() error {
	_, _, _, err := scanLog(s.LogPath, func(rec *Record, _ int64) error {
		if want := computeChecksum(rec.Headers, rec.Payload); want != rec.Checksum {
			return &perrors.CorruptedChecksumError{Offset: rec.Offset}
		}
		return nil
	})
	if err == nil {
		return nil
	}
	if cc, ok := err.(*perrors.CorruptedChecksumError); ok {
		return s.err(perrors.CorruptedChecksum, cc)
	}
	return s.err(perrors.CannotLoadSegment, err)
}

// LoadMessageIDs streams every message ID stored in the log, in order.
func (s *Segment) LoadMessageIDs() ([]MessageID, error) {
	var ids []MessageID
	_, _, _, err := scanLog(s.LogPath, func(rec *Record, _ int64) error {
		ids = append(ids, rec.ID)
		return nil
	})
	if err != nil {
		return nil, s.err(perrors.CannotLoadSegment, err)
	}
	return ids, nil
}

var errStopScan = fmt.Errorf("stop scan")

// Read returns the record stored at the given absolute offset. When the
// index is resident it is used to seek directly to (or near) the
// record; otherwise the log is scanned sequentially from the start.
func (s *Segment) Read(offset uint64) (*Record, error) {
	if offset < s.StartOffset || offset > s.CurrentOffset {
		return nil, perrors.ErrOffsetOutOfRange
	}
	relOffset := uint32(offset - s.StartOffset)

	startPos := int64(0)
	if s.idx != nil {
		if pos, ok := s.idx.Lookup(relOffset); ok {
			startPos = int64(pos)
		}
	}

	var found *Record
	_, _, _, err := scanLogFrom(s.LogPath, startPos, func(rec *Record, _ int64) error {
		if rec.Offset == offset {
			found = rec
			return errStopScan
		}
		return nil
	})
	if err != nil && err != errStopScan {
		return nil, err
	}
	if found == nil {
		return nil, perrors.ErrOffsetOutOfRange
	}
	return found, nil
}

// Delete removes the segment's log and index files.
func (s *Segment) Delete() error {
	if s.idx != nil {
		_ = s.idx.Close()
		s.idx = nil
	}
	if err := s.persister.RemoveFile(s.LogPath); err != nil {
		return err
	}
	return s.persister.RemoveFile(s.IndexPath)
}

// Close releases the resident index mmap, if any, without deleting
// files. Safe to call on a segment with no resident index.
func (s *Segment) Close() error {
	if s.idx == nil {
		return nil
	}
	err := s.idx.Close()
	s.idx = nil
	return err
}
