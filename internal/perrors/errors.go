// Package perrors defines the closed set of error kinds the partition
// storage core can return, each carrying enough context (the owning
// stream/topic/partition triple, an offset, a path) for a caller to log
// or react to without parsing a message string.
package perrors

import (
	"errors"
	"fmt"
)

// Kind identifies one of the named failure modes the storage core can
// surface. Kinds are closed: callers switch on them instead of matching
// message text.
type Kind string

const (
	CannotReadPartitions                Kind = "cannot_read_partitions"
	CannotCreatePartitionDirectory       Kind = "cannot_create_partition_directory"
	CannotCreatePartition                Kind = "cannot_create_partition"
	CannotDeletePartition                Kind = "cannot_delete_partition"
	CannotDeletePartitionDirectory       Kind = "cannot_delete_partition_directory"
	CannotReadFile                       Kind = "cannot_read_file"
	CannotReadConsumerOffsets            Kind = "cannot_read_consumer_offsets"
	CannotDeleteConsumerOffsetsDirectory Kind = "cannot_delete_consumer_offsets_directory"
	CannotDeleteConsumerOffsetFile       Kind = "cannot_delete_consumer_offset_file"
	CannotLoadSegment                    Kind = "cannot_load_segment"
	CorruptedChecksum                    Kind = "corrupted_checksum"
	SegmentFull                          Kind = "segment_full"
	SegmentClosed                        Kind = "segment_closed"
	InvalidConfiguration                 Kind = "invalid_configuration"
	CacheConfigValidationFailure         Kind = "cache_config_validation_failure"
)

// PartitionError is returned by every operation that fails against a
// known (stream_id, topic_id, partition_id) triple.
type PartitionError struct {
	Kind        Kind
	StreamID    uint32
	TopicID     uint32
	PartitionID uint32
	Path        string
	Offset      *uint64
	Err         error
}

func New(kind Kind, streamID, topicID, partitionID uint32, err error) *PartitionError {
	return &PartitionError{Kind: kind, StreamID: streamID, TopicID: topicID, PartitionID: partitionID, Err: err}
}

func (e *PartitionError) WithPath(path string) *PartitionError {
	e.Path = path
	return e
}

func (e *PartitionError) WithOffset(offset uint64) *PartitionError {
	e.Offset = &offset
	return e
}

func (e *PartitionError) Error() string {
	msg := fmt.Sprintf("%s: stream=%d topic=%d partition=%d", e.Kind, e.StreamID, e.TopicID, e.PartitionID)
	if e.Path != "" {
		msg += fmt.Sprintf(" path=%s", e.Path)
	}
	if e.Offset != nil {
		msg += fmt.Sprintf(" offset=%d", *e.Offset)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *PartitionError) Unwrap() error {
	return e.Err
}

// As reports whether err is (or wraps) a *PartitionError, optionally of
// the given kind.
func As(err error, kind Kind) bool {
	var pe *PartitionError
	if !errors.As(err, &pe) {
		return false
	}
	return kind == "" || pe.Kind == kind
}

// Sentinel errors for failures that are not tied to a partition triple,
// mirroring the teacher's plain sentinel-error style (see
// ErrOffsetNotFound in the original log package).
var (
	ErrSegmentFull       = errors.New("segment is full")
	ErrSegmentClosed     = errors.New("segment is closed")
	ErrOffsetOutOfRange  = errors.New("offset out of range")
	ErrTruncatedRecord   = errors.New("truncated record")
	ErrUnknownCompressor = errors.New("unknown compression codec")
	ErrInvalidOption     = errors.New("invalid configuration option")
)

// CorruptedChecksumError reports the absolute offset of the first record
// whose stored CRC32 didn't match its recomputed value.
type CorruptedChecksumError struct {
	Offset uint64
}

func (e *CorruptedChecksumError) Error() string {
	return fmt.Sprintf("corrupted checksum at offset %d", e.Offset)
}
