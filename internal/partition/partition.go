// Package partition implements C4: the owner of one partition's
// directory on disk. It loads, saves, and deletes a partition as a
// whole, and manages the ordered list of segments plus the
// consumer-offset store.
package partition

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/flowlog/partitionstore/internal/config"
	"github.com/flowlog/partitionstore/internal/counters"
	"github.com/flowlog/partitionstore/internal/perrors"
	"github.com/flowlog/partitionstore/internal/persister"
	"github.com/flowlog/partitionstore/internal/rebuilder"
	"github.com/flowlog/partitionstore/internal/segment"
	"go.uber.org/multierr"
	"go.uber.org/zap"
)

const (
	offsetsDirName              = "offsets"
	consumerOffsetsDirName      = "consumer"
	consumerGroupOffsetsDirName = "consumer_group"
)

// Partition is C4: exclusively owns its segments and its consumer-offset
// store. Segments are sorted ascending by StartOffset; at most the last
// one is open.
type Partition struct {
	StreamID, TopicID, PartitionID uint32

	PartitionPath            string
	OffsetsPath              string
	ConsumerOffsetsPath      string
	ConsumerGroupOffsetsPath string

	CreatedAt             int64
	CurrentOffset         uint64
	ShouldIncrementOffset bool

	Segments []*segment.Segment

	ConsumerOffsets      []ConsumerOffset
	ConsumerGroupOffsets []ConsumerOffset

	Deduplicator Deduplicator

	config    config.PartitionConfig
	counters  *counters.Counters
	persister *persister.Persister
	log       *zap.SugaredLogger
}

// New builds the directory layout for (streamID, topicID, partitionID)
// under dataRoot and returns an empty, unloaded Partition descriptor.
func New(
	streamID, topicID, partitionID uint32,
	dataRoot string,
	cfg config.PartitionConfig,
	p *persister.Persister,
	parentCounters *counters.Counters,
	dedup Deduplicator,
	log *zap.SugaredLogger,
) *Partition {
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	partitionPath := filepath.Join(
		dataRoot, "streams", strconv.FormatUint(uint64(streamID), 10),
		"topics", strconv.FormatUint(uint64(topicID), 10),
		"partitions", strconv.FormatUint(uint64(partitionID), 10),
	)
	offsetsPath := filepath.Join(partitionPath, offsetsDirName)
	return &Partition{
		StreamID:                 streamID,
		TopicID:                  topicID,
		PartitionID:              partitionID,
		PartitionPath:            partitionPath,
		OffsetsPath:              offsetsPath,
		ConsumerOffsetsPath:      filepath.Join(offsetsPath, consumerOffsetsDirName),
		ConsumerGroupOffsetsPath: filepath.Join(offsetsPath, consumerGroupOffsetsDirName),
		config:                   cfg,
		counters:                 counters.Child(parentCounters),
		persister:                p,
		Deduplicator:             dedup,
		log:                      log,
	}
}

func (p *Partition) err(kind perrors.Kind, cause error) *perrors.PartitionError {
	return perrors.New(kind, p.StreamID, p.TopicID, p.PartitionID, cause)
}

// Counters reports a point-in-time read of this partition's own
// size_bytes, messages_count and segments_count. Its deltas also
// propagate to the parent aggregation layer, but sibling partitions'
// totals are not included here.
func (p *Partition) Counters() counters.Snapshot {
	return p.counters.Snapshot()
}

// Load implements the load protocol of §4.4: enumerate segment files,
// rebuild indexes where needed, load each segment, then consumer
// offsets.
func (p *Partition) Load(ctx context.Context, state PartitionState) error {
	p.CreatedAt = state.CreatedAt

	entries, err := os.ReadDir(p.PartitionPath)
	if err != nil {
		if os.IsNotExist(err) {
			entries = nil
		} else {
			return p.err(perrors.CannotReadPartitions, err).WithPath(p.PartitionPath)
		}
	}

	var startOffsets []uint64
	for _, e := range entries {
		if e.IsDir() || filepath.Ext(e.Name()) != "."+segment.LogExtension {
			continue
		}
		base := strings.TrimSuffix(e.Name(), "."+segment.LogExtension)
		startOffset, err := strconv.ParseUint(base, 10, 64)
		if err != nil {
			continue
		}
		startOffsets = append(startOffsets, startOffset)
	}
	sort.Slice(startOffsets, func(i, j int) bool { return startOffsets[i] < startOffsets[j] })

	for _, startOffset := range startOffsets {
		seg := segment.New(p.StreamID, p.TopicID, p.PartitionID, p.PartitionPath, startOffset,
			p.config.Segment, p.config.MessagesRequiredToSave, p.persister, p.counters, p.log)

		if err := p.maybeRebuildIndex(seg); err != nil {
			return err
		}

		if err := seg.Load(p.config.MessagesRequiredToSave); err != nil {
			return err
		}

		if !p.ShouldIncrementOffset && seg.SizeBytes > 0 {
			p.ShouldIncrementOffset = true
		}

		if p.config.ValidateChecksum {
			if err := seg.LoadChecksums(); err != nil {
				return err
			}
		}

		if p.config.Deduplication.Enabled && p.Deduplicator != nil {
			if err := p.loadMessageIDsInto(ctx, seg); err != nil {
				return err
			}
		}

		p.counters.AddSegments(1)
		p.counters.AddSize(int64(seg.SizeBytes))
		p.counters.AddMessages(int64(messageCount(seg)))
		p.Segments = append(p.Segments, seg)
	}

	sort.Slice(p.Segments, func(i, j int) bool { return p.Segments[i].StartOffset < p.Segments[j].StartOffset })

	// Every segment but the last is closed by definition — only the
	// highest-offset segment may still be open — regardless of whether
	// its byte size happens to reach the configured cap (AppendBatch
	// rejects a batch before crossing the cap, so a rolled-from segment
	// is always strictly smaller than it).
	for i := 0; i < len(p.Segments)-1; i++ {
		p.Segments[i].IsClosed = true
		p.Segments[i].EndOffset = p.Segments[i+1].StartOffset - 1
	}
	if n := len(p.Segments); n > 0 {
		last := p.Segments[n-1]
		if last.IsClosed {
			last.EndOffset = last.CurrentOffset
		}
		p.CurrentOffset = last.CurrentOffset
	}

	if err := p.loadConsumerOffsets(); err != nil {
		return err
	}

	p.log.Infow("loaded partition",
		"stream", p.StreamID, "topic", p.TopicID, "partition", p.PartitionID,
		"currentOffset", p.CurrentOffset, "segments", len(p.Segments))
	return nil
}

// maybeRebuildIndex decides whether to invoke the IndexRebuilder for
// seg, per §4.4 step 2c/2d: rebuild iff the index cache is enabled AND
// (the index is missing OR a legacy time-index is present); delete the
// legacy file afterward regardless of whether a rebuild happened.
func (p *Partition) maybeRebuildIndex(seg *segment.Segment) error {
	timeIndexPath := strings.TrimSuffix(seg.IndexPath, segment.IndexExtension) + segment.TimeIndexExtension

	_, indexErr := os.Stat(seg.IndexPath)
	indexExists := indexErr == nil
	_, legacyErr := os.Stat(timeIndexPath)
	legacyExists := legacyErr == nil

	if p.config.Segment.CacheIndexes && (!indexExists || legacyExists) {
		p.log.Warnw("index missing or legacy, rebuilding",
			"indexPath", seg.IndexPath, "logPath", seg.LogPath)
		if err := rebuilder.Rebuild(seg.LogPath, seg.IndexPath, seg.StartOffset, p.log); err != nil {
			return p.err(perrors.CannotLoadSegment, err).WithPath(seg.LogPath)
		}
	}

	if legacyExists {
		_ = os.Remove(timeIndexPath)
	}
	return nil
}

// messageCount derives how many records a just-loaded segment holds from
// its recovered offset range — segment.Load doesn't expose a record
// count directly, but offsets are contiguous within a segment, so an
// empty log (SizeBytes == 0) holds none and any other segment holds
// exactly CurrentOffset-StartOffset+1.
func messageCount(seg *segment.Segment) uint64 {
	if seg.SizeBytes == 0 {
		return 0
	}
	return seg.CurrentOffset - seg.StartOffset + 1
}

func (p *Partition) loadMessageIDsInto(ctx context.Context, seg *segment.Segment) error {
	ids, err := seg.LoadMessageIDs()
	if err != nil {
		return err
	}
	unique := 0
	for _, id := range ids {
		inserted, err := p.Deduplicator.TryInsert(ctx, id)
		if err != nil {
			return err
		}
		if inserted {
			unique++
		} else {
			p.log.Warnw("duplicate message ID during load",
				"partition", p.PartitionID, "segmentStart", seg.StartOffset)
		}
	}
	p.log.Infow("loaded unique message IDs", "partition", p.PartitionID, "segmentStart", seg.StartOffset, "unique", unique)
	return nil
}

func (p *Partition) loadConsumerOffsets() error {
	offsets, err := loadConsumerOffsets(Consumer, p.ConsumerOffsetsPath, p.log)
	if err != nil {
		return err
	}
	p.ConsumerOffsets = offsets

	groupOffsets, err := loadConsumerOffsets(ConsumerGroup, p.ConsumerGroupOffsetsPath, p.log)
	if err != nil {
		return err
	}
	p.ConsumerGroupOffsets = groupOffsets
	return nil
}

// Save creates the partition's directories if missing (non-recursively
// — parents must already exist) and persists every segment.
func (p *Partition) Save() error {
	for _, dir := range []string{p.PartitionPath, p.OffsetsPath, p.ConsumerOffsetsPath, p.ConsumerGroupOffsetsPath} {
		if !p.persister.Exists(dir) {
			if err := p.persister.CreateDir(dir); err != nil {
				if dir == p.PartitionPath {
					return p.err(perrors.CannotCreatePartitionDirectory, err).WithPath(dir)
				}
				return p.err(perrors.CannotCreatePartition, err).WithPath(dir)
			}
		}
	}

	for _, seg := range p.Segments {
		if err := seg.Persist(); err != nil {
			return err
		}
	}
	return nil
}

// Delete recursively removes both consumer-offset directories and the
// partition directory. The two consumer-offset removals are attempted
// independently and their errors combined, so a failure on one doesn't
// mask a failure on the other.
func (p *Partition) Delete() error {
	errConsumer := deleteConsumerOffsets(p.persister, p.ConsumerOffsetsPath)
	errGroup := deleteConsumerOffsets(p.persister, p.ConsumerGroupOffsetsPath)
	if combined := multierr.Combine(errConsumer, errGroup); combined != nil {
		return p.err(perrors.CannotDeletePartition, combined).WithPath(p.ConsumerOffsetsPath)
	}

	if err := p.persister.RemoveDirAll(p.PartitionPath); err != nil {
		return p.err(perrors.CannotDeletePartitionDirectory, err).WithPath(p.PartitionPath)
	}
	return nil
}

// AppendBatch appends records to the active (last) segment, rolling to
// a new segment when the active one reports SegmentFull or SegmentClosed.
func (p *Partition) AppendBatch(records []*segment.Record) (uint64, error) {
	if len(p.Segments) == 0 {
		p.Segments = append(p.Segments, p.newSegment(0))
		p.counters.AddSegments(1)
	}

	active := p.Segments[len(p.Segments)-1]
	if err := active.AppendBatch(records); err != nil {
		if !perrors.As(err, perrors.SegmentFull) && !perrors.As(err, perrors.SegmentClosed) && err != perrors.ErrSegmentFull {
			return 0, err
		}
		if err := active.Persist(); err != nil {
			return 0, err
		}
		// AppendBatch rejects a batch before it would cross the size
		// cap, so the outgoing segment never reaches SizeBytes >=
		// config.SizeBytes on its own — Persist's cap check can't be
		// the thing that closes it. Rolling to a new segment is itself
		// the closing event.
		active.IsClosed = true
		active.EndOffset = active.CurrentOffset
		p.counters.AddSegments(1)

		next := p.newSegment(active.CurrentOffset + 1)
		p.Segments = append(p.Segments, next)
		active = next
		if err := active.AppendBatch(records); err != nil {
			return 0, err
		}
	}

	p.CurrentOffset = active.CurrentOffset
	p.ShouldIncrementOffset = true
	return active.CurrentOffset, nil
}

func (p *Partition) newSegment(startOffset uint64) *segment.Segment {
	return segment.New(p.StreamID, p.TopicID, p.PartitionID, p.PartitionPath, startOffset,
		p.config.Segment, p.config.MessagesRequiredToSave, p.persister, p.counters, p.log)
}

// Read resolves offset to its owning segment and delegates the read.
func (p *Partition) Read(offset uint64) (*segment.Record, error) {
	for _, seg := range p.Segments {
		if offset >= seg.StartOffset && offset <= seg.CurrentOffset {
			return seg.Read(offset)
		}
	}
	return nil, fmt.Errorf("%w: offset %d", perrors.ErrOffsetOutOfRange, offset)
}

// Poll returns up to count records starting at offset, in order,
// stopping early if it runs past the end of the log.
func (p *Partition) Poll(offset uint64, count int) ([]*segment.Record, error) {
	out := make([]*segment.Record, 0, count)
	for i := 0; i < count; i++ {
		rec, err := p.Read(offset + uint64(i))
		if err != nil {
			break
		}
		out = append(out, rec)
	}
	return out, nil
}

// SaveConsumerOffset persists offset through the Persister.
func (p *Partition) SaveConsumerOffset(offset ConsumerOffset) error {
	return saveConsumerOffset(p.persister, offset)
}

// DeleteConsumerOffset removes one consumer's bookmark file.
func (p *Partition) DeleteConsumerOffset(path string) error {
	return deleteConsumerOffset(p.persister, path)
}

// ConsumerOffsetPath builds the on-disk path for one consumer's (or
// consumer group's) bookmark file.
func (p *Partition) ConsumerOffsetPath(kind ConsumerKind, consumerID uint32) string {
	dir := p.ConsumerOffsetsPath
	if kind == ConsumerGroup {
		dir = p.ConsumerGroupOffsetsPath
	}
	return filepath.Join(dir, strconv.FormatUint(uint64(consumerID), 10))
}
