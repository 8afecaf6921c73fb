package partition_test

import (
	"context"
	"os"
	"testing"

	"github.com/flowlog/partitionstore/internal/config"
	"github.com/flowlog/partitionstore/internal/partition"
	"github.com/flowlog/partitionstore/internal/segment"
	"github.com/stretchr/testify/require"
)

func rec(payload string) *segment.Record {
	return &segment.Record{TimestampUs: 1, Payload: []byte(payload)}
}

func TestAppendAndRead(t *testing.T) {
	part := newTestPartition(t, defaultTestConfig())

	offset, err := part.AppendBatch([]*segment.Record{rec("a"), rec("b"), rec("c")})
	require.NoError(t, err)
	require.Equal(t, uint64(2), offset)
	require.NoError(t, part.Save())

	got, err := part.Read(1)
	require.NoError(t, err)
	require.Equal(t, "b", string(got.Payload))
}

func TestAppendRollsToNewSegmentWhenFull(t *testing.T) {
	cfg := defaultTestConfig()
	cfg.Segment.SizeBytes = 60 // forces a roll after one small record
	part := newTestPartition(t, cfg)

	_, err := part.AppendBatch([]*segment.Record{rec("first")})
	require.NoError(t, err)
	_, err = part.AppendBatch([]*segment.Record{rec("second")})
	require.NoError(t, err)

	require.Len(t, part.Segments, 2)
	require.True(t, part.Segments[0].IsClosed)
	require.Equal(t, uint64(0), part.Segments[0].EndOffset)
	require.Equal(t, uint64(1), part.Segments[1].StartOffset)
}

func TestPartitionPollReturnsInOrder(t *testing.T) {
	part := newTestPartition(t, defaultTestConfig())
	_, err := part.AppendBatch([]*segment.Record{rec("a"), rec("b"), rec("c")})
	require.NoError(t, err)
	require.NoError(t, part.Save())

	recs, err := part.Poll(0, 10)
	require.NoError(t, err)
	require.Len(t, recs, 3)
	require.Equal(t, "a", string(recs[0].Payload))
	require.Equal(t, "c", string(recs[2].Payload))
}

func TestLoadRecoversAppendedSegments(t *testing.T) {
	cfg := defaultTestConfig()
	part := newTestPartition(t, cfg)

	_, err := part.AppendBatch([]*segment.Record{rec("a"), rec("b")})
	require.NoError(t, err)
	require.NoError(t, part.Save())

	reloaded := newTestPartition(t, cfg)
	reloaded.PartitionPath = part.PartitionPath
	reloaded.OffsetsPath = part.OffsetsPath
	reloaded.ConsumerOffsetsPath = part.ConsumerOffsetsPath
	reloaded.ConsumerGroupOffsetsPath = part.ConsumerGroupOffsetsPath

	require.NoError(t, reloaded.Load(context.Background(), partition.PartitionState{CreatedAt: 1}))
	require.Len(t, reloaded.Segments, 1)
	require.Equal(t, uint64(1), reloaded.CurrentOffset)

	got, err := reloaded.Read(0)
	require.NoError(t, err)
	require.Equal(t, "a", string(got.Payload))
}

func TestLoadPropagatesCountersFromDisk(t *testing.T) {
	cfg := defaultTestConfig()
	part := newTestPartition(t, cfg)

	_, err := part.AppendBatch([]*segment.Record{rec("a"), rec("b")})
	require.NoError(t, err)
	require.NoError(t, part.Save())

	reloaded := newTestPartition(t, cfg)
	reloaded.PartitionPath = part.PartitionPath
	reloaded.OffsetsPath = part.OffsetsPath
	reloaded.ConsumerOffsetsPath = part.ConsumerOffsetsPath
	reloaded.ConsumerGroupOffsetsPath = part.ConsumerGroupOffsetsPath

	require.NoError(t, reloaded.Load(context.Background(), partition.PartitionState{CreatedAt: 1}))
	snapshot := reloaded.Counters()
	require.Equal(t, int64(1), snapshot.SegmentsCount)
	require.Equal(t, int64(2), snapshot.MessagesCount)
	require.True(t, snapshot.SizeBytes > 0)
}

func TestAppendCountsInitialAndRolledSegments(t *testing.T) {
	cfg := defaultTestConfig()
	cfg.Segment.SizeBytes = 60
	part := newTestPartition(t, cfg)

	_, err := part.AppendBatch([]*segment.Record{rec("first")})
	require.NoError(t, err)
	_, err = part.AppendBatch([]*segment.Record{rec("second")})
	require.NoError(t, err)

	require.Equal(t, int64(2), part.Counters().SegmentsCount)
}

func TestLoadRemovesLegacyTimeIndex(t *testing.T) {
	cfg := defaultTestConfig()
	part := newTestPartition(t, cfg)

	_, err := part.AppendBatch([]*segment.Record{rec("a")})
	require.NoError(t, err)
	require.NoError(t, part.Save())

	legacyPath := part.PartitionPath + "/0.timeindex"
	require.NoError(t, os.WriteFile(legacyPath, []byte("stale"), 0o644))

	reloaded := newTestPartition(t, cfg)
	reloaded.PartitionPath = part.PartitionPath
	reloaded.OffsetsPath = part.OffsetsPath
	reloaded.ConsumerOffsetsPath = part.ConsumerOffsetsPath
	reloaded.ConsumerGroupOffsetsPath = part.ConsumerGroupOffsetsPath

	require.NoError(t, reloaded.Load(context.Background(), partition.PartitionState{CreatedAt: 1}))
	_, err = os.Stat(legacyPath)
	require.True(t, os.IsNotExist(err))
}

func TestLoadDeduplicatesMessageIDs(t *testing.T) {
	cfg := defaultTestConfig()
	cfg.Deduplication.Enabled = true
	part := newTestPartition(t, cfg)

	dupID := segment.MessageIDFromUint64(99)
	_, err := part.AppendBatch([]*segment.Record{
		{TimestampUs: 1, ID: dupID, Payload: []byte("a")},
		{TimestampUs: 1, ID: dupID, Payload: []byte("b")},
	})
	require.NoError(t, err)
	require.NoError(t, part.Save())

	reloaded := newTestPartition(t, cfg)
	reloaded.PartitionPath = part.PartitionPath
	reloaded.OffsetsPath = part.OffsetsPath
	reloaded.ConsumerOffsetsPath = part.ConsumerOffsetsPath
	reloaded.ConsumerGroupOffsetsPath = part.ConsumerGroupOffsetsPath

	require.NoError(t, reloaded.Load(context.Background(), partition.PartitionState{CreatedAt: 1}))
	dedup, ok := reloaded.Deduplicator.(*partition.MapDeduplicator)
	require.True(t, ok)
	require.Equal(t, 1, dedup.Len())
}
