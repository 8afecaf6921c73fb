package partition_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/flowlog/partitionstore/internal/config"
	"github.com/flowlog/partitionstore/internal/counters"
	"github.com/flowlog/partitionstore/internal/partition"
	"github.com/flowlog/partitionstore/internal/persister"
	"github.com/stretchr/testify/require"
)

func newTestPartition(t *testing.T, cfg config.PartitionConfig) *partition.Partition {
	t.Helper()
	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, "streams", "1", "topics", "1", "partitions"), 0o755))
	p := persister.New(config.FsyncNone, 0, nil)
	return partition.New(1, 1, 1, root, cfg, p, counters.New(), partition.NewMapDeduplicator(), nil)
}

func defaultTestConfig() config.PartitionConfig {
	return config.PartitionConfig{
		Segment:                config.SegmentConfig{SizeBytes: 1 << 20, CacheIndexes: true},
		MessagesRequiredToSave: 1000,
		Fsync:                  config.FsyncNone,
	}
}

func TestPartitionSaveCreatesLayout(t *testing.T) {
	part := newTestPartition(t, defaultTestConfig())
	require.NoError(t, part.Save())

	for _, dir := range []string{part.PartitionPath, part.OffsetsPath, part.ConsumerOffsetsPath, part.ConsumerGroupOffsetsPath} {
		info, err := os.Stat(dir)
		require.NoError(t, err)
		require.True(t, info.IsDir())
	}
}

func TestConsumerOffsetSaveAndLoad(t *testing.T) {
	part := newTestPartition(t, defaultTestConfig())
	require.NoError(t, part.Save())

	offset := partition.ConsumerOffset{
		Kind:       partition.Consumer,
		ConsumerID: 7,
		Offset:     42,
		Path:       part.ConsumerOffsetPath(partition.Consumer, 7),
	}
	require.NoError(t, part.SaveConsumerOffset(offset))

	reloaded := newTestPartition(t, defaultTestConfig())
	reloaded.PartitionPath = part.PartitionPath
	reloaded.OffsetsPath = part.OffsetsPath
	reloaded.ConsumerOffsetsPath = part.ConsumerOffsetsPath
	reloaded.ConsumerGroupOffsetsPath = part.ConsumerGroupOffsetsPath

	require.NoError(t, reloaded.Load(context.Background(), partition.PartitionState{CreatedAt: 123}))
	require.Len(t, reloaded.ConsumerOffsets, 1)
	require.Equal(t, uint32(7), reloaded.ConsumerOffsets[0].ConsumerID)
	require.Equal(t, uint64(42), reloaded.ConsumerOffsets[0].Offset)
}

func TestPartitionDeleteRemovesEverything(t *testing.T) {
	part := newTestPartition(t, defaultTestConfig())
	require.NoError(t, part.Save())

	offset := partition.ConsumerOffset{
		Kind:       partition.ConsumerGroup,
		ConsumerID: 3,
		Offset:     9,
		Path:       part.ConsumerOffsetPath(partition.ConsumerGroup, 3),
	}
	require.NoError(t, part.SaveConsumerOffset(offset))

	require.NoError(t, part.Delete())
	_, err := os.Stat(part.PartitionPath)
	require.True(t, os.IsNotExist(err))
}
