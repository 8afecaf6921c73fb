package segment

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestBatchAccumulatorDrain(t *testing.T) {
	b := NewBatchAccumulator(0, 10)
	b.Append([]*Record{
		{Offset: 0, Payload: []byte("a")},
		{Offset: 1, Payload: []byte("b")},
		{Offset: 2, Payload: []byte("c")},
	})
	require.Equal(t, 3, b.Len())

	upper := uint64(1)
	drained := b.Drain(&upper)
	require.Len(t, drained, 2)
	require.Equal(t, 1, b.Len())

	rest := b.Drain(nil)
	require.Len(t, rest, 1)
	require.Equal(t, 0, b.Len())
}

func TestBatchAccumulatorIsFull(t *testing.T) {
	b := NewBatchAccumulator(0, 2)
	require.False(t, b.IsFull())
	b.Append([]*Record{{Offset: 0}, {Offset: 1}})
	require.True(t, b.IsFull())
}
