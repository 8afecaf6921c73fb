package segment

import (
	"io"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestIndexWriteRead(t *testing.T) {
	dir := t.TempDir()
	idx, err := newIndex(filepath.Join(dir, "0.index"), 10)
	require.NoError(t, err)
	defer idx.Close()

	require.NoError(t, idx.Write(0, 0))
	require.NoError(t, idx.Write(1, 45))
	require.NoError(t, idx.Write(3, 130)) // sparse: relOffset 2 skipped

	relOffset, pos, err := idx.Read(0)
	require.NoError(t, err)
	require.Equal(t, uint32(0), relOffset)
	require.Equal(t, uint32(0), pos)

	relOffset, pos, err = idx.Read(-1)
	require.NoError(t, err)
	require.Equal(t, uint32(3), relOffset)
	require.Equal(t, uint32(130), pos)

	_, _, err = idx.Read(5)
	require.ErrorIs(t, err, io.EOF)
}

func TestIndexLookupBracketsSparseEntries(t *testing.T) {
	dir := t.TempDir()
	idx, err := newIndex(filepath.Join(dir, "0.index"), 10)
	require.NoError(t, err)
	defer idx.Close()

	require.NoError(t, idx.Write(0, 0))
	require.NoError(t, idx.Write(4, 200))
	require.NoError(t, idx.Write(8, 400))

	pos, ok := idx.Lookup(2)
	require.True(t, ok)
	require.Equal(t, uint32(0), pos) // nearest preceding entry

	pos, ok = idx.Lookup(8)
	require.True(t, ok)
	require.Equal(t, uint32(400), pos)

	pos, ok = idx.Lookup(100)
	require.True(t, ok)
	require.Equal(t, uint32(400), pos) // last entry still brackets
}

func TestIndexEmptyReadIsEOF(t *testing.T) {
	dir := t.TempDir()
	idx, err := newIndex(filepath.Join(dir, "0.index"), 10)
	require.NoError(t, err)
	defer idx.Close()

	require.True(t, idx.IsEmpty())
	_, _, err = idx.Read(0)
	require.ErrorIs(t, err, io.EOF)
	_, ok := idx.Lookup(0)
	require.False(t, ok)
}
