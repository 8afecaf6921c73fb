package persister_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/flowlog/partitionstore/internal/config"
	"github.com/flowlog/partitionstore/internal/persister"
	"github.com/stretchr/testify/require"
)

func TestAppendAndOverwrite(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "0.log")
	p := persister.New(config.FsyncEveryWrite, 0, nil)

	require.NoError(t, p.Append(path, []byte("hello ")))
	require.NoError(t, p.Append(path, []byte("world")))

	got, err := p.Read(path)
	require.NoError(t, err)
	require.Equal(t, "hello world", string(got))

	require.NoError(t, p.Overwrite(path, []byte("reset")))
	got, err = p.Read(path)
	require.NoError(t, err)
	require.Equal(t, "reset", string(got))
}

func TestExistsAndRemove(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "0.index")
	p := persister.New(config.FsyncNone, 0, nil)

	require.False(t, p.Exists(path))
	require.NoError(t, p.Append(path, []byte{1, 2, 3}))
	require.True(t, p.Exists(path))

	require.NoError(t, p.RemoveFile(path))
	require.False(t, p.Exists(path))
	// removing an absent file is not an error.
	require.NoError(t, p.RemoveFile(path))
}

func TestCreateDirIsNonRecursive(t *testing.T) {
	dir := t.TempDir()
	p := persister.New(config.FsyncNone, 0, nil)

	ok := filepath.Join(dir, "child")
	require.NoError(t, p.CreateDir(ok))

	missingParent := filepath.Join(dir, "missing", "child")
	err := p.CreateDir(missingParent)
	require.Error(t, err)
	require.True(t, os.IsNotExist(err))
}

func TestRename(t *testing.T) {
	dir := t.TempDir()
	p := persister.New(config.FsyncNone, 0, nil)
	src := filepath.Join(dir, "tmp")
	dst := filepath.Join(dir, "0.index")

	require.NoError(t, p.Append(src, []byte("data")))
	require.NoError(t, p.Rename(src, dst))
	require.False(t, p.Exists(src))
	require.True(t, p.Exists(dst))
}
