//go:build unix

package fsops

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreate_Empty(t *testing.T) {
	chdir(t, t.TempDir())

	require.NoError(t, Create("empty", nil))

	info, err := os.Stat("empty")
	require.NoError(t, err)
	assert.Equal(t, int64(0), info.Size())
}

func TestCreate_TruncatesExisting(t *testing.T) {
	chdir(t, t.TempDir())

	require.NoError(t, Create("f", []byte("first content")))
	require.NoError(t, Create("f", []byte("second")))

	data, err := os.ReadFile("f")
	require.NoError(t, err)
	assert.Equal(t, "second", string(data))
}

func TestAppend(t *testing.T) {
	chdir(t, t.TempDir())

	require.NoError(t, Create("f", []byte("a\n")))
	require.NoError(t, Append("f", []byte("b\n")))

	data, err := os.ReadFile("f")
	require.NoError(t, err)
	assert.Equal(t, "a\nb\n", string(data))
}

func TestAppend_MissingFile(t *testing.T) {
	chdir(t, t.TempDir())

	err := Append("missing", []byte("x"))
	require.Error(t, err)

	var opErr *OpError
	require.True(t, errors.As(err, &opErr))
	assert.Equal(t, "open", opErr.Op)
	assert.Equal(t, "missing", opErr.Path)
	assert.ErrorIs(t, err, fs.ErrNotExist)
}

func TestRead(t *testing.T) {
	chdir(t, t.TempDir())

	require.NoError(t, os.WriteFile("r", []byte("fssb\n"), 0o644))

	data, err := Read("r")
	require.NoError(t, err)
	assert.Equal(t, "fssb\n", string(data))
}

func TestRead_LargerThanChunk(t *testing.T) {
	chdir(t, t.TempDir())

	want := make([]byte, 100*1024+7)
	for i := range want {
		want[i] = byte(i % 251)
	}
	require.NoError(t, os.WriteFile("big", want, 0o644))

	got, err := Read("big")
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestRead_Missing(t *testing.T) {
	chdir(t, t.TempDir())

	_, err := Read("nope")
	assert.ErrorIs(t, err, fs.ErrNotExist)
}

func TestRemove(t *testing.T) {
	chdir(t, t.TempDir())

	require.NoError(t, Create("gone", []byte("x")))
	require.NoError(t, Remove("gone"))

	_, err := os.Stat("gone")
	assert.ErrorIs(t, err, fs.ErrNotExist)
}

func TestRemove_Missing(t *testing.T) {
	chdir(t, t.TempDir())

	err := Remove("nope")
	assert.ErrorIs(t, err, fs.ErrNotExist)
	assert.Contains(t, err.Error(), "unlink nope")
}

func TestRename(t *testing.T) {
	chdir(t, t.TempDir())

	require.NoError(t, Create("src", []byte("payload")))
	require.NoError(t, Rename("src", "dst"))

	_, err := os.Stat("src")
	assert.ErrorIs(t, err, fs.ErrNotExist)

	data, err := os.ReadFile("dst")
	require.NoError(t, err)
	assert.Equal(t, "payload", string(data))
}

func TestRename_ErrorNamesBothPaths(t *testing.T) {
	chdir(t, t.TempDir())

	err := Rename("a", "b")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "rename a -> b")
}

func TestRelativePathsUseWorkingDirectory(t *testing.T) {
	dir := t.TempDir()
	chdir(t, dir)

	require.NoError(t, Create("rel", []byte("x")))

	_, err := os.Stat(filepath.Join(dir, "rel"))
	assert.NoError(t, err)
}

func TestNameWithNUL(t *testing.T) {
	chdir(t, t.TempDir())

	err := Create("bad\x00name", nil)
	require.Error(t, err)
}
