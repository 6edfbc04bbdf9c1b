package filesystem

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOSFilesystemRoundTrip(t *testing.T) {
	fs := NewOS()
	dir := t.TempDir()

	sub := filepath.Join(dir, "a", "b")
	require.NoError(t, fs.MkdirAll(sub, 0755))

	file := filepath.Join(sub, "f.txt")
	require.NoError(t, fs.WriteFile(file, []byte("content"), 0644))

	data, err := fs.ReadFile(file)
	require.NoError(t, err)
	assert.Equal(t, "content", string(data))

	info, err := fs.Stat(file)
	require.NoError(t, err)
	assert.Equal(t, int64(7), info.Size())

	entries, err := fs.ReadDir(sub)
	require.NoError(t, err)
	require.Len(t, entries, 1)

	moved := filepath.Join(sub, "g.txt")
	require.NoError(t, fs.Rename(file, moved))
	_, err = fs.Stat(file)
	assert.True(t, os.IsNotExist(err))

	require.NoError(t, fs.Symlink("g.txt", filepath.Join(sub, "link")))
	target, err := fs.Readlink(filepath.Join(sub, "link"))
	require.NoError(t, err)
	assert.Equal(t, "g.txt", target)

	lst, err := fs.Lstat(filepath.Join(sub, "link"))
	require.NoError(t, err)
	assert.NotZero(t, lst.Mode()&os.ModeSymlink)

	require.NoError(t, fs.Remove(moved))
	require.NoError(t, fs.RemoveAll(dir))
	assert.NoFileExists(t, moved)
}
