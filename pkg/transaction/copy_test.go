package transaction

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arthur-debert/airlift/pkg/errors"
	"github.com/arthur-debert/airlift/pkg/filesystem"
	"github.com/arthur-debert/airlift/pkg/testutil"
)

func newTestExecutor() *Executor {
	return NewExecutor(filesystem.NewOS(), nil)
}

func TestCopyTree(t *testing.T) {
	src := t.TempDir()
	dst := filepath.Join(t.TempDir(), "out")
	testutil.WriteTree(t, src, map[string]string{
		"Arrow.acf":           "airframe",
		"objects/wing.obj":    "mesh",
		"liveries/red/paint":  "rgb",
		"liveries/blue/paint": "bgr",
	})

	e := newTestExecutor()
	require.NoError(t, e.CopyTree(src, dst))

	assert.Equal(t, testutil.ReadTree(t, src), testutil.ReadTree(t, dst))
}

func TestCopyTreePreservesInternalSymlink(t *testing.T) {
	src := t.TempDir()
	dst := filepath.Join(t.TempDir(), "out")
	testutil.WriteTree(t, src, map[string]string{"data/real.txt": "content"})
	require.NoError(t, os.Symlink(filepath.Join("data", "real.txt"), filepath.Join(src, "alias.txt")))

	e := newTestExecutor()
	require.NoError(t, e.CopyTree(src, dst))

	target, err := os.Readlink(filepath.Join(dst, "alias.txt"))
	require.NoError(t, err)
	assert.Equal(t, filepath.Join("data", "real.txt"), target)
	assert.Equal(t, "content", testutil.Content(t, filepath.Join(dst, "alias.txt")))
}

func TestCopyTreeRejectsEscapingSymlink(t *testing.T) {
	outside := t.TempDir()
	testutil.WriteTree(t, outside, map[string]string{"secret.txt": "nope"})

	src := t.TempDir()
	dst := filepath.Join(t.TempDir(), "out")
	testutil.WriteTree(t, src, map[string]string{"ok.txt": "fine"})
	require.NoError(t, os.Symlink(filepath.Join(outside, "secret.txt"), filepath.Join(src, "evil")))

	e := newTestExecutor()
	err := e.CopyTree(src, dst)
	require.Error(t, err)
	assert.True(t, errors.IsErrorCode(err, errors.ErrSymlinkEscape))
}

func TestCopyTreeRejectsDanglingTraversalSymlink(t *testing.T) {
	src := t.TempDir()
	dst := filepath.Join(t.TempDir(), "out")
	require.NoError(t, os.Symlink(filepath.Join("..", "..", "gone"), filepath.Join(src, "dangling")))

	e := newTestExecutor()
	err := e.CopyTree(src, dst)
	require.Error(t, err)
	assert.True(t, errors.IsErrorCode(err, errors.ErrSymlinkEscape))
}

func TestCopyTreeToleratesDanglingLocalSymlink(t *testing.T) {
	src := t.TempDir()
	dst := filepath.Join(t.TempDir(), "out")
	testutil.WriteTree(t, src, map[string]string{"ok.txt": "fine"})
	require.NoError(t, os.Symlink("missing.txt", filepath.Join(src, "dangling")))

	e := newTestExecutor()
	require.NoError(t, e.CopyTree(src, dst))

	target, err := os.Readlink(filepath.Join(dst, "dangling"))
	require.NoError(t, err)
	assert.Equal(t, "missing.txt", target)
}

func TestCopyTreeSkipsDirectoryCycle(t *testing.T) {
	src := t.TempDir()
	dst := filepath.Join(t.TempDir(), "out")
	testutil.WriteTree(t, src, map[string]string{"sub/file.txt": "content"})
	require.NoError(t, os.Symlink(src, filepath.Join(src, "sub", "loop")))

	e := newTestExecutor()
	require.NoError(t, e.CopyTree(src, dst))
	assert.Equal(t, "content", testutil.Content(t, filepath.Join(dst, "sub", "file.txt")))
}

func TestAtomicMove(t *testing.T) {
	src := t.TempDir()
	testutil.WriteTree(t, src, map[string]string{"a.txt": "one", "sub/b.txt": "two"})
	dst := filepath.Join(t.TempDir(), "nested", "target")

	e := newTestExecutor()
	require.NoError(t, e.AtomicMove(src, dst))

	assert.False(t, testutil.Exists(src))
	assert.Equal(t, map[string]string{"a.txt": "one", "sub/b.txt": "two"}, testutil.ReadTree(t, dst))
}

func TestAtomicMoveMissingSource(t *testing.T) {
	e := newTestExecutor()
	err := e.AtomicMove(filepath.Join(t.TempDir(), "nope"), filepath.Join(t.TempDir(), "dst"))
	require.Error(t, err)
	assert.True(t, errors.IsErrorCode(err, errors.ErrFileAccess))
}

func TestCheckDiskSpace(t *testing.T) {
	dir := t.TempDir()

	// Any real volume has at least one byte free.
	assert.NoError(t, CheckDiskSpace(dir, 1))

	// The probe walks up to the nearest existing ancestor.
	assert.NoError(t, CheckDiskSpace(filepath.Join(dir, "does", "not", "exist"), 1))

	err := CheckDiskSpace(dir, 1<<62)
	require.Error(t, err)
	assert.True(t, errors.IsErrorCode(err, errors.ErrDiskSpace))
}
