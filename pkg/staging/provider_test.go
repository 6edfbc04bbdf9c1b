package staging

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arthur-debert/airlift/pkg/errors"
	"github.com/arthur-debert/airlift/pkg/internal/hashutil"
	"github.com/arthur-debert/airlift/pkg/testutil"
	"github.com/arthur-debert/airlift/pkg/types"
)

func TestAreaCloseIdempotent(t *testing.T) {
	area, err := NewArea(t.TempDir())
	require.NoError(t, err)
	require.DirExists(t, area.Dir())

	require.NoError(t, area.Close())
	assert.False(t, testutil.Exists(area.Dir()))
	assert.NoError(t, area.Close())
}

func TestAreasAreDisjoint(t *testing.T) {
	root := t.TempDir()
	a, err := NewArea(root)
	require.NoError(t, err)
	b, err := NewArea(root)
	require.NoError(t, err)
	defer func() {
		_ = a.Close()
		_ = b.Close()
	}()

	assert.NotEqual(t, a.Dir(), b.Dir())
}

func TestReextractFileFromZip(t *testing.T) {
	archive := filepath.Join(t.TempDir(), "arrow.zip")
	testutil.MakeZip(t, archive, map[string]string{
		"Arrow/Arrow.acf":        "airframe",
		"Arrow/objects/wing.obj": "mesh",
	})

	p := newTestProvider(t)
	task := &types.InstallTask{Source: archive}

	// Paths use the same stripped form full extraction produces.
	data, err := p.ReextractFile(task, "objects/wing.obj")
	require.NoError(t, err)
	assert.Equal(t, "mesh", string(data))
}

func TestReextractFileFromTarGz(t *testing.T) {
	archive := filepath.Join(t.TempDir(), "arrow.tar.gz")
	testutil.MakeTarGz(t, archive, map[string]string{
		"Arrow/Arrow.acf": "airframe",
	})

	p := newTestProvider(t)
	data, err := p.ReextractFile(&types.InstallTask{Source: archive}, "Arrow.acf")
	require.NoError(t, err)
	assert.Equal(t, "airframe", string(data))
}

func TestReextractFileFromDirectory(t *testing.T) {
	src := t.TempDir()
	testutil.WriteTree(t, src, map[string]string{"objects/wing.obj": "mesh"})

	p := newTestProvider(t)
	data, err := p.ReextractFile(&types.InstallTask{Source: src}, "objects/wing.obj")
	require.NoError(t, err)
	assert.Equal(t, "mesh", string(data))
}

func TestReextractFileThroughNestedChain(t *testing.T) {
	dir := t.TempDir()
	inner := filepath.Join(dir, "inner.zip")
	testutil.MakeZip(t, inner, map[string]string{"Arrow.acf": "airframe"})
	innerBytes, err := os.ReadFile(inner)
	require.NoError(t, err)

	outer := filepath.Join(dir, "outer.tar.gz")
	makeTarGzRaw(t, outer, "inner.zip", innerBytes)

	p := newTestProvider(t)
	data, err := p.ReextractFile(&types.InstallTask{Source: outer}, "Arrow.acf")
	require.NoError(t, err)
	assert.Equal(t, "airframe", string(data))
}

func TestReextractFileMissingEntry(t *testing.T) {
	archive := filepath.Join(t.TempDir(), "arrow.zip")
	testutil.MakeZip(t, archive, map[string]string{"Arrow.acf": "airframe"})

	p := newTestProvider(t)
	_, err := p.ReextractFile(&types.InstallTask{Source: archive}, "missing.obj")
	require.Error(t, err)
	assert.True(t, errors.IsErrorCode(err, errors.ErrEntryNotInArchive))
}

func TestPasswordFor(t *testing.T) {
	task := &types.InstallTask{
		Password: "outer-pw",
		Passwords: map[string]string{
			"/tmp/chain/inner.zip": "exact-pw",
			"deep.zip":             "base-pw",
		},
	}

	assert.Equal(t, "exact-pw", passwordFor(task, "/tmp/chain/inner.zip", 1))
	assert.Equal(t, "base-pw", passwordFor(task, "/scratch/layer-1/deep.zip", 2))
	assert.Equal(t, "outer-pw", passwordFor(task, "/downloads/addon.zip", 0))
	assert.Equal(t, "", passwordFor(task, "/scratch/layer-1/unknown.zip", 1))
}

func TestBuildManifest(t *testing.T) {
	dir := t.TempDir()
	testutil.WriteTree(t, dir, map[string]string{
		"Arrow.acf":        "airframe",
		"objects/wing.obj": "mesh",
	})

	manifest, err := BuildManifest(dir)
	require.NoError(t, err)
	require.Equal(t, 2, manifest.Len())

	entry := manifest.Files["Arrow.acf"]
	assert.Equal(t, int64(len("airframe")), entry.Size)
	assert.Equal(t, hashutil.HashBytes([]byte("airframe")), entry.Hash)

	entry = manifest.Files["objects/wing.obj"]
	assert.Equal(t, int64(len("mesh")), entry.Size)
	assert.Equal(t, hashutil.HashBytes([]byte("mesh")), entry.Hash)
}

func TestBuildManifestEmptyDir(t *testing.T) {
	manifest, err := BuildManifest(t.TempDir())
	require.NoError(t, err)
	assert.Equal(t, 0, manifest.Len())
}
