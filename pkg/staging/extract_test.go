package staging

import (
	"archive/tar"
	"bytes"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/klauspost/compress/zip"
	"github.com/klauspost/pgzip"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arthur-debert/airlift/pkg/errors"
	"github.com/arthur-debert/airlift/pkg/testutil"
	"github.com/arthur-debert/airlift/pkg/types"
)

func newTestProvider(t *testing.T) *LocalProvider {
	t.Helper()
	return NewLocalProvider(t.TempDir(), nil)
}

func TestIsArchive(t *testing.T) {
	tests := []struct {
		name string
		want bool
	}{
		{"arrow.zip", true},
		{"Arrow.ZIP", true},
		{"arrow.tar.gz", true},
		{"arrow.tgz", true},
		{"arrow.tar.bz2", true},
		{"arrow.tar.xz", true},
		{"arrow.tar.zst", true},
		{"arrow.tar", true},
		{"arrow.acf", false},
		{"arrow.7z", false},
		{"arrow", false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, isArchive(tt.name), tt.name)
	}
}

func TestExtractIntoDirectorySource(t *testing.T) {
	src := t.TempDir()
	dest := t.TempDir()
	testutil.WriteTree(t, src, map[string]string{"Arrow.acf": "airframe", "objects/wing.obj": "mesh"})

	p := newTestProvider(t)
	require.NoError(t, p.ExtractInto(&types.InstallTask{Source: src}, dest))
	assert.Equal(t, testutil.ReadTree(t, src), testutil.ReadTree(t, dest))
}

func TestExtractIntoRejectsUnknownFormat(t *testing.T) {
	src := filepath.Join(t.TempDir(), "addon.7z")
	require.NoError(t, os.WriteFile(src, []byte("not really"), 0644))

	p := newTestProvider(t)
	err := p.ExtractInto(&types.InstallTask{Source: src}, t.TempDir())
	require.Error(t, err)
	assert.True(t, errors.IsErrorCode(err, errors.ErrArchiveFormat))
}

func TestExtractZipStripsSharedTopDir(t *testing.T) {
	archive := filepath.Join(t.TempDir(), "arrow.zip")
	testutil.MakeZip(t, archive, map[string]string{
		"Arrow/Arrow.acf":        "airframe",
		"Arrow/objects/wing.obj": "mesh",
	})

	dest := t.TempDir()
	p := newTestProvider(t)
	require.NoError(t, p.ExtractInto(&types.InstallTask{Source: archive}, dest))

	assert.Equal(t, map[string]string{
		"Arrow.acf":        "airframe",
		"objects/wing.obj": "mesh",
	}, testutil.ReadTree(t, dest))
}

func TestExtractZipKeepsMixedTopLevel(t *testing.T) {
	archive := filepath.Join(t.TempDir(), "pack.zip")
	testutil.MakeZip(t, archive, map[string]string{
		"Arrow/Arrow.acf": "airframe",
		"readme.txt":      "docs",
	})

	dest := t.TempDir()
	p := newTestProvider(t)
	require.NoError(t, p.ExtractInto(&types.InstallTask{Source: archive}, dest))

	assert.Equal(t, map[string]string{
		"Arrow/Arrow.acf": "airframe",
		"readme.txt":      "docs",
	}, testutil.ReadTree(t, dest))
}

func TestExtractZipRejectsSlip(t *testing.T) {
	archive := filepath.Join(t.TempDir(), "evil.zip")
	testutil.MakeZip(t, archive, map[string]string{
		"../evil.txt": "escape",
		"ok.txt":      "fine",
	})

	p := newTestProvider(t)
	err := p.ExtractInto(&types.InstallTask{Source: archive}, t.TempDir())
	require.Error(t, err)
	assert.True(t, errors.IsErrorCode(err, errors.ErrArchivePathEscape))
}

func TestExtractZipRejectsEncrypted(t *testing.T) {
	archive := filepath.Join(t.TempDir(), "locked.zip")
	var buf bytes.Buffer
	w := zip.NewWriter(&buf)
	f, err := w.CreateHeader(&zip.FileHeader{Name: "secret.txt", Flags: 0x1})
	require.NoError(t, err)
	_, err = f.Write([]byte("???"))
	require.NoError(t, err)
	require.NoError(t, w.Close())
	require.NoError(t, os.WriteFile(archive, buf.Bytes(), 0644))

	p := newTestProvider(t)
	err = p.ExtractInto(&types.InstallTask{Source: archive, Password: "pw"}, t.TempDir())
	require.Error(t, err)
	assert.True(t, errors.IsErrorCode(err, errors.ErrArchiveEncrypted))
}

func TestExtractTarGzStripsTopDir(t *testing.T) {
	archive := filepath.Join(t.TempDir(), "arrow.tar.gz")
	testutil.MakeTarGz(t, archive, map[string]string{
		"Arrow/Arrow.acf":        "airframe",
		"Arrow/objects/wing.obj": "mesh",
	})

	dest := t.TempDir()
	p := newTestProvider(t)
	require.NoError(t, p.ExtractInto(&types.InstallTask{Source: archive}, dest))

	assert.Equal(t, map[string]string{
		"Arrow.acf":        "airframe",
		"objects/wing.obj": "mesh",
	}, testutil.ReadTree(t, dest))
}

func TestExtractTarRejectsEscapingSymlink(t *testing.T) {
	archive := filepath.Join(t.TempDir(), "evil.tar.gz")
	testutil.MakeTarGzSymlink(t, archive,
		map[string]string{"ok.txt": "fine"},
		"link", "../../outside")

	p := newTestProvider(t)
	err := p.ExtractInto(&types.InstallTask{Source: archive}, t.TempDir())
	require.Error(t, err)
	assert.True(t, errors.IsErrorCode(err, errors.ErrArchivePathEscape))
}

func TestExtractTarAllowsInternalSymlink(t *testing.T) {
	archive := filepath.Join(t.TempDir(), "linked.tar.gz")
	testutil.MakeTarGzSymlink(t, archive,
		map[string]string{"data/real.txt": "content"},
		"data/alias", "real.txt")

	dest := t.TempDir()
	p := newTestProvider(t)
	require.NoError(t, p.ExtractInto(&types.InstallTask{Source: archive}, dest))

	// Both entries share the data/ top directory, which is stripped.
	link, err := os.Readlink(filepath.Join(dest, "alias"))
	require.NoError(t, err)
	assert.Equal(t, "real.txt", link)
}

func TestNestedChainExtraction(t *testing.T) {
	dir := t.TempDir()
	inner := filepath.Join(dir, "inner.zip")
	testutil.MakeZip(t, inner, map[string]string{
		"Arrow.acf":        "airframe",
		"objects/wing.obj": "mesh",
	})
	innerBytes, err := os.ReadFile(inner)
	require.NoError(t, err)

	outer := filepath.Join(dir, "outer.tar.gz")
	makeTarGzRaw(t, outer, "inner.zip", innerBytes)

	dest := t.TempDir()
	p := newTestProvider(t)
	require.NoError(t, p.ExtractInto(&types.InstallTask{Source: outer}, dest))

	assert.Equal(t, map[string]string{
		"Arrow.acf":        "airframe",
		"objects/wing.obj": "mesh",
	}, testutil.ReadTree(t, dest))
}

// makeTarGzRaw writes a tar.gz holding a single entry with raw bytes,
// for building nested archive fixtures.
func makeTarGzRaw(t *testing.T, path, name string, content []byte) {
	t.Helper()
	var buf bytes.Buffer
	gz := pgzip.NewWriter(&buf)
	tw := tar.NewWriter(gz)
	require.NoError(t, tw.WriteHeader(&tar.Header{
		Name:    name,
		Mode:    0644,
		Size:    int64(len(content)),
		ModTime: time.Now(),
	}))
	_, err := tw.Write(content)
	require.NoError(t, err)
	require.NoError(t, tw.Close())
	require.NoError(t, gz.Close())
	require.NoError(t, os.WriteFile(path, buf.Bytes(), 0644))
}
