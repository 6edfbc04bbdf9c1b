package staging

import (
	"archive/tar"
	"io"
	"os"
	"path"
	"strings"

	"github.com/klauspost/compress/zip"

	"github.com/arthur-debert/airlift/pkg/errors"
)

// readEntry extracts a single entry's bytes from archive without
// unpacking the rest. The prefix-stripping rules are identical to full
// extraction, so a relative path observed in a staged tree addresses the
// same entry here.
func (p *LocalProvider) readEntry(archive, relPath, password string) ([]byte, bool, error) {
	want := path.Clean(relPath)
	if strings.HasSuffix(strings.ToLower(archive), ".zip") {
		return p.readZipEntry(archive, want, password)
	}
	return p.readTarEntry(archive, want)
}

func (p *LocalProvider) readZipEntry(src, want, password string) ([]byte, bool, error) {
	r, err := zip.OpenReader(src)
	if err != nil {
		return nil, false, errors.Wrapf(err, errors.ErrExtract, "opening %s", src)
	}
	defer func() {
		_ = r.Close()
	}()

	prefix := zipStripPrefix(r.File)
	for _, f := range r.File {
		if f.FileInfo().IsDir() {
			continue
		}
		if path.Clean(stripPrefix(f.Name, prefix)) != want {
			continue
		}
		if f.Flags&0x1 != 0 {
			return nil, false, errors.Newf(errors.ErrArchiveEncrypted,
				"entry %s in %s is encrypted; the built-in extractor cannot decrypt", f.Name, src)
		}
		rc, oerr := f.Open()
		if oerr != nil {
			return nil, false, errors.Wrapf(oerr, errors.ErrExtract, "opening entry %s", f.Name)
		}
		data, rerr := io.ReadAll(rc)
		_ = rc.Close()
		if rerr != nil {
			return nil, false, errors.Wrapf(rerr, errors.ErrExtract, "reading entry %s", f.Name)
		}
		return data, true, nil
	}
	return nil, false, nil
}

func (p *LocalProvider) readTarEntry(src, want string) ([]byte, bool, error) {
	f, err := os.Open(src)
	if err != nil {
		return nil, false, errors.Wrapf(err, errors.ErrExtract, "opening %s", src)
	}
	defer func() {
		_ = f.Close()
	}()

	reader, closeReader, err := decompressReader(src, f)
	if err != nil {
		return nil, false, err
	}
	defer closeReader()

	tr := tar.NewReader(reader)
	var prefix string
	prefixSet := false

	for {
		hdr, nerr := tr.Next()
		if nerr == io.EOF {
			return nil, false, nil
		}
		if nerr != nil {
			return nil, false, errors.Wrapf(nerr, errors.ErrExtract, "reading %s", src)
		}
		if hdr.Typeflag == tar.TypeXHeader || hdr.Typeflag == tar.TypeXGlobalHeader {
			continue
		}
		if !prefixSet {
			prefix = firstSegmentPrefix(hdr.Name)
			prefixSet = true
		}
		if hdr.Typeflag != tar.TypeReg {
			continue
		}
		if path.Clean(stripPrefix(hdr.Name, prefix)) != want {
			continue
		}
		data, rerr := io.ReadAll(tr)
		if rerr != nil {
			return nil, false, errors.Wrapf(rerr, errors.ErrExtract, "reading entry %s", hdr.Name)
		}
		return data, true, nil
	}
}
