package staging

import (
	"archive/tar"
	"compress/bzip2"
	"io"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/klauspost/compress/zip"
	"github.com/klauspost/compress/zstd"
	"github.com/klauspost/pgzip"
	"github.com/ulikunitz/xz"

	"github.com/arthur-debert/airlift/pkg/errors"
)

var archiveSuffixes = []string{
	".zip", ".tar.gz", ".tgz", ".tar.bz2", ".tar.xz", ".tar.zst", ".tar",
}

func isArchive(name string) bool {
	lower := strings.ToLower(name)
	for _, suffix := range archiveSuffixes {
		if strings.HasSuffix(lower, suffix) {
			return true
		}
	}
	return false
}

func (p *LocalProvider) extractArchive(archive, dest, password string) error {
	if strings.HasSuffix(strings.ToLower(archive), ".zip") {
		return p.extractZip(archive, dest, password)
	}
	return p.extractTar(archive, dest)
}

// extractZip unpacks a zip archive, stripping a single shared top-level
// directory when one exists. Paths are checked against zip-slip and
// encrypted entries are rejected: the built-in codec cannot decrypt, so
// password-protected sources need an external staging provider.
func (p *LocalProvider) extractZip(src, dest, password string) error {
	r, err := zip.OpenReader(src)
	if err != nil {
		return errors.Wrapf(err, errors.ErrExtract, "opening %s", src)
	}
	defer func() {
		_ = r.Close()
	}()

	dest, err = filepath.Abs(dest)
	if err != nil {
		return errors.Wrapf(err, errors.ErrStaging, "resolving %s", dest)
	}

	prefix := zipStripPrefix(r.File)

	for _, f := range r.File {
		if f.Flags&0x1 != 0 {
			if password != "" {
				return errors.Newf(errors.ErrArchiveEncrypted,
					"%s contains encrypted entry %s; the built-in extractor cannot decrypt", src, f.Name)
			}
			return errors.Newf(errors.ErrArchiveEncrypted,
				"%s contains encrypted entry %s and no password was supplied", src, f.Name)
		}

		name := stripPrefix(f.Name, prefix)
		if name == "" {
			continue
		}
		fpath, perr := securePath(dest, name)
		if perr != nil {
			return perr
		}

		if f.FileInfo().IsDir() {
			if err := os.MkdirAll(fpath, 0755); err != nil {
				return errors.Wrapf(err, errors.ErrDirCreate, "creating %s", fpath)
			}
			continue
		}

		if err := os.MkdirAll(filepath.Dir(fpath), 0755); err != nil {
			return errors.Wrapf(err, errors.ErrDirCreate, "creating parent of %s", fpath)
		}

		rc, oerr := f.Open()
		if oerr != nil {
			return errors.Wrapf(oerr, errors.ErrExtract, "opening entry %s", f.Name)
		}
		err = p.writeEntry(fpath, rc, f.Mode())
		_ = rc.Close()
		if err != nil {
			return err
		}
	}
	return nil
}

// extractTar unpacks a tar archive with any of the supported compression
// wrappers, stripping the first-entry top-level directory the way
// installers expect addon tarballs to be laid out.
func (p *LocalProvider) extractTar(src, dest string) error {
	f, err := os.Open(src)
	if err != nil {
		return errors.Wrapf(err, errors.ErrExtract, "opening %s", src)
	}
	defer func() {
		_ = f.Close()
	}()

	reader, closeReader, err := decompressReader(src, f)
	if err != nil {
		return err
	}
	defer closeReader()

	dest, err = filepath.Abs(dest)
	if err != nil {
		return errors.Wrapf(err, errors.ErrStaging, "resolving %s", dest)
	}

	tr := tar.NewReader(reader)
	var prefix string
	prefixSet := false

	for {
		hdr, nerr := tr.Next()
		if nerr == io.EOF {
			break
		}
		if nerr != nil {
			return errors.Wrapf(nerr, errors.ErrExtract, "reading %s", src)
		}

		if hdr.Typeflag == tar.TypeXHeader || hdr.Typeflag == tar.TypeXGlobalHeader {
			continue
		}

		if !prefixSet {
			prefix = firstSegmentPrefix(hdr.Name)
			prefixSet = true
		}
		name := stripPrefix(hdr.Name, prefix)
		if name == "" {
			continue
		}
		fpath, perr := securePath(dest, name)
		if perr != nil {
			return perr
		}

		switch hdr.Typeflag {
		case tar.TypeDir:
			if err := os.MkdirAll(fpath, fs.FileMode(hdr.Mode).Perm()|0700); err != nil {
				return errors.Wrapf(err, errors.ErrDirCreate, "creating %s", fpath)
			}
		case tar.TypeReg:
			if err := os.MkdirAll(filepath.Dir(fpath), 0755); err != nil {
				return errors.Wrapf(err, errors.ErrDirCreate, "creating parent of %s", fpath)
			}
			if err := p.writeEntry(fpath, tr, fs.FileMode(hdr.Mode).Perm()); err != nil {
				return err
			}
		case tar.TypeSymlink:
			if linkEscapes(name, hdr.Linkname) {
				return errors.Newf(errors.ErrArchivePathEscape,
					"symlink %s in %s targets %q outside the archive", hdr.Name, src, hdr.Linkname)
			}
			if err := os.MkdirAll(filepath.Dir(fpath), 0755); err != nil {
				return errors.Wrapf(err, errors.ErrDirCreate, "creating parent of %s", fpath)
			}
			if err := os.Symlink(hdr.Linkname, fpath); err != nil && !os.IsExist(err) {
				return errors.Wrapf(err, errors.ErrExtract, "creating symlink %s", fpath)
			}
		default:
			p.logger.Debug().Str("entry", hdr.Name).Int("type", int(hdr.Typeflag)).
				Msg("Skipping unsupported tar entry")
		}
	}
	return nil
}

func (p *LocalProvider) writeEntry(dst string, r io.Reader, mode fs.FileMode) error {
	out, err := os.OpenFile(dst, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, mode.Perm()|0400)
	if err != nil {
		return errors.Wrapf(err, errors.ErrFileCreate, "creating %s", dst)
	}

	buf := make([]byte, 1<<20)
	for {
		n, rerr := r.Read(buf)
		if n > 0 {
			if _, werr := out.Write(buf[:n]); werr != nil {
				_ = out.Close()
				return errors.Wrapf(werr, errors.ErrFileCreate, "writing %s", dst)
			}
			p.reporter.Add(int64(n), dst)
		}
		if rerr == io.EOF {
			break
		}
		if rerr != nil {
			_ = out.Close()
			return errors.Wrapf(rerr, errors.ErrExtract, "extracting into %s", dst)
		}
	}
	if err := out.Close(); err != nil {
		return errors.Wrapf(err, errors.ErrFileCreate, "closing %s", dst)
	}
	return nil
}

// decompressReader wraps f according to the archive's suffix.
func decompressReader(name string, f *os.File) (io.Reader, func(), error) {
	lower := strings.ToLower(name)
	noop := func() {}
	switch {
	case strings.HasSuffix(lower, ".tar.gz") || strings.HasSuffix(lower, ".tgz"):
		gz, err := pgzip.NewReader(f)
		if err != nil {
			return nil, noop, errors.Wrapf(err, errors.ErrExtract, "gzip reader for %s", name)
		}
		return gz, func() { _ = gz.Close() }, nil
	case strings.HasSuffix(lower, ".tar.bz2"):
		return bzip2.NewReader(f), noop, nil
	case strings.HasSuffix(lower, ".tar.xz"):
		xr, err := xz.NewReader(f)
		if err != nil {
			return nil, noop, errors.Wrapf(err, errors.ErrExtract, "xz reader for %s", name)
		}
		return xr, noop, nil
	case strings.HasSuffix(lower, ".tar.zst"):
		zr, err := zstd.NewReader(f)
		if err != nil {
			return nil, noop, errors.Wrapf(err, errors.ErrExtract, "zstd reader for %s", name)
		}
		return zr, zr.Close, nil
	case strings.HasSuffix(lower, ".tar"):
		return f, noop, nil
	}
	return nil, noop, errors.Newf(errors.ErrArchiveFormat, "unsupported archive format: %s", name)
}

// zipStripPrefix returns "top/" when every entry lives under one shared
// top-level directory, else "".
func zipStripPrefix(files []*zip.File) string {
	common := ""
	for _, f := range files {
		name := strings.TrimSuffix(f.Name, "/")
		idx := strings.IndexByte(name, '/')
		if idx == -1 {
			if f.FileInfo().IsDir() {
				// The top directory entry itself.
				if common == "" || common == name+"/" {
					common = name + "/"
					continue
				}
			}
			return ""
		}
		top := name[:idx+1]
		if common == "" {
			common = top
		} else if common != top {
			return ""
		}
	}
	return common
}

// firstSegmentPrefix mirrors the streaming strip heuristic: the first
// content entry's top directory becomes the prefix. Entries not sharing
// it keep their full names.
func firstSegmentPrefix(name string) string {
	idx := strings.IndexByte(name, '/')
	if idx == -1 {
		return ""
	}
	return name[:idx+1]
}

func stripPrefix(name, prefix string) string {
	if prefix != "" && strings.HasPrefix(name, prefix) {
		name = strings.TrimPrefix(name, prefix)
	}
	return strings.TrimSuffix(name, "/")
}

// securePath joins name onto dest and rejects entries that would land
// outside it (zip-slip).
func securePath(dest, name string) (string, error) {
	fpath := filepath.Join(dest, filepath.FromSlash(name))
	if fpath != dest && !strings.HasPrefix(fpath, dest+string(os.PathSeparator)) {
		return "", errors.Newf(errors.ErrArchivePathEscape, "illegal path in archive: %s", name)
	}
	return fpath, nil
}

// linkEscapes reports whether a symlink entry, resolved relative to its
// own location, would point outside the extraction root. Relative links
// that stay inside the tree are fine; absolute targets never are.
func linkEscapes(entryName, linkname string) bool {
	if filepath.IsAbs(linkname) {
		return true
	}
	resolved := path.Join(path.Dir(path.Clean(filepath.ToSlash(entryName))), filepath.ToSlash(linkname))
	return resolved == ".." || strings.HasPrefix(resolved, "../")
}
