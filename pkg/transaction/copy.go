package transaction

import (
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/arthur-debert/airlift/pkg/errors"
)

// maxCopyDepth bounds directory recursion as a loop guard, independent of
// the symlink cycle detection.
const maxCopyDepth = 40

const copyBufSize = 1 << 20

// CopyTree recursively copies src into dst. Symlinks are recreated, not
// followed, and a link whose resolved target lies outside src is rejected
// so archive content can never write outside the install tree. Directory
// cycles introduced through symlinked ancestors are skipped, not failed.
func (e *Executor) CopyTree(src, dst string) error {
	base, err := filepath.Abs(src)
	if err != nil {
		return errors.Wrapf(err, errors.ErrFileAccess, "resolving copy base %s", src)
	}
	visited := make(map[string]struct{})
	return e.copyDir(base, dst, base, visited, 0)
}

func (e *Executor) copyDir(src, dst, base string, visited map[string]struct{}, depth int) error {
	if depth > maxCopyDepth {
		return errors.Newf(errors.ErrCopyDepth, "copy exceeded maximum depth %d at %s", maxCopyDepth, src)
	}

	if canon, err := filepath.EvalSymlinks(src); err == nil {
		if _, seen := visited[canon]; seen {
			e.logger.Debug().Str("path", src).Msg("Skipping directory cycle")
			return nil
		}
		visited[canon] = struct{}{}
	}

	info, err := e.fs.Lstat(src)
	if err != nil {
		return errors.Wrapf(err, errors.ErrFileAccess, "reading %s", src)
	}
	if err := e.fs.MkdirAll(dst, info.Mode().Perm()|0700); err != nil {
		return errors.Wrapf(err, errors.ErrDirCreate, "creating %s", dst)
	}

	entries, err := e.fs.ReadDir(src)
	if err != nil {
		return errors.Wrapf(err, errors.ErrFileAccess, "listing %s", src)
	}

	for _, entry := range entries {
		srcPath := filepath.Join(src, entry.Name())
		dstPath := filepath.Join(dst, entry.Name())

		switch {
		case entry.Type()&fs.ModeSymlink != 0:
			if err := e.copySymlink(srcPath, dstPath, base); err != nil {
				return err
			}
		case entry.IsDir():
			if err := e.copyDir(srcPath, dstPath, base, visited, depth+1); err != nil {
				return err
			}
		case entry.Type().IsRegular():
			if err := e.copyFile(srcPath, dstPath); err != nil {
				return err
			}
		default:
			e.logger.Debug().Str("path", srcPath).Str("mode", entry.Type().String()).
				Msg("Skipping special file")
		}
	}
	return nil
}

// copySymlink recreates a symlink at dst after checking that the link
// cannot reach outside base. A link that doesn't resolve (dangling
// target) is tolerated unless its literal target climbs out via parent
// traversal.
func (e *Executor) copySymlink(link, dst, base string) error {
	target, err := e.fs.Readlink(link)
	if err != nil {
		return errors.Wrapf(err, errors.ErrFileAccess, "reading link %s", link)
	}

	resolved, err := filepath.EvalSymlinks(link)
	if err == nil {
		baseCanon := base
		if c, cerr := filepath.EvalSymlinks(base); cerr == nil {
			baseCanon = c
		}
		if !isWithin(resolved, baseCanon) {
			return errors.Newf(errors.ErrSymlinkEscape,
				"symlink %s resolves to %s, outside %s", link, resolved, baseCanon)
		}
	} else if hasParentTraversal(target) {
		return errors.Newf(errors.ErrSymlinkEscape,
			"dangling symlink %s has traversal target %q", link, target)
	}

	return e.fs.Symlink(target, dst)
}

func (e *Executor) copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return errors.Wrapf(err, errors.ErrFileAccess, "opening %s", src)
	}
	defer func() {
		_ = in.Close()
	}()

	info, err := in.Stat()
	if err != nil {
		return errors.Wrapf(err, errors.ErrFileAccess, "stat %s", src)
	}

	out, err := os.OpenFile(dst, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, info.Mode().Perm())
	if err != nil {
		return errors.Wrapf(err, errors.ErrFileCreate, "creating %s", dst)
	}

	buf := make([]byte, copyBufSize)
	for {
		n, rerr := in.Read(buf)
		if n > 0 {
			if _, werr := out.Write(buf[:n]); werr != nil {
				_ = out.Close()
				return errors.Wrapf(werr, errors.ErrFileCreate, "writing %s", dst)
			}
			e.reporter.Add(int64(n), src)
		}
		if rerr == io.EOF {
			break
		}
		if rerr != nil {
			_ = out.Close()
			return errors.Wrapf(rerr, errors.ErrFileAccess, "reading %s", src)
		}
	}
	if err := out.Close(); err != nil {
		return errors.Wrapf(err, errors.ErrFileCreate, "closing %s", dst)
	}
	return nil
}

func isWithin(path, base string) bool {
	rel, err := filepath.Rel(base, path)
	if err != nil {
		return false
	}
	return rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}

func hasParentTraversal(target string) bool {
	for _, seg := range strings.Split(filepath.ToSlash(target), "/") {
		if seg == ".." {
			return true
		}
	}
	return false
}
