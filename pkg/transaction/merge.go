package transaction

import (
	"io/fs"
	"os"
	"path/filepath"

	"github.com/arthur-debert/airlift/pkg/errors"
)

// MergeInstall overlays the staged tree onto an existing target. Files
// present in the target but absent from staging are left untouched; files
// present in both are replaced. Each staged file is moved into place with
// a rename where possible, and emptied staging subdirectories are removed
// as the merge proceeds.
func (e *Executor) MergeInstall(stagingDir, target string) error {
	var dirs []string

	err := filepath.WalkDir(stagingDir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if os.IsNotExist(err) {
				// Another mover got here first; nothing left to do.
				return nil
			}
			return errors.Wrapf(err, errors.ErrFileAccess, "walking %s", path)
		}

		rel, rerr := filepath.Rel(stagingDir, path)
		if rerr != nil {
			return errors.Wrapf(rerr, errors.ErrInternal, "relativizing %s", path)
		}
		if rel == "." {
			return nil
		}
		dstPath := filepath.Join(target, rel)

		switch {
		case d.IsDir():
			dirs = append(dirs, path)
			if merr := e.fs.MkdirAll(dstPath, 0755); merr != nil {
				return errors.Wrapf(merr, errors.ErrDirCreate, "creating %s", dstPath)
			}
			return nil
		case d.Type()&fs.ModeSymlink != 0:
			if lerr := e.mergeSymlink(path, dstPath, stagingDir); lerr != nil {
				return lerr
			}
			return nil
		case d.Type().IsRegular():
			return e.mergeFile(path, dstPath)
		default:
			e.logger.Debug().Str("path", path).Msg("Skipping special file in merge")
			return nil
		}
	})
	if err != nil {
		return err
	}

	// Remove emptied staging subdirectories deepest-first. A non-empty
	// directory (something failed to move) is left alone.
	for i := len(dirs) - 1; i >= 0; i-- {
		_ = e.fs.Remove(dirs[i])
	}
	return nil
}

// mergeFile moves one staged file over its destination. A source that
// vanished between the walk and the move is a benign race, not an error.
func (e *Executor) mergeFile(src, dst string) error {
	if err := e.fs.Remove(dst); err != nil && !os.IsNotExist(err) {
		e.logger.Debug().Err(err).Str("path", dst).
			Msg("Could not remove destination before merge, relying on rename to replace")
	}

	err := e.fs.Rename(src, dst)
	if err == nil {
		e.reporter.Add(0, dst)
		return nil
	}
	if os.IsNotExist(err) {
		if _, serr := e.fs.Lstat(src); os.IsNotExist(serr) {
			return nil
		}
	}

	// Cross-filesystem merge: copy then delete.
	if cerr := e.copyFile(src, dst); cerr != nil {
		return cerr
	}
	if rerr := e.fs.Remove(src); rerr != nil && !os.IsNotExist(rerr) {
		e.logger.Warn().Err(rerr).Str("path", src).
			Msg("Could not remove staged file after copy")
	}
	return nil
}

func (e *Executor) mergeSymlink(src, dst, base string) error {
	if err := e.fs.Remove(dst); err != nil && !os.IsNotExist(err) {
		e.logger.Debug().Err(err).Str("path", dst).Msg("Could not remove destination link")
	}
	if err := e.copySymlink(src, dst, base); err != nil {
		return err
	}
	if err := e.fs.Remove(src); err != nil && !os.IsNotExist(err) {
		e.logger.Warn().Err(err).Str("path", src).
			Msg("Could not remove staged link after merge")
	}
	return nil
}
