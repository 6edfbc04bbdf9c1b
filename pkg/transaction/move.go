package transaction

import (
	"path/filepath"

	"github.com/arthur-debert/airlift/pkg/errors"
)

// AtomicMove moves src to dst, preferring a same-filesystem rename which
// is O(1) and all-or-nothing. Across filesystems it falls back to a
// recursive copy followed by best-effort removal of the source; a failed
// removal is logged and does not fail the move, since an orphaned source
// must never block a successful install.
func (e *Executor) AtomicMove(src, dst string) error {
	if err := e.fs.MkdirAll(filepath.Dir(dst), 0755); err != nil {
		return errors.Wrapf(err, errors.ErrDirCreate, "creating parent of %s", dst)
	}

	renameErr := e.fs.Rename(src, dst)
	if renameErr == nil {
		e.reporter.Add(0, dst)
		return nil
	}
	// EXDEV and friends. Rename can also fail for reasons a copy won't
	// fix (missing source, permissions); the copy path surfaces those
	// with a clearer error.
	e.logger.Debug().Err(renameErr).Str("src", src).Str("dst", dst).
		Msg("Rename failed, falling back to copy")

	info, err := e.fs.Lstat(src)
	if err != nil {
		return errors.Wrapf(err, errors.ErrFileAccess, "stat %s", src)
	}

	if info.IsDir() {
		if err := e.CopyTree(src, dst); err != nil {
			return err
		}
	} else {
		if err := e.copyFile(src, dst); err != nil {
			return err
		}
	}

	if err := e.fs.RemoveAll(src); err != nil {
		e.logger.Warn().Err(err).Str("path", src).
			Msg("Could not remove source after cross-device move")
	}
	return nil
}
