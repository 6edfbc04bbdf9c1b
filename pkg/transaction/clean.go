package transaction

import (
	"github.com/arthur-debert/airlift/pkg/errors"
	"github.com/arthur-debert/airlift/pkg/paths"
)

// CleanInstall replaces an existing target with the staged tree. The
// target is first renamed to a unique sibling backup, staging is moved in,
// and only then is the backup deleted. If moving staging fails, the
// backup is renamed back and the original error is propagated; if that
// rollback also fails, both paths are reported in the error and the
// operation requires manual recovery.
//
// restore, when non-nil, runs against the freshly installed target before
// the backup is deleted. It is the hook through which protected
// sub-content is merged back; a restore failure fails the install even
// though the new content is already in place, because partial
// protected-data loss is as serious as an install failure.
func (e *Executor) CleanInstall(stagingDir, target string, restore func(installed string) error) error {
	backupPath := paths.TransactionBackupPath(target)

	if err := e.fs.Rename(target, backupPath); err != nil {
		return errors.Wrapf(err, errors.ErrFileAccess, "moving %s aside", target)
	}
	e.logger.Debug().Str("target", target).Str("backup", backupPath).
		Msg("Target renamed aside")

	if err := e.AtomicMove(stagingDir, target); err != nil {
		// Roll back: clear any partial copy, then put the original back.
		if rmErr := e.fs.RemoveAll(target); rmErr != nil {
			e.logger.Warn().Err(rmErr).Str("path", target).
				Msg("Could not clear partial target before rollback")
		}
		if rbErr := e.fs.Rename(backupPath, target); rbErr != nil {
			e.logger.Error().Err(rbErr).Str("target", target).Str("backup", backupPath).
				Msg("CRITICAL: install failed and rollback failed, manual recovery required")
			return errors.Wrapf(err, errors.ErrRollbackFailed,
				"install into %s failed and rollback from %s failed (%v)", target, backupPath, rbErr)
		}
		e.logger.Info().Str("target", target).Msg("Install failed, original target restored")
		return err
	}

	if restore != nil {
		if err := restore(target); err != nil {
			return err
		}
	}

	if err := e.fs.RemoveAll(backupPath); err != nil {
		e.logger.Warn().Err(err).Str("path", backupPath).
			Msg("Could not delete spent backup directory")
	}
	return nil
}
