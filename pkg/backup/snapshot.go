package backup

import (
	"io"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/rs/zerolog"

	"github.com/arthur-debert/airlift/pkg/errors"
	"github.com/arthur-debert/airlift/pkg/logging"
	"github.com/arthur-debert/airlift/pkg/paths"
	"github.com/arthur-debert/airlift/pkg/types"
)

// LiveriesDir is the aircraft sub-directory holding user liveries.
const LiveriesDir = "liveries"

// Snapshot holds protected sub-content copied out of a target before a
// clean reinstall. The snapshot is a copy, never a move: until the
// snapshot verifies, the original target has not been touched.
type Snapshot struct {
	// TempDir is where the snapshot lives. It is preserved on a failed
	// restore so no data is ever silently lost.
	TempDir string

	dirSummaries map[string]DirSummary
	dirFiles     []Entry
	prefFiles    []Entry

	restored []Entry
	logger   zerolog.Logger
}

// Take snapshots the protected sub-content of target according to the
// task's backup preferences. It returns a snapshot with nothing in it
// (Empty() == true) when the kind carries no protected content or none is
// present. The snapshot is verified against its recorded counts and
// sizes; on verification failure the temp copy is discarded and the
// target is guaranteed untouched.
func Take(target string, prefs types.BackupPrefs, kind types.AddonKind) (*Snapshot, error) {
	s := &Snapshot{
		TempDir:      paths.SnapshotRoot(target),
		dirSummaries: make(map[string]DirSummary),
		logger:       logging.GetLogger("backup"),
	}

	if kind.HasProtectedContent() && prefs.Liveries {
		if err := s.snapshotDir(target, LiveriesDir); err != nil {
			s.Discard()
			return nil, err
		}
	}

	for _, pattern := range prefs.ConfigPatterns {
		if err := s.snapshotGlob(target, pattern); err != nil {
			s.Discard()
			return nil, err
		}
	}

	if s.Empty() {
		s.Discard()
		return s, nil
	}

	if err := s.verifySnapshot(); err != nil {
		s.Discard()
		return nil, err
	}

	s.logger.Info().Str("dir", s.TempDir).
		Int("dir_files", len(s.dirFiles)).Int("pref_files", len(s.prefFiles)).
		Msg("Protected content snapshot taken")
	return s, nil
}

// Empty reports whether the snapshot holds no content.
func (s *Snapshot) Empty() bool {
	return len(s.dirFiles) == 0 && len(s.prefFiles) == 0
}

// Discard removes the snapshot's temp directory. Safe to call twice.
func (s *Snapshot) Discard() {
	if s.TempDir != "" {
		_ = os.RemoveAll(s.TempDir)
	}
}

// snapshotDir copies target/<rel> into the temp area, recording every
// file's relative path and size plus a directory-level summary.
func (s *Snapshot) snapshotDir(target, rel string) error {
	srcDir := filepath.Join(target, rel)
	if _, err := os.Stat(srcDir); os.IsNotExist(err) {
		return nil
	}

	summary := DirSummary{}
	err := filepath.WalkDir(srcDir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return errors.Wrapf(err, errors.ErrFileAccess, "walking %s", path)
		}
		relPath, rerr := filepath.Rel(target, path)
		if rerr != nil {
			return errors.Wrapf(rerr, errors.ErrInternal, "relativizing %s", path)
		}
		dst := filepath.Join(s.TempDir, relPath)

		if d.IsDir() {
			return os.MkdirAll(dst, 0755)
		}
		if !d.Type().IsRegular() {
			s.logger.Debug().Str("path", path).Msg("Skipping special file in snapshot")
			return nil
		}

		size, cerr := copyFileContents(path, dst)
		if cerr != nil {
			return cerr
		}
		s.dirFiles = append(s.dirFiles, Entry{RelativePath: filepath.ToSlash(relPath), Size: size})
		summary.FileCount++
		summary.TotalSize += size
		return nil
	})
	if err != nil {
		return err
	}

	s.dirSummaries[rel] = summary
	return nil
}

// snapshotGlob copies the preference files matching pattern (relative to
// target), recording each filename and size.
func (s *Snapshot) snapshotGlob(target, pattern string) error {
	matches, err := filepath.Glob(filepath.Join(target, pattern))
	if err != nil {
		return errors.Wrapf(err, errors.ErrInvalidInput, "bad config pattern %q", pattern)
	}

	for _, match := range matches {
		info, serr := os.Stat(match)
		if serr != nil || info.IsDir() {
			continue
		}
		rel, rerr := filepath.Rel(target, match)
		if rerr != nil {
			return errors.Wrapf(rerr, errors.ErrInternal, "relativizing %s", match)
		}
		dst := filepath.Join(s.TempDir, rel)
		size, cerr := copyFileContents(match, dst)
		if cerr != nil {
			return cerr
		}
		s.prefFiles = append(s.prefFiles, Entry{RelativePath: filepath.ToSlash(rel), Size: size})
	}
	return nil
}

// verifySnapshot re-walks the temp copy and compares it against the
// recorded counts and sizes. A mismatch aborts the whole operation before
// the real target is touched.
func (s *Snapshot) verifySnapshot() error {
	for _, entry := range append(append([]Entry{}, s.dirFiles...), s.prefFiles...) {
		path := filepath.Join(s.TempDir, filepath.FromSlash(entry.RelativePath))
		info, err := os.Stat(path)
		if err != nil {
			return errors.Wrapf(err, errors.ErrBackupVerify,
				"snapshot missing %s", entry.RelativePath)
		}
		if info.Size() != entry.Size {
			return errors.Newf(errors.ErrBackupVerify,
				"snapshot size mismatch for %s: recorded %d, copied %d",
				entry.RelativePath, entry.Size, info.Size())
		}
	}

	for rel, summary := range s.dirSummaries {
		count, total := countFiles(filepath.Join(s.TempDir, rel))
		if count != summary.FileCount || total != summary.TotalSize {
			return errors.Newf(errors.ErrBackupVerify,
				"snapshot summary mismatch for %s: recorded %d files/%d bytes, copied %d/%d",
				rel, summary.FileCount, summary.TotalSize, count, total)
		}
	}
	return nil
}

// Restore merges the snapshot back into the freshly installed target.
// Directory sub-content never clobbers paths the new install created;
// preference files always overwrite, because user settings win over
// package defaults. The restore is verified by re-checking sizes; on
// failure the temp backup is left on disk and its path is surfaced in the
// error. On success the temp backup is deleted.
func (s *Snapshot) Restore(target string) error {
	if s.Empty() {
		return nil
	}
	s.restored = s.restored[:0]

	for _, entry := range s.dirFiles {
		rel := filepath.FromSlash(entry.RelativePath)
		dst := filepath.Join(target, rel)
		if _, err := os.Lstat(dst); err == nil {
			// The new install brought its own version; old content must
			// not overwrite it.
			continue
		}
		if _, err := copyFileContents(filepath.Join(s.TempDir, rel), dst); err != nil {
			return s.restoreFailed(err, entry.RelativePath)
		}
		s.restored = append(s.restored, entry)
	}

	for _, entry := range s.prefFiles {
		rel := filepath.FromSlash(entry.RelativePath)
		if _, err := copyFileContents(filepath.Join(s.TempDir, rel), filepath.Join(target, rel)); err != nil {
			return s.restoreFailed(err, entry.RelativePath)
		}
		s.restored = append(s.restored, entry)
	}

	if err := s.verifyRestore(target); err != nil {
		return err
	}

	s.logger.Info().Int("files", len(s.restored)).Msg("Protected content restored")
	_ = os.RemoveAll(s.TempDir)
	return nil
}

// RestoredPaths returns the slash-separated relative paths Restore put
// back into the target. Restored files hold the user's data, not the
// package's, so hash verification must not check them against the
// package manifest.
func (s *Snapshot) RestoredPaths() []string {
	paths := make([]string, 0, len(s.restored))
	for _, entry := range s.restored {
		paths = append(paths, entry.RelativePath)
	}
	return paths
}

func (s *Snapshot) restoreFailed(err error, rel string) error {
	return errors.Wrapf(err, errors.ErrRestoreVerify,
		"restoring %s failed; backup preserved at %s", rel, s.TempDir).
		WithDetail("backup_dir", s.TempDir)
}

func (s *Snapshot) verifyRestore(target string) error {
	for _, entry := range s.restored {
		path := filepath.Join(target, filepath.FromSlash(entry.RelativePath))
		info, err := os.Stat(path)
		if err != nil {
			return errors.Wrapf(err, errors.ErrRestoreVerify,
				"restored file %s missing; backup preserved at %s",
				entry.RelativePath, s.TempDir).
				WithDetail("backup_dir", s.TempDir)
		}
		if info.Size() != entry.Size {
			return errors.Newf(errors.ErrRestoreVerify,
				"restored file %s has size %d, expected %d; backup preserved at %s",
				entry.RelativePath, info.Size(), entry.Size, s.TempDir).
				WithDetail("backup_dir", s.TempDir)
		}
	}
	return nil
}

func copyFileContents(src, dst string) (int64, error) {
	in, err := os.Open(src)
	if err != nil {
		return 0, errors.Wrapf(err, errors.ErrFileAccess, "opening %s", src)
	}
	defer func() {
		_ = in.Close()
	}()

	info, err := in.Stat()
	if err != nil {
		return 0, errors.Wrapf(err, errors.ErrFileAccess, "stat %s", src)
	}

	if err := os.MkdirAll(filepath.Dir(dst), 0755); err != nil {
		return 0, errors.Wrapf(err, errors.ErrDirCreate, "creating parent of %s", dst)
	}
	out, err := os.OpenFile(dst, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, info.Mode().Perm())
	if err != nil {
		return 0, errors.Wrapf(err, errors.ErrFileCreate, "creating %s", dst)
	}

	n, err := io.Copy(out, in)
	if cerr := out.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return n, errors.Wrapf(err, errors.ErrFileCreate, "copying %s", dst)
	}
	return n, nil
}

func countFiles(root string) (int, int64) {
	var count int
	var total int64
	_ = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if d.Type().IsRegular() {
			if info, ierr := d.Info(); ierr == nil {
				count++
				total += info.Size()
			}
		}
		return nil
	})
	return count, total
}
