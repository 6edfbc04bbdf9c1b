package transaction

import (
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/arthur-debert/airlift/pkg/backup"
	"github.com/arthur-debert/airlift/pkg/errors"
	"github.com/arthur-debert/airlift/pkg/paths"
)

// CatalogOptions configures a catalog clean transaction.
type CatalogOptions struct {
	// Provider labels the catalog vendor; it names the backup folder and
	// identifies stale backups of the same provider.
	Provider string

	// PriorVersion tags the installation being replaced.
	PriorVersion string

	// KeepBackup archives the replaced entries instead of deleting them.
	KeepBackup bool

	// Now overrides the backup timestamp; zero means time.Now().
	Now time.Time
}

// CatalogClean installs into a shared catalog root. The whole target is
// never renamed or deleted: only the top-level entries staging is about
// to replace are moved aside (or removed), then staging is merged in.
//
// With KeepBackup, replaced entries are moved into a timestamped folder
// under the sibling Backup area, each file recorded by relative path and
// size and fast-verified by re-stat. The move is atomic, so size-only
// verification suffices; see backup.Entry for the tradeoff. A JSON
// manifest makes the backup auditable after the fact.
//
// Returns the backup directory path, or "" when nothing was archived.
func (e *Executor) CatalogClean(stagingDir, target string, opts CatalogOptions) (string, error) {
	staged, err := e.fs.ReadDir(stagingDir)
	if err != nil {
		return "", errors.Wrapf(err, errors.ErrFileAccess, "listing %s", stagingDir)
	}

	var replaced []string
	for _, entry := range staged {
		existing := filepath.Join(target, entry.Name())
		if _, serr := e.fs.Lstat(existing); serr == nil {
			replaced = append(replaced, entry.Name())
		}
	}

	backupDir := ""
	if opts.KeepBackup && len(replaced) > 0 {
		backupDir, err = e.archiveCatalogEntries(target, replaced, opts)
		if err != nil {
			return "", err
		}
	} else {
		for _, name := range replaced {
			path := filepath.Join(target, name)
			if rerr := e.fs.RemoveAll(path); rerr != nil {
				return "", errors.Wrapf(rerr, errors.ErrFileAccess, "removing old entry %s", path)
			}
		}
		if !opts.KeepBackup {
			e.pruneStaleBackups(target, opts.Provider)
		}
	}

	if err := e.MergeInstall(stagingDir, target); err != nil {
		return backupDir, err
	}
	return backupDir, nil
}

// archiveCatalogEntries moves the named top-level target entries into a
// fresh timestamped backup folder, records every file, fast-verifies the
// result and writes the manifest.
func (e *Executor) archiveCatalogEntries(target string, names []string, opts CatalogOptions) (string, error) {
	now := opts.Now
	if now.IsZero() {
		now = time.Now()
	}
	backupDir := paths.CatalogBackupDir(target, opts.Provider, opts.PriorVersion, now)
	if err := e.fs.MkdirAll(backupDir, 0755); err != nil {
		return "", errors.Wrapf(err, errors.ErrDirCreate, "creating %s", backupDir)
	}

	var entries []backup.Entry
	for _, name := range names {
		src := filepath.Join(target, name)

		recorded, rerr := recordFiles(src, name)
		if rerr != nil {
			return "", rerr
		}
		entries = append(entries, recorded...)

		if err := e.AtomicMove(src, filepath.Join(backupDir, name)); err != nil {
			return "", errors.Wrapf(err, errors.ErrFileAccess, "archiving %s", src)
		}
	}

	// Fast verify: the move was atomic, so re-stat with size comparison
	// is enough to prove the backup landed intact.
	for _, entry := range entries {
		path := filepath.Join(backupDir, filepath.FromSlash(entry.RelativePath))
		info, serr := e.fs.Stat(path)
		if serr != nil {
			return "", errors.Wrapf(serr, errors.ErrBackupVerify,
				"archived entry %s missing", entry.RelativePath)
		}
		if info.Size() != entry.Size {
			return "", errors.Newf(errors.ErrBackupVerify,
				"archived entry %s has size %d, expected %d",
				entry.RelativePath, info.Size(), entry.Size)
		}
	}

	manifest := &backup.CatalogManifest{
		Provider:     opts.Provider,
		PriorVersion: opts.PriorVersion,
		CreatedAt:    now,
		Entries:      entries,
	}
	if err := backup.WriteCatalogManifest(backupDir, manifest); err != nil {
		return "", err
	}

	e.logger.Info().Str("dir", backupDir).Int("files", len(entries)).
		Msg("Catalog entries archived")
	return backupDir, nil
}

// pruneStaleBackups deletes earlier backups of the same provider when the
// user has opted out of keeping backups. Failures are logged, not fatal.
func (e *Executor) pruneStaleBackups(target, provider string) {
	area := filepath.Join(filepath.Dir(filepath.Clean(target)), paths.CatalogBackupDirName)
	entries, err := e.fs.ReadDir(area)
	if err != nil {
		return
	}
	prefix := paths.CatalogBackupPrefix(provider)
	for _, entry := range entries {
		if !entry.IsDir() || !strings.HasPrefix(entry.Name(), prefix) {
			continue
		}
		stale := filepath.Join(area, entry.Name())
		if rerr := e.fs.RemoveAll(stale); rerr != nil {
			e.logger.Warn().Err(rerr).Str("path", stale).Msg("Could not prune stale backup")
		} else {
			e.logger.Debug().Str("path", stale).Msg("Pruned stale backup")
		}
	}
}

// recordFiles lists every regular file under path (or path itself) as
// backup entries rooted at rel.
func recordFiles(path, rel string) ([]backup.Entry, error) {
	info, err := os.Lstat(path)
	if err != nil {
		return nil, errors.Wrapf(err, errors.ErrFileAccess, "stat %s", path)
	}

	if !info.IsDir() {
		if !info.Mode().IsRegular() {
			return nil, nil
		}
		return []backup.Entry{{RelativePath: filepath.ToSlash(rel), Size: info.Size()}}, nil
	}

	var entries []backup.Entry
	err = filepath.WalkDir(path, func(p string, d fs.DirEntry, werr error) error {
		if werr != nil {
			return errors.Wrapf(werr, errors.ErrFileAccess, "walking %s", p)
		}
		if !d.Type().IsRegular() {
			return nil
		}
		fi, ierr := d.Info()
		if ierr != nil {
			return errors.Wrapf(ierr, errors.ErrFileAccess, "stat %s", p)
		}
		sub, rerr := filepath.Rel(path, p)
		if rerr != nil {
			return errors.Wrapf(rerr, errors.ErrInternal, "relativizing %s", p)
		}
		entries = append(entries, backup.Entry{
			RelativePath: filepath.ToSlash(filepath.Join(rel, sub)),
			Size:         fi.Size(),
		})
		return nil
	})
	if err != nil {
		return nil, err
	}
	return entries, nil
}
