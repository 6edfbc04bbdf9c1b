// Package paths centralizes how the engine names and places its on-disk
// artifacts: scratch areas, transactional backup directories, and the
// catalog backup area that sits next to a shared install root.
package paths

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/adrg/xdg"
	"github.com/google/uuid"
)

// CatalogBackupDirName is the sibling directory that receives archived
// catalog entries next to a shared install root.
const CatalogBackupDirName = "Backup"

// DefaultScratchRoot returns the default location for staging areas.
func DefaultScratchRoot() string {
	return filepath.Join(xdg.CacheHome, "airlift", "staging")
}

// DefaultConfigFile returns the default config file location. The loader
// also accepts .yaml and .yml siblings.
func DefaultConfigFile() string {
	return filepath.Join(xdg.ConfigHome, "airlift", "config.toml")
}

// TransactionBackupPath returns a collision-free sibling path the target
// is renamed to during a clean transaction.
func TransactionBackupPath(target string) string {
	return fmt.Sprintf("%s.backup_%s", filepath.Clean(target), uuid.NewString())
}

// SnapshotRoot returns a unique temp directory name for a protected
// content snapshot, placed next to the target so restores stay on the
// same filesystem.
func SnapshotRoot(target string) string {
	return fmt.Sprintf("%s.protected_%s", filepath.Clean(target), uuid.NewString())
}

// CatalogBackupDir returns the timestamped folder archived catalog
// entries are moved into. It lives under the Backup area beside the
// target root so the move stays a same-filesystem rename.
func CatalogBackupDir(target, provider, priorVersion string, now time.Time) string {
	name := fmt.Sprintf("%s_%s_%s",
		sanitize(provider), sanitize(priorVersion), now.Format("20060102-150405"))
	return filepath.Join(filepath.Dir(filepath.Clean(target)), CatalogBackupDirName, name)
}

// CatalogBackupPrefix returns the name prefix shared by all backups of
// one provider, used to locate stale backups for pruning.
func CatalogBackupPrefix(provider string) string {
	return sanitize(provider) + "_"
}

func sanitize(s string) string {
	if s == "" {
		return "unknown"
	}
	clean := strings.Map(func(r rune) rune {
		switch r {
		case '/', '\\', ':', ' ':
			return '-'
		}
		return r
	}, s)
	return clean
}
