// Package backup preserves content that must outlive a destructive
// reinstall: user liveries and preference files for protected add-on
// kinds, and replaced catalog entries for data-catalog kinds. Snapshots
// are verified before the target is touched and restores are verified
// after; a failed restore never discards the backed-up data.
package backup

import (
	"encoding/json"
	"os"
	"path/filepath"
	"time"

	"github.com/arthur-debert/airlift/pkg/errors"
)

// ManifestFileName is the backup-verification manifest written alongside
// each archived catalog snapshot.
const ManifestFileName = "backup_manifest.json"

// Entry records one backed-up file.
type Entry struct {
	// RelativePath is slash-separated, relative to the backup root.
	RelativePath string `json:"relative_path"`

	// Size is the file size in bytes. Hash is intentionally omitted: the
	// backing move is itself atomic, which makes a checksum redundant and
	// expensive. On filesystems without atomic rename this is a latent
	// gap, accepted for its performance characteristics.
	Size int64 `json:"size"`
}

// DirSummary records aggregate counts for a directory snapshot.
type DirSummary struct {
	FileCount int   `json:"file_count"`
	TotalSize int64 `json:"total_size"`
}

// CatalogManifest is the durable record of an archived catalog backup.
type CatalogManifest struct {
	Provider     string    `json:"provider"`
	PriorVersion string    `json:"prior_version"`
	CreatedAt    time.Time `json:"backup_timestamp"`
	Entries      []Entry   `json:"entries"`
}

// WriteCatalogManifest persists the manifest into dir.
func WriteCatalogManifest(dir string, m *CatalogManifest) error {
	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return errors.Wrap(err, errors.ErrInternal, "encoding backup manifest")
	}
	path := filepath.Join(dir, ManifestFileName)
	if err := os.WriteFile(path, data, 0644); err != nil {
		return errors.Wrapf(err, errors.ErrFileCreate, "writing %s", path)
	}
	return nil
}

// ReadCatalogManifest loads the manifest from dir.
func ReadCatalogManifest(dir string) (*CatalogManifest, error) {
	path := filepath.Join(dir, ManifestFileName)
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, errors.ErrFileAccess, "reading %s", path)
	}
	var m CatalogManifest
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, errors.Wrapf(err, errors.ErrInternal, "decoding %s", path)
	}
	return &m, nil
}
