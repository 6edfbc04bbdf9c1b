package paths

import (
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestTransactionBackupPathIsUniqueSibling(t *testing.T) {
	a := TransactionBackupPath("/sim/Aircraft/Arrow")
	b := TransactionBackupPath("/sim/Aircraft/Arrow")

	assert.True(t, strings.HasPrefix(a, "/sim/Aircraft/Arrow.backup_"))
	assert.NotEqual(t, a, b)
	assert.Equal(t, "/sim/Aircraft", filepath.Dir(a))
}

func TestSnapshotRootIsUniqueSibling(t *testing.T) {
	a := SnapshotRoot("/sim/Aircraft/Arrow")
	b := SnapshotRoot("/sim/Aircraft/Arrow")

	assert.True(t, strings.HasPrefix(a, "/sim/Aircraft/Arrow.protected_"))
	assert.NotEqual(t, a, b)
}

func TestCatalogBackupDir(t *testing.T) {
	now := time.Date(2026, 8, 30, 9, 30, 0, 0, time.UTC)
	dir := CatalogBackupDir("/sim/Custom Data", "navigraph", "2501", now)
	assert.Equal(t, "/sim/Backup/navigraph_2501_20260830-093000", dir)
}

func TestCatalogBackupDirSanitizes(t *testing.T) {
	now := time.Date(2026, 8, 30, 9, 30, 0, 0, time.UTC)
	dir := CatalogBackupDir("/sim/Custom Data", "nav/graph inc", "", now)
	assert.Equal(t, "/sim/Backup/nav-graph-inc_unknown_20260830-093000", dir)
}

func TestCatalogBackupPrefix(t *testing.T) {
	assert.Equal(t, "navigraph_", CatalogBackupPrefix("navigraph"))
	assert.True(t, strings.HasPrefix(
		filepath.Base(CatalogBackupDir("/sim/Custom Data", "navigraph", "2501", time.Now())),
		CatalogBackupPrefix("navigraph")))
}
