package transaction

import (
	"os"
	"path/filepath"

	"golang.org/x/sys/unix"

	"github.com/arthur-debert/airlift/pkg/errors"
)

// CheckDiskSpace verifies the volume holding path has at least margin
// bytes free. The path itself may not exist yet; the check walks up to
// the nearest existing ancestor.
func CheckDiskSpace(path string, margin int64) error {
	probe := filepath.Clean(path)
	for {
		if _, err := os.Stat(probe); err == nil {
			break
		}
		parent := filepath.Dir(probe)
		if parent == probe {
			break
		}
		probe = parent
	}

	var st unix.Statfs_t
	if err := unix.Statfs(probe, &st); err != nil {
		return errors.Wrapf(err, errors.ErrFileAccess, "statfs %s", probe)
	}

	free := int64(st.Bavail) * int64(st.Bsize)
	if free < margin {
		return errors.Newf(errors.ErrDiskSpace,
			"only %d bytes free on volume of %s, need at least %d", free, path, margin).
			WithDetail("free_bytes", free).
			WithDetail("required_bytes", margin)
	}
	return nil
}
