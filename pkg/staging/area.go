// Package staging materializes install content into scratch directories
// and hands the engine an expected-hash manifest. The Area type gives a
// staging directory scoped-resource semantics: whatever happens to the
// task, the scratch space is released.
package staging

import (
	"os"

	"github.com/arthur-debert/airlift/pkg/errors"
)

// Area is a scratch directory exclusively owned by one engine task.
// Callers must defer Close; Close is idempotent so error paths and the
// happy path can both release it.
type Area struct {
	dir    string
	closed bool
}

// NewArea creates a fresh scratch directory under root.
func NewArea(root string) (*Area, error) {
	if err := os.MkdirAll(root, 0755); err != nil {
		return nil, errors.Wrapf(err, errors.ErrStaging, "creating scratch root %s", root)
	}
	dir, err := os.MkdirTemp(root, "task-*")
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrStaging, "creating staging area")
	}
	return &Area{dir: dir}, nil
}

// Dir returns the staging directory path.
func (a *Area) Dir() string {
	return a.dir
}

// Close removes the staging directory and everything in it. The first
// call wins; later calls are no-ops.
func (a *Area) Close() error {
	if a == nil || a.closed {
		return nil
	}
	a.closed = true
	return os.RemoveAll(a.dir)
}
