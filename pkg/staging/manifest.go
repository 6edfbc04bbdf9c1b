package staging

import (
	"io/fs"
	"path/filepath"
	"runtime"
	"sync"

	"github.com/arthur-debert/airlift/pkg/errors"
	"github.com/arthur-debert/airlift/pkg/internal/hashutil"
	"github.com/arthur-debert/airlift/pkg/types"
)

// BuildManifest hashes every regular file under dir into a verification
// manifest. Hashing is fanned out across workers: it is a read-only,
// side-effect-free scan, safe to parallelize outside the engine's
// sequential install path.
func BuildManifest(dir string) (*types.VerificationManifest, error) {
	type job struct {
		rel  string
		path string
		size int64
	}

	var jobs []job
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return errors.Wrapf(err, errors.ErrFileAccess, "walking %s", path)
		}
		if !d.Type().IsRegular() {
			return nil
		}
		info, ierr := d.Info()
		if ierr != nil {
			return errors.Wrapf(ierr, errors.ErrFileAccess, "stat %s", path)
		}
		rel, rerr := filepath.Rel(dir, path)
		if rerr != nil {
			return errors.Wrapf(rerr, errors.ErrInternal, "relativizing %s", path)
		}
		jobs = append(jobs, job{rel: filepath.ToSlash(rel), path: path, size: info.Size()})
		return nil
	})
	if err != nil {
		return nil, err
	}

	manifest := types.NewVerificationManifest()
	jobCh := make(chan job)
	var mu sync.Mutex
	var firstErr error

	var wg sync.WaitGroup
	for i := 0; i < runtime.NumCPU(); i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := range jobCh {
				hash, herr := hashutil.HashFile(j.path)

				mu.Lock()
				if herr != nil {
					if firstErr == nil {
						firstErr = errors.Wrapf(herr, errors.ErrFileAccess, "hashing %s", j.rel)
					}
				} else {
					manifest.Files[j.rel] = types.ManifestEntry{Hash: hash, Size: j.size}
				}
				mu.Unlock()
			}
		}()
	}

	for _, j := range jobs {
		jobCh <- j
	}
	close(jobCh)
	wg.Wait()

	if firstErr != nil {
		return nil, firstErr
	}
	return manifest, nil
}
