package progress

import (
	"io/fs"
	"os"
	"path/filepath"
	"sync"
)

// ScanSizes computes the byte size of each source in parallel. A source
// that is a directory is walked and summed; a plain file contributes its
// own size. Sources that cannot be read contribute zero: the budget is an
// estimate, and a read error here will resurface with context during the
// install itself.
func ScanSizes(sources []string) []int64 {
	sizes := make([]int64, len(sources))

	var wg sync.WaitGroup
	for i, src := range sources {
		wg.Add(1)
		go func(i int, src string) {
			defer wg.Done()
			sizes[i] = sourceSize(src)
		}(i, src)
	}
	wg.Wait()

	return sizes
}

func sourceSize(path string) int64 {
	info, err := os.Stat(path)
	if err != nil {
		return 0
	}
	if !info.IsDir() {
		return info.Size()
	}
	return DirSize(path)
}

// DirSize returns the total size of regular files under root, following
// no symlinks.
func DirSize(root string) int64 {
	var total int64
	_ = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if d.Type().IsRegular() {
			if info, err := d.Info(); err == nil {
				total += info.Size()
			}
		}
		return nil
	})
	return total
}
