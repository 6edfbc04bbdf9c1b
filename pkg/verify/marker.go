// Package verify checks installed targets against their expected-hash
// manifests, retrying individual files by single-entry re-extraction, and
// runs the cheap marker-file sanity gate that precedes any hashing.
package verify

import (
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/arthur-debert/airlift/pkg/errors"
	"github.com/arthur-debert/airlift/pkg/types"
)

// navdataCycleFile is the canonical navdata marker; any .dat file is
// accepted as a fallback for providers that don't ship one.
const navdataCycleFile = "cycle_info.txt"

// CheckMarker verifies the target is non-empty and contains the
// kind-specific required artifact. It fails fast, before any hashing
// cost is paid.
func CheckMarker(target string, kind types.AddonKind) error {
	entries, err := os.ReadDir(target)
	if err != nil {
		return errors.Wrapf(err, errors.ErrEmptyTarget, "reading target %s", target)
	}
	if len(entries) == 0 {
		return errors.Newf(errors.ErrEmptyTarget, "target %s is empty after install", target)
	}

	if kind == types.KindNavdata {
		if _, serr := os.Stat(filepath.Join(target, navdataCycleFile)); serr == nil {
			return nil
		}
	}

	exts := kind.MarkerExtensions()
	if len(exts) == 0 {
		return nil
	}

	found := false
	_ = filepath.WalkDir(target, func(path string, d fs.DirEntry, werr error) error {
		if werr != nil || found {
			return filepath.SkipAll
		}
		if !d.Type().IsRegular() {
			return nil
		}
		name := strings.ToLower(d.Name())
		for _, ext := range exts {
			if strings.HasSuffix(name, ext) {
				found = true
				return filepath.SkipAll
			}
		}
		return nil
	})

	if !found {
		return errors.Newf(errors.ErrMarkerMissing,
			"target %s has no %s file, expected for kind %s",
			target, strings.Join(exts, "/"), kind)
	}
	return nil
}
