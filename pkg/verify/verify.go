package verify

import (
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/rs/zerolog"

	"github.com/arthur-debert/airlift/pkg/errors"
	"github.com/arthur-debert/airlift/pkg/internal/hashutil"
	"github.com/arthur-debert/airlift/pkg/logging"
	"github.com/arthur-debert/airlift/pkg/types"
)

// maxReportedPaths caps how many offending paths appear in the error
// message; the full list goes to the debug log.
const maxReportedPaths = 10

// Reextractor re-materializes a single relative path from a task's
// original source. The staging provider implements this by walking the
// same nested-archive chain used for the original extraction.
type Reextractor interface {
	ReextractFile(task *types.InstallTask, relPath string) ([]byte, error)
}

// Progress receives verification sub-progress. The progress tracker
// satisfies it.
type Progress interface {
	VerifyStep(done, total int)
}

type nopProgress struct{}

func (nopProgress) VerifyStep(int, int) {}

// FileResult is the mutable working record for one mismatched file
// during retry.
type FileResult struct {
	Path     string
	Expected string
	Actual   string
	OK       bool
	Retries  int
	LastErr  error
}

// Verifier hashes installed files against a task's manifest and retries
// mismatches by re-extracting only the offending entries.
type Verifier struct {
	provider Reextractor
	rounds   int
	progress Progress
	logger   zerolog.Logger
}

// New creates a verifier. rounds bounds the per-file retry loop; a nil
// progress disables sub-progress reporting.
func New(provider Reextractor, rounds int, progress Progress) *Verifier {
	if rounds <= 0 {
		rounds = 3
	}
	if progress == nil {
		progress = nopProgress{}
	}
	return &Verifier{
		provider: provider,
		rounds:   rounds,
		progress: progress,
		logger:   logging.GetLogger("verify"),
	}
}

// Run verifies every manifest entry under target. Files that fail the
// initial pass are re-extracted and re-hashed for up to the configured
// number of rounds; any file still mismatched fails the task.
func (v *Verifier) Run(task *types.InstallTask, target string) (types.VerifyStats, []FileResult, error) {
	stats := types.VerifyStats{TotalFiles: task.Manifest.Len()}
	if stats.TotalFiles == 0 {
		return stats, nil, nil
	}

	// Deterministic order keeps progress and logs stable across runs.
	rels := make([]string, 0, stats.TotalFiles)
	for rel := range task.Manifest.Files {
		rels = append(rels, rel)
	}
	sort.Strings(rels)

	var mismatched []FileResult
	for i, rel := range rels {
		entry := task.Manifest.Files[rel]
		actual, err := hashutil.HashFile(filepath.Join(target, filepath.FromSlash(rel)))
		v.progress.VerifyStep(i+1, stats.TotalFiles)

		if err == nil && actual == entry.Hash {
			continue
		}
		mismatched = append(mismatched, FileResult{
			Path:     rel,
			Expected: entry.Hash,
			Actual:   actual,
			LastErr:  err,
		})
	}

	stats.RetriedFiles = len(mismatched)
	if len(mismatched) == 0 {
		stats.VerifiedFiles = stats.TotalFiles
		return stats, nil, nil
	}

	v.logger.Info().Int("files", len(mismatched)).Str("task", task.Label()).
		Msg("Hash mismatches found, starting retry rounds")

	for round := 1; round <= v.rounds; round++ {
		pending := 0
		for i := range mismatched {
			r := &mismatched[i]
			if r.OK {
				continue
			}
			v.retryOne(task, target, r)
			if !r.OK {
				pending++
			}
		}
		if pending == 0 {
			break
		}
	}

	failed := 0
	for _, r := range mismatched {
		if !r.OK {
			failed++
		}
	}
	stats.FailedFiles = failed
	stats.VerifiedFiles = stats.TotalFiles - failed

	if failed == 0 {
		return stats, mismatched, nil
	}

	return stats, mismatched, v.failure(mismatched, failed)
}

// retryOne re-extracts a single file from the original source,
// overwrites the installed copy and re-hashes only that file.
func (v *Verifier) retryOne(task *types.InstallTask, target string, r *FileResult) {
	r.Retries++

	data, err := v.provider.ReextractFile(task, r.Path)
	if err != nil {
		r.LastErr = err
		v.logger.Debug().Err(err).Str("path", r.Path).Int("retry", r.Retries).
			Msg("Re-extraction failed")
		return
	}

	dst := filepath.Join(target, filepath.FromSlash(r.Path))
	if err := os.MkdirAll(filepath.Dir(dst), 0755); err != nil {
		r.LastErr = err
		return
	}
	if err := os.WriteFile(dst, data, 0644); err != nil {
		r.LastErr = err
		return
	}

	actual, err := hashutil.HashFile(dst)
	if err != nil {
		r.LastErr = err
		return
	}
	r.Actual = actual
	if actual == r.Expected {
		r.OK = true
		r.LastErr = nil
		v.logger.Debug().Str("path", r.Path).Int("retry", r.Retries).
			Msg("File verified after re-extraction")
	} else {
		r.LastErr = errors.Newf(errors.ErrHashMismatch,
			"still mismatched after re-extraction: got %s, want %s", actual, r.Expected)
	}
}

func (v *Verifier) failure(results []FileResult, failed int) error {
	var offending []string
	for _, r := range results {
		if !r.OK {
			offending = append(offending, r.Path)
			v.logger.Debug().Str("path", r.Path).Str("expected", r.Expected).
				Str("actual", r.Actual).Int("retries", r.Retries).
				Msg("File failed verification")
		}
	}

	shown := offending
	suffix := ""
	if len(shown) > maxReportedPaths {
		shown = shown[:maxReportedPaths]
		suffix = " ..."
	}
	return errors.Newf(errors.ErrHashMismatch,
		"%d file(s) failed verification after retries: %s%s",
		failed, strings.Join(shown, ", "), suffix).
		WithDetail("failed_count", failed)
}
