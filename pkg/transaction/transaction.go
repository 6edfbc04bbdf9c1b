// Package transaction performs the engine's destructive filesystem work:
// atomic moves, symlink-safe recursive copies, clean reinstalls with
// rollback, the catalog-specific clean variant, and file-level merges.
//
// Every destructive step is ordered after its protective step. At any
// moment exactly one of {no target, original target, renamed backup plus
// new target, new target} exists on disk.
package transaction

import (
	"github.com/rs/zerolog"

	"github.com/arthur-debert/airlift/pkg/logging"
	"github.com/arthur-debert/airlift/pkg/types"
)

// Reporter receives byte-level copy progress. The progress tracker
// satisfies it; callers that don't need live updates pass NopReporter.
type Reporter interface {
	Add(n int64, file string)
}

type nopReporter struct{}

func (nopReporter) Add(int64, string) {}

// NopReporter returns a reporter that discards all updates.
func NopReporter() Reporter {
	return nopReporter{}
}

// Executor runs install transactions against a target tree.
type Executor struct {
	fs       types.FS
	reporter Reporter
	logger   zerolog.Logger
}

// NewExecutor creates a transaction executor. A nil reporter disables
// progress reporting.
func NewExecutor(fs types.FS, reporter Reporter) *Executor {
	if reporter == nil {
		reporter = NopReporter()
	}
	return &Executor{
		fs:       fs,
		reporter: reporter,
		logger:   logging.GetLogger("transaction"),
	}
}
