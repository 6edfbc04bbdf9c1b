// Package engine runs install batches: strictly sequential tasks, each
// staged, committed through the transaction executor, then verified, with
// cooperative cancellation at defined yield points and scratch space
// released on every exit path.
package engine

import (
	"github.com/rs/zerolog"

	"github.com/arthur-debert/airlift/pkg/backup"
	"github.com/arthur-debert/airlift/pkg/config"
	"github.com/arthur-debert/airlift/pkg/errors"
	"github.com/arthur-debert/airlift/pkg/filesystem"
	"github.com/arthur-debert/airlift/pkg/logging"
	"github.com/arthur-debert/airlift/pkg/progress"
	"github.com/arthur-debert/airlift/pkg/scenario"
	"github.com/arthur-debert/airlift/pkg/staging"
	"github.com/arthur-debert/airlift/pkg/transaction"
	"github.com/arthur-debert/airlift/pkg/types"
	"github.com/arthur-debert/airlift/pkg/verify"
)

// Options configures an Engine. Zero values select production defaults.
type Options struct {
	Config   config.Config
	FS       types.FS
	Provider staging.Provider
	Sink     progress.Sink
	Control  *types.TaskControl
}

// Engine installs batches of tasks. One engine instance processes one
// batch at a time; no lock is taken on targets, so concurrent engines
// against the same target path are the caller's responsibility to avoid.
type Engine struct {
	cfg      config.Config
	fs       types.FS
	provider staging.Provider
	tracker  *progress.Tracker
	control  *types.TaskControl
	tx       *transaction.Executor
	logger   zerolog.Logger
}

// New assembles an engine from options.
func New(opts Options) *Engine {
	cfg := opts.Config.Normalized()

	fs := opts.FS
	if fs == nil {
		fs = filesystem.NewOS()
	}

	control := opts.Control
	if control == nil {
		control = types.NewTaskControl()
	}

	tracker := progress.NewTracker(opts.Sink, cfg.ProgressRate)

	provider := opts.Provider
	if provider == nil {
		provider = staging.NewLocalProvider(cfg.ScratchRoot, tracker)
	}

	return &Engine{
		cfg:      cfg,
		fs:       fs,
		provider: provider,
		tracker:  tracker,
		control:  control,
		tx:       transaction.NewExecutor(fs, tracker),
		logger:   logging.GetLogger("engine"),
	}
}

// Control returns the batch's cancellation flags, for wiring into UIs or
// signal handlers.
func (e *Engine) Control() *types.TaskControl {
	return e.control
}

// Run processes the batch sequentially: one task's staging, transaction
// and verification complete before the next begins. Per-task failures do
// not abort the batch.
func (e *Engine) Run(tasks []*types.InstallTask) *types.BatchResult {
	batch := &types.BatchResult{}

	e.tracker.SetPhase(progress.PhaseCalculating)
	sources := make([]string, len(tasks))
	for i, t := range tasks {
		sources[i] = t.Source
	}
	e.tracker.SetBudget(progress.ScanSizes(sources))

	for i, task := range tasks {
		if e.control.IsCancelled() {
			batch.Add(types.TaskResult{
				Task: task.Label(), Index: i, Status: types.StatusCancelled,
			})
			continue
		}

		e.tracker.BeginTask(i)
		result := e.runTask(i, task)
		e.tracker.CompleteTask(i)

		if result.Status == types.StatusFailed {
			e.logger.Error().Str("task", result.Task).Str("error", result.Error).
				Msg("Task failed")
		} else {
			e.logger.Info().Str("task", result.Task).Str("status", string(result.Status)).
				Str("scenario", result.Scenario).Msg("Task finished")
		}
		batch.Add(result)
	}

	e.tracker.Finish()
	return batch
}

func (e *Engine) runTask(index int, task *types.InstallTask) types.TaskResult {
	result := types.TaskResult{Task: task.Label(), Index: index}
	done := logging.LogOperationStart(e.logger, "install "+task.Label())
	defer done()

	fail := func(err error) types.TaskResult {
		result.Status = types.StatusFailed
		result.Error = err.Error()
		return result
	}

	if err := transaction.CheckDiskSpace(task.TargetPath, e.cfg.DiskSpaceMargin); err != nil {
		return fail(err)
	}

	e.tracker.SetPhase(progress.PhaseInstalling)

	area, err := staging.NewArea(e.cfg.ScratchRoot)
	if err != nil {
		return fail(err)
	}
	defer func() {
		_ = area.Close()
	}()

	if err := e.provider.ExtractInto(task, area.Dir()); err != nil {
		return fail(err)
	}

	// The task is read-only; when it carries no manifest and wants
	// verification, a working copy gets one computed from the staged tree.
	verifyTask := task
	if task.Verify && task.Manifest == nil {
		manifest, merr := staging.BuildManifest(area.Dir())
		if merr != nil {
			return fail(merr)
		}
		clone := *task
		clone.Manifest = manifest
		verifyTask = &clone
	}

	targetExists := false
	if _, serr := e.fs.Lstat(task.TargetPath); serr == nil {
		targetExists = true
	}
	sc := scenario.Select(targetExists, task.Overwrite, task.Kind)
	result.Scenario = sc.String()
	e.logger.Info().Str("task", task.Label()).Str("scenario", sc.String()).
		Str("target", task.TargetPath).Msg("Scenario selected")

	restored, err := e.execute(sc, area.Dir(), task)
	if err != nil {
		return fail(err)
	}

	if e.control.IsSkipRequested() {
		e.discardInstalled(task, sc)
		e.control.ResetSkip()
		result.Status = types.StatusSkipped
		return result
	}

	if task.Verify {
		e.tracker.SetPhase(progress.PhaseVerifying)
		if err := verify.CheckMarker(task.TargetPath, task.Kind); err != nil {
			return fail(err)
		}
		// Files the snapshot restored carry the user's content, not the
		// package's; checking them against the manifest would "repair"
		// them back to package defaults.
		verifyTask = withoutRestored(verifyTask, restored)
		verifier := verify.New(e.provider, e.cfg.RetryRounds, e.tracker)
		stats, _, verr := verifier.Run(verifyTask, task.TargetPath)
		result.Verify = stats
		if verr != nil {
			return fail(verr)
		}
	}

	result.Status = types.StatusSuccess
	return result
}

// execute runs the selected transaction; protective steps (snapshots,
// backups) always precede their destructive counterparts. It returns the
// relative paths of protected files the transaction restored into the
// target.
func (e *Engine) execute(sc scenario.Scenario, stagingDir string, task *types.InstallTask) ([]string, error) {
	switch sc {
	case scenario.Fresh:
		return nil, e.tx.AtomicMove(stagingDir, task.TargetPath)

	case scenario.Clean:
		snap, err := backup.Take(task.TargetPath, task.Backup, task.Kind)
		if err != nil {
			// Snapshot verification failed: the target was never touched.
			return nil, err
		}
		err = e.tx.CleanInstall(stagingDir, task.TargetPath, snap.Restore)
		if err != nil {
			if !errors.IsErrorCode(err, errors.ErrRestoreVerify) {
				// The failure happened before restore ran; the snapshot
				// copy is spent. A failed restore instead preserves it
				// and reports its path.
				snap.Discard()
			}
			return nil, err
		}
		return snap.RestoredPaths(), nil

	case scenario.CatalogClean:
		_, err := e.tx.CatalogClean(stagingDir, task.TargetPath, transaction.CatalogOptions{
			Provider:     task.Provider,
			PriorVersion: task.PriorVersion,
			KeepBackup:   task.Backup.WholeCatalog,
		})
		return nil, err

	case scenario.Merge:
		return nil, e.tx.MergeInstall(stagingDir, task.TargetPath)
	}
	return nil, errors.Newf(errors.ErrInternal, "unhandled scenario %s", sc)
}

// withoutRestored returns a task whose manifest omits the given relative
// paths. The input task is never mutated.
func withoutRestored(task *types.InstallTask, restored []string) *types.InstallTask {
	if len(restored) == 0 || task.Manifest.Len() == 0 {
		return task
	}
	files := make(map[string]types.ManifestEntry, task.Manifest.Len())
	for rel, entry := range task.Manifest.Files {
		files[rel] = entry
	}
	for _, rel := range restored {
		delete(files, rel)
	}
	clone := *task
	clone.Manifest = &types.VerificationManifest{Files: files}
	return &clone
}

// discardInstalled removes what a skipped task just installed. Targets
// that held pre-existing content before the install (catalog roots,
// merge targets) are never wholesale-deleted: removing them would
// destroy data the transaction was required to preserve, so the skip
// leaves the installed content in place with a warning.
func (e *Engine) discardInstalled(task *types.InstallTask, sc scenario.Scenario) {
	if sc == scenario.CatalogClean || sc == scenario.Merge {
		e.logger.Warn().Str("target", task.TargetPath).Str("scenario", sc.String()).
			Msg("Skip requested after install into pre-existing content; target left in place")
		return
	}
	if err := e.fs.RemoveAll(task.TargetPath); err != nil {
		e.logger.Warn().Err(err).Str("target", task.TargetPath).
			Msg("Could not remove target for skipped task")
	}
}
