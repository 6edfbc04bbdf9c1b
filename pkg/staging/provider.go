package staging

import (
	"os"
	"path/filepath"

	"github.com/rs/zerolog"

	"github.com/arthur-debert/airlift/pkg/errors"
	"github.com/arthur-debert/airlift/pkg/filesystem"
	"github.com/arthur-debert/airlift/pkg/logging"
	"github.com/arthur-debert/airlift/pkg/transaction"
	"github.com/arthur-debert/airlift/pkg/types"
)

// Provider materializes a task's content. The engine owns the staging
// area; the provider only fills it. ReextractFile exists for verification
// retries: it must return the bytes of exactly one entry, walking the
// same nested-archive chain the original extraction used.
type Provider interface {
	ExtractInto(task *types.InstallTask, dest string) error
	ReextractFile(task *types.InstallTask, relPath string) ([]byte, error)
}

// LocalProvider stages content from the local filesystem: plain
// directories are copied symlink-safely, archives are extracted with
// nested-chain support.
type LocalProvider struct {
	scratchRoot string
	copier      *transaction.Executor
	reporter    transaction.Reporter
	logger      zerolog.Logger
}

// NewLocalProvider creates a provider whose intermediate extractions land
// under scratchRoot. The reporter receives extraction byte progress; pass
// transaction.NopReporter() to disable.
func NewLocalProvider(scratchRoot string, reporter transaction.Reporter) *LocalProvider {
	if reporter == nil {
		reporter = transaction.NopReporter()
	}
	return &LocalProvider{
		scratchRoot: scratchRoot,
		copier:      transaction.NewExecutor(filesystem.NewOS(), reporter),
		reporter:    reporter,
		logger:      logging.GetLogger("staging"),
	}
}

// ExtractInto fills dest with the task's content.
func (p *LocalProvider) ExtractInto(task *types.InstallTask, dest string) error {
	info, err := os.Stat(task.Source)
	if err != nil {
		return errors.Wrapf(err, errors.ErrStaging, "reading source %s", task.Source)
	}

	if info.IsDir() {
		return p.copier.CopyTree(task.Source, dest)
	}
	if !isArchive(task.Source) {
		return errors.Newf(errors.ErrArchiveFormat, "source %s is neither a directory nor a supported archive", task.Source)
	}
	return p.extractChain(task, task.Source, dest, 0)
}

// maxNestedDepth bounds how many archive layers a source may nest.
const maxNestedDepth = 5

// extractChain extracts archive into dest, then descends while the
// result is a single inner archive. The per-layer password comes from the
// task's password table.
func (p *LocalProvider) extractChain(task *types.InstallTask, archive, dest string, depth int) error {
	if depth > maxNestedDepth {
		return errors.Newf(errors.ErrExtract, "archive nesting exceeds %d layers at %s", maxNestedDepth, archive)
	}

	if err := p.extractArchive(archive, dest, passwordFor(task, archive, depth)); err != nil {
		return err
	}

	inner, ok := singleInnerArchive(dest)
	if !ok {
		return nil
	}

	// Move the inner archive out of dest so the next layer extracts into
	// a clean directory.
	layer, err := os.MkdirTemp(p.scratchRoot, "layer-*")
	if err != nil {
		return errors.Wrap(err, errors.ErrStaging, "creating layer dir")
	}
	defer func() {
		_ = os.RemoveAll(layer)
	}()

	moved := filepath.Join(layer, filepath.Base(inner))
	if err := os.Rename(inner, moved); err != nil {
		return errors.Wrapf(err, errors.ErrStaging, "staging inner archive %s", inner)
	}

	p.logger.Debug().Str("archive", moved).Int("depth", depth+1).
		Msg("Descending into nested archive")
	return p.extractChain(task, moved, dest, depth+1)
}

// ReextractFile returns the bytes of one entry, re-walking the nested
// chain in the same layer order as the original extraction.
func (p *LocalProvider) ReextractFile(task *types.InstallTask, relPath string) ([]byte, error) {
	info, err := os.Stat(task.Source)
	if err != nil {
		return nil, errors.Wrapf(err, errors.ErrStaging, "reading source %s", task.Source)
	}

	if info.IsDir() {
		data, rerr := os.ReadFile(filepath.Join(task.Source, filepath.FromSlash(relPath)))
		if rerr != nil {
			return nil, errors.Wrapf(rerr, errors.ErrEntryNotInArchive, "reading %s from source directory", relPath)
		}
		return data, nil
	}

	tmpRoot, err := os.MkdirTemp(p.scratchRoot, "reextract-*")
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrStaging, "creating re-extraction scratch")
	}
	defer func() {
		_ = os.RemoveAll(tmpRoot)
	}()

	archive := task.Source
	for depth := 0; depth <= maxNestedDepth; depth++ {
		data, found, rerr := p.readEntry(archive, relPath, passwordFor(task, archive, depth))
		if rerr != nil {
			return nil, rerr
		}
		if found {
			return data, nil
		}

		// The entry may live in a nested layer: extract this layer and
		// descend into its single inner archive.
		layer := filepath.Join(tmpRoot, "layer")
		if err := os.MkdirAll(layer, 0755); err != nil {
			return nil, errors.Wrap(err, errors.ErrStaging, "creating layer dir")
		}
		if err := p.extractArchive(archive, layer, passwordFor(task, archive, depth)); err != nil {
			return nil, err
		}
		inner, ok := singleInnerArchive(layer)
		if !ok {
			return nil, errors.Newf(errors.ErrEntryNotInArchive, "%s not found in %s", relPath, task.Source)
		}
		next := filepath.Join(tmpRoot, filepath.Base(inner))
		if err := os.Rename(inner, next); err != nil {
			return nil, errors.Wrapf(err, errors.ErrStaging, "staging inner archive %s", inner)
		}
		_ = os.RemoveAll(layer)
		archive = next
	}
	return nil, errors.Newf(errors.ErrEntryNotInArchive, "%s not found within %d layers of %s", relPath, maxNestedDepth, task.Source)
}

// passwordFor looks up the password for an archive layer: exact path
// first, then base name, then the task-level password for the outermost
// layer.
func passwordFor(task *types.InstallTask, archive string, depth int) string {
	if pw, ok := task.Passwords[archive]; ok {
		return pw
	}
	if pw, ok := task.Passwords[filepath.Base(archive)]; ok {
		return pw
	}
	if depth == 0 {
		return task.Password
	}
	return ""
}

// singleInnerArchive reports whether dir contains exactly one entry and
// that entry is itself an archive.
func singleInnerArchive(dir string) (string, bool) {
	entries, err := os.ReadDir(dir)
	if err != nil || len(entries) != 1 {
		return "", false
	}
	entry := entries[0]
	if entry.IsDir() || !isArchive(entry.Name()) {
		return "", false
	}
	return filepath.Join(dir, entry.Name()), true
}
