// Package executor carries out a Plan against the filesystem, reporting
// progress and tallying the result counters a run produces.
package executor

import (
	"context"
	"runtime"
	"sync/atomic"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"github.com/pixelgardenlabs/dirbackup/pkg/fsops"
	"github.com/pixelgardenlabs/dirbackup/pkg/metrics"
	"github.com/pixelgardenlabs/dirbackup/pkg/plan"
	"github.com/pixelgardenlabs/dirbackup/pkg/relpath"
)

// Phase labels identify which stage of the Plan a ProgressReporter
// callback is currently reporting on.
const (
	PhasePreparing         = "Preparing"
	PhaseCreateDirectories = "Creating directories"
	PhaseCopyFiles         = "Copying files"
	PhaseOverwriteFiles    = "Overwriting files"
	PhaseDeleteFiles       = "Deleting files"
	PhaseDeleteDirectories = "Deleting directories"
)

// BackupResult tallies what an Execute call actually did.
type BackupResult struct {
	DirectoriesCreated int64
	FilesCopied        int64
	FilesOverwritten   int64
	FilesDeleted       int64
	DirectoriesDeleted int64
}

// resultCounters accumulates BackupResult's fields from concurrent
// worker goroutines; Load converts the final tallies into a plain
// BackupResult once every phase has completed.
type resultCounters struct {
	directoriesCreated atomic.Int64
	filesCopied        atomic.Int64
	filesOverwritten   atomic.Int64
	filesDeleted       atomic.Int64
	directoriesDeleted atomic.Int64
}

func (c *resultCounters) Load() BackupResult {
	return BackupResult{
		DirectoriesCreated: c.directoriesCreated.Load(),
		FilesCopied:        c.filesCopied.Load(),
		FilesOverwritten:   c.filesOverwritten.Load(),
		FilesDeleted:       c.filesDeleted.Load(),
		DirectoriesDeleted: c.directoriesDeleted.Load(),
	}
}

// BackupProgress is one update in the one-way progress stream Execute
// emits through a ProgressReporter. Completed/Total are cumulative across
// the whole run, not per-phase: Total is fixed at the plan's total item
// count up front, and Completed only ever grows as items finish in any
// phase. Phase names which stage produced the update.
type BackupProgress struct {
	Phase     string
	Completed int64
	Total     int64
}

// ProgressReporter receives BackupProgress updates as Execute runs. It
// must not block for long, since it's called from worker goroutines.
type ProgressReporter func(BackupProgress)

// BackupOptions tunes the concurrency Execute uses.
type BackupOptions struct {
	// MaxHashConcurrency bounds how many files are hashed at once during
	// overwrite detection upstream of Execute; Execute itself doesn't
	// hash, but carries the value so callers can build Options once and
	// pass them to both the Overwrite Detector and the Executor.
	MaxHashConcurrency int
	// MaxFileIOConcurrency bounds how many files are copied, overwritten,
	// or deleted concurrently within a single phase.
	MaxFileIOConcurrency int
}

// DefaultBackupOptions returns the spec's default concurrency: hashing
// clamped to [2, 16] based on CPU count, and file I/O fixed at 4.
func DefaultBackupOptions() BackupOptions {
	hashConcurrency := runtime.NumCPU()
	if hashConcurrency < 2 {
		hashConcurrency = 2
	}
	if hashConcurrency > 16 {
		hashConcurrency = 16
	}
	return BackupOptions{
		MaxHashConcurrency:   hashConcurrency,
		MaxFileIOConcurrency: 4,
	}
}

// Executor carries out a Plan's operations against a Capability.
type Executor struct {
	cap     fsops.Capability
	metrics metrics.Metrics
	mkdirSF singleflight.Group
}

// New returns an Executor that reports into m. Pass &metrics.NoopMetrics{}
// if counters aren't needed.
func New(cap fsops.Capability, m metrics.Metrics) *Executor {
	return &Executor{cap: cap, metrics: m}
}

// Execute carries out p against the given source/destination roots,
// running each phase's operations with up to opts.MaxFileIOConcurrency
// workers in flight. Phases run in this fixed order: create directories,
// copy files, overwrite files, delete files, delete directories — so a
// file is never copied into a directory that doesn't exist yet, and a
// directory is never deleted while a file still pending deletion lives
// inside it. Within a phase, the first error encountered cancels every
// other in-flight operation in that phase and Execute returns immediately;
// the returned BackupResult reflects only the work that completed before
// the error.
func Execute(
	ctx context.Context,
	cap fsops.Capability,
	sourceRoot, destinationRoot string,
	p plan.Plan,
	opts BackupOptions,
	m metrics.Metrics,
	report ProgressReporter,
) (BackupResult, error) {
	e := New(cap, m)
	return e.run(ctx, sourceRoot, destinationRoot, p, opts, report)
}

func (e *Executor) run(
	ctx context.Context,
	sourceRoot, destinationRoot string,
	p plan.Plan,
	opts BackupOptions,
	report ProgressReporter,
) (BackupResult, error) {
	var counters resultCounters
	total := int64(len(p.DirectoriesToCreate) + len(p.FilesToCopy) + len(p.FilesToOverwrite) +
		len(p.FilesToDelete) + len(p.DirectoriesToDelete))
	var completed atomic.Int64
	reportProgress(report, PhasePreparing, 0, total)

	if err := e.createDirectories(ctx, destinationRoot, p.DirectoriesToCreate, opts, report, &counters, &completed, total); err != nil {
		return counters.Load(), err
	}
	if err := e.copyFiles(ctx, sourceRoot, destinationRoot, p.FilesToCopy, false, opts, report, &counters, &completed, total); err != nil {
		return counters.Load(), err
	}
	if err := e.copyFiles(ctx, sourceRoot, destinationRoot, p.FilesToOverwrite, true, opts, report, &counters, &completed, total); err != nil {
		return counters.Load(), err
	}
	if err := e.deleteFiles(ctx, destinationRoot, p.FilesToDelete, opts, report, &counters, &completed, total); err != nil {
		return counters.Load(), err
	}
	if err := e.deleteDirectories(ctx, destinationRoot, p.DirectoriesToDelete, report, &counters, &completed, total); err != nil {
		return counters.Load(), err
	}

	result := counters.Load()
	e.metrics.Log()
	return result, nil
}

// createDirectories makes every directory in dirs. dirs arrives sorted
// parent-before-child from the Plan Service, but creation still goes
// through CreateDirectory (MkdirAll-equivalent) so overlapping ancestors
// racing across goroutines are harmless; mkdirSF additionally collapses
// concurrent requests for the exact same path into one call.
func (e *Executor) createDirectories(
	ctx context.Context,
	destinationRoot string,
	dirs []relpath.RelativePath,
	opts BackupOptions,
	report ProgressReporter,
	counters *resultCounters,
	completed *atomic.Int64,
	total int64,
) error {
	if len(dirs) == 0 {
		return nil
	}

	group, gctx := errgroup.WithContext(ctx)
	group.SetLimit(opts.MaxFileIOConcurrency)
	for _, rel := range dirs {
		rel := rel
		group.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			absPath := e.cap.Combine(destinationRoot, rel)
			_, err, _ := e.mkdirSF.Do(absPath, func() (any, error) {
				return nil, e.cap.CreateDirectory(absPath)
			})
			if err != nil {
				return err
			}
			counters.directoriesCreated.Add(1)
			e.metrics.AddDirectoriesCreated(1)
			reportProgress(report, PhaseCreateDirectories, completed.Add(1), total)
			return nil
		})
	}
	return group.Wait()
}

// copyFiles copies each file in files from sourceRoot to destinationRoot.
// When overwrite is true the files are known-existing destinations the
// Overwrite Detector decided needed a fresh copy; when false they're new
// entries the destination doesn't have yet. Either way the filesystem
// operation is the same atomic copy-then-rename.
func (e *Executor) copyFiles(
	ctx context.Context,
	sourceRoot, destinationRoot string,
	files []relpath.RelativePath,
	overwrite bool,
	opts BackupOptions,
	report ProgressReporter,
	counters *resultCounters,
	completed *atomic.Int64,
	total int64,
) error {
	if len(files) == 0 {
		return nil
	}
	phase := PhaseCopyFiles
	if overwrite {
		phase = PhaseOverwriteFiles
	}

	group, gctx := errgroup.WithContext(ctx)
	group.SetLimit(opts.MaxFileIOConcurrency)
	for _, rel := range files {
		rel := rel
		group.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			srcPath := e.cap.Combine(sourceRoot, rel)
			dstPath := e.cap.Combine(destinationRoot, rel)
			_, modTimeUTC, err := e.cap.GetFileMetadata(srcPath)
			if err != nil {
				return err
			}
			if err := e.cap.CopyFile(gctx, srcPath, dstPath, overwrite, modTimeUTC); err != nil {
				return err
			}
			if overwrite {
				counters.filesOverwritten.Add(1)
				e.metrics.AddFilesOverwritten(1)
			} else {
				counters.filesCopied.Add(1)
				e.metrics.AddFilesCopied(1)
			}
			reportProgress(report, phase, completed.Add(1), total)
			return nil
		})
	}
	return group.Wait()
}

// deleteFiles removes every file in files from destinationRoot.
func (e *Executor) deleteFiles(
	ctx context.Context,
	destinationRoot string,
	files []relpath.RelativePath,
	opts BackupOptions,
	report ProgressReporter,
	counters *resultCounters,
	completed *atomic.Int64,
	total int64,
) error {
	if len(files) == 0 {
		return nil
	}

	group, gctx := errgroup.WithContext(ctx)
	group.SetLimit(opts.MaxFileIOConcurrency)
	for _, rel := range files {
		rel := rel
		group.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			absPath := e.cap.Combine(destinationRoot, rel)
			if err := e.cap.DeleteFileIfExists(absPath); err != nil {
				return err
			}
			counters.filesDeleted.Add(1)
			e.metrics.AddFilesDeleted(1)
			reportProgress(report, PhaseDeleteFiles, completed.Add(1), total)
			return nil
		})
	}
	return group.Wait()
}

// deleteDirectories removes the top-level extra directories sequentially.
// Each entry is deleted recursively, so there's no concurrency to gain by
// parallelizing across entries, and doing it sequentially keeps the
// "first error wins" semantics trivial to reason about here.
func (e *Executor) deleteDirectories(
	ctx context.Context,
	destinationRoot string,
	dirs []relpath.RelativePath,
	report ProgressReporter,
	counters *resultCounters,
	completed *atomic.Int64,
	total int64,
) error {
	if len(dirs) == 0 {
		return nil
	}
	for _, rel := range dirs {
		if err := ctx.Err(); err != nil {
			return err
		}
		absPath := e.cap.Combine(destinationRoot, rel)
		if err := e.cap.DeleteDirectoryIfExists(absPath, true); err != nil {
			return err
		}
		counters.directoriesDeleted.Add(1)
		e.metrics.AddDirectoriesDeleted(1)
		reportProgress(report, PhaseDeleteDirectories, completed.Add(1), total)
	}
	return nil
}

func reportProgress(report ProgressReporter, phase string, completed, total int64) {
	if report == nil {
		return
	}
	report(BackupProgress{Phase: phase, Completed: completed, Total: total})
}
