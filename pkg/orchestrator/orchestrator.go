// Package orchestrator wires the Snapshot Service, Plan Service,
// Overwrite Detector, and Executor into the end-to-end backup operation,
// plus the supplemental lock, hook, and metafile concerns around it.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"github.com/pixelgardenlabs/dirbackup/pkg/backupmode"
	"github.com/pixelgardenlabs/dirbackup/pkg/executor"
	"github.com/pixelgardenlabs/dirbackup/pkg/fsops"
	"github.com/pixelgardenlabs/dirbackup/pkg/hints"
	"github.com/pixelgardenlabs/dirbackup/pkg/hook"
	"github.com/pixelgardenlabs/dirbackup/pkg/limiter"
	"github.com/pixelgardenlabs/dirbackup/pkg/lockfile"
	"github.com/pixelgardenlabs/dirbackup/pkg/metafile"
	"github.com/pixelgardenlabs/dirbackup/pkg/metrics"
	"github.com/pixelgardenlabs/dirbackup/pkg/overwrite"
	"github.com/pixelgardenlabs/dirbackup/pkg/plan"
	"github.com/pixelgardenlabs/dirbackup/pkg/plog"
	"github.com/pixelgardenlabs/dirbackup/pkg/preflight"
	"github.com/pixelgardenlabs/dirbackup/pkg/relpath"
	"github.com/pixelgardenlabs/dirbackup/pkg/snapshot"
)

// AppID identifies this application in lock files left on disk, so a
// stale lock from an unrelated tool is never mistaken for one of ours.
const AppID = "dirbackup"

// ErrorKind classifies the way an Execute call failed, for callers that
// need to map a failure onto an exit code or a user-facing message
// without inspecting the error's type.
type ErrorKind int

const (
	// InvalidArgument means the request itself was malformed (empty
	// paths, an unparseable mode).
	InvalidArgument ErrorKind = iota
	// PathOverlap means source and destination name the same tree, or
	// one nests inside the other.
	PathOverlap
	// SourceNotFound means the source directory doesn't exist.
	SourceNotFound
	// Cancelled means the caller's context was cancelled mid-run.
	Cancelled
	// IOFailure means an underlying filesystem operation failed.
	IOFailure
)

func (k ErrorKind) String() string {
	switch k {
	case InvalidArgument:
		return "invalid_argument"
	case PathOverlap:
		return "path_overlap"
	case SourceNotFound:
		return "source_not_found"
	case Cancelled:
		return "cancelled"
	case IOFailure:
		return "io_failure"
	default:
		return "unknown"
	}
}

// Error is the typed error every failure mode of Execute produces. It's
// returned as-is by Execute — the orchestrator never wraps it further —
// so callers can type-assert down to it without stripping layers.
type Error struct {
	Kind ErrorKind
	Err  error
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %v", e.Kind, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

func newError(kind ErrorKind, err error) *Error {
	return &Error{Kind: kind, Err: err}
}

// Request is everything Execute needs to perform one backup operation.
type Request struct {
	SourcePath      string
	DestinationPath string
	Mode            backupmode.Mode
	Options         executor.BackupOptions
	CasePolicy      relpath.CasePolicy
	// HookPlan configures pre/post run hooks; a zero value disables them.
	HookPlan hook.Plan
	// MemoryBudget is the memory the Overwrite Detector's concurrent
	// hashing reserves from; a hash that finds the budget exhausted runs
	// without a reservation rather than waiting. Zero or less means an
	// effectively unlimited budget.
	MemoryBudget int64
	// WriteMetafile, when true, stamps a run-summary file at the
	// destination root after a successful run.
	WriteMetafile bool
	// Report receives progress updates as the Executor runs; nil
	// disables progress reporting.
	Report executor.ProgressReporter
}

// Execute runs the full backup pipeline described by req: validate and
// normalize the paths, confirm the source exists and the paths don't
// overlap, prepare the destination, acquire a single-instance-run lock,
// run the configured pre-hook, capture both snapshots, build a Plan,
// classify overwrite candidates, run the Executor, write the run's
// metafile, run the configured post-hook, and release the lock.
//
// Per the two ambiguous cases the spec leaves open: Remove mode against
// an absent destination returns a zero-valued BackupResult rather than an
// error, since there's nothing to remove from; and enumeration skips
// entries it can't access rather than failing the whole run.
func Execute(ctx context.Context, req Request) (executor.BackupResult, error) {
	cap := fsops.NewLocalCapability()

	source, destination, err := fsops.ValidateAndNormalize(req.SourcePath, req.DestinationPath)
	if err != nil {
		return executor.BackupResult{}, newError(InvalidArgument, err)
	}
	if err := fsops.ValidateNoOverlap(source, destination, req.CasePolicy); err != nil {
		return executor.BackupResult{}, newError(PathOverlap, err)
	}
	if err := fsops.EnsureSourceExists(cap, source); err != nil {
		return executor.BackupResult{}, newError(SourceNotFound, err)
	}
	if err := preflight.CheckBackupSourceAccessible(source); err != nil {
		return executor.BackupResult{}, newError(SourceNotFound, err)
	}
	if err := preflight.CheckBackupTargetAccessible(destination); err != nil {
		return executor.BackupResult{}, newError(IOFailure, err)
	}

	createDestination := req.Mode != backupmode.Remove
	_, destinationExisted, err := fsops.PrepareDestination(cap, createDestination, destination)
	if err != nil {
		return executor.BackupResult{}, newError(IOFailure, err)
	}
	if req.Mode == backupmode.Remove && !destinationExisted {
		// Nothing to remove from: resolved Open Question #1.
		return executor.BackupResult{}, nil
	}

	if chars, err := preflight.DetectVolumeCharacteristics(destination); err == nil {
		if chars.IsNetwork {
			plog.Warn("destination sits on a network filesystem; content hashing will be slower", "fsType", chars.FSType)
		}
		if chars.IsNetwork || chars.IsRemovable {
			plog.Warn("clamping file I/O concurrency to 1 for a network or removable destination", "fsType", chars.FSType)
			req.Options.MaxFileIOConcurrency = 1
		}
	}

	lock, err := lockfile.Acquire(ctx, destination, AppID)
	if err != nil {
		var lockActive *lockfile.ErrLockActive
		if errors.As(err, &lockActive) {
			plog.Warn("another run already holds the destination lock, exiting cleanly", "error", lockActive)
			return executor.BackupResult{}, nil
		}
		return executor.BackupResult{}, newError(IOFailure, err)
	}
	defer lock.Release()

	hookExecutor := hook.NewHookExecutor(exec.CommandContext)
	timestampUTC := time.Now().UTC()
	if err := hookExecutor.RunPreHook(ctx, "backup", &req.HookPlan, timestampUTC); err != nil && !hints.IsHint(err) {
		return executor.BackupResult{}, newError(IOFailure, err)
	}

	result, err := execute(ctx, cap, source, destination, req)
	if err != nil {
		return result, classifyExecutionError(err)
	}

	if req.WriteMetafile {
		if err := writeMetafile(destination, req.Mode, timestampUTC, result); err != nil {
			plog.Warn("failed to write run metafile", "error", fmt.Sprint(err))
		}
	}

	if err := hookExecutor.RunPostHook(ctx, "backup", &req.HookPlan, timestampUTC); err != nil && !hints.IsHint(err) {
		plog.Warn("post-backup hook failed", "error", fmt.Sprint(err))
	}

	return result, nil
}

func execute(ctx context.Context, cap fsops.Capability, source, destination string, req Request) (executor.BackupResult, error) {
	// Remove mode only ever needs to know which paths exist on each side;
	// it never copies, overwrites, or compares content, so stat'ing every
	// file for size/mtime would be pure waste.
	includeMetadata := req.Mode != backupmode.Remove

	sourceSnapshot, err := snapshot.Capture(ctx, cap, source, req.CasePolicy, includeMetadata)
	if err != nil {
		return executor.BackupResult{}, err
	}
	destinationSnapshot, err := snapshot.Capture(ctx, cap, destination, req.CasePolicy, includeMetadata)
	if err != nil {
		return executor.BackupResult{}, err
	}

	p := plan.Build(req.Mode, sourceSnapshot, destinationSnapshot, req.CasePolicy)

	// The run's own lock file (and its heartbeat temp files) sits in the
	// destination root while the run holds it; it is never deleted here.
	kept := p.FilesToDelete[:0]
	for _, rel := range p.FilesToDelete {
		if rel.Dir().IsRoot() && strings.HasPrefix(rel.Base(), lockfile.LockFileName) {
			continue
		}
		kept = append(kept, rel)
	}
	p.FilesToDelete = kept

	if len(p.FilesToOverwrite) > 0 {
		mem := req.memoryLimiter()
		decisions, err := overwrite.Classify(ctx, cap, source, destination, sourceSnapshot, destinationSnapshot, p.FilesToOverwrite, req.Options.MaxHashConcurrency, mem)
		if err != nil {
			return executor.BackupResult{}, err
		}
		p.FilesToOverwrite = p.FilesToOverwrite[:0]
		for _, d := range decisions {
			if d.Overwrite {
				p.FilesToOverwrite = append(p.FilesToOverwrite, d.Path)
			}
		}
	}

	m := req.resultMetrics()
	return executor.Execute(ctx, cap, source, destination, p, req.Options, m, req.Report)
}

func (r Request) memoryLimiter() *limiter.Memory {
	budget := r.MemoryBudget
	if budget <= 0 {
		budget = 1 << 62
	}
	return limiter.NewMemory(budget)
}

func (r Request) resultMetrics() metrics.Metrics {
	return &metrics.RunMetrics{}
}

func classifyExecutionError(err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return newError(Cancelled, err)
	}
	return newError(IOFailure, err)
}

func writeMetafile(destination string, mode backupmode.Mode, timestampUTC time.Time, result executor.BackupResult) error {
	return metafile.Write(destination, &metafile.MetafileContent{
		TimestampUTC:       timestampUTC,
		Mode:               mode.String(),
		DirectoriesCreated: result.DirectoriesCreated,
		FilesCopied:        result.FilesCopied,
		FilesOverwritten:   result.FilesOverwritten,
		FilesDeleted:       result.FilesDeleted,
		DirectoriesDeleted: result.DirectoriesDeleted,
	})
}
