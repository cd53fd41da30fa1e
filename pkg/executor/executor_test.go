package executor

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/pixelgardenlabs/dirbackup/pkg/fsops"
	"github.com/pixelgardenlabs/dirbackup/pkg/metrics"
	"github.com/pixelgardenlabs/dirbackup/pkg/plan"
	"github.com/pixelgardenlabs/dirbackup/pkg/relpath"
)

func mustWrite(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		t.Fatalf("MkdirAll: %v", err)
	}
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("WriteFile(%s): %v", path, err)
	}
}

func rel(t *testing.T, s string) relpath.RelativePath {
	t.Helper()
	r, err := relpath.New(s)
	if err != nil {
		t.Fatalf("relpath.New(%q): %v", s, err)
	}
	return r
}

func TestExecuteCreatesDirectoriesCopiesAndDeletes(t *testing.T) {
	sourceRoot, destRoot := t.TempDir(), t.TempDir()
	mustWrite(t, filepath.Join(sourceRoot, "sub", "new.txt"), "hello")
	mustWrite(t, filepath.Join(destRoot, "stale.txt"), "bye")
	mustWrite(t, filepath.Join(destRoot, "extra", "leftover.txt"), "leftover")

	p := plan.Plan{
		DirectoriesToCreate: []relpath.RelativePath{rel(t, "sub")},
		FilesToCopy:         []relpath.RelativePath{rel(t, "sub/new.txt")},
		FilesToDelete:       []relpath.RelativePath{rel(t, "stale.txt")},
		DirectoriesToDelete: []relpath.RelativePath{rel(t, "extra")},
	}

	cap := fsops.NewLocalCapability()
	result, err := Execute(context.Background(), cap, sourceRoot, destRoot, p, DefaultBackupOptions(), &metrics.NoopMetrics{}, nil)
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}

	if result.DirectoriesCreated != 1 || result.FilesCopied != 1 || result.FilesDeleted != 1 || result.DirectoriesDeleted != 1 {
		t.Errorf("unexpected result: %+v", result)
	}

	if _, err := os.Stat(filepath.Join(destRoot, "sub", "new.txt")); err != nil {
		t.Errorf("expected new.txt to be copied: %v", err)
	}
	if _, err := os.Stat(filepath.Join(destRoot, "stale.txt")); !os.IsNotExist(err) {
		t.Error("expected stale.txt to be deleted")
	}
	if _, err := os.Stat(filepath.Join(destRoot, "extra")); !os.IsNotExist(err) {
		t.Error("expected the extra directory to be removed")
	}
}

func TestExecuteReportsProgress(t *testing.T) {
	sourceRoot, destRoot := t.TempDir(), t.TempDir()
	mustWrite(t, filepath.Join(sourceRoot, "a.txt"), "a")
	mustWrite(t, filepath.Join(sourceRoot, "b.txt"), "b")

	p := plan.Plan{
		FilesToCopy: []relpath.RelativePath{rel(t, "a.txt"), rel(t, "b.txt")},
	}

	var updates []BackupProgress
	report := func(p BackupProgress) { updates = append(updates, p) }

	cap := fsops.NewLocalCapability()
	if _, err := Execute(context.Background(), cap, sourceRoot, destRoot, p, DefaultBackupOptions(), &metrics.NoopMetrics{}, report); err != nil {
		t.Fatalf("Execute: %v", err)
	}

	// One up-front "Preparing" message, then one per file copied.
	if len(updates) != 3 {
		t.Fatalf("expected 3 progress updates, got %d: %+v", len(updates), updates)
	}

	first := updates[0]
	if first.Phase != PhasePreparing || first.Completed != 0 || first.Total != 2 {
		t.Errorf("expected the first update to be (Preparing, 0, 2), got %+v", first)
	}

	for _, u := range updates[1:] {
		if u.Phase != PhaseCopyFiles {
			t.Errorf("expected phase %q, got %+v", PhaseCopyFiles, u)
		}
		if u.Total != 2 {
			t.Errorf("expected Total to stay fixed at the plan's total item count, got %+v", u)
		}
	}

	last := updates[len(updates)-1]
	if last.Completed != last.Total {
		t.Errorf("expected the final update to report Completed == Total, got %+v", last)
	}
}

func TestExecuteStopsOnFirstError(t *testing.T) {
	sourceRoot, destRoot := t.TempDir(), t.TempDir()
	// a.txt exists in the plan but not on disk, so copying it fails.
	p := plan.Plan{
		FilesToCopy: []relpath.RelativePath{rel(t, "a.txt")},
	}

	cap := fsops.NewLocalCapability()
	opts := DefaultBackupOptions()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if _, err := Execute(ctx, cap, sourceRoot, destRoot, p, opts, &metrics.NoopMetrics{}, nil); err == nil {
		t.Error("expected Execute to fail when a planned source file doesn't exist")
	}
}

func TestDefaultBackupOptionsClampsHashConcurrency(t *testing.T) {
	opts := DefaultBackupOptions()
	if opts.MaxHashConcurrency < 2 || opts.MaxHashConcurrency > 16 {
		t.Errorf("MaxHashConcurrency = %d, want a value clamped to [2, 16]", opts.MaxHashConcurrency)
	}
	if opts.MaxFileIOConcurrency != 4 {
		t.Errorf("MaxFileIOConcurrency = %d, want 4", opts.MaxFileIOConcurrency)
	}
}
