package orchestrator

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/pixelgardenlabs/dirbackup/pkg/backupmode"
	"github.com/pixelgardenlabs/dirbackup/pkg/executor"
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

func baseRequest(source, destination string) Request {
	return Request{
		SourcePath:      source,
		DestinationPath: destination,
		Mode:            backupmode.Sync,
		Options:         executor.DefaultBackupOptions(),
		CasePolicy:      relpath.CaseSensitive,
	}
}

func TestExecuteRejectsEmptyPaths(t *testing.T) {
	_, err := Execute(context.Background(), baseRequest("", ""))
	var orchErr *Error
	if !errors.As(err, &orchErr) || orchErr.Kind != InvalidArgument {
		t.Fatalf("expected an InvalidArgument error, got %v", err)
	}
}

func TestExecuteRejectsOverlappingPaths(t *testing.T) {
	root := t.TempDir()
	nested := filepath.Join(root, "nested")
	if err := os.MkdirAll(nested, 0755); err != nil {
		t.Fatalf("MkdirAll: %v", err)
	}

	_, err := Execute(context.Background(), baseRequest(root, nested))
	var orchErr *Error
	if !errors.As(err, &orchErr) || orchErr.Kind != PathOverlap {
		t.Fatalf("expected a PathOverlap error, got %v", err)
	}
}

func TestExecuteRejectsMissingSource(t *testing.T) {
	missing := filepath.Join(t.TempDir(), "does-not-exist")
	destination := t.TempDir()

	_, err := Execute(context.Background(), baseRequest(missing, destination))
	var orchErr *Error
	if !errors.As(err, &orchErr) || orchErr.Kind != SourceNotFound {
		t.Fatalf("expected a SourceNotFound error, got %v", err)
	}
}

func TestExecuteRemoveModeAgainstAbsentDestinationIsClean(t *testing.T) {
	source := t.TempDir()
	mustWrite(t, filepath.Join(source, "a.txt"), "a")
	destination := filepath.Join(t.TempDir(), "absent")

	req := baseRequest(source, destination)
	req.Mode = backupmode.Remove

	result, err := Execute(context.Background(), req)
	if err != nil {
		t.Fatalf("expected Remove mode against an absent destination to succeed cleanly, got %v", err)
	}
	if result != (executor.BackupResult{}) {
		t.Errorf("expected a zero-valued BackupResult, got %+v", result)
	}
}

func TestExecuteSyncRunEndToEnd(t *testing.T) {
	source, destination := t.TempDir(), t.TempDir()
	mustWrite(t, filepath.Join(source, "new.txt"), "hello")
	mustWrite(t, filepath.Join(destination, "stale.txt"), "stale")

	req := baseRequest(source, destination)
	req.WriteMetafile = true

	result, err := Execute(context.Background(), req)
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if result.FilesCopied != 1 || result.FilesDeleted != 1 {
		t.Errorf("unexpected result: %+v", result)
	}
	if _, err := os.Stat(filepath.Join(destination, "new.txt")); err != nil {
		t.Errorf("expected new.txt to have been copied: %v", err)
	}
	if _, err := os.Stat(filepath.Join(destination, ".dirbackup.meta.json")); err != nil {
		t.Errorf("expected a metafile to be written: %v", err)
	}
}

func TestErrorKindString(t *testing.T) {
	cases := map[ErrorKind]string{
		InvalidArgument: "invalid_argument",
		PathOverlap:     "path_overlap",
		SourceNotFound:  "source_not_found",
		Cancelled:       "cancelled",
		IOFailure:       "io_failure",
	}
	for kind, want := range cases {
		if got := kind.String(); got != want {
			t.Errorf("%d.String() = %q, want %q", kind, got, want)
		}
	}
}
