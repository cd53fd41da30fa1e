// Package fsops defines the abstract filesystem capability that the
// Snapshot Service, Overwrite Detector, and Executor depend on, plus the
// local-disk implementation of it. The capability surface is deliberately
// thin: the policy for using these primitives lives in the components that
// consume them, not here.
package fsops

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pixelgardenlabs/dirbackup/pkg/relpath"
	"github.com/pixelgardenlabs/dirbackup/pkg/util"
)

// ErrSourceNotFound is returned by EnsureSourceExists when the source
// directory is absent.
var ErrSourceNotFound = errors.New("source directory does not exist")

// ErrPathOverlap is returned by ValidateNoOverlap when one path is a
// prefix of the other.
var ErrPathOverlap = errors.New("source and destination paths overlap")

// Capability is the abstract filesystem surface the reconciliation pipeline
// runs against. A local-disk implementation is provided below; tests may
// substitute an in-memory or fake implementation.
type Capability interface {
	// DirectoryExists reports whether path exists and is a directory.
	DirectoryExists(path string) (bool, error)
	// CreateDirectory creates path and any missing parents. It is a no-op
	// if path already exists as a directory.
	CreateDirectory(path string) error
	// WalkDirectories visits every directory beneath (and not including)
	// root, invoking fn with each directory's absolute path. Entries that
	// cannot be accessed, and reparse-point directories, are skipped
	// rather than surfaced as a hard failure.
	WalkDirectories(root string, fn func(absPath string) error) error
	// WalkFiles visits every regular file beneath root the same way
	// WalkDirectories visits directories.
	WalkFiles(root string, fn func(absPath string) error) error
	// GetFileMetadata returns a file's size and last-write time in UTC.
	GetFileMetadata(path string) (length int64, modTimeUTC time.Time, err error)
	// CopyFile copies src to dst, replacing dst if it already exists, and
	// sets dst's modification time to modTimeUTC afterward. overwrite
	// tells a fresh copy from a rewrite of an existing file; the local
	// implementation ignores it and performs the same atomic copy either
	// way.
	CopyFile(ctx context.Context, src, dst string, overwrite bool, modTimeUTC time.Time) error
	// DeleteFileIfExists removes a file, treating "already absent" as
	// success.
	DeleteFileIfExists(path string) error
	// DeleteDirectoryIfExists removes a directory (recursively when
	// recursive is true), treating "already absent" as success.
	DeleteDirectoryIfExists(path string, recursive bool) error
	// Combine joins an absolute root with a RelativePath to produce an
	// absolute, platform-native path. It never touches the filesystem.
	Combine(root string, rel relpath.RelativePath) string
	// HashFile returns the SHA-256 digest of the file at path, checking ctx
	// for cancellation between buffer-sized reads.
	HashFile(ctx context.Context, path string) ([]byte, error)
}

// ValidateAndNormalize trims whitespace, rejects empty paths, and converts
// both paths to their absolute, trailing-separator-stripped form.
func ValidateAndNormalize(sourcePath, destinationPath string) (source, destination string, err error) {
	sourcePath = strings.TrimSpace(sourcePath)
	destinationPath = strings.TrimSpace(destinationPath)
	if sourcePath == "" {
		return "", "", errors.New("source path is empty")
	}
	if destinationPath == "" {
		return "", "", errors.New("destination path is empty")
	}

	absSource, err := filepath.Abs(sourcePath)
	if err != nil {
		return "", "", err
	}
	absDestination, err := filepath.Abs(destinationPath)
	if err != nil {
		return "", "", err
	}
	return stripTrailingSeparator(absSource), stripTrailingSeparator(absDestination), nil
}

func stripTrailingSeparator(p string) string {
	trimmed := strings.TrimRight(p, string(filepath.Separator))
	if trimmed == "" {
		// p was exactly the filesystem root ("/" or "C:\"); keep it.
		return p
	}
	return trimmed
}

// ValidateNoOverlap rejects a (source, destination) pair where one path is
// a prefix of the other, compared under the given case policy.
func ValidateNoOverlap(source, destination string, policy relpath.CasePolicy) error {
	cmpSource, cmpDestination := source, destination
	if policy == relpath.CaseInsensitive {
		cmpSource = strings.ToLower(source)
		cmpDestination = strings.ToLower(destination)
	}
	if cmpSource == cmpDestination {
		return ErrPathOverlap
	}
	sourceWithSep := cmpSource + string(filepath.Separator)
	destinationWithSep := cmpDestination + string(filepath.Separator)
	if strings.HasPrefix(destinationWithSep, sourceWithSep) || strings.HasPrefix(sourceWithSep, destinationWithSep) {
		return ErrPathOverlap
	}
	return nil
}

// EnsureSourceExists fails with ErrSourceNotFound if path does not exist
// as a directory.
func EnsureSourceExists(cap Capability, path string) error {
	exists, err := cap.DirectoryExists(path)
	if err != nil {
		return err
	}
	if !exists {
		return ErrSourceNotFound
	}
	return nil
}

// PrepareDestination ensures the destination is ready for the given mode.
// For Sync/Add (create=true) it creates the destination if absent and
// reports whether it did so. For Remove (create=false) it never creates
// anything; existed reports whether the destination was present.
func PrepareDestination(cap Capability, create bool, destination string) (newlyCreated, existed bool, err error) {
	exists, err := cap.DirectoryExists(destination)
	if err != nil {
		return false, false, err
	}
	if exists {
		return false, true, nil
	}
	if !create {
		return false, false, nil
	}
	if err := cap.CreateDirectory(destination); err != nil {
		return false, false, err
	}
	return true, true, nil
}

// LocalCapability implements Capability against the local disk.
type LocalCapability struct{}

// NewLocalCapability returns a Capability backed by the local filesystem.
func NewLocalCapability() *LocalCapability {
	return &LocalCapability{}
}

func (LocalCapability) DirectoryExists(path string) (bool, error) {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, err
	}
	return info.IsDir(), nil
}

func (LocalCapability) CreateDirectory(path string) error {
	return os.MkdirAll(path, util.UserWritableDirPerms)
}

func (LocalCapability) WalkDirectories(root string, fn func(absPath string) error) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			logSkipped(path, err)
			if d != nil && d.IsDir() {
				return fs.SkipDir
			}
			return nil
		}
		if !d.IsDir() {
			return nil
		}
		if path == root {
			return nil
		}
		if isReparsePoint(d) {
			return fs.SkipDir
		}
		return fn(path)
	})
}

func (LocalCapability) WalkFiles(root string, fn func(absPath string) error) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			logSkipped(path, err)
			if d != nil && d.IsDir() {
				return fs.SkipDir
			}
			return nil
		}
		if d.IsDir() {
			if path != root && isReparsePoint(d) {
				return fs.SkipDir
			}
			return nil
		}
		if !d.Type().IsRegular() {
			return nil
		}
		return fn(path)
	})
}

func (LocalCapability) GetFileMetadata(path string) (int64, time.Time, error) {
	info, err := os.Stat(path)
	if err != nil {
		return 0, time.Time{}, err
	}
	return info.Size(), info.ModTime().UTC(), nil
}

func (LocalCapability) CopyFile(ctx context.Context, src, dst string, overwrite bool, modTimeUTC time.Time) error {
	return copyFileAtomic(ctx, src, dst, modTimeUTC)
}

func (LocalCapability) DeleteFileIfExists(path string) error {
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

func (LocalCapability) DeleteDirectoryIfExists(path string, recursive bool) error {
	if recursive {
		return os.RemoveAll(path)
	}
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

func (LocalCapability) Combine(root string, rel relpath.RelativePath) string {
	if rel.IsRoot() {
		return root
	}
	return filepath.Join(root, filepath.FromSlash(rel.String()))
}

func (LocalCapability) HashFile(ctx context.Context, path string) ([]byte, error) {
	return hashFileAtomic(ctx, path)
}

func logSkipped(path string, err error) {
	warnSkipped(path, err)
}

// isReparsePoint reports whether a directory entry is a symlink/junction,
// which we refuse to descend into to avoid enumeration cycles.
func isReparsePoint(d fs.DirEntry) bool {
	return d.Type()&fs.ModeSymlink != 0
}
