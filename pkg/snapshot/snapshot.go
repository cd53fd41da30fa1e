// Package snapshot captures the state of a directory tree into an
// in-memory structure the Plan Service can diff against another snapshot.
package snapshot

import (
	"context"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/pixelgardenlabs/dirbackup/pkg/fsops"
	"github.com/pixelgardenlabs/dirbackup/pkg/relpath"
	"github.com/pixelgardenlabs/dirbackup/pkg/sharded"
)

// epochUTC is the zero-length, zero-time stand-in used for a file's size
// and modification time when Capture is told to skip stat'ing files.
var epochUTC = time.Unix(0, 0).UTC()

// cancellationCheckMask polls ctx every 256 enumerated entries (count&255==0),
// a cheap power-of-two check that avoids calling ctx.Err() on every single
// entry while still responding to cancellation promptly.
const cancellationCheckMask = 1<<8 - 1

// snapshotShardCount bounds the contention between the directory-walking
// and file-walking goroutines: each writes into its own sharded.Map, so no
// shard ever sees two concurrent writers, but a wider fan-out keeps
// Keys()/Items() scans cheap on large trees.
const snapshotShardCount = 16

// FileEntry describes one file found during a snapshot capture.
type FileEntry struct {
	Path       relpath.RelativePath
	Size       int64
	ModTimeUTC time.Time
}

// Snapshot holds every directory and file found beneath a root at the
// moment it was captured.
type Snapshot struct {
	root        string
	directories *sharded.Map
	files       *sharded.Map
	policy      relpath.CasePolicy
}

// Empty returns a Snapshot with no entries, representing an absent or
// empty root — Capture returns it when the root doesn't exist yet.
func Empty(root string, policy relpath.CasePolicy) Snapshot {
	return Snapshot{
		root:        root,
		directories: sharded.NewMap(snapshotShardCount),
		files:       sharded.NewMap(snapshotShardCount),
		policy:      policy,
	}
}

// Root returns the absolute path the snapshot was captured from.
func (s Snapshot) Root() string { return s.root }

// Directories returns every directory found, keyed by comparison key.
func (s Snapshot) Directories() map[string]relpath.RelativePath {
	out := make(map[string]relpath.RelativePath, s.directories.Count())
	s.directories.Range(func(key string, value any) bool {
		out[key] = value.(relpath.RelativePath)
		return true
	})
	return out
}

// Files returns every file found, keyed by comparison key.
func (s Snapshot) Files() map[string]FileEntry {
	out := make(map[string]FileEntry, s.files.Count())
	s.files.Range(func(key string, value any) bool {
		out[key] = value.(FileEntry)
		return true
	})
	return out
}

// DirectoryCount returns the number of directories captured.
func (s Snapshot) DirectoryCount() int { return s.directories.Count() }

// FileCount returns the number of files captured.
func (s Snapshot) FileCount() int { return s.files.Count() }

// HasDirectory reports whether rel was captured as a directory.
func (s Snapshot) HasDirectory(rel relpath.RelativePath) bool {
	return s.directories.Has(rel.Key(s.policy))
}

// LookupFile returns the FileEntry for rel, if captured.
func (s Snapshot) LookupFile(rel relpath.RelativePath) (FileEntry, bool) {
	v, ok := s.files.Load(rel.Key(s.policy))
	if !ok {
		return FileEntry{}, false
	}
	return v.(FileEntry), true
}

// Capture walks root concurrently and returns everything found beneath
// it. Entries the underlying capability can't access are skipped rather
// than failing the whole capture: walk errors are logged by the capability
// itself, while a file whose metadata can't be read is dropped without a
// log line. Capture polls ctx for cancellation every 256 entries visited;
// the calls into cap take no context.
//
// When includeMetadata is false, files are recorded with Size 0 and
// ModTimeUTC set to the Unix epoch instead of being stat'ed: a capture
// used only to know which paths exist, such as the destination side of a
// Remove-mode run, never needs that metadata and skips the syscall per
// file it would otherwise cost.
func Capture(ctx context.Context, cap fsops.Capability, root string, policy relpath.CasePolicy, includeMetadata bool) (Snapshot, error) {
	snap := Empty(root, policy)

	exists, err := cap.DirectoryExists(root)
	if err != nil {
		return Snapshot{}, err
	}
	if !exists {
		return snap, nil
	}

	cancelCheck := func(count int64) error {
		if count&cancellationCheckMask != 0 {
			return nil
		}
		return ctx.Err()
	}

	var group errgroup.Group
	group.Go(func() error {
		var dirCount int64
		return cap.WalkDirectories(root, func(absPath string) error {
			dirCount++
			if err := cancelCheck(dirCount); err != nil {
				return err
			}
			rel, err := relFromAbs(root, absPath)
			if err != nil {
				return nil
			}
			snap.directories.Store(rel.Key(policy), rel)
			return nil
		})
	})
	group.Go(func() error {
		var fileCount int64
		return cap.WalkFiles(root, func(absPath string) error {
			fileCount++
			if err := cancelCheck(fileCount); err != nil {
				return err
			}
			rel, err := relFromAbs(root, absPath)
			if err != nil {
				return nil
			}
			size, modTimeUTC := int64(0), epochUTC
			if includeMetadata {
				size, modTimeUTC, err = cap.GetFileMetadata(absPath)
				if err != nil {
					return nil
				}
			}
			snap.files.Store(rel.Key(policy), FileEntry{Path: rel, Size: size, ModTimeUTC: modTimeUTC})
			return nil
		})
	})

	if err := group.Wait(); err != nil {
		return Snapshot{}, err
	}
	return snap, nil
}

func relFromAbs(root, absPath string) (relpath.RelativePath, error) {
	rel, err := relativeSlashPath(root, absPath)
	if err != nil {
		return relpath.RelativePath{}, err
	}
	return relpath.New(rel)
}
