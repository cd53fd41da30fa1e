// Package plan computes the set of filesystem operations needed to
// reconcile a destination snapshot with a source snapshot under a given
// backup mode.
package plan

import (
	"sort"

	"github.com/pixelgardenlabs/dirbackup/pkg/backupmode"
	"github.com/pixelgardenlabs/dirbackup/pkg/relpath"
	"github.com/pixelgardenlabs/dirbackup/pkg/snapshot"
)

// Plan is the ordered set of operations the Executor must perform to
// reconcile the destination with the source under a given mode.
type Plan struct {
	// DirectoriesToCreate lists directories to create at the destination,
	// sorted so that a parent always precedes its children.
	DirectoriesToCreate []relpath.RelativePath
	// FilesToCopy lists files present in the source but absent at the
	// destination.
	FilesToCopy []relpath.RelativePath
	// FilesToOverwrite lists files present at both ends whose content or
	// metadata the Overwrite Detector must still classify (Sync mode
	// only; Add never modifies an entry already at the destination).
	FilesToOverwrite []relpath.RelativePath
	// FilesToDelete lists files present at the destination but absent
	// from the source (Sync and Remove modes only).
	FilesToDelete []relpath.RelativePath
	// DirectoriesToDelete lists the minimal top-level directories to
	// remove at the destination because nothing under them survives in
	// the source (Sync and Remove modes only). Deleting one of these
	// recursively removes everything beneath it, so descendants of
	// another entry in this list are never listed separately.
	DirectoriesToDelete []relpath.RelativePath
}

// IsEmpty reports whether the plan has no work at all.
func (p Plan) IsEmpty() bool {
	return len(p.DirectoriesToCreate) == 0 &&
		len(p.FilesToCopy) == 0 &&
		len(p.FilesToOverwrite) == 0 &&
		len(p.FilesToDelete) == 0 &&
		len(p.DirectoriesToDelete) == 0
}

// Build diffs a source and destination snapshot under mode and produces
// the Plan describing how to reconcile them.
func Build(mode backupmode.Mode, source, destination snapshot.Snapshot, policy relpath.CasePolicy) Plan {
	switch mode {
	case backupmode.Remove:
		return buildRemove(source, destination, policy)
	case backupmode.Add:
		return buildAdd(source, destination, policy)
	default:
		return buildSync(source, destination, policy)
	}
}

// buildAdd copies from source into destination, but never deletes or
// modifies anything already present at the destination: files common to
// both ends are left untouched, since common_files is only populated
// in Sync mode.
func buildAdd(source, destination snapshot.Snapshot, policy relpath.CasePolicy) Plan {
	p := Plan{}
	p.DirectoriesToCreate = missingDirectories(source, destination, policy)

	destFiles := destination.Files()
	for key, entry := range source.Files() {
		if _, ok := destFiles[key]; !ok {
			p.FilesToCopy = append(p.FilesToCopy, entry.Path)
		}
	}
	sortPaths(p.FilesToCopy)
	return p
}

// buildSync makes destination an exact mirror of source: creates missing
// directories, copies missing files, classifies files common to both
// ends for overwrite, and deletes what the source no longer has.
func buildSync(source, destination snapshot.Snapshot, policy relpath.CasePolicy) Plan {
	p := buildAdd(source, destination, policy)

	destFiles := destination.Files()
	for key, entry := range source.Files() {
		if _, ok := destFiles[key]; ok {
			p.FilesToOverwrite = append(p.FilesToOverwrite, entry.Path)
		}
	}
	sortPaths(p.FilesToOverwrite)

	sourceFiles := source.Files()
	for key, entry := range destination.Files() {
		if _, ok := sourceFiles[key]; !ok {
			p.FilesToDelete = append(p.FilesToDelete, entry.Path)
		}
	}
	sortPaths(p.FilesToDelete)

	sourceDirs := source.Directories()
	var extraDirs []relpath.RelativePath
	for key, dir := range destination.Directories() {
		if _, ok := sourceDirs[key]; !ok {
			extraDirs = append(extraDirs, dir)
		}
	}
	p.DirectoriesToDelete = topLevelAntichain(extraDirs, policy)
	return p
}

// buildRemove deletes from destination anything absent from source,
// without copying or updating anything: entries common to both ends
// survive untouched.
func buildRemove(source, destination snapshot.Snapshot, policy relpath.CasePolicy) Plan {
	p := Plan{}
	sourceFiles := source.Files()
	for key, entry := range destination.Files() {
		if _, ok := sourceFiles[key]; !ok {
			p.FilesToDelete = append(p.FilesToDelete, entry.Path)
		}
	}
	sortPaths(p.FilesToDelete)

	sourceDirs := source.Directories()
	var extraDirs []relpath.RelativePath
	for key, dir := range destination.Directories() {
		if _, ok := sourceDirs[key]; !ok {
			extraDirs = append(extraDirs, dir)
		}
	}
	p.DirectoriesToDelete = topLevelAntichain(extraDirs, policy)
	return p
}

// missingDirectories returns every directory in source absent from
// destination, sorted so a parent always precedes its children.
func missingDirectories(source, destination snapshot.Snapshot, policy relpath.CasePolicy) []relpath.RelativePath {
	destDirs := destination.Directories()
	var dirs []relpath.RelativePath
	for key, dir := range source.Directories() {
		if _, ok := destDirs[key]; !ok {
			dirs = append(dirs, dir)
		}
	}
	sortParentsFirst(dirs)
	return dirs
}

func sortPaths(paths []relpath.RelativePath) {
	sort.Slice(paths, func(i, j int) bool {
		return paths[i].String() < paths[j].String()
	})
}

// sortParentsFirst orders dirs so that for any two entries where one is an
// ancestor of the other, the ancestor comes first. Sorting by path depth
// (then lexically, for determinism) achieves this because an ancestor's
// depth is always strictly less than its descendant's.
func sortParentsFirst(dirs []relpath.RelativePath) {
	sort.Slice(dirs, func(i, j int) bool {
		di, dj := dirs[i].Depth(), dirs[j].Depth()
		if di != dj {
			return di < dj
		}
		return dirs[i].String() < dirs[j].String()
	})
}

// topLevelAntichain reduces a set of directories to the minimal subset
// whose recursive deletion removes every directory in the set: any
// directory that has an ancestor also present in the set is dropped.
func topLevelAntichain(dirs []relpath.RelativePath, policy relpath.CasePolicy) []relpath.RelativePath {
	if len(dirs) == 0 {
		return nil
	}
	sortParentsFirst(dirs)

	var kept []relpath.RelativePath
	for _, dir := range dirs {
		covered := false
		for _, k := range kept {
			if dir.HasPrefixDir(k, policy) && !dir.Equal(k, policy) {
				covered = true
				break
			}
		}
		if !covered {
			kept = append(kept, dir)
		}
	}
	sortPaths(kept)
	return kept
}
