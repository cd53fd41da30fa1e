package snapshot

import (
	"path/filepath"
)

// relativeSlashPath returns absPath's path relative to root, using forward
// slashes so it can be fed directly into relpath.New regardless of host OS.
func relativeSlashPath(root, absPath string) (string, error) {
	rel, err := filepath.Rel(root, absPath)
	if err != nil {
		return "", err
	}
	return filepath.ToSlash(rel), nil
}
