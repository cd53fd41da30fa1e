// Package config resolves the options a backup run executes with, merging
// a JSON config file with command-line flags.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/pixelgardenlabs/dirbackup/pkg/backupmode"
	"github.com/pixelgardenlabs/dirbackup/pkg/hook"
)

// Options holds everything a backup run needs, after merging the config
// file (if any) with command-line flags. A flag typed on the command line
// wins over the file.
type Options struct {
	SourcePath      string          `json:"sourcePath"`
	DestinationPath string          `json:"destinationPath"`
	Mode            backupmode.Mode `json:"mode"`

	MaxHashConcurrency   int   `json:"maxHashConcurrency"`
	MaxFileIOConcurrency int   `json:"maxFileIOConcurrency"`
	MemoryBudgetBytes    int64 `json:"memoryBudgetBytes"`

	WriteMetafile bool `json:"writeMetafile"`
	Quiet         bool `json:"quiet"`

	Hooks hook.Plan `json:"hooks"`
}

// Load reads a JSON config file at path, if non-empty, and returns the
// Options it describes. A missing path is not an error; it simply yields
// the zero-value Options for the caller to apply defaults and flags to.
func Load(path string) (Options, error) {
	var opts Options
	if strings.TrimSpace(path) == "" {
		return opts, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return opts, nil
		}
		return opts, fmt.Errorf("reading config file %s: %w", path, err)
	}
	if err := json.Unmarshal(data, &opts); err != nil {
		return opts, fmt.Errorf("parsing config file %s: %w", path, err)
	}
	return opts, nil
}

// Validate checks that Options describes a runnable backup: a source and
// destination path are present. Mode defaults to Sync at the zero value,
// so it never needs validating here.
func (o Options) Validate() error {
	if strings.TrimSpace(o.SourcePath) == "" {
		return fmt.Errorf("source path is required")
	}
	if strings.TrimSpace(o.DestinationPath) == "" {
		return fmt.Errorf("destination path is required")
	}
	return nil
}
