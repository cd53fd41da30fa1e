package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/pixelgardenlabs/dirbackup/pkg/backupmode"
)

func TestResolveOptionsFlagsOnly(t *testing.T) {
	args := cliArgs{
		source:      "/data/src",
		destination: "/data/dst",
		mode:        "add",
		quiet:       true,
		set:         map[string]bool{"source": true, "dest": true, "mode": true, "quiet": true},
	}

	opts, err := resolveOptions(args)
	if err != nil {
		t.Fatalf("resolveOptions: %v", err)
	}
	if opts.SourcePath != "/data/src" || opts.DestinationPath != "/data/dst" {
		t.Errorf("unexpected paths: %+v", opts)
	}
	if opts.Mode != backupmode.Add {
		t.Errorf("Mode = %v, want %v", opts.Mode, backupmode.Add)
	}
	if !opts.Quiet {
		t.Error("expected Quiet to be true")
	}
}

func TestResolveOptionsFlagsOverrideConfigFile(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), "config.json")
	content := `{"sourcePath": "/config/src", "destinationPath": "/config/dst", "mode": "sync"}`
	if err := os.WriteFile(configPath, []byte(content), 0644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	args := cliArgs{
		configPath:  configPath,
		source:      "/flag/src",
		destination: "/config/dst",
		mode:        "sync",
		set:         map[string]bool{"source": true},
	}

	opts, err := resolveOptions(args)
	if err != nil {
		t.Fatalf("resolveOptions: %v", err)
	}
	if opts.SourcePath != "/flag/src" {
		t.Errorf("expected the explicitly-set flag to override the config file, got SourcePath=%q", opts.SourcePath)
	}
	if opts.DestinationPath != "/config/dst" {
		t.Errorf("expected the config file's destination to survive since the flag wasn't set, got %q", opts.DestinationPath)
	}
}

func TestResolveOptionsNoConfigUsesFlagDefaults(t *testing.T) {
	args := cliArgs{
		source:        "/data/src",
		destination:   "/data/dst",
		mode:          "sync",
		writeMetafile: true,
		set:           map[string]bool{"source": true, "dest": true},
	}

	opts, err := resolveOptions(args)
	if err != nil {
		t.Fatalf("resolveOptions: %v", err)
	}
	if !opts.WriteMetafile {
		t.Error("expected WriteMetafile to fall back to the flag default (true) when no config file is given")
	}
	if opts.Mode != backupmode.Sync {
		t.Errorf("Mode = %v, want %v", opts.Mode, backupmode.Sync)
	}
}

func TestResolveOptionsConfigFileMetafileValueWins(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), "config.json")
	content := `{"sourcePath": "/config/src", "destinationPath": "/config/dst", "writeMetafile": false}`
	if err := os.WriteFile(configPath, []byte(content), 0644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	args := cliArgs{
		configPath:    configPath,
		writeMetafile: true, // the flag default, not explicitly typed by the user
		set:           map[string]bool{},
	}

	opts, err := resolveOptions(args)
	if err != nil {
		t.Fatalf("resolveOptions: %v", err)
	}
	if opts.WriteMetafile {
		t.Error("expected the config file's writeMetafile=false to survive since the flag wasn't explicitly set")
	}
}

func TestResolveOptionsRejectsUnknownMode(t *testing.T) {
	args := cliArgs{
		source:      "/a",
		destination: "/b",
		mode:        "bogus",
		set:         map[string]bool{"mode": true},
	}
	if _, err := resolveOptions(args); err == nil {
		t.Error("expected an error for an unrecognized mode")
	}
}
