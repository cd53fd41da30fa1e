package config

import (
	"os"
	"path/filepath"
	"reflect"
	"testing"

	"github.com/pixelgardenlabs/dirbackup/pkg/backupmode"
)

func TestLoadEmptyPathReturnsZeroValue(t *testing.T) {
	opts, err := Load("")
	if err != nil {
		t.Fatalf("Load(\"\"): %v", err)
	}
	if !reflect.DeepEqual(opts, Options{}) {
		t.Errorf("expected a zero-value Options, got %+v", opts)
	}
}

func TestLoadMissingFileReturnsZeroValue(t *testing.T) {
	missing := filepath.Join(t.TempDir(), "does-not-exist.json")
	opts, err := Load(missing)
	if err != nil {
		t.Fatalf("Load(%s): %v", missing, err)
	}
	if !reflect.DeepEqual(opts, Options{}) {
		t.Errorf("expected a zero-value Options for a missing file, got %+v", opts)
	}
}

func TestLoadParsesJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	content := `{
		"sourcePath": "/data/src",
		"destinationPath": "/data/dst",
		"mode": "add",
		"maxHashConcurrency": 8,
		"writeMetafile": true,
		"quiet": true
	}`
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	opts, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if opts.SourcePath != "/data/src" || opts.DestinationPath != "/data/dst" {
		t.Errorf("unexpected paths: %+v", opts)
	}
	if opts.Mode != backupmode.Add {
		t.Errorf("Mode = %v, want %v", opts.Mode, backupmode.Add)
	}
	if opts.MaxHashConcurrency != 8 || !opts.WriteMetafile || !opts.Quiet {
		t.Errorf("unexpected options: %+v", opts)
	}
}

func TestLoadRejectsMalformedJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	if err := os.WriteFile(path, []byte("{not valid json"), 0644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	if _, err := Load(path); err == nil {
		t.Error("expected an error for malformed JSON")
	}
}

func TestValidate(t *testing.T) {
	cases := []struct {
		name    string
		opts    Options
		wantErr bool
	}{
		{"missing both", Options{}, true},
		{"missing destination", Options{SourcePath: "/a"}, true},
		{"missing source", Options{DestinationPath: "/b"}, true},
		{"valid", Options{SourcePath: "/a", DestinationPath: "/b"}, false},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			err := c.opts.Validate()
			if c.wantErr && err == nil {
				t.Error("expected an error, got nil")
			}
			if !c.wantErr && err != nil {
				t.Errorf("expected no error, got %v", err)
			}
		})
	}
}
