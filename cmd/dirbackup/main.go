package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"sync/atomic"
	"time"

	"github.com/pixelgardenlabs/dirbackup/pkg/backupmode"
	"github.com/pixelgardenlabs/dirbackup/pkg/buildinfo"
	"github.com/pixelgardenlabs/dirbackup/pkg/config"
	"github.com/pixelgardenlabs/dirbackup/pkg/executor"
	"github.com/pixelgardenlabs/dirbackup/pkg/orchestrator"
	"github.com/pixelgardenlabs/dirbackup/pkg/plog"
	"github.com/pixelgardenlabs/dirbackup/pkg/relpath"
)

// Exit codes, per the CLI contract: success, general failure, a
// malformed invocation, and an interrupted run.
const (
	exitSuccess         = 0
	exitFailure         = 1
	exitInvalidArgument = 2
	exitInterrupted     = 130
)

func init() {
	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), "Usage of %s (version %s):\n", buildinfo.Name, buildinfo.Version)
		fmt.Fprintf(flag.CommandLine.Output(), "Reconciles a destination directory tree against a source tree.\n\n")
		flag.PrintDefaults()
	}
}

type cliArgs struct {
	configPath    string
	source        string
	destination   string
	mode          string
	quiet         bool
	writeMetafile bool
	versionFlag   bool

	// set records which flags the user passed explicitly, so merging
	// config-file values never clobbers a flag they actually typed.
	set map[string]bool
}

func parseArgs() cliArgs {
	var a cliArgs
	flag.StringVar(&a.configPath, "config", "", "Path to a JSON config file; command-line flags override its values")
	flag.StringVar(&a.source, "source", "", "Source directory to reconcile from")
	flag.StringVar(&a.destination, "dest", "", "Destination directory to reconcile")
	flag.StringVar(&a.mode, "mode", "sync", "Reconciliation mode: 'sync', 'add', or 'remove'")
	flag.BoolVar(&a.quiet, "quiet", false, "Suppress informational output")
	flag.BoolVar(&a.writeMetafile, "metafile", true, "Write a run-summary file at the destination root after a successful run")
	flag.BoolVar(&a.versionFlag, "version", false, "Print the application version and exit")
	flag.Parse()

	a.set = make(map[string]bool)
	flag.Visit(func(f *flag.Flag) { a.set[f.Name] = true })
	return a
}

// resolveOptions merges a config file (if one was given) with the flags
// the user actually typed. A flag beats the config file; the config file
// beats the flag's default.
func resolveOptions(a cliArgs) (config.Options, error) {
	opts, err := config.Load(a.configPath)
	if err != nil {
		return config.Options{}, err
	}
	hasConfig := a.configPath != ""

	if a.set["source"] || (!hasConfig && opts.SourcePath == "") {
		opts.SourcePath = a.source
	}
	if a.set["dest"] || (!hasConfig && opts.DestinationPath == "") {
		opts.DestinationPath = a.destination
	}
	if a.set["mode"] || !hasConfig {
		mode, err := backupmode.Parse(a.mode)
		if err != nil {
			return config.Options{}, err
		}
		opts.Mode = mode
	}
	if a.set["quiet"] || !hasConfig {
		opts.Quiet = a.quiet
	}
	if a.set["metafile"] || !hasConfig {
		opts.WriteMetafile = a.writeMetafile
	}
	return opts, nil
}

func main() {
	args := parseArgs()

	if args.versionFlag {
		fmt.Printf("%s version %s\n", buildinfo.Name, buildinfo.Version)
		os.Exit(exitSuccess)
	}

	opts, err := resolveOptions(args)
	if err != nil {
		fmt.Fprintln(flag.CommandLine.Output(), err)
		os.Exit(exitInvalidArgument)
	}

	plog.SetQuiet(opts.Quiet)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt)
	var interrupted atomic.Bool
	go func() {
		<-sigChan
		interrupted.Store(true)
		cancel()
	}()

	exitCode := run(ctx, opts)
	if interrupted.Load() && exitCode == exitFailure {
		exitCode = exitInterrupted
	}
	os.Exit(exitCode)
}

func run(ctx context.Context, opts config.Options) int {
	if err := opts.Validate(); err != nil {
		fmt.Fprintln(flag.CommandLine.Output(), err)
		flag.Usage()
		return exitInvalidArgument
	}

	plog.Info("starting "+buildinfo.Name, "version", buildinfo.Version, "mode", opts.Mode.String(), "pid", os.Getpid())

	backupOpts := executor.DefaultBackupOptions()
	if opts.MaxHashConcurrency > 0 {
		backupOpts.MaxHashConcurrency = opts.MaxHashConcurrency
	}
	if opts.MaxFileIOConcurrency > 0 {
		backupOpts.MaxFileIOConcurrency = opts.MaxFileIOConcurrency
	}

	req := orchestrator.Request{
		SourcePath:      opts.SourcePath,
		DestinationPath: opts.DestinationPath,
		Mode:            opts.Mode,
		Options:         backupOpts,
		CasePolicy:      relpath.DefaultCasePolicy(),
		HookPlan:        opts.Hooks,
		MemoryBudget:    opts.MemoryBudgetBytes,
		WriteMetafile:   opts.WriteMetafile,
		Report:          logProgress,
	}

	startTime := time.Now()
	result, err := orchestrator.Execute(ctx, req)
	duration := time.Since(startTime).Round(time.Millisecond)

	if err != nil {
		if ctx.Err() != nil {
			plog.Error(buildinfo.Name+" cancelled", "error", err, "duration", duration)
			return exitInterrupted
		}
		if orchErr, ok := err.(*orchestrator.Error); ok && orchErr.Kind == orchestrator.InvalidArgument {
			plog.Error(buildinfo.Name+" given an invalid request", "error", err)
			return exitInvalidArgument
		}
		plog.Error(buildinfo.Name+" exited with error", "error", err, "duration", duration)
		return exitFailure
	}

	plog.Info(buildinfo.Name+" finished successfully",
		"duration", duration,
		"directoriesCreated", result.DirectoriesCreated,
		"filesCopied", result.FilesCopied,
		"filesOverwritten", result.FilesOverwritten,
		"filesDeleted", result.FilesDeleted,
		"directoriesDeleted", result.DirectoriesDeleted,
	)
	return exitSuccess
}

func logProgress(p executor.BackupProgress) {
	plog.Debug("progress", "phase", p.Phase, "completed", p.Completed, "total", p.Total)
}
