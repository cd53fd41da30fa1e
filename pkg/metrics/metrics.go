package metrics

import (
	"sync/atomic"

	"github.com/pixelgardenlabs/dirbackup/pkg/plog"
)

// Metrics defines the interface for collecting and reporting the result
// counters of a backup run.
type Metrics interface {
	AddDirectoriesCreated(n int64)
	AddFilesCopied(n int64)
	AddFilesOverwritten(n int64)
	AddFilesDeleted(n int64)
	AddDirectoriesDeleted(n int64)
	Log()
}

// RunMetrics holds the atomic counters for tracking a backup run's progress.
// It is the concrete implementation of the Metrics interface.
type RunMetrics struct {
	DirectoriesCreated atomic.Int64
	FilesCopied        atomic.Int64
	FilesOverwritten   atomic.Int64
	FilesDeleted       atomic.Int64
	DirectoriesDeleted atomic.Int64
}

func (m *RunMetrics) AddDirectoriesCreated(n int64) { m.DirectoriesCreated.Add(n) }
func (m *RunMetrics) AddFilesCopied(n int64)        { m.FilesCopied.Add(n) }
func (m *RunMetrics) AddFilesOverwritten(n int64)   { m.FilesOverwritten.Add(n) }
func (m *RunMetrics) AddFilesDeleted(n int64)       { m.FilesDeleted.Add(n) }
func (m *RunMetrics) AddDirectoriesDeleted(n int64) { m.DirectoriesDeleted.Add(n) }

// Log prints a summary of the backup run.
func (m *RunMetrics) Log() {
	plog.Info("SUM",
		"directoriesCreated", m.DirectoriesCreated.Load(),
		"filesCopied", m.FilesCopied.Load(),
		"filesOverwritten", m.FilesOverwritten.Load(),
		"filesDeleted", m.FilesDeleted.Load(),
		"directoriesDeleted", m.DirectoriesDeleted.Load(),
	)
}

// NoopMetrics is an implementation of the Metrics interface that performs no operations.
// It can be used to disable metrics collection without changing the calling code.
type NoopMetrics struct{}

func (m *NoopMetrics) AddDirectoriesCreated(n int64) {}
func (m *NoopMetrics) AddFilesCopied(n int64)        {}
func (m *NoopMetrics) AddFilesOverwritten(n int64)   {}
func (m *NoopMetrics) AddFilesDeleted(n int64)       {}
func (m *NoopMetrics) AddDirectoriesDeleted(n int64) {}
func (m *NoopMetrics) Log()                          {}

// Statically assert that our types implement the interface.
var _ Metrics = (*RunMetrics)(nil)
var _ Metrics = (*NoopMetrics)(nil)
