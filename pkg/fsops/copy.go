package fsops

import (
	"context"
	"crypto/sha256"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/pixelgardenlabs/dirbackup/pkg/plog"
	"github.com/pixelgardenlabs/dirbackup/pkg/pool"
	"github.com/pixelgardenlabs/dirbackup/pkg/util"
)

// copyBufferPool hands out buffers from 1MiB (the spec's minimum sequential
// read buffer size) up to 64MiB for large files.
var copyBufferPool = pool.NewBucketedBufferPool(1<<20, 1<<26)

const minCopyBufferSize = int64(1 << 20)

// copyFileAtomic copies src to dst via a temp file in dst's directory
// followed by a rename, so a crash or cancellation never leaves a
// partially-written file at the final path. The copy is interrupted at
// each buffer-sized read/write if ctx is cancelled.
func copyFileAtomic(ctx context.Context, src, dst string, modTimeUTC time.Time) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	info, err := in.Stat()
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(filepath.Dir(dst), ".dirbackup-*.tmp")
	if err != nil {
		return err
	}
	tmpPath := tmp.Name()
	succeeded := false
	defer func() {
		tmp.Close()
		if !succeeded {
			_ = os.Remove(tmpPath)
		}
	}()

	bufSize := info.Size()
	if bufSize < minCopyBufferSize {
		bufSize = minCopyBufferSize
	}
	if bufSize > 1<<26 {
		bufSize = 1 << 26
	}
	bufPtr := copyBufferPool.Get(bufSize)
	defer copyBufferPool.Put(bufPtr)

	if err := copyWithCancellation(ctx, tmp, in, *bufPtr); err != nil {
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Chtimes(tmpPath, modTimeUTC, modTimeUTC); err != nil {
		return err
	}
	if err := os.Chmod(tmpPath, util.WithUserWritePermission(util.UserWritableFilePerms)); err != nil {
		return err
	}
	if err := os.Rename(tmpPath, dst); err != nil {
		return err
	}
	succeeded = true
	return nil
}

// copyWithCancellation streams src into dst using buf, checking ctx between
// every chunk so a cancelled run stops mid-copy instead of running to
// completion.
func copyWithCancellation(ctx context.Context, dst io.Writer, src io.Reader, buf []byte) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		n, readErr := src.Read(buf)
		if n > 0 {
			if _, writeErr := dst.Write(buf[:n]); writeErr != nil {
				return writeErr
			}
		}
		if readErr == io.EOF {
			return nil
		}
		if readErr != nil {
			return readErr
		}
	}
}

// hashFileAtomic computes the SHA-256 digest of path, streaming it through
// a pooled buffer and checking ctx for cancellation between reads, the
// same pattern copyFileAtomic uses for the copy side of the pipeline.
func hashFileAtomic(ctx context.Context, path string) ([]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	h := sha256.New()
	bufPtr := copyBufferPool.Get(minCopyBufferSize)
	defer copyBufferPool.Put(bufPtr)
	buf := *bufPtr

	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		n, readErr := f.Read(buf)
		if n > 0 {
			if _, err := h.Write(buf[:n]); err != nil {
				return nil, err
			}
		}
		if readErr == io.EOF {
			break
		}
		if readErr != nil {
			return nil, readErr
		}
	}
	return h.Sum(nil), nil
}

// warnSkipped logs an entry WalkDirectories/WalkFiles could not access,
// per the enumeration default of skipping rather than failing the run.
func warnSkipped(path string, err error) {
	plog.Warn("skipping inaccessible entry", "path", path, "error", fmt.Sprint(err))
}
