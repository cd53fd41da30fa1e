// Package overwrite decides, for each file present on both sides of a
// backup, whether the destination copy needs to be rewritten.
package overwrite

import (
	"context"
	"crypto/subtle"

	"golang.org/x/sync/errgroup"

	"github.com/pixelgardenlabs/dirbackup/pkg/fsops"
	"github.com/pixelgardenlabs/dirbackup/pkg/limiter"
	"github.com/pixelgardenlabs/dirbackup/pkg/plog"
	"github.com/pixelgardenlabs/dirbackup/pkg/relpath"
	"github.com/pixelgardenlabs/dirbackup/pkg/snapshot"
)

// hashMemoryEstimate is the per-concurrent-hash memory budget charged
// against the limiter: one read buffer per side of the comparison.
const hashMemoryEstimate = int64(2 << 20)

// Decision is the outcome of classifying one candidate file.
type Decision struct {
	Path      relpath.RelativePath
	Overwrite bool
}

// Classify evaluates every candidate in candidates against source and
// destination using the three-level equivalence ladder from the spec:
// a size mismatch always means overwrite; matching size and modification
// time means skip without touching content; matching size with a
// differing modification time falls back to a SHA-256 comparison.
// Hashing work runs with up to maxHashConcurrency goroutines in flight.
// Each hash reserves hashMemoryEstimate from mem when that much is free and
// otherwise hashes without a reservation, so mem does not limit how many
// hashes run at once.
func Classify(
	ctx context.Context,
	cap fsops.Capability,
	sourceRoot, destinationRoot string,
	source, destination snapshot.Snapshot,
	candidates []relpath.RelativePath,
	maxHashConcurrency int,
	mem *limiter.Memory,
) ([]Decision, error) {
	decisions := make([]Decision, len(candidates))
	group, gctx := errgroup.WithContext(ctx)
	group.SetLimit(maxHashConcurrency)

	for i, rel := range candidates {
		i, rel := i, rel
		group.Go(func() error {
			decision, err := classifyOne(gctx, cap, sourceRoot, destinationRoot, source, destination, rel, mem)
			if err != nil {
				return err
			}
			decisions[i] = decision
			return nil
		})
	}

	if err := group.Wait(); err != nil {
		return nil, err
	}
	return decisions, nil
}

func classifyOne(
	ctx context.Context,
	cap fsops.Capability,
	sourceRoot, destinationRoot string,
	source, destination snapshot.Snapshot,
	rel relpath.RelativePath,
	mem *limiter.Memory,
) (Decision, error) {
	sourceEntry, ok := source.LookupFile(rel)
	if !ok {
		return Decision{Path: rel, Overwrite: true}, nil
	}
	destEntry, ok := destination.LookupFile(rel)
	if !ok {
		return Decision{Path: rel, Overwrite: true}, nil
	}

	if sourceEntry.Size != destEntry.Size {
		return Decision{Path: rel, Overwrite: true}, nil
	}
	if sourceEntry.ModTimeUTC.Equal(destEntry.ModTimeUTC) {
		return Decision{Path: rel, Overwrite: false}, nil
	}

	acquired := mem.TryAcquire(hashMemoryEstimate)
	if acquired {
		defer mem.Release(hashMemoryEstimate)
	} else {
		plog.Debug("memory budget exhausted, hashing without reservation", "path", rel.String())
	}

	sourcePath := cap.Combine(sourceRoot, rel)
	destPath := cap.Combine(destinationRoot, rel)

	sourceHash, err := cap.HashFile(ctx, sourcePath)
	if err != nil {
		return Decision{}, err
	}
	destHash, err := cap.HashFile(ctx, destPath)
	if err != nil {
		return Decision{}, err
	}

	identical := subtle.ConstantTimeCompare(sourceHash, destHash) == 1
	return Decision{Path: rel, Overwrite: !identical}, nil
}
