package ops

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// MoveOptions configures a Move operation. It carries a subset of
// CopyOptions' fields: there is no PreservePermissions or
// PreserveTimestamps, and the copy+delete fallback does not carry
// permissions or timestamps over. Kept as a distinct type so call sites
// read as move-specific; the shared fields' zero values and defaults
// line up.
type MoveOptions struct {
	FollowSymlinks  bool
	DefaultConflict *ConflictResolution
	ChunkBytes      int
}

// DefaultMoveOptions returns sensible defaults.
func DefaultMoveOptions() MoveOptions {
	return MoveOptions{ChunkBytes: 1 << 20}
}

func (o MoveOptions) toCopyOptions() CopyOptions {
	return CopyOptions{FollowSymlinks: o.FollowSymlinks, DefaultConflict: o.DefaultConflict, ChunkBytes: o.ChunkBytes}
}

// MoveAsync moves sources into destination. Same-device moves use an
// atomic rename; cross-device or failed renames fall back to copy, then
// delete of the source once the copy of that item fully succeeds, per
// spec §4.4.2.
func MoveAsync(ctx context.Context, sources []string, destination string, opts MoveOptions, log *UndoLog) (<-chan OpEvent, chan<- ConflictResolution) {
	pairs := make([]PathPair, 0, len(sources))
	destIsFile := false
	if info, err := os.Stat(destination); err == nil && !info.IsDir() {
		destIsFile = true
	}
	for _, src := range sources {
		target := filepath.Join(destination, filepath.Base(src))
		if destIsFile && len(sources) == 1 {
			target = destination
		}
		pairs = append(pairs, PathPair{From: src, To: target})
	}
	return moveAsyncPairs(ctx, pairs, opts, log)
}

// moveAsyncPairs moves each (from, to) pair directly, without
// recomputing destination basenames — used both by MoveAsync and by
// undo's reversal of a prior move.
func moveAsyncPairs(ctx context.Context, pairs []PathPair, opts MoveOptions, log *UndoLog) (<-chan OpEvent, chan<- ConflictResolution) {
	events := make(chan OpEvent)
	control := make(chan ConflictResolution)

	go func() {
		defer close(events)

		sources := make([]string, len(pairs))
		for i, p := range pairs {
			sources[i] = p.From
		}
		filesTotal, bytesTotal := preScanTotals(ctx, sources, opts.FollowSymlinks)

		cs := &conflictState{fixed: opts.DefaultConflict}
		st := &opRunState{filesTotal: filesTotal, bytesTotal: bytesTotal, start: time.Now()}

		var moved []PathPair
		cancelled := false

		for _, p := range pairs {
			select {
			case <-ctx.Done():
				cancelled = true
			default:
			}
			if cancelled {
				break
			}

			finalDest, proceed, wasAbort := resolveTarget(p.To, p.From, cs, events, control)
			if !proceed {
				if wasAbort {
					break
				}
				continue
			}

			if err := moveOne(ctx, p.From, finalDest, opts, st, events); err != nil {
				st.errors = append(st.errors, OperationError{Path: p.From, Cause: err})
				continue
			}
			moved = append(moved, PathPair{From: p.From, To: finalDest})
			st.successes++
			st.filesCompleted++
			st.emitProgress(events, p.From, false)
		}

		if log != nil && len(moved) > 0 {
			log.Record(UndoEntry{
				Operation:   UndoableOperation{Kind: UndoFilesMoved, Pairs: moved},
				Timestamp:   time.Now(),
				Description: fmt.Sprintf("moved %d item(s)", len(moved)),
			})
		}

		events <- completeEvent(Complete{
			Successes: st.successes,
			Failures:  len(st.errors),
			Summary:   fmt.Sprintf("%d succeeded, %d failed", st.successes, len(st.errors)),
			Cancelled: cancelled,
		})
	}()

	return events, control
}

// moveOne moves one item, preferring an atomic rename and falling back
// to copy-then-delete on cross-device failure.
func moveOne(ctx context.Context, src, dst string, opts MoveOptions, st *opRunState, events chan<- OpEvent) error {
	if err := os.Rename(src, dst); err == nil {
		return nil
	}
	// Rename failed, whether from crossing devices or any other reason
	// ("or rename failure" per spec) — fall back to copy then delete.

	info, err := os.Lstat(src)
	if err != nil {
		return err
	}

	if info.IsDir() {
		if err := copyDirPlain(ctx, src, dst, opts.toCopyOptions(), st, events); err != nil {
			return err
		}
	} else {
		if err := copyFileContents(src, dst, opts.toCopyOptions().chunkBytes(), st, events); err != nil {
			return err
		}
	}

	return removeAll(src)
}

// copyDirPlain copies a directory tree for the move fallback path,
// without re-running the conflict protocol (the top-level conflict was
// already resolved by the caller).
func copyDirPlain(ctx context.Context, src, dst string, opts CopyOptions, st *opRunState, events chan<- OpEvent) error {
	if err := os.MkdirAll(dst, 0o755); err != nil {
		return err
	}
	entries, err := os.ReadDir(src)
	if err != nil {
		return err
	}
	for _, e := range entries {
		select {
		case <-ctx.Done():
			return context.Canceled
		default:
		}
		childSrc := filepath.Join(src, e.Name())
		childDst := filepath.Join(dst, e.Name())
		info, err := os.Lstat(childSrc)
		if err != nil {
			return err
		}
		if info.IsDir() {
			if err := copyDirPlain(ctx, childSrc, childDst, opts, st, events); err != nil {
				return err
			}
			continue
		}
		if err := copyFileContents(childSrc, childDst, opts.chunkBytes(), st, events); err != nil {
			return err
		}
	}
	return nil
}

