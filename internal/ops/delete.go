package ops

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/sadopc/diskaudit/internal/util"
)

// DeleteOptions configures a Delete operation.
type DeleteOptions struct {
	// UseTrash delegates to the host recycle service instead of
	// unlinking; see spec §4.4.5.
	UseTrash bool
}

// resolveUnderRoot resolves path and rootPath to real (symlink-free,
// except for path's own final component) absolute paths and confirms
// path lies strictly inside rootPath. Grounded on the teacher's
// Delete(): resolving the PARENT directory (not the final component)
// catches traversal through a symlinked directory while still allowing a
// symlink itself to be the delete target.
func resolveUnderRoot(path, rootPath string) (string, error) {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return "", fmt.Errorf("cannot resolve path %s: %w", path, err)
	}
	absRoot, err := filepath.Abs(rootPath)
	if err != nil {
		return "", fmt.Errorf("cannot resolve root %s: %w", rootPath, err)
	}

	realParent, err := filepath.EvalSymlinks(filepath.Dir(absPath))
	if err != nil {
		return "", fmt.Errorf("cannot resolve parent of %s: %w", absPath, err)
	}
	realRoot, err := filepath.EvalSymlinks(absRoot)
	if err != nil {
		return "", fmt.Errorf("cannot resolve root %s: %w", absRoot, err)
	}

	realPath := filepath.Join(realParent, filepath.Base(absPath))

	if realPath == realRoot || !util.IsWithin(realRoot, realPath) {
		return "", fmt.Errorf("refusing to delete %s: outside scan root %s", absPath, absRoot)
	}
	return realPath, nil
}

// Delete removes a file or directory at path, constrained to descendants
// of rootPath. Directories are removed via the symlink-safe openat/
// unlinkat walk (deleteResolvedPath); a symlink itself is always safe to
// remove (it unlinks the link, never the target).
func Delete(path string, rootPath string) error {
	realPath, err := resolveUnderRoot(path, rootPath)
	if err != nil {
		return err
	}
	return deleteResolved(realPath)
}

// deleteResolved removes an already-resolved path without further
// containment checks.
func deleteResolved(path string) error {
	return deleteResolvedPath(filepath.Dir(path), filepath.Base(path))
}

// removeAll removes path (file or directory) via the same symlink-safe
// mechanism as Delete, without a root-containment check — used
// internally by the move-fallback's delete-after-copy step, where the
// source path was already the caller's own.
func removeAll(path string) error {
	return deleteResolved(path)
}

// DeleteAsync deletes targets, either permanently or via the host trash
// service, streaming Progress events per file.
func DeleteAsync(ctx context.Context, targets []string, opts DeleteOptions, log *UndoLog) (<-chan OpEvent, chan<- ConflictResolution) {
	events := make(chan OpEvent)
	control := make(chan ConflictResolution)

	go func() {
		defer close(events)

		st := &opRunState{filesTotal: len(targets), start: time.Now()}
		var trashed []PathPair
		cancelled := false

		for _, target := range targets {
			select {
			case <-ctx.Done():
				cancelled = true
			default:
			}
			if cancelled {
				break
			}

			if opts.UseTrash {
				trashPath, err := moveToTrash(target)
				if err != nil {
					st.errors = append(st.errors, OperationError{Path: target, Cause: err})
				} else {
					st.successes++
					if trashPath != "" {
						trashed = append(trashed, PathPair{From: target, To: trashPath})
					}
				}
			} else if err := deleteResolved(target); err != nil {
				st.errors = append(st.errors, OperationError{Path: target, Cause: err})
			} else {
				st.successes++
			}

			st.filesCompleted++
			st.emitProgress(events, target, true)
		}

		if log != nil && len(trashed) > 0 {
			log.Record(UndoEntry{
				Operation:   UndoableOperation{Kind: UndoFilesDeleted, Pairs: trashed},
				Timestamp:   time.Now(),
				Description: fmt.Sprintf("deleted %d item(s) to trash", len(trashed)),
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

// restoreFromTrashAsync reverses a FilesDeleted undo entry: each pair's
// trash path is moved back to its original location. Best-effort — if
// the original location is now occupied, the conflict protocol applies.
func restoreFromTrashAsync(ctx context.Context, pairs []PathPair, log *UndoLog) (<-chan OpEvent, chan<- ConflictResolution) {
	restorePairs := make([]PathPair, 0, len(pairs))
	for _, p := range pairs {
		if p.To == "" {
			continue // undo degraded to unreversible for this item
		}
		restorePairs = append(restorePairs, PathPair{From: p.To, To: p.From})
	}
	return moveAsyncPairs(ctx, restorePairs, MoveOptions{}, nil)
}
