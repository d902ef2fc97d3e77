package ops

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/sadopc/diskaudit/internal/scanner"
)

// CopyOptions configures a Copy operation.
type CopyOptions struct {
	FollowSymlinks      bool
	PreservePermissions bool
	PreserveTimestamps  bool
	DefaultConflict     *ConflictResolution
	ChunkBytes          int
}

// DefaultCopyOptions returns the spec's documented defaults.
func DefaultCopyOptions() CopyOptions {
	return CopyOptions{ChunkBytes: 1 << 20}
}

func (o CopyOptions) chunkBytes() int {
	if o.ChunkBytes > 0 {
		return o.ChunkBytes
	}
	return 1 << 20
}

// CopyAsync copies sources into destination, streaming events over the
// returned channel. The caller answers Conflict events on the returned
// control channel; closing the control channel while a Conflict is
// pending aborts the operation. Cancelling ctx is observed at the next
// file boundary (a file already being copied is finished first) and ends
// the stream with a Complete whose Cancelled flag is set. A receiver that
// stops reading the event channel blocks the operation; that is not
// treated as cancellation.
//
// Grounded on the teacher's ctx.Done()-at-suspension-point discipline
// (scanner/scan.go's scanDir) generalized from directory recursion to
// chunked file copy.
func CopyAsync(ctx context.Context, sources []string, destination string, opts CopyOptions, log *UndoLog) (<-chan OpEvent, chan<- ConflictResolution) {
	events := make(chan OpEvent)
	control := make(chan ConflictResolution)

	go func() {
		defer close(events)
		runCopy(ctx, sources, destination, opts, events, control, log)
	}()

	return events, control
}

func runCopy(ctx context.Context, sources []string, destination string, opts CopyOptions, events chan<- OpEvent, control <-chan ConflictResolution, log *UndoLog) {
	filesTotal, bytesTotal := preScanTotals(ctx, sources, opts.FollowSymlinks)

	cs := &conflictState{fixed: opts.DefaultConflict}
	st := &opRunState{filesTotal: filesTotal, bytesTotal: bytesTotal, start: time.Now()}

	destIsFile := false
	if info, err := os.Stat(destination); err == nil && !info.IsDir() {
		destIsFile = true
	}

	var created []string
	cancelled := false

	for _, src := range sources {
		select {
		case <-ctx.Done():
			cancelled = true
		default:
		}
		if cancelled {
			break
		}

		target := filepath.Join(destination, filepath.Base(src))
		if destIsFile && len(sources) == 1 {
			target = destination
		}

		madePaths, abort, cancel := copyPath(ctx, src, target, opts, cs, st, events, control)
		created = append(created, madePaths...)
		if cancel {
			cancelled = true
		}
		if abort {
			break
		}
	}

	if log != nil && len(created) > 0 {
		log.Record(UndoEntry{
			Operation:   UndoableOperation{Kind: UndoFilesCopied, Created: created},
			Timestamp:   time.Now(),
			Description: fmt.Sprintf("copied %d item(s) to %s", len(created), destination),
		})
	}

	events <- completeEvent(Complete{
		Successes: st.successes,
		Failures:  len(st.errors),
		Summary:   fmt.Sprintf("%d succeeded, %d failed", st.successes, len(st.errors)),
		Cancelled: cancelled,
	})
}

// opRunState accumulates progress counters across one operation. Owned
// by the single goroutine running the operation; never touched
// concurrently.
type opRunState struct {
	filesTotal     int
	bytesTotal     uint64
	filesCompleted int
	bytesProcessed uint64
	successes      int
	errors         []OperationError
	lastEmit       time.Time
	start          time.Time
}

func (s *opRunState) emitProgress(events chan<- OpEvent, currentFile string, force bool) {
	if !force && time.Since(s.lastEmit) < progressEventEvery {
		return
	}
	s.lastEmit = time.Now()
	errsCopy := make([]OperationError, len(s.errors))
	copy(errsCopy, s.errors)
	events <- progressEvent(Progress{
		FilesCompleted: s.filesCompleted,
		FilesTotal:     s.filesTotal,
		BytesProcessed: s.bytesProcessed,
		BytesTotal:     s.bytesTotal,
		CurrentFile:    currentFile,
		Errors:         errsCopy,
	})
}

// preScanTotals walks each source to compute files_total/bytes_total,
// reusing the scanner's hardlink-dedup aggregation for directory
// sources per spec §4.4.1.
func preScanTotals(ctx context.Context, sources []string, followSymlinks bool) (int, uint64) {
	var files int
	var bytes uint64
	for _, src := range sources {
		info, err := os.Lstat(src)
		if err != nil {
			continue
		}
		if !info.IsDir() {
			files++
			bytes += uint64(info.Size())
			continue
		}
		cfg := scanner.DefaultConfig(src)
		cfg.FollowSymlinks = followSymlinks
		tree, err := scanner.New().Scan(ctx, cfg)
		if err != nil {
			continue
		}
		files += int(tree.Stats.TotalFiles)
		bytes += tree.Stats.TotalSize
	}
	return files, bytes
}

// copyPath copies src (file or directory) to target, recursing
// depth-first for directories. Returns the paths actually created (for
// the undo log), whether the operation should abort, and whether
// cancellation was observed.
func copyPath(ctx context.Context, src, target string, opts CopyOptions, cs *conflictState, st *opRunState, events chan<- OpEvent, control <-chan ConflictResolution) (created []string, abort, cancelled bool) {
	select {
	case <-ctx.Done():
		return nil, false, true
	default:
	}

	info, err := os.Lstat(src)
	if err != nil {
		st.errors = append(st.errors, OperationError{Path: src, Cause: err})
		st.emitProgress(events, src, true)
		return nil, false, false
	}

	if info.Mode()&os.ModeSymlink != 0 && !opts.FollowSymlinks {
		return copySymlink(src, target, cs, st, events, control)
	}

	if info.IsDir() {
		return copyDir(ctx, src, target, opts, cs, st, events, control)
	}
	return copyFile(src, target, info, opts, cs, st, events, control)
}

func copyDir(ctx context.Context, src, target string, opts CopyOptions, cs *conflictState, st *opRunState, events chan<- OpEvent, control <-chan ConflictResolution) (created []string, abort, cancelled bool) {
	if err := os.MkdirAll(target, 0o755); err != nil {
		st.errors = append(st.errors, OperationError{Path: src, Cause: err})
		return nil, false, false
	}
	created = append(created, target)

	entries, err := os.ReadDir(src)
	if err != nil {
		st.errors = append(st.errors, OperationError{Path: src, Cause: err})
		return created, false, false
	}

	for _, e := range entries {
		select {
		case <-ctx.Done():
			return created, false, true
		default:
		}
		childCreated, childAbort, childCancel := copyPath(ctx, filepath.Join(src, e.Name()), filepath.Join(target, e.Name()), opts, cs, st, events, control)
		created = append(created, childCreated...)
		if childCancel {
			return created, false, true
		}
		if childAbort {
			return created, true, false
		}
	}
	return created, false, false
}

func copySymlink(src, target string, cs *conflictState, st *opRunState, events chan<- OpEvent, control <-chan ConflictResolution) (created []string, abort, cancelled bool) {
	linkTarget, err := os.Readlink(src)
	if err != nil {
		st.errors = append(st.errors, OperationError{Path: src, Cause: err})
		return nil, false, false
	}

	finalTarget, proceed, wasAbort := resolveTarget(target, src, cs, events, control)
	if !proceed {
		return nil, wasAbort, false
	}

	if err := os.Symlink(linkTarget, finalTarget); err != nil {
		st.errors = append(st.errors, OperationError{Path: src, Cause: err})
		return nil, false, false
	}
	st.successes++
	st.filesCompleted++
	st.emitProgress(events, src, false)
	return []string{finalTarget}, false, false
}

// resolveTarget applies the conflict protocol if target already exists.
// proceed is false when the path should be skipped entirely (Skip) or
// the whole operation should stop (Abort, indicated via abort=true).
func resolveTarget(target, src string, cs *conflictState, events chan<- OpEvent, control <-chan ConflictResolution) (finalTarget string, proceed, abort bool) {
	if _, err := os.Lstat(target); os.IsNotExist(err) {
		return target, true, false
	}

	resolution, ok := cs.resolve(events, control, src, target)
	if !ok {
		return "", false, true
	}
	switch resolution {
	case Skip:
		return "", false, false
	case Overwrite:
		return target, true, false
	case AutoRename:
		renamed, err := autoRenamePath(target)
		if err != nil {
			return "", false, false
		}
		return renamed, true, false
	default:
		return "", false, false
	}
}

func copyFile(src, target string, info os.FileInfo, opts CopyOptions, cs *conflictState, st *opRunState, events chan<- OpEvent, control <-chan ConflictResolution) (created []string, abort, cancelled bool) {
	finalTarget, proceed, wasAbort := resolveTarget(target, src, cs, events, control)
	if !proceed {
		return nil, wasAbort, false
	}

	if err := copyFileContents(src, finalTarget, opts.chunkBytes(), st, events); err != nil {
		st.errors = append(st.errors, OperationError{Path: src, Cause: err})
		return nil, false, false
	}

	if opts.PreservePermissions {
		_ = os.Chmod(finalTarget, info.Mode().Perm())
	}
	if opts.PreserveTimestamps {
		_ = os.Chtimes(finalTarget, info.ModTime(), info.ModTime())
	}

	st.successes++
	st.filesCompleted++
	st.emitProgress(events, src, false)
	return []string{finalTarget}, false, false
}

// copyFileContents streams src to dst in chunkBytes slices, emitting a
// throttled Progress event after each chunk.
func copyFileContents(src, dst string, chunkBytes int, st *opRunState, events chan<- OpEvent) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	defer out.Close()

	buf := make([]byte, chunkBytes)
	for {
		n, readErr := in.Read(buf)
		if n > 0 {
			if _, err := out.Write(buf[:n]); err != nil {
				return err
			}
			st.bytesProcessed += uint64(n)
			st.emitProgress(events, src, false)
		}
		if readErr == io.EOF {
			return nil
		}
		if readErr != nil {
			return readErr
		}
	}
}
