package ops

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// RenameSync renames source to newName within source's own directory.
// Synchronous and atomic per spec §4.4.3; fails if newName contains a
// path separator, is empty, or the target already exists.
func RenameSync(source, newName string) error {
	if newName == "" {
		return fmt.Errorf("rename %s: new name must not be empty", source)
	}
	if strings.ContainsRune(newName, os.PathSeparator) || strings.ContainsRune(newName, '/') {
		return fmt.Errorf("rename %s: new name must not contain a path separator", source)
	}

	target := filepath.Join(filepath.Dir(source), newName)
	if _, err := os.Lstat(target); err == nil {
		return fmt.Errorf("rename %s: target %s already exists", source, target)
	}

	return os.Rename(source, target)
}

// RenameAsync wraps RenameSync in the operation event-stream contract:
// exactly one Complete event, no Progress or Conflict events (a rename
// either atomically succeeds or fails outright).
func RenameAsync(ctx context.Context, source, newName string, log *UndoLog) <-chan OpEvent {
	events := make(chan OpEvent, 1)
	go func() {
		defer close(events)

		oldName := filepath.Base(source)
		if err := RenameSync(source, newName); err != nil {
			events <- completeEvent(Complete{Failures: 1, Summary: err.Error()})
			return
		}

		if log != nil {
			log.Record(UndoEntry{
				Operation: UndoableOperation{
					Kind:    UndoFileRenamed,
					Path:    filepath.Dir(source),
					OldName: oldName,
					NewName: newName,
				},
				Timestamp:   time.Now(),
				Description: fmt.Sprintf("renamed %s to %s", oldName, newName),
			})
		}
		events <- completeEvent(Complete{Successes: 1, Summary: "renamed to " + newName})
	}()
	return events
}
