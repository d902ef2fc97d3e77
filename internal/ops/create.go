package ops

import (
	"context"
	"fmt"
	"os"
	"time"
)

// CreateFileSync creates a zero-byte file at path, failing if it already
// exists or its parent directory does not.
func CreateFileSync(path string) error {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("create file %s: %w", path, err)
	}
	return f.Close()
}

// CreateDirectorySync creates the directory at path, failing if it
// already exists.
func CreateDirectorySync(path string) error {
	if err := os.Mkdir(path, 0o755); err != nil {
		return fmt.Errorf("create directory %s: %w", path, err)
	}
	return nil
}

// CreateFileAsync wraps CreateFileSync in the operation event contract.
func CreateFileAsync(ctx context.Context, path string, log *UndoLog) <-chan OpEvent {
	return createAsync(path, log, UndoFileCreated, CreateFileSync)
}

// CreateDirectoryAsync wraps CreateDirectorySync in the operation event
// contract.
func CreateDirectoryAsync(ctx context.Context, path string, log *UndoLog) <-chan OpEvent {
	return createAsync(path, log, UndoDirectoryCreated, CreateDirectorySync)
}

func createAsync(path string, log *UndoLog, kind UndoKind, fn func(string) error) <-chan OpEvent {
	events := make(chan OpEvent, 1)
	go func() {
		defer close(events)
		if err := fn(path); err != nil {
			events <- completeEvent(Complete{Failures: 1, Summary: err.Error()})
			return
		}
		if log != nil {
			log.Record(UndoEntry{
				Operation:   UndoableOperation{Kind: kind, Path: path},
				Timestamp:   time.Now(),
				Description: "created " + path,
			})
		}
		events <- completeEvent(Complete{Successes: 1, Summary: "created " + path})
	}()
	return events
}
