package ops

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestUndoLog_EvictsOldestBeyondCapacity(t *testing.T) {
	log := NewUndoLog(2)
	for i := 0; i < 3; i++ {
		log.Record(UndoEntry{Description: string(rune('a' + i)), Timestamp: time.Now()})
	}
	entries := log.Entries()
	if len(entries) != 2 {
		t.Fatalf("expected capacity-bounded length 2, got %d", len(entries))
	}
	if entries[0].Description != "b" || entries[1].Description != "c" {
		t.Fatalf("expected the oldest entry evicted, got %+v", entries)
	}
}

func TestUndoLog_DefaultCapacity(t *testing.T) {
	log := NewUndoLog(0)
	for i := 0; i < 150; i++ {
		log.Record(UndoEntry{Timestamp: time.Now()})
	}
	if len(log.Entries()) != 100 {
		t.Fatalf("expected default capacity 100, got %d", len(log.Entries()))
	}
}

func TestUndoLog_Pop(t *testing.T) {
	log := NewUndoLog(10)
	if _, ok := log.Pop(); ok {
		t.Fatal("expected Pop on empty log to report ok=false")
	}
	log.Record(UndoEntry{Description: "only"})
	entry, ok := log.Pop()
	if !ok || entry.Description != "only" {
		t.Fatalf("expected to pop the single entry, got %+v ok=%v", entry, ok)
	}
	if len(log.Entries()) != 0 {
		t.Fatal("log should be empty after popping its only entry")
	}
}

func TestExecuteUndo_FilesCopiedDeletesCreatedPaths(t *testing.T) {
	dir := t.TempDir()
	created := filepath.Join(dir, "copy.txt")
	if err := os.WriteFile(created, []byte("x"), 0644); err != nil {
		t.Fatal(err)
	}

	entry := UndoEntry{Operation: UndoableOperation{Kind: UndoFilesCopied, Created: []string{created}}}
	events, control := ExecuteUndo(context.Background(), entry, nil)
	complete := drainComplete(t, events, control, nil)

	if complete.Successes != 1 {
		t.Fatalf("expected the copied file to be deleted, got %+v", complete)
	}
	if _, err := os.Stat(created); !os.IsNotExist(err) {
		t.Fatal("copied file should no longer exist after undo")
	}
}

func TestExecuteUndo_UnknownKindClosesImmediately(t *testing.T) {
	entry := UndoEntry{Operation: UndoableOperation{Kind: UndoKind(255)}}
	events, _ := ExecuteUndo(context.Background(), entry, nil)
	for range events {
		t.Fatal("expected no events for an unrecognized undo kind")
	}
}
