package ops

import (
	"context"
	"os"
	"path/filepath"
	"testing"
)

func TestRenameSync_Basic(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "old.txt")
	if err := os.WriteFile(src, []byte("data"), 0644); err != nil {
		t.Fatal(err)
	}

	if err := RenameSync(src, "new.txt"); err != nil {
		t.Fatalf("expected success, got %v", err)
	}
	if _, err := os.Stat(filepath.Join(dir, "new.txt")); err != nil {
		t.Fatal("renamed file should exist")
	}
	if _, err := os.Stat(src); !os.IsNotExist(err) {
		t.Fatal("old name should no longer exist")
	}
}

func TestRenameSync_RejectsPathSeparator(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "old.txt")
	if err := os.WriteFile(src, []byte("data"), 0644); err != nil {
		t.Fatal(err)
	}

	if err := RenameSync(src, "sub/new.txt"); err == nil {
		t.Fatal("expected rejection of a name containing a path separator")
	}
}

func TestRenameSync_RejectsExistingTarget(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "old.txt")
	if err := os.WriteFile(src, []byte("data"), 0644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "new.txt"), []byte("other"), 0644); err != nil {
		t.Fatal(err)
	}

	if err := RenameSync(src, "new.txt"); err == nil {
		t.Fatal("expected rejection when target already exists")
	}
}

func TestRenameAsync_RecordsUndoAndReverses(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "old.txt")
	if err := os.WriteFile(src, []byte("data"), 0644); err != nil {
		t.Fatal(err)
	}

	log := NewUndoLog(10)
	events := RenameAsync(context.Background(), src, "new.txt", log)
	var complete *Complete
	for ev := range events {
		if ev.Kind == EventComplete {
			complete = ev.Complete
		}
	}
	if complete == nil || complete.Successes != 1 {
		t.Fatalf("expected success, got %+v", complete)
	}

	entry, ok := log.Pop()
	if !ok || entry.Operation.Kind != UndoFileRenamed {
		t.Fatalf("expected UndoFileRenamed entry, got %+v ok=%v", entry, ok)
	}

	undoEvents, _ := ExecuteUndo(context.Background(), entry, nil)
	var undoComplete *Complete
	for ev := range undoEvents {
		if ev.Kind == EventComplete {
			undoComplete = ev.Complete
		}
	}
	if undoComplete == nil || undoComplete.Successes != 1 {
		t.Fatalf("expected undo to succeed, got %+v", undoComplete)
	}
	if _, err := os.Stat(src); err != nil {
		t.Fatal("original name should be restored after undo")
	}
}
