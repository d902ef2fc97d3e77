package ops

import (
	"context"
	"os"
	"path/filepath"
	"testing"
)

func TestMoveAsync_SameDeviceUsesRename(t *testing.T) {
	root := t.TempDir()
	src := filepath.Join(root, "src")
	dst := filepath.Join(root, "dst")
	if err := os.Mkdir(src, 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.Mkdir(dst, 0755); err != nil {
		t.Fatal(err)
	}
	srcFile := filepath.Join(src, "a.txt")
	if err := os.WriteFile(srcFile, []byte("hello"), 0644); err != nil {
		t.Fatal(err)
	}

	events, control := MoveAsync(context.Background(), []string{srcFile}, dst, DefaultMoveOptions(), nil)
	complete := drainComplete(t, events, control, nil)

	if complete.Successes != 1 || complete.Failures != 0 {
		t.Fatalf("expected 1 success, got %+v", complete)
	}
	if _, err := os.Stat(srcFile); !os.IsNotExist(err) {
		t.Fatal("source should no longer exist after move")
	}
	data, err := os.ReadFile(filepath.Join(dst, "a.txt"))
	if err != nil || string(data) != "hello" {
		t.Fatalf("moved file content mismatch: %v %q", err, data)
	}
}

func TestMoveAsync_RecordsUndoAndReversesCleanly(t *testing.T) {
	root := t.TempDir()
	src := filepath.Join(root, "src")
	dst := filepath.Join(root, "dst")
	if err := os.Mkdir(src, 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.Mkdir(dst, 0755); err != nil {
		t.Fatal(err)
	}
	srcFile := filepath.Join(src, "a.txt")
	if err := os.WriteFile(srcFile, []byte("hello"), 0644); err != nil {
		t.Fatal(err)
	}

	log := NewUndoLog(10)
	events, control := MoveAsync(context.Background(), []string{srcFile}, dst, DefaultMoveOptions(), log)
	drainComplete(t, events, control, nil)

	entry, ok := log.Pop()
	if !ok || entry.Operation.Kind != UndoFilesMoved {
		t.Fatalf("expected a UndoFilesMoved entry, got %+v ok=%v", entry, ok)
	}

	undoEvents, undoControl := ExecuteUndo(context.Background(), entry, nil)
	undoComplete := drainComplete(t, undoEvents, undoControl, nil)
	if undoComplete.Successes != 1 {
		t.Fatalf("expected undo to restore the file, got %+v", undoComplete)
	}
	if _, err := os.Stat(srcFile); err != nil {
		t.Fatalf("source should be restored after undo: %v", err)
	}
	if _, err := os.Stat(filepath.Join(dst, "a.txt")); !os.IsNotExist(err) {
		t.Fatal("moved copy should no longer exist at destination after undo")
	}
}

// TestMoveOne_FallsBackToCopyAndDeleteOnRenameFailure exercises moveOne's
// copy+delete fallback path directly. A real cross-device rename failure
// cannot be constructed portably inside a single temp directory, so this
// forces os.Rename to fail a different way: renaming a directory onto an
// existing non-empty directory fails with ENOTEMPTY.
func TestMoveOne_FallsBackToCopyAndDeleteOnRenameFailure(t *testing.T) {
	root := t.TempDir()
	srcDir := filepath.Join(root, "src")
	dstDir := filepath.Join(root, "dst")
	if err := os.Mkdir(srcDir, 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(srcDir, "x.txt"), []byte("from-src"), 0644); err != nil {
		t.Fatal(err)
	}
	if err := os.Mkdir(dstDir, 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dstDir, "y.txt"), []byte("from-dst"), 0644); err != nil {
		t.Fatal(err)
	}

	st := &opRunState{}
	events := make(chan OpEvent, 64)
	if err := moveOne(context.Background(), srcDir, dstDir, DefaultMoveOptions(), st, events); err != nil {
		t.Fatalf("expected fallback copy+delete to succeed, got %v", err)
	}
	if _, err := os.Stat(srcDir); !os.IsNotExist(err) {
		t.Fatal("source directory should be removed after fallback move")
	}
	if _, err := os.Stat(filepath.Join(dstDir, "x.txt")); err != nil {
		t.Fatalf("expected x.txt merged into destination: %v", err)
	}
	if _, err := os.Stat(filepath.Join(dstDir, "y.txt")); err != nil {
		t.Fatal("pre-existing destination content should survive the merge")
	}
}

func TestMoveAsync_PreScanTotalsIncludeDirectoryContents(t *testing.T) {
	root := t.TempDir()
	src := filepath.Join(root, "src")
	dst := filepath.Join(root, "dst")
	nested := filepath.Join(src, "docs", "sub")
	if err := os.MkdirAll(nested, 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.Mkdir(dst, 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(src, "docs", "a.txt"), []byte("12345"), 0644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(nested, "b.txt"), []byte("1234567890"), 0644); err != nil {
		t.Fatal(err)
	}

	events, control := MoveAsync(context.Background(), []string{filepath.Join(src, "docs")}, dst, DefaultMoveOptions(), nil)

	var lastProgress *Progress
	for ev := range events {
		switch ev.Kind {
		case EventProgress:
			lastProgress = ev.Progress
		case EventConflict:
			control <- Abort
		case EventComplete:
			if ev.Complete.Failures != 0 {
				t.Fatalf("unexpected failures: %+v", ev.Complete)
			}
		}
	}

	if lastProgress == nil {
		t.Fatal("expected at least one progress event")
	}
	if lastProgress.FilesTotal != 2 {
		t.Fatalf("expected pre-scan to count 2 files across the moved directory, got %d", lastProgress.FilesTotal)
	}
	if lastProgress.BytesTotal != 15 {
		t.Fatalf("expected pre-scan to sum directory contents to 15 bytes, got %d", lastProgress.BytesTotal)
	}
}

func TestMoveAsync_ConflictAutoRename(t *testing.T) {
	root := t.TempDir()
	src := filepath.Join(root, "src")
	dst := filepath.Join(root, "dst")
	if err := os.Mkdir(src, 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.Mkdir(dst, 0755); err != nil {
		t.Fatal(err)
	}
	srcFile := filepath.Join(src, "a.txt")
	if err := os.WriteFile(srcFile, []byte("new"), 0644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dst, "a.txt"), []byte("old"), 0644); err != nil {
		t.Fatal(err)
	}

	events, control := MoveAsync(context.Background(), []string{srcFile}, dst, DefaultMoveOptions(), nil)
	complete := drainComplete(t, events, control, func(c Conflict) ConflictResolution { return AutoRename })

	if complete.Successes != 1 {
		t.Fatalf("expected 1 success, got %+v", complete)
	}
	if _, err := os.Stat(filepath.Join(dst, "a (1).txt")); err != nil {
		t.Fatal("expected autorenamed destination")
	}
}
