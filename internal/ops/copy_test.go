package ops

import (
	"context"
	"os"
	"path/filepath"
	"testing"
)

func drainComplete(t *testing.T, events <-chan OpEvent, control chan<- ConflictResolution, onConflict func(c Conflict) ConflictResolution) *Complete {
	t.Helper()
	for ev := range events {
		switch ev.Kind {
		case EventConflict:
			control <- onConflict(*ev.Conflict)
		case EventComplete:
			return ev.Complete
		}
	}
	t.Fatal("event stream closed without a Complete event")
	return nil
}

func TestCopyAsync_SimpleFile(t *testing.T) {
	src := t.TempDir()
	dst := t.TempDir()
	srcFile := filepath.Join(src, "a.txt")
	if err := os.WriteFile(srcFile, []byte("hello"), 0644); err != nil {
		t.Fatal(err)
	}

	events, control := CopyAsync(context.Background(), []string{srcFile}, dst, DefaultCopyOptions(), nil)
	complete := drainComplete(t, events, control, nil)

	if complete.Successes != 1 || complete.Failures != 0 {
		t.Fatalf("expected 1 success, got %+v", complete)
	}
	data, err := os.ReadFile(filepath.Join(dst, "a.txt"))
	if err != nil || string(data) != "hello" {
		t.Fatalf("destination file not copied correctly: %v %q", err, data)
	}
}

func TestCopyAsync_AutoRenameOnConflict(t *testing.T) {
	src := t.TempDir()
	dst := t.TempDir()
	srcFile := filepath.Join(src, "a.txt")
	if err := os.WriteFile(srcFile, []byte("abc"), 0644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dst, "a.txt"), []byte("existing"), 0644); err != nil {
		t.Fatal(err)
	}

	events, control := CopyAsync(context.Background(), []string{srcFile}, dst, DefaultCopyOptions(), nil)
	complete := drainComplete(t, events, control, func(c Conflict) ConflictResolution { return AutoRename })

	if complete.Successes != 1 || complete.Failures != 0 {
		t.Fatalf("expected 1 success, got %+v", complete)
	}
	if _, err := os.Stat(filepath.Join(dst, "a.txt")); err != nil {
		t.Fatal("original a.txt should remain untouched")
	}
	if _, err := os.Stat(filepath.Join(dst, "a (1).txt")); err != nil {
		t.Fatal("expected autorenamed a (1).txt")
	}
}

func TestCopyAsync_SkipOnConflict(t *testing.T) {
	src := t.TempDir()
	dst := t.TempDir()
	srcFile := filepath.Join(src, "a.txt")
	if err := os.WriteFile(srcFile, []byte("abc"), 0644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dst, "a.txt"), []byte("existing"), 0644); err != nil {
		t.Fatal(err)
	}

	events, control := CopyAsync(context.Background(), []string{srcFile}, dst, DefaultCopyOptions(), nil)
	complete := drainComplete(t, events, control, func(c Conflict) ConflictResolution { return Skip })

	if complete.Successes != 0 {
		t.Fatalf("expected skip to not count as success, got %+v", complete)
	}
	data, _ := os.ReadFile(filepath.Join(dst, "a.txt"))
	if string(data) != "existing" {
		t.Fatal("destination should remain unmodified after skip")
	}
}

func TestCopyAsync_OverwriteAllAppliesToLaterConflicts(t *testing.T) {
	src := t.TempDir()
	dst := t.TempDir()
	for _, name := range []string{"a.txt", "b.txt"} {
		if err := os.WriteFile(filepath.Join(src, name), []byte("new-"+name), 0644); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(filepath.Join(dst, name), []byte("old-"+name), 0644); err != nil {
			t.Fatal(err)
		}
	}

	first := true
	events, control := CopyAsync(context.Background(), []string{filepath.Join(src, "a.txt"), filepath.Join(src, "b.txt")}, dst, DefaultCopyOptions(), nil)
	complete := drainComplete(t, events, control, func(c Conflict) ConflictResolution {
		if first {
			first = false
			return OverwriteAll
		}
		t.Fatal("should not be asked again after OverwriteAll")
		return Abort
	})

	if complete.Successes != 2 {
		t.Fatalf("expected both files overwritten, got %+v", complete)
	}
	a, _ := os.ReadFile(filepath.Join(dst, "a.txt"))
	b, _ := os.ReadFile(filepath.Join(dst, "b.txt"))
	if string(a) != "new-a.txt" || string(b) != "new-b.txt" {
		t.Fatalf("expected both overwritten, got %q %q", a, b)
	}
}

func TestCopyAsync_Directory(t *testing.T) {
	src := t.TempDir()
	dst := t.TempDir()
	nested := filepath.Join(src, "dir", "nested")
	if err := os.MkdirAll(nested, 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(nested, "f.txt"), []byte("data"), 0644); err != nil {
		t.Fatal(err)
	}

	events, control := CopyAsync(context.Background(), []string{filepath.Join(src, "dir")}, dst, DefaultCopyOptions(), nil)
	complete := drainComplete(t, events, control, nil)

	if complete.Failures != 0 {
		t.Fatalf("unexpected failures: %+v", complete)
	}
	if _, err := os.Stat(filepath.Join(dst, "dir", "nested", "f.txt")); err != nil {
		t.Fatalf("expected nested file copied: %v", err)
	}
}

func TestCopyAsync_RecordsUndoEntry(t *testing.T) {
	src := t.TempDir()
	dst := t.TempDir()
	srcFile := filepath.Join(src, "a.txt")
	if err := os.WriteFile(srcFile, []byte("hello"), 0644); err != nil {
		t.Fatal(err)
	}

	log := NewUndoLog(10)
	events, control := CopyAsync(context.Background(), []string{srcFile}, dst, DefaultCopyOptions(), log)
	drainComplete(t, events, control, nil)

	entries := log.Entries()
	if len(entries) != 1 || entries[0].Operation.Kind != UndoFilesCopied {
		t.Fatalf("expected one UndoFilesCopied entry, got %+v", entries)
	}
}

func TestCopyAsync_CancellationStopsEarly(t *testing.T) {
	src := t.TempDir()
	dst := t.TempDir()
	var sources []string
	for i := 0; i < 5; i++ {
		f := filepath.Join(src, string(rune('a'+i))+".txt")
		if err := os.WriteFile(f, make([]byte, 1<<20), 0644); err != nil {
			t.Fatal(err)
		}
		sources = append(sources, f)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	events, control := CopyAsync(ctx, sources, dst, DefaultCopyOptions(), nil)
	complete := drainComplete(t, events, control, nil)

	if !complete.Cancelled {
		t.Fatal("expected Cancelled to be true")
	}
}
