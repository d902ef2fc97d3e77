package age

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/sadopc/diskaudit/internal/scanner"
)

func touch(t *testing.T, path string, size int, mtime time.Time) {
	t.Helper()
	if err := os.WriteFile(path, make([]byte, size), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.Chtimes(path, mtime, mtime); err != nil {
		t.Fatal(err)
	}
}

func TestAnalyze_BucketClassification(t *testing.T) {
	root := t.TempDir()
	ref := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)

	touch(t, filepath.Join(root, "hour.txt"), 10, ref.Add(-1*time.Hour))
	touch(t, filepath.Join(root, "days2.txt"), 10, ref.Add(-2*24*time.Hour))
	touch(t, filepath.Join(root, "days20.txt"), 10, ref.Add(-20*24*time.Hour))
	touch(t, filepath.Join(root, "days200.txt"), 10, ref.Add(-200*24*time.Hour))
	touch(t, filepath.Join(root, "years2.txt"), 10, ref.Add(-2*365*24*time.Hour))

	tree, err := scanner.New().Scan(context.Background(), scanner.DefaultConfig(root))
	if err != nil {
		t.Fatal(err)
	}

	cfg := DefaultConfig()
	cfg.ReferenceTime = ref
	report := New().Analyze(tree, cfg)

	if report.TotalFiles != 5 {
		t.Fatalf("TotalFiles = %d, want 5", report.TotalFiles)
	}
	want := map[string]int{
		"Today": 1, "This Week": 1, "This Month": 1, "This Year": 1, "Older": 1,
	}
	for _, b := range report.Buckets {
		if want[b.Name] != b.FileCount {
			t.Fatalf("bucket %q: FileCount = %d, want %d", b.Name, b.FileCount, want[b.Name])
		}
	}
}

func TestAnalyze_UnknownModTimeBucket(t *testing.T) {
	// Synthesize a report path where a node has no modified time by
	// scanning a tree where chtimes wasn't applied is not feasible via
	// the filesystem (all files have mtimes); instead this test confirms
	// the unknown bucket is simply absent when every file has a known
	// mtime, which is the common case the scanner always produces.
	root := t.TempDir()
	touch(t, filepath.Join(root, "a.txt"), 10, time.Now())

	tree, err := scanner.New().Scan(context.Background(), scanner.DefaultConfig(root))
	if err != nil {
		t.Fatal(err)
	}
	report := New().Analyze(tree, DefaultConfig())
	for _, b := range report.Buckets {
		if b.Name == unknownBucketName {
			t.Fatalf("unexpected unknown bucket: %+v", b)
		}
	}
}

func TestAnalyze_StaleDirectory(t *testing.T) {
	root := t.TempDir()
	staleDir := filepath.Join(root, "old")
	if err := os.MkdirAll(staleDir, 0o755); err != nil {
		t.Fatal(err)
	}
	old := time.Now().Add(-400 * 24 * time.Hour)
	touch(t, filepath.Join(staleDir, "big.bin"), 50*1024*1024, old)

	freshDir := filepath.Join(root, "new")
	if err := os.MkdirAll(freshDir, 0o755); err != nil {
		t.Fatal(err)
	}
	touch(t, filepath.Join(freshDir, "recent.bin"), 50*1024*1024, time.Now())

	tree, err := scanner.New().Scan(context.Background(), scanner.DefaultConfig(root))
	if err != nil {
		t.Fatal(err)
	}

	cfg := DefaultConfig()
	cfg.StaleThreshold = 180 * 24 * time.Hour
	cfg.MinStaleSize = 10 * 1024 * 1024
	report := New().Analyze(tree, cfg)

	if len(report.StaleDirectories) != 1 {
		t.Fatalf("StaleDirectories = %+v, want exactly 1", report.StaleDirectories)
	}
	if filepath.Base(report.StaleDirectories[0].Path) != "old" {
		t.Fatalf("stale dir = %q, want basename 'old'", report.StaleDirectories[0].Path)
	}
}

func TestAnalyze_StaleDirectoryExcludedBelowMinSize(t *testing.T) {
	root := t.TempDir()
	old := time.Now().Add(-400 * 24 * time.Hour)
	touch(t, filepath.Join(root, "tiny.bin"), 100, old)

	tree, err := scanner.New().Scan(context.Background(), scanner.DefaultConfig(root))
	if err != nil {
		t.Fatal(err)
	}

	cfg := DefaultConfig()
	cfg.MinStaleSize = 10 * 1024 * 1024
	report := New().Analyze(tree, cfg)
	if len(report.StaleDirectories) != 0 {
		t.Fatalf("StaleDirectories = %+v, want none (below min size)", report.StaleDirectories)
	}
}

func TestAnalyze_MaxStaleDirsTruncates(t *testing.T) {
	root := t.TempDir()
	old := time.Now().Add(-400 * 24 * time.Hour)
	for i := 0; i < 3; i++ {
		dir := filepath.Join(root, string(rune('a'+i)))
		if err := os.MkdirAll(dir, 0o755); err != nil {
			t.Fatal(err)
		}
		touch(t, filepath.Join(dir, "f.bin"), 20*1024*1024, old)
	}

	tree, err := scanner.New().Scan(context.Background(), scanner.DefaultConfig(root))
	if err != nil {
		t.Fatal(err)
	}

	cfg := DefaultConfig()
	cfg.MinStaleSize = 1024
	cfg.MaxStaleDirs = 2
	report := New().Analyze(tree, cfg)
	if len(report.StaleDirectories) != 2 {
		t.Fatalf("StaleDirectories count = %d, want 2", len(report.StaleDirectories))
	}
}

func TestAnalyze_AverageAgeIsSizeWeighted(t *testing.T) {
	root := t.TempDir()
	ref := time.Now()
	touch(t, filepath.Join(root, "small.bin"), 10, ref.Add(-10*24*time.Hour))
	touch(t, filepath.Join(root, "large.bin"), 1000, ref.Add(-1*time.Hour))

	tree, err := scanner.New().Scan(context.Background(), scanner.DefaultConfig(root))
	if err != nil {
		t.Fatal(err)
	}
	report := New().Analyze(tree, DefaultConfig())
	// The large (heavily weighted) file is much younger, so the
	// size-weighted average should sit far closer to 1 hour than to the
	// midpoint of 10 days and 1 hour.
	if report.AverageAge > 24*time.Hour {
		t.Fatalf("AverageAge = %v, want closer to the large file's 1h age", report.AverageAge)
	}
}
