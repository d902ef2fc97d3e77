package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"time"

	"github.com/sadopc/diskaudit/internal/age"
	"github.com/sadopc/diskaudit/internal/dupes"
	"github.com/sadopc/diskaudit/internal/model"
	"github.com/sadopc/diskaudit/internal/ops"
	"github.com/sadopc/diskaudit/internal/scanner"
	"github.com/sadopc/diskaudit/internal/util"
)

var version = "dev"

func main() {
	exportPath := flag.String("export", "", "Export scan results to JSON file (use '-' for stdout)")
	importPath := flag.String("import", "", "Import and summarize a previously exported scan")
	showHidden := flag.Bool("hidden", true, "Include hidden files")
	noHidden := flag.Bool("no-hidden", false, "Exclude hidden files")
	showVersion := flag.Bool("version", false, "Show version")
	followSymlinks := flag.Bool("follow-symlinks", false, "Follow symbolic links during scan")
	concurrency := flag.Int("j", 0, "Max concurrent directory scans (0 = auto: 3x CPU cores)")
	exclude := flag.String("exclude", "", "Comma-separated list of basename globs to exclude")
	findDupes := flag.Bool("dupes", false, "Run duplicate-file detection after scanning")
	findAge := flag.Bool("age", false, "Run file-age analysis after scanning")
	minDupeSize := flag.Uint64("min-dupe-size", dupes.DefaultConfig().MinSize, "Minimum file size considered for duplicate detection")
	staleDays := flag.Int("stale-days", 180, "Age in days past which a directory is considered stale")

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "diskaudit - disk usage, duplicate, and age analysis\n\n")
		fmt.Fprintf(os.Stderr, "Usage: diskaudit [options] [path]\n\n")
		fmt.Fprintf(os.Stderr, "Options:\n")
		flag.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nExamples:\n")
		fmt.Fprintf(os.Stderr, "  diskaudit .                      Scan current directory\n")
		fmt.Fprintf(os.Stderr, "  diskaudit --dupes --age /data    Scan plus both analysis engines\n")
		fmt.Fprintf(os.Stderr, "  diskaudit --export scan.json .   Export scan to JSON\n")
		fmt.Fprintf(os.Stderr, "  diskaudit --import scan.json     Summarize an exported scan\n")
	}

	flag.Parse()

	hiddenSet, noHiddenSet := false, false
	flag.Visit(func(f *flag.Flag) {
		if f.Name == "hidden" {
			hiddenSet = true
		}
		if f.Name == "no-hidden" {
			noHiddenSet = true
		}
	})
	if hiddenSet && noHiddenSet {
		fmt.Fprintln(os.Stderr, "Error: --hidden and --no-hidden cannot be used together")
		os.Exit(1)
	}

	if *showVersion {
		fmt.Printf("diskaudit %s\n", version)
		return
	}

	if *importPath != "" {
		if flag.NArg() > 0 {
			fmt.Fprintln(os.Stderr, "Error: --import cannot be used with a scan path")
			os.Exit(1)
		}
		tree, err := ops.ImportJSON(*importPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error importing: %v\n", err)
			os.Exit(1)
		}
		printSummary(tree)
		return
	}

	root := "."
	switch flag.NArg() {
	case 0:
	case 1:
		root = flag.Arg(0)
	default:
		fmt.Fprintln(os.Stderr, "Error: too many positional arguments")
		os.Exit(1)
	}

	if *concurrency < 0 {
		fmt.Fprintln(os.Stderr, "Error: concurrency (-j) must be >= 0")
		os.Exit(1)
	}

	cfg := scanner.DefaultConfig(root)
	cfg.IncludeHidden = *showHidden && !*noHidden
	cfg.FollowSymlinks = *followSymlinks
	cfg.Threads = *concurrency
	if *exclude != "" {
		cfg.IgnorePatterns = append(cfg.IgnorePatterns, splitComma(*exclude)...)
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if *exportPath != "-" {
		fmt.Fprintf(os.Stderr, "Scanning %s...\n", root)
	}

	tree, err := scanner.New().Scan(ctx, cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Scan error: %v\n", err)
		os.Exit(1)
	}

	if *findDupes {
		runDupes(ctx, tree, *minDupeSize)
	}
	if *findAge {
		runAge(tree, *staleDays)
	}

	if *exportPath != "" {
		if err := ops.ExportJSON(tree, *exportPath); err != nil {
			fmt.Fprintf(os.Stderr, "Export error: %v\n", err)
			os.Exit(1)
		}
		if *exportPath != "-" {
			fmt.Printf("Exported to %s\n", *exportPath)
		}
		return
	}

	printSummary(tree)
}

// runDupes runs the duplicate finder over tree and prints a short report
// to stderr so it doesn't interleave with a stdout JSON export.
func runDupes(ctx context.Context, tree *model.Tree, minSize uint64) {
	cfg := dupes.DefaultConfig()
	cfg.MinSize = minSize

	report, err := dupes.New().Find(ctx, tree, cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Duplicate scan error: %v\n", err)
		return
	}

	wastedPct := util.Percent(int64(report.TotalWastedSpace), int64(tree.Stats.TotalSize))
	fmt.Fprintf(os.Stderr, "\nDuplicates: %d group(s), %s wasted across %d file(s) (%.1f%% of scanned size)\n",
		report.GroupCount, util.FormatSize(int64(report.TotalWastedSpace)), report.FilesWithDuplicates, wastedPct)
	for i, g := range report.Groups {
		if i >= 10 {
			fmt.Fprintf(os.Stderr, "  ... %d more group(s)\n", len(report.Groups)-10)
			break
		}
		fmt.Fprintf(os.Stderr, "  %s wasted across %d copies (%s each)\n",
			util.FormatSize(int64(g.WastedBytes)), len(g.Paths), util.FormatSize(int64(g.Size)))
		for _, p := range g.Paths {
			fmt.Fprintf(os.Stderr, "    %s\n", util.TruncateString(p, maxReportPathLen))
		}
	}
}

// runAge runs the age analyzer over tree and prints a short report to
// stderr.
func runAge(tree *model.Tree, staleDays int) {
	cfg := age.DefaultConfig()
	cfg.StaleThreshold = time.Duration(staleDays) * 24 * time.Hour

	report := age.New().Analyze(tree, cfg)

	fmt.Fprintf(os.Stderr, "\nAge buckets (%d files total, median: %s):\n", report.TotalFiles, report.MedianAgeBucket)
	for _, b := range report.Buckets {
		pct := util.Percent(int64(b.TotalSize), int64(report.TotalSize))
		fmt.Fprintf(os.Stderr, "  %-12s %6s files, %s (%.1f%%)\n", b.Name, util.FormatCount(int64(b.FileCount)), util.FormatSize(int64(b.TotalSize)), pct)
	}
	if len(report.StaleDirectories) > 0 {
		fmt.Fprintf(os.Stderr, "\nStale directories (untouched for %d+ days):\n", staleDays)
		for _, d := range report.StaleDirectories {
			fmt.Fprintf(os.Stderr, "  %s  %s  (%d files)\n", util.FormatSize(int64(d.Size)), util.TruncateString(d.Path, maxReportPathLen), d.FileCount)
		}
	}
}

// maxReportPathLen caps path width in the dupes/age stderr reports so a
// deeply nested path doesn't blow out terminal line wrapping.
const maxReportPathLen = 80

func printSummary(tree *model.Tree) {
	fmt.Printf("%s\n", tree.RootPath)
	fmt.Printf("  total size:  %s\n", util.FormatSize(int64(tree.Stats.TotalSize)))
	fmt.Printf("  files:       %s\n", util.FormatCount(int64(tree.Stats.TotalFiles)))
	fmt.Printf("  directories: %s\n", util.FormatCount(int64(tree.Stats.TotalDirs)))
	fmt.Printf("  symlinks:    %s\n", util.FormatCount(int64(tree.Stats.TotalSymlinks)))
	fmt.Printf("  max depth:   %d\n", tree.Stats.MaxDepth)
	if tree.Stats.LargestFile != nil {
		pct := util.Percent(int64(tree.Stats.LargestFile.Size), int64(tree.Stats.TotalSize))
		fmt.Printf("  largest:     %s (%s, %.1f%% of total)\n",
			util.TruncateString(tree.Stats.LargestFile.Path, maxReportPathLen), util.FormatSize(int64(tree.Stats.LargestFile.Size)), pct)
	}
	if len(tree.Warnings) > 0 {
		fmt.Printf("  warnings:    %d\n", len(tree.Warnings))
	}
}

func splitComma(s string) []string {
	var result []string
	for _, part := range strings.Split(s, ",") {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			result = append(result, trimmed)
		}
	}
	return result
}
