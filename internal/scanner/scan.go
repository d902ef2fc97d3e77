package scanner

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sadopc/diskaudit/internal/model"
	"github.com/sadopc/diskaudit/internal/util"
)

// inodeKey identifies a file by device and inode, used to dedup hardlinks
// during aggregation. Keyed on both fields (not inode alone) to avoid
// false dedup when crossing filesystems.
type inodeKey struct {
	dev uint64
	ino uint64
}

// Scanner performs one parallel directory walk. A Scanner is single-use:
// create with New, call Scan once. The inode-dedup set and progress hub
// are per-instance, never global, per spec §9 ("avoid any process-wide
// caches").
type Scanner struct {
	hub *progressHub
}

// New creates a Scanner ready to run one scan.
func New() *Scanner {
	return &Scanner{hub: newProgressHub()}
}

// Subscribe returns a broadcast receiver of Progress snapshots. May be
// called any number of times before Scan runs; each subscriber gets its
// own channel.
func (s *Scanner) Subscribe() <-chan Progress {
	return s.hub.Subscribe()
}

// scanState carries the mutable, shared-across-goroutines bookkeeping for
// one Scan call.
type scanState struct {
	cfg    Config
	scanRoot string
	ids    *model.IDGen

	sem chan struct{}
	wg  sync.WaitGroup

	filesScanned, dirsScanned, bytesScanned, errCount atomic.Int64

	inodeMu sync.Mutex
	inodes  map[inodeKey]struct{}

	visitedDirs sync.Map // canonical path -> bool

	warnMu   sync.Mutex
	warnings []model.ScanWarning

	startTime time.Time
}

func (st *scanState) warn(kind model.WarningKind, path string, err error) {
	st.errCount.Add(1)
	st.warnMu.Lock()
	st.warnings = append(st.warnings, model.ScanWarning{Kind: kind, Path: path, Message: err.Error()})
	st.warnMu.Unlock()
}

// Scan walks cfg.Root and returns the aggregated Tree. Per-entry I/O or
// metadata failures become ScanWarnings on the result; only a missing,
// unopenable or non-directory root is fatal (*model.IoError or
// *model.NotADirectoryError).
func (s *Scanner) Scan(ctx context.Context, cfg Config) (*model.Tree, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	absPath, err := filepath.Abs(cfg.Root)
	if err != nil {
		return nil, &model.IoError{Path: cfg.Root, Cause: err}
	}
	info, err := os.Stat(absPath)
	if err != nil {
		return nil, &model.IoError{Path: absPath, Cause: err}
	}
	if !info.IsDir() {
		return nil, &model.NotADirectoryError{Path: absPath}
	}
	rootDir, err := os.Open(absPath)
	if err != nil {
		return nil, &model.IoError{Path: absPath, Cause: err}
	}
	rootDir.Close()
	if resolved, err := filepath.EvalSymlinks(absPath); err == nil {
		absPath = resolved
	}

	st := &scanState{
		cfg:       cfg,
		scanRoot:  absPath,
		ids:       model.NewIDGen(),
		sem:       make(chan struct{}, cfg.concurrency()),
		inodes:    make(map[inodeKey]struct{}),
		startTime: time.Now(),
	}
	st.visitedDirs.Store(absPath, true)

	root := &model.Node{
		ID:   st.ids.Next(),
		Name: absPath,
		Kind: model.KindDirectory,
	}
	if mt := info.ModTime(); !mt.IsZero() {
		root.Timestamps.Modified = &mt
	}

	progressDone := make(chan struct{})
	var progressWg sync.WaitGroup
	progressWg.Add(1)
	go func() {
		defer progressWg.Done()
		ticker := time.NewTicker(100 * time.Millisecond)
		defer ticker.Stop()
		lastFiles := int64(0)
		for {
			select {
			case <-ticker.C:
				if st.filesScanned.Load()-lastFiles >= 1000 {
					lastFiles = st.filesScanned.Load()
					s.hub.Publish(st.snapshot(false))
				}
			case <-progressDone:
				return
			}
		}
	}()

	rootDev := rootDevice(info)
	st.scanDir(ctx, absPath, root, rootDev)
	st.wg.Wait()

	close(progressDone)
	progressWg.Wait()
	s.hub.Finish(st.snapshot(true))

	if err := ctx.Err(); err != nil {
		return buildTree(root, st, cfg, absPath), err
	}

	aggregateSizes(root, 0)
	model.SortChildrenCanonical(root.Children)
	sortTreeRecursive(root)

	return buildTree(root, st, cfg, absPath), nil
}

func (st *scanState) snapshot(done bool) Progress {
	return Progress{
		FilesScanned: st.filesScanned.Load(),
		DirsScanned:  st.dirsScanned.Load(),
		BytesScanned: st.bytesScanned.Load(),
		Errors:       st.errCount.Load(),
		Done:         done,
		StartTime:    st.startTime,
		Duration:     time.Since(st.startTime),
	}
}

func sortTreeRecursive(n *model.Node) {
	for _, c := range n.Children {
		if c.Kind == model.KindDirectory {
			sortTreeRecursive(c)
		}
	}
	if n.Kind == model.KindDirectory {
		model.SortChildrenCanonical(n.Children)
	}
}

func buildTree(root *model.Node, st *scanState, cfg Config, absPath string) *model.Tree {
	aggregateSizes(root, 0)

	stats := model.TreeStats{}
	collectStats(root, 0, &stats)

	return &model.Tree{
		Root:         root,
		RootPath:     absPath,
		Stats:        stats,
		Warnings:     st.warnings,
		ScanDuration: time.Since(st.startTime),
		Config: model.ScanConfigSnapshot{
			Root:             absPath,
			MaxDepth:         cfg.MaxDepth,
			IncludeHidden:    cfg.IncludeHidden,
			FollowSymlinks:   cfg.FollowSymlinks,
			CrossFilesystems: cfg.CrossFilesystems,
			ApparentSize:     cfg.ApparentSize,
		},
	}
}

// aggregateSizes performs the bottom-up size calculation required by
// invariant 1: a directory's size is the sum of its file descendants'
// sizes, each hardlink-deduped pair counted once. depth is the node's
// distance from the root; it is passed down but not used in the sum.
func aggregateSizes(n *model.Node, depth int) {
	if n.Kind != model.KindDirectory {
		return
	}
	var size, blocks uint64
	for _, c := range n.Children {
		if c.Kind == model.KindDirectory {
			aggregateSizes(c, depth+1)
		}
		size += c.Size
		blocks += c.Blocks
	}
	n.Size = size
	n.Blocks = blocks
}

func collectStats(n *model.Node, depth int, stats *model.TreeStats) {
	if depth > stats.MaxDepth {
		stats.MaxDepth = depth
	}
	switch n.Kind {
	case model.KindDirectory:
		if depth > 0 {
			stats.TotalDirs++
		}
	case model.KindSymlink:
		stats.TotalSymlinks++
	case model.KindFile:
		stats.TotalFiles++
		stats.TotalSize += n.Size
		if stats.LargestFile == nil || n.Size > stats.LargestFile.Size {
			stats.LargestFile = &model.PathSize{Path: n.Path(), Size: n.Size}
		}
		if n.Timestamps.Modified != nil {
			mt := *n.Timestamps.Modified
			if stats.OldestFile == nil || mt.Before(stats.OldestFile.Modified) {
				stats.OldestFile = &model.PathTime{Path: n.Path(), Modified: mt}
			}
			if stats.NewestFile == nil || mt.After(stats.NewestFile.Modified) {
				stats.NewestFile = &model.PathTime{Path: n.Path(), Modified: mt}
			}
		}
	}
	for _, c := range n.Children {
		collectStats(c, depth+1, stats)
	}
}

func rootDevice(info os.FileInfo) uint64 {
	return getStatInfo(info).dev
}

// scanDir lists one directory and recurses into subdirectories, bounded
// by st.sem. When the semaphore is full, recursion happens synchronously
// in the current goroutine instead of blocking on a channel send —
// directly grounded on the teacher's scanDir/spawnScan shape.
func (st *scanState) scanDir(ctx context.Context, dirPath string, parent *model.Node, rootDev uint64) {
	select {
	case <-ctx.Done():
		return
	default:
	}

	if st.cfg.MaxDepth != nil && depthOf(st.scanRoot, dirPath) > *st.cfg.MaxDepth {
		return
	}

	dir, err := os.Open(dirPath)
	if err != nil {
		st.warn(model.WarnPermissionDenied, dirPath, err)
		return
	}
	defer dir.Close()

	st.dirsScanned.Add(1)

	spawn := func(path string, node *model.Node) {
		select {
		case st.sem <- struct{}{}:
			st.wg.Add(1)
			go func() {
				defer st.wg.Done()
				defer func() { <-st.sem }()
				st.scanDir(ctx, path, node, rootDev)
			}()
		default:
			st.scanDir(ctx, path, node, rootDev)
		}
	}

	for {
		entries, readErr := dir.ReadDir(256)
		for _, entry := range entries {
			select {
			case <-ctx.Done():
				return
			default:
			}
			st.handleEntry(ctx, dirPath, entry, parent, rootDev, spawn)
		}
		if readErr == io.EOF {
			break
		}
		if readErr != nil {
			st.warn(model.WarnReadError, dirPath, readErr)
			return
		}
	}
}

func depthOf(root, path string) int {
	rel, err := filepath.Rel(root, path)
	if err != nil || rel == "." {
		return 0
	}
	depth := 0
	for _, r := range rel {
		if r == filepath.Separator {
			depth++
		}
	}
	return depth + 1
}

func (st *scanState) handleEntry(ctx context.Context, dirPath string, entry os.DirEntry, parent *model.Node, rootDev uint64, spawn func(string, *model.Node)) {
	name := entry.Name()

	if util.MatchAny(st.cfg.IgnorePatterns, name) {
		return
	}
	if !st.cfg.IncludeHidden && len(name) > 0 && name[0] == '.' {
		return
	}

	fullPath := filepath.Join(dirPath, name)
	info, err := entry.Info()
	if err != nil {
		st.warn(model.WarnMetadataError, fullPath, err)
		return
	}

	mode := entry.Type()
	infoMode := info.Mode()
	if mode == 0 {
		mode = infoMode.Type()
	}
	if infoMode.IsDir() {
		mode |= os.ModeDir
	}
	if infoMode&os.ModeSymlink != 0 {
		mode |= os.ModeSymlink
	}
	if isSpecialMode(mode) || isSpecialMode(infoMode) {
		return
	}

	switch {
	case mode.IsDir():
		st.handleDir(fullPath, name, info, parent, rootDev, spawn)
	case mode&os.ModeSymlink != 0:
		st.handleSymlink(fullPath, name, info, parent, rootDev, spawn)
	default:
		st.handleFile(fullPath, name, info, parent, false)
	}
}

func (st *scanState) handleDir(fullPath, name string, info os.FileInfo, parent *model.Node, rootDev uint64, spawn func(string, *model.Node)) {
	if !st.cfg.CrossFilesystems {
		si := getStatInfo(info)
		if si.ok && si.dev != rootDev {
			return
		}
	}

	childDir := &model.Node{
		ID:     st.ids.Next(),
		Name:   name,
		Kind:   model.KindDirectory,
		Parent: parent,
	}
	if mt := info.ModTime(); !mt.IsZero() {
		childDir.Timestamps.Modified = &mt
	}
	parent.AddChild(childDir)

	if _, loaded := st.visitedDirs.LoadOrStore(fullPath, true); loaded {
		return
	}
	spawn(fullPath, childDir)
}

func (st *scanState) handleSymlink(fullPath, name string, info os.FileInfo, parent *model.Node, rootDev uint64, spawn func(string, *model.Node)) {
	target, err := os.Readlink(fullPath)
	if err != nil {
		target = ""
	}

	resolvedPath, err := filepath.EvalSymlinks(fullPath)
	if err != nil {
		parent.AddChild(&model.Node{
			ID: st.ids.Next(), Name: name, Kind: model.KindSymlink,
			Parent: parent, SymlinkTarget: target, SymlinkBroken: true,
		})
		st.warn(model.WarnBrokenSymlink, fullPath, err)
		return
	}
	targetInfo, err := os.Stat(resolvedPath)
	if err != nil {
		parent.AddChild(&model.Node{
			ID: st.ids.Next(), Name: name, Kind: model.KindSymlink,
			Parent: parent, SymlinkTarget: target, SymlinkBroken: true,
		})
		st.warn(model.WarnBrokenSymlink, fullPath, err)
		return
	}
	if isSpecialMode(targetInfo.Mode()) {
		return
	}

	if targetInfo.IsDir() {
		if !st.cfg.FollowSymlinks {
			parent.AddChild(&model.Node{
				ID: st.ids.Next(), Name: name, Kind: model.KindSymlink,
				Parent: parent, SymlinkTarget: target,
			})
			return
		}
		childDir := &model.Node{
			ID: st.ids.Next(), Name: name, Kind: model.KindDirectory,
			Parent: parent,
		}
		if mt := targetInfo.ModTime(); !mt.IsZero() {
			childDir.Timestamps.Modified = &mt
		}
		parent.AddChild(childDir)

		if util.IsWithin(st.scanRoot, resolvedPath) {
			return
		}
		if _, loaded := st.visitedDirs.LoadOrStore(resolvedPath, true); loaded {
			return
		}
		spawn(resolvedPath, childDir)
		return
	}

	// Symlink to a file: record as a symlink node; its target's bytes are
	// accounted for wherever the real file is scanned, never here.
	parent.AddChild(&model.Node{
		ID: st.ids.Next(), Name: name, Kind: model.KindSymlink,
		Parent: parent, SymlinkTarget: target,
	})
}

func (st *scanState) handleFile(fullPath, name string, info os.FileInfo, parent *model.Node, forceDedupCheck bool) {
	si := getStatInfo(info)

	node := &model.Node{
		ID:     st.ids.Next(),
		Name:   name,
		Kind:   model.KindFile,
		Parent: parent,
	}
	if mt := info.ModTime(); !mt.IsZero() {
		node.Timestamps.Modified = &mt
	}

	rawSize, rawBlocks := uint64(info.Size()), uint64(si.diskUsage)
	if !st.cfg.ApparentSize {
		rawSize = rawBlocks
	}
	node.RawSize, node.RawBlocks = rawSize, rawBlocks

	if si.ok && si.nlink > 1 {
		node.Inode = &model.InodeRef{Device: si.dev, Inode: si.inode}

		st.inodeMu.Lock()
		key := inodeKey{dev: si.dev, ino: si.inode}
		_, seen := st.inodes[key]
		if !seen {
			st.inodes[key] = struct{}{}
		}
		st.inodeMu.Unlock()

		if seen {
			parent.AddChild(node)
			st.filesScanned.Add(1)
			return
		}
	}

	node.Size = rawSize
	node.Blocks = rawBlocks
	parent.AddChild(node)
	st.filesScanned.Add(1)
	st.bytesScanned.Add(info.Size())
}

func isSpecialMode(mode os.FileMode) bool {
	return mode&(os.ModeDevice|os.ModeCharDevice|os.ModeSocket|os.ModeNamedPipe|os.ModeIrregular) != 0
}
