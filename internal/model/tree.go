package model

import "time"

// PathSize pairs a path with a byte size, used for TreeStats extrema.
type PathSize struct {
	Path string
	Size uint64
}

// PathTime pairs a path with a modification time, used for TreeStats
// extrema.
type PathTime struct {
	Path     string
	Modified time.Time
}

// TreeStats summarizes a completed scan.
type TreeStats struct {
	TotalSize     uint64
	TotalFiles    uint64
	TotalDirs     uint64
	TotalSymlinks uint64
	MaxDepth      int
	LargestFile   *PathSize
	OldestFile    *PathTime
	NewestFile    *PathTime
}

// ScanConfigSnapshot is the subset of scanner.Config worth retaining
// on a Tree for provenance (e.g. re-export, "was this scan following
// symlinks?"). Defined here rather than imported from the scanner package
// to avoid a model -> scanner dependency cycle; the scanner package
// populates it from its own Config.
type ScanConfigSnapshot struct {
	Root             string
	MaxDepth         *int
	IncludeHidden    bool
	FollowSymlinks   bool
	CrossFilesystems bool
	ApparentSize     bool
}

// Tree is the immutable result of one scan. Re-scans produce a new Tree;
// trees are never mutated after construction.
type Tree struct {
	Root         *Node
	RootPath     string
	Stats        TreeStats
	Warnings     []ScanWarning
	ScanDuration time.Duration
	Config       ScanConfigSnapshot
}

// Walk invokes fn for every node in the tree, pre-order (a node before its
// children). Stops early if fn returns false.
func Walk(n *Node, fn func(*Node) bool) bool {
	if !fn(n) {
		return false
	}
	for _, c := range n.Children {
		if !Walk(c, fn) {
			return false
		}
	}
	return true
}

// Files returns every file-kind descendant of n (n itself included if it
// is a file), pre-order. Symlinks are never returned — per spec §9 open
// question 3, symlinks never participate in content-identity comparisons.
func Files(n *Node) []*Node {
	var out []*Node
	Walk(n, func(cur *Node) bool {
		if cur.Kind == KindFile {
			out = append(out, cur)
		}
		return true
	})
	return out
}

// Directories returns every directory-kind descendant of n (n itself
// included), pre-order.
func Directories(n *Node) []*Node {
	var out []*Node
	Walk(n, func(cur *Node) bool {
		if cur.Kind == KindDirectory {
			out = append(out, cur)
		}
		return true
	})
	return out
}
