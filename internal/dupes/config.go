// Package dupes implements the three-phase duplicate-file detection
// pipeline: size bucketing, partial head+tail hashing, then full-content
// hashing, run against an already-built model.Tree.
package dupes

import (
	"runtime"
	"time"

	"github.com/sadopc/diskaudit/internal/model"
)

// Config controls duplicate detection.
type Config struct {
	// MinSize excludes files smaller than this from consideration.
	MinSize uint64
	// MaxSize, if non-nil, excludes files larger than this.
	MaxSize *uint64
	// QuickCompare enables phase 2 (partial hash) before phase 3. When
	// false, phase 3 runs directly on each size bucket.
	QuickCompare bool
	// PartialHeadBytes/PartialTailBytes set phase 2's probe size.
	PartialHeadBytes int
	PartialTailBytes int
	// ExcludeGlobs are shell-style globs matched against basenames.
	ExcludeGlobs []string
	// MaxGroups truncates the report to the largest groups by wasted
	// bytes, if set.
	MaxGroups *int
	// ProgressEvery throttles progress publication.
	ProgressEvery time.Duration
	// Workers sizes the phase 2/3 worker pool; 0 means runtime.NumCPU().
	Workers int
}

// DefaultConfig returns the spec's documented defaults.
func DefaultConfig() Config {
	return Config{
		MinSize:          1,
		QuickCompare:     true,
		PartialHeadBytes: 4096,
		PartialTailBytes: 4096,
		ProgressEvery:    200 * time.Millisecond,
	}
}

func (c Config) workers() int {
	if c.Workers > 0 {
		return c.Workers
	}
	return runtime.NumCPU()
}

// candidate is a file node plus its resolved path, carried through every
// pipeline phase so warnings and groups can report a path string without
// re-walking parent chains.
type candidate struct {
	node *model.Node
	path string
}
