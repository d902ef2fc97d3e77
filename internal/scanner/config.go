// Package scanner implements the parallel directory-walk that builds a
// model.Tree: hardlink-aware size aggregation, glob/hidden/depth/
// cross-filesystem filtering, and a multi-subscriber progress broadcast.
package scanner

import (
	"runtime"

	"github.com/sadopc/diskaudit/internal/model"
)

// Config configures one scan.
type Config struct {
	Root string
	// MaxDepth limits traversal depth measured from Root (root is depth
	// 0). Nil means unbounded.
	MaxDepth *int
	// IncludeHidden includes entries whose basename starts with '.'.
	IncludeHidden bool
	// FollowSymlinks follows symlinked directories during traversal.
	FollowSymlinks bool
	// CrossFilesystems allows descending into directories on a different
	// device than Root.
	CrossFilesystems bool
	// IgnorePatterns are shell-style globs (see internal/util/glob.go)
	// matched against each entry's basename.
	IgnorePatterns []string
	// Threads is the walker concurrency; 0 means auto (3x CPU count,
	// matching the teacher's I/O-bound oversubscription default).
	Threads int
	// ApparentSize selects whether Node.Size reports byte length (true) or
	// on-disk block allocation (false) for files; Node.Blocks always
	// reports on-disk allocation. Directories always aggregate both fields
	// regardless of this setting.
	ApparentSize bool
}

// DefaultConfig returns sensible defaults for Config.
func DefaultConfig(root string) Config {
	return Config{
		Root:             root,
		IncludeHidden:    true,
		FollowSymlinks:   false,
		CrossFilesystems: false,
		ApparentSize:     true,
	}
}

// Validate checks configuration values synchronously, per spec §7 ("no
// operation is ever started with an invalid config").
func (c Config) Validate() error {
	if c.Root == "" {
		return &model.ConfigError{Message: "root must not be empty"}
	}
	if c.MaxDepth != nil && *c.MaxDepth < 0 {
		return &model.ConfigError{Message: "max depth must not be negative"}
	}
	if c.Threads < 0 {
		return &model.ConfigError{Message: "threads must not be negative"}
	}
	return nil
}

func (c Config) concurrency() int {
	if c.Threads > 0 {
		return c.Threads
	}
	return runtime.GOMAXPROCS(0) * 3
}
