package util

import (
	"path/filepath"
	"strings"
)

// IsWithin reports whether target lies within root (or equals it), after
// both have been passed through filepath.Clean by the caller. Used to
// keep symlink traversal and delete operations from escaping a scan root.
func IsWithin(root, target string) bool {
	rel, err := filepath.Rel(root, target)
	if err != nil {
		return false
	}
	if rel == "." {
		return true
	}
	return rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}
