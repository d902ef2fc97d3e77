package util

import "github.com/bmatcuk/doublestar/v4"

// MatchGlob reports whether name matches a shell-style glob pattern.
// Supports *, ?, [abc], [a-z], and ** as a whole path segment, per spec
// §6. name is matched as given; the scanner and the duplicate finder pass
// an entry's basename.
func MatchGlob(pattern, name string) bool {
	ok, err := doublestar.Match(pattern, name)
	if err != nil {
		return false
	}
	return ok
}

// MatchAny reports whether name matches any of the given glob patterns.
func MatchAny(patterns []string, name string) bool {
	for _, p := range patterns {
		if MatchGlob(p, name) {
			return true
		}
	}
	return false
}
