package model

import (
	"sort"
	"strings"

	"github.com/maruel/natural"
)

// SortChildrenCanonical enforces invariant 2: siblings sorted descending
// by Size, then ascending by Name. This is not a display preference (the
// teacher's SortChildren offered several fields for that) — it is a
// structural invariant of the Tree itself, applied once after a scan
// finishes aggregating sizes.
func SortChildrenCanonical(children []*Node) {
	sort.SliceStable(children, func(i, j int) bool {
		a, b := children[i], children[j]
		if a.Size != b.Size {
			return a.Size > b.Size
		}
		return natural.Less(strings.ToLower(a.Name), strings.ToLower(b.Name))
	})
}

// SortNodesBySizeDesc sorts an arbitrary slice of nodes descending by
// size with a natural-order name tiebreak, reusing the same comparison
// the tree invariant uses.
func SortNodesBySizeDesc(nodes []*Node) {
	SortChildrenCanonical(nodes)
}
