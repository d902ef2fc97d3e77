package ops

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// conflictState tracks the running *-All default for one operation; an
// operation's conflicts are resolved sequentially by its single owning
// goroutine, so no locking is needed here.
type conflictState struct {
	// fixed is the default supplied at operation start (CopyOptions /
	// MoveOptions .DefaultConflict); once set, Conflict events are never
	// emitted and this resolution always applies.
	fixed *ConflictResolution
	// running is set by a *-All resolution chosen mid-operation.
	running *ConflictResolution
}

// resolve decides what to do about dest already existing: ask the caller
// via events/control unless a default already applies. Returns the
// resolution to apply (Skip/Overwrite/AutoRename) and, for Abort, ok=false.
func (cs *conflictState) resolve(events chan<- OpEvent, control <-chan ConflictResolution, source, dest string) (ConflictResolution, bool) {
	if cs.fixed != nil {
		return *cs.fixed, true
	}
	if cs.running != nil {
		return *cs.running, true
	}

	events <- conflictEvent(Conflict{Source: source, Destination: dest, Kind: ConflictTargetExists})
	choice, ok := <-control
	if !ok {
		return Abort, false
	}

	applied := choice
	switch choice {
	case SkipAll:
		applied = Skip
		cs.running = &applied
	case OverwriteAll:
		applied = Overwrite
		cs.running = &applied
	}
	events <- resolvedEvent(ConflictResolved{Destination: dest, Resolution: choice})

	if applied == Abort {
		return Abort, false
	}
	return applied, true
}

// autoRenamePath returns the smallest-n "name (n).ext" variant of dest
// that does not currently exist.
func autoRenamePath(dest string) (string, error) {
	dir := filepath.Dir(dest)
	base := filepath.Base(dest)
	ext := filepath.Ext(base)
	stem := strings.TrimSuffix(base, ext)

	for n := 1; n < 1_000_000; n++ {
		candidate := filepath.Join(dir, fmt.Sprintf("%s (%d)%s", stem, n, ext))
		if _, err := os.Lstat(candidate); os.IsNotExist(err) {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("autorename: exhausted candidates for %s", dest)
}
