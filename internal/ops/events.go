package ops

import "time"

// EventKind tags which variant an OpEvent carries.
type EventKind uint8

const (
	EventProgress EventKind = iota
	EventConflict
	EventConflictResolved
	EventComplete
)

// ConflictKind classifies why a Conflict event was raised.
type ConflictKind uint8

const (
	ConflictTargetExists ConflictKind = iota
)

// ConflictResolution is the caller's answer to a Conflict event, sent on
// the operation's control channel.
type ConflictResolution uint8

const (
	Skip ConflictResolution = iota
	Overwrite
	AutoRename
	SkipAll
	OverwriteAll
	Abort
)

// OperationError records one per-file failure within an operation; the
// operation continues past it unless the active resolution is Abort.
type OperationError struct {
	Path  string
	Cause error
}

func (e OperationError) Error() string { return e.Path + ": " + e.Cause.Error() }

// Progress reports incremental work within one operation.
type Progress struct {
	FilesCompleted int
	FilesTotal     int
	BytesProcessed uint64
	BytesTotal     uint64
	CurrentFile    string
	Errors         []OperationError
}

// Conflict is raised when a copy/move target already exists and no
// default resolution was supplied; the caller must answer on the
// operation's control channel.
type Conflict struct {
	Source      string
	Destination string
	Kind        ConflictKind
}

// ConflictResolved echoes the resolution the caller chose for one
// Conflict, so a receiver-only consumer can still observe the decision.
type ConflictResolved struct {
	Destination string
	Resolution  ConflictResolution
}

// Complete is always the final event on an operation's stream.
type Complete struct {
	Successes int
	Failures  int
	Summary   string
	Cancelled bool
}

// OpEvent is one event in an operation's stream. Exactly one field is
// non-nil, selected by Kind.
type OpEvent struct {
	Kind             EventKind
	Progress         *Progress
	Conflict         *Conflict
	ConflictResolved *ConflictResolved
	Complete         *Complete
}

// progressEventEvery throttles Progress emission during chunked copy, per
// spec §4.4.1 ("no more frequently than every 50ms").
const progressEventEvery = 50 * time.Millisecond

func progressEvent(p Progress) OpEvent       { return OpEvent{Kind: EventProgress, Progress: &p} }
func conflictEvent(c Conflict) OpEvent       { return OpEvent{Kind: EventConflict, Conflict: &c} }
func resolvedEvent(c ConflictResolved) OpEvent {
	return OpEvent{Kind: EventConflictResolved, ConflictResolved: &c}
}
func completeEvent(c Complete) OpEvent { return OpEvent{Kind: EventComplete, Complete: &c} }
