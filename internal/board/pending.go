package board

import "time"

// PendingOpKind tags the three shapes a PendingOp can take, plus the two
// "clear" variants produced by Empty, which have no direct analog in the
// original design's PendingOp enum but are required to let Empty's effect
// survive into the compacted flush (see the Empty/compacted-queue open
// question resolution in SPEC_FULL.md).
type PendingOpKind string

const (
	PendingPush         PendingOpKind = "push"
	PendingUndo         PendingOpKind = "undo"
	PendingRedo         PendingOpKind = "redo"
	PendingClearCurrent PendingOpKind = "clear_current"
	PendingClearUndone  PendingOpKind = "clear_undone"
)

// PendingOp is one entry in a room's bounded, in-memory operation queue,
// awaiting compaction and flush to storage.
type PendingOp struct {
	Kind      PendingOpKind
	Timestamp time.Time
	ID        string // edit id, for Undo/Redo
	Edit      Edit   // edit payload, for Push
}
