package board

import (
	"time"

	"k8s.io/utils/set"

	"github.com/boardsync/server/internal/apperr"
)

const pendingQueueCap = 4096

// EditLog is the pure data structure at the heart of a room: two ordered
// sequences (current / undone) plus a bounded pending-operation queue
// awaiting compaction and flush. EditLog itself performs no I/O; the room
// actor is the only caller and is the only place concurrent access is
// excluded (by construction — one goroutine owns the actor's EditLog).
type EditLog struct {
	current []Edit
	undone  []Edit
	pending []PendingOp
}

// NewEditLog builds an EditLog from persisted current/undone sequences,
// used both for a brand-new room and for hydration from storage.
func NewEditLog(current, undone []Edit) *EditLog {
	return &EditLog{current: append([]Edit(nil), current...), undone: append([]Edit(nil), undone...)}
}

func (l *EditLog) Current() []Edit { return append([]Edit(nil), l.current...) }
func (l *EditLog) Undone() []Edit  { return append([]Edit(nil), l.undone...) }

// PullDiff implements the §4.3 pull diff law: given the client's claimed
// id sets, returns the edits the client is missing and the ids it should
// discard, for both current and undone. Pull never mutates the log.
type PullDiff struct {
	CurrentCreate []Edit
	CurrentDelete []string
	UndoneCreate  []Edit
	UndoneDelete  []string
}

func (l *EditLog) PullDiff(userCurrent, userUndone []string) PullDiff {
	srvCurrent := idSet(l.current)
	srvUndone := idSet(l.undone)
	uCurrent := set.New(userCurrent...)
	uUndone := set.New(userUndone...)

	diff := PullDiff{}
	for _, e := range l.current {
		if !uCurrent.Has(e.ID) {
			diff.CurrentCreate = append(diff.CurrentCreate, e)
		}
	}
	for id := range uCurrent {
		if !srvCurrent.Has(id) {
			diff.CurrentDelete = append(diff.CurrentDelete, id)
		}
	}
	for _, e := range l.undone {
		if !uUndone.Has(e.ID) {
			diff.UndoneCreate = append(diff.UndoneCreate, e)
		}
	}
	for id := range uUndone {
		if !srvUndone.Has(id) {
			diff.UndoneDelete = append(diff.UndoneDelete, id)
		}
	}
	return diff
}

func idSet(edits []Edit) set.Set[string] {
	s := set.New[string]()
	for _, e := range edits {
		s.Insert(e.ID)
	}
	return s
}

// Push validates and appends a single edit to current, recording a Push
// PendingOp. It is the caller's responsibility to drop ops once the
// queue exceeds its bound by forcing an out-of-band flush; Push itself
// never silently discards an accepted edit.
func (l *EditLog) Push(edit Edit, now time.Time) error {
	if err := edit.Validate(); err != nil {
		return err
	}
	l.current = append(l.current, edit)
	l.enqueue(PendingOp{Kind: PendingPush, Timestamp: now, Edit: edit})
	return nil
}

// UndoRedoKind selects which of Undo/Redo exec_command performs.
type UndoRedoKind string

const (
	Undo UndoRedoKind = "undo"
	Redo UndoRedoKind = "redo"
)

// ExecCommand runs Undo or Redo by id, per §4.3: Undo searches current for
// id, removing it and appending to undone; Redo is symmetric. Both fail
// if the id is not present in the expected side.
func (l *EditLog) ExecCommand(kind UndoRedoKind, id string, now time.Time) error {
	switch kind {
	case Undo:
		idx := indexByID(l.current, id)
		if idx < 0 {
			return apperr.New(apperr.Validation, "no such id in current")
		}
		edit := l.current[idx]
		l.current = append(l.current[:idx], l.current[idx+1:]...)
		l.undone = append(l.undone, edit)
		l.enqueue(PendingOp{Kind: PendingUndo, Timestamp: now, ID: id})
	case Redo:
		idx := indexByID(l.undone, id)
		if idx < 0 {
			return apperr.New(apperr.Validation, "no such id in undone")
		}
		edit := l.undone[idx]
		l.undone = append(l.undone[:idx], l.undone[idx+1:]...)
		l.current = append(l.current, edit)
		l.enqueue(PendingOp{Kind: PendingRedo, Timestamp: now, ID: id})
	}
	return nil
}

func indexByID(edits []Edit, id string) int {
	for i, e := range edits {
		if e.ID == id {
			return i
		}
	}
	return -1
}

// Which selects the current or undone sequence for Empty.
type Which string

const (
	WhichCurrent Which = "current"
	WhichUndone  Which = "undone"
)

// Empty clears the selected sequence in memory and records the matching
// Clear PendingOp so the flush pipeline deletes the corresponding rows.
func (l *EditLog) Empty(which Which, now time.Time) {
	switch which {
	case WhichCurrent:
		l.current = nil
		l.enqueue(PendingOp{Kind: PendingClearCurrent, Timestamp: now})
	case WhichUndone:
		l.undone = nil
		l.enqueue(PendingOp{Kind: PendingClearUndone, Timestamp: now})
	}
}

// DrainPending removes and returns every queued PendingOp, logically
// emptying the queue — called once the caller has committed to flushing
// them (compaction + DB Queue submission).
func (l *EditLog) DrainPending() []PendingOp {
	ops := l.pending
	l.pending = nil
	return ops
}

// PendingLen reports the queue's current depth, used to decide when a
// room should force an out-of-band flush rather than waiting for the
// idle reaper or shutdown.
func (l *EditLog) PendingLen() int { return len(l.pending) }

func (l *EditLog) enqueue(op PendingOp) {
	l.pending = append(l.pending, op)
	if len(l.pending) > pendingQueueCap {
		// The queue is bounded; a caller that lets it grow unchecked is a
		// bug elsewhere (the actor should have forced a flush already).
		l.pending = l.pending[len(l.pending)-pendingQueueCap:]
	}
}
