package board

// EditStatus is the persisted status column value an edit row carries.
type EditStatus string

const (
	StatusCurrent EditStatus = "current"
	StatusUndone  EditStatus = "undone"
)

// SyncData is the compacted output of a room's pending operation queue:
// four disjoint sets ready to hand to the DB Queue's four create/update
// lanes (read never appears here; it has no bearing on compaction).
type SyncData struct {
	CurrentCreate []Edit
	UndoneCreate  []Edit

	SetStatusCurrent []string
	SetStatusUndone  []string

	// ClearCurrent/ClearUndone instruct the flush pipeline to DELETE all
	// rows of the matching status for this board before applying the
	// create/set-status sets above — the resolution this design gives to
	// the ambiguity of Empty against an already-compacted queue.
	ClearCurrent bool
	ClearUndone  bool
}

// Compact applies the PendingOp compaction rules: same-id Undo/Undo or
// Redo/Redo collapse to the latest, a Push immediately undone collapses
// to a single undone_create, Undo-then-Redo (or the reverse) nets to no
// operation for that id, and a Clear discards every pending entry that
// would resolve to the cleared status, since those edits no longer exist
// once Empty has run.
func Compact(ops []PendingOp) SyncData {
	created := make(map[string]Edit)
	status := make(map[string]EditStatus)
	var clearCurrent, clearUndone bool

	for _, op := range ops {
		switch op.Kind {
		case PendingPush:
			created[op.Edit.ID] = op.Edit
			status[op.Edit.ID] = StatusCurrent
		case PendingUndo:
			if _, pushed := created[op.ID]; !pushed && status[op.ID] == StatusCurrent {
				delete(status, op.ID) // a prior Redo and this Undo cancel
			} else {
				status[op.ID] = StatusUndone
			}
		case PendingRedo:
			if _, pushed := created[op.ID]; !pushed && status[op.ID] == StatusUndone {
				delete(status, op.ID) // a prior Undo and this Redo cancel
			} else {
				status[op.ID] = StatusCurrent
			}
		case PendingClearCurrent:
			clearCurrent = true
			for id, st := range status {
				if st == StatusCurrent {
					delete(status, id)
					delete(created, id)
				}
			}
			for id := range created {
				if _, ok := status[id]; !ok {
					delete(created, id)
				}
			}
		case PendingClearUndone:
			clearUndone = true
			for id, st := range status {
				if st == StatusUndone {
					delete(status, id)
					delete(created, id)
				}
			}
		}
	}

	out := SyncData{ClearCurrent: clearCurrent, ClearUndone: clearUndone}
	for id, edit := range created {
		st := status[id]
		if st == "" {
			st = StatusCurrent
		}
		if st == StatusCurrent {
			out.CurrentCreate = append(out.CurrentCreate, edit)
		} else {
			out.UndoneCreate = append(out.UndoneCreate, edit)
		}
	}
	for id, st := range status {
		if _, wasPushed := created[id]; wasPushed {
			continue
		}
		if st == StatusCurrent {
			out.SetStatusCurrent = append(out.SetStatusCurrent, id)
		} else {
			out.SetStatusUndone = append(out.SetStatusUndone, id)
		}
	}
	return out
}
