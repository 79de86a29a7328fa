package dbqueue

import (
	"context"
	"sync"
	"time"

	"github.com/boardsync/server/internal/board"
	"github.com/boardsync/server/internal/storage"
)

// Codec encodes an Edit for storage. Kept narrow and local to dbqueue so
// this package doesn't need to depend on internal/protocol's full Codec
// boundary — only the server-message encode direction is relevant here.
type Codec interface {
	EncodeEditData(board.Edit) ([]byte, error)
}

// FlushRoom runs the §4.2 queue-flush pipeline for one room's compacted
// pending ops: any Clear first (a synchronous DELETE, since a clear isn't
// itself one of the five lanes), then the four create/set-status
// submissions in parallel, awaiting every one of them before returning —
// the original's `join!` of four concurrent submissions, translated to a
// WaitGroup.
func (q *Queue) FlushRoom(ctx context.Context, codec Codec, boardID string, sync board.SyncData) error {
	if sync.ClearCurrent {
		if err := q.store.DeleteEditsByStatus(ctx, boardID, board.StatusCurrent); err != nil {
			return err
		}
	}
	if sync.ClearUndone {
		if err := q.store.DeleteEditsByStatus(ctx, boardID, board.StatusUndone); err != nil {
			return err
		}
	}

	currentRows, err := encodeRows(codec, boardID, sync.CurrentCreate, board.StatusCurrent)
	if err != nil {
		return err
	}
	undoneRows, err := encodeRows(codec, boardID, sync.UndoneCreate, board.StatusUndone)
	if err != nil {
		return err
	}

	var wg sync.WaitGroup
	errs := make([]error, 4)
	wg.Add(4)
	go func() { defer wg.Done(); errs[0] = q.SubmitCreateEdit(ctx, currentRows) }()
	go func() { defer wg.Done(); errs[1] = q.SubmitCreateEdit(ctx, undoneRows) }()
	go func() { defer wg.Done(); errs[2] = q.SubmitUpdateEditStatus(ctx, boardID, sync.SetStatusCurrent, board.StatusCurrent) }()
	go func() { defer wg.Done(); errs[3] = q.SubmitUpdateEditStatus(ctx, boardID, sync.SetStatusUndone, board.StatusUndone) }()
	wg.Wait()

	for _, e := range errs {
		if e != nil {
			return e
		}
	}
	return nil
}

func encodeRows(codec Codec, boardID string, edits []board.Edit, status board.EditStatus) ([]storage.EditRow, error) {
	if len(edits) == 0 {
		return nil, nil
	}
	now := time.Now()
	rows := make([]storage.EditRow, 0, len(edits))
	for _, e := range edits {
		data, err := codec.EncodeEditData(e)
		if err != nil {
			return nil, err
		}
		rows = append(rows, storage.EditRow{
			EditID:    e.ID,
			BoardID:   boardID,
			Status:    status,
			ChangedAt: now,
			Data:      data,
		})
	}
	return rows, nil
}
