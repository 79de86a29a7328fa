// Package dbqueue is the write-behind batcher: five lanes, one flusher
// goroutine per lane, each draining up to a configured batch size before
// writing the batch to storage — one bulk insert for create_edit, one
// store call per chunk on the other four lanes (SPEC_FULL.md §4.2).
package dbqueue

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/boardsync/server/internal/board"
	"github.com/boardsync/server/internal/logging"
	"github.com/boardsync/server/internal/metrics"
	"github.com/boardsync/server/internal/storage"
)

const laneBuffer = 1024

// Queue is the process-wide write-behind pipeline.
type Queue struct {
	store      storage.Store
	batchSize  int
	iterPeriod time.Duration

	createEdit  chan createEditChunk
	updateEdit  chan updateEditChunk
	readEdit    chan readEditChunk
	createBoard chan createBoardChunk
	updateBoard chan updateBoardChunk
}

// New builds a Queue. Start must be called to spawn its flushers.
func New(store storage.Store, batchSize int, iterPeriod time.Duration) *Queue {
	return &Queue{
		store:       store,
		batchSize:   batchSize,
		iterPeriod:  iterPeriod,
		createEdit:  make(chan createEditChunk, laneBuffer),
		updateEdit:  make(chan updateEditChunk, laneBuffer),
		readEdit:    make(chan readEditChunk, laneBuffer),
		createBoard: make(chan createBoardChunk, laneBuffer),
		updateBoard: make(chan updateBoardChunk, laneBuffer),
	}
}

// Start spawns the five flusher goroutines, each running until ctx is
// cancelled.
func (q *Queue) Start(ctx context.Context) {
	go q.createEditTask(ctx)
	go q.updateEditTask(ctx)
	go q.readEditTask(ctx)
	go q.createBoardTask(ctx)
	go q.updateBoardTask(ctx)
}

// SubmitCreateEdit enqueues a bulk edit-row insert and blocks until the
// flusher has committed it.
func (q *Queue) SubmitCreateEdit(ctx context.Context, rows []storage.EditRow) error {
	if len(rows) == 0 {
		return nil
	}
	chunk := createEditChunk{rows: rows, ready: make(chan struct{})}
	select {
	case q.createEdit <- chunk:
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case <-chunk.ready:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// SubmitUpdateEditStatus enqueues a bulk status change and blocks until committed.
func (q *Queue) SubmitUpdateEditStatus(ctx context.Context, boardID string, editIDs []string, status board.EditStatus) error {
	if len(editIDs) == 0 {
		return nil
	}
	chunk := updateEditChunk{boardID: boardID, editIDs: editIDs, status: status, ready: make(chan struct{})}
	select {
	case q.updateEdit <- chunk:
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case <-chunk.ready:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// SubmitReadEdits enqueues a read of every edit row for a board.
func (q *Queue) SubmitReadEdits(ctx context.Context, boardID string) (current, undone []storage.EditRow, err error) {
	result := make(chan readEditResult, 1)
	select {
	case q.readEdit <- readEditChunk{boardID: boardID, result: result}:
	case <-ctx.Done():
		return nil, nil, ctx.Err()
	}
	select {
	case r := <-result:
		return r.current, r.undone, r.err
	case <-ctx.Done():
		return nil, nil, ctx.Err()
	}
}

// SubmitCreateBoard enqueues a new board row insert.
func (q *Queue) SubmitCreateBoard(ctx context.Context, row storage.BoardRow) error {
	var errOut error
	chunk := createBoardChunk{row: row, ready: make(chan struct{}), err: &errOut}
	select {
	case q.createBoard <- chunk:
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case <-chunk.ready:
		return errOut
	case <-ctx.Done():
		return ctx.Err()
	}
}

// SubmitUpdateBoard enqueues a title/size/co-editor-token change and
// blocks until the DB has observed it — the causal ordering
// SPEC_FULL.md §5 requires between a SetTitle/SetSize/token-rotation
// reply and storage.
func (q *Queue) SubmitUpdateBoard(ctx context.Context, boardID string, title *string, size *board.Size, coEditorPrivateID *string) error {
	chunk := updateBoardChunk{boardID: boardID, title: title, size: size, coEditorPrivateID: coEditorPrivateID, ready: make(chan struct{})}
	select {
	case q.updateBoard <- chunk:
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case <-chunk.ready:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (q *Queue) createEditTask(ctx context.Context) {
	for {
		first, ok := recvOne(ctx, q.createEdit)
		if !ok {
			return
		}
		batch := []createEditChunk{first}
		batch = drainUpTo(q.createEdit, batch, q.batchSize)

		start := time.Now()
		var rows []storage.EditRow
		for _, c := range batch {
			rows = append(rows, c.rows...)
		}
		err := q.store.BulkCreateEdits(ctx, rows)
		metrics.DBQueueFlushDuration.WithLabelValues("create_edit").Observe(time.Since(start).Seconds())
		metrics.DBQueueDepth.WithLabelValues("create_edit").Set(float64(len(rows)))
		if err != nil {
			metrics.DBQueueFlushErrors.WithLabelValues("create_edit").Inc()
			logging.Error(ctx, "create_edit flush failed", zap.Error(err))
		}
		for _, c := range batch {
			close(c.ready)
		}
		sleep(ctx, q.iterPeriod)
	}
}

func (q *Queue) updateEditTask(ctx context.Context) {
	for {
		first, ok := recvOne(ctx, q.updateEdit)
		if !ok {
			return
		}
		batch := []updateEditChunk{first}
		batch = drainUpTo(q.updateEdit, batch, q.batchSize)

		start := time.Now()
		for _, c := range batch {
			if err := q.store.BulkSetEditStatus(ctx, c.boardID, c.editIDs, c.status); err != nil {
				metrics.DBQueueFlushErrors.WithLabelValues("update_edit").Inc()
				logging.Error(ctx, "update_edit flush failed", zap.Error(err))
			}
		}
		metrics.DBQueueFlushDuration.WithLabelValues("update_edit").Observe(time.Since(start).Seconds())
		for _, c := range batch {
			close(c.ready)
		}
		sleep(ctx, q.iterPeriod)
	}
}

func (q *Queue) readEditTask(ctx context.Context) {
	for {
		first, ok := recvOne(ctx, q.readEdit)
		if !ok {
			return
		}
		batch := []readEditChunk{first}
		batch = drainUpTo(q.readEdit, batch, q.batchSize)

		for _, c := range batch {
			current, undone, err := q.store.GetEdits(ctx, c.boardID)
			if err != nil {
				metrics.DBQueueFlushErrors.WithLabelValues("read_edit").Inc()
			}
			c.result <- readEditResult{current: current, undone: undone, err: err}
		}
		sleep(ctx, q.iterPeriod)
	}
}

func (q *Queue) createBoardTask(ctx context.Context) {
	for {
		first, ok := recvOne(ctx, q.createBoard)
		if !ok {
			return
		}
		batch := []createBoardChunk{first}
		batch = drainUpTo(q.createBoard, batch, q.batchSize)

		for _, c := range batch {
			err := q.store.CreateBoard(ctx, c.row)
			if err != nil {
				metrics.DBQueueFlushErrors.WithLabelValues("create_board").Inc()
			}
			*c.err = err
			close(c.ready)
		}
		sleep(ctx, q.iterPeriod)
	}
}

func (q *Queue) updateBoardTask(ctx context.Context) {
	for {
		first, ok := recvOne(ctx, q.updateBoard)
		if !ok {
			return
		}
		batch := []updateBoardChunk{first}
		batch = drainUpTo(q.updateBoard, batch, q.batchSize)

		start := time.Now()
		for _, c := range batch {
			if err := q.store.UpdateBoardMeta(ctx, c.boardID, c.title, c.size, c.coEditorPrivateID); err != nil {
				metrics.DBQueueFlushErrors.WithLabelValues("update_board").Inc()
				logging.Error(ctx, "update_board flush failed", zap.Error(err))
			}
		}
		metrics.DBQueueFlushDuration.WithLabelValues("update_board").Observe(time.Since(start).Seconds())
		for _, c := range batch {
			close(c.ready)
		}
		sleep(ctx, q.iterPeriod)
	}
}

func sleep(ctx context.Context, d time.Duration) {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
	case <-ctx.Done():
	}
}
