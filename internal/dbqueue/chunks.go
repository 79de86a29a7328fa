package dbqueue

import (
	"github.com/boardsync/server/internal/board"
	"github.com/boardsync/server/internal/storage"
)

// Each chunk carries a single-shot ready channel so back-pressure is
// visible to the room actor that submitted it (SPEC_FULL.md §4.2).

type createEditChunk struct {
	rows  []storage.EditRow
	ready chan struct{}
}

type updateEditChunk struct {
	boardID string
	editIDs []string
	status  board.EditStatus
	ready   chan struct{}
}

type readEditChunk struct {
	boardID string
	result  chan<- readEditResult
}

type readEditResult struct {
	current []storage.EditRow
	undone  []storage.EditRow
	err     error
}

type createBoardChunk struct {
	row   storage.BoardRow
	ready chan struct{}
	err   *error // written by the flusher before ready is closed
}

type updateBoardChunk struct {
	boardID           string
	title             *string
	size              *board.Size
	coEditorPrivateID *string
	ready             chan struct{}
}
