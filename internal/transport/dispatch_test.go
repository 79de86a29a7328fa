package transport

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/boardsync/server/internal/board"
	"github.com/boardsync/server/internal/dbqueue"
	"github.com/boardsync/server/internal/mailbox"
	"github.com/boardsync/server/internal/protocol"
	"github.com/boardsync/server/internal/roomactor"
	"github.com/boardsync/server/internal/storage"
)

type fakeStore struct {
	mu sync.Mutex
}

func (s *fakeStore) CreateBoard(ctx context.Context, b storage.BoardRow) error { return nil }
func (s *fakeStore) GetBoardByPublicID(ctx context.Context, publicID string) (storage.BoardRow, error) {
	return storage.BoardRow{}, nil
}
func (s *fakeStore) GetEdits(ctx context.Context, boardID string) ([]storage.EditRow, []storage.EditRow, error) {
	return nil, nil, nil
}
func (s *fakeStore) DeleteBoard(ctx context.Context, boardID string) error             { return nil }
func (s *fakeStore) BulkCreateEdits(ctx context.Context, rows []storage.EditRow) error { return nil }
func (s *fakeStore) BulkSetEditStatus(ctx context.Context, boardID string, editIDs []string, status board.EditStatus) error {
	return nil
}
func (s *fakeStore) DeleteEditsByStatus(ctx context.Context, boardID string, status board.EditStatus) error {
	return nil
}
func (s *fakeStore) UpdateBoardMeta(ctx context.Context, boardID string, title *string, size *board.Size, coEditorPrivateID *string) error {
	return nil
}
func (s *fakeStore) CreateFolder(ctx context.Context, f storage.FolderRow) error { return nil }
func (s *fakeStore) ListFolders(ctx context.Context, ownerID int64) ([]storage.FolderRow, error) {
	return nil, nil
}
func (s *fakeStore) DeleteFolder(ctx context.Context, folderID string) error { return nil }
func (s *fakeStore) LinkBoardToFolder(ctx context.Context, boardID, folderID string) error {
	return nil
}
func (s *fakeStore) CreateUser(ctx context.Context, u storage.UserRow) (int64, error) { return 0, nil }
func (s *fakeStore) GetUserByLogin(ctx context.Context, login string) (storage.UserRow, error) {
	return storage.UserRow{}, nil
}
func (s *fakeStore) GetUserByID(ctx context.Context, id int64) (storage.UserRow, error) {
	return storage.UserRow{}, nil
}
func (s *fakeStore) IsJWTRevoked(ctx context.Context, token string) (bool, error) { return false, nil }
func (s *fakeStore) RevokeJWT(ctx context.Context, token string, expiresAt time.Time) error {
	return nil
}
func (s *fakeStore) SweepExpiredJWTs(ctx context.Context, olderThan time.Time) (int64, error) {
	return 0, nil
}

// newTestConnection spins up a real room actor (grounded the same way
// internal/roomactor's own tests are) and binds a connection to it
// without ever touching a real socket, letting dispatch be exercised
// directly.
func newTestConnection(t *testing.T) (*connection, *board.Room, context.CancelFunc) {
	t.Helper()
	store := &fakeStore{}
	ctx, cancel := context.WithCancel(context.Background())

	queue := dbqueue.New(store, 16, 5*time.Millisecond)
	queue.Start(ctx)

	room, err := board.NewRoom("pub1", "a board", board.Size{Height: 100, Width: 100}, nil)
	require.NoError(t, err)

	actor := roomactor.New("board-1", room, queue, store)
	go actor.Run(ctx)
	ref := actor.Ref()

	outbox := mailbox.NewUnbounded[protocol.ServerMessage]()
	ref.Join(ctx, "user1", outbox)

	return &connection{
		ref:    ref,
		userID: "user1",
		outbox: outbox,
		codec:  protocol.JSONCodec{},
	}, room, cancel
}

func recvWithTimeout(t *testing.T, out <-chan protocol.ServerMessage) protocol.ServerMessage {
	t.Helper()
	select {
	case msg := <-out:
		return msg
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for outbox message")
		return protocol.ServerMessage{}
	}
}

func TestDispatch_AuthWithCorrectTokenMarksConnectionAuthed(t *testing.T) {
	c, room, cancel := newTestConnection(t)
	defer cancel()

	c.dispatch(context.Background(), protocol.ClientMessage{Kind: protocol.MsgAuth, Token: room.PrivateID})

	assert.True(t, c.authed)
	msg := recvWithTimeout(t, c.outbox.Out)
	assert.Equal(t, protocol.MsgAuthed, msg.Kind)
}

func TestDispatch_AuthWithWrongTokenLeavesConnectionUnauthed(t *testing.T) {
	c, _, cancel := newTestConnection(t)
	defer cancel()

	c.dispatch(context.Background(), protocol.ClientMessage{Kind: protocol.MsgAuth, Token: "wrong"})

	assert.False(t, c.authed)
	msg := recvWithTimeout(t, c.outbox.Out)
	assert.Equal(t, protocol.MsgInfo, msg.Kind)
}

func TestDispatch_PushAfterAuthSucceeds(t *testing.T) {
	c, room, cancel := newTestConnection(t)
	defer cancel()

	c.dispatch(context.Background(), protocol.ClientMessage{Kind: protocol.MsgAuth, Token: room.PrivateID})
	recvWithTimeout(t, c.outbox.Out) // drain the Authed reply

	edit := board.Edit{Kind: board.EditAdd, ID: testEditID, Shape: &board.Shape{ID: "s1"}}
	c.dispatch(context.Background(), protocol.ClientMessage{Kind: protocol.MsgPush, Edits: []board.Edit{edit}})

	select {
	case msg := <-c.outbox.Out:
		t.Fatalf("unexpected error reply for a valid authed push: %+v", msg)
	case <-time.After(100 * time.Millisecond):
	}
}

func TestDispatch_SetSizeWithNilSizeReportsError(t *testing.T) {
	c, room, cancel := newTestConnection(t)
	defer cancel()

	c.dispatch(context.Background(), protocol.ClientMessage{Kind: protocol.MsgAuth, Token: room.PrivateID})
	recvWithTimeout(t, c.outbox.Out)

	c.dispatch(context.Background(), protocol.ClientMessage{Kind: protocol.MsgSetSize})

	msg := recvWithTimeout(t, c.outbox.Out)
	assert.Equal(t, protocol.MsgInfo, msg.Kind)
}

const testEditID = "111111111111111111111111111111111111"
