package dbqueue

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/boardsync/server/internal/board"
	"github.com/boardsync/server/internal/storage"
)

// fakeStore records every call it receives, enough to assert batching and
// lane-isolation without a real Postgres connection.
type fakeStore struct {
	mu           sync.Mutex
	createdEdits []storage.EditRow
	statusCalls  int
	createdBoard storage.BoardRow
	updateCalls  int
	getEditsErr  error
}

func newFakeStore() *fakeStore { return &fakeStore{} }

func (s *fakeStore) CreateBoard(ctx context.Context, b storage.BoardRow) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.createdBoard = b
	return nil
}
func (s *fakeStore) GetBoardByPublicID(ctx context.Context, publicID string) (storage.BoardRow, error) {
	return storage.BoardRow{}, nil
}
func (s *fakeStore) GetEdits(ctx context.Context, boardID string) ([]storage.EditRow, []storage.EditRow, error) {
	return nil, nil, s.getEditsErr
}
func (s *fakeStore) DeleteBoard(ctx context.Context, boardID string) error { return nil }

func (s *fakeStore) BulkCreateEdits(ctx context.Context, rows []storage.EditRow) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.createdEdits = append(s.createdEdits, rows...)
	return nil
}

func (s *fakeStore) BulkSetEditStatus(ctx context.Context, boardID string, editIDs []string, status board.EditStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.statusCalls++
	return nil
}

func (s *fakeStore) DeleteEditsByStatus(ctx context.Context, boardID string, status board.EditStatus) error {
	return nil
}

func (s *fakeStore) UpdateBoardMeta(ctx context.Context, boardID string, title *string, size *board.Size, coEditorPrivateID *string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.updateCalls++
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

func (s *fakeStore) snapshotCreatedEdits() []storage.EditRow {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]storage.EditRow(nil), s.createdEdits...)
}

func TestQueue_SubmitCreateEditCommitsRows(t *testing.T) {
	store := newFakeStore()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	q := New(store, 16, time.Millisecond)
	q.Start(ctx)

	rows := []storage.EditRow{{EditID: "e1", BoardID: "b1"}, {EditID: "e2", BoardID: "b1"}}
	require.NoError(t, q.SubmitCreateEdit(ctx, rows))

	assert.Len(t, store.snapshotCreatedEdits(), 2)
}

func TestQueue_SubmitCreateEditSkipsEmptyRows(t *testing.T) {
	store := newFakeStore()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	q := New(store, 16, time.Millisecond)
	q.Start(ctx)

	require.NoError(t, q.SubmitCreateEdit(ctx, nil))
	assert.Empty(t, store.snapshotCreatedEdits())
}

func TestQueue_SubmitUpdateEditStatusCallsStore(t *testing.T) {
	store := newFakeStore()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	q := New(store, 16, time.Millisecond)
	q.Start(ctx)

	require.NoError(t, q.SubmitUpdateEditStatus(ctx, "b1", []string{"e1"}, board.StatusUndone))

	store.mu.Lock()
	defer store.mu.Unlock()
	assert.Equal(t, 1, store.statusCalls)
}

func TestQueue_SubmitReadEditsPropagatesStoreError(t *testing.T) {
	store := newFakeStore()
	store.getEditsErr = assert.AnError
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	q := New(store, 16, time.Millisecond)
	q.Start(ctx)

	_, _, err := q.SubmitReadEdits(ctx, "b1")
	assert.ErrorIs(t, err, assert.AnError)
}

func TestQueue_SubmitCreateBoardCallsStore(t *testing.T) {
	store := newFakeStore()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	q := New(store, 16, time.Millisecond)
	q.Start(ctx)

	require.NoError(t, q.SubmitCreateBoard(ctx, storage.BoardRow{ID: "b1"}))

	store.mu.Lock()
	defer store.mu.Unlock()
	assert.Equal(t, "b1", store.createdBoard.ID)
}

func TestQueue_SubmitUpdateBoardCallsStore(t *testing.T) {
	store := newFakeStore()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	q := New(store, 16, time.Millisecond)
	q.Start(ctx)

	title := "new title"
	require.NoError(t, q.SubmitUpdateBoard(ctx, "b1", &title, nil, nil))

	store.mu.Lock()
	defer store.mu.Unlock()
	assert.Equal(t, 1, store.updateCalls)
}

func TestQueue_SubmitReturnsOnContextDeadlineWhenNothingDrainsTheLane(t *testing.T) {
	store := newFakeStore()
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	q := New(store, 16, time.Millisecond)
	// Deliberately never call Start: nothing will ever drain the lane, so
	// the submit must return via ctx expiry rather than hang forever.

	err := q.SubmitCreateEdit(ctx, []storage.EditRow{{EditID: "e1"}})
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}
