package accounts

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/boardsync/server/internal/apperr"
	"github.com/boardsync/server/internal/board"
	"github.com/boardsync/server/internal/storage"
)

// fakeStore is a minimal in-memory storage.Store for exercising the
// bcrypt register/login flow without a real Postgres connection.
type fakeStore struct {
	mu       sync.Mutex
	users    map[int64]storage.UserRow
	nextUser int64
}

func newFakeStore() *fakeStore {
	return &fakeStore{users: make(map[int64]storage.UserRow)}
}

func (s *fakeStore) CreateBoard(ctx context.Context, b storage.BoardRow) error { return nil }
func (s *fakeStore) GetBoardByPublicID(ctx context.Context, publicID string) (storage.BoardRow, error) {
	return storage.BoardRow{}, nil
}
func (s *fakeStore) GetEdits(ctx context.Context, boardID string) ([]storage.EditRow, []storage.EditRow, error) {
	return nil, nil, nil
}
func (s *fakeStore) DeleteBoard(ctx context.Context, boardID string) error { return nil }
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
func (s *fakeStore) DeleteFolder(ctx context.Context, folderID string) error       { return nil }
func (s *fakeStore) LinkBoardToFolder(ctx context.Context, boardID, folderID string) error { return nil }

func (s *fakeStore) CreateUser(ctx context.Context, u storage.UserRow) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.users {
		if existing.Login == u.Login {
			return 0, apperr.New(apperr.Validation, "login already taken")
		}
	}
	s.nextUser++
	u.ID = s.nextUser
	s.users[u.ID] = u
	return u.ID, nil
}

func (s *fakeStore) GetUserByLogin(ctx context.Context, login string) (storage.UserRow, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, u := range s.users {
		if u.Login == login {
			return u, nil
		}
	}
	return storage.UserRow{}, apperr.ErrUserNotFound
}

func (s *fakeStore) GetUserByID(ctx context.Context, id int64) (storage.UserRow, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok {
		return storage.UserRow{}, apperr.ErrUserNotFound
	}
	return u, nil
}

func (s *fakeStore) IsJWTRevoked(ctx context.Context, token string) (bool, error) { return false, nil }
func (s *fakeStore) RevokeJWT(ctx context.Context, token string, expiresAt time.Time) error {
	return nil
}
func (s *fakeStore) SweepExpiredJWTs(ctx context.Context, olderThan time.Time) (int64, error) {
	return 0, nil
}

func TestService_RegisterAndLogin(t *testing.T) {
	store := newFakeStore()
	svc := NewService(store)

	data, err := svc.Register(context.Background(), "ada", "hunter2", "ada_l", "Ada", "Lovelace")
	require.NoError(t, err)
	assert.Equal(t, "ada", data.Login)
	assert.NotZero(t, data.ID)

	loggedIn, err := svc.Login(context.Background(), "ada", "hunter2")
	require.NoError(t, err)
	assert.Equal(t, data, loggedIn)
}

func TestService_LoginRejectsWrongPassword(t *testing.T) {
	store := newFakeStore()
	svc := NewService(store)

	_, err := svc.Register(context.Background(), "bob", "correct-horse", "", "", "")
	require.NoError(t, err)

	_, err = svc.Login(context.Background(), "bob", "wrong-password")
	require.Error(t, err)
}

func TestService_LoginRejectsUnknownUser(t *testing.T) {
	store := newFakeStore()
	svc := NewService(store)

	_, err := svc.Login(context.Background(), "ghost", "whatever")
	require.Error(t, err)
}

func TestService_GetByID(t *testing.T) {
	store := newFakeStore()
	svc := NewService(store)

	data, err := svc.Register(context.Background(), "carol", "s3cret!", "", "Carol", "")
	require.NoError(t, err)

	got, err := svc.GetByID(context.Background(), data.ID)
	require.NoError(t, err)
	assert.Equal(t, data, got)
}
