package auth

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

// fakeStore is a minimal in-memory storage.Store, enough to exercise the
// JWT revocation table without a real Postgres connection.
type fakeStore struct {
	mu       sync.Mutex
	revoked  map[string]time.Time
	users    map[int64]storage.UserRow
	nextUser int64
}

func newFakeStore() *fakeStore {
	return &fakeStore{revoked: make(map[string]time.Time), users: make(map[int64]storage.UserRow)}
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

func (s *fakeStore) IsJWTRevoked(ctx context.Context, token string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.revoked[token]
	return ok, nil
}

func (s *fakeStore) RevokeJWT(ctx context.Context, token string, expiresAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.revoked[token] = expiresAt
	return nil
}

func (s *fakeStore) SweepExpiredJWTs(ctx context.Context, olderThan time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var n int64
	for token, exp := range s.revoked {
		if exp.Before(olderThan) {
			delete(s.revoked, token)
			n++
		}
	}
	return n, nil
}

func TestIssuer_IssueAndVerifyAccessToken(t *testing.T) {
	store := newFakeStore()
	issuer := NewIssuer("super-secret-test-key-thats-long-enough", store)

	data := UserData{ID: 1, Login: "ada"}
	access, refresh, err := issuer.IssueTokens(data)
	require.NoError(t, err)
	require.NotEmpty(t, access)
	require.NotEmpty(t, refresh)

	got, err := issuer.VerifyAccessToken(access)
	require.NoError(t, err)
	assert.Equal(t, data, got)
}

func TestIssuer_RotateRefreshTokenRevokesOldOne(t *testing.T) {
	store := newFakeStore()
	issuer := NewIssuer("super-secret-test-key-thats-long-enough", store)

	data := UserData{ID: 2, Login: "bob"}
	_, refresh, err := issuer.IssueTokens(data)
	require.NoError(t, err)

	_, newRefresh, rotatedData, err := issuer.RotateRefreshToken(context.Background(), refresh)
	require.NoError(t, err)
	assert.Equal(t, data, rotatedData)
	assert.NotEqual(t, refresh, newRefresh)

	_, _, _, err = issuer.RotateRefreshToken(context.Background(), refresh)
	assert.Error(t, err, "a rotated refresh token must not be usable a second time")
}

func TestIssuer_ExpireRefreshTokenRevokesIt(t *testing.T) {
	store := newFakeStore()
	issuer := NewIssuer("super-secret-test-key-thats-long-enough", store)

	_, refresh, err := issuer.IssueTokens(UserData{ID: 3})
	require.NoError(t, err)

	require.NoError(t, issuer.ExpireRefreshToken(context.Background(), refresh))

	_, err = issuer.VerifyRefreshToken(context.Background(), refresh)
	assert.Error(t, err)
}

func TestIssuer_VerifyAccessToken_RejectsWrongSecret(t *testing.T) {
	store := newFakeStore()
	issuer := NewIssuer("super-secret-test-key-thats-long-enough", store)
	other := NewIssuer("a-totally-different-secret-key-value", store)

	access, _, err := issuer.IssueTokens(UserData{ID: 4})
	require.NoError(t, err)

	_, err = other.VerifyAccessToken(access)
	assert.Error(t, err)
}

func TestSweepExpiredJWTs(t *testing.T) {
	store := newFakeStore()
	require.NoError(t, store.RevokeJWT(context.Background(), "old", time.Now().Add(-time.Hour)))
	require.NoError(t, store.RevokeJWT(context.Background(), "fresh", time.Now().Add(time.Hour)))

	n, err := SweepExpiredJWTs(context.Background(), store)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
}
