package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/boardsync/server/internal/accounts"
	"github.com/boardsync/server/internal/apperr"
	"github.com/boardsync/server/internal/auth"
	"github.com/boardsync/server/internal/board"
	"github.com/boardsync/server/internal/dbqueue"
	"github.com/boardsync/server/internal/health"
	"github.com/boardsync/server/internal/registry"
	"github.com/boardsync/server/internal/storage"
	"github.com/boardsync/server/internal/transport"
)

// fakeStore is an in-memory storage.Store, independent of the
// per-package fakes in board/roomactor/dbqueue/registry so each
// package's tests stay self-contained the way the teacher's own
// per-package mocks do.
type fakeStore struct {
	mu      sync.Mutex
	boards  map[string]storage.BoardRow
	edits   map[string][]storage.EditRow
	folders map[string]storage.FolderRow
	users   map[string]storage.UserRow
	nextID  int64
	revoked map[string]bool
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		boards:  make(map[string]storage.BoardRow),
		edits:   make(map[string][]storage.EditRow),
		folders: make(map[string]storage.FolderRow),
		users:   make(map[string]storage.UserRow),
		revoked: make(map[string]bool),
	}
}

func (s *fakeStore) CreateBoard(ctx context.Context, b storage.BoardRow) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.boards[b.PublicID] = b
	return nil
}
func (s *fakeStore) GetBoardByPublicID(ctx context.Context, publicID string) (storage.BoardRow, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	row, ok := s.boards[publicID]
	if !ok {
		return storage.BoardRow{}, apperr.ErrRoomNotFound
	}
	return row, nil
}
func (s *fakeStore) GetEdits(ctx context.Context, boardID string) ([]storage.EditRow, []storage.EditRow, error) {
	return nil, nil, nil
}
func (s *fakeStore) DeleteBoard(ctx context.Context, boardID string) error { return nil }
func (s *fakeStore) BulkCreateEdits(ctx context.Context, rows []storage.EditRow) error {
	return nil
}
func (s *fakeStore) BulkSetEditStatus(ctx context.Context, boardID string, editIDs []string, status board.EditStatus) error {
	return nil
}
func (s *fakeStore) DeleteEditsByStatus(ctx context.Context, boardID string, status board.EditStatus) error {
	return nil
}
func (s *fakeStore) UpdateBoardMeta(ctx context.Context, boardID string, title *string, size *board.Size, coEditorPrivateID *string) error {
	return nil
}
func (s *fakeStore) CreateFolder(ctx context.Context, f storage.FolderRow) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.folders[f.ID] = f
	return nil
}
func (s *fakeStore) ListFolders(ctx context.Context, ownerID int64) ([]storage.FolderRow, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []storage.FolderRow
	for _, f := range s.folders {
		if f.OwnerID == ownerID {
			out = append(out, f)
		}
	}
	return out, nil
}
func (s *fakeStore) DeleteFolder(ctx context.Context, folderID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.folders, folderID)
	return nil
}
func (s *fakeStore) LinkBoardToFolder(ctx context.Context, boardID, folderID string) error {
	return nil
}
func (s *fakeStore) CreateUser(ctx context.Context, u storage.UserRow) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID++
	u.ID = s.nextID
	s.users[u.Login] = u
	return u.ID, nil
}
func (s *fakeStore) GetUserByLogin(ctx context.Context, login string) (storage.UserRow, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	row, ok := s.users[login]
	if !ok {
		return storage.UserRow{}, apperr.ErrUserNotFound
	}
	return row, nil
}
func (s *fakeStore) GetUserByID(ctx context.Context, id int64) (storage.UserRow, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, u := range s.users {
		if u.ID == id {
			return u, nil
		}
	}
	return storage.UserRow{}, apperr.ErrUserNotFound
}
func (s *fakeStore) IsJWTRevoked(ctx context.Context, token string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.revoked[token], nil
}
func (s *fakeStore) RevokeJWT(ctx context.Context, token string, expiresAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.revoked[token] = true
	return nil
}
func (s *fakeStore) SweepExpiredJWTs(ctx context.Context, olderThan time.Time) (int64, error) {
	return 0, nil
}

type fakePinger struct{}

func (fakePinger) PingContext(ctx context.Context) error { return nil }

func newTestRouter(t *testing.T) (*gin.Engine, *fakeStore) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	store := newFakeStore()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	queue := dbqueue.New(store, 16, time.Millisecond)
	queue.Start(ctx)

	reg := registry.New(store, queue)
	issuer := auth.NewIssuer("test-secret", store)
	acct := accounts.NewService(store)
	th := transport.NewHandler(reg, nil)
	hh := health.NewHandler(fakePinger{}, nil)

	router := NewRouter(Deps{
		Registry:  reg,
		Store:     store,
		Accounts:  acct,
		Issuer:    issuer,
		Health:    hh,
		Transport: th,
	})
	return router, store
}

func doJSON(router *gin.Engine, method, path string, body any, bearer string) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		_ = json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestRegisterThenLoginIssuesTokens(t *testing.T) {
	router, _ := newTestRouter(t)

	w := doJSON(router, http.MethodPost, "/auth/register", registerRequest{Login: "alice", Password: "hunter2"}, "")
	require.Equal(t, http.StatusCreated, w.Code)

	var reg tokenResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &reg))
	assert.NotEmpty(t, reg.AccessToken)
	assert.NotEmpty(t, reg.RefreshToken)

	w = doJSON(router, http.MethodPost, "/auth/login", loginRequest{Login: "alice", Password: "hunter2"}, "")
	require.Equal(t, http.StatusOK, w.Code)

	var login tokenResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &login))
	assert.NotEmpty(t, login.AccessToken)
}

func TestLoginWithWrongPasswordFails(t *testing.T) {
	router, _ := newTestRouter(t)

	w := doJSON(router, http.MethodPost, "/auth/register", registerRequest{Login: "bob", Password: "correct"}, "")
	require.Equal(t, http.StatusCreated, w.Code)

	w = doJSON(router, http.MethodPost, "/auth/login", loginRequest{Login: "bob", Password: "wrong"}, "")
	assert.NotEqual(t, http.StatusOK, w.Code)
}

func TestRefreshThenLogoutRevokesToken(t *testing.T) {
	router, _ := newTestRouter(t)

	w := doJSON(router, http.MethodPost, "/auth/register", registerRequest{Login: "carol", Password: "pw12345"}, "")
	require.Equal(t, http.StatusCreated, w.Code)
	var tokens tokenResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &tokens))

	w = doJSON(router, http.MethodPost, "/auth/refresh", refreshRequest{RefreshToken: tokens.RefreshToken}, "")
	require.Equal(t, http.StatusOK, w.Code)

	w = doJSON(router, http.MethodPost, "/auth/refresh", refreshRequest{RefreshToken: tokens.RefreshToken}, "")
	assert.NotEqual(t, http.StatusOK, w.Code, "a refresh token must be single-use")
}

func TestCreateRoomThenDeleteRequiresPrivateID(t *testing.T) {
	router, _ := newTestRouter(t)

	w := doJSON(router, http.MethodPost, "/room", createRoomRequest{Title: "my board", Height: 100, Width: 100}, "")
	require.Equal(t, http.StatusCreated, w.Code)

	var room roomResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &room))
	assert.NotEmpty(t, room.PublicID)
	assert.NotEmpty(t, room.PrivateID)

	w = doJSON(router, http.MethodDelete, "/room", roomCredentialsRequest{PublicID: room.PublicID, PrivateID: "wrong-secret"}, "")
	assert.NotEqual(t, http.StatusNoContent, w.Code)

	w = doJSON(router, http.MethodDelete, "/room", roomCredentialsRequest{PublicID: room.PublicID, PrivateID: room.PrivateID}, "")
	assert.Equal(t, http.StatusNoContent, w.Code)
}

func TestCoEditorRotateReturnsAFreshToken(t *testing.T) {
	router, _ := newTestRouter(t)

	w := doJSON(router, http.MethodPost, "/room", createRoomRequest{Title: "my board"}, "")
	require.Equal(t, http.StatusCreated, w.Code)
	var room roomResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &room))

	w = doJSON(router, http.MethodPost, "/room/co-editor/rotate", roomCredentialsRequest{PublicID: room.PublicID, PrivateID: room.PrivateID}, "")
	require.Equal(t, http.StatusOK, w.Code)

	var out map[string]string
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out))
	assert.NotEmpty(t, out["coEditorPrivateId"])
	assert.NotEqual(t, room.CoEditorPrivateID, out["coEditorPrivateId"])
}

func TestFolderRoutesRequireBearerToken(t *testing.T) {
	router, _ := newTestRouter(t)

	w := doJSON(router, http.MethodGet, "/folder", nil, "")
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestFolderCreateListAndDeleteRoundTrip(t *testing.T) {
	router, _ := newTestRouter(t)

	w := doJSON(router, http.MethodPost, "/auth/register", registerRequest{Login: "dana", Password: "pw123456"}, "")
	require.Equal(t, http.StatusCreated, w.Code)
	var tokens tokenResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &tokens))

	w = doJSON(router, http.MethodPost, "/folder", createFolderRequest{Title: "my folder"}, tokens.AccessToken)
	require.Equal(t, http.StatusCreated, w.Code)

	w = doJSON(router, http.MethodGet, "/folder", nil, tokens.AccessToken)
	require.Equal(t, http.StatusOK, w.Code)
	var folders []storage.FolderRow
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &folders))
	require.Len(t, folders, 1)

	w = doJSON(router, http.MethodDelete, "/folder/"+folders[0].ID, nil, tokens.AccessToken)
	assert.Equal(t, http.StatusNoContent, w.Code)
}

func TestHealthRoutesAreAlwaysReachable(t *testing.T) {
	router, _ := newTestRouter(t)

	w := doJSON(router, http.MethodGet, "/health/live", nil, "")
	assert.Equal(t, http.StatusOK, w.Code)

	w = doJSON(router, http.MethodGet, "/health/ready", nil, "")
	assert.Equal(t, http.StatusOK, w.Code)
}
