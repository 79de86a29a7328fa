// Package accounts is the thin bcrypt-backed registration/login layer
// backing /auth routes, grounded on the original implementation's login
// flow (server/src/auth.rs, server/src/api/auth_route.rs): a login/
// password pair hashed with bcrypt, verified on login, then handed to
// internal/auth to mint a JWT pair.
package accounts

import (
	"context"

	"golang.org/x/crypto/bcrypt"

	"github.com/boardsync/server/internal/apperr"
	"github.com/boardsync/server/internal/auth"
	"github.com/boardsync/server/internal/storage"
)

// Service is the registration/login boundary.
type Service struct {
	store storage.Store
}

func NewService(store storage.Store) *Service {
	return &Service{store: store}
}

// Register creates a new account, hashing password with bcrypt's default
// cost. login must be unique; publicLogin/firstName/secondName are
// user-facing display fields, distinct from the unique login handle.
func (s *Service) Register(ctx context.Context, login, password, publicLogin, firstName, secondName string) (auth.UserData, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return auth.UserData{}, apperr.Wrap(apperr.Storage, "failed to hash password", err)
	}
	id, err := s.store.CreateUser(ctx, storage.UserRow{
		Login:        login,
		PasswordHash: string(hash),
		PublicLogin:  publicLogin,
		FirstName:    firstName,
		SecondName:   secondName,
	})
	if err != nil {
		return auth.UserData{}, err
	}
	return auth.UserData{ID: id, Login: login, PublicLogin: publicLogin, FirstName: firstName, SecondName: secondName}, nil
}

// Login verifies login/password against the stored bcrypt hash.
func (s *Service) Login(ctx context.Context, login, password string) (auth.UserData, error) {
	row, err := s.store.GetUserByLogin(ctx, login)
	if err != nil {
		return auth.UserData{}, err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(row.PasswordHash), []byte(password)); err != nil {
		return auth.UserData{}, apperr.New(apperr.Auth, "login or password is incorrect")
	}
	return auth.UserData{
		ID: row.ID, Login: row.Login, PublicLogin: row.PublicLogin,
		FirstName: row.FirstName, SecondName: row.SecondName,
	}, nil
}

// GetByID loads a user's public profile, used to refresh UserData claims
// on token rotation in case the profile changed since the last login.
func (s *Service) GetByID(ctx context.Context, id int64) (auth.UserData, error) {
	row, err := s.store.GetUserByID(ctx, id)
	if err != nil {
		return auth.UserData{}, err
	}
	return auth.UserData{
		ID: row.ID, Login: row.Login, PublicLogin: row.PublicLogin,
		FirstName: row.FirstName, SecondName: row.SecondName,
	}, nil
}
