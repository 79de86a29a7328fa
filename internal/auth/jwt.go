// Package auth issues and verifies the HTTP-surface's access/refresh JWT
// pair, grounded directly on the original implementation's
// libs/auth.rs: a 15-minute HS256 access token and a 30-day HS256
// refresh token, each carrying the same UserData claims, with refresh
// tokens single-use via the expired_jwts revocation table (entities/jwt.rs).
// This is distinct from roomactor's own room-secret bearer auth, which
// never touches a JWT.
package auth

import (
	"context"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/boardsync/server/internal/apperr"
	"github.com/boardsync/server/internal/storage"
)

const (
	accessTokenTTL  = 15 * time.Minute
	refreshTokenTTL = 30 * 24 * time.Hour
)

// UserData is embedded as the token's custom claims, mirroring the
// original's UserData struct field-for-field.
type UserData struct {
	ID          int64  `json:"id"`
	Login       string `json:"login"`
	PublicLogin string `json:"public_login"`
	FirstName   string `json:"first_name"`
	SecondName  string `json:"second_name"`
}

type claims struct {
	UserData
	jwt.RegisteredClaims
}

// Issuer signs and verifies the access/refresh pair with a single HMAC
// secret, and consults Store for refresh-token single-use revocation.
type Issuer struct {
	secret []byte
	store  storage.Store
}

func NewIssuer(secret string, store storage.Store) *Issuer {
	return &Issuer{secret: []byte(secret), store: store}
}

// IssueTokens mints a fresh access/refresh pair for data.
func (i *Issuer) IssueTokens(data UserData) (accessToken, refreshToken string, err error) {
	accessToken, err = i.sign(data, accessTokenTTL)
	if err != nil {
		return "", "", err
	}
	refreshToken, err = i.sign(data, refreshTokenTTL)
	if err != nil {
		return "", "", err
	}
	return accessToken, refreshToken, nil
}

func (i *Issuer) sign(data UserData, ttl time.Duration) (string, error) {
	now := time.Now()
	c := claims{
		UserData: data,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, c)
	signed, err := token.SignedString(i.secret)
	if err != nil {
		return "", apperr.Wrap(apperr.Auth, "failed to sign jwt", err)
	}
	return signed, nil
}

// VerifyAccessToken validates an access token's signature and expiry and
// returns its claims. Access tokens are never checked against the
// revocation table — they are short-lived enough that the original
// implementation only revokes refresh tokens.
func (i *Issuer) VerifyAccessToken(tokenString string) (UserData, error) {
	c, err := i.parse(tokenString)
	if err != nil {
		return UserData{}, err
	}
	return c.UserData, nil
}

// VerifyRefreshToken validates a refresh token and ensures it has not
// already been exchanged, mirroring the original's verify_refresh_token.
func (i *Issuer) VerifyRefreshToken(ctx context.Context, tokenString string) (UserData, error) {
	c, err := i.parse(tokenString)
	if err != nil {
		return UserData{}, err
	}
	revoked, err := i.store.IsJWTRevoked(ctx, tokenString)
	if err != nil {
		return UserData{}, apperr.Wrap(apperr.Storage, "failed to check jwt revocation", err)
	}
	if revoked {
		return UserData{}, apperr.New(apperr.Auth, "refresh token already used")
	}
	return c.UserData, nil
}

// RotateRefreshToken revokes the presented refresh token and issues a
// fresh access/refresh pair, the original's get_jwt_tokens_from_refresh.
func (i *Issuer) RotateRefreshToken(ctx context.Context, refreshToken string) (accessToken, newRefreshToken string, data UserData, err error) {
	data, err = i.VerifyRefreshToken(ctx, refreshToken)
	if err != nil {
		return "", "", UserData{}, err
	}
	if err := i.store.RevokeJWT(ctx, refreshToken, time.Now().Add(refreshTokenTTL)); err != nil {
		return "", "", UserData{}, apperr.Wrap(apperr.Storage, "failed to revoke refresh token", err)
	}
	accessToken, newRefreshToken, err = i.IssueTokens(data)
	if err != nil {
		return "", "", UserData{}, err
	}
	return accessToken, newRefreshToken, data, nil
}

// ExpireRefreshToken revokes a refresh token outright (logout), the
// original's expire_refresh_token.
func (i *Issuer) ExpireRefreshToken(ctx context.Context, refreshToken string) error {
	data, err := i.VerifyRefreshToken(ctx, refreshToken)
	if err != nil {
		return err
	}
	_ = data
	return i.store.RevokeJWT(ctx, refreshToken, time.Now().Add(refreshTokenTTL))
}

func (i *Issuer) parse(tokenString string) (*claims, error) {
	var c claims
	token, err := jwt.ParseWithClaims(tokenString, &c, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return i.secret, nil
	})
	if err != nil || !token.Valid {
		return nil, apperr.Wrap(apperr.Auth, "invalid jwt", err)
	}
	return &c, nil
}

// SweepExpiredJWTs deletes revocation rows whose token has long since
// expired on its own, run periodically by cmd/server's sweep loop.
func SweepExpiredJWTs(ctx context.Context, store storage.Store) (int64, error) {
	return store.SweepExpiredJWTs(ctx, time.Now())
}
