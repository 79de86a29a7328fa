package board

import (
	"crypto/rand"
	"encoding/base64"

	"github.com/boardsync/server/internal/apperr"
)

// Size is a room's canvas dimensions, each bounded by MaxDimensionSize.
type Size struct {
	Height uint32 `json:"height"`
	Width  uint32 `json:"width"`
}

func (s Size) Validate() error {
	if float64(s.Height) > MaxDimensionSize || float64(s.Width) > MaxDimensionSize {
		return apperr.Wrap(apperr.Validation, "size is too big", apperr.ErrSizeTooLarge)
	}
	return nil
}

// Room is a board's authoritative state, as owned by its actor. The
// member table itself lives in roomactor, not here — EditLog and Room
// hold only the data the design calls "board" state; membership and
// mailboxes are the actor's concern so this package stays free of any
// concurrency primitive.
type Room struct {
	PublicID           string
	PrivateID          string
	CoEditorPrivateID  string
	OwnerID            *int64
	Title              string
	Size               Size
	Log                *EditLog
}

// NewRoom constructs a brand-new room with freshly generated secrets.
func NewRoom(publicID, title string, size Size, ownerID *int64) (*Room, error) {
	if len([]rune(title)) > MaxTitleLength {
		return nil, apperr.Wrap(apperr.Validation, "title is too long", apperr.ErrTitleTooLong)
	}
	if err := size.Validate(); err != nil {
		return nil, err
	}
	privateID, err := generateSecret("")
	if err != nil {
		return nil, err
	}
	coEditorID, err := generateSecret("_co_editor")
	if err != nil {
		return nil, err
	}
	return &Room{
		PublicID:          publicID,
		PrivateID:         privateID,
		CoEditorPrivateID: coEditorID,
		OwnerID:           ownerID,
		Title:             title,
		Size:              size,
		Log:               NewEditLog(nil, nil),
	}, nil
}

// Hydrate reconstructs a Room from a persisted row and its already-loaded
// edit log, used by the Room Registry on a registry miss. Unlike NewRoom,
// it trusts the stored secrets and does not re-validate title/size — a
// row already accepted by CreateBoard is assumed to have passed those
// checks at creation time.
func Hydrate(publicID, privateID, coEditorPrivateID, title string, size Size, ownerID *int64, log *EditLog) *Room {
	return &Room{
		PublicID:          publicID,
		PrivateID:         privateID,
		CoEditorPrivateID: coEditorPrivateID,
		OwnerID:           ownerID,
		Title:             title,
		Size:              size,
		Log:               log,
	}
}

// SetTitle rejects titles over MaxTitleLength code points.
func (r *Room) SetTitle(title string) error {
	if len([]rune(title)) > MaxTitleLength {
		return apperr.Wrap(apperr.Validation, "title is too long", apperr.ErrTitleTooLong)
	}
	r.Title = title
	return nil
}

// SetSize validates and applies a new canvas size.
func (r *Room) SetSize(size Size) error {
	if err := size.Validate(); err != nil {
		return err
	}
	r.Size = size
	return nil
}

// RotateCoEditorToken generates a fresh co-editor secret, replacing the
// old one — the owner-triggered operation that evicts outstanding
// co-editor sessions by invalidating the token they authenticated with.
func (r *Room) RotateCoEditorToken() (string, error) {
	token, err := generateSecret("_co_editor")
	if err != nil {
		return "", err
	}
	r.CoEditorPrivateID = token
	return token, nil
}

// generateSecret produces base64url(32 random bytes) + suffix, matching
// the original implementation's HS256Key-derived room secrets.
func generateSecret(suffix string) (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", apperr.Wrap(apperr.Storage, "failed to generate secret", err)
	}
	return base64.RawURLEncoding.EncodeToString(buf) + suffix, nil
}
