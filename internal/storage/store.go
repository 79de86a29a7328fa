// Package storage is the relational-store boundary. Per SPEC_FULL.md §1,
// the storage driver itself is external to the core; this package is the
// concrete Postgres-backed implementation the rest of the system is
// wired against through the Store interface.
package storage

import (
	"context"
	"time"

	"github.com/boardsync/server/internal/board"
)

// EditRow is the persisted shape of a single edits table row.
type EditRow struct {
	EditID    string
	BoardID   string
	Status    board.EditStatus
	ChangedAt time.Time
	Data      []byte // codec-encoded Edit payload
}

// BoardRow is the persisted shape of a single boards table row.
type BoardRow struct {
	ID                string
	PublicID          string
	PrivateID         string
	CoEditorPrivateID string
	OwnerID           *int64
	Title             string
	Height            uint32
	Width             uint32
}

// FolderRow is the persisted shape of a single folders table row.
type FolderRow struct {
	ID       string
	PublicID string
	Title    string
	OwnerID  int64
}

// UserRow is the persisted shape of a single users table row.
type UserRow struct {
	ID           int64
	Login        string
	PasswordHash string
	PublicLogin  string
	FirstName    string
	SecondName   string
}

// Store is the persistence boundary the DB Queue's flushers and the HTTP
// surface's room/folder CRUD both depend on.
type Store interface {
	// CreateBoard inserts a brand-new board row (room creation, not a
	// hot-path/DB-Queue operation).
	CreateBoard(ctx context.Context, b BoardRow) error
	// GetBoardByPublicID hydrates a board by its public id, used by the
	// Room Registry on a registry miss.
	GetBoardByPublicID(ctx context.Context, publicID string) (BoardRow, error)
	// GetEdits returns every edit row for a board, split by status.
	GetEdits(ctx context.Context, boardID string) (current, undone []EditRow, err error)
	// DeleteBoard removes a board row and its edits (by cascade).
	DeleteBoard(ctx context.Context, boardID string) error

	// BulkCreateEdits bulk-inserts edit rows via a single COPY, per
	// SPEC_FULL.md §11's grounding for lib/pq's pq.CopyIn.
	BulkCreateEdits(ctx context.Context, rows []EditRow) error
	// BulkSetEditStatus updates the status column for the given edit ids.
	BulkSetEditStatus(ctx context.Context, boardID string, editIDs []string, status board.EditStatus) error
	// DeleteEditsByStatus deletes every edit row of the given status for
	// a board — the Empty/compacted-queue resolution's DELETE-before-apply
	// step.
	DeleteEditsByStatus(ctx context.Context, boardID string, status board.EditStatus) error
	// UpdateBoardMeta applies a title, size, and/or co-editor-token
	// rotation in one transaction.
	UpdateBoardMeta(ctx context.Context, boardID string, title *string, size *board.Size, coEditorPrivateID *string) error

	// CreateFolder / ListFolders / DeleteFolder / LinkBoardToFolder back
	// the supplemented folder CRUD surface (SPEC_FULL.md §13).
	CreateFolder(ctx context.Context, f FolderRow) error
	ListFolders(ctx context.Context, ownerID int64) ([]FolderRow, error)
	DeleteFolder(ctx context.Context, folderID string) error
	LinkBoardToFolder(ctx context.Context, boardID, folderID string) error

	// CreateUser / GetUserByLogin back accounts's bcrypt-backed
	// registration and login (SPEC_FULL.md §7).
	CreateUser(ctx context.Context, u UserRow) (int64, error)
	GetUserByLogin(ctx context.Context, login string) (UserRow, error)
	GetUserByID(ctx context.Context, id int64) (UserRow, error)

	// IsJWTRevoked / RevokeJWT / SweepExpiredJWTs back internal/auth's
	// refresh-token revocation list, grounded directly on the original
	// implementation's entities/jwt.rs exists()/create() pair.
	IsJWTRevoked(ctx context.Context, token string) (bool, error)
	RevokeJWT(ctx context.Context, token string, expiresAt time.Time) error
	SweepExpiredJWTs(ctx context.Context, olderThan time.Time) (int64, error)
}
