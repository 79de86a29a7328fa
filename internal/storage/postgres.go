package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/lib/pq"

	"github.com/boardsync/server/internal/apperr"
	"github.com/boardsync/server/internal/board"
)

// PostgresStore is the lib/pq-backed Store implementation. A single
// *sql.DB connection pool is shared across every DB Queue flusher, per
// SPEC_FULL.md §5's shared-resource policy.
type PostgresStore struct {
	db *sql.DB
}

// Open opens a pooled connection to dsn and verifies it with a ping.
func Open(ctx context.Context, dsn string) (*PostgresStore, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, apperr.Wrap(apperr.Storage, "failed to open database", err)
	}
	if err := db.PingContext(ctx); err != nil {
		return nil, apperr.Wrap(apperr.Storage, "failed to reach database", err)
	}
	return &PostgresStore{db: db}, nil
}

func (s *PostgresStore) Close() error { return s.db.Close() }

// PingContext satisfies health.Pinger for readiness checks.
func (s *PostgresStore) PingContext(ctx context.Context) error { return s.db.PingContext(ctx) }

func (s *PostgresStore) CreateBoard(ctx context.Context, b BoardRow) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO boards (id, public_id, private_id, co_editor_private_id, owner_id, title, height, width)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		b.ID, b.PublicID, b.PrivateID, b.CoEditorPrivateID, b.OwnerID, b.Title, b.Height, b.Width)
	if err != nil {
		return apperr.Wrap(apperr.Storage, "failed to create board", err)
	}
	return nil
}

func (s *PostgresStore) GetBoardByPublicID(ctx context.Context, publicID string) (BoardRow, error) {
	var b BoardRow
	row := s.db.QueryRowContext(ctx,
		`SELECT id, public_id, private_id, co_editor_private_id, owner_id, title, height, width
		 FROM boards WHERE public_id = $1`, publicID)
	if err := row.Scan(&b.ID, &b.PublicID, &b.PrivateID, &b.CoEditorPrivateID, &b.OwnerID, &b.Title, &b.Height, &b.Width); err != nil {
		if err == sql.ErrNoRows {
			return BoardRow{}, apperr.Wrap(apperr.NotFound, "no such room", err)
		}
		return BoardRow{}, apperr.Wrap(apperr.Storage, "failed to read board", err)
	}
	return b, nil
}

func (s *PostgresStore) GetEdits(ctx context.Context, boardID string) (current, undone []EditRow, err error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT edit_id, board_id, status, changed_at, data FROM edits WHERE board_id = $1 ORDER BY changed_at`,
		boardID)
	if err != nil {
		return nil, nil, apperr.Wrap(apperr.Storage, "failed to read edits", err)
	}
	defer rows.Close()
	for rows.Next() {
		var r EditRow
		var status string
		if err := rows.Scan(&r.EditID, &r.BoardID, &status, &r.ChangedAt, &r.Data); err != nil {
			return nil, nil, apperr.Wrap(apperr.Storage, "failed to scan edit row", err)
		}
		r.Status = board.EditStatus(status)
		if r.Status == board.StatusCurrent {
			current = append(current, r)
		} else {
			undone = append(undone, r)
		}
	}
	return current, undone, rows.Err()
}

func (s *PostgresStore) DeleteBoard(ctx context.Context, boardID string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM boards WHERE id = $1`, boardID); err != nil {
		return apperr.Wrap(apperr.Storage, "failed to delete board", err)
	}
	return nil
}

// BulkCreateEdits uses pq's CopyIn (a text-format COPY FROM STDIN inside
// one transaction) for the bulk edit insert.
func (s *PostgresStore) BulkCreateEdits(ctx context.Context, rows []EditRow) error {
	if len(rows) == 0 {
		return nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return apperr.Wrap(apperr.Storage, "failed to begin tx", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, pq.CopyIn("edits", "edit_id", "board_id", "status", "changed_at", "data"))
	if err != nil {
		return apperr.Wrap(apperr.Storage, "failed to prepare copy-in", err)
	}
	for _, r := range rows {
		if _, err := stmt.ExecContext(ctx, r.EditID, r.BoardID, string(r.Status), r.ChangedAt, r.Data); err != nil {
			return apperr.Wrap(apperr.Storage, "failed to copy edit row", err)
		}
	}
	if _, err := stmt.ExecContext(ctx); err != nil {
		return apperr.Wrap(apperr.Storage, "failed to flush copy-in", err)
	}
	if err := stmt.Close(); err != nil {
		return apperr.Wrap(apperr.Storage, "failed to close copy-in statement", err)
	}
	if err := tx.Commit(); err != nil {
		return apperr.Wrap(apperr.Storage, "failed to commit bulk edit create", err)
	}
	return nil
}

func (s *PostgresStore) BulkSetEditStatus(ctx context.Context, boardID string, editIDs []string, status board.EditStatus) error {
	if len(editIDs) == 0 {
		return nil
	}
	_, err := s.db.ExecContext(ctx,
		`UPDATE edits SET status = $1, changed_at = now() WHERE board_id = $2 AND edit_id = ANY($3)`,
		string(status), boardID, pq.Array(editIDs))
	if err != nil {
		return apperr.Wrap(apperr.Storage, "failed to bulk update edit status", err)
	}
	return nil
}

func (s *PostgresStore) DeleteEditsByStatus(ctx context.Context, boardID string, status board.EditStatus) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM edits WHERE board_id = $1 AND status = $2`, boardID, string(status))
	if err != nil {
		return apperr.Wrap(apperr.Storage, "failed to delete edits by status", err)
	}
	return nil
}

func (s *PostgresStore) UpdateBoardMeta(ctx context.Context, boardID string, title *string, size *board.Size, coEditorPrivateID *string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return apperr.Wrap(apperr.Storage, "failed to begin tx", err)
	}
	defer tx.Rollback()

	if title != nil {
		if _, err := tx.ExecContext(ctx, `UPDATE boards SET title = $1 WHERE id = $2`, *title, boardID); err != nil {
			return apperr.Wrap(apperr.Storage, "failed to update board title", err)
		}
	}
	if size != nil {
		if _, err := tx.ExecContext(ctx, `UPDATE boards SET height = $1, width = $2 WHERE id = $3`, size.Height, size.Width, boardID); err != nil {
			return apperr.Wrap(apperr.Storage, "failed to update board size", err)
		}
	}
	if coEditorPrivateID != nil {
		if _, err := tx.ExecContext(ctx, `UPDATE boards SET co_editor_private_id = $1 WHERE id = $2`, *coEditorPrivateID, boardID); err != nil {
			return apperr.Wrap(apperr.Storage, "failed to update co-editor token", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return apperr.Wrap(apperr.Storage, "failed to commit board update", err)
	}
	return nil
}

func (s *PostgresStore) CreateFolder(ctx context.Context, f FolderRow) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO folders (id, public_id, title, owner_id) VALUES ($1, $2, $3, $4)`,
		f.ID, f.PublicID, f.Title, f.OwnerID)
	if err != nil {
		return apperr.Wrap(apperr.Storage, "failed to create folder", err)
	}
	return nil
}

func (s *PostgresStore) ListFolders(ctx context.Context, ownerID int64) ([]FolderRow, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, public_id, title, owner_id FROM folders WHERE owner_id = $1`, ownerID)
	if err != nil {
		return nil, apperr.Wrap(apperr.Storage, "failed to list folders", err)
	}
	defer rows.Close()
	var out []FolderRow
	for rows.Next() {
		var f FolderRow
		if err := rows.Scan(&f.ID, &f.PublicID, &f.Title, &f.OwnerID); err != nil {
			return nil, apperr.Wrap(apperr.Storage, "failed to scan folder row", err)
		}
		out = append(out, f)
	}
	return out, rows.Err()
}

func (s *PostgresStore) DeleteFolder(ctx context.Context, folderID string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM folders WHERE id = $1`, folderID); err != nil {
		return apperr.Wrap(apperr.Storage, "failed to delete folder", err)
	}
	return nil
}

func (s *PostgresStore) LinkBoardToFolder(ctx context.Context, boardID, folderID string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO board_folder (board_id, folder_id) VALUES ($1, $2) ON CONFLICT DO NOTHING`,
		boardID, folderID)
	if err != nil {
		return apperr.Wrap(apperr.Storage, fmt.Sprintf("failed to link board %s to folder %s", boardID, folderID), err)
	}
	return nil
}

func (s *PostgresStore) CreateUser(ctx context.Context, u UserRow) (int64, error) {
	var id int64
	err := s.db.QueryRowContext(ctx,
		`INSERT INTO users (login, password_hash, public_login, first_name, second_name)
		 VALUES ($1, $2, $3, $4, $5) RETURNING id`,
		u.Login, u.PasswordHash, u.PublicLogin, u.FirstName, u.SecondName).Scan(&id)
	if err != nil {
		return 0, apperr.Wrap(apperr.Storage, "failed to create user", err)
	}
	return id, nil
}

func (s *PostgresStore) GetUserByLogin(ctx context.Context, login string) (UserRow, error) {
	var u UserRow
	err := s.db.QueryRowContext(ctx,
		`SELECT id, login, password_hash, public_login, first_name, second_name FROM users WHERE login = $1`,
		login).Scan(&u.ID, &u.Login, &u.PasswordHash, &u.PublicLogin, &u.FirstName, &u.SecondName)
	if err == sql.ErrNoRows {
		return UserRow{}, apperr.Wrap(apperr.NotFound, "no such user", err)
	}
	if err != nil {
		return UserRow{}, apperr.Wrap(apperr.Storage, "failed to get user by login", err)
	}
	return u, nil
}

func (s *PostgresStore) GetUserByID(ctx context.Context, id int64) (UserRow, error) {
	var u UserRow
	err := s.db.QueryRowContext(ctx,
		`SELECT id, login, password_hash, public_login, first_name, second_name FROM users WHERE id = $1`,
		id).Scan(&u.ID, &u.Login, &u.PasswordHash, &u.PublicLogin, &u.FirstName, &u.SecondName)
	if err == sql.ErrNoRows {
		return UserRow{}, apperr.Wrap(apperr.NotFound, "no such user", err)
	}
	if err != nil {
		return UserRow{}, apperr.Wrap(apperr.Storage, "failed to get user by id", err)
	}
	return u, nil
}

// IsJWTRevoked mirrors the original implementation's entities/jwt.rs
// exists() — a refresh token is usable exactly once, recorded here the
// moment it is exchanged for a new pair.
func (s *PostgresStore) IsJWTRevoked(ctx context.Context, token string) (bool, error) {
	var count int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(id) FROM expired_jwts WHERE jwt_data = $1`, token).Scan(&count)
	if err != nil {
		return false, apperr.Wrap(apperr.Storage, "failed to check jwt revocation", err)
	}
	return count > 0, nil
}

func (s *PostgresStore) RevokeJWT(ctx context.Context, token string, expiresAt time.Time) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO expired_jwts (jwt_data, expires_at) VALUES ($1, $2) ON CONFLICT (jwt_data) DO NOTHING`,
		token, expiresAt)
	if err != nil {
		return apperr.Wrap(apperr.Storage, "failed to revoke jwt", err)
	}
	return nil
}

// SweepExpiredJWTs deletes revocation rows whose token would have expired
// anyway, keeping the table from growing without bound. Returns the
// number of rows removed.
func (s *PostgresStore) SweepExpiredJWTs(ctx context.Context, olderThan time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM expired_jwts WHERE expires_at < $1`, olderThan)
	if err != nil {
		return 0, apperr.Wrap(apperr.Storage, "failed to sweep expired jwts", err)
	}
	return res.RowsAffected()
}
