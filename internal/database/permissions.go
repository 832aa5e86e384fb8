package database

import (
	"context"
	"errors"

	"cloud-server/internal/models"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

var ErrPermissionFileNotFound = errors.New("file for permission grant not found")

// GrantPermission upserts an explicit ACL entry. Granting again for the
// same (file, user) pair replaces the permission level.
func (q *Queries) GrantPermission(ctx context.Context, fileID, userID, permission string) (*models.Permission, error) {
	query := `
		INSERT INTO file_permissions (file_id, user_id, permission)
		VALUES ($1, $2, $3)
		ON CONFLICT (file_id, user_id) DO UPDATE SET permission = EXCLUDED.permission, granted_at = now()
		RETURNING file_id, user_id, permission, granted_at
	`
	var p models.Permission
	err := q.db.QueryRow(ctx, query, fileID, userID, permission).Scan(
		&p.FileID,
		&p.UserID,
		&p.Permission,
		&p.GrantedAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23503" {
			return nil, ErrPermissionFileNotFound
		}
		return nil, err
	}

	return &p, nil
}

func (q *Queries) RevokePermission(ctx context.Context, fileID, userID string) (bool, error) {
	res, err := q.db.Exec(ctx, `DELETE FROM file_permissions WHERE file_id = $1 AND user_id = $2`, fileID, userID)
	if err != nil {
		return false, err
	}
	return res.RowsAffected() > 0, nil
}

func (q *Queries) GetPermission(ctx context.Context, fileID, userID string) (*models.Permission, error) {
	query := `SELECT file_id, user_id, permission, granted_at FROM file_permissions WHERE file_id = $1 AND user_id = $2`

	var p models.Permission
	err := q.db.QueryRow(ctx, query, fileID, userID).Scan(&p.FileID, &p.UserID, &p.Permission, &p.GrantedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &p, nil
}

func (q *Queries) ListFilePermissions(ctx context.Context, fileID string) ([]models.Permission, error) {
	query := `SELECT file_id, user_id, permission, granted_at FROM file_permissions WHERE file_id = $1 ORDER BY granted_at`

	rows, err := q.db.Query(ctx, query, fileID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var perms []models.Permission
	for rows.Next() {
		var p models.Permission
		if err := rows.Scan(&p.FileID, &p.UserID, &p.Permission, &p.GrantedAt); err != nil {
			return nil, err
		}
		perms = append(perms, p)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	if perms == nil {
		return []models.Permission{}, nil
	}

	return perms, nil
}
