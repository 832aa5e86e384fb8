package database

import (
	"context"
	"errors"

	"cloud-server/internal/models"
)

// GetUserStorage returns the owner's quota record, creating it lazily
// with defaultLimit on first touch.
func (q *Queries) GetUserStorage(ctx context.Context, userID string, defaultLimit int64) (*models.UserStorage, error) {
	query := `
		INSERT INTO user_storage (user_id, used_bytes, limit_bytes)
		VALUES ($1, 0, $2)
		ON CONFLICT (user_id) DO UPDATE SET user_id = EXCLUDED.user_id
		RETURNING user_id, used_bytes, limit_bytes, last_updated
	`
	var s models.UserStorage
	err := q.db.QueryRow(ctx, query, userID, defaultLimit).Scan(
		&s.UserID,
		&s.UsedBytes,
		&s.LimitBytes,
		&s.LastUpdated,
	)
	if err != nil {
		return nil, err
	}
	return &s, nil
}

// AdjustUserStorage shifts the usage counter by delta bytes (negative
// for deletes). The row must already exist; callers go through
// GetUserStorage first.
func (q *Queries) AdjustUserStorage(ctx context.Context, userID string, delta int64) error {
	query := `
		UPDATE user_storage
		SET used_bytes = GREATEST(used_bytes + $2, 0), last_updated = now()
		WHERE user_id = $1
	`
	res, err := q.db.Exec(ctx, query, userID, delta)
	if err != nil {
		return err
	}
	if res.RowsAffected() == 0 {
		return errors.New("user storage record missing")
	}
	return nil
}

// SetUserStorageUsed overwrites the counter with a freshly walked
// total. Used by the reconciliation sweep.
func (q *Queries) SetUserStorageUsed(ctx context.Context, userID string, usedBytes int64) error {
	query := `
		UPDATE user_storage
		SET used_bytes = $2, last_updated = now()
		WHERE user_id = $1
	`
	_, err := q.db.Exec(ctx, query, userID, usedBytes)
	return err
}

// SetUserStorageLimit persists a new byte limit; usage is untouched.
func (q *Queries) SetUserStorageLimit(ctx context.Context, userID string, limitBytes, defaultLimit int64) (*models.UserStorage, error) {
	query := `
		INSERT INTO user_storage (user_id, used_bytes, limit_bytes)
		VALUES ($1, 0, $2)
		ON CONFLICT (user_id) DO UPDATE SET limit_bytes = $2, last_updated = now()
		RETURNING user_id, used_bytes, limit_bytes, last_updated
	`
	var s models.UserStorage
	err := q.db.QueryRow(ctx, query, userID, limitBytes).Scan(
		&s.UserID,
		&s.UsedBytes,
		&s.LimitBytes,
		&s.LastUpdated,
	)
	if err != nil {
		return nil, err
	}
	return &s, nil
}

// ListUserStorage returns every quota record, most recently touched
// first. Backs the admin overview.
func (q *Queries) ListUserStorage(ctx context.Context) ([]models.UserStorage, error) {
	query := `
		SELECT user_id, used_bytes, limit_bytes, last_updated
		FROM user_storage
		ORDER BY last_updated DESC
	`
	rows, err := q.db.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []models.UserStorage
	for rows.Next() {
		var s models.UserStorage
		if err := rows.Scan(&s.UserID, &s.UsedBytes, &s.LimitBytes, &s.LastUpdated); err != nil {
			return nil, err
		}
		records = append(records, s)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	if records == nil {
		return []models.UserStorage{}, nil
	}

	return records, nil
}
