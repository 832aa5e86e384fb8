package database

import (
	"context"
	"errors"
	"time"

	"cloud-server/internal/models"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

var ErrDuplicateFileName = errors.New("an entry with the same name already exists at this path")

const fileColumns = `id, owner, path, name, file_type, size_bytes, mime_type, is_public, share_token, created_at, last_modified`

func scanFile(row pgx.Row) (*models.File, error) {
	var f models.File
	err := row.Scan(
		&f.ID,
		&f.Owner,
		&f.Path,
		&f.Name,
		&f.FileType,
		&f.SizeBytes,
		&f.MimeType,
		&f.IsPublic,
		&f.ShareToken,
		&f.CreatedAt,
		&f.LastModified,
	)
	if err != nil {
		return nil, err
	}
	return &f, nil
}

func collectFiles(rows pgx.Rows) ([]models.File, error) {
	defer rows.Close()

	var files []models.File
	for rows.Next() {
		f, err := scanFile(rows)
		if err != nil {
			return nil, err
		}
		files = append(files, *f)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	if files == nil {
		return []models.File{}, nil
	}

	return files, nil
}

type CreateFileParams struct {
	ID         string
	Owner      string
	Path       string
	Name       string
	FileType   string
	SizeBytes  int64
	MimeType   *string
	IsPublic   bool
	ShareToken *string
}

func (q *Queries) CreateFile(ctx context.Context, arg CreateFileParams) (*models.File, error) {
	query := `
		INSERT INTO files (id, owner, path, name, file_type, size_bytes, mime_type, is_public, share_token, created_at, last_modified)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		RETURNING ` + fileColumns

	now := time.Now()
	row := q.db.QueryRow(ctx, query,
		arg.ID,
		arg.Owner,
		arg.Path,
		arg.Name,
		arg.FileType,
		arg.SizeBytes,
		arg.MimeType,
		arg.IsPublic,
		arg.ShareToken,
		now,
		now,
	)

	file, err := scanFile(row)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" && pgErr.ConstraintName == "files_owner_path_name_key" {
			return nil, ErrDuplicateFileName
		}
		return nil, err
	}

	return file, nil
}

func (q *Queries) GetFileByID(ctx context.Context, id string) (*models.File, error) {
	query := `SELECT ` + fileColumns + ` FROM files WHERE id = $1`

	file, err := scanFile(q.db.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return file, nil
}

func (q *Queries) GetFileByPathName(ctx context.Context, owner, path, name string) (*models.File, error) {
	query := `SELECT ` + fileColumns + ` FROM files WHERE owner = $1 AND path = $2 AND name = $3`

	file, err := scanFile(q.db.QueryRow(ctx, query, owner, path, name))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return file, nil
}

// GetFileByShareToken resolves a token to its record. Tokens only
// resolve while the record is public.
func (q *Queries) GetFileByShareToken(ctx context.Context, token string) (*models.File, error) {
	query := `SELECT ` + fileColumns + ` FROM files WHERE share_token = $1 AND is_public = TRUE`

	file, err := scanFile(q.db.QueryRow(ctx, query, token))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return file, nil
}

func (q *Queries) FileExists(ctx context.Context, id string) (bool, error) {
	var exists bool
	query := `SELECT EXISTS(SELECT 1 FROM files WHERE id = $1)`
	err := q.db.QueryRow(ctx, query, id).Scan(&exists)
	if err != nil {
		return false, err
	}
	return exists, nil
}

type UpdateFileParams struct {
	Name      *string
	SizeBytes *int64
	MimeType  *string
}

// UpdateFile applies the non-nil fields and bumps last_modified.
// Returns nil when the record does not exist.
func (q *Queries) UpdateFile(ctx context.Context, id string, arg UpdateFileParams) (*models.File, error) {
	query := `
		UPDATE files
		SET name = COALESCE($2, name),
		    size_bytes = COALESCE($3, size_bytes),
		    mime_type = COALESCE($4, mime_type),
		    last_modified = $5
		WHERE id = $1
		RETURNING ` + fileColumns

	row := q.db.QueryRow(ctx, query, id, arg.Name, arg.SizeBytes, arg.MimeType, time.Now())
	file, err := scanFile(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" && pgErr.ConstraintName == "files_owner_path_name_key" {
			return nil, ErrDuplicateFileName
		}
		return nil, err
	}
	return file, nil
}

// SetShareState flips the public flag and stores or clears the share
// token in the same write, so a token is present iff the record is
// public.
func (q *Queries) SetShareState(ctx context.Context, id string, isPublic bool, token *string) (*models.File, error) {
	query := `
		UPDATE files
		SET is_public = $2, share_token = $3, last_modified = $4
		WHERE id = $1
		RETURNING ` + fileColumns

	row := q.db.QueryRow(ctx, query, id, isPublic, token, time.Now())
	file, err := scanFile(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return file, nil
}

func (q *Queries) DeleteFileByID(ctx context.Context, id string) (bool, error) {
	res, err := q.db.Exec(ctx, `DELETE FROM files WHERE id = $1`, id)
	if err != nil {
		return false, err
	}
	return res.RowsAffected() > 0, nil
}

func (q *Queries) DeleteFileByPathName(ctx context.Context, owner, path, name string) (bool, error) {
	res, err := q.db.Exec(ctx, `DELETE FROM files WHERE owner = $1 AND path = $2 AND name = $3`, owner, path, name)
	if err != nil {
		return false, err
	}
	return res.RowsAffected() > 0, nil
}

// DeleteFilesUnderPath removes the record sitting exactly at prefix and
// every record whose path equals prefix or descends from it. The match
// is by path segment, not substring: prefix "Folder" never touches
// records under "Folder2". Returns the number of deleted records and
// the file bytes they accounted for.
func (q *Queries) DeleteFilesUnderPath(ctx context.Context, owner, prefix string) (int64, int64, error) {
	query := `
		DELETE FROM files
		WHERE owner = $1
		  AND (path = $2
		       OR path LIKE $2 || '/%'
		       OR (CASE WHEN path = '' THEN name ELSE path || '/' || name END) = $2)
		RETURNING file_type, size_bytes
	`
	rows, err := q.db.Query(ctx, query, owner, prefix)
	if err != nil {
		return 0, 0, err
	}
	defer rows.Close()

	var count, bytes int64
	for rows.Next() {
		var fileType string
		var size int64
		if err := rows.Scan(&fileType, &size); err != nil {
			return 0, 0, err
		}
		count++
		if fileType == models.FileTypeFile {
			bytes += size
		}
	}

	if err := rows.Err(); err != nil {
		return 0, 0, err
	}

	return count, bytes, nil
}

func (q *Queries) ListFilesByOwner(ctx context.Context, owner string) ([]models.File, error) {
	query := `SELECT ` + fileColumns + ` FROM files WHERE owner = $1 ORDER BY last_modified DESC`

	rows, err := q.db.Query(ctx, query, owner)
	if err != nil {
		return nil, err
	}
	return collectFiles(rows)
}

// ListFilesByOwnerPath lists one directory level, folders first then
// alphabetically, matching the dashboard listing order.
func (q *Queries) ListFilesByOwnerPath(ctx context.Context, owner, path string) ([]models.File, error) {
	query := `SELECT ` + fileColumns + ` FROM files WHERE owner = $1 AND path = $2 ORDER BY file_type DESC, name`

	rows, err := q.db.Query(ctx, query, owner, path)
	if err != nil {
		return nil, err
	}
	return collectFiles(rows)
}

func (q *Queries) ListPublicFiles(ctx context.Context) ([]models.File, error) {
	query := `SELECT ` + fileColumns + ` FROM files WHERE is_public = TRUE ORDER BY last_modified DESC`

	rows, err := q.db.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	return collectFiles(rows)
}

// CountFilesByOwner returns the owner's live file and folder counts.
func (q *Queries) CountFilesByOwner(ctx context.Context, owner string) (int64, int64, error) {
	query := `
		SELECT
			COUNT(*) FILTER (WHERE file_type = 'file'),
			COUNT(*) FILTER (WHERE file_type = 'folder')
		FROM files
		WHERE owner = $1
	`
	var files, folders int64
	err := q.db.QueryRow(ctx, query, owner).Scan(&files, &folders)
	if err != nil {
		return 0, 0, err
	}
	return files, folders, nil
}
