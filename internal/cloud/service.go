package cloud

import (
	"context"
	"errors"
	"io"

	"cloud-server/internal/apperrors"
	"cloud-server/internal/auth"
	"cloud-server/internal/database"
	"cloud-server/internal/models"
	"cloud-server/internal/storage"

	nanoid "github.com/jaevor/go-nanoid"
	"github.com/rs/zerolog"
)

const fileIDLength = 21

// Notifier pushes change notifications to an owner's live connections.
type Notifier interface {
	NotifyOwner(owner string, payload interface{})
}

// Service implements the per-user cloud file area: metadata records
// kept in lockstep with files on disk, quota accounting, sharing and
// explicit permissions. Every operation takes the caller's identity
// explicitly.
type Service struct {
	store    *database.Store
	storage  *storage.LocalStorage
	quota    *QuotaTracker
	access   *AccessEvaluator
	tokens   *TokenIssuer
	locks    *ownerLocks
	notifier Notifier
	logger   zerolog.Logger
	newID    func() string
}

func NewService(store *database.Store, ls *storage.LocalStorage, quota *QuotaTracker, notifier Notifier, logger zerolog.Logger) (*Service, error) {
	tokens, err := NewTokenIssuer()
	if err != nil {
		return nil, err
	}
	newID, err := nanoid.Standard(fileIDLength)
	if err != nil {
		return nil, err
	}

	return &Service{
		store:    store,
		storage:  ls,
		quota:    quota,
		access:   NewAccessEvaluator(store),
		tokens:   tokens,
		locks:    newOwnerLocks(),
		notifier: notifier,
		logger:   logger.With().Str("component", "cloud").Logger(),
		newID:    newID,
	}, nil
}

func (s *Service) Quota() *QuotaTracker {
	return s.quota
}

func (s *Service) requireAuthorized(id auth.Identity) error {
	if id.UserID == "" {
		return apperrors.New(apperrors.KindUnauthorized, "authentication required")
	}
	if !id.Authorized {
		return apperrors.New(apperrors.KindForbidden, "cloud access requires community membership")
	}
	return nil
}

// mapPathErr classifies traversal rejections from the path layer.
func mapPathErr(err error) error {
	if errors.Is(err, storage.ErrUnsafeName) {
		return apperrors.Wrap(apperrors.KindForbidden, "invalid file or path name", err)
	}
	return err
}

func (s *Service) notify(owner, eventType string, file *models.File) {
	if s.notifier == nil {
		return
	}
	s.notifier.NotifyOwner(owner, map[string]interface{}{
		"type": eventType,
		"file": file,
	})
}

// CreateFolder creates a folder record and its directory on disk.
// The folder name is sanitized, not rejected: anything outside
// [a-zA-Z0-9-_] becomes an underscore.
func (s *Service) CreateFolder(ctx context.Context, id auth.Identity, path, name string) (*models.File, error) {
	if err := s.requireAuthorized(id); err != nil {
		return nil, err
	}

	name = storage.SanitizeFolderName(name)
	if err := storage.ValidateSegment(name); err != nil {
		return nil, mapPathErr(err)
	}
	if err := storage.ValidateRelPath(path); err != nil {
		return nil, mapPathErr(err)
	}

	unlock := s.locks.Lock(id.UserID)
	defer unlock()

	existing, err := s.store.GetFileByPathName(ctx, id.UserID, path, name)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, apperrors.Newf(apperrors.KindConflict, "an entry named %q already exists at this path", name)
	}

	if err := s.storage.CreateFolder(id.UserID, path, name); err != nil {
		return nil, mapPathErr(err)
	}

	var folder *models.File
	err = s.store.ExecTx(ctx, func(q *database.Queries) error {
		folder, err = q.CreateFile(ctx, database.CreateFileParams{
			ID:       s.newID(),
			Owner:    id.UserID,
			Path:     path,
			Name:     name,
			FileType: models.FileTypeFolder,
		})
		if err != nil {
			return err
		}
		return q.LogEvent(ctx, id.UserID, database.EventFolderCreated, folder)
	})
	if err != nil {
		if errors.Is(err, database.ErrDuplicateFileName) {
			return nil, apperrors.Wrap(apperrors.KindConflict, "an entry with the same name already exists at this path", err)
		}
		if rmErr := s.storage.Delete(id.UserID, path, name); rmErr != nil {
			s.logger.Error().Err(rmErr).Str("owner", id.UserID).Str("name", name).Msg("cleanup of failed folder create failed")
		}
		return nil, err
	}

	s.notify(id.UserID, database.EventFolderCreated, folder)
	return folder, nil
}

// Upload stores the file content and creates its metadata record and
// quota charge in one transaction. declaredSize is checked against the
// quota before any bytes land on disk; the counter is charged with the
// bytes actually written.
func (s *Service) Upload(ctx context.Context, id auth.Identity, path, name string, mimeType *string, declaredSize int64, data io.Reader) (*models.File, error) {
	if err := s.requireAuthorized(id); err != nil {
		return nil, err
	}

	if err := storage.ValidateSegment(name); err != nil {
		return nil, mapPathErr(err)
	}
	if err := storage.ValidateRelPath(path); err != nil {
		return nil, mapPathErr(err)
	}

	unlock := s.locks.Lock(id.UserID)
	defer unlock()

	existing, err := s.store.GetFileByPathName(ctx, id.UserID, path, name)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, apperrors.Newf(apperrors.KindConflict, "a file named %q already exists at this path", name)
	}

	if err := s.quota.CheckLimit(ctx, id.UserID, declaredSize); err != nil {
		return nil, err
	}

	written, err := s.storage.SaveFile(id.UserID, path, name, data)
	if err != nil {
		return nil, mapPathErr(err)
	}

	// The declared size came from the client; re-check with what
	// actually landed on disk.
	if written > declaredSize {
		if err := s.quota.CheckLimit(ctx, id.UserID, written); err != nil {
			if rmErr := s.storage.Delete(id.UserID, path, name); rmErr != nil {
				s.logger.Error().Err(rmErr).Str("owner", id.UserID).Str("name", name).Msg("cleanup of oversized upload failed")
			}
			return nil, err
		}
	}

	var file *models.File
	err = s.store.ExecTx(ctx, func(q *database.Queries) error {
		file, err = q.CreateFile(ctx, database.CreateFileParams{
			ID:        s.newID(),
			Owner:     id.UserID,
			Path:      path,
			Name:      name,
			FileType:  models.FileTypeFile,
			SizeBytes: written,
			MimeType:  mimeType,
		})
		if err != nil {
			return err
		}
		if err := q.AdjustUserStorage(ctx, id.UserID, written); err != nil {
			return err
		}
		return q.LogEvent(ctx, id.UserID, database.EventFileUploaded, file)
	})
	if err != nil {
		if errors.Is(err, database.ErrDuplicateFileName) {
			return nil, apperrors.Wrap(apperrors.KindConflict, "a file with the same name already exists at this path", err)
		}
		if rmErr := s.storage.Delete(id.UserID, path, name); rmErr != nil {
			s.logger.Error().Err(rmErr).Str("owner", id.UserID).Str("name", name).Msg("cleanup of failed upload failed")
		}
		return nil, err
	}

	s.notify(id.UserID, database.EventFileUploaded, file)
	return file, nil
}

// ListFolder lists one level of the caller's tree, folders first.
func (s *Service) ListFolder(ctx context.Context, id auth.Identity, path string) ([]models.File, error) {
	if err := s.requireAuthorized(id); err != nil {
		return nil, err
	}
	if err := storage.ValidateRelPath(path); err != nil {
		return nil, mapPathErr(err)
	}
	return s.store.ListFilesByOwnerPath(ctx, id.UserID, path)
}

// ListAll returns every record the caller owns, most recent first.
func (s *Service) ListAll(ctx context.Context, id auth.Identity) ([]models.File, error) {
	if err := s.requireAuthorized(id); err != nil {
		return nil, err
	}
	return s.store.ListFilesByOwner(ctx, id.UserID)
}

// ListPublic returns every public record across all owners.
func (s *Service) ListPublic(ctx context.Context, id auth.Identity) ([]models.File, error) {
	if err := s.requireAuthorized(id); err != nil {
		return nil, err
	}
	return s.store.ListPublicFiles(ctx)
}

// GetFile returns a record the caller may read.
func (s *Service) GetFile(ctx context.Context, id auth.Identity, fileID string) (*models.File, error) {
	if err := s.requireAuthorized(id); err != nil {
		return nil, err
	}

	file, err := s.store.GetFileByID(ctx, fileID)
	if err != nil {
		return nil, err
	}
	if file == nil {
		return nil, apperrors.New(apperrors.KindNotFound, "file not found")
	}

	ok, err := s.access.CanRead(ctx, id, file)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, apperrors.New(apperrors.KindForbidden, "you do not have permission to access this file")
	}
	return file, nil
}

// Download opens the content of a record the caller may read. The
// caller must close the reader.
func (s *Service) Download(ctx context.Context, id auth.Identity, fileID string) (*models.File, io.ReadCloser, error) {
	file, err := s.GetFile(ctx, id, fileID)
	if err != nil {
		return nil, nil, err
	}
	return s.openContent(file)
}

// DownloadShared opens a record by its share token, without any
// authentication. Tokens resolve only while the record is public.
func (s *Service) DownloadShared(ctx context.Context, token string) (*models.File, io.ReadCloser, error) {
	file, err := s.ResolveShareToken(ctx, token)
	if err != nil {
		return nil, nil, err
	}
	return s.openContent(file)
}

func (s *Service) openContent(file *models.File) (*models.File, io.ReadCloser, error) {
	if file.FileType == models.FileTypeFolder {
		return nil, nil, apperrors.New(apperrors.KindConflict, "folders cannot be downloaded")
	}

	rc, err := s.storage.Open(file.Owner, file.Path, file.Name)
	if err != nil {
		return nil, nil, apperrors.Wrap(apperrors.KindIOFailure, "opening file content failed", err)
	}
	return file, rc, nil
}

// ResolveShareToken returns the public record behind a share token.
func (s *Service) ResolveShareToken(ctx context.Context, token string) (*models.File, error) {
	if token == "" {
		return nil, apperrors.New(apperrors.KindNotFound, "shared file not found")
	}

	file, err := s.store.GetFileByShareToken(ctx, token)
	if err != nil {
		return nil, err
	}
	if file == nil {
		return nil, apperrors.New(apperrors.KindNotFound, "shared file not found")
	}
	return file, nil
}

// GetOwnFile returns the caller's own record at (path, name). Share
// and permission endpoints address records this way.
func (s *Service) GetOwnFile(ctx context.Context, id auth.Identity, path, name string) (*models.File, error) {
	if err := s.requireAuthorized(id); err != nil {
		return nil, err
	}
	if err := storage.ValidateSegment(name); err != nil {
		return nil, mapPathErr(err)
	}
	if err := storage.ValidateRelPath(path); err != nil {
		return nil, mapPathErr(err)
	}

	file, err := s.store.GetFileByPathName(ctx, id.UserID, path, name)
	if err != nil {
		return nil, err
	}
	if file == nil {
		return nil, apperrors.New(apperrors.KindNotFound, "file not found")
	}
	return file, nil
}

// Delete removes an entry from the caller's own tree by path and name.
func (s *Service) Delete(ctx context.Context, id auth.Identity, path, name string) error {
	if err := s.requireAuthorized(id); err != nil {
		return err
	}
	if err := storage.ValidateSegment(name); err != nil {
		return mapPathErr(err)
	}
	if err := storage.ValidateRelPath(path); err != nil {
		return mapPathErr(err)
	}

	file, err := s.store.GetFileByPathName(ctx, id.UserID, path, name)
	if err != nil {
		return err
	}
	if file == nil {
		return apperrors.New(apperrors.KindNotFound, "file not found")
	}
	return s.deleteRecord(ctx, file)
}

// DeleteByID removes a record the caller may write to: the owner, or a
// grantee holding write or admin. Deleting a folder takes its whole
// subtree with it.
func (s *Service) DeleteByID(ctx context.Context, id auth.Identity, fileID string) error {
	if err := s.requireAuthorized(id); err != nil {
		return err
	}

	file, err := s.store.GetFileByID(ctx, fileID)
	if err != nil {
		return err
	}
	if file == nil {
		return apperrors.New(apperrors.KindNotFound, "file not found")
	}

	ok, err := s.access.CanWrite(ctx, id, file)
	if err != nil {
		return err
	}
	if !ok {
		return apperrors.New(apperrors.KindForbidden, "you do not have permission to delete this file")
	}
	return s.deleteRecord(ctx, file)
}

func (s *Service) deleteRecord(ctx context.Context, file *models.File) error {
	unlock := s.locks.Lock(file.Owner)
	defer unlock()

	err := s.store.ExecTx(ctx, func(q *database.Queries) error {
		if file.FileType == models.FileTypeFolder {
			_, bytes, err := q.DeleteFilesUnderPath(ctx, file.Owner, file.FullPath())
			if err != nil {
				return err
			}
			if bytes > 0 {
				if err := q.AdjustUserStorage(ctx, file.Owner, -bytes); err != nil {
					return err
				}
			}
		} else {
			deleted, err := q.DeleteFileByID(ctx, file.ID)
			if err != nil {
				return err
			}
			if !deleted {
				return apperrors.New(apperrors.KindNotFound, "file not found")
			}
			if err := q.AdjustUserStorage(ctx, file.Owner, -file.SizeBytes); err != nil {
				return err
			}
		}
		return q.LogEvent(ctx, file.Owner, database.EventFileDeleted, file)
	})
	if err != nil {
		return err
	}

	if err := s.storage.Delete(file.Owner, file.Path, file.Name); err != nil {
		// Metadata is already gone; the recount sweep picks up the
		// orphaned bytes if this removal failed.
		s.logger.Error().Err(err).Str("owner", file.Owner).Str("name", file.Name).Msg("removing content from disk failed")
	}

	s.notify(file.Owner, database.EventFileDeleted, file)
	return nil
}

// SetPublic flips the sharing state. Going public mints a fresh token;
// a record that is already public keeps the token it has. Going private
// clears the token, so old links die permanently.
func (s *Service) SetPublic(ctx context.Context, id auth.Identity, fileID string, public bool) (*models.File, error) {
	if err := s.requireAuthorized(id); err != nil {
		return nil, err
	}

	// The state check and the update must not interleave with another
	// toggle on the same owner, or both callers mint a token.
	unlock := s.locks.Lock(id.UserID)
	defer unlock()

	file, err := s.ownedFile(ctx, id, fileID)
	if err != nil {
		return nil, err
	}
	if file.IsPublic == public {
		return file, nil
	}

	var token *string
	eventType := database.EventFileUnshared
	if public {
		minted := s.tokens.NewToken()
		token = &minted
		eventType = database.EventFileShared
	}

	var updated *models.File
	err = s.store.ExecTx(ctx, func(q *database.Queries) error {
		updated, err = q.SetShareState(ctx, fileID, public, token)
		if err != nil {
			return err
		}
		if updated == nil {
			return apperrors.New(apperrors.KindNotFound, "file not found")
		}
		return q.LogEvent(ctx, id.UserID, eventType, updated)
	})
	if err != nil {
		return nil, err
	}

	s.notify(id.UserID, eventType, updated)
	return updated, nil
}

// GetShareState returns the record with its current token, owner only.
func (s *Service) GetShareState(ctx context.Context, id auth.Identity, fileID string) (*models.File, error) {
	return s.ownedFile(ctx, id, fileID)
}

func (s *Service) ownedFile(ctx context.Context, id auth.Identity, fileID string) (*models.File, error) {
	if err := s.requireAuthorized(id); err != nil {
		return nil, err
	}

	file, err := s.store.GetFileByID(ctx, fileID)
	if err != nil {
		return nil, err
	}
	if file == nil {
		return nil, apperrors.New(apperrors.KindNotFound, "file not found")
	}
	if file.Owner != id.UserID {
		return nil, apperrors.New(apperrors.KindForbidden, "only the owner can manage this file")
	}
	return file, nil
}

// GrantPermission adds or upgrades an explicit ACL entry, owner only.
func (s *Service) GrantPermission(ctx context.Context, id auth.Identity, fileID, userID, level string) (*models.Permission, error) {
	if _, err := s.ownedFile(ctx, id, fileID); err != nil {
		return nil, err
	}

	perm, err := s.store.GrantPermission(ctx, fileID, userID, level)
	if err != nil {
		if errors.Is(err, database.ErrPermissionFileNotFound) {
			return nil, apperrors.Wrap(apperrors.KindNotFound, "file not found", err)
		}
		return nil, err
	}
	return perm, nil
}

// RevokePermission removes an ACL entry, owner only.
func (s *Service) RevokePermission(ctx context.Context, id auth.Identity, fileID, userID string) error {
	if _, err := s.ownedFile(ctx, id, fileID); err != nil {
		return err
	}

	revoked, err := s.store.RevokePermission(ctx, fileID, userID)
	if err != nil {
		return err
	}
	if !revoked {
		return apperrors.New(apperrors.KindNotFound, "permission entry not found")
	}
	return nil
}

// ListPermissions returns a record's ACL entries, owner only.
func (s *Service) ListPermissions(ctx context.Context, id auth.Identity, fileID string) ([]models.Permission, error) {
	if _, err := s.ownedFile(ctx, id, fileID); err != nil {
		return nil, err
	}
	return s.store.ListFilePermissions(ctx, fileID)
}

// Usage returns the caller's storage stats.
func (s *Service) Usage(ctx context.Context, id auth.Identity) (*models.StorageStats, error) {
	if err := s.requireAuthorized(id); err != nil {
		return nil, err
	}
	return s.quota.Usage(ctx, id.UserID)
}

// Events returns the caller's journal entries after sinceID.
func (s *Service) Events(ctx context.Context, id auth.Identity, sinceID int64) ([]database.Event, error) {
	if err := s.requireAuthorized(id); err != nil {
		return nil, err
	}
	return s.store.GetEventsSince(ctx, id.UserID, sinceID)
}

// AdminSetLimit overrides an owner's quota limit, in gigabytes.
func (s *Service) AdminSetLimit(ctx context.Context, owner string, limitGB float64) (*models.UserStorage, error) {
	return s.quota.SetLimit(ctx, owner, limitGB)
}

// AdminListStorage returns every owner's quota record.
func (s *Service) AdminListStorage(ctx context.Context) ([]models.UserStorage, error) {
	return s.store.ListUserStorage(ctx)
}

// AdminRecalculate recounts one owner's usage from disk.
func (s *Service) AdminRecalculate(ctx context.Context, owner string) (*models.UserStorage, error) {
	return s.quota.Recalculate(ctx, owner)
}
