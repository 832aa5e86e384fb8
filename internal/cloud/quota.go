package cloud

import (
	"context"
	"time"

	"cloud-server/internal/apperrors"
	"cloud-server/internal/config"
	"cloud-server/internal/database"
	"cloud-server/internal/models"
	"cloud-server/internal/storage"

	"github.com/rs/zerolog"
)

// QuotaTracker maintains per-owner usage as a live counter adjusted on
// every create and delete, with a periodic filesystem recount to pull
// the counter back in line after crashes or out-of-band edits.
type QuotaTracker struct {
	store        *database.Store
	storage      *storage.LocalStorage
	defaultLimit int64
	logger       zerolog.Logger
}

func NewQuotaTracker(store *database.Store, ls *storage.LocalStorage, defaultLimit int64, logger zerolog.Logger) *QuotaTracker {
	return &QuotaTracker{
		store:        store,
		storage:      ls,
		defaultLimit: defaultLimit,
		logger:       logger.With().Str("component", "quota").Logger(),
	}
}

// Usage returns the owner's stats: counts from the metadata store,
// bytes and limit from the quota record.
func (qt *QuotaTracker) Usage(ctx context.Context, owner string) (*models.StorageStats, error) {
	record, err := qt.store.GetUserStorage(ctx, owner, qt.defaultLimit)
	if err != nil {
		return nil, err
	}

	files, folders, err := qt.store.CountFilesByOwner(ctx, owner)
	if err != nil {
		return nil, err
	}

	stats := &models.StorageStats{
		TotalFiles:   files,
		TotalFolders: folders,
		UsedBytes:    record.UsedBytes,
		LimitBytes:   record.LimitBytes,
	}
	if record.LimitBytes > 0 {
		stats.UsagePercentage = float64(record.UsedBytes) / float64(record.LimitBytes) * 100
	}
	return stats, nil
}

// CheckLimit rejects an upload of addedBytes if it would push the owner
// past the limit. Landing exactly on the limit is allowed.
func (qt *QuotaTracker) CheckLimit(ctx context.Context, owner string, addedBytes int64) error {
	record, err := qt.store.GetUserStorage(ctx, owner, qt.defaultLimit)
	if err != nil {
		return err
	}

	if record.UsedBytes+addedBytes > record.LimitBytes {
		return apperrors.Newf(apperrors.KindQuotaExceeded,
			"storage limit exceeded: %d of %d bytes used, upload needs %d more",
			record.UsedBytes, record.LimitBytes, addedBytes)
	}
	return nil
}

// SetLimit stores a new per-owner limit, given in (possibly fractional)
// gigabytes. Admin endpoints call this.
func (qt *QuotaTracker) SetLimit(ctx context.Context, owner string, limitGB float64) (*models.UserStorage, error) {
	return qt.store.SetUserStorageLimit(ctx, owner, config.GigabytesToBytes(limitGB), qt.defaultLimit)
}

// Recalculate walks the owner's files on disk and overwrites the usage
// counter with the walked total.
func (qt *QuotaTracker) Recalculate(ctx context.Context, owner string) (*models.UserStorage, error) {
	info, err := qt.storage.Usage(owner)
	if err != nil {
		return nil, err
	}
	if err := qt.store.SetUserStorageUsed(ctx, owner, info.UsedBytes); err != nil {
		return nil, err
	}
	return qt.store.GetUserStorage(ctx, owner, qt.defaultLimit)
}

// RunReconciler periodically recounts every known owner until the
// context is cancelled. Meant to run as a background goroutine.
func (qt *QuotaTracker) RunReconciler(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			qt.reconcileAll(ctx)
		}
	}
}

func (qt *QuotaTracker) reconcileAll(ctx context.Context) {
	records, err := qt.store.ListUserStorage(ctx)
	if err != nil {
		qt.logger.Error().Err(err).Msg("reconcile: listing storage records failed")
		return
	}

	for _, record := range records {
		updated, err := qt.Recalculate(ctx, record.UserID)
		if err != nil {
			qt.logger.Error().Err(err).Str("owner", record.UserID).Msg("reconcile: recount failed")
			continue
		}
		if updated.UsedBytes != record.UsedBytes {
			qt.logger.Warn().
				Str("owner", record.UserID).
				Int64("counter", record.UsedBytes).
				Int64("walked", updated.UsedBytes).
				Msg("reconcile: usage counter drifted, corrected")
		}
	}
}
