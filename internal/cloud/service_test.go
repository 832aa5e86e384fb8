package cloud

import (
	"context"
	"io"
	"strings"
	"sync"
	"testing"

	"cloud-server/internal/apperrors"
	"cloud-server/internal/auth"
	"cloud-server/internal/database"
	"cloud-server/internal/models"

	"github.com/stretchr/testify/require"
)

func TestIdentityGating(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	// No user at all.
	_, err := svc.ListAll(ctx, auth.Identity{})
	require.True(t, apperrors.IsKind(err, apperrors.KindUnauthorized))

	// Authenticated but not a gated member.
	_, err = svc.ListAll(ctx, auth.Identity{UserID: "outsider", Authorized: false})
	require.True(t, apperrors.IsKind(err, apperrors.KindForbidden))

	_, err = svc.Upload(ctx, auth.Identity{UserID: "outsider"}, "", "a.txt", nil, 1, strings.NewReader("x"))
	require.True(t, apperrors.IsKind(err, apperrors.KindForbidden))
}

func TestCreateFolderSanitizesName(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	id := member("svc_folder@example.com")

	folder, err := svc.CreateFolder(ctx, id, "", "My Folder!")
	require.NoError(t, err)
	require.Equal(t, "My_Folder_", folder.Name)
	require.Equal(t, models.FileTypeFolder, folder.FileType)

	// The sanitized name collides with itself.
	_, err = svc.CreateFolder(ctx, id, "", "My Folder?")
	require.True(t, apperrors.IsKind(err, apperrors.KindConflict))
}

func TestCreateFolderRemovesDirOnRecordFailure(t *testing.T) {
	svc, ls := newTestService(t)
	ctx := context.Background()
	id := member("svc_folder_rollback@example.com")

	seed, err := svc.CreateFolder(ctx, member("svc_folder_seed@example.com"), "", "Seed")
	require.NoError(t, err)

	// Reusing an existing record ID makes the insert fail after the
	// directory has already been created on disk.
	svc.newID = func() string { return seed.ID }

	_, err = svc.CreateFolder(ctx, id, "", "Doomed")
	require.Error(t, err)
	require.False(t, apperrors.IsKind(err, apperrors.KindConflict))

	exists, err := ls.Exists(id.UserID, "", "Doomed")
	require.NoError(t, err)
	require.False(t, exists)
}

func TestUploadLifecycle(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	id := member("svc_lifecycle@example.com")

	_, err := svc.CreateFolder(ctx, id, "", "Docs")
	require.NoError(t, err)

	content := "0123456789"
	mime := "text/plain"
	file, err := svc.Upload(ctx, id, "Docs", "ten.txt", &mime, int64(len(content)), strings.NewReader(content))
	require.NoError(t, err)
	require.Equal(t, int64(10), file.SizeBytes)
	require.Equal(t, models.FileTypeFile, file.FileType)
	require.False(t, file.IsPublic)

	stats, err := svc.Usage(ctx, id)
	require.NoError(t, err)
	require.Equal(t, int64(1), stats.TotalFiles)
	require.Equal(t, int64(1), stats.TotalFolders)
	require.Equal(t, int64(10), stats.UsedBytes)
	require.Equal(t, testDefaultLimit, stats.LimitBytes)
	require.InDelta(t, float64(10)/float64(testDefaultLimit)*100, stats.UsagePercentage, 1e-9)

	got, rc, err := svc.Download(ctx, id, file.ID)
	require.NoError(t, err)
	data, err := io.ReadAll(rc)
	require.NoError(t, err)
	rc.Close()
	require.Equal(t, content, string(data))
	require.Equal(t, file.ID, got.ID)

	listing, err := svc.ListFolder(ctx, id, "Docs")
	require.NoError(t, err)
	require.Len(t, listing, 1)
	require.Equal(t, "ten.txt", listing[0].Name)

	require.NoError(t, svc.Delete(ctx, id, "Docs", "ten.txt"))

	stats, err = svc.Usage(ctx, id)
	require.NoError(t, err)
	require.Equal(t, int64(0), stats.TotalFiles)
	require.Equal(t, int64(0), stats.UsedBytes)

	_, _, err = svc.Download(ctx, id, file.ID)
	require.True(t, apperrors.IsKind(err, apperrors.KindNotFound))
}

func TestUploadDuplicateLeavesOriginal(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	id := member("svc_dup@example.com")

	original, err := svc.Upload(ctx, id, "", "notes.txt", nil, 5, strings.NewReader("first"))
	require.NoError(t, err)

	_, err = svc.Upload(ctx, id, "", "notes.txt", nil, 6, strings.NewReader("second"))
	require.True(t, apperrors.IsKind(err, apperrors.KindConflict))

	// Record and content are untouched.
	kept, rc, err := svc.Download(ctx, id, original.ID)
	require.NoError(t, err)
	data, err := io.ReadAll(rc)
	require.NoError(t, err)
	rc.Close()
	require.Equal(t, "first", string(data))
	require.Equal(t, int64(5), kept.SizeBytes)

	stats, err := svc.Usage(ctx, id)
	require.NoError(t, err)
	require.Equal(t, int64(5), stats.UsedBytes)
}

func TestUploadQuotaBoundary(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	id := member("svc_quota@example.com")

	// 100-byte limit for this owner.
	_, err := svc.AdminSetLimit(ctx, id.UserID, 100.0/(1024*1024*1024))
	require.NoError(t, err)

	// Landing exactly on the limit is allowed.
	_, err = svc.Upload(ctx, id, "", "full.bin", nil, 100, strings.NewReader(strings.Repeat("a", 100)))
	require.NoError(t, err)

	// One more byte is not.
	_, err = svc.Upload(ctx, id, "", "over.bin", nil, 1, strings.NewReader("b"))
	require.True(t, apperrors.IsKind(err, apperrors.KindQuotaExceeded))

	// The rejected upload left nothing behind.
	stats, err := svc.Usage(ctx, id)
	require.NoError(t, err)
	require.Equal(t, int64(1), stats.TotalFiles)
	require.Equal(t, int64(100), stats.UsedBytes)
}

func TestTraversalRejected(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	id := member("svc_traversal@example.com")

	_, err := svc.Upload(ctx, id, "", "../evil.txt", nil, 1, strings.NewReader("x"))
	require.True(t, apperrors.IsKind(err, apperrors.KindForbidden))

	_, err = svc.Upload(ctx, id, "Docs/../..", "a.txt", nil, 1, strings.NewReader("x"))
	require.True(t, apperrors.IsKind(err, apperrors.KindForbidden))

	_, err = svc.CreateFolder(ctx, id, "../elsewhere", "Docs")
	require.True(t, apperrors.IsKind(err, apperrors.KindForbidden))

	err = svc.Delete(ctx, id, "", "..")
	require.True(t, apperrors.IsKind(err, apperrors.KindForbidden))

	_, err = svc.ListFolder(ctx, id, "..")
	require.True(t, apperrors.IsKind(err, apperrors.KindForbidden))
}

func TestShareCycle(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	id := member("svc_share@example.com")

	file, err := svc.Upload(ctx, id, "", "pub.txt", nil, 6, strings.NewReader("shared"))
	require.NoError(t, err)

	shared, err := svc.SetPublic(ctx, id, file.ID, true)
	require.NoError(t, err)
	require.True(t, shared.IsPublic)
	require.NotNil(t, shared.ShareToken)
	firstToken := *shared.ShareToken

	// Publishing again keeps the token.
	again, err := svc.SetPublic(ctx, id, file.ID, true)
	require.NoError(t, err)
	require.Equal(t, firstToken, *again.ShareToken)

	resolved, rc, err := svc.DownloadShared(ctx, firstToken)
	require.NoError(t, err)
	data, err := io.ReadAll(rc)
	require.NoError(t, err)
	rc.Close()
	require.Equal(t, "shared", string(data))
	require.Equal(t, file.ID, resolved.ID)

	// Going private kills the token.
	private, err := svc.SetPublic(ctx, id, file.ID, false)
	require.NoError(t, err)
	require.False(t, private.IsPublic)
	require.Nil(t, private.ShareToken)

	_, _, err = svc.DownloadShared(ctx, firstToken)
	require.True(t, apperrors.IsKind(err, apperrors.KindNotFound))

	// Re-publishing mints a fresh token; the leaked one stays dead.
	republished, err := svc.SetPublic(ctx, id, file.ID, true)
	require.NoError(t, err)
	require.NotNil(t, republished.ShareToken)
	require.NotEqual(t, firstToken, *republished.ShareToken)

	_, _, err = svc.DownloadShared(ctx, firstToken)
	require.True(t, apperrors.IsKind(err, apperrors.KindNotFound))
}

func TestShareOwnerOnly(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	owner := member("svc_share_owner@example.com")
	other := member("svc_share_other@example.com")

	file, err := svc.Upload(ctx, owner, "", "mine.txt", nil, 4, strings.NewReader("mine"))
	require.NoError(t, err)

	_, err = svc.SetPublic(ctx, other, file.ID, true)
	require.True(t, apperrors.IsKind(err, apperrors.KindForbidden))

	_, err = svc.GetShareState(ctx, other, file.ID)
	require.True(t, apperrors.IsKind(err, apperrors.KindForbidden))
}

func TestPermissionsReadAndWrite(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	owner := member("svc_perm_owner@example.com")
	grantee := member("svc_perm_grantee@example.com")

	file, err := svc.Upload(ctx, owner, "", "doc.txt", nil, 3, strings.NewReader("abc"))
	require.NoError(t, err)

	// Private and ungranted: no access.
	_, err = svc.GetFile(ctx, grantee, file.ID)
	require.True(t, apperrors.IsKind(err, apperrors.KindForbidden))

	_, err = svc.GrantPermission(ctx, owner, file.ID, grantee.UserID, models.PermissionRead)
	require.NoError(t, err)

	// Read grant opens reading but not deletion.
	_, err = svc.GetFile(ctx, grantee, file.ID)
	require.NoError(t, err)

	err = svc.DeleteByID(ctx, grantee, file.ID)
	require.True(t, apperrors.IsKind(err, apperrors.KindForbidden))

	// Only the owner manages the ACL.
	_, err = svc.GrantPermission(ctx, grantee, file.ID, "someone@example.com", models.PermissionRead)
	require.True(t, apperrors.IsKind(err, apperrors.KindForbidden))

	// Write grant allows deletion, charged against the owner's quota.
	_, err = svc.GrantPermission(ctx, owner, file.ID, grantee.UserID, models.PermissionWrite)
	require.NoError(t, err)

	require.NoError(t, svc.DeleteByID(ctx, grantee, file.ID))

	stats, err := svc.Usage(ctx, owner)
	require.NoError(t, err)
	require.Equal(t, int64(0), stats.UsedBytes)
}

func TestRevokePermission(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	owner := member("svc_revoke_owner@example.com")
	grantee := member("svc_revoke_grantee@example.com")

	file, err := svc.Upload(ctx, owner, "", "r.txt", nil, 1, strings.NewReader("x"))
	require.NoError(t, err)

	_, err = svc.GrantPermission(ctx, owner, file.ID, grantee.UserID, models.PermissionRead)
	require.NoError(t, err)

	require.NoError(t, svc.RevokePermission(ctx, owner, file.ID, grantee.UserID))

	_, err = svc.GetFile(ctx, grantee, file.ID)
	require.True(t, apperrors.IsKind(err, apperrors.KindForbidden))

	err = svc.RevokePermission(ctx, owner, file.ID, grantee.UserID)
	require.True(t, apperrors.IsKind(err, apperrors.KindNotFound))
}

func TestPublicFileReadableByAnyMember(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	owner := member("svc_public_owner@example.com")
	stranger := member("svc_public_stranger@example.com")

	file, err := svc.Upload(ctx, owner, "", "open.txt", nil, 4, strings.NewReader("open"))
	require.NoError(t, err)
	_, err = svc.SetPublic(ctx, owner, file.ID, true)
	require.NoError(t, err)

	_, rc, err := svc.Download(ctx, stranger, file.ID)
	require.NoError(t, err)
	rc.Close()

	// Public never grants write.
	err = svc.DeleteByID(ctx, stranger, file.ID)
	require.True(t, apperrors.IsKind(err, apperrors.KindForbidden))

	public, err := svc.ListPublic(ctx, stranger)
	require.NoError(t, err)
	found := false
	for _, f := range public {
		if f.ID == file.ID {
			found = true
		}
	}
	require.True(t, found)
}

func TestDeleteFolderSubtree(t *testing.T) {
	svc, ls := newTestService(t)
	ctx := context.Background()
	id := member("svc_subtree@example.com")

	_, err := svc.CreateFolder(ctx, id, "", "Folder")
	require.NoError(t, err)
	_, err = svc.CreateFolder(ctx, id, "Folder", "Sub")
	require.NoError(t, err)
	_, err = svc.Upload(ctx, id, "Folder", "a.txt", nil, 3, strings.NewReader("aaa"))
	require.NoError(t, err)
	_, err = svc.Upload(ctx, id, "Folder/Sub", "b.txt", nil, 2, strings.NewReader("bb"))
	require.NoError(t, err)

	// A lexical sibling that must survive.
	_, err = svc.CreateFolder(ctx, id, "", "Folder2")
	require.NoError(t, err)
	keep, err := svc.Upload(ctx, id, "Folder2", "keep.txt", nil, 4, strings.NewReader("keep"))
	require.NoError(t, err)

	require.NoError(t, svc.Delete(ctx, id, "", "Folder"))

	stats, err := svc.Usage(ctx, id)
	require.NoError(t, err)
	require.Equal(t, int64(1), stats.TotalFiles)
	require.Equal(t, int64(1), stats.TotalFolders)
	require.Equal(t, int64(4), stats.UsedBytes)

	_, err = svc.GetFile(ctx, id, keep.ID)
	require.NoError(t, err)

	gone, err := ls.Exists(id.UserID, "Folder", "a.txt")
	require.NoError(t, err)
	require.False(t, gone)
}

func TestConcurrentUploadsSameName(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	id := member("svc_race_name@example.com")

	const workers = 8
	errs := make(chan error, workers)
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.Upload(ctx, id, "", "race.txt", nil, 4, strings.NewReader("data"))
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)

	var succeeded, conflicted int
	for err := range errs {
		if err == nil {
			succeeded++
			continue
		}
		require.True(t, apperrors.IsKind(err, apperrors.KindConflict), "unexpected error: %v", err)
		conflicted++
	}
	require.Equal(t, 1, succeeded, "exactly one writer wins the name")
	require.Equal(t, workers-1, conflicted)

	stats, err := svc.Usage(ctx, id)
	require.NoError(t, err)
	require.Equal(t, int64(1), stats.TotalFiles)
	require.Equal(t, int64(4), stats.UsedBytes, "losers charge nothing")
}

func TestConcurrentUploadsQuota(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	id := member("svc_race_quota@example.com")

	// 100-byte limit, six concurrent 30-byte uploads under distinct
	// names: only three fit.
	_, err := svc.AdminSetLimit(ctx, id.UserID, 100.0/(1024*1024*1024))
	require.NoError(t, err)

	const workers = 6
	errs := make(chan error, workers)
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			name := "chunk_" + string(rune('a'+n)) + ".bin"
			_, err := svc.Upload(ctx, id, "", name, nil, 30, strings.NewReader(strings.Repeat("x", 30)))
			errs <- err
		}(i)
	}
	wg.Wait()
	close(errs)

	var succeeded int
	for err := range errs {
		if err == nil {
			succeeded++
			continue
		}
		require.True(t, apperrors.IsKind(err, apperrors.KindQuotaExceeded), "unexpected error: %v", err)
	}
	require.Equal(t, 3, succeeded)

	stats, err := svc.Usage(ctx, id)
	require.NoError(t, err)
	require.Equal(t, int64(90), stats.UsedBytes, "stored bytes never exceed the limit")
}

func TestConcurrentShareToggle(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	id := member("svc_race_share@example.com")

	file, err := svc.Upload(ctx, id, "", "toggle.txt", nil, 1, strings.NewReader("x"))
	require.NoError(t, err)

	type toggleResult struct {
		file *models.File
		err  error
	}

	const workers = 6
	results := make(chan toggleResult, workers)
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			updated, err := svc.SetPublic(ctx, id, file.ID, true)
			results <- toggleResult{file: updated, err: err}
		}()
	}
	wg.Wait()
	close(results)

	// One transition, one token: every caller sees the same value and
	// it is the one that resolves.
	var first string
	for res := range results {
		require.NoError(t, res.err)
		require.NotNil(t, res.file.ShareToken)
		if first == "" {
			first = *res.file.ShareToken
		}
		require.Equal(t, first, *res.file.ShareToken)
	}
	resolved, err := svc.ResolveShareToken(ctx, first)
	require.NoError(t, err)
	require.Equal(t, file.ID, resolved.ID)

	events, err := svc.Events(ctx, id, 0)
	require.NoError(t, err)
	var sharedEvents int
	for _, e := range events {
		if e.EventType == database.EventFileShared {
			sharedEvents++
		}
	}
	require.Equal(t, 1, sharedEvents, "a single transition journals once")
}

func TestEventsJournal(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	id := member("svc_events@example.com")

	_, err := svc.CreateFolder(ctx, id, "", "Docs")
	require.NoError(t, err)
	file, err := svc.Upload(ctx, id, "Docs", "a.txt", nil, 1, strings.NewReader("x"))
	require.NoError(t, err)
	_, err = svc.SetPublic(ctx, id, file.ID, true)
	require.NoError(t, err)

	events, err := svc.Events(ctx, id, 0)
	require.NoError(t, err)
	require.Len(t, events, 3)
	require.Equal(t, database.EventFolderCreated, events[0].EventType)
	require.Equal(t, database.EventFileUploaded, events[1].EventType)
	require.Equal(t, database.EventFileShared, events[2].EventType)
}
