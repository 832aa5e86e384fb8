package cloud

import (
	"context"

	"cloud-server/internal/auth"
	"cloud-server/internal/database"
	"cloud-server/internal/models"
)

// AccessEvaluator answers read/write questions about a single record.
// The owner holds every right implicitly; everyone else needs either
// the public flag (read only) or an explicit ACL entry.
type AccessEvaluator struct {
	store *database.Store
}

func NewAccessEvaluator(store *database.Store) *AccessEvaluator {
	return &AccessEvaluator{store: store}
}

// CanRead reports whether the identity may read the record's content
// and metadata. Public records are readable by any authorized member;
// any explicit grant level includes read.
func (a *AccessEvaluator) CanRead(ctx context.Context, id auth.Identity, f *models.File) (bool, error) {
	if f.Owner == id.UserID {
		return true, nil
	}
	if f.IsPublic {
		return true, nil
	}

	perm, err := a.store.GetPermission(ctx, f.ID, id.UserID)
	if err != nil {
		return false, err
	}
	return perm != nil, nil
}

// CanWrite reports whether the identity may modify or delete the
// record. The public flag never grants write; only ownership or a
// write/admin ACL entry does.
func (a *AccessEvaluator) CanWrite(ctx context.Context, id auth.Identity, f *models.File) (bool, error) {
	if f.Owner == id.UserID {
		return true, nil
	}

	perm, err := a.store.GetPermission(ctx, f.ID, id.UserID)
	if err != nil {
		return false, err
	}
	if perm == nil {
		return false, nil
	}
	return perm.Permission == models.PermissionWrite || perm.Permission == models.PermissionAdmin, nil
}
