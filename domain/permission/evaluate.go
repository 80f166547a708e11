package permission

import (
	"errors"

	"beacon/account"
	"beacon/authority"
	"beacon/bizerror"
	"beacon/domain"
	"beacon/persistence"
	"beacon/session"

	"github.com/fundwit/go-commons/types"
	"github.com/jinzhu/gorm"
)

// UserHasPermission reports whether the permission named
// "<resource>.<action>" is a member of the user's active grant record in
// the workspace. Plain set membership, no hierarchy or wildcards.
func UserHasPermission(userId, workspaceId types.ID, resource authority.Resource, action authority.Action) (bool, error) {
	db := persistence.ActiveDataSourceManager.GormDB(nil)
	perm, err := resolvePermission(db, resource, action)
	if errors.Is(err, bizerror.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}

	record, err := findActiveGrantRecord(db, userId, workspaceId)
	if err != nil {
		return false, err
	}
	if record == nil {
		return false, nil
	}
	return record.PermissionIDs.Contains(perm.ID), nil
}

// UserHasWorkspaceAccess reports whether any active grant record exists for
// the pair, regardless of which permissions it holds.
func UserHasWorkspaceAccess(userId, workspaceId types.ID) (bool, error) {
	db := persistence.ActiveDataSourceManager.GormDB(nil)
	record, err := findActiveGrantRecord(db, userId, workspaceId)
	if err != nil {
		return false, err
	}
	return record != nil, nil
}

// UserHasPermissionInAnyWorkspace scans all active grant records of the
// user across workspaces. Used for workspace-agnostic capabilities such as
// the impersonation gate.
func UserHasPermissionInAnyWorkspace(userId types.ID, resource authority.Resource, action authority.Action) (bool, error) {
	db := persistence.ActiveDataSourceManager.GormDB(nil)
	perm, err := resolvePermission(db, resource, action)
	if errors.Is(err, bizerror.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}

	var records []domain.WorkspaceGrant
	if err := db.Where("user_id = ? AND is_active = ?", userId, true).Find(&records).Error; err != nil {
		return false, err
	}
	for _, record := range records {
		if record.PermissionIDs.Contains(perm.ID) {
			return true, nil
		}
	}
	return false, nil
}

// CheckWorkspacePermission is the authorization rule applied at the HTTP
// boundary: the request is allowed iff the acting identity holds the
// resource-action permission within the workspace. The system admin
// bypasses the workspace scoping.
func CheckWorkspacePermission(sec *session.Session, workspaceId types.ID,
	resource authority.Resource, action authority.Action) error {
	if sec.Perms.HasPermission(authority.SystemAdminPermission) {
		return nil
	}
	has, err := UserHasPermission(sec.Identity.ID, workspaceId, resource, action)
	if err != nil {
		return err
	}
	if !has {
		return bizerror.ErrForbidden
	}
	return nil
}

// QueryUserWorkspacePermissions expands the user's grant record in one
// workspace into the individual catalog entries.
func QueryUserWorkspacePermissions(userId, workspaceId types.ID) ([]authority.Permission, error) {
	db := persistence.ActiveDataSourceManager.GormDB(nil)
	record, err := findActiveGrantRecord(db, userId, workspaceId)
	if err != nil {
		return nil, err
	}
	if record == nil {
		return []authority.Permission{}, nil
	}
	return expandPermissionIDs(db, record.PermissionIDs)
}

// QueryUserGrants lists every workspace the user holds permissions in,
// each with the expanded permission list.
func QueryUserGrants(userId types.ID) ([]domain.GrantDetail, error) {
	db := persistence.ActiveDataSourceManager.GormDB(nil)
	var records []domain.WorkspaceGrant
	if err := db.Where("user_id = ? AND is_active = ?", userId, true).
		Order("workspace_id ASC").Find(&records).Error; err != nil {
		return nil, err
	}
	return detailGrantRecords(db, records)
}

// QueryWorkspaceGrants lists every user holding permissions in the
// workspace, each with the expanded permission list.
func QueryWorkspaceGrants(workspaceId types.ID) ([]domain.GrantDetail, error) {
	db := persistence.ActiveDataSourceManager.GormDB(nil)
	var records []domain.WorkspaceGrant
	if err := db.Where("workspace_id = ? AND is_active = ?", workspaceId, true).
		Order("user_id ASC").Find(&records).Error; err != nil {
		return nil, err
	}
	return detailGrantRecords(db, records)
}

// LoadUserPermNames builds the expanded permission-name list a login
// session carries: "<name>_<workspaceId>" per granted entry, plus the
// unscoped admin name for the bootstrap admin.
func LoadUserPermNames(userId types.ID) (authority.Permissions, error) {
	db := persistence.ActiveDataSourceManager.GormDB(nil)

	perms := authority.Permissions{}
	user := account.User{ID: userId}
	if err := db.Model(&account.User{}).Where(&user).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return perms, nil
		}
		return nil, err
	}
	if user.IsAdmin {
		perms = append(perms, authority.SystemAdminPermission)
	}

	var records []domain.WorkspaceGrant
	if err := db.Where("user_id = ? AND is_active = ?", userId, true).
		Order("workspace_id ASC").Find(&records).Error; err != nil {
		return nil, err
	}
	for _, record := range records {
		expanded, err := expandPermissionIDs(db, record.PermissionIDs)
		if err != nil {
			return nil, err
		}
		for _, p := range expanded {
			perms = append(perms, authority.WorkspacePermission(p.Name, record.WorkspaceID))
		}
	}
	return perms, nil
}

func findActiveGrantRecord(db *gorm.DB, userId, workspaceId types.ID) (*domain.WorkspaceGrant, error) {
	record := domain.WorkspaceGrant{}
	err := db.Where("user_id = ? AND workspace_id = ? AND is_active = ?", userId, workspaceId, true).
		First(&record).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &record, nil
}

func expandPermissionIDs(db *gorm.DB, ids authority.IDSet) ([]authority.Permission, error) {
	if len(ids) == 0 {
		return []authority.Permission{}, nil
	}
	var permissions []authority.Permission
	if err := db.Where("id IN (?) AND is_active = ?", []types.ID(ids.Normalize()), true).
		Order("name ASC").Find(&permissions).Error; err != nil {
		return nil, err
	}
	return permissions, nil
}

func detailGrantRecords(db *gorm.DB, records []domain.WorkspaceGrant) ([]domain.GrantDetail, error) {
	details := []domain.GrantDetail{}
	for _, record := range records {
		permissions, err := expandPermissionIDs(db, record.PermissionIDs)
		if err != nil {
			return nil, err
		}
		details = append(details, domain.GrantDetail{
			UserID: record.UserID, WorkspaceID: record.WorkspaceID, Permissions: permissions,
		})
	}
	return details, nil
}
