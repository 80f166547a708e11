package permission

import (
	"errors"
	"time"

	"beacon/account"
	"beacon/authority"
	"beacon/bizerror"
	"beacon/domain"
	"beacon/idgen"
	"beacon/persistence"
	"beacon/session"

	"github.com/fundwit/go-commons/types"
	"github.com/go-sql-driver/mysql"
	"github.com/jinzhu/gorm"
	"github.com/sony/sonyflake"
)

var (
	grantIdWorker = sonyflake.NewSonyflake(sonyflake.Settings{})

	// AssignPolicyFunc gates every grant mutation. Deployments may replace
	// it with their own elevated-role policy.
	AssignPolicyFunc = checkAssignPolicy
)

// checkAssignPolicy permits the system admin, holders of workspace.update
// within the target workspace, and the workspace creator (the bootstrap path).
func checkAssignPolicy(workspaceId types.ID, sec *session.Session) error {
	if sec.Perms.HasPermission(authority.SystemAdminPermission) {
		return nil
	}
	has, err := UserHasPermission(sec.Identity.ID, workspaceId, authority.ResourceWorkspace, authority.ActionUpdate)
	if err != nil {
		return err
	}
	if has {
		return nil
	}

	workspace := domain.Workspace{ID: workspaceId}
	db := persistence.ActiveDataSourceManager.GormDB(sec.Context)
	if err := db.Where(&workspace).First(&workspace).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return bizerror.ErrNotFound
		}
		return err
	}
	if workspace.Creator == sec.Identity.ID {
		return nil
	}
	return bizerror.ErrForbidden
}

// AssignPermission adds one resource-action permission to the user's grant
// record in the workspace. Assigning an already-present permission is a
// conflict, not a silent no-op.
func AssignPermission(userId, workspaceId types.ID, resource authority.Resource, action authority.Action,
	sec *session.Session) (*domain.WorkspaceGrant, error) {
	if err := AssignPolicyFunc(workspaceId, sec); err != nil {
		return nil, err
	}

	var result *domain.WorkspaceGrant
	err := withUniqueConflictRetry(func() error {
		return persistence.ActiveDataSourceManager.GormDB(sec.Context).Transaction(func(tx *gorm.DB) error {
			if err := validateGrantTargets(tx, userId, workspaceId); err != nil {
				return err
			}
			perm, err := resolvePermission(tx, resource, action)
			if err != nil {
				return err
			}

			record, err := lockGrantRecord(tx, userId, workspaceId)
			if err != nil {
				return err
			}
			now := time.Now()
			if record == nil {
				created := domain.WorkspaceGrant{
					ID: idgen.NextID(grantIdWorker), UserID: userId, WorkspaceID: workspaceId,
					PermissionIDs: authority.IDSet{perm.ID}, IsActive: true,
					CreateTime: now, UpdateTime: now,
					CreatedBy: sec.AuditUserID(), UpdatedBy: sec.AuditUserID(),
				}
				if err := tx.Create(&created).Error; err != nil {
					return err
				}
				result = &created
				return nil
			}

			if record.IsActive && record.PermissionIDs.Contains(perm.ID) {
				return bizerror.ErrPermissionAlreadyAssigned
			}
			// a deactivated record is reclaimed with a fresh set
			ids := record.PermissionIDs
			if !record.IsActive {
				ids = authority.IDSet{}
			}
			record.PermissionIDs = ids.Add(perm.ID)
			record.IsActive = true
			record.UpdateTime = now
			record.UpdatedBy = sec.AuditUserID()
			if err := saveGrantRecord(tx, record); err != nil {
				return err
			}
			result = record
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// AssignPermissions merges a batch of resource-action pairs into the user's
// grant record. Pairs without a catalog entry are dropped; an empty resolved
// set is a not-found failure. Applying the same batch twice leaves the
// record unchanged.
func AssignPermissions(userId, workspaceId types.ID, pairs []domain.ResourceActionPair,
	sec *session.Session) (*domain.WorkspaceGrant, error) {
	if err := AssignPolicyFunc(workspaceId, sec); err != nil {
		return nil, err
	}

	var result *domain.WorkspaceGrant
	err := withUniqueConflictRetry(func() error {
		return persistence.ActiveDataSourceManager.GormDB(sec.Context).Transaction(func(tx *gorm.DB) error {
			record, err := GrantPermissionsInTx(tx, userId, workspaceId, pairs, sec.AuditUserID())
			if err != nil {
				return err
			}
			result = record
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// GrantPermissionsInTx merges the resolved permission ids of the given
// pairs into the pair's grant record within the caller's transaction. No
// policy gate is applied here: the caller owns that decision. Used by
// AssignPermissions and by the workspace creation bootstrap.
func GrantPermissionsInTx(tx *gorm.DB, userId, workspaceId types.ID,
	pairs []domain.ResourceActionPair, assignedBy types.ID) (*domain.WorkspaceGrant, error) {
	if err := validateGrantTargets(tx, userId, workspaceId); err != nil {
		return nil, err
	}

	resolved := authority.IDSet{}
	for _, pair := range pairs {
		perm, err := resolvePermission(tx, pair.Resource, pair.Action)
		if errors.Is(err, bizerror.ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		resolved = resolved.Add(perm.ID)
	}
	if len(resolved) == 0 {
		return nil, bizerror.ErrNotFound
	}

	record, err := lockGrantRecord(tx, userId, workspaceId)
	if err != nil {
		return nil, err
	}
	now := time.Now()
	if record == nil {
		created := domain.WorkspaceGrant{
			ID: idgen.NextID(grantIdWorker), UserID: userId, WorkspaceID: workspaceId,
			PermissionIDs: resolved, IsActive: true,
			CreateTime: now, UpdateTime: now,
			CreatedBy: assignedBy, UpdatedBy: assignedBy,
		}
		if err := tx.Create(&created).Error; err != nil {
			return nil, err
		}
		return &created, nil
	}

	ids := record.PermissionIDs
	if !record.IsActive {
		ids = authority.IDSet{}
	}
	record.PermissionIDs = ids.Merge(resolved)
	record.IsActive = true
	record.UpdateTime = now
	record.UpdatedBy = assignedBy
	if err := saveGrantRecord(tx, record); err != nil {
		return nil, err
	}
	return record, nil
}

// RemovePermission drops one permission from the user's grant record.
// Removing something that is not there reports false without erroring, so
// callers may retry removals freely. Dropping the last permission
// deactivates the whole record.
func RemovePermission(userId, workspaceId types.ID, resource authority.Resource, action authority.Action,
	sec *session.Session) (bool, error) {
	if err := AssignPolicyFunc(workspaceId, sec); err != nil {
		return false, err
	}

	removed := false
	err := persistence.ActiveDataSourceManager.GormDB(sec.Context).Transaction(func(tx *gorm.DB) error {
		perm, err := resolvePermission(tx, resource, action)
		if errors.Is(err, bizerror.ErrNotFound) {
			return nil
		}
		if err != nil {
			return err
		}

		record, err := lockGrantRecord(tx, userId, workspaceId)
		if err != nil {
			return err
		}
		if record == nil || !record.IsActive {
			return nil
		}

		remaining, member := record.PermissionIDs.Remove(perm.ID)
		if !member {
			return nil
		}
		record.PermissionIDs = remaining
		if len(remaining) == 0 {
			record.IsActive = false
		}
		record.UpdateTime = time.Now()
		record.UpdatedBy = sec.AuditUserID()
		if err := saveGrantRecord(tx, record); err != nil {
			return err
		}
		removed = true
		return nil
	})
	return removed, err
}

// RemoveAllWorkspacePermissions deactivates the user's grant record in the
// workspace. Reports whether an active record was affected.
func RemoveAllWorkspacePermissions(userId, workspaceId types.ID, sec *session.Session) (bool, error) {
	if err := AssignPolicyFunc(workspaceId, sec); err != nil {
		return false, err
	}

	affected := false
	err := persistence.ActiveDataSourceManager.GormDB(sec.Context).Transaction(func(tx *gorm.DB) error {
		record, err := lockGrantRecord(tx, userId, workspaceId)
		if err != nil {
			return err
		}
		if record == nil || !record.IsActive {
			return nil
		}
		record.PermissionIDs = authority.IDSet{}
		record.IsActive = false
		record.UpdateTime = time.Now()
		record.UpdatedBy = sec.AuditUserID()
		if err := saveGrantRecord(tx, record); err != nil {
			return err
		}
		affected = true
		return nil
	})
	return affected, err
}

type BulkAssignFailure struct {
	UserID types.ID `json:"userId"`
	Error  string   `json:"error"`
}

// BulkAssignPermissions applies AssignPermissions per user sequentially.
// Each user's update is its own atomic unit; one user's failure does not
// roll back earlier users.
func BulkAssignPermissions(workspaceId types.ID, assignments []domain.PermissionAssignment,
	sec *session.Session) []BulkAssignFailure {
	failures := []BulkAssignFailure{}
	for _, assignment := range assignments {
		if _, err := AssignPermissions(assignment.UserID, workspaceId, assignment.Permissions, sec); err != nil {
			failures = append(failures, BulkAssignFailure{UserID: assignment.UserID, Error: err.Error()})
		}
	}
	return failures
}

func validateGrantTargets(tx *gorm.DB, userId, workspaceId types.ID) error {
	user := account.User{ID: userId}
	if err := tx.Model(&account.User{}).Where(&user).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return bizerror.ErrNotFound
		}
		return err
	}
	workspace := domain.Workspace{ID: workspaceId}
	if err := tx.Model(&domain.Workspace{}).Where(&workspace).First(&workspace).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return bizerror.ErrNotFound
		}
		return err
	}
	return nil
}

// lockGrantRecord reads the pair's single grant row under a row lock, so
// the read-modify-write stays serialized against concurrent mutations.
func lockGrantRecord(tx *gorm.DB, userId, workspaceId types.ID) (*domain.WorkspaceGrant, error) {
	record := domain.WorkspaceGrant{}
	err := tx.Set("gorm:query_option", "FOR UPDATE").
		Where("user_id = ? AND workspace_id = ?", userId, workspaceId).
		First(&record).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &record, nil
}

func saveGrantRecord(tx *gorm.DB, record *domain.WorkspaceGrant) error {
	return tx.Model(&domain.WorkspaceGrant{}).Where("id = ?", record.ID).
		Update(map[string]interface{}{
			"permission_ids": record.PermissionIDs,
			"is_active":      record.IsActive,
			"update_time":    record.UpdateTime,
			"updated_by":     record.UpdatedBy,
		}).Error
}

// withUniqueConflictRetry reruns the mutation when concurrent creators race
// on the (user, workspace) unique index; the losers then find the winner's
// row and merge into it. The race surfaces either as a duplicate key (1062)
// or as a deadlock (1213) between the gap locks first-time assigns take
// before inserting.
func withUniqueConflictRetry(mutation func() error) error {
	var err error
	for attempt := 0; attempt < 3; attempt++ {
		err = mutation()
		if err == nil || !isConflictError(err) {
			return err
		}
	}
	return err
}

func isConflictError(err error) bool {
	var mysqlErr *mysql.MySQLError
	if errors.As(err, &mysqlErr) {
		return mysqlErr.Number == 1062 || mysqlErr.Number == 1213
	}
	return false
}
