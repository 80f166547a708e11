package workspace

import (
	"errors"
	"time"

	"beacon/account"
	"beacon/authority"
	"beacon/bizerror"
	"beacon/domain"
	"beacon/domain/permission"
	"beacon/persistence"
	"beacon/session"

	"github.com/fundwit/go-commons/types"
	"github.com/jinzhu/gorm"
)

var (
	QueryWorkspaceNamesFunc = QueryWorkspaceNames
	QueryAccountNamesFunc   = account.QueryAccountNames
	DetailMembershipsFunc   = DetailMemberships
)

func accessLevelIsValid(level string) bool {
	switch level {
	case domain.AccessLevelOwner, domain.AccessLevelAdmin, domain.AccessLevelEditor,
		domain.AccessLevelViewer, domain.AccessLevelApprover:
		return true
	}
	return false
}

func CreateMembership(d *domain.MembershipCreation, sec *session.Session) error {
	if !accessLevelIsValid(d.AccessLevel) {
		return &bizerror.ErrBadParam{Cause: errors.New("unknown access level '" + d.AccessLevel + "'")}
	}

	return persistence.ActiveDataSourceManager.GormDB(sec.Context).Transaction(func(tx *gorm.DB) error {
		if err := permission.CheckWorkspacePermission(sec, d.WorkspaceID,
			authority.ResourceWorkspace, authority.ActionUpdate); err != nil {
			return err
		}

		// non system administrators can not grant for themselves
		if !sec.Perms.HasPermission(authority.SystemAdminPermission) && sec.Identity.ID == d.MemberID {
			return bizerror.ErrMembershipSelfGrant
		}

		workspace := domain.Workspace{ID: d.WorkspaceID}
		if err := tx.Model(&domain.Workspace{}).Where(&workspace).First(&workspace).Error; err != nil {
			return err
		}

		user := account.User{ID: d.MemberID}
		if err := tx.Model(&account.User{}).Where(&user).First(&user).Error; err != nil {
			return err
		}

		// update when exist
		record := domain.Membership{WorkspaceID: d.WorkspaceID, MemberID: d.MemberID,
			AccessLevel: d.AccessLevel, CreateTime: time.Now()}
		return tx.Save(&record).Error
	})
}

func QueryMembershipDetails(d *domain.MembershipQuery, sec *session.Session) (*[]domain.MembershipDetail, error) {
	dbQuery := persistence.ActiveDataSourceManager.GormDB(sec.Context).Model(&domain.Membership{})

	if !sec.Perms.HasPermission(authority.SystemAdminPermission) {
		dbQuery = dbQuery.Where("workspace_id IN (?)", sec.Perms.VisibleWorkspaces())
	}
	if d.WorkspaceID != nil {
		dbQuery = dbQuery.Where("workspace_id = ?", d.WorkspaceID)
	}
	if d.MemberID != nil {
		dbQuery = dbQuery.Where("member_id = ?", d.MemberID)
	}

	var result []domain.Membership
	if err := dbQuery.Find(&result).Error; err != nil {
		return nil, err
	}

	return DetailMembershipsFunc(&result)
}

func DetailMemberships(ms *[]domain.Membership) (*[]domain.MembershipDetail, error) {
	if ms == nil {
		return &[]domain.MembershipDetail{}, nil
	}

	var workspaceIds []types.ID
	var memberIds []types.ID
	for _, m := range *ms {
		workspaceIds = append(workspaceIds, m.WorkspaceID)
		memberIds = append(memberIds, m.MemberID)
	}

	workspaceNameMap, err := QueryWorkspaceNamesFunc(workspaceIds)
	if err != nil {
		return nil, err
	}
	memberNameMap, err := QueryAccountNamesFunc(memberIds)
	if err != nil {
		return nil, err
	}

	details := []domain.MembershipDetail{}
	for _, m := range *ms {
		detail := domain.MembershipDetail{Membership: m, WorkspaceName: "Unknown", MemberName: "Unknown"}
		if name, found := workspaceNameMap[m.WorkspaceID]; found {
			detail.WorkspaceName = name
		}
		if name, found := memberNameMap[m.MemberID]; found {
			detail.MemberName = name
		}
		details = append(details, detail)
	}

	return &details, nil
}

func DeleteMembership(d *domain.MembershipDeletion, sec *session.Session) error {
	if err := permission.CheckWorkspacePermission(sec, d.WorkspaceID,
		authority.ResourceWorkspace, authority.ActionUpdate); err != nil {
		return err
	}

	return persistence.ActiveDataSourceManager.GormDB(sec.Context).Transaction(func(tx *gorm.DB) error {
		record := domain.Membership{}
		if err := tx.Where("workspace_id = ? AND member_id = ?", d.WorkspaceID, d.MemberID).
			First(&record).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil
			}
			return err
		}

		// must keep at least one owner per workspace
		if record.AccessLevel == domain.AccessLevelOwner {
			var otherOwnerCount int
			if err := tx.Model(&domain.Membership{}).
				Where("workspace_id = ? AND member_id != ? AND access_level = ?",
					d.WorkspaceID, d.MemberID, domain.AccessLevelOwner).
				Count(&otherOwnerCount).Error; err != nil {
				return err
			}
			if otherOwnerCount == 0 {
				return bizerror.ErrLastOwnerDelete
			}
		}

		return tx.Where("workspace_id = ? AND member_id = ?", d.WorkspaceID, d.MemberID).
			Delete(&domain.Membership{}).Error
	})
}
