package workspace

import (
	"errors"
	"time"

	"beacon/authority"
	"beacon/bizerror"
	"beacon/domain"
	"beacon/domain/permission"
	"beacon/idgen"
	"beacon/persistence"
	"beacon/session"

	"github.com/fundwit/go-commons/types"
	"github.com/jinzhu/gorm"
	"github.com/sony/sonyflake"
)

var (
	idWorker = sonyflake.NewSonyflake(sonyflake.Settings{})

	SeedAllPermissionsFunc = permission.SeedAllPermissions
)

// CreateWorkspace seeds the permission catalog when needed, persists the
// workspace with an owner membership for the creator, and grants the
// creator the full permission cross-product. The workspace row, the
// membership and the grant commit in one transaction: a failure leaves no
// partially privileged workspace behind.
func CreateWorkspace(c *domain.WorkspaceCreating, sec *session.Session) (*domain.Workspace, error) {
	// catalog seeding is idempotent and kept outside the workspace
	// transaction on purpose: partially seeded catalogs self-heal on the
	// next call
	if err := SeedAllPermissionsFunc(); err != nil {
		return nil, err
	}

	now := time.Now()
	g := domain.Workspace{ID: idgen.NextID(idWorker), Name: c.Name, Identifier: c.Identifier,
		CreateTime: now, Creator: sec.Identity.ID}
	m := domain.Membership{WorkspaceID: g.ID, MemberID: sec.Identity.ID,
		AccessLevel: domain.AccessLevelOwner, CreateTime: now}

	fullGrant := []domain.ResourceActionPair{}
	for _, def := range authority.GenerateAllPermissions() {
		fullGrant = append(fullGrant, domain.ResourceActionPair{Resource: def.Resource, Action: def.Action})
	}

	err := persistence.ActiveDataSourceManager.GormDB(sec.Context).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&g).Error; err != nil {
			return err
		}
		if err := tx.Create(&m).Error; err != nil {
			return err
		}
		_, err := permission.GrantPermissionsInTx(tx, sec.Identity.ID, g.ID, fullGrant, sec.Identity.ID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return &g, nil
}

func QueryWorkspaces(sec *session.Session) (*[]domain.Workspace, error) {
	db := persistence.ActiveDataSourceManager.GormDB(sec.Context)
	var workspaces []domain.Workspace

	if sec.Perms.HasPermission(authority.SystemAdminPermission) {
		if err := db.Find(&workspaces).Error; err != nil {
			return nil, err
		}
		return &workspaces, nil
	}

	var memberships []domain.Membership
	if err := db.Where("member_id = ?", sec.Identity.ID).Find(&memberships).Error; err != nil {
		return nil, err
	}
	if len(memberships) == 0 {
		return &[]domain.Workspace{}, nil
	}
	ids := make([]types.ID, 0, len(memberships))
	for _, m := range memberships {
		ids = append(ids, m.WorkspaceID)
	}
	if err := db.Where("id IN (?)", ids).Find(&workspaces).Error; err != nil {
		return nil, err
	}
	return &workspaces, nil
}

func UpdateWorkspace(id types.ID, d *domain.WorkspaceUpdating, sec *session.Session) error {
	if err := permission.CheckWorkspacePermission(sec, id, authority.ResourceWorkspace, authority.ActionUpdate); err != nil {
		return err
	}

	return persistence.ActiveDataSourceManager.GormDB(sec.Context).Transaction(func(tx *gorm.DB) error {
		var workspace domain.Workspace
		if err := tx.Where(domain.Workspace{ID: id}).First(&workspace).Error; err != nil {
			return err
		}
		return tx.Model(&domain.Workspace{ID: id}).Where(domain.Workspace{ID: id}).
			Update(domain.Workspace{Name: d.Name}).Error
	})
}

func DetailWorkspace(id types.ID, sec *session.Session) (*domain.Workspace, error) {
	if err := permission.CheckWorkspacePermission(sec, id, authority.ResourceWorkspace, authority.ActionRead); err != nil {
		return nil, err
	}

	workspace := domain.Workspace{ID: id}
	db := persistence.ActiveDataSourceManager.GormDB(sec.Context)
	if err := db.Where(&workspace).First(&workspace).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, bizerror.ErrNotFound
		}
		return nil, err
	}
	return &workspace, nil
}

func QueryWorkspaceNames(ids []types.ID) (map[types.ID]string, error) {
	if len(ids) == 0 {
		return map[types.ID]string{}, nil
	}
	db := persistence.ActiveDataSourceManager.GormDB(nil)
	var records []domain.Workspace
	if err := db.Model(&domain.Workspace{}).Where("id IN (?)", ids).Find(&records).Error; err != nil {
		return nil, err
	}
	result := map[types.ID]string{}
	for _, r := range records {
		result[r.ID] = r.Name
	}
	return result, nil
}
