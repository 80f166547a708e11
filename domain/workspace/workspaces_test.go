package workspace_test

import (
	"context"
	"errors"
	"testing"

	"beacon/account"
	"beacon/authority"
	"beacon/bizerror"
	"beacon/domain"
	"beacon/domain/permission"
	"beacon/domain/workspace"
	"beacon/persistence"
	"beacon/testinfra"

	"github.com/fundwit/go-commons/types"
	"github.com/jinzhu/gorm"
	. "github.com/onsi/gomega"
	"github.com/stretchr/testify/assert"
)

var (
	testDatabase *testinfra.TestDatabase
)

func setup(t *testing.T) *gorm.DB {
	testDatabase = testinfra.StartMysqlTestDatabase("beacon")
	assert.Nil(t, testDatabase.DS.GormDB(context.Background()).AutoMigrate(
		&account.User{}, &authority.Permission{}, &domain.Workspace{},
		&domain.Membership{}, &domain.WorkspaceGrant{}).Error)
	persistence.ActiveDataSourceManager = testDatabase.DS
	workspace.SeedAllPermissionsFunc = permission.SeedAllPermissions
	return testDatabase.DS.GormDB(context.Background())
}

func teardown(t *testing.T) {
	if testDatabase != nil {
		testinfra.StopMysqlTestDatabase(testDatabase)
	}
}

func buildUser(t *testing.T, id types.ID, name string) {
	Expect(testDatabase.DS.GormDB(context.Background()).
		Save(&account.User{ID: id, Name: name, IsActive: true}).Error).To(BeNil())
}

func TestCreateWorkspace(t *testing.T) {
	RegisterTestingT(t)

	t.Run("should create workspace with owner membership and full creator grant", func(t *testing.T) {
		db := setup(t)
		defer teardown(t)
		buildUser(t, 100, "ann")
		sec := testinfra.BuildSecCtx(100)

		ws, err := workspace.CreateWorkspace(&domain.WorkspaceCreating{Name: "marketing", Identifier: "MKT"}, sec)
		Expect(err).To(BeNil())
		Expect(ws.ID).ToNot(BeZero())
		Expect(ws.Name).To(Equal("marketing"))
		Expect(ws.Identifier).To(Equal("MKT"))
		Expect(ws.Creator).To(Equal(types.ID(100)))
		Expect(ws.CreateTime).ToNot(BeZero())

		membership := domain.Membership{}
		Expect(db.Where("workspace_id = ? AND member_id = ?", ws.ID, 100).First(&membership).Error).To(BeNil())
		Expect(membership.AccessLevel).To(Equal(domain.AccessLevelOwner))

		// the creator holds the full cross-product in the new workspace
		grants, err := permission.QueryUserWorkspacePermissions(100, ws.ID)
		Expect(err).To(BeNil())
		Expect(len(grants)).To(Equal(31))

		has, err := permission.UserHasPermission(100, ws.ID, authority.ResourceDesigner, authority.ActionUpload)
		Expect(err).To(BeNil())
		Expect(has).To(BeTrue())
	})

	t.Run("should seed the permission catalog when empty", func(t *testing.T) {
		db := setup(t)
		defer teardown(t)
		buildUser(t, 100, "ann")

		_, err := workspace.CreateWorkspace(&domain.WorkspaceCreating{Name: "marketing", Identifier: "MKT"},
			testinfra.BuildSecCtx(100))
		Expect(err).To(BeNil())

		count := 0
		Expect(db.Model(&authority.Permission{}).Count(&count).Error).To(BeNil())
		Expect(count).To(Equal(31))
	})

	t.Run("should fail without leftovers when seeding fails", func(t *testing.T) {
		db := setup(t)
		defer teardown(t)
		buildUser(t, 100, "ann")
		workspace.SeedAllPermissionsFunc = func() error {
			return errors.New("seed failed")
		}
		defer func() {
			workspace.SeedAllPermissionsFunc = permission.SeedAllPermissions
		}()

		_, err := workspace.CreateWorkspace(&domain.WorkspaceCreating{Name: "marketing", Identifier: "MKT"},
			testinfra.BuildSecCtx(100))
		Expect(err).ToNot(BeNil())
		Expect(err.Error()).To(Equal("seed failed"))

		count := 0
		Expect(db.Model(&domain.Workspace{}).Count(&count).Error).To(BeNil())
		Expect(count).To(BeZero())
	})

	t.Run("should roll back the workspace when the grant cannot be created", func(t *testing.T) {
		db := setup(t)
		defer teardown(t)
		// creator does not exist, the in-transaction grant fails

		_, err := workspace.CreateWorkspace(&domain.WorkspaceCreating{Name: "marketing", Identifier: "MKT"},
			testinfra.BuildSecCtx(100))
		Expect(err).To(Equal(bizerror.ErrNotFound))

		count := 0
		Expect(db.Model(&domain.Workspace{}).Count(&count).Error).To(BeNil())
		Expect(count).To(BeZero())
		Expect(db.Model(&domain.Membership{}).Count(&count).Error).To(BeNil())
		Expect(count).To(BeZero())
	})
}

func TestQueryWorkspaces(t *testing.T) {
	RegisterTestingT(t)

	t.Run("should list all workspaces for the system admin", func(t *testing.T) {
		setup(t)
		defer teardown(t)
		buildUser(t, 100, "ann")
		buildUser(t, 101, "ben")
		_, err := workspace.CreateWorkspace(&domain.WorkspaceCreating{Name: "w1", Identifier: "W1"}, testinfra.BuildSecCtx(100))
		Expect(err).To(BeNil())
		_, err = workspace.CreateWorkspace(&domain.WorkspaceCreating{Name: "w2", Identifier: "W2"}, testinfra.BuildSecCtx(101))
		Expect(err).To(BeNil())

		list, err := workspace.QueryWorkspaces(testinfra.BuildSecCtx(999, authority.SystemAdminPermission))
		Expect(err).To(BeNil())
		Expect(len(*list)).To(Equal(2))
	})

	t.Run("should list only member workspaces for plain users", func(t *testing.T) {
		setup(t)
		defer teardown(t)
		buildUser(t, 100, "ann")
		buildUser(t, 101, "ben")
		w1, err := workspace.CreateWorkspace(&domain.WorkspaceCreating{Name: "w1", Identifier: "W1"}, testinfra.BuildSecCtx(100))
		Expect(err).To(BeNil())
		_, err = workspace.CreateWorkspace(&domain.WorkspaceCreating{Name: "w2", Identifier: "W2"}, testinfra.BuildSecCtx(101))
		Expect(err).To(BeNil())

		list, err := workspace.QueryWorkspaces(testinfra.BuildSecCtx(100))
		Expect(err).To(BeNil())
		Expect(len(*list)).To(Equal(1))
		Expect((*list)[0].ID).To(Equal(w1.ID))

		list, err = workspace.QueryWorkspaces(testinfra.BuildSecCtx(300))
		Expect(err).To(BeNil())
		Expect(*list).To(Equal([]domain.Workspace{}))
	})
}

func TestUpdateWorkspace(t *testing.T) {
	RegisterTestingT(t)

	t.Run("should update name for holders of workspace.update", func(t *testing.T) {
		db := setup(t)
		defer teardown(t)
		buildUser(t, 100, "ann")
		sec := testinfra.BuildSecCtx(100)
		ws, err := workspace.CreateWorkspace(&domain.WorkspaceCreating{Name: "old", Identifier: "W1"}, sec)
		Expect(err).To(BeNil())

		Expect(workspace.UpdateWorkspace(ws.ID, &domain.WorkspaceUpdating{Name: "new"}, sec)).To(BeNil())

		record := domain.Workspace{ID: ws.ID}
		Expect(db.Where(&record).First(&record).Error).To(BeNil())
		Expect(record.Name).To(Equal("new"))
	})

	t.Run("should forbid strangers", func(t *testing.T) {
		setup(t)
		defer teardown(t)
		buildUser(t, 100, "ann")
		ws, err := workspace.CreateWorkspace(&domain.WorkspaceCreating{Name: "old", Identifier: "W1"}, testinfra.BuildSecCtx(100))
		Expect(err).To(BeNil())

		err = workspace.UpdateWorkspace(ws.ID, &domain.WorkspaceUpdating{Name: "new"}, testinfra.BuildSecCtx(300))
		Expect(err).To(Equal(bizerror.ErrForbidden))
	})
}

func TestDetailWorkspace(t *testing.T) {
	RegisterTestingT(t)

	t.Run("should detail for authorized users and miss for unknown ids", func(t *testing.T) {
		setup(t)
		defer teardown(t)
		buildUser(t, 100, "ann")
		sec := testinfra.BuildSecCtx(100)
		ws, err := workspace.CreateWorkspace(&domain.WorkspaceCreating{Name: "w1", Identifier: "W1"}, sec)
		Expect(err).To(BeNil())

		detail, err := workspace.DetailWorkspace(ws.ID, sec)
		Expect(err).To(BeNil())
		Expect(detail.ID).To(Equal(ws.ID))

		_, err = workspace.DetailWorkspace(404, testinfra.BuildSecCtx(999, authority.SystemAdminPermission))
		Expect(err).To(Equal(bizerror.ErrNotFound))

		_, err = workspace.DetailWorkspace(ws.ID, testinfra.BuildSecCtx(300))
		Expect(err).To(Equal(bizerror.ErrForbidden))
	})
}

func TestQueryWorkspaceNames(t *testing.T) {
	RegisterTestingT(t)

	t.Run("should map ids to names", func(t *testing.T) {
		setup(t)
		defer teardown(t)
		buildUser(t, 100, "ann")
		w1, err := workspace.CreateWorkspace(&domain.WorkspaceCreating{Name: "w1", Identifier: "W1"}, testinfra.BuildSecCtx(100))
		Expect(err).To(BeNil())

		names, err := workspace.QueryWorkspaceNames([]types.ID{w1.ID, 404})
		Expect(err).To(BeNil())
		Expect(names).To(Equal(map[types.ID]string{w1.ID: "w1"}))

		names, err = workspace.QueryWorkspaceNames([]types.ID{})
		Expect(err).To(BeNil())
		Expect(names).To(Equal(map[types.ID]string{}))
	})
}
