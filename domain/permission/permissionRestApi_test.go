package permission_test

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"beacon/authority"
	"beacon/bizerror"
	"beacon/domain"
	"beacon/domain/permission"
	"beacon/misc"
	"beacon/session"
	"beacon/testinfra"

	"github.com/fundwit/go-commons/types"
	"github.com/gin-gonic/gin"
	. "github.com/onsi/gomega"
)

func withSession(sec *session.Session) gin.HandlerFunc {
	return func(c *gin.Context) {
		session.InjectSessionIntoGinContext(c, sec)
		c.Next()
	}
}

func TestHandleQueryPermissions(t *testing.T) {
	RegisterTestingT(t)

	router := gin.Default()
	router.Use(bizerror.ErrorHandling())
	permission.RegisterPermissionsRestApis(router)

	t.Run("should list the whole catalog", func(t *testing.T) {
		permission.QueryAllPermissionsFunc = func() ([]authority.Permission, error) {
			return []authority.Permission{{ID: 10, Name: "campaign.read",
				Resource: authority.ResourceCampaign, Action: authority.ActionRead,
				Description: "Allows to read on campaign", IsActive: true,
				CreateTime: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)}}, nil
		}
		defer func() {
			permission.QueryAllPermissionsFunc = permission.QueryAllPermissions
		}()

		req := httptest.NewRequest(http.MethodGet, permission.PermissionsApiRoot, nil)
		status, body, _ := testinfra.ExecuteRequest(req, router)
		Expect(status).To(Equal(http.StatusOK))
		Expect(body).To(MatchJSON(`[{"id":"10","name":"campaign.read","resource":"campaign","action":"read",
			"description":"Allows to read on campaign","isActive":true,"createTime":"2025-01-01T00:00:00Z"}]`))
	})

	t.Run("should filter by resource", func(t *testing.T) {
		var askedResource authority.Resource
		permission.QueryResourcePermissionsFunc = func(resource authority.Resource) ([]authority.Permission, error) {
			askedResource = resource
			return []authority.Permission{}, nil
		}
		defer func() {
			permission.QueryResourcePermissionsFunc = permission.QueryResourcePermissions
		}()

		req := httptest.NewRequest(http.MethodGet, permission.PermissionsApiRoot+"?resource=designer", nil)
		status, body, _ := testinfra.ExecuteRequest(req, router)
		Expect(status).To(Equal(http.StatusOK))
		Expect(body).To(MatchJSON(`[]`))
		Expect(askedResource).To(Equal(authority.ResourceDesigner))
	})
}

func TestHandleSeedPermissions(t *testing.T) {
	RegisterTestingT(t)

	t.Run("should be reserved to the system admin", func(t *testing.T) {
		router := gin.Default()
		router.Use(bizerror.ErrorHandling())
		permission.RegisterPermissionsRestApis(router, withSession(testinfra.BuildSecCtx(100, "campaign.read_200")))

		req := httptest.NewRequest(http.MethodPost, permission.PermissionsApiRoot+"/seeds", nil)
		status, body, _ := testinfra.ExecuteRequest(req, router)
		Expect(status).To(Equal(http.StatusForbidden))
		Expect(body).To(MatchJSON(`{"code":"security.forbidden","message":"access forbidden","data":null}`))
	})

	t.Run("should seed the whole catalog or one resource", func(t *testing.T) {
		router := gin.Default()
		router.Use(bizerror.ErrorHandling())
		permission.RegisterPermissionsRestApis(router,
			withSession(testinfra.BuildSecCtx(999, authority.SystemAdminPermission)))

		seededAll := false
		var seededResource authority.Resource
		permission.SeedAllPermissionsFunc = func() error {
			seededAll = true
			return nil
		}
		permission.SeedResourcePermissionsFunc = func(resource authority.Resource) error {
			seededResource = resource
			return nil
		}
		defer func() {
			permission.SeedAllPermissionsFunc = permission.SeedAllPermissions
			permission.SeedResourcePermissionsFunc = permission.SeedResourcePermissions
		}()

		req := httptest.NewRequest(http.MethodPost, permission.PermissionsApiRoot+"/seeds", nil)
		status, _, _ := testinfra.ExecuteRequest(req, router)
		Expect(status).To(Equal(http.StatusNoContent))
		Expect(seededAll).To(BeTrue())

		req = httptest.NewRequest(http.MethodPost, permission.PermissionsApiRoot+"/seeds",
			misc.StringReader(`{"resource":"designer"}`))
		status, _, _ = testinfra.ExecuteRequest(req, router)
		Expect(status).To(Equal(http.StatusNoContent))
		Expect(seededResource).To(Equal(authority.ResourceDesigner))
	})
}

func TestHandleAssignPermission(t *testing.T) {
	RegisterTestingT(t)

	router := gin.Default()
	router.Use(bizerror.ErrorHandling())
	permission.RegisterPermissionsRestApis(router, withSession(testinfra.BuildSecCtx(999, authority.SystemAdminPermission)))

	t.Run("should assign and answer the grant record", func(t *testing.T) {
		now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
		permission.AssignPermissionFunc = func(userId, workspaceId types.ID,
			resource authority.Resource, action authority.Action, sec *session.Session) (*domain.WorkspaceGrant, error) {
			Expect(userId).To(Equal(types.ID(100)))
			Expect(workspaceId).To(Equal(types.ID(200)))
			Expect(resource).To(Equal(authority.ResourceCampaign))
			Expect(action).To(Equal(authority.ActionRead))
			return &domain.WorkspaceGrant{ID: 1, UserID: userId, WorkspaceID: workspaceId,
				PermissionIDs: authority.IDSet{10}, IsActive: true,
				CreateTime: now, UpdateTime: now, CreatedBy: 999, UpdatedBy: 999}, nil
		}
		defer func() {
			permission.AssignPermissionFunc = permission.AssignPermission
		}()

		req := httptest.NewRequest(http.MethodPost, permission.GrantsApiRoot,
			misc.StringReader(`{"userId": "100", "workspaceId": "200", "resource": "campaign", "action": "read"}`))
		status, body, _ := testinfra.ExecuteRequest(req, router)
		Expect(status).To(Equal(http.StatusOK))
		Expect(body).To(MatchJSON(`{"id":"1","userId":"100","workspaceId":"200","permissionIds":["10"],
			"isActive":true,"createTime":"2025-01-01T00:00:00Z","updateTime":"2025-01-01T00:00:00Z",
			"createdBy":"999","updatedBy":"999"}`))
	})

	t.Run("should answer conflict for an already assigned permission", func(t *testing.T) {
		permission.AssignPermissionFunc = func(userId, workspaceId types.ID,
			resource authority.Resource, action authority.Action, sec *session.Session) (*domain.WorkspaceGrant, error) {
			return nil, bizerror.ErrPermissionAlreadyAssigned
		}
		defer func() {
			permission.AssignPermissionFunc = permission.AssignPermission
		}()

		req := httptest.NewRequest(http.MethodPost, permission.GrantsApiRoot,
			misc.StringReader(`{"userId": "100", "workspaceId": "200", "resource": "campaign", "action": "read"}`))
		status, body, _ := testinfra.ExecuteRequest(req, router)
		Expect(status).To(Equal(http.StatusConflict))
		Expect(body).To(MatchJSON(`{"code":"authority.permission_already_assigned",
			"message":"permission is already assigned","data":null}`))
	})

	t.Run("should validate the payload", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, permission.GrantsApiRoot, nil)
		status, body, _ := testinfra.ExecuteRequest(req, router)
		Expect(status).To(Equal(http.StatusBadRequest))
		Expect(body).To(MatchJSON(`{"code":"bad_request.body_not_found","message":"body not found","data":null}`))

		req = httptest.NewRequest(http.MethodPost, permission.GrantsApiRoot, misc.StringReader(`{}`))
		status, _, _ = testinfra.ExecuteRequest(req, router)
		Expect(status).To(Equal(http.StatusBadRequest))
	})
}

func TestHandleQueryGrants(t *testing.T) {
	RegisterTestingT(t)

	router := gin.Default()
	router.Use(bizerror.ErrorHandling())
	permission.RegisterPermissionsRestApis(router)

	t.Run("should expand one pair when both ids are given", func(t *testing.T) {
		permission.QueryUserWorkspacePermissionsFunc = func(userId, workspaceId types.ID) ([]authority.Permission, error) {
			Expect(userId).To(Equal(types.ID(100)))
			Expect(workspaceId).To(Equal(types.ID(200)))
			return []authority.Permission{}, nil
		}
		defer func() {
			permission.QueryUserWorkspacePermissionsFunc = permission.QueryUserWorkspacePermissions
		}()

		req := httptest.NewRequest(http.MethodGet, permission.GrantsApiRoot+"?userId=100&workspaceId=200", nil)
		status, body, _ := testinfra.ExecuteRequest(req, router)
		Expect(status).To(Equal(http.StatusOK))
		Expect(body).To(MatchJSON(`[]`))
	})

	t.Run("should list grants per user or per workspace", func(t *testing.T) {
		permission.QueryUserGrantsFunc = func(userId types.ID) ([]domain.GrantDetail, error) {
			return []domain.GrantDetail{{UserID: userId, WorkspaceID: 200, Permissions: []authority.Permission{}}}, nil
		}
		permission.QueryWorkspaceGrantsFunc = func(workspaceId types.ID) ([]domain.GrantDetail, error) {
			return []domain.GrantDetail{{UserID: 100, WorkspaceID: workspaceId, Permissions: []authority.Permission{}}}, nil
		}
		defer func() {
			permission.QueryUserGrantsFunc = permission.QueryUserGrants
			permission.QueryWorkspaceGrantsFunc = permission.QueryWorkspaceGrants
		}()

		req := httptest.NewRequest(http.MethodGet, permission.GrantsApiRoot+"?userId=100", nil)
		status, body, _ := testinfra.ExecuteRequest(req, router)
		Expect(status).To(Equal(http.StatusOK))
		Expect(body).To(MatchJSON(`[{"userId":"100","workspaceId":"200","permissions":[]}]`))

		req = httptest.NewRequest(http.MethodGet, permission.GrantsApiRoot+"?workspaceId=200", nil)
		status, body, _ = testinfra.ExecuteRequest(req, router)
		Expect(status).To(Equal(http.StatusOK))
		Expect(body).To(MatchJSON(`[{"userId":"100","workspaceId":"200","permissions":[]}]`))
	})

	t.Run("should require at least one filter", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, permission.GrantsApiRoot, nil)
		status, body, _ := testinfra.ExecuteRequest(req, router)
		Expect(status).To(Equal(http.StatusBadRequest))
		Expect(body).To(MatchJSON(`{"code":"common.bad_param","message":"common.bad_param","data":null}`))
	})
}

func TestHandleEvaluate(t *testing.T) {
	RegisterTestingT(t)

	router := gin.Default()
	router.Use(bizerror.ErrorHandling())
	permission.RegisterPermissionsRestApis(router)

	t.Run("should evaluate one pair in one workspace", func(t *testing.T) {
		permission.UserHasPermissionFunc = func(userId, workspaceId types.ID,
			resource authority.Resource, action authority.Action) (bool, error) {
			return true, nil
		}
		defer func() {
			permission.UserHasPermissionFunc = permission.UserHasPermission
		}()

		req := httptest.NewRequest(http.MethodGet,
			permission.GrantsApiRoot+"/evaluation?userId=100&workspaceId=200&resource=campaign&action=read", nil)
		status, body, _ := testinfra.ExecuteRequest(req, router)
		Expect(status).To(Equal(http.StatusOK))
		Expect(body).To(MatchJSON(`{"has":true}`))
	})

	t.Run("should evaluate workspace access and any-workspace capability", func(t *testing.T) {
		permission.UserHasWorkspaceAccessFunc = func(userId, workspaceId types.ID) (bool, error) {
			return false, nil
		}
		permission.UserHasPermissionInAnyWorkspaceFunc = func(userId types.ID,
			resource authority.Resource, action authority.Action) (bool, error) {
			return true, nil
		}
		defer func() {
			permission.UserHasWorkspaceAccessFunc = permission.UserHasWorkspaceAccess
			permission.UserHasPermissionInAnyWorkspaceFunc = permission.UserHasPermissionInAnyWorkspace
		}()

		req := httptest.NewRequest(http.MethodGet, permission.GrantsApiRoot+"/evaluation?userId=100&workspaceId=200", nil)
		status, body, _ := testinfra.ExecuteRequest(req, router)
		Expect(status).To(Equal(http.StatusOK))
		Expect(body).To(MatchJSON(`{"has":false}`))

		req = httptest.NewRequest(http.MethodGet,
			permission.GrantsApiRoot+"/evaluation?userId=100&resource=user&action=impersonate", nil)
		status, body, _ = testinfra.ExecuteRequest(req, router)
		Expect(status).To(Equal(http.StatusOK))
		Expect(body).To(MatchJSON(`{"has":true}`))
	})

	t.Run("should reject underspecified evaluations", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, permission.GrantsApiRoot+"/evaluation?userId=100", nil)
		status, _, _ := testinfra.ExecuteRequest(req, router)
		Expect(status).To(Equal(http.StatusBadRequest))
	})
}

func TestHandleRemovePermission(t *testing.T) {
	RegisterTestingT(t)

	router := gin.Default()
	router.Use(bizerror.ErrorHandling())
	permission.RegisterPermissionsRestApis(router)

	t.Run("should remove and report the outcome", func(t *testing.T) {
		permission.RemovePermissionFunc = func(userId, workspaceId types.ID,
			resource authority.Resource, action authority.Action, sec *session.Session) (bool, error) {
			return true, nil
		}
		defer func() {
			permission.RemovePermissionFunc = permission.RemovePermission
		}()

		req := httptest.NewRequest(http.MethodDelete,
			permission.GrantsApiRoot+"?userId=100&workspaceId=200&resource=campaign&action=read", nil)
		status, body, _ := testinfra.ExecuteRequest(req, router)
		Expect(status).To(Equal(http.StatusOK))
		Expect(body).To(MatchJSON(`{"removed":true}`))
	})

	t.Run("should validate the query", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodDelete, permission.GrantsApiRoot+"?userId=100", nil)
		status, _, _ := testinfra.ExecuteRequest(req, router)
		Expect(status).To(Equal(http.StatusBadRequest))
	})

	t.Run("should drop the whole workspace grant", func(t *testing.T) {
		permission.RemoveAllWorkspacePermissionsFunc = func(userId, workspaceId types.ID, sec *session.Session) (bool, error) {
			return true, nil
		}
		defer func() {
			permission.RemoveAllWorkspacePermissionsFunc = permission.RemoveAllWorkspacePermissions
		}()

		req := httptest.NewRequest(http.MethodDelete, permission.GrantsApiRoot+"/all?userId=100&workspaceId=200", nil)
		status, body, _ := testinfra.ExecuteRequest(req, router)
		Expect(status).To(Equal(http.StatusOK))
		Expect(body).To(MatchJSON(`{"removed":true}`))

		req = httptest.NewRequest(http.MethodDelete, permission.GrantsApiRoot+"/all?userId=100", nil)
		status, _, _ = testinfra.ExecuteRequest(req, router)
		Expect(status).To(Equal(http.StatusBadRequest))
	})
}

func TestHandleBulkAssignPermissions(t *testing.T) {
	RegisterTestingT(t)

	router := gin.Default()
	router.Use(bizerror.ErrorHandling())
	permission.RegisterPermissionsRestApis(router)

	t.Run("should answer collected failures", func(t *testing.T) {
		permission.BulkAssignPermissionsFunc = func(workspaceId types.ID,
			assignments []domain.PermissionAssignment, sec *session.Session) []permission.BulkAssignFailure {
			Expect(workspaceId).To(Equal(types.ID(200)))
			Expect(len(assignments)).To(Equal(2))
			return []permission.BulkAssignFailure{{UserID: 404, Error: "record not found"}}
		}
		defer func() {
			permission.BulkAssignPermissionsFunc = permission.BulkAssignPermissions
		}()

		req := httptest.NewRequest(http.MethodPost, permission.GrantsApiRoot+"/bulk",
			misc.StringReader(`{"workspaceId": "200", "assignments": [
				{"userId": "100", "permissions": [{"resource": "campaign", "action": "read"}]},
				{"userId": "404", "permissions": [{"resource": "campaign", "action": "read"}]}]}`))
		status, body, _ := testinfra.ExecuteRequest(req, router)
		Expect(status).To(Equal(http.StatusOK))
		Expect(body).To(MatchJSON(`{"failures":[{"userId":"404","error":"record not found"}]}`))
	})
}
