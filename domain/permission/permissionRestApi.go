package permission

import (
	"net/http"

	"beacon/authority"
	"beacon/bizerror"
	"beacon/domain"
	"beacon/session"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
)

var (
	PermissionsApiRoot = "/v1/permissions"
	GrantsApiRoot      = "/v1/grants"

	SeedAllPermissionsFunc       = SeedAllPermissions
	SeedResourcePermissionsFunc  = SeedResourcePermissions
	QueryAllPermissionsFunc      = QueryAllPermissions
	QueryResourcePermissionsFunc = QueryResourcePermissions
	QueryActionPermissionsFunc   = QueryActionPermissions

	AssignPermissionFunc              = AssignPermission
	AssignPermissionsFunc             = AssignPermissions
	BulkAssignPermissionsFunc         = BulkAssignPermissions
	RemovePermissionFunc              = RemovePermission
	RemoveAllWorkspacePermissionsFunc = RemoveAllWorkspacePermissions

	QueryUserWorkspacePermissionsFunc   = QueryUserWorkspacePermissions
	QueryUserGrantsFunc                 = QueryUserGrants
	QueryWorkspaceGrantsFunc            = QueryWorkspaceGrants
	UserHasPermissionFunc               = UserHasPermission
	UserHasWorkspaceAccessFunc          = UserHasWorkspaceAccess
	UserHasPermissionInAnyWorkspaceFunc = UserHasPermissionInAnyWorkspace
)

func RegisterPermissionsRestApis(r *gin.Engine, middleWares ...gin.HandlerFunc) {
	permissions := r.Group(PermissionsApiRoot, middleWares...)
	permissions.GET("", HandleQueryPermissions)
	permissions.POST("seeds", HandleSeedPermissions)

	grants := r.Group(GrantsApiRoot, middleWares...)
	grants.GET("", HandleQueryGrants)
	grants.GET("evaluation", HandleEvaluate)
	grants.POST("", HandleAssignPermission)
	grants.POST("batches", HandleAssignPermissions)
	grants.POST("bulk", HandleBulkAssignPermissions)
	grants.DELETE("", HandleRemovePermission)
	grants.DELETE("all", HandleRemoveAllWorkspacePermissions)
}

func HandleQueryPermissions(c *gin.Context) {
	resource := authority.Resource(c.Query("resource"))
	action := authority.Action(c.Query("action"))

	var result []authority.Permission
	var err error
	switch {
	case resource != "":
		result, err = QueryResourcePermissionsFunc(resource)
	case action != "":
		result, err = QueryActionPermissionsFunc(action)
	default:
		result, err = QueryAllPermissionsFunc()
	}
	if err != nil {
		panic(err)
	}
	c.JSON(http.StatusOK, result)
}

type permissionSeeding struct {
	Resource authority.Resource `json:"resource"`
}

func HandleSeedPermissions(c *gin.Context) {
	sec := session.ExtractSessionFromGinContext(c)
	if !sec.Perms.HasPermission(authority.SystemAdminPermission) {
		panic(bizerror.ErrForbidden)
	}

	payload := permissionSeeding{}
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindBodyWith(&payload, binding.JSON); err != nil {
			panic(err)
		}
	}

	var err error
	if payload.Resource != "" {
		err = SeedResourcePermissionsFunc(payload.Resource)
	} else {
		err = SeedAllPermissionsFunc()
	}
	if err != nil {
		panic(err)
	}
	c.Status(http.StatusNoContent)
}

func HandleAssignPermission(c *gin.Context) {
	payload := domain.GrantCreation{}
	if err := c.ShouldBindBodyWith(&payload, binding.JSON); err != nil {
		panic(err)
	}
	result, err := AssignPermissionFunc(payload.UserID, payload.WorkspaceID,
		payload.Resource, payload.Action, session.ExtractSessionFromGinContext(c))
	if err != nil {
		panic(err)
	}
	c.JSON(http.StatusOK, result)
}

func HandleAssignPermissions(c *gin.Context) {
	payload := domain.GrantBatchCreation{}
	if err := c.ShouldBindBodyWith(&payload, binding.JSON); err != nil {
		panic(err)
	}
	result, err := AssignPermissionsFunc(payload.UserID, payload.WorkspaceID,
		payload.Permissions, session.ExtractSessionFromGinContext(c))
	if err != nil {
		panic(err)
	}
	c.JSON(http.StatusOK, result)
}

func HandleBulkAssignPermissions(c *gin.Context) {
	payload := domain.BulkGrantCreation{}
	if err := c.ShouldBindBodyWith(&payload, binding.JSON); err != nil {
		panic(err)
	}
	failures := BulkAssignPermissionsFunc(payload.WorkspaceID, payload.Assignments,
		session.ExtractSessionFromGinContext(c))
	c.JSON(http.StatusOK, gin.H{"failures": failures})
}

func HandleRemovePermission(c *gin.Context) {
	query := domain.GrantDeletion{}
	if err := c.ShouldBindQuery(&query); err != nil {
		panic(err)
	}
	removed, err := RemovePermissionFunc(query.UserID, query.WorkspaceID,
		query.Resource, query.Action, session.ExtractSessionFromGinContext(c))
	if err != nil {
		panic(err)
	}
	c.JSON(http.StatusOK, gin.H{"removed": removed})
}

func HandleRemoveAllWorkspacePermissions(c *gin.Context) {
	query := domain.GrantQuery{}
	if err := c.ShouldBindQuery(&query); err != nil {
		panic(err)
	}
	if query.UserID == nil || query.WorkspaceID == nil {
		panic(&bizerror.ErrBadParam{})
	}
	affected, err := RemoveAllWorkspacePermissionsFunc(*query.UserID, *query.WorkspaceID,
		session.ExtractSessionFromGinContext(c))
	if err != nil {
		panic(err)
	}
	c.JSON(http.StatusOK, gin.H{"removed": affected})
}

func HandleQueryGrants(c *gin.Context) {
	query := domain.GrantQuery{}
	if err := c.ShouldBindQuery(&query); err != nil {
		panic(err)
	}

	switch {
	case query.UserID != nil && query.WorkspaceID != nil:
		result, err := QueryUserWorkspacePermissionsFunc(*query.UserID, *query.WorkspaceID)
		if err != nil {
			panic(err)
		}
		c.JSON(http.StatusOK, result)
	case query.UserID != nil:
		result, err := QueryUserGrantsFunc(*query.UserID)
		if err != nil {
			panic(err)
		}
		c.JSON(http.StatusOK, result)
	case query.WorkspaceID != nil:
		result, err := QueryWorkspaceGrantsFunc(*query.WorkspaceID)
		if err != nil {
			panic(err)
		}
		c.JSON(http.StatusOK, result)
	default:
		panic(&bizerror.ErrBadParam{})
	}
}

func HandleEvaluate(c *gin.Context) {
	query := domain.EvaluationQuery{}
	if err := c.ShouldBindQuery(&query); err != nil {
		panic(err)
	}

	var has bool
	var err error
	switch {
	case query.WorkspaceID != nil && query.Resource != nil && query.Action != nil:
		has, err = UserHasPermissionFunc(query.UserID, *query.WorkspaceID, *query.Resource, *query.Action)
	case query.WorkspaceID != nil:
		has, err = UserHasWorkspaceAccessFunc(query.UserID, *query.WorkspaceID)
	case query.Resource != nil && query.Action != nil:
		has, err = UserHasPermissionInAnyWorkspaceFunc(query.UserID, *query.Resource, *query.Action)
	default:
		panic(&bizerror.ErrBadParam{})
	}
	if err != nil {
		panic(err)
	}
	c.JSON(http.StatusOK, gin.H{"has": has})
}
