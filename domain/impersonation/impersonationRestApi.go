package impersonation

import (
	"net/http"
	"strconv"

	"beacon/authority"
	"beacon/bizerror"
	"beacon/domain"
	"beacon/misc"
	"beacon/session"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
)

var (
	ImpersonationsApiRoot = "/v1/impersonations"

	StartImpersonationFunc            = StartImpersonation
	EndImpersonationFunc              = EndImpersonation
	GetImpersonationContextFunc       = GetImpersonationContext
	GetImpersonatableUsersFunc        = GetImpersonatableUsers
	GetImpersonationHistoryFunc       = GetImpersonationHistory
	GetAllActiveSessionsFunc          = GetAllActiveSessions
	CheckAndUpdateExpiredSessionsFunc = CheckAndUpdateExpiredSessions
)

func RegisterImpersonationsRestApis(r *gin.Engine, middleWares ...gin.HandlerFunc) {
	impersonations := r.Group(ImpersonationsApiRoot, middleWares...)
	impersonations.POST("", HandleStartImpersonation)
	impersonations.DELETE(":id", HandleEndImpersonation)
	impersonations.GET("current", HandleGetImpersonationContext)
	impersonations.GET("candidates", HandleGetImpersonatableUsers)
	impersonations.GET("", HandleGetImpersonationHistory)
	impersonations.GET("active", HandleGetAllActiveSessions)
	impersonations.POST("sweeps", HandleSweepExpiredSessions)
}

func HandleStartImpersonation(c *gin.Context) {
	payload := domain.ImpersonationStarting{}
	if err := c.ShouldBindBodyWith(&payload, binding.JSON); err != nil {
		panic(err)
	}
	result, err := StartImpersonationFunc(&payload, session.ExtractSessionFromGinContext(c))
	if err != nil {
		panic(err)
	}
	c.JSON(http.StatusOK, result)
}

func HandleEndImpersonation(c *gin.Context) {
	id, err := misc.BindingPathID(c)
	if err != nil {
		panic(err)
	}
	if err := EndImpersonationFunc(id, session.ExtractSessionFromGinContext(c)); err != nil {
		panic(err)
	}
	c.Status(http.StatusNoContent)
}

func HandleGetImpersonationContext(c *gin.Context) {
	sec := session.ExtractSessionFromGinContext(c)
	result, err := GetImpersonationContextFunc(sec.AuditUserID())
	if err != nil {
		panic(err)
	}
	c.JSON(http.StatusOK, result)
}

func HandleGetImpersonatableUsers(c *gin.Context) {
	sec := session.ExtractSessionFromGinContext(c)
	result, err := GetImpersonatableUsersFunc(sec.AuditUserID())
	if err != nil {
		panic(err)
	}
	c.JSON(http.StatusOK, result)
}

func HandleGetImpersonationHistory(c *gin.Context) {
	sec := session.ExtractSessionFromGinContext(c)
	limit, _ := strconv.Atoi(c.Query("limit"))
	result, err := GetImpersonationHistoryFunc(sec.AuditUserID(), limit)
	if err != nil {
		panic(err)
	}
	c.JSON(http.StatusOK, result)
}

func HandleGetAllActiveSessions(c *gin.Context) {
	result, err := GetAllActiveSessionsFunc(session.ExtractSessionFromGinContext(c))
	if err != nil {
		panic(err)
	}
	c.JSON(http.StatusOK, result)
}

// sweeping is a maintenance operation, reserved to system admins like the
// active-session listing
func HandleSweepExpiredSessions(c *gin.Context) {
	sec := session.ExtractSessionFromGinContext(c)
	if !sec.Perms.HasPermission(authority.SystemAdminPermission) {
		panic(bizerror.ErrForbidden)
	}

	expired, err := CheckAndUpdateExpiredSessionsFunc()
	if err != nil {
		panic(err)
	}
	c.JSON(http.StatusOK, gin.H{"expired": expired})
}
