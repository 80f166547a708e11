package workspace

import (
	"net/http"

	"beacon/domain"
	"beacon/session"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
)

var (
	MembershipsApiRoot = "/v1/memberships"

	CreateMembershipFunc       = CreateMembership
	QueryMembershipDetailsFunc = QueryMembershipDetails
	DeleteMembershipFunc       = DeleteMembership
)

func RegisterMembershipsRestApis(r *gin.Engine, middleWares ...gin.HandlerFunc) {
	memberships := r.Group(MembershipsApiRoot, middleWares...)
	memberships.GET("", HandleQueryMemberships)
	memberships.POST("", HandleCreateMembership)
	memberships.DELETE("", HandleDeleteMembership)
}

func HandleQueryMemberships(c *gin.Context) {
	query := domain.MembershipQuery{}
	if err := c.ShouldBindQuery(&query); err != nil {
		panic(err)
	}
	result, err := QueryMembershipDetailsFunc(&query, session.ExtractSessionFromGinContext(c))
	if err != nil {
		panic(err)
	}
	c.JSON(http.StatusOK, result)
}

func HandleCreateMembership(c *gin.Context) {
	payload := domain.MembershipCreation{}
	if err := c.ShouldBindBodyWith(&payload, binding.JSON); err != nil {
		panic(err)
	}
	if err := CreateMembershipFunc(&payload, session.ExtractSessionFromGinContext(c)); err != nil {
		panic(err)
	}
	c.Status(http.StatusOK)
}

func HandleDeleteMembership(c *gin.Context) {
	query := domain.MembershipDeletion{}
	if err := c.ShouldBindQuery(&query); err != nil {
		panic(err)
	}
	if err := DeleteMembershipFunc(&query, session.ExtractSessionFromGinContext(c)); err != nil {
		panic(err)
	}
	c.Status(http.StatusNoContent)
}
