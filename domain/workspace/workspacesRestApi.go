package workspace

import (
	"net/http"

	"beacon/domain"
	"beacon/misc"
	"beacon/session"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
)

var (
	WorkspacesApiRoot = "/v1/workspaces"

	QueryWorkspacesFunc = QueryWorkspaces
	CreateWorkspaceFunc = CreateWorkspace
	UpdateWorkspaceFunc = UpdateWorkspace
	DetailWorkspaceFunc = DetailWorkspace
)

func RegisterWorkspacesRestApis(r *gin.Engine, middleWares ...gin.HandlerFunc) {
	workspaces := r.Group(WorkspacesApiRoot, middleWares...)
	workspaces.GET("", HandleQueryWorkspaces)
	workspaces.POST("", HandleCreateWorkspace)
	workspaces.GET(":id", HandleDetailWorkspace)
	workspaces.PUT(":id", HandleUpdateWorkspace)
}

func HandleQueryWorkspaces(c *gin.Context) {
	result, err := QueryWorkspacesFunc(session.ExtractSessionFromGinContext(c))
	if err != nil {
		panic(err)
	}
	c.JSON(http.StatusOK, &result)
}

func HandleCreateWorkspace(c *gin.Context) {
	payload := domain.WorkspaceCreating{}
	err := c.ShouldBindBodyWith(&payload, binding.JSON)
	if err != nil {
		panic(err)
	}
	result, err := CreateWorkspaceFunc(&payload, session.ExtractSessionFromGinContext(c))
	if err != nil {
		panic(err)
	}
	c.JSON(http.StatusOK, result)
}

func HandleDetailWorkspace(c *gin.Context) {
	id, err := misc.BindingPathID(c)
	if err != nil {
		panic(err)
	}
	result, err := DetailWorkspaceFunc(id, session.ExtractSessionFromGinContext(c))
	if err != nil {
		panic(err)
	}
	c.JSON(http.StatusOK, result)
}

func HandleUpdateWorkspace(c *gin.Context) {
	id, err := misc.BindingPathID(c)
	if err != nil {
		panic(err)
	}

	payload := domain.WorkspaceUpdating{}
	err = c.ShouldBindBodyWith(&payload, binding.JSON)
	if err != nil {
		panic(err)
	}
	err = UpdateWorkspaceFunc(id, &payload, session.ExtractSessionFromGinContext(c))
	if err != nil {
		panic(err)
	}
	c.Status(http.StatusOK)
}
