package designer

import (
	"net/http"

	"beacon/bizerror"
	"beacon/misc"
	"beacon/session"

	"github.com/gin-gonic/gin"
)

var (
	AssetsApiPattern = "/v1/workspaces/:id/design-assets/:name"

	DetailAssetFunc = DetailAsset
	CreateAssetFunc = CreateAsset
)

func RegisterAssetsRestApis(r *gin.Engine, middleWares ...gin.HandlerFunc) {
	group := r.Group("", middleWares...)
	group.GET(AssetsApiPattern, HandleDetailAsset)
	group.PUT(AssetsApiPattern, HandleCreateAsset)
}

func HandleDetailAsset(c *gin.Context) {
	workspaceId, err := misc.BindingPathID(c)
	if err != nil {
		panic(err)
	}
	name := c.Param("name")
	if name == "" {
		panic(&bizerror.ErrBadParam{})
	}

	bytes, err := DetailAssetFunc(workspaceId, name, session.ExtractSessionFromGinContext(c))
	if err != nil {
		panic(err)
	}
	c.Data(http.StatusOK, "application/octet-stream", bytes)
}

func HandleCreateAsset(c *gin.Context) {
	workspaceId, err := misc.BindingPathID(c)
	if err != nil {
		panic(err)
	}
	name := c.Param("name")
	if name == "" {
		panic(&bizerror.ErrBadParam{})
	}

	if err := CreateAssetFunc(workspaceId, name, c.Request.Body, session.ExtractSessionFromGinContext(c)); err != nil {
		panic(err)
	}
	c.Status(http.StatusCreated)
}
