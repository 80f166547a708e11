package sessions

import (
	"net/http"

	"beacon/session"

	"github.com/gin-gonic/gin"
)

var SessionApiRoot = "/v1/session"

func RegisterSessionRestApis(r *gin.Engine, middleWares ...gin.HandlerFunc) {
	g := r.Group(SessionApiRoot, middleWares...)
	g.GET("", HandleQuerySession)
}

// HandleQuerySession returns the caller's security context: the acting
// identity, the expanded permission names and, while impersonating, the
// real identity.
func HandleQuerySession(c *gin.Context) {
	sec := session.ExtractSessionFromGinContext(c)
	c.JSON(http.StatusOK, sec)
}
