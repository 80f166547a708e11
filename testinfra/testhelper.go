package testinfra

import (
	"context"
	"io/ioutil"
	"net/http"
	"net/http/httptest"

	"beacon/session"

	"github.com/fundwit/go-commons/types"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// BuildSecCtx builds a security context for tests.
func BuildSecCtx(uid types.ID, perms ...string) *session.Session {
	return &session.Session{
		Token:    uuid.New().String(),
		Identity: session.Identity{ID: uid, Name: "user" + uid.String()},
		Perms:    perms,
		Context:  context.Background(),
	}
}

// ExecuteRequest runs the request through the router and returns the
// recorded status and body.
func ExecuteRequest(req *http.Request, router *gin.Engine) (int, string, *httptest.ResponseRecorder) {
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	bodyBytes, _ := ioutil.ReadAll(w.Body)
	return w.Code, string(bodyBytes), w
}
