package workspace_test

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"beacon/bizerror"
	"beacon/domain"
	"beacon/domain/workspace"
	"beacon/misc"
	"beacon/session"
	"beacon/testinfra"

	"github.com/fundwit/go-commons/types"
	"github.com/gin-gonic/gin"
	. "github.com/onsi/gomega"
)

func TestHandleQueryWorkspaces(t *testing.T) {
	RegisterTestingT(t)

	router := gin.Default()
	router.Use(bizerror.ErrorHandling())
	workspace.RegisterWorkspacesRestApis(router, withSession(testinfra.BuildSecCtx(100)))
	defer func() { workspace.QueryWorkspacesFunc = workspace.QueryWorkspaces }()

	t.Run("should return the workspaces visible to the caller", func(t *testing.T) {
		demoTime := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
		workspace.QueryWorkspacesFunc = func(sec *session.Session) (*[]domain.Workspace, error) {
			return &[]domain.Workspace{{ID: 10, Identifier: "DEM", Name: "demo",
				CreateTime: demoTime, Creator: sec.Identity.ID}}, nil
		}

		req := httptest.NewRequest(http.MethodGet, "/v1/workspaces", nil)
		status, body, _ := testinfra.ExecuteRequest(req, router)
		Expect(status).To(Equal(http.StatusOK))
		Expect(body).To(MatchJSON(`[{"id":"10","identifier":"DEM","name":"demo",
			"createTime":"2025-01-01T00:00:00Z","creator":"100"}]`))
	})

	t.Run("should render business errors", func(t *testing.T) {
		workspace.QueryWorkspacesFunc = func(sec *session.Session) (*[]domain.Workspace, error) {
			return nil, bizerror.ErrForbidden
		}
		req := httptest.NewRequest(http.MethodGet, "/v1/workspaces", nil)
		status, body, _ := testinfra.ExecuteRequest(req, router)
		Expect(status).To(Equal(http.StatusForbidden))
		Expect(body).To(MatchJSON(`{"code":"security.forbidden","message":"access forbidden","data":null}`))
	})
}

func TestHandleCreateWorkspace(t *testing.T) {
	RegisterTestingT(t)

	router := gin.Default()
	router.Use(bizerror.ErrorHandling())
	workspace.RegisterWorkspacesRestApis(router, withSession(testinfra.BuildSecCtx(100)))
	defer func() { workspace.CreateWorkspaceFunc = workspace.CreateWorkspace }()

	t.Run("should create workspace with valid body", func(t *testing.T) {
		demoTime := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
		var payload *domain.WorkspaceCreating
		workspace.CreateWorkspaceFunc = func(c *domain.WorkspaceCreating, sec *session.Session) (*domain.Workspace, error) {
			payload = c
			return &domain.Workspace{ID: 10, Identifier: c.Identifier, Name: c.Name,
				CreateTime: demoTime, Creator: sec.Identity.ID}, nil
		}

		req := httptest.NewRequest(http.MethodPost, "/v1/workspaces",
			misc.StringReader(`{"name":"demo","identifier":"DEM"}`))
		status, body, _ := testinfra.ExecuteRequest(req, router)
		Expect(status).To(Equal(http.StatusOK))
		Expect(body).To(MatchJSON(`{"id":"10","identifier":"DEM","name":"demo",
			"createTime":"2025-01-01T00:00:00Z","creator":"100"}`))
		Expect(*payload).To(Equal(domain.WorkspaceCreating{Name: "demo", Identifier: "DEM"}))
	})

	t.Run("should reject invalid body", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/v1/workspaces", nil)
		status, body, _ := testinfra.ExecuteRequest(req, router)
		Expect(status).To(Equal(http.StatusBadRequest))
		Expect(body).To(MatchJSON(`{"code":"bad_request.body_not_found","message":"body not found","data":null}`))

		req = httptest.NewRequest(http.MethodPost, "/v1/workspaces",
			misc.StringReader(`{"name":"demo","identifier":"lower"}`))
		status, body, _ = testinfra.ExecuteRequest(req, router)
		Expect(status).To(Equal(http.StatusBadRequest))
		Expect(body).To(ContainSubstring(`"code":"bad_request.validation_failed"`))
	})
}

func TestHandleDetailWorkspace(t *testing.T) {
	RegisterTestingT(t)

	router := gin.Default()
	router.Use(bizerror.ErrorHandling())
	workspace.RegisterWorkspacesRestApis(router, withSession(testinfra.BuildSecCtx(100)))
	defer func() { workspace.DetailWorkspaceFunc = workspace.DetailWorkspace }()

	t.Run("should return workspace detail", func(t *testing.T) {
		demoTime := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
		workspace.DetailWorkspaceFunc = func(id types.ID, sec *session.Session) (*domain.Workspace, error) {
			Expect(id).To(Equal(types.ID(10)))
			return &domain.Workspace{ID: id, Identifier: "DEM", Name: "demo",
				CreateTime: demoTime, Creator: 100}, nil
		}
		req := httptest.NewRequest(http.MethodGet, "/v1/workspaces/10", nil)
		status, body, _ := testinfra.ExecuteRequest(req, router)
		Expect(status).To(Equal(http.StatusOK))
		Expect(body).To(MatchJSON(`{"id":"10","identifier":"DEM","name":"demo",
			"createTime":"2025-01-01T00:00:00Z","creator":"100"}`))
	})

	t.Run("should reject bad path parameter", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/v1/workspaces/abc", nil)
		status, body, _ := testinfra.ExecuteRequest(req, router)
		Expect(status).To(Equal(http.StatusBadRequest))
		Expect(body).To(MatchJSON(`{"code":"bad_request.invalid_path_param",
			"message":"invalid path parameter 'id'","data":null}`))
	})

	t.Run("should return 404 when workspace is unknown", func(t *testing.T) {
		workspace.DetailWorkspaceFunc = func(id types.ID, sec *session.Session) (*domain.Workspace, error) {
			return nil, bizerror.ErrNotFound
		}
		req := httptest.NewRequest(http.MethodGet, "/v1/workspaces/404", nil)
		status, body, _ := testinfra.ExecuteRequest(req, router)
		Expect(status).To(Equal(http.StatusNotFound))
		Expect(body).To(MatchJSON(`{"code":"common.record_not_found","message":"record not found","data":null}`))
	})
}

func TestHandleUpdateWorkspace(t *testing.T) {
	RegisterTestingT(t)

	router := gin.Default()
	router.Use(bizerror.ErrorHandling())
	workspace.RegisterWorkspacesRestApis(router, withSession(testinfra.BuildSecCtx(100)))
	defer func() { workspace.UpdateWorkspaceFunc = workspace.UpdateWorkspace }()

	t.Run("should update workspace with valid body", func(t *testing.T) {
		var gotId types.ID
		var gotPayload *domain.WorkspaceUpdating
		workspace.UpdateWorkspaceFunc = func(id types.ID, u *domain.WorkspaceUpdating, sec *session.Session) error {
			gotId, gotPayload = id, u
			return nil
		}
		req := httptest.NewRequest(http.MethodPut, "/v1/workspaces/10",
			misc.StringReader(`{"name":"renamed"}`))
		status, body, _ := testinfra.ExecuteRequest(req, router)
		Expect(status).To(Equal(http.StatusOK))
		Expect(body).To(BeEmpty())
		Expect(gotId).To(Equal(types.ID(10)))
		Expect(*gotPayload).To(Equal(domain.WorkspaceUpdating{Name: "renamed"}))
	})

	t.Run("should reject invalid body", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPut, "/v1/workspaces/10", misc.StringReader(`{}`))
		status, body, _ := testinfra.ExecuteRequest(req, router)
		Expect(status).To(Equal(http.StatusBadRequest))
		Expect(body).To(ContainSubstring(`"code":"bad_request.validation_failed"`))
	})
}

func withSession(sec *session.Session) gin.HandlerFunc {
	return func(c *gin.Context) {
		session.InjectSessionIntoGinContext(c, sec)
		c.Next()
	}
}
