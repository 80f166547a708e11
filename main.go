package main

import (
	"net/http"

	"beacon/account"
	"beacon/authority"
	"beacon/bizerror"
	"beacon/client/s3"
	"beacon/common"
	"beacon/designer"
	"beacon/domain"
	"beacon/domain/impersonation"
	"beacon/domain/permission"
	"beacon/domain/workspace"
	"beacon/infra/tracing"
	"beacon/persistence"
	"beacon/servehttp"
	"beacon/session"
	"beacon/sessions"

	"github.com/gin-gonic/gin"
)

func main() {
	common.Log.Info("service start")

	dbConfig, err := persistence.ParseDatabaseConfigFromEnv()
	if err != nil {
		common.Log.Fatalf("parse database config failed %v", err)
	}

	// create database (no conflict)
	if dbConfig.DriverType == "mysql" {
		if err := persistence.PrepareMysqlDatabase(dbConfig.DriverArgs); err != nil {
			common.Log.Fatalf("failed to prepare database %v", err)
		}
	}

	// connect database
	ds := &persistence.DataSourceManager{DatabaseConfig: dbConfig}
	if err := ds.Start(); err != nil {
		common.Log.Fatalf("database connection failed %v", err)
	}
	defer ds.Stop()
	persistence.ActiveDataSourceManager = ds

	// database migration (race condition)
	err = ds.GormDB(nil).AutoMigrate(
		&account.User{},
		&authority.Permission{},
		&domain.Workspace{},
		&domain.Membership{},
		&domain.WorkspaceGrant{},
		&domain.ImpersonationSession{},
	).Error
	if err != nil {
		common.Log.Fatalf("database migration failed %v", err)
	}

	if err := account.DefaultSecurityConfiguration(); err != nil {
		common.Log.Fatalf("failed to prepare default security configuration %v", err)
	}
	if err := permission.SeedAllPermissions(); err != nil {
		common.Log.Fatalf("failed to seed permission catalog %v", err)
	}

	session.ValidateImpersonationFunc = impersonation.ValidateImpersonation
	session.LoadPermsFunc = permission.LoadUserPermNames

	tracerCloser, err := tracing.Bootstrap()
	if err != nil {
		common.Log.Fatalf("failed to init tracer %v", err)
	}
	defer func() {
		if tracerCloser != nil {
			_ = tracerCloser.Close()
		}
	}()

	s3.Bootstrap()

	engine := gin.Default()
	engine.Use(tracing.TracingIngress(), bizerror.ErrorHandling())
	engine.GET("/", func(c *gin.Context) {
		c.String(http.StatusOK, "beacon")
	})

	sessions.RegisterSessionsRestApis(engine)
	sessions.RegisterSessionRestApis(engine, session.SimpleAuthFilter())
	account.RegisterUsersRestApis(engine, session.SimpleAuthFilter())
	permission.RegisterPermissionsRestApis(engine, session.SimpleAuthFilter())
	workspace.RegisterWorkspacesRestApis(engine, session.SimpleAuthFilter())
	workspace.RegisterMembershipsRestApis(engine, session.SimpleAuthFilter())
	impersonation.RegisterImpersonationsRestApis(engine, session.SimpleAuthFilter())
	designer.RegisterAssetsRestApis(engine, session.SimpleAuthFilter())

	servehttp.StartHTTPServer(engine)
}
