package api

import (
	"github.com/labstack/echo-contrib/echoprometheus"
	"github.com/labstack/echo/v4"
	echomiddleware "github.com/labstack/echo/v4/middleware"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/mdrrmo/evac-gateway/internal/api/handler"
	"github.com/mdrrmo/evac-gateway/internal/api/middleware"
	"github.com/mdrrmo/evac-gateway/internal/core/domain"
	"github.com/mdrrmo/evac-gateway/internal/core/ports"
)

// RouterDeps carries everything the HTTP layer needs, already constructed.
type RouterDeps struct {
	Sessions    handler.SessionLifecycle
	Tracker     handler.ActivityTracker
	ActivityLog ports.ActivityLog
	Updates     handler.UpdateSource
	Records     ports.RecordService
	Users       handler.UserDirectory
	Mongo       *mongo.Database
	Redis       *redis.Client
	JWTSecret   string
	Log         zerolog.Logger
}

// NewRouter builds and returns the Echo instance with all routes registered.
func NewRouter(deps RouterDeps) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HTTPErrorHandler = NewHTTPErrorHandler(deps.Log)
	e.Validator = handler.NewValidator()

	// --- Global middleware ---
	e.Use(echomiddleware.Recover())
	e.Use(echomiddleware.RequestID())
	e.Use(echoprometheus.NewMiddleware("evacgw"))

	// --- Handlers ---
	sessionHandler := handler.NewSessionHandler(deps.Sessions)
	activityHandler := handler.NewActivityHandler(deps.Tracker, deps.ActivityLog, deps.Updates)
	recordHandler := handler.NewRecordHandler(deps.Records)
	userHandler := handler.NewUserHandler(deps.Users)
	authMiddleware := middleware.Auth(deps.JWTSecret)
	adminOnly := middleware.RBAC(domain.RoleAdmin)

	// --- Public routes ---
	e.POST("/v1/session/login", sessionHandler.Login)
	e.POST("/v1/session/force-login", sessionHandler.ForceLogin)
	e.GET("/v1/session/status", sessionHandler.Status)

	// --- Authenticated routes ---
	v1 := e.Group("/v1", authMiddleware)
	v1.GET("/session", sessionHandler.Current)
	v1.POST("/session/logout", sessionHandler.Logout)
	v1.POST("/session/validate", sessionHandler.Validate)
	v1.POST("/session/renew", sessionHandler.Renew)

	v1.POST("/activity", activityHandler.Report)
	v1.GET("/activity/recent", activityHandler.Recent)
	v1.GET("/activity/latest", activityHandler.Latest)
	v1.GET("/activity/updates", activityHandler.Updates)

	v1.GET("/records", recordHandler.List)
	v1.POST("/records", recordHandler.Create)
	v1.PUT("/records/:data_id", recordHandler.Update)
	v1.GET("/records/export", recordHandler.Export)
	v1.DELETE("/records/:data_id", recordHandler.Delete, adminOnly)

	v1.GET("/users", userHandler.ListUsers, adminOnly)
	v1.GET("/logs", userHandler.ListLogs, adminOnly)

	// --- Health probes and metrics (no auth required) ---
	healthHandler := handler.NewHealthHandler()
	healthDepsHandler := handler.NewHealthDependenciesHandler(deps.Mongo, deps.Redis)

	e.GET("/health", healthHandler.Liveness)            // liveness  – is the process alive?
	e.GET("/health/ready", healthDepsHandler.Readiness) // readiness – are dependencies up?
	e.GET("/metrics", echoprometheus.NewHandler())

	return e
}
