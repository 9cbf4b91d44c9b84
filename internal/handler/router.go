package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/noah-isme/crime-report-api/internal/middleware"
	"github.com/noah-isme/crime-report-api/internal/service"
)

// Handlers groups every HTTP handler mounted under the API prefix.
type Handlers struct {
	Auth    *AuthHandler
	Users   *UserHandler
	Reports *ReportHandler
	Admin   *AdminHandler
	Audit   *AuditHandler
	Exports *ExportHandler
}

// RegisterRoutes mounts the API on api. Role checks run before handlers so rejected calls never mutate state.
func RegisterRoutes(api *gin.RouterGroup, h Handlers, sessions middleware.SessionResolver) {
	auth := api.Group("/auth")
	auth.POST("/register", h.Auth.Register)
	auth.POST("/login", h.Auth.Login)

	if h.Exports != nil {
		api.GET("/exports/download/:token", h.Exports.Download)
	}

	authed := api.Group("", middleware.Session(sessions), middleware.RequireRoles(service.AnyAuthenticated...))
	authed.POST("/auth/logout", h.Auth.Logout)
	authed.GET("/auth/me", h.Auth.Me)

	users := authed.Group("/users")
	users.GET("/profile", h.Users.Profile)
	users.POST("/request-admin", h.Users.RequestAdmin)
	users.GET("/admin-request-status", h.Users.AdminRequestStatus)

	reports := authed.Group("/reports")
	reports.POST("", h.Reports.Create)
	reports.GET("", h.Reports.List)
	reports.GET("/my-reports", h.Reports.ListMine)
	reports.GET("/:id", h.Reports.Get)
	reports.GET("/:id/history", h.Reports.History)

	triage := reports.Group("", middleware.RequireRoles(service.AdminRoles...))
	triage.PATCH("/:id/status", h.Reports.UpdateStatus)
	triage.PATCH("/:id/priority", h.Reports.UpdatePriority)
	triage.PATCH("/:id/notes", h.Reports.UpdateNotes)
	triage.DELETE("/:id", h.Reports.Delete)

	super := authed.Group("", middleware.RequireRoles(service.SuperAdminOnly...))
	super.GET("/admin/requests", h.Admin.ListRequests)
	super.POST("/admin/requests/:id/approve", h.Admin.Approve)
	super.POST("/admin/requests/:id/reject", h.Admin.Reject)
	super.POST("/admin/users/:id/revoke-admin", h.Admin.RevokeAdmin)
	super.POST("/admin/users/:id/lock", h.Admin.Lock)
	super.POST("/admin/users/:id/unlock", h.Admin.Unlock)
	super.GET("/audit/logs", h.Audit.List)
	super.GET("/audit/users/:id", h.Audit.ListForUser)

	if h.Exports != nil {
		exports := authed.Group("/exports", middleware.RequireRoles(service.AdminRoles...))
		exports.POST("", h.Exports.Create)
		exports.GET("/:id", h.Exports.Status)
	}
}
