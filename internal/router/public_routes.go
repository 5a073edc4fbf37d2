package router

import (
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/utility-audit-portal/internal/handler"
	"github.com/iliyamo/utility-audit-portal/internal/middleware"
	"github.com/iliyamo/utility-audit-portal/internal/model"
)

// RegisterLeads registers the public lead capture API.
func RegisterLeads(e *echo.Echo, l *handler.LeadHandler, g Guards) {
	api := e.Group("/api/v1")
	api.POST("/audit-requests", l.Audit, g.rateLimit())
	api.POST("/inquiries", l.Inquiry, g.rateLimit())
	api.POST("/contact", l.Contact, g.rateLimit())
	api.GET("/uploads", l.Uploads)
}

// RegisterPages registers the browser routes.  Static marketing pages go
// through the page cache; dashboards redirect to /login without a session
// of the right role.  Anything else renders the not-found page.
func RegisterPages(e *echo.Echo, p *handler.PageHandler, g Guards) {
	cache := g.pageCache()
	e.GET("/", p.Home, cache)
	e.GET("/about", p.About, cache)
	e.GET("/contact", p.Contact, cache)
	e.GET("/stats", p.Stats, cache)
	e.GET("/uploads", p.Uploads)

	e.POST("/audit-request", p.SubmitAudit, g.rateLimit())
	e.POST("/inquiry", p.SubmitInquiry, g.rateLimit())
	e.POST("/contact", p.SubmitContact, g.rateLimit())

	e.GET("/login", p.Login)
	e.POST("/login", p.LoginSubmit, g.rateLimit())
	e.POST("/logout", p.Logout)

	owner := middleware.PageAuth(g.Sessions, g.Roles, model.RoleOwner)
	e.GET("/owner-dashboard", p.OwnerDashboard, owner)
	e.POST("/owner-dashboard/reports", p.UploadReport, owner)
	e.POST("/owner-dashboard/reports/:id/metrics", p.AddMetric, owner)

	e.GET("/client-dashboard", p.ClientDashboard, middleware.PageAuth(g.Sessions, g.Roles, model.RoleClient))

	e.RouteNotFound("/*", p.NotFound)
}
