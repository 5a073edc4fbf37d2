package router

import (
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/utility-audit-portal/internal/handler"
	"github.com/iliyamo/utility-audit-portal/internal/model"
)

// RegisterReports registers the report endpoints.  Reads are open to owners
// and clients (the service narrows clients to their own rows); writes and
// the client roster live under /api/v1/owner and need the owner role.
func RegisterReports(e *echo.Echo, r *handler.ReportHandler, a *handler.AuthHandler, g Guards) {
	reports := e.Group("/api/v1/reports", g.signedIn(model.RoleOwner, model.RoleClient)...)
	reports.GET("", r.List)
	reports.GET("/:id/metrics", r.Metrics)
	reports.GET("/:id/file", r.File)

	owner := e.Group("/api/v1/owner", g.signedIn(model.RoleOwner)...)
	owner.POST("/reports", r.Upload)
	owner.POST("/reports/:id/metrics", r.AddMetric)
	owner.GET("/clients", r.Clients)
	owner.POST("/clients", a.CreateClient)
}
