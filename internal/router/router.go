package router

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"

	"github.com/iliyamo/utility-audit-portal/internal/handler"
	"github.com/iliyamo/utility-audit-portal/internal/middleware"
	"github.com/iliyamo/utility-audit-portal/internal/model"
)

const functionsPrefix = "/functions/v1"

// Guards bundles the middleware shared by the route groups.  RateLimit and
// PageCache may be nil, in which case requests pass straight through.
type Guards struct {
	Sessions  middleware.SessionVerifier
	Roles     middleware.RoleResolver
	RateLimit echo.MiddlewareFunc
	PageCache echo.MiddlewareFunc
}

func (g Guards) rateLimit() echo.MiddlewareFunc {
	if g.RateLimit == nil {
		return func(next echo.HandlerFunc) echo.HandlerFunc { return next }
	}
	return g.RateLimit
}

func (g Guards) pageCache() echo.MiddlewareFunc {
	if g.PageCache == nil {
		return func(next echo.HandlerFunc) echo.HandlerFunc { return next }
	}
	return g.PageCache
}

// signedIn authenticates the request and loads the caller's role, then
// admits only the given roles.
func (g Guards) signedIn(roles ...model.Role) []echo.MiddlewareFunc {
	return []echo.MiddlewareFunc{
		middleware.JWTAuth(g.Sessions),
		middleware.LoadRole(g.Roles),
		middleware.RequireRole(roles...),
	}
}

// RegisterRoutes registers the health check.
func RegisterRoutes(e *echo.Echo, db handler.Pinger) {
	e.GET("/healthz", handler.Health(db))
}

// RegisterAuth registers the session endpoints under /api/v1.  Login,
// refresh, logout and the session probe need no token; /me does.
func RegisterAuth(e *echo.Echo, a *handler.AuthHandler, g Guards) {
	auth := e.Group("/api/v1/auth")
	auth.POST("/login", a.Login, g.rateLimit())
	auth.POST("/refresh", a.Refresh, g.rateLimit())
	auth.POST("/logout", a.Logout)
	auth.GET("/session", a.Session)

	me := e.Group("/api/v1/me", g.signedIn(model.RoleOwner, model.RoleClient)...)
	me.GET("", a.Me)
}

// RegisterFunctions registers the relay functions.  Any origin may call
// them, subject to the rate limit.  CORS is installed on the echo instance
// so that preflight requests, which match no POST route, are answered too.
func RegisterFunctions(e *echo.Echo, f *handler.FunctionHandler, g Guards) {
	e.Use(echomw.CORSWithConfig(echomw.CORSConfig{
		Skipper: func(c echo.Context) bool {
			return !strings.HasPrefix(c.Request().URL.Path, functionsPrefix+"/")
		},
		AllowOrigins: []string{"*"},
		AllowMethods: []string{http.MethodPost, http.MethodOptions},
		AllowHeaders: []string{echo.HeaderContentType, echo.HeaderAuthorization},
	}))

	fn := e.Group(functionsPrefix, g.rateLimit())
	fn.POST("/chat", f.ChatMessage)
	fn.POST("/crm-submit", f.CRMSubmit)
}
