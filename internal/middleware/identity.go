package middleware

// identity.go holds accessors for the values JWTAuth, LoadRole and PageAuth
// place in the echo context.

import (
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/utility-audit-portal/internal/model"
	"github.com/iliyamo/utility-audit-portal/internal/service"
)

// UserID returns the authenticated user id, or "" for anonymous requests.
func UserID(c echo.Context) string {
	s, _ := c.Get("user_id").(string)
	return s
}

// RoleOf returns the resolved role, RoleNone when LoadRole has not run.
func RoleOf(c echo.Context) model.Role {
	if r, ok := c.Get("role").(model.Role); ok {
		return r
	}
	return model.RoleNone
}

// Viewer builds the service-level caller from the context.
func Viewer(c echo.Context) service.Viewer {
	return service.Viewer{ID: UserID(c), Role: RoleOf(c)}
}

// Identity returns the verified token content stored by JWTAuth.
func Identity(c echo.Context) service.Identity {
	email, _ := c.Get("email").(string)
	sid, _ := c.Get("session_id").(string)
	return service.Identity{UserID: UserID(c), Email: email, SessionID: sid}
}

// rateSubject identifies the caller for rate limiting.
func rateSubject(c echo.Context) string {
	if id := UserID(c); id != "" {
		return id
	}
	return "anon"
}
