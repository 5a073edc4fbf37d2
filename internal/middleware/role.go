package middleware

import (
	"context"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/utility-audit-portal/internal/model"
)

// RoleResolver looks up a user's role; it is called on every request.
type RoleResolver interface {
	ResolveRole(ctx context.Context, userID string) (model.Role, error)
}

// LoadRole resolves the authenticated user's role into the context under
// "role".  It must run after JWTAuth.  A user without a role gets RoleNone.
func LoadRole(roles RoleResolver) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			role, err := roles.ResolveRole(c.Request().Context(), UserID(c))
			if err != nil {
				return c.JSON(http.StatusInternalServerError, echo.Map{"error": "role lookup failed"})
			}
			c.Set("role", role)
			return next(c)
		}
	}
}

// RequireRole aborts with 403 unless the context role is one of roles.  A
// missing role means no access.
func RequireRole(roles ...model.Role) echo.MiddlewareFunc {
	allowed := make(map[model.Role]bool, len(roles))
	for _, r := range roles {
		allowed[r] = true
	}
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if !allowed[RoleOf(c)] {
				return c.JSON(http.StatusForbidden, echo.Map{"error": "forbidden"})
			}
			return next(c)
		}
	}
}

// PageAuth guards HTML pages.  Without a valid session, or with a role not
// in roles, the browser is redirected to /login instead of seeing the page.
func PageAuth(sessions SessionVerifier, resolver RoleResolver, roles ...model.Role) echo.MiddlewareFunc {
	allowed := make(map[model.Role]bool, len(roles))
	for _, r := range roles {
		allowed[r] = true
	}
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			ctx := c.Request().Context()
			raw := TokenFrom(c)
			if raw == "" {
				return c.Redirect(http.StatusSeeOther, "/login")
			}
			id, err := sessions.Verify(ctx, raw)
			if err != nil {
				return c.Redirect(http.StatusSeeOther, "/login")
			}
			role, err := resolver.ResolveRole(ctx, id.UserID)
			if err != nil || !allowed[role] {
				return c.Redirect(http.StatusSeeOther, "/login")
			}
			setIdentity(c, id)
			c.Set("role", role)
			return next(c)
		}
	}
}
