package middleware // reusable HTTP middleware for the portal's API and pages

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/utility-audit-portal/internal/service"
)

// AccessCookie carries the access token for browser page requests.
const AccessCookie = "access_token"

// SessionVerifier validates an access token and confirms its session is
// still active.
type SessionVerifier interface {
	Verify(ctx context.Context, accessToken string) (*service.Identity, error)
}

// JWTAuth validates the caller's access token, taken from a Bearer header or
// the access_token cookie, and stores user_id, email and session_id in the
// context.  Tokens of signed-out sessions are rejected even before expiry.
func JWTAuth(sessions SessionVerifier) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			raw := TokenFrom(c)
			if raw == "" {
				return c.JSON(http.StatusUnauthorized, echo.Map{"error": "missing bearer token"})
			}
			id, err := sessions.Verify(c.Request().Context(), raw)
			if errors.Is(err, service.ErrNoSession) {
				return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid token"})
			}
			if err != nil {
				return c.JSON(http.StatusInternalServerError, echo.Map{"error": "session lookup failed"})
			}
			setIdentity(c, id)
			return next(c)
		}
	}
}

// TokenFrom returns the access token of the request, preferring the
// Authorization header over the cookie.
func TokenFrom(c echo.Context) string {
	auth := c.Request().Header.Get("Authorization")
	if strings.HasPrefix(auth, "Bearer ") {
		return strings.TrimSpace(strings.TrimPrefix(auth, "Bearer "))
	}
	if ck, err := c.Cookie(AccessCookie); err == nil {
		return ck.Value
	}
	return ""
}

func setIdentity(c echo.Context, id *service.Identity) {
	c.Set("user_id", id.UserID)
	c.Set("email", id.Email)
	c.Set("session_id", id.SessionID)
}
