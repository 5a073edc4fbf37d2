package handler

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/utility-audit-portal/internal/middleware"
	"github.com/iliyamo/utility-audit-portal/internal/model"
	"github.com/iliyamo/utility-audit-portal/internal/service"
)

// AuthAPI is the part of service.AuthService the handlers use.
type AuthAPI interface {
	SignIn(ctx context.Context, email, password string) (*service.Session, error)
	Refresh(ctx context.Context, refreshToken string) (*service.Session, error)
	Verify(ctx context.Context, accessToken string) (*service.Identity, error)
	GetSession(ctx context.Context, accessToken string) (*service.Identity, error)
	SignOut(ctx context.Context, id service.Identity)
	ResolveRole(ctx context.Context, userID string) (model.Role, error)
	CreateClient(ctx context.Context, v service.Viewer, email, password string) (model.RosterEntry, error)
}

// AuthHandler serves the session endpoints.  Successful logins also set the
// access_token cookie so the browser pages share the session.
type AuthHandler struct {
	Auth         AuthAPI
	SecureCookie bool
}

func NewAuthHandler(auth AuthAPI, secureCookie bool) *AuthHandler {
	return &AuthHandler{Auth: auth, SecureCookie: secureCookie}
}

// ----- DTOs -----

type loginReq struct {
	Email    string `json:"email" form:"email"`
	Password string `json:"password" form:"password"`
}
type refreshReq struct {
	RefreshToken string `json:"refresh_token"`
}
type createClientReq struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type tokenPart struct {
	Token   string    `json:"token"`
	Expires time.Time `json:"expires"`
}
type userPart struct {
	ID    string     `json:"id"`
	Email string     `json:"email"`
	Role  model.Role `json:"role"`
}
type authResp struct {
	User    userPart  `json:"user"`
	Access  tokenPart `json:"access"`
	Refresh tokenPart `json:"refresh"`
}

func sessionResp(s *service.Session) authResp {
	return authResp{
		User:    userPart{ID: s.User.ID, Email: s.User.Email, Role: s.Role},
		Access:  tokenPart{Token: s.AccessToken, Expires: s.AccessExpiresAt},
		Refresh: tokenPart{Token: s.RefreshToken, Expires: s.RefreshExpiresAt},
	}
}

// Login: verify credentials and return a new token pair.
func (h *AuthHandler) Login(c echo.Context) error {
	var req loginReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	req.Email = strings.TrimSpace(req.Email)
	if req.Email == "" || req.Password == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "email/password required"})
	}

	ctx, cancel := reqCtx(c, defaultTimeout)
	defer cancel()

	sess, err := h.Auth.SignIn(ctx, req.Email, req.Password)
	if err != nil {
		return fail(c, err, "sign in failed")
	}
	h.setCookie(c, sess)
	return c.JSON(http.StatusOK, sessionResp(sess))
}

// Refresh: rotate the refresh token and issue a new pair.
func (h *AuthHandler) Refresh(c echo.Context) error {
	var req refreshReq
	if err := c.Bind(&req); err != nil || strings.TrimSpace(req.RefreshToken) == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "refresh_token required"})
	}
	ctx, cancel := reqCtx(c, defaultTimeout)
	defer cancel()

	sess, err := h.Auth.Refresh(ctx, strings.TrimSpace(req.RefreshToken))
	if err != nil {
		return fail(c, err, "refresh failed")
	}
	h.setCookie(c, sess)
	return c.JSON(http.StatusOK, sessionResp(sess))
}

// Logout always succeeds: the session is revoked when the token is valid
// and the cookie is cleared either way.
func (h *AuthHandler) Logout(c echo.Context) error {
	h.signOut(c)
	return c.JSON(http.StatusOK, echo.Map{"success": true})
}

func (h *AuthHandler) signOut(c echo.Context) {
	ctx, cancel := reqCtx(c, defaultTimeout)
	defer cancel()
	if raw := middleware.TokenFrom(c); raw != "" {
		if id, err := h.Auth.Verify(ctx, raw); err == nil {
			h.Auth.SignOut(ctx, *id)
		}
	}
	c.SetCookie(&http.Cookie{
		Name:     middleware.AccessCookie,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   h.SecureCookie,
		SameSite: http.SameSiteLaxMode,
	})
}

// Session reports the current user, or {"user": null} when there is none.
func (h *AuthHandler) Session(c echo.Context) error {
	raw := middleware.TokenFrom(c)
	if raw == "" {
		return c.JSON(http.StatusOK, echo.Map{"user": nil})
	}
	ctx, cancel := reqCtx(c, defaultTimeout)
	defer cancel()

	id, err := h.Auth.GetSession(ctx, raw)
	if errors.Is(err, service.ErrNoSession) {
		return c.JSON(http.StatusOK, echo.Map{"user": nil})
	}
	if err != nil {
		return fail(c, err, "session lookup failed")
	}
	role, err := h.Auth.ResolveRole(ctx, id.UserID)
	if err != nil {
		return fail(c, err, "role lookup failed")
	}
	return c.JSON(http.StatusOK, echo.Map{"user": userPart{ID: id.UserID, Email: id.Email, Role: role}})
}

// Me returns the authenticated caller.  Requires JWTAuth and LoadRole.
func (h *AuthHandler) Me(c echo.Context) error {
	id := middleware.Identity(c)
	return c.JSON(http.StatusOK, userPart{ID: id.UserID, Email: id.Email, Role: middleware.RoleOf(c)})
}

// CreateClient provisions a client account (owner only).
func (h *AuthHandler) CreateClient(c echo.Context) error {
	var req createClientReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	ctx, cancel := reqCtx(c, defaultTimeout)
	defer cancel()

	entry, err := h.Auth.CreateClient(ctx, middleware.Viewer(c), strings.TrimSpace(req.Email), req.Password)
	if err != nil {
		return fail(c, err, "create client failed")
	}
	return c.JSON(http.StatusCreated, entry)
}

func (h *AuthHandler) setCookie(c echo.Context, s *service.Session) {
	c.SetCookie(&http.Cookie{
		Name:     middleware.AccessCookie,
		Value:    s.AccessToken,
		Path:     "/",
		Expires:  s.AccessExpiresAt,
		HttpOnly: true,
		Secure:   h.SecureCookie,
		SameSite: http.SameSiteLaxMode,
	})
}
