package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/utility-audit-portal/internal/objectstore"
	"github.com/iliyamo/utility-audit-portal/internal/relay"
	"github.com/iliyamo/utility-audit-portal/internal/repository"
	"github.com/iliyamo/utility-audit-portal/internal/service"
)

const (
	defaultTimeout = 5 * time.Second
	uploadTimeout  = 60 * time.Second
)

func reqCtx(c echo.Context, d time.Duration) (context.Context, context.CancelFunc) {
	return context.WithTimeout(c.Request().Context(), d)
}

// fail maps a service error to a JSON error response.  Unknown errors are
// logged and reported as a generic 500 with msg.
func fail(c echo.Context, err error, msg string) error {
	var verr *service.ValidationError
	switch {
	case errors.As(err, &verr):
		return c.JSON(http.StatusBadRequest, echo.Map{"error": verr.Error(), "field": verr.Field})
	case errors.Is(err, service.ErrInvalidCredentials):
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid credentials"})
	case errors.Is(err, service.ErrNoSession):
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "no active session"})
	case errors.Is(err, repository.ErrForbidden):
		return c.JSON(http.StatusForbidden, echo.Map{"error": "forbidden"})
	case errors.Is(err, repository.ErrNotFound):
		return c.JSON(http.StatusNotFound, echo.Map{"error": "not found"})
	case errors.Is(err, repository.ErrEmailExists):
		return c.JSON(http.StatusConflict, echo.Map{"error": "email already exists"})
	case errors.Is(err, repository.ErrConflict):
		return c.JSON(http.StatusConflict, echo.Map{"error": "conflict"})
	case errors.Is(err, objectstore.ErrTooLarge):
		return c.JSON(http.StatusRequestEntityTooLarge, echo.Map{"error": "file too large"})
	case errors.Is(err, relay.ErrNotConfigured):
		return c.JSON(http.StatusServiceUnavailable, echo.Map{"error": "service not configured"})
	case errors.Is(err, context.DeadlineExceeded):
		return c.JSON(http.StatusGatewayTimeout, echo.Map{"error": "timed out"})
	}
	logError(c, msg, err)
	return c.JSON(http.StatusInternalServerError, echo.Map{"error": msg})
}

// logError writes err to the process logger with the route it came from.
func logError(c echo.Context, msg string, err error) {
	slog.Error(msg, "path", c.Path(), "err", err)
}
