// Package service holds the portal's business operations.  Handlers and the
// CLI depend on these; storage, object storage and relays are injected as
// small interfaces.
package service

import (
	"errors"
	"fmt"
	"net/mail"
	"strings"

	"github.com/iliyamo/utility-audit-portal/internal/model"
)

var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrNoSession          = errors.New("no active session")
)

// ValidationError reports a rejected input field.
type ValidationError struct {
	Field string
	Msg   string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Msg)
}

func invalid(field, msg string) error {
	return &ValidationError{Field: field, Msg: msg}
}

// Viewer is the authenticated caller of an operation.
type Viewer struct {
	ID   string
	Role model.Role
}

func (v Viewer) IsOwner() bool  { return v.Role == model.RoleOwner }
func (v Viewer) IsClient() bool { return v.Role == model.RoleClient }

func required(field, v string) error {
	if strings.TrimSpace(v) == "" {
		return invalid(field, "is required")
	}
	return nil
}

func validEmail(field, v string) error {
	if err := required(field, v); err != nil {
		return err
	}
	if _, err := mail.ParseAddress(strings.TrimSpace(v)); err != nil {
		return invalid(field, "is not a valid email address")
	}
	return nil
}

func oneOf(field, v string, allowed ...string) error {
	for _, a := range allowed {
		if v == a {
			return nil
		}
	}
	return invalid(field, "must be one of "+strings.Join(allowed, ", "))
}
