package auth

import (
	"context"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/pacigest/pacigest/internal/platform/apperr"
)

// Session is the authenticated caller. DoctorID is the tenant scope: the
// user itself for doctors, the employing doctor for staff.
type Session struct {
	UserID      uuid.UUID
	Role        Role
	DoctorID    uuid.UUID
	Email       string
	Permissions Permissions
}

func (s *Session) Can(c Capability) bool {
	return Has(s.Role, s.Permissions, c)
}

func (s *Session) IsDoctor() bool { return s.Role == RoleDoctor }

type contextKey string

const sessionKey contextKey = "session"

func WithSession(ctx context.Context, s *Session) context.Context {
	return context.WithValue(ctx, sessionKey, s)
}

func SessionFromContext(ctx context.Context) (*Session, bool) {
	s, ok := ctx.Value(sessionKey).(*Session)
	return s, ok && s != nil
}

// SessionFrom returns the request session or an auth error when the route
// was reached without Authenticate.
func SessionFrom(c echo.Context) (*Session, error) {
	s, ok := SessionFromContext(c.Request().Context())
	if !ok {
		return nil, apperr.Auth("authentication required")
	}
	return s, nil
}
