package auth

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/pacigest/pacigest/internal/platform/apperr"
)

// SessionRefresher reloads mutable account state (active flag, staff
// permissions) for a parsed token. It returns an error when the account
// can no longer authenticate.
type SessionRefresher interface {
	RefreshSession(ctx context.Context, s *Session) error
}

// Authenticate validates the bearer token and stores the Session in the
// request context. refresher may be nil.
func Authenticate(tokens *TokenManager, refresher SessionRefresher) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			raw, err := bearerToken(c.Request().Header.Get(echo.HeaderAuthorization))
			if err != nil {
				return err
			}

			s, err := tokens.Parse(raw)
			if err != nil {
				return apperr.Auth("invalid or expired token")
			}

			ctx := c.Request().Context()
			if refresher != nil {
				if err := refresher.RefreshSession(ctx, s); err != nil {
					return err
				}
			}

			c.SetRequest(c.Request().WithContext(WithSession(ctx, s)))
			c.Set("user_id", s.UserID.String())
			c.Set("user_role", string(s.Role))
			return next(c)
		}
	}
}

func bearerToken(header string) (string, error) {
	if header == "" {
		return "", apperr.Auth("missing authorization header")
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") || strings.TrimSpace(parts[1]) == "" {
		return "", apperr.Auth("invalid authorization format")
	}
	return strings.TrimSpace(parts[1]), nil
}

// SubscriptionChecker reports whether the doctor's subscription currently
// allows gated features.
type SubscriptionChecker interface {
	SubscriptionActive(ctx context.Context, doctorID uuid.UUID) (bool, error)
}

// RequireSubscription fails closed with 402 when the scoped doctor's
// subscription is inactive or cannot be loaded.
func RequireSubscription(checker SubscriptionChecker) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			s, err := SessionFrom(c)
			if err != nil {
				return err
			}
			active, err := checker.SubscriptionActive(c.Request().Context(), s.DoctorID)
			if err != nil || !active {
				return apperr.SubscriptionRequired("an active subscription is required")
			}
			return next(c)
		}
	}
}
