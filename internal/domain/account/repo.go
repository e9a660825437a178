package account

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/pacigest/pacigest/internal/platform/auth"
)

// UserRepository is the credential store. Lookups return an apperr
// NotFound error when no row matches.
type UserRepository interface {
	Create(ctx context.Context, u *User) error
	GetByID(ctx context.Context, id uuid.UUID) (*User, error)
	GetByEmail(ctx context.Context, email string) (*User, error)
	GetByResetTokenHash(ctx context.Context, hash string) (*User, error)
	UpdateProfile(ctx context.Context, u *User) error
	SetVerificationCode(ctx context.Context, id uuid.UUID, hash string, expiresAt time.Time) error
	// MarkVerified reports false when the account was already verified.
	MarkVerified(ctx context.Context, id uuid.UUID) (bool, error)
	SetResetToken(ctx context.Context, id uuid.UUID, hash string, expiresAt time.Time) error
	// ConsumeResetToken sets the password and clears the token in one
	// statement. It reports false when the token was already used.
	ConsumeResetToken(ctx context.Context, id uuid.UUID, tokenHash, passwordHash string) (bool, error)
	UpdatePassword(ctx context.Context, id uuid.UUID, passwordHash string) error
	TouchLogin(ctx context.Context, id uuid.UUID, at time.Time) error

	// Staff
	ListStaff(ctx context.Context, doctorID uuid.UUID, limit, offset int) ([]*User, int, error)
	UpdateStaff(ctx context.Context, id uuid.UUID, perms auth.Permissions, active bool) error
}
