package account

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/pacigest/pacigest/internal/platform/auth"
	"github.com/pacigest/pacigest/internal/platform/db"
)

type userRepoPG struct {
	pool *pgxpool.Pool
}

func NewUserRepo(pool *pgxpool.Pool) UserRepository {
	return &userRepoPG{pool: pool}
}

func (r *userRepoPG) conn(ctx context.Context) db.Querier {
	return db.Conn(ctx, r.pool)
}

const userCols = `id, email, password_hash, first_name, last_name, phone, specialty, license_number,
	role, doctor_id, permissions, is_verified, verification_code_hash, verification_expires_at,
	reset_token_hash, reset_expires_at, plan, subscription_status, trial_ends_at, subscription_ends_at,
	trial_reminder_sent_at, trial_expired_notified_at, last_login_at, is_active, created_at, updated_at`

func (r *userRepoPG) Create(ctx context.Context, u *User) error {
	u.ID = uuid.New()
	if u.Permissions == nil {
		u.Permissions = auth.Permissions{}
	}
	err := r.conn(ctx).QueryRow(ctx, `
		INSERT INTO users (
			id, email, password_hash, first_name, last_name, phone, specialty, license_number,
			role, doctor_id, permissions, is_verified, verification_code_hash, verification_expires_at,
			plan, subscription_status, trial_ends_at, is_active
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18)
		RETURNING created_at, updated_at`,
		u.ID, u.Email, u.PasswordHash, u.FirstName, u.LastName, u.Phone, u.Specialty, u.LicenseNumber,
		u.Role, u.DoctorID, u.Permissions, u.IsVerified, u.VerificationCodeHash, u.VerificationExpiresAt,
		u.Plan, u.SubscriptionStatus, u.TrialEndsAt, u.IsActive,
	).Scan(&u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		if db.IsUniqueViolation(err) {
			return db.MapError(err, "email")
		}
		return fmt.Errorf("user create: %w", err)
	}
	return nil
}

func (r *userRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*User, error) {
	return r.get(ctx, `SELECT `+userCols+` FROM users WHERE id = $1`, id)
}

func (r *userRepoPG) GetByEmail(ctx context.Context, email string) (*User, error) {
	return r.get(ctx, `SELECT `+userCols+` FROM users WHERE LOWER(email) = LOWER($1)`, email)
}

func (r *userRepoPG) GetByResetTokenHash(ctx context.Context, hash string) (*User, error) {
	return r.get(ctx, `SELECT `+userCols+` FROM users WHERE reset_token_hash = $1`, hash)
}

func (r *userRepoPG) get(ctx context.Context, query string, arg interface{}) (*User, error) {
	u, err := scanUser(r.conn(ctx).QueryRow(ctx, query, arg))
	if err != nil {
		return nil, db.MapError(err, "user")
	}
	return u, nil
}

func (r *userRepoPG) UpdateProfile(ctx context.Context, u *User) error {
	return r.exec(ctx, "user update", `
		UPDATE users SET first_name=$2, last_name=$3, phone=$4, specialty=$5, license_number=$6, updated_at=NOW()
		WHERE id = $1`,
		u.ID, u.FirstName, u.LastName, u.Phone, u.Specialty, u.LicenseNumber,
	)
}

func (r *userRepoPG) SetVerificationCode(ctx context.Context, id uuid.UUID, hash string, expiresAt time.Time) error {
	return r.exec(ctx, "user set verification code", `
		UPDATE users SET verification_code_hash=$2, verification_expires_at=$3, updated_at=NOW()
		WHERE id = $1 AND is_verified = FALSE`,
		id, hash, expiresAt,
	)
}

func (r *userRepoPG) MarkVerified(ctx context.Context, id uuid.UUID) (bool, error) {
	tag, err := r.conn(ctx).Exec(ctx, `
		UPDATE users SET is_verified=TRUE, verification_code_hash=NULL, verification_expires_at=NULL, updated_at=NOW()
		WHERE id = $1 AND is_verified = FALSE`,
		id,
	)
	if err != nil {
		return false, fmt.Errorf("user mark verified: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

func (r *userRepoPG) SetResetToken(ctx context.Context, id uuid.UUID, hash string, expiresAt time.Time) error {
	return r.exec(ctx, "user set reset token", `
		UPDATE users SET reset_token_hash=$2, reset_expires_at=$3, updated_at=NOW()
		WHERE id = $1`,
		id, hash, expiresAt,
	)
}

func (r *userRepoPG) ConsumeResetToken(ctx context.Context, id uuid.UUID, tokenHash, passwordHash string) (bool, error) {
	tag, err := r.conn(ctx).Exec(ctx, `
		UPDATE users SET password_hash=$3, reset_token_hash=NULL, reset_expires_at=NULL, updated_at=NOW()
		WHERE id = $1 AND reset_token_hash = $2`,
		id, tokenHash, passwordHash,
	)
	if err != nil {
		return false, fmt.Errorf("user consume reset token: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

func (r *userRepoPG) UpdatePassword(ctx context.Context, id uuid.UUID, passwordHash string) error {
	return r.exec(ctx, "user update password", `
		UPDATE users SET password_hash=$2, reset_token_hash=NULL, reset_expires_at=NULL, updated_at=NOW()
		WHERE id = $1`,
		id, passwordHash,
	)
}

func (r *userRepoPG) TouchLogin(ctx context.Context, id uuid.UUID, at time.Time) error {
	return r.exec(ctx, "user touch login", `UPDATE users SET last_login_at=$2 WHERE id = $1`, id, at)
}

func (r *userRepoPG) ListStaff(ctx context.Context, doctorID uuid.UUID, limit, offset int) ([]*User, int, error) {
	var total int
	err := r.conn(ctx).QueryRow(ctx,
		`SELECT COUNT(*) FROM users WHERE role = 'staff' AND doctor_id = $1`, doctorID).Scan(&total)
	if err != nil {
		return nil, 0, fmt.Errorf("staff count: %w", err)
	}

	rows, err := r.conn(ctx).Query(ctx, `SELECT `+userCols+` FROM users
		WHERE role = 'staff' AND doctor_id = $1
		ORDER BY last_name, first_name LIMIT $2 OFFSET $3`, doctorID, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("staff list: %w", err)
	}
	defer rows.Close()

	var users []*User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, 0, err
		}
		users = append(users, u)
	}
	return users, total, rows.Err()
}

func (r *userRepoPG) UpdateStaff(ctx context.Context, id uuid.UUID, perms auth.Permissions, active bool) error {
	return r.exec(ctx, "staff update", `
		UPDATE users SET permissions=$2, is_active=$3, updated_at=NOW()
		WHERE id = $1 AND role = 'staff'`,
		id, perms, active,
	)
}

// exec runs a single-row update and reports a missing row as NotFound.
func (r *userRepoPG) exec(ctx context.Context, op, query string, args ...interface{}) error {
	tag, err := r.conn(ctx).Exec(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if tag.RowsAffected() == 0 {
		return db.MapError(pgx.ErrNoRows, "user")
	}
	return nil
}

func scanUser(row pgx.Row) (*User, error) {
	var u User
	err := row.Scan(
		&u.ID, &u.Email, &u.PasswordHash, &u.FirstName, &u.LastName, &u.Phone, &u.Specialty, &u.LicenseNumber,
		&u.Role, &u.DoctorID, &u.Permissions, &u.IsVerified, &u.VerificationCodeHash, &u.VerificationExpiresAt,
		&u.ResetTokenHash, &u.ResetExpiresAt, &u.Plan, &u.SubscriptionStatus, &u.TrialEndsAt, &u.SubscriptionEndsAt,
		&u.TrialReminderSentAt, &u.TrialExpiredNotifiedAt, &u.LastLoginAt, &u.IsActive, &u.CreatedAt, &u.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &u, nil
}
