package account

import (
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/pacigest/pacigest/internal/platform/auth"
)

type Plan string

const (
	PlanTrial   Plan = "trial"
	PlanBasic   Plan = "basic"
	PlanPremium Plan = "premium"
)

type SubscriptionStatus string

const (
	StatusTrialing  SubscriptionStatus = "trialing"
	StatusActive    SubscriptionStatus = "active"
	StatusExpired   SubscriptionStatus = "expired"
	StatusCancelled SubscriptionStatus = "cancelled"
)

// User maps to the users table. Doctors are tenants; staff rows point at
// their employing doctor through DoctorID.
type User struct {
	ID                     uuid.UUID          `db:"id" json:"id"`
	Email                  string             `db:"email" json:"email"`
	PasswordHash           string             `db:"password_hash" json:"-"`
	FirstName              string             `db:"first_name" json:"first_name"`
	LastName               string             `db:"last_name" json:"last_name"`
	Phone                  *string            `db:"phone" json:"phone,omitempty"`
	Specialty              *string            `db:"specialty" json:"specialty,omitempty"`
	LicenseNumber          *string            `db:"license_number" json:"license_number,omitempty"`
	Role                   auth.Role          `db:"role" json:"role"`
	DoctorID               *uuid.UUID         `db:"doctor_id" json:"doctor_id,omitempty"`
	Permissions            auth.Permissions   `db:"permissions" json:"permissions,omitempty"`
	IsVerified             bool               `db:"is_verified" json:"is_verified"`
	VerificationCodeHash   *string            `db:"verification_code_hash" json:"-"`
	VerificationExpiresAt  *time.Time         `db:"verification_expires_at" json:"-"`
	ResetTokenHash         *string            `db:"reset_token_hash" json:"-"`
	ResetExpiresAt         *time.Time         `db:"reset_expires_at" json:"-"`
	Plan                   Plan               `db:"plan" json:"plan"`
	SubscriptionStatus     SubscriptionStatus `db:"subscription_status" json:"subscription_status"`
	TrialEndsAt            *time.Time         `db:"trial_ends_at" json:"trial_ends_at,omitempty"`
	SubscriptionEndsAt     *time.Time         `db:"subscription_ends_at" json:"subscription_ends_at,omitempty"`
	TrialReminderSentAt    *time.Time         `db:"trial_reminder_sent_at" json:"-"`
	TrialExpiredNotifiedAt *time.Time         `db:"trial_expired_notified_at" json:"-"`
	LastLoginAt            *time.Time         `db:"last_login_at" json:"last_login_at,omitempty"`
	IsActive               bool               `db:"is_active" json:"is_active"`
	CreatedAt              time.Time          `db:"created_at" json:"created_at"`
	UpdatedAt              time.Time          `db:"updated_at" json:"updated_at"`
}

func (u *User) FullName() string {
	return strings.TrimSpace(u.FirstName + " " + u.LastName)
}

// ScopeDoctorID is the tenant the user acts for.
func (u *User) ScopeDoctorID() uuid.UUID {
	if u.Role == auth.RoleStaff && u.DoctorID != nil {
		return *u.DoctorID
	}
	return u.ID
}

// Session builds the token payload for u. Doctors carry no flags.
func (u *User) Session() auth.Session {
	s := auth.Session{
		UserID:   u.ID,
		Role:     u.Role,
		DoctorID: u.ScopeDoctorID(),
		Email:    u.Email,
	}
	if u.Role == auth.RoleStaff {
		s.Permissions = u.Permissions
	}
	return s
}

// NormalizeEmail lower-cases and trims an address before lookup or storage.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func optional(s string) *string {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	return &s
}

// -- Requests --

type RegisterRequest struct {
	Email         string `json:"email" validate:"required,email,max=255"`
	Password      string `json:"password" validate:"required,min=8,max=72,password"`
	FirstName     string `json:"first_name" validate:"required,notblank,max=100"`
	LastName      string `json:"last_name" validate:"required,notblank,max=100"`
	Phone         string `json:"phone" validate:"omitempty,max=40"`
	Specialty     string `json:"specialty" validate:"omitempty,max=120"`
	LicenseNumber string `json:"license_number" validate:"omitempty,max=80"`
}

type RegisterResult struct {
	UserID    uuid.UUID `json:"user_id"`
	Email     string    `json:"email"`
	ExpiresAt time.Time `json:"verification_expires_at"`
}

type VerifyEmailRequest struct {
	UserID uuid.UUID `json:"user_id" validate:"required"`
	Code   string    `json:"code" validate:"required,len=6,numeric"`
}

type EmailRequest struct {
	Email string `json:"email" validate:"required,email"`
}

type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

type ResetPasswordRequest struct {
	Token    string `json:"token" validate:"required"`
	Password string `json:"password" validate:"required,min=8,max=72,password"`
}

type ChangePasswordRequest struct {
	CurrentPassword string `json:"current_password" validate:"required"`
	NewPassword     string `json:"new_password" validate:"required,min=8,max=72,password"`
}

// ProfileUpdate is a partial update; nil fields are left unchanged.
type ProfileUpdate struct {
	FirstName     *string `json:"first_name" validate:"omitempty,notblank,max=100"`
	LastName      *string `json:"last_name" validate:"omitempty,notblank,max=100"`
	Phone         *string `json:"phone" validate:"omitempty,max=40"`
	Specialty     *string `json:"specialty" validate:"omitempty,max=120"`
	LicenseNumber *string `json:"license_number" validate:"omitempty,max=80"`
}

type CreateStaffRequest struct {
	Email       string           `json:"email" validate:"required,email,max=255"`
	Password    string           `json:"password" validate:"required,min=8,max=72,password"`
	FirstName   string           `json:"first_name" validate:"required,notblank,max=100"`
	LastName    string           `json:"last_name" validate:"required,notblank,max=100"`
	Phone       string           `json:"phone" validate:"omitempty,max=40"`
	Permissions auth.Permissions `json:"permissions"`
}

type StaffUpdate struct {
	Permissions auth.Permissions `json:"permissions" validate:"required"`
	IsActive    *bool            `json:"is_active"`
}

// AuthResult is returned by Login and VerifyEmail.
type AuthResult struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
	User      *User     `json:"user"`
}
