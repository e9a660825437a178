package account

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/pacigest/pacigest/internal/platform/apperr"
	"github.com/pacigest/pacigest/internal/platform/auth"
	"github.com/pacigest/pacigest/internal/platform/notification"
	"github.com/pacigest/pacigest/internal/platform/validate"
)

// Mailer sends one rendered template. notification.Manager implements it.
type Mailer interface {
	SendTemplate(ctx context.Context, templateID, to string, data map[string]string) error
}

type Config struct {
	TrialDays           int
	VerificationCodeTTL time.Duration
	ResetTokenTTL       time.Duration
	FrontendURL         string
}

type Service struct {
	users    UserRepository
	tokens   *auth.TokenManager
	mailer   Mailer
	validate *validate.Validator
	cfg      Config
	logger   zerolog.Logger
	now      func() time.Time
}

func NewService(users UserRepository, tokens *auth.TokenManager, mailer Mailer, cfg Config, logger zerolog.Logger) *Service {
	if cfg.VerificationCodeTTL <= 0 {
		cfg.VerificationCodeTTL = 15 * time.Minute
	}
	if cfg.ResetTokenTTL <= 0 {
		cfg.ResetTokenTTL = time.Hour
	}
	return &Service{
		users:    users,
		tokens:   tokens,
		mailer:   mailer,
		validate: validate.New(),
		cfg:      cfg,
		logger:   logger.With().Str("component", "account").Logger(),
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// -- Registration --

func (s *Service) Register(ctx context.Context, req RegisterRequest) (*RegisterResult, error) {
	req.Email = NormalizeEmail(req.Email)
	if err := s.validate.Struct(&req); err != nil {
		return nil, err
	}

	if _, err := s.users.GetByEmail(ctx, req.Email); err == nil {
		return nil, apperr.Conflict("email already registered")
	} else if !errors.Is(err, apperr.ErrNotFound) {
		return nil, err
	}

	hash, err := auth.HashPassword(req.Password)
	if err != nil {
		return nil, err
	}
	code, err := auth.NewVerificationCode()
	if err != nil {
		return nil, err
	}

	now := s.now()
	codeHash := auth.HashSecret(code)
	codeExpires := now.Add(s.cfg.VerificationCodeTTL)
	trialEnds := now.AddDate(0, 0, s.cfg.TrialDays)
	u := &User{
		Email:                 req.Email,
		PasswordHash:          hash,
		FirstName:             req.FirstName,
		LastName:              req.LastName,
		Phone:                 optional(req.Phone),
		Specialty:             optional(req.Specialty),
		LicenseNumber:         optional(req.LicenseNumber),
		Role:                  auth.RoleDoctor,
		IsVerified:            false,
		VerificationCodeHash:  &codeHash,
		VerificationExpiresAt: &codeExpires,
		Plan:                  PlanTrial,
		SubscriptionStatus:    StatusTrialing,
		TrialEndsAt:           &trialEnds,
		IsActive:              true,
	}
	if err := s.users.Create(ctx, u); err != nil {
		if errors.Is(err, apperr.ErrConflict) {
			return nil, apperr.Conflict("email already registered")
		}
		return nil, err
	}

	s.sendVerification(ctx, u, code)
	return &RegisterResult{UserID: u.ID, Email: u.Email, ExpiresAt: codeExpires}, nil
}

func (s *Service) VerifyEmail(ctx context.Context, req VerifyEmailRequest) (*AuthResult, error) {
	if err := s.validate.Struct(&req); err != nil {
		return nil, err
	}
	u, err := s.users.GetByID(ctx, req.UserID)
	if err != nil {
		return nil, err
	}
	if u.IsVerified {
		return nil, apperr.Conflict("email already verified")
	}
	if u.VerificationCodeHash == nil || !auth.SecretMatches(*u.VerificationCodeHash, req.Code) {
		return nil, apperr.InvalidCode("invalid verification code")
	}
	if u.VerificationExpiresAt == nil || !s.now().Before(*u.VerificationExpiresAt) {
		return nil, apperr.ExpiredCode("verification code has expired")
	}

	marked, err := s.users.MarkVerified(ctx, u.ID)
	if err != nil {
		return nil, err
	}
	if !marked {
		return nil, apperr.Conflict("email already verified")
	}
	u.IsVerified = true
	u.VerificationCodeHash = nil
	u.VerificationExpiresAt = nil

	result, err := s.issue(u)
	if err != nil {
		return nil, err
	}

	data := map[string]string{
		"name":      u.FirstName,
		"login_url": s.link("/login", nil),
	}
	if u.TrialEndsAt != nil {
		data["trial_ends"] = u.TrialEndsAt.Format("2006-01-02")
	}
	s.send(ctx, notification.TemplateWelcome, u.Email, data)
	return result, nil
}

// ResendVerification issues a fresh code. Unknown and verified addresses
// succeed without sending anything.
func (s *Service) ResendVerification(ctx context.Context, req EmailRequest) error {
	req.Email = NormalizeEmail(req.Email)
	if err := s.validate.Struct(&req); err != nil {
		return err
	}
	u, err := s.users.GetByEmail(ctx, req.Email)
	if errors.Is(err, apperr.ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	if u.IsVerified {
		return nil
	}

	code, err := auth.NewVerificationCode()
	if err != nil {
		return err
	}
	if err := s.users.SetVerificationCode(ctx, u.ID, auth.HashSecret(code), s.now().Add(s.cfg.VerificationCodeTTL)); err != nil {
		return err
	}
	s.sendVerification(ctx, u, code)
	return nil
}

// -- Login --

func (s *Service) Login(ctx context.Context, req LoginRequest) (*AuthResult, error) {
	req.Email = NormalizeEmail(req.Email)
	if err := s.validate.Struct(&req); err != nil {
		return nil, err
	}
	invalid := apperr.Auth("invalid email or password")

	u, err := s.users.GetByEmail(ctx, req.Email)
	if errors.Is(err, apperr.ErrNotFound) {
		auth.BurnPasswordCheck(req.Password)
		return nil, invalid
	}
	if err != nil {
		return nil, err
	}

	ok, err := auth.CheckPassword(u.PasswordHash, req.Password)
	if err != nil {
		return nil, apperr.Internal("check password", err)
	}
	if !ok {
		return nil, invalid
	}
	if !u.IsVerified {
		return nil, apperr.Auth("email address has not been verified")
	}
	if !u.IsActive {
		return nil, apperr.Auth("account is disabled")
	}

	now := s.now()
	if err := s.users.TouchLogin(ctx, u.ID, now); err != nil {
		s.logger.Warn().Err(err).Str("user_id", u.ID.String()).Msg("failed to record login time")
	} else {
		u.LastLoginAt = &now
	}
	return s.issue(u)
}

func (s *Service) issue(u *User) (*AuthResult, error) {
	token, expiresAt, err := s.tokens.Issue(u.Session())
	if err != nil {
		return nil, apperr.Internal("issue token", err)
	}
	return &AuthResult{Token: token, ExpiresAt: expiresAt, User: u}, nil
}

// -- Password reset --

// ForgotPassword mails a reset link to a known verified account. It never
// reveals whether the address exists.
func (s *Service) ForgotPassword(ctx context.Context, req EmailRequest) error {
	req.Email = NormalizeEmail(req.Email)
	if err := s.validate.Struct(&req); err != nil {
		return err
	}
	u, err := s.users.GetByEmail(ctx, req.Email)
	if errors.Is(err, apperr.ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	if !u.IsVerified || !u.IsActive {
		return nil
	}

	token, err := auth.NewResetToken()
	if err != nil {
		return err
	}
	if err := s.users.SetResetToken(ctx, u.ID, auth.HashSecret(token), s.now().Add(s.cfg.ResetTokenTTL)); err != nil {
		return err
	}
	s.send(ctx, notification.TemplatePasswordReset, u.Email, map[string]string{
		"name":       u.FirstName,
		"expires_in": humanDuration(s.cfg.ResetTokenTTL),
		"reset_link": s.link("/reset-password", url.Values{"token": {token}}),
	})
	return nil
}

func (s *Service) ResetPassword(ctx context.Context, req ResetPasswordRequest) error {
	if err := s.validate.Struct(&req); err != nil {
		return err
	}
	tokenHash := auth.HashSecret(req.Token)
	u, err := s.users.GetByResetTokenHash(ctx, tokenHash)
	if errors.Is(err, apperr.ErrNotFound) {
		return apperr.InvalidCode("invalid or already used reset token")
	}
	if err != nil {
		return err
	}
	if u.ResetExpiresAt == nil || !s.now().Before(*u.ResetExpiresAt) {
		return apperr.ExpiredCode("reset token has expired")
	}

	hash, err := auth.HashPassword(req.Password)
	if err != nil {
		return err
	}
	consumed, err := s.users.ConsumeResetToken(ctx, u.ID, tokenHash, hash)
	if err != nil {
		return err
	}
	if !consumed {
		return apperr.InvalidCode("invalid or already used reset token")
	}
	s.send(ctx, notification.TemplatePasswordChanged, u.Email, map[string]string{"name": u.FirstName})
	return nil
}

// -- Profile --

func (s *Service) Me(ctx context.Context, sess *auth.Session) (*User, error) {
	return s.users.GetByID(ctx, sess.UserID)
}

func (s *Service) UpdateProfile(ctx context.Context, sess *auth.Session, patch ProfileUpdate) (*User, error) {
	if err := s.validate.Struct(&patch); err != nil {
		return nil, err
	}
	u, err := s.users.GetByID(ctx, sess.UserID)
	if err != nil {
		return nil, err
	}
	if patch.FirstName != nil {
		u.FirstName = *patch.FirstName
	}
	if patch.LastName != nil {
		u.LastName = *patch.LastName
	}
	if patch.Phone != nil {
		u.Phone = optional(*patch.Phone)
	}
	if patch.Specialty != nil {
		u.Specialty = optional(*patch.Specialty)
	}
	if patch.LicenseNumber != nil {
		u.LicenseNumber = optional(*patch.LicenseNumber)
	}
	if err := s.users.UpdateProfile(ctx, u); err != nil {
		return nil, err
	}
	return u, nil
}

func (s *Service) ChangePassword(ctx context.Context, sess *auth.Session, req ChangePasswordRequest) error {
	if err := s.validate.Struct(&req); err != nil {
		return err
	}
	u, err := s.users.GetByID(ctx, sess.UserID)
	if err != nil {
		return err
	}
	ok, err := auth.CheckPassword(u.PasswordHash, req.CurrentPassword)
	if err != nil {
		return apperr.Internal("check password", err)
	}
	if !ok {
		return apperr.Validation("current password is incorrect",
			apperr.FieldError{Field: "current_password", Message: "is incorrect"})
	}
	hash, err := auth.HashPassword(req.NewPassword)
	if err != nil {
		return err
	}
	if err := s.users.UpdatePassword(ctx, u.ID, hash); err != nil {
		return err
	}
	s.send(ctx, notification.TemplatePasswordChanged, u.Email, map[string]string{"name": u.FirstName})
	return nil
}

// RefreshSession reloads the account behind a token so that disabled
// accounts and revoked staff flags take effect before the token expires.
func (s *Service) RefreshSession(ctx context.Context, sess *auth.Session) error {
	u, err := s.users.GetByID(ctx, sess.UserID)
	if errors.Is(err, apperr.ErrNotFound) {
		return apperr.Auth("account no longer exists")
	}
	if err != nil {
		return err
	}
	if !u.IsActive {
		return apperr.Auth("account is disabled")
	}
	sess.Role = u.Role
	sess.DoctorID = u.ScopeDoctorID()
	if u.Role == auth.RoleStaff {
		sess.Permissions = u.Permissions
	} else {
		sess.Permissions = nil
	}
	return nil
}

// -- Staff --

func (s *Service) CreateStaff(ctx context.Context, sess *auth.Session, req CreateStaffRequest) (*User, error) {
	req.Email = NormalizeEmail(req.Email)
	if err := s.validate.Struct(&req); err != nil {
		return nil, err
	}
	if !sess.IsDoctor() {
		return nil, apperr.Forbidden("only doctors can add staff")
	}

	perms := auth.StaffCeiling()
	if req.Permissions != nil {
		narrowed, err := req.Permissions.Narrow()
		if err != nil {
			return nil, apperr.Validation(err.Error(), apperr.FieldError{Field: "permissions", Message: err.Error()})
		}
		perms = narrowed
	}

	doctor, err := s.users.GetByID(ctx, sess.DoctorID)
	if err != nil {
		return nil, err
	}
	hash, err := auth.HashPassword(req.Password)
	if err != nil {
		return nil, err
	}

	doctorID := sess.DoctorID
	u := &User{
		Email:              req.Email,
		PasswordHash:       hash,
		FirstName:          req.FirstName,
		LastName:           req.LastName,
		Phone:              optional(req.Phone),
		Role:               auth.RoleStaff,
		DoctorID:           &doctorID,
		Permissions:        perms,
		IsVerified:         true,
		Plan:               doctor.Plan,
		SubscriptionStatus: doctor.SubscriptionStatus,
		IsActive:           true,
	}
	if err := s.users.Create(ctx, u); err != nil {
		if errors.Is(err, apperr.ErrConflict) {
			return nil, apperr.Conflict("email already registered")
		}
		return nil, err
	}

	s.send(ctx, notification.TemplateStaffInvitation, u.Email, map[string]string{
		"name":        u.FirstName,
		"doctor_name": doctor.FullName(),
		"email":       u.Email,
		"login_url":   s.link("/login", nil),
	})
	return u, nil
}

func (s *Service) ListStaff(ctx context.Context, sess *auth.Session, limit, offset int) ([]*User, int, error) {
	return s.users.ListStaff(ctx, sess.DoctorID, limit, offset)
}

func (s *Service) UpdateStaff(ctx context.Context, sess *auth.Session, staffID uuid.UUID, req StaffUpdate) (*User, error) {
	if err := s.validate.Struct(&req); err != nil {
		return nil, err
	}
	u, err := s.users.GetByID(ctx, staffID)
	if err != nil {
		return nil, err
	}
	if u.Role != auth.RoleStaff {
		return nil, apperr.NotFound("staff member")
	}
	if u.DoctorID == nil || *u.DoctorID != sess.DoctorID {
		return nil, apperr.Forbidden("staff member belongs to another practice")
	}

	perms, err := req.Permissions.Narrow()
	if err != nil {
		return nil, apperr.Validation(err.Error(), apperr.FieldError{Field: "permissions", Message: err.Error()})
	}
	active := u.IsActive
	if req.IsActive != nil {
		active = *req.IsActive
	}
	if err := s.users.UpdateStaff(ctx, u.ID, perms, active); err != nil {
		return nil, err
	}
	u.Permissions = perms
	u.IsActive = active
	return u, nil
}

// -- Notifications --

func (s *Service) sendVerification(ctx context.Context, u *User, code string) {
	s.send(ctx, notification.TemplateEmailVerification, u.Email, map[string]string{
		"name":       u.FirstName,
		"code":       code,
		"expires_in": humanDuration(s.cfg.VerificationCodeTTL),
	})
}

// send delivers one template. Failures are logged and never undo the
// state change that triggered them.
func (s *Service) send(ctx context.Context, templateID, to string, data map[string]string) {
	if s.mailer == nil {
		return
	}
	if err := s.mailer.SendTemplate(ctx, templateID, to, data); err != nil {
		s.logger.Error().Err(err).Str("template", templateID).Str("to", to).Msg("email send failed")
	}
}

func (s *Service) link(path string, q url.Values) string {
	u := s.cfg.FrontendURL + path
	if len(q) > 0 {
		u += "?" + q.Encode()
	}
	return u
}

func humanDuration(d time.Duration) string {
	switch {
	case d >= time.Hour && d%time.Hour == 0:
		h := int(d / time.Hour)
		if h == 1 {
			return "1 hour"
		}
		return fmt.Sprintf("%d hours", h)
	case d >= time.Minute:
		return fmt.Sprintf("%d minutes", int(d/time.Minute))
	default:
		return d.String()
	}
}
