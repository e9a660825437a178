package billing

import (
	"context"
	"math"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/pacigest/pacigest/internal/platform/apperr"
	"github.com/pacigest/pacigest/internal/platform/auth"
	"github.com/pacigest/pacigest/internal/platform/db"
	"github.com/pacigest/pacigest/internal/platform/middleware"
	"github.com/pacigest/pacigest/internal/platform/validate"
)

// Service records subscription payments and owns the subscription state
// that gates the clinical routes.
type Service struct {
	payments PaymentRepository
	subs     SubscriptionStore
	tx       db.TxRunner
	validate *validate.Validator
	logger   zerolog.Logger
	now      func() time.Time
}

func NewService(payments PaymentRepository, subs SubscriptionStore, tx db.TxRunner, logger zerolog.Logger) *Service {
	if tx == nil {
		tx = db.NoTx{}
	}
	return &Service{
		payments: payments,
		subs:     subs,
		tx:       tx,
		validate: validate.New(),
		logger:   logger.With().Str("component", "billing").Logger(),
		now:      func() time.Time { return time.Now().UTC() },
	}
}

func (s *Service) authorize(ctx context.Context, sess *auth.Session, id uuid.UUID) (*Payment, error) {
	p, err := s.payments.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if p.DoctorID != sess.DoctorID {
		return nil, apperr.Forbidden("payment belongs to another practice")
	}
	return p, nil
}

func (s *Service) List(ctx context.Context, sess *auth.Session, f ListFilter, limit, offset int) ([]*Payment, int, error) {
	switch f.Status {
	case "", StatusPending, StatusCompleted, StatusFailed, StatusRefunded:
	default:
		return nil, 0, apperr.Validation("invalid status filter",
			apperr.FieldError{Field: "status", Message: "must be one of: pending completed failed refunded"})
	}
	return s.payments.List(ctx, sess.DoctorID, f, limit, offset)
}

func (s *Service) Get(ctx context.Context, sess *auth.Session, id uuid.UUID) (*Payment, error) {
	return s.authorize(ctx, sess, id)
}

func (s *Service) Create(ctx context.Context, sess *auth.Session, req CreatePaymentRequest) (*Payment, error) {
	if err := s.validate.Struct(&req); err != nil {
		return nil, err
	}
	p := &Payment{
		DoctorID:     sess.DoctorID,
		Provider:     req.Provider,
		ProviderRef:  optional(req.ProviderRef),
		AmountCents:  req.AmountCents,
		Currency:     strings.ToUpper(req.Currency),
		Plan:         req.Plan,
		PeriodMonths: req.PeriodMonths,
		Status:       StatusPending,
	}
	if err := s.payments.Create(ctx, p); err != nil {
		return nil, err
	}
	return p, nil
}

// HandleEvent applies a settlement reported by the payment provider.
// Practice sessions can only create pending payments; every other status
// change arrives here through the provider webhook.
func (s *Service) HandleEvent(ctx context.Context, ev ProviderEvent) (*Payment, error) {
	if err := s.validate.Struct(&ev); err != nil {
		return nil, err
	}
	if _, err := s.payments.GetByID(ctx, ev.PaymentID); err != nil {
		return nil, err
	}
	switch ev.Type {
	case EventCompleted:
		return s.Complete(ctx, ev.PaymentID)
	case EventFailed:
		if err := s.validate.Var("reason", ev.Reason, "required,notblank"); err != nil {
			return nil, err
		}
		return s.Fail(ctx, ev.PaymentID, ev.Reason)
	default:
		return s.Refund(ctx, ev.PaymentID)
	}
}

// Complete marks a pending payment as paid and extends the doctor's
// subscription in the same transaction.
func (s *Service) Complete(ctx context.Context, id uuid.UUID) (*Payment, error) {
	now := s.now()
	var paid *Payment
	err := s.tx.InTx(ctx, func(ctx context.Context) error {
		p, err := s.payments.Transition(ctx, id, StatusPending, StatusChange{To: StatusCompleted, At: now})
		if err != nil {
			return err
		}
		sub, err := s.subs.Get(ctx, p.DoctorID)
		if err != nil {
			return err
		}
		endsAt := renewedUntil(sub.EndsAt, now, p.PeriodMonths)
		if err := s.subs.Renew(ctx, p.DoctorID, p.Plan, endsAt); err != nil {
			return err
		}
		paid = p
		s.logger.Info().
			Str("doctor_id", p.DoctorID.String()).
			Str("payment_id", p.ID.String()).
			Str("plan", string(p.Plan)).
			Time("ends_at", endsAt).
			Msg("subscription renewed")
		return nil
	})
	if err != nil {
		return nil, err
	}
	return paid, nil
}

func (s *Service) Fail(ctx context.Context, id uuid.UUID, reason string) (*Payment, error) {
	return s.payments.Transition(ctx, id, StatusPending, StatusChange{To: StatusFailed, At: s.now(), Reason: optional(reason)})
}

// Refund marks a completed payment refunded. The subscription period it
// bought is left in place.
func (s *Service) Refund(ctx context.Context, id uuid.UUID) (*Payment, error) {
	return s.payments.Transition(ctx, id, StatusCompleted, StatusChange{To: StatusRefunded, At: s.now()})
}

// Subscription returns the current subscription of the session's doctor.
func (s *Service) Subscription(ctx context.Context, sess *auth.Session) (*Subscription, error) {
	sub, err := s.subs.Get(ctx, sess.DoctorID)
	if err != nil {
		return nil, err
	}
	now := s.now()
	sub.Active = sub.ActiveAt(now)
	if end := sub.expiry(); sub.Active && end != nil {
		sub.DaysLeft = int(math.Ceil(end.Sub(now).Hours() / 24))
	}
	return sub, nil
}

// SubscriptionActive implements auth.SubscriptionChecker.
func (s *Service) SubscriptionActive(ctx context.Context, doctorID uuid.UUID) (bool, error) {
	sub, err := s.subs.Get(ctx, doctorID)
	if err != nil {
		return false, err
	}
	return sub.ActiveAt(s.now()), nil
}

func optional(v string) *string {
	v = middleware.CleanString(v)
	if v == "" {
		return nil
	}
	return &v
}
