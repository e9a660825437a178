package billing

import (
	"time"

	"github.com/google/uuid"

	"github.com/pacigest/pacigest/internal/domain/account"
)

type Provider string

const (
	ProviderStripe   Provider = "stripe"
	ProviderPayPal   Provider = "paypal"
	ProviderTransfer Provider = "transfer"
	ProviderManual   Provider = "manual"
)

type Status string

const (
	StatusPending   Status = "pending"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
	StatusRefunded  Status = "refunded"
)

// Payment maps to the payments table. A completed payment extends the
// doctor's subscription by PeriodMonths.
type Payment struct {
	ID            uuid.UUID    `db:"id" json:"id"`
	DoctorID      uuid.UUID    `db:"doctor_id" json:"doctor_id"`
	Provider      Provider     `db:"provider" json:"provider"`
	ProviderRef   *string      `db:"provider_ref" json:"provider_ref,omitempty"`
	AmountCents   int64        `db:"amount_cents" json:"amount_cents"`
	Currency      string       `db:"currency" json:"currency"`
	Plan          account.Plan `db:"plan" json:"plan"`
	PeriodMonths  int          `db:"period_months" json:"period_months"`
	Status        Status       `db:"status" json:"status"`
	PaidAt        *time.Time   `db:"paid_at" json:"paid_at,omitempty"`
	FailureReason *string      `db:"failure_reason" json:"failure_reason,omitempty"`
	CreatedAt     time.Time    `db:"created_at" json:"created_at"`
	UpdatedAt     time.Time    `db:"updated_at" json:"updated_at"`
}

type ListFilter struct {
	Status Status
}

type CreatePaymentRequest struct {
	Provider     Provider     `json:"provider" validate:"required,oneof=stripe paypal transfer manual"`
	ProviderRef  string       `json:"provider_ref" validate:"omitempty,max=255"`
	AmountCents  int64        `json:"amount_cents" validate:"required,gt=0"`
	Currency     string       `json:"currency" validate:"required,len=3,alpha"`
	Plan         account.Plan `json:"plan" validate:"required,oneof=basic premium"`
	PeriodMonths int          `json:"period_months" validate:"required,min=1,max=36"`
}

// EventType is a settlement outcome reported by the payment provider.
type EventType string

const (
	EventCompleted EventType = "payment.completed"
	EventFailed    EventType = "payment.failed"
	EventRefunded  EventType = "payment.refunded"
)

// ProviderEvent is the body of the provider webhook. Reason is required for
// payment.failed.
type ProviderEvent struct {
	PaymentID uuid.UUID `json:"payment_id" validate:"required"`
	Type      EventType `json:"type" validate:"required,oneof=payment.completed payment.failed payment.refunded"`
	Reason    string    `json:"reason" validate:"omitempty,notblank,max=1000"`
}

// Subscription is the billing state stored on the doctor's user row.
type Subscription struct {
	DoctorID    uuid.UUID                  `json:"doctor_id"`
	Plan        account.Plan               `json:"plan"`
	Status      account.SubscriptionStatus `json:"status"`
	TrialEndsAt *time.Time                 `json:"trial_ends_at,omitempty"`
	EndsAt      *time.Time                 `json:"ends_at,omitempty"`
	Active      bool                       `json:"active"`
	DaysLeft    int                        `json:"days_left"`
}

// ActiveAt reports whether the subscription grants access at now: a paid
// subscription until EndsAt or a trial until TrialEndsAt.
func (s *Subscription) ActiveAt(now time.Time) bool {
	switch s.Status {
	case account.StatusActive:
		return s.EndsAt != nil && s.EndsAt.After(now)
	case account.StatusTrialing:
		return s.TrialEndsAt != nil && s.TrialEndsAt.After(now)
	default:
		return false
	}
}

func (s *Subscription) expiry() *time.Time {
	if s.Status == account.StatusTrialing {
		return s.TrialEndsAt
	}
	return s.EndsAt
}

// renewedUntil extends a paid period from the later of now and the current end.
func renewedUntil(current *time.Time, now time.Time, months int) time.Time {
	start := now
	if current != nil && current.After(now) {
		start = *current
	}
	return start.AddDate(0, months, 0)
}
